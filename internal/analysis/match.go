package analysis

import "github.com/kiranshivaraju/bugboard/pkg/models"

// MatchTeams lists the teams that filed a report on target's canonical URL
// whose description scores above ClusterThreshold against target's. Teams are
// listed in the order their first matching report appears in sameURL.
func MatchTeams(target *models.BugReport, sameURL []*models.BugReport, score Scorer) models.TeamMatch {
	if score == nil {
		score = DefaultScorer
	}
	url := NormalizeURL(target.URL)
	desc := NormalizeDescription(target.Description)

	seen := make(map[string]bool)
	teams := []string{}
	for _, r := range sameURL {
		team := NormalizeTeam(r.Team)
		if seen[team] || NormalizeURL(r.URL) != url {
			continue
		}
		if score(NormalizeDescription(r.Description), desc) > ClusterThreshold {
			seen[team] = true
			teams = append(teams, team)
		}
	}

	return models.TeamMatch{TeamCount: len(teams), Teams: teams}
}
