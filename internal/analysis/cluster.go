package analysis

import (
	"sort"
	"time"

	"github.com/kiranshivaraju/bugboard/pkg/models"
)

// ClusterThreshold is the exclusive lower bound for joining an existing cluster.
const ClusterThreshold = 0.5

// BuildClusters groups non-duplicate reports into cross-team issues.
//
// Reports are visited oldest first, ties broken by store sequence. Each report
// joins the first cluster (in creation order) whose URL equals its canonical
// URL and whose founding description scores above ClusterThreshold against
// its own; otherwise it founds a new cluster. A cluster's representative text
// is its founder's and never changes, and clusters are never merged.
// Duplicate-flagged reports are skipped. Returns an empty slice (never nil)
// when nothing qualifies.
func BuildClusters(reports []*models.BugReport, score Scorer) []models.IssueCluster {
	if score == nil {
		score = DefaultScorer
	}

	type clusterState struct {
		url         string
		description string
		normalized  string
		teams       []string
		firstSeen   map[string]time.Time
	}

	ordered := chronological(reports)
	var clusters []*clusterState

	for _, r := range ordered {
		if r.Duplicate {
			continue
		}
		url := NormalizeURL(r.URL)
		team := NormalizeTeam(r.Team)
		desc := NormalizeDescription(r.Description)

		var target *clusterState
		for _, cs := range clusters {
			if cs.url == url && score(cs.normalized, desc) > ClusterThreshold {
				target = cs
				break
			}
		}

		if target == nil {
			clusters = append(clusters, &clusterState{
				url:         url,
				description: r.Description,
				normalized:  desc,
				teams:       []string{team},
				firstSeen:   map[string]time.Time{team: r.CreatedAt},
			})
			continue
		}

		if _, seen := target.firstSeen[team]; !seen {
			target.teams = append(target.teams, team)
			target.firstSeen[team] = r.CreatedAt
		}
	}

	out := make([]models.IssueCluster, 0, len(clusters))
	for _, cs := range clusters {
		out = append(out, models.IssueCluster{
			URL:         cs.url,
			Description: cs.description,
			TeamCount:   len(cs.teams),
			Teams:       cs.teams,
			FirstSeenAt: cs.firstSeen,
		})
	}
	return out
}

// chronological returns a copy of reports sorted by (CreatedAt, Seq). The
// sort is stable so reports without a sequence keep their input order.
func chronological(reports []*models.BugReport) []*models.BugReport {
	ordered := make([]*models.BugReport, len(reports))
	copy(ordered, reports)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.Seq < b.Seq
	})
	return ordered
}
