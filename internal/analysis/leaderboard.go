package analysis

import (
	"sort"

	"github.com/kiranshivaraju/bugboard/pkg/models"
)

// BuildLeaderboard ranks teams by the number of distinct canonical URLs they
// reported on, then by total report count, then by name. Duplicate-flagged
// reports are not counted.
func BuildLeaderboard(reports []*models.BugReport) []models.LeaderboardEntry {
	type teamState struct {
		urls map[string]struct{}
		bugs int
	}

	teams := make(map[string]*teamState)
	for _, r := range reports {
		if r.Duplicate {
			continue
		}
		name := NormalizeTeam(r.Team)
		ts, ok := teams[name]
		if !ok {
			ts = &teamState{urls: make(map[string]struct{})}
			teams[name] = ts
		}
		ts.urls[NormalizeURL(r.URL)] = struct{}{}
		ts.bugs++
	}

	entries := make([]models.LeaderboardEntry, 0, len(teams))
	for name, ts := range teams {
		entries = append(entries, models.LeaderboardEntry{
			Team:     name,
			URLCount: len(ts.urls),
			BugCount: ts.bugs,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].URLCount != entries[j].URLCount {
			return entries[i].URLCount > entries[j].URLCount
		}
		if entries[i].BugCount != entries[j].BugCount {
			return entries[i].BugCount > entries[j].BugCount
		}
		return entries[i].Team < entries[j].Team
	})

	return entries
}
