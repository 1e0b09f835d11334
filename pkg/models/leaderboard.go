package models

// LeaderboardEntry ranks a team by how many distinct URLs it reported bugs on.
type LeaderboardEntry struct {
	Team     string `json:"team"`
	URLCount int    `json:"url_count"`
	BugCount int    `json:"bug_count"`
}
