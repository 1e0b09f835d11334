package models

import "time"

// IssueCluster is one unique issue: non-duplicate reports from one or more teams
// that share a canonical URL and a description similar to the founding report.
// Clusters are computed on demand and never stored.
type IssueCluster struct {
	URL         string               `json:"url"`
	Description string               `json:"description"`
	TeamCount   int                  `json:"team_count"`
	Teams       []string             `json:"teams"`
	FirstSeenAt map[string]time.Time `json:"first_seen_at"`
}

// TeamMatch answers how many teams reported the same issue as one report.
type TeamMatch struct {
	TeamCount int      `json:"team_count"`
	Teams     []string `json:"teams"`
}
