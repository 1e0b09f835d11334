package analysis

import (
	"testing"
	"time"

	"github.com/kiranshivaraju/bugboard/pkg/models"
)

var base = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func report(seq int64, team, url, desc string, at time.Duration) *models.BugReport {
	return &models.BugReport{
		Seq:         seq,
		Team:        team,
		URL:         url,
		Description: desc,
		CreatedAt:   base.Add(at),
	}
}

// prefixScorer treats descriptions as the same issue when their first letter matches.
func prefixScorer(a, b string) float64 {
	if a == b {
		return 1
	}
	if a != "" && b != "" && a[0] == b[0] {
		return 0.9
	}
	return 0
}

func TestBuildClusters_EmptyInput(t *testing.T) {
	clusters := BuildClusters(nil, nil)
	if clusters == nil {
		t.Fatal("expected non-nil empty slice, got nil")
	}
	if len(clusters) != 0 {
		t.Errorf("expected 0 clusters, got %d", len(clusters))
	}
}

func TestBuildClusters_SingleReport(t *testing.T) {
	clusters := BuildClusters([]*models.BugReport{
		report(1, "Alpha", "http://x.com/", "Login button broken", 0),
	}, nil)

	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	c := clusters[0]
	if c.URL != "http://x.com" {
		t.Errorf("expected canonical url, got %q", c.URL)
	}
	if c.TeamCount != 1 || c.Teams[0] != "Alpha" {
		t.Errorf("expected one team Alpha, got %d %v", c.TeamCount, c.Teams)
	}
	if c.Description != "Login button broken" {
		t.Errorf("expected original description, got %q", c.Description)
	}
}

func TestBuildClusters_CrossTeamSameIssue(t *testing.T) {
	clusters := BuildClusters([]*models.BugReport{
		report(1, "Alpha", "http://x.com/", "Login button broken", 0),
		report(2, "Beta", "http://x.com", "login button is broken", time.Minute),
	}, nil)

	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	c := clusters[0]
	if c.TeamCount != 2 {
		t.Errorf("expected team count 2, got %d", c.TeamCount)
	}
	if !c.FirstSeenAt["Alpha"].Equal(base) {
		t.Errorf("Alpha first seen = %v", c.FirstSeenAt["Alpha"])
	}
	if !c.FirstSeenAt["Beta"].Equal(base.Add(time.Minute)) {
		t.Errorf("Beta first seen = %v", c.FirstSeenAt["Beta"])
	}
}

func TestBuildClusters_NewURLAlwaysNewCluster(t *testing.T) {
	clusters := BuildClusters([]*models.BugReport{
		report(1, "Alpha", "http://x.com", "same words", 0),
		report(2, "Alpha", "http://y.com", "same words", time.Minute),
	}, func(_, _ string) float64 { return 1 })

	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if clusters[1].URL != "http://y.com" {
		t.Errorf("expected second cluster on y.com, got %q", clusters[1].URL)
	}
}

func TestBuildClusters_SameTeamCountedOnce(t *testing.T) {
	clusters := BuildClusters([]*models.BugReport{
		report(1, "Alpha", "u", "apple", 0),
		report(2, "Alpha", "u", "avocado", time.Minute),
		report(3, "Beta", "u", "apricot", 2*time.Minute),
	}, prefixScorer)

	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	c := clusters[0]
	if c.TeamCount != 2 || len(c.Teams) != 2 || len(c.FirstSeenAt) != 2 {
		t.Errorf("expected 2 teams, got count=%d teams=%v firstSeen=%v", c.TeamCount, c.Teams, c.FirstSeenAt)
	}
	if !c.FirstSeenAt["Alpha"].Equal(base) {
		t.Errorf("Alpha first seen should be its earliest report, got %v", c.FirstSeenAt["Alpha"])
	}
}

func TestBuildClusters_RepresentativeNeverChanges(t *testing.T) {
	// "ab" joins "aa" (same first letter); "bb" would match "ab" but is only
	// compared to the founder "aa", so it starts its own cluster.
	clusters := BuildClusters([]*models.BugReport{
		report(1, "Alpha", "u", "aa", 0),
		report(2, "Beta", "u", "ab", time.Minute),
		report(3, "Gamma", "u", "bb", 2*time.Minute),
	}, func(a, b string) float64 {
		if a[0] == b[0] {
			return 0.9
		}
		return 0.1
	})

	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if clusters[0].Description != "aa" || clusters[0].TeamCount != 2 {
		t.Errorf("first cluster = %+v", clusters[0])
	}
	if clusters[1].Description != "bb" || clusters[1].TeamCount != 1 {
		t.Errorf("second cluster = %+v", clusters[1])
	}
}

func TestBuildClusters_FirstMatchingClusterWins(t *testing.T) {
	clusters := BuildClusters([]*models.BugReport{
		report(1, "Alpha", "u", "first", 0),
		report(2, "Beta", "u", "second", time.Minute),
		report(3, "Gamma", "u", "third", 2*time.Minute),
	}, func(founder, desc string) float64 {
		// Nothing joins until "third", which matches both founders.
		if desc == "third" {
			return 0.9
		}
		return 0
	})

	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if clusters[0].TeamCount != 2 || clusters[1].TeamCount != 1 {
		t.Errorf("expected Gamma in the oldest cluster, got %+v", clusters)
	}
}

func TestBuildClusters_SortsChronologically(t *testing.T) {
	clusters := BuildClusters([]*models.BugReport{
		report(2, "Beta", "u", "apple pie", time.Minute),
		report(1, "Alpha", "u", "apple tart", 0),
	}, prefixScorer)

	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if clusters[0].Description != "apple tart" {
		t.Errorf("founder should be the earliest report, got %q", clusters[0].Description)
	}
	if clusters[0].Teams[0] != "Alpha" {
		t.Errorf("expected Alpha first, got %v", clusters[0].Teams)
	}
}

func TestBuildClusters_TiesBrokenBySeq(t *testing.T) {
	reports := []*models.BugReport{
		report(7, "Beta", "u", "apple pie", 0),
		report(3, "Alpha", "u", "apple tart", 0),
	}

	for i := 0; i < 5; i++ {
		clusters := BuildClusters(reports, prefixScorer)
		if clusters[0].Description != "apple tart" {
			t.Fatalf("run %d: expected lowest seq to found the cluster, got %q", i, clusters[0].Description)
		}
	}
}

func TestBuildClusters_SkipsDuplicates(t *testing.T) {
	dup := report(1, "Alpha", "u", "apple", 0)
	dup.Duplicate = true

	clusters := BuildClusters([]*models.BugReport{
		dup,
		report(2, "Beta", "u", "banana", time.Minute),
	}, prefixScorer)

	if len(clusters) != 1 || clusters[0].Description != "banana" {
		t.Errorf("duplicate report should not found a cluster, got %+v", clusters)
	}
}

func TestBuildClusters_StrictThreshold(t *testing.T) {
	clusters := BuildClusters([]*models.BugReport{
		report(1, "Alpha", "u", "a", 0),
		report(2, "Beta", "u", "b", time.Minute),
	}, func(_, _ string) float64 { return ClusterThreshold })

	if len(clusters) != 2 {
		t.Errorf("score equal to threshold must not join, got %d clusters", len(clusters))
	}
}

func TestBuildClusters_DoesNotMutateInput(t *testing.T) {
	reports := []*models.BugReport{
		report(2, "Beta", "u", "b", time.Minute),
		report(1, "Alpha", "u", "a", 0),
	}
	BuildClusters(reports, prefixScorer)
	if reports[0].Team != "Beta" {
		t.Error("input slice was reordered")
	}
}

func TestBuildClusters_TeamCountMatchesTeams(t *testing.T) {
	var reports []*models.BugReport
	teams := []string{"Alpha", "Beta", "Alpha", "Gamma", "Beta", "Delta"}
	for i, team := range teams {
		reports = append(reports, report(int64(i+1), team, "u", "crash on save", time.Duration(i)*time.Second))
	}

	for _, c := range BuildClusters(reports, nil) {
		if c.TeamCount != len(c.Teams) || c.TeamCount != len(c.FirstSeenAt) {
			t.Errorf("inconsistent cluster: %+v", c)
		}
		for _, team := range c.Teams {
			if _, ok := c.FirstSeenAt[team]; !ok {
				t.Errorf("team %s missing from FirstSeenAt", team)
			}
		}
	}
}

func TestBuildClusters_FreshResultPerCall(t *testing.T) {
	reports := []*models.BugReport{report(1, "Alpha", "u", "a", 0)}
	first := BuildClusters(reports, nil)
	first[0].Teams[0] = "Mutated"
	first[0].FirstSeenAt["Mutated"] = base

	second := BuildClusters(reports, nil)
	if second[0].Teams[0] != "Alpha" || len(second[0].FirstSeenAt) != 1 {
		t.Errorf("state leaked between calls: %+v", second[0])
	}
}

func TestBuildClusters_TeamKeyIsNormalized(t *testing.T) {
	clusters := BuildClusters([]*models.BugReport{
		report(1, "alpha", "u", "apple", 0),
		report(2, " ALPHA ", "u", "avocado", time.Minute),
		report(3, "beta  squad", "u", "apricot", 2*time.Minute),
	}, prefixScorer)

	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	c := clusters[0]
	if c.TeamCount != 2 {
		t.Errorf("expected 2 teams, got %d: %v", c.TeamCount, c.Teams)
	}
	if len(c.Teams) != 2 || c.Teams[0] != "Alpha" || c.Teams[1] != "Beta Squad" {
		t.Errorf("unexpected teams %v", c.Teams)
	}
	if !c.FirstSeenAt["Alpha"].Equal(base) {
		t.Errorf("Alpha first seen should be its earliest report, got %v", c.FirstSeenAt["Alpha"])
	}
}
