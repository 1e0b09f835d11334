package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/bugboard/internal/store"
	"github.com/kiranshivaraju/bugboard/pkg/models"
	"github.com/kiranshivaraju/bugboard/pkg/similarity"
)

// DuplicateThreshold is the exclusive lower bound a candidate's similarity
// must exceed for the incoming report to be flagged as a duplicate.
const DuplicateThreshold = 0.5

// ErrLookup wraps store failures during classification so callers can tell
// them apart from "no match".
var ErrLookup = errors.New("duplicate lookup failed")

// ErrNoURL is returned for a report whose canonical URL is empty. An empty
// URL filter would match every URL.
var ErrNoURL = errors.New("report has no url")

// Scorer returns a symmetric similarity in [0,1] for two normalized strings.
type Scorer func(a, b string) float64

// DefaultScorer is the metric the thresholds are calibrated against.
var DefaultScorer Scorer = similarity.JaroWinkler

// Scope selects which existing reports are candidates for a duplicate match.
type Scope string

const (
	// ScopeTeamURL compares only against the same team's reports on the same URL.
	ScopeTeamURL Scope = "team_url"
	// ScopeURL compares against every report on the same URL regardless of team.
	ScopeURL Scope = "url"
)

// ReportFinder is the read capability the classifier needs from a store.
type ReportFinder interface {
	FindReports(ctx context.Context, filter store.ReportFilter) ([]*models.BugReport, error)
}

// Decision is the outcome of classifying one incoming report.
type Decision struct {
	Duplicate  bool
	Candidates int
	// BestScore and MatchedID describe the highest scoring candidate, if any.
	BestScore float64
	MatchedID uuid.UUID
}

// Classifier decides the duplicate flag for a report before it is stored.
// It performs an unguarded read: two concurrent submissions can both see no
// candidates and both be stored as non-duplicates.
type Classifier struct {
	Scope     Scope
	Threshold float64
	Score     Scorer
}

// NewClassifier returns a Classifier using the default metric and threshold.
// An empty scope means ScopeTeamURL.
func NewClassifier(scope Scope) *Classifier {
	if scope == "" {
		scope = ScopeTeamURL
	}
	return &Classifier{Scope: scope, Threshold: DuplicateThreshold, Score: DefaultScorer}
}

// CandidateFilter returns the store filter for the candidates of a report
// with the given canonical team and URL.
func (c *Classifier) CandidateFilter(team, url string) store.ReportFilter {
	if c.Scope == ScopeURL {
		return store.ReportFilter{URL: url}
	}
	return store.ReportFilter{Team: team, URL: url}
}

// Classify looks up candidates for in and reports whether any of them is
// similar enough to make in a duplicate. in may be raw or already normalized.
func (c *Classifier) Classify(ctx context.Context, finder ReportFinder, in models.NewReport) (Decision, error) {
	url := NormalizeURL(in.URL)
	team := NormalizeTeam(in.Team)
	desc := NormalizeDescription(in.Description)
	if url == "" {
		return Decision{}, ErrNoURL
	}

	candidates, err := finder.FindReports(ctx, c.CandidateFilter(team, url))
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %w", ErrLookup, err)
	}

	d := Decision{Candidates: len(candidates)}
	for _, cand := range candidates {
		s := c.Score(NormalizeDescription(cand.Description), desc)
		if s > d.BestScore || d.MatchedID == uuid.Nil {
			d.BestScore = s
			d.MatchedID = cand.ID
		}
		if s > c.Threshold {
			d.Duplicate = true
		}
	}
	if !d.Duplicate {
		d.MatchedID = uuid.Nil
	}
	return d, nil
}
