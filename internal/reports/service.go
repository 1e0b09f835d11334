// Package reports accepts bug report submissions and serves the aggregate
// views built from them. It connects the analysis engine to the store.
package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/bugboard/internal/analysis"
	"github.com/kiranshivaraju/bugboard/internal/store"
	"github.com/kiranshivaraju/bugboard/pkg/models"
)

var (
	// ErrQuery wraps store read failures behind the aggregate views.
	ErrQuery = errors.New("report query failed")
	// ErrPersist wraps store write failures.
	ErrPersist = errors.New("report insert failed")
	// ErrEmptyBatch is returned when a batch submission has no reports.
	ErrEmptyBatch = errors.New("batch contains no reports")
	// ErrInvalidReport is returned when the team or URL is empty after
	// normalization.
	ErrInvalidReport = errors.New("report needs a team and a url")
)

// BatchError reports which item of a batch failed. The whole batch was
// rolled back.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch item %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// Service is safe for concurrent use. Without a Locker, duplicate detection
// is an unguarded read-then-write: concurrent submissions of the same issue
// by the same team may all be stored as non-duplicates.
type Service struct {
	store      store.Store
	classifier *analysis.Classifier
	score      analysis.Scorer
	locker     Locker
}

// Option configures a Service.
type Option func(*Service)

// WithLocker serializes submissions that share a candidate scope.
func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithScorer replaces the similarity metric for classification and clustering.
func WithScorer(score analysis.Scorer) Option {
	return func(s *Service) {
		s.score = score
		s.classifier.Score = score
	}
}

// NewService creates a Service. scope selects the duplicate candidate set.
func NewService(st store.Store, scope analysis.Scope, opts ...Option) *Service {
	s := &Service{
		store:      st,
		classifier: analysis.NewClassifier(scope),
		score:      analysis.DefaultScorer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit classifies one report against what is already stored and persists
// it. The report is always stored; Duplicate records the classification.
func (s *Service) Submit(ctx context.Context, in models.NewReport) (*models.BugReport, error) {
	in = canonicalize(in)
	if err := checkScope(in); err != nil {
		return nil, err
	}

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, s.lockKey(in))
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	return s.classifyAndInsert(ctx, s.store, in)
}

// SubmitBatch stores every report or none. Items are classified and inserted
// in input order inside one transaction, so a later item is compared against
// earlier items of the same batch. On failure the returned error is a
// *BatchError naming the failing item, or wraps ErrPersist when the
// transaction itself failed.
func (s *Service) SubmitBatch(ctx context.Context, ins []models.NewReport) ([]*models.BugReport, error) {
	if len(ins) == 0 {
		return nil, ErrEmptyBatch
	}

	canonical := make([]models.NewReport, len(ins))
	for i, in := range ins {
		canonical[i] = canonicalize(in)
		if err := checkScope(canonical[i]); err != nil {
			return nil, &BatchError{Index: i, Err: err}
		}
	}

	if s.locker != nil {
		unlock, err := s.lockAll(ctx, canonical)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	var out []*models.BugReport
	err := s.store.WithTx(ctx, func(tx store.ReportStore) error {
		out = make([]*models.BugReport, 0, len(canonical))
		for i, in := range canonical {
			r, err := s.classifyAndInsert(ctx, tx, in)
			if err != nil {
				return &BatchError{Index: i, Err: err}
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		var be *BatchError
		if errors.As(err, &be) {
			return nil, be
		}
		slog.Error("batch transaction failed", "size", len(canonical), "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	slog.Info("batch stored", "size", len(out))
	return out, nil
}

func (s *Service) classifyAndInsert(ctx context.Context, rs store.ReportStore, in models.NewReport) (*models.BugReport, error) {
	decision, err := s.classifier.Classify(ctx, rs, in)
	if err != nil {
		slog.Error("classify report", "team", in.Team, "url", in.URL, "error", err)
		return nil, err
	}

	stored, err := rs.InsertReport(ctx, &models.BugReport{
		Team:        in.Team,
		Email:       in.Email,
		URL:         in.URL,
		Description: in.Description,
		TestSteps:   in.TestSteps,
		Images:      in.Images,
		Duplicate:   decision.Duplicate,
	})
	if err != nil {
		slog.Error("insert report", "team", in.Team, "url", in.URL, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	attrs := []any{
		"id", stored.ID,
		"team", stored.Team,
		"url", stored.URL,
		"duplicate", stored.Duplicate,
		"candidates", decision.Candidates,
	}
	if decision.Candidates > 0 {
		attrs = append(attrs, "best_score", decision.BestScore)
	}
	if decision.MatchedID != uuid.Nil {
		attrs = append(attrs, "matched_id", decision.MatchedID)
	}
	slog.Info("report stored", attrs...)

	return stored, nil
}

// List returns one team's reports, or every report when team is empty, newest first.
func (s *Service) List(ctx context.Context, team string) ([]*models.BugReport, error) {
	filter := store.ReportFilter{NewestFirst: true}
	if strings.TrimSpace(team) != "" {
		filter.Team = analysis.NormalizeTeam(team)
	}
	reports, err := s.store.FindReports(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	return reports, nil
}

// Clusters recomputes the cross-team issue clusters from every non-duplicate report.
func (s *Service) Clusters(ctx context.Context) ([]models.IssueCluster, error) {
	reports, err := s.store.FindReports(ctx, store.NonDuplicates())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	return analysis.BuildClusters(reports, s.score), nil
}

// Leaderboard recomputes the team ranking from every non-duplicate report.
func (s *Service) Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	reports, err := s.store.FindReports(ctx, store.NonDuplicates())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	return analysis.BuildLeaderboard(reports), nil
}

// MatchTeams reports which teams filed the same issue as report id.
// A missing report yields an error matching store.ErrNotFound.
func (s *Service) MatchTeams(ctx context.Context, id uuid.UUID) (*models.TeamMatch, error) {
	target, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	url := analysis.NormalizeURL(target.URL)
	if url == "" {
		m := analysis.MatchTeams(target, []*models.BugReport{target}, s.score)
		return &m, nil
	}
	sameURL, err := s.store.FindReports(ctx, store.ReportFilter{URL: url})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	m := analysis.MatchTeams(target, sameURL, s.score)
	return &m, nil
}

// checkScope rejects a canonical report whose team or URL is empty, since
// an empty filter field matches everything.
func checkScope(in models.NewReport) error {
	switch {
	case in.URL == "":
		return fmt.Errorf("%w: url is empty", ErrInvalidReport)
	case in.Team == "":
		return fmt.Errorf("%w: team is empty", ErrInvalidReport)
	}
	return nil
}

func (s *Service) lockKey(in models.NewReport) string {
	f := s.classifier.CandidateFilter(in.Team, in.URL)
	return f.Team + "|" + f.URL
}

// lockAll takes the lock for every distinct scope in the batch, in sorted
// order so concurrent batches cannot deadlock.
func (s *Service) lockAll(ctx context.Context, ins []models.NewReport) (func(), error) {
	seen := make(map[string]bool)
	var keys []string
	for _, in := range ins {
		k := s.lockKey(in)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var unlocks []func()
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
	for _, k := range keys {
		unlock, err := s.locker.Lock(ctx, k)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, unlock)
	}
	return release, nil
}

// canonicalize applies the stored forms of each field. Descriptions keep
// their casing and inner spacing for display.
func canonicalize(in models.NewReport) models.NewReport {
	return models.NewReport{
		Team:        analysis.NormalizeTeam(in.Team),
		Email:       analysis.NormalizeEmail(in.Email),
		URL:         analysis.NormalizeURL(in.URL),
		Description: strings.TrimSpace(in.Description),
		TestSteps:   strings.TrimSpace(in.TestSteps),
		Images:      in.Images,
	}
}
