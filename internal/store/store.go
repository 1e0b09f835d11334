package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/bugboard/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ReportStore is the bug report read/write surface. It is satisfied both by
// the top-level Store and by the transaction-scoped view passed to WithTx.
type ReportStore interface {
	// InsertReport persists r, assigning ID, Seq and CreatedAt, and returns the stored row.
	InsertReport(ctx context.Context, r *models.BugReport) (*models.BugReport, error)
	// FindReports returns reports matching filter ordered by (created_at, seq).
	FindReports(ctx context.Context, filter ReportFilter) ([]*models.BugReport, error)
	GetReport(ctx context.Context, id uuid.UUID) (*models.BugReport, error)
}

// Store is the data access interface. All database operations go through here.
type Store interface {
	ReportStore

	Ping(ctx context.Context) error

	// WithTx runs fn against a transactional view. If fn returns an error every
	// write made through that view is discarded.
	WithTx(ctx context.Context, fn func(tx ReportStore) error) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

// ReportFilter selects reports by exact team and URL. Empty fields match everything.
type ReportFilter struct {
	Team      string
	URL       string
	Duplicate *bool
	// NewestFirst reverses the default oldest-first ordering.
	NewestFirst bool
}

// NonDuplicates is the filter every aggregate view reads from.
func NonDuplicates() ReportFilter {
	f := false
	return ReportFilter{Duplicate: &f}
}
