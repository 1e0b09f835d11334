package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/bugboard/pkg/models"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
	reportQueries
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, reportQueries: reportQueries{q: pool}}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// WithTx runs fn inside a single database transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx ReportStore) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(reportQueries{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// --- Bug Reports ---

const reportColumns = `id, seq, team, email, url, description, test_steps, images, duplicate, created_at`

type reportQueries struct {
	q querier
}

func (r reportQueries) InsertReport(ctx context.Context, report *models.BugReport) (*models.BugReport, error) {
	out := *report
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	if out.Images == nil {
		out.Images = []models.Attachment{}
	}

	err := r.q.QueryRow(ctx,
		`INSERT INTO bug_reports (id, team, email, url, description, test_steps, images, duplicate)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING seq, created_at`,
		out.ID, out.Team, out.Email, out.URL, out.Description, out.TestSteps, out.Images, out.Duplicate,
	).Scan(&out.Seq, &out.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("insert bug report: %w", err)
	}
	return &out, nil
}

func (r reportQueries) FindReports(ctx context.Context, filter ReportFilter) ([]*models.BugReport, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if filter.Team != "" {
		conditions = append(conditions, fmt.Sprintf("team = $%d", argIdx))
		args = append(args, filter.Team)
		argIdx++
	}
	if filter.URL != "" {
		conditions = append(conditions, fmt.Sprintf("url = $%d", argIdx))
		args = append(args, filter.URL)
		argIdx++
	}
	if filter.Duplicate != nil {
		conditions = append(conditions, fmt.Sprintf("duplicate = $%d", argIdx))
		args = append(args, *filter.Duplicate)
		argIdx++
	}

	query := "SELECT " + reportColumns + " FROM bug_reports"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if filter.NewestFirst {
		query += " ORDER BY created_at DESC, seq DESC"
	} else {
		query += " ORDER BY created_at ASC, seq ASC"
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find bug reports: %w", err)
	}
	defer rows.Close()

	reports := []*models.BugReport{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func (r reportQueries) GetReport(ctx context.Context, id uuid.UUID) (*models.BugReport, error) {
	report, err := scanReport(r.q.QueryRow(ctx,
		"SELECT "+reportColumns+" FROM bug_reports WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get bug report: %w", err)
	}
	return report, nil
}

func scanReport(row pgx.Row) (*models.BugReport, error) {
	var b models.BugReport
	if err := row.Scan(&b.ID, &b.Seq, &b.Team, &b.Email, &b.URL, &b.Description,
		&b.TestSteps, &b.Images, &b.Duplicate, &b.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan bug report: %w", err)
	}
	return &b, nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()
	return scanAPIKeys(rows)
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()
	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
