package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/bugboard/pkg/models"
)

// MemoryStore is an in-process Store for local runs and tests. It keeps
// reports in insertion order and gives WithTx copy-on-commit semantics.
type MemoryStore struct {
	mu      sync.Mutex
	reports []*models.BugReport
	keys    []*models.APIKey
	seq     int64
	last    time.Time
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: func() time.Time { return time.Now().UTC() }}
}

// SetClock replaces the time source used for CreatedAt. Tests use it to force
// identical timestamps.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }

func (s *MemoryStore) InsertReport(_ context.Context, r *models.BugReport) (*models.BugReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(&s.reports, r)
}

func (s *MemoryStore) FindReports(_ context.Context, filter ReportFilter) ([]*models.BugReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return findIn(s.reports, filter), nil
}

func (s *MemoryStore) GetReport(_ context.Context, id uuid.UUID) (*models.BugReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getIn(s.reports, id)
}

// WithTx holds the store lock for the whole of fn, so transactions are
// serialized with every other store call.
func (s *MemoryStore) WithTx(_ context.Context, fn func(tx ReportStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Sequence numbers consumed by a rolled-back transaction are not reused.
	tx := &memoryTx{store: s, reports: slices.Clone(s.reports)}
	if err := fn(tx); err != nil {
		return err
	}
	s.reports = tx.reports
	return nil
}

// insertLocked appends a copy of r to dst. CreatedAt never goes backwards.
func (s *MemoryStore) insertLocked(dst *[]*models.BugReport, r *models.BugReport) (*models.BugReport, error) {
	out := *r
	if out.ID == uuid.Nil {
		out.ID = uuid.New()
	}
	for _, existing := range *dst {
		if existing.ID == out.ID {
			return nil, ErrDuplicateKey
		}
	}
	if out.Images == nil {
		out.Images = []models.Attachment{}
	}
	s.seq++
	out.Seq = s.seq
	ts := s.now()
	if ts.Before(s.last) {
		ts = s.last
	}
	s.last = ts
	out.CreatedAt = ts

	*dst = append(*dst, &out)
	cp := out
	return &cp, nil
}

type memoryTx struct {
	store   *MemoryStore
	reports []*models.BugReport
}

// InsertReport runs with the store lock already held by WithTx.
func (tx *memoryTx) InsertReport(_ context.Context, r *models.BugReport) (*models.BugReport, error) {
	return tx.store.insertLocked(&tx.reports, r)
}

func (tx *memoryTx) FindReports(_ context.Context, filter ReportFilter) ([]*models.BugReport, error) {
	return findIn(tx.reports, filter), nil
}

func (tx *memoryTx) GetReport(_ context.Context, id uuid.UUID) (*models.BugReport, error) {
	return getIn(tx.reports, id)
}

func findIn(reports []*models.BugReport, filter ReportFilter) []*models.BugReport {
	out := []*models.BugReport{}
	for _, r := range reports {
		if filter.Team != "" && r.Team != filter.Team {
			continue
		}
		if filter.URL != "" && r.URL != filter.URL {
			continue
		}
		if filter.Duplicate != nil && r.Duplicate != *filter.Duplicate {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	// Reports are kept in (created_at, seq) order already.
	if filter.NewestFirst {
		slices.Reverse(out)
	}
	return out
}

func getIn(reports []*models.BugReport, id uuid.UUID) (*models.BugReport, error) {
	for _, r := range reports {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// --- API Keys ---

func (s *MemoryStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			cp := *k
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateAPIKeyLastUsed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ID == id {
			now := s.now()
			k.LastUsedAt = &now
			k.UpdatedAt = now
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ID == key.ID {
			return ErrDuplicateKey
		}
	}
	cp := *key
	s.keys = append(s.keys, &cp)
	return nil
}

func (s *MemoryStore) ListAPIKeys(_ context.Context) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for i := len(s.keys) - 1; i >= 0; i-- {
		if s.keys[i].DeletedAt == nil {
			cp := *s.keys[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *MemoryStore) RevokeAPIKey(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ID == id && k.DeletedAt == nil {
			now := s.now()
			k.DeletedAt = &now
			k.UpdatedAt = now
			return nil
		}
	}
	return ErrNotFound
}
