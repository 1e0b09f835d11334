package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/bugboard/internal/store"
	"github.com/kiranshivaraju/bugboard/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_InsertAssignsIdentity(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	a, err := s.InsertReport(ctx, newReport("Alpha", "http://x.com", "one"))
	require.NoError(t, err)
	b, err := s.InsertReport(ctx, newReport("Alpha", "http://x.com", "two"))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, int64(1), a.Seq)
	assert.Equal(t, int64(2), b.Seq)
	assert.False(t, b.CreatedAt.Before(a.CreatedAt))
	assert.NotNil(t, a.Images)
}

func TestMemory_CreatedAtNeverGoesBackwards(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	times := []time.Time{base, base.Add(-time.Hour)}
	i := 0
	s.SetClock(func() time.Time {
		ts := times[i]
		i++
		return ts
	})

	a, err := s.InsertReport(ctx, newReport("Alpha", "u", "one"))
	require.NoError(t, err)
	b, err := s.InsertReport(ctx, newReport("Alpha", "u", "two"))
	require.NoError(t, err)
	assert.True(t, b.CreatedAt.Equal(a.CreatedAt))
}

func TestMemory_FindReports(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	_, err := s.InsertReport(ctx, newReport("Alpha", "http://x.com", "one"))
	require.NoError(t, err)
	dup := newReport("Alpha", "http://x.com", "two")
	dup.Duplicate = true
	_, err = s.InsertReport(ctx, dup)
	require.NoError(t, err)
	_, err = s.InsertReport(ctx, newReport("Beta", "http://x.com", "three"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter store.ReportFilter
		want   []string
	}{
		{name: "all", filter: store.ReportFilter{}, want: []string{"one", "two", "three"}},
		{name: "team and url", filter: store.ReportFilter{Team: "Alpha", URL: "http://x.com"}, want: []string{"one", "two"}},
		{name: "url only", filter: store.ReportFilter{URL: "http://x.com"}, want: []string{"one", "two", "three"}},
		{name: "non duplicates", filter: store.NonDuplicates(), want: []string{"one", "three"}},
		{name: "newest first", filter: store.ReportFilter{NewestFirst: true}, want: []string{"three", "two", "one"}},
		{name: "no match", filter: store.ReportFilter{Team: "Gamma"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindReports(ctx, tt.filter)
			require.NoError(t, err)
			descs := make([]string, 0, len(got))
			for _, r := range got {
				descs = append(descs, r.Description)
			}
			assert.Equal(t, tt.want, descs)
		})
	}
}

func TestMemory_ReturnedReportsAreCopies(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	in, err := s.InsertReport(ctx, newReport("Alpha", "u", "one"))
	require.NoError(t, err)

	got, err := s.GetReport(ctx, in.ID)
	require.NoError(t, err)
	got.Duplicate = true

	again, err := s.GetReport(ctx, in.ID)
	require.NoError(t, err)
	assert.False(t, again.Duplicate)
}

func TestMemory_GetReportNotFound(t *testing.T) {
	_, err := store.NewMemoryStore().GetReport(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemory_WithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		s := store.NewMemoryStore()
		err := s.WithTx(ctx, func(tx store.ReportStore) error {
			_, err := tx.InsertReport(ctx, newReport("Alpha", "u", "one"))
			return err
		})
		require.NoError(t, err)
		all, _ := s.FindReports(ctx, store.ReportFilter{})
		assert.Len(t, all, 1)
	})

	t.Run("rollback", func(t *testing.T) {
		s := store.NewMemoryStore()
		_, err := s.InsertReport(ctx, newReport("Alpha", "u", "before"))
		require.NoError(t, err)

		boom := errors.New("boom")
		err = s.WithTx(ctx, func(tx store.ReportStore) error {
			if _, err := tx.InsertReport(ctx, newReport("Alpha", "u", "inside")); err != nil {
				return err
			}
			seen, _ := tx.FindReports(ctx, store.ReportFilter{})
			assert.Len(t, seen, 2)
			return boom
		})
		assert.ErrorIs(t, err, boom)

		all, _ := s.FindReports(ctx, store.ReportFilter{})
		require.Len(t, all, 1)
		assert.Equal(t, "before", all[0].Description)

		after, err := s.InsertReport(ctx, newReport("Alpha", "u", "after"))
		require.NoError(t, err)
		assert.Equal(t, int64(3), after.Seq, "rolled back sequence numbers are not reused")
	})
}

func TestMemory_APIKeys(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	key := &models.APIKey{ID: uuid.New(), Name: "ci", KeyHash: "h", KeyPrefix: "bb_12345", Scopes: []string{"read"}}
	require.NoError(t, s.CreateAPIKey(ctx, key))
	assert.ErrorIs(t, s.CreateAPIKey(ctx, key), store.ErrDuplicateKey)

	keys, err := s.GetAPIKeyByPrefix(ctx, "bb_12345")
	require.NoError(t, err)
	require.Len(t, keys, 1)

	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))
	keys, _ = s.ListAPIKeys(ctx)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)

	require.NoError(t, s.RevokeAPIKey(ctx, key.ID))
	keys, _ = s.ListAPIKeys(ctx)
	assert.Empty(t, keys)
	assert.ErrorIs(t, s.RevokeAPIKey(ctx, key.ID), store.ErrNotFound)
}
