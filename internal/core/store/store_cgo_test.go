//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/draftsmith/draftsmith/internal/config"
	"github.com/stretchr/testify/require"
)

func TestOpenMemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.StoreConfig{
		Driver: "libsql",
		Path:   ":memory:",
	}

	store, err := Open(ctx, cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Equal(t, "libsql", store.Driver())
	require.NoError(t, store.Close())
}

func openMigrated(t *testing.T) *Store {
	t.Helper()
	s, err := OpenAndMigrate(context.Background(), config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := openMigrated(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestLogAnalyticsEvent(t *testing.T) {
	ctx := context.Background()
	s := openMigrated(t)

	id, err := s.LogAnalyticsEvent(ctx, AnalyticsEvent{
		Event:     "draft_generated",
		Page:      "/compose",
		Metadata:  map[string]string{"contentType": "email"},
		ClientKey: "203.0.113.9:Mozilla/5.0",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	count, err := s.CountAnalyticsEvents(ctx, "draft_generated")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = s.CountAnalyticsEvents(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	_, err = s.LogAnalyticsEvent(ctx, AnalyticsEvent{Event: "  "})
	require.Error(t, err)
}

func TestLogErrorAndRecent(t *testing.T) {
	ctx := context.Background()
	s := openMigrated(t)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	_, err := s.LogError(ctx, ErrorLog{Message: "first", ClientKey: "k", CreatedAt: base})
	require.NoError(t, err)
	id, err := s.LogError(ctx, ErrorLog{
		Message:   "second",
		Code:      "TypeError",
		URL:       "https://app.example/compose",
		ClientKey: "k",
		RequestID: "req-1",
		CreatedAt: base.Add(time.Minute),
	})
	require.NoError(t, err)

	logs, err := s.RecentErrors(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, id, logs[0].ID)
	require.Equal(t, "TypeError", logs[0].Code)
	require.Equal(t, "req-1", logs[0].RequestID)
	require.Equal(t, base.Add(time.Minute), logs[0].CreatedAt)
	require.Empty(t, logs[1].Code)

	removed, err := s.Purge(ctx, base.Add(30*time.Second))
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	logs, err = s.RecentErrors(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
}
