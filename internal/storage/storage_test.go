package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/romangod6/sitemapdump/internal/errs"
	"github.com/romangod6/sitemapdump/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) Store {
	t.Helper()
	store, err := Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		in     string
		driver string
		dsn    string
	}{
		{"runs.db", "sqlite", "runs.db"},
		{"sqlite:/tmp/runs.db", "sqlite", "/tmp/runs.db"},
		{"postgres://u:p@localhost/runs?sslmode=disable", "postgres", "postgres://u:p@localhost/runs?sslmode=disable"},
		{"postgres:host=localhost dbname=runs", "postgres", "host=localhost dbname=runs"},
	}

	for _, tt := range tests {
		driver, dsn := ParseDSN(tt.in)
		assert.Equal(t, tt.driver, driver, tt.in)
		assert.Equal(t, tt.dsn, dsn, tt.in)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mysql", "whatever")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConfig))
}

// runStoreSuite exercises a Store implementation end to end.
func runStoreSuite(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("RunLifecycle", func(t *testing.T) {
		run := models.NewRun(models.RunKindCollect, "http://example.com/sitemap.xml", `http://example\.com/blog/`)
		require.NoError(t, store.CreateRun(ctx, run))

		got, err := store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.RunStatusRunning, got.Status)
		assert.Nil(t, got.FinishedAt)

		run.Finish(5, 1, nil)
		require.NoError(t, store.FinishRun(ctx, run))

		got, err = store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RunStatusCompleted, got.Status)
		assert.Equal(t, 5, got.ItemCount)
		assert.Equal(t, 1, got.Warnings)
		assert.Equal(t, run.Pattern, got.Pattern)
		require.NotNil(t, got.FinishedAt)
	})

	t.Run("MissingRun", func(t *testing.T) {
		got, err := store.GetRun(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("URLs", func(t *testing.T) {
		run := models.NewRun(models.RunKindCollect, "http://example.com/sitemap.xml", "")
		require.NoError(t, store.CreateRun(ctx, run))

		require.NoError(t, store.SaveURLs(ctx, run.ID, []string{"http://example.com/c", "http://example.com/a", "http://example.com/b"}))

		urls, err := store.ListURLs(ctx, run.ID, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"http://example.com/a", "http://example.com/b", "http://example.com/c"}, urls)

		page, err := store.ListURLs(ctx, run.ID, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"http://example.com/b"}, page)
	})

	t.Run("IndexRowsKeepOrder", func(t *testing.T) {
		run := models.NewRun(models.RunKindIndex, "urls.txt", `(\d+)`)
		require.NoError(t, store.CreateRun(ctx, run))

		rows := []models.IndexRow{
			{Key: "42", URL: "https://example.com/articles/42"},
			{Key: "7", URL: "https://example.com/articles/7"},
			{Key: "7", URL: "https://example.com/articles/7"},
		}
		require.NoError(t, NewIndexSink(store, run.ID).WriteRows(ctx, rows))

		got, err := store.ListIndexRows(ctx, run.ID, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, rows, got)
	})

	t.Run("ListRuns", func(t *testing.T) {
		runs, err := store.ListRuns(ctx, 100, 0)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(runs), 3)
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, openSQLite(t))
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("SITEMAPDUMP_TEST_POSTGRES")
	if dsn == "" {
		t.Skip("SITEMAPDUMP_TEST_POSTGRES not set")
	}

	store, err := Open("postgres", dsn)
	require.NoError(t, err)
	defer store.Close()

	runStoreSuite(t, store)
}
