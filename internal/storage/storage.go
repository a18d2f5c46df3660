package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/romangod6/sitemapdump/internal/errs"
	"github.com/romangod6/sitemapdump/internal/models"
)

// Store records runs of the collector and the indexer together with what they produced.
type Store interface {
	Initialize() error
	Close() error

	// Run operations
	CreateRun(ctx context.Context, run *models.Run) error
	FinishRun(ctx context.Context, run *models.Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error)

	// Collected URL operations
	SaveURLs(ctx context.Context, runID uuid.UUID, urls []string) error
	ListURLs(ctx context.Context, runID uuid.UUID, limit, offset int) ([]string, error)

	// Index row operations; rows come back in the order they were saved
	SaveIndexRows(ctx context.Context, runID uuid.UUID, rows []models.IndexRow) error
	ListIndexRows(ctx context.Context, runID uuid.UUID, limit, offset int) ([]models.IndexRow, error)
}

// Open connects to the store named by driver ("sqlite" or "postgres") and
// creates its tables.
func Open(driver, dsn string) (Store, error) {
	var (
		store Store
		err   error
	)

	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		store, err = NewSQLiteStore(dsn)
	case "postgres", "postgresql":
		store, err = NewPostgresStore(dsn)
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", errs.ErrConfig, driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s store: %w", errs.ErrIO, driver, err)
	}

	if err := store.Initialize(); err != nil {
		store.Close()
		return nil, fmt.Errorf("%w: initialize %s store: %w", errs.ErrIO, driver, err)
	}
	return store, nil
}

// ParseDSN splits a "driver:dsn" flag value. A value without a known driver
// prefix is taken as a SQLite file path.
func ParseDSN(value string) (driver, dsn string) {
	if i := strings.Index(value, ":"); i > 0 {
		switch prefix := strings.ToLower(value[:i]); prefix {
		case "sqlite", "sqlite3":
			return "sqlite", value[i+1:]
		case "postgres", "postgresql":
			// Keep URL-style DSNs intact for lib/pq.
			if strings.HasPrefix(value[i+1:], "//") {
				return "postgres", value
			}
			return "postgres", value[i+1:]
		}
	}
	return "sqlite", value
}

// IndexSink stores index rows under a run.
type IndexSink struct {
	store Store
	runID uuid.UUID
}

func NewIndexSink(store Store, runID uuid.UUID) *IndexSink {
	return &IndexSink{store: store, runID: runID}
}

func (s *IndexSink) WriteRows(ctx context.Context, rows []models.IndexRow) error {
	if err := s.store.SaveIndexRows(ctx, s.runID, rows); err != nil {
		return fmt.Errorf("%w: save index rows: %w", errs.ErrIO, err)
	}
	return nil
}
