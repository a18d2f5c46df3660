package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/romangod6/sitemapdump/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id UUID PRIMARY KEY,
            kind VARCHAR(16) NOT NULL,
            source VARCHAR(2048) NOT NULL,
            pattern TEXT,
            status VARCHAR(16) NOT NULL,
            item_count INTEGER NOT NULL DEFAULT 0,
            warnings INTEGER NOT NULL DEFAULT 0,
            error TEXT,
            started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
            finished_at TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS run_urls (
            run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
            url TEXT NOT NULL,
            PRIMARY KEY (run_id, url)
        )`,
		`CREATE TABLE IF NOT EXISTS index_rows (
            run_id UUID NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
            position INTEGER NOT NULL,
            key TEXT NOT NULL,
            url TEXT NOT NULL,
            PRIMARY KEY (run_id, position)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}

	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *models.Run) error {
	query := `
        INSERT INTO runs (id, kind, source, pattern, status, item_count, warnings, error, started_at, finished_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `

	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		run.Kind,
		run.Source,
		run.Pattern,
		run.Status,
		run.ItemCount,
		run.Warnings,
		run.Error,
		run.StartedAt,
		run.FinishedAt,
	)

	return err
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *models.Run) error {
	query := `
        UPDATE runs
        SET status = $1, item_count = $2, warnings = $3, error = $4, finished_at = $5
        WHERE id = $6
    `

	_, err := s.db.ExecContext(ctx, query,
		run.Status,
		run.ItemCount,
		run.Warnings,
		run.Error,
		run.FinishedAt,
		run.ID,
	)

	return err
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	query := `
        SELECT id, kind, source, pattern, status, item_count, warnings, error, started_at, finished_at
        FROM runs
        WHERE id = $1
    `

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error) {
	query := `
        SELECT id, kind, source, pattern, status, item_count, warnings, error, started_at, finished_at
        FROM runs
        ORDER BY started_at DESC
        LIMIT $1 OFFSET $2
    `

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// SaveURLs bulk-loads the URL set with COPY.
func (s *PostgresStore) SaveURLs(ctx context.Context, runID uuid.UUID, urls []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("run_urls", "run_id", "url"))
	if err != nil {
		return err
	}

	for _, url := range urls {
		if _, err := stmt.ExecContext(ctx, runID, url); err != nil {
			stmt.Close()
			return fmt.Errorf("error copying url %s: %w", url, err)
		}
	}

	// An argument-less Exec flushes the COPY buffer.
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return err
	}
	if err := stmt.Close(); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *PostgresStore) ListURLs(ctx context.Context, runID uuid.UUID, limit, offset int) ([]string, error) {
	query := `
        SELECT url
        FROM run_urls
        WHERE run_id = $1
        ORDER BY url
        LIMIT $2 OFFSET $3
    `

	rows, err := s.db.QueryContext(ctx, query, runID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}

	return urls, rows.Err()
}

// SaveIndexRows bulk-loads the rows with COPY, keeping their order in position.
func (s *PostgresStore) SaveIndexRows(ctx context.Context, runID uuid.UUID, indexRows []models.IndexRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("index_rows", "run_id", "position", "key", "url"))
	if err != nil {
		return err
	}

	for i, row := range indexRows {
		if _, err := stmt.ExecContext(ctx, runID, i, row.Key, row.URL); err != nil {
			stmt.Close()
			return fmt.Errorf("error copying index row %d: %w", i, err)
		}
	}

	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return err
	}
	if err := stmt.Close(); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *PostgresStore) ListIndexRows(ctx context.Context, runID uuid.UUID, limit, offset int) ([]models.IndexRow, error) {
	query := `
        SELECT key, url
        FROM index_rows
        WHERE run_id = $1
        ORDER BY position
        LIMIT $2 OFFSET $3
    `

	rows, err := s.db.QueryContext(ctx, query, runID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.IndexRow
	for rows.Next() {
		var row models.IndexRow
		if err := rows.Scan(&row.Key, &row.URL); err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
