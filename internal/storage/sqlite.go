package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/romangod6/sitemapdump/internal/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Initialize() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            kind TEXT NOT NULL,
            source TEXT NOT NULL,
            pattern TEXT,
            status TEXT NOT NULL,
            item_count INTEGER NOT NULL DEFAULT 0,
            warnings INTEGER NOT NULL DEFAULT 0,
            error TEXT,
            started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            finished_at DATETIME
        )`,
		`CREATE TABLE IF NOT EXISTS run_urls (
            run_id TEXT NOT NULL,
            url TEXT NOT NULL,
            PRIMARY KEY(run_id, url),
            FOREIGN KEY(run_id) REFERENCES runs(id)
        )`,
		`CREATE TABLE IF NOT EXISTS index_rows (
            run_id TEXT NOT NULL,
            position INTEGER NOT NULL,
            key TEXT NOT NULL,
            url TEXT NOT NULL,
            PRIMARY KEY(run_id, position),
            FOREIGN KEY(run_id) REFERENCES runs(id)
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

func (s *SQLiteStore) CreateRun(ctx context.Context, run *models.Run) error {
	query := `
        INSERT INTO runs (id, kind, source, pattern, status, item_count, warnings, error, started_at, finished_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	_, err := s.db.ExecContext(ctx, query,
		run.ID.String(),
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

func (s *SQLiteStore) FinishRun(ctx context.Context, run *models.Run) error {
	query := `
        UPDATE runs
        SET status = ?, item_count = ?, warnings = ?, error = ?, finished_at = ?
        WHERE id = ?
    `

	_, err := s.db.ExecContext(ctx, query,
		run.Status,
		run.ItemCount,
		run.Warnings,
		run.Error,
		run.FinishedAt,
		run.ID.String(),
	)

	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id uuid.UUID) (*models.Run, error) {
	query := `
        SELECT id, kind, source, pattern, status, item_count, warnings, error, started_at, finished_at
        FROM runs
        WHERE id = ?
    `

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id.String()))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*models.Run, error) {
	query := `
        SELECT id, kind, source, pattern, status, item_count, warnings, error, started_at, finished_at
        FROM runs
        ORDER BY started_at DESC
        LIMIT ? OFFSET ?
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

func (s *SQLiteStore) SaveURLs(ctx context.Context, runID uuid.UUID, urls []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO run_urls (run_id, url) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, url := range urls {
		if _, err := stmt.ExecContext(ctx, runID.String(), url); err != nil {
			return fmt.Errorf("error saving url %s: %w", url, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) ListURLs(ctx context.Context, runID uuid.UUID, limit, offset int) ([]string, error) {
	query := `
        SELECT url
        FROM run_urls
        WHERE run_id = ?
        ORDER BY url
        LIMIT ? OFFSET ?
    `

	rows, err := s.db.QueryContext(ctx, query, runID.String(), limit, offset)
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

func (s *SQLiteStore) SaveIndexRows(ctx context.Context, runID uuid.UUID, indexRows []models.IndexRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO index_rows (run_id, position, key, url) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, row := range indexRows {
		if _, err := stmt.ExecContext(ctx, runID.String(), i, row.Key, row.URL); err != nil {
			return fmt.Errorf("error saving index row %d: %w", i, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) ListIndexRows(ctx context.Context, runID uuid.UUID, limit, offset int) ([]models.IndexRow, error) {
	query := `
        SELECT key, url
        FROM index_rows
        WHERE run_id = ?
        ORDER BY position
        LIMIT ? OFFSET ?
    `

	rows, err := s.db.QueryContext(ctx, query, runID.String(), limit, offset)
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

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
