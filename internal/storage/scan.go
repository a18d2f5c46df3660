package storage

import (
	"database/sql"

	"github.com/google/uuid"
	"github.com/romangod6/sitemapdump/internal/models"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanRun reads the columns id, kind, source, pattern, status, item_count,
// warnings, error, started_at, finished_at.
func scanRun(row rowScanner) (*models.Run, error) {
	var (
		run        models.Run
		idStr      string
		pattern    sql.NullString
		errMsg     sql.NullString
		finishedAt sql.NullTime
	)

	err := row.Scan(
		&idStr,
		&run.Kind,
		&run.Source,
		&pattern,
		&run.Status,
		&run.ItemCount,
		&run.Warnings,
		&errMsg,
		&run.StartedAt,
		&finishedAt,
	)
	if err != nil {
		return nil, err
	}

	run.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	run.Pattern = pattern.String
	run.Error = errMsg.String
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}

	return &run, nil
}
