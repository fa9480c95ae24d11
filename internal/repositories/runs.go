package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/lyx/internal/models"
	"github.com/desertthunder/lyx/internal/shared"
)

const runColumns = `id, status, input_path, output_path, artists_total, skipped, harvested, empty, not_found,
	deferred, failed, malformed, records_written, flushes, error, started_at, finished_at`

// RunRepository stores harvest runs in the harvest_runs table.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Start inserts a run, generating its ID when empty.
func (r *RunRepository) Start(ctx context.Context, run *models.Run) error {
	if run.ID == "" {
		run.ID = shared.GenerateID()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = models.RunRunning
	}

	query := `INSERT INTO harvest_runs (id, status, input_path, output_path, artists_total, started_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, run.ID, string(run.Status), run.InputPath, run.OutputPath, run.Stats.Total, run.StartedAt)
	if err != nil {
		return storageError("failed to insert run", err)
	}
	return nil
}

// Finish stores the final status, counters and error of a run and stamps its finish time.
func (r *RunRepository) Finish(ctx context.Context, run *models.Run) error {
	now := time.Now().UTC()
	run.FinishedAt = &now

	query := `
		UPDATE harvest_runs
		SET status = ?, artists_total = ?, skipped = ?, harvested = ?, empty = ?, not_found = ?, deferred = ?,
			failed = ?, malformed = ?, records_written = ?, flushes = ?, error = ?, finished_at = ?
		WHERE id = ?
	`
	s := run.Stats
	result, err := r.db.ExecContext(ctx, query,
		string(run.Status), s.Total, s.Skipped, s.Harvested, s.Empty, s.NotFound, s.Deferred,
		s.Failed, s.Malformed, s.RecordsWritten, s.Flushes, run.Error, now,
		run.ID,
	)
	if err != nil {
		return storageError("failed to update run", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return storageError("failed to get rows affected", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: run %s not found", shared.ErrStorage, run.ID)
	}
	return nil
}

// Get retrieves a run by ID.
func (r *RunRepository) Get(ctx context.Context, id string) (*models.Run, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM harvest_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run %s not found", shared.ErrInvalidArgument, id)
	}
	return run, err
}

// Latest returns up to limit runs, newest first.
func (r *RunRepository) Latest(ctx context.Context, limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM harvest_runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, storageError("failed to query runs", err)
	}
	defer rows.Close()

	runs := []*models.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError("row iteration error", err)
	}
	return runs, nil
}

func scanRun(row scanner) (*models.Run, error) {
	var (
		run        models.Run
		status     string
		finishedAt sql.NullTime
	)
	s := &run.Stats

	err := row.Scan(&run.ID, &status, &run.InputPath, &run.OutputPath, &s.Total, &s.Skipped, &s.Harvested, &s.Empty, &s.NotFound,
		&s.Deferred, &s.Failed, &s.Malformed, &s.RecordsWritten, &s.Flushes, &run.Error, &run.StartedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, storageError("failed to scan run", err)
	}

	run.Status = models.RunStatus(status)
	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return &run, nil
}
