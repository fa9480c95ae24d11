package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/desertthunder/lyx/internal/models"
	"github.com/desertthunder/lyx/internal/shared"
)

// AttemptRepository records per-artist attempts in the artist_attempts table.
type AttemptRepository struct {
	db *sql.DB
}

// NewAttemptRepository creates a new AttemptRepository with the given database connection
func NewAttemptRepository(db *sql.DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// RecordAttempts inserts attempts in a single transaction.
func (r *AttemptRepository) RecordAttempts(ctx context.Context, attempts []models.Attempt) error {
	if len(attempts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO artist_attempts (run_id, artist, artist_key, outcome, records, malformed, error, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return storageError("failed to prepare attempt insert", err)
	}
	defer stmt.Close()

	for _, a := range attempts {
		attemptedAt := a.AttemptedAt
		if attemptedAt.IsZero() {
			attemptedAt = time.Now().UTC()
		}
		_, err := stmt.ExecContext(ctx,
			a.RunID,
			a.Artist,
			shared.NormalizeArtist(a.Artist),
			string(a.Outcome),
			a.Records,
			a.Malformed,
			a.Error,
			attemptedAt,
		)
		if err != nil {
			return storageError("failed to insert attempt", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageError("failed to commit attempts", err)
	}
	return nil
}

// AttemptedArtists returns the artists whose most recent attempt was harvested, empty or not found.
func (r *AttemptRepository) AttemptedArtists(ctx context.Context) (models.ArtistSet, error) {
	latest, err := r.Latest(ctx)
	if err != nil {
		return nil, err
	}

	set := models.NewArtistSet()
	for _, a := range latest {
		if a.Outcome.Attempted() {
			set.Add(a.Artist)
		}
	}
	return set, nil
}

// Latest returns the most recent attempt of every artist, ordered by artist key.
func (r *AttemptRepository) Latest(ctx context.Context) ([]models.Attempt, error) {
	query := `
		SELECT a.run_id, a.artist, a.outcome, a.records, a.malformed, a.error, a.attempted_at
		FROM artist_attempts a
		WHERE a.id = (SELECT MAX(b.id) FROM artist_attempts b WHERE b.artist_key = a.artist_key)
		ORDER BY a.artist_key
	`
	return r.query(ctx, query)
}

// ByRun returns the attempts of a run in insertion order.
func (r *AttemptRepository) ByRun(ctx context.Context, runID string) ([]models.Attempt, error) {
	query := `
		SELECT run_id, artist, outcome, records, malformed, error, attempted_at
		FROM artist_attempts
		WHERE run_id = ?
		ORDER BY id
	`
	return r.query(ctx, query, runID)
}

// Forget deletes every attempt of artist so the next run fetches it again. Returns the number of rows removed.
func (r *AttemptRepository) Forget(ctx context.Context, artist string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM artist_attempts WHERE artist_key = ?`, shared.NormalizeArtist(artist))
	if err != nil {
		return 0, storageError("failed to delete attempts", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, storageError("failed to get rows affected", err)
	}
	return n, nil
}

func (r *AttemptRepository) query(ctx context.Context, query string, args ...any) ([]models.Attempt, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError("failed to query attempts", err)
	}
	defer rows.Close()

	attempts := []models.Attempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, storageError("row iteration error", err)
	}
	return attempts, nil
}

func scanAttempt(row scanner) (models.Attempt, error) {
	var (
		a       models.Attempt
		outcome string
	)
	if err := row.Scan(&a.RunID, &a.Artist, &outcome, &a.Records, &a.Malformed, &a.Error, &a.AttemptedAt); err != nil {
		return models.Attempt{}, storageError("failed to scan attempt", err)
	}
	a.Outcome = models.Outcome(outcome)
	return a, nil
}
