package repositories

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/lyx/internal/models"
	"github.com/desertthunder/lyx/internal/shared"
	tu "github.com/desertthunder/lyx/internal/testing"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	// every pooled connection would otherwise get its own empty in-memory database
	db.SetMaxOpenConns(1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func batch(artist string, titles ...string) []models.LyricRecord {
	records := make([]models.LyricRecord, 0, len(titles))
	for _, title := range titles {
		records = append(records, models.NewLyricRecord(title, artist, "lyrics of "+title, ""))
	}
	return records
}

func TestDatasetRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Load Missing File", func(t *testing.T) {
		repo := NewDatasetRepository(filepath.Join(t.TempDir(), "missing.csv"))
		dataset, processed, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if dataset.Len() != 0 || len(processed) != 0 {
			t.Errorf("expected empty dataset and set, got %d records, %d artists", dataset.Len(), len(processed))
		}
	})

	t.Run("Flush Then Load", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data", "raw", "all_lyrics.csv")
		repo := NewDatasetRepository(path)

		existing, _, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		merged, err := repo.Flush(ctx, existing, batch("Nas", "Halftime", "One Love"))
		if err != nil {
			t.Fatalf("first Flush failed: %v", err)
		}
		merged, err = repo.Flush(ctx, merged, batch("Drake", "Headlines"))
		if err != nil {
			t.Fatalf("second Flush failed: %v", err)
		}
		if merged.Len() != 3 {
			t.Errorf("expected 3 merged records, got %d", merged.Len())
		}

		loaded, processed, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if !reflect.DeepEqual(loaded.Records(), merged.Records()) {
			t.Errorf("loaded dataset differs from flushed:\n got %+v\nwant %+v", loaded.Records(), merged.Records())
		}
		if !processed.Has("nas") || !processed.Has("DRAKE") || processed.Has("Common") {
			t.Errorf("unexpected processed set: %v", processed)
		}

		content := tu.MustReadFile(t, path)
		if !strings.HasPrefix(content, "track_name,artist,lyrics,release_date\n") {
			t.Errorf("unexpected header: %q", content)
		}
	})

	t.Run("Leftover Temp File Is Ignored", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "all_lyrics.csv")
		repo := NewDatasetRepository(path)

		if _, err := repo.Flush(ctx, models.NewDataset(nil), batch("Nas", "Halftime")); err != nil {
			t.Fatalf("Flush failed: %v", err)
		}

		// a process killed mid-write leaves only a partial temp file behind
		tu.MustWriteFile(t, filepath.Join(dir, ".lyx-tmp-123"), "track_name,artist\n\"half")

		loaded, _, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded.Len() != 1 {
			t.Errorf("expected the last complete flush, got %d records", loaded.Len())
		}
	})

	t.Run("Failed Flush Leaves File Untouched", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "all_lyrics.csv")
		repo := NewDatasetRepository(path)

		first, err := repo.Flush(ctx, models.NewDataset(nil), batch("Nas", "Halftime"))
		if err != nil {
			t.Fatalf("Flush failed: %v", err)
		}
		before := tu.MustReadFile(t, path)

		ctxCancelled, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := repo.Flush(ctxCancelled, first, batch("Drake", "Headlines")); !errors.Is(err, shared.ErrStorage) {
			t.Fatalf("expected ErrStorage, got %v", err)
		}

		if after := tu.MustReadFile(t, path); after != before {
			t.Errorf("dataset changed after failed flush:\n%s", after)
		}
	})

	t.Run("Unwritable Path", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		tu.MustWriteFile(t, blocker, "x")

		repo := NewDatasetRepository(filepath.Join(blocker, "all_lyrics.csv"))
		_, err := repo.Flush(ctx, models.NewDataset(nil), batch("Nas", "Halftime"))
		if !errors.Is(err, shared.ErrStorage) {
			t.Errorf("expected ErrStorage, got %v", err)
		}
	})

	t.Run("Corrupt File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "all_lyrics.csv")
		tu.MustWriteFile(t, path, "title,name\nx,y\n")

		_, _, err := NewDatasetRepository(path).Load(ctx)
		if !errors.Is(err, shared.ErrStorage) {
			t.Errorf("expected ErrStorage, got %v", err)
		}
	})

	t.Run("Empty Path", func(t *testing.T) {
		_, _, err := NewDatasetRepository("").Load(ctx)
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestReadArtistNames(t *testing.T) {
	t.Run("Reads Column", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rapper_names.csv")
		tu.MustWriteFile(t, path, "Name,Genre\nNas,East Coast\nDrake,Pop Rap\n,Unknown\nNas,East Coast\n")

		names, err := ReadArtistNames(path, "Name")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !reflect.DeepEqual(names, []string{"Nas", "Drake", "Nas"}) {
			t.Errorf("unexpected names: %v", names)
		}
	})

	t.Run("Missing File", func(t *testing.T) {
		_, err := ReadArtistNames(filepath.Join(t.TempDir(), "nope.csv"), "Name")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Missing Column", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rapper_names.csv")
		tu.MustWriteFile(t, path, "Artist\nNas\n")

		_, err := ReadArtistNames(path, "Name")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestAttemptRepository(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	attempt := func(run, artist string, outcome models.Outcome) models.Attempt {
		return models.Attempt{RunID: run, Artist: artist, Outcome: outcome, AttemptedAt: at}
	}

	t.Run("Latest Outcome Wins", func(t *testing.T) {
		repo := NewAttemptRepository(setupTestDB(t))

		first := []models.Attempt{
			attempt("run-1", "Drake", models.OutcomeDeferred),
			attempt("run-1", "Zzyx", models.OutcomeNotFound),
			attempt("run-1", "Common", models.OutcomeHarvested),
			attempt("run-1", "Quiet", models.OutcomeEmpty),
			attempt("run-1", "Weird", models.OutcomeFailed),
		}
		if err := repo.RecordAttempts(ctx, first); err != nil {
			t.Fatalf("RecordAttempts failed: %v", err)
		}
		if err := repo.RecordAttempts(ctx, []models.Attempt{attempt("run-2", "drake", models.OutcomeHarvested)}); err != nil {
			t.Fatalf("RecordAttempts failed: %v", err)
		}

		set, err := repo.AttemptedArtists(ctx)
		if err != nil {
			t.Fatalf("AttemptedArtists failed: %v", err)
		}
		for _, name := range []string{"Drake", "Zzyx", "Common", "Quiet"} {
			if !set.Has(name) {
				t.Errorf("expected %s to be attempted", name)
			}
		}
		if set.Has("Weird") {
			t.Error("failed attempts must not count as attempted")
		}

		latest, err := repo.Latest(ctx)
		if err != nil {
			t.Fatalf("Latest failed: %v", err)
		}
		if len(latest) != 5 {
			t.Fatalf("expected one latest attempt per artist, got %d", len(latest))
		}
		if latest[1].Artist != "drake" || latest[1].RunID != "run-2" {
			t.Errorf("expected the run-2 Drake attempt, got %+v", latest[1])
		}
	})

	t.Run("ByRun", func(t *testing.T) {
		repo := NewAttemptRepository(setupTestDB(t))
		a := attempt("run-1", "Nas", models.OutcomeHarvested)
		a.Records, a.Malformed, a.Error = 12, 2, ""
		b := attempt("run-1", "Drake", models.OutcomeDeferred)
		b.Error = "transient upstream failure: status 503"

		if err := repo.RecordAttempts(ctx, []models.Attempt{a, b, attempt("run-2", "Common", models.OutcomeEmpty)}); err != nil {
			t.Fatalf("RecordAttempts failed: %v", err)
		}

		got, err := repo.ByRun(ctx, "run-1")
		if err != nil {
			t.Fatalf("ByRun failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 attempts, got %d", len(got))
		}
		if got[0].Records != 12 || got[0].Malformed != 2 || got[1].Error != b.Error {
			t.Errorf("unexpected attempts: %+v", got)
		}
		if !got[0].AttemptedAt.Equal(at) {
			t.Errorf("expected attempted_at %v, got %v", at, got[0].AttemptedAt)
		}
	})

	t.Run("Forget", func(t *testing.T) {
		repo := NewAttemptRepository(setupTestDB(t))
		if err := repo.RecordAttempts(ctx, []models.Attempt{
			attempt("run-1", "Zzyx", models.OutcomeNotFound),
			attempt("run-2", "ZZYX", models.OutcomeNotFound),
		}); err != nil {
			t.Fatalf("RecordAttempts failed: %v", err)
		}

		n, err := repo.Forget(ctx, " zzyx ")
		if err != nil {
			t.Fatalf("Forget failed: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 rows removed, got %d", n)
		}

		set, _ := repo.AttemptedArtists(ctx)
		if set.Has("Zzyx") {
			t.Error("forgotten artist should no longer be attempted")
		}
	})

	t.Run("Empty Batch", func(t *testing.T) {
		repo := NewAttemptRepository(setupTestDB(t))
		if err := repo.RecordAttempts(ctx, nil); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("Closed Database", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewAttemptRepository(db)
		db.Close()

		if err := repo.RecordAttempts(ctx, []models.Attempt{attempt("run", "Nas", models.OutcomeHarvested)}); !errors.Is(err, shared.ErrStorage) {
			t.Errorf("expected ErrStorage, got %v", err)
		}
		if _, err := repo.AttemptedArtists(ctx); !errors.Is(err, shared.ErrStorage) {
			t.Errorf("expected ErrStorage, got %v", err)
		}
	})
}

func TestRunRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Start And Finish", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))

		run := models.NewRun("data/raw/rapper_names.csv", "data/raw/all_lyrics.csv")
		run.Stats.Total = 4
		if err := repo.Start(ctx, run); err != nil {
			t.Fatalf("Start failed: %v", err)
		}

		got, err := repo.Get(ctx, run.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status != models.RunRunning || got.FinishedAt != nil || got.Stats.Total != 4 {
			t.Errorf("unexpected running run: %+v", got)
		}

		run.Status = models.RunCompleted
		run.Stats = models.RunStats{Total: 4, Skipped: 1, Harvested: 2, NotFound: 1, Malformed: 3, RecordsWritten: 40, Flushes: 1}
		if err := repo.Finish(ctx, run); err != nil {
			t.Fatalf("Finish failed: %v", err)
		}

		got, err = repo.Get(ctx, run.ID)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status != models.RunCompleted || got.FinishedAt == nil {
			t.Errorf("expected completed run with finish time, got %+v", got)
		}
		if got.Stats != run.Stats {
			t.Errorf("expected stats %+v, got %+v", run.Stats, got.Stats)
		}
		if got.InputPath != "data/raw/rapper_names.csv" {
			t.Errorf("unexpected input path %q", got.InputPath)
		}
	})

	t.Run("Latest", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

		for i := range 3 {
			run := &models.Run{ID: string(rune('a' + i)), StartedAt: base.Add(time.Duration(i) * time.Hour)}
			if err := repo.Start(ctx, run); err != nil {
				t.Fatalf("Start failed: %v", err)
			}
		}

		runs, err := repo.Latest(ctx, 2)
		if err != nil {
			t.Fatalf("Latest failed: %v", err)
		}
		if len(runs) != 2 || runs[0].ID != "c" || runs[1].ID != "b" {
			t.Errorf("expected newest two runs [c b], got %d runs", len(runs))
		}
	})

	t.Run("Get Unknown", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		if _, err := repo.Get(ctx, "nope"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Finish Unknown", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		if err := repo.Finish(ctx, &models.Run{ID: "nope", Status: models.RunFailed}); !errors.Is(err, shared.ErrStorage) {
			t.Errorf("expected ErrStorage, got %v", err)
		}
	})
}

func TestStorageError(t *testing.T) {
	wrapped := storageError("op", os.ErrPermission)
	if !errors.Is(wrapped, shared.ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", wrapped)
	}
	if again := storageError("outer", wrapped); strings.Count(again.Error(), shared.ErrStorage.Error()) != 1 {
		t.Errorf("expected a single storage prefix, got %q", again)
	}
}
