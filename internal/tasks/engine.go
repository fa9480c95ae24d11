package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lyx/internal/models"
	"github.com/desertthunder/lyx/internal/shared"
)

// DefaultBatchSize is the number of artists between flushes.
const DefaultBatchSize = 5

// ProgressStore persists the dataset and derives the processed set from it.
type ProgressStore interface {
	// Load returns the stored dataset and the artists it contains. A missing file is an empty dataset.
	Load(ctx context.Context) (*models.Dataset, models.ArtistSet, error)

	// Flush appends buffer to existing, durably replaces the stored dataset and returns the merged dataset.
	Flush(ctx context.Context, existing *models.Dataset, buffer []models.LyricRecord) (*models.Dataset, error)
}

// AttemptLedger records artist attempts so artists without data are not fetched again.
type AttemptLedger interface {
	// AttemptedArtists returns the artists whose latest attempt was harvested, empty or not found.
	AttemptedArtists(ctx context.Context) (models.ArtistSet, error)

	// RecordAttempts stores a batch of attempts atomically.
	RecordAttempts(ctx context.Context, attempts []models.Attempt) error
}

// ArtistHarvester fetches a single artist. Implemented by [Harvester].
type ArtistHarvester interface {
	Harvest(ctx context.Context, name string, maxSongs int) HarvestResult
}

// RunOpts configures a harvest run.
type RunOpts struct {
	BatchSize int           // Artists between flushes (default: 5)
	MaxSongs  int           // Songs requested per artist; <= 0 is unlimited
	Pause     time.Duration // Slept after every fetched artist before moving on
	RunID     string        // Stamped on ledger attempts (default: generated)
}

// RunResult summarizes a harvest run.
type RunResult struct {
	RunID     string
	Stats     models.RunStats
	Dataset   *models.Dataset // Dataset as last persisted
	Cancelled bool            // Context was cancelled before every artist was visited
}

// runState is the mutable state of one run, owned by [HarvestEngine.Run].
type runState struct {
	existing  *models.Dataset
	processed models.ArtistSet
	buffer    []models.LyricRecord
	pending   []models.Attempt
	result    *RunResult
}

func (s *runState) dirty() bool {
	return len(s.buffer) > 0 || len(s.pending) > 0
}

// HarvestEngine runs the resumable batch harvest.
type HarvestEngine struct {
	store     ProgressStore
	ledger    AttemptLedger
	harvester ArtistHarvester
	logger    *log.Logger
	sleep     func(context.Context, time.Duration) error
}

// NewHarvestEngine creates an engine. ledger may be nil, in which case only dataset artists count as processed.
func NewHarvestEngine(store ProgressStore, ledger AttemptLedger, harvester ArtistHarvester, logger *log.Logger) *HarvestEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &HarvestEngine{store: store, ledger: ledger, harvester: harvester, logger: logger, sleep: sleepContext}
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run harvests every artist not yet processed, flushing every opts.BatchSize artists.
//
// Cancelling ctx stops the run after the current artist; buffered records are still flushed.
// Storage failures and rejected credentials halt the run and are returned alongside the partial result.
func (e *HarvestEngine) Run(ctx context.Context, artists []string, opts RunOpts, progress chan<- ProgressUpdate) (*RunResult, error) {
	if e.store == nil || e.harvester == nil {
		return nil, fmt.Errorf("%w: harvest engine not initialized", shared.ErrInvalidConfig)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.RunID == "" {
		opts.RunID = shared.GenerateID()
	}

	logger := shared.WithLogger(e.logger, "run", opts.RunID)
	artists = shared.DedupeArtists(artists)
	total := len(artists)

	existing, processed, err := e.store.Load(ctx)
	if err != nil {
		return nil, wrapStorage("failed to load dataset", err)
	}
	if processed == nil {
		processed = models.NewArtistSet()
	}
	if e.ledger != nil {
		attempted, err := e.ledger.AttemptedArtists(ctx)
		if err != nil {
			return nil, wrapStorage("failed to load attempt ledger", err)
		}
		processed.Union(attempted)
	}

	st := &runState{
		existing:  existing,
		processed: processed,
		result:    &RunResult{RunID: opts.RunID, Stats: models.RunStats{Total: total}, Dataset: existing},
	}

	logger.Info("progress loaded", "records", existing.Len(), "processed", len(processed), "artists", total)
	sendProgress(progress, loadProgressUpdate(total, existing.Len(), len(processed)))

	for i, name := range artists {
		step := i + 1
		if ctx.Err() != nil {
			st.result.Cancelled = true
			break
		}

		fetched := false
		if st.processed.Has(name) {
			st.result.Stats.Skipped++
			logger.Debug("skipping processed artist", "artist", name)
			sendProgress(progress, skipArtistUpdate(step, total, name))
		} else {
			fetched = true
			sendProgress(progress, fetchArtistUpdate(step, total, name))
			res := e.harvester.Harvest(ctx, name, opts.MaxSongs)
			st.record(opts.RunID, res)
			sendProgress(progress, artistResultUpdate(step, total, res))

			if res.Outcome == models.OutcomeUnauthorized {
				if err := e.flush(ctx, st, logger, progress, step, total); err != nil {
					return st.result, err
				}
				return st.result, fmt.Errorf("harvest halted at %q: %w", name, res.Err)
			}

			if ctx.Err() != nil {
				st.result.Cancelled = true
				break
			}
		}

		if step%opts.BatchSize == 0 && st.dirty() {
			if err := e.flush(ctx, st, logger, progress, step, total); err != nil {
				return st.result, err
			}
		}

		if fetched && opts.Pause > 0 && step < total {
			if err := e.sleep(ctx, opts.Pause); err != nil {
				st.result.Cancelled = true
				break
			}
		}
	}

	if st.dirty() {
		if err := e.flush(ctx, st, logger, progress, total, total); err != nil {
			return st.result, err
		}
	}

	if st.result.Cancelled {
		logger.Warn("harvest interrupted", "harvested", st.result.Stats.Harvested, "written", st.result.Stats.RecordsWritten)
	} else {
		logger.Info("harvest complete", "harvested", st.result.Stats.Harvested, "written", st.result.Stats.RecordsWritten)
	}
	sendProgress(progress, completeUpdate(st.result))
	return st.result, nil
}

// record folds a harvest result into the run state.
func (s *runState) record(runID string, res HarvestResult) {
	stats := &s.result.Stats
	stats.Malformed += res.Malformed

	switch res.Outcome {
	case models.OutcomeHarvested:
		stats.Harvested++
		s.buffer = append(s.buffer, res.Records...)
	case models.OutcomeEmpty:
		stats.Empty++
	case models.OutcomeNotFound:
		stats.NotFound++
	case models.OutcomeDeferred:
		stats.Deferred++
	default:
		stats.Failed++
	}

	if res.Outcome.Attempted() {
		s.processed.Add(res.Artist)
	}

	attempt := models.Attempt{
		RunID:       runID,
		Artist:      res.Artist,
		Outcome:     res.Outcome,
		Records:     len(res.Records),
		Malformed:   res.Malformed,
		AttemptedAt: time.Now().UTC(),
	}
	if res.Err != nil {
		attempt.Error = res.Err.Error()
	}
	s.pending = append(s.pending, attempt)
}

// flush writes the buffer to the store, then commits the pending attempts to the ledger.
//
// Runs detached from ctx cancellation so an interrupted run still persists what it collected.
func (e *HarvestEngine) flush(ctx context.Context, st *runState, logger *log.Logger, progress chan<- ProgressUpdate, step, total int) error {
	ctx = context.WithoutCancel(ctx)
	written := len(st.buffer)

	if written > 0 {
		merged, err := e.store.Flush(ctx, st.existing, st.buffer)
		if err != nil {
			return wrapStorage("failed to flush dataset", err)
		}
		st.existing = merged
		st.result.Dataset = merged
	}

	if e.ledger != nil && len(st.pending) > 0 {
		if err := e.ledger.RecordAttempts(ctx, st.pending); err != nil {
			return wrapStorage("failed to record attempts", err)
		}
	}

	st.buffer = nil
	st.pending = nil
	st.result.Stats.RecordsWritten += written
	st.result.Stats.Flushes++

	logger.Info("flushed", "records", written, "total", st.existing.Len())
	sendProgress(progress, flushUpdate(step, total, written, st.existing.Len()))
	return nil
}

func wrapStorage(msg string, err error) error {
	if errors.Is(err, shared.ErrStorage) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%w: %s: %v", shared.ErrStorage, msg, err)
}
