package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"testing"
	"time"

	"github.com/desertthunder/lyx/internal/models"
	"github.com/desertthunder/lyx/internal/services"
	"github.com/desertthunder/lyx/internal/shared"
	tu "github.com/desertthunder/lyx/internal/testing"
)

// memStore is an in-memory [ProgressStore] that records every flush.
type memStore struct {
	dataset *models.Dataset
	flushes [][]models.LyricRecord
	failOn  int // 1-based flush number that fails; 0 never fails
	loadErr error
}

func (s *memStore) Load(ctx context.Context) (*models.Dataset, models.ArtistSet, error) {
	if s.loadErr != nil {
		return nil, nil, s.loadErr
	}
	if s.dataset == nil {
		return models.NewDataset(nil), models.NewArtistSet(), nil
	}
	return s.dataset, s.dataset.Artists(), nil
}

func (s *memStore) Flush(ctx context.Context, existing *models.Dataset, buffer []models.LyricRecord) (*models.Dataset, error) {
	if s.failOn > 0 && len(s.flushes)+1 == s.failOn {
		return nil, fmt.Errorf("%w: disk full", shared.ErrStorage)
	}
	merged := existing.Append(buffer)
	s.dataset = merged
	s.flushes = append(s.flushes, append([]models.LyricRecord(nil), buffer...))
	return merged, nil
}

// memLedger is an in-memory [AttemptLedger].
type memLedger struct {
	attempts []models.Attempt
	commits  int
}

func (l *memLedger) AttemptedArtists(ctx context.Context) (models.ArtistSet, error) {
	latest := map[string]models.Attempt{}
	for _, a := range l.attempts {
		latest[shared.NormalizeArtist(a.Artist)] = a
	}
	set := models.NewArtistSet()
	for _, a := range latest {
		if a.Outcome.Attempted() {
			set.Add(a.Artist)
		}
	}
	return set, nil
}

func (l *memLedger) RecordAttempts(ctx context.Context, attempts []models.Attempt) error {
	l.attempts = append(l.attempts, attempts...)
	l.commits++
	return nil
}

func newTestEngine(store ProgressStore, ledger AttemptLedger, source services.LyricsSource) *HarvestEngine {
	h, _ := newTestHarvester(source)
	return NewHarvestEngine(store, ledger, h, shared.NewLogger(io.Discard))
}

func artistsOf(records []models.LyricRecord) []string {
	var out []string
	seen := map[string]bool{}
	for _, r := range records {
		if !seen[r.Artist] {
			seen[r.Artist] = true
			out = append(out, r.Artist)
		}
	}
	return out
}

func catalog() *tu.MockSource {
	return tu.NewMockSource().
		WithSongs("Nas", tu.Song(1, "Halftime", "Nas", "a", ""), tu.Song(2, "One Love", "Nas", "b", "1994-04-19")).
		WithSongs("Drake", tu.Song(3, "Started From the Bottom", "Drake", "c", "")).
		WithSongs("Kendrick Lamar", tu.Song(4, "DNA.", "Kendrick Lamar", "d", "")).
		WithSongs("Common", tu.Song(5, "The Light", "Common", "e", "")).
		WithSongs("Mos Def", tu.Song(6, "Umi Says", "Mos Def", "f", ""))
}

func TestHarvestEngine_DedupScenario(t *testing.T) {
	store := &memStore{}
	source := catalog()
	engine := newTestEngine(store, nil, source)

	result, err := engine.Run(context.Background(), []string{"Nas", "Drake", "Nas"}, RunOpts{BatchSize: 2}, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := source.Calls(); !reflect.DeepEqual(got, []string{"Nas", "Drake"}) {
		t.Errorf("expected fetches [Nas Drake], got %v", got)
	}
	if len(store.flushes) != 1 {
		t.Fatalf("expected exactly one flush, got %d", len(store.flushes))
	}
	if got := artistsOf(store.flushes[0]); !reflect.DeepEqual(got, []string{"Nas", "Drake"}) {
		t.Errorf("expected flush with Nas and Drake, got %v", got)
	}
	if result.Stats.Total != 2 || result.Stats.Harvested != 2 || result.Stats.RecordsWritten != 3 || result.Stats.Flushes != 1 {
		t.Errorf("unexpected stats: %+v", result.Stats)
	}
	if result.Dataset.Len() != 3 {
		t.Errorf("expected 3 records in dataset, got %d", result.Dataset.Len())
	}
}

func TestHarvestEngine_NotFound(t *testing.T) {
	store := &memStore{}
	source := catalog()
	engine := newTestEngine(store, nil, source)

	progress := make(chan ProgressUpdate, 32)
	result, err := engine.Run(context.Background(), []string{"Zzyx"}, RunOpts{BatchSize: 5}, progress)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	close(progress)

	sawNoData := false
	for u := range progress {
		if u.Phase == ArtistNoData {
			sawNoData = true
		}
	}
	if !sawNoData {
		t.Error("expected a no data progress update")
	}
	if result.Stats.NotFound != 1 {
		t.Errorf("expected 1 not found, got %d", result.Stats.NotFound)
	}
	if len(store.flushes) != 0 {
		t.Errorf("expected no dataset flush, got %d", len(store.flushes))
	}

	_, processed, _ := store.Load(context.Background())
	if processed.Has("Zzyx") {
		t.Error("Zzyx must not appear in the dataset-derived processed set")
	}

	t.Run("Retried Without Ledger", func(t *testing.T) {
		if _, err := engine.Run(context.Background(), []string{"Zzyx"}, RunOpts{}, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := len(source.Calls()); got != 2 {
			t.Errorf("expected Zzyx to be fetched again, got %d calls", got)
		}
	})

	t.Run("Remembered By Ledger", func(t *testing.T) {
		ledger := &memLedger{}
		source := catalog()
		engine := newTestEngine(&memStore{}, ledger, source)

		for range 2 {
			if _, err := engine.Run(context.Background(), []string{"Zzyx"}, RunOpts{}, nil); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		}
		if got := len(source.Calls()); got != 1 {
			t.Errorf("expected a single fetch across runs, got %d", got)
		}
		if ledger.commits != 1 || ledger.attempts[0].Outcome != models.OutcomeNotFound {
			t.Errorf("unexpected ledger state: %+v", ledger.attempts)
		}
	})
}

func TestHarvestEngine_ResumeAndIdempotence(t *testing.T) {
	existing := models.NewDataset([]models.LyricRecord{
		models.NewLyricRecord("Halftime by Nas", "Nas", "a", ""),
		models.NewLyricRecord("Started From the Bottom by Drake", "Drake", "c", ""),
	})
	store := &memStore{dataset: existing}
	source := catalog()
	engine := newTestEngine(store, &memLedger{}, source)

	input := []string{"Nas", "drake ", "Kendrick Lamar"}
	result, err := engine.Run(context.Background(), input, RunOpts{BatchSize: 2}, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := source.Calls(); !reflect.DeepEqual(got, []string{"Kendrick Lamar"}) {
		t.Errorf("expected only Kendrick Lamar fetched, got %v", got)
	}
	if result.Stats.Skipped != 2 {
		t.Errorf("expected 2 skipped, got %d", result.Stats.Skipped)
	}
	if store.dataset.Len() != 3 {
		t.Errorf("expected 3 records, got %d", store.dataset.Len())
	}

	t.Run("Second Run Is A No-op", func(t *testing.T) {
		flushes := len(store.flushes)
		result, err := engine.Run(context.Background(), input, RunOpts{BatchSize: 2}, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(source.Calls()) != 1 {
			t.Errorf("expected no new fetches, got %v", source.Calls())
		}
		if len(store.flushes) != flushes {
			t.Errorf("expected no writes, got %d new flushes", len(store.flushes)-flushes)
		}
		if result.Stats.Skipped != 3 {
			t.Errorf("expected 3 skipped, got %d", result.Stats.Skipped)
		}

		seen := map[string]bool{}
		for _, r := range store.dataset.Records() {
			key := r.TrackName + "|" + r.Artist
			if seen[key] {
				t.Errorf("duplicate record %s", key)
			}
			seen[key] = true
		}
	})
}

func TestHarvestEngine_ArtistIsolation(t *testing.T) {
	store := &memStore{}
	source := catalog().WithError("Drake", fmt.Errorf("%w: status 429", shared.ErrTransientUpstream)).
		WithError("Common", fmt.Errorf("%w: status 418", shared.ErrUnknownUpstream))
	ledger := &memLedger{}
	engine := newTestEngine(store, ledger, source)

	result, err := engine.Run(context.Background(), []string{"Drake", "Common", "Nas", "Mos Def"}, RunOpts{BatchSize: 10}, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := artistsOf(store.dataset.Records()); !reflect.DeepEqual(got, []string{"Nas", "Mos Def"}) {
		t.Errorf("expected Nas and Mos Def harvested, got %v", got)
	}
	if result.Stats.Deferred != 1 || result.Stats.Failed != 1 {
		t.Errorf("unexpected stats: %+v", result.Stats)
	}

	attempted, _ := ledger.AttemptedArtists(context.Background())
	if attempted.Has("Drake") || attempted.Has("Common") {
		t.Error("deferred and failed artists must stay unprocessed")
	}
	if len(ledger.attempts) != 4 {
		t.Errorf("expected every attempt recorded, got %d", len(ledger.attempts))
	}
}

func TestHarvestEngine_FlushCadence(t *testing.T) {
	store := &memStore{}
	engine := newTestEngine(store, nil, catalog())

	artists := []string{"Nas", "Drake", "Kendrick Lamar", "Common", "Mos Def"}
	result, err := engine.Run(context.Background(), artists, RunOpts{BatchSize: 2}, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// flushes after the 2nd and 4th artist, then a final flush for the 5th
	want := [][]string{{"Nas", "Drake"}, {"Kendrick Lamar", "Common"}, {"Mos Def"}}
	if len(store.flushes) != len(want) {
		t.Fatalf("expected %d flushes, got %d", len(want), len(store.flushes))
	}
	for i, f := range store.flushes {
		if got := artistsOf(f); !reflect.DeepEqual(got, want[i]) {
			t.Errorf("flush %d: expected %v, got %v", i, want[i], got)
		}
	}
	if result.Stats.Flushes != 3 {
		t.Errorf("expected 3 flushes, got %d", result.Stats.Flushes)
	}
}

func TestHarvestEngine_StorageFailureHalts(t *testing.T) {
	store := &memStore{failOn: 2}
	source := catalog()
	engine := newTestEngine(store, nil, source)

	artists := []string{"Nas", "Drake", "Kendrick Lamar", "Common", "Mos Def"}
	result, err := engine.Run(context.Background(), artists, RunOpts{BatchSize: 2}, nil)
	if !errors.Is(err, shared.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}

	if len(source.Calls()) != 4 {
		t.Errorf("expected the run to halt after the 4th artist, got %v", source.Calls())
	}
	if got := artistsOf(store.dataset.Records()); !reflect.DeepEqual(got, []string{"Nas", "Drake"}) {
		t.Errorf("expected only the first batch persisted, got %v", got)
	}
	if result.Stats.RecordsWritten != 3 {
		t.Errorf("expected 3 records written, got %d", result.Stats.RecordsWritten)
	}
}

func TestHarvestEngine_LoadFailure(t *testing.T) {
	engine := newTestEngine(&memStore{loadErr: errors.New("permission denied")}, nil, catalog())
	_, err := engine.Run(context.Background(), []string{"Nas"}, RunOpts{}, nil)
	if !errors.Is(err, shared.ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
}

func TestHarvestEngine_Unauthorized(t *testing.T) {
	store := &memStore{}
	source := catalog().WithError("Drake", fmt.Errorf("%w: status 401", shared.ErrInvalidCredentials))
	engine := newTestEngine(store, nil, source)

	_, err := engine.Run(context.Background(), []string{"Nas", "Drake", "Common"}, RunOpts{BatchSize: 5}, nil)
	if !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if got := source.Calls(); !reflect.DeepEqual(got, []string{"Nas", "Drake"}) {
		t.Errorf("expected the run to stop at Drake, got %v", got)
	}
	if got := artistsOf(store.dataset.Records()); !reflect.DeepEqual(got, []string{"Nas"}) {
		t.Errorf("expected buffered Nas records flushed, got %v", got)
	}
}

func TestHarvestEngine_Cancellation(t *testing.T) {
	store := &memStore{}
	source := catalog()
	h, _ := newTestHarvester(source)

	ctx, cancel := context.WithCancel(context.Background())
	engine := NewHarvestEngine(store, nil, cancelAfter{h: h, artist: "Drake", cancel: cancel}, shared.NewLogger(io.Discard))

	result, err := engine.Run(ctx, []string{"Nas", "Drake", "Common"}, RunOpts{BatchSize: 5}, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !result.Cancelled {
		t.Error("expected the run to be marked cancelled")
	}
	if got := artistsOf(store.dataset.Records()); !reflect.DeepEqual(got, []string{"Nas", "Drake"}) {
		t.Errorf("expected Nas and Drake flushed on cancel, got %v", got)
	}
}

// cancelAfter cancels the run once artist has been harvested.
type cancelAfter struct {
	h      *Harvester
	artist string
	cancel context.CancelFunc
}

func (c cancelAfter) Harvest(ctx context.Context, name string, maxSongs int) HarvestResult {
	res := c.h.Harvest(ctx, name, maxSongs)
	if name == c.artist {
		c.cancel()
	}
	return res
}

// slowHarvester takes delay per artist and records when each fetch starts and ends.
type slowHarvester struct {
	h      *Harvester
	delay  time.Duration
	starts []time.Time
	ends   []time.Time
}

func (s *slowHarvester) Harvest(ctx context.Context, name string, maxSongs int) HarvestResult {
	s.starts = append(s.starts, time.Now())
	time.Sleep(s.delay)
	res := s.h.Harvest(ctx, name, maxSongs)
	s.ends = append(s.ends, time.Now())
	return res
}

func TestHarvestEngine_Pause(t *testing.T) {
	t.Run("Gap After Slow Fetches", func(t *testing.T) {
		h, _ := newTestHarvester(catalog())
		slow := &slowHarvester{h: h, delay: 100 * time.Millisecond}
		engine := NewHarvestEngine(&memStore{}, nil, slow, shared.NewLogger(io.Discard))

		pause := 80 * time.Millisecond
		_, err := engine.Run(context.Background(), []string{"Nas", "Drake", "Kendrick Lamar"}, RunOpts{Pause: pause}, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(slow.starts) != 3 {
			t.Fatalf("expected 3 fetches, got %d", len(slow.starts))
		}
		for i := 0; i+1 < len(slow.starts); i++ {
			if gap := slow.starts[i+1].Sub(slow.ends[i]); gap < pause {
				t.Errorf("gap between fetch %d and %d was %v, want at least %v", i+1, i+2, gap, pause)
			}
		}
	})

	t.Run("Skipped Artists Not Paused", func(t *testing.T) {
		store := &memStore{dataset: models.NewDataset([]models.LyricRecord{models.NewLyricRecord("x", "Common", "e", "")})}
		engine := newTestEngine(store, nil, catalog())

		var slept []time.Duration
		engine.sleep = func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}

		_, err := engine.Run(context.Background(), []string{"Nas", "Common", "Drake", "Unknown Artist", "Mos Def"}, RunOpts{Pause: time.Second}, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		// Nas, Drake and the no-data artist pause; Common is skipped and Mos Def is last
		want := []time.Duration{time.Second, time.Second, time.Second}
		if !reflect.DeepEqual(slept, want) {
			t.Errorf("expected pauses %v, got %v", want, slept)
		}
	})

	t.Run("Failed Fetch Paused", func(t *testing.T) {
		engine := newTestEngine(&memStore{}, nil, catalog().WithError("Nas", errors.New("connection reset")))

		pauses := 0
		engine.sleep = func(ctx context.Context, d time.Duration) error {
			pauses++
			return nil
		}

		if _, err := engine.Run(context.Background(), []string{"Nas", "Drake"}, RunOpts{Pause: time.Second}, nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if pauses != 1 {
			t.Errorf("expected 1 pause after the failed fetch, got %d", pauses)
		}
	})

	t.Run("Cancelled During Pause", func(t *testing.T) {
		store := &memStore{}
		engine := newTestEngine(store, nil, catalog())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		engine.sleep = func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		}

		result, err := engine.Run(ctx, []string{"Nas", "Drake"}, RunOpts{Pause: time.Second}, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !result.Cancelled {
			t.Error("expected run to be cancelled")
		}
		if got := artistsOf(store.dataset.Records()); !reflect.DeepEqual(got, []string{"Nas"}) {
			t.Errorf("expected only Nas persisted, got %v", got)
		}
	})
}

func TestHarvestEngine_ProgressUpdates(t *testing.T) {
	store := &memStore{dataset: models.NewDataset([]models.LyricRecord{models.NewLyricRecord("x", "Common", "e", "")})}
	engine := newTestEngine(store, nil, catalog())

	progress := make(chan ProgressUpdate, 32)
	if _, err := engine.Run(context.Background(), []string{"Common", "Nas"}, RunOpts{}, progress); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	close(progress)

	var phases []Phase
	for u := range progress {
		phases = append(phases, u.Phase)
	}
	want := []Phase{LoadProgress, SkipArtist, FetchArtist, ArtistHarvested, Flush, Complete}
	if !reflect.DeepEqual(phases, want) {
		t.Errorf("expected phases %v, got %v", want, phases)
	}
}

func TestHarvestEngine_NotInitialized(t *testing.T) {
	engine := NewHarvestEngine(nil, nil, nil, nil)
	if _, err := engine.Run(context.Background(), []string{"Nas"}, RunOpts{}, nil); !errors.Is(err, shared.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestPhaseString(t *testing.T) {
	phases := map[Phase]string{
		LoadProgress:    "load_progress",
		SkipArtist:      "skip_artist",
		FetchArtist:     "fetch_artist",
		ArtistHarvested: "artist_harvested",
		ArtistNoData:    "artist_no_data",
		ArtistDeferred:  "artist_deferred",
		Flush:           "flush",
		Complete:        "complete",
		ExportArtist:    "export_artist",
		Phase(99):       "",
	}
	for p, want := range phases {
		if got := p.String(); got != want {
			t.Errorf("Phase(%d).String() = %q, want %q", int(p), got, want)
		}
	}
}
