// package models defines the data model for the lyrics harvester
package models

import (
	"time"

	"github.com/desertthunder/lyx/internal/shared"
)

// ReleaseDateUnknown is stored when a song carries no release date.
const ReleaseDateUnknown = "N/A"

// Columns is the header row of the output dataset.
var Columns = []string{"track_name", "artist", "lyrics", "release_date"}

// LyricRecord is one row of the output dataset.
type LyricRecord struct {
	TrackName   string `json:"track_name"`
	Artist      string `json:"artist"`
	Lyrics      string `json:"lyrics"`
	ReleaseDate string `json:"release_date"`
}

// NewLyricRecord builds a record, substituting [ReleaseDateUnknown] for an empty release date.
func NewLyricRecord(trackName, artist, lyrics, releaseDate string) LyricRecord {
	if releaseDate == "" {
		releaseDate = ReleaseDateUnknown
	}
	return LyricRecord{TrackName: trackName, Artist: artist, Lyrics: lyrics, ReleaseDate: releaseDate}
}

// Row returns the record in [Columns] order.
func (r LyricRecord) Row() []string {
	return []string{r.TrackName, r.Artist, r.Lyrics, r.ReleaseDate}
}

// ArtistSet is a set of artists keyed by [shared.NormalizeArtist].
type ArtistSet map[string]struct{}

// NewArtistSet builds a set from names.
func NewArtistSet(names ...string) ArtistSet {
	s := make(ArtistSet, len(names))
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add inserts name; blank names are ignored.
func (s ArtistSet) Add(name string) {
	if key := shared.NormalizeArtist(name); key != "" {
		s[key] = struct{}{}
	}
}

// Has reports whether name (or a spelling with the same normalized key) is in the set.
func (s ArtistSet) Has(name string) bool {
	_, ok := s[shared.NormalizeArtist(name)]
	return ok
}

// Union adds every member of other to s.
func (s ArtistSet) Union(other ArtistSet) {
	for k := range other {
		s[k] = struct{}{}
	}
}

// Dataset is the ordered, append-only sequence of records persisted so far.
type Dataset struct {
	records []LyricRecord
}

// NewDataset wraps records; the slice is copied.
func NewDataset(records []LyricRecord) *Dataset {
	return &Dataset{records: append([]LyricRecord(nil), records...)}
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// Records returns a copy of the records in append order.
func (d *Dataset) Records() []LyricRecord {
	if d == nil {
		return nil
	}
	return append([]LyricRecord(nil), d.records...)
}

// Append returns a new Dataset with batch after the existing records; d is unchanged.
func (d *Dataset) Append(batch []LyricRecord) *Dataset {
	merged := make([]LyricRecord, 0, d.Len()+len(batch))
	if d != nil {
		merged = append(merged, d.records...)
	}
	merged = append(merged, batch...)
	return &Dataset{records: merged}
}

// Artists returns the distinct artists of the dataset.
func (d *Dataset) Artists() ArtistSet {
	s := make(ArtistSet)
	if d == nil {
		return s
	}
	for _, r := range d.records {
		s.Add(r.Artist)
	}
	return s
}

// CountByArtist returns the number of records per artist spelling, and the spellings in first-seen order.
func (d *Dataset) CountByArtist() (map[string]int, []string) {
	counts := make(map[string]int)
	var order []string
	if d == nil {
		return counts, order
	}
	for _, r := range d.records {
		if _, ok := counts[r.Artist]; !ok {
			order = append(order, r.Artist)
		}
		counts[r.Artist]++
	}
	return counts, order
}

// Outcome classifies a single artist fetch.
type Outcome string

const (
	OutcomeHarvested    Outcome = "harvested"
	OutcomeEmpty        Outcome = "empty"
	OutcomeNotFound     Outcome = "not_found"
	OutcomeDeferred     Outcome = "deferred"
	OutcomeFailed       Outcome = "failed"
	OutcomeUnauthorized Outcome = "unauthorized"
)

// Attempted reports whether the artist should be treated as processed and never fetched again.
func (o Outcome) Attempted() bool {
	switch o {
	case OutcomeHarvested, OutcomeEmpty, OutcomeNotFound:
		return true
	default:
		return false
	}
}

// Attempt is one artist fetch as recorded in the ledger.
type Attempt struct {
	RunID       string
	Artist      string
	Outcome     Outcome
	Records     int
	Malformed   int
	Error       string
	AttemptedAt time.Time
}

// RunStatus is the lifecycle state of a [Run].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunFailed    RunStatus = "failed"
)

// RunStats holds the counters of a batch run.
type RunStats struct {
	Total          int `json:"total"`
	Skipped        int `json:"skipped"`
	Harvested      int `json:"harvested"`
	Empty          int `json:"empty"`
	NotFound       int `json:"not_found"`
	Deferred       int `json:"deferred"`
	Failed         int `json:"failed"`
	Malformed      int `json:"malformed"`
	RecordsWritten int `json:"records_written"`
	Flushes        int `json:"flushes"`
}

// Run is one invocation of the batch job.
type Run struct {
	ID         string
	Status     RunStatus
	InputPath  string
	OutputPath string
	Stats      RunStats
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// NewRun creates a running [Run] with a generated ID.
func NewRun(inputPath, outputPath string) *Run {
	return &Run{
		ID:         shared.GenerateID(),
		Status:     RunRunning,
		InputPath:  inputPath,
		OutputPath: outputPath,
		StartedAt:  time.Now().UTC(),
	}
}
