package models

import (
	"reflect"
	"testing"
)

func TestLyricRecord(t *testing.T) {
	t.Run("defaults missing release date", func(t *testing.T) {
		r := NewLyricRecord("N.Y. State of Mind by Nas", "Nas", "Rappers, I monkey flip 'em", "")
		if r.ReleaseDate != ReleaseDateUnknown {
			t.Errorf("expected %s, got %s", ReleaseDateUnknown, r.ReleaseDate)
		}
	})

	t.Run("Row follows column order", func(t *testing.T) {
		r := NewLyricRecord("t", "a", "l", "2001-01-01")
		if got := r.Row(); !reflect.DeepEqual(got, []string{"t", "a", "l", "2001-01-01"}) {
			t.Errorf("Row() = %v", got)
		}
		if len(Columns) != len(r.Row()) {
			t.Errorf("expected %d columns", len(Columns))
		}
	})
}

func TestDataset(t *testing.T) {
	first := []LyricRecord{NewLyricRecord("a", "Nas", "x", "")}
	second := []LyricRecord{NewLyricRecord("b", "Drake", "y", ""), NewLyricRecord("c", "Nas", "z", "")}

	t.Run("Append leaves the receiver unchanged", func(t *testing.T) {
		base := NewDataset(first)
		merged := base.Append(second)

		if base.Len() != 1 {
			t.Errorf("expected base to keep 1 record, got %d", base.Len())
		}
		if merged.Len() != 3 {
			t.Errorf("expected merged to have 3 records, got %d", merged.Len())
		}
		if merged.Records()[0].TrackName != "a" || merged.Records()[2].TrackName != "c" {
			t.Errorf("expected append order, got %v", merged.Records())
		}
	})

	t.Run("Append on nil dataset", func(t *testing.T) {
		var d *Dataset
		if got := d.Append(first); got.Len() != 1 {
			t.Errorf("expected 1 record, got %d", got.Len())
		}
	})

	t.Run("Artists", func(t *testing.T) {
		artists := NewDataset(first).Append(second).Artists()
		if len(artists) != 2 || !artists.Has("nas") || !artists.Has("DRAKE") {
			t.Errorf("unexpected artist set %v", artists)
		}
	})

	t.Run("CountByArtist", func(t *testing.T) {
		counts, order := NewDataset(first).Append(second).CountByArtist()
		if counts["Nas"] != 2 || counts["Drake"] != 1 {
			t.Errorf("unexpected counts %v", counts)
		}
		if !reflect.DeepEqual(order, []string{"Nas", "Drake"}) {
			t.Errorf("unexpected order %v", order)
		}
	})
}

func TestArtistSet(t *testing.T) {
	s := NewArtistSet("Nas", "", "  ")
	if len(s) != 1 {
		t.Errorf("expected blank names to be ignored, got %v", s)
	}

	s.Union(NewArtistSet("Drake"))
	if !s.Has(" drake ") {
		t.Error("expected union to include Drake")
	}
}

func TestOutcomeAttempted(t *testing.T) {
	tt := []struct {
		outcome Outcome
		want    bool
	}{
		{OutcomeHarvested, true},
		{OutcomeEmpty, true},
		{OutcomeNotFound, true},
		{OutcomeDeferred, false},
		{OutcomeFailed, false},
		{OutcomeUnauthorized, false},
	}

	for _, tc := range tt {
		t.Run(string(tc.outcome), func(t *testing.T) {
			if got := tc.outcome.Attempted(); got != tc.want {
				t.Errorf("Attempted() = %v, want %v", got, tc.want)
			}
		})
	}
}
