package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a harvest run.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Position of the artist in the deduplicated list (1-based)
	Total   int    // Number of artists in the run
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	LoadProgress Phase = iota
	SkipArtist
	FetchArtist
	ArtistHarvested
	ArtistNoData
	ArtistDeferred
	Flush
	Complete
	ExportArtist
)

func (p Phase) String() string {
	switch p {
	case LoadProgress:
		return "load_progress"
	case SkipArtist:
		return "skip_artist"
	case FetchArtist:
		return "fetch_artist"
	case ArtistHarvested:
		return "artist_harvested"
	case ArtistNoData:
		return "artist_no_data"
	case ArtistDeferred:
		return "artist_deferred"
	case Flush:
		return "flush"
	case Complete:
		return "complete"
	case ExportArtist:
		return "export_artist"
	default:
		return ""
	}
}

func loadProgressUpdate(total, stored, processed int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadProgress,
		Total:   total,
		Message: fmt.Sprintf("Loaded %d records, %d artists already processed", stored, processed),
	}
}

func skipArtistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SkipArtist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Skipping %s (already processed)", step, total, name),
	}
}

func fetchArtistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchArtist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching %s...", step, total, name),
	}
}

// artistResultUpdate picks the phase matching the harvest outcome.
func artistResultUpdate(step, total int, res HarvestResult) ProgressUpdate {
	u := ProgressUpdate{Step: step, Total: total, Data: res}

	switch {
	case len(res.Records) > 0:
		u.Phase = ArtistHarvested
		u.Message = fmt.Sprintf("[%d/%d] ✓ %s (%d songs)", step, total, res.Artist, len(res.Records))
	case res.Outcome.Attempted():
		u.Phase = ArtistNoData
		u.Message = fmt.Sprintf("[%d/%d] - %s (no data: %s)", step, total, res.Artist, res.Outcome)
	default:
		u.Phase = ArtistDeferred
		u.Message = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Artist, res.Err)
	}
	return u
}

func flushUpdate(step, total, written, stored int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Flush,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Saved %d new records (%d total)", written, stored),
	}
}

func completeUpdate(result *RunResult) ProgressUpdate {
	msg := fmt.Sprintf("Done: %d harvested, %d skipped, %d without data, %d deferred",
		result.Stats.Harvested, result.Stats.Skipped, result.Stats.Empty+result.Stats.NotFound, result.Stats.Deferred+result.Stats.Failed)
	if result.Cancelled {
		msg = "Interrupted. " + msg
	}
	return ProgressUpdate{
		Phase:   Complete,
		Step:    result.Stats.Total,
		Total:   result.Stats.Total,
		Message: msg,
		Data:    result,
	}
}

func exportArtistUpdate(step, total int, res ArtistExportResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s (%d songs)", step, total, res.Artist, res.Records)
	if !res.Success {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, res.Artist, res.Error)
	}
	return ProgressUpdate{
		Phase:   ExportArtist,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    res,
	}
}
