package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/lyx/internal/models"
	"github.com/desertthunder/lyx/internal/services"
	"github.com/desertthunder/lyx/internal/shared"
)

// DefaultCooldown is slept after a transient upstream failure.
const DefaultCooldown = 60 * time.Second

// HarvestResult is the outcome of fetching one artist.
type HarvestResult struct {
	Artist    string
	Records   []models.LyricRecord
	Outcome   models.Outcome
	Malformed int   // raw songs skipped by [Extract]
	Err       error // cause of a non-success outcome
}

// Harvester fetches one artist's songs from a [services.LyricsSource] and maps them to records.
type Harvester struct {
	source   services.LyricsSource
	logger   *log.Logger
	cooldown time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewHarvester creates a Harvester; a non-positive cooldown uses [DefaultCooldown].
func NewHarvester(source services.LyricsSource, logger *log.Logger, cooldown time.Duration) *Harvester {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Harvester{source: source, logger: logger, cooldown: cooldown, sleep: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Harvest fetches up to maxSongs songs for name. Errors are reported in the result, never returned.
func (h *Harvester) Harvest(ctx context.Context, name string, maxSongs int) HarvestResult {
	result := HarvestResult{Artist: name}

	songs, err := h.source.FetchArtistSongs(ctx, name, maxSongs)
	if err != nil {
		result.Err = err
		switch {
		case ctx.Err() != nil:
			result.Outcome = models.OutcomeDeferred
			h.logger.Warn("harvest interrupted", "artist", name)
		case errors.Is(err, shared.ErrArtistNotFound):
			result.Outcome = models.OutcomeNotFound
			h.logger.Warn("artist not found", "artist", name)
		case errors.Is(err, shared.ErrInvalidCredentials):
			result.Outcome = models.OutcomeUnauthorized
			h.logger.Error("credentials rejected", "artist", name, "error", err)
		case errors.Is(err, shared.ErrTransientUpstream):
			result.Outcome = models.OutcomeDeferred
			h.logger.Warn("transient upstream failure, cooling down", "artist", name, "cooldown", h.cooldown, "error", err)
			if err := h.sleep(ctx, h.cooldown); err != nil {
				h.logger.Debug("cooldown interrupted", "artist", name)
			}
		default:
			result.Outcome = models.OutcomeFailed
			h.logger.Error("harvest failed", "artist", name, "error", err)
		}
		return result
	}

	records := make([]models.LyricRecord, 0, len(songs))
	for _, raw := range songs {
		record, err := Extract(raw)
		if err != nil {
			result.Malformed++
			h.logger.Warn("skipping malformed song", "artist", name, "song", raw.ID, "error", err)
			continue
		}
		records = append(records, record)
	}

	result.Records = records
	if len(records) == 0 && result.Malformed > 0 {
		result.Outcome = models.OutcomeFailed
		result.Err = fmt.Errorf("%w: all %d songs of %s were malformed", shared.ErrMalformedRecord, result.Malformed, name)
		h.logger.Error("no usable songs, every record malformed", "artist", name, "malformed", result.Malformed)
		return result
	}
	if len(records) == 0 {
		result.Outcome = models.OutcomeEmpty
		h.logger.Info("no usable songs", "artist", name, "fetched", len(songs))
		return result
	}

	result.Outcome = models.OutcomeHarvested
	h.logger.Info("harvested", "artist", name, "records", len(records), "malformed", result.Malformed)
	return result
}
