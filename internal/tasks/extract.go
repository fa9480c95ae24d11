package tasks

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/lyx/internal/models"
	"github.com/desertthunder/lyx/internal/services"
	"github.com/desertthunder/lyx/internal/shared"
)

// songPayload is the subset of a Genius song payload mapped into a [models.LyricRecord].
//
// Pointer fields distinguish absent (or null) members from empty ones.
type songPayload struct {
	Title         *string `json:"title"`
	FullTitle     *string `json:"full_title"`
	ReleaseDate   *string `json:"release_date"`
	PrimaryArtist *struct {
		Name *string `json:"name"`
	} `json:"primary_artist"`
}

func nonEmpty(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	v := strings.TrimSpace(*s)
	return v, v != ""
}

// Extract maps a raw song to a dataset record.
//
// The track name is full_title, falling back to title. A missing name, artist or lyrics
// (or a body that is not a JSON object) yields [shared.ErrMalformedRecord].
func Extract(raw services.RawSong) (models.LyricRecord, error) {
	var payload songPayload
	if err := json.Unmarshal(raw.Body, &payload); err != nil {
		return models.LyricRecord{}, fmt.Errorf("%w: song %d: %v", shared.ErrMalformedRecord, raw.ID, err)
	}

	name, ok := nonEmpty(payload.FullTitle)
	if !ok {
		name, ok = nonEmpty(payload.Title)
	}
	if !ok {
		return models.LyricRecord{}, fmt.Errorf("%w: song %d has no title", shared.ErrMalformedRecord, raw.ID)
	}

	var artist string
	if payload.PrimaryArtist != nil {
		artist, ok = nonEmpty(payload.PrimaryArtist.Name)
	} else {
		ok = false
	}
	if !ok {
		return models.LyricRecord{}, fmt.Errorf("%w: song %d has no artist", shared.ErrMalformedRecord, raw.ID)
	}

	if raw.Lyrics == nil {
		return models.LyricRecord{}, fmt.Errorf("%w: song %d has no lyrics", shared.ErrMalformedRecord, raw.ID)
	}

	releaseDate, _ := nonEmpty(payload.ReleaseDate)
	return models.NewLyricRecord(name, artist, *raw.Lyrics, releaseDate), nil
}
