// package services defines the LyricsSource interface for lyrics providers and implements it for Genius
package services

import (
	"context"
	"encoding/json"
)

// LyricsSource is the upstream the harvester pulls songs from.
type LyricsSource interface {
	// FetchArtistSongs returns up to maxSongs raw song records for the named artist.
	//
	// Errors wrap one of [shared.ErrArtistNotFound], [shared.ErrTransientUpstream], [shared.ErrInvalidCredentials] or [shared.ErrUnknownUpstream].
	// No songs are returned alongside an error.
	FetchArtistSongs(ctx context.Context, name string, maxSongs int) ([]RawSong, error)

	// Name returns the name of the source (e.g., "Genius")
	Name() string
}

// RawSong is a song exactly as the provider describes it.
//
// Body is the provider's JSON payload; Lyrics is nil when the song page carried no lyrics.
type RawSong struct {
	ID     int
	URL    string
	Body   json.RawMessage
	Lyrics *string
}
