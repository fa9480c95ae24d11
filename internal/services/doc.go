// Package services defines the [LyricsSource] interface for lyrics providers and implements it for Genius.
//
// # Source Interface
//
// A source resolves an artist name and returns [RawSong] values: the provider payload plus scraped lyrics.
// Mapping payloads into dataset rows is left to the tasks package.
//
// # Genius Implementation
//
// [GeniusService] talks to the Genius REST API with a client access token carried by an [oauth2.StaticTokenSource].
//
//  1. GET /search resolves the artist
//  2. GET /artists/{id}/songs pages through the catalog (sorted by popularity by default)
//  3. GET /songs/{id} fetches the full payload when full info is enabled
//  4. the song page is scraped for lyrics containers with golang.org/x/net/html
//
// Every request waits on a [rate.Limiter]. Network errors, 429 and 5xx responses are retried a fixed number of times.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrArtistNotFound] : search returned no artist
//   - [shared.ErrTransientUpstream] : retries exhausted on network errors, 429 or 5xx
//   - [shared.ErrInvalidCredentials] : 401/403, the token was rejected
//   - [shared.ErrUnknownUpstream] : anything else
package services
