// Genius API implementation of [LyricsSource]
//
// Genius API response types based on https://docs.genius.com/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/lyx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultGeniusBaseURL = "https://api.genius.com"
	geniusPerPage        = 50
	defaultSort          = "popularity"
)

// nonSongTerms match titles Genius hosts that are not songs.
var nonSongTerms = []string{
	`track\s?list`,
	`album art(work)?`,
	`liner notes`,
	`booklet`,
	`credits`,
	`interview`,
	`skit`,
	`instrumental`,
	`setlist`,
}

// GeniusArtist represents an artist in Genius responses.
type GeniusArtist struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// GeniusSong represents the song fields used for filtering.
type GeniusSong struct {
	ID            int          `json:"id"`
	Title         string       `json:"title"`
	FullTitle     string       `json:"full_title"`
	URL           string       `json:"url"`
	LyricsState   string       `json:"lyrics_state"`
	Instrumental  bool         `json:"instrumental"`
	ReleaseDate   *string      `json:"release_date"`
	PrimaryArtist GeniusArtist `json:"primary_artist"`
}

type searchHit struct {
	Type   string     `json:"type"`
	Result GeniusSong `json:"result"`
}

// GeniusSongPage is one page of an artist's songs.
type GeniusSongPage struct {
	Songs    []GeniusSong
	Raw      []json.RawMessage
	NextPage *int
}

// GeniusOpts configures a [GeniusService].
type GeniusOpts struct {
	AccessToken          string
	BaseURL              string
	HTTPClient           *http.Client // base client; the bearer token transport wraps its Transport
	Retries              int
	RequestsPerSecond    float64
	Timeout              time.Duration
	Sort                 string
	FullInfo             bool
	SkipNonSongs         bool
	RemoveSectionHeaders bool
	ExcludedTerms        []string
}

// GeniusService implements [LyricsSource] for the Genius API.
type GeniusService struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	retries      int
	sort         string
	fullInfo     bool
	skipNonSongs bool
	stripHeaders bool
	nonSong      *regexp.Regexp
	excluded     *regexp.Regexp
}

// NewGeniusService creates a Genius client authenticated with opts.AccessToken.
func NewGeniusService(opts GeniusOpts) (*GeniusService, error) {
	token := strings.TrimSpace(opts.AccessToken)
	if token == "" {
		return nil, fmt.Errorf("%w: genius access token", shared.ErrMissingCredentials)
	}

	if opts.BaseURL == "" {
		opts.BaseURL = defaultGeniusBaseURL
	}
	if opts.Sort == "" {
		opts.Sort = defaultSort
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}

	ctx := context.Background()
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	client.Timeout = opts.Timeout

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &GeniusService{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		httpClient:   client,
		limiter:      rate.NewLimiter(limit, 1),
		retries:      opts.Retries,
		sort:         opts.Sort,
		fullInfo:     opts.FullInfo,
		skipNonSongs: opts.SkipNonSongs,
		stripHeaders: opts.RemoveSectionHeaders,
		nonSong:      termsPattern(nonSongTerms, false),
		excluded:     termsPattern(opts.ExcludedTerms, true),
	}, nil
}

// termsPattern compiles terms into one case-insensitive alternation; literal terms are quoted.
func termsPattern(terms []string, literal bool) *regexp.Regexp {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		if strings.TrimSpace(t) == "" {
			continue
		}
		if literal {
			t = regexp.QuoteMeta(t)
		}
		parts = append(parts, t)
	}
	if len(parts) == 0 {
		return nil
	}
	return regexp.MustCompile(`(?i)(` + strings.Join(parts, "|") + `)`)
}

func (g *GeniusService) Name() string {
	return "Genius"
}

// statusError is a non-2xx response; it unwraps to the sentinel its status maps to.
type statusError struct {
	Code int
	kind error
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: status %d", e.kind, e.Code)
}

func (e *statusError) Unwrap() error {
	return e.kind
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &statusError{Code: code, kind: shared.ErrInvalidCredentials}
	case code == http.StatusTooManyRequests || code >= 500:
		return &statusError{Code: code, kind: shared.ErrTransientUpstream}
	default:
		return &statusError{Code: code, kind: shared.ErrUnknownUpstream}
	}
}

// retryable reports whether err is a network failure, a 429 or a 5xx.
func retryable(err error) bool {
	return !errors.Is(err, shared.ErrInvalidCredentials) && !errors.Is(err, shared.ErrUnknownUpstream)
}

// get performs a paced GET against rawURL, retrying transient failures, and returns the body of a 2xx response.
func (g *GeniusService) get(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= g.retries; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		body, err := g.doGet(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
	}

	if errors.Is(lastErr, shared.ErrTransientUpstream) {
		return nil, fmt.Errorf("after %d attempts: %w", g.retries+1, lastErr)
	}
	return nil, fmt.Errorf("%w: after %d attempts: %v", shared.ErrTransientUpstream, g.retries+1, lastErr)
}

func (g *GeniusService) doGet(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", shared.ErrUnknownUpstream, err)
	}
	req.Header.Set("Accept", "application/json, text/html")
	req.Header.Set("User-Agent", "lyx")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, classifyStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// doRequest calls an API endpoint and decodes the "response" member of the Genius envelope into result.
func (g *GeniusService) doRequest(ctx context.Context, endpoint string, query url.Values, result any) error {
	apiURL := g.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	body, err := g.get(ctx, apiURL)
	if err != nil {
		return err
	}

	var envelope struct {
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", shared.ErrUnknownUpstream, err)
	}
	if result != nil {
		if err := json.Unmarshal(envelope.Response, result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrUnknownUpstream, err)
		}
	}
	return nil
}

// SearchArtist resolves name to a Genius artist.
//
// The first hit whose primary artist matches the normalized name wins; otherwise the first hit's primary artist.
func (g *GeniusService) SearchArtist(ctx context.Context, name string) (*GeniusArtist, error) {
	var response struct {
		Hits []searchHit `json:"hits"`
	}
	if err := g.doRequest(ctx, "/search", url.Values{"q": {name}}, &response); err != nil {
		return nil, err
	}

	want := shared.NormalizeArtist(name)
	var fallback *GeniusArtist
	for _, hit := range response.Hits {
		if hit.Type != "" && hit.Type != "song" {
			continue
		}
		artist := hit.Result.PrimaryArtist
		if artist.ID == 0 {
			continue
		}
		if shared.NormalizeArtist(artist.Name) == want {
			return &artist, nil
		}
		if fallback == nil {
			fallback = &artist
		}
	}

	if fallback == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrArtistNotFound, name)
	}
	return fallback, nil
}

// ArtistSongs returns one page of the artist's songs.
func (g *GeniusService) ArtistSongs(ctx context.Context, artistID, page, perPage int) (*GeniusSongPage, error) {
	if perPage <= 0 || perPage > geniusPerPage {
		perPage = geniusPerPage
	}
	if page <= 0 {
		page = 1
	}

	query := url.Values{
		"sort":     {g.sort},
		"per_page": {strconv.Itoa(perPage)},
		"page":     {strconv.Itoa(page)},
	}

	var response struct {
		Songs    []json.RawMessage `json:"songs"`
		NextPage *int              `json:"next_page"`
	}
	if err := g.doRequest(ctx, fmt.Sprintf("/artists/%d/songs", artistID), query, &response); err != nil {
		return nil, err
	}

	result := &GeniusSongPage{
		Songs:    make([]GeniusSong, 0, len(response.Songs)),
		Raw:      make([]json.RawMessage, 0, len(response.Songs)),
		NextPage: response.NextPage,
	}
	for _, raw := range response.Songs {
		var song GeniusSong
		if err := json.Unmarshal(raw, &song); err != nil {
			continue
		}
		result.Songs = append(result.Songs, song)
		result.Raw = append(result.Raw, raw)
	}
	return result, nil
}

// Song returns the full JSON payload of a song.
func (g *GeniusService) Song(ctx context.Context, songID int) (json.RawMessage, error) {
	var response struct {
		Song json.RawMessage `json:"song"`
	}
	if err := g.doRequest(ctx, fmt.Sprintf("/songs/%d", songID), url.Values{"text_format": {"plain"}}, &response); err != nil {
		return nil, err
	}
	return response.Song, nil
}

// Lyrics scrapes the lyrics from a song page. A page without lyrics (or a 404) returns nil.
func (g *GeniusService) Lyrics(ctx context.Context, pageURL string) (*string, error) {
	if pageURL == "" {
		return nil, nil
	}

	body, err := g.get(ctx, pageURL)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	return ExtractLyrics(strings.NewReader(string(body)), g.stripHeaders)
}

// keep applies the non-song and excluded-term filters to a song.
func (g *GeniusService) keep(song GeniusSong) bool {
	if g.skipNonSongs {
		if song.LyricsState != "" && song.LyricsState != "complete" {
			return false
		}
		if song.Instrumental {
			return false
		}
		if g.nonSong != nil && g.nonSong.MatchString(song.Title) {
			return false
		}
	}
	if g.excluded != nil && g.excluded.MatchString(song.Title) {
		return false
	}
	return true
}

// Catalog lists up to limit songs of an artist that pass the harvest filters, without fetching lyrics.
func (g *GeniusService) Catalog(ctx context.Context, artistID, limit int) ([]GeniusSong, error) {
	songs := []GeniusSong{}
	page := 1

	for {
		p, err := g.ArtistSongs(ctx, artistID, page, geniusPerPage)
		if err != nil {
			return nil, err
		}

		for _, song := range p.Songs {
			if !g.keep(song) {
				continue
			}
			songs = append(songs, song)
			if limit > 0 && len(songs) >= limit {
				return songs, nil
			}
		}

		if p.NextPage == nil || *p.NextPage <= page {
			return songs, nil
		}
		page = *p.NextPage
	}
}

// FetchArtistSongs resolves the artist and collects up to maxSongs songs with their lyrics.
//
// A non-positive maxSongs collects the whole catalog.
func (g *GeniusService) FetchArtistSongs(ctx context.Context, name string, maxSongs int) ([]RawSong, error) {
	artist, err := g.SearchArtist(ctx, name)
	if err != nil {
		return nil, err
	}

	songs := []RawSong{}
	page := 1

	for {
		p, err := g.ArtistSongs(ctx, artist.ID, page, geniusPerPage)
		if err != nil {
			return nil, err
		}

		for i, song := range p.Songs {
			if !g.keep(song) {
				continue
			}

			body := p.Raw[i]
			if g.fullInfo {
				if body, err = g.Song(ctx, song.ID); err != nil {
					return nil, err
				}
			}

			lyrics, err := g.Lyrics(ctx, song.URL)
			if err != nil {
				return nil, err
			}

			songs = append(songs, RawSong{ID: song.ID, URL: song.URL, Body: body, Lyrics: lyrics})
			if maxSongs > 0 && len(songs) >= maxSongs {
				return songs, nil
			}
		}

		if p.NextPage == nil || *p.NextPage <= page {
			break
		}
		page = *p.NextPage
	}

	return songs, nil
}
