// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/lyx/internal/services"
	"github.com/desertthunder/lyx/internal/shared"
)

// MockSource is a test double for [services.LyricsSource].
//
// Songs and Errors are keyed by the normalized artist name; artists in neither map are not found.
type MockSource struct {
	Songs  map[string][]services.RawSong
	Errors map[string]error

	mu    sync.Mutex
	calls []string
}

// NewMockSource creates an empty MockSource.
func NewMockSource() *MockSource {
	return &MockSource{Songs: map[string][]services.RawSong{}, Errors: map[string]error{}}
}

// WithSongs registers songs for artist.
func (m *MockSource) WithSongs(artist string, songs ...services.RawSong) *MockSource {
	m.Songs[shared.NormalizeArtist(artist)] = songs
	return m
}

// WithError makes every fetch of artist fail with err.
func (m *MockSource) WithError(artist string, err error) *MockSource {
	m.Errors[shared.NormalizeArtist(artist)] = err
	return m
}

func (m *MockSource) FetchArtistSongs(ctx context.Context, name string, maxSongs int) ([]services.RawSong, error) {
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := shared.NormalizeArtist(name)
	if err, ok := m.Errors[key]; ok {
		return nil, err
	}
	songs, ok := m.Songs[key]
	if !ok {
		return nil, shared.ErrArtistNotFound
	}
	if maxSongs > 0 && len(songs) > maxSongs {
		songs = songs[:maxSongs]
	}
	return songs, nil
}

func (m *MockSource) Name() string { return "mock" }

// Calls returns the artist names fetched so far, in order.
func (m *MockSource) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Song builds a well-formed raw song in the Genius payload shape.
func Song(id int, title, artist, lyrics, releaseDate string) services.RawSong {
	body := map[string]any{
		"id":             id,
		"title":          title,
		"full_title":     title + " by " + artist,
		"primary_artist": map[string]any{"name": artist},
	}
	if releaseDate != "" {
		body["release_date"] = releaseDate
	}
	data, _ := json.Marshal(body)
	return services.RawSong{ID: id, Body: data, Lyrics: &lyrics}
}

// MalformedSong builds a raw song whose payload cannot be mapped to a record.
func MalformedSong(id int) services.RawSong {
	lyrics := "la la"
	return services.RawSong{ID: id, Body: json.RawMessage(`{"id": 1, "title": null}`), Lyrics: &lyrics}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
