// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/dzdedupe/internal/models"
	"github.com/desertthunder/dzdedupe/internal/shared"
)

// MockService is a test double for [services.Service].
//
// Like the real client it refuses every call once an authentication error was returned.
// Safe for concurrent use.
type MockService struct {
	Playlists    []models.Playlist
	Tracks       map[string][]models.Track // By playlist id
	AuthErr      error
	PlaylistsErr error
	TracksErr    map[string]error // By playlist id
	RemoveErr    map[string]error // By track id
	RemoveDelay  time.Duration

	// BeforeFetch runs before tracks of a playlist are served; its error is returned instead.
	BeforeFetch func(playlist models.Playlist) error

	mu          sync.Mutex
	aborted     bool
	calls       int
	fetched     []string
	removed     map[string][]string
	inFlight    int
	maxInFlight int
}

func (m *MockService) Name() string { return "mock" }

// begin records a network call, or refuses it after an authentication failure.
func (m *MockService) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.aborted {
		return fmt.Errorf("%w: session rejected earlier", shared.ErrAuthentication)
	}
	m.calls++
	return nil
}

func (m *MockService) finish(err error) error {
	if errors.Is(err, shared.ErrAuthentication) {
		m.mu.Lock()
		m.aborted = true
		m.mu.Unlock()
	}
	return err
}

func (m *MockService) Authenticate(ctx context.Context, credentials shared.CredentialProvider) error {
	if credentials != nil {
		if _, err := credentials.Token(ctx); err != nil {
			return m.finish(err)
		}
	}
	if err := m.begin(); err != nil {
		return err
	}
	return m.finish(m.AuthErr)
}

func (m *MockService) FetchPlaylists(ctx context.Context) ([]models.Playlist, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}
	if m.PlaylistsErr != nil {
		return nil, m.finish(m.PlaylistsErr)
	}
	return slices.Clone(m.Playlists), nil
}

func (m *MockService) FetchTracks(ctx context.Context, playlist models.Playlist) ([]models.Track, error) {
	if err := m.begin(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.fetched = append(m.fetched, playlist.ID)
	m.mu.Unlock()

	if m.BeforeFetch != nil {
		if err := m.BeforeFetch(playlist); err != nil {
			return nil, m.finish(err)
		}
	}
	if err := m.TracksErr[playlist.ID]; err != nil {
		return nil, m.finish(err)
	}
	return slices.Clone(m.Tracks[playlist.ID]), nil
}

func (m *MockService) RemoveTrack(ctx context.Context, playlist models.Playlist, trackID string) error {
	if err := m.begin(); err != nil {
		return err
	}

	m.mu.Lock()
	m.inFlight++
	m.maxInFlight = max(m.maxInFlight, m.inFlight)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.RemoveDelay > 0 {
		select {
		case <-time.After(m.RemoveDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := m.RemoveErr[trackID]; err != nil {
		return m.finish(err)
	}

	m.mu.Lock()
	if m.removed == nil {
		m.removed = make(map[string][]string)
	}
	m.removed[playlist.ID] = append(m.removed[playlist.ID], trackID)
	m.mu.Unlock()
	return nil
}

// Calls returns the number of calls that reached the service.
func (m *MockService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Fetched returns the ids of playlists whose tracks were requested, in call order.
func (m *MockService) Fetched() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.fetched)
}

// Removed returns the sorted ids of tracks removed from a playlist.
func (m *MockService) Removed(playlistID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := slices.Clone(m.removed[playlistID])
	slices.Sort(ids)
	return ids
}

// MaxInFlight returns the highest number of concurrent RemoveTrack calls observed.
func (m *MockService) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
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

// MockRoundTripper allows custom HTTP responses for testing and counts requests
type MockRoundTripper struct {
	response *http.Response
	err      error

	mu    sync.Mutex
	calls int
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.response, m.err
}

func (m *MockRoundTripper) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
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
