package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/desertthunder/dzdedupe/internal/models"
	"github.com/desertthunder/dzdedupe/internal/shared"
	tu "github.com/desertthunder/dzdedupe/internal/testing"
)

// fakeGateway serves gw-light methods from per-method handlers and counts calls.
type fakeGateway struct {
	mu       sync.Mutex
	calls    map[string]int
	lastSID  string
	lastAPI  string
	bodies   map[string][]map[string]any
	handlers map[string]func(w http.ResponseWriter, body map[string]any, call int)
}

func newFakeGateway(t *testing.T) (*fakeGateway, *httptest.Server) {
	t.Helper()

	g := &fakeGateway{
		calls:    map[string]int{},
		bodies:   map[string][]map[string]any{},
		handlers: map[string]func(http.ResponseWriter, map[string]any, int){},
	}
	g.handlers[methodUserData] = func(w http.ResponseWriter, _ map[string]any, _ int) {
		writeResults(w, map[string]any{
			"USER":      map[string]any{"USER_ID": 1234, "BLOG_NAME": "tester"},
			"checkForm": "api-token",
		})
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := r.URL.Query().Get("method")

		var body map[string]any
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &body)

		g.mu.Lock()
		if c, err := r.Cookie("sid"); err == nil {
			g.lastSID = c.Value
		}
		g.lastAPI = r.URL.Query().Get("api_token")
		g.calls[method]++
		call := g.calls[method]
		g.bodies[method] = append(g.bodies[method], body)
		handler, ok := g.handlers[method]
		g.mu.Unlock()

		if !ok {
			http.Error(w, "unknown method", http.StatusNotFound)
			return
		}
		handler(w, body, call)
	}))
	t.Cleanup(server.Close)

	return g, server
}

func (g *fakeGateway) count(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[method]
}

func (g *fakeGateway) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

func (g *fakeGateway) handle(method string, h func(w http.ResponseWriter, body map[string]any, call int)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[method] = h
}

func writeResults(w http.ResponseWriter, results any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"error": []any{}, "results": results})
}

func writeGatewayError(w http.ResponseWriter, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{code: message}, "results": map[string]any{}})
}

func songs(from, to int) []map[string]any {
	out := []map[string]any{}
	for i := from; i < to; i++ {
		out = append(out, map[string]any{
			"SNG_ID":    fmt.Sprint(100 + i),
			"SNG_TITLE": fmt.Sprintf("Song %d", i),
			"ISRC":      fmt.Sprintf("ISRC%04d", i),
			"ART_ID":    7,
			"ART_NAME":  "Artist",
			"DURATION":  "180",
		})
	}
	return out
}

func newTestService(t *testing.T, server *httptest.Server, pageSize int) (*DeezerService, *Metrics) {
	t.Helper()

	metrics := NewMetrics(prometheus.NewRegistry())
	logger := shared.NewLogger(io.Discard)
	logger.SetLevel(log.FatalLevel)

	srv := NewDeezerService(DeezerOpts{
		BaseURL:  server.URL,
		Logger:   logger,
		Retry:    RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
		Timeout:  time.Second,
		PageSize: pageSize,
		Metrics:  metrics,
	})
	return srv, metrics
}

func authenticated(t *testing.T, srv *DeezerService) {
	t.Helper()
	if err := srv.Authenticate(context.Background(), shared.StaticCredential("session-id")); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
}

var testPlaylist = models.Playlist{ID: "555", Name: "Road Trip"}

func TestDeezerService(t *testing.T) {
	t.Run("Name", func(t *testing.T) {
		srv := NewDeezerService(DeezerOpts{})
		if srv.Name() != "Deezer" {
			t.Errorf("expected service name 'Deezer', got %s", srv.Name())
		}
	})

	t.Run("From Config", func(t *testing.T) {
		client := &http.Client{}
		cfg := shared.DefaultConfig().API
		cfg.BackoffMax = shared.Duration{}

		srv := NewDeezerServiceFromConfig(cfg, client, shared.NewLogger(io.Discard), nil)
		if srv.httpClient != client {
			t.Error("expected the given http client to be used")
		}
		if srv.baseURL != cfg.BaseURL || srv.pageSize != cfg.PageSize || srv.timeout != cfg.Timeout.Duration {
			t.Errorf("unexpected client settings: %s %d %v", srv.baseURL, srv.pageSize, srv.timeout)
		}
		want := RetryPolicy{MaxAttempts: cfg.MaxAttempts, BaseDelay: cfg.BackoffBase.Duration}
		if srv.retry != want {
			t.Errorf("expected retry policy %+v, got %+v", want, srv.retry)
		}
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("Valid Session", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 10)

			g.handle(methodUserMenu, func(w http.ResponseWriter, _ map[string]any, _ int) {
				writeResults(w, map[string]any{"PLAYLISTS": map[string]any{"data": []any{}, "total": 0}})
			})

			authenticated(t, srv)
			if srv.UserID() != "1234" {
				t.Errorf("expected user id 1234, got %q", srv.UserID())
			}
			if srv.UserName() != "tester" {
				t.Errorf("expected user name tester, got %q", srv.UserName())
			}

			if _, err := srv.FetchPlaylists(context.Background()); err != nil {
				t.Fatalf("fetch playlists: %v", err)
			}
			g.mu.Lock()
			gotCookie, gotToken := g.lastSID, g.lastAPI
			g.mu.Unlock()
			if gotCookie != "session-id" {
				t.Errorf("expected sid cookie session-id, got %q", gotCookie)
			}
			if gotToken != "api-token" {
				t.Errorf("expected api token from checkForm, got %q", gotToken)
			}
			if g.count(methodUserMenu) != 1 {
				t.Errorf("expected 1 userMenu call, got %d", g.count(methodUserMenu))
			}
		})

		t.Run("Not Logged In", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 10)
			g.handle(methodUserData, func(w http.ResponseWriter, _ map[string]any, _ int) {
				writeResults(w, map[string]any{"USER": map[string]any{"USER_ID": 0}, "checkForm": "x"})
			})

			err := srv.Authenticate(context.Background(), shared.StaticCredential("expired"))
			if !errors.Is(err, shared.ErrAuthentication) {
				t.Fatalf("expected ErrAuthentication, got %v", err)
			}

			before := g.total()
			_, err = srv.FetchPlaylists(context.Background())
			if !errors.Is(err, shared.ErrAuthentication) {
				t.Errorf("expected ErrAuthentication after abort, got %v", err)
			}
			if g.total() != before {
				t.Errorf("expected no network call after abort, got %d new calls", g.total()-before)
			}
		})

		t.Run("Missing Credentials", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 10)

			err := srv.Authenticate(context.Background(), shared.StaticCredential(""))
			if !errors.Is(err, shared.ErrAuthentication) {
				t.Errorf("expected ErrAuthentication, got %v", err)
			}
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
			if g.total() != 0 {
				t.Errorf("expected no network calls, got %d", g.total())
			}
		})

		t.Run("Calls Before Authenticate", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 10)

			_, err := srv.FetchTracks(context.Background(), testPlaylist)
			if !errors.Is(err, shared.ErrAuthentication) {
				t.Errorf("expected ErrAuthentication, got %v", err)
			}
			if g.total() != 0 {
				t.Errorf("expected no network calls, got %d", g.total())
			}
		})
	})

	t.Run("FetchPlaylists", func(t *testing.T) {
		t.Run("Favorites First", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 10)
			g.handle(methodUserMenu, func(w http.ResponseWriter, _ map[string]any, _ int) {
				writeResults(w, map[string]any{"PLAYLISTS": map[string]any{
					"data": []map[string]any{
						{"PLAYLIST_ID": "11", "TITLE": "Gym", "NB_SONG": 12, "TYPE": "0"},
						{"PLAYLIST_ID": 22, "TITLE": "Loved Tracks", "NB_SONG": "40", "TYPE": "4"},
						{"PLAYLIST_ID": "33", "TITLE": "Chill", "NB_SONG": 3, "TYPE": "0"},
					},
					"total": 3,
				}})
			})
			authenticated(t, srv)

			playlists, err := srv.FetchPlaylists(context.Background())
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(playlists) != 3 {
				t.Fatalf("expected 3 playlists, got %d", len(playlists))
			}

			want := []string{"22", "11", "33"}
			for i, p := range playlists {
				if p.ID != want[i] {
					t.Errorf("position %d: expected playlist %s, got %s", i, want[i], p.ID)
				}
			}
			if !playlists[0].IsFavorites || playlists[0].TrackCount != 40 {
				t.Errorf("expected favorites with 40 tracks first, got %+v", playlists[0])
			}
		})
	})

	t.Run("FetchTracks", func(t *testing.T) {
		t.Run("Pages By Total", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 2)
			g.handle(methodPlaylistSongs, func(w http.ResponseWriter, body map[string]any, _ int) {
				start := int(body["start"].(float64))
				nb := int(body["nb"].(float64))
				end := min(start+nb, 5)
				writeResults(w, map[string]any{"data": songs(start, end), "count": end - start, "total": 5})
			})
			authenticated(t, srv)

			tracks, err := srv.FetchTracks(context.Background(), testPlaylist)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 5 {
				t.Fatalf("expected 5 tracks, got %d", len(tracks))
			}
			for i, track := range tracks {
				if track.Position != i {
					t.Errorf("track %d: expected position %d, got %d", i, i, track.Position)
				}
				if track.ID != fmt.Sprint(100+i) {
					t.Errorf("track %d: expected id %d, got %s", i, 100+i, track.ID)
				}
			}
			if tracks[0].Duration != 180 || tracks[0].ArtistID != "7" {
				t.Errorf("expected mapped duration and artist id, got %+v", tracks[0])
			}
			if g.count(methodPlaylistSongs) != 3 {
				t.Errorf("expected 3 page requests, got %d", g.count(methodPlaylistSongs))
			}
		})

		t.Run("Pages Until Short Page", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 2)
			g.handle(methodPlaylistSongs, func(w http.ResponseWriter, body map[string]any, _ int) {
				start := int(body["start"].(float64))
				end := min(start+2, 4)
				writeResults(w, map[string]any{"data": songs(start, end)})
			})
			authenticated(t, srv)

			tracks, err := srv.FetchTracks(context.Background(), testPlaylist)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 4 {
				t.Errorf("expected 4 tracks, got %d", len(tracks))
			}
			if g.count(methodPlaylistSongs) != 3 {
				t.Errorf("expected 3 page requests, got %d", g.count(methodPlaylistSongs))
			}
		})

		t.Run("Empty Playlist", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 2)
			g.handle(methodPlaylistSongs, func(w http.ResponseWriter, _ map[string]any, _ int) {
				writeResults(w, map[string]any{"data": []any{}, "total": 0})
			})
			authenticated(t, srv)

			tracks, err := srv.FetchTracks(context.Background(), testPlaylist)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 0 {
				t.Errorf("expected no tracks, got %d", len(tracks))
			}
		})

		t.Run("Favorites", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 10)
			g.handle(methodFavoriteSongs, func(w http.ResponseWriter, _ map[string]any, _ int) {
				writeResults(w, map[string]any{"data": songs(0, 2), "total": 2})
			})
			authenticated(t, srv)

			tracks, err := srv.FetchTracks(context.Background(), models.Playlist{ID: "22", IsFavorites: true})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(tracks) != 2 {
				t.Errorf("expected 2 tracks, got %d", len(tracks))
			}
			if g.count(methodPlaylistSongs) != 0 {
				t.Error("expected favorites to bypass playlist.getSongs")
			}

			g.mu.Lock()
			body := g.bodies[methodFavoriteSongs][0]
			g.mu.Unlock()
			if body["user_id"] != "1234" {
				t.Errorf("expected user_id 1234, got %v", body["user_id"])
			}
		})

		t.Run("Malformed Response", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 10)
			g.handle(methodPlaylistSongs, func(w http.ResponseWriter, _ map[string]any, _ int) {
				_, _ = io.WriteString(w, `{"error": [], "results": {"data": "nope"`)
			})
			authenticated(t, srv)

			_, err := srv.FetchTracks(context.Background(), testPlaylist)
			if !errors.Is(err, shared.ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
			if !errors.Is(err, shared.ErrFetchFailure) {
				t.Errorf("expected ErrFetchFailure, got %v", err)
			}
			if g.count(methodPlaylistSongs) != 1 {
				t.Errorf("expected no retry for malformed response, got %d calls", g.count(methodPlaylistSongs))
			}
		})
	})

	t.Run("Retries", func(t *testing.T) {
		t.Run("Recovers From Server Error", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, metrics := newTestService(t, server, 10)
			g.handle(methodPlaylistSongs, func(w http.ResponseWriter, _ map[string]any, call int) {
				if call == 1 {
					http.Error(w, "boom", http.StatusInternalServerError)
					return
				}
				writeResults(w, map[string]any{"data": songs(0, 1), "total": 1})
			})
			authenticated(t, srv)

			tracks, err := srv.FetchTracks(context.Background(), testPlaylist)
			if err != nil {
				t.Fatalf("expected retry to succeed, got %v", err)
			}
			if len(tracks) != 1 {
				t.Errorf("expected 1 track, got %d", len(tracks))
			}
			if got := testutil.ToFloat64(metrics.RetriesTotal.WithLabelValues(methodPlaylistSongs)); got != 1 {
				t.Errorf("expected 1 retry recorded, got %v", got)
			}
			if got := testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues(methodPlaylistSongs, "transient")); got != 1 {
				t.Errorf("expected 1 transient request recorded, got %v", got)
			}
		})

		t.Run("Rate Limited Then Exhausted", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 10)
			g.handle(methodPlaylistSongs, func(w http.ResponseWriter, _ map[string]any, _ int) {
				http.Error(w, "slow down", http.StatusTooManyRequests)
			})
			authenticated(t, srv)

			_, err := srv.FetchTracks(context.Background(), testPlaylist)
			if !errors.Is(err, shared.ErrTransient) {
				t.Errorf("expected ErrTransient, got %v", err)
			}
			if !errors.Is(err, shared.ErrFetchFailure) {
				t.Errorf("expected ErrFetchFailure, got %v", err)
			}
			if g.count(methodPlaylistSongs) != 3 {
				t.Errorf("expected 3 attempts, got %d", g.count(methodPlaylistSongs))
			}
		})

		t.Run("Quota Error Code", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 10)
			g.handle(methodPlaylistSongs, func(w http.ResponseWriter, _ map[string]any, call int) {
				if call < 3 {
					writeGatewayError(w, "QUOTA_ERROR", "too many requests")
					return
				}
				writeResults(w, map[string]any{"data": songs(0, 2), "total": 2})
			})
			authenticated(t, srv)

			tracks, err := srv.FetchTracks(context.Background(), testPlaylist)
			if err != nil {
				t.Fatalf("expected success on third attempt, got %v", err)
			}
			if len(tracks) != 2 {
				t.Errorf("expected 2 tracks, got %d", len(tracks))
			}
		})

		t.Run("Timeout", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 10)
			srv.timeout = 20 * time.Millisecond
			srv.retry.MaxAttempts = 2
			g.handle(methodPlaylistSongs, func(w http.ResponseWriter, _ map[string]any, _ int) {
				time.Sleep(200 * time.Millisecond)
				writeResults(w, map[string]any{"data": []any{}})
			})
			authenticated(t, srv)

			_, err := srv.FetchTracks(context.Background(), testPlaylist)
			if !errors.Is(err, shared.ErrTransient) {
				t.Errorf("expected ErrTransient after timeouts, got %v", err)
			}
			if g.count(methodPlaylistSongs) != 2 {
				t.Errorf("expected 2 attempts, got %d", g.count(methodPlaylistSongs))
			}
		})

		t.Run("Network Error", func(t *testing.T) {
			rt := tu.NewMockRoundTripper(nil, errors.New("connection refused"))
			srv := NewDeezerService(DeezerOpts{
				HTTPClient: &http.Client{Transport: rt},
				Logger:     shared.NewLogger(io.Discard),
				Retry:      RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
			})
			srv.sid = "session-id"

			_, err := srv.FetchTracks(context.Background(), testPlaylist)
			if !errors.Is(err, shared.ErrTransient) {
				t.Errorf("expected ErrTransient, got %v", err)
			}
			if rt.Calls() != 3 {
				t.Errorf("expected 3 attempts, got %d", rt.Calls())
			}
		})

		t.Run("Body Read Failure", func(t *testing.T) {
			rt := tu.NewMockRoundTripper(&http.Response{StatusCode: http.StatusOK, Body: &tu.FCloser{}}, nil)
			srv := NewDeezerService(DeezerOpts{
				HTTPClient: &http.Client{Transport: rt},
				Logger:     shared.NewLogger(io.Discard),
				Retry:      RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
			})
			srv.sid = "session-id"

			_, err := srv.FetchTracks(context.Background(), testPlaylist)
			if !errors.Is(err, shared.ErrTransient) {
				t.Errorf("expected ErrTransient, got %v", err)
			}
			if rt.Calls() != 2 {
				t.Errorf("expected 2 attempts, got %d", rt.Calls())
			}
		})

		t.Run("No Retry On Client Error", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 10)
			g.handle(methodPlaylistSongs, func(w http.ResponseWriter, _ map[string]any, _ int) {
				http.Error(w, "bad", http.StatusBadRequest)
			})
			authenticated(t, srv)

			_, err := srv.FetchTracks(context.Background(), testPlaylist)
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
				t.Errorf("expected APIError with status 400, got %v", err)
			}
			if g.count(methodPlaylistSongs) != 1 {
				t.Errorf("expected 1 attempt, got %d", g.count(methodPlaylistSongs))
			}
		})

		t.Run("Canceled Context", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 10)
			g.handle(methodPlaylistSongs, func(w http.ResponseWriter, _ map[string]any, _ int) {
				http.Error(w, "boom", http.StatusBadGateway)
			})
			authenticated(t, srv)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			_, err := srv.FetchTracks(ctx, testPlaylist)
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		})
	})

	t.Run("Authentication Abort", func(t *testing.T) {
		tests := []struct {
			name  string
			reply func(w http.ResponseWriter)
		}{
			{"Status 401", func(w http.ResponseWriter) { http.Error(w, "nope", http.StatusUnauthorized) }},
			{"Status 403", func(w http.ResponseWriter) { http.Error(w, "nope", http.StatusForbidden) }},
			{"Token Required", func(w http.ResponseWriter) { writeGatewayError(w, "VALID_TOKEN_REQUIRED", "invalid csrf") }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				g, server := newFakeGateway(t)
				srv, _ := newTestService(t, server, 10)
				g.handle(methodPlaylistSongs, func(w http.ResponseWriter, _ map[string]any, _ int) { tt.reply(w) })
				g.handle(methodDeleteSongs, func(w http.ResponseWriter, _ map[string]any, _ int) { writeResults(w, true) })
				authenticated(t, srv)

				_, err := srv.FetchTracks(context.Background(), testPlaylist)
				if !errors.Is(err, shared.ErrAuthentication) {
					t.Fatalf("expected ErrAuthentication, got %v", err)
				}
				if errors.Is(err, shared.ErrFetchFailure) {
					t.Errorf("authentication failure should not be a fetch failure: %v", err)
				}
				if g.count(methodPlaylistSongs) != 1 {
					t.Errorf("expected no retry, got %d attempts", g.count(methodPlaylistSongs))
				}

				err = srv.RemoveTrack(context.Background(), testPlaylist, "101")
				if !errors.Is(err, shared.ErrAuthentication) {
					t.Errorf("expected ErrAuthentication after abort, got %v", err)
				}
				if g.count(methodDeleteSongs) != 0 {
					t.Errorf("expected no removal call after abort, got %d", g.count(methodDeleteSongs))
				}
			})
		}
	})

	t.Run("RemoveTrack", func(t *testing.T) {
		t.Run("Playlist", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 10)
			g.handle(methodDeleteSongs, func(w http.ResponseWriter, _ map[string]any, _ int) { writeResults(w, true) })
			authenticated(t, srv)

			if err := srv.RemoveTrack(context.Background(), testPlaylist, "42"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			g.mu.Lock()
			body := g.bodies[methodDeleteSongs][0]
			g.mu.Unlock()

			if body["playlist_id"] != "555" {
				t.Errorf("expected playlist_id \"555\", got %v", body["playlist_id"])
			}
			entries, ok := body["songs"].([]any)
			if !ok || len(entries) != 1 {
				t.Fatalf("expected one song entry, got %v", body["songs"])
			}
			pair := entries[0].([]any)
			if pair[0] != float64(42) || pair[1] != float64(0) {
				t.Errorf("expected [42, 0], got %v", pair)
			}
			ctxt := body["ctxt"].(map[string]any)
			if ctxt["t"] != "playlist_page" || ctxt["id"] != float64(555) {
				t.Errorf("unexpected ctxt %v", ctxt)
			}
		})

		t.Run("Favorites", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 10)
			g.handle(methodRemoveFavorite, func(w http.ResponseWriter, _ map[string]any, _ int) { writeResults(w, true) })
			authenticated(t, srv)

			err := srv.RemoveTrack(context.Background(), models.Playlist{ID: "22", IsFavorites: true}, "42")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			g.mu.Lock()
			body := g.bodies[methodRemoveFavorite][0]
			g.mu.Unlock()
			if body["SNG_ID"] != float64(42) {
				t.Errorf("expected SNG_ID 42, got %v", body["SNG_ID"])
			}
		})

		t.Run("Non Numeric Track", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 10)
			authenticated(t, srv)

			err := srv.RemoveTrack(context.Background(), testPlaylist, "abc")
			if !errors.Is(err, shared.ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
			if g.count(methodDeleteSongs) != 0 {
				t.Error("expected no gateway call")
			}
		})

		t.Run("Gateway Rejects", func(t *testing.T) {
			g, server := newFakeGateway(t)
			srv, _ := newTestService(t, server, 10)
			g.handle(methodDeleteSongs, func(w http.ResponseWriter, _ map[string]any, _ int) {
				writeGatewayError(w, "DATA_ERROR", "song not in playlist")
			})
			authenticated(t, srv)

			err := srv.RemoveTrack(context.Background(), testPlaylist, "42")
			if !errors.Is(err, shared.ErrAPIRequest) {
				t.Errorf("expected ErrAPIRequest, got %v", err)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Code != "DATA_ERROR" {
				t.Errorf("expected gateway code DATA_ERROR, got %v", err)
			}
		})
	})
}

func TestParseGatewayError(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantOK   bool
		wantCode string
	}{
		{"empty array", `[]`, false, ""},
		{"empty object", `{}`, false, ""},
		{"null", `null`, false, ""},
		{"missing", ``, false, ""},
		{"code object", `{"VALID_TOKEN_REQUIRED": "Invalid CSRF token"}`, true, "VALID_TOKEN_REQUIRED"},
		{"array", `["something broke"]`, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, ok := parseGatewayError(json.RawMessage(tt.raw))
			if ok != tt.wantOK {
				t.Errorf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if code != tt.wantCode {
				t.Errorf("expected code %q, got %q", tt.wantCode, code)
			}
		})
	}
}

func TestFlexTypes(t *testing.T) {
	t.Run("flexString", func(t *testing.T) {
		for raw, want := range map[string]string{`"12"`: "12", `12`: "12", `null`: ""} {
			var s flexString
			if err := json.Unmarshal([]byte(raw), &s); err != nil {
				t.Fatalf("%s: unexpected error %v", raw, err)
			}
			if string(s) != want {
				t.Errorf("%s: expected %q, got %q", raw, want, s)
			}
		}
	})

	t.Run("flexInt", func(t *testing.T) {
		for raw, want := range map[string]int{`"12"`: 12, `12`: 12, `""`: 0, `null`: 0} {
			var n flexInt
			if err := json.Unmarshal([]byte(raw), &n); err != nil {
				t.Fatalf("%s: unexpected error %v", raw, err)
			}
			if int(n) != want {
				t.Errorf("%s: expected %d, got %d", raw, want, n)
			}
		}

		var n flexInt
		if err := json.Unmarshal([]byte(`"abc"`), &n); err == nil {
			t.Error("expected error for non-numeric string")
		}
	})
}

func TestRetryPolicy(t *testing.T) {
	t.Run("Backoff Doubles Up To Ceiling", func(t *testing.T) {
		p := RetryPolicy{MaxAttempts: 5, BaseDelay: 10 * time.Millisecond, MaxDelay: 40 * time.Millisecond}
		intervals := []time.Duration{10, 20, 40, 40}
		for range 20 {
			schedule := p.Backoff()
			for i, c := range intervals {
				c *= time.Millisecond
				lo, hi := c/2, c*3/2+time.Nanosecond
				if d := schedule.NextBackOff(); d < lo || d > hi {
					t.Fatalf("retry %d: backoff %v outside [%v, %v]", i+1, d, lo, hi)
				}
			}
		}
	})

	t.Run("Stops After Max Attempts", func(t *testing.T) {
		schedule := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}.Backoff()
		for i := range 2 {
			if d := schedule.NextBackOff(); d == backoff.Stop {
				t.Fatalf("retry %d: stopped early", i+1)
			}
		}
		if d := schedule.NextBackOff(); d != backoff.Stop {
			t.Errorf("expected stop after two retries, got %v", d)
		}
	})

	t.Run("No Cap Keeps Growing", func(t *testing.T) {
		schedule := RetryPolicy{MaxAttempts: 6, BaseDelay: 10 * time.Millisecond}.Backoff()
		var last time.Duration
		for i := range 5 {
			last = schedule.NextBackOff()
			if i == 0 && last > 15*time.Millisecond {
				t.Fatalf("first backoff %v above 15ms", last)
			}
		}
		if last < 80*time.Millisecond {
			t.Errorf("expected fifth backoff of at least 80ms without a cap, got %v", last)
		}
	})

	t.Run("Zero Base Delay", func(t *testing.T) {
		schedule := RetryPolicy{MaxAttempts: 3}.Backoff()
		if d := schedule.NextBackOff(); d != 0 {
			t.Errorf("expected no delay, got %v", d)
		}
	})

	t.Run("At Least One Attempt", func(t *testing.T) {
		if got := (RetryPolicy{}).attempts(); got != 1 {
			t.Errorf("expected 1 attempt, got %d", got)
		}
		if d := (RetryPolicy{}).Backoff().NextBackOff(); d != backoff.Stop {
			t.Errorf("expected no retries, got %v", d)
		}
	})
}

func TestClassification(t *testing.T) {
	statuses := map[int]error{
		401: shared.ErrAuthentication,
		403: shared.ErrAuthentication,
		404: shared.ErrAPIRequest,
		408: shared.ErrTransient,
		429: shared.ErrTransient,
		500: shared.ErrTransient,
		503: shared.ErrTransient,
	}
	for status, want := range statuses {
		if got := classifyStatus(status); got != want {
			t.Errorf("status %d: expected %v, got %v", status, want, got)
		}
	}

	codes := map[string]error{
		"USER_AUTH_REQUIRED":  shared.ErrAuthentication,
		"RATE_LIMIT_EXCEEDED": shared.ErrTransient,
		"DATA_ERROR":          shared.ErrAPIRequest,
	}
	for code, want := range codes {
		if got := classifyCode(code); got != want {
			t.Errorf("code %s: expected %v, got %v", code, want, got)
		}
	}

	authErr := &APIError{Method: "m", Kind: shared.ErrAuthentication}
	if IsTransient(authErr) {
		t.Error("authentication errors must not be transient")
	}
	if !IsTransient(&APIError{Method: "m", Kind: shared.ErrTransient}) {
		t.Error("expected transient error")
	}
}
