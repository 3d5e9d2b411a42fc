package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/dzdedupe/internal/models"
	"github.com/desertthunder/dzdedupe/internal/shared"
)

const (
	DefaultGatewayURL = "https://www.deezer.com/ajax/gw-light.php"
	DefaultPageSize   = 500
	DefaultTimeout    = 15 * time.Second
	DefaultRateLimit  = 10.0

	playlistTypeFavorites = "4"
	notLoggedInUserID     = "0"
)

// Gateway methods
const (
	methodUserData       = "deezer.getUserData"
	methodUserMenu       = "deezer.userMenu"
	methodPlaylistSongs  = "playlist.getSongs"
	methodFavoriteSongs  = "favorite_song.getList"
	methodDeleteSongs    = "playlist.deleteSongs"
	methodRemoveFavorite = "favorite_song.remove"
)

// DeezerOpts configures a [DeezerService]. Zero values fall back to the package defaults.
type DeezerOpts struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger
	Retry      RetryPolicy
	Timeout    time.Duration // Per attempt
	RateLimit  float64       // Requests per second, shared by all goroutines
	PageSize   int
	Metrics    *Metrics
}

// DeezerService implements [Service] against the gw-light gateway.
//
// It is safe for concurrent use once Authenticate has returned.
type DeezerService struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
	retry      RetryPolicy
	timeout    time.Duration
	limiter    *rate.Limiter
	pageSize   int
	metrics    *Metrics

	mu       sync.RWMutex
	sid      string
	apiToken string
	userID   string
	userName string

	aborted atomic.Bool
}

// deezerUserData is the subset of deezer.getUserData results we use.
type deezerUserData struct {
	User struct {
		UserID   flexString `json:"USER_ID"`
		BlogName string     `json:"BLOG_NAME"`
	} `json:"USER"`
	CheckForm string `json:"checkForm"`
}

// deezerPlaylist is a playlist entry of deezer.userMenu.
type deezerPlaylist struct {
	ID    flexString `json:"PLAYLIST_ID"`
	Title string     `json:"TITLE"`
	Count flexInt    `json:"NB_SONG"`
	Type  flexString `json:"TYPE"`
}

type deezerUserMenu struct {
	Playlists struct {
		Data  []deezerPlaylist `json:"data"`
		Total flexInt          `json:"total"`
	} `json:"PLAYLISTS"`
}

// deezerSong is a track entry of playlist.getSongs and favorite_song.getList.
type deezerSong struct {
	ID         flexString `json:"SNG_ID"`
	Title      string     `json:"SNG_TITLE"`
	Version    string     `json:"VERSION"`
	ISRC       string     `json:"ISRC"`
	ArtistID   flexString `json:"ART_ID"`
	ArtistName string     `json:"ART_NAME"`
	AlbumTitle string     `json:"ALB_TITLE"`
	Duration   flexInt    `json:"DURATION"`
}

type deezerSongPage struct {
	Data  []deezerSong `json:"data"`
	Count flexInt      `json:"count"`
	Total flexInt      `json:"total"`
}

type deleteContext struct {
	ID   int    `json:"id"`
	Type string `json:"t"`
}

type deleteSongsRequest struct {
	PlaylistID string        `json:"playlist_id"`
	Songs      [][2]int      `json:"songs"`
	Context    deleteContext `json:"ctxt"`
}

// NewDeezerService creates a client. Call Authenticate before anything else.
func NewDeezerService(opts DeezerOpts) *DeezerService {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultGatewayURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(os.Stderr)
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &DeezerService{
		baseURL:    opts.BaseURL,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		retry:      opts.Retry,
		timeout:    opts.Timeout,
		limiter:    rate.NewLimiter(limit, 1),
		pageSize:   opts.PageSize,
		metrics:    opts.Metrics,
	}
}

// NewDeezerServiceFromConfig creates a client from the [api] config section.
// A nil client falls back to a default [http.Client].
func NewDeezerServiceFromConfig(cfg shared.APIConfig, client *http.Client, logger *log.Logger, metrics *Metrics) *DeezerService {
	return NewDeezerService(DeezerOpts{
		BaseURL:    cfg.BaseURL,
		HTTPClient: client,
		Logger:     logger,
		Retry: RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.BackoffBase.Duration,
			MaxDelay:    cfg.BackoffMax.Duration,
		},
		Timeout:   cfg.Timeout.Duration,
		RateLimit: cfg.RateLimit,
		PageSize:  cfg.PageSize,
		Metrics:   metrics,
	})
}

func (d *DeezerService) Name() string { return "Deezer" }

// UserID returns the id of the authenticated user, or "" before Authenticate.
func (d *DeezerService) UserID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.userID
}

// UserName returns the display name of the authenticated user.
func (d *DeezerService) UserName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.userName
}

func (d *DeezerService) session() (sid, apiToken string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sid, d.apiToken
}

// Authenticate validates the session and obtains the api token used by every later call.
//
// A new call clears a previous aborted state.
func (d *DeezerService) Authenticate(ctx context.Context, credentials shared.CredentialProvider) error {
	d.aborted.Store(false)

	if credentials == nil {
		d.aborted.Store(true)
		return fmt.Errorf("%w: %w: no credential provider", shared.ErrAuthentication, shared.ErrMissingCredentials)
	}

	sid, err := credentials.Token(ctx)
	if err != nil {
		d.aborted.Store(true)
		if !errors.Is(err, shared.ErrAuthentication) {
			err = fmt.Errorf("%w: %w", shared.ErrAuthentication, err)
		}
		return err
	}

	d.mu.Lock()
	d.sid, d.apiToken, d.userID, d.userName = sid, "", "", ""
	d.mu.Unlock()

	var data deezerUserData
	if err := d.call(ctx, methodUserData, nil, &data); err != nil {
		return err
	}

	userID := string(data.User.UserID)
	if userID == "" || userID == notLoggedInUserID {
		err := &APIError{Method: methodUserData, Kind: shared.ErrAuthentication, Message: "session is not logged in"}
		d.abort(methodUserData, err)
		return err
	}
	if data.CheckForm == "" {
		return &APIError{Method: methodUserData, Kind: shared.ErrMalformedResponse, Message: "missing api token"}
	}

	d.mu.Lock()
	d.apiToken, d.userID, d.userName = data.CheckForm, userID, data.User.BlogName
	d.mu.Unlock()

	d.logger.Info("authenticated", "service", d.Name(), "user_id", userID, "user", data.User.BlogName)
	return nil
}

// FetchPlaylists retrieves the user's playlists with the favorites collection first.
func (d *DeezerService) FetchPlaylists(ctx context.Context) ([]models.Playlist, error) {
	raw, err := paginate(ctx, d.pageSize, func(ctx context.Context, start, nb int) ([]deezerPlaylist, int, error) {
		var menu deezerUserMenu
		body := map[string]int{"start": start, "nb": nb}
		if err := d.call(ctx, methodUserMenu, body, &menu); err != nil {
			return nil, 0, err
		}
		return menu.Playlists.Data, int(menu.Playlists.Total), nil
	})
	if err != nil {
		return nil, wrapFetch("playlists", err)
	}

	playlists := make([]models.Playlist, 0, len(raw))
	for _, p := range raw {
		playlists = append(playlists, p.toModel())
	}

	slices.SortStableFunc(playlists, func(a, b models.Playlist) int {
		switch {
		case a.IsFavorites == b.IsFavorites:
			return 0
		case a.IsFavorites:
			return -1
		default:
			return 1
		}
	})

	d.logger.Debug("fetched playlists", "count", len(playlists))
	return playlists, nil
}

// FetchTracks retrieves every track of playlist in order.
//
// The favorites collection is read through favorite_song.getList.
func (d *DeezerService) FetchTracks(ctx context.Context, playlist models.Playlist) ([]models.Track, error) {
	method := methodPlaylistSongs
	if playlist.IsFavorites {
		method = methodFavoriteSongs
	}

	raw, err := paginate(ctx, d.pageSize, func(ctx context.Context, start, nb int) ([]deezerSong, int, error) {
		var body map[string]any
		if playlist.IsFavorites {
			body = map[string]any{"user_id": d.UserID(), "start": start, "nb": nb}
		} else {
			body = map[string]any{"playlist_id": playlist.ID, "start": start, "nb": nb}
		}

		var page deezerSongPage
		if err := d.call(ctx, method, body, &page); err != nil {
			return nil, 0, err
		}
		return page.Data, int(page.Total), nil
	})
	if err != nil {
		return nil, wrapFetch("playlist "+playlist.ID, err)
	}

	tracks := make([]models.Track, len(raw))
	for i, s := range raw {
		tracks[i] = s.toModel(i)
	}

	d.logger.Debug("fetched tracks", "playlist", playlist.Name, "count", len(tracks))
	return tracks, nil
}

// RemoveTrack deletes one track from playlist.
func (d *DeezerService) RemoveTrack(ctx context.Context, playlist models.Playlist, trackID string) error {
	songID, err := strconv.Atoi(trackID)
	if err != nil {
		return fmt.Errorf("%w: track id %q is not numeric", shared.ErrValidation, trackID)
	}

	if playlist.IsFavorites {
		return d.call(ctx, methodRemoveFavorite, map[string]int{"SNG_ID": songID}, nil)
	}

	playlistID, err := strconv.Atoi(playlist.ID)
	if err != nil {
		return fmt.Errorf("%w: playlist id %q is not numeric", shared.ErrValidation, playlist.ID)
	}

	req := deleteSongsRequest{
		PlaylistID: strconv.Itoa(playlistID),
		Songs:      [][2]int{{songID, 0}},
		Context:    deleteContext{ID: playlistID, Type: "playlist_page"},
	}
	return d.call(ctx, methodDeleteSongs, req, nil)
}

// wrapFetch marks non-authentication read failures as fetch failures.
func wrapFetch(what string, err error) error {
	if errors.Is(err, shared.ErrAuthentication) || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", shared.ErrFetchFailure, what, err)
}

func (p deezerPlaylist) toModel() models.Playlist {
	return models.Playlist{
		ID:          string(p.ID),
		Name:        p.Title,
		TrackCount:  int(p.Count),
		IsFavorites: string(p.Type) == playlistTypeFavorites,
	}
}

func (s deezerSong) toModel(position int) models.Track {
	return models.Track{
		ID:       string(s.ID),
		ISRC:     s.ISRC,
		Title:    s.Title,
		Version:  s.Version,
		Artist:   s.ArtistName,
		ArtistID: string(s.ArtistID),
		Album:    s.AlbumTitle,
		Duration: int(s.Duration),
		Position: position,
	}
}
