package tasks

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/dzdedupe/internal/models"
	"github.com/desertthunder/dzdedupe/internal/services"
	"github.com/desertthunder/dzdedupe/internal/shared"
)

// Repository materializes playlist snapshots from a [services.Service].
//
// Playlist metadata is fetched once and reused for the lifetime of the repository.
type Repository struct {
	svc    services.Service
	logger *log.Logger

	mu        sync.Mutex
	playlists []models.Playlist
}

func NewRepository(svc services.Service, logger *log.Logger) *Repository {
	return &Repository{svc: svc, logger: logger}
}

// ListPlaylists returns the metadata of every playlist, favorites first.
func (r *Repository) ListPlaylists(ctx context.Context) ([]models.Playlist, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.playlists != nil {
		return slices.Clone(r.playlists), nil
	}

	playlists, err := r.svc.FetchPlaylists(ctx)
	if err != nil {
		return nil, err
	}
	if playlists == nil {
		playlists = []models.Playlist{}
	}

	r.playlists = playlists
	return slices.Clone(playlists), nil
}

// Resolve maps user input to playlists.
//
// Each input may be a playlist id, a 1-based number from [Repository.ListPlaylists], or a playlist name
// (case-insensitive). Inputs that match nothing, or a name shared by several playlists, yield one error
// wrapping [shared.ErrValidation] each and do not stop the others from resolving. Duplicates are dropped.
func (r *Repository) Resolve(ctx context.Context, inputs []string) ([]models.Playlist, []error, error) {
	playlists, err := r.ListPlaylists(ctx)
	if err != nil {
		return nil, nil, err
	}

	var resolved []models.Playlist
	var invalid []error
	seen := make(map[string]bool)

	for _, input := range inputs {
		pl, err := resolveOne(playlists, input)
		if err != nil {
			invalid = append(invalid, err)
			continue
		}
		if seen[pl.ID] {
			continue
		}
		seen[pl.ID] = true
		resolved = append(resolved, pl)
	}

	return resolved, invalid, nil
}

func resolveOne(playlists []models.Playlist, input string) (models.Playlist, error) {
	needle := strings.TrimSpace(input)
	if needle == "" {
		return models.Playlist{}, fmt.Errorf("%w: empty playlist reference", shared.ErrValidation)
	}

	for _, pl := range playlists {
		if pl.ID == needle {
			return pl, nil
		}
	}

	if n, err := strconv.Atoi(needle); err == nil && n >= 1 && n <= len(playlists) {
		return playlists[n-1], nil
	}

	var matches []models.Playlist
	for _, pl := range playlists {
		if strings.EqualFold(strings.TrimSpace(pl.Name), needle) {
			matches = append(matches, pl)
		}
	}

	switch len(matches) {
	case 0:
		return models.Playlist{}, fmt.Errorf("%w: no playlist matches %q", shared.ErrValidation, input)
	case 1:
		return matches[0], nil
	default:
		return models.Playlist{}, fmt.Errorf("%w: %d playlists are named %q, use the id instead", shared.ErrValidation, len(matches), input)
	}
}

// Snapshot fetches every track of playlist and returns a copy with Tracks set.
func (r *Repository) Snapshot(ctx context.Context, playlist models.Playlist) (models.Playlist, error) {
	tracks, err := r.svc.FetchTracks(ctx, playlist)
	if err != nil {
		return playlist, err
	}

	if playlist.TrackCount != 0 && playlist.TrackCount != len(tracks) {
		r.logger.Debug("track count differs from listing", "playlist", playlist.Name, "listed", playlist.TrackCount, "fetched", len(tracks))
	}

	snapshot := playlist
	snapshot.Tracks = tracks
	snapshot.TrackCount = len(tracks)
	return snapshot, nil
}

// ListTracks resolves idOrName and returns the ordered tracks of that playlist.
func (r *Repository) ListTracks(ctx context.Context, idOrName string) ([]models.Track, error) {
	playlists, invalid, err := r.Resolve(ctx, []string{idOrName})
	if err != nil {
		return nil, err
	}
	if len(invalid) > 0 {
		return nil, invalid[0]
	}

	snapshot, err := r.Snapshot(ctx, playlists[0])
	if err != nil {
		return nil, err
	}
	return snapshot.Tracks, nil
}
