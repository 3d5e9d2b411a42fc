// package services defines interface Service for interacting with the streaming service's HTTP API
//
// Deezer (private gw-light gateway)
package services

import (
	"context"

	"github.com/desertthunder/dzdedupe/internal/models"
	"github.com/desertthunder/dzdedupe/internal/shared"
)

// Service defines the operations the deduplication pipeline needs from a music service.
type Service interface {
	// Authenticate validates the session supplied by the provider.
	// Returns an error wrapping [shared.ErrAuthentication] if the session is missing or rejected.
	Authenticate(ctx context.Context, credentials shared.CredentialProvider) error

	// FetchPlaylists retrieves metadata for every playlist of the authenticated user, favorites first.
	FetchPlaylists(ctx context.Context) ([]models.Playlist, error)

	// FetchTracks retrieves the full ordered track listing of a playlist.
	// Positions are assigned cumulatively across pages.
	FetchTracks(ctx context.Context, playlist models.Playlist) ([]models.Track, error)

	// RemoveTrack deletes a single track from a playlist.
	RemoveTrack(ctx context.Context, playlist models.Playlist, trackID string) error

	// Name returns the name of the service (e.g., "Deezer")
	Name() string
}
