// Package services defines the [Service] interface for music streaming providers and implements it for Deezer.
//
// # Deezer Implementation
//
// [DeezerService] talks to the private gw-light gateway used by deezer.com. Every call is a POST to
//
//	https://www.deezer.com/ajax/gw-light.php?method=<method>&input=3&api_version=1.0&api_token=<token>
//
// authenticated by the "sid" session cookie. [DeezerService.Authenticate] calls deezer.getUserData, which returns
// the api token (checkForm) and the user id; a user id of 0 means the session is not logged in.
//
// Endpoints used:
//   - deezer.userMenu : playlist metadata, TYPE "4" is the favorites collection
//   - playlist.getSongs / favorite_song.getList : paged track listings (start, nb)
//   - playlist.deleteSongs / favorite_song.remove : single track removal
//
// # Request Policy
//
// Every request goes through one code path that
//   - waits on a [rate.Limiter]
//   - applies a per-request timeout
//   - retries transient failures (network errors, timeouts, 429, 5xx, quota errors) with exponential backoff and jitter
//   - fails fast on everything else
//
// The first authentication failure puts the client into an aborted state; later calls return
// [shared.ErrAuthentication] without touching the network.
//
// # Error Handling
//
// Failures are reported as [*APIError], which unwraps to one of:
//   - [shared.ErrAuthentication] : session missing, expired or rejected
//   - [shared.ErrTransient] : retry budget exhausted on network/rate-limit/server errors
//   - [shared.ErrMalformedResponse] : the gateway answered with an unexpected shape
//   - [shared.ErrAPIRequest] : the gateway rejected the request
//
// Read paths additionally wrap non-authentication failures in [shared.ErrFetchFailure].
//
// # API Mappings
//
// Gateway payloads are decoded into typed structs ([deezerSong], [deezerPlaylist]) and mapped to
// [models.Track] and [models.Playlist] before leaving this package.
package services
