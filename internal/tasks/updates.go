package tasks

import (
	"fmt"

	"github.com/desertthunder/dzdedupe/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchPlaylists Phase = iota
	FetchTracks
	FindDuplicates
	RemoveTracks
	PlaylistDone
	RecordRun
)

func (p Phase) String() string {
	switch p {
	case FetchPlaylists:
		return "fetch_playlists"
	case FetchTracks:
		return "fetch_tracks"
	case FindDuplicates:
		return "find_duplicates"
	case RemoveTracks:
		return "remove_tracks"
	case PlaylistDone:
		return "playlist_done"
	case RecordRun:
		return "record_run"
	default:
		return ""
	}
}

func fetchPlaylistsUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Step:    1,
		Total:   1,
		Message: "Fetching playlists...",
	}
}

func fetchTracksUpdate(step, total int, pl models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Fetching tracks: %s...", step, total, pl.Name),
	}
}

func findDuplicatesUpdate(step, total int, pl models.Playlist, mode models.Mode) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FindDuplicates,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Looking for duplicates by %s in %s (%d tracks)...", step, total, mode, pl.Name, pl.TrackCount),
	}
}

func removeTracksUpdate(step, total int, pl models.Playlist, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RemoveTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Removing %d tracks from %s...", step, total, count, pl.Name),
	}
}

func playlistDoneUpdate(step, total int, res *PlaylistResult) ProgressUpdate {
	msg := fmt.Sprintf("[%d/%d] ✓ %s: %d duplicates", step, total, res.Playlist.Name, res.DuplicateCount())
	if res.Err != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.Playlist.Name, res.Err)
	}
	return ProgressUpdate{
		Phase:   PlaylistDone,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    res,
	}
}

func recordRunUpdate(id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RecordRun,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Recording run %s...", id),
	}
}
