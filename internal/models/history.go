package models

import "time"

// RunSummary is the persisted record of one deduplication run.
//
// Only counts are stored; track data never leaves the run.
type RunSummary struct {
	ID         string            `json:"id"`
	Mode       string            `json:"mode"`
	Executed   bool              `json:"executed"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Error      string            `json:"error,omitempty"`
	Playlists  []PlaylistSummary `json:"playlists"`
}

// PlaylistSummary holds the counts of one playlist within a run.
type PlaylistSummary struct {
	PlaylistID     string `json:"playlist_id"`
	PlaylistName   string `json:"playlist_name"`
	TrackCount     int    `json:"track_count"`
	GroupCount     int    `json:"group_count"`
	DuplicateCount int    `json:"duplicate_count"`
	RemovedCount   int    `json:"removed_count"`
	FailedCount    int    `json:"failed_count"`
	SkippedCount   int    `json:"skipped_count"`
	Error          string `json:"error,omitempty"`
}

// Duplicates returns the number of duplicates found across all playlists.
func (r RunSummary) Duplicates() int {
	total := 0
	for _, p := range r.Playlists {
		total += p.DuplicateCount
	}
	return total
}

// Removed returns the number of tracks removed across all playlists.
func (r RunSummary) Removed() int {
	total := 0
	for _, p := range r.Playlists {
		total += p.RemovedCount
	}
	return total
}
