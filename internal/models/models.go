// package models defines the data model for the playlist deduplication service
package models

import (
	"fmt"
	"strings"
)

// Track represents a song as it appeared in a playlist snapshot.
type Track struct {
	ID       string `json:"id"`
	ISRC     string `json:"isrc,omitempty"`
	Title    string `json:"title"`
	Version  string `json:"version,omitempty"` // Version suffix, e.g. "(Live)"
	Artist   string `json:"artist"`
	ArtistID string `json:"artist_id,omitempty"`
	Album    string `json:"album,omitempty"`
	Duration int    `json:"duration,omitempty"` // Duration in seconds
	Position int    `json:"position"`           // Zero-based index at fetch time
}

// FullTitle joins the title and the version suffix the way the service displays them.
func (t Track) FullTitle() string {
	if t.Version == "" {
		return t.Title
	}
	return t.Title + " " + t.Version
}

// Playlist represents a playlist or the favorites collection.
type Playlist struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	TrackCount  int     `json:"track_count"`
	IsFavorites bool    `json:"is_favorites"`
	Tracks      []Track `json:"tracks,omitempty"`
}

// Mode selects the equivalence rule used to detect duplicates.
type Mode int

const (
	ModeISRC       Mode = iota + 1 // Same ISRC
	ModeNameArtist                 // Same normalized title and artist
	ModeCombined                   // ISRC or title and artist
)

func (m Mode) String() string {
	switch m {
	case ModeISRC:
		return "isrc"
	case ModeNameArtist:
		return "name"
	case ModeCombined:
		return "both"
	default:
		return ""
	}
}

// UsesISRC reports whether ISRC matches contribute to grouping.
func (m Mode) UsesISRC() bool { return m == ModeISRC || m == ModeCombined }

// UsesName reports whether title and artist matches contribute to grouping.
func (m Mode) UsesName() bool { return m == ModeNameArtist || m == ModeCombined }

// ParseMode converts user input into a [Mode].
//
// Accepts the mode names and the numeric menu values 1, 2 and 3.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "isrc":
		return ModeISRC, nil
	case "2", "name", "name-artist", "title":
		return ModeNameArtist, nil
	case "3", "both", "combined", "all":
		return ModeCombined, nil
	default:
		return 0, fmt.Errorf("unknown deduplication mode %q (want isrc, name or both)", s)
	}
}

// DuplicateGroup is a set of equivalent tracks within one playlist.
//
// Members are ordered by ascending position and Survivor is always Members[0].
type DuplicateGroup struct {
	Key      string  `json:"key"`
	Members  []Track `json:"members"`
	Survivor Track   `json:"survivor"`
}

// Removable returns every member except the survivor.
func (g DuplicateGroup) Removable() []Track {
	if len(g.Members) < 2 {
		return nil
	}
	return g.Members[1:]
}

// Outcome is the result of a scheduled removal.
type Outcome string

const (
	OutcomeRemoved     Outcome = "removed"
	OutcomeFailed      Outcome = "failed"
	OutcomeSkipped     Outcome = "skipped"
	OutcomeWouldRemove Outcome = "would remove"
)

// Preview is a track scheduled for removal and what an execution would do with it.
type Preview struct {
	Track   Track   `json:"track"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"` // Set when Outcome is [OutcomeSkipped]
}

// RemovalResult records what happened to one scheduled removal.
//
// Err is set only when Outcome is [OutcomeFailed]; Reason explains a skip.
type RemovalResult struct {
	TrackID string  `json:"track_id"`
	Track   Track   `json:"track"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
	Err     error   `json:"-"`
}

// Message returns the failure message or skip reason, or an empty string.
func (r RemovalResult) Message() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Reason
}
