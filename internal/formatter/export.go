package formatter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/desertthunder/dzdedupe/internal/models"
	"github.com/desertthunder/dzdedupe/internal/tasks"
)

// RunReport is the JSON form of a run.
type RunReport struct {
	ID         string                 `json:"id"`
	Mode       string                 `json:"mode"`
	Executed   bool                   `json:"executed"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Duplicates int                    `json:"duplicates"`
	Outcomes   map[models.Outcome]int `json:"outcomes"`
	Invalid    []string               `json:"invalid,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Playlists  []PlaylistReport       `json:"playlists"`
}

// PlaylistReport is the JSON form of one playlist.
type PlaylistReport struct {
	models.PlaylistSummary
	Aborted  bool                    `json:"aborted,omitempty"`
	Groups   []models.DuplicateGroup `json:"groups"`
	Previews []models.Preview        `json:"previews,omitempty"`
	Removals []RemovalReport         `json:"removals,omitempty"`
}

// RemovalReport adds the error message, which [models.RemovalResult] does not serialize.
type RemovalReport struct {
	models.RemovalResult
	Error string `json:"error,omitempty"`
}

// NewRunReport converts a run result into its JSON form.
func NewRunReport(result *tasks.RunResult) RunReport {
	summary := result.Summary()
	duplicates, outcomes := result.Totals()

	report := RunReport{
		ID:         result.ID,
		Mode:       summary.Mode,
		Executed:   result.Executed,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Duplicates: duplicates,
		Outcomes:   outcomes,
		Error:      summary.Error,
		Playlists:  make([]PlaylistReport, 0, len(result.Playlists)),
	}
	for _, err := range result.Invalid {
		report.Invalid = append(report.Invalid, err.Error())
	}

	for i, p := range result.Playlists {
		pr := PlaylistReport{
			PlaylistSummary: summary.Playlists[i],
			Aborted:         p.Aborted,
			Groups:          p.Groups,
			Previews:        p.Previews,
		}
		if pr.Groups == nil {
			pr.Groups = []models.DuplicateGroup{}
		}
		for _, r := range p.Removals {
			rr := RemovalReport{RemovalResult: r}
			if r.Err != nil {
				rr.Error = r.Err.Error()
			}
			pr.Removals = append(pr.Removals, rr)
		}
		report.Playlists = append(report.Playlists, pr)
	}
	return report
}

// WriteJSON writes data as JSON, indented when pretty is set.
func WriteJSON(w io.Writer, data any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}

// WriteRunJSON writes the JSON report of a run.
func WriteRunJSON(w io.Writer, result *tasks.RunResult, pretty bool) error {
	return WriteJSON(w, NewRunReport(result), pretty)
}

var csvHeaders = []string{
	"playlist_id", "playlist", "group", "key", "kept_id", "kept_position",
	"track_id", "position", "title", "artist", "isrc", "outcome", "note",
}

// WriteRunCSV writes one record per removable track of every playlist in a run.
//
// Positions are one-based like the report tables.
func WriteRunCSV(w io.Writer, result *tasks.RunResult) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeaders); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, p := range result.Playlists {
		for _, r := range reportRows(p) {
			record := []string{
				p.Playlist.ID,
				p.Playlist.Name,
				strconv.Itoa(r.group),
				p.Groups[r.group-1].Key,
				r.kept.ID,
				strconv.Itoa(r.kept.Position + 1),
				r.track.ID,
				strconv.Itoa(r.track.Position + 1),
				r.track.FullTitle(),
				r.track.Artist,
				r.track.ISRC,
				string(r.outcome),
				r.note,
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}
