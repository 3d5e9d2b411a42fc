// package formatter renders playlists, deduplication reports and run history as tables, JSON or CSV
package formatter

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/dzdedupe/internal/models"
	"github.com/desertthunder/dzdedupe/internal/repositories"
	"github.com/desertthunder/dzdedupe/internal/tasks"
)

const timeLayout = "2006-01-02 15:04"

// FavoritesMarker prefixes the favorites collection in playlist tables.
const FavoritesMarker = "♥"

// PlaylistsTable renders a numbered table of playlists.
//
// Numbers start at 1 and match the numbers accepted when selecting playlists.
func PlaylistsTable(playlists []models.Playlist) string {
	t := styles.newTable("#", "Name", "Tracks", "ID")
	for i, p := range playlists {
		name := p.Name
		if p.IsFavorites {
			name = FavoritesMarker + " " + name
		}
		t.Row(strconv.Itoa(i+1), name, strconv.Itoa(p.TrackCount), p.ID)
	}
	return t.String()
}

// TracksTable renders the tracks of a snapshot in position order.
func TracksTable(tracks []models.Track) string {
	t := styles.newTable("#", "Title", "Artist", "ISRC", "ID")
	for _, tr := range tracks {
		t.Row(strconv.Itoa(tr.Position+1), tr.FullTitle(), tr.Artist, tr.ISRC, tr.ID)
	}
	return t.String()
}

// DescribeTrack formats a track as "#position artist - title".
func DescribeTrack(t models.Track) string {
	return fmt.Sprintf("#%d %s - %s", t.Position+1, t.Artist, t.FullTitle())
}

// row is one removable track of a playlist report.
type row struct {
	group   int
	kept    models.Track
	track   models.Track
	outcome models.Outcome
	note    string
}

// reportRows pairs removable tracks with their preview or removal, which share schedule order.
func reportRows(p tasks.PlaylistResult) []row {
	var rows []row
	i := 0
	for g, group := range p.Groups {
		for _, tr := range group.Removable() {
			r := row{group: g + 1, kept: group.Survivor, track: tr}
			switch {
			case i < len(p.Removals):
				r.outcome, r.note = p.Removals[i].Outcome, p.Removals[i].Message()
			case i < len(p.Previews):
				r.outcome, r.note = p.Previews[i].Outcome, p.Previews[i].Reason
			}
			rows = append(rows, r)
			i++
		}
	}
	return rows
}

// WriteRunReport writes a human readable report of a run.
//
// Every playlist gets a table of its duplicates followed by a summary table of the whole run.
func WriteRunReport(w io.Writer, result *tasks.RunResult) error {
	var b strings.Builder

	heading := "Deduplication preview"
	if result.Executed {
		heading = "Deduplication run"
	}
	fmt.Fprintf(&b, "%s (mode: %s)\n", styles.Title(heading), result.Mode)

	for _, err := range result.Invalid {
		fmt.Fprintf(&b, "%s %v\n", styles.Warn("skipped:"), err)
	}

	for _, p := range result.Playlists {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s (%s)\n", styles.Title(p.Playlist.Name), p.Playlist.ID)

		switch {
		case p.Aborted:
			b.WriteString(styles.Warn("not processed, run aborted") + "\n")
			continue
		case p.Err != nil && len(p.Groups) == 0:
			fmt.Fprintf(&b, "%s %v\n", styles.Err("error:"), p.Err)
			continue
		case len(p.Groups) == 0:
			b.WriteString(styles.OK("no duplicates") + "\n")
			continue
		}

		fmt.Fprintf(&b, "%d tracks, %d duplicate groups, %d duplicates\n",
			p.Playlist.TrackCount, len(p.Groups), p.DuplicateCount())

		t := styles.newTable("Group", "Keep", "Duplicate", "Outcome", "Note")
		for _, r := range reportRows(p) {
			t.Row(strconv.Itoa(r.group), DescribeTrack(r.kept), DescribeTrack(r.track), styles.Outcome(r.outcome), r.note)
		}
		b.WriteString(t.String() + "\n")

		if p.Err != nil {
			fmt.Fprintf(&b, "%s %v\n", styles.Err("error:"), p.Err)
		}
	}

	b.WriteString("\n")
	b.WriteString(SummaryTable(result.Summary()) + "\n")

	duplicates, outcomes := result.Totals()
	if result.Executed {
		fmt.Fprintf(&b, "%d duplicates found, %d removed, %d failed, %d skipped\n", duplicates,
			outcomes[models.OutcomeRemoved], outcomes[models.OutcomeFailed], outcomes[models.OutcomeSkipped])
	} else {
		fmt.Fprintf(&b, "%d duplicates found\n", duplicates)
		if duplicates > 0 {
			b.WriteString(styles.Help("run again with --execute to remove them") + "\n")
		}
	}

	if result.Err != nil {
		fmt.Fprintf(&b, "%s %v\n", styles.Err("run failed:"), result.Err)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// SummaryTable renders the per playlist counts of a run.
func SummaryTable(summary models.RunSummary) string {
	t := styles.newTable("Playlist", "Tracks", "Groups", "Duplicates", "Removed", "Failed", "Skipped", "Error")
	for _, p := range summary.Playlists {
		t.Row(
			p.PlaylistName,
			strconv.Itoa(p.TrackCount),
			strconv.Itoa(p.GroupCount),
			strconv.Itoa(p.DuplicateCount),
			strconv.Itoa(p.RemovedCount),
			strconv.Itoa(p.FailedCount),
			strconv.Itoa(p.SkippedCount),
			p.Error,
		)
	}
	return t.String()
}

// HistoryTable renders stored runs, newest first as returned by the repository.
func HistoryTable(runs []repositories.Run) string {
	t := styles.newTable("#", "Run", "Started", "Mode", "Executed", "Playlists", "Duplicates", "Removed", "Error")
	for _, r := range runs {
		t.Row(
			strconv.Itoa(r.Sequence),
			shortID(r.ID),
			r.StartedAt.Local().Format(timeLayout),
			r.Mode,
			yesNo(r.Executed),
			strconv.Itoa(len(r.Playlists)),
			strconv.Itoa(r.Duplicates()),
			strconv.Itoa(r.Removed()),
			r.Error,
		)
	}
	return t.String()
}

// WriteRunDetail writes one stored run with its playlist table.
func WriteRunDetail(w io.Writer, run repositories.Run) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d (%s)\n", styles.Title("Run"), run.Sequence, run.ID)
	fmt.Fprintf(&b, "Mode:     %s\n", run.Mode)
	fmt.Fprintf(&b, "Executed: %s\n", yesNo(run.Executed))
	fmt.Fprintf(&b, "Started:  %s\n", run.StartedAt.Local().Format(timeLayout))
	if !run.FinishedAt.IsZero() {
		fmt.Fprintf(&b, "Duration: %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.Error != "" {
		fmt.Fprintf(&b, "Error:    %s\n", styles.Err(run.Error))
	}
	b.WriteString(SummaryTable(run.RunSummary) + "\n")

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write run: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
