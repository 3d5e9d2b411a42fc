package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/dzdedupe/internal/models"
)

// ErrRunNotFound is returned when a run id or sequence does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run is a stored [models.RunSummary] with its sequence number.
type Run struct {
	models.RunSummary
	Sequence int `json:"sequence"`
}

// RunRepository persists [models.RunSummary] records.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new [RunRepository] with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// RecordRun stores a run and its playlists in one transaction.
func (r *RunRepository) RecordRun(ctx context.Context, run models.RunSummary) error {
	if run.ID == "" {
		return fmt.Errorf("validation failed: run id is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := NextSequence(ctx, tx, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	query := `
		INSERT INTO runs (id, sequence, mode, executed, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, query,
		run.ID,
		sequence,
		run.Mode,
		run.Executed,
		run.StartedAt.UTC(),
		nullTime(run.FinishedAt),
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	playlistQuery := `
		INSERT INTO run_playlists (run_id, position, playlist_id, playlist_name, track_count, group_count,
			duplicate_count, removed_count, failed_count, skipped_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for i, p := range run.Playlists {
		_, err := tx.ExecContext(ctx, playlistQuery,
			run.ID,
			i,
			p.PlaylistID,
			p.PlaylistName,
			p.TrackCount,
			p.GroupCount,
			p.DuplicateCount,
			p.RemovedCount,
			p.FailedCount,
			p.SkippedCount,
			nullString(p.Error),
		)
		if err != nil {
			return fmt.Errorf("failed to insert playlist %s: %w", p.PlaylistID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first, with their playlists. A limit of 0 returns all runs.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `
		SELECT id, sequence, mode, executed, started_at, finished_at, error
		FROM runs
		ORDER BY sequence DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	for i := range runs {
		playlists, err := r.playlists(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Playlists = playlists
	}
	return runs, nil
}

// GetRun retrieves a run by id or sequence number.
func (r *RunRepository) GetRun(ctx context.Context, ref string) (*Run, error) {
	query := `
		SELECT id, sequence, mode, executed, started_at, finished_at, error
		FROM runs
		WHERE id = ? OR CAST(sequence AS TEXT) = ?
	`

	run, err := scanRun(r.db.QueryRowContext(ctx, query, ref, ref))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, ref)
	}
	if err != nil {
		return nil, err
	}

	if run.Playlists, err = r.playlists(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// Prune deletes runs started before cutoff and returns how many were removed.
func (r *RunRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM run_playlists WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)", cutoff.UTC()); err != nil {
		return 0, fmt.Errorf("failed to delete run playlists: %w", err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return res.RowsAffected()
}

func (r *RunRepository) playlists(ctx context.Context, runID string) ([]models.PlaylistSummary, error) {
	query := `
		SELECT playlist_id, playlist_name, track_count, group_count, duplicate_count,
			removed_count, failed_count, skipped_count, error
		FROM run_playlists
		WHERE run_id = ?
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run playlists: %w", err)
	}
	defer rows.Close()

	playlists := []models.PlaylistSummary{}
	for rows.Next() {
		var (
			p       models.PlaylistSummary
			errText sql.NullString
		)
		if err := rows.Scan(
			&p.PlaylistID,
			&p.PlaylistName,
			&p.TrackCount,
			&p.GroupCount,
			&p.DuplicateCount,
			&p.RemovedCount,
			&p.FailedCount,
			&p.SkippedCount,
			&errText,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run playlist: %w", err)
		}
		p.Error = errText.String
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate run playlists: %w", err)
	}
	return playlists, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run        Run
		finishedAt sql.NullTime
		errText    sql.NullString
	)

	err := s.Scan(&run.ID, &run.Sequence, &run.Mode, &run.Executed, &run.StartedAt, &finishedAt, &errText)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	if finishedAt.Valid {
		run.FinishedAt = finishedAt.Time
	}
	run.Error = errText.String
	return &run, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}
