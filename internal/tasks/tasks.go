package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/desertthunder/dzdedupe/internal/dedupe"
	"github.com/desertthunder/dzdedupe/internal/models"
	"github.com/desertthunder/dzdedupe/internal/services"
	"github.com/desertthunder/dzdedupe/internal/shared"
)

const DefaultFetchConcurrency = 3

// RunOpts selects what a run processes and how.
type RunOpts struct {
	Playlists        []string // Ids, names or list numbers
	All              bool     // Process every playlist, ignoring Playlists
	Mode             models.Mode
	Execute          bool // Remove duplicates instead of previewing
	Concurrency      int  // Concurrent removals per playlist
	FetchConcurrency int  // Playlists processed at once
}

// PlaylistResult is the outcome of one playlist in a run.
type PlaylistResult struct {
	Playlist models.Playlist         // Metadata; Tracks is cleared after grouping
	Groups   []models.DuplicateGroup // Duplicate groups found
	Previews []models.Preview        // Set when the run did not execute
	Removals []models.RemovalResult  // Set when the run executed
	Aborted  bool                    // Never started because the run was aborted
	Err      error                   // Fetch or removal error for this playlist
}

// DuplicateCount returns the number of removable tracks.
func (p PlaylistResult) DuplicateCount() int {
	return dedupe.CountRemovable(p.Groups)
}

// OutcomeCounts tallies removal outcomes.
func (p PlaylistResult) OutcomeCounts() map[models.Outcome]int {
	counts := make(map[models.Outcome]int)
	for _, r := range p.Removals {
		counts[r.Outcome]++
	}
	return counts
}

// RunResult summarizes a complete run.
type RunResult struct {
	ID         string
	Mode       models.Mode
	Executed   bool
	StartedAt  time.Time
	FinishedAt time.Time
	Playlists  []PlaylistResult
	Invalid    []error // Playlist references that did not resolve
	Err        error   // Run-wide failure
}

// Totals sums duplicates and removal outcomes across playlists.
func (r *RunResult) Totals() (duplicates int, outcomes map[models.Outcome]int) {
	outcomes = make(map[models.Outcome]int)
	for _, p := range r.Playlists {
		duplicates += p.DuplicateCount()
		for o, n := range p.OutcomeCounts() {
			outcomes[o] += n
		}
	}
	return duplicates, outcomes
}

// Summary condenses the run into the counts kept in run history.
func (r *RunResult) Summary() models.RunSummary {
	summary := models.RunSummary{
		ID:         r.ID,
		Mode:       r.Mode.String(),
		Executed:   r.Executed,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Playlists:  make([]models.PlaylistSummary, 0, len(r.Playlists)),
	}
	if r.Err != nil {
		summary.Error = r.Err.Error()
	}

	for _, p := range r.Playlists {
		counts := p.OutcomeCounts()
		ps := models.PlaylistSummary{
			PlaylistID:     p.Playlist.ID,
			PlaylistName:   p.Playlist.Name,
			TrackCount:     p.Playlist.TrackCount,
			GroupCount:     len(p.Groups),
			DuplicateCount: p.DuplicateCount(),
			RemovedCount:   counts[models.OutcomeRemoved],
			FailedCount:    counts[models.OutcomeFailed],
			SkippedCount:   counts[models.OutcomeSkipped],
		}
		switch {
		case p.Err != nil:
			ps.Error = p.Err.Error()
		case p.Aborted:
			ps.Error = "aborted"
		}
		summary.Playlists = append(summary.Playlists, ps)
	}
	return summary
}

// RunRecorder persists run summaries.
type RunRecorder interface {
	RecordRun(ctx context.Context, run models.RunSummary) error
}

// EngineOpts holds optional engine dependencies.
type EngineOpts struct {
	Logger   *log.Logger
	Metrics  *services.Metrics
	Recorder RunRecorder
}

// PlaylistEngine runs Repository → deduplication → Executor for each selected playlist.
type PlaylistEngine struct {
	svc      services.Service
	repo     *Repository
	logger   *log.Logger
	metrics  *services.Metrics
	recorder RunRecorder
}

// NewPlaylistEngine creates an engine over an authenticated service.
func NewPlaylistEngine(svc services.Service, opts EngineOpts) *PlaylistEngine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(os.Stderr)
	}
	return &PlaylistEngine{
		svc:      svc,
		repo:     NewRepository(svc, opts.Logger),
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		recorder: opts.Recorder,
	}
}

// Repository returns the playlist repository shared by every run of the engine.
func (e *PlaylistEngine) Repository() *Repository { return e.repo }

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run deduplicates the selected playlists.
//
// Playlists are processed concurrently up to opts.FetchConcurrency. A failure in one playlist is recorded
// in its [PlaylistResult] and does not affect the others, except for authentication failures: those cancel
// the run, mark playlists not yet started as aborted, and are returned as the run error.
func (e *PlaylistEngine) Run(ctx context.Context, opts RunOpts, progress chan<- ProgressUpdate) (*RunResult, error) {
	if e.svc == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}
	if !opts.Mode.UsesISRC() && !opts.Mode.UsesName() {
		return nil, fmt.Errorf("%w: unknown deduplication mode %d", shared.ErrInvalidArgument, opts.Mode)
	}
	if !opts.All && len(opts.Playlists) == 0 {
		return nil, fmt.Errorf("%w: no playlists selected", shared.ErrMissingArgument)
	}
	if opts.FetchConcurrency < 1 {
		opts.FetchConcurrency = DefaultFetchConcurrency
	}

	result := &RunResult{
		ID:        shared.GenerateID(),
		Mode:      opts.Mode,
		Executed:  opts.Execute,
		StartedAt: time.Now(),
	}
	logger := shared.WithLogger(e.logger, "run", result.ID)

	e.sendProgress(progress, fetchPlaylistsUpdate())
	playlists, err := e.selectPlaylists(ctx, opts, result)
	if err != nil {
		result.Err = err
		e.finish(ctx, result, progress)
		return result, err
	}

	results := make([]PlaylistResult, len(playlists))
	for i, pl := range playlists {
		results[i] = PlaylistResult{Playlist: pl, Aborted: true}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.FetchConcurrency)

	for i, pl := range playlists {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			res := e.processPlaylist(gctx, logger, i+1, len(playlists), pl, opts, progress)
			results[i] = res

			done := res
			e.sendProgress(progress, playlistDoneUpdate(i+1, len(playlists), &done))

			if errors.Is(res.Err, shared.ErrAuthentication) {
				return res.Err
			}
			return nil
		})
	}

	err = g.Wait()
	result.Playlists = results
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		result.Err = err
		logger.Error("run aborted", "error", err)
	}

	e.finish(ctx, result, progress)
	return result, err
}

// selectPlaylists resolves the requested playlists and records invalid references on result.
func (e *PlaylistEngine) selectPlaylists(ctx context.Context, opts RunOpts, result *RunResult) ([]models.Playlist, error) {
	if opts.All {
		return e.repo.ListPlaylists(ctx)
	}

	playlists, invalid, err := e.repo.Resolve(ctx, opts.Playlists)
	if err != nil {
		return nil, err
	}
	for _, err := range invalid {
		e.logger.Warn("skipping playlist", "error", err)
	}
	result.Invalid = invalid
	return playlists, nil
}

// processPlaylist fetches, groups and previews or removes the duplicates of one playlist.
func (e *PlaylistEngine) processPlaylist(
	ctx context.Context,
	logger *log.Logger,
	step, total int,
	pl models.Playlist,
	opts RunOpts,
	progress chan<- ProgressUpdate,
) PlaylistResult {
	res := PlaylistResult{Playlist: pl}
	logger = shared.WithLogger(logger, "playlist", pl.Name)

	e.sendProgress(progress, fetchTracksUpdate(step, total, pl))
	snapshot, err := e.repo.Snapshot(ctx, pl)
	if err != nil {
		logger.Warn("failed to fetch tracks", "error", err)
		res.Err = err
		return res
	}

	e.sendProgress(progress, findDuplicatesUpdate(step, total, snapshot, opts.Mode))
	res.Groups = dedupe.FindDuplicates(snapshot.Tracks, opts.Mode)
	snapshot.Tracks = nil
	res.Playlist = snapshot
	logger.Info("grouped tracks", "tracks", snapshot.TrackCount, "groups", len(res.Groups), "duplicates", res.DuplicateCount())

	executor := NewExecutor(e.svc, opts.Concurrency, logger, e.metrics)
	if !opts.Execute {
		res.Previews = executor.PreviewRemovals(res.Groups)
		return res
	}

	if len(res.Groups) == 0 {
		return res
	}

	e.sendProgress(progress, removeTracksUpdate(step, total, snapshot, res.DuplicateCount()))
	res.Removals, res.Err = executor.ExecuteRemovals(ctx, snapshot, res.Groups)
	return res
}

// finish stamps the run and hands it to the recorder, if any. Recording failures are logged only.
func (e *PlaylistEngine) finish(ctx context.Context, result *RunResult, progress chan<- ProgressUpdate) {
	result.FinishedAt = time.Now()
	if e.recorder == nil {
		return
	}

	e.sendProgress(progress, recordRunUpdate(result.ID))
	if err := e.recorder.RecordRun(context.WithoutCancel(ctx), result.Summary()); err != nil {
		e.logger.Warn("failed to record run", "run", result.ID, "error", err)
	}
}
