package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/common/expfmt"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/dzdedupe/internal/formatter"
	"github.com/desertthunder/dzdedupe/internal/models"
	"github.com/desertthunder/dzdedupe/internal/shared"
	"github.com/desertthunder/dzdedupe/internal/tasks"
)

// Report formats accepted by --format
const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
)

// Playlists lists the user's playlists, numbered the way dedupe --playlist accepts them.
func (r *Runner) Playlists(ctx context.Context, cmd *cli.Command) error {
	if err := r.authenticate(ctx); err != nil {
		return err
	}

	playlists, err := tasks.NewRepository(r.service, r.logger).ListPlaylists(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}
	if len(playlists) == 0 {
		return r.writePlain("No playlists found\n")
	}
	return r.writePlain("%s\n", formatter.PlaylistsTable(playlists))
}

// Tracks prints the current tracks of one playlist.
func (r *Runner) Tracks(ctx context.Context, cmd *cli.Command) error {
	ref := strings.TrimSpace(cmd.StringArg("playlist"))
	if ref == "" {
		return fmt.Errorf("%w: playlist id, number or name", shared.ErrMissingArgument)
	}

	if err := r.authenticate(ctx); err != nil {
		return err
	}

	tracks, err := tasks.NewRepository(r.service, r.logger).ListTracks(ctx, ref)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}
	return r.writePlain("%s\n", formatter.TracksTable(tracks))
}

// dedupeOpts turns flags and config defaults into [tasks.RunOpts].
func (r *Runner) dedupeOpts(cmd *cli.Command) (tasks.RunOpts, error) {
	modeName := cmd.String("mode")
	if modeName == "" {
		modeName = r.config.Dedupe.Mode
	}
	mode, err := models.ParseMode(modeName)
	if err != nil {
		return tasks.RunOpts{}, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	opts := tasks.RunOpts{
		Playlists:        cmd.StringSlice("playlist"),
		All:              cmd.Bool("all"),
		Mode:             mode,
		Execute:          cmd.Bool("execute"),
		Concurrency:      r.config.Dedupe.Concurrency,
		FetchConcurrency: r.config.Dedupe.FetchConcurrency,
	}
	if cmd.IsSet("concurrency") {
		opts.Concurrency = int(cmd.Int("concurrency"))
	}
	if cmd.IsSet("fetch-concurrency") {
		opts.FetchConcurrency = int(cmd.Int("fetch-concurrency"))
	}

	switch {
	case !opts.All && len(opts.Playlists) == 0:
		return opts, fmt.Errorf("%w: use --playlist or --all", shared.ErrMissingArgument)
	case opts.Concurrency < 1 || opts.FetchConcurrency < 1:
		return opts, fmt.Errorf("%w: concurrency must be at least 1", shared.ErrInvalidArgument)
	}
	return opts, nil
}

// Dedupe finds duplicates in the selected playlists and removes them when --execute is set.
//
// The report is written even when the run fails part way, so removals that did happen are visible.
func (r *Runner) Dedupe(ctx context.Context, cmd *cli.Command) error {
	format := strings.ToLower(cmd.String("format"))
	switch format {
	case formatTable, formatJSON, formatCSV:
	default:
		return fmt.Errorf("%w: unknown format %q (want table, json or csv)", shared.ErrInvalidArgument, format)
	}

	opts, err := r.dedupeOpts(cmd)
	if err != nil {
		return err
	}

	if err := r.authenticate(ctx); err != nil {
		return err
	}

	var recorder tasks.RunRecorder
	if r.config.Database.Enabled && !cmd.Bool("no-history") {
		db, repo, err := r.openHistory()
		if err != nil {
			r.logger.Warn("run history disabled", "error", err)
		} else {
			defer db.Close()
			recorder = repo
		}
	}

	r.logger.Info("starting run", "mode", opts.Mode, "execute", opts.Execute, "all", opts.All, "playlists", len(opts.Playlists))

	var progress chan tasks.ProgressUpdate
	done := make(chan struct{})
	if format == formatTable {
		progress = make(chan tasks.ProgressUpdate, 50)
		go func() {
			defer close(done)
			for update := range progress {
				r.writeProgress(update)
			}
		}()
	} else {
		close(done)
	}

	result, runErr := r.newEngine(recorder).Run(ctx, opts, progress)
	if progress != nil {
		close(progress)
	}
	<-done

	if result == nil {
		return runErr
	}

	switch format {
	case formatJSON:
		err = formatter.WriteRunJSON(r.output, result, cmd.Bool("pretty"))
	case formatCSV:
		err = formatter.WriteRunCSV(r.output, result)
	default:
		r.writePlain("\n")
		err = formatter.WriteRunReport(r.output, result)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("stats") {
		out := r.output
		if format != formatTable {
			out = r.errOutput
		}
		if err := r.writeStats(out); err != nil {
			return err
		}
	}

	return runErr
}

func (r *Runner) writeProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.FetchPlaylists:
		r.writePlain("📥 %s\n", update.Message)
	case tasks.FetchTracks, tasks.RemoveTracks:
		r.writePlain("   %s\n", update.Message)
	case tasks.PlaylistDone:
		r.writePlain("%s\n", update.Message)
	default:
		r.logger.Debug(update.Message, "phase", update.Phase)
	}
}

// writeStats prints the request counters in the Prometheus text format.
func (r *Runner) writeStats(w io.Writer) error {
	families, err := r.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
