package main

import (
	"context"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/dzdedupe/internal/formatter"
)

// History lists recorded runs, shows one run, or prunes old runs.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, repo, err := r.openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")

	if age := cmd.Duration("prune"); age > 0 {
		cutoff := time.Now().Add(-age)
		n, err := repo.Prune(ctx, cutoff)
		if err != nil {
			return err
		}
		r.logger.Info("pruned runs", "count", n, "before", cutoff.Format(time.RFC3339))
		return r.writePlain("Pruned %d runs\n", n)
	}

	if ref := strings.TrimSpace(cmd.StringArg("run")); ref != "" {
		run, err := repo.GetRun(ctx, ref)
		if err != nil {
			return err
		}
		if useJSON {
			return r.writeJSON(run, pretty)
		}
		return formatter.WriteRunDetail(r.output, *run)
	}

	runs, err := repo.ListRuns(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if useJSON {
		return r.writeJSON(runs, pretty)
	}
	if len(runs) == 0 {
		r.writePlain("No runs recorded\n")
		if !r.config.Database.Enabled {
			r.writePlain("Set database.enabled = true in %s to record runs\n", r.configFile())
		}
		return nil
	}
	return r.writePlain("%s\n", formatter.HistoryTable(runs))
}
