package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"github.com/desertthunder/dzdedupe/internal/models"
	"github.com/desertthunder/dzdedupe/internal/services"
	"github.com/desertthunder/dzdedupe/internal/shared"
)

const DefaultRemovalConcurrency = 4

// Skip reasons
const (
	reasonMissingID   = "track has no id"
	reasonSurvivorID  = "same id as the kept track, removing it would delete both"
	reasonDuplicateID = "id already scheduled for removal"
	reasonAuthAborted = "not attempted after authentication failure"
	reasonRunCanceled = "not attempted, run canceled"
)

// Remover deletes a single track from a playlist.
type Remover interface {
	RemoveTrack(ctx context.Context, playlist models.Playlist, trackID string) error
}

// Executor turns duplicate groups into removals.
type Executor struct {
	remover     Remover
	concurrency int
	logger      *log.Logger
	metrics     *services.Metrics
}

// NewExecutor creates an executor issuing at most concurrency removals at once.
func NewExecutor(remover Remover, concurrency int, logger *log.Logger, metrics *services.Metrics) *Executor {
	if concurrency < 1 {
		concurrency = DefaultRemovalConcurrency
	}
	return &Executor{remover: remover, concurrency: concurrency, logger: logger, metrics: metrics}
}

// scheduled is one removable track and, if it must not be attempted, why.
type scheduled struct {
	track  models.Track
	reason string
}

// schedule lists every removable track in group order, then member order.
func schedule(groups []models.DuplicateGroup) []scheduled {
	kept := make(map[string]bool, len(groups))
	for _, g := range groups {
		kept[g.Survivor.ID] = true
	}

	var out []scheduled
	seen := make(map[string]bool)
	for _, g := range groups {
		for _, t := range g.Removable() {
			s := scheduled{track: t}
			switch {
			case t.ID == "":
				s.reason = reasonMissingID
			case kept[t.ID]:
				s.reason = reasonSurvivorID
			case seen[t.ID]:
				s.reason = reasonDuplicateID
			default:
				seen[t.ID] = true
			}
			out = append(out, s)
		}
	}
	return out
}

// PreviewRemovals reports what [Executor.ExecuteRemovals] would do with groups without calling the service.
func (e *Executor) PreviewRemovals(groups []models.DuplicateGroup) []models.Preview {
	plan := schedule(groups)
	previews := make([]models.Preview, len(plan))
	for i, s := range plan {
		previews[i] = models.Preview{Track: s.track, Outcome: models.OutcomeWouldRemove}
		if s.reason != "" {
			previews[i].Outcome = models.OutcomeSkipped
			previews[i].Reason = s.reason
		}
	}
	return previews
}

// ExecuteRemovals removes every scheduled track of groups from playlist.
//
// A failed removal never stops the others. The result has one entry per scheduled track in schedule
// order. After an authentication failure the queued tracks are skipped and the authentication error is
// returned along with the results.
func (e *Executor) ExecuteRemovals(ctx context.Context, playlist models.Playlist, groups []models.DuplicateGroup) ([]models.RemovalResult, error) {
	plan := schedule(groups)
	results := make([]models.RemovalResult, len(plan))

	sem := semaphore.NewWeighted(int64(e.concurrency))
	var wg sync.WaitGroup
	var aborted atomic.Bool
	var authOnce sync.Once
	var authErr error

	skip := func(i int, reason string) {
		results[i].Outcome = models.OutcomeSkipped
		results[i].Reason = reason
	}

	for i, s := range plan {
		results[i] = models.RemovalResult{TrackID: s.track.ID, Track: s.track}

		if s.reason != "" {
			skip(i, s.reason)
			continue
		}
		if ctx.Err() != nil {
			skip(i, reasonRunCanceled)
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			skip(i, reasonRunCanceled)
			continue
		}
		if aborted.Load() {
			sem.Release(1)
			skip(i, reasonAuthAborted)
			continue
		}

		wg.Add(1)
		go func(i int, t models.Track) {
			defer wg.Done()
			defer sem.Release(1)

			if aborted.Load() {
				skip(i, reasonAuthAborted)
				return
			}

			err := e.remover.RemoveTrack(ctx, playlist, t.ID)
			if err == nil {
				results[i].Outcome = models.OutcomeRemoved
				e.logger.Debug("removed track", "playlist", playlist.Name, "track_id", t.ID, "title", t.FullTitle())
				return
			}

			results[i].Outcome = models.OutcomeFailed
			results[i].Err = err
			e.logger.Warn("failed to remove track", "playlist", playlist.Name, "track_id", t.ID, "error", err)

			if errors.Is(err, shared.ErrAuthentication) {
				aborted.Store(true)
				authOnce.Do(func() { authErr = err })
			}
		}(i, s.track)
	}
	wg.Wait()

	for _, r := range results {
		e.metrics.Removal(string(r.Outcome))
	}

	if authErr != nil {
		return results, authErr
	}
	return results, ctx.Err()
}
