// Package tasks orchestrates playlist deduplication with real-time progress reporting.
//
// # Components
//
//   - [Repository] : playlist metadata, input resolution (id, list number or name) and track snapshots
//   - [Executor] : preview and execution of removals for a set of duplicate groups
//   - [PlaylistEngine] : runs both for every selected playlist
//
// # Run
//
// [PlaylistEngine.Run] processes playlists concurrently (bounded by [RunOpts].FetchConcurrency). For each one it
//
//  1. Fetches the full track listing through the [Repository]
//  2. Groups duplicates with [dedupe.FindDuplicates]
//  3. Previews the removals, or executes them when [RunOpts].Execute is set
//
// A fetch failure only affects its own playlist. An authentication failure aborts the run: playlists that
// have not started are marked aborted and the error is returned.
//
// # Removals
//
// [Executor.PreviewRemovals] never touches the service. [Executor.ExecuteRemovals] issues removals through a
// weighted semaphore, attempts every scheduled track regardless of individual failures, and returns one
// [models.RemovalResult] per scheduled track in group order.
//
// A removable track whose id matches the kept track, or a track id already scheduled, is skipped: the
// service deletes by id, so removing it would also remove the copy being kept.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages and optional data.
// Updates use select with default to prevent blocking.
//
// # Run History
//
// The optional [RunRecorder] (repositories.RunRepository) receives the [RunResult.Summary] of every run.
// Recording errors are logged and never fail the run.
package tasks
