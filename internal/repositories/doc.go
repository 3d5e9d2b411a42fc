// Package repositories implements SQLite persistence for run history.
//
// [RunRepository] stores one row per run and one row per processed playlist. Only counts and
// playlist names are kept; track listings never reach the database.
//
// Runs carry a sequence number for human-readable references (run #42) independent of their UUID.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
