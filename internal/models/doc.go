// Package models defines the domain entities shared by the dzdedupe packages.
//
// The package contains two categories of types:
//
// 1. Snapshot entities: immutable views of what the streaming service reported at fetch time
//   - [Playlist] : Playlist metadata, optionally with its ordered track listing
//   - [Track] : Song metadata with ISRC and the position it occupied in the playlist
//
// 2. Results: values produced by the deduplication pipeline
//   - [Mode] : Equivalence rule selected by the caller
//   - [DuplicateGroup] : Tracks sharing an equivalence key, with the survivor that stays
//   - [Preview] : A track that would be removed (dry run)
//   - [RemovalResult] : The outcome of one attempted removal
//
// Nothing in this package performs I/O. Snapshots are built once per run by the services package and never
// mutated afterwards; removals are recorded as results instead.
package models
