// Package models defines the domain entities of the lyx lyrics harvester.
//
// The package contains two categories of types:
//
// 1. Dataset types: the canonical rows written to the output CSV
//   - [LyricRecord] : one song with its lyrics and release date
//   - [Dataset] : the ordered, append-only merge of every flushed batch
//   - [ArtistSet] : normalized set of artists already processed
//
// 2. Ledger entities: rows of the sqlite attempt ledger
//   - [Attempt] : one artist fetch and its [Outcome]
//   - [Run] : one invocation of the batch job with its counters
//
// Provider payloads (Genius JSON) never appear here; they are parsed into [LyricRecord] by the tasks package.
package models
