// Package tasks runs the resumable lyrics harvest with real-time progress reporting.
//
// # Pipeline
//
//  1. [Extract] : maps one [services.RawSong] to a [models.LyricRecord]
//     - track name from full_title, falling back to title
//     - release date defaults to "N/A"
//     - missing fields yield [shared.ErrMalformedRecord]
//
//  2. [Harvester.Harvest] : fetches one artist and classifies the outcome
//     - malformed songs are skipped, siblings are kept
//     - transient upstream failures sleep a cooldown and defer the artist
//     - errors ride inside [HarvestResult], never returned
//
//  3. [HarvestEngine.Run] : walks the artist list
//     - skips artists already in the dataset or marked attempted in the ledger
//     - buffers records and flushes every N artists through a [ProgressStore]
//     - commits attempts to an [AttemptLedger] after each dataset flush
//
// # Progress Reporting
//
// Operations send [ProgressUpdate] values on a channel with select/default so a slow reader never blocks the pipeline.
//
// # Exports
//
// [ExportByArtist] writes one file per artist with a small pool of writers plus a JSON manifest.
package tasks
