// Package repositories implements the persistence behind a harvest run.
//
// Key Implementations:
//   - [DatasetRepository] : the CSV output dataset; every flush rewrites the whole file through a temp file and rename
//   - [ReadArtistNames] : the input artist list (one named column of a CSV file)
//   - [AttemptRepository] : sqlite ledger of per-artist attempts; artists whose latest attempt was harvested,
//     empty or not found count as processed
//   - [RunRepository] : sqlite history of harvest runs and their counters
//
// All failures wrap [shared.ErrStorage] except unreadable input, which wraps [shared.ErrInvalidInput].
package repositories
