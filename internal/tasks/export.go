package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/desertthunder/lyx/internal/formatter"
	"github.com/desertthunder/lyx/internal/models"
	"github.com/desertthunder/lyx/internal/shared"
)

const manifestName = "export_manifest.json"

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// ExportOpts configures [ExportByArtist].
type ExportOpts struct {
	Format     string // Export format: csv, json, jsonl, markdown, txt
	OutputDir  string // Directory receiving one file per artist
	NumWorkers int    // Concurrent writers (default: 4, max: 10)
}

// ArtistExportJob is one artist's records queued for writing.
type ArtistExportJob struct {
	Artist  string
	File    string
	Records []models.LyricRecord
}

// ArtistExportResult is the outcome of writing one artist's file.
type ArtistExportResult struct {
	Artist  string `json:"artist"`
	File    string `json:"file,omitempty"`
	Records int    `json:"records"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ExportResult summarizes a per-artist export and is written as the manifest.
type ExportResult struct {
	Format            string               `json:"format"`
	OutputDirectory   string               `json:"output_directory"`
	TotalArtists      int                  `json:"total_artists"`
	SuccessfulExports int                  `json:"successful_exports"`
	FailedExports     int                  `json:"failed_exports"`
	Results           []ArtistExportResult `json:"results"`
	ManifestPath      string               `json:"-"`
}

// ArtistFileName returns a filesystem-safe file name for artist, e.g. "A Tribe Called Quest" → "a_tribe_called_quest.md".
func ArtistFileName(artist, format string) string {
	slug := strings.Trim(slugUnsafe.ReplaceAllString(shared.NormalizeArtist(artist), "_"), "_")
	if slug == "" {
		slug = "artist"
	}
	return slug + formatter.Extension(format)
}

// exportJobs groups the dataset by artist, giving colliding file names a numeric suffix.
func exportJobs(dataset *models.Dataset, opts ExportOpts) []ArtistExportJob {
	_, order := dataset.CountByArtist()
	byArtist := make(map[string][]models.LyricRecord, len(order))
	for _, r := range dataset.Records() {
		byArtist[r.Artist] = append(byArtist[r.Artist], r)
	}

	used := make(map[string]int, len(order))
	jobs := make([]ArtistExportJob, 0, len(order))
	for _, artist := range order {
		name := ArtistFileName(artist, opts.Format)
		if n := used[name]; n > 0 {
			ext := filepath.Ext(name)
			used[name]++
			name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n+1, ext)
		} else {
			used[name] = 1
		}
		jobs = append(jobs, ArtistExportJob{
			Artist:  artist,
			File:    filepath.Join(opts.OutputDir, name),
			Records: byArtist[artist],
		})
	}
	return jobs
}

// ExportByArtist writes one file per artist into opts.OutputDir using a pool of writers, then a JSON manifest.
//
// A failed file does not stop the others; failures are reported in the result.
func ExportByArtist(ctx context.Context, dataset *models.Dataset, opts ExportOpts, prog chan<- ProgressUpdate) (*ExportResult, error) {
	if opts.Format == "" {
		opts.Format = formatter.FormatJSON
	}
	if _, err := formatter.Export(nil, opts.Format, ""); err != nil {
		return nil, err
	}
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("%w: output directory", shared.ErrMissingArgument)
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	all := exportJobs(dataset, opts)
	total := len(all)
	result := &ExportResult{
		Format:          opts.Format,
		OutputDirectory: opts.OutputDir,
		TotalArtists:    total,
		Results:         make([]ArtistExportResult, 0, total),
	}

	jobs := make(chan ArtistExportJob, total)
	results := make(chan ArtistExportResult, total)

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go exportWorker(ctx, &wg, jobs, results, opts.Format)
	}

	go func() {
		defer close(jobs)
		for _, job := range all {
			select {
			case <-ctx.Done():
				return
			case jobs <- job:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)
		if res.Success {
			result.SuccessfulExports++
		} else {
			result.FailedExports++
		}
		sendProgress(prog, exportArtistUpdate(completed, total, res))
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	data, err := shared.MarshalJSON(result, true)
	if err != nil {
		return result, fmt.Errorf("export completed but failed to encode manifest: %w", err)
	}
	manifestPath := filepath.Join(opts.OutputDir, manifestName)
	if err := shared.WriteFileAtomic(manifestPath, data, 0644); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

func exportWorker(ctx context.Context, wg *sync.WaitGroup, jobs <-chan ArtistExportJob, results chan<- ArtistExportResult, format string) {
	defer wg.Done()

	for job := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res := ArtistExportResult{Artist: job.Artist, Records: len(job.Records)}
		if _, err := formatter.WriteExport(job.Records, format, job.Artist, job.File); err != nil {
			res.Error = err.Error()
		} else {
			res.File = job.File
			res.Success = true
		}
		results <- res
	}
}
