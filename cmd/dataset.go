package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/desertthunder/lyx/internal/formatter"
	"github.com/desertthunder/lyx/internal/models"
	"github.com/desertthunder/lyx/internal/repositories"
	"github.com/desertthunder/lyx/internal/shared"
	"github.com/desertthunder/lyx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ArtistCount is one row of the dataset stats.
type ArtistCount struct {
	Artist  string `json:"artist"`
	Records int    `json:"records"`
}

// DatasetSummary is the JSON shape of `dataset stats`.
type DatasetSummary struct {
	Path    string        `json:"path"`
	Records int           `json:"records"`
	Artists int           `json:"artists"`
	Counts  []ArtistCount `json:"counts"`
}

// loadDataset reads the dataset named by flag (or harvest.output_path).
func (r *Runner) loadDataset(ctx context.Context, cmd *cli.Command, flag string) (string, *models.Dataset, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return "", nil, err
	}

	path := config.Harvest.OutputPath
	if cmd.IsSet(flag) {
		path = cmd.String(flag)
	}

	dataset, _, err := repositories.NewDatasetRepository(path).Load(ctx)
	if err != nil {
		return "", nil, err
	}
	return path, dataset, nil
}

// DatasetStats prints the number of records per artist.
func (r *Runner) DatasetStats(ctx context.Context, cmd *cli.Command) error {
	path, dataset, err := r.loadDataset(ctx, cmd, "output")
	if err != nil {
		return err
	}

	counts, order := dataset.CountByArtist()
	summary := DatasetSummary{
		Path:    path,
		Records: dataset.Len(),
		Artists: len(order),
		Counts:  make([]ArtistCount, 0, len(order)),
	}
	for _, artist := range order {
		summary.Counts = append(summary.Counts, ArtistCount{Artist: artist, Records: counts[artist]})
	}

	if cmd.Bool("json") {
		return r.writeJSON(summary, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Dataset Stats")
	r.writePlain("File: %s\n", summary.Path)
	r.writePlain("Records: %d\n", summary.Records)
	r.writePlain("Artists: %d\n\n", summary.Artists)
	for _, c := range summary.Counts {
		r.writePlain("%6d  %s\n", c.Records, c.Artist)
	}
	return nil
}

// DatasetExport converts the dataset into another format, as a single file or one file per artist.
func (r *Runner) DatasetExport(ctx context.Context, cmd *cli.Command) error {
	format := strings.ToLower(cmd.String("format"))
	output := cmd.String("output")
	if output == "" {
		return fmt.Errorf("%w: --output", shared.ErrMissingArgument)
	}

	path, dataset, err := r.loadDataset(ctx, cmd, "dataset")
	if err != nil {
		return err
	}
	if dataset.Len() == 0 {
		return fmt.Errorf("%w: dataset %s has no records", shared.ErrInvalidInput, path)
	}

	if cmd.Bool("split") {
		return r.exportByArtist(ctx, dataset, format, output, int(cmd.Int("workers")))
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	written, err := formatter.WriteExport(dataset.Records(), format, title, output)
	if err != nil {
		return err
	}

	r.logger.Info("dataset exported", "format", format, "records", dataset.Len(), "path", written)
	r.writePlain("✓ Exported %d records to %s\n", dataset.Len(), written)
	return nil
}

func (r *Runner) exportByArtist(ctx context.Context, dataset *models.Dataset, format, dir string, workers int) error {
	progressCh := make(chan tasks.ProgressUpdate, 50)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progressCh {
			r.writePlain("   %s\n", update.Message)
		}
	}()

	result, err := tasks.ExportByArtist(ctx, dataset, tasks.ExportOpts{Format: format, OutputDir: dir, NumWorkers: workers}, progressCh)
	close(progressCh)
	<-printed

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Format: %s\n", result.Format)
	r.writePlain("Directory: %s\n", result.OutputDirectory)
	r.writePlain("Artists: %d (%d failed)\n", result.SuccessfulExports, result.FailedExports)
	r.writePlain("Manifest: %s\n", result.ManifestPath)

	if result.FailedExports > 0 {
		return fmt.Errorf("%w: %d artist files could not be written", shared.ErrStorage, result.FailedExports)
	}
	return nil
}
