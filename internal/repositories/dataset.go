package repositories

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/desertthunder/lyx/internal/formatter"
	"github.com/desertthunder/lyx/internal/models"
	"github.com/desertthunder/lyx/internal/shared"
)

// DatasetRepository stores the output dataset as a single CSV file.
type DatasetRepository struct {
	path string
}

// NewDatasetRepository creates a DatasetRepository for the CSV file at path
func NewDatasetRepository(path string) *DatasetRepository {
	return &DatasetRepository{path: path}
}

// Path returns the dataset file path.
func (r *DatasetRepository) Path() string {
	return r.path
}

// Load reads the dataset and the set of artists it contains. A missing file is an empty dataset.
func (r *DatasetRepository) Load(ctx context.Context) (*models.Dataset, models.ArtistSet, error) {
	if r.path == "" {
		return nil, nil, fmt.Errorf("%w: dataset path is empty", shared.ErrInvalidConfig)
	}

	f, err := os.Open(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.NewDataset(nil), models.NewArtistSet(), nil
	}
	if err != nil {
		return nil, nil, storageError("failed to open dataset", err)
	}
	defer f.Close()

	records, err := formatter.DecodeDataset(f)
	if err != nil {
		return nil, nil, storageError(fmt.Sprintf("failed to read dataset %s", r.path), err)
	}

	dataset := models.NewDataset(records)
	return dataset, dataset.Artists(), nil
}

// Flush appends buffer to existing and atomically rewrites the whole file with the merged dataset.
//
// On failure the previous file is left untouched.
func (r *DatasetRepository) Flush(ctx context.Context, existing *models.Dataset, buffer []models.LyricRecord) (*models.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageError("flush cancelled", err)
	}

	merged := existing.Append(buffer)

	var buf bytes.Buffer
	if err := formatter.EncodeDataset(&buf, merged.Records()); err != nil {
		return nil, storageError("failed to encode dataset", err)
	}

	if err := shared.WriteFileAtomic(r.path, buf.Bytes(), 0644); err != nil {
		return nil, storageError("failed to write dataset", err)
	}

	return merged, nil
}
