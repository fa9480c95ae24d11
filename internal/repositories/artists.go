package repositories

import (
	"fmt"
	"os"

	"github.com/desertthunder/lyx/internal/formatter"
	"github.com/desertthunder/lyx/internal/shared"
)

// ReadArtistNames reads the named column of the CSV file at path. Blank cells are skipped; duplicates are kept.
func ReadArtistNames(path, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open artist list: %v", shared.ErrInvalidInput, err)
	}
	defer f.Close()

	names, err := formatter.DecodeColumn(f, column)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return names, nil
}
