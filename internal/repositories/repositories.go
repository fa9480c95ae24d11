// package repositories provides persistence for the harvest: the CSV dataset, the input artist list,
// and the sqlite attempt ledger and run history.
package repositories

import (
	"errors"
	"fmt"

	"github.com/desertthunder/lyx/internal/shared"
)

// scanner is implemented by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// storageError wraps err in [shared.ErrStorage] unless it already is one.
func storageError(op string, err error) error {
	if errors.Is(err, shared.ErrStorage) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", shared.ErrStorage, op, err)
}
