// package repositories provides SQLite persistence for favorites and publish history.
package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/earbump/internal/shared"
)

// rowScanner is satisfied by both [sql.Row] and [sql.Rows].
type rowScanner interface {
	Scan(dest ...any) error
}

// notFound maps [sql.ErrNoRows] to [shared.ErrResourceNotFound].
func notFound(err error, what, identifier string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", shared.ErrResourceNotFound, what, identifier)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// timestamp returns t, or the current time when t is zero.
func timestamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
