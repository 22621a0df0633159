package storage

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/collective-judgment/cjo/internal/cjoerr"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = cjoerr.ErrNotFound

// isNoRows reports whether err is pgx's no-rows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
