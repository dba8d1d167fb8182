// Package store implements the row-store side of the application: reminders,
// journal entries, profiles and shared credentials, every query scoped by the
// owning user.
package store

import (
	"errors"
	"fmt"
)

var (
	// ErrRemote wraps every failure reported by the row store.
	ErrRemote = errors.New("row store request failed")
	// ErrMissingID is returned when an update targets a record without id.
	ErrMissingID = errors.New("record id is required")
	// ErrMissingUser is returned when an operation is not scoped to a user.
	ErrMissingUser = errors.New("user id is required")
	// ErrNotFound is returned when no row matches both the id and the owning user.
	ErrNotFound = errors.New("record not found")
)

func remoteError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrRemote, op, err)
}
