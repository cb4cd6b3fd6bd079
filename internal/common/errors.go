// Package common defines shared constants and sentinel errors used across
// the CatchDex client layers. Callers should use errors.Is to match these
// values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrStorage wraps any local store failure (quota, corruption, I/O).
	// Writes are never silently dropped; every storage failure carries
	// this sentinel so the UI layer can warn about durability.
	ErrStorage = errors.New("local storage error")

	// ErrUnauthorized marks an invalid or expired session. The gateway
	// re-exports it as its application-class 401 sentinel.
	ErrUnauthorized = errors.New("unauthorized")

	// Precondition errors, rejected before any network or queue activity.
	ErrAlreadyOwned = errors.New("item already owned")
	ErrInvalidID    = errors.New("invalid identifier")
	ErrNotLoggedIn  = errors.New("not logged in")

	// ErrSessionActive is returned when a login/local-start is attempted
	// while another identity still holds the session.
	ErrSessionActive = errors.New("another session is active")
)

// WrapStorage tags a storage-engine failure with ErrStorage so callers can
// distinguish durability problems from everything else via errors.Is.
func WrapStorage(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, ErrStorage, err)
}
