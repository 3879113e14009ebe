// Package session keeps short-lived intake drafts between requests.
package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for unknown or expired sessions.
	ErrNotFound = errors.New("session not found")
	// ErrConflict is returned when Update keeps losing races for one session.
	ErrConflict = errors.New("session modified concurrently")
)

// UpdateFunc receives the current payload and returns its replacement.
// It may run more than once and must not have side effects.
type UpdateFunc func(data []byte) ([]byte, error)

// Store holds opaque session payloads with an idle lifetime. Put and Update
// refresh the lifetime. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, id string) ([]byte, error)
	Put(ctx context.Context, id string, data []byte) error
	// Update atomically replaces the payload of an existing session with
	// fn's result and returns it. An error from fn aborts the update and is
	// returned unchanged.
	Update(ctx context.Context, id string, fn UpdateFunc) ([]byte, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Clock interface for testable time operations
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using time.Now()
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
