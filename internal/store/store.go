// Package store persists asteroid records keyed by their identifier.
//
// Two backends implement RecordStore: a SQLite database for durable caches and
// an in-memory table for tests and ephemeral runs. Both return rows ordered by
// close-approach date, then by id.
package store

import (
	"context"
	"fmt"

	"github.com/stacklok/asteroid-radar/internal/asteroid"
)

const (
	// BackendSQLite selects the SQLite backend
	BackendSQLite = "sqlite"
	// BackendMemory selects the in-memory backend
	BackendMemory = "memory"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go RecordStore

// RecordStore is a table of asteroids keyed by id
type RecordStore interface {
	// UpsertAll inserts or replaces every row as one atomic operation
	UpsertAll(ctx context.Context, rows []asteroid.Asteroid) error

	// Query returns the rows matching pred ordered by close-approach date, then id
	Query(ctx context.Context, pred asteroid.Predicate) ([]asteroid.Asteroid, error)

	// DeleteWhere removes the rows matching pred and returns how many were removed
	DeleteWhere(ctx context.Context, pred asteroid.Predicate) (int, error)

	// Close releases the underlying resources
	Close() error
}

// Error is returned by every RecordStore operation that fails
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// New opens the record store for the given backend.
// path is ignored by the memory backend.
func New(ctx context.Context, backend, path string) (RecordStore, error) {
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendSQLite, "":
		return OpenSQLite(ctx, path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
