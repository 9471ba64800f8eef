package store

import (
	"context"
	"errors"
	"sync"

	"github.com/stacklok/asteroid-radar/internal/asteroid"
)

var errClosed = errors.New("store is closed")

// MemoryStore keeps rows in a map. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	rows   map[int64]asteroid.Asteroid
	closed bool
}

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[int64]asteroid.Asteroid)}
}

// UpsertAll replaces the stored rows that share an id with rows and inserts the rest
func (m *MemoryStore) UpsertAll(ctx context.Context, rows []asteroid.Asteroid) error {
	if err := ctx.Err(); err != nil {
		return storeError("upsert", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return storeError("upsert", errClosed)
	}
	for _, r := range rows {
		m.rows[r.ID] = r
	}
	return nil
}

// Query returns the matching rows in canonical order
func (m *MemoryStore) Query(ctx context.Context, pred asteroid.Predicate) ([]asteroid.Asteroid, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeError("query", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, storeError("query", errClosed)
	}

	out := make([]asteroid.Asteroid, 0, len(m.rows))
	for _, r := range m.rows {
		if pred.Matches(r) {
			out = append(out, r)
		}
	}
	asteroid.Sort(out)
	return out, nil
}

// DeleteWhere removes the matching rows
func (m *MemoryStore) DeleteWhere(ctx context.Context, pred asteroid.Predicate) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeError("delete", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, storeError("delete", errClosed)
	}

	removed := 0
	for id, r := range m.rows {
		if pred.Matches(r) {
			delete(m.rows, id)
			removed++
		}
	}
	return removed, nil
}

// Close marks the store closed; later calls fail
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
