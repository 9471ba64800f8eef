// Package storage provides factory functions for creating storage-dependent components.
// It implements the Abstract Factory pattern so that the record store and the refresh
// status are created and released together for the configured backend.
package storage

import (
	"context"
	"fmt"

	"github.com/stacklok/asteroid-radar/internal/config"
	"github.com/stacklok/asteroid-radar/internal/store"
	"github.com/stacklok/asteroid-radar/internal/sync/state"
)

//go:generate mockgen -destination=mocks/mock_factory.go -package=mocks -source=factory.go Factory

// Factory creates storage-dependent components as a family.
//
// The factory encapsulates the creation of:
// - RecordStore: the asteroid table
// - StateService: the persisted refresh status
//
// It also owns the lifecycle of the store it hands out.
type Factory interface {
	// CreateRecordStore returns the record store for this factory's backend.
	// Repeated calls return the same store.
	CreateRecordStore(ctx context.Context) (store.RecordStore, error)

	// CreateStateService creates a state service for refresh status tracking.
	// The service is not initialized.
	CreateStateService(ctx context.Context) (state.StateService, error)

	// Cleanup releases any resources held by this factory.
	// Should be called when the application shuts down.
	Cleanup()
}

// NewStorageFactory creates a storage factory based on the configured backend.
func NewStorageFactory(ctx context.Context, cfg *config.Config, appVersion string) (Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	switch backend := cfg.GetStore().GetBackend(); backend {
	case store.BackendSQLite:
		return NewSQLiteFactory(ctx, cfg, appVersion)
	case store.BackendMemory:
		return NewMemoryFactory(cfg, appVersion)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}
