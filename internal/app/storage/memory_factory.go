package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stacklok/asteroid-radar/internal/config"
	"github.com/stacklok/asteroid-radar/internal/status"
	"github.com/stacklok/asteroid-radar/internal/store"
	"github.com/stacklok/asteroid-radar/internal/sync/state"
)

// MemoryFactory creates an in-memory record store. Nothing survives a restart
// except the refresh status file.
type MemoryFactory struct {
	appVersion        string
	recordStore       *store.MemoryStore
	statusPersistence status.StatusPersistence
}

var _ Factory = (*MemoryFactory)(nil)

// NewMemoryFactory creates a new in-memory storage factory.
func NewMemoryFactory(cfg *config.Config, appVersion string) (*MemoryFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	statusDir := cfg.GetStatusPath()
	if err := ensureDir(statusDir); err != nil {
		return nil, err
	}

	slog.Info("Creating in-memory storage factory", "status_dir", statusDir)

	return &MemoryFactory{
		appVersion:        appVersion,
		recordStore:       store.NewMemoryStore(),
		statusPersistence: status.NewFileStatusPersistence(statusDir),
	}, nil
}

// CreateRecordStore returns the in-memory record store.
func (f *MemoryFactory) CreateRecordStore(_ context.Context) (store.RecordStore, error) {
	return f.recordStore, nil
}

// CreateStateService creates a file-based state service for refresh status tracking.
func (f *MemoryFactory) CreateStateService(_ context.Context) (state.StateService, error) {
	slog.Debug("Creating file-based state service")
	return state.NewFileStateService(f.statusPersistence, f.appVersion), nil
}

// Cleanup releases the in-memory table.
func (f *MemoryFactory) Cleanup() {
	slog.Debug("Cleaning up in-memory storage factory")
	_ = f.recordStore.Close()
}
