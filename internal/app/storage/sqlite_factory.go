package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/stacklok/asteroid-radar/internal/config"
	"github.com/stacklok/asteroid-radar/internal/status"
	"github.com/stacklok/asteroid-radar/internal/store"
	"github.com/stacklok/asteroid-radar/internal/sync/state"
)

// SQLiteFactory creates components backed by a SQLite database file.
// The refresh status lives next to it as a JSON file.
type SQLiteFactory struct {
	appVersion        string
	recordStore       *store.SQLiteStore
	statusPersistence status.StatusPersistence
}

var _ Factory = (*SQLiteFactory)(nil)

// NewSQLiteFactory opens the database, creating its directory and schema if needed.
func NewSQLiteFactory(ctx context.Context, cfg *config.Config, appVersion string) (*SQLiteFactory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	dbPath := cfg.GetStore().GetPath()
	if err := ensureDir(filepath.Dir(dbPath)); err != nil {
		return nil, err
	}
	statusDir := cfg.GetStatusPath()
	if err := ensureDir(statusDir); err != nil {
		return nil, err
	}

	slog.Info("Creating SQLite storage factory", "path", dbPath, "status_dir", statusDir)

	recordStore, err := store.OpenSQLite(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}

	return &SQLiteFactory{
		appVersion:        appVersion,
		recordStore:       recordStore,
		statusPersistence: status.NewFileStatusPersistence(statusDir),
	}, nil
}

// CreateRecordStore returns the SQLite record store.
func (f *SQLiteFactory) CreateRecordStore(_ context.Context) (store.RecordStore, error) {
	return f.recordStore, nil
}

// CreateStateService creates a file-based state service for refresh status tracking.
func (f *SQLiteFactory) CreateStateService(_ context.Context) (state.StateService, error) {
	slog.Debug("Creating file-based state service")
	return state.NewFileStateService(f.statusPersistence, f.appVersion), nil
}

// Cleanup closes the database.
func (f *SQLiteFactory) Cleanup() {
	slog.Debug("Closing SQLite record store")
	if err := f.recordStore.Close(); err != nil {
		slog.Warn("Failed to close record store", "error", err)
	}
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create data directory %s: %w", dir, err)
	}
	return nil
}
