package state

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/stacklok/asteroid-radar/internal/status"
	"github.com/stacklok/asteroid-radar/internal/versions"
)

const (
	messageNoPreviousStatus = "No previous refresh found"
	messageInterrupted      = "Previous refresh was interrupted"
)

type fileStateService struct {
	statusPersistence status.StatusPersistence
	appVersion        string

	mu           sync.RWMutex
	cachedStatus *status.SyncStatus
}

// NewFileStateService creates a state service over the given persistence.
// appVersion is compared with the version recorded in the loaded status.
func NewFileStateService(statusPersistence status.StatusPersistence, appVersion string) StateService {
	return &fileStateService{
		statusPersistence: statusPersistence,
		appVersion:        appVersion,
	}
}

func (f *fileStateService) Initialize(ctx context.Context) error {
	syncStatus, err := f.statusPersistence.LoadStatus(ctx)
	if err != nil {
		slog.Warn("Failed to load refresh status, initializing with defaults", "error", err)
		syncStatus = &status.SyncStatus{
			Phase:   status.PhaseError,
			Message: messageNoPreviousStatus,
		}
	}

	switch {
	case syncStatus.Phase == "" && syncStatus.LastSyncTime == nil:
		slog.Info("No previous refresh status found, initializing with defaults")
		syncStatus.Phase = status.PhaseError
		syncStatus.Message = messageNoPreviousStatus
		if err := f.statusPersistence.SaveStatus(ctx, syncStatus); err != nil {
			slog.Warn("Failed to persist default refresh status", "error", err)
		}
	case syncStatus.Phase == status.PhaseLoading:
		// Only one process refreshes at a time, so a persisted Loading means it died mid-cycle
		slog.Warn("Previous refresh was interrupted, resetting to Error")
		syncStatus.Phase = status.PhaseError
		syncStatus.Message = messageInterrupted
		if err := f.statusPersistence.SaveStatus(ctx, syncStatus); err != nil {
			slog.Warn("Failed to persist corrected refresh status", "error", err)
		}
	}

	if versions.IsNewerVersion(syncStatus.AppVersion, f.appVersion) {
		slog.Warn("Refresh status was written by a newer version",
			"status_version", syncStatus.AppVersion,
			"running_version", f.appVersion)
	}

	if syncStatus.LastSyncTime != nil {
		slog.Info("Loaded refresh status",
			"phase", syncStatus.Phase,
			"last_sync", syncStatus.LastSyncTime.Format(time.RFC3339),
			"records", syncStatus.RecordCount)
	} else {
		slog.Info("Refresh status loaded, no previous successful refresh", "phase", syncStatus.Phase)
	}

	f.mu.Lock()
	f.cachedStatus = syncStatus
	f.mu.Unlock()
	return nil
}

func (f *fileStateService) GetSyncStatus(_ context.Context) (*status.SyncStatus, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cachedStatus.Copy(), nil
}

func (f *fileStateService) UpdateSyncStatus(ctx context.Context, syncStatus *status.SyncStatus) error {
	if syncStatus == nil {
		return errors.New("sync status is required")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if syncStatus.AppVersion == "" {
		syncStatus.AppVersion = f.appVersion
	}
	if err := f.statusPersistence.SaveStatus(ctx, syncStatus); err != nil {
		return err
	}
	f.cachedStatus = syncStatus.Copy()
	return nil
}

func (f *fileStateService) UpdateStatusAtomically(
	ctx context.Context,
	testAndUpdateFn func(syncStatus *status.SyncStatus) bool,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cachedStatus == nil {
		return false, errors.New("sync status not initialized")
	}

	candidate := f.cachedStatus.Copy()
	if !testAndUpdateFn(candidate) {
		return false, nil
	}
	candidate.AppVersion = f.appVersion
	if err := f.statusPersistence.SaveStatus(ctx, candidate); err != nil {
		return false, err
	}
	f.cachedStatus = candidate
	return true, nil
}
