// Package state contains logic for managing the refresh state which the server persists.
package state

import (
	"context"

	"github.com/stacklok/asteroid-radar/internal/status"
)

// StateService provides methods for inspecting and updating the persisted refresh status.
//
//nolint:revive // state.StateService reads fine at call sites
//go:generate mockgen -destination=mocks/mock_state_service.go -package=mocks github.com/stacklok/asteroid-radar/internal/sync/state StateService
type StateService interface {
	// Initialize loads the persisted status, repairing an interrupted refresh.
	// It is intended that this is called once at application startup.
	Initialize(ctx context.Context) error
	// GetSyncStatus returns a copy of the current status, nil before Initialize.
	GetSyncStatus(ctx context.Context) (*status.SyncStatus, error)
	// UpdateSyncStatus replaces the status and persists it.
	UpdateSyncStatus(ctx context.Context, syncStatus *status.SyncStatus) error
	// UpdateStatusAtomically applies testAndUpdateFn to the current status and
	// persists the result if the function reports a change, as one atomic action.
	UpdateStatusAtomically(ctx context.Context, testAndUpdateFn func(syncStatus *status.SyncStatus) bool) (bool, error)
}
