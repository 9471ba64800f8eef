package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

//go:generate mockgen -destination=mocks/mock_status_persistence.go -package=mocks -source=persistence.go StatusPersistence

// StatusFileName is the file kept under the configured status directory
const StatusFileName = "status.json"

// StatusPersistence stores the refresh status between restarts
//
//nolint:revive // status.StatusPersistence reads fine at call sites
type StatusPersistence interface {
	SaveStatus(ctx context.Context, status *SyncStatus) error

	// LoadStatus returns an empty SyncStatus on first run
	LoadStatus(ctx context.Context) (*SyncStatus, error)
}

type fileStatusPersistence struct {
	dir string
}

// NewFileStatusPersistence keeps the status in dir/status.json
func NewFileStatusPersistence(dir string) StatusPersistence {
	return &fileStatusPersistence{dir: dir}
}

// SaveStatus replaces the status file. Readers see either the old or the new
// document, never a partial write.
func (f *fileStatusPersistence) SaveStatus(ctx context.Context, status *SyncStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0750); err != nil {
		return fmt.Errorf("failed to create status directory %s: %w", f.dir, err)
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}

	tmp, err := os.CreateTemp(f.dir, "."+StatusFileName+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary status file: %w", err)
	}
	// no-op once the rename succeeded
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write status: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to flush status: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close status file: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(f.dir, StatusFileName)); err != nil {
		return fmt.Errorf("failed to replace status file: %w", err)
	}
	return nil
}

func (f *fileStatusPersistence) LoadStatus(ctx context.Context) (*SyncStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(f.dir, StatusFileName)
	// #nosec G304 -- path is the configured status directory plus a constant name
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return &SyncStatus{}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	status := &SyncStatus{}
	if err := json.Unmarshal(data, status); err != nil {
		return nil, fmt.Errorf("corrupt status file %s: %w", path, err)
	}
	return status, nil
}
