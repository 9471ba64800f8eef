package app

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/asteroid-radar/database"
	"github.com/stacklok/asteroid-radar/internal/asteroid"
	"github.com/stacklok/asteroid-radar/internal/store"
	pkgsync "github.com/stacklok/asteroid-radar/internal/sync"
	"github.com/stacklok/asteroid-radar/internal/sync/coordinator"
	coordmocks "github.com/stacklok/asteroid-radar/internal/sync/coordinator/mocks"
	"github.com/stacklok/asteroid-radar/pkg/versions"
)

var testRows = []asteroid.Asteroid{
	{ID: 3, Codename: "(2024 AB)", CloseApproachDate: asteroid.MustParseDate("2024-06-12"), AbsoluteMagnitude: 21.5, EstimatedDiameter: 0.15, RelativeVelocity: 12.3, DistanceFromEarth: 0.04},
	{ID: 1, Codename: "(2024 AA)", CloseApproachDate: asteroid.MustParseDate("2024-06-10"), AbsoluteMagnitude: 19.1, EstimatedDiameter: 0.42, RelativeVelocity: 8.7, DistanceFromEarth: 0.31, IsPotentiallyHazardous: true},
	{ID: 2, Codename: "(2024 AC)", CloseApproachDate: asteroid.MustParseDate("2024-06-20"), AbsoluteMagnitude: 24.0, EstimatedDiameter: 0.05, RelativeVelocity: 5.1, DistanceFromEarth: 0.12},
}

// writeTestConfig writes a config using a SQLite store in a temporary directory
func writeTestConfig(t *testing.T, backend string) (configPath, dbPath string) {
	t.Helper()
	dir := t.TempDir()
	dbPath = filepath.Join(dir, "asteroids.db")
	content := fmt.Sprintf(`store:
  backend: %s
  path: %s
status:
  path: %s
sync:
  timezone: UTC
  defaultFilter: week
`, backend, dbPath, filepath.Join(dir, "status"))
	configPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0600))
	return configPath, dbPath
}

func seedSQLite(t *testing.T, path string) {
	t.Helper()
	s, err := store.OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, s.UpsertAll(context.Background(), testRows))
	require.NoError(t, s.Close())
}

// execute runs the root command with args and returns its standard output
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCmd_JSON(t *testing.T) {
	out, err := execute(t, "", "version", "--format", "json")
	require.NoError(t, err)

	var info versions.VersionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, versions.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"serve", "refresh", "list", "migrate", "version"})
}

func TestCommands_RequireConfig(t *testing.T) {
	for _, args := range [][]string{{"serve"}, {"refresh"}, {"list"}, {"migrate", "up"}} {
		t.Run(args[0], func(t *testing.T) {
			_, err := execute(t, "", args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), `required flag(s) "config" not set`)
		})
	}
}

func TestListCmd(t *testing.T) {
	configPath, dbPath := writeTestConfig(t, store.BackendSQLite)
	seedSQLite(t, dbPath)

	tests := []struct {
		name    string
		args    []string
		wantIDs []int64
		wantErr string
	}{
		{name: "default filter from config", args: []string{"--date", "2024-06-11"}, wantIDs: []int64{3, 2}},
		{name: "all", args: []string{"--filter", "all", "--date", "2024-06-10"}, wantIDs: []int64{1, 3, 2}},
		{name: "today", args: []string{"--filter", "TODAY", "--date", "2024-06-12"}, wantIDs: []int64{3}},
		{name: "unknown filter", args: []string{"--filter", "month"}, wantErr: "unknown filter"},
		{name: "invalid date", args: []string{"--date", "June 10"}, wantErr: "invalid --date"},
		{name: "unknown format", args: []string{"--format", "xml"}, wantErr: "unknown format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"list", "--config", configPath, "--format", "json"}, tt.args...)
			out, err := execute(t, "", args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)

			var rows []asteroid.Asteroid
			require.NoError(t, json.Unmarshal([]byte(out), &rows))
			ids := make([]int64, 0, len(rows))
			for _, r := range rows {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestRenderTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, renderTable(&buf, testRows[:2]))

	out := buf.String()
	assert.Contains(t, out, "(2024 AA)")
	assert.Contains(t, out, "(2024 AB)")
	assert.Contains(t, out, "2024-06-10")
	assert.Contains(t, out, "0.420")
	assert.Contains(t, out, "yes")
}

func TestListAsteroids_SortsByDate(t *testing.T) {
	t.Parallel()

	s := store.NewMemoryStore()
	require.NoError(t, s.UpsertAll(context.Background(), testRows))

	rows, err := listAsteroids(context.Background(), s, asteroid.FilterAll, asteroid.MustParseDate("2024-06-01"))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(1), rows[0].ID)
	assert.Equal(t, int64(3), rows[1].ID)
	assert.Equal(t, int64(2), rows[2].ID)
}

func TestRefreshOnce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		result  *coordinator.CycleResult
		err     error
		wantErr string
	}{
		{
			name:   "done",
			result: &coordinator.CycleResult{RunID: "run-1", Decision: coordinator.DecisionDone, Outcome: pkgsync.OutcomeSuccess},
		},
		{
			name:    "network failure",
			result:  &coordinator.CycleResult{RunID: "run-2", Decision: coordinator.DecisionRetryLater, Message: "feed unreachable"},
			err:     &pkgsync.Error{Kind: pkgsync.KindNetwork, Message: "feed unreachable"},
			wantErr: "refresh did not complete (retry-later)",
		},
		{
			name:    "skipped",
			result:  &coordinator.CycleResult{RunID: "run-3", Decision: coordinator.DecisionSkipped},
			err:     coordinator.ErrCycleInProgress,
			wantErr: "already in progress",
		},
		{
			name:    "no retry without error value",
			result:  &coordinator.CycleResult{RunID: "run-4", Decision: coordinator.DecisionNoRetry, Message: "malformed feed"},
			wantErr: "malformed feed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			coord := coordmocks.NewMockCoordinator(ctrl)
			coord.EXPECT().RunCycle(gomock.Any()).Return(tt.result, tt.err)

			cmd := newRefreshCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)

			err := refreshOnce(context.Background(), cmd, coord)

			var printed coordinator.CycleResult
			require.NoError(t, json.Unmarshal(out.Bytes(), &printed))
			assert.Equal(t, tt.result.RunID, printed.RunID)

			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMigrateCmd(t *testing.T) {
	configPath, dbPath := writeTestConfig(t, store.BackendSQLite)

	schemaVersion := func() uint {
		db, err := sql.Open("sqlite", dbPath)
		require.NoError(t, err)
		defer db.Close()
		v, err := database.Version(context.Background(), db)
		require.NoError(t, err)
		return v
	}

	_, err := execute(t, "", "migrate", "up", "--config", configPath, "--yes")
	require.NoError(t, err)
	assert.Positive(t, schemaVersion())

	// Declining the prompt keeps the schema
	_, err = execute(t, "no\n", "migrate", "down", "--config", configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
	assert.Positive(t, schemaVersion())

	_, err = execute(t, "yes\n", "migrate", "down", "--config", configPath)
	require.NoError(t, err)
	assert.Zero(t, schemaVersion())
}

func TestMigrateCmd_MemoryBackend(t *testing.T) {
	configPath, _ := writeTestConfig(t, store.BackendMemory)

	_, err := execute(t, "", "migrate", "up", "--config", configPath, "--yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migrations only apply to the sqlite backend")
}
