package app

import (
	"context"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/asteroid-radar/internal/config"
	"github.com/stacklok/asteroid-radar/internal/sync/coordinator"
	syncmocks "github.com/stacklok/asteroid-radar/internal/sync/mocks"
	statemocks "github.com/stacklok/asteroid-radar/internal/sync/state/mocks"
)

// mockCoordinator implements the coordinator.Coordinator interface for testing.
// Start blocks until its context is cancelled, like the real refresh loop.
type mockCoordinator struct {
	mu          sync.Mutex
	startCalled bool
	stopCalled  bool
	startErr    error
	stopErr     error
}

func (m *mockCoordinator) Start(ctx context.Context) error {
	m.mu.Lock()
	m.startCalled = true
	err := m.startErr
	m.mu.Unlock()

	if err != nil {
		return err
	}
	<-ctx.Done()
	return nil
}

func (m *mockCoordinator) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalled = true
	return m.stopErr
}

func (*mockCoordinator) RunCycle(context.Context) (*coordinator.CycleResult, error) {
	return &coordinator.CycleResult{Decision: coordinator.DecisionDone}, nil
}

func (m *mockCoordinator) wasStartCalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCalled
}

func (m *mockCoordinator) wasStopCalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalled
}

// createTestApp creates an AsteroidApp with mocked components for testing.
// It constructs the app directly so that no storage or feed is needed.
func createTestApp(t *testing.T, ctrl *gomock.Controller, addr string) *AsteroidApp {
	t.Helper()

	components := &AppComponents{
		Engine:          syncmocks.NewMockEngine(ctrl),
		SyncCoordinator: &mockCoordinator{},
		StateService:    statemocks.NewMockStateService(ctrl),
	}

	cfg := createTestAppConfig()

	ctx := context.Background()
	appCtx, cancel := context.WithCancel(ctx)

	appCfg, err := baseConfig(WithConfig(cfg))
	require.NoError(t, err)
	appCfg.address = addr

	server, err := buildHTTPServer(ctx, appCfg, components)
	require.NoError(t, err)

	return &AsteroidApp{
		config:     cfg,
		components: components,
		httpServer: server,
		ctx:        appCtx,
		cancelFunc: cancel,
	}
}

// createTestAppConfig creates a minimal valid config for testing
func createTestAppConfig() *config.Config {
	return &config.Config{
		Store: &config.StoreConfig{Backend: "memory"},
		Sync:  &config.SyncConfig{Interval: "30m"},
	}
}

// startApp runs Start in the background and returns the channel receiving its result
func startApp(app *AsteroidApp) <-chan error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()
	// Wait for server to start
	time.Sleep(100 * time.Millisecond)
	return errChan
}

func waitForStart(t *testing.T, errChan <-chan error) error {
	t.Helper()
	select {
	case err := <-errChan:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after Stop()")
		return nil
	}
}

func TestAsteroidApp_Start(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		addr string
	}{
		{name: "successful start with ephemeral port", addr: ":0"},
		{name: "successful start on localhost", addr: "127.0.0.1:0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			app := createTestApp(t, ctrl, tt.addr)

			errChan := startApp(app)

			mockCoord := app.components.SyncCoordinator.(*mockCoordinator)
			assert.True(t, mockCoord.wasStartCalled(), "refresh coordinator should be started")

			require.NoError(t, app.Stop(5*time.Second))
			require.NoError(t, waitForStart(t, errChan))
		})
	}
}

func TestAsteroidApp_StartWithListener(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	app := createTestApp(t, ctrl, ":0")

	// Create a listener to get an actual port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	actualAddr := listener.Addr().String()
	listener.Close()

	// Update the server address to use the now-free port
	app.httpServer.Addr = actualAddr

	errChan := startApp(app)

	resp, err := http.Get("http://" + actualAddr + "/health")
	if err == nil {
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	mockCoord := app.components.SyncCoordinator.(*mockCoordinator)
	assert.True(t, mockCoord.wasStartCalled(), "refresh coordinator should be started")

	require.NoError(t, app.Stop(5*time.Second))
	require.NoError(t, waitForStart(t, errChan))
}

func TestAsteroidApp_Stop(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		timeout time.Duration
		start   bool
	}{
		{name: "graceful shutdown with normal timeout", timeout: 5 * time.Second, start: true},
		{name: "graceful shutdown with short timeout", timeout: time.Second, start: true},
		{name: "stop without starting first", timeout: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			app := createTestApp(t, ctrl, ":0")

			var errChan <-chan error
			if tt.start {
				errChan = startApp(app)
			}

			require.NoError(t, app.Stop(tt.timeout))

			mockCoord := app.components.SyncCoordinator.(*mockCoordinator)
			assert.True(t, mockCoord.wasStopCalled(), "refresh coordinator Stop should be called")

			if tt.start {
				require.NoError(t, waitForStart(t, errChan))
			}
		})
	}
}

func TestAsteroidApp_StopIdempotent(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	app := createTestApp(t, ctrl, ":0")

	errChan := startApp(app)

	require.NoError(t, app.Stop(5*time.Second))
	_ = waitForStart(t, errChan)

	// A second stop must not panic
	_ = app.Stop(5 * time.Second)
}

func TestAsteroidApp_StopWithNilCancelFunc(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	app := createTestApp(t, ctrl, ":0")
	app.cancelFunc = nil

	require.NoError(t, app.Stop(5*time.Second))
}

func TestAsteroidApp_GetConfig(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	app := createTestApp(t, ctrl, ":0")

	cfg := app.GetConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, "memory", cfg.GetStore().GetBackend())
}

func TestAsteroidApp_GetHTTPServer(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	app := createTestApp(t, ctrl, ":8080")

	server := app.GetHTTPServer()

	require.NotNil(t, server)
	assert.Equal(t, ":8080", server.Addr)
}

func TestAsteroidApp_StartError_AddressInUse(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	app := createTestApp(t, ctrl, listener.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		errChan <- app.Start()
	}()

	select {
	case startErr := <-errChan:
		require.Error(t, startErr)
		assert.Contains(t, startErr.Error(), "HTTP server failed")
		// The failing server cancels the refresh loop as well
		assert.True(t, app.components.SyncCoordinator.(*mockCoordinator).wasStartCalled())
	case <-time.After(5 * time.Second):
		_ = app.Stop(time.Second)
		t.Fatal("Expected Start() to fail due to port in use")
	}
}

func TestAsteroidApp_StartError_CoordinatorFails(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	app := createTestApp(t, ctrl, "127.0.0.1:0")
	app.components.SyncCoordinator.(*mockCoordinator).startErr = assert.AnError

	errChan := startApp(app)

	// The server keeps running until it is shut down
	require.NoError(t, app.Stop(5*time.Second))
	startErr := waitForStart(t, errChan)
	require.Error(t, startErr)
	assert.ErrorIs(t, startErr, assert.AnError)
}

// Verify that Coordinator interface is properly defined
var _ coordinator.Coordinator = (*mockCoordinator)(nil)
