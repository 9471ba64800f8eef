package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/asteroid-radar/internal/asteroid"
	"github.com/stacklok/asteroid-radar/internal/status"
	pkgsync "github.com/stacklok/asteroid-radar/internal/sync"
	"github.com/stacklok/asteroid-radar/internal/sync/coordinator"
	coordmocks "github.com/stacklok/asteroid-radar/internal/sync/coordinator/mocks"
	syncmocks "github.com/stacklok/asteroid-radar/internal/sync/mocks"
	statemocks "github.com/stacklok/asteroid-radar/internal/sync/state/mocks"
)

var today = asteroid.MustParseDate("2024-06-10")

func testRows() []asteroid.Asteroid {
	return []asteroid.Asteroid{
		{ID: 3542519, Codename: "(2010 PK9)", CloseApproachDate: today, EstimatedDiameter: 0.27, IsPotentiallyHazardous: true},
		{ID: 2465633, Codename: "465633 (2009 JR5)", CloseApproachDate: today.AddDays(1), EstimatedDiameter: 0.48},
	}
}

type testMocks struct {
	engine      *syncmocks.MockEngine
	coordinator *coordmocks.MockCoordinator
	state       *statemocks.MockStateService
}

func newTestRouter(t *testing.T, opts ...Option) (http.Handler, testMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := testMocks{
		engine:      syncmocks.NewMockEngine(ctrl),
		coordinator: coordmocks.NewMockCoordinator(ctrl),
		state:       statemocks.NewMockStateService(ctrl),
	}
	return Router(m.engine, m.coordinator, m.state, opts...), m
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestListAsteroids(t *testing.T) {
	t.Parallel()

	rows := testRows()
	weekView := pkgsync.NewView(4, 2, asteroid.FilterWeek, today, rows)
	todayView := pkgsync.NewView(4, 2, asteroid.FilterToday, today, rows[:1])

	tests := []struct {
		name       string
		path       string
		setup      func(m testMocks)
		wantStatus int
		wantFilter asteroid.Filter
		wantCount  int
		wantErr    string
	}{
		{
			name: "current view",
			path: "/asteroids",
			setup: func(m testMocks) {
				m.engine.EXPECT().CurrentView().Return(weekView)
			},
			wantStatus: http.StatusOK,
			wantFilter: asteroid.FilterWeek,
			wantCount:  2,
		},
		{
			name: "other filter is evaluated without changing state",
			path: "/asteroids?filter=TODAY",
			setup: func(m testMocks) {
				m.engine.EXPECT().CurrentView().Return(weekView)
				m.engine.EXPECT().Evaluate(asteroid.FilterToday).Return(todayView)
				m.engine.EXPECT().SetFilter(gomock.Any()).Times(0)
			},
			wantStatus: http.StatusOK,
			wantFilter: asteroid.FilterToday,
			wantCount:  1,
		},
		{
			name: "same filter reuses the published view",
			path: "/asteroids?filter=week",
			setup: func(m testMocks) {
				m.engine.EXPECT().CurrentView().Return(weekView)
				m.engine.EXPECT().Evaluate(gomock.Any()).Times(0)
			},
			wantStatus: http.StatusOK,
			wantFilter: asteroid.FilterWeek,
			wantCount:  2,
		},
		{
			name: "unknown filter",
			path: "/asteroids?filter=month",
			setup: func(m testMocks) {
				m.engine.EXPECT().CurrentView().Return(weekView)
			},
			wantStatus: http.StatusBadRequest,
			wantErr:    "unknown filter",
		},
		{
			name: "not loaded yet",
			path: "/asteroids",
			setup: func(m testMocks) {
				m.engine.EXPECT().CurrentView().Return(nil)
			},
			wantStatus: http.StatusServiceUnavailable,
			wantErr:    "not ready",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router, m := newTestRouter(t)
			tt.setup(m)

			rr := serve(router, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			if tt.wantErr != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
				assert.Contains(t, body["error"], tt.wantErr)
				return
			}

			var body ViewResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.wantFilter, body.Filter)
			assert.Equal(t, tt.wantCount, body.Count)
			assert.Len(t, body.Asteroids, tt.wantCount)
			assert.Equal(t, today, body.Today)
			assert.Equal(t, uint64(2), body.Snapshot)
		})
	}
}

func TestGetAsteroid(t *testing.T) {
	t.Parallel()

	rows := testRows()

	tests := []struct {
		name       string
		path       string
		setup      func(m testMocks)
		wantStatus int
	}{
		{
			name: "found",
			path: "/asteroids/3542519",
			setup: func(m testMocks) {
				m.engine.EXPECT().Lookup(int64(3542519)).Return(rows[0], true)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "not found",
			path: "/asteroids/1",
			setup: func(m testMocks) {
				m.engine.EXPECT().Lookup(int64(1)).Return(asteroid.Asteroid{}, false)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "invalid id",
			path:       "/asteroids/apophis",
			setup:      func(testMocks) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router, m := newTestRouter(t)
			tt.setup(m)

			rr := serve(router, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantStatus, rr.Code)

			if tt.wantStatus == http.StatusOK {
				var got asteroid.Asteroid
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
				assert.Equal(t, rows[0], got)
			}
		})
	}
}

func TestFilterEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("get", func(t *testing.T) {
		t.Parallel()
		router, m := newTestRouter(t)
		m.engine.EXPECT().Filter().Return(asteroid.FilterWeek)

		rr := serve(router, http.MethodGet, "/filter", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var body FilterResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, asteroid.FilterWeek, body.Filter)
		assert.Equal(t, asteroid.Filters, body.Filters)
	})

	t.Run("put", func(t *testing.T) {
		t.Parallel()
		router, m := newTestRouter(t)
		gomock.InOrder(
			m.engine.EXPECT().SetFilter(asteroid.FilterAll),
			m.engine.EXPECT().Filter().Return(asteroid.FilterAll),
		)

		rr := serve(router, http.MethodPut, "/filter", `{"filter":" All "}`)
		require.Equal(t, http.StatusOK, rr.Code)

		var body FilterResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, asteroid.FilterAll, body.Filter)
	})

	for name, body := range map[string]string{
		"unknown filter": `{"filter":"month"}`,
		"empty filter":   `{}`,
		"malformed body": `{"filter":`,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			router, m := newTestRouter(t)
			m.engine.EXPECT().SetFilter(gomock.Any()).Times(0)

			rr := serve(router, http.MethodPut, "/filter", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "done", err: nil, wantStatus: http.StatusOK},
		{name: "busy", err: coordinator.ErrCycleInProgress, wantStatus: http.StatusConflict},
		{name: "network", err: &pkgsync.Error{Kind: pkgsync.KindNetwork, Message: "timeout"}, wantStatus: http.StatusBadGateway},
		{name: "parse", err: &pkgsync.Error{Kind: pkgsync.KindParse, Message: "bad"}, wantStatus: http.StatusUnprocessableEntity},
		{name: "store", err: &pkgsync.Error{Kind: pkgsync.KindStore, Message: "disk"}, wantStatus: http.StatusInternalServerError},
		{name: "lock failure", err: errors.New("failed to acquire sync lock"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router, m := newTestRouter(t)
			result := &coordinator.CycleResult{RunID: "run-1", ReferenceDate: today, Decision: coordinator.DecisionDone}
			m.coordinator.EXPECT().RunCycle(gomock.Any()).Return(result, tt.err)

			rr := serve(router, http.MethodPost, "/refresh", "")
			assert.Equal(t, tt.wantStatus, rr.Code)

			var body coordinator.CycleResult
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, "run-1", body.RunID)
			assert.Equal(t, today, body.ReferenceDate)
		})
	}
}

func TestGetStatus(t *testing.T) {
	t.Parallel()

	since := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	lastSync := since.Add(-time.Hour)

	tests := []struct {
		name     string
		stateErr error
		wantSync bool
	}{
		{name: "with persisted status", wantSync: true},
		{name: "persisted status unavailable", stateErr: errors.New("not initialized")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router, m := newTestRouter(t)
			m.engine.EXPECT().Status().Return(pkgsync.Status{Phase: status.PhaseDone, Message: "Idle", Since: since})
			m.engine.EXPECT().Filter().Return(asteroid.FilterToday)
			m.engine.EXPECT().CurrentView().Return(pkgsync.NewView(1, 1, asteroid.FilterToday, today, testRows()[:1]))
			if tt.stateErr != nil {
				m.state.EXPECT().GetSyncStatus(gomock.Any()).Return(nil, tt.stateErr)
			} else {
				m.state.EXPECT().GetSyncStatus(gomock.Any()).Return(&status.SyncStatus{
					Phase:        status.PhaseDone,
					LastSyncTime: &lastSync,
					RecordCount:  12,
				}, nil)
			}

			rr := serve(router, http.MethodGet, "/status", "")
			require.Equal(t, http.StatusOK, rr.Code)

			var body StatusResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, status.PhaseDone, body.Engine.Phase)
			assert.Equal(t, asteroid.FilterToday, body.Filter)
			assert.Equal(t, 1, body.ViewSize, "the filtered view size, not the cache size")
			if tt.wantSync {
				require.NotNil(t, body.Sync)
				assert.Equal(t, 12, body.Sync.RecordCount)
			} else {
				assert.Nil(t, body.Sync)
			}
		})
	}
}
