// Package v1 provides the asteroid cache endpoints: views, filter state, refresh and status.
package v1

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/asteroid-radar/internal/api/common"
	"github.com/stacklok/asteroid-radar/internal/asteroid"
	pkgsync "github.com/stacklok/asteroid-radar/internal/sync"
	"github.com/stacklok/asteroid-radar/internal/sync/coordinator"
	"github.com/stacklok/asteroid-radar/internal/sync/state"
)

const (
	// DefaultKeepaliveInterval is how often an idle watch stream receives a comment line
	DefaultKeepaliveInterval = 30 * time.Second

	maxFilterBodyBytes = 1 << 10
)

// Routes handles HTTP requests for the v1 endpoints.
type Routes struct {
	engine      pkgsync.Engine
	coordinator coordinator.Coordinator
	statusSvc   state.StateService

	keepalive time.Duration
}

// Option configures the routes
type Option func(*Routes)

// WithKeepaliveInterval sets the watch stream keepalive interval
func WithKeepaliveInterval(d time.Duration) Option {
	return func(r *Routes) {
		if d > 0 {
			r.keepalive = d
		}
	}
}

// NewRoutes creates a new Routes instance.
func NewRoutes(
	engine pkgsync.Engine,
	coord coordinator.Coordinator,
	statusSvc state.StateService,
	opts ...Option,
) *Routes {
	routes := &Routes{
		engine:      engine,
		coordinator: coord,
		statusSvc:   statusSvc,
		keepalive:   DefaultKeepaliveInterval,
	}
	for _, opt := range opts {
		opt(routes)
	}
	return routes
}

// Router creates and configures the HTTP router for the v1 endpoints.
func Router(
	engine pkgsync.Engine,
	coord coordinator.Coordinator,
	statusSvc state.StateService,
	opts ...Option,
) http.Handler {
	routes := NewRoutes(engine, coord, statusSvc, opts...)

	r := chi.NewRouter()

	r.Get("/asteroids", routes.listAsteroids)
	r.Get("/asteroids/watch", routes.watchAsteroids)
	r.Get("/asteroids/{id}", routes.getAsteroid)

	r.Get("/filter", routes.getFilter)
	r.Put("/filter", routes.setFilter)

	r.Post("/refresh", routes.refresh)
	r.Get("/status", routes.getStatus)

	return r
}

// listAsteroids handles GET /v1/asteroids.
// With ?filter= the filter is evaluated over the current snapshot without changing the active filter.
func (routes *Routes) listAsteroids(w http.ResponseWriter, r *http.Request) {
	current := routes.engine.CurrentView()
	if !current.Ready() {
		common.WriteErrorResponse(w, "Asteroid cache is not ready", http.StatusServiceUnavailable)
		return
	}

	raw := r.URL.Query().Get("filter")
	if raw == "" {
		common.WriteJSONResponse(w, newViewResponse(current), http.StatusOK)
		return
	}

	filter, err := asteroid.ParseFilter(raw)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if filter == current.Filter {
		common.WriteJSONResponse(w, newViewResponse(current), http.StatusOK)
		return
	}
	common.WriteJSONResponse(w, newViewResponse(routes.engine.Evaluate(filter)), http.StatusOK)
}

// getAsteroid handles GET /v1/asteroids/{id}
func (routes *Routes) getAsteroid(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetIDURLParam(r, "id")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	a, ok := routes.engine.Lookup(id)
	if !ok {
		common.WriteErrorResponse(w, "Asteroid not found", http.StatusNotFound)
		return
	}
	common.WriteJSONResponse(w, a, http.StatusOK)
}

// getFilter handles GET /v1/filter
func (routes *Routes) getFilter(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, FilterResponse{
		Filter:  routes.engine.Filter(),
		Filters: asteroid.Filters,
	}, http.StatusOK)
}

// setFilter handles PUT /v1/filter
func (routes *Routes) setFilter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFilterBodyBytes)).Decode(&req); err != nil {
		common.WriteErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	filter, err := asteroid.ParseFilter(req.Filter)
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	routes.engine.SetFilter(filter)
	slog.Info("Filter changed", "filter", filter.String())

	common.WriteJSONResponse(w, FilterResponse{
		Filter:  routes.engine.Filter(),
		Filters: asteroid.Filters,
	}, http.StatusOK)
}

// refresh handles POST /v1/refresh by running one cycle synchronously
func (routes *Routes) refresh(w http.ResponseWriter, r *http.Request) {
	result, err := routes.coordinator.RunCycle(r.Context())
	common.WriteJSONResponse(w, result, refreshStatusCode(err))
}

// refreshStatusCode maps a cycle error to the HTTP status of the refresh endpoint
func refreshStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, coordinator.ErrCycleInProgress) {
		return http.StatusConflict
	}
	syncErr, ok := pkgsync.AsError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch syncErr.Kind {
	case pkgsync.KindNetwork:
		return http.StatusBadGateway
	case pkgsync.KindParse:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// getStatus handles GET /v1/status
func (routes *Routes) getStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Engine:   routes.engine.Status(),
		Filter:   routes.engine.Filter(),
		ViewSize: routes.engine.CurrentView().Len(),
	}

	syncStatus, err := routes.statusSvc.GetSyncStatus(r.Context())
	if err != nil {
		slog.Warn("Failed to read refresh status", "error", err)
	} else {
		resp.Sync = syncStatus
	}

	common.WriteJSONResponse(w, resp, http.StatusOK)
}
