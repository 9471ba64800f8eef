package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/asteroid-radar/internal/api/common"
	pkgsync "github.com/stacklok/asteroid-radar/internal/sync"
	"github.com/stacklok/asteroid-radar/pkg/versions"
)

// HealthRouter creates a router for health check endpoints
func HealthRouter(engine pkgsync.Engine) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(engine))
	r.Get("/version", versionHandler)

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, HealthResponse{Status: "healthy"}, http.StatusOK)
}

// readinessHandler reports ready once a view built from the store has been published
func readinessHandler(engine pkgsync.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		view := engine.CurrentView()
		if !view.Ready() {
			common.WriteErrorResponse(w, "Asteroid cache not ready: no view has been published yet", http.StatusServiceUnavailable)
			return
		}
		common.WriteJSONResponse(w, ReadinessResponse{
			Status:      "ready",
			Snapshot:    view.Snapshot,
			Filter:      view.Filter,
			ViewSize:    view.Len(),
			PublishedAt: view.PublishedAt,
		}, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, VersionResponse(versions.GetVersionInfo()), http.StatusOK)
}
