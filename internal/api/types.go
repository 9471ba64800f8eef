package api

import (
	"time"

	"github.com/stacklok/asteroid-radar/internal/asteroid"
	"github.com/stacklok/asteroid-radar/pkg/versions"
)

// HealthResponse is returned by /health while the process is up
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadinessResponse describes the view that made the service ready
type ReadinessResponse struct {
	Status string `json:"status"`
	// Snapshot is the committed store read the published view was built from
	Snapshot    uint64          `json:"snapshot"`
	Filter      asteroid.Filter `json:"filter"`
	ViewSize    int             `json:"viewSize"`
	PublishedAt time.Time       `json:"publishedAt"`
}

// VersionResponse is the build information of the binary
type VersionResponse = versions.VersionInfo
