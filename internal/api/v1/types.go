package v1

import (
	"time"

	"github.com/stacklok/asteroid-radar/internal/asteroid"
	"github.com/stacklok/asteroid-radar/internal/status"
	pkgsync "github.com/stacklok/asteroid-radar/internal/sync"
)

// ViewResponse is a published or evaluated view with its rows
type ViewResponse struct {
	Seq         uint64              `json:"seq"`
	Snapshot    uint64              `json:"snapshot"`
	Filter      asteroid.Filter     `json:"filter"`
	Today       asteroid.Date       `json:"today"`
	PublishedAt time.Time           `json:"publishedAt"`
	Count       int                 `json:"count"`
	Asteroids   []asteroid.Asteroid `json:"asteroids"`
}

func newViewResponse(v *pkgsync.View) ViewResponse {
	return ViewResponse{
		Seq:         v.Seq,
		Snapshot:    v.Snapshot,
		Filter:      v.Filter,
		Today:       v.Today,
		PublishedAt: v.PublishedAt,
		Count:       v.Len(),
		Asteroids:   v.Rows(),
	}
}

// FilterRequest is the body of PUT /v1/filter
type FilterRequest struct {
	Filter string `json:"filter"`
}

// FilterResponse reports the active filter
type FilterResponse struct {
	Filter  asteroid.Filter   `json:"filter"`
	Filters []asteroid.Filter `json:"filters"`
}

// StatusResponse combines the in-memory engine phase with the persisted refresh status
type StatusResponse struct {
	Engine pkgsync.Status     `json:"engine"`
	Sync   *status.SyncStatus `json:"sync,omitempty"`
	Filter asteroid.Filter    `json:"filter"`
	// ViewSize is the number of rows the current filter selects; the number of
	// cached asteroids is Sync.RecordCount
	ViewSize int `json:"viewSize"`
}
