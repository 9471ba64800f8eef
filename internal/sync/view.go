package sync

import (
	"time"

	"github.com/stacklok/asteroid-radar/internal/asteroid"
	"github.com/stacklok/asteroid-radar/internal/status"
)

// View is an immutable, filtered snapshot of the cache
type View struct {
	// Seq increases by one with every published view
	Seq uint64 `json:"seq"`

	// Snapshot identifies the committed store read the view was built from.
	// Zero means the store has not been read yet.
	Snapshot uint64 `json:"snapshot"`

	// Filter is the filter applied to the snapshot
	Filter asteroid.Filter `json:"filter"`

	// Today is the date the filter was evaluated against
	Today asteroid.Date `json:"today"`

	// PublishedAt is when the view was built
	PublishedAt time.Time `json:"publishedAt"`

	rows []asteroid.Asteroid
}

// NewView returns a view over rows, which must already be filtered and ordered.
// The view keeps its own copy.
func NewView(seq, snapshot uint64, filter asteroid.Filter, today asteroid.Date, rows []asteroid.Asteroid) *View {
	own := make([]asteroid.Asteroid, len(rows))
	copy(own, rows)
	return &View{
		Seq:         seq,
		Snapshot:    snapshot,
		Filter:      filter,
		Today:       today,
		PublishedAt: time.Now(),
		rows:        own,
	}
}

// Rows returns a copy of the ordered rows
func (v *View) Rows() []asteroid.Asteroid {
	if v == nil {
		return nil
	}
	out := make([]asteroid.Asteroid, len(v.rows))
	copy(out, v.rows)
	return out
}

// Len returns the number of rows
func (v *View) Len() int {
	if v == nil {
		return 0
	}
	return len(v.rows)
}

// Ready reports whether the view reflects a store read
func (v *View) Ready() bool {
	return v != nil && v.Snapshot > 0
}

// Update is delivered to subscribers on every republish and status change
type Update struct {
	View   *View
	Status Status
}

// Status is the in-memory phase of the engine
type Status struct {
	Phase   status.Phase `json:"phase"`
	Message string       `json:"message,omitempty"`
	Since   time.Time    `json:"since"`
}

// snapshot is the ordered content of the store after one committed read
type snapshot struct {
	gen   uint64
	rows  []asteroid.Asteroid
	today asteroid.Date
}

func (s *snapshot) find(id int64) (asteroid.Asteroid, bool) {
	if s == nil {
		return asteroid.Asteroid{}, false
	}
	for _, r := range s.rows {
		if r.ID == id {
			return r, true
		}
	}
	return asteroid.Asteroid{}, false
}
