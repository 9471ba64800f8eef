package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/stacklok/asteroid-radar/internal/asteroid"
)

const (
	// WindowDays is the number of calendar days covered by one feed request
	WindowDays = 7

	// DefaultEndpoint is the base URL of the NeoWs REST API
	DefaultEndpoint = "https://api.nasa.gov/neo/rest/v1"

	// DemoAPIKey is the shared, heavily rate limited key NASA hands out for trials
	DemoAPIKey = "DEMO_KEY"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=types.go Client

// Client fetches one window of raw asteroid records from a remote feed
type Client interface {
	// Fetch returns the records of the window starting at start.
	// Errors are of type *Error.
	Fetch(ctx context.Context, start asteroid.Date, apiKey string) (*Payload, error)
}

// Payload is the decoded content of one feed response
type Payload struct {
	// Window is the date range that was requested
	Window Window

	// ElementCount is the record count reported by the feed itself
	ElementCount int

	// Records holds the raw records in document order
	Records []RawRecord
}

// Window is an inclusive range of calendar dates
type Window struct {
	Start asteroid.Date `json:"start"`
	End   asteroid.Date `json:"end"`
}

// NewWindow returns the feed window starting at start
func NewWindow(start asteroid.Date) Window {
	return Window{Start: start, End: start.AddDays(WindowDays - 1)}
}

// Contains reports whether d falls inside the window
func (w Window) Contains(d asteroid.Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start, w.End)
}

// RawRecord is one asteroid as described by the feed, before validation.
// Numeric fields that are missing or unparseable are NaN.
type RawRecord struct {
	ID                string
	Name              string
	CloseApproachDate string
	AbsoluteMagnitude float64
	EstimatedDiameter float64
	RelativeVelocity  float64
	MissDistance      float64
	Hazardous         bool
}

// ErrorKind classifies feed failures
type ErrorKind string

const (
	// KindNetwork covers transport failures, non-2xx responses and timeouts
	KindNetwork ErrorKind = "network"

	// KindParse covers bodies that cannot be decoded into a feed payload
	KindParse ErrorKind = "parse"
)

// Error is returned by Client implementations
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("feed %s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a feed error, defaulting to KindNetwork for
// errors that did not come from this package.
func KindOf(err error) ErrorKind {
	var feedErr *Error
	if errors.As(err, &feedErr) {
		return feedErr.Kind
	}
	return KindNetwork
}

func networkError(err error) *Error {
	return &Error{Kind: KindNetwork, Err: err}
}

func parseError(err error) *Error {
	return &Error{Kind: KindParse, Err: err}
}
