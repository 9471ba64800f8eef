package helpers

import (
	"fmt"
	"time"
)

// NeoRecord describes one asteroid served by the fake feed.
// DayOffset is relative to the start_date of the request.
type NeoRecord struct {
	ID        string
	Name      string
	DayOffset int
	Magnitude float64
	Diameter  float64
	Velocity  string
	Distance  string
	Hazardous bool
}

// NewNeoRecord creates a well-formed record approaching dayOffset days after the window start
func NewNeoRecord(id int, dayOffset int) NeoRecord {
	return NeoRecord{
		ID:        fmt.Sprintf("%d", id),
		Name:      fmt.Sprintf("(2024 T%d)", id),
		DayOffset: dayOffset,
		Magnitude: 20.5 + float64(id%5),
		Diameter:  0.1 * float64(id%7+1),
		Velocity:  fmt.Sprintf("%.4f", 5.0+float64(id%11)),
		Distance:  fmt.Sprintf("%.6f", 0.01*float64(id%13+1)),
		Hazardous: id%4 == 0,
	}
}

// StandardWeek returns records spread over the first days of a window:
// two today, one tomorrow and one on the last day of the window
func StandardWeek() []NeoRecord {
	return []NeoRecord{
		NewNeoRecord(1001, 0),
		NewNeoRecord(1002, 0),
		NewNeoRecord(1003, 1),
		NewNeoRecord(1004, 6),
	}
}

// Today returns the current date in UTC, matching the timezone of the test configuration
func Today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
