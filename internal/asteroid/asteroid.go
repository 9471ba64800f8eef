// Package asteroid defines the near-Earth-object record, calendar dates
// and the view filters shared by the feed, store and sync packages.
package asteroid

import (
	"cmp"
	"slices"
)

// Asteroid is a single near-Earth object as stored in the local cache
type Asteroid struct {
	ID                     int64   `json:"id"`
	Codename               string  `json:"codename"`
	CloseApproachDate      Date    `json:"closeApproachDate"`
	AbsoluteMagnitude      float64 `json:"absoluteMagnitude"`
	EstimatedDiameter      float64 `json:"estimatedDiameterKm"`
	RelativeVelocity       float64 `json:"relativeVelocityKmS"`
	DistanceFromEarth      float64 `json:"distanceFromEarthAu"`
	IsPotentiallyHazardous bool    `json:"isPotentiallyHazardous"`
}

// Compare orders asteroids by close-approach date, then by id
func Compare(a, b Asteroid) int {
	if c := a.CloseApproachDate.Compare(b.CloseApproachDate); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Sort sorts rows in place by close-approach date ascending, then id ascending
func Sort(rows []Asteroid) {
	slices.SortFunc(rows, Compare)
}

// Dedupe returns rows with one entry per id, keeping the last occurrence.
// The relative order of the kept rows is preserved.
func Dedupe(rows []Asteroid) []Asteroid {
	last := make(map[int64]int, len(rows))
	for i, r := range rows {
		last[r.ID] = i
	}
	if len(last) == len(rows) {
		return rows
	}
	out := make([]Asteroid, 0, len(last))
	for i, r := range rows {
		if last[r.ID] == i {
			out = append(out, r)
		}
	}
	return out
}
