package sync

import (
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/stacklok/asteroid-radar/internal/asteroid"
	"github.com/stacklok/asteroid-radar/internal/feed"
)

// normalize converts raw feed records into asteroids.
// Records with an unparseable id or date, or a non-finite number, are dropped.
// Duplicate ids keep the last record.
func normalize(records []feed.RawRecord) (rows []asteroid.Asteroid, skipped int) {
	rows = make([]asteroid.Asteroid, 0, len(records))
	for _, rec := range records {
		a, reason := normalizeRecord(rec)
		if reason != "" {
			skipped++
			slog.Debug("Dropping malformed feed record", "id", rec.ID, "reason", reason)
			continue
		}
		rows = append(rows, a)
	}
	return asteroid.Dedupe(rows), skipped
}

func normalizeRecord(rec feed.RawRecord) (asteroid.Asteroid, string) {
	id, err := strconv.ParseInt(strings.TrimSpace(rec.ID), 10, 64)
	if err != nil {
		return asteroid.Asteroid{}, "invalid id"
	}

	date, err := asteroid.ParseDate(strings.TrimSpace(rec.CloseApproachDate))
	if err != nil {
		return asteroid.Asteroid{}, "invalid close approach date"
	}

	for _, f := range []float64{rec.AbsoluteMagnitude, rec.EstimatedDiameter, rec.RelativeVelocity, rec.MissDistance} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return asteroid.Asteroid{}, "non-finite numeric field"
		}
	}

	return asteroid.Asteroid{
		ID:                     id,
		Codename:               rec.Name,
		CloseApproachDate:      date,
		AbsoluteMagnitude:      rec.AbsoluteMagnitude,
		EstimatedDiameter:      rec.EstimatedDiameter,
		RelativeVelocity:       rec.RelativeVelocity,
		DistanceFromEarth:      rec.MissDistance,
		IsPotentiallyHazardous: rec.Hazardous,
	}, ""
}
