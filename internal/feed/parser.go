package feed

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Paths of the record fields inside one near_earth_objects entry
const (
	pathID                = "id"
	pathName              = "name"
	pathAbsoluteMagnitude = "absolute_magnitude_h"
	pathEstimatedDiameter = "estimated_diameter.kilometers.estimated_diameter_max"
	pathHazardous         = "is_potentially_hazardous_asteroid"
	pathApproachDate      = "close_approach_data.0.close_approach_date"
	pathRelativeVelocity  = "close_approach_data.0.relative_velocity.kilometers_per_second"
	pathMissDistance      = "close_approach_data.0.miss_distance.astronomical"
)

// ParsePayload decodes a feed response body.
// It fails only when the envelope is unusable; individual records are
// returned as found, with unparseable numbers set to NaN.
func ParsePayload(body []byte) (*Payload, error) {
	if !gjson.ValidBytes(body) {
		return nil, parseError(errors.New("response is not valid JSON"))
	}
	if err := validateEnvelope(body); err != nil {
		return nil, parseError(err)
	}

	root := gjson.ParseBytes(body)
	payload := &Payload{
		ElementCount: int(root.Get("element_count").Int()),
	}

	root.Get("near_earth_objects").ForEach(func(_, group gjson.Result) bool {
		group.ForEach(func(_, record gjson.Result) bool {
			payload.Records = append(payload.Records, parseRecord(record))
			return true
		})
		return true
	})

	return payload, nil
}

func parseRecord(record gjson.Result) RawRecord {
	return RawRecord{
		ID:                record.Get(pathID).String(),
		Name:              record.Get(pathName).String(),
		CloseApproachDate: record.Get(pathApproachDate).String(),
		AbsoluteMagnitude: number(record.Get(pathAbsoluteMagnitude)),
		EstimatedDiameter: number(record.Get(pathEstimatedDiameter)),
		RelativeVelocity:  number(record.Get(pathRelativeVelocity)),
		MissDistance:      number(record.Get(pathMissDistance)),
		Hazardous:         record.Get(pathHazardous).Bool(),
	}
}

// number reads a JSON number or a numeric string.
// NeoWs encodes velocities and distances as strings.
func number(r gjson.Result) float64 {
	switch r.Type {
	case gjson.Number:
		return r.Num
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
