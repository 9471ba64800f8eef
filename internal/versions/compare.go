// Package versions compares the application versions recorded in persisted state.
package versions

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// IsNewerVersion reports whether candidate is a strictly greater release than current.
// Development builds ("dev", "build-<sha>") and unparseable strings carry no
// ordering, so they are never newer and nothing is newer than them.
func IsNewerVersion(candidate, current string) bool {
	c, ok := release(candidate)
	if !ok {
		return false
	}
	cur, ok := release(current)
	if !ok {
		return false
	}
	return c.GreaterThan(cur)
}

func release(v string) (*semver.Version, bool) {
	v = strings.TrimSpace(v)
	if v == "" || v == "dev" || strings.HasPrefix(v, "build-") {
		return nil, false
	}
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return nil, false
	}
	return parsed, true
}
