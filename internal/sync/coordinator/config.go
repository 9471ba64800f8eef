package coordinator

import (
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/stacklok/asteroid-radar/internal/config"
)

// schedule holds the timing policy of the refresh loop
type schedule struct {
	interval     time.Duration
	jitter       time.Duration
	retryInitial time.Duration
	retryMax     time.Duration
}

// scheduleFromConfig extracts the refresh timing from the sync configuration
func scheduleFromConfig(cfg *config.SyncConfig) schedule {
	if cfg == nil {
		cfg = &config.SyncConfig{}
	}
	retry := cfg.GetRetry()
	return schedule{
		interval:     cfg.GetInterval(),
		jitter:       cfg.GetJitter(),
		retryInitial: retry.GetInitialInterval(),
		retryMax:     retry.GetMaxInterval(),
	}
}

// nextInterval returns the interval with a random offset in [-jitter, +jitter).
// The result is never below half the interval.
func (s schedule) nextInterval() time.Duration {
	if s.jitter <= 0 {
		return s.interval
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for scheduling jitter
	offset := time.Duration(rand.Int64N(int64(2*s.jitter))) - s.jitter
	return max(s.interval+offset, s.interval/2)
}

// newBackOff returns the exponential backoff used after retryable failures
func (s schedule) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInitial
	b.MaxInterval = s.retryMax
	b.Reset()
	return b
}
