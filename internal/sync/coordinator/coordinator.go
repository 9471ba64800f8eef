package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gofrs/flock"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/asteroid-radar/internal/asteroid"
	"github.com/stacklok/asteroid-radar/internal/config"
	pkgsync "github.com/stacklok/asteroid-radar/internal/sync"
	"github.com/stacklok/asteroid-radar/internal/sync/state"
	"github.com/stacklok/asteroid-radar/internal/telemetry"
)

// Decision tells the scheduler what to do after a cycle
type Decision string

const (
	// DecisionDone means the cache is current; wait for the next interval
	DecisionDone Decision = "done"
	// DecisionRetryLater means a transient failure; retry after a backoff delay
	DecisionRetryLater Decision = "retry-later"
	// DecisionNoRetry means retrying will not help until the next interval
	DecisionNoRetry Decision = "no-retry"
	// DecisionSkipped means another cycle held the lock
	DecisionSkipped Decision = "skipped"
)

// ReasonAlreadyInProgress is the skip reason when another cycle holds the lock
const ReasonAlreadyInProgress = "sync-already-in-progress"

// ErrCycleInProgress is returned by RunCycle when another cycle holds the lock
var ErrCycleInProgress = errors.New("a refresh cycle is already in progress")

// Coordinator manages background refresh scheduling and execution
//
//go:generate mockgen -destination=mocks/mock_coordinator.go -package=mocks github.com/stacklok/asteroid-radar/internal/sync/coordinator Coordinator
type Coordinator interface {
	// Start runs a cycle immediately and then keeps refreshing on schedule.
	// Blocks until the context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the refresh loop
	Stop() error

	// RunCycle runs one refresh cycle now. The result is never nil. The error is
	// ErrCycleInProgress when the cycle was skipped, or the *pkgsync.Error of a
	// failed refresh.
	RunCycle(ctx context.Context) (*CycleResult, error)
}

// CycleResult describes one refresh cycle
type CycleResult struct {
	RunID         string               `json:"runId"`
	ReferenceDate asteroid.Date        `json:"referenceDate"`
	Decision      Decision             `json:"decision"`
	Outcome       pkgsync.Outcome      `json:"outcome,omitempty"`
	SkipReason    string               `json:"skipReason,omitempty"`
	Message       string               `json:"message,omitempty"`
	Refresh       *pkgsync.Result      `json:"refresh,omitempty"`
	Evict         *pkgsync.EvictResult `json:"evict,omitempty"`
	EvictError    string               `json:"evictError,omitempty"`
	StartedAt     time.Time            `json:"startedAt"`
	Duration      string               `json:"duration"`
}

// decide maps a refresh error to the scheduling decision
func decide(err *pkgsync.Error) Decision {
	switch {
	case err == nil:
		return DecisionDone
	case err.Retryable():
		return DecisionRetryLater
	default:
		return DecisionNoRetry
	}
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	engine    pkgsync.Engine
	statusSvc state.StateService
	schedule  schedule

	now      func() time.Time
	location *time.Location
	tracer   trace.Tracer

	// cycleMu keeps cycles of this process from overlapping; fileLock does
	// the same across processes sharing a store
	cycleMu  sync.Mutex
	fileLock *flock.Flock

	// backOff is only touched by the Start loop
	backOff *backoff.ExponentialBackOff

	// Lifecycle management
	lifecycleMu sync.Mutex
	cancelFunc  context.CancelFunc
	done        chan struct{}

	syncMetrics *telemetry.SyncMetrics
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithSyncMetrics sets the sync metrics for the coordinator
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(c *defaultCoordinator) {
		c.syncMetrics = metrics
	}
}

// WithClock overrides the clock used to decide today's date
func WithClock(now func() time.Time) Option {
	return func(c *defaultCoordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLocation sets the time zone in which "today" is computed
func WithLocation(loc *time.Location) Option {
	return func(c *defaultCoordinator) {
		if loc != nil {
			c.location = loc
		}
	}
}

// WithTracer sets the tracer used for cycle spans
func WithTracer(tracer trace.Tracer) Option {
	return func(c *defaultCoordinator) {
		c.tracer = tracer
	}
}

// New creates a new coordinator with injected dependencies
func New(
	engine pkgsync.Engine,
	statusSvc state.StateService,
	cfg *config.SyncConfig,
	opts ...Option,
) Coordinator {
	sched := scheduleFromConfig(cfg)
	c := &defaultCoordinator{
		engine:    engine,
		statusSvc: statusSvc,
		schedule:  sched,
		now:       time.Now,
		location:  time.Local,
		backOff:   sched.newBackOff(),
		done:      make(chan struct{}),
	}
	if cfg != nil && cfg.LockFile != "" {
		c.fileLock = flock.New(cfg.LockFile)
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start begins background refresh coordination
func (c *defaultCoordinator) Start(ctx context.Context) error {
	slog.Info("Starting background refresh coordinator",
		"interval", c.schedule.interval,
		"jitter", c.schedule.jitter,
		"retry_initial", c.schedule.retryInitial,
		"retry_max", c.schedule.retryMax)

	coordCtx, cancel := context.WithCancel(ctx)
	c.lifecycleMu.Lock()
	c.cancelFunc = cancel
	c.lifecycleMu.Unlock()
	defer func() {
		cancel()
		close(c.done)
		slog.Info("Background refresh coordinator shutting down")
	}()

	// Perform the initial cycle right away
	ticker := time.NewTicker(c.runScheduledCycle(coordCtx))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ticker.Reset(c.runScheduledCycle(coordCtx))
		case <-coordCtx.Done():
			slog.Info("Refresh coordinator stopping")
			return nil
		}
	}
}

// Stop gracefully stops the coordinator
func (c *defaultCoordinator) Stop() error {
	c.lifecycleMu.Lock()
	cancel := c.cancelFunc
	c.lifecycleMu.Unlock()

	if cancel != nil {
		slog.Info("Stopping refresh coordinator")
		cancel()
		// Wait for the loop to finish
		<-c.done
	}
	return nil
}

// runScheduledCycle runs one cycle and returns the delay before the next one
func (c *defaultCoordinator) runScheduledCycle(ctx context.Context) time.Duration {
	result, _ := c.RunCycle(ctx)

	var next time.Duration
	switch result.Decision {
	case DecisionRetryLater:
		next = c.backOff.NextBackOff()
	case DecisionDone, DecisionNoRetry:
		c.backOff.Reset()
		next = c.schedule.nextInterval()
	default:
		next = c.schedule.nextInterval()
	}
	// time.Ticker rejects non-positive periods
	next = max(next, time.Millisecond)

	slog.Info("Next refresh cycle scheduled",
		"run_id", result.RunID,
		"decision", result.Decision,
		"in", next.Round(time.Second))
	return next
}

// today returns the calendar date the next refresh is anchored on
func (c *defaultCoordinator) today() asteroid.Date {
	return asteroid.DateOf(c.now().In(c.location))
}
