package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	gosync "sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/stacklok/asteroid-radar/internal/asteroid"
	"github.com/stacklok/asteroid-radar/internal/feed"
	"github.com/stacklok/asteroid-radar/internal/otel"
	"github.com/stacklok/asteroid-radar/internal/status"
	"github.com/stacklok/asteroid-radar/internal/store"
	"github.com/stacklok/asteroid-radar/internal/telemetry"
)

// DefaultFetchTimeout bounds a single feed request
const DefaultFetchTimeout = 30 * time.Second

// Result contains the result of a successful refresh
type Result struct {
	Outcome Outcome     `json:"outcome"`
	Window  feed.Window `json:"window"`
	// Fetched is the number of raw records in the feed response
	Fetched int `json:"fetched"`
	// Stored is the number of normalized records upserted
	Stored int `json:"stored"`
	// Skipped is the number of malformed records dropped
	Skipped int `json:"skipped"`
	// Records is the store size after the refresh
	Records int `json:"records"`
}

// EvictResult contains the result of a successful eviction
type EvictResult struct {
	ReferenceDate asteroid.Date `json:"referenceDate"`
	Evicted       int           `json:"evicted"`
	Records       int           `json:"records"`
}

// Engine owns the cached asteroid view and keeps it in step with the feed
//
//go:generate mockgen -destination=mocks/mock_engine.go -package=mocks github.com/stacklok/asteroid-radar/internal/sync Engine
type Engine interface {
	// Refresh fetches the window starting at referenceDate and commits it.
	// Callers refreshing the same date share one pass; canceling ctx stops
	// waiting for it but does not abort it.
	Refresh(ctx context.Context, referenceDate asteroid.Date) (*Result, *Error)

	// EvictStale removes rows dated strictly before referenceDate
	EvictStale(ctx context.Context, referenceDate asteroid.Date) (*EvictResult, *Error)

	// Load reads the store into memory and publishes the first view
	Load(ctx context.Context) *Error

	// SetFilter changes the filter and republishes without any I/O
	SetFilter(filter asteroid.Filter)

	// Filter returns the current filter
	Filter() asteroid.Filter

	// CurrentView returns the last published view, nil before the first publish
	CurrentView() *View

	// Evaluate applies filter to the current snapshot without publishing
	Evaluate(filter asteroid.Filter) *View

	// Lookup finds an asteroid by id in the current snapshot
	Lookup(id int64) (asteroid.Asteroid, bool)

	// Status returns the current phase
	Status() Status

	// Subscribe registers fn for every republish and status change.
	// fn runs synchronously and must not call SetFilter, Refresh, EvictStale or Load.
	Subscribe(fn func(Update)) (cancel func())
}

// Option configures the engine
type Option func(*defaultEngine)

// WithAPIKey sets the feed credential
func WithAPIKey(key string) Option {
	return func(e *defaultEngine) {
		e.apiKey = key
	}
}

// WithFetchTimeout bounds each feed request
func WithFetchTimeout(d time.Duration) Option {
	return func(e *defaultEngine) {
		if d > 0 {
			e.fetchTimeout = d
		}
	}
}

// WithDefaultFilter sets the filter the engine starts with
func WithDefaultFilter(f asteroid.Filter) Option {
	return func(e *defaultEngine) {
		if f.IsValid() {
			e.filter.Store(f)
		}
	}
}

// WithClock sets the source of "today" for filter changes made before any refresh
func WithClock(now func() time.Time) Option {
	return func(e *defaultEngine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithTracer sets the tracer used for engine spans
func WithTracer(tracer trace.Tracer) Option {
	return func(e *defaultEngine) {
		e.tracer = tracer
	}
}

// WithCacheMetrics sets the instruments recording published views
func WithCacheMetrics(m *telemetry.CacheMetrics) Option {
	return func(e *defaultEngine) {
		e.metrics = m
	}
}

type defaultEngine struct {
	feed         feed.Client
	store        store.RecordStore
	apiKey       string
	fetchTimeout time.Duration
	now          func() time.Time
	tracer       trace.Tracer
	metrics      *telemetry.CacheMetrics

	refreshes singleflight.Group
	// mutateMu serializes store mutations together with the read that follows them
	mutateMu gosync.Mutex

	// stateMu serializes writers of the fields below and orders publishes.
	// Readers load the atomics without locking.
	stateMu gosync.Mutex
	gen     uint64
	seq     uint64
	filter  atomic.Value // asteroid.Filter
	snap    atomic.Pointer[snapshot]
	view    atomic.Pointer[View]
	status  atomic.Pointer[Status]

	// notifyMu is taken before stateMu is released so listeners see publishes in order
	notifyMu  gosync.Mutex
	subsMu    gosync.Mutex
	subs      map[uint64]func(Update)
	nextSubID uint64
}

// NewEngine creates an engine over the given feed client and record store.
// Nothing is read until Load or Refresh is called.
func NewEngine(feedClient feed.Client, recordStore store.RecordStore, opts ...Option) Engine {
	e := &defaultEngine{
		feed:         feedClient,
		store:        recordStore,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
		subs:         make(map[uint64]func(Update)),
	}
	e.filter.Store(asteroid.DefaultFilter)
	for _, opt := range opts {
		opt(e)
	}
	e.status.Store(&Status{Phase: status.PhaseDone, Message: "Idle", Since: e.now()})
	return e
}

// Refresh runs one fetch-normalize-upsert-publish pass.
// Concurrent calls for the same date share a single execution. The shared pass
// is not canceled with any one caller; it is bounded by the fetch timeout, and
// a caller whose ctx ends stops waiting for it.
func (e *defaultEngine) Refresh(ctx context.Context, referenceDate asteroid.Date) (*Result, *Error) {
	detached := context.WithoutCancel(ctx)
	ch := e.refreshes.DoChan(referenceDate.String(), func() (any, error) {
		res, engineErr := e.refresh(detached, referenceDate)
		if engineErr != nil {
			return nil, engineErr
		}
		return res, nil
	})

	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return nil, fetchError(fmt.Errorf("stopped waiting for refresh of %s: %w", referenceDate, ctx.Err()))
	}
	if r.Shared {
		slog.Debug("Joined in-flight refresh", "reference_date", referenceDate.String())
	}
	v, err := r.Val, r.Err
	if err != nil {
		engineErr, ok := AsError(err)
		if !ok {
			engineErr = &Error{Err: err, Message: err.Error(), Kind: KindNetwork}
		}
		return nil, engineErr
	}
	res := *v.(*Result)
	return &res, nil
}

func (e *defaultEngine) refresh(ctx context.Context, referenceDate asteroid.Date) (*Result, *Error) {
	window := feed.NewWindow(referenceDate)
	ctx, span := otel.StartSpan(ctx, e.tracer, "sync.Refresh",
		trace.WithAttributes(
			otel.AttrReferenceDate.String(referenceDate.String()),
			otel.AttrFeedWindowStart.String(window.Start.String()),
			otel.AttrFeedWindowEnd.String(window.End.String()),
		),
	)
	defer span.End()

	e.mutateMu.Lock()
	defer e.mutateMu.Unlock()

	e.setStatus(status.PhaseLoading, fmt.Sprintf("Refreshing window %s", window))

	result, engineErr := e.fetchAndCommit(ctx, window)
	if engineErr != nil {
		otel.RecordError(span, engineErr)
		span.SetAttributes(otel.AttrOutcome.String(string(engineErr.Outcome())))
		slog.Error("Refresh failed",
			"reference_date", referenceDate.String(),
			"kind", engineErr.Kind,
			"error", engineErr.Err)
		e.setStatus(status.PhaseError, engineErr.Message)
		return nil, engineErr
	}

	span.SetAttributes(
		otel.AttrOutcome.String(string(OutcomeSuccess)),
		otel.AttrResultCount.Int(result.Stored),
		otel.AttrSkippedCount.Int(result.Skipped),
	)
	slog.Info("Refresh completed",
		"window", window.String(),
		"fetched", result.Fetched,
		"stored", result.Stored,
		"skipped", result.Skipped,
		"records", result.Records)
	e.setStatus(status.PhaseDone, fmt.Sprintf("Refreshed window %s", window))
	return result, nil
}

// fetchAndCommit must be called with mutateMu held
func (e *defaultEngine) fetchAndCommit(ctx context.Context, window feed.Window) (*Result, *Error) {
	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	payload, err := e.feed.Fetch(fetchCtx, window.Start, e.apiKey)
	cancel()
	if err != nil {
		return nil, fetchError(err)
	}

	rows, skipped := normalize(payload.Records)
	if len(payload.Records) > 0 && len(rows) == 0 {
		return nil, noValidRecordsError(len(payload.Records))
	}
	if skipped > 0 {
		slog.Warn("Dropped malformed feed records", "skipped", skipped, "window", window.String())
	}

	if len(rows) > 0 {
		if err := e.store.UpsertAll(ctx, rows); err != nil {
			return nil, storeError(conditionReasonStorageFailed, "store asteroids", err)
		}
	}

	// the view must follow a committed write even if ctx ends now
	records, engineErr := e.reload(context.WithoutCancel(ctx), window.Start)
	if engineErr != nil {
		return nil, engineErr
	}

	return &Result{
		Outcome: OutcomeSuccess,
		Window:  window,
		Fetched: len(payload.Records),
		Stored:  len(rows),
		Skipped: skipped,
		Records: records,
	}, nil
}

// EvictStale deletes rows dated before referenceDate and republishes
func (e *defaultEngine) EvictStale(ctx context.Context, referenceDate asteroid.Date) (*EvictResult, *Error) {
	ctx, span := otel.StartSpan(ctx, e.tracer, "sync.EvictStale",
		trace.WithAttributes(otel.AttrReferenceDate.String(referenceDate.String())),
	)
	defer span.End()

	e.mutateMu.Lock()
	defer e.mutateMu.Unlock()

	evicted, err := e.store.DeleteWhere(ctx, asteroid.Before(referenceDate))
	if err != nil {
		engineErr := storeError(conditionReasonEvictionFailed, "evict stale asteroids", err)
		otel.RecordError(span, engineErr)
		slog.Error("Eviction failed", "reference_date", referenceDate.String(), "error", err)
		return nil, engineErr
	}

	records, engineErr := e.reload(context.WithoutCancel(ctx), referenceDate)
	if engineErr != nil {
		otel.RecordError(span, engineErr)
		return nil, engineErr
	}

	span.SetAttributes(otel.AttrResultCount.Int(evicted))
	if evicted > 0 {
		slog.Info("Evicted stale asteroids", "reference_date", referenceDate.String(), "evicted", evicted)
	}
	return &EvictResult{ReferenceDate: referenceDate, Evicted: evicted, Records: records}, nil
}

// Load warms the in-memory snapshot from the store
func (e *defaultEngine) Load(ctx context.Context) *Error {
	e.mutateMu.Lock()
	defer e.mutateMu.Unlock()

	records, engineErr := e.reload(ctx, asteroid.Date{})
	if engineErr != nil {
		return engineErr
	}
	slog.Info("Loaded cached asteroids", "records", records)
	return nil
}

// reload reads the whole store and publishes a view built from it.
// A zero today keeps the previous reference date. Must be called with mutateMu held.
func (e *defaultEngine) reload(ctx context.Context, today asteroid.Date) (int, *Error) {
	rows, err := e.store.Query(ctx, asteroid.Any())
	if err != nil {
		return 0, storeError(conditionReasonReadFailed, "read asteroids", err)
	}

	e.publish(ctx, func() {
		if today.IsZero() {
			if prev := e.snap.Load(); prev != nil {
				today = prev.today
			}
		}
		e.gen++
		e.snap.Store(&snapshot{gen: e.gen, rows: rows, today: today})
	})
	return len(rows), nil
}

// SetFilter updates the filter and republishes from the current snapshot.
// An unknown filter is ignored.
func (e *defaultEngine) SetFilter(filter asteroid.Filter) {
	if !filter.IsValid() {
		slog.Warn("Ignoring unknown filter", "filter", filter.String())
		return
	}
	e.publish(context.Background(), func() {
		e.filter.Store(filter)
	})
}

func (e *defaultEngine) Filter() asteroid.Filter {
	return e.filter.Load().(asteroid.Filter)
}

func (e *defaultEngine) CurrentView() *View {
	return e.view.Load()
}

func (e *defaultEngine) Evaluate(filter asteroid.Filter) *View {
	var seq uint64
	if current := e.view.Load(); current != nil {
		seq = current.Seq
	}
	return e.buildView(e.snap.Load(), filter, seq)
}

func (e *defaultEngine) Lookup(id int64) (asteroid.Asteroid, bool) {
	return e.snap.Load().find(id)
}

func (e *defaultEngine) Status() Status {
	return *e.status.Load()
}

func (e *defaultEngine) Subscribe(fn func(Update)) func() {
	e.subsMu.Lock()
	id := e.nextSubID
	e.nextSubID++
	e.subs[id] = fn
	e.subsMu.Unlock()

	var once gosync.Once
	return func() {
		once.Do(func() {
			e.subsMu.Lock()
			delete(e.subs, id)
			e.subsMu.Unlock()
		})
	}
}

// publish applies mutate and swaps in a view built from the resulting state
func (e *defaultEngine) publish(ctx context.Context, mutate func()) {
	e.stateMu.Lock()
	mutate()
	e.seq++
	v := e.buildView(e.snap.Load(), e.Filter(), e.seq)
	e.view.Store(v)
	st := e.Status()

	e.notifyMu.Lock()
	e.stateMu.Unlock()
	defer e.notifyMu.Unlock()

	e.metrics.RecordPublish(ctx, v.Filter.String(), v.Len())
	e.notify(Update{View: v, Status: st})
}

func (e *defaultEngine) setStatus(phase status.Phase, message string) {
	s := &Status{Phase: phase, Message: message, Since: e.now()}

	e.stateMu.Lock()
	e.status.Store(s)
	v := e.view.Load()

	e.notifyMu.Lock()
	e.stateMu.Unlock()
	defer e.notifyMu.Unlock()

	e.notify(Update{View: v, Status: *s})
}

// notify must be called with notifyMu held
func (e *defaultEngine) notify(u Update) {
	e.subsMu.Lock()
	ids := make([]uint64, 0, len(e.subs))
	for id := range e.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	listeners := make([]func(Update), 0, len(ids))
	for _, id := range ids {
		listeners = append(listeners, e.subs[id])
	}
	e.subsMu.Unlock()

	for _, fn := range listeners {
		fn(u)
	}
}

// buildView applies filter to snap. Before any reference date is known
// "today" comes from the clock.
func (e *defaultEngine) buildView(snap *snapshot, filter asteroid.Filter, seq uint64) *View {
	var today asteroid.Date
	if snap != nil {
		today = snap.today
	}
	if today.IsZero() {
		today = asteroid.DateOf(e.now())
	}

	v := &View{
		Seq:         seq,
		Filter:      filter,
		Today:       today,
		PublishedAt: e.now(),
	}
	if snap != nil {
		v.Snapshot = snap.gen
		v.rows = filter.Apply(snap.rows, today)
	} else {
		v.rows = []asteroid.Asteroid{}
	}
	return v
}
