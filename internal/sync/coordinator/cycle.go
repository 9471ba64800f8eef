package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/asteroid-radar/internal/otel"
	"github.com/stacklok/asteroid-radar/internal/status"
	pkgsync "github.com/stacklok/asteroid-radar/internal/sync"
)

// RunCycle runs one refresh cycle unless another one holds the lock
func (c *defaultCoordinator) RunCycle(ctx context.Context) (*CycleResult, error) {
	result := &CycleResult{
		RunID:     uuid.NewString(),
		StartedAt: c.now(),
	}

	if !c.cycleMu.TryLock() {
		return c.skip(result), ErrCycleInProgress
	}
	defer c.cycleMu.Unlock()

	if c.fileLock != nil {
		locked, err := c.fileLock.TryLock()
		if err != nil {
			result.Decision = DecisionRetryLater
			result.Message = fmt.Sprintf("Failed to acquire sync lock: %v", err)
			slog.Error("Failed to acquire sync lock", "lock_file", c.fileLock.Path(), "error", err)
			return result, fmt.Errorf("failed to acquire sync lock: %w", err)
		}
		if !locked {
			return c.skip(result), ErrCycleInProgress
		}
		defer func() {
			if err := c.fileLock.Unlock(); err != nil {
				slog.Warn("Failed to release sync lock", "lock_file", c.fileLock.Path(), "error", err)
			}
		}()
	}

	if syncErr := c.performCycle(ctx, result); syncErr != nil {
		return result, syncErr
	}
	return result, nil
}

func (*defaultCoordinator) skip(result *CycleResult) *CycleResult {
	result.Decision = DecisionSkipped
	result.SkipReason = ReasonAlreadyInProgress
	result.Message = "Skipped: another refresh cycle is in progress"
	result.Duration = "0s"
	slog.Info("Refresh cycle skipped", "run_id", result.RunID, "reason", ReasonAlreadyInProgress)
	return result
}

// performCycle refreshes, evicts and records the outcome. It must be called with the cycle lock held.
func (c *defaultCoordinator) performCycle(ctx context.Context, result *CycleResult) *pkgsync.Error {
	ctx, span := otel.StartSpan(ctx, c.tracer, "coordinator.RunCycle",
		trace.WithAttributes(otel.AttrRunID.String(result.RunID)))
	defer span.End()

	begin := time.Now()
	startTime := result.StartedAt
	today := c.today()
	result.ReferenceDate = today
	span.SetAttributes(otel.AttrReferenceDate.String(today.String()))

	c.markLoading(ctx, result)

	// Set up the final status update in a defer block to ensure that we always
	// clean up the status of the cycle at the end of this function.
	// Set a default error here in case the function is killed by an unexpected error.
	syncStatus := c.currentStatus(ctx)
	syncStatus.Phase = status.PhaseError
	syncStatus.Message = fmt.Sprintf("Unexpected failure during refresh cycle %s", result.RunID)
	syncStatus.RunID = result.RunID
	syncStatus.ReferenceDate = today.String()
	syncStatus.LastAttempt = &startTime
	defer func() {
		result.Duration = time.Since(begin).Round(time.Millisecond).String()
		// the outcome is recorded even when shutdown canceled the cycle
		if err := c.statusSvc.UpdateSyncStatus(context.WithoutCancel(ctx), syncStatus); err != nil {
			slog.Error("Error updating sync status", "run_id", result.RunID, "error", err)
		}
	}()

	slog.Info("Starting refresh cycle", "run_id", result.RunID, "reference_date", today.String())

	refresh, syncErr := c.engine.Refresh(ctx, today)
	result.Decision = decide(syncErr)
	result.Outcome = syncErr.Outcome()
	syncStatus.LastOutcome = string(result.Outcome)
	span.SetAttributes(otel.AttrOutcome.String(string(result.Outcome)))

	if syncErr != nil {
		result.Message = syncErr.Message
		syncStatus.Message = syncErr.Message
		otel.RecordError(span, syncErr)
		slog.Error("Refresh cycle failed",
			"run_id", result.RunID,
			"outcome", result.Outcome,
			"decision", result.Decision,
			"error", syncErr.Message)
		c.syncMetrics.RecordCycleDuration(ctx, string(result.Outcome), time.Since(begin))
		return syncErr
	}

	result.Refresh = refresh
	records := refresh.Records

	evict, evictErr := c.engine.EvictStale(ctx, today)
	if evictErr != nil {
		// The refresh is already committed, so the cycle still counts as done
		result.EvictError = evictErr.Message
		slog.Warn("Eviction failed after refresh", "run_id", result.RunID, "error", evictErr.Message)
	} else {
		result.Evict = evict
		records = evict.Records
		c.syncMetrics.RecordEvicted(ctx, evict.Evicted)
	}

	finished := startTime.Add(time.Since(begin))
	result.Message = fmt.Sprintf("Refresh completed: %d stored, %d skipped, %d cached", refresh.Stored, refresh.Skipped, records)
	syncStatus.Phase = status.PhaseDone
	syncStatus.Message = result.Message
	syncStatus.LastSyncTime = &finished
	syncStatus.AttemptCount = 0
	syncStatus.RecordCount = records

	c.syncMetrics.RecordCycleDuration(ctx, string(result.Outcome), time.Since(begin))
	c.syncMetrics.RecordCachedAsteroids(ctx, records)
	c.syncMetrics.RecordSkipped(ctx, refresh.Skipped)

	slog.Info("Refresh cycle completed",
		"run_id", result.RunID,
		"stored", refresh.Stored,
		"skipped", refresh.Skipped,
		"records", records,
		"duration", time.Since(begin))
	return nil
}

// markLoading persists the Loading phase and counts the attempt
func (c *defaultCoordinator) markLoading(ctx context.Context, result *CycleResult) {
	startTime := result.StartedAt
	_, err := c.statusSvc.UpdateStatusAtomically(ctx, func(s *status.SyncStatus) bool {
		s.Phase = status.PhaseLoading
		s.Message = "Refresh in progress"
		s.LastAttempt = &startTime
		s.AttemptCount++
		s.ReferenceDate = result.ReferenceDate.String()
		s.RunID = result.RunID
		return true
	})
	if err != nil {
		slog.Warn("Failed to record refresh start", "run_id", result.RunID, "error", err)
	}
}

// currentStatus returns a copy of the persisted status to build the final one from
func (c *defaultCoordinator) currentStatus(ctx context.Context) *status.SyncStatus {
	current, err := c.statusSvc.GetSyncStatus(ctx)
	if err != nil || current == nil {
		return &status.SyncStatus{}
	}
	return current
}
