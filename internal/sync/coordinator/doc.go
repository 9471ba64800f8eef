// Package coordinator schedules refresh cycles of the asteroid cache.
//
// A cycle takes the cross-process cycle lock, asks the engine to refresh the
// feed window starting today and, when that succeeds, evicts rows dated
// before today. The outcome of the refresh decides when the next cycle runs:
//
//	success        -> Done        next cycle after the interval (± jitter)
//	network-error  -> RetryLater  next cycle after the next backoff delay
//	store-error    -> RetryLater  next cycle after the next backoff delay
//	parse-error    -> NoRetry     next cycle after the interval (± jitter)
//
// Cycles can also be triggered on demand through RunCycle (HTTP API, CLI).
// Concurrent triggers never overlap: a cycle started while another one holds
// the lock is skipped with reason "sync-already-in-progress".
//
// Every cycle persists a status.SyncStatus through the state service. The
// status is set to Loading before the refresh starts and rewritten in a
// deferred block once the cycle ends, so an interrupted process leaves a
// Loading status that the state service repairs on the next start.
package coordinator
