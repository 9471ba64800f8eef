// Package sync implements the asteroid cache engine.
//
// The Engine reconciles the date-windowed NeoWs feed with the local record
// store and publishes filtered, immutable views to consumers.
//
// # Refresh
//
// Engine.Refresh fetches the seven day window starting at a reference date,
// normalizes the raw records, upserts them as one batch and republishes the
// view from a fresh read of the whole store. Feed failures leave the store and
// the published view untouched:
//
//   - KindNetwork: transport failure, non-2xx response or timeout. Retryable.
//   - KindParse: unusable response body, or a non-empty feed whose every
//     record is malformed. Not retried automatically.
//   - KindStore: the local store failed. Always returned to the caller.
//
// Individual malformed records are dropped and counted in Result.Skipped.
//
// # Views
//
// The engine keeps an in-memory copy of the last committed store read. Each
// published View is the filter applied to exactly one such read, so a reader
// never sees rows of two different upsert batches mixed together. SetFilter
// and CurrentView work on that copy and never perform I/O.
//
// # Coordinator Package
//
// The sync/coordinator subpackage runs refresh cycles on a schedule and turns
// each outcome into done, retry later or do not retry. The sync/state
// subpackage persists the cycle status across restarts.
package sync
