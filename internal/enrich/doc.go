// Package enrich coordinates concurrent, cancelable, per-row enrichment
// jobs: AI agent calls, HTTP requests, and company-registry lookups.
//
// ARCHITECTURE:
//
// Batch Fan-Out:
// A batch dispatches every scoped row concurrently (fire all, await all).
// Rows are independent - there is no per-row ordering guarantee and no
// inter-row dependency. The one exception is the two-stage registry
// workflow, which processes rows sequentially because the upstream registry
// is rate and cost sensitive; that is a documented policy difference, not an
// inconsistency.
//
// Cancellation:
// One context is created per batch invocation, never per row. Cancellation
// is cooperative: it is checked before each provider call and again before
// each write-back, so an in-flight row that observes cancellation simply
// skips its write. A cancelled batch reports nothing further and leaves no
// stray in-flight markers.
//
// Per-Row Lifecycle:
// pending → running → {done | error | skipped | cancelled}. Terminal states
// are final within a batch; a new batch is a fresh attempt. Before dispatch
// each row's target cell is marked in-flight (key "rowID:columnID") so the
// UI can show a spinner; the mark is removed in a defer regardless of
// outcome.
//
// Error Discipline:
// A failed row writes an error marker into its one target cell, counts
// toward the batch failure tally, and never affects sibling rows. Nothing
// escapes a batch as an unhandled error.
//
// Re-Entrancy:
// Auto-triggered runs (new row, trigger column activation) are suppressed
// while any batch is active on the same sheet. The guard is explicit state
// owned by the runner, checked and set under one lock, not ambient module
// state.
package enrich
