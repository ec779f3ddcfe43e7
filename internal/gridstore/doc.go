// Package gridstore is the top-level state container for verticals, sheets,
// rows, and columns.
//
// ARCHITECTURE:
//
// Single Choke Point:
// Every mutation goes through UpdateSheet (or a vertical-level operation
// built on the same lock). Each call synchronously computes the next state
// from the previous state under one mutex, so updates serialize by
// construction and there is no data race on the grid itself. After any
// public mutation returns, in-memory state already reflects it; persistence
// is asynchronous and trails behind.
//
// Recalculation Fan-Out:
// A mutation recalculates its own sheet inline, then consults the
// dependency tracker and recalculates each dependent sheet exactly once
// against the now-updated source data. Fan-out is one level deep and never
// recursive, which is what makes cyclic sheet links safe.
//
// Persistence:
// Writes hand off to a Persister through a trailing-edge debounce: rapid
// edits coalesce into one save fired after a quiet period. Bulk mode
// (imports, scripted batches) suppresses the debounce entirely and saves
// once on exit, avoiding write storms. A persistence failure is surfaced
// through the notifier as a transient user-visible error; the in-memory
// mutation that caused it is never rolled back - memory stays authoritative.
//
// Remote Sync:
// Externally originated updates are applied through the same update paths
// as local mutations; recalculation logic cannot tell them apart.
package gridstore
