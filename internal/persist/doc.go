// Package persist provides SQLite-backed durable storage for the grid.
//
// Memory is authoritative: the mutation store hands finished state to this
// package after the fact (debounced full saves plus targeted row/sheet
// writes) and never reads it back except at startup. A failed save is
// reported and retried on the next change; it never rolls anything back.
//
// Layout:
//   - verticals: one row per workspace, ordered by position
//   - sheets: one row per sheet; columns, agents, requests, and workflow
//     config travel together as one JSON document
//   - grid_rows: one row per grid row, cell data as one JSON document
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: sheet and row deletes cascade
package persist
