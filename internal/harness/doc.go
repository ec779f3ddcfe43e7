// Package harness provides a conformance testing framework for the grid
// engine.
//
// Scenarios are YAML files that declare an initial workspace, a sequence of
// steps (cell edits, structural changes, dedup runs, enrichment runs with
// canned provider results), and assertions over the final cell state. Each
// scenario runs against a fresh in-memory store with deterministic ids, so
// repeated runs produce identical grids; golden files snapshot the final
// grid for regression comparison.
package harness
