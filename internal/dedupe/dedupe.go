// Package dedupe removes duplicate rows by a column's string value.
//
// Rows with no value at the dedup column are never touched: deduplication
// only applies where there is an actual value to compare. Comparison uses
// the NFC-normalized string form, so "café" typed with a combining accent
// and "café" pasted precomposed count as the same value.
package dedupe

import (
	"github.com/gridloom/gridloom/internal/grid"

	"golang.org/x/text/unicode/norm"
)

// Dedupe filters rows to remove duplicates by the given column.
//
// keep=KeepOldest retains the first row (in current order) for each distinct
// value and drops later duplicates. keep=KeepNewest retains the last
// occurrence without moving it: only rows that are duplicates and not the
// designated last occurrence are removed, so overall row order is preserved
// either way.
//
// Idempotent: deduplicating an already-deduplicated set is a no-op. The
// input slice is never mutated; the result shares row references.
func Dedupe(rows []grid.Row, columnID string, keep grid.KeepPolicy) []grid.Row {
	if keep == grid.KeepNewest {
		return keepNewest(rows, columnID)
	}
	return keepOldest(rows, columnID)
}

func keepOldest(rows []grid.Row, columnID string) []grid.Row {
	seen := make(map[string]bool, len(rows))
	out := make([]grid.Row, 0, len(rows))
	for _, row := range rows {
		key, comparable := dedupeKey(row, columnID)
		if !comparable {
			out = append(out, row)
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

func keepNewest(rows []grid.Row, columnID string) []grid.Row {
	// Last occurrence index per distinct value.
	last := make(map[string]int, len(rows))
	for i, row := range rows {
		if key, comparable := dedupeKey(row, columnID); comparable {
			last[key] = i
		}
	}
	out := make([]grid.Row, 0, len(rows))
	for i, row := range rows {
		key, comparable := dedupeKey(row, columnID)
		if comparable && last[key] != i {
			continue
		}
		out = append(out, row)
	}
	return out
}

// dedupeKey returns the comparison key for a row, or comparable=false when
// the cell is absent, null, or empty and the row must always survive.
func dedupeKey(row grid.Row, columnID string) (key string, comparable bool) {
	v, ok := row.Get(columnID)
	if !ok || grid.IsEmpty(v) {
		return "", false
	}
	return norm.NFC.String(grid.Stringify(v)), true
}
