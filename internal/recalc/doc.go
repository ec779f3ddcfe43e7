// Package recalc implements the recalculation engine for a sheet.
//
// ARCHITECTURE:
//
// Fixed Two-Pass Schedule:
// Recalculation runs exactly two passes over every row of the sheet, always
// in the same order:
//  1. Formula pass - resolve each formula column's template against the row
//     and write the cleaned result.
//  2. Link pass - re-resolve each linked column's cross-sheet join and write
//     the looked-up value.
//
// This is a fixed schedule, not a dependency solver. Formulas run first so a
// linked column can be fed by a formula-computed match key; links run second
// and their result is authoritative for any column configured with both. A
// single pass through the two stages is sufficient because link targets are
// other sheets' already-settled values, never also-being-recalculated
// outputs within the same pass.
//
// Cycle Tolerance:
// Recalculation takes the other sheets as read-only input and NEVER triggers
// their recalculation internally. Sheet A linking to B while B links to A is
// therefore safe: each side reads the other's last-settled rows, at worst
// one recalculation cycle stale. Fan-out to dependent sheets is an explicit,
// bounded, one-level operation driven by the caller via FindDependents,
// never a recursive graph walk.
//
// Determinism:
// Rows are processed in the sheet's current order and columns in declaration
// order. Order does not affect correctness but keeps output reproducible for
// golden-file comparison.
//
// Error Discipline:
// Nothing propagates out of Recalculate as an error. A formula failure
// writes a literal error marker into the one affected cell; a dangling link
// writes a missing-sheet or missing-column marker; an unmatched join key
// writes the empty string ("not yet resolvable" is not an error). Processing
// always continues with the next column and row.
package recalc
