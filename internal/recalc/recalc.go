package recalc

import (
	"log/slog"
	"strings"

	"github.com/gridloom/gridloom/internal/grid"
	"github.com/gridloom/gridloom/internal/resolve"
)

// Engine recalculates sheets. It holds no grid state of its own; every
// invocation is a pure function of the sheet and the other sheets' current
// rows, which makes recalculation idempotent.
type Engine struct {
	logger *slog.Logger
}

// New creates a recalculation engine.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Recalculate returns a recalculated copy of the sheet. The input sheet and
// the other sheets are never mutated; allSheets is read-only reference data
// for the link pass and may include the sheet itself (self-links are legal).
func (e *Engine) Recalculate(sheet *grid.Sheet, allSheets []*grid.Sheet) *grid.Sheet {
	out := sheet.Clone()
	e.formulaPass(out)
	e.linkPass(out, allSheets)
	return out
}

// formulaPass writes each formula column's resolved template into every row.
func (e *Engine) formulaPass(sheet *grid.Sheet) {
	for _, col := range sheet.Columns {
		if strings.TrimSpace(col.Formula) == "" {
			continue
		}
		for _, row := range sheet.Rows {
			row[col.ID] = e.evalFormula(col, row, sheet)
		}
	}
}

// evalFormula resolves one formula cell. A failure writes the error marker
// instead of propagating; the recover keeps a malformed template from ever
// aborting the rest of the sheet.
func (e *Engine) evalFormula(col grid.Column, row grid.Row, sheet *grid.Sheet) (result grid.Value) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("formula evaluation failed",
				"sheet", sheet.ID, "column", col.ID, "row", row.ID(), "panic", r)
			result = grid.String(grid.MarkerFormulaError)
		}
	}()
	resolved := resolve.Resolve(col.Formula, row, sheet.Columns)
	return grid.String(cleanupFormulaResult(resolved))
}

// linkPass re-resolves every linked column's cross-sheet join.
func (e *Engine) linkPass(sheet *grid.Sheet, allSheets []*grid.Sheet) {
	for _, col := range sheet.Columns {
		link := col.Linked
		if link == nil {
			continue
		}

		source := findSheet(allSheets, link.SourceSheetID)
		if source == nil {
			// Dangling sheet reference: mark every row, keep going.
			e.logger.Warn("linked column references missing sheet",
				"sheet", sheet.ID, "column", col.ID, "sourceSheet", link.SourceSheetID)
			for _, row := range sheet.Rows {
				row[col.ID] = grid.String(grid.MarkerMissingSheet)
			}
			continue
		}

		_, sourceColExists := source.Column(link.SourceColumnID)

		for _, row := range sheet.Rows {
			row[col.ID] = resolveLink(row, link, source, sourceColExists)
		}
	}
}

// resolveLink computes one linked cell.
//
// An empty or missing match key is "not yet resolvable", not an error: the
// cell becomes the empty string. The first source row whose match column
// stringifies equal wins; source row order is the tiebreaker.
func resolveLink(row grid.Row, link *grid.LinkedColumn, source *grid.Sheet, sourceColExists bool) grid.Value {
	matchVal, ok := row.Get(link.MatchColumnID)
	if !ok || grid.IsEmpty(matchVal) {
		return grid.String("")
	}
	matchKey := grid.Stringify(matchVal)

	for _, sourceRow := range source.Rows {
		if grid.Stringify(sourceRow[link.SourceMatchColumnID]) != matchKey {
			continue
		}
		if !sourceColExists {
			return grid.String(grid.MarkerMissingColumn)
		}
		return grid.String(grid.Stringify(sourceRow[link.SourceColumnID]))
	}
	return grid.String("")
}

// cleanupFormulaResult strips residual quote and concatenation punctuation
// left over from spreadsheet-style templates like `"text" + /ref + "text"`
// after reference substitution.
func cleanupFormulaResult(s string) string {
	// Quote-adjacent concatenation first, longest sequences before shorter
	// ones so `" + "` is not half-consumed by `" + `.
	for _, seq := range []string{
		`" + "`, `' + '`, `"+"`, `'+'`,
		`" + `, ` + "`, `' + `, ` + '`,
		`"+`, `+"`, `'+`, `+'`,
	} {
		s = strings.ReplaceAll(s, seq, "")
	}
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

func findSheet(sheets []*grid.Sheet, id string) *grid.Sheet {
	for _, s := range sheets {
		if s.ID == id {
			return s
		}
	}
	return nil
}
