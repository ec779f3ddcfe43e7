// Package testutil provides shared fixture builders for grid tests.
//
// Builders keep test setup terse without hiding the resulting structure:
// every method returns the builder, Build returns plain grid values, and
// nothing is registered or cleaned up behind the caller's back.
package testutil

import "github.com/gridloom/gridloom/internal/grid"

// SheetBuilder accumulates a test sheet.
type SheetBuilder struct {
	sheet *grid.Sheet
}

// Sheet starts a builder for a sheet with the given id.
func Sheet(id string) *SheetBuilder {
	return &SheetBuilder{sheet: &grid.Sheet{ID: id, Name: id}}
}

// Named sets the display name.
func (b *SheetBuilder) Named(name string) *SheetBuilder {
	b.sheet.Name = name
	return b
}

// AutoUpdate turns on the reactive enrichment flag.
func (b *SheetBuilder) AutoUpdate() *SheetBuilder {
	b.sheet.AutoUpdate = true
	return b
}

// TextColumn adds a plain text column.
func (b *SheetBuilder) TextColumn(id string) *SheetBuilder {
	b.sheet.Columns = append(b.sheet.Columns, grid.Column{ID: id, Label: id, Type: grid.ColumnText})
	return b
}

// NumberColumn adds a numeric column.
func (b *SheetBuilder) NumberColumn(id string) *SheetBuilder {
	b.sheet.Columns = append(b.sheet.Columns, grid.Column{ID: id, Label: id, Type: grid.ColumnNumber})
	return b
}

// FormulaColumn adds a formula column.
func (b *SheetBuilder) FormulaColumn(id, formula string) *SheetBuilder {
	b.sheet.Columns = append(b.sheet.Columns, grid.Column{ID: id, Label: id, Type: grid.ColumnFormula, Formula: formula})
	return b
}

// LinkedColumn adds a VLOOKUP-style joined column.
func (b *SheetBuilder) LinkedColumn(id, sourceSheet, sourceColumn, matchColumn, sourceMatchColumn string) *SheetBuilder {
	b.sheet.Columns = append(b.sheet.Columns, grid.Column{
		ID: id, Label: id, Type: grid.ColumnText,
		Linked: &grid.LinkedColumn{
			SourceSheetID:       sourceSheet,
			SourceColumnID:      sourceColumn,
			MatchColumnID:       matchColumn,
			SourceMatchColumnID: sourceMatchColumn,
		},
	})
	return b
}

// Column adds a fully specified column.
func (b *SheetBuilder) Column(col grid.Column) *SheetBuilder {
	b.sheet.Columns = append(b.sheet.Columns, col)
	return b
}

// Agent attaches an agent config.
func (b *SheetBuilder) Agent(agent grid.Agent) *SheetBuilder {
	b.sheet.Agents = append(b.sheet.Agents, agent)
	return b
}

// Row adds a row from id plus alternating column id / value pairs.
// Values pass through grid.FromAny, so raw strings and numbers work.
func (b *SheetBuilder) Row(id string, pairs ...any) *SheetBuilder {
	if len(pairs)%2 != 0 {
		panic("testutil: Row needs alternating column id / value pairs")
	}
	row := grid.Row{grid.RowIDKey: grid.String(id)}
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			panic("testutil: Row column ids must be strings")
		}
		row[key] = grid.FromAny(pairs[i+1])
	}
	b.sheet.Rows = append(b.sheet.Rows, row)
	return b
}

// Build returns the accumulated sheet.
func (b *SheetBuilder) Build() *grid.Sheet {
	return b.sheet
}

// Vertical assembles a workspace from built sheets.
func Vertical(id string, sheets ...*grid.Sheet) *grid.Vertical {
	return &grid.Vertical{ID: id, Name: id, Sheets: sheets}
}
