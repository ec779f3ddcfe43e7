package gridstore

import (
	"context"

	"github.com/gridloom/gridloom/internal/enrich"
	"github.com/gridloom/gridloom/internal/grid"
)

// AddRow appends a new row initialized from column defaults, then fires the
// row-creation auto-trigger.
func (s *Store) AddRow(verticalID, sheetID string) (grid.Row, error) {
	return s.insertRow(verticalID, sheetID, -1)
}

// InsertRow creates a new row at the given index (display order matters).
// An out-of-range index appends.
func (s *Store) InsertRow(verticalID, sheetID string, index int) (grid.Row, error) {
	return s.insertRow(verticalID, sheetID, index)
}

func (s *Store) insertRow(verticalID, sheetID string, index int) (grid.Row, error) {
	var created grid.Row
	err := s.UpdateSheet(verticalID, sheetID, nil, func(sheet *grid.Sheet) error {
		created = grid.NewRow(s.ids.Generate(), sheet.Columns)
		if index < 0 || index >= len(sheet.Rows) {
			sheet.Rows = append(sheet.Rows, created)
			return nil
		}
		sheet.Rows = append(sheet.Rows[:index], append([]grid.Row{created}, sheet.Rows[index:]...)...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.persistSideEffect(func(p Persister) error {
		return p.SaveRow(context.Background(), verticalID, sheetID, created.Clone())
	})
	s.fireTrigger(verticalID, sheetID, enrich.Trigger{RowID: created.ID()})
	return created.Clone(), nil
}

// DeleteRow removes a row by id. Rows are never soft-deleted.
func (s *Store) DeleteRow(verticalID, sheetID, rowID string) error {
	err := s.UpdateSheet(verticalID, sheetID, nil, func(sheet *grid.Sheet) error {
		_, idx := sheet.RowByID(rowID)
		if idx < 0 {
			return &grid.StructureError{
				Code: grid.ErrCodeRowNotFound, Message: "unknown row",
				SheetID: sheetID, RowID: rowID,
			}
		}
		sheet.Rows = append(sheet.Rows[:idx], sheet.Rows[idx+1:]...)
		return nil
	})
	if err != nil {
		return err
	}

	s.persistSideEffect(func(p Persister) error {
		return p.DeleteRow(context.Background(), verticalID, sheetID, rowID)
	})
	return nil
}

// BulkAddRows merges a batch of prebuilt rows (import collaborator output)
// in one mutation: a single recalculation after the whole batch, not one
// per row, and no per-row persistence or auto-trigger storm.
func (s *Store) BulkAddRows(verticalID, sheetID string, rows []grid.Row) error {
	return s.UpdateSheet(verticalID, sheetID, nil, func(sheet *grid.Sheet) error {
		sheet.Rows = append(sheet.Rows, rows...)
		return nil
	})
}

// SetCell writes one raw cell value. This is the head of the write path: the
// mutation lands synchronously, the sheet recalculates, dependents fan out,
// and the trigger-column check fires afterward.
func (s *Store) SetCell(verticalID, sheetID, rowID, columnID string, value grid.Value) error {
	err := s.UpdateSheet(verticalID, sheetID, []string{columnID}, func(sheet *grid.Sheet) error {
		row, _ := sheet.RowByID(rowID)
		if row == nil {
			return &grid.StructureError{
				Code: grid.ErrCodeRowNotFound, Message: "unknown row",
				SheetID: sheetID, RowID: rowID,
			}
		}
		if _, ok := sheet.Column(columnID); !ok {
			return &grid.StructureError{
				Code: grid.ErrCodeColumnNotFound, Message: "unknown column",
				SheetID: sheetID, ColumnID: columnID,
			}
		}
		row[columnID] = value
		return nil
	})
	if err != nil {
		return err
	}

	s.fireTrigger(verticalID, sheetID, enrich.Trigger{RowID: rowID, ChangedColumnID: columnID})
	return nil
}

// MergeRowFields merges named fields into one row, never replacing the
// whole row. Implements enrich.GridWriter: this is the enrichment
// write-back path, and it reuses the same choke point as every local edit.
func (s *Store) MergeRowFields(verticalID, sheetID, rowID string, fields map[string]grid.Value) error {
	changed := make([]string, 0, len(fields))
	for columnID := range fields {
		changed = append(changed, columnID)
	}

	err := s.UpdateSheet(verticalID, sheetID, changed, func(sheet *grid.Sheet) error {
		row, _ := sheet.RowByID(rowID)
		if row == nil {
			return &grid.StructureError{
				Code: grid.ErrCodeRowNotFound, Message: "unknown row",
				SheetID: sheetID, RowID: rowID,
			}
		}
		for columnID, value := range fields {
			row[columnID] = value
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Write-backs are inert as triggers: an enrichment batch writing its
	// results must not start the next batch.
	for _, columnID := range changed {
		s.fireTrigger(verticalID, sheetID, enrich.Trigger{RowID: rowID, ChangedColumnID: columnID, FromBatch: true})
	}
	return nil
}
