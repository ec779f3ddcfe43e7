package gridstore

import (
	"context"

	"github.com/gridloom/gridloom/internal/grid"
)

// AddVertical creates a workspace with one initial sheet (a vertical must
// always retain at least one sheet, so none is ever created empty).
func (s *Store) AddVertical(name, color string) (*grid.Vertical, error) {
	s.mu.Lock()
	v := &grid.Vertical{
		ID:    s.ids.Generate(),
		Name:  name,
		Color: color,
	}
	sheet := &grid.Sheet{
		ID:      s.ids.Generate(),
		Name:    "Sheet 1",
		Columns: []grid.Column{{ID: s.ids.Generate(), Label: "Name", Type: grid.ColumnText}},
	}
	v.Sheets = append(v.Sheets, sheet)
	s.verticals = append(s.verticals, v)
	s.schedulePersistLocked()
	s.mu.Unlock()

	s.persistSideEffect(func(p Persister) error {
		return p.SaveSheet(context.Background(), v.ID, sheet.Clone())
	})
	return v, nil
}

// ImportVertical adds an externally built vertical (blueprint load, remote
// sync) as-is, recalculating every sheet once.
func (s *Store) ImportVertical(v *grid.Vertical) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(v.Sheets) == 0 {
		return &grid.StructureError{
			Code: grid.ErrCodeLastSheet, Message: "a vertical needs at least one sheet", VerticalID: v.ID,
		}
	}
	if s.verticalLocked(v.ID) != nil {
		return &grid.StructureError{
			Code: grid.ErrCodeDuplicateID, Message: "vertical id already exists", VerticalID: v.ID,
		}
	}
	s.verticals = append(s.verticals, v)
	for _, sheet := range v.Sheets {
		s.recalcLocked(v, sheet.ID, nil)
	}
	s.schedulePersistLocked()
	return nil
}

// DeleteVertical removes a workspace and all its sheets and rows.
func (s *Store) DeleteVertical(verticalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, v := range s.verticals {
		if v.ID == verticalID {
			s.verticals = append(s.verticals[:i], s.verticals[i+1:]...)
			s.schedulePersistLocked()
			return nil
		}
	}
	return &grid.StructureError{
		Code: grid.ErrCodeVerticalNotFound, Message: "unknown vertical", VerticalID: verticalID,
	}
}

// AddSheet appends a new sheet to a vertical.
func (s *Store) AddSheet(verticalID, name, color string) (*grid.Sheet, error) {
	s.mu.Lock()
	v := s.verticalLocked(verticalID)
	if v == nil {
		s.mu.Unlock()
		return nil, &grid.StructureError{
			Code: grid.ErrCodeVerticalNotFound, Message: "unknown vertical", VerticalID: verticalID,
		}
	}
	sheet := &grid.Sheet{
		ID:      s.ids.Generate(),
		Name:    name,
		Color:   color,
		Columns: []grid.Column{{ID: s.ids.Generate(), Label: "Name", Type: grid.ColumnText}},
	}
	v.Sheets = append(v.Sheets, sheet)
	s.schedulePersistLocked()
	s.mu.Unlock()

	s.persistSideEffect(func(p Persister) error {
		return p.SaveSheet(context.Background(), verticalID, sheet.Clone())
	})
	return sheet.Clone(), nil
}

// DeleteSheet removes a sheet. Deleting the last sheet of a vertical is
// rejected synchronously, before any mutation.
func (s *Store) DeleteSheet(verticalID, sheetID string) error {
	s.mu.Lock()
	v, _, err := s.findLocked(verticalID, sheetID)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if len(v.Sheets) == 1 {
		s.mu.Unlock()
		err := grid.NewLastSheetError(verticalID, sheetID)
		s.notify(err.Message)
		return err
	}
	for i, sh := range v.Sheets {
		if sh.ID == sheetID {
			v.Sheets = append(v.Sheets[:i], v.Sheets[i+1:]...)
			break
		}
	}
	// Sheets that linked here now dangle; recalculate them so their cells
	// degrade to missing-sheet markers instead of stale values.
	for _, dep := range v.Sheets {
		s.recalcLocked(v, dep.ID, nil)
	}
	s.schedulePersistLocked()
	s.mu.Unlock()

	s.persistSideEffect(func(p Persister) error {
		return p.DeleteSheet(context.Background(), verticalID, sheetID)
	})
	return nil
}

// RenameSheet updates a sheet's display name and color.
func (s *Store) RenameSheet(verticalID, sheetID, name, color string) error {
	return s.UpdateSheet(verticalID, sheetID, []string{}, func(sheet *grid.Sheet) error {
		if name != "" {
			sheet.Name = name
		}
		if color != "" {
			sheet.Color = color
		}
		return nil
	})
}

// SetAutoUpdate toggles the sheet-level reactive enrichment flag.
func (s *Store) SetAutoUpdate(verticalID, sheetID string, on bool) error {
	return s.UpdateSheet(verticalID, sheetID, []string{}, func(sheet *grid.Sheet) error {
		sheet.AutoUpdate = on
		return nil
	})
}
