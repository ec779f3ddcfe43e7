package persist

import (
	"context"
	"fmt"

	"github.com/gridloom/gridloom/internal/grid"
)

// LoadAll reads the entire stored state back into memory. Called once at
// startup; the result is handed to the mutation store, which recalculates
// every sheet before serving it.
//
// Returns an empty slice (not nil) for an empty database.
func (s *Store) LoadAll(ctx context.Context) ([]*grid.Vertical, error) {
	verticals, err := s.readVerticals(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range verticals {
		sheets, err := s.readSheets(ctx, v.ID)
		if err != nil {
			return nil, err
		}
		v.Sheets = sheets
	}
	return verticals, nil
}

func (s *Store) readVerticals(ctx context.Context) ([]*grid.Vertical, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, color
		FROM verticals
		ORDER BY position ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query verticals: %w", err)
	}
	defer rows.Close()

	verticals := []*grid.Vertical{}
	for rows.Next() {
		v := &grid.Vertical{}
		if err := rows.Scan(&v.ID, &v.Name, &v.Color); err != nil {
			return nil, fmt.Errorf("scan vertical: %w", err)
		}
		verticals = append(verticals, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verticals: %w", err)
	}
	return verticals, nil
}

func (s *Store) readSheets(ctx context.Context, verticalID string) ([]*grid.Sheet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, color, config
		FROM sheets
		WHERE vertical_id = ?
		ORDER BY position ASC, id ASC
	`, verticalID)
	if err != nil {
		return nil, fmt.Errorf("query sheets: %w", err)
	}
	defer rows.Close()

	var sheets []*grid.Sheet
	for rows.Next() {
		sheet := &grid.Sheet{}
		var config string
		if err := rows.Scan(&sheet.ID, &sheet.Name, &sheet.Color, &config); err != nil {
			return nil, fmt.Errorf("scan sheet: %w", err)
		}
		if err := unmarshalSheetConfig(config, sheet); err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheet.ID, err)
		}
		sheets = append(sheets, sheet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sheets: %w", err)
	}

	for _, sheet := range sheets {
		gridRows, err := s.readRows(ctx, sheet.ID)
		if err != nil {
			return nil, err
		}
		sheet.Rows = gridRows
	}
	return sheets, nil
}

func (s *Store) readRows(ctx context.Context, sheetID string) ([]grid.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data
		FROM grid_rows
		WHERE sheet_id = ?
		ORDER BY position ASC, id ASC
	`, sheetID)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	var out []grid.Row
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row, err := unmarshalRow(data)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheetID, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
