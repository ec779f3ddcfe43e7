package persist

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gridloom/gridloom/internal/grid"
)

// SaveAll replaces the entire stored state with the given snapshot in one
// transaction. This is the debounced hand-off target: by the time it runs,
// the snapshot is already a settled deep copy, so a full rewrite is the
// simplest way to make stored order match display order.
func (s *Store) SaveAll(ctx context.Context, verticals []*grid.Vertical) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM verticals`); err != nil {
			return fmt.Errorf("save all: clear: %w", err)
		}
		for vi, v := range verticals {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO verticals (id, name, color, position)
				VALUES (?, ?, ?, ?)
			`, v.ID, v.Name, v.Color, vi); err != nil {
				return fmt.Errorf("save all: vertical %s: %w", v.ID, err)
			}
			for si, sheet := range v.Sheets {
				if err := insertSheet(ctx, tx, v.ID, sheet, si); err != nil {
					return fmt.Errorf("save all: %w", err)
				}
			}
		}
		return nil
	})
}

// SaveSheet persists one sheet create/replace, rows included.
func (s *Store) SaveSheet(ctx context.Context, verticalID string, sheet *grid.Sheet) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		// The owning vertical may not have been saved yet (targeted writes
		// can outrun the debounced full save); a placeholder satisfies the
		// foreign key and the next SaveAll fills it in.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO verticals (id, name, color, position)
			VALUES (?, '', '', 0)
			ON CONFLICT(id) DO NOTHING
		`, verticalID); err != nil {
			return fmt.Errorf("save sheet: ensure vertical: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sheets WHERE id = ?`, sheet.ID); err != nil {
			return fmt.Errorf("save sheet: clear: %w", err)
		}
		position, err := nextPosition(ctx, tx, `SELECT COALESCE(MAX(position)+1, 0) FROM sheets WHERE vertical_id = ?`, verticalID)
		if err != nil {
			return fmt.Errorf("save sheet: %w", err)
		}
		if err := insertSheet(ctx, tx, verticalID, sheet, position); err != nil {
			return fmt.Errorf("save sheet: %w", err)
		}
		return nil
	})
}

// DeleteSheet persists one sheet delete. Rows cascade.
func (s *Store) DeleteSheet(ctx context.Context, verticalID, sheetID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sheets WHERE id = ?`, sheetID)
	if err != nil {
		return fmt.Errorf("delete sheet: %w", err)
	}
	return nil
}

// SaveRow persists one row create/replace. A replaced row keeps its stored
// position; a new row appends.
func (s *Store) SaveRow(ctx context.Context, verticalID, sheetID string, row grid.Row) error {
	data, err := marshalRow(row)
	if err != nil {
		return fmt.Errorf("save row: %w", err)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureSheet(ctx, tx, verticalID, sheetID); err != nil {
			return fmt.Errorf("save row: %w", err)
		}
		position, err := nextPosition(ctx, tx, `SELECT COALESCE(MAX(position)+1, 0) FROM grid_rows WHERE sheet_id = ?`, sheetID)
		if err != nil {
			return fmt.Errorf("save row: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO grid_rows (sheet_id, id, position, data)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(sheet_id, id) DO UPDATE SET data = excluded.data
		`, sheetID, row.ID(), position, data); err != nil {
			return fmt.Errorf("save row: %w", err)
		}
		return nil
	})
}

// DeleteRow persists one row delete.
func (s *Store) DeleteRow(ctx context.Context, verticalID, sheetID, rowID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM grid_rows WHERE sheet_id = ? AND id = ?
	`, sheetID, rowID)
	if err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	return nil
}

// insertSheet writes one sheet record plus all its rows at the given
// position. The caller has already cleared any previous record.
func insertSheet(ctx context.Context, tx *sql.Tx, verticalID string, sheet *grid.Sheet, position int) error {
	config, err := marshalSheetConfig(sheet)
	if err != nil {
		return fmt.Errorf("sheet %s: %w", sheet.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sheets (id, vertical_id, name, color, position, config)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sheet.ID, verticalID, sheet.Name, sheet.Color, position, config); err != nil {
		return fmt.Errorf("sheet %s: %w", sheet.ID, err)
	}
	for ri, row := range sheet.Rows {
		data, err := marshalRow(row)
		if err != nil {
			return fmt.Errorf("sheet %s row %s: %w", sheet.ID, row.ID(), err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO grid_rows (sheet_id, id, position, data)
			VALUES (?, ?, ?, ?)
		`, sheet.ID, row.ID(), ri, data); err != nil {
			return fmt.Errorf("sheet %s row %s: %w", sheet.ID, row.ID(), err)
		}
	}
	return nil
}

// ensureSheet writes placeholder vertical and sheet records so a targeted
// row write never trips the foreign keys. The next full save repairs them.
func ensureSheet(ctx context.Context, tx *sql.Tx, verticalID, sheetID string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO verticals (id, name, color, position)
		VALUES (?, '', '', 0)
		ON CONFLICT(id) DO NOTHING
	`, verticalID); err != nil {
		return fmt.Errorf("ensure vertical: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sheets (id, vertical_id, name, color, position, config)
		VALUES (?, ?, '', '', 0, '{}')
		ON CONFLICT(id) DO NOTHING
	`, sheetID, verticalID); err != nil {
		return fmt.Errorf("ensure sheet: %w", err)
	}
	return nil
}

func nextPosition(ctx context.Context, tx *sql.Tx, query string, arg any) (int, error) {
	var position int
	if err := tx.QueryRowContext(ctx, query, arg).Scan(&position); err != nil {
		return 0, fmt.Errorf("next position: %w", err)
	}
	return position, nil
}
