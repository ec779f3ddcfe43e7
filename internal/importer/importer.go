// Package importer merges tabular data (CSV and friends) into an existing
// sheet. Headers map onto columns explicitly, new columns get collision-free
// ids, cells coerce by column type, and the whole batch lands as one
// mutation so the grid recalculates once, not once per row.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gridloom/gridloom/internal/grid"
)

// Action says what to do with one header of the incoming file.
type Action string

const (
	// ActionReuse maps the header onto an existing column.
	ActionReuse Action = "reuse"
	// ActionCreate adds a new column for the header.
	ActionCreate Action = "create"
	// ActionIgnore drops the header's values entirely.
	ActionIgnore Action = "ignore"
)

// Mapping binds one header to its target column.
type Mapping struct {
	Header string
	Action Action

	// ColumnID is the reuse target, or the id for the created column when
	// set; a created column with an empty ColumnID derives one from the
	// header, made collision-free against the sheet.
	ColumnID string

	// Type applies to created columns only.
	Type grid.ColumnType
}

// Target is the slice of the mutation store the importer drives.
type Target interface {
	SheetSnapshot(verticalID, sheetID string) (*grid.Sheet, []*grid.Sheet, error)
	AddColumn(verticalID, sheetID string, col grid.Column) (grid.Column, error)
	BulkAddRows(verticalID, sheetID string, rows []grid.Row) error
	SetBulkMode(on bool)
}

// Importer merges record batches into sheets.
type Importer struct {
	target Target
	ids    grid.IDGenerator
	logger *slog.Logger
}

// New creates an importer.
func New(target Target, ids grid.IDGenerator, logger *slog.Logger) *Importer {
	if ids == nil {
		ids = grid.UUIDv7Generator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{target: target, ids: ids, logger: logger}
}

// ReadCSV parses a CSV stream into headers and records. The first record is
// the header row. Short records are tolerated; missing cells import as
// empty.
func ReadCSV(r io.Reader) (headers []string, records [][]string, err error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	all, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("read csv: empty input")
	}
	return all[0], all[1:], nil
}

// Plan proposes a mapping for each header: an existing column with the same
// id or label (case-insensitive) is reused, everything else becomes a new
// text column. The caller may edit the proposal before importing.
func Plan(sheet *grid.Sheet, headers []string) []Mapping {
	mappings := make([]Mapping, len(headers))
	for i, header := range headers {
		mappings[i] = Mapping{Header: header, Action: ActionCreate, Type: grid.ColumnText}
		slug := grid.ColumnIDFromLabel(header)
		for _, col := range sheet.Columns {
			if col.ID == slug || strings.EqualFold(col.Label, header) {
				mappings[i] = Mapping{Header: header, Action: ActionReuse, ColumnID: col.ID}
				break
			}
		}
	}
	return mappings
}

// Import merges records into the sheet per the mappings. New columns are
// created first, then every record becomes a row and the batch lands as a
// single mutation: one recalculation, one save, no per-row trigger storm.
//
// Returns the number of rows added.
func (im *Importer) Import(verticalID, sheetID string, mappings []Mapping, records [][]string) (int, error) {
	sheet, _, err := im.target.SheetSnapshot(verticalID, sheetID)
	if err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}

	im.target.SetBulkMode(true)
	defer im.target.SetBulkMode(false)

	// Resolve every mapping to a concrete column id, creating as needed.
	columnIDs := make([]string, len(mappings))
	types := make(map[string]grid.ColumnType)
	for i, m := range mappings {
		switch m.Action {
		case ActionIgnore:
			continue
		case ActionReuse:
			col, ok := sheet.Column(m.ColumnID)
			if !ok {
				return 0, fmt.Errorf("import: header %q maps to unknown column %q", m.Header, m.ColumnID)
			}
			columnIDs[i] = col.ID
			types[col.ID] = col.Type
		case ActionCreate:
			colType := m.Type
			if colType == "" {
				colType = grid.ColumnText
			}
			created, err := im.target.AddColumn(verticalID, sheetID, grid.Column{
				ID:    m.ColumnID,
				Label: m.Header,
				Type:  colType,
			})
			if err != nil {
				return 0, fmt.Errorf("import: header %q: %w", m.Header, err)
			}
			columnIDs[i] = created.ID
			types[created.ID] = created.Type
		default:
			return 0, fmt.Errorf("import: header %q: unknown action %q", m.Header, m.Action)
		}
	}

	// AddColumn mutated the sheet; re-read so new rows initialize every
	// column, including ones the file does not mention.
	sheet, _, err = im.target.SheetSnapshot(verticalID, sheetID)
	if err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}

	rows := make([]grid.Row, 0, len(records))
	for _, record := range records {
		row := grid.NewRow(im.ids.Generate(), sheet.Columns)
		for i, columnID := range columnIDs {
			if columnID == "" || i >= len(record) {
				continue
			}
			row[columnID] = coerce(record[i], types[columnID])
		}
		rows = append(rows, row)
	}

	if err := im.target.BulkAddRows(verticalID, sheetID, rows); err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}
	im.logger.Info("import finished", "sheet", sheetID, "rows", len(rows))
	return len(rows), nil
}

// coerce converts one raw cell by column type. A number column keeps
// unparseable input as text rather than losing it.
func coerce(raw string, colType grid.ColumnType) grid.Value {
	raw = strings.TrimSpace(raw)
	if colType == grid.ColumnNumber && raw != "" {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return grid.Number(f)
		}
	}
	return grid.String(raw)
}
