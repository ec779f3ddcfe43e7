package persist

import (
	"encoding/json"
	"fmt"

	"github.com/gridloom/gridloom/internal/grid"
)

// sheetConfig is the JSON document stored per sheet: everything except
// identity, ownership, and the rows themselves.
type sheetConfig struct {
	Columns      []columnDoc          `json:"columns"`
	Agents       []grid.Agent         `json:"agents,omitempty"`
	HTTPRequests []grid.HTTPRequest   `json:"http_requests,omitempty"`
	Workflow     *grid.WorkflowConfig `json:"workflow,omitempty"`
	AutoUpdate   bool                 `json:"auto_update,omitempty"`
}

// columnDoc mirrors grid.Column with the interface-typed default flattened
// into a JSON scalar.
type columnDoc struct {
	ID                     string             `json:"id"`
	Label                  string             `json:"label,omitempty"`
	Type                   grid.ColumnType    `json:"type"`
	Width                  int                `json:"width,omitempty"`
	Default                any                `json:"default,omitempty"`
	Formula                string             `json:"formula,omitempty"`
	Linked                 *grid.LinkedColumn `json:"linked,omitempty"`
	Dedupe                 *grid.DedupePolicy `json:"dedupe,omitempty"`
	Hidden                 bool               `json:"hidden,omitempty"`
	Pinned                 bool               `json:"pinned,omitempty"`
	ConnectedAgentID       string             `json:"connected_agent_id,omitempty"`
	ConnectedHTTPRequestID string             `json:"connected_http_request_id,omitempty"`
}

// encodeValue flattens a cell value to a JSON-representable scalar.
// Null becomes JSON null; absence never reaches here (missing map key).
func encodeValue(v grid.Value) any {
	switch val := v.(type) {
	case grid.String:
		return string(val)
	case grid.Number:
		return float64(val)
	default:
		return nil
	}
}

// marshalSheetConfig converts a sheet's structural configuration to a JSON
// TEXT document for storage.
func marshalSheetConfig(sheet *grid.Sheet) (string, error) {
	cfg := sheetConfig{
		Columns:      make([]columnDoc, len(sheet.Columns)),
		Agents:       sheet.Agents,
		HTTPRequests: sheet.HTTPRequests,
		Workflow:     sheet.Workflow,
		AutoUpdate:   sheet.AutoUpdate,
	}
	for i, col := range sheet.Columns {
		cfg.Columns[i] = columnDoc{
			ID:                     col.ID,
			Label:                  col.Label,
			Type:                   col.Type,
			Width:                  col.Width,
			Formula:                col.Formula,
			Linked:                 col.Linked,
			Dedupe:                 col.Dedupe,
			Hidden:                 col.Hidden,
			Pinned:                 col.Pinned,
			ConnectedAgentID:       col.ConnectedAgentID,
			ConnectedHTTPRequestID: col.ConnectedHTTPRequestID,
		}
		if col.Default != nil {
			cfg.Columns[i].Default = encodeValue(col.Default)
		}
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal sheet config: %w", err)
	}
	return string(data), nil
}

// unmarshalSheetConfig parses a JSON TEXT document back into the sheet's
// structural fields.
func unmarshalSheetConfig(data string, sheet *grid.Sheet) error {
	if data == "" || data == "{}" {
		return nil
	}
	var cfg sheetConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return fmt.Errorf("unmarshal sheet config: %w", err)
	}
	sheet.Columns = make([]grid.Column, len(cfg.Columns))
	for i, doc := range cfg.Columns {
		sheet.Columns[i] = grid.Column{
			ID:                     doc.ID,
			Label:                  doc.Label,
			Type:                   doc.Type,
			Width:                  doc.Width,
			Formula:                doc.Formula,
			Linked:                 doc.Linked,
			Dedupe:                 doc.Dedupe,
			Hidden:                 doc.Hidden,
			Pinned:                 doc.Pinned,
			ConnectedAgentID:       doc.ConnectedAgentID,
			ConnectedHTTPRequestID: doc.ConnectedHTTPRequestID,
		}
		if doc.Default != nil {
			sheet.Columns[i].Default = grid.FromAny(doc.Default)
		}
	}
	sheet.Agents = cfg.Agents
	sheet.HTTPRequests = cfg.HTTPRequests
	sheet.Workflow = cfg.Workflow
	sheet.AutoUpdate = cfg.AutoUpdate
	return nil
}

// marshalRow converts a row's cell map to a JSON TEXT document.
// The row id key travels inside the document as well as in its own column,
// so a document round-trips to an identical Row.
func marshalRow(row grid.Row) (string, error) {
	doc := make(map[string]any, len(row))
	for key, v := range row {
		doc[key] = encodeValue(v)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal row: %w", err)
	}
	return string(data), nil
}

// unmarshalRow parses a row document. JSON null becomes an explicit Null
// cell; a key absent from the document stays absent from the Row.
func unmarshalRow(data string) (grid.Row, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal row: %w", err)
	}
	row := make(grid.Row, len(doc))
	for key, v := range doc {
		row[key] = grid.FromAny(v)
	}
	return row, nil
}
