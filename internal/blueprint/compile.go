package blueprint

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/gridloom/gridloom/internal/grid"
)

// CompileVertical parses a CUE value into a Vertical. The value is one
// entry of the top-level `vertical` struct; its label is the vertical id.
func CompileVertical(id string, v cue.Value) (*grid.Vertical, error) {
	if err := v.Err(); err != nil {
		return nil, compileErr(v, "vertical %s: %v", id, err)
	}

	out := &grid.Vertical{ID: id}
	out.Name = stringOr(v, "name", id)
	out.Color, _ = lookupString(v, "color")

	sheetsVal := v.LookupPath(cue.ParsePath("sheet"))
	if !sheetsVal.Exists() {
		return nil, compileErr(v, "vertical %s: at least one sheet is required", id)
	}
	iter, err := sheetsVal.Fields()
	if err != nil {
		return nil, compileErr(sheetsVal, "vertical %s: iterating sheets: %v", id, err)
	}
	for iter.Next() {
		sheet, err := compileSheet(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		out.Sheets = append(out.Sheets, sheet)
	}
	if len(out.Sheets) == 0 {
		return nil, compileErr(v, "vertical %s: at least one sheet is required", id)
	}
	return out, nil
}

func compileSheet(id string, v cue.Value) (*grid.Sheet, error) {
	sheet := &grid.Sheet{ID: id}
	sheet.Name = stringOr(v, "name", id)
	sheet.Color, _ = lookupString(v, "color")
	sheet.AutoUpdate = boolOr(v, "auto_update", false)

	columnsVal := v.LookupPath(cue.ParsePath("column"))
	if columnsVal.Exists() {
		iter, err := columnsVal.Fields()
		if err != nil {
			return nil, compileErr(columnsVal, "sheet %s: iterating columns: %v", id, err)
		}
		for iter.Next() {
			col, err := compileColumn(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			sheet.Columns = append(sheet.Columns, col)
		}
	}
	if len(sheet.Columns) == 0 {
		return nil, compileErr(v, "sheet %s: at least one column is required", id)
	}

	agentsVal := v.LookupPath(cue.ParsePath("agent"))
	if agentsVal.Exists() {
		iter, err := agentsVal.Fields()
		if err != nil {
			return nil, compileErr(agentsVal, "sheet %s: iterating agents: %v", id, err)
		}
		for iter.Next() {
			agent, err := compileAgent(iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			sheet.Agents = append(sheet.Agents, agent)
		}
	}

	wfVal := v.LookupPath(cue.ParsePath("workflow"))
	if wfVal.Exists() {
		wf, err := compileWorkflow(id, wfVal)
		if err != nil {
			return nil, err
		}
		sheet.Workflow = wf
	}

	rowsVal := v.LookupPath(cue.ParsePath("row"))
	if rowsVal.Exists() {
		rows, err := compileRows(id, rowsVal, sheet.Columns)
		if err != nil {
			return nil, err
		}
		sheet.Rows = rows
	}
	return sheet, nil
}

func compileColumn(id string, v cue.Value) (grid.Column, error) {
	col := grid.Column{ID: id, Type: grid.ColumnText}
	col.Label = stringOr(v, "label", id)
	if t, ok := lookupString(v, "type"); ok {
		col.Type = grid.ColumnType(t)
	}
	col.Formula, _ = lookupString(v, "formula")
	col.Hidden = boolOr(v, "hidden", false)
	col.Pinned = boolOr(v, "pinned", false)
	if w := v.LookupPath(cue.ParsePath("width")); w.Exists() {
		width, err := w.Int64()
		if err != nil {
			return col, compileErr(w, "column %s: width: %v", id, err)
		}
		col.Width = int(width)
	}
	if d := v.LookupPath(cue.ParsePath("default")); d.Exists() {
		val, err := compileValue(d)
		if err != nil {
			return col, compileErr(d, "column %s: default: %v", id, err)
		}
		col.Default = val
	}

	if l := v.LookupPath(cue.ParsePath("linked")); l.Exists() {
		link := &grid.LinkedColumn{}
		var ok bool
		if link.SourceSheetID, ok = lookupString(l, "source_sheet"); !ok {
			return col, compileErr(l, "column %s: linked.source_sheet is required", id)
		}
		if link.SourceColumnID, ok = lookupString(l, "source_column"); !ok {
			return col, compileErr(l, "column %s: linked.source_column is required", id)
		}
		if link.MatchColumnID, ok = lookupString(l, "match_column"); !ok {
			return col, compileErr(l, "column %s: linked.match_column is required", id)
		}
		if link.SourceMatchColumnID, ok = lookupString(l, "source_match_column"); !ok {
			return col, compileErr(l, "column %s: linked.source_match_column is required", id)
		}
		col.Linked = link
	}

	if d := v.LookupPath(cue.ParsePath("dedupe")); d.Exists() {
		policy := &grid.DedupePolicy{Active: boolOr(d, "active", true), Keep: grid.KeepOldest}
		if keep, ok := lookupString(d, "keep"); ok {
			policy.Keep = grid.KeepPolicy(keep)
		}
		col.Dedupe = policy
	}
	return col, nil
}

func compileAgent(id string, v cue.Value) (grid.Agent, error) {
	agent := grid.Agent{ID: id}
	agent.Name = stringOr(v, "name", id)
	if t, ok := lookupString(v, "type"); ok {
		agent.Type = grid.AgentType(t)
	}
	if p, ok := lookupString(v, "provider"); ok {
		agent.Provider = grid.Provider(p)
	}
	agent.Model, _ = lookupString(v, "model")
	var ok bool
	if agent.Prompt, ok = lookupString(v, "prompt"); !ok {
		return agent, compileErr(v, "agent %s: prompt is required", id)
	}
	agent.Condition, _ = lookupString(v, "condition")
	agent.OutputColumnName, _ = lookupString(v, "output_column")

	if inputs := v.LookupPath(cue.ParsePath("inputs")); inputs.Exists() {
		list, err := stringList(inputs)
		if err != nil {
			return agent, compileErr(inputs, "agent %s: inputs: %v", id, err)
		}
		agent.InputColumnIDs = list
	}
	if keys := v.LookupPath(cue.ParsePath("output_keys")); keys.Exists() {
		list, err := stringList(keys)
		if err != nil {
			return agent, compileErr(keys, "agent %s: output_keys: %v", id, err)
		}
		agent.OutputKeys = list
	}
	return agent, nil
}

func compileWorkflow(sheetID string, v cue.Value) (*grid.WorkflowConfig, error) {
	wf := &grid.WorkflowConfig{}
	var ok bool
	if wf.CompanyIDColumnID, ok = lookupString(v, "company_id_column"); !ok {
		return nil, compileErr(v, "sheet %s: workflow.company_id_column is required", sheetID)
	}
	wf.WebsiteColumnID, _ = lookupString(v, "website_column")
	wf.NameColumnID, _ = lookupString(v, "name_column")
	wf.CompanyAutoEnrich = boolOr(v, "company_auto_enrich", false)
	wf.OwnerAutoEnrich = boolOr(v, "owner_auto_enrich", false)
	wf.IncludeProkurist = boolOr(v, "include_prokurist", false)
	return wf, nil
}

// compileRows parses the seed row list. Row ids come from the declaration's
// `id` field; cells not declared fall back to column defaults so seed rows
// look exactly like rows born in the store.
func compileRows(sheetID string, v cue.Value, columns []grid.Column) ([]grid.Row, error) {
	iter, err := v.List()
	if err != nil {
		return nil, compileErr(v, "sheet %s: row must be a list: %v", sheetID, err)
	}
	var rows []grid.Row
	index := 0
	for iter.Next() {
		rowVal := iter.Value()
		id, ok := lookupString(rowVal, grid.RowIDKey)
		if !ok {
			id = fmt.Sprintf("%s-row-%d", sheetID, index+1)
		}
		row := grid.NewRow(id, columns)
		fields, err := rowVal.Fields()
		if err != nil {
			return nil, compileErr(rowVal, "sheet %s: row %d: %v", sheetID, index+1, err)
		}
		for fields.Next() {
			if fields.Label() == grid.RowIDKey {
				continue
			}
			val, err := compileValue(fields.Value())
			if err != nil {
				return nil, compileErr(fields.Value(), "sheet %s: row %d: %s: %v", sheetID, index+1, fields.Label(), err)
			}
			row[fields.Label()] = val
		}
		rows = append(rows, row)
		index++
	}
	return rows, nil
}

// compileValue converts a CUE scalar into a cell value.
func compileValue(v cue.Value) (grid.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return grid.Null{}, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, err
		}
		return grid.String(s), nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		return grid.Number(f), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, err
		}
		return grid.String(fmt.Sprintf("%t", b)), nil
	default:
		return nil, fmt.Errorf("unsupported cell kind %v", v.Kind())
	}
}

func lookupString(v cue.Value, path string) (string, bool) {
	field := v.LookupPath(cue.ParsePath(path))
	if !field.Exists() {
		return "", false
	}
	s, err := field.String()
	if err != nil {
		return "", false
	}
	return s, true
}

func stringOr(v cue.Value, path, fallback string) string {
	if s, ok := lookupString(v, path); ok {
		return s
	}
	return fallback
}

func boolOr(v cue.Value, path string, fallback bool) bool {
	field := v.LookupPath(cue.ParsePath(path))
	if !field.Exists() {
		return fallback
	}
	b, err := field.Bool()
	if err != nil {
		return fallback
	}
	return b
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, err
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func compileErr(v cue.Value, format string, args ...any) *LoadError {
	return &LoadError{
		Code:    ErrCodeCompile,
		Message: fmt.Sprintf(format, args...),
		Pos:     v.Pos(),
	}
}
