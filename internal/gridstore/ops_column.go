package gridstore

import (
	"context"

	"github.com/gridloom/gridloom/internal/dedupe"
	"github.com/gridloom/gridloom/internal/enrich"
	"github.com/gridloom/gridloom/internal/grid"
)

// AddColumn appends a column to a sheet. An empty id is derived from the
// label, made collision-free. Existing rows are initialized to the column's
// default (or a zero by type), matching how new rows are born.
func (s *Store) AddColumn(verticalID, sheetID string, col grid.Column) (grid.Column, error) {
	var added grid.Column
	err := s.UpdateSheet(verticalID, sheetID, nil, func(sheet *grid.Sheet) error {
		if col.ID == "" {
			col.ID = grid.UniqueColumnID(grid.ColumnIDFromLabel(col.Label), sheet.Columns)
		} else if _, exists := sheet.Column(col.ID); exists {
			return &grid.StructureError{
				Code: grid.ErrCodeDuplicateID, Message: "column id already exists",
				SheetID: sheetID, ColumnID: col.ID,
			}
		}
		sheet.Columns = append(sheet.Columns, col)
		for _, row := range sheet.Rows {
			if _, ok := row.Get(col.ID); ok {
				continue
			}
			if col.Default != nil {
				row[col.ID] = col.Default
			} else if col.Type == grid.ColumnNumber {
				row[col.ID] = grid.Number(0)
			} else {
				row[col.ID] = grid.String("")
			}
		}
		added = col
		return nil
	})
	return added, err
}

// UpdateColumn replaces a column's configuration in place. Changing a
// formula or link takes effect immediately through the recalculation that
// follows every mutation.
func (s *Store) UpdateColumn(verticalID, sheetID string, col grid.Column) error {
	return s.UpdateSheet(verticalID, sheetID, []string{col.ID}, func(sheet *grid.Sheet) error {
		existing, ok := sheet.Column(col.ID)
		if !ok {
			return &grid.StructureError{
				Code: grid.ErrCodeColumnNotFound, Message: "unknown column",
				SheetID: sheetID, ColumnID: col.ID,
			}
		}
		*existing = col
		return nil
	})
}

// DeleteColumn removes a column and its values from every row. Deleting the
// last column of a sheet is rejected before any mutation.
func (s *Store) DeleteColumn(verticalID, sheetID, columnID string) error {
	return s.UpdateSheet(verticalID, sheetID, []string{columnID}, func(sheet *grid.Sheet) error {
		if len(sheet.Columns) == 1 {
			err := grid.NewLastColumnError(sheetID, columnID)
			s.notify(err.Message)
			return err
		}
		idx := -1
		for i, c := range sheet.Columns {
			if c.ID == columnID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return &grid.StructureError{
				Code: grid.ErrCodeColumnNotFound, Message: "unknown column",
				SheetID: sheetID, ColumnID: columnID,
			}
		}
		sheet.Columns = append(sheet.Columns[:idx], sheet.Columns[idx+1:]...)
		for _, row := range sheet.Rows {
			delete(row, columnID)
		}
		return nil
	})
}

// ApplyDedupe runs the column's deduplication policy over the sheet's rows.
// A column without an active policy is a no-op.
func (s *Store) ApplyDedupe(verticalID, sheetID, columnID string) (removed int, err error) {
	err = s.UpdateSheet(verticalID, sheetID, nil, func(sheet *grid.Sheet) error {
		col, ok := sheet.Column(columnID)
		if !ok {
			return &grid.StructureError{
				Code: grid.ErrCodeColumnNotFound, Message: "unknown column",
				SheetID: sheetID, ColumnID: columnID,
			}
		}
		if col.Dedupe == nil || !col.Dedupe.Active {
			return nil
		}
		before := len(sheet.Rows)
		sheet.Rows = dedupe.Dedupe(sheet.Rows, columnID, col.Dedupe.Keep)
		removed = before - len(sheet.Rows)
		return nil
	})
	return removed, err
}

// AddAgent attaches an agent to a sheet. If no column is connected to it
// yet, an enrichment column named after the agent's declared output is
// created automatically. RowsToDeploy > 0 auto-runs the agent over the
// first N rows once created.
func (s *Store) AddAgent(verticalID, sheetID string, agent grid.Agent) (grid.Agent, error) {
	var deployRows []string
	err := s.UpdateSheet(verticalID, sheetID, nil, func(sheet *grid.Sheet) error {
		if agent.ID == "" {
			agent.ID = s.ids.Generate()
		}
		sheet.Agents = append(sheet.Agents, agent)

		if _, ok := sheet.ColumnForAgent(agent.ID); !ok {
			label := agent.OutputColumnName
			if label == "" {
				label = agent.Name
			}
			col := grid.Column{
				ID:               grid.UniqueColumnID(grid.ColumnIDFromLabel(label), sheet.Columns),
				Label:            label,
				Type:             grid.ColumnEnrichment,
				ConnectedAgentID: agent.ID,
			}
			sheet.Columns = append(sheet.Columns, col)
			for _, row := range sheet.Rows {
				row[col.ID] = grid.String("")
			}
		}

		if agent.RowsToDeploy > 0 {
			n := agent.RowsToDeploy
			if n > len(sheet.Rows) {
				n = len(sheet.Rows)
			}
			for _, row := range sheet.Rows[:n] {
				deployRows = append(deployRows, row.ID())
			}
		}
		return nil
	})
	if err != nil {
		return grid.Agent{}, err
	}

	if len(deployRows) > 0 {
		s.mu.Lock()
		trigger := s.trigger
		s.mu.Unlock()
		if trigger != nil {
			go trigger.DeployAgent(context.Background(), verticalID, sheetID, agent.ID, deployRows)
		}
	}
	return agent, nil
}

// DeleteAgent removes an agent config. Its connected column stays; the
// data already enriched remains user data.
func (s *Store) DeleteAgent(verticalID, sheetID, agentID string) error {
	return s.UpdateSheet(verticalID, sheetID, []string{}, func(sheet *grid.Sheet) error {
		for i, a := range sheet.Agents {
			if a.ID == agentID {
				sheet.Agents = append(sheet.Agents[:i], sheet.Agents[i+1:]...)
				return nil
			}
		}
		return nil
	})
}

// AddHTTPRequest attaches an HTTP request config, auto-creating its
// connected column like AddAgent does.
func (s *Store) AddHTTPRequest(verticalID, sheetID string, req grid.HTTPRequest) (grid.HTTPRequest, error) {
	err := s.UpdateSheet(verticalID, sheetID, nil, func(sheet *grid.Sheet) error {
		if req.ID == "" {
			req.ID = s.ids.Generate()
		}
		sheet.HTTPRequests = append(sheet.HTTPRequests, req)

		if _, ok := sheet.ColumnForHTTPRequest(req.ID); !ok {
			col := grid.Column{
				ID:                     grid.UniqueColumnID(grid.ColumnIDFromLabel(req.Name), sheet.Columns),
				Label:                  req.Name,
				Type:                   grid.ColumnHTTP,
				ConnectedHTTPRequestID: req.ID,
			}
			sheet.Columns = append(sheet.Columns, col)
			for _, row := range sheet.Rows {
				row[col.ID] = grid.String("")
			}
		}
		return nil
	})
	if err != nil {
		return grid.HTTPRequest{}, err
	}
	return req, nil
}

// SetWorkflow attaches (or clears) the registry workflow config. Attaching
// ensures the owners output column exists.
func (s *Store) SetWorkflow(verticalID, sheetID string, wf *grid.WorkflowConfig) error {
	return s.UpdateSheet(verticalID, sheetID, nil, func(sheet *grid.Sheet) error {
		sheet.Workflow = wf
		if wf == nil {
			return nil
		}
		if _, ok := sheet.Column(enrich.OwnersColumnID); !ok {
			sheet.Columns = append(sheet.Columns, grid.Column{
				ID:    enrich.OwnersColumnID,
				Label: "Owners",
				Type:  grid.ColumnText,
			})
			for _, row := range sheet.Rows {
				row[enrich.OwnersColumnID] = grid.String("")
			}
		}
		return nil
	})
}
