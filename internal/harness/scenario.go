package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gridloom/gridloom/internal/grid"
)

// Scenario defines a conformance test scenario. Scenarios establish a
// workspace, execute a sequence of mutations, and assert on the resulting
// cell state.
type Scenario struct {
	// Name uniquely identifies this scenario; it doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup declares the initial verticals, sheets, columns, and rows.
	Setup []VerticalDef `yaml:"setup"`

	// Steps are executed in order against the store.
	Steps []Step `yaml:"steps,omitempty"`

	// Assertions validate the final grid state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// VerticalDef declares one workspace of the initial state.
type VerticalDef struct {
	ID     string     `yaml:"id"`
	Name   string     `yaml:"name,omitempty"`
	Sheets []SheetDef `yaml:"sheets"`
}

// SheetDef declares one sheet of the initial state.
type SheetDef struct {
	ID         string           `yaml:"id"`
	Name       string           `yaml:"name,omitempty"`
	AutoUpdate bool             `yaml:"auto_update,omitempty"`
	Columns    []ColumnDef      `yaml:"columns"`
	Rows       []map[string]any `yaml:"rows,omitempty"`
	Agents     []AgentDef       `yaml:"agents,omitempty"`
}

// ColumnDef declares one column.
type ColumnDef struct {
	ID      string     `yaml:"id"`
	Label   string     `yaml:"label,omitempty"`
	Type    string     `yaml:"type,omitempty"`
	Formula string     `yaml:"formula,omitempty"`
	Default any        `yaml:"default,omitempty"`
	Linked  *LinkedDef `yaml:"linked,omitempty"`
	Dedupe  *DedupeDef `yaml:"dedupe,omitempty"`

	// ConnectedAgent binds the column as an agent's output target.
	ConnectedAgent string `yaml:"connected_agent,omitempty"`
}

// LinkedDef declares a VLOOKUP-style join.
type LinkedDef struct {
	SourceSheet       string `yaml:"source_sheet"`
	SourceColumn      string `yaml:"source_column"`
	MatchColumn       string `yaml:"match_column"`
	SourceMatchColumn string `yaml:"source_match_column"`
}

// DedupeDef declares a per-column dedup policy.
type DedupeDef struct {
	Keep string `yaml:"keep,omitempty"`
}

// AgentDef declares an enrichment agent.
type AgentDef struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name,omitempty"`
	Prompt    string   `yaml:"prompt"`
	Condition string   `yaml:"condition,omitempty"`
	Inputs    []string `yaml:"inputs,omitempty"`
}

// Step is one mutation of the scenario flow. Exactly one field is set.
type Step struct {
	SetCell      *SetCellStep  `yaml:"set_cell,omitempty"`
	AddRow       *AddRowStep   `yaml:"add_row,omitempty"`
	DeleteRow    *TargetStep   `yaml:"delete_row,omitempty"`
	DeleteColumn *TargetStep   `yaml:"delete_column,omitempty"`
	DeleteSheet  *TargetStep   `yaml:"delete_sheet,omitempty"`
	Dedupe       *TargetStep   `yaml:"dedupe,omitempty"`
	RunAgent     *RunAgentStep `yaml:"run_agent,omitempty"`

	// ExpectError asserts that the step is rejected; its value must appear
	// in the error text. A step with ExpectError set must fail.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// SetCellStep writes one raw cell value.
type SetCellStep struct {
	Vertical string `yaml:"vertical"`
	Sheet    string `yaml:"sheet"`
	Row      string `yaml:"row"`
	Column   string `yaml:"column"`
	Value    any    `yaml:"value"`
}

// AddRowStep creates a row with a scripted id.
type AddRowStep struct {
	Vertical string `yaml:"vertical"`
	Sheet    string `yaml:"sheet"`
	ID       string `yaml:"id"`
}

// TargetStep addresses one grid element; unused fields stay empty.
type TargetStep struct {
	Vertical string `yaml:"vertical"`
	Sheet    string `yaml:"sheet"`
	Row      string `yaml:"row,omitempty"`
	Column   string `yaml:"column,omitempty"`
}

// RunAgentStep runs one agent over a sheet with canned provider results.
type RunAgentStep struct {
	Vertical string   `yaml:"vertical"`
	Sheet    string   `yaml:"sheet"`
	Agent    string   `yaml:"agent"`
	Rows     []string `yaml:"rows,omitempty"`

	// Results maps row id to the canned provider output. A value under the
	// "error:" prefix makes the provider fail for that row.
	Results map[string]string `yaml:"results"`
}

// Assertion validates final grid state.
type Assertion struct {
	// Type is "cell" (exact value match) or "row_count".
	Type string `yaml:"type"`

	Vertical string `yaml:"vertical"`
	Sheet    string `yaml:"sheet"`
	Row      string `yaml:"row,omitempty"`
	Column   string `yaml:"column,omitempty"`

	// Value is the expected cell value (type "cell").
	Value any `yaml:"value,omitempty"`

	// Count is the expected row count (type "row_count").
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertCell     = "cell"
	AssertRowCount = "row_count"
)

// LoadScenario parses a scenario YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scenario: %w", err)
	}
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("load scenario %s: %w", path, err)
	}
	if scenario.Name == "" {
		return nil, fmt.Errorf("load scenario %s: name is required", path)
	}
	return &scenario, nil
}

// build converts the setup declarations into grid values.
func (s *Scenario) build() []*grid.Vertical {
	verticals := make([]*grid.Vertical, len(s.Setup))
	for i, vd := range s.Setup {
		v := &grid.Vertical{ID: vd.ID, Name: vd.Name}
		for _, sd := range vd.Sheets {
			sheet := &grid.Sheet{ID: sd.ID, Name: sd.Name, AutoUpdate: sd.AutoUpdate}
			for _, cd := range sd.Columns {
				col := grid.Column{
					ID:               cd.ID,
					Label:            cd.Label,
					Type:             grid.ColumnText,
					Formula:          cd.Formula,
					ConnectedAgentID: cd.ConnectedAgent,
				}
				if cd.Type != "" {
					col.Type = grid.ColumnType(cd.Type)
				}
				if cd.Default != nil {
					col.Default = grid.FromAny(cd.Default)
				}
				if cd.Linked != nil {
					col.Linked = &grid.LinkedColumn{
						SourceSheetID:       cd.Linked.SourceSheet,
						SourceColumnID:      cd.Linked.SourceColumn,
						MatchColumnID:       cd.Linked.MatchColumn,
						SourceMatchColumnID: cd.Linked.SourceMatchColumn,
					}
				}
				if cd.Dedupe != nil {
					keep := grid.KeepOldest
					if cd.Dedupe.Keep != "" {
						keep = grid.KeepPolicy(cd.Dedupe.Keep)
					}
					col.Dedupe = &grid.DedupePolicy{Active: true, Keep: keep}
				}
				sheet.Columns = append(sheet.Columns, col)
			}
			for _, rd := range sd.Rows {
				row := make(grid.Row, len(rd))
				for key, val := range rd {
					row[key] = grid.FromAny(val)
				}
				sheet.Rows = append(sheet.Rows, row)
			}
			for _, ad := range sd.Agents {
				sheet.Agents = append(sheet.Agents, grid.Agent{
					ID:             ad.ID,
					Name:           ad.Name,
					Prompt:         ad.Prompt,
					Condition:      ad.Condition,
					InputColumnIDs: ad.Inputs,
				})
			}
			v.Sheets = append(v.Sheets, sheet)
		}
		verticals[i] = v
	}
	return verticals
}
