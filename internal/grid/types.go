package grid

// RowIDKey is the reserved Row key holding the row's identity.
// No Column may use this id.
const RowIDKey = "id"

// ColumnType declares how a column's cells are produced and displayed.
type ColumnType string

const (
	ColumnText       ColumnType = "TEXT"
	ColumnNumber     ColumnType = "NUMBER"
	ColumnSelect     ColumnType = "SELECT"
	ColumnFormula    ColumnType = "FORMULA"
	ColumnEnrichment ColumnType = "ENRICHMENT"
	ColumnHTTP       ColumnType = "HTTP"
	ColumnURL        ColumnType = "URL"
	ColumnEmail      ColumnType = "EMAIL"
)

// KeepPolicy selects which duplicate survives deduplication.
type KeepPolicy string

const (
	// KeepOldest retains the first occurrence of each distinct value.
	KeepOldest KeepPolicy = "oldest"
	// KeepNewest retains the last occurrence, in its original position.
	KeepNewest KeepPolicy = "newest"
)

// DedupePolicy configures per-column deduplication.
type DedupePolicy struct {
	Active bool
	Keep   KeepPolicy
}

// LinkedColumn declares a VLOOKUP-style join: this column's value is the
// value of SourceColumnID in whichever row of SourceSheetID has
// SourceMatchColumnID equal to this row's MatchColumnID.
//
// The reference is by id only and re-resolved on every recalculation;
// nothing is cached or materialized beyond the current cell value.
type LinkedColumn struct {
	SourceSheetID       string
	SourceColumnID      string
	MatchColumnID       string
	SourceMatchColumnID string
}

// Column belongs to one Sheet. Its ID is unique within the sheet.
//
// Formula and Linked are not mutually exclusive at the model level; when
// both are set, recalculation runs the formula pass first and the link pass
// second, so the link value always wins. See internal/recalc.
type Column struct {
	ID       string
	Label    string
	Type     ColumnType
	Width    int
	Default  Value
	Formula  string
	Linked   *LinkedColumn
	Dedupe   *DedupePolicy
	Hidden   bool
	Pinned   bool

	// ConnectedAgentID / ConnectedHTTPRequestID bind this column as the
	// write-back target of an enrichment source on the same sheet.
	ConnectedAgentID       string
	ConnectedHTTPRequestID string
}

// Row maps column ids (plus RowIDKey) to scalar values. A missing key is
// distinct from Null and from the empty string.
type Row map[string]Value

// ID returns the row's identity, or "" if unset.
func (r Row) ID() string {
	return Stringify(r[RowIDKey])
}

// Get returns the value for a column id and whether the key is present.
func (r Row) Get(columnID string) (Value, bool) {
	v, ok := r[columnID]
	return v, ok
}

// Clone returns a shallow copy of the row. Values are scalars, so a shallow
// copy is a full copy.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// NewRow creates a row with the given id and every existing column
// initialized to its default value, or a zero by type (Number columns get 0,
// everything else the empty string).
func NewRow(id string, columns []Column) Row {
	row := Row{RowIDKey: String(id)}
	for _, col := range columns {
		if col.Default != nil {
			row[col.ID] = col.Default
			continue
		}
		if col.Type == ColumnNumber {
			row[col.ID] = Number(0)
		} else {
			row[col.ID] = String("")
		}
	}
	return row
}

// AgentType identifies the kind of enrichment an agent performs.
type AgentType string

const (
	AgentGoogleSearch    AgentType = "GOOGLE_SEARCH"
	AgentWebSearch       AgentType = "WEB_SEARCH"
	AgentContentCreation AgentType = "CONTENT_CREATION"
)

// Provider identifies the model/search backend an agent calls.
type Provider string

const (
	ProviderGoogle    Provider = "GOOGLE"
	ProviderOpenAI    Provider = "OPENAI"
	ProviderAnthropic Provider = "ANTHROPIC"
)

// Agent configures per-row AI enrichment for a sheet. Its output lands in
// the column whose ConnectedAgentID equals the agent's ID.
type Agent struct {
	ID               string
	Name             string
	Type             AgentType
	Provider         Provider
	Model            string
	Prompt           string
	InputColumnIDs   []string
	OutputKeys       []string
	OutputColumnName string
	Condition        string
	RowsToDeploy     int
}

// HTTPRequest configures per-row HTTP enrichment for a sheet. Results land
// in the column whose ConnectedHTTPRequestID matches.
type HTTPRequest struct {
	ID       string
	Name     string
	Template string
}

// WorkflowConfig maps sheet columns into the two-stage company-registry
// pipeline and carries its auto-trigger flags.
type WorkflowConfig struct {
	CompanyIDColumnID string
	WebsiteColumnID   string
	NameColumnID      string
	CompanyAutoEnrich bool
	OwnerAutoEnrich   bool
	IncludeProkurist  bool
}

// Sheet is one tab of a vertical. Columns and Rows are independently
// ordered lists; row order is display order and is significant.
type Sheet struct {
	ID           string
	Name         string
	Color        string
	Columns      []Column
	Rows         []Row
	Agents       []Agent
	HTTPRequests []HTTPRequest
	Workflow     *WorkflowConfig
	AutoUpdate   bool
}

// Column returns a pointer into the sheet's column list by id.
func (s *Sheet) Column(id string) (*Column, bool) {
	for i := range s.Columns {
		if s.Columns[i].ID == id {
			return &s.Columns[i], true
		}
	}
	return nil, false
}

// ColumnForAgent returns the column connected to the given agent id.
func (s *Sheet) ColumnForAgent(agentID string) (*Column, bool) {
	for i := range s.Columns {
		if s.Columns[i].ConnectedAgentID == agentID {
			return &s.Columns[i], true
		}
	}
	return nil, false
}

// ColumnForHTTPRequest returns the column connected to the given request id.
func (s *Sheet) ColumnForHTTPRequest(requestID string) (*Column, bool) {
	for i := range s.Columns {
		if s.Columns[i].ConnectedHTTPRequestID == requestID {
			return &s.Columns[i], true
		}
	}
	return nil, false
}

// Agent returns the sheet's agent by id.
func (s *Sheet) Agent(id string) (*Agent, bool) {
	for i := range s.Agents {
		if s.Agents[i].ID == id {
			return &s.Agents[i], true
		}
	}
	return nil, false
}

// HTTPRequest returns the sheet's request config by id.
func (s *Sheet) HTTPRequest(id string) (*HTTPRequest, bool) {
	for i := range s.HTTPRequests {
		if s.HTTPRequests[i].ID == id {
			return &s.HTTPRequests[i], true
		}
	}
	return nil, false
}

// RowByID returns the row with the given id and its index, or (nil, -1).
func (s *Sheet) RowByID(id string) (Row, int) {
	for i, row := range s.Rows {
		if row.ID() == id {
			return row, i
		}
	}
	return nil, -1
}

// Clone returns a deep copy of the sheet. Recalculation and the mutation
// store operate on clones so callers never observe a half-updated sheet.
func (s *Sheet) Clone() *Sheet {
	out := *s
	out.Columns = make([]Column, len(s.Columns))
	copy(out.Columns, s.Columns)
	for i := range out.Columns {
		if l := out.Columns[i].Linked; l != nil {
			lc := *l
			out.Columns[i].Linked = &lc
		}
		if d := out.Columns[i].Dedupe; d != nil {
			dc := *d
			out.Columns[i].Dedupe = &dc
		}
	}
	out.Rows = make([]Row, len(s.Rows))
	for i, row := range s.Rows {
		out.Rows[i] = row.Clone()
	}
	out.Agents = make([]Agent, len(s.Agents))
	copy(out.Agents, s.Agents)
	out.HTTPRequests = make([]HTTPRequest, len(s.HTTPRequests))
	copy(out.HTTPRequests, s.HTTPRequests)
	if s.Workflow != nil {
		wf := *s.Workflow
		out.Workflow = &wf
	}
	return &out
}

// Vertical is a named, colored workspace owning an ordered list of sheets.
// A vertical always retains at least one sheet; deleting the last one is
// rejected by the mutation store.
type Vertical struct {
	ID     string
	Name   string
	Color  string
	Sheets []*Sheet
}

// Sheet returns the vertical's sheet by id.
func (v *Vertical) Sheet(id string) (*Sheet, bool) {
	for _, s := range v.Sheets {
		if s.ID == id {
			return s, true
		}
	}
	return nil, false
}
