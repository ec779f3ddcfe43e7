package gridstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridloom/gridloom/internal/enrich"
	"github.com/gridloom/gridloom/internal/grid"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakePersister struct {
	mu         sync.Mutex
	saveAll    int
	savedRows  []string
	deletedRow []string
	sheetSaves []string
	sheetDels  []string
	err        error
}

func (p *fakePersister) SaveAll(ctx context.Context, verticals []*grid.Vertical) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saveAll++
	return p.err
}

func (p *fakePersister) SaveSheet(ctx context.Context, verticalID string, sheet *grid.Sheet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sheetSaves = append(p.sheetSaves, sheet.ID)
	return p.err
}

func (p *fakePersister) DeleteSheet(ctx context.Context, verticalID, sheetID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sheetDels = append(p.sheetDels, sheetID)
	return p.err
}

func (p *fakePersister) SaveRow(ctx context.Context, verticalID, sheetID string, row grid.Row) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.savedRows = append(p.savedRows, row.ID())
	return p.err
}

func (p *fakePersister) DeleteRow(ctx context.Context, verticalID, sheetID, rowID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deletedRow = append(p.deletedRow, rowID)
	return p.err
}

func (p *fakePersister) saveAllCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saveAll
}

type fakeTrigger struct {
	mu       sync.Mutex
	triggers []enrich.Trigger
	deploys  [][]string
}

func (f *fakeTrigger) AutoTrigger(ctx context.Context, verticalID, sheetID string, t enrich.Trigger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, t)
}

func (f *fakeTrigger) DeployAgent(ctx context.Context, verticalID, sheetID, agentID string, rowIDs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deploys = append(f.deploys, rowIDs)
}

func (f *fakeTrigger) triggerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.triggers)
}

// fixture builds a vertical with a source sheet and a dependent sheet whose
// linked column reads from it.
func fixture(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := New(nil, discard, opts...)
	v := &grid.Vertical{
		ID:   "v1",
		Name: "Sales",
		Sheets: []*grid.Sheet{
			{
				ID: "companies",
				Columns: []grid.Column{
					{ID: "name", Type: grid.ColumnText},
					{ID: "city", Type: grid.ColumnText},
				},
				Rows: []grid.Row{
					{grid.RowIDKey: grid.String("c1"), "name": grid.String("Acme"), "city": grid.String("Berlin")},
				},
			},
			{
				ID: "leads",
				Columns: []grid.Column{
					{ID: "company", Type: grid.ColumnText},
					{ID: "company_city", Type: grid.ColumnText, Linked: &grid.LinkedColumn{
						SourceSheetID:       "companies",
						SourceColumnID:      "city",
						MatchColumnID:       "company",
						SourceMatchColumnID: "name",
					}},
				},
				Rows: []grid.Row{
					{grid.RowIDKey: grid.String("l1"), "company": grid.String("Acme")},
				},
			},
		},
	}
	require.NoError(t, s.ImportVertical(v))
	return s
}

func sheetOf(t *testing.T, s *Store, verticalID, sheetID string) *grid.Sheet {
	t.Helper()
	sheet, _, err := s.SheetSnapshot(verticalID, sheetID)
	require.NoError(t, err)
	return sheet
}

// =============================================================================
// Mutation + recalculation flow
// =============================================================================

func TestImportVertical_RecalculatesLinks(t *testing.T) {
	s := fixture(t)
	leads := sheetOf(t, s, "v1", "leads")
	assert.Equal(t, grid.String("Berlin"), leads.Rows[0]["company_city"])
}

func TestSetCell_SynchronousAndFansOutToDependents(t *testing.T) {
	s := fixture(t)

	// Edit the source sheet; the dependent leads sheet must see the new
	// value by the time SetCell returns.
	require.NoError(t, s.SetCell("v1", "companies", "c1", "city", grid.String("Hamburg")))

	leads := sheetOf(t, s, "v1", "leads")
	assert.Equal(t, grid.String("Hamburg"), leads.Rows[0]["company_city"])
}

func TestSetCell_UnknownTargetsRejected(t *testing.T) {
	s := fixture(t)

	err := s.SetCell("v1", "companies", "nope", "city", grid.String("x"))
	assert.True(t, grid.IsNotFoundError(err))

	err = s.SetCell("v1", "companies", "c1", "nope", grid.String("x"))
	assert.True(t, grid.IsNotFoundError(err))

	err = s.SetCell("v1", "nope", "c1", "city", grid.String("x"))
	assert.True(t, grid.IsNotFoundError(err))
}

func TestMergeRowFields_MergesNeverReplaces(t *testing.T) {
	s := fixture(t)

	require.NoError(t, s.MergeRowFields("v1", "companies", "c1", map[string]grid.Value{
		"city": grid.String("Munich"),
	}))

	companies := sheetOf(t, s, "v1", "companies")
	assert.Equal(t, grid.String("Acme"), companies.Rows[0]["name"], "untouched field survives")
	assert.Equal(t, grid.String("Munich"), companies.Rows[0]["city"])

	leads := sheetOf(t, s, "v1", "leads")
	assert.Equal(t, grid.String("Munich"), leads.Rows[0]["company_city"], "write-back recalculates dependents")
}

func TestMergeRowFields_TriggersMarkedAsBatchWrites(t *testing.T) {
	trigger := &fakeTrigger{}
	s := fixture(t)
	s.SetEnrichmentTrigger(trigger)

	require.NoError(t, s.MergeRowFields("v1", "companies", "c1", map[string]grid.Value{
		"city": grid.String("Munich"),
	}))

	require.Eventually(t, func() bool { return trigger.triggerCount() == 1 }, time.Second, time.Millisecond)
	trigger.mu.Lock()
	defer trigger.mu.Unlock()
	assert.Equal(t, enrich.Trigger{RowID: "c1", ChangedColumnID: "city", FromBatch: true}, trigger.triggers[0])
}

func TestUpdateSheet_RejectedMutationLeavesStateUntouched(t *testing.T) {
	s := fixture(t)
	boom := errors.New("boom")

	// fn mutates its sheet before failing; the store must discard the
	// mutation along with the error.
	err := s.UpdateSheet("v1", "companies", nil, func(sheet *grid.Sheet) error {
		sheet.Rows[0]["city"] = grid.String("Oslo")
		return boom
	})
	require.ErrorIs(t, err, boom)

	companies := sheetOf(t, s, "v1", "companies")
	assert.Equal(t, grid.String("Berlin"), companies.Rows[0]["city"],
		"rejected mutation leaves the sheet untouched")
	leads := sheetOf(t, s, "v1", "leads")
	assert.Equal(t, grid.String("Berlin"), leads.Rows[0]["company_city"],
		"no recalculation happened for a rejected mutation")
}

// =============================================================================
// Row operations
// =============================================================================

func TestAddRow_DefaultsAndTrigger(t *testing.T) {
	trigger := &fakeTrigger{}
	s := fixture(t, WithIDGenerator(grid.NewFixedGenerator("r-new")))
	s.SetEnrichmentTrigger(trigger)

	row, err := s.AddRow("v1", "companies")
	require.NoError(t, err)
	assert.Equal(t, "r-new", row.ID())
	assert.Equal(t, grid.String(""), row["name"])

	companies := sheetOf(t, s, "v1", "companies")
	assert.Len(t, companies.Rows, 2)

	require.Eventually(t, func() bool { return trigger.triggerCount() == 1 }, time.Second, time.Millisecond)
	trigger.mu.Lock()
	defer trigger.mu.Unlock()
	assert.Equal(t, enrich.Trigger{RowID: "r-new"}, trigger.triggers[0])
}

func TestInsertRow_AtIndex(t *testing.T) {
	s := fixture(t, WithIDGenerator(grid.NewFixedGenerator("r-a", "r-b")))

	_, err := s.InsertRow("v1", "companies", 0)
	require.NoError(t, err)

	companies := sheetOf(t, s, "v1", "companies")
	assert.Equal(t, "r-a", companies.Rows[0].ID())
	assert.Equal(t, "c1", companies.Rows[1].ID())
}

func TestDeleteRow_RecalculatesDependents(t *testing.T) {
	s := fixture(t)

	require.NoError(t, s.DeleteRow("v1", "companies", "c1"))

	leads := sheetOf(t, s, "v1", "leads")
	assert.Equal(t, grid.String(""), leads.Rows[0]["company_city"], "join target gone, cell empties")

	err := s.DeleteRow("v1", "companies", "c1")
	assert.True(t, grid.IsNotFoundError(err))
}

func TestBulkAddRows_SingleRecalc(t *testing.T) {
	s := fixture(t)
	rows := []grid.Row{
		{grid.RowIDKey: grid.String("c2"), "name": grid.String("Beta"), "city": grid.String("Bonn")},
		{grid.RowIDKey: grid.String("c3"), "name": grid.String("Gamma"), "city": grid.String("Kiel")},
	}

	require.NoError(t, s.BulkAddRows("v1", "companies", rows))
	companies := sheetOf(t, s, "v1", "companies")
	assert.Len(t, companies.Rows, 3)
}

// =============================================================================
// Column operations
// =============================================================================

func TestAddColumn_GeneratesCollisionFreeID(t *testing.T) {
	s := fixture(t)

	col, err := s.AddColumn("v1", "companies", grid.Column{Label: "Name", Type: grid.ColumnText})
	require.NoError(t, err)
	assert.Equal(t, "name_2", col.ID, "label collides with existing id, suffixed")

	companies := sheetOf(t, s, "v1", "companies")
	assert.Equal(t, grid.String(""), companies.Rows[0]["name_2"], "existing rows initialized")
}

func TestAddColumn_DuplicateExplicitIDRejected(t *testing.T) {
	s := fixture(t)

	_, err := s.AddColumn("v1", "companies", grid.Column{ID: "name"})
	var se *grid.StructureError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, grid.ErrCodeDuplicateID, se.Code)
}

func TestDeleteColumn_LastColumnRejected(t *testing.T) {
	s := fixture(t)
	require.NoError(t, s.DeleteColumn("v1", "companies", "city"))

	err := s.DeleteColumn("v1", "companies", "name")
	assert.True(t, grid.IsLastColumnError(err))

	companies := sheetOf(t, s, "v1", "companies")
	assert.Len(t, companies.Columns, 1, "rejected delete changed nothing")
}

func TestDeleteColumn_RemovesRowValues(t *testing.T) {
	s := fixture(t)
	require.NoError(t, s.DeleteColumn("v1", "companies", "city"))

	companies := sheetOf(t, s, "v1", "companies")
	_, ok := companies.Rows[0].Get("city")
	assert.False(t, ok)

	leads := sheetOf(t, s, "v1", "leads")
	assert.Equal(t, grid.String(grid.MarkerMissingColumn), leads.Rows[0]["company_city"],
		"dependent link degrades to a marker")
}

func TestApplyDedupe(t *testing.T) {
	s := fixture(t)
	require.NoError(t, s.BulkAddRows("v1", "companies", []grid.Row{
		{grid.RowIDKey: grid.String("c2"), "name": grid.String("Acme"), "city": grid.String("Bonn")},
	}))
	require.NoError(t, s.UpdateColumn("v1", "companies", grid.Column{
		ID: "name", Type: grid.ColumnText,
		Dedupe: &grid.DedupePolicy{Active: true, Keep: grid.KeepNewest},
	}))

	removed, err := s.ApplyDedupe("v1", "companies", "name")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	companies := sheetOf(t, s, "v1", "companies")
	require.Len(t, companies.Rows, 1)
	assert.Equal(t, "c2", companies.Rows[0].ID(), "newest kept")
}

func TestAddAgent_AutoCreatesConnectedColumn(t *testing.T) {
	trigger := &fakeTrigger{}
	s := fixture(t, WithIDGenerator(grid.NewFixedGenerator("agent-1")))
	s.SetEnrichmentTrigger(trigger)

	agent, err := s.AddAgent("v1", "companies", grid.Agent{
		Name:             "Find CEO",
		OutputColumnName: "CEO",
		RowsToDeploy:     5,
	})
	require.NoError(t, err)
	assert.Equal(t, "agent-1", agent.ID)

	companies := sheetOf(t, s, "v1", "companies")
	col, ok := companies.ColumnForAgent("agent-1")
	require.True(t, ok)
	assert.Equal(t, "ceo", col.ID)
	assert.Equal(t, grid.ColumnEnrichment, col.Type)

	// RowsToDeploy clamps to the one existing row.
	require.Eventually(t, func() bool {
		trigger.mu.Lock()
		defer trigger.mu.Unlock()
		return len(trigger.deploys) == 1
	}, time.Second, time.Millisecond)
	trigger.mu.Lock()
	defer trigger.mu.Unlock()
	assert.Equal(t, []string{"c1"}, trigger.deploys[0])
}

func TestSetWorkflow_EnsuresOwnersColumn(t *testing.T) {
	s := fixture(t)

	require.NoError(t, s.SetWorkflow("v1", "companies", &grid.WorkflowConfig{
		CompanyIDColumnID: "name",
	}))

	companies := sheetOf(t, s, "v1", "companies")
	_, ok := companies.Column(enrich.OwnersColumnID)
	assert.True(t, ok)
}

// =============================================================================
// Vertical and sheet lifecycle
// =============================================================================

func TestAddVertical_HasInitialSheet(t *testing.T) {
	s := New(nil, discard, WithIDGenerator(grid.NewFixedGenerator("v1", "s1", "c1")))

	v, err := s.AddVertical("Ops", "blue")
	require.NoError(t, err)
	require.Len(t, v.Sheets, 1)
	assert.NotEmpty(t, v.Sheets[0].Columns)
}

func TestDeleteSheet_LastSheetRejected(t *testing.T) {
	s := New(nil, discard, WithIDGenerator(grid.NewFixedGenerator("v1", "s1", "c1")))
	v, err := s.AddVertical("Ops", "blue")
	require.NoError(t, err)

	err = s.DeleteSheet(v.ID, v.Sheets[0].ID)
	assert.True(t, grid.IsLastSheetError(err))
	assert.Len(t, s.Verticals()[0].Sheets, 1)
}

func TestDeleteSheet_DependentsDegradeToMarker(t *testing.T) {
	s := fixture(t)

	require.NoError(t, s.DeleteSheet("v1", "companies"))

	leads := sheetOf(t, s, "v1", "leads")
	assert.Equal(t, grid.String(grid.MarkerMissingSheet), leads.Rows[0]["company_city"])
}

func TestDeleteVertical(t *testing.T) {
	s := fixture(t)
	require.NoError(t, s.DeleteVertical("v1"))
	assert.Empty(t, s.Verticals())

	err := s.DeleteVertical("v1")
	assert.True(t, grid.IsNotFoundError(err))
}

// =============================================================================
// Persistence hand-off
// =============================================================================

func TestPersistence_DebounceCoalesces(t *testing.T) {
	p := &fakePersister{}
	s := New(p, discard, WithPersistDelay(20*time.Millisecond))
	require.NoError(t, s.ImportVertical(&grid.Vertical{
		ID: "v1",
		Sheets: []*grid.Sheet{{
			ID:      "s1",
			Columns: []grid.Column{{ID: "a", Type: grid.ColumnText}},
			Rows:    []grid.Row{{grid.RowIDKey: grid.String("r1"), "a": grid.String("")}},
		}},
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SetCell("v1", "s1", "r1", "a", grid.String("x")))
	}

	require.Eventually(t, func() bool { return p.saveAllCount() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, p.saveAllCount(), "burst of edits coalesced into one save")
}

func TestPersistence_BulkModeSuppressesThenFlushes(t *testing.T) {
	p := &fakePersister{}
	s := New(p, discard, WithPersistDelay(5*time.Millisecond))
	require.NoError(t, s.ImportVertical(&grid.Vertical{
		ID: "v1",
		Sheets: []*grid.Sheet{{
			ID:      "s1",
			Columns: []grid.Column{{ID: "a", Type: grid.ColumnText}},
			Rows:    []grid.Row{{grid.RowIDKey: grid.String("r1"), "a": grid.String("")}},
		}},
	}))

	s.SetBulkMode(true)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.SetCell("v1", "s1", "r1", "a", grid.String("x")))
	}
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, p.saveAllCount(), "suppressed during bulk")

	s.SetBulkMode(false)
	assert.Equal(t, 1, p.saveAllCount(), "one save on bulk exit")
}

func TestPersistence_FailureSurfacedNotRolledBack(t *testing.T) {
	p := &fakePersister{err: errors.New("disk full")}
	var messages []string
	var mu sync.Mutex
	s := New(p, discard,
		WithPersistDelay(5*time.Millisecond),
		WithNotifier(func(msg string) {
			mu.Lock()
			defer mu.Unlock()
			messages = append(messages, msg)
		}))
	require.NoError(t, s.ImportVertical(&grid.Vertical{
		ID: "v1",
		Sheets: []*grid.Sheet{{
			ID:      "s1",
			Columns: []grid.Column{{ID: "a", Type: grid.ColumnText}},
			Rows:    []grid.Row{{grid.RowIDKey: grid.String("r1"), "a": grid.String("")}},
		}},
	}))

	require.NoError(t, s.SetCell("v1", "s1", "r1", "a", grid.String("kept")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(messages) > 0
	}, time.Second, 5*time.Millisecond)

	sheet := sheetOf(t, s, "v1", "s1")
	assert.Equal(t, grid.String("kept"), sheet.Rows[0]["a"], "in-memory mutation survives persist failure")
}

func TestPersistence_RowCreateDeleteTargeted(t *testing.T) {
	p := &fakePersister{}
	s := New(p, discard, WithPersistDelay(time.Hour), WithIDGenerator(grid.NewFixedGenerator("r-x")))
	require.NoError(t, s.ImportVertical(&grid.Vertical{
		ID: "v1",
		Sheets: []*grid.Sheet{{
			ID:      "s1",
			Columns: []grid.Column{{ID: "a", Type: grid.ColumnText}},
		}},
	}))

	row, err := s.AddRow("v1", "s1")
	require.NoError(t, err)
	require.NoError(t, s.DeleteRow("v1", "s1", row.ID()))

	p.mu.Lock()
	defer p.mu.Unlock()
	assert.Equal(t, []string{"r-x"}, p.savedRows)
	assert.Equal(t, []string{"r-x"}, p.deletedRow)
}

// =============================================================================
// Enrichment wiring
// =============================================================================

type countingAgents struct {
	mu    sync.Mutex
	calls int
}

func (p *countingAgents) RunAgent(ctx context.Context, call enrich.AgentCall) (enrich.AgentResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return enrich.AgentResult{Output: grid.String("found-ceo")}, nil
}

func (p *countingAgents) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// enrichedFixture wires a real runner into the store the way production
// does, with an auto-updating sheet whose agent reads the name column.
func enrichedFixture(t *testing.T, provider enrich.AgentProvider) (*Store, *enrich.Runner) {
	t.Helper()
	s := New(nil, discard)
	v := &grid.Vertical{
		ID: "v1",
		Sheets: []*grid.Sheet{{
			ID:         "companies",
			AutoUpdate: true,
			Columns: []grid.Column{
				{ID: "name", Type: grid.ColumnText},
				{ID: "ceo", Type: grid.ColumnEnrichment, ConnectedAgentID: "finder"},
			},
			Agents: []grid.Agent{{
				ID:             "finder",
				Name:           "Find CEO",
				Prompt:         "Find the CEO of /name",
				InputColumnIDs: []string{"name"},
			}},
			Rows: []grid.Row{
				{grid.RowIDKey: grid.String("c1"), "name": grid.String("Acme")},
			},
		}},
	}
	require.NoError(t, s.ImportVertical(v))
	runner := enrich.NewRunner(s, provider, nil, nil, nil, discard)
	s.SetEnrichmentTrigger(runner)
	return s, runner
}

func TestAutoEnrich_OneEditOneAgentRun(t *testing.T) {
	provider := &countingAgents{}
	s, _ := enrichedFixture(t, provider)

	require.NoError(t, s.SetCell("v1", "companies", "c1", "name", grid.String("Globex")))

	require.Eventually(t, func() bool { return provider.callCount() == 1 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		sheet, _, err := s.SheetSnapshot("v1", "companies")
		if err != nil {
			return false
		}
		return sheet.Rows[0]["ceo"] == grid.String("found-ceo")
	}, time.Second, time.Millisecond)

	// Give a would-be write-back loop time to show itself.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, provider.callCount(), "the result write-back must not run the agent again")
}

func TestAutoEnrich_OutputColumnChangeIsInert(t *testing.T) {
	provider := &countingAgents{}
	_, runner := enrichedFixture(t, provider)

	runner.AutoTrigger(context.Background(), "v1", "companies", enrich.Trigger{RowID: "c1", ChangedColumnID: "ceo"})
	assert.Equal(t, 0, provider.callCount())
}
