package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridloom/gridloom/internal/grid"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "grid.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleVertical() *grid.Vertical {
	return &grid.Vertical{
		ID:    "v1",
		Name:  "Sales",
		Color: "blue",
		Sheets: []*grid.Sheet{
			{
				ID:   "companies",
				Name: "Companies",
				Columns: []grid.Column{
					{ID: "name", Label: "Name", Type: grid.ColumnText},
					{ID: "employees", Label: "Employees", Type: grid.ColumnNumber, Default: grid.Number(0)},
					{ID: "city", Type: grid.ColumnText, Linked: &grid.LinkedColumn{
						SourceSheetID:       "cities",
						SourceColumnID:      "name",
						MatchColumnID:       "name",
						SourceMatchColumnID: "company",
					}},
				},
				Rows: []grid.Row{
					{grid.RowIDKey: grid.String("c1"), "name": grid.String("Acme"), "employees": grid.Number(12)},
					{grid.RowIDKey: grid.String("c2"), "name": grid.String("Beta"), "cleared": grid.Null{}},
				},
				Agents: []grid.Agent{{ID: "a1", Name: "Find CEO", Condition: `/employees > 10`}},
				Workflow: &grid.WorkflowConfig{
					CompanyIDColumnID: "name",
					CompanyAutoEnrich: true,
				},
				AutoUpdate: true,
			},
		},
	}
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		s.Close()
	}
}

func TestSaveAll_RoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	in := sampleVertical()

	require.NoError(t, s.SaveAll(ctx, []*grid.Vertical{in}))

	out, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, in, out[0])
}

func TestSaveAll_ReplacesPreviousState(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.SaveAll(ctx, []*grid.Vertical{sampleVertical()}))
	require.NoError(t, s.SaveAll(ctx, []*grid.Vertical{}))

	out, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSaveAll_PreservesOrder(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	v := sampleVertical()
	// Row order is display order; ids deliberately sort against it.
	v.Sheets[0].Rows = []grid.Row{
		{grid.RowIDKey: grid.String("z-first")},
		{grid.RowIDKey: grid.String("a-second")},
	}
	require.NoError(t, s.SaveAll(ctx, []*grid.Vertical{v}))

	out, err := s.LoadAll(ctx)
	require.NoError(t, err)
	rows := out[0].Sheets[0].Rows
	require.Len(t, rows, 2)
	assert.Equal(t, "z-first", rows[0].ID())
	assert.Equal(t, "a-second", rows[1].ID())
}

func TestSaveRow_UpsertKeepsPosition(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.SaveAll(ctx, []*grid.Vertical{sampleVertical()}))

	// Replace c1 in place.
	require.NoError(t, s.SaveRow(ctx, "v1", "companies", grid.Row{
		grid.RowIDKey: grid.String("c1"), "name": grid.String("Acme GmbH"),
	}))
	// Append a new row.
	require.NoError(t, s.SaveRow(ctx, "v1", "companies", grid.Row{
		grid.RowIDKey: grid.String("c3"), "name": grid.String("Gamma"),
	}))

	out, err := s.LoadAll(ctx)
	require.NoError(t, err)
	rows := out[0].Sheets[0].Rows
	require.Len(t, rows, 3)
	assert.Equal(t, "c1", rows[0].ID(), "replaced row keeps its position")
	assert.Equal(t, grid.String("Acme GmbH"), rows[0]["name"])
	assert.Equal(t, "c3", rows[2].ID(), "new row appends")
}

func TestSaveRow_BeforeSheetSaved(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	// Targeted row write racing ahead of the first full save must not trip
	// the foreign keys.
	require.NoError(t, s.SaveRow(ctx, "v1", "orphan", grid.Row{
		grid.RowIDKey: grid.String("r1"), "a": grid.String("x"),
	}))

	out, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Len(t, out[0].Sheets, 1)
	require.Len(t, out[0].Sheets[0].Rows, 1)
}

func TestDeleteRow(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.SaveAll(ctx, []*grid.Vertical{sampleVertical()}))

	require.NoError(t, s.DeleteRow(ctx, "v1", "companies", "c1"))
	// Deleting an unknown row is a no-op, not an error.
	require.NoError(t, s.DeleteRow(ctx, "v1", "companies", "nope"))

	out, err := s.LoadAll(ctx)
	require.NoError(t, err)
	rows := out[0].Sheets[0].Rows
	require.Len(t, rows, 1)
	assert.Equal(t, "c2", rows[0].ID())
}

func TestDeleteSheet_CascadesRows(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	require.NoError(t, s.SaveAll(ctx, []*grid.Vertical{sampleVertical()}))

	require.NoError(t, s.DeleteSheet(ctx, "v1", "companies"))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM grid_rows`).Scan(&count))
	assert.Zero(t, count)
}

func TestRowRoundTrip_ValueKinds(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	v := sampleVertical()
	require.NoError(t, s.SaveAll(ctx, []*grid.Vertical{v}))

	out, err := s.LoadAll(ctx)
	require.NoError(t, err)
	rows := out[0].Sheets[0].Rows

	assert.Equal(t, grid.Number(12), rows[0]["employees"], "numbers stay numbers")
	assert.Equal(t, grid.Null{}, rows[1]["cleared"], "explicit null survives")
	_, present := rows[1].Get("employees")
	assert.False(t, present, "absent key stays absent")
}

func TestReopen_StateSurvives(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.db")
	ctx := context.Background()

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.SaveAll(ctx, []*grid.Vertical{sampleVertical()}))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	out, err := s2.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Sales", out[0].Name)
}
