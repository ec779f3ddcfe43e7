package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridloom/gridloom/internal/grid"
	"github.com/gridloom/gridloom/internal/gridstore"
	"github.com/gridloom/gridloom/internal/testutil"
)

func newStore(t *testing.T, ids ...string) *gridstore.Store {
	t.Helper()
	s := gridstore.New(nil, nil, gridstore.WithIDGenerator(grid.NewFixedGenerator(ids...)))
	companies := testutil.Sheet("companies").
		Column(grid.Column{ID: "name", Label: "Company Name", Type: grid.ColumnText}).
		Column(grid.Column{ID: "employees", Label: "Employees", Type: grid.ColumnNumber}).
		Row("c1", "name", "Acme", "employees", 12).
		Build()
	require.NoError(t, s.ImportVertical(testutil.Vertical("v1", companies)))
	return s
}

func TestReadCSV(t *testing.T) {
	headers, records, err := ReadCSV(strings.NewReader("Name,City\nAcme,Berlin\nBeta\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "City"}, headers)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Beta"}, records[1], "short records tolerated")

	_, _, err = ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestPlan_ReusesByIDAndLabel(t *testing.T) {
	s := newStore(t)
	sheet, _, err := s.SheetSnapshot("v1", "companies")
	require.NoError(t, err)

	mappings := Plan(sheet, []string{"Name", "company name", "Website"})

	// "Name" slugs to "name", an existing id.
	assert.Equal(t, Mapping{Header: "Name", Action: ActionReuse, ColumnID: "name"}, mappings[0])
	// "company name" matches the label case-insensitively.
	assert.Equal(t, Mapping{Header: "company name", Action: ActionReuse, ColumnID: "name"}, mappings[1])
	// Unknown headers become new text columns.
	assert.Equal(t, ActionCreate, mappings[2].Action)
	assert.Equal(t, grid.ColumnText, mappings[2].Type)
}

func TestImport_CreatesColumnsCoercesAndBatches(t *testing.T) {
	s := newStore(t, "r1", "r2")
	im := New(s, grid.NewFixedGenerator("row-1", "row-2"), nil)

	added, err := im.Import("v1", "companies", []Mapping{
		{Header: "Name", Action: ActionReuse, ColumnID: "name"},
		{Header: "Employees", Action: ActionReuse, ColumnID: "employees"},
		{Header: "Website", Action: ActionCreate, Type: grid.ColumnText},
		{Header: "Internal Notes", Action: ActionIgnore},
	}, [][]string{
		{"Beta", "42", "beta.example", "secret"},
		{"Gamma", "not a number", "gamma.example", "secret"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	sheet, _, err := s.SheetSnapshot("v1", "companies")
	require.NoError(t, err)
	require.Len(t, sheet.Rows, 3)

	_, hasWebsite := sheet.Column("website")
	assert.True(t, hasWebsite, "created column derives id from header")

	beta := sheet.Rows[1]
	assert.Equal(t, grid.Number(42), beta["employees"], "number column coerces")
	assert.Equal(t, grid.String("beta.example"), beta["website"])
	_, hasNotes := beta.Get("internal_notes")
	assert.False(t, hasNotes, "ignored header leaves no trace")

	gamma := sheet.Rows[2]
	assert.Equal(t, grid.String("not a number"), gamma["employees"], "unparseable number kept as text")
}

func TestImport_ShortRecordsGetDefaults(t *testing.T) {
	s := newStore(t)
	im := New(s, grid.NewFixedGenerator("row-1"), nil)

	_, err := im.Import("v1", "companies", []Mapping{
		{Header: "Name", Action: ActionReuse, ColumnID: "name"},
		{Header: "Employees", Action: ActionReuse, ColumnID: "employees"},
	}, [][]string{{"Solo"}})
	require.NoError(t, err)

	sheet, _, err := s.SheetSnapshot("v1", "companies")
	require.NoError(t, err)
	row := sheet.Rows[1]
	assert.Equal(t, grid.String("Solo"), row["name"])
	assert.Equal(t, grid.Number(0), row["employees"], "missing cell falls back to the column default")
}

func TestImport_UnknownReuseTargetRejected(t *testing.T) {
	s := newStore(t)
	im := New(s, nil, nil)

	_, err := im.Import("v1", "companies", []Mapping{
		{Header: "Name", Action: ActionReuse, ColumnID: "nope"},
	}, [][]string{{"Beta"}})
	assert.Error(t, err)
}
