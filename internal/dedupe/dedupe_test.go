package dedupe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridloom/gridloom/internal/grid"
)

func row(id string, email grid.Value) grid.Row {
	r := grid.Row{grid.RowIDKey: grid.String(id)}
	if email != nil {
		r["email"] = email
	}
	return r
}

func ids(rows []grid.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.ID()
	}
	return out
}

func TestDedupe_KeepOldest(t *testing.T) {
	rows := []grid.Row{
		row("1", grid.String("a@x.com")),
		row("2", grid.String("b@x.com")),
		row("3", grid.String("a@x.com")),
	}

	got := Dedupe(rows, "email", grid.KeepOldest)
	assert.Equal(t, []string{"1", "2"}, ids(got))
}

func TestDedupe_KeepNewestPreservesOrder(t *testing.T) {
	rows := []grid.Row{
		row("1", grid.String("a@x.com")),
		row("2", grid.String("b@x.com")),
		row("3", grid.String("a@x.com")),
	}

	// Row 1 is dropped; row 3 (the later a@x.com) is kept in place,
	// after row 2, not moved to the end.
	got := Dedupe(rows, "email", grid.KeepNewest)
	assert.Equal(t, []string{"2", "3"}, ids(got))
}

func TestDedupe_EmptyValuesAlwaysSurvive(t *testing.T) {
	rows := []grid.Row{
		row("1", grid.String("")),
		row("2", grid.String("a@x.com")),
		row("3", nil), // absent key
		row("4", grid.Null{}),
		row("5", grid.String("a@x.com")),
		row("6", grid.String("")),
	}

	for _, keep := range []grid.KeepPolicy{grid.KeepOldest, grid.KeepNewest} {
		got := Dedupe(rows, "email", keep)
		require.Len(t, got, 5, "only one duplicate removed for policy %s", keep)
		// Empty rows survive unchanged and in original relative order.
		var empties []string
		for _, r := range got {
			if v, ok := r.Get("email"); !ok || grid.IsEmpty(v) {
				empties = append(empties, r.ID())
			}
		}
		assert.Equal(t, []string{"1", "3", "4", "6"}, empties)
	}
}

func TestDedupe_Idempotent(t *testing.T) {
	rows := []grid.Row{
		row("1", grid.String("a@x.com")),
		row("2", grid.String("b@x.com")),
		row("3", grid.String("a@x.com")),
		row("4", grid.String("")),
	}

	for _, keep := range []grid.KeepPolicy{grid.KeepOldest, grid.KeepNewest} {
		once := Dedupe(rows, "email", keep)
		twice := Dedupe(once, "email", keep)
		assert.Equal(t, ids(once), ids(twice), "policy %s", keep)
	}
}

func TestDedupe_NeverGrows(t *testing.T) {
	rows := []grid.Row{
		row("1", grid.String("x")),
		row("2", grid.String("y")),
		row("3", grid.String("x")),
		row("4", nil),
	}
	for _, keep := range []grid.KeepPolicy{grid.KeepOldest, grid.KeepNewest} {
		got := Dedupe(rows, "email", keep)
		assert.LessOrEqual(t, len(got), len(rows))
	}
}

func TestDedupe_NumbersCompareByStringForm(t *testing.T) {
	rows := []grid.Row{
		row("1", grid.Number(42)),
		row("2", grid.String("42")),
	}

	got := Dedupe(rows, "email", grid.KeepOldest)
	assert.Equal(t, []string{"1"}, ids(got), "Number(42) and \"42\" stringify equal")
}

func TestDedupe_UnicodeNormalization(t *testing.T) {
	rows := []grid.Row{
		row("1", grid.String("café")),          // precomposed é
		row("2", grid.String("café")),         // e + combining acute
		row("3", grid.String("café gmbh")),     // distinct value
	}

	got := Dedupe(rows, "email", grid.KeepOldest)
	assert.Equal(t, []string{"1", "3"}, ids(got))
}

func TestDedupe_InputNotMutated(t *testing.T) {
	rows := []grid.Row{
		row("1", grid.String("a")),
		row("2", grid.String("a")),
	}
	_ = Dedupe(rows, "email", grid.KeepNewest)
	assert.Equal(t, []string{"1", "2"}, ids(rows))
}
