package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gridloom/gridloom/internal/grid"
)

func cols(ids ...string) []grid.Column {
	out := make([]grid.Column, len(ids))
	for i, id := range ids {
		out[i] = grid.Column{ID: id}
	}
	return out
}

func TestResolve_BasicSubstitution(t *testing.T) {
	row := grid.Row{"name": grid.String("Acme")}

	got := Resolve("Company: /name", row, cols("name"))
	assert.Equal(t, "Company: Acme", got)
}

func TestResolve_LongestIDWins(t *testing.T) {
	row := grid.Row{
		"company":      grid.String("SHORT"),
		"company_name": grid.String("Acme GmbH"),
	}

	// /company_name must never resolve as /company + "_name".
	got := Resolve("/company_name", row, cols("company", "company_name"))
	assert.Equal(t, "Acme GmbH", got)
}

func TestResolve_WordBoundary(t *testing.T) {
	row := grid.Row{"company": grid.String("Acme")}

	// "companyX" is not a reference to "company".
	got := Resolve("/companyX and /company!", row, cols("company"))
	assert.Equal(t, "/companyX and Acme!", got)
}

func TestResolve_AbsentNullEmptyBecomeEmptyString(t *testing.T) {
	columns := cols("a", "b", "c")
	row := grid.Row{"a": grid.Null{}, "b": grid.String("")}

	got := Resolve("[/a][/b][/c]", row, columns)
	assert.Equal(t, "[][][]", got)
}

func TestResolve_NumberStringifies(t *testing.T) {
	row := grid.Row{"count": grid.Number(42)}

	got := Resolve("n=/count", row, cols("count"))
	assert.Equal(t, "n=42", got)
}

func TestResolve_MultipleOccurrences(t *testing.T) {
	row := grid.Row{"x": grid.String("v")}

	got := Resolve("/x /x /x", row, cols("x"))
	assert.Equal(t, "v v v", got)
}

func TestResolve_SubstitutedValueNotRescanned(t *testing.T) {
	row := grid.Row{
		"url":  grid.String("https://x.test/name"),
		"name": grid.String("LEAK"),
	}

	// The "/name" inside url's value must survive literally.
	got := Resolve("/url", row, cols("url", "name"))
	assert.Equal(t, "https://x.test/name", got)
}

func TestResolve_UnknownReferenceLeftVerbatim(t *testing.T) {
	got := Resolve("see /nonexistent", grid.Row{}, cols("a"))
	assert.Equal(t, "see /nonexistent", got)
}

func TestResolve_NoSentinelFastPath(t *testing.T) {
	row := grid.Row{"a": grid.String("x")}
	assert.Equal(t, "plain text", Resolve("plain text", row, cols("a")))
	assert.Equal(t, "", Resolve("", row, cols("a")))
}

func TestResolve_Deterministic(t *testing.T) {
	columns := cols("b", "a", "ab")
	row := grid.Row{"a": grid.String("1"), "b": grid.String("2"), "ab": grid.String("3")}

	first := Resolve("/ab/a/b", row, columns)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Resolve("/ab/a/b", row, columns))
	}
	assert.Equal(t, "312", first)
}
