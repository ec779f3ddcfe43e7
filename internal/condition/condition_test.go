package condition

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridloom/gridloom/internal/grid"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// =============================================================================
// Eval unit tests
// =============================================================================

func TestEval_Literals(t *testing.T) {
	tests := []struct {
		expr string
		want any
	}{
		{"true", true},
		{"false", false},
		{"42", float64(42)},
		{"-3.5", float64(-3.5)},
		{"'hello'", "hello"},
		{`"hello"`, "hello"},
		{"null", nil},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_Comparisons(t *testing.T) {
	env := map[string]any{
		"employees": float64(120),
		"country":   "DE",
		"website":   nil,
	}

	tests := []struct {
		expr string
		want bool
	}{
		{"employees > 100", true},
		{"employees >= 120", true},
		{"employees < 100", false},
		{"employees == 120", true},
		{"employees != 120", false},
		{"country == 'DE'", true},
		{"country == \"AT\"", false},
		{"country != 'AT'", true},
		{"website == null", true},
		{"website != null", false},
		{"country == null", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_NumericStringComparesNumerically(t *testing.T) {
	env := map[string]any{"count": "12"}

	got, err := Eval("count > 5", env)
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = Eval("count == 12", env)
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestEval_BooleanOperators(t *testing.T) {
	env := map[string]any{"a": float64(1), "b": float64(2)}

	tests := []struct {
		expr string
		want bool
	}{
		{"a == 1 && b == 2", true},
		{"a == 1 && b == 3", false},
		{"a == 9 || b == 2", true},
		{"!(a == 9)", true},
		{"(a == 1 || b == 3) && b == 2", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Eval(tt.expr, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEval_ShortCircuit(t *testing.T) {
	// The right side would error (unbound), but && short-circuits on false.
	got, err := Eval("false && missing == 1", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, false, got)

	got, err = Eval("true || missing == 1", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestEval_Errors(t *testing.T) {
	cases := []string{
		"missing == 1",    // unbound identifier
		"1 ==",            // incomplete
		"a = 1",           // single '='
		"'unterminated",   // bad string
		"null < 3",        // null ordering
		"1 && true",       // non-boolean operand
		"true == false ==", // trailing
	}
	for _, expr := range cases {
		t.Run(expr, func(t *testing.T) {
			_, err := Eval(expr, map[string]any{"a": float64(1)})
			assert.Error(t, err)
		})
	}
}

// =============================================================================
// ShouldRun gate tests
// =============================================================================

func gateColumns() []grid.Column {
	return []grid.Column{
		{ID: "employees", Type: grid.ColumnNumber},
		{ID: "country", Type: grid.ColumnText},
		{ID: "website", Type: grid.ColumnURL},
	}
}

func TestShouldRun_BlankConditionRuns(t *testing.T) {
	row := grid.Row{grid.RowIDKey: grid.String("r1")}
	assert.True(t, ShouldRun("", row, gateColumns(), discard))
	assert.True(t, ShouldRun("   ", row, gateColumns(), discard))
}

func TestShouldRun_FalseSkips(t *testing.T) {
	row := grid.Row{
		grid.RowIDKey: grid.String("r1"),
		"employees":   grid.Number(3),
	}
	assert.False(t, ShouldRun("employees > 100", row, gateColumns(), discard))
}

func TestShouldRun_TrueRuns(t *testing.T) {
	row := grid.Row{
		grid.RowIDKey: grid.String("r1"),
		"employees":   grid.Number(500),
		"country":     grid.String("DE"),
	}
	assert.True(t, ShouldRun("employees > 100 && country == 'DE'", row, gateColumns(), discard))
}

func TestShouldRun_ReferenceTokensResolveFirst(t *testing.T) {
	row := grid.Row{
		grid.RowIDKey: grid.String("r1"),
		"country":     grid.String("DE"),
	}
	// The /country token resolves to DE before evaluation.
	assert.True(t, ShouldRun("'/country' == 'DE'", row, gateColumns(), discard))
}

func TestShouldRun_FailOpenOnSyntaxError(t *testing.T) {
	row := grid.Row{grid.RowIDKey: grid.String("r1")}
	assert.True(t, ShouldRun("this is ((( not an expression", row, gateColumns(), discard))
}

func TestShouldRun_FailOpenOnUnboundIdentifier(t *testing.T) {
	row := grid.Row{grid.RowIDKey: grid.String("r1")}
	assert.True(t, ShouldRun("no_such_column == 1", row, gateColumns(), discard))
}

func TestShouldRun_FailOpenOnNonBooleanResult(t *testing.T) {
	row := grid.Row{grid.RowIDKey: grid.String("r1"), "employees": grid.Number(7)}
	assert.True(t, ShouldRun("employees", row, gateColumns(), discard))
}

func TestBindings_Typing(t *testing.T) {
	row := grid.Row{
		grid.RowIDKey: grid.String("r1"),
		"employees":   grid.Number(42),
		"country":     grid.String("DE"),
		"website":     grid.String(""),
	}
	env := Bindings(row, gateColumns())

	assert.Equal(t, float64(42), env["employees"], "numbers stay numbers")
	assert.Equal(t, "DE", env["country"])
	assert.Nil(t, env["website"], "empty string binds as null")
}
