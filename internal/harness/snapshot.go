package harness

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/gridloom/gridloom/internal/grid"
)

// Snapshot renders the final grid state as deterministic plain text for
// golden-file comparison. Cell order follows column order; row keys outside
// the column list (enrichment side-fields) trail in sorted order.
func Snapshot(scenarioName string, verticals []*grid.Vertical) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", scenarioName)

	for _, v := range verticals {
		fmt.Fprintf(&b, "\nvertical %s %q\n", v.ID, v.Name)
		for _, sheet := range v.Sheets {
			fmt.Fprintf(&b, "  sheet %s %q\n", sheet.ID, sheet.Name)

			ids := make([]string, len(sheet.Columns))
			for i, col := range sheet.Columns {
				ids[i] = col.ID
			}
			fmt.Fprintf(&b, "    columns: %s\n", strings.Join(ids, ", "))

			for _, row := range sheet.Rows {
				fmt.Fprintf(&b, "    row %s:", row.ID())
				for _, col := range sheet.Columns {
					if v, ok := row.Get(col.ID); ok {
						fmt.Fprintf(&b, " %s=%s", col.ID, renderValue(v))
					}
				}
				for _, key := range extraKeys(row, sheet.Columns) {
					fmt.Fprintf(&b, " %s=%s", key, renderValue(row[key]))
				}
				b.WriteString("\n")
			}
		}
	}
	return []byte(b.String())
}

func renderValue(v grid.Value) string {
	switch val := v.(type) {
	case grid.String:
		return fmt.Sprintf("%q", string(val))
	case grid.Number:
		return grid.Stringify(val)
	default:
		return "null"
	}
}

func extraKeys(row grid.Row, columns []grid.Column) []string {
	known := make(map[string]bool, len(columns)+1)
	known[grid.RowIDKey] = true
	for _, col := range columns {
		known[col.ID] = true
	}
	var extras []string
	for key := range row {
		if !known[key] {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	return extras
}

// RunWithGolden executes a scenario, fails the test on any scenario error,
// and compares the final grid snapshot against a golden file under
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("scenario %s: %v", scenario.Name, err)
	}
	for _, msg := range result.Errors {
		t.Errorf("scenario %s: %s", scenario.Name, msg)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Snapshot(scenario.Name, result.Verticals))
}
