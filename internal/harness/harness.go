package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gridloom/gridloom/internal/enrich"
	"github.com/gridloom/gridloom/internal/grid"
	"github.com/gridloom/gridloom/internal/gridstore"
)

// Result holds the outcome of one scenario run.
type Result struct {
	// Errors collects assertion failures and unexpected step errors.
	// An empty list means the scenario passed.
	Errors []string

	// Verticals is the final grid state, for snapshotting.
	Verticals []*grid.Vertical
}

// Passed reports whether the scenario ran without failures.
func (r *Result) Passed() bool {
	return len(r.Errors) == 0
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// Run executes a scenario against a fresh in-memory store.
//
// Execution flow:
//  1. Build the setup declarations into grid values and import them
//     (importing recalculates every sheet once).
//  2. Execute each step in order, honoring expect_error.
//  3. Evaluate assertions against the final state.
func Run(scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	ids := &scriptedIDs{}
	store := gridstore.New(nil, logger, gridstore.WithIDGenerator(ids))

	for _, v := range scenario.build() {
		if err := store.ImportVertical(v); err != nil {
			return nil, fmt.Errorf("setup vertical %s: %w", v.ID, err)
		}
	}

	result := &Result{}
	for i, step := range scenario.Steps {
		err := executeStep(store, ids, logger, step)
		switch {
		case step.ExpectError != "" && err == nil:
			result.addError("step %d: expected error containing %q, got none", i+1, step.ExpectError)
		case step.ExpectError != "" && !strings.Contains(err.Error(), step.ExpectError):
			result.addError("step %d: expected error containing %q, got %q", i+1, step.ExpectError, err.Error())
		case step.ExpectError == "" && err != nil:
			result.addError("step %d: %v", i+1, err)
		}
	}

	result.Verticals = store.Verticals()
	evaluateAssertions(result, scenario.Assertions)
	return result, nil
}

func executeStep(store *gridstore.Store, ids *scriptedIDs, logger *slog.Logger, step Step) error {
	switch {
	case step.SetCell != nil:
		s := step.SetCell
		return store.SetCell(s.Vertical, s.Sheet, s.Row, s.Column, grid.FromAny(s.Value))
	case step.AddRow != nil:
		s := step.AddRow
		ids.push(s.ID)
		_, err := store.AddRow(s.Vertical, s.Sheet)
		return err
	case step.DeleteRow != nil:
		s := step.DeleteRow
		return store.DeleteRow(s.Vertical, s.Sheet, s.Row)
	case step.DeleteColumn != nil:
		s := step.DeleteColumn
		return store.DeleteColumn(s.Vertical, s.Sheet, s.Column)
	case step.DeleteSheet != nil:
		s := step.DeleteSheet
		return store.DeleteSheet(s.Vertical, s.Sheet)
	case step.Dedupe != nil:
		s := step.Dedupe
		_, err := store.ApplyDedupe(s.Vertical, s.Sheet, s.Column)
		return err
	case step.RunAgent != nil:
		return runAgentStep(store, logger, step.RunAgent)
	default:
		return fmt.Errorf("empty step")
	}
}

// runAgentStep runs one agent batch with canned provider results, waiting
// for the batch to settle before returning.
func runAgentStep(store *gridstore.Store, logger *slog.Logger, step *RunAgentStep) error {
	runner := enrich.NewRunner(store, cannedAgents(step.Results), nil, nil, nil, logger)
	report, err := runner.RunAgent(context.Background(), step.Vertical, step.Sheet, step.Agent, enrich.Scope{RowIDs: step.Rows})
	if err != nil {
		return err
	}
	if report == nil {
		return fmt.Errorf("agent batch was cancelled")
	}
	return nil
}

// cannedAgents is a deterministic provider: each row's output is scripted
// by row id, and an "error:" prefix makes that row fail.
type cannedAgents map[string]string

func (c cannedAgents) RunAgent(ctx context.Context, call enrich.AgentCall) (enrich.AgentResult, error) {
	scripted, ok := c[call.Row.ID()]
	if !ok {
		return enrich.AgentResult{Output: grid.String("")}, nil
	}
	if msg, isErr := strings.CutPrefix(scripted, "error:"); isErr {
		return enrich.AgentResult{}, fmt.Errorf("%s", strings.TrimSpace(msg))
	}
	return enrich.AgentResult{Output: grid.String(scripted)}, nil
}

// scriptedIDs feeds predetermined ids to the store, queued per step.
type scriptedIDs struct {
	queue []string
	next  int
}

func (s *scriptedIDs) push(id string) {
	s.queue = append(s.queue, id)
}

func (s *scriptedIDs) Generate() string {
	if len(s.queue) == 0 {
		s.next++
		return fmt.Sprintf("gen-%d", s.next)
	}
	id := s.queue[0]
	s.queue = s.queue[1:]
	return id
}

func evaluateAssertions(result *Result, assertions []Assertion) {
	for i, a := range assertions {
		sheet := findSheet(result.Verticals, a.Vertical, a.Sheet)
		if sheet == nil {
			result.addError("assertion %d: sheet %s/%s not found", i+1, a.Vertical, a.Sheet)
			continue
		}
		switch a.Type {
		case AssertCell:
			row, _ := sheet.RowByID(a.Row)
			if row == nil {
				result.addError("assertion %d: row %s not found on sheet %s", i+1, a.Row, a.Sheet)
				continue
			}
			want := grid.FromAny(a.Value)
			got, ok := row.Get(a.Column)
			if !ok {
				result.addError("assertion %d: cell %s.%s is absent, want %v", i+1, a.Row, a.Column, want)
				continue
			}
			if got != want {
				result.addError("assertion %d: cell %s.%s = %q, want %q", i+1, a.Row, a.Column, grid.Stringify(got), grid.Stringify(want))
			}
		case AssertRowCount:
			if len(sheet.Rows) != a.Count {
				result.addError("assertion %d: sheet %s has %d rows, want %d", i+1, a.Sheet, len(sheet.Rows), a.Count)
			}
		default:
			result.addError("assertion %d: unknown type %q", i+1, a.Type)
		}
	}
}

func findSheet(verticals []*grid.Vertical, verticalID, sheetID string) *grid.Sheet {
	for _, v := range verticals {
		if v.ID != verticalID {
			continue
		}
		if sheet, ok := v.Sheet(sheetID); ok {
			return sheet
		}
	}
	return nil
}
