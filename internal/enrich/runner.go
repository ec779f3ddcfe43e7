package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gridloom/gridloom/internal/condition"
	"github.com/gridloom/gridloom/internal/grid"
	"github.com/gridloom/gridloom/internal/resolve"
)

// GridWriter is the runner's only handle on grid state. The mutation store
// implements it; every write goes through the store's single updater choke
// point, which recalculates the sheet and fans out to dependents.
type GridWriter interface {
	// SheetSnapshot returns a read-only clone of the sheet plus all sheets
	// of its vertical.
	SheetSnapshot(verticalID, sheetID string) (*grid.Sheet, []*grid.Sheet, error)

	// MergeRowFields merges named fields into one row - never replacing the
	// whole row - then recalculates the owning sheet and its dependents.
	MergeRowFields(verticalID, sheetID, rowID string, fields map[string]grid.Value) error
}

// RowState is the terminal state of one row within one batch. Terminal
// states are mutually exclusive and final for that batch; a new batch is a
// fresh attempt.
type RowState string

const (
	RowDone      RowState = "done"
	RowError     RowState = "error"
	RowSkipped   RowState = "skipped"
	RowCancelled RowState = "cancelled"
)

// Report summarizes a settled batch for user-facing notification.
// A cancelled batch produces no report at all.
type Report struct {
	// Attempted counts rows that were dispatched (skipped rows excluded).
	Attempted int
	// Succeeded counts rows whose result was written back.
	Succeeded int
	// Failed counts rows that wrote an error marker.
	Failed int
	// Skipped counts rows excluded by condition or missing inputs.
	Skipped int
	// Rows holds the terminal state per row id.
	Rows map[string]RowState
}

// Scope selects which rows a batch operates on: an explicit row-id list if
// given, otherwise the current selection if non-empty, otherwise every row
// of the sheet.
type Scope struct {
	RowIDs    []string
	Selection []string
}

func (s Scope) rows(sheet *grid.Sheet) []grid.Row {
	pick := func(ids []string) []grid.Row {
		var out []grid.Row
		for _, id := range ids {
			if row, _ := sheet.RowByID(id); row != nil {
				out = append(out, row)
			}
		}
		return out
	}
	if len(s.RowIDs) > 0 {
		return pick(s.RowIDs)
	}
	if len(s.Selection) > 0 {
		return pick(s.Selection)
	}
	return sheet.Rows
}

// Runner executes enrichment batches against a grid.
type Runner struct {
	writer   GridWriter
	agents   AgentProvider
	http     HTTPProvider
	registry RegistryProvider
	inflight *InFlightSet
	guard    *batchGuard
	ids      grid.IDGenerator
	logger   *slog.Logger
}

// NewRunner creates a runner. Any provider may be nil if the corresponding
// job kind is never invoked; invoking it anyway returns an error.
func NewRunner(writer GridWriter, agents AgentProvider, http HTTPProvider, registry RegistryProvider, ids grid.IDGenerator, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if ids == nil {
		ids = grid.UUIDv7Generator{}
	}
	return &Runner{
		writer:   writer,
		agents:   agents,
		http:     http,
		registry: registry,
		inflight: NewInFlightSet(),
		guard:    newBatchGuard(),
		ids:      ids,
		logger:   logger,
	}
}

// InFlight exposes the processing-cell set for the UI surface.
func (r *Runner) InFlight() *InFlightSet {
	return r.inflight
}

// Stop cancels every active batch and clears all in-flight markers
// immediately. Cancellation is cooperative; rows observe it at their next
// checkpoint and skip their write.
func (r *Runner) Stop() {
	r.guard.cancelAll()
	r.inflight.Clear()
}

// RunAgent executes one agent over the scoped rows of a sheet, all rows
// concurrently. Returns (nil, nil) when the batch was cancelled: a
// cancelled batch reports nothing further.
func (r *Runner) RunAgent(ctx context.Context, verticalID, sheetID, agentID string, scope Scope) (*Report, error) {
	if r.agents == nil {
		return nil, fmt.Errorf("run agent: no agent provider configured")
	}
	sheet, _, err := r.writer.SheetSnapshot(verticalID, sheetID)
	if err != nil {
		return nil, fmt.Errorf("run agent: %w", err)
	}
	agent, ok := sheet.Agent(agentID)
	if !ok {
		return nil, fmt.Errorf("run agent: agent %q not found on sheet %q", agentID, sheetID)
	}
	target, ok := sheet.ColumnForAgent(agentID)
	if !ok {
		return nil, fmt.Errorf("run agent: no column connected to agent %q", agentID)
	}

	return r.runBatch(ctx, sheetID, scope.rows(sheet), func(ctx context.Context, row grid.Row) RowState {
		return r.runAgentRow(ctx, verticalID, sheetID, *agent, target.ID, row, sheet.Columns)
	})
}

// RunHTTPRequest executes one HTTP request config over the scoped rows,
// all rows concurrently. No skip policy applies: every scoped row runs.
func (r *Runner) RunHTTPRequest(ctx context.Context, verticalID, sheetID, requestID string, scope Scope) (*Report, error) {
	if r.http == nil {
		return nil, fmt.Errorf("run http request: no http provider configured")
	}
	sheet, _, err := r.writer.SheetSnapshot(verticalID, sheetID)
	if err != nil {
		return nil, fmt.Errorf("run http request: %w", err)
	}
	req, ok := sheet.HTTPRequest(requestID)
	if !ok {
		return nil, fmt.Errorf("run http request: request %q not found on sheet %q", requestID, sheetID)
	}
	target, ok := sheet.ColumnForHTTPRequest(requestID)
	if !ok {
		return nil, fmt.Errorf("run http request: no column connected to request %q", requestID)
	}

	return r.runBatch(ctx, sheetID, scope.rows(sheet), func(ctx context.Context, row grid.Row) RowState {
		return r.runHTTPRow(ctx, verticalID, sheetID, *req, target.ID, row, sheet.Columns)
	})
}

// runBatch is the shared fan-out skeleton: one context per batch, all rows
// dispatched concurrently, awaited, tallied. Identical in shape across job
// kinds; only the per-row function differs.
func (r *Runner) runBatch(ctx context.Context, sheetID string, rows []grid.Row, runRow func(context.Context, grid.Row) RowState) (*Report, error) {
	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	token := r.ids.Generate()
	r.guard.begin(token, sheetID, cancel)
	defer r.guard.end(token)

	report := &Report{Rows: make(map[string]RowState, len(rows))}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, row := range rows {
		wg.Add(1)
		go func(row grid.Row) {
			defer wg.Done()
			state := runRow(batchCtx, row)
			mu.Lock()
			defer mu.Unlock()
			report.Rows[row.ID()] = state
			switch state {
			case RowDone:
				report.Attempted++
				report.Succeeded++
			case RowError:
				report.Attempted++
				report.Failed++
			case RowSkipped:
				report.Skipped++
			}
		}(row)
	}
	wg.Wait()

	// A cancelled batch short-circuits reporting.
	if batchCtx.Err() != nil {
		return nil, nil
	}
	return report, nil
}

// runAgentRow executes the agent for one row.
//
// Skip policy (agent jobs only): the row is skipped - not counted as
// success or failure - when its condition evaluates to false or when any
// declared input column is absent or null. An empty string input is allowed
// and means "run anyway".
func (r *Runner) runAgentRow(ctx context.Context, verticalID, sheetID string, agent grid.Agent, targetColumnID string, row grid.Row, columns []grid.Column) RowState {
	if !condition.ShouldRun(agent.Condition, row, columns, r.logger) {
		return RowSkipped
	}
	for _, inputID := range agent.InputColumnIDs {
		v, ok := row.Get(inputID)
		if !ok {
			return RowSkipped
		}
		if _, isNull := v.(grid.Null); isNull {
			return RowSkipped
		}
	}

	rowID := row.ID()
	r.inflight.Add(rowID, targetColumnID)
	defer r.inflight.Remove(rowID, targetColumnID)

	// Cancellation checkpoint: before the network call.
	if ctx.Err() != nil {
		return RowCancelled
	}

	prompt := resolve.Resolve(agent.Prompt, row, columns)
	result, err := r.agents.RunAgent(ctx, AgentCall{Agent: agent, Prompt: prompt, Row: row})

	// Cancellation checkpoint: before the write-back. An in-flight row that
	// observes cancellation skips its write, success or failure alike.
	if ctx.Err() != nil {
		return RowCancelled
	}

	if err != nil {
		r.logger.Warn("agent row failed", "sheet", sheetID, "agent", agent.ID, "row", rowID, "error", err)
		r.writeErrorMarker(verticalID, sheetID, rowID, targetColumnID, err)
		return RowError
	}

	fields := make(map[string]grid.Value, len(result.Fields)+1)
	for k, v := range result.Fields {
		fields[k] = v
	}
	if result.Output != nil {
		fields[targetColumnID] = result.Output
	}
	if err := r.writer.MergeRowFields(verticalID, sheetID, rowID, fields); err != nil {
		r.logger.Warn("agent write-back failed", "sheet", sheetID, "row", rowID, "error", err)
		return RowError
	}
	return RowDone
}

// runHTTPRow executes the HTTP request for one row.
func (r *Runner) runHTTPRow(ctx context.Context, verticalID, sheetID string, req grid.HTTPRequest, targetColumnID string, row grid.Row, columns []grid.Column) RowState {
	rowID := row.ID()
	r.inflight.Add(rowID, targetColumnID)
	defer r.inflight.Remove(rowID, targetColumnID)

	if ctx.Err() != nil {
		return RowCancelled
	}

	resolved := resolve.Resolve(req.Template, row, columns)
	value, err := r.http.RunRequest(ctx, HTTPCall{Request: req, Resolved: resolved, Row: row})

	if ctx.Err() != nil {
		return RowCancelled
	}

	if err != nil {
		r.logger.Warn("http row failed", "sheet", sheetID, "request", req.ID, "row", rowID, "error", err)
		r.writeErrorMarker(verticalID, sheetID, rowID, targetColumnID, err)
		return RowError
	}
	if err := r.writer.MergeRowFields(verticalID, sheetID, rowID, map[string]grid.Value{targetColumnID: value}); err != nil {
		r.logger.Warn("http write-back failed", "sheet", sheetID, "row", rowID, "error", err)
		return RowError
	}
	return RowDone
}

// writeErrorMarker writes a failure marker into the one affected cell.
// A failed marker write is only logged; it must not abort sibling rows.
func (r *Runner) writeErrorMarker(verticalID, sheetID, rowID, columnID string, cause error) {
	err := r.writer.MergeRowFields(verticalID, sheetID, rowID, map[string]grid.Value{
		columnID: grid.JobErrorMarker(cause),
	})
	if err != nil {
		r.logger.Warn("error marker write failed", "sheet", sheetID, "row", rowID, "error", err)
	}
}
