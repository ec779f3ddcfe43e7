package enrich

import (
	"context"

	"github.com/gridloom/gridloom/internal/grid"
)

// Trigger describes the reactive event that may start an automatic
// enrichment run: a newly created row, or a column whose value changed.
type Trigger struct {
	RowID string

	// ChangedColumnID is empty for a row-creation trigger.
	ChangedColumnID string

	// FromBatch marks a write made by an enrichment batch itself.
	// Reactive gating drops these events outright: a batch writing its
	// results back must never start the next batch.
	FromBatch bool
}

// DeployAgent runs one agent over an explicit row-id list. The mutation
// store calls this when an agent is created with an initial deployment; it
// is a plain RunAgent with errors logged instead of returned.
func (r *Runner) DeployAgent(ctx context.Context, verticalID, sheetID, agentID string, rowIDs []string) {
	if _, err := r.RunAgent(ctx, verticalID, sheetID, agentID, Scope{RowIDs: rowIDs}); err != nil {
		r.logger.Warn("agent deployment failed", "sheet", sheetID, "agent", agentID, "error", err)
	}
}

// AutoTrigger reactively runs enrichment for one row.
//
// Gating, in order:
//   - write-backs from an enrichment batch never trigger (FromBatch)
//   - at most one reactive run per sheet: the guard is reserved with a
//     single check-and-begin before anything else, so a trigger racing an
//     active batch, or another trigger, is dropped rather than queued
//   - sheet.AutoUpdate gates agent runs; an agent runs on row creation or
//     when the changed column is one of its declared inputs, never when
//     the changed column is its own connected column
//   - workflow CompanyAutoEnrich gates stage one on row creation, with
//     stage two chained after it when OwnerAutoEnrich is also set
//   - workflow OwnerAutoEnrich gates stage two when the mapped company-id
//     column changes to a non-empty value (its activation value)
//
// Callers invoke this after the originating write has settled into the
// store, typically from a goroutine, so the triggering mutation is already
// visible in the snapshot read here.
func (r *Runner) AutoTrigger(ctx context.Context, verticalID, sheetID string, trigger Trigger) {
	if trigger.FromBatch {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	token := r.ids.Generate()
	if !r.guard.beginIfIdle(token, sheetID, cancel) {
		r.logger.Debug("auto-trigger suppressed, batch active", "sheet", sheetID, "row", trigger.RowID)
		return
	}
	defer r.guard.end(token)

	sheet, _, err := r.writer.SheetSnapshot(verticalID, sheetID)
	if err != nil {
		r.logger.Warn("auto-trigger snapshot failed", "sheet", sheetID, "error", err)
		return
	}
	row, _ := sheet.RowByID(trigger.RowID)
	if row == nil {
		return
	}
	scope := Scope{RowIDs: []string{trigger.RowID}}

	if sheet.AutoUpdate && r.agents != nil {
		for _, agent := range sheet.Agents {
			if !agentListensTo(sheet, agent, trigger.ChangedColumnID) {
				continue
			}
			if _, err := r.RunAgent(runCtx, verticalID, sheetID, agent.ID, scope); err != nil {
				r.logger.Warn("auto agent run failed", "sheet", sheetID, "agent", agent.ID, "error", err)
			}
		}
	}

	wf := sheet.Workflow
	if wf == nil || r.registry == nil {
		return
	}

	if wf.CompanyAutoEnrich && trigger.ChangedColumnID == "" {
		if _, err := r.RunCompanyEnrichment(runCtx, verticalID, sheetID, scope); err != nil {
			r.logger.Warn("auto company enrichment failed", "sheet", sheetID, "error", err)
		}
		// The company-id write-back is inert (FromBatch), so stage two is
		// chained here instead of reacting to that write.
		if wf.OwnerAutoEnrich {
			if _, err := r.RunOwnerEnrichment(runCtx, verticalID, sheetID, scope); err != nil {
				r.logger.Warn("auto owner enrichment failed", "sheet", sheetID, "error", err)
			}
		}
	}

	if wf.OwnerAutoEnrich && trigger.ChangedColumnID != "" && trigger.ChangedColumnID == wf.CompanyIDColumnID {
		if v, ok := row.Get(wf.CompanyIDColumnID); ok && !grid.IsEmpty(v) {
			if _, err := r.RunOwnerEnrichment(runCtx, verticalID, sheetID, scope); err != nil {
				r.logger.Warn("auto owner enrichment failed", "sheet", sheetID, "error", err)
			}
		}
	}
}

// agentListensTo reports whether a reactive event concerns the agent. Row
// creation concerns every agent; a column change concerns only agents that
// declare the column as an input. An agent's own connected column never
// re-triggers it: the write-back of a result is not new input.
func agentListensTo(sheet *grid.Sheet, agent grid.Agent, changedColumnID string) bool {
	if target, ok := sheet.ColumnForAgent(agent.ID); ok && target.ID == changedColumnID {
		return false
	}
	if changedColumnID == "" {
		return true
	}
	for _, id := range agent.InputColumnIDs {
		if id == changedColumnID {
			return true
		}
	}
	return false
}
