package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/gridloom/gridloom/internal/grid"
)

// OwnersColumnID is the column owner enrichment writes into. The mutation
// store creates it when a workflow config is attached to a sheet.
const OwnersColumnID = "owners"

// RunCompanyEnrichment is the first registry workflow stage: look up each
// row's company in the registry and write the registry id into the mapped
// company-id column.
//
// Unlike agent and HTTP batches, rows are processed sequentially, one at a
// time: the registry is rate and cost sensitive. This is a deliberate policy
// difference from the concurrent fan-out.
func (r *Runner) RunCompanyEnrichment(ctx context.Context, verticalID, sheetID string, scope Scope) (*Report, error) {
	if r.registry == nil {
		return nil, fmt.Errorf("company enrichment: no registry provider configured")
	}
	sheet, _, err := r.writer.SheetSnapshot(verticalID, sheetID)
	if err != nil {
		return nil, fmt.Errorf("company enrichment: %w", err)
	}
	wf := sheet.Workflow
	if wf == nil {
		return nil, fmt.Errorf("company enrichment: sheet %q has no workflow config", sheetID)
	}
	if wf.CompanyIDColumnID == "" {
		return nil, fmt.Errorf("company enrichment: workflow config maps no company-id column")
	}

	return r.runSequential(ctx, sheetID, scope.rows(sheet), func(ctx context.Context, row grid.Row) RowState {
		return r.enrichCompanyRow(ctx, verticalID, sheetID, wf, row)
	})
}

// RunOwnerEnrichment is the second registry workflow stage: for each row
// with a resolved company id, fetch its registered officers and write them
// into the owners column. Sequential for the same rate/cost reason.
func (r *Runner) RunOwnerEnrichment(ctx context.Context, verticalID, sheetID string, scope Scope) (*Report, error) {
	if r.registry == nil {
		return nil, fmt.Errorf("owner enrichment: no registry provider configured")
	}
	sheet, _, err := r.writer.SheetSnapshot(verticalID, sheetID)
	if err != nil {
		return nil, fmt.Errorf("owner enrichment: %w", err)
	}
	wf := sheet.Workflow
	if wf == nil {
		return nil, fmt.Errorf("owner enrichment: sheet %q has no workflow config", sheetID)
	}

	return r.runSequential(ctx, sheetID, scope.rows(sheet), func(ctx context.Context, row grid.Row) RowState {
		return r.enrichOwnerRow(ctx, verticalID, sheetID, wf, row)
	})
}

// RunWorkflow runs both stages back to back over the same scope.
func (r *Runner) RunWorkflow(ctx context.Context, verticalID, sheetID string, scope Scope) (*Report, error) {
	companies, err := r.RunCompanyEnrichment(ctx, verticalID, sheetID, scope)
	if err != nil {
		return nil, err
	}
	if companies == nil {
		return nil, nil // cancelled
	}
	owners, err := r.RunOwnerEnrichment(ctx, verticalID, sheetID, scope)
	if err != nil {
		return nil, err
	}
	if owners == nil {
		return nil, nil // cancelled
	}

	merged := &Report{
		Attempted: companies.Attempted + owners.Attempted,
		Succeeded: companies.Succeeded + owners.Succeeded,
		Failed:    companies.Failed + owners.Failed,
		Skipped:   companies.Skipped + owners.Skipped,
		Rows:      owners.Rows,
	}
	return merged, nil
}

// runSequential mirrors runBatch with one row in flight at a time.
func (r *Runner) runSequential(ctx context.Context, sheetID string, rows []grid.Row, runRow func(context.Context, grid.Row) RowState) (*Report, error) {
	batchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	token := r.ids.Generate()
	r.guard.begin(token, sheetID, cancel)
	defer r.guard.end(token)

	report := &Report{Rows: make(map[string]RowState, len(rows))}
	for _, row := range rows {
		// Cancellation stops new rows from starting; rows never reached get
		// no terminal state and no error marker.
		if batchCtx.Err() != nil {
			return nil, nil
		}
		state := runRow(batchCtx, row)
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
	}
	if batchCtx.Err() != nil {
		return nil, nil
	}
	return report, nil
}

func (r *Runner) enrichCompanyRow(ctx context.Context, verticalID, sheetID string, wf *grid.WorkflowConfig, row grid.Row) RowState {
	// Rows that already carry a registry id are settled; re-running the
	// stage must not spend registry quota on them.
	if v, ok := row.Get(wf.CompanyIDColumnID); ok && !grid.IsEmpty(v) {
		return RowSkipped
	}

	name := grid.Stringify(row[wf.NameColumnID])
	website := grid.Stringify(row[wf.WebsiteColumnID])
	if name == "" && website == "" {
		return RowSkipped
	}

	rowID := row.ID()
	r.inflight.Add(rowID, wf.CompanyIDColumnID)
	defer r.inflight.Remove(rowID, wf.CompanyIDColumnID)

	if ctx.Err() != nil {
		return RowCancelled
	}
	record, err := r.registry.LookupCompany(ctx, name, website)
	if ctx.Err() != nil {
		return RowCancelled
	}
	if err != nil {
		r.logger.Warn("company lookup failed", "sheet", sheetID, "row", rowID, "error", err)
		r.writeErrorMarker(verticalID, sheetID, rowID, wf.CompanyIDColumnID, err)
		return RowError
	}

	fields := map[string]grid.Value{
		wf.CompanyIDColumnID: grid.String(record.CompanyID),
	}
	// Backfill mapped columns the row is missing, never overwrite user data.
	if wf.NameColumnID != "" && name == "" && record.Name != "" {
		fields[wf.NameColumnID] = grid.String(record.Name)
	}
	if wf.WebsiteColumnID != "" && website == "" && record.Website != "" {
		fields[wf.WebsiteColumnID] = grid.String(record.Website)
	}
	if err := r.writer.MergeRowFields(verticalID, sheetID, rowID, fields); err != nil {
		r.logger.Warn("company write-back failed", "sheet", sheetID, "row", rowID, "error", err)
		return RowError
	}
	return RowDone
}

func (r *Runner) enrichOwnerRow(ctx context.Context, verticalID, sheetID string, wf *grid.WorkflowConfig, row grid.Row) RowState {
	companyID := grid.Stringify(row[wf.CompanyIDColumnID])
	if companyID == "" || grid.IsErrorMarker(row[wf.CompanyIDColumnID]) {
		return RowSkipped
	}

	rowID := row.ID()
	r.inflight.Add(rowID, OwnersColumnID)
	defer r.inflight.Remove(rowID, OwnersColumnID)

	if ctx.Err() != nil {
		return RowCancelled
	}
	owners, err := r.registry.LookupOwners(ctx, companyID, wf.IncludeProkurist)
	if ctx.Err() != nil {
		return RowCancelled
	}
	if err != nil {
		r.logger.Warn("owner lookup failed", "sheet", sheetID, "row", rowID, "error", err)
		r.writeErrorMarker(verticalID, sheetID, rowID, OwnersColumnID, err)
		return RowError
	}

	if err := r.writer.MergeRowFields(verticalID, sheetID, rowID, map[string]grid.Value{
		OwnersColumnID: grid.String(formatOwners(owners)),
	}); err != nil {
		r.logger.Warn("owner write-back failed", "sheet", sheetID, "row", rowID, "error", err)
		return RowError
	}
	return RowDone
}

func formatOwners(owners []Owner) string {
	parts := make([]string, 0, len(owners))
	for _, o := range owners {
		if o.Role != "" {
			parts = append(parts, o.Name+" ("+o.Role+")")
		} else {
			parts = append(parts, o.Name)
		}
	}
	return strings.Join(parts, ", ")
}
