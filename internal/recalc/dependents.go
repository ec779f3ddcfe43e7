package recalc

import "github.com/gridloom/gridloom/internal/grid"

// FindDependents returns the ids of every sheet whose columns declare a link
// pointing at (sourceSheetID, sourceColumnID).
//
// The result is a set (each dependent appears once) in allSheets order for
// determinism. The source sheet itself is included only if it links to
// itself; callers recalculate the edited sheet inline and then push each
// dependent through Recalculate exactly once, so fan-out stays one level
// deep and cycles cannot recurse.
func FindDependents(sourceSheetID, sourceColumnID string, allSheets []*grid.Sheet) []string {
	var dependents []string
	for _, sheet := range allSheets {
		if linksTo(sheet, sourceSheetID, sourceColumnID) {
			dependents = append(dependents, sheet.ID)
		}
	}
	return dependents
}

// FindSheetDependents is FindDependents for "any column of the source sheet
// changed": it matches on sheet id alone. Used after bulk operations (row
// delete, import) where tracking individual changed columns buys nothing.
func FindSheetDependents(sourceSheetID string, allSheets []*grid.Sheet) []string {
	var dependents []string
	for _, sheet := range allSheets {
		if linksToSheet(sheet, sourceSheetID) {
			dependents = append(dependents, sheet.ID)
		}
	}
	return dependents
}

func linksTo(sheet *grid.Sheet, sourceSheetID, sourceColumnID string) bool {
	for _, col := range sheet.Columns {
		l := col.Linked
		if l == nil {
			continue
		}
		if l.SourceSheetID == sourceSheetID && l.SourceColumnID == sourceColumnID {
			return true
		}
	}
	return false
}

func linksToSheet(sheet *grid.Sheet, sourceSheetID string) bool {
	for _, col := range sheet.Columns {
		if col.Linked != nil && col.Linked.SourceSheetID == sourceSheetID {
			return true
		}
	}
	return false
}
