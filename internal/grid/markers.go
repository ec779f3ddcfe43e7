package grid

import "strings"

// In-cell error markers. Resolution and evaluation failures degrade to one
// of these strings in the affected cell; processing of the rest of the row
// and sheet always continues.
const (
	// MarkerFormulaError is written when a formula fails to resolve.
	MarkerFormulaError = "#ERROR!"

	// MarkerMissingSheet is written when a linked column's source sheet id
	// no longer exists in the vertical.
	MarkerMissingSheet = "#REF! missing sheet"

	// MarkerMissingColumn is written when a linked column's source column id
	// no longer exists on the source sheet.
	MarkerMissingColumn = "#REF! missing column"

	// markerJobErrorPrefix prefixes per-row enrichment failures so the cell
	// stays distinguishable from a legitimate result.
	markerJobErrorPrefix = "#ERROR! "
)

// JobErrorMarker builds the in-cell marker for a failed enrichment row.
func JobErrorMarker(err error) String {
	if err == nil {
		return String(MarkerFormulaError)
	}
	return String(markerJobErrorPrefix + err.Error())
}

// IsErrorMarker reports whether a cell value is one of the engine's error
// markers rather than user or enrichment data.
func IsErrorMarker(v Value) bool {
	s, ok := v.(String)
	if !ok {
		return false
	}
	return strings.HasPrefix(string(s), "#ERROR!") || strings.HasPrefix(string(s), "#REF!")
}
