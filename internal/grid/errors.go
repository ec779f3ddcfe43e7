package grid

import (
	"errors"
	"fmt"
)

// StructureError represents a rejected structural mutation.
//
// Structural errors include:
//   - Last sheet: deleting the only sheet in a vertical
//   - Last column: deleting the only column in a sheet
//   - Missing vertical/sheet/row/column lookups on mutation paths
//
// They are raised synchronously, before any state changes; a rejected
// mutation leaves the grid exactly as it was.
type StructureError struct {
	// Code identifies the error category.
	Code StructureErrorCode

	// Message is a human-readable description for the UI surface.
	Message string

	// VerticalID / SheetID / ColumnID / RowID identify the rejected target.
	// Only the fields relevant to the code are set.
	VerticalID string
	SheetID    string
	ColumnID   string
	RowID      string
}

// StructureErrorCode categorizes structural errors.
type StructureErrorCode string

const (
	// ErrCodeLastSheet indicates a delete of the only sheet in a vertical.
	ErrCodeLastSheet StructureErrorCode = "LAST_SHEET"

	// ErrCodeLastColumn indicates a delete of the only column in a sheet.
	ErrCodeLastColumn StructureErrorCode = "LAST_COLUMN"

	// ErrCodeVerticalNotFound indicates an unknown vertical id.
	ErrCodeVerticalNotFound StructureErrorCode = "VERTICAL_NOT_FOUND"

	// ErrCodeSheetNotFound indicates an unknown sheet id.
	ErrCodeSheetNotFound StructureErrorCode = "SHEET_NOT_FOUND"

	// ErrCodeColumnNotFound indicates an unknown column id.
	ErrCodeColumnNotFound StructureErrorCode = "COLUMN_NOT_FOUND"

	// ErrCodeRowNotFound indicates an unknown row id.
	ErrCodeRowNotFound StructureErrorCode = "ROW_NOT_FOUND"

	// ErrCodeDuplicateID indicates an id collision on create.
	ErrCodeDuplicateID StructureErrorCode = "DUPLICATE_ID"
)

// Error implements the error interface.
func (e *StructureError) Error() string {
	if e.SheetID != "" {
		return fmt.Sprintf("%s: %s (sheet=%s)", e.Code, e.Message, e.SheetID)
	}
	if e.VerticalID != "" {
		return fmt.Sprintf("%s: %s (vertical=%s)", e.Code, e.Message, e.VerticalID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsLastSheetError returns true if the error is a last-sheet rejection.
// Uses errors.As to handle wrapped errors.
func IsLastSheetError(err error) bool {
	var se *StructureError
	return errors.As(err, &se) && se.Code == ErrCodeLastSheet
}

// IsLastColumnError returns true if the error is a last-column rejection.
func IsLastColumnError(err error) bool {
	var se *StructureError
	return errors.As(err, &se) && se.Code == ErrCodeLastColumn
}

// IsNotFoundError returns true for any of the *_NOT_FOUND codes.
func IsNotFoundError(err error) bool {
	var se *StructureError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case ErrCodeVerticalNotFound, ErrCodeSheetNotFound, ErrCodeColumnNotFound, ErrCodeRowNotFound:
		return true
	}
	return false
}

// NewLastSheetError creates a StructureError for a last-sheet rejection.
func NewLastSheetError(verticalID, sheetID string) *StructureError {
	return &StructureError{
		Code:       ErrCodeLastSheet,
		Message:    "a vertical must retain at least one sheet",
		VerticalID: verticalID,
		SheetID:    sheetID,
	}
}

// NewLastColumnError creates a StructureError for a last-column rejection.
func NewLastColumnError(sheetID, columnID string) *StructureError {
	return &StructureError{
		Code:     ErrCodeLastColumn,
		Message:  "a sheet must retain at least one column",
		SheetID:  sheetID,
		ColumnID: columnID,
	}
}
