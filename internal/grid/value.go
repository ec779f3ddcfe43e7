package grid

import (
	"fmt"
	"strconv"
)

// Value is a sealed interface representing the scalar types a cell may hold.
// Only String, Number, and Null implement it. Absence of a value is modeled
// by a missing Row key, not by a Value.
type Value interface {
	cellValue() // Sealed - only these types implement it
}

// String represents a text cell value.
type String string

func (String) cellValue() {}

// Number represents a numeric cell value. Always float64; the display layer
// decides precision, the engine only ever compares stringified forms.
type Number float64

func (Number) cellValue() {}

// Null represents an explicitly empty cell. Distinct from a missing Row key:
// Null means "cleared", absence means "never set".
type Null struct{}

func (Null) cellValue() {}

// Stringify converts a cell value to its canonical string form.
//
// Null and nil stringify to "". Numbers use the shortest representation that
// round-trips (42 stays "42", never "42.000000"). This is the ONLY
// stringification the engine uses for formula substitution, link matching,
// and dedup comparison, so it must stay deterministic.
func Stringify(v Value) string {
	switch val := v.(type) {
	case nil:
		return ""
	case Null:
		return ""
	case String:
		return string(val)
	case Number:
		return strconv.FormatFloat(float64(val), 'f', -1, 64)
	default:
		// Unreachable while the interface stays sealed.
		return fmt.Sprintf("%v", val)
	}
}

// IsEmpty reports whether a cell value is absent for comparison purposes:
// nil, Null, or the empty string. A Number is never empty, including 0.
func IsEmpty(v Value) bool {
	switch val := v.(type) {
	case nil:
		return true
	case Null:
		return true
	case String:
		return val == ""
	default:
		return false
	}
}

// FromAny coerces an arbitrary Go value (as produced by YAML or JSON
// decoding, or an import collaborator) into a cell Value.
//
// Numeric types collapse to Number, booleans to their string form, nil to
// Null. Everything else goes through fmt.Sprintf as a String.
func FromAny(v any) Value {
	switch val := v.(type) {
	case nil:
		return Null{}
	case Value:
		return val
	case string:
		return String(val)
	case float64:
		return Number(val)
	case float32:
		return Number(val)
	case int:
		return Number(val)
	case int64:
		return Number(val)
	case uint64:
		return Number(val)
	case bool:
		return String(strconv.FormatBool(val))
	default:
		return String(fmt.Sprintf("%v", val))
	}
}
