package grid

import (
	"strconv"
	"strings"
	"unicode"
)

// ColumnIDFromLabel derives a reference-friendly column id from a header
// label: lowercase, word characters only, spaces collapsed to underscores.
// "Company Name" becomes "company_name".
func ColumnIDFromLabel(label string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(label) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	id := strings.Trim(b.String(), "_")
	if id == "" {
		return "column"
	}
	return id
}

// UniqueColumnID returns base, or base_2, base_3, ... until it collides
// with neither an existing column id nor the reserved row-id key.
func UniqueColumnID(base string, existing []Column) string {
	if base == "" {
		base = "column"
	}
	taken := make(map[string]bool, len(existing)+1)
	taken[RowIDKey] = true
	for _, col := range existing {
		taken[col.ID] = true
	}
	if !taken[base] {
		return base
	}
	for n := 2; ; n++ {
		candidate := base + "_" + strconv.Itoa(n)
		if !taken[candidate] {
			return candidate
		}
	}
}
