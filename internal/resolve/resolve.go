// Package resolve implements column-reference substitution for formula,
// prompt, and condition templates.
//
// A reference is the sentinel '/' immediately followed by a column id, where
// the id is not immediately followed by a word character. References resolve
// to the row's stringified value for that column, or "" when the cell is
// absent, null, or empty.
package resolve

import (
	"sort"
	"strings"

	"github.com/gridloom/gridloom/internal/grid"
)

// Sentinel introduces a column reference in template text.
const Sentinel = '/'

// Resolve replaces every column reference in text with the row's value.
//
// Column ids are matched longest-first so an id that is a textual prefix of
// another (e.g. "company" vs "company_name") never shadows the longer, more
// specific id. Substituted values are never rescanned, so a value containing
// '/' cannot trigger a second substitution.
//
// Deterministic and side-effect free; safe to call repeatedly.
func Resolve(text string, row grid.Row, columns []grid.Column) string {
	if text == "" || !strings.ContainsRune(text, Sentinel) {
		return text
	}

	ids := columnIDsLongestFirst(columns)

	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); {
		if text[i] != Sentinel {
			b.WriteByte(text[i])
			i++
			continue
		}
		rest := text[i+1:]
		id, ok := matchReference(rest, ids)
		if !ok {
			b.WriteByte(text[i])
			i++
			continue
		}
		b.WriteString(grid.Stringify(row[id]))
		i += 1 + len(id)
	}
	return b.String()
}

// matchReference returns the longest column id that prefixes rest and is not
// immediately followed by a word character.
func matchReference(rest string, ids []string) (string, bool) {
	for _, id := range ids {
		if !strings.HasPrefix(rest, id) {
			continue
		}
		if len(rest) > len(id) && isWordChar(rest[len(id)]) {
			continue
		}
		return id, true
	}
	return "", false
}

func isWordChar(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}

func columnIDsLongestFirst(columns []grid.Column) []string {
	ids := make([]string, 0, len(columns))
	for _, col := range columns {
		if col.ID != "" {
			ids = append(ids, col.ID)
		}
	}
	// Longest first; ties break lexicographically for determinism.
	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) > len(ids[j])
		}
		return ids[i] < ids[j]
	})
	return ids
}
