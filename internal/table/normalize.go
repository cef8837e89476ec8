package table

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

const byteOrderMark = "\ufeff"

// spaceFolder maps every Unicode space separator (category Zs) to an ASCII
// space.
var spaceFolder = runes.Map(func(r rune) rune {
	if unicode.Is(unicode.Zs, r) {
		return ' '
	}
	return r
})

// NormalizeName canonicalizes a column label: BOM removed, Unicode spaces
// folded to ASCII, surrounding whitespace trimmed, lowercased.
func NormalizeName(s string) string {
	s = strings.ReplaceAll(s, byteOrderMark, "")
	if folded, _, err := transform.String(spaceFolder, s); err == nil {
		s = folded
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// SameName reports whether two labels are equal after normalization.
func SameName(a, b string) bool {
	return NormalizeName(a) == NormalizeName(b)
}

// Normalize returns a copy of the table with canonical column labels. When
// two labels collapse to the same name the first column wins and the later
// ones are dropped and recorded in DroppedDuplicates.
func (t *RawTable) Normalize() *RawTable {
	seen := make(map[string]bool, len(t.Columns))
	var names, dupes []string
	out := t.keepIndex(func(_ int, col string) bool {
		n := NormalizeName(col)
		if seen[n] {
			dupes = append(dupes, col)
			return false
		}
		seen[n] = true
		names = append(names, n)
		return true
	})
	out.Columns = names
	out.DroppedDuplicates = append(out.DroppedDuplicates, dupes...)
	return out
}
