package table

import (
	"math"
	"strconv"
	"strings"
)

// missingTokens are cell spellings treated as missing, matching what the
// archive exports and common CSV tooling write for nulls.
var missingTokens = map[string]bool{
	"":        true,
	"na":      true,
	"n/a":     true,
	"#n/a":    true,
	"nan":     true,
	"-nan":    true,
	"null":    true,
	"none":    true,
	"<na>":    true,
	"-1.#ind": true,
}

// IsBlank reports whether a cell holds no value.
func IsBlank(v string) bool {
	return missingTokens[strings.ToLower(strings.TrimSpace(v))]
}

// ParseNumber coerces a cell to float64. Blank and non-numeric cells yield
// NaN and false.
func ParseNumber(v string) (float64, bool) {
	if IsBlank(v) {
		return math.NaN(), false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return math.NaN(), false
	}
	return f, true
}

// IsNumeric reports whether a cell is blank or parses as a number.
func IsNumeric(v string) bool {
	if IsBlank(v) {
		return true
	}
	_, ok := ParseNumber(v)
	return ok
}

// FormatNumber renders a value so that ParseNumber round-trips it exactly.
// NaN renders as an empty (missing) cell.
func FormatNumber(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Numbers coerces a column of cells.
func Numbers(cells []string) []float64 {
	out := make([]float64, len(cells))
	for i, c := range cells {
		out[i], _ = ParseNumber(c)
	}
	return out
}
