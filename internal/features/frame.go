// Package features turns normalized survey tables into the numeric matrix a
// trained classifier consumes: alias resolution, uncertainty features,
// categorical expansion and strict alignment to the training column order.
package features

import (
	"math"
	"strings"
)

// FeatureFrame is the numeric matrix handed to a classifier. Values holds one
// row per observation, aligned to Columns. NaN marks a missing value.
type FeatureFrame struct {
	Columns []string
	Values  [][]float64
}

// Rows returns the number of observations.
func (f *FeatureFrame) Rows() int {
	return len(f.Values)
}

// Width returns the number of feature columns.
func (f *FeatureFrame) Width() int {
	return len(f.Columns)
}

// HasNonFinite reports whether any cell is NaN or infinite.
func (f *FeatureFrame) HasNonFinite() bool {
	for _, row := range f.Values {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return true
			}
		}
	}
	return false
}

// FillNonFinite returns a copy where every NaN or infinite cell holds v.
func (f *FeatureFrame) FillNonFinite(v float64) *FeatureFrame {
	out := &FeatureFrame{
		Columns: append([]string(nil), f.Columns...),
		Values:  make([][]float64, len(f.Values)),
	}
	for i, row := range f.Values {
		nr := make([]float64, len(row))
		for j, x := range row {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				x = v
			}
			nr[j] = x
		}
		out.Values[i] = nr
	}
	return out
}

// DerivationNote records how a column was produced from source columns.
type DerivationNote struct {
	Target  string   `json:"target"`
	Sources []string `json:"sources"`
	Message string   `json:"message"`
}

func (n DerivationNote) String() string {
	return n.Message
}

func derivedNote(target string, sources ...string) DerivationNote {
	return DerivationNote{
		Target:  target,
		Sources: sources,
		Message: "derived " + target + " from " + strings.Join(sources, "/"),
	}
}

func coercedNote(target, source string) DerivationNote {
	return DerivationNote{
		Target:  target,
		Sources: []string{source},
		Message: "coerced " + source + " -> " + target + " (0/1)",
	}
}

// NoteStrings renders notes for display.
func NoteStrings(notes []DerivationNote) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.String()
	}
	return out
}
