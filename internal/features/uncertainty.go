package features

import (
	"math"
	"sort"
	"strings"

	"github.com/kartoza/exo-inference/internal/table"
)

// DefaultFloor guards relative-error denominators against zero values.
const DefaultFloor = 1e-12

// Derived column suffixes.
const (
	SuffixRelError    = "_rel_error"
	SuffixRelErrUpper = "_rel_err_upper"
	SuffixRelErrLower = "_rel_err_lower"
)

// RelativeErrorPolicy computes a relative uncertainty from a measurement and
// its two error bounds.
type RelativeErrorPolicy func(x, err1, err2, floor float64) float64

// MeanRelativeError averages the absolute error bounds and divides by the
// measurement magnitude, floored. Missing inputs yield NaN.
func MeanRelativeError(x, err1, err2, floor float64) float64 {
	return clampFinite((math.Abs(err1)/2 + math.Abs(err2)/2) / denominator(x, floor))
}

// MaxRelativeError divides the larger absolute error bound by the floored
// measurement magnitude. Missing or infinite results yield 0.
func MaxRelativeError(x, err1, err2, floor float64) float64 {
	rel := math.Max(math.Abs(err1), math.Abs(err2)) / denominator(x, floor)
	if math.IsNaN(rel) || math.IsInf(rel, 0) {
		return 0
	}
	return rel
}

func denominator(x, floor float64) float64 {
	if floor <= 0 {
		floor = DefaultFloor
	}
	return math.Max(math.Abs(x), floor)
}

// clampFinite keeps overflowed ratios of finite inputs finite.
func clampFinite(v float64) float64 {
	if math.IsInf(v, 1) {
		return math.MaxFloat64
	}
	return v
}

type errPair struct {
	base, upper, lower string
}

// errorPairs finds base columns with both _err1 and _err2 companions, in
// column order.
func errorPairs(t *table.RawTable) []errPair {
	var pairs []errPair
	for _, c := range t.Columns {
		base, ok := strings.CutSuffix(c, SuffixErrUpper)
		if !ok || base == "" {
			continue
		}
		lower := base + SuffixErrLower
		if !t.Has(lower) {
			continue
		}
		pairs = append(pairs, errPair{base: base, upper: c, lower: lower})
	}
	return pairs
}

// DeriveUncertainty replaces every measurement's _err1/_err2 pair with a
// mean relative error column, plus asymmetric upper/lower ratios when
// keepAsymmetric is set. Pairs whose base column is absent are dropped
// without derivation. The derived names are returned sorted. Running it again
// on its own output changes nothing.
func DeriveUncertainty(t *table.RawTable, keepAsymmetric bool, floor float64) (*table.RawTable, []string) {
	pairs := errorPairs(t)
	if len(pairs) == 0 {
		return t.Clone(), nil
	}

	out := t
	var derived, drop []string
	for _, p := range pairs {
		drop = append(drop, p.upper, p.lower)
		if !t.Has(p.base) {
			continue
		}
		x, _ := t.Column(p.base)
		e1, _ := t.Column(p.upper)
		e2, _ := t.Column(p.lower)

		rel := make([]string, len(x))
		var upper, lower []string
		if keepAsymmetric {
			upper = make([]string, len(x))
			lower = make([]string, len(x))
		}
		for i := range x {
			xv, _ := table.ParseNumber(x[i])
			v1, _ := table.ParseNumber(e1[i])
			v2, _ := table.ParseNumber(e2[i])
			rel[i] = table.FormatNumber(MeanRelativeError(xv, v1, v2, floor))
			if keepAsymmetric {
				den := denominator(xv, floor)
				upper[i] = table.FormatNumber(clampFinite(math.Abs(v1) / den))
				lower[i] = table.FormatNumber(clampFinite(math.Abs(v2) / den))
			}
		}

		out = out.WithColumn(p.base+SuffixRelError, rel)
		derived = append(derived, p.base+SuffixRelError)
		if keepAsymmetric {
			out = out.WithColumn(p.base+SuffixRelErrUpper, upper)
			out = out.WithColumn(p.base+SuffixRelErrLower, lower)
			derived = append(derived, p.base+SuffixRelErrUpper, p.base+SuffixRelErrLower)
		}
	}
	out = out.Drop(drop...)
	sort.Strings(derived)
	return out, derived
}

// RelPair names a measurement and the relative-error feature derived from it.
type RelPair struct {
	Base   string
	Target string
}

// RelPairsFor returns a pair for every expected feature ending in
// _rel_error.
func RelPairsFor(expected []string) []RelPair {
	var pairs []RelPair
	for _, e := range expected {
		if base, ok := strings.CutSuffix(e, SuffixRelError); ok && base != "" {
			pairs = append(pairs, RelPair{Base: base, Target: e})
		}
	}
	return pairs
}

// DeriveMaxRelativeError fills absent relative-error targets from their base
// column and whichever error companions exist, using MaxRelativeError. A
// missing companion counts as zero. Error columns are left in place.
func DeriveMaxRelativeError(t *table.RawTable, pairs []RelPair, floor float64) (*table.RawTable, []DerivationNote) {
	out := t
	var notes []DerivationNote
	for _, p := range pairs {
		if out.Has(p.Target) || !out.Has(p.Base) {
			continue
		}
		upperName, lowerName := p.Base+SuffixErrUpper, p.Base+SuffixErrLower
		e1, has1 := out.Column(upperName)
		e2, has2 := out.Column(lowerName)
		if !has1 && !has2 {
			continue
		}
		x, _ := out.Column(p.Base)
		rel := make([]string, len(x))
		for i := range x {
			xv, _ := table.ParseNumber(x[i])
			v1, v2 := 0.0, 0.0
			if has1 {
				v1, _ = table.ParseNumber(e1[i])
			}
			if has2 {
				v2, _ = table.ParseNumber(e2[i])
			}
			rel[i] = table.FormatNumber(MaxRelativeError(xv, v1, v2, floor))
		}
		out = out.WithColumn(p.Target, rel)

		sources := []string{p.Base}
		if has1 {
			sources = append(sources, upperName)
		}
		if has2 {
			sources = append(sources, lowerName)
		}
		notes = append(notes, derivedNote(p.Target, sources...))
	}
	return out, notes
}
