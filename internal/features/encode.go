package features

import (
	"sort"
	"strings"

	"github.com/kartoza/exo-inference/internal/table"
)

// Categorical expansion suffixes.
const (
	SuffixMissingDummy = "_nan"
	SuffixWasMissing   = "_was_missing"
)

// OneHot replaces each named categorical column with one 0/1 column per
// distinct value, named <col>_<value> in sorted value order, plus a
// <col>_nan column flagging blank cells. Columns absent from the table are
// skipped. Dummy columns are appended after the remaining columns.
func OneHot(t *table.RawTable, columns []string) *table.RawTable {
	var present []string
	for _, c := range columns {
		if t.Has(c) {
			present = append(present, c)
		}
	}
	if len(present) == 0 {
		return t.Clone()
	}

	type dummy struct {
		name   string
		values []string
	}
	var dummies []dummy
	for _, c := range present {
		cells, _ := t.Column(c)
		seen := make(map[string]bool)
		for _, v := range cells {
			if !table.IsBlank(v) {
				seen[strings.TrimSpace(v)] = true
			}
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)

		for _, cat := range cats {
			vals := make([]string, len(cells))
			for i, v := range cells {
				vals[i] = flag(!table.IsBlank(v) && strings.TrimSpace(v) == cat)
			}
			dummies = append(dummies, dummy{name: c + "_" + cat, values: vals})
		}
		nan := make([]string, len(cells))
		for i, v := range cells {
			nan[i] = flag(table.IsBlank(v))
		}
		dummies = append(dummies, dummy{name: c + SuffixMissingDummy, values: nan})
	}

	out := t.Drop(present...)
	for _, d := range dummies {
		out = out.WithColumn(d.name, d.values)
	}
	return out
}

// AddMissingIndicators appends <col>_was_missing for every column holding
// at least one missing or non-numeric cell.
func AddMissingIndicators(t *table.RawTable) *table.RawTable {
	out := t
	for _, c := range t.Columns {
		cells, _ := t.Column(c)
		ind := make([]string, len(cells))
		missing := false
		for i, v := range cells {
			_, ok := table.ParseNumber(v)
			ind[i] = flag(!ok)
			missing = missing || !ok
		}
		if missing {
			out = out.WithColumn(c+SuffixWasMissing, ind)
		}
	}
	if out == t {
		return t.Clone()
	}
	return out
}

// CoerceFlags copies bare false-positive flag columns into their prefixed
// names as 0/1 values when the prefixed column is absent, e.g. fpflag_nt
// into koi_fpflag_nt.
func CoerceFlags(t *table.RawTable, prefixed []string, prefix string) (*table.RawTable, []DerivationNote) {
	out := t
	var notes []DerivationNote
	for _, target := range prefixed {
		bare, ok := strings.CutPrefix(target, prefix)
		if !ok || bare == "" || out.Has(target) || !out.Has(bare) {
			continue
		}
		cells, _ := out.Column(bare)
		vals := make([]string, len(cells))
		for i, v := range cells {
			vals[i] = flag(truthy(v))
		}
		out = out.WithColumn(target, vals)
		notes = append(notes, coercedNote(target, bare))
	}
	return out, notes
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y":
		return true
	}
	f, ok := table.ParseNumber(v)
	return ok && f != 0
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
