package features

import (
	"math"
	"strings"

	"github.com/kartoza/exo-inference/internal/table"
)

// Align coerces a table to the numeric frame a model expects. Expected
// features absent from the table are created and reported in missing:
// missingness indicators (_was_missing) default to 0, everything else to NaN.
// Extra columns are dropped and the column order equals expected. With no
// expected features the frame keeps the columns whose non-blank cells all
// parse as numbers.
func Align(t *table.RawTable, expected []string) (*FeatureFrame, []string) {
	if len(expected) == 0 {
		var cols []string
		for _, c := range t.Columns {
			if numericColumn(t, c) {
				cols = append(cols, c)
			}
		}
		return buildFrame(t, cols), nil
	}

	var missing []string
	for _, e := range expected {
		if !t.Has(e) {
			missing = append(missing, e)
		}
	}
	return buildFrame(t, expected), missing
}

func buildFrame(t *table.RawTable, cols []string) *FeatureFrame {
	idx := make([]int, len(cols))
	fill := make([]float64, len(cols))
	for j, c := range cols {
		idx[j] = t.Index(c)
		fill[j] = math.NaN()
		if strings.HasSuffix(c, SuffixWasMissing) {
			fill[j] = 0
		}
	}
	f := &FeatureFrame{
		Columns: append([]string{}, cols...),
		Values:  make([][]float64, t.Len()),
	}
	for r, row := range t.Rows {
		vals := make([]float64, len(cols))
		for j, i := range idx {
			if i < 0 {
				vals[j] = fill[j]
				continue
			}
			vals[j], _ = table.ParseNumber(row[i])
		}
		f.Values[r] = vals
	}
	return f
}

func numericColumn(t *table.RawTable, name string) bool {
	cells, _ := t.Column(name)
	for _, v := range cells {
		if table.IsBlank(v) {
			continue
		}
		if _, ok := table.ParseNumber(v); !ok {
			return false
		}
	}
	return true
}

// SchemaOptions configure AlignToSchema.
type SchemaOptions struct {
	Resolver Resolver
	// RelPairs are derived with MaxRelativeError when their target is
	// absent. Nil derives every expected _rel_error feature.
	RelPairs []RelPair
	// Flags are prefixed flag columns that may arrive without the prefix.
	Flags []string
	Floor float64
}

// AlignToSchema prepares an archive export for a model before aligning it to
// expected. Bare flag columns are coerced into their prefixed names, aliases
// are resolved and absent relative-error features are rebuilt from their
// error bounds. Notes describe every reconstructed column.
func AlignToSchema(t *table.RawTable, expected []string, opts SchemaOptions) (*FeatureFrame, []string, []DerivationNote) {
	r := opts.Resolver
	if r.Expected == nil {
		r.Expected = expected
	}
	out, flagNotes := CoerceFlags(t, opts.Flags, r.Prefix)
	out, _ = RenameColumns(out, r)

	pairs := opts.RelPairs
	if pairs == nil {
		pairs = RelPairsFor(expected)
	}
	out, notes := DeriveMaxRelativeError(out, pairs, opts.Floor)
	notes = append(notes, flagNotes...)

	frame, missing := Align(out, expected)
	return frame, missing, notes
}
