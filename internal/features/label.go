package features

import "github.com/kartoza/exo-inference/internal/table"

// DefaultLabelAliases are the ground-truth column names of the supported
// archive exports, in lookup order.
var DefaultLabelAliases = []string{
	"koi_pdisposition",
	"tfopwg_disposition",
	"tfopwg_disp",
	"disposition",
}

// ResolveLabelColumn finds the ground-truth column of a raw table. An explicit
// name is tried first, then each alias in order. The raw column label is
// returned as it appears in the file.
func ResolveLabelColumn(t *table.RawTable, explicit string, aliases []string) (string, bool) {
	if aliases == nil {
		aliases = DefaultLabelAliases
	}
	byNorm := make(map[string]string, len(t.Columns))
	for _, c := range t.Columns {
		n := table.NormalizeName(c)
		if _, seen := byNorm[n]; !seen {
			byNorm[n] = c
		}
	}
	if explicit != "" {
		if raw, ok := byNorm[table.NormalizeName(explicit)]; ok {
			return raw, true
		}
	}
	for _, a := range aliases {
		if raw, ok := byNorm[table.NormalizeName(a)]; ok {
			return raw, true
		}
	}
	return "", false
}
