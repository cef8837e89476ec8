package features

import (
	"strings"

	"github.com/kartoza/exo-inference/internal/table"
)

// Error companion suffixes used by the archive exports.
const (
	SuffixErrUpper = "_err1"
	SuffixErrLower = "_err2"
)

// Resolver maps incoming column names to the canonical feature names a model
// was trained on.
type Resolver struct {
	// Aliases are survey-specific synonyms, e.g. teff -> koi_steff.
	Aliases map[string]string
	// Prefix is the survey's reserved column prefix, e.g. "koi_". Empty
	// disables the prefix rules.
	Prefix string
	// Expected is the model's training feature list, may be nil.
	Expected []string
}

// Resolve returns the canonical name for a column. Rules, first match wins:
// a static alias; a name already carrying the prefix; the prefixed name when
// the model expects it; an error companion whose base resolves. Otherwise
// the column is unresolved.
func (r Resolver) Resolve(name string) (string, bool) {
	n := table.NormalizeName(name)
	if n == "" {
		return "", false
	}
	if to, ok := r.alias(n); ok {
		return to, true
	}
	if r.Prefix != "" && strings.HasPrefix(n, table.NormalizeName(r.Prefix)) {
		return n, true
	}
	if guess := table.NormalizeName(r.Prefix) + n; r.expects(guess) {
		return guess, true
	}
	for _, suffix := range []string{SuffixErrUpper, SuffixErrLower} {
		if base, ok := strings.CutSuffix(n, suffix); ok && base != "" {
			if to, ok := r.Resolve(base); ok {
				return to + suffix, true
			}
		}
	}
	return "", false
}

func (r Resolver) alias(n string) (string, bool) {
	if to, ok := r.Aliases[n]; ok {
		return table.NormalizeName(to), true
	}
	for from, to := range r.Aliases {
		if table.NormalizeName(from) == n {
			return table.NormalizeName(to), true
		}
	}
	return "", false
}

func (r Resolver) expects(name string) bool {
	for _, e := range r.Expected {
		if table.NormalizeName(e) == name {
			return true
		}
	}
	return false
}

// RenameColumns applies the resolver to every column of a normalized table.
// A rename is skipped when its target is already taken, so a canonical
// column present in the file always wins over a synonym. The applied renames
// are returned keyed by the original name.
func RenameColumns(t *table.RawTable, r Resolver) (*table.RawTable, map[string]string) {
	taken := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		taken[c] = true
	}
	renames := make(map[string]string)
	for _, c := range t.Columns {
		to, ok := r.Resolve(c)
		if !ok || to == c || taken[to] {
			continue
		}
		renames[c] = to
		taken[to] = true
		delete(taken, c)
	}
	return t.Rename(renames), renames
}

// KOIAliases maps common NASA Exoplanet Archive cumulative KOI header
// variants to the KOI model's feature names.
var KOIAliases = map[string]string{
	"kepmag":    "koi_kepmag",
	"teff":      "koi_steff",
	"logg":      "koi_slogg",
	"srad":      "koi_srad",
	"period":    "koi_period",
	"t0":        "koi_time0bk",
	"time0":     "koi_time0bk",
	"impact":    "koi_impact",
	"duration":  "koi_duration",
	"depth":     "koi_depth",
	"prad":      "koi_prad",
	"teq":       "koi_teq",
	"insol":     "koi_insol",
	"model_snr": "koi_model_snr",
	"ra_deg":    "ra",
	"dec_deg":   "dec",
	"ra":        "ra",
	"dec":       "dec",
}

// K2Aliases maps K2 planets-and-candidates header variants.
var K2Aliases = map[string]string{
	"period":       "pl_orbper",
	"orbper":       "pl_orbper",
	"radius":       "pl_rade",
	"prad":         "pl_rade",
	"teff":         "st_teff",
	"logg":         "st_logg",
	"srad":         "st_rad",
	"smass":        "st_mass",
	"teq":          "pl_eqt",
	"insol":        "pl_insol",
	"duration":     "pl_trandur",
	"depth":        "pl_trandep",
	"kepmag":       "sy_kepmag",
	"k2_disp":      "disposition",
	"discovery":    "discoverymethod",
	"disc_method":  "discoverymethod",
	"facility":     "disc_facility",
	"solution":     "soltype",
	"solutiontype": "soltype",
}

// TESSAliases maps TESS Objects of Interest header variants.
var TESSAliases = map[string]string{
	"period":           "pl_orbper",
	"toi_period":       "pl_orbper",
	"depth":            "pl_trandep",
	"toi_depth":        "pl_trandep",
	"duration":         "pl_trandurh",
	"toi_duration":     "pl_trandurh",
	"prad":             "pl_rade",
	"teq":              "pl_eqt",
	"insol":            "pl_insol",
	"teff":             "st_teff",
	"logg":             "st_logg",
	"srad":             "st_rad",
	"tmag":             "st_tmag",
}
