package survey

import "github.com/kartoza/exo-inference/internal/features"

// Slugs of the built-in surveys.
const (
	SlugKOI  = "koi"
	SlugK2   = "k2"
	SlugTESS = "tess"
)

// Defaults returns fresh specs for the built-in surveys, without artifacts.
func Defaults() []*ModelSpec {
	return []*ModelSpec{koiSpec(), k2Spec(), tessSpec()}
}

func koiSpec() *ModelSpec {
	return &ModelSpec{
		Slug:         SlugKOI,
		Kind:         KOI,
		LabelColumn:  "koi_pdisposition",
		HeaderTokens: []string{"koi_period", "koi_depth", "koi_duration", "koi_pdisposition"},
		DropColumns: []string{
			"kepid", "kepoi_name", "kepler_name",
			"koi_disposition", "koi_score",
			"koi_fpflag_nt", "koi_fpflag_ss", "koi_fpflag_co", "koi_fpflag_ec",
			"koi_tce_plnt_num", "koi_tce_delivname",
		},
		Floor:   features.DefaultFloor,
		Prefix:  "koi_",
		Aliases: features.KOIAliases,
		FlagColumns: []string{
			"koi_fpflag_nt", "koi_fpflag_ss", "koi_fpflag_co", "koi_fpflag_ec",
		},
	}
}

func k2Spec() *ModelSpec {
	return &ModelSpec{
		Slug:         SlugK2,
		Kind:         K2,
		LabelColumn:  "disposition",
		HeaderTokens: []string{"pl_orbper", "pl_rade", "st_teff", "disposition"},
		DropColumns: []string{
			"pl_name", "hostname", "disp_refname", "pl_refname", "st_refname", "sy_refname",
			"rastr", "ra", "decstr", "dec",
			"rowupdate", "pl_pubdate", "releasedate",
			"default_flag", "pl_controv_flag",
		},
		DropSuffix:    "lim",
		OneHotColumns: []string{"discoverymethod", "disc_facility", "soltype"},
		Floor:         features.DefaultFloor,
		Aliases:       features.K2Aliases,
	}
}

func tessSpec() *ModelSpec {
	return &ModelSpec{
		Slug:         SlugTESS,
		Kind:         TESS,
		LabelColumn:  "tfopwg_disp",
		HeaderTokens: []string{"tfopwg_disp", "toi_period", "toi_depth"},
		DropColumns:  []string{"toi", "tid", "rastr", "decstr", "toi_created", "rowupdate"},
		DropSuffix:   "lim",
		Floor:        features.DefaultFloor,
		Aliases:      features.TESSAliases,
	}
}

// Override adjusts a built-in spec from configuration. Zero fields keep the
// default.
type Override struct {
	Dir            string
	LabelColumn    string
	HeaderTokens   []string
	DropColumns    []string
	Floor          float64
	KeepAsymmetric *bool
}

// Apply merges an override into the spec.
func (s *ModelSpec) Apply(o Override) {
	if o.Dir != "" {
		s.ArtifactDir = o.Dir
	}
	if o.LabelColumn != "" {
		s.LabelColumn = o.LabelColumn
	}
	if len(o.HeaderTokens) > 0 {
		s.HeaderTokens = append([]string(nil), o.HeaderTokens...)
	}
	if len(o.DropColumns) > 0 {
		s.DropColumns = append([]string(nil), o.DropColumns...)
	}
	if o.Floor > 0 {
		s.Floor = o.Floor
	}
	if o.KeepAsymmetric != nil {
		s.KeepAsymmetric = *o.KeepAsymmetric
	}
}
