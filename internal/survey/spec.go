// Package survey describes the supported exoplanet surveys: how each survey's
// archive export is cleaned, which classifier serves it and how the models
// are looked up at request time.
package survey

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kartoza/exo-inference/internal/features"
	"github.com/kartoza/exo-inference/internal/nn"
	"github.com/kartoza/exo-inference/internal/table"
)

// Kind identifies a survey and selects its preprocessing behaviour.
type Kind int

const (
	KOI Kind = iota
	K2
	TESS
)

func (k Kind) String() string {
	switch k {
	case KOI:
		return "koi"
	case K2:
		return "k2"
	case TESS:
		return "tess"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a slug such as "koi" to its Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "koi", "kepler":
		return KOI, nil
	case "k2":
		return K2, nil
	case "tess", "toi":
		return TESS, nil
	}
	return 0, fmt.Errorf("unknown survey kind %q", s)
}

// ModelSpec is everything needed to turn one survey's export into
// predictions. Specs are built once at startup and never modified after.
type ModelSpec struct {
	Slug string
	Kind Kind

	LabelColumn    string
	HeaderTokens   []string
	DropColumns    []string
	DropSuffix     string
	OneHotColumns  []string
	KeepAsymmetric bool
	Floor          float64

	// Vocabulary for alias resolution of official archive files.
	Prefix      string
	Aliases     map[string]string
	FlagColumns []string

	// Loaded artifacts.
	ArtifactDir      string
	ExpectedFeatures []string
	Classifier       nn.Classifier
	Encoder          *nn.LabelEncoder
	ModelCard        json.RawMessage
	HasProba         bool
	HasEncoder       bool
}

// Classes returns the class names in index order, or nil without an encoder.
func (s *ModelSpec) Classes() []string {
	if s.Encoder == nil {
		return nil
	}
	return s.Encoder.Classes
}

// ClassName returns the display name of a class index.
func (s *ModelSpec) ClassName(i int) string {
	if s.Encoder != nil {
		if name, err := s.Encoder.Decode(i); err == nil {
			return name
		}
	}
	return fmt.Sprintf("%d", i)
}

// Resolver returns the alias resolver for this survey's vocabulary.
func (s *ModelSpec) Resolver() features.Resolver {
	return features.Resolver{
		Aliases:  s.Aliases,
		Prefix:   s.Prefix,
		Expected: s.ExpectedFeatures,
	}
}

// DetectHeader parses an upload with this survey's header tokens.
func (s *ModelSpec) DetectHeader(content []byte, strict bool) (*table.RawTable, error) {
	return table.ReadTolerant(content, table.ReadOptions{
		HeaderTokens: s.HeaderTokens,
		Strict:       strict,
	})
}

// DropIgnored removes identifier and bookkeeping columns that carry no
// signal, plus limit-flag columns for surveys with a drop suffix.
func (s *ModelSpec) DropIgnored(t *table.RawTable) *table.RawTable {
	drop := make(map[string]bool, len(s.DropColumns))
	for _, c := range s.DropColumns {
		drop[table.NormalizeName(c)] = true
	}
	suffix := table.NormalizeName(s.DropSuffix)
	return t.Keep(func(col string) bool {
		if drop[table.NormalizeName(col)] {
			return false
		}
		return suffix == "" || !strings.HasSuffix(col, suffix)
	})
}

// DeriveFeatures adds relative-error features and, for K2, expands the
// categorical columns.
func (s *ModelSpec) DeriveFeatures(t *table.RawTable) (*table.RawTable, []string) {
	out, derived := features.DeriveUncertainty(t, s.KeepAsymmetric, s.Floor)
	switch s.Kind {
	case K2:
		out = features.OneHot(out, normalized(s.OneHotColumns))
	}
	return out, derived
}

// StripLabel removes the ground-truth column and returns its cells when
// present.
func (s *ModelSpec) StripLabel(t *table.RawTable) (*table.RawTable, []string, bool) {
	label := table.NormalizeName(s.LabelColumn)
	truth, ok := t.Column(label)
	if !ok {
		return t, nil, false
	}
	return t.Drop(label), truth, true
}

// Align coerces a cleaned table to the model's feature order. K2 models were
// trained with missingness indicators, which are added first.
func (s *ModelSpec) Align(t *table.RawTable) (*features.FeatureFrame, []string) {
	switch s.Kind {
	case K2:
		t = features.AddMissingIndicators(t)
	}
	return features.Align(t, s.ExpectedFeatures)
}

func normalized(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = table.NormalizeName(n)
	}
	return out
}
