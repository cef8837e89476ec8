package survey

import (
	"github.com/kartoza/exo-inference/internal/features"
	"github.com/kartoza/exo-inference/internal/table"
)

// ArchiveResult is an official archive export aligned to a model.
type ArchiveResult struct {
	Source *table.RawTable
	Frame  *features.FeatureFrame
	// Missing lists expected features that could not be found or rebuilt.
	Missing []string
	Notes   []features.DerivationNote
	// LabelColumn is the raw name of the ground-truth column, if any.
	LabelColumn string
	Truth       []string
	HasTruth    bool
}

// LabelAliases returns the ground-truth column names tried for this survey:
// its own label column first, then every known archive label.
func (s *ModelSpec) LabelAliases() []string {
	return append([]string{s.LabelColumn}, features.DefaultLabelAliases...)
}

// PreprocessArchive aligns an unedited archive export. Unlike Preprocess it
// never fails on a missing header, resolves column aliases, and rebuilds
// absent relative-error features from their bounds. labelCol names the
// ground-truth column; empty tries LabelAliases.
func (s *ModelSpec) PreprocessArchive(content []byte, labelCol string) (*ArchiveResult, error) {
	raw, err := s.DetectHeader(content, false)
	if err != nil {
		return nil, &StageError{Stage: StageHeaderLocated, Err: err}
	}
	t := raw.Normalize().DropEmpty()
	res := &ArchiveResult{Source: t}

	if label, ok := features.ResolveLabelColumn(t, labelCol, s.LabelAliases()); ok {
		res.LabelColumn = label
		res.Truth, _ = t.Column(label)
		res.HasTruth = true
		t = t.Drop(label)
	}

	// K2 dummies and missingness indicators are named after canonical
	// columns, so aliases are resolved before the expansion.
	if s.Kind == K2 {
		t, _ = features.RenameColumns(t, s.Resolver())
		t = features.OneHot(t, normalized(s.OneHotColumns))
		t = features.AddMissingIndicators(t)
	}

	res.Frame, res.Missing, res.Notes = features.AlignToSchema(t, s.ExpectedFeatures, features.SchemaOptions{
		Resolver: s.Resolver(),
		Flags:    s.FlagColumns,
		Floor:    s.Floor,
	})
	return res, nil
}
