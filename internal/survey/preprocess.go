package survey

import (
	"fmt"

	"github.com/kartoza/exo-inference/internal/features"
	"github.com/kartoza/exo-inference/internal/table"
)

// Stage names a step of the preprocessing pipeline.
type Stage string

const (
	StageRaw               Stage = "raw"
	StageHeaderLocated     Stage = "header_located"
	StageDelimiterResolved Stage = "delimiter_resolved"
	StageNormalized        Stage = "normalized"
	StageEmptiesRemoved    Stage = "empties_removed"
	StageColumnsDropped    Stage = "survey_columns_dropped"
	StageUncertainty       Stage = "uncertainty_derived"
	StageOneHot            Stage = "one_hot_expanded"
	StageLabelStripped     Stage = "label_stripped"
	StageNumericCoerced    Stage = "numeric_coerced"
	StageSchemaAligned     Stage = "schema_aligned"
)

// StageError reports the stage at which preprocessing failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("preprocess %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Options control Preprocess.
type Options struct {
	// Strict requires the survey's header tokens to be found.
	Strict bool
}

// Result is the outcome of preprocessing one upload.
type Result struct {
	// Source is the normalized table with empty rows and columns removed.
	// Its rows line up with Frame's rows.
	Source *table.RawTable
	Frame  *features.FeatureFrame
	// Missing lists expected features absent from the upload.
	Missing []string
	Derived []string
	// Truth holds the label column cells when the upload carries one.
	Truth    []string
	HasTruth bool
	// Stages records the pipeline steps that ran, in order.
	Stages []Stage
}

// Preprocess runs an upload through the survey's pipeline and returns the
// aligned feature frame.
func (s *ModelSpec) Preprocess(content []byte, opts Options) (*Result, error) {
	res := &Result{Stages: []Stage{StageRaw}}

	raw, err := s.DetectHeader(content, opts.Strict)
	if err != nil {
		return nil, &StageError{Stage: StageHeaderLocated, Err: err}
	}
	res.Stages = append(res.Stages, StageHeaderLocated, StageDelimiterResolved)

	t := raw.Normalize()
	res.Stages = append(res.Stages, StageNormalized)

	t = t.DropEmpty()
	res.Source = t
	res.Stages = append(res.Stages, StageEmptiesRemoved)

	t = s.DropIgnored(t)
	res.Stages = append(res.Stages, StageColumnsDropped)

	t, res.Derived = s.DeriveFeatures(t)
	res.Stages = append(res.Stages, StageUncertainty)
	if s.Kind == K2 {
		res.Stages = append(res.Stages, StageOneHot)
	}

	t, res.Truth, res.HasTruth = s.StripLabel(t)
	res.Stages = append(res.Stages, StageLabelStripped)

	res.Frame, res.Missing = s.Align(t)
	res.Stages = append(res.Stages, StageNumericCoerced, StageSchemaAligned)

	if res.Frame.Rows() != res.Source.Len() {
		return nil, &StageError{
			Stage: StageSchemaAligned,
			Err:   fmt.Errorf("aligned %d rows from %d source rows", res.Frame.Rows(), res.Source.Len()),
		}
	}
	return res, nil
}
