// Package inference runs survey classifiers over aligned feature frames and
// scores their output against ground truth.
package inference

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kartoza/exo-inference/internal/features"
	"github.com/kartoza/exo-inference/internal/metrics"
	"github.com/kartoza/exo-inference/internal/nn"
	"github.com/kartoza/exo-inference/internal/survey"
)

var (
	// ErrLabelColumnMissing is returned when evaluation finds no usable
	// ground truth.
	ErrLabelColumnMissing = errors.New("label column missing")
	// ErrSchemaMismatch is returned when the classifier output does not line
	// up with the input rows.
	ErrSchemaMismatch = errors.New("prediction count does not match row count")
	// ErrClassifierFailure wraps errors raised by the classifier itself.
	ErrClassifierFailure = errors.New("classifier failure")
)

// Prediction is the classifier output for one frame.
type Prediction struct {
	Indices []int
	Labels  []string
	// Scores holds the winning class probability per row, or 1 when the
	// model has no probabilities.
	Scores  []float64
	Counts  map[string]int
	Retried bool
}

// Evaluation is a prediction scored against ground truth.
type Evaluation struct {
	metrics.Summary
	Prediction *Prediction
	Classes    []string
	// Counts holds predicted labels over the evaluated rows only.
	Counts map[string]int
	// Skipped counts rows whose ground truth is not a known class.
	Skipped int
}

// Runner runs predictions for any registered survey.
type Runner struct {
	logger *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{logger: logger.Named("inference")}
}

// Predict classifies every row of the frame. A classifier error that
// mentions NaN or infinity is retried once with every non-finite cell set
// to 0; any other error is returned as is.
func (r *Runner) Predict(spec *survey.ModelSpec, frame *features.FeatureFrame) (*Prediction, error) {
	if spec.Classifier == nil {
		return nil, fmt.Errorf("%w: model %s has no classifier", ErrClassifierFailure, spec.Slug)
	}

	input := frame
	idx, err := spec.Classifier.Predict(input.Values)
	retried := false
	if err != nil && nonFiniteFailure(err) {
		r.logger.Info("Retrying prediction with non-finite values zeroed",
			zap.String("model", spec.Slug), zap.Error(err))
		input = frame.FillNonFinite(0)
		idx, err = spec.Classifier.Predict(input.Values)
		retried = true
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrClassifierFailure, err)
	}
	if len(idx) != frame.Rows() {
		return nil, fmt.Errorf("%w: %d predictions for %d rows", ErrSchemaMismatch, len(idx), frame.Rows())
	}

	p := &Prediction{
		Indices: idx,
		Labels:  make([]string, len(idx)),
		Scores:  r.scores(spec, input, len(idx)),
		Counts:  make(map[string]int),
		Retried: retried,
	}
	for i, k := range idx {
		name := spec.ClassName(k)
		p.Labels[i] = name
		p.Counts[name]++
	}
	return p, nil
}

func (r *Runner) scores(spec *survey.ModelSpec, frame *features.FeatureFrame, n int) []float64 {
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1
	}
	pc, ok := spec.Classifier.(nn.ProbabilisticClassifier)
	if !spec.HasProba || !ok {
		return scores
	}
	proba, err := pc.PredictProba(frame.Values)
	if err != nil || len(proba) != n {
		r.logger.Warn("Probabilities unavailable", zap.String("model", spec.Slug), zap.Error(err))
		return scores
	}
	for i, row := range proba {
		best := 0.0
		for _, v := range row {
			if v > best {
				best = v
			}
		}
		scores[i] = best
	}
	return scores
}

func nonFiniteFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "nan") || strings.Contains(msg, "inf")
}

// Evaluate predicts the frame and scores it against truth, one label per
// row. Rows whose label is not a known class are left out of the metrics.
func (r *Runner) Evaluate(spec *survey.ModelSpec, frame *features.FeatureFrame, truth []string) (*Evaluation, error) {
	if len(truth) != frame.Rows() {
		return nil, fmt.Errorf("%w: %d labels for %d rows", ErrSchemaMismatch, len(truth), frame.Rows())
	}
	pred, err := r.Predict(spec, frame)
	if err != nil {
		return nil, err
	}

	limit := classLimit(spec)
	var y, yHat []int
	counts := make(map[string]int)
	for i, label := range truth {
		k, ok := classIndex(spec, label, limit)
		if !ok {
			continue
		}
		y = append(y, k)
		yHat = append(yHat, pred.Indices[i])
		counts[pred.Labels[i]]++
	}
	if len(y) == 0 {
		return nil, fmt.Errorf("%w: no rows with a recognizable label", ErrLabelColumnMissing)
	}

	classes := spec.Classes()
	if classes == nil {
		classes, y, yHat = observedClasses(y, yHat)
	}
	return &Evaluation{
		Summary:    metrics.Evaluate(y, yHat, classes),
		Prediction: pred,
		Classes:    classes,
		Counts:     counts,
		Skipped:    len(truth) - len(y),
	}, nil
}

// classLimit is the number of classes the classifier can emit, or 0 when
// it does not say.
func classLimit(spec *survey.ModelSpec) int {
	if c, ok := spec.Classifier.(interface{ Classes() int }); ok {
		return c.Classes()
	}
	return 0
}

func classIndex(spec *survey.ModelSpec, label string, limit int) (int, bool) {
	if spec.Encoder != nil {
		return spec.Encoder.Encode(label)
	}
	k, err := strconv.Atoi(strings.TrimSpace(label))
	if err != nil || k < 0 || (limit > 0 && k >= limit) {
		return 0, false
	}
	return k, true
}

// observedClasses names the class indices that occur in either column, in
// ascending order, and renumbers both columns into that list.
func observedClasses(y, yHat []int) ([]string, []int, []int) {
	seen := make(map[int]bool)
	for _, v := range y {
		seen[v] = true
	}
	for _, v := range yHat {
		seen[v] = true
	}
	keys := make([]int, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	pos := make(map[int]int, len(keys))
	names := make([]string, len(keys))
	for i, k := range keys {
		pos[k] = i
		names[i] = strconv.Itoa(k)
	}
	remap := func(in []int) []int {
		out := make([]int, len(in))
		for i, v := range in {
			out[i] = pos[v]
		}
		return out
	}
	return names, remap(y), remap(yHat)
}
