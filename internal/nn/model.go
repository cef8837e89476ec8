// Package nn holds the classifiers served by the inference pipeline.
package nn

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
)

// ErrNonFinite is returned when an input row holds NaN or an infinity.
var ErrNonFinite = errors.New("input contains NaN or infinity")

// ErrShape is returned when input width does not match the network.
var ErrShape = errors.New("input shape mismatch")

// Classifier predicts a class index per input row.
type Classifier interface {
	Predict(x [][]float64) ([]int, error)
}

// ProbabilisticClassifier also reports per-class probabilities.
type ProbabilisticClassifier interface {
	Classifier
	PredictProba(x [][]float64) ([][]float64, error)
}

// Activations understood by a layer.
const (
	ActivationReLU    = "relu"
	ActivationLinear  = "linear"
	ActivationSoftmax = "softmax"
	ActivationSigmoid = "sigmoid"
)

// Layer is the serialized form of one dense layer. Weights are laid out
// input-major: Weights[i][j] connects input i to unit j.
type Layer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation,omitempty"`
}

// Network is a feed-forward classifier with dense layers. Hidden layers
// default to ReLU; the output layer to softmax, or sigmoid when it has a
// single unit. A Network is immutable and safe for concurrent use.
type Network struct {
	weights     []*mat.Dense
	biases      [][]float64
	activations []string
}

// NewNetwork validates layer shapes and builds a network.
func NewNetwork(layers []Layer) (*Network, error) {
	if len(layers) == 0 {
		return nil, errors.New("network has no layers")
	}
	n := &Network{}
	prev := -1
	for i, l := range layers {
		rows := len(l.Weights)
		if rows == 0 || len(l.Weights[0]) == 0 {
			return nil, fmt.Errorf("layer %d: empty weights", i)
		}
		cols := len(l.Weights[0])
		if prev >= 0 && rows != prev {
			return nil, fmt.Errorf("layer %d: %d inputs, previous layer has %d units", i, rows, prev)
		}
		if len(l.Bias) != cols {
			return nil, fmt.Errorf("layer %d: bias length %d, want %d", i, len(l.Bias), cols)
		}
		data := make([]float64, 0, rows*cols)
		for r, w := range l.Weights {
			if len(w) != cols {
				return nil, fmt.Errorf("layer %d: ragged weight row %d", i, r)
			}
			data = append(data, w...)
		}

		act := l.Activation
		if act == "" {
			act = defaultActivation(i == len(layers)-1, cols)
		}
		switch act {
		case ActivationReLU, ActivationLinear, ActivationSoftmax, ActivationSigmoid:
		default:
			return nil, fmt.Errorf("layer %d: unknown activation %q", i, act)
		}

		n.weights = append(n.weights, mat.NewDense(rows, cols, data))
		n.biases = append(n.biases, append([]float64(nil), l.Bias...))
		n.activations = append(n.activations, act)
		prev = cols
	}
	return n, nil
}

func defaultActivation(last bool, units int) string {
	switch {
	case !last:
		return ActivationReLU
	case units == 1:
		return ActivationSigmoid
	default:
		return ActivationSoftmax
	}
}

type networkFile struct {
	Layers []Layer `json:"layers"`
}

// ParseNetwork decodes a network from its JSON form.
func ParseNetwork(data []byte) (*Network, error) {
	var f networkFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode network: %w", err)
	}
	return NewNetwork(f.Layers)
}

// LoadNetwork reads a network from a JSON file.
func LoadNetwork(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	n, err := ParseNetwork(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// InputDim returns the expected input width.
func (n *Network) InputDim() int {
	r, _ := n.weights[0].Dims()
	return r
}

// Classes returns the number of classes the network distinguishes.
func (n *Network) Classes() int {
	_, c := n.weights[len(n.weights)-1].Dims()
	if c == 1 {
		return 2
	}
	return c
}

// PredictProba returns one probability row per input row.
func (n *Network) PredictProba(x [][]float64) ([][]float64, error) {
	if len(x) == 0 {
		return [][]float64{}, nil
	}
	out, err := n.forward(x)
	if err != nil {
		return nil, err
	}
	rows, cols := out.Dims()
	proba := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		if cols == 1 {
			p := out.At(i, 0)
			proba[i] = []float64{1 - p, p}
			continue
		}
		proba[i] = mat.Row(nil, i, out)
	}
	return proba, nil
}

// Predict returns the most probable class per row.
func (n *Network) Predict(x [][]float64) ([]int, error) {
	proba, err := n.PredictProba(x)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(proba))
	for i, p := range proba {
		labels[i] = argmax(p)
	}
	return labels, nil
}

func (n *Network) forward(x [][]float64) (*mat.Dense, error) {
	width := n.InputDim()
	data := make([]float64, 0, len(x)*width)
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrShape, i, len(row), width)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, ErrNonFinite
			}
		}
		data = append(data, row...)
	}

	h := mat.NewDense(len(x), width, data)
	for l, w := range n.weights {
		var next mat.Dense
		next.Mul(h, w)
		bias := n.biases[l]
		act := n.activations[l]
		next.Apply(func(_, j int, v float64) float64 {
			v += bias[j]
			switch act {
			case ActivationReLU:
				return relu(v)
			case ActivationSigmoid:
				return sigmoid(v)
			}
			return v
		}, &next)
		if act == ActivationSoftmax {
			softmaxRows(&next)
		}
		h = &next
	}
	return h, nil
}

func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

func sigmoid(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }

func softmaxRows(m *mat.Dense) {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		peak := math.Inf(-1)
		for j := 0; j < cols; j++ {
			peak = math.Max(peak, m.At(i, j))
		}
		sum := 0.0
		for j := 0; j < cols; j++ {
			e := math.Exp(m.At(i, j) - peak)
			m.Set(i, j, e)
			sum += e
		}
		for j := 0; j < cols; j++ {
			m.Set(i, j, m.At(i, j)/sum)
		}
	}
}

func argmax(p []float64) int {
	best := 0
	for i, v := range p {
		if v > p[best] {
			best = i
		}
	}
	return best
}
