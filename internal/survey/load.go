package survey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kartoza/exo-inference/internal/nn"
)

// Artifact file names inside a model directory.
const (
	ModelFile        = "model.json"
	EncoderFile      = "label_encoder.json"
	FeatureNamesFile = "feature_names.json"
	ModelCardFile    = "model_card.json"
)

// ErrNoArtifacts is returned when a model directory has no model file.
var ErrNoArtifacts = errors.New("model artifacts not found")

// LoadArtifacts reads the classifier and its companions from the spec's
// artifact directory. Only the model file is required: without feature names
// alignment keeps numeric columns, without an encoder classes are reported
// by index.
func (s *ModelSpec) LoadArtifacts(logger *zap.Logger) error {
	modelPath := filepath.Join(s.ArtifactDir, ModelFile)
	network, err := nn.LoadNetwork(modelPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s: %w", modelPath, ErrNoArtifacts)
		}
		return fmt.Errorf("load model %s: %w", s.Slug, err)
	}
	s.Classifier = network

	encPath := filepath.Join(s.ArtifactDir, EncoderFile)
	if enc, err := nn.LoadLabelEncoder(encPath); err == nil {
		s.Encoder = enc
	} else if !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Ignoring label encoder", zap.String("path", encPath), zap.Error(err))
	}

	s.ExpectedFeatures = loadFeatureNames(filepath.Join(s.ArtifactDir, FeatureNamesFile), logger)
	if s.ExpectedFeatures != nil && len(s.ExpectedFeatures) != network.InputDim() {
		return fmt.Errorf("model %s: %d feature names for %d network inputs",
			s.Slug, len(s.ExpectedFeatures), network.InputDim())
	}

	cardPath := filepath.Join(s.ArtifactDir, ModelCardFile)
	if data, err := os.ReadFile(cardPath); err == nil {
		if json.Valid(data) {
			s.ModelCard = json.RawMessage(data)
		} else {
			logger.Warn("Ignoring malformed model card", zap.String("path", cardPath))
		}
	}

	_, s.HasProba = s.Classifier.(nn.ProbabilisticClassifier)
	s.HasEncoder = s.Encoder != nil
	return nil
}

// loadFeatureNames returns nil when the file is absent or is not a JSON
// array of strings.
func loadFeatureNames(path string, logger *zap.Logger) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		logger.Warn("Ignoring malformed feature names", zap.String("path", path), zap.Error(err))
		return nil
	}
	return names
}

// Load reads the artifacts of every spec concurrently and returns a registry
// of the models that loaded. Specs without a model file are skipped with a
// warning; any other failure aborts the load.
func Load(ctx context.Context, artifactsDir, defaultSlug string, specs []*ModelSpec, logger *zap.Logger) (*Registry, error) {
	loaded := make([]bool, len(specs))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, s := range specs {
		i, s := i, s
		if s.ArtifactDir == "" {
			s.ArtifactDir = filepath.Join(artifactsDir, s.Slug)
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			err := s.LoadArtifacts(logger)
			switch {
			case errors.Is(err, ErrNoArtifacts):
				logger.Warn("Skipping model without artifacts",
					zap.String("model", s.Slug), zap.String("dir", s.ArtifactDir))
				return nil
			case err != nil:
				return err
			}
			loaded[i] = true
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var ready []*ModelSpec
	for i, s := range specs {
		if !loaded[i] {
			continue
		}
		logger.Info("Loaded model",
			zap.String("model", s.Slug),
			zap.Strings("classes", s.Classes()),
			zap.Int("features", len(s.ExpectedFeatures)),
			zap.Bool("proba", s.HasProba))
		ready = append(ready, s)
	}
	if len(ready) == 0 {
		return nil, fmt.Errorf("no models under %s: %w", artifactsDir, ErrNoArtifacts)
	}

	def := defaultSlug
	if !containsSlug(ready, def) {
		logger.Warn("Default model not loaded, falling back",
			zap.String("requested", defaultSlug), zap.String("using", ready[0].Slug))
		def = ready[0].Slug
	}
	return NewRegistry(def, ready...)
}

func containsSlug(specs []*ModelSpec, slug string) bool {
	for _, s := range specs {
		if normalizeSlug(s.Slug) == normalizeSlug(slug) {
			return true
		}
	}
	return false
}
