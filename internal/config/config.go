// Package config loads service settings from a YAML file and EXO_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/kartoza/exo-inference/internal/survey"
)

const (
	DefaultPort                 = 8080
	DefaultArtifactsDir         = "./artifacts"
	DefaultDBPath               = "./data/history.db"
	DefaultLogLevel             = "info"
	DefaultMaxUploadBytes int64 = 50 << 20
	DefaultPredictionLimit      = 500
	DefaultRetentionDays        = 30
	DefaultPruneSchedule        = "0 3 * * *"
)

// ModelConfig overrides the built-in settings of one survey model.
type ModelConfig struct {
	Dir            string   `yaml:"dir"`
	LabelColumn    string   `yaml:"label_column"`
	HeaderTokens   []string `yaml:"header_tokens"`
	DropColumns    []string `yaml:"drop_columns"`
	Floor          float64  `yaml:"floor"`
	KeepAsymmetric *bool    `yaml:"keep_asymmetric"`
}

// Override converts the settings to a survey override.
func (m ModelConfig) Override() survey.Override {
	return survey.Override{
		Dir:            m.Dir,
		LabelColumn:    m.LabelColumn,
		HeaderTokens:   m.HeaderTokens,
		DropColumns:    m.DropColumns,
		Floor:          m.Floor,
		KeepAsymmetric: m.KeepAsymmetric,
	}
}

// Config holds the application configuration
type Config struct {
	Port                 int                    `yaml:"port"`
	ArtifactsDir         string                 `yaml:"artifacts_dir"`
	DBPath               string                 `yaml:"db_path"`
	DefaultModel         string                 `yaml:"default_model"`
	LogLevel             string                 `yaml:"log_level"`
	LogJSON              bool                   `yaml:"log_json"`
	MaxUploadBytes       int64                  `yaml:"max_upload_bytes"`
	PredictionLimit      int                    `yaml:"prediction_limit"`
	HistoryRetentionDays int                    `yaml:"history_retention_days"`
	HistoryPruneSchedule string                 `yaml:"history_prune_schedule"`
	Models               map[string]ModelConfig `yaml:"models"`

	Version string `yaml:"-"`
	// Path is the file the settings were read from, empty if none.
	Path string `yaml:"-"`
}

// Load reads the YAML file at path (or CONFIG_PATH, or ./config.yaml when
// both are empty), applies environment overrides and defaults, and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	var cfg Config

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("error parsing %s: %w", path, err)
		}
		cfg.Path = path
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	envOverride(&c.ArtifactsDir, "EXO_ARTIFACTS_DIR")
	envOverride(&c.DBPath, "EXO_DB_PATH")
	envOverride(&c.DefaultModel, "EXO_DEFAULT_MODEL")
	envOverride(&c.LogLevel, "EXO_LOG_LEVEL")
	envOverride(&c.HistoryPruneSchedule, "EXO_HISTORY_PRUNE_SCHEDULE")
	return errors.Join(
		envOverrideInt(&c.Port, "EXO_PORT"),
		envOverrideBool(&c.LogJSON, "EXO_LOG_JSON"),
		envOverrideInt64(&c.MaxUploadBytes, "EXO_MAX_UPLOAD_BYTES"),
		envOverrideInt(&c.PredictionLimit, "EXO_PREDICTION_LIMIT"),
		envOverrideInt(&c.HistoryRetentionDays, "EXO_HISTORY_RETENTION_DAYS"),
	)
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ArtifactsDir == "" {
		c.ArtifactsDir = DefaultArtifactsDir
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.DefaultModel == "" {
		c.DefaultModel = survey.SlugKOI
	}
	c.DefaultModel = strings.ToLower(strings.TrimSpace(c.DefaultModel))
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.PredictionLimit == 0 {
		c.PredictionLimit = DefaultPredictionLimit
	}
	if c.HistoryRetentionDays == 0 {
		c.HistoryRetentionDays = DefaultRetentionDays
	}
	if c.HistoryPruneSchedule == "" {
		c.HistoryPruneSchedule = DefaultPruneSchedule
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if !knownSlug(c.DefaultModel) {
		errs = append(errs, fmt.Errorf("default_model %q is not one of %s", c.DefaultModel, strings.Join(slugs(), ", ")))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes))
	}
	if c.PredictionLimit < 0 {
		errs = append(errs, fmt.Errorf("prediction_limit must be positive, got %d", c.PredictionLimit))
	}
	if c.HistoryRetentionDays < 0 {
		errs = append(errs, fmt.Errorf("history_retention_days must be positive, got %d", c.HistoryRetentionDays))
	}
	if _, err := cron.ParseStandard(c.HistoryPruneSchedule); err != nil {
		errs = append(errs, fmt.Errorf("history_prune_schedule %q: %w", c.HistoryPruneSchedule, err))
	}
	keys := make([]string, 0, len(c.Models))
	for slug := range c.Models {
		keys = append(keys, slug)
	}
	sort.Strings(keys)
	for _, slug := range keys {
		if !knownSlug(slug) {
			errs = append(errs, fmt.Errorf("models: unknown model %q", slug))
		}
		if c.Models[slug].Floor < 0 {
			errs = append(errs, fmt.Errorf("models.%s.floor must not be negative", slug))
		}
	}
	return errors.Join(errs...)
}

// Specs returns the built-in survey specs with the configured overrides
// applied.
func (c *Config) Specs() []*survey.ModelSpec {
	specs := survey.Defaults()
	for _, s := range specs {
		for slug, m := range c.Models {
			if strings.EqualFold(strings.TrimSpace(slug), s.Slug) {
				s.Apply(m.Override())
			}
		}
	}
	return specs
}

func slugs() []string {
	out := []string{}
	for _, s := range survey.Defaults() {
		out = append(out, s.Slug)
	}
	return out
}

func knownSlug(slug string) bool {
	slug = strings.ToLower(strings.TrimSpace(slug))
	for _, s := range slugs() {
		if s == slug {
			return true
		}
	}
	return false
}

func envOverride(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envOverrideInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func envOverrideInt64(dst *int64, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func envOverrideBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
	*dst = b
	return nil
}
