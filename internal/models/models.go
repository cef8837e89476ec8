package models

import "github.com/kartoza/exo-inference/internal/metrics"

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// HealthResponse reports the readiness of one model
type HealthResponse struct {
	Status          string   `json:"status"`
	Model           string   `json:"model"`
	ClassNames      []string `json:"class_names"`
	HasFeatureNames bool     `json:"has_feature_names"`
	HasModelCard    bool     `json:"has_model_card"`
	HasProba        bool     `json:"has_proba"`
}

// InfoResponse describes the running service
type InfoResponse struct {
	Version      string   `json:"version"`
	DefaultModel string   `json:"default_model"`
	Models       []string `json:"models"`
	History      bool     `json:"history_enabled"`
}

// ModelsResponse lists the loaded models
type ModelsResponse struct {
	Available []string `json:"available"`
	Default   string   `json:"default"`
}

// PeekResponse shows how an upload was parsed
type PeekResponse struct {
	Columns   []string            `json:"columns"`
	Sample    []map[string]string `json:"sample"`
	HeaderRow int                 `json:"header_row"`
	Delimiter string              `json:"delimiter"`
	Rows      int                 `json:"n_rows"`
}

// PredictResponse contains the labels predicted for a survey upload
type PredictResponse struct {
	RunID           string         `json:"run_id,omitempty"`
	Model           string         `json:"model"`
	Rows            int            `json:"n_rows"`
	PredLabels      []string       `json:"pred_labels"`
	ClassNames      []string       `json:"class_names"`
	CountsByClass   map[string]int `json:"counts_by_class"`
	MissingFeatures []string       `json:"missing_features"`
	DerivedFeatures []string       `json:"derived_features"`
}

// PredictCSVResponse carries the annotated upload as a data URL
type PredictCSVResponse struct {
	RunID      string `json:"run_id,omitempty"`
	Model      string `json:"model"`
	CSVDataURL string `json:"csv_data_url"`
}

// ConfusionMatrix pairs the matrix with its row and column labels
type ConfusionMatrix struct {
	Labels []string `json:"labels"`
	Matrix [][]int  `json:"matrix"`
}

// EvaluateResponse scores a labelled survey upload
type EvaluateResponse struct {
	RunID                string                         `json:"run_id,omitempty"`
	Model                string                         `json:"model"`
	EvaluatedRows        int                            `json:"evaluated_rows"`
	SkippedRows          int                            `json:"skipped_rows"`
	Accuracy             float64                        `json:"accuracy"`
	MacroF1              float64                        `json:"macro_f1"`
	BalancedAccuracy     float64                        `json:"balanced_accuracy"`
	ConfusionMatrix      ConfusionMatrix                `json:"confusion_matrix"`
	ClassificationReport map[string]metrics.ClassReport `json:"classification_report"`
	ClassNames           []string                       `json:"class_names"`
	PredictionCounts     map[string]int                 `json:"prediction_counts"`
}

// ScoredPrediction is one row of an archive prediction
type ScoredPrediction struct {
	Row   int     `json:"row"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// OfficialPredictResponse contains predictions for an unedited archive export
type OfficialPredictResponse struct {
	RunID               string             `json:"run_id,omitempty"`
	Model               string             `json:"model"`
	RowsReceived        int                `json:"rows_received"`
	RowsReturned        int                `json:"rows_returned"`
	MissingFeatureCount int                `json:"missing_feature_count"`
	MissingFeatures     []string           `json:"missing_features"`
	DerivationNotes     []string           `json:"derivation_notes"`
	Retried             bool               `json:"retried_with_zero_fill"`
	Predictions         []ScoredPrediction `json:"predictions"`
	CountsByClass       map[string]int     `json:"counts_by_class"`
}

// EvaluateCSVResponse scores an archive export against its label column
type EvaluateCSVResponse struct {
	RunID            string                         `json:"run_id,omitempty"`
	Model            string                         `json:"model"`
	Rows             int                            `json:"n_rows"`
	EvaluatedRows    int                            `json:"evaluated_rows"`
	LabelCol         string                         `json:"label_col"`
	Accuracy         float64                        `json:"accuracy"`
	F1Macro          float64                        `json:"f1_macro"`
	BalancedAccuracy float64                        `json:"balanced_accuracy"`
	Report           map[string]metrics.ClassReport `json:"report"`
	ConfusionMatrix  [][]int                        `json:"confusion_matrix"`
	ClassNames       []string                       `json:"class_names"`
	MissingFeatures  []string                       `json:"missing_features"`
	DerivationNotes  []string                       `json:"derivation_notes"`
}
