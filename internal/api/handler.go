package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kartoza/exo-inference/internal/config"
	"github.com/kartoza/exo-inference/internal/history"
	"github.com/kartoza/exo-inference/internal/inference"
	"github.com/kartoza/exo-inference/internal/models"
	"github.com/kartoza/exo-inference/internal/survey"
	"github.com/kartoza/exo-inference/internal/table"
)

// uploadField is the multipart field carrying the CSV file.
const uploadField = "file"

var (
	errNotCSV      = errors.New("please upload a .csv file")
	errMissingFile = fmt.Errorf("multipart field %q is required", uploadField)
	errTooLarge    = errors.New("upload exceeds the size limit")
	errBadQuery    = errors.New("invalid query parameter")
)

// Handler provides HTTP API endpoints
type Handler struct {
	registry *survey.Registry
	runner   *inference.Runner
	history  *history.Store
	cfg      config.Config
	logger   *zap.Logger
}

// NewHandler creates a new API handler. The history store may be nil, in
// which case runs are not recorded.
func NewHandler(
	registry *survey.Registry,
	runner *inference.Runner,
	store *history.Store,
	cfg config.Config,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		registry: registry,
		runner:   runner,
		history:  store,
		cfg:      cfg,
		logger:   logger.Named("api"),
	}
}

// RegisterRoutes sets up all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Health and info
	r.HandleFunc("/health", h.handleHealth).Methods("GET")
	r.HandleFunc("/info", h.handleInfo).Methods("GET")
	r.HandleFunc("/models", h.handleModels).Methods("GET")
	r.HandleFunc("/model_card", h.handleModelCard).Methods("GET")

	// Survey uploads
	r.HandleFunc("/peek", h.handlePeek).Methods("POST")
	r.HandleFunc("/predict", h.handlePredict).Methods("POST")
	r.HandleFunc("/predict_csv", h.handlePredictCSV).Methods("POST")
	r.HandleFunc("/evaluate", h.handleEvaluate).Methods("POST")

	// Official archive exports
	r.HandleFunc("/predict_official", h.handlePredictOfficial).Methods("POST")
	r.HandleFunc("/evaluate_csv", h.handleEvaluateCSV).Methods("POST")

	// Run history
	r.HandleFunc("/runs", h.handleListRuns).Methods("GET")
	r.HandleFunc("/runs/{id}", h.handleGetRun).Methods("GET")
}

// respondJSON sends a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("Error encoding response", zap.Error(err))
	}
}

// respondError maps err to a status code and sends it as a JSON error
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("kind", kind), zap.Error(err))
	} else {
		h.logger.Debug("Request rejected", zap.String("kind", kind), zap.Error(err))
	}
	h.respondJSON(w, status, models.ErrorResponse{Error: err.Error(), Kind: kind})
}

// statusFor is the single place errors become HTTP status codes.
func statusFor(err error) (int, string) {
	var stageErr *survey.StageError
	switch {
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, errNotCSV), errors.Is(err, errMissingFile), errors.Is(err, errBadQuery):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, table.ErrEmptyInput):
		return http.StatusBadRequest, "empty_input"
	case errors.Is(err, table.ErrHeaderNotFound):
		return http.StatusBadRequest, "header_not_found"
	case errors.Is(err, survey.ErrUnknownModel):
		return http.StatusBadRequest, "unknown_model"
	case errors.Is(err, inference.ErrLabelColumnMissing):
		return http.StatusBadRequest, "label_column_missing"
	case errors.Is(err, inference.ErrSchemaMismatch):
		return http.StatusInternalServerError, "schema_mismatch"
	case errors.Is(err, inference.ErrClassifierFailure):
		return http.StatusInternalServerError, "classifier_failure"
	case errors.As(err, &stageErr):
		return http.StatusBadRequest, "preprocess"
	case errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound, "not_found"
	}
	return http.StatusInternalServerError, "internal"
}

// spec resolves the ?model= query parameter
func (h *Handler) spec(r *http.Request) (*survey.ModelSpec, error) {
	return h.registry.Lookup(r.URL.Query().Get("model"))
}

// readUpload returns the bytes of the uploaded .csv file
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if h.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	}
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w (%d bytes)", errTooLarge, tooLarge.Limit)
		}
		return nil, fmt.Errorf("%w: %v", errMissingFile, err)
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
		return nil, errNotCSV
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, table.ErrEmptyInput
	}
	return data, nil
}

// intQuery parses an optional positive integer query parameter
func intQuery(r *http.Request, name string, fallback int) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", errBadQuery, name, v)
	}
	return max(1, n), nil
}

// record stores a run in the history, returning its ID. Failures are logged
// and never fail the request.
func (h *Handler) record(ctx context.Context, run history.Run) string {
	if h.history == nil {
		return ""
	}
	saved, err := h.history.Record(ctx, run)
	if err != nil {
		h.logger.Warn("Could not record run", zap.String("endpoint", run.Endpoint), zap.Error(err))
		return ""
	}
	return saved.ID
}

// handleHealth returns the readiness of a model
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	spec, err := h.spec(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, models.HealthResponse{
		Status:          "ok",
		Model:           spec.Slug,
		ClassNames:      spec.Classes(),
		HasFeatureNames: spec.ExpectedFeatures != nil,
		HasModelCard:    len(spec.ModelCard) > 0,
		HasProba:        spec.HasProba,
	})
}

// handleInfo returns server information
func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, models.InfoResponse{
		Version:      h.cfg.Version,
		DefaultModel: h.registry.Default(),
		Models:       h.registry.Slugs(),
		History:      h.history != nil,
	})
}

// handleModels lists the loaded models
func (h *Handler) handleModels(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, models.ModelsResponse{
		Available: h.registry.Slugs(),
		Default:   h.registry.Default(),
	})
}

// handleModelCard serves the model card stored next to the artifacts
func (h *Handler) handleModelCard(w http.ResponseWriter, r *http.Request) {
	spec, err := h.spec(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if len(spec.ModelCard) == 0 {
		h.respondJSON(w, http.StatusNotFound, models.ErrorResponse{
			Error: fmt.Sprintf("model_card.json not found for %s", spec.Slug),
			Kind:  "not_found",
		})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(spec.ModelCard)
}

// handleListRuns returns recent runs, newest first
func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.respondJSON(w, http.StatusOK, []*history.Run{})
		return
	}
	limit, err := intQuery(r, "limit", 50)
	if err != nil {
		h.respondError(w, err)
		return
	}
	runs, err := h.history.List(r.Context(), limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, runs)
}

// handleGetRun returns one recorded run
func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.respondError(w, history.ErrNotFound)
		return
	}
	run, err := h.history.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, run)
}
