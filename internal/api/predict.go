package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"

	"github.com/kartoza/exo-inference/internal/features"
	"github.com/kartoza/exo-inference/internal/history"
	"github.com/kartoza/exo-inference/internal/inference"
	"github.com/kartoza/exo-inference/internal/models"
	"github.com/kartoza/exo-inference/internal/survey"
	"github.com/kartoza/exo-inference/internal/table"
)

// maxReportedMissing caps the missing feature names returned for archive
// uploads.
const maxReportedMissing = 50

// handlePeek shows the columns and first rows of an upload as parsed
func (h *Handler) handlePeek(w http.ResponseWriter, r *http.Request) {
	content, err := h.readUpload(w, r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	nrows, err := intQuery(r, "nrows", 1)
	if err != nil {
		h.respondError(w, err)
		return
	}

	t, err := table.ReadTolerant(content, table.ReadOptions{})
	if err != nil {
		h.respondError(w, err)
		return
	}
	t = t.Normalize()

	sample := make([]map[string]string, 0, nrows)
	for i := 0; i < nrows && i < t.Len(); i++ {
		rec := make(map[string]string, len(t.Columns))
		for j, c := range t.Columns {
			rec[c] = t.Rows[i][j]
		}
		sample = append(sample, rec)
	}
	h.respondJSON(w, http.StatusOK, models.PeekResponse{
		Columns:   t.Columns,
		Sample:    sample,
		HeaderRow: t.HeaderRow,
		Delimiter: string(t.Delimiter),
		Rows:      t.Len(),
	})
}

// preprocess reads the upload and runs it through the survey pipeline with
// strict header detection
func (h *Handler) preprocess(w http.ResponseWriter, r *http.Request) (*survey.ModelSpec, *survey.Result, error) {
	spec, err := h.spec(r)
	if err != nil {
		return nil, nil, err
	}
	content, err := h.readUpload(w, r)
	if err != nil {
		return nil, nil, err
	}
	res, err := spec.Preprocess(content, survey.Options{Strict: true})
	if err != nil {
		return nil, nil, err
	}
	return spec, res, nil
}

// handlePredict returns the predicted label of every row
func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	spec, res, err := h.preprocess(w, r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	pred, err := h.runner.Predict(spec, res.Frame)
	if err != nil {
		h.respondError(w, err)
		return
	}

	id := h.record(r.Context(), history.Run{
		Model:           spec.Slug,
		Endpoint:        "predict",
		Rows:            res.Frame.Rows(),
		MissingFeatures: len(res.Missing),
		Counts:          pred.Counts,
	})
	h.respondJSON(w, http.StatusOK, models.PredictResponse{
		RunID:           id,
		Model:           spec.Slug,
		Rows:            res.Frame.Rows(),
		PredLabels:      pred.Labels,
		ClassNames:      spec.Classes(),
		CountsByClass:   pred.Counts,
		MissingFeatures: nonNil(res.Missing),
		DerivedFeatures: nonNil(res.Derived),
	})
}

// handlePredictCSV returns the upload with a prediction column appended
func (h *Handler) handlePredictCSV(w http.ResponseWriter, r *http.Request) {
	spec, res, err := h.preprocess(w, r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	pred, err := h.runner.Predict(spec, res.Frame)
	if err != nil {
		h.respondError(w, err)
		return
	}

	out := res.Source.WithColumn("prediction", pred.Labels)
	if spec.HasProba {
		conf := make([]string, len(pred.Scores))
		for i, s := range pred.Scores {
			conf[i] = table.FormatNumber(s)
		}
		out = out.WithColumn("prediction_confidence", conf)
	}
	body, err := encodeCSV(out)
	if err != nil {
		h.respondError(w, err)
		return
	}

	id := h.record(r.Context(), history.Run{
		Model:           spec.Slug,
		Endpoint:        "predict_csv",
		Rows:            res.Frame.Rows(),
		MissingFeatures: len(res.Missing),
		Counts:          pred.Counts,
	})
	h.respondJSON(w, http.StatusOK, models.PredictCSVResponse{
		RunID:      id,
		Model:      spec.Slug,
		CSVDataURL: "data:text/csv;charset=utf-8," + body,
	})
}

// handleEvaluate scores predictions against the survey's label column
func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	spec, res, err := h.preprocess(w, r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if !res.HasTruth {
		h.respondError(w, fmt.Errorf("%w: label column %q not found in the uploaded CSV",
			inference.ErrLabelColumnMissing, spec.LabelColumn))
		return
	}
	ev, err := h.runner.Evaluate(spec, res.Frame, res.Truth)
	if err != nil {
		h.respondError(w, err)
		return
	}

	id := h.record(r.Context(), history.Run{
		Model:           spec.Slug,
		Endpoint:        "evaluate",
		Rows:            ev.Rows,
		MissingFeatures: len(res.Missing),
		Counts:          ev.Counts,
		Accuracy:        &ev.Accuracy,
	})
	h.respondJSON(w, http.StatusOK, models.EvaluateResponse{
		RunID:                id,
		Model:                spec.Slug,
		EvaluatedRows:        ev.Rows,
		SkippedRows:          ev.Skipped,
		Accuracy:             ev.Accuracy,
		MacroF1:              ev.MacroF1,
		BalancedAccuracy:     ev.BalancedAccuracy,
		ConfusionMatrix:      models.ConfusionMatrix{Labels: ev.Classes, Matrix: ev.Confusion},
		ClassificationReport: ev.Report,
		ClassNames:           ev.Classes,
		PredictionCounts:     ev.Counts,
	})
}

// archive reads the upload as an unedited archive export
func (h *Handler) archive(w http.ResponseWriter, r *http.Request, labelCol string) (*survey.ModelSpec, *survey.ArchiveResult, error) {
	spec, err := h.spec(r)
	if err != nil {
		return nil, nil, err
	}
	content, err := h.readUpload(w, r)
	if err != nil {
		return nil, nil, err
	}
	res, err := spec.PreprocessArchive(content, labelCol)
	if err != nil {
		return nil, nil, err
	}
	return spec, res, nil
}

// handlePredictOfficial predicts an official archive export as downloaded
func (h *Handler) handlePredictOfficial(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", h.cfg.PredictionLimit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	spec, res, err := h.archive(w, r, "")
	if err != nil {
		h.respondError(w, err)
		return
	}
	pred, err := h.runner.Predict(spec, res.Frame)
	if err != nil {
		h.respondError(w, err)
		return
	}

	n := min(len(pred.Labels), limit)
	preds := make([]models.ScoredPrediction, n)
	for i := range preds {
		preds[i] = models.ScoredPrediction{Row: i, Label: pred.Labels[i], Score: pred.Scores[i]}
	}
	notes := features.NoteStrings(res.Notes)

	id := h.record(r.Context(), history.Run{
		Model:           spec.Slug,
		Endpoint:        "predict_official",
		Rows:            res.Frame.Rows(),
		MissingFeatures: len(res.Missing),
		Counts:          pred.Counts,
		Notes:           notes,
	})
	h.respondJSON(w, http.StatusOK, models.OfficialPredictResponse{
		RunID:               id,
		Model:               spec.Slug,
		RowsReceived:        res.Frame.Rows(),
		RowsReturned:        n,
		MissingFeatureCount: len(res.Missing),
		MissingFeatures:     firstN(res.Missing, maxReportedMissing),
		DerivationNotes:     nonNil(notes),
		Retried:             pred.Retried,
		Predictions:         preds,
		CountsByClass:       pred.Counts,
	})
}

// handleEvaluateCSV scores an archive export against its label column,
// found from ?label_col= or the known label names
func (h *Handler) handleEvaluateCSV(w http.ResponseWriter, r *http.Request) {
	labelCol := strings.TrimSpace(r.URL.Query().Get("label_col"))
	spec, res, err := h.archive(w, r, labelCol)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if !res.HasTruth {
		h.respondError(w, fmt.Errorf("%w: provide ?label_col=... or include one of: %s",
			inference.ErrLabelColumnMissing, strings.Join(features.DefaultLabelAliases, ", ")))
		return
	}
	ev, err := h.runner.Evaluate(spec, res.Frame, res.Truth)
	if err != nil {
		h.respondError(w, err)
		return
	}
	notes := features.NoteStrings(res.Notes)

	id := h.record(r.Context(), history.Run{
		Model:           spec.Slug,
		Endpoint:        "evaluate_csv",
		Rows:            ev.Rows,
		MissingFeatures: len(res.Missing),
		Counts:          ev.Counts,
		Notes:           notes,
		Accuracy:        &ev.Accuracy,
	})
	h.respondJSON(w, http.StatusOK, models.EvaluateCSVResponse{
		RunID:            id,
		Model:            spec.Slug,
		Rows:             res.Frame.Rows(),
		EvaluatedRows:    ev.Rows,
		LabelCol:         res.LabelColumn,
		Accuracy:         ev.Accuracy,
		F1Macro:          ev.MacroF1,
		BalancedAccuracy: ev.BalancedAccuracy,
		Report:           ev.Report,
		ConfusionMatrix:  ev.Confusion,
		ClassNames:       ev.Classes,
		MissingFeatures:  firstN(res.Missing, maxReportedMissing),
		DerivationNotes:  nonNil(notes),
	})
}

func encodeCSV(t *table.RawTable) (string, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(t.Columns); err != nil {
		return "", err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		s = s[:n]
	}
	return nonNil(s)
}
