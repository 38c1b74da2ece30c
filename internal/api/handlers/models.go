package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/Harshitk-cp/sentinel/internal/service"
	"github.com/go-chi/chi/v5"
)

type ModelHandler struct {
	models *service.ModelManager
}

func NewModelHandler(models *service.ModelManager) *ModelHandler {
	return &ModelHandler{models: models}
}

func (h *ModelHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": h.models.List()})
}

// registerRequest carries the API key separately since ModelConfig never
// serializes it.
type registerRequest struct {
	ModelID string             `json:"model_id"`
	Kind    domain.BackendKind `json:"backend_kind"`
	APIKey  string             `json:"api_key,omitempty"`
	Config  domain.ModelConfig `json:"config"`
}

// Register answers 201 once the model is in the registry, even when it came
// up in error status, and 400 when the registration was rejected outright.
func (h *ModelHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Kind == "" {
		req.Kind = domain.BackendInHouse
	}
	req.Config.APIKey = req.APIKey

	result := h.models.Register(r.Context(), req.ModelID, req.Kind, req.Config)
	status := http.StatusCreated
	if result.Status == "" {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

func (h *ModelHandler) Deregister(w http.ResponseWriter, r *http.Request) {
	if err := h.models.Deregister(chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type predictRequest struct {
	domain.PredictionInput
	BypassCache bool `json:"bypass_cache"`
	TimeoutMs   int  `json:"timeout_ms,omitempty"`
}

// Predict always answers 200; failures come back as a degraded prediction.
func (h *ModelHandler) Predict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if !decodeBody(w, r, &req) {
		return
	}
	opts := domain.PredictOptions{
		BypassCache: req.BypassCache,
		Timeout:     time.Duration(req.TimeoutMs) * time.Millisecond,
		Capability:  req.Capability,
	}
	writeJSON(w, http.StatusOK, h.models.Predict(r.Context(), chi.URLParam(r, "id"), req.PredictionInput, opts))
}

type trainRequest struct {
	Mode     domain.TrainMode         `json:"mode"`
	Examples []domain.TrainingExample `json:"examples"`
}

func (h *ModelHandler) Train(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")

	var (
		result *domain.TrainResult
		err    error
	)
	switch req.Mode {
	case "", domain.TrainIncremental:
		result, err = h.models.IncrementalTrain(r.Context(), id, req.Examples)
	case domain.TrainFull:
		result, err = h.models.Retrain(r.Context(), id, req.Examples)
	default:
		writeError(w, http.StatusBadRequest, "mode must be incremental or full")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ModelHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"results": h.models.RefreshExternalModels(r.Context())})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrModelNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrModelBusy),
		errors.Is(err, service.ErrModelNotReady):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrTrainingUnsupported),
		errors.Is(err, service.ErrEmptyBatch),
		errors.Is(err, service.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
