package handlers

import (
	"net/http"
	"time"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/Harshitk-cp/sentinel/internal/service"
	"github.com/go-chi/chi/v5"
)

type LearningHandler struct {
	engine *service.Engine
}

func NewLearningHandler(engine *service.Engine) *LearningHandler {
	return &LearningHandler{engine: engine}
}

// writeLearning maps a rejected record to 400. Learning never fails a
// valid record.
func writeLearning(w http.ResponseWriter, res domain.LearningResult) {
	status := http.StatusCreated
	if !res.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res)
}

func (h *LearningHandler) RecordResolution(w http.ResponseWriter, r *http.Request) {
	var req domain.TicketResolution
	if !decodeBody(w, r, &req) {
		return
	}
	writeLearning(w, h.engine.LearnFromTicketResolution(r.Context(), req))
}

func (h *LearningHandler) RecordBehavior(w http.ResponseWriter, r *http.Request) {
	var req domain.AgentBehavior
	if !decodeBody(w, r, &req) {
		return
	}
	writeLearning(w, h.engine.RecordAgentBehavior(r.Context(), req))
}

func (h *LearningHandler) RecordEscalation(w http.ResponseWriter, r *http.Request) {
	var req domain.EscalationPattern
	if !decodeBody(w, r, &req) {
		return
	}
	writeLearning(w, h.engine.RecordEscalationPattern(r.Context(), req))
}

type recommendationsRequest struct {
	Department string `json:"department"`
	domain.TicketContext
}

func (h *LearningHandler) Recommendations(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "id")
	var req recommendationsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Department == "" {
		writeError(w, http.StatusBadRequest, "department is required")
		return
	}
	writeJSON(w, http.StatusOK, h.engine.GetPersonalizedRecommendations(r.Context(), agentID, req.Department, req.TicketContext))
}

// Insights accepts optional RFC 3339 "start" and "end" query parameters.
func (h *LearningHandler) Insights(w http.ResponseWriter, r *http.Request) {
	var tr domain.TimeRange
	for name, dst := range map[string]*time.Time{"start": &tr.Start, "end": &tr.End} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+name+" time")
			return
		}
		*dst = t
	}
	writeJSON(w, http.StatusOK, h.engine.GetDepartmentInsights(chi.URLParam(r, "dept"), tr))
}

func (h *LearningHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	var req domain.ProactiveContext
	if !decodeBody(w, r, &req) {
		return
	}
	req.Department = chi.URLParam(r, "dept")
	writeJSON(w, http.StatusOK, h.engine.GenerateProactiveSuggestions(req))
}
