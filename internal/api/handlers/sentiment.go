package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/Harshitk-cp/sentinel/internal/service"
)

type SentimentHandler struct {
	engine *service.Engine
}

func NewSentimentHandler(engine *service.Engine) *SentimentHandler {
	return &SentimentHandler{engine: engine}
}

type analyzeRequest struct {
	Text    string                `json:"text"`
	Context domain.MessageContext `json:"context"`
}

func (h *SentimentHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.AnalyzeSentiment(req.Text, req.Context))
}

type profileRequest struct {
	History []domain.Interaction `json:"history"`
}

func (h *SentimentHandler) Profile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.GetEmotionalState(req.History))
}

// riskRequest accepts either a prior analysis or raw text to analyze first.
type riskRequest struct {
	Text      string                  `json:"text,omitempty"`
	Sentiment *domain.SentimentResult `json:"sentiment,omitempty"`
	Context   domain.MessageContext   `json:"context"`
}

func (h *SentimentHandler) EscalationRisk(w http.ResponseWriter, r *http.Request) {
	var req riskRequest
	if !decodeBody(w, r, &req) {
		return
	}
	judged := req.Sentiment
	if judged == nil && req.Text != "" {
		analyzed := h.engine.AnalyzeSentiment(req.Text, req.Context)
		judged = &analyzed
	}
	writeJSON(w, http.StatusOK, h.engine.PredictEscalationRisk(judged, req.Context))
}
