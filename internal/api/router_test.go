package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/Harshitk-cp/sentinel/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testKey = "test-key"

func newTestApp(t *testing.T, opts Options) *App {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if opts.RateLimitRPS == 0 {
		opts.RateLimitRPS = 1000
		opts.RateLimitBurst = 1000
	}
	return NewAppWithOptions(ctx, service.NewEngine(nil, zap.NewNop()), nil, opts, zap.NewNop())
}

func do(t *testing.T, app *App, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestAuth(t *testing.T) {
	app := newTestApp(t, Options{APIKey: testKey})

	req := httptest.NewRequest(http.MethodPost, "/v1/sentiment/analyze", bytes.NewBufferString(`{"text":"hi"}`))
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health needs no key")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuthDisabledWithoutKey(t *testing.T) {
	app := newTestApp(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/v1/sentiment/analyze", bytes.NewBufferString(`{"text":"thanks"}`))
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSentimentRoutes(t *testing.T) {
	app := newTestApp(t, Options{APIKey: testKey})

	rec := do(t, app, http.MethodPost, "/v1/sentiment/analyze", map[string]any{
		"text": "I am furious, this is unacceptable, speak to a manager",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	judged := decode[domain.SentimentResult](t, rec)
	assert.Equal(t, domain.EmotionAngry, judged.PrimaryEmotion)

	rec = do(t, app, http.MethodPost, "/v1/escalation/risk", map[string]any{
		"text":    "I am furious, this is unacceptable, speak to a manager",
		"context": map[string]any{"customer_tier": "enterprise"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	risk := decode[domain.EscalationRisk](t, rec)
	assert.GreaterOrEqual(t, risk.RiskScore, judged.EscalationRisk.RiskScore)

	rec = do(t, app, http.MethodPost, "/v1/sentiment/profile", map[string]any{"history": []any{}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.DefaultEmotionalProfile(), decode[domain.EmotionalProfile](t, rec))

	req := httptest.NewRequest(http.MethodPost, "/v1/sentiment/analyze", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+testKey)
	bad := httptest.NewRecorder()
	app.Router.ServeHTTP(bad, req)
	assert.Equal(t, http.StatusBadRequest, bad.Code)
}

func TestLearningRoutes(t *testing.T) {
	app := newTestApp(t, Options{APIKey: testKey})

	rec := do(t, app, http.MethodPost, "/v1/learning/resolutions", domain.TicketResolution{
		Department:            "billing",
		Category:              "refund",
		AgentID:               "a1",
		ResolutionTimeMinutes: 45,
		CSAT:                  5,
		SolutionSummary:       "Reset the billing cycle",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, decode[domain.LearningResult](t, rec).Success)

	rec = do(t, app, http.MethodPost, "/v1/learning/resolutions", domain.TicketResolution{Category: "refund"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, decode[domain.LearningResult](t, rec).Success)

	rec = do(t, app, http.MethodPost, "/v1/learning/behaviors", domain.AgentBehavior{AgentID: "a1", Action: "refund", Successful: true})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/learning/escalations", domain.EscalationPattern{Department: "billing", Trigger: "lawyer"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/agents/a1/recommendations", map[string]any{"department": "billing", "category": "refund"})
	require.Equal(t, http.StatusOK, rec.Code)
	bundle := decode[domain.RecommendationBundle](t, rec)
	assert.Equal(t, "a1", bundle.AgentID)
	assert.Len(t, bundle.SimilarResolutions, 1)

	rec = do(t, app, http.MethodPost, "/v1/agents/a1/recommendations", map[string]any{"category": "refund"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, app, http.MethodGet, "/v1/departments/billing/insights", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	insights := decode[domain.DepartmentAnalytics](t, rec)
	assert.True(t, insights.HasData)
	assert.Equal(t, 1, insights.Performance.TotalTickets)

	rec = do(t, app, http.MethodGet, "/v1/departments/billing/insights?start=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/departments/billing/suggestions", map[string]any{"open_tickets": 30, "available_agents": 2})
	require.Equal(t, http.StatusOK, rec.Code)
	suggestions := decode[domain.ProactiveSuggestions](t, rec)
	assert.NotEmpty(t, suggestions.ResourceOptimization)
}

func TestModelRoutes(t *testing.T) {
	app := newTestApp(t, Options{APIKey: testKey})

	rec := do(t, app, http.MethodPost, "/v1/models", map[string]any{
		"model_id":     "eta",
		"backend_kind": "in_house",
		"config":       map[string]any{"capabilities": []string{"eta"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, decode[domain.RegistrationResult](t, rec).Success)

	rec = do(t, app, http.MethodPost, "/v1/models", map[string]any{"model_id": "eta"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "duplicate id is rejected")

	rec = do(t, app, http.MethodPost, "/v1/models", map[string]any{"model_id": "ext", "backend_kind": "external"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "external models need a capability")

	features := map[string]any{"department": "billing", "category": "refund", "priority": "high"}
	rec = do(t, app, http.MethodPost, "/v1/models/eta/predict", map[string]any{"features": features})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[domain.Prediction](t, rec).Degraded, "untrained model degrades")

	rec = do(t, app, http.MethodPost, "/v1/models/eta/train", map[string]any{
		"mode": "full",
		"examples": []domain.TrainingExample{
			{Features: features, Value: 60},
			{Features: features, Value: 120},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	trained := decode[domain.TrainResult](t, rec)
	assert.Equal(t, 2, trained.Version)

	rec = do(t, app, http.MethodPost, "/v1/models/eta/predict", map[string]any{"features": features})
	pred := decode[domain.Prediction](t, rec)
	assert.False(t, pred.Degraded)
	assert.InDelta(t, 90, pred.Value, 1e-9)
	assert.Equal(t, 2, pred.ModelVersion)

	rec = do(t, app, http.MethodPost, "/v1/models/eta/train", map[string]any{"mode": "sideways", "examples": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, app, http.MethodPost, "/v1/models/eta/train", map[string]any{"examples": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "empty batch")

	rec = do(t, app, http.MethodPost, "/v1/models/nope/train", map[string]any{"examples": []domain.TrainingExample{{Value: 1}}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, app, http.MethodGet, "/v1/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	listed := decode[struct {
		Models []domain.ModelRegistration `json:"models"`
	}](t, rec)
	require.Len(t, listed.Models, 1)
	assert.Equal(t, int64(2), listed.Models[0].UsageCount)

	rec = do(t, app, http.MethodPost, "/v1/models/refresh", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, app, http.MethodDelete, "/v1/models/eta", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, app, http.MethodDelete, "/v1/models/eta", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimitAndMetrics(t *testing.T) {
	app := newTestApp(t, Options{RateLimitRPS: 0.001, RateLimitBurst: 1})

	assert.Equal(t, http.StatusOK, do(t, app, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, app, http.MethodGet, "/health", nil).Code)

	snap := app.metrics.Snapshot()
	assert.Equal(t, int64(2), snap.Requests)
	assert.Equal(t, int64(1), snap.Throttled)
	assert.Equal(t, int64(1), snap.Errors)
}
