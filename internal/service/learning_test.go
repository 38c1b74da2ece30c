package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newLearningFixture(t *testing.T) (*LearningService, *ModelManager) {
	t.Helper()
	m := newTestModelManager()
	ctx := context.Background()
	for id, capability := range map[string]string{
		ResolutionTimeModelID: domain.CapabilityResolutionTime,
		CSATModelID:           domain.CapabilityCSAT,
		EscalationModelID:     domain.CapabilityEscalation,
	} {
		res := m.RegisterInHouse(ctx, id, domain.ModelConfig{Capabilities: []string{capability}})
		require.True(t, res.Success, res.Error)
	}
	return NewLearningService(m, zap.NewNop()), m
}

type recordingSink struct {
	mu          sync.Mutex
	records     []domain.TrainingRecord
	behaviors   []domain.AgentBehavior
	escalations []domain.EscalationPattern
	err         error
}

func (s *recordingSink) AppendTrainingRecord(_ context.Context, r *domain.TrainingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, *r)
	return s.err
}

func (s *recordingSink) AppendAgentBehavior(_ context.Context, b *domain.AgentBehavior) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.behaviors = append(s.behaviors, *b)
	return s.err
}

func (s *recordingSink) AppendEscalationPattern(_ context.Context, p *domain.EscalationPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escalations = append(s.escalations, *p)
	return s.err
}

func resolution(agent string, minutes, csat float64, escalated bool, summary string, at time.Time) domain.TicketResolution {
	return domain.TicketResolution{
		Department:            "billing",
		Category:              "refund",
		Priority:              "normal",
		AgentID:               agent,
		ResolutionTimeMinutes: minutes,
		CSAT:                  csat,
		Escalated:             escalated,
		SolutionSummary:       summary,
		ResolvedAt:            at,
	}
}

func TestLearning_ProcessTicketResolution(t *testing.T) {
	s, m := newLearningFixture(t)
	ctx := context.Background()

	result := s.ProcessTicketResolution(ctx, resolution("a1", 60, 5, false, "Refunded via portal", t0))
	require.True(t, result.Success, result.Error)
	assert.NotEqual(t, uuid.Nil, result.RecordID)
	assert.Contains(t, result.Insights, "Resolved within the 240 minute target")
	assert.Contains(t, result.Insights, "Successful resolution added to billing/refund patterns (1 records)")

	for _, id := range []string{ResolutionTimeModelID, CSATModelID, EscalationModelID} {
		reg, err := m.Get(id)
		require.NoError(t, err)
		assert.Equal(t, 2, reg.Version, id)
	}

	slow := s.ProcessTicketResolution(ctx, resolution("a2", 300, 2, true, "Escalated to finance", t0.Add(time.Hour)))
	require.True(t, slow.Success)
	assert.Contains(t, slow.Insights, "Resolution took 300 minutes, 60 over target")
	assert.Contains(t, slow.Insights, "CSAT 2.0 is below the 4.0 success threshold")
	assert.Contains(t, slow.Insights, "Escalated ticket recorded for billing/refund")
}

func TestLearning_ProcessTicketResolutionRejectsInvalid(t *testing.T) {
	s := NewLearningService(nil, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name string
		res  domain.TicketResolution
	}{
		{"missing department", domain.TicketResolution{Category: "refund"}},
		{"missing category", domain.TicketResolution{Department: "billing"}},
		{"negative time", domain.TicketResolution{Department: "billing", Category: "refund", ResolutionTimeMinutes: -1}},
		{"csat out of range", domain.TicketResolution{Department: "billing", Category: "refund", CSAT: 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.ProcessTicketResolution(ctx, tt.res)
			assert.False(t, result.Success)
			assert.NotEmpty(t, result.Error)
			assert.NotNil(t, result.Insights)
		})
	}
	assert.Empty(t, s.SimilarResolutions("billing", "refund", 0))
}

func TestLearning_RecordsWithoutModels(t *testing.T) {
	s := NewLearningService(newTestModelManager(), zap.NewNop())
	result := s.ProcessTicketResolution(context.Background(), resolution("a1", 60, 5, false, "ok", t0))
	assert.True(t, result.Success, "missing models do not fail recording")
}

func TestLearning_SinksReceiveRecords(t *testing.T) {
	s := NewLearningService(nil, zap.NewNop())
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("disk full")}
	s.AddRecordSink(ok)
	s.AddRecordSink(failing)
	ctx := context.Background()

	assert.True(t, s.ProcessTicketResolution(ctx, resolution("a1", 60, 5, false, "ok", t0)).Success)
	assert.True(t, s.ProcessAgentBehavior(ctx, domain.AgentBehavior{AgentID: "a1", Action: "refund lookup", Successful: true}).Success)
	assert.True(t, s.ProcessEscalationPattern(ctx, domain.EscalationPattern{Department: "billing", Trigger: "lawyer"}).Success)

	require.Len(t, ok.records, 1)
	assert.Equal(t, "a1", ok.records[0].AgentID)
	require.Len(t, ok.behaviors, 1)
	assert.NotEqual(t, uuid.Nil, ok.behaviors[0].ID)
	assert.False(t, ok.behaviors[0].Timestamp.IsZero())
	require.Len(t, ok.escalations, 1)
	assert.Len(t, failing.records, 1)
}

func TestLearning_AgentProfileFromBehavior(t *testing.T) {
	s := NewLearningService(nil, zap.NewNop())
	ctx := context.Background()

	_, ok := s.AgentProfile("a1")
	assert.False(t, ok)

	for i := 0; i < 3; i++ {
		s.ProcessAgentBehavior(ctx, domain.AgentBehavior{AgentID: "a1", Department: "billing", Action: "refund lookup", Successful: true})
		s.ProcessAgentBehavior(ctx, domain.AgentBehavior{AgentID: "a1", Department: "billing", Action: "upsell", Successful: false})
	}
	result := s.ProcessAgentBehavior(ctx, domain.AgentBehavior{AgentID: "a1", Action: "greeting", Successful: true})
	assert.Equal(t, []string{"greeting succeeds 100% of the time for a1 (1 attempts)"}, result.Insights)

	profile, ok := s.AgentProfile("a1")
	require.True(t, ok)
	assert.Equal(t, []string{"refund lookup"}, profile.Strengths)
	assert.Equal(t, []string{"upsell"}, profile.ImprovementAreas)
	assert.Equal(t, []domain.BehaviorPattern{
		{Action: "refund lookup", Occurrences: 3, SuccessRate: 1},
		{Action: "upsell", Occurrences: 3, SuccessRate: 0},
		{Action: "greeting", Occurrences: 1, SuccessRate: 1},
	}, profile.BehaviorPatterns)
	assert.Zero(t, profile.TicketsHandled)

	invalid := s.ProcessAgentBehavior(ctx, domain.AgentBehavior{AgentID: "a1"})
	assert.False(t, invalid.Success)
}

func TestLearning_BehaviorPatternCap(t *testing.T) {
	s := NewLearningService(nil, zap.NewNop())
	s.Config.BehaviorPatternCap = 2
	ctx := context.Background()

	s.ProcessAgentBehavior(ctx, domain.AgentBehavior{AgentID: "a1", Action: "a"})
	s.ProcessAgentBehavior(ctx, domain.AgentBehavior{AgentID: "a1", Action: "a"})
	s.ProcessAgentBehavior(ctx, domain.AgentBehavior{AgentID: "a1", Action: "b"})
	s.ProcessAgentBehavior(ctx, domain.AgentBehavior{AgentID: "a1", Action: "c"})

	profile, _ := s.AgentProfile("a1")
	require.Len(t, profile.BehaviorPatterns, 2)
	assert.Equal(t, "a", profile.BehaviorPatterns[0].Action)
	assert.Equal(t, "c", profile.BehaviorPatterns[1].Action, "the newest action survives eviction")
}

func TestLearning_SpecializationsAndResolutionStrengths(t *testing.T) {
	s := NewLearningService(nil, zap.NewNop())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.ProcessTicketResolution(ctx, resolution("a1", 90, 4.5, false, "ok", t0.Add(time.Duration(i)*time.Minute)))
	}

	profile, ok := s.AgentProfile("a1")
	require.True(t, ok)
	assert.Equal(t, []string{"refund"}, profile.Specializations)
	assert.Equal(t, []string{"fast resolution", "customer satisfaction"}, profile.Strengths)
	assert.Equal(t, 3, profile.TicketsHandled)
	assert.InDelta(t, 90, profile.AvgResolutionTime, 1e-9)
	assert.InDelta(t, 4.5, profile.AvgCSAT, 1e-9)
}

func TestLearning_ProcessEscalationPattern(t *testing.T) {
	s, m := newLearningFixture(t)
	ctx := context.Background()

	p := domain.EscalationPattern{Department: "Billing", Category: "refund", Trigger: " Speak to a Manager ", CustomerTier: domain.CustomerTierEnterprise}
	s.ProcessEscalationPattern(ctx, p)
	result := s.ProcessEscalationPattern(ctx, p)
	require.True(t, result.Success)
	assert.Equal(t, []string{
		`Trigger "speak to a manager" has preceded 2 escalations in billing/refund`,
		"Enterprise customer escalation; review account health",
	}, result.Insights)

	reg, _ := m.Get(EscalationModelID)
	assert.Equal(t, 3, reg.Version)

	missing := s.ProcessEscalationPattern(ctx, domain.EscalationPattern{Department: "billing"})
	assert.False(t, missing.Success)
}

func TestLearning_GetAgentRecommendations(t *testing.T) {
	s, _ := newLearningFixture(t)
	ctx := context.Background()

	s.ProcessTicketResolution(ctx, resolution("a1", 60, 5, false, "Refunded via portal", t0))
	s.ProcessTicketResolution(ctx, resolution("a1", 120, 4, false, "Issued credit", t0.Add(time.Hour)))
	s.ProcessTicketResolution(ctx, resolution("a2", 300, 2, true, "Escalated to finance", t0.Add(2*time.Hour)))

	bundle := s.GetAgentRecommendations(ctx, "a1", "billing", domain.TicketContext{Category: "refund", Priority: "normal"})

	assert.False(t, bundle.Degraded)
	assert.Equal(t, []domain.ResolutionSummary{
		{AgentID: "a1", SolutionSummary: "Issued credit", ResolutionTimeMinutes: 120, CSAT: 4},
		{AgentID: "a1", SolutionSummary: "Refunded via portal", ResolutionTimeMinutes: 60, CSAT: 5},
	}, bundle.SimilarResolutions)
	assert.InDelta(t, 160, bundle.EstimatedResolutionMinutes, 1e-9)
	assert.InDelta(t, 11.0/3, bundle.PredictedCSAT, 1e-9)
	assert.InDelta(t, 1.0/3, bundle.EscalationRisk, 1e-9)
	assert.InDelta(t, 0.7*0.375+0.3*0.4, bundle.Confidence, 1e-9)
	assert.Equal(t, []string{
		"Try what worked before: Issued credit",
		"Try what worked before: Refunded via portal",
		"Set clear expectations and follow up proactively",
	}, bundle.SuggestedActions)
}

func TestLearning_RecommendationsPointToSpecialist(t *testing.T) {
	s := NewLearningService(nil, zap.NewNop())
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		s.ProcessTicketResolution(ctx, resolution("a1", 90, 5, false, "Refunded", t0.Add(time.Duration(i)*time.Minute)))
	}
	s.ProcessAgentBehavior(ctx, domain.AgentBehavior{AgentID: "a2", Action: "triage", Successful: true})

	bundle := s.GetAgentRecommendations(ctx, "a2", "billing", domain.TicketContext{Category: "refund", Priority: "urgent"})
	assert.True(t, bundle.Degraded, "no models are registered")
	assert.InDelta(t, 90, bundle.EstimatedResolutionMinutes, 1e-9, "falls back to similar resolutions")
	assert.Contains(t, bundle.SuggestedActions, "Send a first response immediately")
	assert.Contains(t, bundle.SuggestedActions, "Consult a1, who specializes in refund")
}

func TestLearning_RecommendationsUseCustomerMessage(t *testing.T) {
	s := NewLearningService(nil, zap.NewNop())
	s.SetSentimentService(NewSentimentService(zap.NewNop()))

	bundle := s.GetAgentRecommendations(context.Background(), "a1", "billing", domain.TicketContext{
		Category:        "refund",
		CustomerMessage: "I am furious, this is unacceptable, speak to a manager",
	})
	assert.Greater(t, bundle.EscalationRisk, 0.7)
	assert.Contains(t, bundle.SuggestedActions, "Loop in a senior agent early; escalation risk is critical")
	assert.NotNil(t, bundle.SimilarResolutions)
}

func seedDepartment(t *testing.T, s *LearningService) {
	t.Helper()
	ctx := context.Background()
	records := []domain.TicketResolution{
		{Category: "login", ResolutionTimeMinutes: 100, CSAT: 5},
		{Category: "login", ResolutionTimeMinutes: 100, CSAT: 5},
		{Category: "login", ResolutionTimeMinutes: 100, CSAT: 5},
		{Category: "login", ResolutionTimeMinutes: 300, CSAT: 3, Escalated: true},
		{Category: "sso", ResolutionTimeMinutes: 300, CSAT: 3, Escalated: true, Reopened: true},
		{Category: "sso", ResolutionTimeMinutes: 300, CSAT: 3},
	}
	for i, r := range records {
		r.Department = "support"
		r.ResolvedAt = t0.Add(time.Duration(i) * time.Hour)
		require.True(t, s.ProcessTicketResolution(ctx, r).Success)
	}
	// Outside the window and another department.
	s.ProcessTicketResolution(ctx, domain.TicketResolution{Department: "support", Category: "login", ResolutionTimeMinutes: 5, CSAT: 1, ResolvedAt: t0.Add(-240 * time.Hour)})
	s.ProcessTicketResolution(ctx, domain.TicketResolution{Department: "sales", Category: "login", ResolutionTimeMinutes: 5, CSAT: 1, ResolvedAt: t0})
}

func TestLearning_GetDepartmentAnalytics(t *testing.T) {
	s := NewLearningService(nil, zap.NewNop())
	seedDepartment(t, s)

	window := domain.TimeRange{Start: t0.Add(-time.Hour), End: t0.Add(24 * time.Hour)}
	a := s.GetDepartmentAnalytics("Support", window)

	require.True(t, a.HasData)
	assert.Equal(t, 6, a.Performance.TotalTickets)
	assert.InDelta(t, 200, a.Performance.AvgResolutionMinutes, 1e-9)
	assert.InDelta(t, 4.0, a.Performance.AvgCSAT, 1e-9)
	assert.InDelta(t, 2.0/6, a.Performance.EscalationRate, 1e-9)
	assert.InDelta(t, 1.0/6, a.Performance.ReopenRate, 1e-9)
	assert.InDelta(t, 4.0/6, a.Performance.FirstContactResolved, 1e-9)

	assert.Equal(t, domain.TrendDeclining, a.Trends.ResolutionTime)
	assert.Equal(t, domain.TrendDeclining, a.Trends.CSAT)
	assert.Equal(t, domain.TrendDeclining, a.Trends.Escalations)
	assert.Equal(t, []domain.CategoryCount{{Category: "login", Count: 4}, {Category: "sso", Count: 2}}, a.Trends.TopCategories)

	assert.Equal(t, []string{
		"Escalation rate is 33%; schedule de-escalation training",
		"Reopen rate is 17%; verify fixes before closing",
	}, a.TrainingRecommendations)
}

func TestLearning_GetDepartmentAnalyticsEmptyWindow(t *testing.T) {
	s := NewLearningService(nil, zap.NewNop())
	seedDepartment(t, s)

	window := domain.TimeRange{Start: t0.Add(100 * time.Hour)}
	a := s.GetDepartmentAnalytics("support", window)

	assert.False(t, a.HasData)
	assert.Equal(t, "support", a.Department)
	assert.Equal(t, window, a.TimeRange)
	assert.Zero(t, a.Performance)
	assert.Equal(t, domain.TrendStable, a.Trends.CSAT)
	assert.NotNil(t, a.Trends.TopCategories)
	assert.Empty(t, a.Trends.TopCategories)
	assert.NotNil(t, a.TrainingRecommendations)
}

func TestLearning_GenerateProactiveSuggestions(t *testing.T) {
	s := NewLearningService(nil, zap.NewNop())
	seedDepartment(t, s)
	s.ProcessEscalationPattern(context.Background(), domain.EscalationPattern{Department: "support", Category: "sso", Trigger: "cancel my account"})

	got := s.GenerateProactiveSuggestions(domain.ProactiveContext{
		Department:      "support",
		OpenTickets:     30,
		AvailableAgents: 2,
		Now:             t0.Add(6 * time.Hour),
	})

	assert.Equal(t, []string{
		"Escalations are rising; review recent escalated tickets for shared causes",
		"CSAT is declining; audit this week's low-scoring tickets",
		`Watch for "cancel my account" in sso; it preceded 1 escalations`,
	}, got.PreventiveActions)
	assert.Equal(t, []string{
		"High load at 15.0 tickets per agent; add staffing or defer low-priority work",
		"Resolution times are rising; check for blocked tickets",
	}, got.ResourceOptimization)
	assert.Contains(t, got.TrainingNeeds, "Escalation rate is 33%; schedule de-escalation training")
	assert.Contains(t, got.TrainingNeeds, `Most common escalation trigger is "cancel my account"; practice responses to it`)
}

func TestLearning_GenerateProactiveSuggestionsEmpty(t *testing.T) {
	s := NewLearningService(nil, zap.NewNop())
	got := s.GenerateProactiveSuggestions(domain.ProactiveContext{})

	assert.NotNil(t, got.PreventiveActions)
	assert.NotNil(t, got.ResourceOptimization)
	assert.NotNil(t, got.TrainingNeeds)
	assert.Empty(t, got.PreventiveActions)
	assert.Empty(t, got.ResourceOptimization)
	assert.Empty(t, got.TrainingNeeds)
}

func TestLearning_ConcurrentRecording(t *testing.T) {
	s, _ := newLearningFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.ProcessTicketResolution(ctx, resolution("a1", float64(60+i), 5, false, "ok", t0.Add(time.Duration(i)*time.Minute)))
			s.ProcessAgentBehavior(ctx, domain.AgentBehavior{AgentID: "a1", Action: "refund lookup", Successful: true})
			s.GetAgentRecommendations(ctx, "a1", "billing", domain.TicketContext{Category: "refund"})
		}(i)
	}
	wg.Wait()

	profile, ok := s.AgentProfile("a1")
	require.True(t, ok)
	assert.Equal(t, 20, profile.TicketsHandled)
	assert.Len(t, s.SimilarResolutions("billing", "refund", 0), 20)
}

// countingBackend counts every example it is trained on across versions.
type countingBackend struct {
	absorbed *atomic.Int64
	delay    time.Duration
	gate     chan struct{}
}

func (b *countingBackend) Load(context.Context) error           { return nil }
func (b *countingBackend) TestConnection(context.Context) error { return nil }

func (b *countingBackend) Predict(context.Context, domain.PredictionInput) (*domain.Prediction, error) {
	return &domain.Prediction{Value: float64(b.absorbed.Load()), Confidence: 1}, nil
}

func (b *countingBackend) Train(ctx context.Context, examples []domain.TrainingExample, _ domain.TrainMode) (domain.ModelBackend, *domain.TrainReport, error) {
	if b.gate != nil {
		select {
		case <-b.gate:
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
	}
	time.Sleep(b.delay)
	b.absorbed.Add(int64(len(examples)))
	return b, &domain.TrainReport{Examples: len(examples), Accuracy: 1}, nil
}

func TestLearning_ConcurrentRecordingTrainsEveryExample(t *testing.T) {
	m := newTestModelManager()
	counter := &countingBackend{absorbed: &atomic.Int64{}, delay: time.Millisecond}
	require.True(t, m.RegisterBackend(context.Background(), ResolutionTimeModelID, domain.BackendInHouse,
		domain.ModelConfig{Capabilities: []string{domain.CapabilityResolutionTime}}, counter).Success)
	s := NewLearningService(m, zap.NewNop())

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res := s.ProcessTicketResolution(context.Background(), resolution("a1", float64(30+i), 5, false, "ok", t0))
			assert.True(t, res.Success)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(n), counter.absorbed.Load())
	assert.Zero(t, s.PendingTraining(ResolutionTimeModelID))
}

func TestLearning_BusyModelKeepsExamplesQueued(t *testing.T) {
	m := newTestModelManager()
	counter := &countingBackend{absorbed: &atomic.Int64{}, gate: make(chan struct{})}
	require.True(t, m.RegisterBackend(context.Background(), ResolutionTimeModelID, domain.BackendInHouse,
		domain.ModelConfig{Capabilities: []string{domain.CapabilityResolutionTime}}, counter).Success)
	s := NewLearningService(m, zap.NewNop())
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := m.Retrain(ctx, ResolutionTimeModelID, []domain.TrainingExample{{Value: 1}})
		done <- err
	}()
	require.Eventually(t, func() bool {
		reg, err := m.Get(ResolutionTimeModelID)
		return err == nil && reg.Status == domain.ModelTraining
	}, time.Second, time.Millisecond)

	for i := 0; i < 5; i++ {
		require.True(t, s.ProcessTicketResolution(ctx, resolution("a1", 60, 5, false, "ok", t0)).Success)
	}
	assert.Equal(t, 5, s.PendingTraining(ResolutionTimeModelID))
	assert.Zero(t, counter.absorbed.Load())

	close(counter.gate)
	require.NoError(t, <-done)
	assert.Equal(t, int64(1), counter.absorbed.Load())

	require.True(t, s.ProcessTicketResolution(ctx, resolution("a1", 60, 5, false, "ok", t0)).Success)
	assert.Equal(t, int64(7), counter.absorbed.Load(), "queued examples train with the next one")
	assert.Zero(t, s.PendingTraining(ResolutionTimeModelID))
}

func TestLearning_TrainingQueueIsBounded(t *testing.T) {
	m := newTestModelManager()
	counter := &countingBackend{absorbed: &atomic.Int64{}, gate: make(chan struct{})}
	require.True(t, m.RegisterBackend(context.Background(), ResolutionTimeModelID, domain.BackendInHouse,
		domain.ModelConfig{Capabilities: []string{domain.CapabilityResolutionTime}}, counter).Success)
	s := NewLearningService(m, zap.NewNop())
	s.Config.MaxPendingExamples = 3
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := m.Retrain(ctx, ResolutionTimeModelID, []domain.TrainingExample{{Value: 1}})
		done <- err
	}()
	require.Eventually(t, func() bool {
		reg, _ := m.Get(ResolutionTimeModelID)
		return reg.Status == domain.ModelTraining
	}, time.Second, time.Millisecond)

	for i := 0; i < 5; i++ {
		s.ProcessTicketResolution(ctx, resolution("a1", 60, 5, false, "ok", t0))
	}
	assert.Equal(t, 3, s.PendingTraining(ResolutionTimeModelID))

	close(counter.gate)
	require.NoError(t, <-done)
}
