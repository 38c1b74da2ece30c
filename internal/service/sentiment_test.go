package service

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSentimentService() *SentimentService {
	return NewSentimentService(zap.NewNop())
}

func TestAnalyzeSentiment_FuriousCustomer(t *testing.T) {
	s := newTestSentimentService()

	got := s.AnalyzeSentiment("I am furious, this is unacceptable, speak to a manager", domain.MessageContext{})

	assert.Equal(t, domain.EmotionAngry, got.PrimaryEmotion)
	assert.GreaterOrEqual(t, len(got.EscalationTriggers), 2)
	assert.Contains(t, got.EscalationTriggers, "speak to a manager")
	assert.Contains(t, got.EscalationTriggers, "unacceptable")
	assert.GreaterOrEqual(t, got.PriorityAdjustment, 1)
	assert.Equal(t, domain.ToneEmpathetic, got.RecommendedTone)
	assert.Equal(t, domain.RiskCritical, got.EscalationRisk.RiskLevel)
}

func TestAnalyzeSentiment_NoRush(t *testing.T) {
	s := newTestSentimentService()

	got := s.AnalyzeSentiment("No rush, take your time, thanks for your help", domain.MessageContext{})

	assert.Contains(t, []domain.Emotion{domain.EmotionCalm, domain.EmotionSatisfied}, got.PrimaryEmotion)
	assert.InDelta(t, 0.0, got.EmotionalFactors.Urgency, 1e-9)
	assert.Empty(t, got.EscalationTriggers)
	assert.Equal(t, domain.RiskLow, got.EscalationRisk.RiskLevel)
}

func TestAnalyzeSentiment_EmptyTextIsNeutral(t *testing.T) {
	s := newTestSentimentService()

	for _, text := range []string{"", "   ", "\n\t"} {
		assert.Equal(t, domain.NeutralSentiment(), s.AnalyzeSentiment(text, domain.MessageContext{}))
	}
}

func TestAnalyzeSentiment_Bounds(t *testing.T) {
	s := newTestSentimentService()

	texts := []string{
		"",
		"hello",
		"URGENT URGENT URGENT asap immediately emergency, production down, right now!!!",
		"frustrated frustrated frustrated, fed up, not working, angry furious livid, lawyer, sue you, escalate",
		"thanks thanks great perfect awesome wonderful, no rush whenever",
		"I don't understand, unclear, confusing, can you explain what does this mean",
		strings.Repeat("worst experience ever, cancel my subscription now. ", 50),
		"日本語のテキスト 🙂 ümlaut",
	}
	contexts := []domain.MessageContext{
		{},
		{CustomerTier: domain.CustomerTierEnterprise, PreviousEscalations: 5, TicketAgeHours: 500, ReopenCount: 9},
	}

	for _, text := range texts {
		for _, msgCtx := range contexts {
			got := s.AnalyzeSentiment(text, msgCtx)

			assert.True(t, got.PrimaryEmotion.IsValid())
			assertUnit(t, got.Intensity, "intensity")
			assertUnit(t, got.Confidence, "confidence")
			assertUnit(t, got.EmotionalFactors.Urgency, "urgency")
			assertUnit(t, got.EmotionalFactors.Frustration, "frustration")
			assertUnit(t, got.EmotionalFactors.Satisfaction, "satisfaction")
			assertUnit(t, got.EmotionalFactors.Confusion, "confusion")
			assertUnit(t, got.EscalationRisk.RiskScore, "risk")
			assert.GreaterOrEqual(t, got.PriorityAdjustment, domain.MinPriorityAdjustment)
			assert.LessOrEqual(t, got.PriorityAdjustment, domain.MaxPriorityAdjustment)

			seen := make(map[string]bool)
			for _, trig := range got.EscalationTriggers {
				assert.False(t, seen[trig], "duplicate trigger %q", trig)
				seen[trig] = true
			}
		}
	}
}

func TestAnalyzeSentiment_Idempotent(t *testing.T) {
	s := newTestSentimentService()
	text := "This is the worst, my experience is terrible and I need this fixed asap"
	msgCtx := domain.MessageContext{CustomerTier: domain.CustomerTierEnterprise, TicketAgeHours: 50}

	first, err := json.Marshal(s.AnalyzeSentiment(text, msgCtx))
	require.NoError(t, err)
	for i := 0; i < 500; i++ {
		again, err := json.Marshal(s.AnalyzeSentiment(text, msgCtx))
		require.NoError(t, err)
		require.Equal(t, string(first), string(again), "call %d", i)
	}
}

func TestPriorityAdjustment(t *testing.T) {
	tests := []struct {
		name    string
		risk    float64
		emotion domain.Emotion
		factors domain.EmotionalFactors
		want    int
	}{
		{"critical risk", 0.8, domain.EmotionAngry, domain.EmotionalFactors{}, 2},
		{"high risk", 0.6, domain.EmotionAngry, domain.EmotionalFactors{}, 1},
		{"all boosts", 0.9, domain.EmotionAngry, domain.EmotionalFactors{Urgency: 0.8, Frustration: 0.9}, 3},
		{"satisfied and calm", 0.1, domain.EmotionSatisfied, domain.EmotionalFactors{Urgency: 0.1}, -1},
		{"satisfied but urgent", 0.1, domain.EmotionSatisfied, domain.EmotionalFactors{Urgency: 0.5}, 0},
		{"thresholds are strict", 0.5, domain.EmotionCalm, domain.EmotionalFactors{Urgency: 0.7, Frustration: 0.8}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PriorityAdjustment(tt.risk, tt.emotion, tt.factors))
		})
	}
}

func TestRecommendTone(t *testing.T) {
	technical := domain.CulturalContext{Technical: true}

	assert.Equal(t, domain.ToneEmpathetic, RecommendTone(domain.EmotionFrustrated, 0.7, technical))
	assert.Equal(t, domain.ToneTechnical, RecommendTone(domain.EmotionFrustrated, 0.6, technical))
	assert.Equal(t, domain.ToneReassuring, RecommendTone(domain.EmotionConfused, 0.9, technical))
	assert.Equal(t, domain.ToneProfessional, RecommendTone(domain.EmotionCalm, 0.5, domain.CulturalContext{}))
}

func TestGetEmotionalState_EmptyHistory(t *testing.T) {
	s := newTestSentimentService()

	assert.Equal(t, domain.DefaultEmotionalProfile(), s.GetEmotionalState(nil))
	assert.Equal(t, domain.DefaultEmotionalProfile(), s.GetEmotionalState([]domain.Interaction{}))

	mutated := s.GetEmotionalState(nil)
	mutated.ChurnRisk = 0.99
	mutated.CustomerType = domain.CustomerDemanding
	got := s.GetEmotionalState(nil)
	assert.Equal(t, 0.3, got.ChurnRisk)
	assert.Equal(t, domain.CustomerRegular, got.CustomerType)
}

func TestGetEmotionalState_DemandingCustomer(t *testing.T) {
	s := newTestSentimentService()

	got := s.GetEmotionalState(interactions(
		"This is terrible",
		"Still not working, ridiculous",
		"I am furious",
	))

	assert.Equal(t, domain.CustomerDemanding, got.CustomerType)
	assert.Equal(t, domain.PreferConcise, got.CommunicationPreference)
	assert.LessOrEqual(t, got.HistoricalSatisfaction, DefaultNegativeSatisfactionCap)
	assert.InDelta(t, DefaultChurnBase+DefaultChurnRecentNegative, got.ChurnRisk, 1e-9)
	assert.Equal(t, domain.TrendStable, got.SentimentTrend)
	assert.Equal(t, domain.EngagementMedium, got.EngagementLevel)
	assert.Equal(t, 3, got.InteractionCount)
}

func TestGetEmotionalState_ImprovingTrend(t *testing.T) {
	s := newTestSentimentService()

	got := s.GetEmotionalState(interactions(
		"I am furious",
		"This is terrible",
		"thanks, great",
		"perfect, thank you",
		"awesome work",
	))

	assert.Equal(t, domain.TrendImproving, got.SentimentTrend)
	assert.Equal(t, domain.CustomerPatient, got.CustomerType)
	assert.Greater(t, got.HistoricalSatisfaction, 0.5)
	assert.InDelta(t, DefaultChurnBase, got.ChurnRisk, 1e-9)
}

func TestGetEmotionalState_DecliningTrendSingleRecentNegative(t *testing.T) {
	s := newTestSentimentService()

	got := s.GetEmotionalState(interactions(
		"thanks, great",
		"perfect, thank you",
		"this is confusing",
		"not sure what happened",
		"I am furious",
	))

	assert.Equal(t, domain.TrendDeclining, got.SentimentTrend)
	assert.InDelta(t, DefaultChurnBase+DefaultChurnSingleNegative, got.ChurnRisk, 1e-9)
}

func TestGetEmotionalState_TechnicalAndExecutive(t *testing.T) {
	s := newTestSentimentService()

	got := s.GetEmotionalState(interactions("The API returns a 500 error on every request"))
	assert.Equal(t, domain.CustomerTechnical, got.CustomerType)
	assert.Equal(t, domain.PreferTechnical, got.CommunicationPreference)
	assert.Equal(t, domain.EngagementLow, got.EngagementLevel)

	long := strings.Repeat("we would like to discuss the renewal of our contract for the coming year with your account team ", 3)
	got = s.GetEmotionalState(interactions(long))
	assert.Equal(t, domain.CustomerExecutive, got.CustomerType)
	assert.Equal(t, domain.PreferStepByStep, got.CommunicationPreference)
	assert.InDelta(t, DefaultChurnBase+DefaultChurnExecutive, got.ChurnRisk, 1e-9)
}

func TestGetEmotionalState_TunableConfig(t *testing.T) {
	s := newTestSentimentService()
	s.Profile.ChurnBase = 0.9
	s.Profile.ChurnRecentNegative = 0.5

	got := s.GetEmotionalState(interactions("I am furious", "this is terrible"))

	assert.Equal(t, 1.0, got.ChurnRisk)
}

func interactions(texts ...string) []domain.Interaction {
	out := make([]domain.Interaction, len(texts))
	for i, text := range texts {
		out[i] = domain.Interaction{Content: text}
	}
	return out
}

func assertUnit(t *testing.T, v float64, name string) {
	t.Helper()
	assert.GreaterOrEqual(t, v, 0.0, name)
	assert.LessOrEqual(t, v, 1.0, name)
}
