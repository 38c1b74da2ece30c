package service

import (
	"fmt"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"go.uber.org/zap"
)

// Additive escalation weights.
const (
	WeightAngry           = 0.4
	WeightFrustrated      = 0.3
	WeightConfused        = 0.25
	WeightHighIntensity   = 0.2
	WeightPerTrigger      = 0.15
	WeightEnterprise      = 0.1
	WeightPriorEscalation = 0.2
	WeightStaleTicket     = 0.15
	WeightRepeatReopen    = 0.1
	WeightUrgency         = 0.2
	WeightFrustration     = 0.25
	WeightConfusion       = 0.2

	highIntensityThreshold = 0.7
	staleTicketHours       = 48
)

var riskRecommendations = map[domain.RiskLevel][]string{
	domain.RiskCritical: {
		"Escalate to a senior agent immediately",
		"Notify the team manager",
		"Expedite resolution and schedule a follow-up within the hour",
	},
	domain.RiskHigh: {
		"Monitor the conversation closely",
		"Use an empathetic tone",
		"Provide frequent status updates",
	},
	domain.RiskMedium: {
		"Acknowledge the customer's concerns explicitly",
	},
	domain.RiskLow: {
		"Follow the standard support process",
	},
}

const empatheticAddendum = "Acknowledge the customer's feelings before troubleshooting"

// EscalationPredictor turns a sentiment judgment and ticket metadata into a
// bounded risk score.
type EscalationPredictor struct {
	logger *zap.Logger
}

func NewEscalationPredictor(logger *zap.Logger) *EscalationPredictor {
	return &EscalationPredictor{logger: logger}
}

// Predict never fails: any internal error yields the fallback risk.
func (p *EscalationPredictor) Predict(result *domain.SentimentResult, meta domain.MessageContext) (risk domain.EscalationRisk) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("escalation prediction panicked", zap.Any("panic", r))
			risk = domain.FallbackEscalationRisk()
		}
	}()

	if result == nil {
		p.logger.Debug("escalation prediction without sentiment, using fallback")
		return domain.FallbackEscalationRisk()
	}

	factors, total := escalationFactors(result, meta)
	score := domain.Clamp01(total)
	level := domain.ComputeRiskLevel(score)

	recs := append([]string(nil), riskRecommendations[level]...)
	if result.RecommendedTone == domain.ToneEmpathetic {
		recs = append(recs, empatheticAddendum)
	}

	return domain.EscalationRisk{
		RiskScore:       score,
		RiskLevel:       level,
		Recommendations: recs,
		Factors:         factors,
	}
}

// EscalationFactors returns every non-zero additive contribution by name.
func EscalationFactors(result *domain.SentimentResult, meta domain.MessageContext) map[string]float64 {
	factors, _ := escalationFactors(result, meta)
	return factors
}

// escalationFactors also returns the unclamped total, summed in formula
// order so the score is bit-for-bit reproducible.
func escalationFactors(result *domain.SentimentResult, meta domain.MessageContext) (map[string]float64, float64) {
	factors := make(map[string]float64)
	var total float64
	add := func(name string, v float64) {
		if v != 0 {
			factors[name] += v
			total += v
		}
	}

	switch result.PrimaryEmotion {
	case domain.EmotionAngry:
		add("emotion_angry", WeightAngry)
	case domain.EmotionFrustrated:
		add("emotion_frustrated", WeightFrustrated)
	case domain.EmotionConfused:
		add("emotion_confused", WeightConfused)
	}

	if result.Intensity > highIntensityThreshold {
		add("high_intensity", WeightHighIntensity)
	}

	seen := make(map[string]bool, len(result.EscalationTriggers))
	for _, t := range result.EscalationTriggers {
		if seen[t] {
			continue
		}
		seen[t] = true
		add(fmt.Sprintf("trigger:%s", t), WeightPerTrigger)
	}

	if meta.CustomerTier == domain.CustomerTierEnterprise {
		add("enterprise_customer", WeightEnterprise)
	}
	if meta.PreviousEscalations > 0 {
		add("previous_escalations", WeightPriorEscalation)
	}
	if meta.TicketAgeHours > staleTicketHours {
		add("ticket_age", WeightStaleTicket)
	}
	if meta.ReopenCount > 1 {
		add("reopened", WeightRepeatReopen)
	}

	add("urgency", WeightUrgency*result.EmotionalFactors.Urgency)
	add("frustration", WeightFrustration*result.EmotionalFactors.Frustration)
	add("confusion", WeightConfusion*result.EmotionalFactors.Confusion)

	return factors, total
}
