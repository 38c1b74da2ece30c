package service

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"go.uber.org/zap"
)

// Engine is the in-process API consumed by the host ticketing application.
// Judgment methods never return errors; they degrade to documented defaults.
type Engine struct {
	sentiment *SentimentService
	learning  *LearningService
	models    *ModelManager
	logger    *zap.Logger
}

func NewEngine(models *ModelManager, logger *zap.Logger) *Engine {
	if models == nil {
		models = NewModelManager(nil, logger)
	}
	sentiment := NewSentimentService(logger)
	learning := NewLearningService(models, logger)
	learning.SetSentimentService(sentiment)
	return &Engine{
		sentiment: sentiment,
		learning:  learning,
		models:    models,
		logger:    logger,
	}
}

func (e *Engine) Sentiment() *SentimentService { return e.sentiment }
func (e *Engine) Learning() *LearningService   { return e.learning }
func (e *Engine) Models() *ModelManager        { return e.models }

func (e *Engine) AnalyzeSentiment(text string, msgCtx domain.MessageContext) domain.SentimentResult {
	return e.sentiment.AnalyzeSentiment(text, msgCtx)
}

func (e *Engine) GetEmotionalState(history []domain.Interaction) domain.EmotionalProfile {
	return e.sentiment.GetEmotionalState(history)
}

func (e *Engine) PredictEscalationRisk(result *domain.SentimentResult, meta domain.MessageContext) domain.EscalationRisk {
	return e.sentiment.PredictEscalationRisk(result, meta)
}

// LearnFromTicketResolution records a resolved ticket. When the ticket
// carries the customer's message its sentiment is added to the insights.
func (e *Engine) LearnFromTicketResolution(ctx context.Context, res domain.TicketResolution) domain.LearningResult {
	result := e.learning.ProcessTicketResolution(ctx, res)
	if !result.Success || res.CustomerMessage == "" {
		return result
	}
	judged := e.sentiment.AnalyzeSentiment(res.CustomerMessage, domain.MessageContext{})
	insight := fmt.Sprintf("Customer message read as %s at %.0f%% intensity", judged.PrimaryEmotion, 100*judged.Intensity)
	if n := len(judged.EscalationTriggers); n > 0 {
		insight += fmt.Sprintf(" with %d escalation triggers", n)
	}
	result.Insights = append(result.Insights, insight)
	return result
}

func (e *Engine) RecordAgentBehavior(ctx context.Context, b domain.AgentBehavior) domain.LearningResult {
	return e.learning.ProcessAgentBehavior(ctx, b)
}

func (e *Engine) RecordEscalationPattern(ctx context.Context, p domain.EscalationPattern) domain.LearningResult {
	return e.learning.ProcessEscalationPattern(ctx, p)
}

func (e *Engine) GetPersonalizedRecommendations(ctx context.Context, agentID, department string, tc domain.TicketContext) domain.RecommendationBundle {
	return e.learning.GetAgentRecommendations(ctx, agentID, department, tc)
}

func (e *Engine) GetDepartmentInsights(department string, tr domain.TimeRange) domain.DepartmentAnalytics {
	return e.learning.GetDepartmentAnalytics(department, tr)
}

func (e *Engine) GenerateProactiveSuggestions(pc domain.ProactiveContext) domain.ProactiveSuggestions {
	return e.learning.GenerateProactiveSuggestions(pc)
}
