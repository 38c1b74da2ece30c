package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TicketResolution is the outcome of a resolved ticket reported by the host.
type TicketResolution struct {
	TicketID              string    `json:"ticket_id"`
	Department            string    `json:"department"`
	Category              string    `json:"category"`
	Priority              string    `json:"priority"`
	AgentID               string    `json:"agent_id"`
	ResolutionTimeMinutes float64   `json:"resolution_time_minutes"`
	CSAT                  float64   `json:"csat"`
	Escalated             bool      `json:"escalated"`
	Reopened              bool      `json:"reopened"`
	SolutionSummary       string    `json:"solution_summary"`
	CustomerMessage       string    `json:"customer_message,omitempty"`
	ResolvedAt            time.Time `json:"resolved_at"`
}

// TrainingRecord is an append-only ticket outcome.
type TrainingRecord struct {
	ID                    uuid.UUID `json:"id"`
	TicketID              string    `json:"ticket_id,omitempty"`
	Department            string    `json:"department"`
	Category              string    `json:"category"`
	Priority              string    `json:"priority"`
	AgentID               string    `json:"agent_id"`
	ResolutionTimeMinutes float64   `json:"resolution_time_minutes"`
	CSAT                  float64   `json:"csat"`
	Escalated             bool      `json:"escalated"`
	Reopened              bool      `json:"reopened"`
	SolutionSummary       string    `json:"solution_summary"`
	Timestamp             time.Time `json:"timestamp"`
}

// PatternKey is the department+category key used for resolution lookups.
func (r TrainingRecord) PatternKey() string {
	return PatternKey(r.Department, r.Category)
}

// PatternKey is case-insensitive.
func PatternKey(department, category string) string {
	return strings.ToLower(strings.TrimSpace(department)) + "/" + strings.ToLower(strings.TrimSpace(category))
}

type AgentBehavior struct {
	ID                  uuid.UUID `json:"id"`
	AgentID             string    `json:"agent_id"`
	Department          string    `json:"department"`
	Category            string    `json:"category"`
	Action              string    `json:"action"`
	Successful          bool      `json:"successful"`
	ResponseTimeMinutes float64   `json:"response_time_minutes"`
	CSAT                float64   `json:"csat,omitempty"`
	Timestamp           time.Time `json:"timestamp"`
}

type BehaviorPattern struct {
	Action      string  `json:"action"`
	Occurrences int     `json:"occurrences"`
	SuccessRate float64 `json:"success_rate"`
}

type AgentProfile struct {
	AgentID           string            `json:"agent_id"`
	Strengths         []string          `json:"strengths"`
	ImprovementAreas  []string          `json:"improvement_areas"`
	AvgResolutionTime float64           `json:"avg_resolution_time"`
	AvgCSAT           float64           `json:"avg_csat"`
	Specializations   []string          `json:"specializations"`
	BehaviorPatterns  []BehaviorPattern `json:"behavior_patterns"`
	TicketsHandled    int               `json:"tickets_handled"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

type EscalationPattern struct {
	ID           uuid.UUID `json:"id"`
	Department   string    `json:"department"`
	Category     string    `json:"category"`
	Trigger      string    `json:"trigger"`
	CustomerTier string    `json:"customer_tier,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

type LearningResult struct {
	Success  bool      `json:"success"`
	RecordID uuid.UUID `json:"record_id,omitempty"`
	Insights []string  `json:"insights"`
	Error    string    `json:"error,omitempty"`
}

type TicketContext struct {
	Category        string         `json:"category"`
	Priority        string         `json:"priority"`
	CustomerMessage string         `json:"customer_message,omitempty"`
	Context         MessageContext `json:"context"`
}

type ResolutionSummary struct {
	AgentID               string  `json:"agent_id"`
	SolutionSummary       string  `json:"solution_summary"`
	ResolutionTimeMinutes float64 `json:"resolution_time_minutes"`
	CSAT                  float64 `json:"csat"`
}

type RecommendationBundle struct {
	AgentID                    string              `json:"agent_id"`
	Department                 string              `json:"department"`
	SuggestedActions           []string            `json:"suggested_actions"`
	SimilarResolutions         []ResolutionSummary `json:"similar_resolutions"`
	EstimatedResolutionMinutes float64             `json:"estimated_resolution_minutes"`
	Confidence                 float64             `json:"confidence"`
	EscalationRisk             float64             `json:"escalation_risk"`
	PredictedCSAT              float64             `json:"predicted_csat"`
	Degraded                   bool                `json:"degraded"`
}

type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls in [Start, End]. A zero bound is open.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

type PerformanceMetrics struct {
	TotalTickets         int     `json:"total_tickets"`
	AvgResolutionMinutes float64 `json:"avg_resolution_minutes"`
	AvgCSAT              float64 `json:"avg_csat"`
	EscalationRate       float64 `json:"escalation_rate"`
	ReopenRate           float64 `json:"reopen_rate"`
	FirstContactResolved float64 `json:"first_contact_resolved"`
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type TrendAnalysis struct {
	ResolutionTime SentimentTrend  `json:"resolution_time"`
	CSAT           SentimentTrend  `json:"csat"`
	Escalations    SentimentTrend  `json:"escalations"`
	TopCategories  []CategoryCount `json:"top_categories"`
}

type DepartmentAnalytics struct {
	Department              string             `json:"department"`
	TimeRange               TimeRange          `json:"time_range"`
	HasData                 bool               `json:"has_data"`
	Performance             PerformanceMetrics `json:"performance"`
	Trends                  TrendAnalysis      `json:"trends"`
	TrainingRecommendations []string           `json:"training_recommendations"`
}

type ProactiveContext struct {
	Department      string    `json:"department"`
	OpenTickets     int       `json:"open_tickets"`
	AvailableAgents int       `json:"available_agents"`
	Now             time.Time `json:"now"`
}

type ProactiveSuggestions struct {
	PreventiveActions    []string `json:"preventive_actions"`
	ResourceOptimization []string `json:"resource_optimization"`
	TrainingNeeds        []string `json:"training_needs"`
}

// EmptyProactiveSuggestions has the fixed shape with empty lists.
func EmptyProactiveSuggestions() ProactiveSuggestions {
	return ProactiveSuggestions{
		PreventiveActions:    []string{},
		ResourceOptimization: []string{},
		TrainingNeeds:        []string{},
	}
}
