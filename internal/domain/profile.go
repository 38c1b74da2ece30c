package domain

type CustomerType string

const (
	CustomerTechnical CustomerType = "technical"
	CustomerExecutive CustomerType = "executive"
	CustomerDemanding CustomerType = "demanding"
	CustomerPatient   CustomerType = "patient"
	CustomerRegular   CustomerType = "regular_user"
)

type CommunicationPreference string

const (
	PreferDetailed   CommunicationPreference = "detailed"
	PreferConcise    CommunicationPreference = "concise"
	PreferTechnical  CommunicationPreference = "technical"
	PreferStepByStep CommunicationPreference = "step-by-step"
)

type SentimentTrend string

const (
	TrendImproving SentimentTrend = "improving"
	TrendStable    SentimentTrend = "stable"
	TrendDeclining SentimentTrend = "declining"
)

type EngagementLevel string

const (
	EngagementLow    EngagementLevel = "low"
	EngagementMedium EngagementLevel = "medium"
	EngagementHigh   EngagementLevel = "high"
)

// Interaction is one historical customer message, oldest first in a history.
type Interaction struct {
	Content string         `json:"content"`
	Context MessageContext `json:"context"`
}

// EmotionalProfile aggregates a customer's interaction history. It is
// rebuilt from the full history on every request.
type EmotionalProfile struct {
	CustomerType            CustomerType            `json:"customer_type"`
	CommunicationPreference CommunicationPreference `json:"communication_preference"`
	HistoricalSatisfaction  float64                 `json:"historical_satisfaction"`
	ChurnRisk               float64                 `json:"churn_risk"`
	SentimentTrend          SentimentTrend          `json:"sentiment_trend"`
	EngagementLevel         EngagementLevel         `json:"engagement_level"`
	InteractionCount        int                     `json:"interaction_count"`
}

// DefaultEmotionalProfile is returned for an empty history.
func DefaultEmotionalProfile() EmotionalProfile {
	return EmotionalProfile{
		CustomerType:            CustomerRegular,
		CommunicationPreference: PreferDetailed,
		HistoricalSatisfaction:  0.5,
		ChurnRisk:               0.3,
		SentimentTrend:          TrendStable,
		EngagementLevel:         EngagementMedium,
	}
}
