package domain

// Emotion is the primary affect label assigned to a single message.
type Emotion string

const (
	EmotionFrustrated Emotion = "frustrated"
	EmotionAngry      Emotion = "angry"
	EmotionConfused   Emotion = "confused"
	EmotionSatisfied  Emotion = "satisfied"
	EmotionUrgent     Emotion = "urgent"
	EmotionCalm       Emotion = "calm"
)

// Emotions returns all emotions in declaration order. The order is the
// tie-break order used by the classifier.
func Emotions() []Emotion {
	return []Emotion{
		EmotionFrustrated,
		EmotionAngry,
		EmotionConfused,
		EmotionSatisfied,
		EmotionUrgent,
		EmotionCalm,
	}
}

func (e Emotion) IsValid() bool {
	switch e {
	case EmotionFrustrated, EmotionAngry, EmotionConfused, EmotionSatisfied, EmotionUrgent, EmotionCalm:
		return true
	}
	return false
}

// IsNegative reports whether the emotion counts toward a negative history.
func (e Emotion) IsNegative() bool {
	return e == EmotionAngry || e == EmotionFrustrated
}

type Tone string

const (
	ToneEmpathetic   Tone = "empathetic"
	ToneReassuring   Tone = "reassuring"
	ToneTechnical    Tone = "technical"
	ToneProfessional Tone = "professional"
)

type CommunicationStyle string

const (
	StyleDirect   CommunicationStyle = "direct"
	StyleIndirect CommunicationStyle = "indirect"
	StyleBalanced CommunicationStyle = "balanced"
)

type FormalityLevel string

const (
	FormalityFormal   FormalityLevel = "formal"
	FormalityInformal FormalityLevel = "informal"
	FormalityNeutral  FormalityLevel = "neutral"
)

// CulturalMarkers is a fixed-shape placeholder kept stable for downstream
// consumers until richer locale data is available.
type CulturalMarkers struct {
	TimeOrientation      string `json:"time_orientation"`
	ContextLevel         string `json:"context_level"`
	HierarchyExpectation string `json:"hierarchy_expectation"`
}

type CulturalContext struct {
	CommunicationStyle CommunicationStyle `json:"communication_style"`
	FormalityLevel     FormalityLevel     `json:"formality_level"`
	Technical          bool               `json:"technical"`
	CulturalMarkers    CulturalMarkers    `json:"cultural_markers"`
}

// EmotionalFactors are accumulated independently; they do not sum to 1.
type EmotionalFactors struct {
	Urgency      float64 `json:"urgency"`
	Frustration  float64 `json:"frustration"`
	Satisfaction float64 `json:"satisfaction"`
	Confusion    float64 `json:"confusion"`
}

// Clamp bounds every factor to [0,1].
func (f EmotionalFactors) Clamp() EmotionalFactors {
	return EmotionalFactors{
		Urgency:      Clamp01(f.Urgency),
		Frustration:  Clamp01(f.Frustration),
		Satisfaction: Clamp01(f.Satisfaction),
		Confusion:    Clamp01(f.Confusion),
	}
}

// RawSentiment is the lexical polarity of a message. It is kept for audit
// and never used in decisions.
type RawSentiment struct {
	Score       float64 `json:"score"`
	Comparative float64 `json:"comparative"`
}

// MessageContext is the caller-supplied metadata that accompanies a message.
type MessageContext struct {
	CustomerTier        string  `json:"customer_tier,omitempty"`
	PreviousEscalations int     `json:"previous_escalations,omitempty"`
	TicketAgeHours      float64 `json:"ticket_age_hours,omitempty"`
	ReopenCount         int     `json:"reopen_count,omitempty"`
	Channel             string  `json:"channel,omitempty"`
	Locale              string  `json:"locale,omitempty"`
}

const CustomerTierEnterprise = "enterprise"

// SentimentResult is the per-message judgment. It is a value type and is
// never mutated after it is produced.
type SentimentResult struct {
	PrimaryEmotion     Emotion          `json:"primary_emotion"`
	Intensity          float64          `json:"intensity"`
	Confidence         float64          `json:"confidence"`
	EmotionalFactors   EmotionalFactors `json:"emotional_factors"`
	EscalationTriggers []string         `json:"escalation_triggers"`
	RecommendedTone    Tone             `json:"recommended_tone"`
	PriorityAdjustment int              `json:"priority_adjustment"`
	CulturalContext    CulturalContext  `json:"cultural_context"`
	EscalationRisk     EscalationRisk   `json:"escalation_risk"`
	RawSentiment       RawSentiment     `json:"raw_sentiment"`
}

const (
	MinPriorityAdjustment = -2
	MaxPriorityAdjustment = 3
)

// NeutralSentiment is returned for input that cannot be judged.
func NeutralSentiment() SentimentResult {
	return SentimentResult{
		PrimaryEmotion:     EmotionCalm,
		Intensity:          0.5,
		Confidence:         0.3,
		EscalationTriggers: []string{},
		RecommendedTone:    ToneProfessional,
		CulturalContext:    NeutralCulturalContext(),
		EscalationRisk:     FallbackEscalationRisk(),
	}
}

func NeutralCulturalContext() CulturalContext {
	return CulturalContext{
		CommunicationStyle: StyleBalanced,
		FormalityLevel:     FormalityNeutral,
		CulturalMarkers:    DefaultCulturalMarkers(),
	}
}

func DefaultCulturalMarkers() CulturalMarkers {
	return CulturalMarkers{
		TimeOrientation:      "monochronic",
		ContextLevel:         "low",
		HierarchyExpectation: "moderate",
	}
}

// Clamp01 bounds v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
