package service

import (
	"strings"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/Harshitk-cp/sentinel/internal/lexicon"
	"go.uber.org/zap"
)

const (
	// Profile derivation defaults. These are heuristics and are tunable
	// through ProfileConfig.
	DefaultRecencyDecay            = 0.8
	DefaultNegativeSatisfactionCap = 0.4
	DefaultChurnBase               = 0.3
	DefaultChurnRecentNegative     = 0.3
	DefaultChurnSingleNegative     = 0.15
	DefaultChurnExecutive          = 0.2
	DefaultTrendThreshold          = 0.2
	DefaultExecutiveWordCount      = 50
	DefaultDetailedWordCount       = 80
	DefaultConciseWordCount        = 20
	DefaultHighEngagement          = 10
	DefaultMediumEngagement        = 3

	empatheticIntensity = 0.6
	recentWindow        = 3
)

// emotionSatisfaction maps an emotion to the satisfaction score used for
// historical satisfaction and trend.
var emotionSatisfaction = map[domain.Emotion]float64{
	domain.EmotionSatisfied:  0.9,
	domain.EmotionCalm:       0.7,
	domain.EmotionConfused:   0.5,
	domain.EmotionUrgent:     0.4,
	domain.EmotionFrustrated: 0.25,
	domain.EmotionAngry:      0.1,
}

type ProfileConfig struct {
	RecencyDecay            float64
	NegativeSatisfactionCap float64
	ChurnBase               float64
	ChurnRecentNegative     float64
	ChurnSingleNegative     float64
	ChurnExecutive          float64
	TrendThreshold          float64
	ExecutiveWordCount      float64
	DetailedWordCount       float64
	ConciseWordCount        float64
	HighEngagement          int
	MediumEngagement        int
}

func DefaultProfileConfig() ProfileConfig {
	return ProfileConfig{
		RecencyDecay:            DefaultRecencyDecay,
		NegativeSatisfactionCap: DefaultNegativeSatisfactionCap,
		ChurnBase:               DefaultChurnBase,
		ChurnRecentNegative:     DefaultChurnRecentNegative,
		ChurnSingleNegative:     DefaultChurnSingleNegative,
		ChurnExecutive:          DefaultChurnExecutive,
		TrendThreshold:          DefaultTrendThreshold,
		ExecutiveWordCount:      DefaultExecutiveWordCount,
		DetailedWordCount:       DefaultDetailedWordCount,
		ConciseWordCount:        DefaultConciseWordCount,
		HighEngagement:          DefaultHighEngagement,
		MediumEngagement:        DefaultMediumEngagement,
	}
}

// SentimentService runs the per-message pipeline and derives customer
// profiles from interaction history. It holds no mutable state and is safe
// for concurrent use.
type SentimentService struct {
	emotions   *EmotionClassifier
	cultural   *CulturalAnalyzer
	escalation *EscalationPredictor
	logger     *zap.Logger

	Profile ProfileConfig
}

func NewSentimentService(logger *zap.Logger) *SentimentService {
	return &SentimentService{
		emotions:   NewEmotionClassifier(),
		cultural:   NewCulturalAnalyzer(),
		escalation: NewEscalationPredictor(logger),
		logger:     logger,
		Profile:    DefaultProfileConfig(),
	}
}

// AnalyzeSentiment judges a single message. Unjudgeable input and internal
// failures yield domain.NeutralSentiment.
func (s *SentimentService) AnalyzeSentiment(text string, msgCtx domain.MessageContext) (result domain.SentimentResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("sentiment analysis panicked", zap.Any("panic", r))
			result = domain.NeutralSentiment()
		}
	}()

	if strings.TrimSpace(text) == "" {
		return domain.NeutralSentiment()
	}

	features := lexicon.Extract(text)
	emotion := s.emotions.ClassifyFeatures(features)
	cultural := s.cultural.AnalyzeFeatures(features, msgCtx)

	triggers := features.Triggers
	if triggers == nil {
		triggers = []string{}
	}

	result = domain.SentimentResult{
		PrimaryEmotion:     emotion.PrimaryEmotion,
		Intensity:          domain.Clamp01(emotion.Intensity),
		Confidence:         domain.Clamp01(emotion.Confidence),
		EmotionalFactors:   emotion.Factors.Clamp(),
		EscalationTriggers: triggers,
		CulturalContext:    cultural,
		RawSentiment:       features.Polarity,
	}
	result.RecommendedTone = RecommendTone(result.PrimaryEmotion, result.Intensity, cultural)
	result.EscalationRisk = s.escalation.Predict(&result, msgCtx)
	result.PriorityAdjustment = PriorityAdjustment(result.EscalationRisk.RiskScore, result.PrimaryEmotion, result.EmotionalFactors)

	return result
}

// PredictEscalationRisk scores an existing judgment against new metadata.
func (s *SentimentService) PredictEscalationRisk(result *domain.SentimentResult, meta domain.MessageContext) domain.EscalationRisk {
	return s.escalation.Predict(result, meta)
}

// RecommendTone picks the agent response register. Rules are evaluated in
// order and the first match wins.
func RecommendTone(emotion domain.Emotion, intensity float64, cultural domain.CulturalContext) domain.Tone {
	switch {
	case emotion.IsNegative() && intensity > empatheticIntensity:
		return domain.ToneEmpathetic
	case emotion == domain.EmotionConfused:
		return domain.ToneReassuring
	case cultural.Technical:
		return domain.ToneTechnical
	default:
		return domain.ToneProfessional
	}
}

// PriorityAdjustment returns the queue priority delta, bounded to
// [MinPriorityAdjustment, MaxPriorityAdjustment].
func PriorityAdjustment(riskScore float64, emotion domain.Emotion, f domain.EmotionalFactors) int {
	adj := 0
	switch {
	case riskScore > 0.7:
		adj += 2
	case riskScore > 0.5:
		adj++
	}
	if f.Urgency > 0.7 {
		adj++
	}
	if f.Frustration > 0.8 {
		adj++
	}
	if emotion == domain.EmotionSatisfied && f.Urgency < 0.3 {
		adj--
	}
	return domain.ClampInt(adj, domain.MinPriorityAdjustment, domain.MaxPriorityAdjustment)
}

// GetEmotionalState rebuilds a customer profile from the full history,
// oldest interaction first. An empty history yields
// domain.DefaultEmotionalProfile().
func (s *SentimentService) GetEmotionalState(history []domain.Interaction) (profile domain.EmotionalProfile) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("emotional state derivation panicked", zap.Any("panic", r))
			profile = domain.DefaultEmotionalProfile()
		}
	}()

	if len(history) == 0 {
		return domain.DefaultEmotionalProfile()
	}

	cfg := s.Profile
	n := len(history)

	results := make([]domain.SentimentResult, n)
	scores := make([]float64, n)
	var negatives, totalWords int
	technical := false
	for i, in := range history {
		results[i] = s.AnalyzeSentiment(in.Content, in.Context)
		scores[i] = emotionSatisfaction[results[i].PrimaryEmotion]
		if results[i].PrimaryEmotion.IsNegative() {
			negatives++
		}
		if results[i].CulturalContext.Technical {
			technical = true
		}
		totalWords += len(strings.Fields(in.Content))
	}

	avgWords := float64(totalWords) / float64(n)
	mostlyNegative := float64(negatives)/float64(n) >= 0.5

	customerType := domain.CustomerPatient
	switch {
	case technical:
		customerType = domain.CustomerTechnical
	case avgWords > cfg.ExecutiveWordCount:
		customerType = domain.CustomerExecutive
	case mostlyNegative:
		customerType = domain.CustomerDemanding
	}

	satisfaction := recencyWeighted(scores, cfg.RecencyDecay)
	if mostlyNegative && satisfaction > cfg.NegativeSatisfactionCap {
		satisfaction = cfg.NegativeSatisfactionCap
	}

	return domain.EmotionalProfile{
		CustomerType:            customerType,
		CommunicationPreference: communicationPreference(technical, avgWords, cfg),
		HistoricalSatisfaction:  domain.Clamp01(satisfaction),
		ChurnRisk:               churnRisk(results, customerType, cfg),
		SentimentTrend:          sentimentTrend(scores, cfg.TrendThreshold),
		EngagementLevel:         engagementLevel(n, cfg),
		InteractionCount:        n,
	}
}

func communicationPreference(technical bool, avgWords float64, cfg ProfileConfig) domain.CommunicationPreference {
	switch {
	case technical:
		return domain.PreferTechnical
	case avgWords > cfg.DetailedWordCount:
		return domain.PreferDetailed
	case avgWords < cfg.ConciseWordCount:
		return domain.PreferConcise
	default:
		return domain.PreferStepByStep
	}
}

// recencyWeighted averages scores with the newest entry weighted 1 and each
// older entry weighted decay times the next newer one.
func recencyWeighted(scores []float64, decay float64) float64 {
	var sum, weights float64
	w := 1.0
	for i := len(scores) - 1; i >= 0; i-- {
		sum += scores[i] * w
		weights += w
		w *= decay
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

func churnRisk(results []domain.SentimentResult, customerType domain.CustomerType, cfg ProfileConfig) float64 {
	start := len(results) - recentWindow
	if start < 0 {
		start = 0
	}
	recentNegative := 0
	for _, r := range results[start:] {
		if r.PrimaryEmotion.IsNegative() {
			recentNegative++
		}
	}

	risk := cfg.ChurnBase
	switch {
	case recentNegative >= 2:
		risk += cfg.ChurnRecentNegative
	case recentNegative == 1:
		risk += cfg.ChurnSingleNegative
	}
	if customerType == domain.CustomerExecutive {
		risk += cfg.ChurnExecutive
	}
	return domain.Clamp01(risk)
}

// sentimentTrend compares the last three interactions with all earlier ones.
// Histories with no earlier interactions are stable.
func sentimentTrend(scores []float64, threshold float64) domain.SentimentTrend {
	if len(scores) <= recentWindow {
		return domain.TrendStable
	}
	split := len(scores) - recentWindow
	delta := mean(scores[split:]) - mean(scores[:split])
	switch {
	case delta > threshold:
		return domain.TrendImproving
	case delta < -threshold:
		return domain.TrendDeclining
	default:
		return domain.TrendStable
	}
}

func engagementLevel(n int, cfg ProfileConfig) domain.EngagementLevel {
	switch {
	case n >= cfg.HighEngagement:
		return domain.EngagementHigh
	case n >= cfg.MediumEngagement:
		return domain.EngagementMedium
	default:
		return domain.EngagementLow
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
