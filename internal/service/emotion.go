package service

import (
	"math"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/Harshitk-cp/sentinel/internal/lexicon"
)

const (
	// Frustration co-occurring with anger compounds anger.
	FrustrationAngerBoost = 0.5
	// Urgency co-occurring with a negative emotion compounds anger.
	UrgencyAngerBoost = 0.3

	DefaultEmotion           = domain.EmotionCalm
	DefaultEmotionConfidence = 0.3
	DefaultEmotionIntensity  = 0.5

	factorPerHit      = 0.3
	angerFrustration  = 0.2
	urgencyReducerHit = 0.4
	intensityDivisor  = 3.0
	confidenceDivisor = 4.0
)

// EmotionResult is the classifier output for one message.
type EmotionResult struct {
	PrimaryEmotion domain.Emotion
	Intensity      float64
	Confidence     float64
	AllEmotions    map[domain.Emotion]float64
	Factors        domain.EmotionalFactors
}

// EmotionClassifier scores the six emotions from lexical features.
type EmotionClassifier struct{}

func NewEmotionClassifier() *EmotionClassifier {
	return &EmotionClassifier{}
}

// Classify extracts features from text and classifies them.
func (c *EmotionClassifier) Classify(text string) EmotionResult {
	return c.ClassifyFeatures(lexicon.Extract(text))
}

// ClassifyFeatures scores each emotion by its weighted keyword hits, applies
// the cross-emotion boosts and picks the arg-max.
func (c *EmotionClassifier) ClassifyFeatures(f lexicon.Features) EmotionResult {
	scores := make(map[domain.Emotion]float64, len(f.EmotionScores))
	for _, e := range domain.Emotions() {
		scores[e] = f.EmotionScores[e]
	}

	if scores[domain.EmotionFrustrated] > 0 && scores[domain.EmotionAngry] > 0 {
		scores[domain.EmotionAngry] += FrustrationAngerBoost
	}
	if scores[domain.EmotionUrgent] > 0 && (scores[domain.EmotionFrustrated] > 0 || scores[domain.EmotionAngry] > 0) {
		scores[domain.EmotionAngry] += UrgencyAngerBoost
	}

	factors := emotionalFactors(f)

	var total, best float64
	primary := DefaultEmotion
	for _, e := range domain.Emotions() {
		s := scores[e]
		total += s
		// Strict comparison keeps the earliest emotion on ties.
		if s > best {
			best = s
			primary = e
		}
	}

	if total == 0 {
		return EmotionResult{
			PrimaryEmotion: DefaultEmotion,
			Intensity:      DefaultEmotionIntensity,
			Confidence:     DefaultEmotionConfidence,
			AllEmotions:    scores,
			Factors:        factors,
		}
	}

	return EmotionResult{
		PrimaryEmotion: primary,
		Intensity:      math.Min(best/intensityDivisor, 1.0),
		Confidence:     math.Min(total/confidenceDivisor, 1.0),
		AllEmotions:    scores,
		Factors:        factors,
	}
}

// emotionalFactors accumulates each factor independently from raw hits.
// Urgency reducers subtract from urgency rather than merely not adding.
func emotionalFactors(f lexicon.Features) domain.EmotionalFactors {
	s := f.EmotionScores
	factors := domain.EmotionalFactors{
		Urgency:      s[domain.EmotionUrgent]*factorPerHit - float64(len(f.UrgencyReducers))*urgencyReducerHit,
		Frustration:  s[domain.EmotionFrustrated]*factorPerHit + s[domain.EmotionAngry]*angerFrustration,
		Satisfaction: s[domain.EmotionSatisfied] * factorPerHit,
		Confusion:    s[domain.EmotionConfused] * factorPerHit,
	}
	return factors.Clamp()
}
