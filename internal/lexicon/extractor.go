package lexicon

import (
	"strings"
	"unicode"

	"github.com/Harshitk-cp/sentinel/internal/domain"
)

const (
	keywordWeight = 1.0
	phraseWeight  = 1.5
	// Phrases longer than this count as phraseWeight.
	phraseLength = 10
	// Keywords this short must match a whole word; longer ones may match
	// as a word-start prefix (stems like "frustrat").
	wholeWordLength = 3
)

// Features is everything the extractor derives from one message.
type Features struct {
	// EmotionScores holds the length-weighted keyword hits per emotion.
	EmotionScores map[domain.Emotion]float64
	// EmotionMatches lists the matched keywords per emotion.
	EmotionMatches map[domain.Emotion][]string
	// UrgencyReducers lists matched urgency-reducing phrases.
	UrgencyReducers []string
	// Triggers is the ordered, deduplicated set of escalation triggers.
	Triggers []string

	TechnicalMarkers []string
	DirectMarkers    int
	IndirectMarkers  int
	FormalMarkers    int
	InformalMarkers  int

	WordCount int
	Polarity  domain.RawSentiment
}

// HasEscalationTrigger reports whether any escalation trigger matched.
func (f Features) HasEscalationTrigger() bool {
	return len(f.Triggers) > 0
}

// TotalEmotionScore is the sum of all emotion scores, taken in the fixed
// emotion order.
func (f Features) TotalEmotionScore() float64 {
	var total float64
	for _, e := range domain.Emotions() {
		total += f.EmotionScores[e]
	}
	return total
}

// Extract maps raw text to lexical features.
func Extract(text string) Features {
	lower := strings.ToLower(text)

	f := Features{
		EmotionScores:  make(map[domain.Emotion]float64, len(emotionKeywords)),
		EmotionMatches: make(map[domain.Emotion][]string, len(emotionKeywords)),
		Triggers:       []string{},
	}

	for _, emotion := range domain.Emotions() {
		var score float64
		var matched []string
		for _, kw := range emotionKeywords[emotion] {
			n := countMatches(lower, kw)
			if n == 0 {
				continue
			}
			score += float64(n) * Weight(kw)
			matched = append(matched, kw)
		}
		f.EmotionScores[emotion] = score
		if len(matched) > 0 {
			f.EmotionMatches[emotion] = matched
		}
	}

	f.UrgencyReducers = matchAll(lower, urgencyReducers)
	f.Triggers = extractTriggers(lower)
	f.TechnicalMarkers = matchAll(lower, technicalMarkers)
	f.DirectMarkers = countAll(lower, directMarkers)
	f.IndirectMarkers = countAll(lower, indirectMarkers)
	f.FormalMarkers = countAll(lower, formalMarkers)
	f.InformalMarkers = countAll(lower, informalMarkers)

	words := tokenize(lower)
	f.WordCount = len(words)
	f.Polarity = score(words)

	return f
}

// Weight returns the contribution of one keyword hit.
func Weight(keyword string) float64 {
	if len(keyword) > phraseLength {
		return phraseWeight
	}
	return keywordWeight
}

// Triggers returns only the escalation triggers found in text.
func Triggers(text string) []string {
	return extractTriggers(strings.ToLower(text))
}

// IsTechnical reports whether text uses technical language.
func IsTechnical(text string) bool {
	return len(matchAll(strings.ToLower(text), technicalMarkers)) > 0
}

func extractTriggers(lower string) []string {
	seen := make(map[string]bool)
	triggers := []string{}
	for _, phrase := range escalationTriggers {
		if seen[phrase] || countMatches(lower, phrase) == 0 {
			continue
		}
		seen[phrase] = true
		triggers = append(triggers, phrase)
	}

	for _, rule := range stitchRules {
		if seen[rule.phrase] || !allPresent(lower, rule.parts) {
			continue
		}
		if coveredBy(triggers, rule.parts) {
			continue
		}
		seen[rule.phrase] = true
		triggers = append(triggers, rule.phrase)
	}
	return triggers
}

func allPresent(lower string, parts []string) bool {
	for _, p := range parts {
		if countMatches(lower, p) == 0 {
			return false
		}
	}
	return true
}

// coveredBy reports whether a single matched trigger already contains
// every part of a stitch rule.
func coveredBy(triggers []string, parts []string) bool {
	for _, t := range triggers {
		all := true
		for _, p := range parts {
			if !strings.Contains(t, p) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

func matchAll(lower string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if countMatches(lower, kw) > 0 {
			matched = append(matched, kw)
		}
	}
	return matched
}

func countAll(lower string, keywords []string) int {
	total := 0
	for _, kw := range keywords {
		total += countMatches(lower, kw)
	}
	return total
}

// countMatches counts occurrences of keyword in lower that start at a word
// boundary. Short keywords must also end at one.
func countMatches(lower, keyword string) int {
	if keyword == "" {
		return 0
	}
	count := 0
	offset := 0
	for {
		idx := strings.Index(lower[offset:], keyword)
		if idx < 0 {
			return count
		}
		start := offset + idx
		end := start + len(keyword)
		if atBoundary(lower, start-1) && (len(keyword) > wholeWordLength || atBoundary(lower, end)) {
			count++
		}
		offset = start + 1
	}
}

// atBoundary reports whether the byte at i is outside the string or not
// part of a word.
func atBoundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	r := rune(s[i])
	if r >= 0x80 {
		return false
	}
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
}

func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func score(words []string) domain.RawSentiment {
	if len(words) == 0 {
		return domain.RawSentiment{}
	}
	var total float64
	for _, w := range words {
		total += polarity[w]
	}
	return domain.RawSentiment{
		Score:       total,
		Comparative: total / float64(len(words)),
	}
}
