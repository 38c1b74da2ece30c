// Package lexicon extracts keyword, phrase and trigger features from raw
// support-interaction text. Everything in this package is pure.
package lexicon

import "github.com/Harshitk-cp/sentinel/internal/domain"

// emotionKeywords maps each emotion to the words and phrases that signal it.
// A keyword should not be a word-start prefix of another keyword in the same
// list, or a single occurrence in text is counted twice.
var emotionKeywords = map[domain.Emotion][]string{
	domain.EmotionFrustrated: {
		"frustrat", "annoy", "fed up", "not working", "still broken",
		"doesn't work", "does not work", "keeps happening", "tired of",
		"waste of time", "again and again", "ridiculous", "irritat",
	},
	domain.EmotionAngry: {
		"angry", "furious", "outraged", "unacceptable", "terrible",
		"awful", "horrible", "worst", "disgust", "livid", "pissed",
		"incompetent", "fed up with you",
	},
	domain.EmotionConfused: {
		"confus", "don't understand", "do not understand", "unclear",
		"how do i", "what does", "not sure", "makes no sense",
		"can you explain", "lost", "which one", "puzzled",
	},
	domain.EmotionSatisfied: {
		"thank", "great", "excellent", "perfect", "appreciate",
		"helpful", "awesome", "works now", "resolved", "love",
		"wonderful", "happy",
	},
	domain.EmotionUrgent: {
		"urgent", "asap", "immediately", "emergency", "critical",
		"right now", "as soon as possible", "deadline", "production down",
		"time sensitive", "time-sensitive",
	},
	domain.EmotionCalm: {
		"no rush", "take your time", "no hurry", "whenever",
		"when you get a chance", "not urgent", "at your convenience",
		"no worries", "no problem",
	},
}

// urgencyReducers suppress the urgency factor; they are also calm keywords.
var urgencyReducers = []string{
	"no rush", "take your time", "no hurry", "whenever",
	"when you get a chance", "not urgent", "at your convenience",
}

// escalationTriggers are contiguous phrases signalling intent to escalate,
// in reporting order.
var escalationTriggers = []string{
	"speak to a manager",
	"talk to a manager",
	"speak to your manager",
	"speak to your supervisor",
	"supervisor",
	"escalate",
	"unacceptable",
	"cancel my subscription",
	"cancel my account",
	"legal action",
	"lawyer",
	"sue you",
	"demand a refund",
	"worst service",
	"worst experience",
	"never again",
	"switching to",
	"competitor",
	"file a complaint",
	"social media",
	"report you",
}

// stitchRule detects an implicit trigger whose parts occur anywhere in text.
type stitchRule struct {
	parts  []string
	phrase string
}

var stitchRules = []stitchRule{
	{parts: []string{"worst", "experience"}, phrase: "worst experience"},
	{parts: []string{"cancel", "subscription"}, phrase: "cancel subscription"},
	{parts: []string{"manager", "now"}, phrase: "manager now"},
	{parts: []string{"refund", "immediately"}, phrase: "refund immediately"},
}

var technicalMarkers = []string{
	"api", "error code", "stack trace", "server", "database", "endpoint",
	"configuration", "config", "log file", "logs", "http", "ssl", "dns",
	"exception", "timeout", "latency", "deploy", "sdk", "json", "webhook",
	"status code", "500", "404", "oauth", "token",
}

var directMarkers = []string{
	"please fix", "need this", "asap", "fix this", "i need", "i want",
	"must", "immediately", "do it now", "right now",
}

var indirectMarkers = []string{
	"would appreciate", "if possible", "could you", "would you mind",
	"perhaps", "maybe", "when you have a moment", "i was wondering",
	"if it's not too much trouble", "might",
}

var formalMarkers = []string{
	"dear", "sincerely", "regards", "to whom it may concern",
	"respectfully", "mr.", "ms.", "mrs.", "good morning", "good afternoon",
	"thank you for your attention",
}

var informalMarkers = []string{
	"hi", "hey", "hello", "cheers", "yo", "lol", "thx", "btw", "gonna",
	"wanna",
}

// polarity is a small AFINN-style valence list used for the audit-only raw
// sentiment score.
var polarity = map[string]float64{
	"good": 3, "great": 3, "excellent": 3, "perfect": 3, "awesome": 4,
	"love": 3, "thanks": 2, "thank": 2, "appreciate": 2, "helpful": 2,
	"happy": 3, "wonderful": 4, "resolved": 2, "fine": 2, "calm": 2,
	"bad": -3, "terrible": -3, "awful": -3, "horrible": -3, "worst": -3,
	"hate": -3, "angry": -3, "furious": -3, "frustrated": -2,
	"frustrating": -2, "annoyed": -2, "annoying": -2, "broken": -1,
	"unacceptable": -2, "confused": -2, "problem": -2, "issue": -1,
	"fail": -2, "failed": -2, "failing": -2, "error": -2, "slow": -2,
	"urgent": -1, "never": -1, "useless": -2, "ridiculous": -3,
	"disappointed": -2, "sorry": -1,
}
