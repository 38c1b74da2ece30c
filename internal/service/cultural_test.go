package service

import (
	"testing"

	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCulturalAnalyzer_Analyze(t *testing.T) {
	a := NewCulturalAnalyzer()

	tests := []struct {
		name      string
		text      string
		style     domain.CommunicationStyle
		formality domain.FormalityLevel
		technical bool
	}{
		{
			name:      "indirect and formal",
			text:      "Dear team, I would appreciate it if possible. Kind regards",
			style:     domain.StyleIndirect,
			formality: domain.FormalityFormal,
		},
		{
			name:      "direct and informal",
			text:      "hey, please fix this asap",
			style:     domain.StyleDirect,
			formality: domain.FormalityInformal,
		},
		{
			name:      "ties are balanced and neutral",
			text:      "my order has not arrived",
			style:     domain.StyleBalanced,
			formality: domain.FormalityNeutral,
		},
		{
			name:      "technical register",
			text:      "the webhook endpoint returns a 404",
			style:     domain.StyleBalanced,
			formality: domain.FormalityNeutral,
			technical: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Analyze(tt.text, domain.MessageContext{})
			assert.Equal(t, tt.style, got.CommunicationStyle)
			assert.Equal(t, tt.formality, got.FormalityLevel)
			assert.Equal(t, tt.technical, got.Technical)
		})
	}
}

func TestCulturalAnalyzer_MarkersKeepShape(t *testing.T) {
	got := NewCulturalAnalyzer().Analyze("could you maybe look at this", domain.MessageContext{})

	assert.Equal(t, "monochronic", got.CulturalMarkers.TimeOrientation)
	assert.Equal(t, "high", got.CulturalMarkers.ContextLevel)
	assert.Equal(t, "moderate", got.CulturalMarkers.HierarchyExpectation)
}
