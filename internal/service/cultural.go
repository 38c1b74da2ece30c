package service

import (
	"github.com/Harshitk-cp/sentinel/internal/domain"
	"github.com/Harshitk-cp/sentinel/internal/lexicon"
)

// CulturalAnalyzer infers communication style and formality.
type CulturalAnalyzer struct{}

func NewCulturalAnalyzer() *CulturalAnalyzer {
	return &CulturalAnalyzer{}
}

func (a *CulturalAnalyzer) Analyze(text string, msgCtx domain.MessageContext) domain.CulturalContext {
	return a.AnalyzeFeatures(lexicon.Extract(text), msgCtx)
}

func (a *CulturalAnalyzer) AnalyzeFeatures(f lexicon.Features, msgCtx domain.MessageContext) domain.CulturalContext {
	style := domain.StyleBalanced
	switch {
	case f.DirectMarkers > f.IndirectMarkers:
		style = domain.StyleDirect
	case f.IndirectMarkers > f.DirectMarkers:
		style = domain.StyleIndirect
	}

	formality := domain.FormalityNeutral
	switch {
	case f.FormalMarkers > f.InformalMarkers:
		formality = domain.FormalityFormal
	case f.InformalMarkers > f.FormalMarkers:
		formality = domain.FormalityInformal
	}

	return domain.CulturalContext{
		CommunicationStyle: style,
		FormalityLevel:     formality,
		Technical:          len(f.TechnicalMarkers) > 0,
		CulturalMarkers:    culturalMarkers(style),
	}
}

// culturalMarkers fills the placeholder shape. Only contextLevel varies for
// now, following the detected style.
func culturalMarkers(style domain.CommunicationStyle) domain.CulturalMarkers {
	m := domain.DefaultCulturalMarkers()
	if style == domain.StyleIndirect {
		m.ContextLevel = "high"
	}
	return m
}
