package domain

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ComputeRiskLevel buckets a continuous risk score.
func ComputeRiskLevel(score float64) RiskLevel {
	switch {
	case score > 0.7:
		return RiskCritical
	case score > 0.5:
		return RiskHigh
	case score > 0.3:
		return RiskMedium
	default:
		return RiskLow
	}
}

type EscalationRisk struct {
	RiskScore       float64            `json:"risk_score"`
	RiskLevel       RiskLevel          `json:"risk_level"`
	Recommendations []string           `json:"recommendations"`
	Factors         map[string]float64 `json:"factors"`
}

// FallbackEscalationRisk is returned whenever the risk cannot be computed.
func FallbackEscalationRisk() EscalationRisk {
	return EscalationRisk{
		RiskScore:       0.5,
		RiskLevel:       RiskMedium,
		Recommendations: []string{"Review the conversation manually and follow the standard support process"},
		Factors:         map[string]float64{},
	}
}
