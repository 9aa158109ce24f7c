package inference

// RiskLevel is the tier a positive-class probability falls into.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskModerate RiskLevel = "MODERATE"
	RiskHigh     RiskLevel = "HIGH"
)

// Tier boundaries. Both are inclusive lower bounds.
const (
	HighRiskThreshold     = 0.70
	ModerateRiskThreshold = 0.30
)

var recommendations = map[RiskLevel][]string{
	RiskHigh: {
		"Immediate consultation with a neurologist is strongly recommended",
		"Complete neurological evaluation should be scheduled",
		"Consider medication evaluation",
		"Establish a strong support system with family members",
		"Regular monitoring of symptoms is essential",
	},
	RiskModerate: {
		"Schedule consultation with healthcare provider",
		"Increase frequency of cognitive exercises",
		"Monitor memory changes",
		"Consider lifestyle modifications",
		"Regular check-ups recommended",
	},
	RiskLow: {
		"Continue regular cognitive exercises",
		"Maintain healthy lifestyle habits",
		"Annual check-ups with healthcare provider",
		"Stay socially active",
		"Monitor any changes in memory or cognitive function",
	},
}

// RiskLevelFromProbability compares p exactly as given; there is no rounding.
func RiskLevelFromProbability(p float64) RiskLevel {
	switch {
	case p >= HighRiskThreshold:
		return RiskHigh
	case p >= ModerateRiskThreshold:
		return RiskModerate
	default:
		return RiskLow
	}
}

func (r RiskLevel) String() string {
	return string(r)
}

// Recommendations returns a fresh copy of the tier's static advice list.
func (r RiskLevel) Recommendations() []string {
	src := recommendations[r]
	out := make([]string, len(src))
	copy(out, src)
	return out
}
