package analysis

import "math"

// NeutralScore is substituted for categories whose collector failed, and
// returned as the overall score when no weighted category produced data.
const NeutralScore = 50.0

// Weights maps category name to its share of the overall score. A zero
// weight keeps the category in the result but out of the score.
type Weights map[string]float64

// DefaultWeights returns a fresh copy of the standard category weighting.
func DefaultWeights() Weights {
	return Weights{
		"demographics":  0.25,
		"competition":   0.20,
		"accessibility": 0.15,
		"safety":        0.20,
		"economic":      0.10,
		"regulatory":    0.10,
	}
}

// OverallScore combines category scores into a weighted average over the
// categories present with weight > 0, clamped to [0,100] and rounded to
// one decimal. When every effective weight is zero it returns neutral.
func OverallScore(categories map[string]CategoryResult, weights Weights, neutral float64) float64 {
	var weighted, total float64
	for name, cat := range categories {
		w := weights[name]
		if w <= 0 {
			continue
		}
		weighted += cat.Score * w
		total += w
	}
	if total == 0 {
		return round1(clamp(neutral))
	}
	return round1(clamp(weighted / total))
}

// Recommend maps an overall score to the verdict shown to operators.
func Recommend(overall float64) string {
	switch {
	case overall >= 80:
		return "Highly Recommended"
	case overall >= 65:
		return "Recommended"
	case overall >= 50:
		return "Viable with Conditions"
	case overall >= 35:
		return "Marginal"
	default:
		return "Not Recommended"
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
