package collectors

import (
	"context"
	"fmt"

	"github.com/fieldscope/locus/internal/analysis"
)

// Safety scores an area from state-level crime rates. It needs no
// network access and no coordinates, only a parseable state code.
type Safety struct{}

func NewSafety() *Safety { return &Safety{} }

func (s *Safety) Name() string { return "safety" }

func (s *Safety) Collect(_ context.Context, req Request) (analysis.CategoryResult, error) {
	state := stateFromAddress(req.Address)
	if state == "" {
		return analysis.CategoryResult{}, fmt.Errorf("no state code in address %q", req.Address)
	}
	rates, ok := stateCrimeRates[state]
	if !ok {
		return analysis.CategoryResult{}, fmt.Errorf("no crime data for state %s", state)
	}

	violentRatio := rates.Violent / nationalCrime.Violent
	propertyRatio := rates.Property / nationalCrime.Property
	// Violent crime dominates perceived safety for family-facing sites.
	blended := violentRatio*0.7 + propertyRatio*0.3

	var score float64
	switch {
	case blended <= 0.6:
		score = 90
	case blended <= 0.8:
		score = 78
	case blended <= 1.0:
		score = 65
	case blended <= 1.3:
		score = 50
	case blended <= 1.6:
		score = 38
	default:
		score = 25
	}

	return analysis.CategoryResult{
		Score:      score,
		Confidence: "medium",
		Metrics: map[string]any{
			"violent_crime_rate":  rates.Violent,
			"property_crime_rate": rates.Property,
			"vs_national_percent": round1(blended * 100),
			"granularity":         "state",
			"data_source":         "ucr_state_rates",
		},
	}, nil
}
