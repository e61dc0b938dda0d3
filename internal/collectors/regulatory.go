package collectors

import (
	"context"
	"fmt"

	"github.com/fieldscope/locus/internal/analysis"
)

type licensingInfo struct {
	Difficulty    string // streamlined, moderate, strict
	StaffRatio    string // youngest-group staff:child ratio
	AnnualFeeUSD  float64
	InspectionsYr int
}

// licensingByState captures childcare licensing posture for states where
// requirements are well documented. Unlisted states score from the
// moderate default with low confidence.
var licensingByState = map[string]licensingInfo{
	"TX": {"moderate", "1:4", 1060, 1},
	"CA": {"strict", "1:4", 2420, 1},
	"NY": {"strict", "1:4", 1900, 2},
	"FL": {"moderate", "1:4", 880, 2},
	"CO": {"moderate", "1:5", 1230, 1},
	"WA": {"strict", "1:4", 1540, 1},
	"GA": {"streamlined", "1:6", 620, 1},
	"NC": {"moderate", "1:5", 790, 1},
	"AZ": {"streamlined", "1:5", 710, 1},
	"OH": {"moderate", "1:5", 850, 2},
	"PA": {"moderate", "1:4", 930, 1},
	"IL": {"strict", "1:4", 1680, 2},
	"TN": {"streamlined", "1:4", 640, 1},
	"UT": {"streamlined", "1:4", 580, 1},
	"MA": {"strict", "1:3", 2150, 2},
}

// Regulatory scores licensing burden from a state knowledge table; it
// never touches the network.
type Regulatory struct{}

func NewRegulatory() *Regulatory { return &Regulatory{} }

func (r *Regulatory) Name() string { return "regulatory" }

func (r *Regulatory) Collect(_ context.Context, req Request) (analysis.CategoryResult, error) {
	state := stateFromAddress(req.Address)
	if state == "" {
		return analysis.CategoryResult{}, fmt.Errorf("no state code in address %q", req.Address)
	}

	info, known := licensingByState[state]
	confidence := "medium"
	if !known {
		info = licensingInfo{Difficulty: "moderate", StaffRatio: "1:4", AnnualFeeUSD: 1000, InspectionsYr: 1}
		confidence = "low"
	}

	var score float64
	switch info.Difficulty {
	case "streamlined":
		score = 80
	case "moderate":
		score = 60
	case "strict":
		score = 42
	default:
		score = 55
	}

	return analysis.CategoryResult{
		Score:      score,
		Confidence: confidence,
		Metrics: map[string]any{
			"licensing_difficulty": info.Difficulty,
			"staff_child_ratio":    info.StaffRatio,
			"annual_fee_estimate":  info.AnnualFeeUSD,
			"inspections_per_year": info.InspectionsYr,
			"state_table_entry":    known,
			"data_source":          "licensing_knowledge_table",
		},
	}, nil
}
