package collectors

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fieldscope/locus/internal/analysis"
)

// EPA counts regulated facilities near the location via the Facility
// Registry Service. It contributes environmental context only; the
// profile assigns it zero weight so it never moves the overall score.
type EPA struct {
	baseURL string
}

func NewEPA() *EPA {
	return &EPA{baseURL: "https://frs-public.epa.gov/ords/frs_public2/frs_rest_services.get_facilities"}
}

func (e *EPA) Name() string { return "epa" }

func (e *EPA) Collect(ctx context.Context, req Request) (analysis.CategoryResult, error) {
	if !req.HasCoordinates() {
		return analysis.CategoryResult{}, fmt.Errorf("coordinates required for facility search")
	}

	params := url.Values{}
	params.Set("latitude83", fmt.Sprintf("%f", req.Latitude))
	params.Set("longitude83", fmt.Sprintf("%f", req.Longitude))
	params.Set("search_radius", fmt.Sprintf("%.1f", req.RadiusMiles))
	params.Set("output", "JSON")

	var body struct {
		Results struct {
			FRSFacility []struct {
				FacilityName string `json:"FacilityName"`
				Programs     string `json:"PgmSysAcrnms"`
			} `json:"FRSFacility"`
		} `json:"Results"`
	}
	if err := getJSON(ctx, e.baseURL, params, &body); err != nil {
		return analysis.CategoryResult{}, err
	}

	facilities := body.Results.FRSFacility
	superfund := 0
	for _, f := range facilities {
		if strings.Contains(f.Programs, "SEMS") {
			superfund++
		}
	}

	count := len(facilities)
	score := 90.0
	score -= float64(count) * 2
	score -= float64(superfund) * 20
	score = clampScore(score)

	return analysis.CategoryResult{
		Score:      score,
		Confidence: "high",
		Metrics: map[string]any{
			"regulated_facilities": count,
			"superfund_sites":      superfund,
			"data_source":          "epa_frs",
		},
	}, nil
}
