package collectors

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fieldscope/locus/internal/analysis"
)

// Accessibility scores how reachable a location is, using transit stop
// density from the Places nearby search as the primary signal.
type Accessibility struct {
	apiKey  string
	baseURL string
}

func NewAccessibility(apiKey string) *Accessibility {
	return &Accessibility{
		apiKey:  apiKey,
		baseURL: "https://maps.googleapis.com/maps/api/place/nearbysearch/json",
	}
}

func (a *Accessibility) Name() string { return "accessibility" }

func (a *Accessibility) Collect(ctx context.Context, req Request) (analysis.CategoryResult, error) {
	if a.apiKey == "" {
		return analysis.CategoryResult{}, fmt.Errorf("places api key not configured")
	}
	if !req.HasCoordinates() {
		return analysis.CategoryResult{}, fmt.Errorf("coordinates required for transit lookup")
	}

	params := url.Values{}
	params.Set("location", fmt.Sprintf("%f,%f", req.Latitude, req.Longitude))
	params.Set("radius", fmt.Sprintf("%.0f", milesToMeters(req.RadiusMiles)))
	params.Set("type", "transit_station")
	params.Set("key", a.apiKey)

	var body struct {
		Status  string `json:"status"`
		Results []struct {
			Name string `json:"name"`
		} `json:"results"`
	}
	if err := getJSON(ctx, a.baseURL, params, &body); err != nil {
		return analysis.CategoryResult{}, err
	}
	if body.Status != "OK" && body.Status != "ZERO_RESULTS" {
		return analysis.CategoryResult{}, fmt.Errorf("places nearby search: status %s", body.Status)
	}

	stops := len(body.Results)
	density := round2(float64(stops) / areaSqMiles(req.RadiusMiles))

	score := 50.0
	switch {
	case density >= 3.0:
		score = 88
	case density >= 1.5:
		score = 75
	case density >= 0.5:
		score = 62
	case stops > 0:
		score = 52
	default:
		// Car-dependent areas are workable but limit walk-in traffic.
		score = 42
	}

	return analysis.CategoryResult{
		Score:      score,
		Confidence: "high",
		Metrics: map[string]any{
			"transit_stops":  stops,
			"stops_per_sqmi": density,
			"car_dependent":  stops == 0,
			"data_source":    "places_nearby_search",
		},
	}, nil
}
