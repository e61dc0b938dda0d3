package collectors

import (
	"context"
	"fmt"
	"net/url"

	"github.com/fieldscope/locus/internal/analysis"
)

// Competition measures market saturation by searching Google Places for
// existing providers of the profiled business type near the address.
type Competition struct {
	apiKey  string
	query   string // e.g. "child care center" or "bank branch"
	baseURL string
}

func NewCompetition(apiKey, query string) *Competition {
	return &Competition{
		apiKey:  apiKey,
		query:   query,
		baseURL: "https://maps.googleapis.com/maps/api/place/textsearch/json",
	}
}

func (c *Competition) Name() string { return "competition" }

func (c *Competition) Collect(ctx context.Context, req Request) (analysis.CategoryResult, error) {
	if c.apiKey == "" {
		return analysis.CategoryResult{}, fmt.Errorf("places api key not configured")
	}

	params := url.Values{}
	params.Set("query", c.query+" near "+req.Address)
	params.Set("radius", fmt.Sprintf("%.0f", milesToMeters(req.RadiusMiles)))
	params.Set("key", c.apiKey)
	if req.HasCoordinates() {
		params.Set("location", fmt.Sprintf("%f,%f", req.Latitude, req.Longitude))
	}

	var body struct {
		Status  string `json:"status"`
		Results []struct {
			Name             string  `json:"name"`
			Rating           float64 `json:"rating"`
			UserRatingsTotal int     `json:"user_ratings_total"`
		} `json:"results"`
	}
	if err := getJSON(ctx, c.baseURL, params, &body); err != nil {
		return analysis.CategoryResult{}, err
	}
	if body.Status != "OK" && body.Status != "ZERO_RESULTS" {
		return analysis.CategoryResult{}, fmt.Errorf("places search: status %s", body.Status)
	}

	count := len(body.Results)
	var ratingSum float64
	rated, topRated := 0, 0
	for _, r := range body.Results {
		if r.Rating > 0 {
			ratingSum += r.Rating
			rated++
		}
		if r.Rating >= 4.5 && r.UserRatingsTotal >= 10 {
			topRated++
		}
	}
	avgRating := 0.0
	if rated > 0 {
		avgRating = round1(ratingSum / float64(rated))
	}

	density := round2(float64(count) / areaSqMiles(req.RadiusMiles))

	return analysis.CategoryResult{
		Score:      competitionScore(count, density, topRated),
		Confidence: "high",
		Metrics: map[string]any{
			"competitor_count":     count,
			"competitors_per_sqmi": density,
			"average_rating":       avgRating,
			"top_rated_count":      topRated,
			"search_query":         c.query,
			"data_source":          "places_text_search",
		},
	}, nil
}

// competitionScore rewards open markets. A completely empty market reads
// as unproven demand rather than opportunity, so it scores below a
// lightly served one.
func competitionScore(count int, density float64, topRated int) float64 {
	if count == 0 {
		return 45
	}

	var score float64
	switch {
	case density < 0.5:
		score = 85
	case density < 1.5:
		score = 70
	case density < 3.0:
		score = 55
	case density < 6.0:
		score = 40
	default:
		score = 25
	}

	// Entrenched, highly rated incumbents raise the bar to entry.
	if topRated >= 3 {
		score -= 10
	} else if topRated >= 1 {
		score -= 5
	}

	return clampScore(score)
}
