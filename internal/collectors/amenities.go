package collectors

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/fieldscope/locus/internal/analysis"
)

// Amenities counts family-facing amenities (playgrounds, parks) around
// the point via the Overpass API. Zero-weighted enrichment.
type Amenities struct {
	baseURL string
}

func NewAmenities() *Amenities {
	return &Amenities{baseURL: "https://overpass-api.de/api/interpreter"}
}

func (a *Amenities) Name() string { return "amenities" }

func (a *Amenities) Collect(ctx context.Context, req Request) (analysis.CategoryResult, error) {
	if !req.HasCoordinates() {
		return analysis.CategoryResult{}, fmt.Errorf("coordinates required for amenity search")
	}

	radius := milesToMeters(req.RadiusMiles)
	query := fmt.Sprintf(`[out:json][timeout:15];(node["leisure"="playground"](around:%.0f,%f,%f);node["leisure"="park"](around:%.0f,%f,%f););out count;`,
		radius, req.Latitude, req.Longitude, radius, req.Latitude, req.Longitude)

	var body struct {
		Elements []struct {
			Tags map[string]string `json:"tags"`
		} `json:"elements"`
	}
	if err := postForm(ctx, a.baseURL, url.Values{"data": {query}}, &body); err != nil {
		return analysis.CategoryResult{}, err
	}
	if len(body.Elements) == 0 {
		return analysis.CategoryResult{}, fmt.Errorf("overpass count response empty")
	}

	total, err := strconv.Atoi(body.Elements[0].Tags["total"])
	if err != nil {
		return analysis.CategoryResult{}, fmt.Errorf("parse overpass count: %w", err)
	}
	density := round2(float64(total) / areaSqMiles(req.RadiusMiles))

	score := 40.0
	switch {
	case density >= 3:
		score = 88
	case density >= 1.5:
		score = 72
	case density >= 0.5:
		score = 58
	case total > 0:
		score = 48
	}

	return analysis.CategoryResult{
		Score:      score,
		Confidence: "high",
		Metrics: map[string]any{
			"family_amenities":   total,
			"amenities_per_sqmi": density,
			"data_source":        "osm_overpass",
		},
	}, nil
}
