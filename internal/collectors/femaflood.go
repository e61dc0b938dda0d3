package collectors

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fieldscope/locus/internal/analysis"
)

// FEMAFlood looks up the National Flood Hazard Layer zone at the exact
// point. Zero-weighted: flood exposure informs the report, not the score.
type FEMAFlood struct {
	baseURL string
}

func NewFEMAFlood() *FEMAFlood {
	return &FEMAFlood{
		baseURL: "https://hazards.fema.gov/gis/nfhl/rest/services/public/NFHL/MapServer/28/query",
	}
}

func (f *FEMAFlood) Name() string { return "femaflood" }

func (f *FEMAFlood) Collect(ctx context.Context, req Request) (analysis.CategoryResult, error) {
	if !req.HasCoordinates() {
		return analysis.CategoryResult{}, fmt.Errorf("coordinates required for flood zone lookup")
	}

	params := url.Values{}
	params.Set("geometry", fmt.Sprintf("%f,%f", req.Longitude, req.Latitude))
	params.Set("geometryType", "esriGeometryPoint")
	params.Set("inSR", "4326")
	params.Set("spatialRel", "esriSpatialRelIntersects")
	params.Set("outFields", "FLD_ZONE,ZONE_SUBTY")
	params.Set("returnGeometry", "false")
	params.Set("f", "json")

	var body struct {
		Features []struct {
			Attributes struct {
				FldZone   string `json:"FLD_ZONE"`
				ZoneSubty string `json:"ZONE_SUBTY"`
			} `json:"attributes"`
		} `json:"features"`
	}
	if err := getJSON(ctx, f.baseURL, params, &body); err != nil {
		return analysis.CategoryResult{}, err
	}

	zone := "UNKNOWN"
	subtype := ""
	if len(body.Features) > 0 {
		zone = body.Features[0].Attributes.FldZone
		subtype = body.Features[0].Attributes.ZoneSubty
	}

	highRisk := strings.HasPrefix(zone, "A") || strings.HasPrefix(zone, "V")

	var score float64
	switch {
	case zone == "X" && subtype == "":
		score = 90
	case zone == "X":
		score = 70 // shaded X: moderate risk
	case strings.HasPrefix(zone, "V"):
		score = 20
	case highRisk:
		score = 35
	default:
		score = 60
	}

	return analysis.CategoryResult{
		Score:      score,
		Confidence: "high",
		Metrics: map[string]any{
			"flood_zone":         zone,
			"zone_subtype":       subtype,
			"high_risk_zone":     highRisk,
			"insurance_required": highRisk,
			"data_source":        "fema_nfhl",
		},
	}, nil
}
