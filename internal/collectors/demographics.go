package collectors

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/fieldscope/locus/internal/analysis"
)

// ACS 5-year variables: total population, median household income,
// median home value, population under 18.
const acsVariables = "NAME,B01003_001E,B19013_001E,B25077_001E,B09001_001E"

// Demographics profiles the resident population around a location from
// the Census ACS 5-year dataset. With coordinates it resolves the county
// through the FCC area API; without them it degrades to a state-level
// estimate parsed from the address.
type Demographics struct {
	apiKey  string
	acsURL  string
	areaURL string
}

func NewDemographics(apiKey string) *Demographics {
	return &Demographics{
		apiKey:  apiKey,
		acsURL:  "https://api.census.gov/data/2022/acs/acs5",
		areaURL: fccAreaURL,
	}
}

func (d *Demographics) Name() string { return "demographics" }

func (d *Demographics) Collect(ctx context.Context, req Request) (analysis.CategoryResult, error) {
	var (
		geoFor     string
		geoIn      string
		regionName string
		confidence string
		note       string
	)

	if req.HasCoordinates() {
		county, err := lookupCounty(ctx, d.areaURL, req.Latitude, req.Longitude)
		if err != nil {
			return analysis.CategoryResult{}, fmt.Errorf("resolve county: %w", err)
		}
		geoFor = "county:" + county.CountyFips
		geoIn = "state:" + county.StateFips
		regionName = county.CountyName
		confidence = "high"
	} else {
		state := stateFromAddress(req.Address)
		fips, ok := stateFips[state]
		if !ok {
			return analysis.CategoryResult{}, fmt.Errorf("no coordinates and no state in address %q", req.Address)
		}
		geoFor = "state:" + fips
		regionName = state
		confidence = "medium"
		note = "state-level estimate; geocoding unavailable"
	}

	row, err := d.fetchACS(ctx, geoFor, geoIn)
	if err != nil {
		return analysis.CategoryResult{}, err
	}

	population := row[1]
	income := row[2]
	homeValue := row[3]
	youth := row[4]
	youthShare := 0.0
	if population > 0 {
		youthShare = round1(youth / population * 100)
	}

	metrics := map[string]any{
		"region":                  regionName,
		"total_population":        population,
		"median_household_income": income,
		"median_home_value":       homeValue,
		"youth_population":        youth,
		"youth_share_percent":     youthShare,
		"data_source":             "census_acs5",
	}
	if note != "" {
		metrics["note"] = note
	}

	return analysis.CategoryResult{
		Score:      demographicsScore(population, income, youthShare),
		Confidence: confidence,
		Metrics:    metrics,
	}, nil
}

// fetchACS returns the first data row as floats, index-aligned with
// acsVariables. The ACS API responds with a header row then value rows.
func (d *Demographics) fetchACS(ctx context.Context, geoFor, geoIn string) ([]float64, error) {
	params := url.Values{}
	params.Set("get", acsVariables)
	params.Set("for", geoFor)
	if geoIn != "" {
		params.Set("in", geoIn)
	}
	if d.apiKey != "" {
		params.Set("key", d.apiKey)
	}

	var rows [][]string
	if err := getJSON(ctx, d.acsURL, params, &rows); err != nil {
		return nil, err
	}
	if len(rows) < 2 || len(rows[1]) < 5 {
		return nil, fmt.Errorf("acs response missing data rows")
	}

	out := make([]float64, 5)
	for i := 1; i < 5; i++ {
		v, err := strconv.ParseFloat(rows[1][i], 64)
		if err != nil {
			// Suppressed estimates come back as null or negative
			// sentinels; treat them as absent.
			v = 0
		}
		if v < 0 {
			v = 0
		}
		out[i] = v
	}
	return out, nil
}

// demographicsScore bands income, youth share, and population into a
// 0-100 suitability score with a neutral base of 50.
func demographicsScore(population, income, youthShare float64) float64 {
	score := 50.0

	switch {
	case income >= 85000:
		score += 20
	case income >= 65000:
		score += 15
	case income >= 45000:
		score += 8
	case income > 0 && income < 30000:
		score -= 10
	}

	switch {
	case youthShare >= 25:
		score += 20
	case youthShare >= 20:
		score += 15
	case youthShare >= 15:
		score += 8
	case youthShare > 0 && youthShare < 10:
		score -= 5
	}

	switch {
	case population >= 100000:
		score += 10
	case population >= 25000:
		score += 5
	case population > 0 && population < 5000:
		score -= 10
	}

	return clampScore(score)
}
