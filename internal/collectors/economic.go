package collectors

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/fieldscope/locus/internal/analysis"
)

// Economic reads County Business Patterns for establishment counts,
// employment, and payroll around the location's county.
type Economic struct {
	apiKey  string
	cbpURL  string
	areaURL string
}

func NewEconomic(apiKey string) *Economic {
	return &Economic{
		apiKey:  apiKey,
		cbpURL:  "https://api.census.gov/data/2022/cbp",
		areaURL: fccAreaURL,
	}
}

func (e *Economic) Name() string { return "economic" }

func (e *Economic) Collect(ctx context.Context, req Request) (analysis.CategoryResult, error) {
	var geoFor, geoIn, region, confidence string

	if req.HasCoordinates() {
		county, err := lookupCounty(ctx, e.areaURL, req.Latitude, req.Longitude)
		if err != nil {
			return analysis.CategoryResult{}, fmt.Errorf("resolve county: %w", err)
		}
		geoFor = "county:" + county.CountyFips
		geoIn = "state:" + county.StateFips
		region = county.CountyName
		confidence = "high"
	} else {
		state := stateFromAddress(req.Address)
		fips, ok := stateFips[state]
		if !ok {
			return analysis.CategoryResult{}, fmt.Errorf("no coordinates and no state in address %q", req.Address)
		}
		geoFor = "state:" + fips
		region = state
		confidence = "medium"
	}

	params := url.Values{}
	params.Set("get", "ESTAB,EMP,PAYANN")
	params.Set("for", geoFor)
	if geoIn != "" {
		params.Set("in", geoIn)
	}
	if e.apiKey != "" {
		params.Set("key", e.apiKey)
	}

	var rows [][]string
	if err := getJSON(ctx, e.cbpURL, params, &rows); err != nil {
		return analysis.CategoryResult{}, err
	}
	if len(rows) < 2 || len(rows[1]) < 3 {
		return analysis.CategoryResult{}, fmt.Errorf("cbp response missing data rows")
	}

	parse := func(s string) float64 {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			return 0
		}
		return v
	}
	establishments := parse(rows[1][0])
	employment := parse(rows[1][1])
	payrollK := parse(rows[1][2]) // annual payroll in $1000s

	payrollPerEmployee := 0.0
	if employment > 0 {
		payrollPerEmployee = round1(payrollK * 1000 / employment)
	}

	score := 50.0
	switch {
	case payrollPerEmployee >= 70000:
		score += 22
	case payrollPerEmployee >= 55000:
		score += 15
	case payrollPerEmployee >= 40000:
		score += 8
	case payrollPerEmployee > 0 && payrollPerEmployee < 30000:
		score -= 8
	}
	switch {
	case establishments >= 20000:
		score += 12
	case establishments >= 5000:
		score += 8
	case establishments > 0 && establishments < 500:
		score -= 8
	}

	return analysis.CategoryResult{
		Score:      clampScore(score),
		Confidence: confidence,
		Metrics: map[string]any{
			"region":               region,
			"establishments":       establishments,
			"employment":           employment,
			"annual_payroll_k":     payrollK,
			"payroll_per_employee": payrollPerEmployee,
			"data_source":          "census_cbp",
		},
	}, nil
}
