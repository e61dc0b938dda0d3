package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// sharedClient pools outbound connections across all collectors. Per-call
// deadlines come from the branch context, not the client timeout.
var sharedClient = &http.Client{
	Timeout: 20 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

func getJSON(ctx context.Context, rawURL string, params url.Values, out any) error {
	u := rawURL
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return doJSON(req, rawURL, out)
}

func postForm(ctx context.Context, rawURL string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return doJSON(req, rawURL, out)
}

// doJSON executes the request and decodes the body. Error messages carry
// the bare URL so credentials in query params never reach logs.
func doJSON(req *http.Request, rawURL string, out any) error {
	resp, err := sharedClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", rawURL, err)
	}
	return nil
}

// countyLookup is the census geography for a coordinate, resolved through
// the FCC area API (keyless).
type countyLookup struct {
	StateFips  string
	CountyFips string // 3-digit code within the state
	CountyName string
	StateCode  string
}

const fccAreaURL = "https://geo.fcc.gov/api/census/area"

func lookupCounty(ctx context.Context, baseURL string, lat, lng float64) (countyLookup, error) {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lng))
	params.Set("format", "json")

	var body struct {
		Results []struct {
			CountyFips string `json:"county_fips"`
			CountyName string `json:"county_name"`
			StateFips  string `json:"state_fips"`
			StateCode  string `json:"state_code"`
		} `json:"results"`
	}
	if err := getJSON(ctx, baseURL, params, &body); err != nil {
		return countyLookup{}, err
	}
	if len(body.Results) == 0 {
		return countyLookup{}, fmt.Errorf("no census area for %.4f,%.4f", lat, lng)
	}

	r := body.Results[0]
	lookup := countyLookup{
		StateFips:  r.StateFips,
		CountyName: r.CountyName,
		StateCode:  r.StateCode,
	}
	// county_fips arrives as state+county (e.g. 48453); ACS wants the
	// 3-digit county part scoped by state.
	if len(r.CountyFips) == 5 {
		lookup.CountyFips = r.CountyFips[2:]
	}
	return lookup, nil
}

func milesToMeters(miles float64) float64 {
	return miles * 1609.34
}

func areaSqMiles(radiusMiles float64) float64 {
	return math.Pi * radiusMiles * radiusMiles
}

func clampScore(v float64) float64 {
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

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
