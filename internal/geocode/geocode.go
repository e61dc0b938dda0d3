// Package geocode resolves street addresses to coordinates. Geocoding is
// optional: without an API key the service still runs and collectors
// degrade to coordinate-free estimates.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Location is a resolved address.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Formatted string  `json:"formatted_address,omitempty"`
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (Location, error)
}

// ErrDisabled marks the no-key configuration; callers treat it as a
// degradation signal, not a failure.
var ErrDisabled = errors.New("geocoding disabled: no api key configured")

// Disabled satisfies Geocoder when no key is configured.
type Disabled struct{}

func (Disabled) Geocode(context.Context, string) (Location, error) {
	return Location{}, ErrDisabled
}

// Google resolves addresses through the Maps Geocoding API.
type Google struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewGoogle(apiKey string) *Google {
	return &Google{
		apiKey:  apiKey,
		baseURL: "https://maps.googleapis.com/maps/api/geocode/json",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *Google) Geocode(ctx context.Context, address string) (Location, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return Location{}, fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return Location{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geocode request: status %d", resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Results []struct {
			FormattedAddress string `json:"formatted_address"`
			Geometry         struct {
				Location struct {
					Lat float64 `json:"lat"`
					Lng float64 `json:"lng"`
				} `json:"location"`
			} `json:"geometry"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, fmt.Errorf("decode geocode response: %w", err)
	}

	if body.Status != "OK" || len(body.Results) == 0 {
		return Location{}, fmt.Errorf("address not found: geocode status %s", body.Status)
	}

	first := body.Results[0]
	return Location{
		Latitude:  first.Geometry.Location.Lat,
		Longitude: first.Geometry.Location.Lng,
		Formatted: first.FormattedAddress,
	}, nil
}
