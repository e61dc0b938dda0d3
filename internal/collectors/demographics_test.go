package collectors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDemographics_CountyPath(t *testing.T) {
	area := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lat") == "" || r.URL.Query().Get("lon") == "" {
			t.Error("expected lat/lon forwarded to area lookup")
		}
		w.Write([]byte(`{"results":[{"county_fips":"48453","county_name":"Travis County","state_fips":"48","state_code":"TX"}]}`))
	}))
	defer area.Close()

	acs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("for"); got != "county:453" {
			t.Errorf("expected for=county:453, got %s", got)
		}
		if got := r.URL.Query().Get("in"); got != "state:48" {
			t.Errorf("expected in=state:48, got %s", got)
		}
		w.Write([]byte(`[["NAME","B01003_001E","B19013_001E","B25077_001E","B09001_001E","state","county"],
			["Travis County, Texas","1290188","91461","448700","270939","48","453"]]`))
	}))
	defer acs.Close()

	d := NewDemographics("")
	d.areaURL = area.URL
	d.acsURL = acs.URL

	res, err := d.Collect(context.Background(), Request{
		Address:     "123 Main St, Austin TX",
		Latitude:    30.2672,
		Longitude:   -97.7431,
		RadiusMiles: 3,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if res.Confidence != "high" {
		t.Errorf("expected high confidence with coordinates, got %s", res.Confidence)
	}
	if res.Metrics["region"] != "Travis County" {
		t.Errorf("expected region Travis County, got %v", res.Metrics["region"])
	}
	if res.Metrics["median_household_income"] != 91461.0 {
		t.Errorf("expected income 91461, got %v", res.Metrics["median_household_income"])
	}
	// Income >= 85k (+20), youth ~21% (+15), population >= 100k (+10).
	if res.Score != 95 {
		t.Errorf("expected score 95, got %v", res.Score)
	}
}

func TestDemographics_StateFallbackWithoutCoordinates(t *testing.T) {
	acs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("for"); got != "state:48" {
			t.Errorf("expected for=state:48, got %s", got)
		}
		w.Write([]byte(`[["NAME","B01003_001E","B19013_001E","B25077_001E","B09001_001E","state"],
			["Texas","29145505","73035","238000","7246191","48"]]`))
	}))
	defer acs.Close()

	d := NewDemographics("")
	d.acsURL = acs.URL

	res, err := d.Collect(context.Background(), Request{Address: "somewhere in Austin, TX", RadiusMiles: 3})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if res.Confidence != "medium" {
		t.Errorf("expected medium confidence for state estimate, got %s", res.Confidence)
	}
	if _, ok := res.Metrics["note"]; !ok {
		t.Error("expected degradation note in metrics")
	}
}

func TestDemographics_NoCoordinatesNoState(t *testing.T) {
	d := NewDemographics("")
	_, err := d.Collect(context.Background(), Request{Address: "unparseable address", RadiusMiles: 3})
	if err == nil {
		t.Fatal("expected error without coordinates or state code")
	}
}

func TestDemographics_UpstreamFailure(t *testing.T) {
	area := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer area.Close()

	d := NewDemographics("")
	d.areaURL = area.URL

	_, err := d.Collect(context.Background(), Request{
		Address:  "123 Main St, Austin TX",
		Latitude: 30.2672, Longitude: -97.7431, RadiusMiles: 3,
	})
	if err == nil {
		t.Fatal("expected error when area lookup fails")
	}
}
