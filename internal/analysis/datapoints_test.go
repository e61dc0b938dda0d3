package analysis

import "testing"

func TestCountDataPoints_ScalarsOnly(t *testing.T) {
	categories := map[string]CategoryResult{
		"demographics": {
			Score: 75,
			Metrics: map[string]any{
				"median_household_income": 68500.0,
				"children_under_5":        1240,
				"county_name":             "Travis County",
				"urban_area":              true,
				"age_breakdown":           map[string]any{"0-5": 1240}, // nested, not counted
				"tract_ids":               []any{"48453001100"},        // slice, not counted
			},
		},
	}

	if got := CountDataPoints(categories); got != 4 {
		t.Errorf("expected 4 data points, got %d", got)
	}
}

func TestCountDataPoints_MetadataExcluded(t *testing.T) {
	categories := map[string]CategoryResult{
		"competition": {
			Metrics: map[string]any{
				// Four metadata keys, two real metrics.
				"data_source":        "places_api",
				"note":               "radius expanded",
				"score":              62.0,
				"collection_time_ms": 412.0,
				"competitor_count":   7,
				"nearest_miles":      0.4,
			},
		},
	}

	if got := CountDataPoints(categories); got != 2 {
		t.Errorf("expected metadata fields excluded, got %d", got)
	}
}

func TestCountDataPoints_AcrossCategories(t *testing.T) {
	categories := map[string]CategoryResult{
		"safety":     {Metrics: map[string]any{"violent_crime_rate": 380.2}},
		"economic":   {Metrics: map[string]any{"establishments": 5400, "annual_payroll_k": 910000.0}},
		"regulatory": {Metrics: map[string]any{}},
	}

	if got := CountDataPoints(categories); got != 3 {
		t.Errorf("expected 3 data points, got %d", got)
	}
}

func TestCountDataPoints_Empty(t *testing.T) {
	if got := CountDataPoints(nil); got != 0 {
		t.Errorf("expected 0 for nil categories, got %d", got)
	}
	if got := CountDataPoints(map[string]CategoryResult{"x": {}}); got != 0 {
		t.Errorf("expected 0 for nil metrics, got %d", got)
	}
}
