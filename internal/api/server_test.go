package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fieldscope/locus/internal/aggregator"
	"github.com/fieldscope/locus/internal/analysis"
	"github.com/fieldscope/locus/internal/breaker"
	"github.com/fieldscope/locus/internal/cache"
	"github.com/fieldscope/locus/internal/collectors"
	"github.com/fieldscope/locus/internal/geocode"
	"github.com/fieldscope/locus/internal/history"
	"github.com/fieldscope/locus/internal/testutil"
)

// fixedCollector returns a canned category result.
type fixedCollector struct {
	name string
	res  analysis.CategoryResult
	err  error
}

func (c *fixedCollector) Name() string { return c.name }

func (c *fixedCollector) Collect(_ context.Context, _ collectors.Request) (analysis.CategoryResult, error) {
	return c.res, c.err
}

// noGeocoder behaves like an unconfigured geocoding key.
type noGeocoder struct{}

func (noGeocoder) Geocode(_ context.Context, _ string) (geocode.Location, error) {
	return geocode.Location{}, geocode.ErrDisabled
}

type stubEvents struct{ healthy bool }

func (s stubEvents) Healthy() bool { return s.healthy }

func goodDescriptors() []aggregator.Descriptor {
	return []aggregator.Descriptor{
		{Name: "demographics", Weight: 0.6, Collector: &fixedCollector{name: "demographics", res: analysis.CategoryResult{
			Score:      80,
			Confidence: "high",
			Metrics:    map[string]any{"median_household_income": 91000.0},
		}}},
		{Name: "safety", Weight: 0.4, Collector: &fixedCollector{name: "safety", res: analysis.CategoryResult{
			Score:      60,
			Confidence: "medium",
			Metrics:    map[string]any{"violent_crime_rate": 380.7},
		}}},
	}
}

func setupServerWith(hist history.DataStore, reg *breaker.Registry, descs []aggregator.Descriptor, opts aggregator.Options) *Server {
	rc := cache.New(cache.Config{})
	eng := aggregator.New(descs, reg, rc, noGeocoder{}, nil, nil, opts)
	return NewServer(eng, reg, rc, hist, nil, 8600)
}

func setupServer(hist history.DataStore) *Server {
	return setupServerWith(hist, breaker.NewRegistry(breaker.Config{}), goodDescriptors(),
		aggregator.Options{CollectorTimeout: time.Second})
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv := setupServer(nil)

	body := `{"address": "100 Main St, Austin, TX", "radius_miles": 2.5}`
	req := httptest.NewRequest("POST", "/api/v1/analyze", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res map[string]any
	json.NewDecoder(w.Body).Decode(&res)

	// (80*0.6 + 60*0.4) / 1.0 = 72.0
	if res["overall_score"] != 72.0 {
		t.Errorf("expected overall score 72.0, got %v", res["overall_score"])
	}
	if res["recommendation"] != "Recommended" {
		t.Errorf("expected Recommended, got %v", res["recommendation"])
	}
	if res["cached"] != false {
		t.Errorf("expected cached false, got %v", res["cached"])
	}
	cats, ok := res["categories"].(map[string]any)
	if !ok || len(cats) != 2 {
		t.Errorf("expected 2 categories, got %v", res["categories"])
	}
}

func TestAnalyzeEndpoint_BlankAddress(t *testing.T) {
	srv := setupServer(nil)

	req := httptest.NewRequest("POST", "/api/v1/analyze", strings.NewReader(`{"address": "   "}`))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "address") {
		t.Errorf("expected error to mention address, got %s", w.Body.String())
	}
}

func TestAnalyzeEndpoint_InvalidBody(t *testing.T) {
	srv := setupServer(nil)

	req := httptest.NewRequest("POST", "/api/v1/analyze", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAnalyzeEndpoint_PartialFailure(t *testing.T) {
	descs := []aggregator.Descriptor{
		{Name: "demographics", Weight: 0.6, Collector: &fixedCollector{name: "demographics", res: analysis.CategoryResult{Score: 80, Confidence: "high"}}},
		{Name: "safety", Weight: 0.4, Collector: &fixedCollector{name: "safety", err: errors.New("cde timeout")}},
	}
	srv := setupServerWith(nil, breaker.NewRegistry(breaker.Config{}), descs,
		aggregator.Options{CollectorTimeout: time.Second})

	body := `{"address": "100 Main St", "radius_miles": 3}`
	req := httptest.NewRequest("POST", "/api/v1/analyze", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on partial failure, got %d", w.Code)
	}

	var res map[string]any
	json.NewDecoder(w.Body).Decode(&res)

	cats := res["categories"].(map[string]any)
	safety := cats["safety"].(map[string]any)
	if safety["score"] != 50.0 {
		t.Errorf("expected neutral safety score, got %v", safety["score"])
	}
	if !strings.Contains(safety["error"].(string), "cde timeout") {
		t.Errorf("expected failure reason in category, got %v", safety["error"])
	}
	// (80*0.6 + 50*0.4) / 1.0 = 68.0
	if res["overall_score"] != 68.0 {
		t.Errorf("expected overall 68.0, got %v", res["overall_score"])
	}
}

func TestBatchEndpoint(t *testing.T) {
	srv := setupServer(nil)

	body := `{"addresses": ["100 Main St", "200 Oak Ave"], "radius_miles": 1}`
	req := httptest.NewRequest("POST", "/api/v1/analyze/batch", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res map[string]any
	json.NewDecoder(w.Body).Decode(&res)
	if res["count"] != 2.0 {
		t.Errorf("expected count 2, got %v", res["count"])
	}
	results := res["results"].([]any)
	for i, item := range results {
		m := item.(map[string]any)
		if m["result"] == nil {
			t.Errorf("item %d: expected a result, got error %v", i, m["error"])
		}
	}
}

func TestBatchEndpoint_TooLarge(t *testing.T) {
	srv := setupServerWith(nil, breaker.NewRegistry(breaker.Config{}), goodDescriptors(),
		aggregator.Options{CollectorTimeout: time.Second, MaxBatchSize: 2})

	body := `{"addresses": ["a", "b", "c"]}`
	req := httptest.NewRequest("POST", "/api/v1/analyze/batch", strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for oversize batch, got %d", w.Code)
	}
}

func TestBatchEndpoint_Empty(t *testing.T) {
	srv := setupServer(nil)

	req := httptest.NewRequest("POST", "/api/v1/analyze/batch", strings.NewReader(`{"addresses": []}`))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty batch, got %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := setupServer(nil)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	if body["service"] != "locus" {
		t.Errorf("expected service locus, got %v", body["service"])
	}
	hist := body["history"].(map[string]any)
	if hist["enabled"] != false {
		t.Errorf("expected history disabled, got %v", hist["enabled"])
	}
	events := body["events"].(map[string]any)
	if events["enabled"] != false {
		t.Errorf("expected events disabled, got %v", events["enabled"])
	}
	cacheInfo := body["cache"].(map[string]any)
	if cacheInfo["backend"] != "in-memory" {
		t.Errorf("expected in-memory cache backend, got %v", cacheInfo["backend"])
	}
	if _, ok := body["circuit_breakers"]; !ok {
		t.Error("expected a circuit_breakers snapshot in the health payload")
	}
}

func TestHealthEndpoint_WithHistory(t *testing.T) {
	srv := setupServer(testutil.NewMockHistory())

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	hist := body["history"].(map[string]any)
	if hist["enabled"] != true {
		t.Errorf("expected history enabled, got %v", hist["enabled"])
	}
	if hist["healthy"] != true {
		t.Errorf("expected history healthy, got %v", hist["healthy"])
	}
}

func TestHealthEndpoint_WithEvents(t *testing.T) {
	rc := cache.New(cache.Config{})
	reg := breaker.NewRegistry(breaker.Config{})
	eng := aggregator.New(goodDescriptors(), reg, rc, noGeocoder{}, nil, nil,
		aggregator.Options{CollectorTimeout: time.Second})
	srv := NewServer(eng, reg, rc, nil, stubEvents{healthy: true}, 8600)

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	events := body["events"].(map[string]any)
	if events["enabled"] != true {
		t.Errorf("expected events enabled, got %v", events["enabled"])
	}
	if events["healthy"] != true {
		t.Errorf("expected events healthy, got %v", events["healthy"])
	}
}

func TestBreakersEndpoint(t *testing.T) {
	reg := breaker.NewRegistry(breaker.Config{})
	reg.GetOrCreate("census_acs")
	srv := setupServerWith(nil, reg, goodDescriptors(), aggregator.Options{CollectorTimeout: time.Second})

	req := httptest.NewRequest("GET", "/api/v1/circuit-breakers", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	st, ok := body["census_acs"]
	if !ok {
		t.Fatalf("expected census_acs breaker in response, got %v", body)
	}
	if st["state"] != "closed" {
		t.Errorf("expected closed state, got %v", st["state"])
	}
}

func TestBreakersResetEndpoint(t *testing.T) {
	reg := breaker.NewRegistry(breaker.Config{FailureThreshold: 1, Timeout: time.Minute})
	_ = reg.GetOrCreate("census_acs").Call(context.Background(), func(context.Context) error {
		return errors.New("down")
	})
	srv := setupServerWith(nil, reg, goodDescriptors(), aggregator.Options{CollectorTimeout: time.Second})

	req := httptest.NewRequest("POST", "/api/v1/circuit-breakers/reset", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	if body["count"] != 1.0 {
		t.Errorf("expected 1 breaker reset, got %v", body["count"])
	}

	req = httptest.NewRequest("GET", "/api/v1/circuit-breakers", nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	var statuses map[string]map[string]any
	json.NewDecoder(w.Body).Decode(&statuses)
	if statuses["census_acs"]["state"] != "closed" {
		t.Errorf("expected breaker closed after reset, got %v", statuses["census_acs"]["state"])
	}
}

func TestCacheEndpoints(t *testing.T) {
	srv := setupServer(nil)

	analyze := httptest.NewRequest("POST", "/api/v1/analyze",
		strings.NewReader(`{"address": "100 Main St", "radius_miles": 3}`))
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, analyze)
	if w.Code != http.StatusOK {
		t.Fatalf("analyze: expected 200, got %d", w.Code)
	}

	req := httptest.NewRequest("GET", "/api/v1/cache/stats", nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	var stats map[string]any
	json.NewDecoder(w.Body).Decode(&stats)
	if stats["backend"] != "in-memory" {
		t.Errorf("expected in-memory backend, got %v", stats["backend"])
	}
	if stats["items"] != 1.0 {
		t.Errorf("expected 1 cached item, got %v", stats["items"])
	}

	req = httptest.NewRequest("POST", "/api/v1/cache/clear", nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	var cleared map[string]any
	json.NewDecoder(w.Body).Decode(&cleared)
	if cleared["cleared"] != 1.0 {
		t.Errorf("expected 1 entry cleared, got %v", cleared["cleared"])
	}
}

func TestHistoryEndpoints_Disabled(t *testing.T) {
	srv := setupServer(nil)

	for _, path := range []string{"/api/v1/history", "/api/v1/trends?address=x", "/api/v1/statistics"} {
		req := httptest.NewRequest("GET", path, nil)
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), "history disabled") {
			t.Errorf("%s: expected history disabled error, got %s", path, w.Body.String())
		}
	}
}

func TestHistoryEndpoint(t *testing.T) {
	mh := testutil.NewMockHistory()
	mh.SeedRecord(history.Record{Address: "100 Main St", NormalizedAddress: "100 main st", OverallScore: 70, Status: "completed", CreatedAt: time.Now().UTC()})
	mh.SeedRecord(history.Record{Address: "100 Main St", NormalizedAddress: "100 main st", OverallScore: 72, Status: "completed", CreatedAt: time.Now().UTC()})
	mh.SeedRecord(history.Record{Address: "200 Oak Ave", NormalizedAddress: "200 oak ave", OverallScore: 55, Status: "completed", CreatedAt: time.Now().UTC()})
	srv := setupServer(mh)

	req := httptest.NewRequest("GET", "/api/v1/history", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var all []map[string]any
	json.NewDecoder(w.Body).Decode(&all)
	if len(all) != 3 {
		t.Errorf("expected 3 records, got %d", len(all))
	}

	req = httptest.NewRequest("GET", "/api/v1/history?address=100+Main+St", nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	var filtered []map[string]any
	json.NewDecoder(w.Body).Decode(&filtered)
	if len(filtered) != 2 {
		t.Errorf("expected 2 records for the address, got %d", len(filtered))
	}
}

func TestTrendsEndpoint(t *testing.T) {
	mh := testutil.NewMockHistory()
	mh.SeedTrend("100 main st", history.TrendPoint{MetricType: "overall_score", Value: 72, RecordedAt: time.Now().UTC()})
	srv := setupServer(mh)

	req := httptest.NewRequest("GET", "/api/v1/trends", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without address, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/trends?address=100+Main+St", nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	if body["metric"] != "overall_score" {
		t.Errorf("expected default metric overall_score, got %v", body["metric"])
	}
	points := body["points"].([]any)
	if len(points) != 1 {
		t.Errorf("expected 1 trend point, got %d", len(points))
	}
}

func TestStatisticsEndpoint(t *testing.T) {
	mh := testutil.NewMockHistory()
	mh.SeedRecord(history.Record{NormalizedAddress: "a", OverallScore: 80, Status: "completed"})
	mh.SeedRecord(history.Record{NormalizedAddress: "b", OverallScore: 60, Status: "completed"})
	mh.SeedRecord(history.Record{NormalizedAddress: "a", Status: "failed"})
	srv := setupServer(mh)

	req := httptest.NewRequest("GET", "/api/v1/statistics", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var stats map[string]any
	json.NewDecoder(w.Body).Decode(&stats)
	if stats["total_analyses"] != 3.0 {
		t.Errorf("expected 3 total analyses, got %v", stats["total_analyses"])
	}
	if stats["unique_locations"] != 2.0 {
		t.Errorf("expected 2 unique locations, got %v", stats["unique_locations"])
	}
	rate, _ := stats["success_rate"].(float64)
	if rate < 66 || rate > 67 {
		t.Errorf("expected success rate near 66.7, got %v", rate)
	}
}

func TestReportEndpoint(t *testing.T) {
	srv := setupServer(nil)

	req := httptest.NewRequest("GET", "/api/v1/report", nil)
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without address, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/report?address=100+Main+St", nil)
	w = httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/markdown") {
		t.Errorf("expected markdown content type, got %s", ct)
	}
	if !strings.Contains(w.Body.String(), "# Location Analysis Report") {
		t.Errorf("expected report header, body was: %s", w.Body.String())
	}
}
