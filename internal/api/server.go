package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fieldscope/locus/internal/aggregator"
	"github.com/fieldscope/locus/internal/analysis"
	"github.com/fieldscope/locus/internal/breaker"
	"github.com/fieldscope/locus/internal/cache"
	"github.com/fieldscope/locus/internal/history"
	"github.com/fieldscope/locus/internal/report"
)

// EventsHealth reports broker connectivity for the health endpoint.
type EventsHealth interface {
	Healthy() bool
}

type Server struct {
	engine   *aggregator.Engine
	registry *breaker.Registry
	cache    *cache.ResultCache
	history  history.DataStore
	events   EventsHealth
	router   chi.Router
	port     int
	started  time.Time
}

// NewServer wires the HTTP surface. history may be nil when no database
// is configured (the history endpoints then answer 503), and events may
// be nil when no broker is configured.
func NewServer(engine *aggregator.Engine, registry *breaker.Registry, resultCache *cache.ResultCache, hist history.DataStore, events EventsHealth, port int) *Server {
	srv := &Server{
		engine:   engine,
		registry: registry,
		cache:    resultCache,
		history:  hist,
		events:   events,
		port:     port,
		started:  time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/analyze", srv.handleAnalyze)
		r.Post("/analyze/batch", srv.handleAnalyzeBatch)
		r.Get("/health", srv.handleHealth)
		r.Get("/circuit-breakers", srv.handleBreakers)
		r.Post("/circuit-breakers/reset", srv.handleBreakersReset)
		r.Get("/cache/stats", srv.handleCacheStats)
		r.Post("/cache/clear", srv.handleCacheClear)
		r.Get("/history", srv.handleHistory)
		r.Get("/trends", srv.handleTrends)
		r.Get("/statistics", srv.handleStatistics)
		r.Get("/report", srv.handleReport)
	})

	srv.router = r
	return srv
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("starting HTTP API", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

type analyzeRequest struct {
	Address     string  `json:"address"`
	RadiusMiles float64 `json:"radius_miles"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res, err := s.engine.Analyze(r.Context(), req.Address, req.RadiusMiles)
	if err != nil {
		s.writeAnalyzeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

type batchRequest struct {
	Addresses   []string `json:"addresses"`
	RadiusMiles float64  `json:"radius_miles"`
}

func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	items, err := s.engine.AnalyzeBatch(r.Context(), req.Addresses, req.RadiusMiles)
	if err != nil {
		s.writeAnalyzeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(items),
		"results": items,
	})
}

// writeAnalyzeError maps engine errors to HTTP statuses. Collector
// failures never reach here; they degrade inside the engine.
func (s *Server) writeAnalyzeError(w http.ResponseWriter, err error) {
	if aggregator.IsRequestError(err) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	slog.Error("analysis failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.cache.Stats(r.Context())
	resp := map[string]any{
		"status":         "ok",
		"service":        "locus",
		"uptime_seconds": math.Round(time.Since(s.started).Seconds()),
		"cache": map[string]any{
			"backend":          st.Backend,
			"healthy":          s.cache.Healthy(r.Context()),
			"items":            st.Items,
			"hits":             st.Hits,
			"misses":           st.Misses,
			"hit_rate_percent": st.HitRatePercent,
		},
		"circuit_breakers": s.registry.StatusAll(),
	}

	hist := map[string]any{"enabled": s.history != nil}
	if s.history != nil {
		hist["healthy"] = s.history.Healthy(r.Context())
	}
	resp["history"] = hist

	events := map[string]any{"enabled": s.events != nil}
	if s.events != nil {
		events["healthy"] = s.events.Healthy()
	}
	resp["events"] = events

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBreakers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.StatusAll())
}

func (s *Server) handleBreakersReset(w http.ResponseWriter, r *http.Request) {
	names := s.registry.ResetAll()
	slog.Info("circuit breakers reset", "count", len(names))
	writeJSON(w, http.StatusOK, map[string]any{
		"reset": names,
		"count": len(names),
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cache.Stats(r.Context()))
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	n := s.cache.ClearAll(r.Context())
	slog.Info("cache cleared", "entries", n)
	writeJSON(w, http.StatusOK, map[string]any{"cleared": n})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "history disabled"})
		return
	}

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	var (
		records []history.Record
		err     error
	)
	if address := r.URL.Query().Get("address"); address != "" {
		records, err = s.history.ForAddress(r.Context(), analysis.NormalizeAddress(address), limit)
	} else {
		records, err = s.history.Recent(r.Context(), limit)
	}
	if err != nil {
		slog.Error("history query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if records == nil {
		records = []history.Record{}
	}

	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "history disabled"})
		return
	}

	address := r.URL.Query().Get("address")
	if address == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address is required"})
		return
	}

	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = "overall_score"
	}
	days := 30
	if d := r.URL.Query().Get("days"); d != "" {
		if n, err := strconv.Atoi(d); err == nil && n > 0 {
			days = n
		}
	}

	normalized := analysis.NormalizeAddress(address)
	points, err := s.history.Trends(r.Context(), normalized, metric, days)
	if err != nil {
		slog.Error("trends query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if points == nil {
		points = []history.TrendPoint{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"address": normalized,
		"metric":  metric,
		"days":    days,
		"points":  points,
	})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "history disabled"})
		return
	}

	stats, err := s.history.Statistics(r.Context())
	if err != nil {
		slog.Error("statistics query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address is required"})
		return
	}

	radius := 0.0
	if rm := r.URL.Query().Get("radius_miles"); rm != "" {
		if v, err := strconv.ParseFloat(rm, 64); err == nil {
			radius = v
		}
	}

	res, err := s.engine.Analyze(r.Context(), address, radius)
	if err != nil {
		s.writeAnalyzeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report.Markdown(res)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
