// Package aggregator runs the fan-out/fan-in analysis pipeline: geocode
// the address, collect every category behind its circuit breaker, merge
// branch outcomes, score, then persist and publish best-effort.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/fieldscope/locus/internal/analysis"
	"github.com/fieldscope/locus/internal/breaker"
	"github.com/fieldscope/locus/internal/cache"
	"github.com/fieldscope/locus/internal/collectors"
	"github.com/fieldscope/locus/internal/geocode"
	"github.com/fieldscope/locus/internal/history"
	"github.com/fieldscope/locus/internal/timing"
)

// DefaultRadiusMiles is used when a request does not specify a radius.
const DefaultRadiusMiles = 3.0

var (
	// ErrEmptyAddress rejects analyses with no usable address.
	ErrEmptyAddress = errors.New("address is required")
	// ErrEmptyBatch rejects batch requests carrying no addresses.
	ErrEmptyBatch = errors.New("at least one address is required")
	// ErrBatchTooLarge rejects batches over the configured limit.
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")
)

// IsRequestError reports whether err is a client mistake the HTTP layer
// answers with 400. Anything else is an internal failure.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrEmptyAddress) ||
		errors.Is(err, ErrEmptyBatch) ||
		errors.Is(err, ErrBatchTooLarge)
}

// Descriptor binds one category collector to its scoring weight. Weight
// zero keeps the category in results but out of the overall score.
type Descriptor struct {
	Name      string
	Weight    float64
	Collector collectors.Collector
}

// Notifier abstracts event publishing so the engine runs without NATS.
type Notifier interface {
	AnalysisCompleted(ctx context.Context, res *analysis.Result)
}

// Options tune the engine. Zero values fall back to defaults.
type Options struct {
	CollectorTimeout time.Duration // per-branch budget
	NeutralScore     float64       // substituted for failed branches
	Profile          string        // recorded on history rows
	MaxBatchSize     int
}

func (o Options) withDefaults() Options {
	if o.CollectorTimeout <= 0 {
		o.CollectorTimeout = 60 * time.Second
	}
	if o.NeutralScore <= 0 {
		o.NeutralScore = analysis.NeutralScore
	}
	if o.Profile == "" {
		o.Profile = "childcare"
	}
	if o.MaxBatchSize <= 0 {
		o.MaxBatchSize = 50
	}
	return o
}

// Engine fans one analysis out across all registered collectors and
// folds the branch outcomes into a single result. Collaborators are
// injected; writer and notifier may be nil when those tiers are off.
type Engine struct {
	descriptors []Descriptor
	weights     analysis.Weights
	registry    *breaker.Registry
	results     *cache.ResultCache
	geocoder    geocode.Geocoder
	writer      *history.Writer
	notifier    Notifier
	opts        Options
}

// New builds the engine. Weights come from the descriptors so a profile
// swap changes scoring and collection together.
func New(descriptors []Descriptor, registry *breaker.Registry, results *cache.ResultCache, geocoder geocode.Geocoder, writer *history.Writer, notifier Notifier, opts Options) *Engine {
	weights := make(analysis.Weights, len(descriptors))
	for _, d := range descriptors {
		weights[d.Name] = d.Weight
	}
	return &Engine{
		descriptors: descriptors,
		weights:     weights,
		registry:    registry,
		results:     results,
		geocoder:    geocoder,
		writer:      writer,
		notifier:    notifier,
		opts:        opts.withDefaults(),
	}
}

// branchOutcome carries one branch's result to the single merge point.
type branchOutcome struct {
	name   string
	result analysis.CategoryResult
	err    error
}

// Analyze runs the full pipeline for one address. Collector failures,
// open breakers, timeouts, and panics degrade to neutral categories;
// the only error returned is an invalid request.
func (e *Engine) Analyze(ctx context.Context, address string, radiusMiles float64) (*analysis.Result, error) {
	if strings.TrimSpace(address) == "" {
		return nil, ErrEmptyAddress
	}
	if radiusMiles <= 0 {
		radiusMiles = DefaultRadiusMiles
	}

	normalized := analysis.NormalizeAddress(address)

	if res, ok := e.results.Get(ctx, address, radiusMiles); ok {
		res.Cached = true
		slog.Info("analysis served from cache", "address", normalized, "radius_miles", radiusMiles)
		return res, nil
	}

	started := time.Now()
	recorder := timing.NewRecorder()

	req := collectors.Request{Address: address, RadiusMiles: radiusMiles}
	if err := recorder.Track("address_validation", func() error {
		loc, err := e.geocoder.Geocode(ctx, address)
		if err != nil {
			return err
		}
		req.Latitude = loc.Latitude
		req.Longitude = loc.Longitude
		return nil
	}); err != nil && !errors.Is(err, geocode.ErrDisabled) {
		slog.Warn("geocoding failed, continuing without coordinates", "address", normalized, "error", err)
	}

	// Fan-out: one goroutine per category, joined by index so merge
	// order never depends on completion order.
	outcomes := make([]branchOutcome, len(e.descriptors))
	var wg sync.WaitGroup
	for i, d := range e.descriptors {
		wg.Add(1)
		go func(i int, d Descriptor) {
			defer wg.Done()
			outcomes[i] = e.collect(ctx, d, req, recorder)
		}(i, d)
	}
	wg.Wait()

	categories := make(map[string]analysis.CategoryResult, len(outcomes))
	failed := 0
	var firstErr error
	for _, out := range outcomes {
		if out.err != nil {
			failed++
			if firstErr == nil {
				firstErr = out.err
			}
			categories[out.name] = e.defaultResult(out.err)
			continue
		}
		categories[out.name] = out.result
	}

	overall := analysis.OverallScore(categories, e.weights, e.opts.NeutralScore)
	res := &analysis.Result{
		Address:           address,
		NormalizedAddress: normalized,
		RadiusMiles:       radiusMiles,
		OverallScore:      overall,
		Recommendation:    analysis.Recommend(overall),
		Categories:        categories,
		DataPoints:        analysis.CountDataPoints(categories),
		AnalyzedAt:        time.Now().UTC(),
	}
	res.Timing = recorder.Report()

	slog.Info("analysis complete",
		"address", normalized,
		"overall_score", res.OverallScore,
		"recommendation", res.Recommendation,
		"failed_categories", failed,
		"data_points", res.DataPoints,
		"duration_ms", res.Timing.TotalTimeMs,
	)

	e.finish(res, time.Since(started), failed == len(outcomes) && len(outcomes) > 0, firstErr)
	return res, nil
}

// collect runs one collector behind its breaker under the branch budget.
// A panicking collector becomes a branch error so siblings finish.
func (e *Engine) collect(ctx context.Context, d Descriptor, req collectors.Request, rec *timing.Recorder) branchOutcome {
	out := branchOutcome{name: d.Name}

	branchCtx, cancel := context.WithTimeout(ctx, e.opts.CollectorTimeout)
	defer cancel()

	out.err = rec.Track(d.Name+"_total", func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("collector panic: %v", p)
			}
		}()
		return e.registry.GetOrCreate(d.Name).Call(branchCtx, func(callCtx context.Context) error {
			result, collectErr := d.Collector.Collect(callCtx, req)
			if collectErr != nil {
				return collectErr
			}
			out.result = result
			return nil
		})
	})
	return out
}

// defaultResult substitutes a neutral category for a failed branch so
// one bad dependency never sinks the whole analysis.
func (e *Engine) defaultResult(err error) analysis.CategoryResult {
	reason := err.Error()
	var openErr *breaker.OpenError
	switch {
	case errors.As(err, &openErr):
		reason = fmt.Sprintf("circuit open: retry in %.0fs", openErr.RetryIn.Seconds())
	case errors.Is(err, context.DeadlineExceeded):
		reason = "collection timed out"
	}
	return analysis.CategoryResult{
		Score:      e.opts.NeutralScore,
		Confidence: "low",
		Error:      reason,
		Metrics:    map[string]any{},
	}
}

// finish runs the best-effort post-steps. Cache and history are quick
// and synchronous; publishing detaches so a slow broker cannot hold the
// response. An analysis where every branch failed is not cached, so the
// next request retries the dependencies instead of pinning neutrals for
// a full TTL.
func (e *Engine) finish(res *analysis.Result, elapsed time.Duration, allFailed bool, firstErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if !allFailed {
		e.results.Set(ctx, res.Address, res.RadiusMiles, res)
	}

	if e.writer != nil {
		rec := history.Record{
			Address:           res.Address,
			NormalizedAddress: res.NormalizedAddress,
			OverallScore:      res.OverallScore,
			DataPoints:        res.DataPoints,
			DurationSeconds:   math.Round(elapsed.Seconds()*100) / 100,
			Status:            "completed",
			Profile:           e.opts.Profile,
			Categories:        res.Categories,
			CreatedAt:         res.AnalyzedAt,
		}
		if allFailed {
			rec.Status = "failed"
			if firstErr != nil {
				rec.ErrorMessage = firstErr.Error()
			}
		}
		e.writer.Enqueue(rec)
	}

	if e.notifier != nil {
		go func() {
			pubCtx, pubCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer pubCancel()
			e.notifier.AnalysisCompleted(pubCtx, res)
		}()
	}
}

// BatchItem is one address's outcome in a batch response.
type BatchItem struct {
	Address string           `json:"address"`
	Result  *analysis.Result `json:"result,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// AnalyzeBatch runs up to MaxBatchSize addresses concurrently. Individual
// failures land in their item; only an invalid batch itself errors.
func (e *Engine) AnalyzeBatch(ctx context.Context, addresses []string, radiusMiles float64) ([]BatchItem, error) {
	if len(addresses) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(addresses) > e.opts.MaxBatchSize {
		return nil, fmt.Errorf("%w: got %d, limit %d", ErrBatchTooLarge, len(addresses), e.opts.MaxBatchSize)
	}

	items := make([]BatchItem, len(addresses))
	var wg sync.WaitGroup
	for i, addr := range addresses {
		wg.Add(1)
		go func(i int, addr string) {
			defer wg.Done()
			items[i].Address = addr
			res, err := e.Analyze(ctx, addr, radiusMiles)
			if err != nil {
				items[i].Error = err.Error()
				return
			}
			items[i].Result = res
		}(i, addr)
	}
	wg.Wait()
	return items, nil
}
