// Package collectors gathers per-category location data from public and
// commercial APIs. Every collector satisfies the same contract so the
// aggregator can fan out over them uniformly.
package collectors

import (
	"context"

	"github.com/fieldscope/locus/internal/analysis"
)

// Request identifies the location under analysis. Latitude/Longitude are
// zero when geocoding is unavailable; collectors fall back to state-level
// estimates where they can instead of failing.
type Request struct {
	Address     string
	Latitude    float64
	Longitude   float64
	RadiusMiles float64
}

// HasCoordinates reports whether geocoding produced a usable point.
func (r Request) HasCoordinates() bool {
	return r.Latitude != 0 || r.Longitude != 0
}

// Collector produces one category's scored result. Implementations
// return an error rather than a partial result when collection fails;
// the aggregator substitutes a neutral default.
type Collector interface {
	Name() string
	Collect(ctx context.Context, req Request) (analysis.CategoryResult, error)
}
