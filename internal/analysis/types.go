// Package analysis defines the result model shared by the aggregator,
// cache, history store, and HTTP surface, plus the scoring rules that
// turn per-category results into an overall score.
package analysis

import (
	"strings"
	"time"

	"github.com/fieldscope/locus/internal/timing"
)

// CategoryResult is one collector's contribution: the required score and
// confidence plus an open map of whatever metrics the collector gathered.
type CategoryResult struct {
	Score      float64        `json:"score"`
	Confidence string         `json:"confidence,omitempty"`
	Error      string         `json:"error,omitempty"`
	Metrics    map[string]any `json:"metrics"`
}

// Result is a completed location analysis.
type Result struct {
	Address           string                    `json:"address"`
	NormalizedAddress string                    `json:"normalized_address"`
	RadiusMiles       float64                   `json:"radius_miles"`
	OverallScore      float64                   `json:"overall_score"`
	Recommendation    string                    `json:"recommendation"`
	Categories        map[string]CategoryResult `json:"categories"`
	DataPoints        int                       `json:"data_points_collected"`
	Cached            bool                      `json:"cached"`
	Timing            *timing.Report            `json:"timing,omitempty"`
	AnalyzedAt        time.Time                 `json:"analyzed_at"`
}

// NormalizeAddress produces the canonical request key: trimmed and
// lowercased, so " 123 Main St " and "123 main st" resolve identically.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}
