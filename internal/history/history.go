// Package history persists completed analyses for trend tracking. Writes
// go through an async writer so a slow or absent database never delays a
// response.
package history

import (
	"context"
	"time"

	"github.com/fieldscope/locus/internal/analysis"
)

// Record is one persisted analysis outcome.
type Record struct {
	ID                int64                              `json:"id,omitempty"`
	Address           string                             `json:"address"`
	NormalizedAddress string                             `json:"normalized_address"`
	OverallScore      float64                            `json:"overall_score"`
	DataPoints        int                                `json:"data_points"`
	DurationSeconds   float64                            `json:"duration_seconds"`
	Status            string                             `json:"status"`
	ErrorMessage      string                             `json:"error_message,omitempty"`
	Profile           string                             `json:"profile,omitempty"`
	Categories        map[string]analysis.CategoryResult `json:"categories,omitempty"`
	CreatedAt         time.Time                          `json:"created_at"`
}

// TrendPoint is one sample in a per-location metric series.
type TrendPoint struct {
	MetricType string    `json:"metric_type"`
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Saver is the write-side contract the async writer drains into.
type Saver interface {
	Save(ctx context.Context, rec Record) (int64, error)
}

// DataStore is the interface consumed by the writer and the API.
// The concrete implementation is *Store (pgx-backed).
type DataStore interface {
	Saver
	Recent(ctx context.Context, limit int) ([]Record, error)
	ForAddress(ctx context.Context, normalizedAddress string, limit int) ([]Record, error)
	Trends(ctx context.Context, normalizedAddress, metricType string, days int) ([]TrendPoint, error)
	Statistics(ctx context.Context) (map[string]any, error)
	Healthy(ctx context.Context) bool
	Close()
}
