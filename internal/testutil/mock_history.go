// Package testutil provides in-memory fakes shared by handler tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/fieldscope/locus/internal/history"
)

// MockHistory is a thread-safe in-memory implementation of
// history.DataStore for testing.
type MockHistory struct {
	mu sync.Mutex

	Records []history.Record
	trends  []trendRow

	SaveErr   error
	QueryErr  error
	Unhealthy bool

	SaveCalls int
}

type trendRow struct {
	addr  string
	point history.TrendPoint
}

func NewMockHistory() *MockHistory {
	return &MockHistory{Records: make([]history.Record, 0)}
}

func (m *MockHistory) Save(_ context.Context, rec history.Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	if m.SaveErr != nil {
		return 0, m.SaveErr
	}

	rec.ID = int64(len(m.Records) + 1)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.Records = append(m.Records, rec)

	if rec.Status == "completed" {
		m.trends = append(m.trends, trendRow{rec.NormalizedAddress, history.TrendPoint{
			MetricType: "overall_score",
			Value:      rec.OverallScore,
			RecordedAt: rec.CreatedAt,
		}})
		for name, cat := range rec.Categories {
			m.trends = append(m.trends, trendRow{rec.NormalizedAddress, history.TrendPoint{
				MetricType: name,
				Value:      cat.Score,
				RecordedAt: rec.CreatedAt,
			}})
		}
	}
	return rec.ID, nil
}

func (m *MockHistory) Recent(_ context.Context, limit int) ([]history.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var results []history.Record
	for i := len(m.Records) - 1; i >= 0 && len(results) < limit; i-- {
		results = append(results, m.Records[i])
	}
	return results, nil
}

func (m *MockHistory) ForAddress(_ context.Context, normalizedAddress string, limit int) ([]history.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	var results []history.Record
	for i := len(m.Records) - 1; i >= 0 && len(results) < limit; i-- {
		if m.Records[i].NormalizedAddress == normalizedAddress {
			results = append(results, m.Records[i])
		}
	}
	return results, nil
}

func (m *MockHistory) Trends(_ context.Context, normalizedAddress, metricType string, days int) ([]history.TrendPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	var points []history.TrendPoint
	for _, row := range m.trends {
		if row.addr == normalizedAddress && row.point.MetricType == metricType && !row.point.RecordedAt.Before(cutoff) {
			points = append(points, row.point)
		}
	}
	return points, nil
}

func (m *MockHistory) Statistics(_ context.Context) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}

	var completed, failed int64
	var scoreSum float64
	unique := make(map[string]bool)
	for _, rec := range m.Records {
		unique[rec.NormalizedAddress] = true
		switch rec.Status {
		case "completed":
			completed++
			scoreSum += rec.OverallScore
		case "failed":
			failed++
		}
	}

	total := int64(len(m.Records))
	successRate := 0.0
	if total > 0 {
		successRate = float64(completed) / float64(total) * 100
	}
	avgScore := 0.0
	if completed > 0 {
		avgScore = scoreSum / float64(completed)
	}

	return map[string]any{
		"total_analyses":   total,
		"completed":        completed,
		"failed":           failed,
		"success_rate":     successRate,
		"unique_locations": int64(len(unique)),
		"average_score":    avgScore,
	}, nil
}

func (m *MockHistory) Healthy(_ context.Context) bool {
	return !m.Unhealthy
}

func (m *MockHistory) Close() {}

// SeedRecord inserts a record directly, bypassing Save bookkeeping.
func (m *MockHistory) SeedRecord(rec history.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = int64(len(m.Records) + 1)
	m.Records = append(m.Records, rec)
}

// SeedTrend inserts a trend point for the given location.
func (m *MockHistory) SeedTrend(normalizedAddress string, p history.TrendPoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trends = append(m.trends, trendRow{normalizedAddress, p})
}

// GetSaveCalls returns how many times Save was called.
func (m *MockHistory) GetSaveCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SaveCalls
}

// RecordCount returns total records stored.
func (m *MockHistory) RecordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Records)
}
