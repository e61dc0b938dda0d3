package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the Postgres-backed DataStore.
type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_records (
			id BIGSERIAL PRIMARY KEY,
			address TEXT NOT NULL,
			normalized_address TEXT NOT NULL,
			overall_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			data_points INTEGER NOT NULL DEFAULT 0,
			duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'completed',
			error_message TEXT,
			profile TEXT NOT NULL DEFAULT '',
			categories JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analysis_records_addr
			ON analysis_records (normalized_address, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS location_trends (
			id BIGSERIAL PRIMARY KEY,
			normalized_address TEXT NOT NULL,
			metric_type TEXT NOT NULL,
			value DOUBLE PRECISION NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_location_trends_lookup
			ON location_trends (normalized_address, metric_type, recorded_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save inserts the record and derives one trend row per scored category
// plus the overall score, in a single transaction.
func (s *Store) Save(ctx context.Context, rec Record) (int64, error) {
	var categories []byte
	if rec.Categories != nil {
		var err error
		categories, err = json.Marshal(rec.Categories)
		if err != nil {
			return 0, fmt.Errorf("encode categories: %w", err)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO analysis_records
			(address, normalized_address, overall_score, data_points,
			 duration_seconds, status, error_message, profile, categories)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
		RETURNING id
	`, rec.Address, rec.NormalizedAddress, rec.OverallScore, rec.DataPoints,
		rec.DurationSeconds, rec.Status, rec.ErrorMessage, rec.Profile, categories).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert record: %w", err)
	}

	if rec.Status == "completed" {
		if err := s.insertTrends(ctx, tx, rec); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit save: %w", err)
	}

	slog.Debug("saved analysis record", "id", id, "address", rec.NormalizedAddress)
	return id, nil
}

func (s *Store) insertTrends(ctx context.Context, tx pgx.Tx, rec Record) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO location_trends (normalized_address, metric_type, value)
		VALUES ($1, 'overall_score', $2)
	`, rec.NormalizedAddress, rec.OverallScore)
	if err != nil {
		return fmt.Errorf("insert overall trend: %w", err)
	}

	for name, cat := range rec.Categories {
		if _, err := tx.Exec(ctx, `
			INSERT INTO location_trends (normalized_address, metric_type, value)
			VALUES ($1, $2, $3)
		`, rec.NormalizedAddress, name, cat.Score); err != nil {
			return fmt.Errorf("insert %s trend: %w", name, err)
		}
	}
	return nil
}

// Recent returns the latest records across all locations, capped at 100.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.queryRecords(ctx, `
		SELECT id, address, normalized_address, overall_score, data_points,
		       duration_seconds, status, error_message, profile, created_at
		FROM analysis_records
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
}

// ForAddress returns one location's history, newest first.
func (s *Store) ForAddress(ctx context.Context, normalizedAddress string, limit int) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	return s.queryRecords(ctx, `
		SELECT id, address, normalized_address, overall_score, data_points,
		       duration_seconds, status, error_message, profile, created_at
		FROM analysis_records
		WHERE normalized_address = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, normalizedAddress, limit)
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		var (
			rec    Record
			errMsg *string
		)
		if err := rows.Scan(&rec.ID, &rec.Address, &rec.NormalizedAddress,
			&rec.OverallScore, &rec.DataPoints, &rec.DurationSeconds,
			&rec.Status, &errMsg, &rec.Profile, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if errMsg != nil {
			rec.ErrorMessage = *errMsg
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// Trends returns one metric's series for a location since the cutoff.
func (s *Store) Trends(ctx context.Context, normalizedAddress, metricType string, days int) ([]TrendPoint, error) {
	if days <= 0 {
		days = 30
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	rows, err := s.pool.Query(ctx, `
		SELECT metric_type, value, recorded_at
		FROM location_trends
		WHERE normalized_address = $1 AND metric_type = $2 AND recorded_at >= $3
		ORDER BY recorded_at
	`, normalizedAddress, metricType, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.MetricType, &p.Value, &p.RecordedAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Statistics summarizes the whole table for the statistics endpoint.
func (s *Store) Statistics(ctx context.Context) (map[string]any, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'completed'),
		       COUNT(*) FILTER (WHERE status = 'failed'),
		       COUNT(DISTINCT normalized_address),
		       COALESCE(AVG(overall_score) FILTER (WHERE status = 'completed'), 0)
		FROM analysis_records
	`)

	var (
		total, completed, failed, unique int64
		avgScore                         float64
	)
	if err := row.Scan(&total, &completed, &failed, &unique, &avgScore); err != nil {
		return nil, err
	}

	successRate := 0.0
	if total > 0 {
		successRate = float64(completed) / float64(total) * 100
	}

	return map[string]any{
		"total_analyses":   total,
		"completed":        completed,
		"failed":           failed,
		"success_rate":     successRate,
		"unique_locations": unique,
		"average_score":    avgScore,
	}, nil
}

// Healthy reports database reachability for the health endpoint.
func (s *Store) Healthy(ctx context.Context) bool {
	return s.pool.Ping(ctx) == nil
}
