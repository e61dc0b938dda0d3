package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldscope/locus/internal/aggregator"
	"github.com/fieldscope/locus/internal/api"
	"github.com/fieldscope/locus/internal/breaker"
	"github.com/fieldscope/locus/internal/cache"
	"github.com/fieldscope/locus/internal/config"
	"github.com/fieldscope/locus/internal/geocode"
	"github.com/fieldscope/locus/internal/history"
	"github.com/fieldscope/locus/internal/notify"
	"github.com/fieldscope/locus/internal/profile"
	slackalert "github.com/fieldscope/locus/internal/slack"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("locus starting",
		"port", cfg.Port,
		"profile", cfg.Profile,
		"redis_addr", cfg.RedisAddr,
		"collector_timeout", cfg.CollectorTimeout,
		"max_batch", cfg.MaxBatchSize,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Step 1: Result cache (Redis with in-process fallback).
	resultCache := cache.New(cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.CacheTTL,
	})
	defer resultCache.Close()

	// Step 2: Historical store and async writer, when a database is configured.
	var (
		dataStore history.DataStore
		writer    *history.Writer
	)
	if cfg.DatabaseURL != "" {
		store, err := history.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer store.Close()
		dataStore = store

		writer = history.NewWriter(store, cfg.HistoryQueueSize)
		writer.Start(ctx)
		slog.Info("history store connected")
	} else {
		slog.Info("history disabled", "reason", "no DATABASE_URL configured")
	}

	// Step 3: Breaker registry, with Slack alerts when configured.
	registry := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		SuccessThreshold: cfg.BreakerSuccessThreshold,
		Timeout:          cfg.BreakerTimeout,
	})
	if cfg.SlackBotToken != "" && cfg.SlackAlertChannel != "" {
		alerter := slackalert.NewAlerter(cfg.SlackBotToken, cfg.SlackAlertChannel)
		registry.OnStateChange(func(name string, from, to breaker.State) {
			if to != breaker.StateOpen {
				return
			}
			go func() {
				alertCtx, alertCancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer alertCancel()
				if err := alerter.PostBreakerAlert(alertCtx, name, from, to, cfg.BreakerTimeout); err != nil {
					slog.Warn("failed to post breaker alert", "breaker", name, "error", err)
				}
			}()
		})
		slog.Info("Slack breaker alerter enabled", "channel", cfg.SlackAlertChannel)
	}

	// Step 4: Collector profile and geocoder.
	descriptors, err := profile.Descriptors(cfg.Profile, profile.Keys{
		Census:     cfg.CensusAPIKey,
		GoogleMaps: cfg.GoogleMapsAPIKey,
	})
	if err != nil {
		slog.Error("invalid profile", "error", err)
		os.Exit(1)
	}

	var geocoder geocode.Geocoder = geocode.Disabled{}
	if cfg.GoogleMapsAPIKey != "" {
		geocoder = geocode.NewGoogle(cfg.GoogleMapsAPIKey)
	}

	// Step 5: Event publisher, when a broker is configured.
	var (
		notifier     aggregator.Notifier
		eventsHealth api.EventsHealth
	)
	if cfg.NatsURL != "" {
		pub, err := notify.New(ctx, cfg.NatsURL)
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		notifier = pub
		eventsHealth = pub
	} else {
		slog.Info("event publishing disabled", "reason", "no NATS_URL configured")
	}

	// Step 6: Aggregation engine.
	engine := aggregator.New(descriptors, registry, resultCache, geocoder, writer, notifier, aggregator.Options{
		CollectorTimeout: cfg.CollectorTimeout,
		Profile:          cfg.Profile,
		MaxBatchSize:     cfg.MaxBatchSize,
	})

	// Step 7: HTTP API.
	srv := api.NewServer(engine, registry, resultCache, dataStore, eventsHealth, cfg.Port)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("locus ready", "port", cfg.Port, "collectors", len(descriptors))

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	slog.Info("shutting down", "signal", sig)
	cancel()
	if writer != nil {
		writer.Wait()
	}
	slog.Info("locus stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
