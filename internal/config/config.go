package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                    int
	RedisAddr               string
	RedisPassword           string
	RedisDB                 int
	CacheTTL                time.Duration
	DatabaseURL             string
	NatsURL                 string
	SlackBotToken           string
	SlackAlertChannel       string
	Profile                 string
	CensusAPIKey            string
	GoogleMapsAPIKey        string
	BreakerFailureThreshold int
	BreakerSuccessThreshold int
	BreakerTimeout          time.Duration
	CollectorTimeout        time.Duration
	HistoryQueueSize        int
	MaxBatchSize            int
	LogLevel                string
}

func Load() Config {
	return Config{
		Port:                    envInt("LOCUS_PORT", 8600),
		RedisAddr:               envStr("REDIS_ADDR", ""),
		RedisPassword:           envStr("REDIS_PASSWORD", ""),
		RedisDB:                 envInt("REDIS_DB", 0),
		CacheTTL:                time.Duration(envInt("CACHE_TTL_HOURS", 24)) * time.Hour,
		DatabaseURL:             envStr("DATABASE_URL", ""),
		NatsURL:                 envStr("NATS_URL", ""),
		SlackBotToken:           envStr("SLACK_BOT_TOKEN", ""),
		SlackAlertChannel:       envStr("SLACK_ALERT_CHANNEL", "#locus-alerts"),
		Profile:                 envStr("PROFILE", "childcare"),
		CensusAPIKey:            envStr("CENSUS_API_KEY", ""),
		GoogleMapsAPIKey:        envStr("GOOGLE_MAPS_API_KEY", ""),
		BreakerFailureThreshold: envInt("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerSuccessThreshold: envInt("BREAKER_SUCCESS_THRESHOLD", 2),
		BreakerTimeout:          time.Duration(envInt("BREAKER_TIMEOUT_S", 60)) * time.Second,
		CollectorTimeout:        time.Duration(envInt("COLLECTOR_TIMEOUT_S", 60)) * time.Second,
		HistoryQueueSize:        envInt("HISTORY_QUEUE_SIZE", 256),
		MaxBatchSize:            envInt("MAX_BATCH_SIZE", 50),
		LogLevel:                envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
