package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration so main stays lean. Everything
// comes from the environment; zero values mean "subsystem not configured" and
// the in-memory fallbacks are wired instead.
type Config struct {
	Addr        string
	PostgresDSN string
	AdminToken  string

	Redis  RedisConfig
	Kafka  KafkaConfig
	Anchor AnchorConfig

	// IssuanceWorkers bounds the concurrency of bulk code generation.
	IssuanceWorkers int

	// WorkerConcurrency bounds how many queued jobs the worker runs at once.
	WorkerConcurrency int

	// ExpirySweepInterval is how often the worker flips codes of
	// past-shelf-life batches to expired.
	ExpirySweepInterval time.Duration
}

// RedisConfig holds connection settings for the shared scan index.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds settings for the scan event stream.
type KafkaConfig struct {
	Brokers   []string
	ScanTopic string
}

// AnchorConfig holds settings for the external hash anchor store.
type AnchorConfig struct {
	URL     string
	Timeout time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:                envOr("VERITAG_ADDR", ":8080"),
		PostgresDSN:         os.Getenv("VERITAG_POSTGRES_DSN"),
		AdminToken:          os.Getenv("VERITAG_ADMIN_TOKEN"),
		IssuanceWorkers:     envInt("VERITAG_ISSUANCE_WORKERS", 8),
		WorkerConcurrency:   envInt("VERITAG_WORKER_CONCURRENCY", 10),
		ExpirySweepInterval: envDuration("VERITAG_EXPIRY_SWEEP_INTERVAL", time.Hour),
		Redis: RedisConfig{
			URL:          os.Getenv("VERITAG_REDIS_URL"),
			PoolSize:     envInt("VERITAG_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("VERITAG_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("VERITAG_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("VERITAG_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("VERITAG_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:   splitNonEmpty(os.Getenv("VERITAG_KAFKA_BROKERS")),
			ScanTopic: envOr("VERITAG_KAFKA_SCAN_TOPIC", "veritag.scans"),
		},
		Anchor: AnchorConfig{
			URL:     os.Getenv("VERITAG_ANCHOR_URL"),
			Timeout: envDuration("VERITAG_ANCHOR_TIMEOUT", 5*time.Second),
		},
	}
	return cfg
}

func envOr(key, fallback string) string {
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

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if part := s[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
