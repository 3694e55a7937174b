package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Unwrap   UnwrapConfig
	Metadata MetadataConfig
	Tracking TrackingConfig
}

type ServerConfig struct {
	Port            string
	BaseURL         string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	PrimaryDSN      string
	ReplicaDSNs     []string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type RedisConfig struct {
	// Addr empty means Redis is not used and click tracking writes to
	// storage directly.
	Addr     string
	Password string
	DB       int
}

type CacheConfig struct {
	Capacity int
}

type UnwrapConfig struct {
	MaxHops    int
	HopTimeout time.Duration
}

type MetadataConfig struct {
	FetchTimeout time.Duration
}

type TrackingConfig struct {
	StreamName    string
	ConsumerGroup string
	ConsumerName  string
	BatchSize     int
	BlockTime     time.Duration
	PollInterval  time.Duration
}

func Load() (*Config, error) {
	// Load .env if present (local dev); deployments set real env vars.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8000"),
			BaseURL:         getEnv("BASE_URL", "http://localhost:8000"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			PrimaryDSN:      getEnv("DB_PRIMARY_DSN", ""),
			ReplicaDSNs:     splitNonEmpty(getEnv("DB_REPLICA_DSNS", "")),
			MaxConns:        int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:        int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Capacity: getEnvAsInt("CACHE_CAPACITY", 1000),
		},
		Unwrap: UnwrapConfig{
			MaxHops:    getEnvAsInt("UNWRAP_MAX_HOPS", 10),
			HopTimeout: getEnvAsDuration("UNWRAP_HOP_TIMEOUT", 5*time.Second),
		},
		Metadata: MetadataConfig{
			FetchTimeout: getEnvAsDuration("METADATA_FETCH_TIMEOUT", 12*time.Second),
		},
		Tracking: TrackingConfig{
			StreamName:    getEnv("TRACKING_STREAM_NAME", "clicks:stream"),
			ConsumerGroup: getEnv("TRACKING_CONSUMER_GROUP", "click-writers"),
			ConsumerName:  getEnv("TRACKING_CONSUMER_NAME", "worker-1"),
			BatchSize:     getEnvAsInt("TRACKING_BATCH_SIZE", 100),
			BlockTime:     getEnvAsDuration("TRACKING_BLOCK_TIME", 5*time.Second),
			PollInterval:  getEnvAsDuration("TRACKING_POLL_INTERVAL", time.Second),
		},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
