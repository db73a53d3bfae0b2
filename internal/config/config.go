// Package config provides configuration management for the feed engine.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Ranking   RankingConfig
	Pipeline  PipelineConfig
	RateLimit RateLimitConfig
	Ingest    IngestConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds backend selection plus connection settings.
// Backend "memory" requires no external services; "postgres" mirrors the
// in-memory store into Postgres for durability.
type DatabaseConfig struct {
	Backend    string // memory | postgres
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
	// ArchiveEnabled mirrors interactions into ClickHouse for analytics.
	ArchiveEnabled bool
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds feed cache configuration
type CacheConfig struct {
	PageTTL   time.Duration // ranked feed page entries
	BundleTTL time.Duration // precomputed per-user rank bundles
}

// RankingConfig holds the tunable ranking parameters. The weights are
// deliberately configuration, not constants: tests assert directional
// properties, operators tune magnitudes.
type RankingConfig struct {
	AffinityWeight     float64 // w1
	ExplorationWeight  float64 // w2
	RecencyWeight      float64 // w3
	JitterWeight       float64 // w4
	JitterSalt         string
	ExplorationC       float64 // UCB exploration constant
	PriorMeanReward    float64 // reward assumed for unobserved subjects
	HalfLifeDays       float64 // interaction recency decay half-life
	MaxInteractionDays int     // interactions older than this are ignored
	MaxArticleAgeDays  int     // feed freshness cutoff
	InterleaveExploit  int     // exploit items per interleave cycle
	InterleaveExplore  int     // explore-flagged items per interleave cycle
	InterleaveDepth    int     // how far into the ranking the cadence is enforced
	SponsoredCadence   int     // organic items between sponsored cards (free tier)
}

// PipelineConfig holds event pipeline configuration
type PipelineConfig struct {
	Backend   string // local | broker
	QueueSize int
	Topic     string
}

// RateLimitConfig holds fixed-window request rate limits per endpoint class
type RateLimitConfig struct {
	Window           time.Duration
	FeedPerWindow    int
	ExplorePerWindow int
}

// IngestConfig holds content source configuration
type IngestConfig struct {
	TargetArticleCount int
	FetchTimeout       time.Duration
	RequestsPerSecond  float64 // outbound fetch pacing
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Backend: getEnv("DATA_BACKEND", "memory"),
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "dailylens"),
				User:           getEnv("POSTGRES_USER", "dailylens"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "dailylens"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
			ArchiveEnabled: getEnvAsBool("CLICKHOUSE_ARCHIVE_ENABLED", false),
		},
		Cache: CacheConfig{
			PageTTL:   getEnvAsDuration("FEED_CACHE_TTL", 20*time.Second),
			BundleTTL: getEnvAsDuration("RANK_BUNDLE_TTL", 30*time.Second),
		},
		Ranking: RankingConfig{
			AffinityWeight:     getEnvAsFloat("RANK_AFFINITY_WEIGHT", 6.2),
			ExplorationWeight:  getEnvAsFloat("RANK_EXPLORATION_WEIGHT", 6.8),
			RecencyWeight:      getEnvAsFloat("RANK_RECENCY_WEIGHT", 0.8),
			JitterWeight:       getEnvAsFloat("RANK_JITTER_WEIGHT", 0.35),
			JitterSalt:         getEnv("RANK_JITTER_SALT", "dailylens-v2"),
			ExplorationC:       getEnvAsFloat("RANK_EXPLORATION_C", 1.3),
			PriorMeanReward:    getEnvAsFloat("RANK_PRIOR_MEAN_REWARD", 0.42),
			HalfLifeDays:       getEnvAsFloat("INTERACTION_HALF_LIFE_DAYS", 21),
			MaxInteractionDays: getEnvAsInt("INTERACTION_MAX_AGE_DAYS", 180),
			MaxArticleAgeDays:  getEnvAsInt("MAX_FEED_ARTICLE_AGE_DAYS", 30),
			InterleaveExploit:  getEnvAsInt("RANK_INTERLEAVE_EXPLOIT", 2),
			InterleaveExplore:  getEnvAsInt("RANK_INTERLEAVE_EXPLORE", 1),
			InterleaveDepth:    getEnvAsInt("RANK_INTERLEAVE_DEPTH", 30),
			SponsoredCadence:   getEnvAsInt("SPONSORED_CADENCE", 5),
		},
		Pipeline: PipelineConfig{
			Backend:   getEnv("EVENT_PIPELINE_BACKEND", "local"),
			QueueSize: getEnvAsInt("EVENT_QUEUE_SIZE", 10000),
			Topic:     getEnv("EVENT_TOPIC", "user-interactions"),
		},
		RateLimit: RateLimitConfig{
			Window:           getEnvAsDuration("RATE_LIMIT_WINDOW", 60*time.Second),
			FeedPerWindow:    getEnvAsInt("RATE_LIMIT_FEED_PER_WINDOW", 600),
			ExplorePerWindow: getEnvAsInt("RATE_LIMIT_EXPLORE_PER_WINDOW", 300),
		},
		Ingest: IngestConfig{
			TargetArticleCount: getEnvAsInt("TARGET_ARTICLE_COUNT", 100),
			FetchTimeout:       getEnvAsDuration("INGEST_FETCH_TIMEOUT", 8*time.Second),
			RequestsPerSecond:  getEnvAsFloat("INGEST_REQUESTS_PER_SECOND", 2),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
