package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	ActivityPort   string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64
	RateLimitRPS   int
	RateLimitBurst int
	CallerHeader   string

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword     string
	RedisDB           int
	RedisPoolSize     int
	RedisDialTimeout  time.Duration
	RedisReadTimeout  time.Duration
	RedisWriteTimeout time.Duration

	// Kafka
	KafkaBrokers []string
	KafkaGroupID string
	EventsTopic  string

	// State
	StateBackend     string
	SnapshotPath     string
	SnapshotInterval time.Duration
	GenesisFile      string
	AdminAccount     string

	// Engine
	TrainerOnlySubmissions bool

	// Activity feed
	ActivityFeedLimit int
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		ActivityPort:   getEnv("ACTIVITY_PORT", "8090"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1024*1024)),
		RateLimitRPS:   getIntEnv("RATE_LIMIT_RPS", 50),
		RateLimitBurst: getIntEnv("RATE_LIMIT_BURST", 100),
		CallerHeader:   getEnv("CALLER_HEADER", "X-Account"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "neuralforge"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "neuralforge"),
		PostgresDB:       getEnv("POSTGRES_DB", "neuralforge"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		RedisPoolSize:     getIntEnv("REDIS_POOL_SIZE", 20),
		RedisDialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 2*time.Second),
		RedisWriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 2*time.Second),

		KafkaBrokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaGroupID: getEnv("KAFKA_GROUP_ID", "neuralforge-activity"),
		EventsTopic:  getEnv("EVENTS_TOPIC", "forge.events"),

		StateBackend:     strings.ToLower(getEnv("STATE_BACKEND", BackendFile)),
		SnapshotPath:     getEnv("SNAPSHOT_PATH", "./data/forge.snapshot"),
		SnapshotInterval: getDuration("SNAPSHOT_INTERVAL", 10*time.Second),
		GenesisFile:      getEnv("GENESIS_FILE", ""),
		AdminAccount:     getEnv("ADMIN_ACCOUNT", ""),

		TrainerOnlySubmissions: getBoolEnv("TRAINER_ONLY_SUBMISSIONS", false),

		ActivityFeedLimit: getIntEnv("ACTIVITY_FEED_LIMIT", 200),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
