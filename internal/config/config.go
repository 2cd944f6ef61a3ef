package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Auth       AuthConfig
	Encryption EncryptionConfig
	Queue      QueueConfig
	Notify     NotifyConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values for the platform store.
// The same pool limits apply to lazily opened self-hosted tenant pools.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines guild token parameters. An empty secret disables
// the auth middleware entirely.
type AuthConfig struct {
	JWTSecret            string
	GuildTokenTTLMinutes int
}

// EncryptionConfig supplies the fixed key/IV pair used to encrypt
// self-hosting passwords. Key and IV are hex (32 and 16 bytes); a
// non-hex key is treated as a passphrase and stretched.
type EncryptionConfig struct {
	Key string
	IV  string
}

// QueueConfig tunes the in-memory job queue.
type QueueConfig struct {
	TickIntervalMS        int
	DefaultMaxAttempts    int
	HandlerTimeoutSeconds int
	RetryBaseDelayMS      int
}

// NotifyConfig holds stub notification endpoints.
type NotifyConfig struct {
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "guild-ticket-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:            os.Getenv("AUTH_JWT_SECRET"),
			GuildTokenTTLMinutes: getEnvAsInt("AUTH_GUILD_TOKEN_TTL_MINUTES", 7*24*60),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", "dev-encryption-key"),
			IV:  os.Getenv("ENCRYPTION_IV"),
		},
		Queue: QueueConfig{
			TickIntervalMS:        getEnvAsInt("QUEUE_TICK_INTERVAL_MS", 1000),
			DefaultMaxAttempts:    getEnvAsInt("QUEUE_DEFAULT_MAX_ATTEMPTS", 3),
			HandlerTimeoutSeconds: getEnvAsInt("QUEUE_HANDLER_TIMEOUT_SECONDS", 30),
			RetryBaseDelayMS:      getEnvAsInt("QUEUE_RETRY_BASE_DELAY_MS", 1000),
		},
		Notify: NotifyConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// TickInterval returns the dispatch tick interval.
func (q QueueConfig) TickInterval() time.Duration {
	if q.TickIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(q.TickIntervalMS) * time.Millisecond
}

// HandlerTimeout returns the per-invocation handler timeout.
func (q QueueConfig) HandlerTimeout() time.Duration {
	if q.HandlerTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(q.HandlerTimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the base delay for exponential backoff.
func (q QueueConfig) RetryBaseDelay() time.Duration {
	if q.RetryBaseDelayMS <= 0 {
		return time.Second
	}
	return time.Duration(q.RetryBaseDelayMS) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
