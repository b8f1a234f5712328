// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Session store backends selectable via SESSION_STORE.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// EnvProduction is the APP_ENV value for production deployments.
const EnvProduction = "production"

// Config holds application configuration loaded from the environment.
type Config struct {
	// Env is the application environment ("local", "dev", "production"). Selects the log handler.
	Env string `mapstructure:"APP_ENV"`
	// HTTPAddr is the address the HTTP server listens on (e.g. :3000).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN. Required when SessionStore is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// SessionStore selects the durable session backend: "postgres" (default) or "redis".
	SessionStore string `mapstructure:"SESSION_STORE"`
	// RedisAddr is the host:port of the Redis server used when SessionStore is redis.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	// SessionCookieName is the cookie carrying the session token.
	SessionCookieName string `mapstructure:"SESSION_COOKIE_NAME"`
	// CookieSecure sets the Secure flag on cookies written by the service.
	CookieSecure bool `mapstructure:"COOKIE_SECURE"`

	// SessionRenewalWindow is how far each validated access pushes expiry forward (e.g. "5m").
	SessionRenewalWindow string `mapstructure:"SESSION_RENEWAL_WINDOW"`
	// SessionFlushInterval is the minimum time between durable activity writes per token (e.g. "60s").
	SessionFlushInterval string `mapstructure:"SESSION_FLUSH_INTERVAL"`
	// SessionLookupTimeout bounds the store lookup on a cache miss (e.g. "2s").
	SessionLookupTimeout string `mapstructure:"SESSION_LOOKUP_TIMEOUT"`
	// SessionFlushTimeout bounds one background flush including retries (e.g. "5s").
	SessionFlushTimeout string `mapstructure:"SESSION_FLUSH_TIMEOUT"`
	// ClearCacheOnLogout drops the whole session cache after each logout.
	ClearCacheOnLogout bool `mapstructure:"SESSION_CLEAR_CACHE_ON_LOGOUT"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint. Empty means no-op telemetry providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces a plaintext connection to the collector.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is reported as service.name on all telemetry.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses. When set, session events are published.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// SessionEventsTopic is the Kafka topic for session lifecycle events.
	SessionEventsTopic string `mapstructure:"SESSION_EVENTS_TOPIC"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "local")
	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SESSION_STORE", StorePostgres)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SESSION_COOKIE_NAME", "session_token")
	v.SetDefault("COOKIE_SECURE", false)
	v.SetDefault("SESSION_RENEWAL_WINDOW", "5m")
	v.SetDefault("SESSION_FLUSH_INTERVAL", "60s")
	v.SetDefault("SESSION_LOOKUP_TIMEOUT", "2s")
	v.SetDefault("SESSION_FLUSH_TIMEOUT", "5s")
	v.SetDefault("SESSION_CLEAR_CACHE_ON_LOGOUT", true)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "studyassist-sessions")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SESSION_EVENTS_TOPIC", "studyassist-session-events")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}

	cfg.SessionStore = strings.ToLower(strings.TrimSpace(cfg.SessionStore))
	switch cfg.SessionStore {
	case StorePostgres, StoreRedis:
	default:
		return nil, errors.New("config: SESSION_STORE must be postgres or redis")
	}
	if cfg.SessionStore == StoreRedis && cfg.RedisAddr == "" {
		return nil, errors.New("config: REDIS_ADDR must be set when SESSION_STORE=redis")
	}

	if cfg.SessionCookieName == "" {
		cfg.SessionCookieName = "session_token"
	}
	if cfg.Env == EnvProduction && !cfg.CookieSecure {
		return nil, errors.New("config: COOKIE_SECURE must be true when APP_ENV=production")
	}

	return &cfg, nil
}

// RenewalWindow parses SessionRenewalWindow. Returns 5m if unset or invalid.
func (c *Config) RenewalWindow() time.Duration {
	return parsePositiveDuration(c.SessionRenewalWindow, 5*time.Minute)
}

// FlushInterval parses SessionFlushInterval. Returns 60s if unset or invalid.
func (c *Config) FlushInterval() time.Duration {
	return parsePositiveDuration(c.SessionFlushInterval, 60*time.Second)
}

// LookupTimeout parses SessionLookupTimeout. Returns 2s if unset or invalid.
func (c *Config) LookupTimeout() time.Duration {
	return parsePositiveDuration(c.SessionLookupTimeout, 2*time.Second)
}

// FlushTimeout parses SessionFlushTimeout. Returns 5s if unset or invalid.
func (c *Config) FlushTimeout() time.Duration {
	return parsePositiveDuration(c.SessionFlushTimeout, 5*time.Second)
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list means session events are not published to Kafka.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parsePositiveDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
