// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// Env is the application environment (e.g. "development", "production").
	// In production the signing secret is required at Load time.
	Env string `mapstructure:"APP_ENV"`
	// DatabaseURL is the Postgres DSN; empty runs the server on in-memory stores.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is the Redis address (e.g. localhost:6379) for session and
	// refresh-token stores; empty disables Redis and falls back to Postgres or memory.
	RedisAddr string `mapstructure:"REDIS_ADDR"`

	// AuthSigningSecret is the HMAC-SHA-512 signing secret for token pairs.
	// Must be at least 32 bytes when set; cmd/server refuses to start without it.
	AuthSigningSecret string `mapstructure:"AUTH_SIGNING_SECRET"`
	// AuthKDFSalt is the salt for deriving the encryption and storage-hash keys
	// from the signing secret. Required wherever AuthSigningSecret is required.
	AuthKDFSalt string `mapstructure:"AUTH_KDF_SALT"`
	// AuthKDFIterations is the PBKDF2 iteration count; 0 uses the security package default.
	AuthKDFIterations int `mapstructure:"AUTH_KDF_ITERATIONS"`

	// JWTIssuer is the iss claim (e.g. "authcore").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "matterguard-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`

	// SessionIdleTTL is the sliding inactivity window (e.g. "15m").
	SessionIdleTTL string `mapstructure:"SESSION_IDLE_TTL"`
	// SessionAbsoluteTTL is the hard session lifetime cap (e.g. "8h").
	SessionAbsoluteTTL string `mapstructure:"SESSION_ABSOLUTE_TTL"`

	// BcryptCost is the bcrypt cost factor (4-31) for recovery-key hashing; default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// TOTPIssuer is the issuer shown in authenticator apps (otpauth URI).
	TOTPIssuer string `mapstructure:"TOTP_ISSUER"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. http://localhost:4317);
	// empty disables telemetry export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// KafkaBrokers is a comma-separated list of Kafka broker addresses
	// (e.g. "localhost:9092"). When set, the server emits security events to Kafka.
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// KafkaTopic is the Kafka topic for security events.
	KafkaTopic string `mapstructure:"SECURITY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the security-event worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the security-event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("GRPC_ADDR", ":8080")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("AUTH_SIGNING_SECRET", "")
	v.SetDefault("AUTH_KDF_SALT", "")
	v.SetDefault("AUTH_KDF_ITERATIONS", 0)
	v.SetDefault("JWT_ISSUER", "authcore")
	v.SetDefault("JWT_AUDIENCE", "matterguard-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("SESSION_IDLE_TTL", "15m")
	v.SetDefault("SESSION_ABSOLUTE_TTL", "8h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("TOTP_ISSUER", "MatterGuard")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "authcore")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("SECURITY_KAFKA_TOPIC", "authcore-security")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "authcore-security-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.GRPCAddr == "" {
		return nil, errors.New("config: GRPC_ADDR must be set")
	}

	if cfg.AuthSigningSecret != "" && len(cfg.AuthSigningSecret) < 32 {
		return nil, errors.New("config: AUTH_SIGNING_SECRET must be at least 32 bytes")
	}
	if cfg.Env == "production" && cfg.AuthSigningSecret == "" {
		return nil, errors.New("config: AUTH_SIGNING_SECRET must be set when APP_ENV=production")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.AuthKDFIterations < 0 {
		return nil, errors.New("config: AUTH_KDF_ITERATIONS must not be negative")
	}

	return &cfg, nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return durationOr(c.JWTAccessTTL, 15*time.Minute)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return durationOr(c.JWTRefreshTTL, 168*time.Hour)
}

// IdleTTL parses SessionIdleTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) IdleTTL() time.Duration {
	return durationOr(c.SessionIdleTTL, 15*time.Minute)
}

// AbsoluteTTL parses SessionAbsoluteTTL as a time.Duration. Returns 8h if unset or invalid.
func (c *Config) AbsoluteTTL() time.Duration {
	return durationOr(c.SessionAbsoluteTTL, 8*time.Hour)
}

func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if Kafka emission is enabled (non-empty list) and to create the producer.
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
