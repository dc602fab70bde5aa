// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Queue backends accepted by QUEUE_BACKEND.
const (
	QueueBackendRedis = "redis"
	QueueBackendKafka = "kafka"
	QueueBackendLog   = "log"
)

// Authorization engines accepted by AUTHZ_ENGINE.
const (
	AuthzEngineTable = "table"
	AuthzEngineRego  = "rego"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// GRPCAddr is the address the gRPC server listens on (e.g. :8080).
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "saas-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "saas-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the access token lifetime (e.g. "15m").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the session (refresh token) lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is the zap level name (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// TenantEnforcement turns the per-request tenant transaction on. Must stay on in production.
	TenantEnforcement bool `mapstructure:"TENANT_ENFORCEMENT"`
	// TenantPublicMethods is a comma-separated list of extra full gRPC method names that run without a tenant binding.
	TenantPublicMethods string `mapstructure:"TENANT_PUBLIC_METHODS"`
	// AuthzEngine selects the authorization evaluator: "table" or "rego".
	AuthzEngine string `mapstructure:"AUTHZ_ENGINE"`

	// QueueBackend selects the job queue: "redis", "kafka" or "log".
	QueueBackend string `mapstructure:"QUEUE_BACKEND"`
	// RedisURL is the redis:// URL used by the redis queue backend.
	RedisURL string `mapstructure:"REDIS_URL"`
	// JobQueueKey is the Redis list key for jobs.
	JobQueueKey string `mapstructure:"JOB_QUEUE_KEY"`
	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// JobQueueTopic is the Kafka topic for jobs.
	JobQueueTopic string `mapstructure:"JOB_QUEUE_TOPIC"`
	// KafkaGroupID is the consumer group ID for the audit worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTelEndpoint is the OTLP gRPC collector endpoint; empty disables export.
	OTelEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTelInsecure disables TLS to the collector.
	OTelInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// OTelServiceName is the service.name resource attribute.
	OTelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
	// OTelSampleRatio is the fraction of root traces kept, in (0, 1].
	OTelSampleRatio float64 `mapstructure:"OTEL_TRACES_SAMPLER_ARG"`
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
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "saas-auth")
	v.SetDefault("JWT_AUDIENCE", "saas-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TENANT_ENFORCEMENT", true)
	v.SetDefault("TENANT_PUBLIC_METHODS", "")
	v.SetDefault("AUTHZ_ENGINE", AuthzEngineTable)
	v.SetDefault("QUEUE_BACKEND", QueueBackendLog)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("JOB_QUEUE_KEY", "saas:jobs")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("JOB_QUEUE_TOPIC", "saas-jobs")
	v.SetDefault("KAFKA_GROUP_ID", "saas-audit-worker")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "saas-core")
	v.SetDefault("OTEL_TRACES_SAMPLER_ARG", 1.0)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.GRPCAddr == "" {
		return errors.New("config: GRPC_ADDR must be set")
	}
	if !c.TenantEnforcement && c.Env == "production" {
		return errors.New("config: TENANT_ENFORCEMENT must not be false when APP_ENV=production")
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if c.OTelSampleRatio <= 0 || c.OTelSampleRatio > 1 {
		return errors.New("config: OTEL_TRACES_SAMPLER_ARG must be in (0, 1]")
	}

	c.AuthzEngine = strings.ToLower(strings.TrimSpace(c.AuthzEngine))
	switch c.AuthzEngine {
	case AuthzEngineTable, AuthzEngineRego:
	default:
		return errors.New("config: AUTHZ_ENGINE must be one of table, rego")
	}

	c.QueueBackend = strings.ToLower(strings.TrimSpace(c.QueueBackend))
	switch c.QueueBackend {
	case QueueBackendRedis:
		if c.RedisURL == "" {
			return errors.New("config: REDIS_URL must be set when QUEUE_BACKEND=redis")
		}
		if c.JobQueueKey == "" {
			return errors.New("config: JOB_QUEUE_KEY must be set when QUEUE_BACKEND=redis")
		}
	case QueueBackendKafka:
		if len(c.KafkaBrokersList()) == 0 {
			return errors.New("config: KAFKA_BROKERS must be set when QUEUE_BACKEND=kafka")
		}
		if c.JobQueueTopic == "" {
			return errors.New("config: JOB_QUEUE_TOPIC must be set when QUEUE_BACKEND=kafka")
		}
	case QueueBackendLog:
	default:
		return errors.New("config: QUEUE_BACKEND must be one of redis, kafka, log")
	}
	return nil
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTRefreshTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// PublicMethodsList returns the extra tenant allow-list entries.
func (c *Config) PublicMethodsList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TenantPublicMethods)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
