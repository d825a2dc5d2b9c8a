package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App        AppSettings        `mapstructure:"app"`
	Postgres   PostgresSettings   `mapstructure:"postgres"`
	Redis      RedisSettings      `mapstructure:"redis"`
	Cache      CacheSettings      `mapstructure:"cache"`
	Kafka      KafkaSettings      `mapstructure:"kafka"`
	JWT        JWTSettings        `mapstructure:"jwt"`
	Credential CredentialSettings `mapstructure:"credential"`
	GRPC       GRPCSettings       `mapstructure:"grpc"`
	Telemetry  TelemetrySettings  `mapstructure:"telemetry"`
	RateLimit  RateLimitSettings  `mapstructure:"rate_limit"`
	CORS       CORSSettings       `mapstructure:"cors"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// TrustedProxies lists proxy IPs or CIDRs whose X-Forwarded-For is
	// honoured. Empty means the TCP peer is the client.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type GRPCSettings struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	ConnectAttempts   uint64        `mapstructure:"connect_attempts"`
	ConnectBackoff    time.Duration `mapstructure:"connect_backoff"`
	RunMigrations     bool          `mapstructure:"run_migrations"`
}

// RedisSettings configures Redis connection and TLS
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
}

// CacheSettings selects the cache backend and entry lifetimes.
type CacheSettings struct {
	Backend    string        `mapstructure:"backend"`
	KeyPrefix  string        `mapstructure:"key_prefix"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	UserTTL    time.Duration `mapstructure:"user_ttl"`
	ListTTL    time.Duration `mapstructure:"list_ttl"`
}

// KafkaSettings configures Kafka producer
type KafkaSettings struct {
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

// RateLimitSettings configures the per-client sliding log governor.
type RateLimitSettings struct {
	Enabled             bool          `mapstructure:"enabled"`
	WindowDuration      time.Duration `mapstructure:"window_duration"`
	MaxRequests         int           `mapstructure:"max_requests"`
	RetentionMultiplier int           `mapstructure:"retention_multiplier"`
	SweepInterval       time.Duration `mapstructure:"sweep_interval"`
}

// Retention returns the horizon after which recorded timestamps are purged.
func (s RateLimitSettings) Retention() time.Duration {
	multiplier := s.RetentionMultiplier
	if multiplier <= 0 {
		multiplier = 5
	}
	return s.WindowDuration * time.Duration(multiplier)
}

// CredentialSettings configures password digests and the password policy.
type CredentialSettings struct {
	Algorithm         string `mapstructure:"algorithm"`
	MinPasswordLength int    `mapstructure:"min_password_length"`
	MinStrengthScore  int    `mapstructure:"min_strength_score"`
	Argon2Memory      uint32 `mapstructure:"argon2_memory"`
	Argon2Iterations  uint32 `mapstructure:"argon2_iterations"`
	Argon2Parallelism uint8  `mapstructure:"argon2_parallelism"`
}

type JWTSettings struct {
	SecretKey      string        `mapstructure:"secret_key"`
	Issuer         string        `mapstructure:"issuer"`
	Audience       string        `mapstructure:"audience"`
	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
}

type TelemetrySettings struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

type CORSSettings struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

const minSecretKeyLength = 32

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("UDIR")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.trusted_proxies",
		"grpc.host",
		"grpc.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"postgres.connect_attempts",
		"postgres.connect_backoff",
		"postgres.run_migrations",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"cache.backend",
		"cache.key_prefix",
		"cache.default_ttl",
		"cache.user_ttl",
		"cache.list_ttl",
		"kafka.brokers",
		"kafka.topic_prefix",
		"jwt.secret_key",
		"jwt.issuer",
		"jwt.audience",
		"jwt.access_token_ttl",
		"credential.algorithm",
		"credential.min_password_length",
		"credential.min_strength_score",
		"credential.argon2_memory",
		"credential.argon2_iterations",
		"credential.argon2_parallelism",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.enabled",
		"rate_limit.window_duration",
		"rate_limit.max_requests",
		"rate_limit.retention_multiplier",
		"rate_limit.sweep_interval",
		"cors.allowed_origins",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations the service cannot run safely with.
func (c *AppConfig) Validate() error {
	var errs []error

	if len(c.JWT.SecretKey) < minSecretKeyLength {
		errs = append(errs, fmt.Errorf("jwt.secret_key must be at least %d bytes", minSecretKeyLength))
	}
	if strings.TrimSpace(c.JWT.Issuer) == "" {
		errs = append(errs, errors.New("jwt.issuer is required"))
	}
	if strings.TrimSpace(c.JWT.Audience) == "" {
		errs = append(errs, errors.New("jwt.audience is required"))
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxRequests <= 0 {
			errs = append(errs, errors.New("rate_limit.max_requests must be positive"))
		}
		if c.RateLimit.WindowDuration <= 0 {
			errs = append(errs, errors.New("rate_limit.window_duration must be positive"))
		}
	}
	for _, proxy := range c.App.TrustedProxies {
		if !validProxy(proxy) {
			errs = append(errs, fmt.Errorf("app.trusted_proxies entry %q is not an IP or CIDR", proxy))
		}
	}
	switch c.Cache.Backend {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not supported", c.Cache.Backend))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func validProxy(entry string) bool {
	if _, err := netip.ParsePrefix(entry); err == nil {
		return true
	}
	_, err := netip.ParseAddr(entry)
	return err == nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "user-directory")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.trusted_proxies", []string{})

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "udir")
	v.SetDefault("postgres.password", "udir_password")
	v.SetDefault("postgres.database", "udir")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")
	v.SetDefault("postgres.connect_attempts", 12)
	v.SetDefault("postgres.connect_backoff", "5s")
	v.SetDefault("postgres.run_migrations", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)

	v.SetDefault("cache.backend", "redis")
	v.SetDefault("cache.key_prefix", "udir")
	v.SetDefault("cache.default_ttl", "1h")
	v.SetDefault("cache.user_ttl", "30m")
	v.SetDefault("cache.list_ttl", "15m")

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic_prefix", "udir")

	v.SetDefault("jwt.secret_key", "")
	v.SetDefault("jwt.issuer", "user-directory")
	v.SetDefault("jwt.audience", "user-directory-clients")
	v.SetDefault("jwt.access_token_ttl", "1h")

	v.SetDefault("credential.algorithm", "hmac-sha512")
	v.SetDefault("credential.min_password_length", 6)
	v.SetDefault("credential.min_strength_score", 0)
	v.SetDefault("credential.argon2_memory", 65536) // 64 MB
	v.SetDefault("credential.argon2_iterations", 3)
	v.SetDefault("credential.argon2_parallelism", 4)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "user-directory")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.max_requests", 100)
	v.SetDefault("rate_limit.retention_multiplier", 5)
	v.SetDefault("rate_limit.sweep_interval", "30s")

	v.SetDefault("cors.allowed_origins", []string{})
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "UDIR_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
