package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/taskapi/pkg/auth"
	"github.com/platinummonkey/taskapi/pkg/middleware"
	"github.com/platinummonkey/taskapi/pkg/observability"
	"github.com/platinummonkey/taskapi/pkg/storage"
)

// EnvPrefix prefixes every environment variable read by LoadConfig
const EnvPrefix = "TASKAPI_"

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       storage.Config      `yaml:"storage"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	APIPrefix       string        `yaml:"api_prefix"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	TrustProxy      bool          `yaml:"trust_proxy"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	OpsPort string `yaml:"ops_port"`
}

// Addr returns the API listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// OpsAddr returns the health/metrics listen address
func (s ServerConfig) OpsAddr() string {
	return s.Host + ":" + s.OpsPort
}

// RedisConfig holds the optional Redis connection. An empty URL disables Redis.
type RedisConfig struct {
	URL        string `yaml:"url"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	PoolSize   int    `yaml:"pool_size"`
	MaxRetries int    `yaml:"max_retries"`
}

// Enabled reports whether a Redis URL is configured
func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

// AuthConfig holds token and password hashing settings
type AuthConfig struct {
	AccessSecret  string        `yaml:"access_secret"`
	RefreshSecret string        `yaml:"refresh_secret"`
	AccessTTL     time.Duration `yaml:"access_ttl"`
	RefreshTTL    time.Duration `yaml:"refresh_ttl"`
	Issuer        string        `yaml:"issuer"`
	BcryptCost    int           `yaml:"bcrypt_cost"`
}

// TokenConfig converts to the token service configuration
func (a AuthConfig) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		AccessSecret:  a.AccessSecret,
		RefreshSecret: a.RefreshSecret,
		AccessTTL:     a.AccessTTL,
		RefreshTTL:    a.RefreshTTL,
		Issuer:        a.Issuer,
	}
}

// Rate limiter backends
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

// RateLimitConfig holds the global per-IP rate limit
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Backend  string        `yaml:"backend"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	MaxKeys  int           `yaml:"max_keys"`
}

// LimiterConfig converts to the middleware configuration
func (r RateLimitConfig) LimiterConfig(trustProxy bool) middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Requests:   r.Requests,
		Window:     r.Window,
		MaxKeys:    r.MaxKeys,
		TrustProxy: trustProxy,
	}
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`
	LogFile       string `yaml:"log_file"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	LogMaxAgeDays int    `yaml:"log_max_age_days"`
	LogCompress   bool   `yaml:"log_compress"`

	// Metrics
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	StatsSchedule  string `yaml:"stats_schedule"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// LogConfig converts to the logger configuration
func (o ObservabilityConfig) LogConfig() observability.LogConfig {
	return observability.LogConfig{
		Level:      o.LogLevel,
		Format:     o.LogFormat,
		File:       o.LogFile,
		MaxSizeMB:  o.LogMaxSizeMB,
		MaxBackups: o.LogMaxBackups,
		MaxAgeDays: o.LogMaxAgeDays,
		Compress:   o.LogCompress,
	}
}

// OTelConfig converts to the OpenTelemetry configuration
func (o ObservabilityConfig) OTelConfig() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// Default returns the configuration used when nothing is overridden.
// Token secrets have no default and must be supplied.
func Default() *Config {
	storageCfg := storage.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "3000",
			APIPrefix:       "/api/v1",
			CORSOrigins:     []string{"*"},
			MaxBodyBytes:    1 << 20,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			OpsPort:         "9090",
		},
		Storage: storageCfg,
		Redis: RedisConfig{
			PoolSize:   10,
			MaxRetries: 3,
		},
		Auth: AuthConfig{
			AccessTTL:  auth.DefaultAccessTokenTTL,
			RefreshTTL: auth.DefaultRefreshTokenTTL,
			Issuer:     auth.DefaultIssuer,
			BcryptCost: auth.DefaultBcryptCost,
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Backend:  RateLimitBackendMemory,
			Requests: 100,
			Window:   15 * time.Minute,
			MaxKeys:  100000,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			LogFormat:          "json",
			LogMaxSizeMB:       100,
			LogMaxBackups:      5,
			LogMaxAgeDays:      28,
			MetricsEnabled:     true,
			StatsSchedule:      observability.DefaultCollectSchedule,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "taskapi",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadOptions selects the optional configuration sources
type LoadOptions struct {
	// ConfigFile is a YAML file applied over the defaults
	ConfigFile string
	// EnvFile is a dotenv file loaded into the process environment. Variables
	// already set in the environment win. A missing file is ignored.
	EnvFile string
}

// LoadConfig loads configuration from defaults, an optional YAML file, an
// optional .env file and the environment, in that order of precedence
func LoadConfig(opts LoadOptions) (*Config, error) {
	cfg := Default()

	if opts.ConfigFile != "" {
		if err := loadYAML(cfg, opts.ConfigFile); err != nil {
			return nil, err
		}
	}

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", opts.EnvFile, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides cfg with TASKAPI_* variables. A few unprefixed names
// (PORT, JWT_ACCESS_SECRET, JWT_REFRESH_SECRET, DATABASE_URL) are honoured
// as fallbacks.
func applyEnv(cfg *Config) error {
	e := &envReader{}

	s := &cfg.Server
	s.Host = e.str("HOST", s.Host)
	s.Port = e.str("PORT", lookupRaw("PORT", s.Port))
	s.OpsPort = e.str("OPS_PORT", s.OpsPort)
	s.APIPrefix = e.str("API_PREFIX", s.APIPrefix)
	s.CORSOrigins = e.list("CORS_ORIGINS", s.CORSOrigins)
	s.MaxBodyBytes = e.integer64("MAX_BODY_BYTES", s.MaxBodyBytes)
	s.TrustProxy = e.boolean("TRUST_PROXY", s.TrustProxy)
	s.ReadTimeout = e.duration("READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = e.duration("WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = e.duration("IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = e.duration("SHUTDOWN_TIMEOUT", s.ShutdownTimeout)

	st := &cfg.Storage
	st.Driver = e.str("DB_DRIVER", st.Driver)
	st.DSN = e.str("DB_DSN", lookupRaw("DATABASE_URL", st.DSN))
	st.MaxConns = e.integer("DB_MAX_CONNS", st.MaxConns)
	st.MinConns = e.integer("DB_MIN_CONNS", st.MinConns)
	st.Timeout = e.duration("DB_TIMEOUT", st.Timeout)
	st.MaxLifetime = e.duration("DB_MAX_LIFETIME", st.MaxLifetime)
	st.MaxIdleTime = e.duration("DB_MAX_IDLE_TIME", st.MaxIdleTime)
	st.AutoMigrate = e.boolean("DB_AUTO_MIGRATE", st.AutoMigrate)

	r := &cfg.Redis
	r.URL = e.str("REDIS_URL", r.URL)
	r.Password = e.str("REDIS_PASSWORD", r.Password)
	r.DB = e.integer("REDIS_DB", r.DB)
	r.PoolSize = e.integer("REDIS_POOL_SIZE", r.PoolSize)
	r.MaxRetries = e.integer("REDIS_MAX_RETRIES", r.MaxRetries)

	a := &cfg.Auth
	a.AccessSecret = e.str("JWT_ACCESS_SECRET", lookupRaw("JWT_ACCESS_SECRET", a.AccessSecret))
	a.RefreshSecret = e.str("JWT_REFRESH_SECRET", lookupRaw("JWT_REFRESH_SECRET", a.RefreshSecret))
	a.AccessTTL = e.duration("JWT_ACCESS_TTL", a.AccessTTL)
	a.RefreshTTL = e.duration("JWT_REFRESH_TTL", a.RefreshTTL)
	a.Issuer = e.str("JWT_ISSUER", a.Issuer)
	a.BcryptCost = e.integer("BCRYPT_COST", a.BcryptCost)

	rl := &cfg.RateLimit
	rl.Enabled = e.boolean("RATE_LIMIT_ENABLED", rl.Enabled)
	rl.Backend = e.str("RATE_LIMIT_BACKEND", rl.Backend)
	rl.Requests = e.integer("RATE_LIMIT_REQUESTS", rl.Requests)
	rl.Window = e.duration("RATE_LIMIT_WINDOW", rl.Window)
	rl.MaxKeys = e.integer("RATE_LIMIT_MAX_KEYS", rl.MaxKeys)

	o := &cfg.Observability
	o.LogLevel = e.str("LOG_LEVEL", o.LogLevel)
	o.LogFormat = e.str("LOG_FORMAT", o.LogFormat)
	o.LogFile = e.str("LOG_FILE", o.LogFile)
	o.LogMaxSizeMB = e.integer("LOG_MAX_SIZE_MB", o.LogMaxSizeMB)
	o.LogMaxBackups = e.integer("LOG_MAX_BACKUPS", o.LogMaxBackups)
	o.LogMaxAgeDays = e.integer("LOG_MAX_AGE_DAYS", o.LogMaxAgeDays)
	o.LogCompress = e.boolean("LOG_COMPRESS", o.LogCompress)
	o.MetricsEnabled = e.boolean("METRICS_ENABLED", o.MetricsEnabled)
	o.StatsSchedule = e.str("STATS_SCHEDULE", o.StatsSchedule)
	o.OTelEnabled = e.boolean("OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = e.str("OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = e.str("OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = e.str("OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = e.boolean("OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = e.float("OTEL_SAMPLE_RATIO", o.OTelSampleRatio)

	return e.err()
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.OpsPort == "" {
		return fmt.Errorf("ops port is required")
	}
	if c.Server.Port == c.Server.OpsPort {
		return fmt.Errorf("server port and ops port must be different")
	}
	if c.Server.APIPrefix != "" && !strings.HasPrefix(c.Server.APIPrefix, "/") {
		return fmt.Errorf("api prefix must start with /: %q", c.Server.APIPrefix)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}

	switch c.Storage.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid storage driver: %s (must be postgres or sqlite3)", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	if c.Auth.AccessSecret == "" || c.Auth.RefreshSecret == "" {
		return fmt.Errorf("JWT access and refresh secrets are required")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return fmt.Errorf("JWT access and refresh secrets must differ")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}

	if c.RateLimit.Enabled {
		switch c.RateLimit.Backend {
		case RateLimitBackendMemory:
		case RateLimitBackendRedis:
			if !c.Redis.Enabled() {
				return fmt.Errorf("redis URL is required for the redis rate limit backend")
			}
		default:
			return fmt.Errorf("invalid rate limit backend: %s (must be memory or redis)", c.RateLimit.Backend)
		}
		if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit requests and window must be positive")
		}
	}

	if _, err := observability.ParseLogLevel(c.Observability.LogLevel); err != nil {
		return err
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// lookupRaw returns an unprefixed environment variable or a default
func lookupRaw(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader reads prefixed variables and remembers the first parse error
type envReader struct {
	errs []error
}

func (e *envReader) lookup(key string) (string, bool) {
	value := strings.TrimSpace(os.Getenv(EnvPrefix + key))
	return value, value != ""
}

func (e *envReader) fail(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, key, value, err))
}

func (e *envReader) err() error {
	return errors.Join(e.errs...)
}

func (e *envReader) str(key, defaultValue string) string {
	if value, ok := e.lookup(key); ok {
		return value
	}
	return defaultValue
}

func (e *envReader) list(key string, defaultValue []string) []string {
	value, ok := e.lookup(key)
	if !ok {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (e *envReader) boolean(key string, defaultValue bool) bool {
	value, ok := e.lookup(key)
	if !ok {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return b
}

func (e *envReader) integer(key string, defaultValue int) int {
	value, ok := e.lookup(key)
	if !ok {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (e *envReader) integer64(key string, defaultValue int64) int64 {
	value, ok := e.lookup(key)
	if !ok {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (e *envReader) float(key string, defaultValue float64) float64 {
	value, ok := e.lookup(key)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return f
}

func (e *envReader) duration(key string, defaultValue time.Duration) time.Duration {
	value, ok := e.lookup(key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return d
}
