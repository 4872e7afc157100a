package config

import "time"

type Config struct {
	App            AppConfig            `mapstructure:"app"`
	HTTP           HTTPConfig           `mapstructure:"http"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	NATS           NATSConfig           `mapstructure:"nats"`
	RabbitMQ       RabbitMQConfig       `mapstructure:"rabbitmq"`
	Vault          VaultConfig          `mapstructure:"vault"`
	JWT            JWTConfig            `mapstructure:"jwt"`
	MAF            MAFConfig            `mapstructure:"maf"`
	SolverEngine   SolverEngineConfig   `mapstructure:"solver_engine"`
	SendGrid       SendGridConfig       `mapstructure:"sendgrid"`
	OpenTelemetry  OpenTelemetryConfig  `mapstructure:"opentelemetry"`
	Prometheus     PrometheusConfig     `mapstructure:"prometheus"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	RateLimiting   RateLimitingConfig   `mapstructure:"rate_limiting"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	CORS           CORSConfig           `mapstructure:"cors"`
	Security       SecurityConfig       `mapstructure:"security"`
	Limits         LimitsConfig         `mapstructure:"limits"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port           int           `mapstructure:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogQueries      bool          `mapstructure:"log_queries"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type RabbitMQConfig struct {
	URL          string `mapstructure:"url"`
	Exchange     string `mapstructure:"exchange"`
	ExchangeKind string `mapstructure:"exchange_kind"`
	Durable      bool   `mapstructure:"durable"`
}

type VaultConfig struct {
	Address           string        `mapstructure:"address"`
	Token             string        `mapstructure:"token"`
	DatabaseMountPath string        `mapstructure:"database_mount_path"`
	SolverMountPath   string        `mapstructure:"solver_mount_path"`
	RenewInterval     time.Duration `mapstructure:"renew_interval"`
}

type JWTConfig struct {
	OpsSigningKey string `mapstructure:"ops_signing_key"`
	Issuer        string `mapstructure:"issuer"`
}

// MAFConfig points the site-configuration loader at the depot fleet
// management API that owns client/site/vehicle parameter documents.
type MAFConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	BearerToken string        `mapstructure:"bearer_token"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// SolverEngineConfig configures the remote commercial constraint/solver
// engine client and the health probe that flips the process-wide
// capability between it and the greedy fallback.
type SolverEngineConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	APIKey              string        `mapstructure:"api_key"`
	Timeout             time.Duration `mapstructure:"timeout"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
}

type SendGridConfig struct {
	APIKey   string `mapstructure:"api_key"`
	FromAddr string `mapstructure:"from_addr"`
	FromName string `mapstructure:"from_name"`
}

type OpenTelemetryConfig struct {
	Enabled     bool              `mapstructure:"enabled"`
	Jaeger      JaegerConfig      `mapstructure:"jaeger"`
	ServiceName string            `mapstructure:"service_name"`
	Attributes  map[string]string `mapstructure:"attributes"`
}

type JaegerConfig struct {
	Endpoint     string  `mapstructure:"endpoint"`
	SamplerType  string  `mapstructure:"sampler_type"`
	SamplerParam float64 `mapstructure:"sampler_param"`
}

type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

type LoggingConfig struct {
	Level    string          `mapstructure:"level"`
	Format   string          `mapstructure:"format"`
	Output   string          `mapstructure:"output"`
	Sampling LoggingSampling `mapstructure:"sampling"`
}

type LoggingSampling struct {
	Enabled    bool `mapstructure:"enabled"`
	Initial    int  `mapstructure:"initial"`
	Thereafter int  `mapstructure:"thereafter"`
}

type RateLimitingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
	ByUser      bool          `mapstructure:"by_user"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      int           `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
}

type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	ExposeHeaders  []string `mapstructure:"expose_headers"`
	MaxAge         int      `mapstructure:"max_age"`
	Credentials    bool     `mapstructure:"credentials"`
}

type SecurityConfig struct {
	EnableHTTPS bool   `mapstructure:"enable_https"`
	TLSCertPath string `mapstructure:"tls_cert_path"`
	TLSKeyPath  string `mapstructure:"tls_key_path"`
	EnableMTLS  bool   `mapstructure:"enable_mtls"`
	CACertPath  string `mapstructure:"ca_cert_path"`
}

// LimitsConfig carries the defaults the allocation and schedule runs fall
// back to when a site's MAF document leaves a parameter unset.
type LimitsConfig struct {
	DefaultAllocationWindowHours       int           `mapstructure:"default_allocation_window_hours"`
	DefaultMaxRoutesPerVehicleInWindow int           `mapstructure:"default_max_routes_per_vehicle_in_window"`
	SolverTimeLimit                    time.Duration `mapstructure:"solver_time_limit"`
	MaxRequestBodySize                 string        `mapstructure:"max_request_body_size"`
}
