package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Log        LogConfig
	HTTP       HTTPConfig
	Accounting AccountingConfig
	Invoicing  InvoicingConfig
	Scheduler  SchedulerConfig
	Telemetry  TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name    string
	Env     string
	Port    string
	Version string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	// NotificationQueue is the list key invoice notifications are pushed to
	NotificationQueue string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
	// RateLimitPerMinute limits requests per client IP; zero disables limiting
	RateLimitPerMinute int
	RateLimitBurst     int
}

// AccountingConfig holds the accounting platform connection
type AccountingConfig struct {
	Enabled            bool
	BaseURL            string
	APIKey             string
	Timeout            time.Duration
	MinRequestInterval time.Duration
}

// InvoicingConfig holds document numbering and job trigger settings
type InvoicingConfig struct {
	InvoicePrefix   string
	QuotationPrefix string
	Timezone        string
	Locale          string
	// TriggerSecret guards the job and accounting endpoints
	TriggerSecret string
}

// Location resolves Timezone
func (c InvoicingConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// SchedulerConfig holds the in-process job trigger configuration
type SchedulerConfig struct {
	Enabled           bool
	GenerateHour      int
	GenerateMinute    int
	ReconcileInterval time.Duration
	CheckInterval     time.Duration
	JobTimeout        time.Duration
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsInterval   time.Duration
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with BILLSYNC_ prefix (e.g., BILLSYNC_ACCOUNTING_API_KEY)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("BILLSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:    v.GetString("app.name"),
			Env:     v.GetString("app.env"),
			Port:    v.GetString("app.port"),
			Version: v.GetString("app.version"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:              v.GetString("redis.host"),
			Port:              v.GetInt("redis.port"),
			Password:          v.GetString("redis.password"),
			DB:                v.GetInt("redis.db"),
			NotificationQueue: v.GetString("redis.notification_queue"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),

			RateLimitPerMinute: v.GetInt("http.rate_limit_per_minute"),
			RateLimitBurst:     v.GetInt("http.rate_limit_burst"),
		},
		Accounting: AccountingConfig{
			Enabled:            v.GetBool("accounting.enabled"),
			BaseURL:            v.GetString("accounting.base_url"),
			APIKey:             v.GetString("accounting.api_key"),
			Timeout:            v.GetDuration("accounting.timeout"),
			MinRequestInterval: v.GetDuration("accounting.min_request_interval"),
		},
		Invoicing: InvoicingConfig{
			InvoicePrefix:   v.GetString("invoicing.invoice_prefix"),
			QuotationPrefix: v.GetString("invoicing.quotation_prefix"),
			Timezone:        v.GetString("invoicing.timezone"),
			Locale:          v.GetString("invoicing.locale"),
			TriggerSecret:   v.GetString("invoicing.trigger_secret"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           v.GetBool("scheduler.enabled"),
			GenerateHour:      v.GetInt("scheduler.generate_hour"),
			GenerateMinute:    v.GetInt("scheduler.generate_minute"),
			ReconcileInterval: v.GetDuration("scheduler.reconcile_interval"),
			CheckInterval:     v.GetDuration("scheduler.check_interval"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "billsync"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "dev"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "billsync"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.NotificationQueue == "" {
		cfg.Redis.NotificationQueue = "billsync:notifications"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// Generation runs inside the request, so the write timeout covers a whole batch
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 10 * time.Minute
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitPerMinute > 0 && cfg.HTTP.RateLimitBurst == 0 {
		cfg.HTTP.RateLimitBurst = 5
	}
	if cfg.Accounting.BaseURL == "" {
		cfg.Accounting.BaseURL = "https://api.lexoffice.io"
	}
	if cfg.Accounting.Timeout == 0 {
		cfg.Accounting.Timeout = 30 * time.Second
	}
	if cfg.Accounting.MinRequestInterval == 0 {
		cfg.Accounting.MinRequestInterval = 500 * time.Millisecond
	}
	if cfg.Invoicing.InvoicePrefix == "" {
		cfg.Invoicing.InvoicePrefix = "INV"
	}
	if cfg.Invoicing.QuotationPrefix == "" {
		cfg.Invoicing.QuotationPrefix = "QUO"
	}
	if cfg.Invoicing.Timezone == "" {
		cfg.Invoicing.Timezone = "Europe/Berlin"
	}
	if cfg.Invoicing.Locale == "" {
		cfg.Invoicing.Locale = "de-DE"
	}
	if cfg.Scheduler.GenerateHour == 0 && cfg.Scheduler.GenerateMinute == 0 {
		cfg.Scheduler.GenerateHour = 6
	}
	if cfg.Scheduler.ReconcileInterval == 0 {
		cfg.Scheduler.ReconcileInterval = time.Hour
	}
	if cfg.Scheduler.CheckInterval == 0 {
		cfg.Scheduler.CheckInterval = time.Minute
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "billsync"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if _, err := c.Invoicing.Location(); err != nil {
		return fmt.Errorf("invoicing.timezone %q is not a known location: %w", c.Invoicing.Timezone, err)
	}
	if c.Scheduler.GenerateHour < 0 || c.Scheduler.GenerateHour > 23 {
		return fmt.Errorf("scheduler.generate_hour must be between 0 and 23, got %d", c.Scheduler.GenerateHour)
	}
	if c.Scheduler.GenerateMinute < 0 || c.Scheduler.GenerateMinute > 59 {
		return fmt.Errorf("scheduler.generate_minute must be between 0 and 59, got %d", c.Scheduler.GenerateMinute)
	}
	if c.Accounting.MinRequestInterval < 500*time.Millisecond {
		return fmt.Errorf("accounting.min_request_interval must be at least 500ms, got %s", c.Accounting.MinRequestInterval)
	}

	if c.App.Env == "production" {
		if c.Invoicing.TriggerSecret == "" {
			return fmt.Errorf("invoicing.trigger_secret is required in production")
		}
		if len(c.Invoicing.TriggerSecret) < 16 {
			return fmt.Errorf("invoicing.trigger_secret must be at least 16 characters in production")
		}
		if c.Accounting.Enabled && c.Accounting.APIKey == "" {
			return fmt.Errorf("accounting.api_key is required in production when accounting is enabled")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns host:port of the Redis server
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
