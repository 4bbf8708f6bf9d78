package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Storage   StorageConfig
	Renderer  RendererConfig
	Documents DocumentsConfig
	Events    EventsConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
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
	LogLevel        string
	SlowThreshold   time.Duration
	AutoMigrate     bool // apply the embedded migrations on server start
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string

	// API documentation at /swagger; on by default outside production
	SwaggerEnabled    bool
	SwaggerAllowedIPs []string
}

// Storage backends
const (
	StorageBackendS3         = "s3"
	StorageBackendFilesystem = "filesystem"
	StorageBackendMemory     = "memory"
)

// StorageConfig holds artifact blob storage settings
type StorageConfig struct {
	Backend           string // s3, filesystem, memory
	Bucket            string
	Region            string
	Endpoint          string // custom endpoint for MinIO / S3-compatible stores
	AccessKeyID       string
	SecretAccessKey   string
	UsePathStyle      bool
	KeyPrefix         string
	PresignExpiration time.Duration
	LocalPath         string // root directory of the filesystem backend
	PublicBaseURL     string // base URL the filesystem backend serves files under
}

// Renderer engines
const (
	RendererEngineChromedp = "chromedp"
	RendererEngineHTML     = "html"
)

// RendererConfig holds HTML to PDF renderer settings
type RendererConfig struct {
	Engine        string // chromedp prints PDFs, html stores the rendered page as is
	ChromePath    string // local Chrome/Chromium executable; empty uses the default lookup
	RemoteURL     string // DevTools websocket URL of a remote browser
	Timeout       time.Duration
	MaxConcurrent int
	PaperSize     string // A4, A5, LETTER
}

// Draft store backends
const (
	DraftBackendRedis    = "redis"
	DraftBackendDatabase = "database"
	DraftBackendMemory   = "memory"
)

// Sequence generator backends
const (
	SequenceBackendDatabase = "database"
	SequenceBackendRedis    = "redis"
)

// DocumentsConfig holds lifecycle settings
type DocumentsConfig struct {
	AutosaveDelay   time.Duration
	VATRate         string // decimal string, e.g. "0.19"
	DraftBackend    string // redis, database, memory
	DraftTTL        time.Duration
	SequenceBackend string // database, redis

	// SessionIdleTimeout closes editing sessions unused for this long
	SessionIdleTimeout time.Duration
}

// Event delivery modes
const (
	EventDeliveryDirect = "direct"
	EventDeliveryOutbox = "outbox"
)

// Idempotency store backends
const (
	IdempotencyBackendMemory = "memory"
	IdempotencyBackendRedis  = "redis"
)

// EventsConfig holds document event delivery settings
type EventsConfig struct {
	Delivery           string // direct publishes after commit, outbox writes events in the commit transaction
	PollInterval       time.Duration
	BatchSize          int
	CleanupRetention   time.Duration
	IdempotencyBackend string // memory, redis
	IdempotencyTTL     time.Duration
	MaxRetries         int // delivery attempts before an outbox entry is dead
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)

	MetricsEnabled  bool
	MetricsInterval time.Duration
	LogsEnabled     bool // export zap records through the OTEL log bridge

	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Include query variables in spans (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold (default: 200ms)

	ProfilingEnabled bool     // Pyroscope continuous profiling
	ProfilingServer  string   // Pyroscope server address
	ProfileTypes     []string // cpu, inuse_space, goroutines, mutex_count, ...; empty collects the defaults
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with SALESDOCS_ prefix (e.g., SALESDOCS_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("SALESDOCS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
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
			LogLevel:        v.GetString("database.log_level"),
			SlowThreshold:   v.GetDuration("database.slow_threshold"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:   v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
			SwaggerEnabled:    v.GetBool("http.swagger_enabled"),
			SwaggerAllowedIPs: v.GetStringSlice("http.swagger_allowed_ips"),
		},
		Storage: StorageConfig{
			Backend:           v.GetString("storage.backend"),
			Bucket:            v.GetString("storage.bucket"),
			Region:            v.GetString("storage.region"),
			Endpoint:          v.GetString("storage.endpoint"),
			AccessKeyID:       v.GetString("storage.access_key_id"),
			SecretAccessKey:   v.GetString("storage.secret_access_key"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			KeyPrefix:         v.GetString("storage.key_prefix"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
			LocalPath:         v.GetString("storage.local_path"),
			PublicBaseURL:     v.GetString("storage.public_base_url"),
		},
		Renderer: RendererConfig{
			Engine:        v.GetString("renderer.engine"),
			ChromePath:    v.GetString("renderer.chrome_path"),
			RemoteURL:     v.GetString("renderer.remote_url"),
			Timeout:       v.GetDuration("renderer.timeout"),
			MaxConcurrent: v.GetInt("renderer.max_concurrent"),
			PaperSize:     v.GetString("renderer.paper_size"),
		},
		Documents: DocumentsConfig{
			AutosaveDelay:      v.GetDuration("documents.autosave_delay"),
			VATRate:            v.GetString("documents.vat_rate"),
			DraftBackend:       v.GetString("documents.draft_backend"),
			DraftTTL:           v.GetDuration("documents.draft_ttl"),
			SequenceBackend:    v.GetString("documents.sequence_backend"),
			SessionIdleTimeout: v.GetDuration("documents.session_idle_timeout"),
		},
		Events: EventsConfig{
			Delivery:           v.GetString("events.delivery"),
			PollInterval:       v.GetDuration("events.poll_interval"),
			BatchSize:          v.GetInt("events.batch_size"),
			CleanupRetention:   v.GetDuration("events.cleanup_retention"),
			IdempotencyBackend: v.GetString("events.idempotency_backend"),
			IdempotencyTTL:     v.GetDuration("events.idempotency_ttl"),
			MaxRetries:         v.GetInt("events.max_retries"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingServer:   v.GetString("telemetry.profiling_server"),
			ProfileTypes:      v.GetStringSlice("telemetry.profile_types"),
		},
	}

	applyDefaults(cfg)
	if !v.IsSet("http.swagger_enabled") {
		cfg.HTTP.SwaggerEnabled = cfg.App.Env != "production"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "salesdocs"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
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
		cfg.Database.DBName = "salesdocs"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}
	if cfg.Database.SlowThreshold == 0 {
		cfg.Database.SlowThreshold = 200 * time.Millisecond
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
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
	if cfg.HTTP.WriteTimeout == 0 {
		// finalize renders a PDF inside the request
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 2 << 20 // 2MB
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "X-Request-ID"}
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageBackendFilesystem
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "eu-central-1"
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "documents"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
	if cfg.Storage.LocalPath == "" {
		cfg.Storage.LocalPath = "./data/artifacts"
	}
	if cfg.Storage.PublicBaseURL == "" {
		cfg.Storage.PublicBaseURL = "/api/v1/files"
	}
	if cfg.Renderer.Engine == "" {
		cfg.Renderer.Engine = RendererEngineChromedp
	}
	if cfg.Renderer.Timeout == 0 {
		cfg.Renderer.Timeout = 30 * time.Second
	}
	if cfg.Renderer.MaxConcurrent == 0 {
		cfg.Renderer.MaxConcurrent = 2
	}
	if cfg.Renderer.PaperSize == "" {
		cfg.Renderer.PaperSize = "A4"
	}
	if cfg.Documents.AutosaveDelay == 0 {
		cfg.Documents.AutosaveDelay = 1500 * time.Millisecond
	}
	if cfg.Documents.VATRate == "" {
		cfg.Documents.VATRate = "0.19"
	}
	if cfg.Documents.DraftBackend == "" {
		cfg.Documents.DraftBackend = DraftBackendDatabase
	}
	if cfg.Documents.DraftTTL == 0 {
		cfg.Documents.DraftTTL = 30 * 24 * time.Hour
	}
	if cfg.Documents.SequenceBackend == "" {
		cfg.Documents.SequenceBackend = SequenceBackendDatabase
	}
	if cfg.Documents.SessionIdleTimeout == 0 {
		cfg.Documents.SessionIdleTimeout = 30 * time.Minute
	}
	if cfg.Events.Delivery == "" {
		cfg.Events.Delivery = EventDeliveryDirect
	}
	if cfg.Events.PollInterval == 0 {
		cfg.Events.PollInterval = time.Second
	}
	if cfg.Events.BatchSize == 0 {
		cfg.Events.BatchSize = 100
	}
	if cfg.Events.CleanupRetention == 0 {
		cfg.Events.CleanupRetention = 7 * 24 * time.Hour
	}
	if cfg.Events.IdempotencyBackend == "" {
		cfg.Events.IdempotencyBackend = IdempotencyBackendMemory
	}
	if cfg.Events.IdempotencyTTL == 0 {
		cfg.Events.IdempotencyTTL = 24 * time.Hour
	}
	if cfg.Events.MaxRetries == 0 {
		cfg.Events.MaxRetries = 5
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "salesdocs"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Telemetry.ProfilingServer == "" {
		cfg.Telemetry.ProfilingServer = "http://localhost:4040"
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

	switch c.Storage.Backend {
	case StorageBackendS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the s3 backend")
		}
	case StorageBackendFilesystem, StorageBackendMemory:
	default:
		return fmt.Errorf("storage.backend must be one of s3, filesystem, memory, got %q", c.Storage.Backend)
	}

	switch c.Renderer.Engine {
	case RendererEngineChromedp, RendererEngineHTML:
	default:
		return fmt.Errorf("renderer.engine must be chromedp or html, got %q", c.Renderer.Engine)
	}

	switch c.Documents.DraftBackend {
	case DraftBackendRedis, DraftBackendDatabase, DraftBackendMemory:
	default:
		return fmt.Errorf("documents.draft_backend must be one of redis, database, memory, got %q", c.Documents.DraftBackend)
	}
	switch c.Documents.SequenceBackend {
	case SequenceBackendDatabase, SequenceBackendRedis:
	default:
		return fmt.Errorf("documents.sequence_backend must be database or redis, got %q", c.Documents.SequenceBackend)
	}
	if _, err := decimal.NewFromString(c.Documents.VATRate); err != nil {
		return fmt.Errorf("documents.vat_rate must be a decimal, got %q", c.Documents.VATRate)
	}
	if c.Documents.AutosaveDelay < 0 {
		return fmt.Errorf("documents.autosave_delay cannot be negative")
	}
	if c.Documents.SessionIdleTimeout < 0 {
		return fmt.Errorf("documents.session_idle_timeout cannot be negative")
	}

	switch c.Events.Delivery {
	case EventDeliveryDirect, EventDeliveryOutbox:
	default:
		return fmt.Errorf("events.delivery must be direct or outbox, got %q", c.Events.Delivery)
	}
	switch c.Events.IdempotencyBackend {
	case IdempotencyBackendMemory, IdempotencyBackendRedis:
	default:
		return fmt.Errorf("events.idempotency_backend must be memory or redis, got %q", c.Events.IdempotencyBackend)
	}
	if c.Events.BatchSize < 0 {
		return fmt.Errorf("events.batch_size cannot be negative")
	}
	if c.Events.MaxRetries < 0 {
		return fmt.Errorf("events.max_retries cannot be negative")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Storage.Backend == StorageBackendMemory {
			return fmt.Errorf("storage.backend=memory loses artifacts on restart and is not allowed in production")
		}
		if c.Documents.DraftBackend == DraftBackendMemory {
			return fmt.Errorf("documents.draft_backend=memory is not allowed in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
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
