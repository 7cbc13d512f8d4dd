// Package config provides configuration management for Brilliox.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration for Brilliox.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Server is the HTTP server configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Storage is the CRM record persistence configuration.
	Storage StorageConfig `mapstructure:"storage"`

	// Redis is the shared Redis connection used by the cache and state backends.
	Redis RedisConfig `mapstructure:"redis"`

	// Events is the process event bus configuration.
	Events EventsConfig `mapstructure:"events"`

	// AI is the response generator configuration.
	AI AIConfig `mapstructure:"ai"`

	// Billing holds per-operation token costs.
	Billing BillingConfig `mapstructure:"billing"`

	// Auth holds administrator identity settings.
	Auth AuthConfig `mapstructure:"auth"`

	// Security holds input and rate limiting settings.
	Security SecurityConfig `mapstructure:"security"`

	// Webhook holds the ad-platform lead intake settings.
	Webhook WebhookConfig `mapstructure:"webhook"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version reported in system state.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"env"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host" validate:"omitempty,host"`

	// Port is the HTTP API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// HTTP is the HTTP server tuning.
	HTTP HTTPConfig `mapstructure:"http"`

	// CORS is the CORS configuration.
	CORS CORSConfig `mapstructure:"cors"`

	// UIDir serves the dashboard from disk instead of the bundled assets.
	UIDir string `mapstructure:"ui_dir"`
}

// HTTPConfig holds HTTP-specific settings.
type HTTPConfig struct {
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// RequestTimeout bounds a single request. It must exceed the provider chain
	// worst case, so chat requests are not cut mid-fallback.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	MaxHeaderBytes int `mapstructure:"max_header_bytes"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the output destination (stdout, stderr, or file path).
	Output string `mapstructure:"output"`
}

// StorageConfig holds persistence settings for users, leads and shares.
type StorageConfig struct {
	// Type is the storage backend (memory, badger).
	Type string `mapstructure:"type" validate:"oneof=memory badger"`

	// Badger is the BadgerDB configuration.
	Badger BadgerConfig `mapstructure:"badger"`
}

// BadgerConfig holds BadgerDB-specific settings.
type BadgerConfig struct {
	Path       string `mapstructure:"path"`
	SyncWrites bool   `mapstructure:"sync_writes"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
}

// EventsConfig holds process event bus settings.
type EventsConfig struct {
	// StateBackend selects where the bus snapshot lives (file, redis).
	StateBackend string `mapstructure:"state_backend" validate:"oneof=file redis"`

	// StateFile is the snapshot path for the file backend.
	StateFile string `mapstructure:"state_file"`

	// StateKey is the snapshot key for the redis backend.
	StateKey string `mapstructure:"state_key"`

	// HistoryLimit caps the in-memory event history.
	HistoryLimit int `mapstructure:"history_limit" validate:"min=1"`

	// PatternLimit caps the learned patterns list.
	PatternLimit int `mapstructure:"pattern_limit" validate:"min=1"`

	// AsyncWorkers is the number of workers dispatching async listeners.
	AsyncWorkers int `mapstructure:"async_workers" validate:"min=1"`

	// AsyncQueueSize is the buffered task queue of the async dispatcher.
	AsyncQueueSize int `mapstructure:"async_queue_size" validate:"min=1"`
}

// AIConfig holds response generator settings.
type AIConfig struct {
	// CacheBackend selects the response cache (memory, redis).
	CacheBackend string `mapstructure:"cache_backend" validate:"oneof=memory redis"`

	// CacheTTL is how long a cached response stays valid.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// CachePrefix namespaces redis cache keys.
	CachePrefix string `mapstructure:"cache_prefix"`

	// ProviderTimeout bounds a single provider attempt.
	ProviderTimeout time.Duration `mapstructure:"provider_timeout"`

	Temperature float64 `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxTokens   int     `mapstructure:"max_tokens" validate:"min=1"`

	// FallbackLanguage selects the localized message returned when every provider fails.
	FallbackLanguage string `mapstructure:"fallback_language" validate:"oneof=ar en"`

	OpenAI    ProviderConfig `mapstructure:"openai"`
	Groq      ProviderConfig `mapstructure:"groq"`
	Gemini    ProviderConfig `mapstructure:"gemini"`
	Anthropic ProviderConfig `mapstructure:"anthropic"`
}

// ProviderConfig holds one text-generation backend's credential and model.
// A provider without an API key is skipped at generation time.
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

// BillingConfig holds token costs per operation.
type BillingConfig struct {
	ChatCost       int `mapstructure:"chat_cost" validate:"min=0"`
	HuntCost       int `mapstructure:"hunt_cost" validate:"min=0"`
	AdCost         int `mapstructure:"ad_cost" validate:"min=0"`
	CampaignCost   int `mapstructure:"campaign_cost" validate:"min=0"`
	DefaultBalance int `mapstructure:"default_balance" validate:"min=0"`
}

// AuthConfig holds the administrator identity.
type AuthConfig struct {
	AdminUsername string `mapstructure:"admin_username" validate:"required"`

	// AdminPassword seeds the admin account on startup when non-empty.
	AdminPassword string `mapstructure:"admin_password"`
}

// SecurityConfig holds input sanitizing and rate limiting settings.
type SecurityConfig struct {
	MaxInputLength int             `mapstructure:"max_input_length" validate:"min=1"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig holds per-client request limits.
type RateLimitConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Requests      int           `mapstructure:"requests" validate:"min=1"`
	Window        time.Duration `mapstructure:"window"`
	BlockDuration time.Duration `mapstructure:"block_duration"`
}

// WebhookConfig holds ad-platform webhook settings.
type WebhookConfig struct {
	VerifyToken string `mapstructure:"verify_token"`
	OwnerID     string `mapstructure:"owner_id"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	Enabled    bool              `mapstructure:"enabled"`
	Exporter   string            `mapstructure:"exporter" validate:"oneof=otlpgrpc"`
	Endpoint   string            `mapstructure:"endpoint"`
	Timeout    time.Duration     `mapstructure:"timeout"`
	Headers    map[string]string `mapstructure:"headers"`
	Sampler    string            `mapstructure:"sampler" validate:"oneof=always_on always_off traceidratio parentbased_traceidratio"`
	SampleRate float64           `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// String returns a summary of the configuration without credentials.
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Server: :%d, Env: %s, Storage: %s, Cache: %s}",
		c.App.Name, c.Server.Port, c.App.Environment, c.Storage.Type, c.AI.CacheBackend)
}
