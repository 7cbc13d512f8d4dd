package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "brilliox",
			Version:     "7.0.0",
			Environment: "development",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
			HTTP: HTTPConfig{
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    150 * time.Second,
				IdleTimeout:     120 * time.Second,
				ShutdownTimeout: 15 * time.Second,
				RequestTimeout:  140 * time.Second,
				MaxHeaderBytes:  1 << 20,
			},
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID", "X-Admin-User"},
				ExposedHeaders: []string{"X-Request-ID"},
				MaxAge:         3600,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Storage: StorageConfig{
			Type: "memory",
			Badger: BadgerConfig{
				Path:       "./data/badger",
				SyncWrites: true,
			},
		},
		Redis: RedisConfig{
			Address: "localhost:6379",
		},
		Events: EventsConfig{
			StateBackend:   "file",
			StateFile:      "./data/system_data.json",
			StateKey:       "brilliox:system_data",
			HistoryLimit:   1000,
			PatternLimit:   500,
			AsyncWorkers:   4,
			AsyncQueueSize: 256,
		},
		AI: AIConfig{
			CacheBackend:     "memory",
			CacheTTL:         time.Hour,
			CachePrefix:      "brilliox:ai:",
			ProviderTimeout:  30 * time.Second,
			Temperature:      0.7,
			MaxTokens:        2000,
			FallbackLanguage: "ar",
			OpenAI:           ProviderConfig{Model: "gpt-4o"},
			Groq: ProviderConfig{
				Model:   "llama-3.3-70b-versatile",
				BaseURL: "https://api.groq.com/openai/v1",
			},
			Gemini: ProviderConfig{
				Model:   "gemini-1.5-pro",
				BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai/",
			},
			Anthropic: ProviderConfig{Model: "claude-3-5-sonnet-20241022"},
		},
		Billing: BillingConfig{
			ChatCost:       2,
			HuntCost:       20,
			AdCost:         15,
			CampaignCost:   50,
			DefaultBalance: 100,
		},
		Auth: AuthConfig{
			AdminUsername: "admin",
		},
		Security: SecurityConfig{
			MaxInputLength: 2000,
			RateLimit: RateLimitConfig{
				Enabled:       true,
				Requests:      60,
				Window:        time.Minute,
				BlockDuration: 5 * time.Minute,
			},
		},
		Webhook: WebhookConfig{
			VerifyToken: "hunter_pro_2024",
			OwnerID:     "admin",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9091,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "otlpgrpc",
			Endpoint:   "localhost:4317",
			Timeout:    5 * time.Second,
			Sampler:    "parentbased_traceidratio",
			SampleRate: 0.1,
		},
	}
}
