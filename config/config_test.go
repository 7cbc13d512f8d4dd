package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.App.Name != "brilliox" {
		t.Errorf("expected app name 'brilliox', got %s", cfg.App.Name)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("expected server port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Events.HistoryLimit != 1000 {
		t.Errorf("expected history limit 1000, got %d", cfg.Events.HistoryLimit)
	}
	if cfg.Events.PatternLimit != 500 {
		t.Errorf("expected pattern limit 500, got %d", cfg.Events.PatternLimit)
	}
	if cfg.AI.CacheTTL != time.Hour {
		t.Errorf("expected cache ttl 1h, got %v", cfg.AI.CacheTTL)
	}
	if cfg.AI.ProviderTimeout != 30*time.Second {
		t.Errorf("expected provider timeout 30s, got %v", cfg.AI.ProviderTimeout)
	}
	if cfg.Billing.ChatCost != 2 || cfg.Billing.HuntCost != 20 || cfg.Billing.AdCost != 15 {
		t.Errorf("unexpected billing defaults: %+v", cfg.Billing)
	}
	if cfg.Billing.DefaultBalance != 100 {
		t.Errorf("expected default balance 100, got %d", cfg.Billing.DefaultBalance)
	}
	if cfg.Auth.AdminUsername != "admin" {
		t.Errorf("expected admin username 'admin', got %s", cfg.Auth.AdminUsername)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must be valid: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing app name", mutate: func(c *Config) { c.App.Name = "" }, wantErr: true},
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 99999 }, wantErr: true},
		{name: "invalid log level", mutate: func(c *Config) { c.Log.Level = "trace" }, wantErr: true},
		{name: "invalid environment", mutate: func(c *Config) { c.App.Environment = "qa" }, wantErr: true},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Type = "postgres" }, wantErr: true},
		{name: "unknown cache backend", mutate: func(c *Config) { c.AI.CacheBackend = "disk" }, wantErr: true},
		{name: "zero history limit", mutate: func(c *Config) { c.Events.HistoryLimit = 0 }, wantErr: true},
		{name: "bad provider url", mutate: func(c *Config) { c.AI.Groq.BaseURL = "not a url" }, wantErr: true},
		{name: "temperature too high", mutate: func(c *Config) { c.AI.Temperature = 3 }, wantErr: true},
		{name: "invalid host", mutate: func(c *Config) { c.Server.Host = "bad host!" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateWithDetails_CrossField(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Events.StateFile = ""
	cfg.AI.CacheBackend = "redis"
	cfg.Redis.Address = ""

	err := ValidateWithDetails(cfg)
	var details ValidationErrors
	if !errors.As(err, &details) {
		t.Fatalf("expected ValidationErrors, got %T: %v", err, err)
	}
	if len(details) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(details), details)
	}
	if !strings.Contains(details.Error(), "Config.Redis.Address") {
		t.Errorf("expected redis address error, got %s", details.Error())
	}
}

func TestLoader_Load(t *testing.T) {
	t.Run("defaults only", func(t *testing.T) {
		cfg, err := NewLoader().Load("", nil)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Server.Port != 8000 {
			t.Errorf("expected port 8000, got %d", cfg.Server.Port)
		}
	})

	t.Run("yaml file merges into defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `
server:
  port: 9000
ai:
  cache_ttl: 10m
  openai:
    api_key: sk-file
events:
  state_file: /tmp/brilliox_state.json
`
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}

		cfg, err := NewLoader().Load(path, nil)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Server.Port != 9000 {
			t.Errorf("expected port 9000, got %d", cfg.Server.Port)
		}
		if cfg.AI.CacheTTL != 10*time.Minute {
			t.Errorf("expected cache ttl 10m, got %v", cfg.AI.CacheTTL)
		}
		if cfg.AI.OpenAI.APIKey != "sk-file" {
			t.Errorf("expected openai key from file, got %q", cfg.AI.OpenAI.APIKey)
		}
		if cfg.AI.OpenAI.Model != "gpt-4o" {
			t.Errorf("expected default model to survive partial section, got %q", cfg.AI.OpenAI.Model)
		}
		if cfg.Events.HistoryLimit != 1000 {
			t.Errorf("expected default history limit, got %d", cfg.Events.HistoryLimit)
		}
	})

	t.Run("json file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		if err := os.WriteFile(path, []byte(`{"log":{"level":"debug"}}`), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		cfg, err := NewLoader().Load(path, nil)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Log.Level != "debug" {
			t.Errorf("expected debug, got %s", cfg.Log.Level)
		}
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, err := NewLoader().Load(path, nil); err == nil {
			t.Error("expected error for unsupported format")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := NewLoader().Load("/nonexistent/config.yaml", nil); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("overrides win", func(t *testing.T) {
		cfg, err := NewLoader().Load("", map[string]interface{}{
			"server.port":  7001,
			"storage.type": "badger",
		})
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cfg.Server.Port != 7001 {
			t.Errorf("expected port 7001, got %d", cfg.Server.Port)
		}
		if cfg.Storage.Type != "badger" {
			t.Errorf("expected badger storage, got %s", cfg.Storage.Type)
		}
	})

	t.Run("invalid override fails validation", func(t *testing.T) {
		_, err := NewLoader().Load("", map[string]interface{}{"log.level": "loud"})
		var details ValidationErrors
		if !errors.As(err, &details) {
			t.Fatalf("expected ValidationErrors, got %v", err)
		}
	})
}

func TestLoader_Env(t *testing.T) {
	t.Setenv("BRILLIOX_SERVER__PORT", "8123")
	t.Setenv("BRILLIOX_AI__GROQ__MODEL", "llama-guard")

	loader := NewLoader()
	loader.lookup = func(name string) (string, bool) {
		if name == "ANTHROPIC_API_KEY" {
			return "sk-ant", true
		}
		return "", false
	}

	cfg, err := loader.Load("", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 8123 {
		t.Errorf("expected port 8123 from env, got %d", cfg.Server.Port)
	}
	if cfg.AI.Groq.Model != "llama-guard" {
		t.Errorf("expected groq model from env, got %s", cfg.AI.Groq.Model)
	}
	if cfg.AI.Anthropic.APIKey != "sk-ant" {
		t.Errorf("expected anthropic key from well-known env, got %q", cfg.AI.Anthropic.APIKey)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"BRILLIOX_LOG__LEVEL":          "log.level",
		"BRILLIOX_AI__OPENAI__API_KEY": "ai.openai.api_key",
		"BRILLIOX_WEBHOOK__VERIFY_TOKEN": "webhook.verify_token",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFlatten(t *testing.T) {
	m := flatten(DefaultConfig())
	if m["server.port"] != int64(8000) {
		t.Errorf("expected server.port 8000, got %v", m["server.port"])
	}
	if m["ai.openai.model"] != "gpt-4o" {
		t.Errorf("expected ai.openai.model gpt-4o, got %v", m["ai.openai.model"])
	}
	if _, ok := m["tracing.headers"]; ok {
		t.Error("empty maps must not be emitted")
	}
}

func TestConfig_String(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AI.OpenAI.APIKey = "sk-secret"
	s := cfg.String()
	if strings.Contains(s, "sk-secret") {
		t.Error("String must not leak credentials")
	}
	if !strings.Contains(s, "brilliox") {
		t.Errorf("expected app name in %q", s)
	}
}
