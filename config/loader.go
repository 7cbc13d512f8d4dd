package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "BRILLIOX_"
	// Delimiter is the key delimiter for nested config.
	Delimiter = "."
	// BRILLIOX_AI__OPENAI__API_KEY -> ai.openai.api_key
	envNestingSeparator = "__"
)

// wellKnownEnv maps conventional unprefixed variables onto config keys.
var wellKnownEnv = map[string]string{
	"OPENAI_API_KEY":    "ai.openai.api_key",
	"GROQ_API_KEY":      "ai.groq.api_key",
	"GEMINI_API_KEY":    "ai.gemini.api_key",
	"ANTHROPIC_API_KEY": "ai.anthropic.api_key",
	"ADMIN_USERNAME":    "auth.admin_username",
	"ADMIN_PASSWORD":    "auth.admin_password",
	"REDIS_URL":         "redis.address",
}

// defaultFiles are tried in order when no path is given.
var defaultFiles = []string{
	"config.yaml",
	"config.yml",
	"config.json",
	"configs/config.yaml",
	"/etc/brilliox/config.yaml",
}

// Loader merges configuration layers into a Config.
type Loader struct {
	k      *koanf.Koanf
	lookup func(string) (string, bool)
}

// NewLoader creates a loader that reads the process environment.
func NewLoader() *Loader {
	return &Loader{lookup: os.LookupEnv}
}

// Load merges, from lowest to highest priority: defaults, the config file,
// well-known provider variables, BRILLIOX_ variables and overrides. The
// result is validated before it is returned.
func (l *Loader) Load(configPath string, overrides map[string]any) (*Config, error) {
	l.k = koanf.New(Delimiter)

	layers := []struct {
		name string
		load func() error
	}{
		{"defaults", func() error {
			return l.k.Load(confmap.Provider(flatten(DefaultConfig()), Delimiter), nil)
		}},
		{"config file", func() error { return l.loadFile(configPath) }},
		{"provider env vars", l.loadWellKnownEnv},
		{"env vars", func() error {
			return l.k.Load(env.Provider(EnvPrefix, Delimiter, envKey), nil)
		}},
		{"overrides", func() error {
			if len(overrides) == 0 {
				return nil
			}
			return l.k.Load(confmap.Provider(overrides, Delimiter), nil)
		}},
	}
	for _, layer := range layers {
		if err := layer.load(); err != nil {
			return nil, fmt.Errorf("load %s: %w", layer.name, err)
		}
	}

	var cfg Config
	if err := l.k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "mapstructure"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := ValidateWithDetails(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadFile reads path, or the first default file that exists when path is
// empty. A missing explicit path is an error; missing defaults are not.
func (l *Loader) loadFile(path string) error {
	if path == "" {
		for _, candidate := range defaultFiles {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
		if path == "" {
			return nil
		}
	} else if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", path)
	}

	parser, err := parserFor(path)
	if err != nil {
		return err
	}
	return l.k.Load(file.Provider(path), parser)
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}
}

// envKey transforms BRILLIOX_SERVER__PORT into server.port.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, envNestingSeparator, Delimiter)
}

func (l *Loader) loadWellKnownEnv() error {
	values := make(map[string]any)
	for name, key := range wellKnownEnv {
		if v, ok := l.lookup(name); ok && v != "" {
			values[key] = v
		}
	}
	if len(values) == 0 {
		return nil
	}
	return l.k.Load(confmap.Provider(values, Delimiter), nil)
}

// flatten turns a config struct into dot-separated keys so partial sections
// from later layers merge into the defaults instead of replacing them.
// Empty maps are omitted.
func flatten(v any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, val reflect.Value)
	walk = func(prefix string, val reflect.Value) {
		typ := val.Type()
		for i := 0; i < val.NumField(); i++ {
			field := typ.Field(i)
			name := field.Tag.Get("mapstructure")
			if !field.IsExported() || name == "" || name == "-" {
				continue
			}
			if prefix != "" {
				name = prefix + Delimiter + name
			}

			fv := val.Field(i)
			switch fv.Kind() {
			case reflect.Struct:
				walk(name, fv)
			case reflect.Map:
				if fv.Len() > 0 {
					out[name] = fv.Interface()
				}
			case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
				out[name] = fv.Int()
			case reflect.Slice:
				items := make([]any, fv.Len())
				for j := range items {
					items[j] = fv.Index(j).Interface()
				}
				out[name] = items
			default:
				out[name] = fv.Interface()
			}
		}
	}

	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Pointer {
		val = val.Elem()
	}
	if val.Kind() == reflect.Struct {
		walk("", val)
	}
	return out
}

// Load is a convenience function to load configuration.
func Load(configPath string, overrides map[string]any) (*Config, error) {
	return NewLoader().Load(configPath, overrides)
}
