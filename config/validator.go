package config

import (
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the package validator instance.
var validate *validator.Validate

var hostnamePattern = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("env", validateEnvironment)
	_ = validate.RegisterValidation("host", validateHost)
}

// ConfigError represents a validation error for a specific field.
type ConfigError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of config errors.
type ValidationErrors []ConfigError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// ValidateWithDetails performs validation and returns detailed errors.
func ValidateWithDetails(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			details := make(ValidationErrors, 0, len(validationErrors))
			for _, fe := range validationErrors {
				details = append(details, ConfigError{
					Field:   fe.Namespace(),
					Message: formatValidationError(fe),
					Value:   fe.Value(),
				})
			}
			return details
		}
		return err
	}
	return validateCrossField(cfg)
}

// validateCrossField checks constraints that span sections.
func validateCrossField(cfg *Config) error {
	var details ValidationErrors
	if cfg.Events.StateBackend == "file" && strings.TrimSpace(cfg.Events.StateFile) == "" {
		details = append(details, ConfigError{
			Field:   "Config.Events.StateFile",
			Message: "required when state_backend is file",
			Value:   cfg.Events.StateFile,
		})
	}
	if cfg.Storage.Type == "badger" && strings.TrimSpace(cfg.Storage.Badger.Path) == "" {
		details = append(details, ConfigError{
			Field:   "Config.Storage.Badger.Path",
			Message: "required when storage type is badger",
			Value:   cfg.Storage.Badger.Path,
		})
	}
	needsRedis := cfg.Events.StateBackend == "redis" || cfg.AI.CacheBackend == "redis"
	if needsRedis && strings.TrimSpace(cfg.Redis.Address) == "" {
		details = append(details, ConfigError{
			Field:   "Config.Redis.Address",
			Message: "required when a redis backend is selected",
			Value:   cfg.Redis.Address,
		})
	}
	if cfg.AI.ProviderTimeout <= 0 {
		details = append(details, ConfigError{
			Field:   "Config.AI.ProviderTimeout",
			Message: "must be positive",
			Value:   cfg.AI.ProviderTimeout,
		})
	}
	if len(details) > 0 {
		return details
	}
	return nil
}

// formatValidationError converts validator.FieldError to a human-readable message.
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "url":
		return "must be a valid URL"
	case "env":
		return "must be one of [development staging production]"
	case "host":
		return "must be a valid hostname or IP address"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}

func validateEnvironment(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

func validateHost(fl validator.FieldLevel) bool {
	host := fl.Field().String()
	if host == "" {
		return true
	}
	if net.ParseIP(host) != nil {
		return true
	}
	return len(host) <= 253 && hostnamePattern.MatchString(host)
}
