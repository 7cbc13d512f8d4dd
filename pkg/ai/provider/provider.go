// Package provider adapts hosted LLM APIs to ai.Provider.
package provider

import (
	"github.com/brilliox/brilliox/config"
	"github.com/brilliox/brilliox/pkg/ai"
)

// Provider names in reference order.
const (
	NameOpenAI    = "openai"
	NameGroq      = "groq"
	NameGemini    = "gemini"
	NameAnthropic = "anthropic"
)

// Default endpoints for OpenAI-compatible third parties.
const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	GeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

// Settings are the generation parameters shared by all providers.
type Settings struct {
	Temperature float64
	MaxTokens   int
}

// FromConfig builds the provider chain in reference order: OpenAI, Groq,
// Gemini, Anthropic. Providers without a key are included but report
// themselves unavailable.
func FromConfig(cfg config.AIConfig) []ai.Provider {
	s := Settings{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}
	return []ai.Provider{
		NewOpenAICompatible(NameOpenAI, cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, s),
		NewOpenAICompatible(NameGroq, cfg.Groq.APIKey, cfg.Groq.Model, orDefault(cfg.Groq.BaseURL, GroqBaseURL), s),
		NewOpenAICompatible(NameGemini, cfg.Gemini.APIKey, cfg.Gemini.Model, orDefault(cfg.Gemini.BaseURL, GeminiBaseURL), s),
		NewAnthropic(cfg.Anthropic.APIKey, cfg.Anthropic.Model, cfg.Anthropic.BaseURL, s),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
