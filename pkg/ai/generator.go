// Package ai generates replies from a fixed, ordered chain of LLM providers
// with a content-addressed reply cache in front of it.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/brilliox/brilliox/pkg/events"
	"github.com/brilliox/brilliox/pkg/i18n"
	"github.com/brilliox/brilliox/pkg/logger"
)

const (
	TracerName      = "github.com/brilliox/brilliox/pkg/ai"
	SpanGenerate    = "ai.generate"
	SpanProviderTry = "ai.provider"

	// DefaultProviderTimeout bounds a single provider attempt.
	DefaultProviderTimeout = 30 * time.Second

	// ErrNoProvider is reported in Result.Error when the chain is exhausted.
	ErrNoProvider = "no provider available"

	promptPreviewRunes = 100
)

// Attempt outcomes reported to the Observer.
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeEmpty       = "empty"
	OutcomeUnavailable = "unavailable"
)

var errEmptyReply = errors.New("empty reply")

// Provider is a single LLM backend.
type Provider interface {
	Name() string
	// Available reports whether the provider has a credential configured.
	Available() bool
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Publisher receives a chat_response event after every successful
// generation. *events.Bus satisfies it.
type Publisher interface {
	Emit(ctx context.Context, kind events.Kind, payload events.Payload) error
}

// Observer receives generator measurements.
type Observer interface {
	CacheLookup(hit bool)
	ProviderAttempt(provider, outcome string, d time.Duration)
	Generated(variant string, success bool, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) CacheLookup(bool)                             {}
func (nopObserver) ProviderAttempt(string, string, time.Duration) {}
func (nopObserver) Generated(string, bool, time.Duration)         {}

// Request describes one generation.
type Request struct {
	Prompt   string
	Variant  Variant
	UseCache bool
	// Cost is reported back as TokensUsed on a fresh reply.
	Cost int
	// Lang selects the fallback message language.
	Lang string
}

// Result is the outcome of a generation. A failed generation is a normal
// result, never a Go error.
type Result struct {
	Success      bool    `json:"success"`
	Response     string  `json:"response"`
	TokensUsed   int     `json:"tokens_used"`
	Cached       bool    `json:"cached"`
	Provider     string  `json:"provider,omitempty"`
	ResponseTime float64 `json:"response_time"`
	Error        string  `json:"error,omitempty"`
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the generator logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(g *Generator) {
		if o != nil {
			g.observer = o
		}
	}
}

// WithProviderTimeout bounds each provider attempt.
func WithProviderTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithFallbackLanguage sets the language used when a request has none.
func WithFallbackLanguage(lang string) Option {
	return func(g *Generator) {
		if lang != "" {
			g.lang = lang
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

// Generator runs prompts through the provider chain.
type Generator struct {
	providers []Provider
	cache     Cache
	publisher Publisher
	observer  Observer
	logger    logger.Logger
	tracer    trace.Tracer
	timeout   time.Duration
	lang      string
	now       func() time.Time
}

// NewGenerator creates a Generator. The provider order is fixed for the
// lifetime of the generator. cache and publisher may be nil.
func NewGenerator(providers []Provider, cache Cache, publisher Publisher, opts ...Option) *Generator {
	g := &Generator{
		providers: append([]Provider(nil), providers...),
		cache:     cache,
		publisher: publisher,
		observer:  nopObserver{},
		logger:    logger.NewNop(),
		tracer:    otel.Tracer(TracerName),
		timeout:   DefaultProviderTimeout,
		lang:      i18n.Default,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Providers returns the names of the configured providers in order and
// whether each one is usable.
func (g *Generator) Providers() map[string]bool {
	out := make(map[string]bool, len(g.providers))
	for _, p := range g.providers {
		out[p.Name()] = p.Available()
	}
	return out
}

// Generate answers req.Prompt using the cache or the first provider that
// produces a non-empty reply.
func (g *Generator) Generate(ctx context.Context, req Request) Result {
	start := g.now()
	variant := req.Variant
	if !variant.Valid() {
		variant = VariantDefault
	}

	ctx, span := g.tracer.Start(ctx, SpanGenerate, trace.WithAttributes(
		attribute.String("ai.variant", string(variant)),
		attribute.Bool("ai.use_cache", req.UseCache),
	))
	defer span.End()

	key := CacheKey(variant, req.Prompt)
	if req.UseCache && g.cache != nil {
		text, hit := g.cache.Get(ctx, key)
		g.observer.CacheLookup(hit)
		if hit {
			span.SetAttributes(attribute.Bool("ai.cached", true))
			elapsed := g.now().Sub(start)
			g.observer.Generated(string(variant), true, elapsed)
			return Result{
				Success:      true,
				Response:     text,
				Cached:       true,
				ResponseTime: elapsed.Seconds(),
			}
		}
	}

	text, provider, ok := g.complete(ctx, SystemPrompt(variant), req.Prompt)
	elapsed := g.now().Sub(start)
	g.observer.Generated(string(variant), ok, elapsed)

	if !ok {
		span.SetStatus(codes.Error, ErrNoProvider)
		g.logger.Warn("all ai providers failed", "variant", variant)
		return Result{
			Response:     g.fallback(req.Lang),
			ResponseTime: elapsed.Seconds(),
			Error:        ErrNoProvider,
		}
	}

	span.SetAttributes(attribute.String("ai.provider", provider))
	if req.UseCache && g.cache != nil {
		g.cache.Set(ctx, key, text)
	}
	g.publish(ctx, req.Prompt, text, provider, elapsed)

	return Result{
		Success:      true,
		Response:     text,
		TokensUsed:   req.Cost,
		Provider:     provider,
		ResponseTime: elapsed.Seconds(),
	}
}

// complete walks the provider chain once.
func (g *Generator) complete(ctx context.Context, system, prompt string) (string, string, bool) {
	for _, p := range g.providers {
		if ctx.Err() != nil {
			return "", "", false
		}
		name := p.Name()
		if !p.Available() {
			g.observer.ProviderAttempt(name, OutcomeUnavailable, 0)
			continue
		}

		text, err := g.attempt(ctx, p, system, prompt)
		if err != nil {
			g.logger.Warn("ai provider failed", "provider", name, "error", err)
			continue
		}
		return text, name, true
	}
	return "", "", false
}

func (g *Generator) attempt(ctx context.Context, p Provider, system, prompt string) (text string, err error) {
	name := p.Name()
	ctx, span := g.tracer.Start(ctx, SpanProviderTry, trace.WithAttributes(
		attribute.String("ai.provider", name),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := g.now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
		outcome := OutcomeSuccess
		switch {
		case errors.Is(err, errEmptyReply):
			outcome = OutcomeEmpty
		case err != nil:
			outcome = OutcomeError
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		g.observer.ProviderAttempt(name, outcome, g.now().Sub(start))
	}()

	text, err = p.Complete(ctx, system, prompt)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errEmptyReply
	}
	return text, nil
}

func (g *Generator) publish(ctx context.Context, prompt, reply, provider string, elapsed time.Duration) {
	if g.publisher == nil {
		return
	}
	err := g.publisher.Emit(ctx, events.ChatResponse, events.Payload{
		"prompt":          truncateRunes(prompt, promptPreviewRunes),
		"response_length": utf8.RuneCountInString(reply),
		"provider":        provider,
		"response_time":   elapsed.Seconds(),
	})
	if err != nil {
		g.logger.Warn("publish chat response failed", "error", err)
	}
}

func (g *Generator) fallback(lang string) string {
	if lang == "" {
		lang = g.lang
	}
	return i18n.T(lang, "ai_unavailable")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
