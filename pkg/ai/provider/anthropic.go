package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic calls the Messages API.
type Anthropic struct {
	model    string
	settings Settings
	client   *anthropic.Client
}

// NewAnthropic creates a provider. An empty apiKey leaves it unavailable.
func NewAnthropic(apiKey, model, baseURL string, s Settings) *Anthropic {
	p := &Anthropic{model: model, settings: s}
	if apiKey == "" {
		return p
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	p.client = &client
	return p
}

func (p *Anthropic) Name() string { return NameAnthropic }

func (p *Anthropic) Available() bool { return p.client != nil }

// Complete sends the prompt and joins the text blocks of the reply.
func (p *Anthropic) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if p.client == nil {
		return "", errors.New("anthropic: no api key")
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   int64(p.settings.MaxTokens),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt))},
		Temperature: anthropic.Float(p.settings.Temperature),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic: create message: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}
