package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAICompatible talks to any chat-completions API that follows the
// OpenAI wire format.
type OpenAICompatible struct {
	name     string
	model    string
	settings Settings
	client   *openai.Client
}

// NewOpenAICompatible creates a provider. An empty baseURL targets OpenAI.
func NewOpenAICompatible(name, apiKey, model, baseURL string, s Settings) *OpenAICompatible {
	p := &OpenAICompatible{name: name, model: model, settings: s}
	if apiKey == "" {
		return p
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	p.client = openai.NewClientWithConfig(clientConfig)
	return p
}

func (p *OpenAICompatible) Name() string { return p.name }

func (p *OpenAICompatible) Available() bool { return p.client != nil }

// Complete sends one system and one user message.
func (p *OpenAICompatible) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("%s: no api key", p.name)
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})

	resp, err := p.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model:       p.model,
			Messages:    messages,
			MaxTokens:   p.settings.MaxTokens,
			Temperature: float32(p.settings.Temperature),
		},
	)
	if err != nil {
		return "", fmt.Errorf("%s: create chat completion: %w", p.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(p.name + ": no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
