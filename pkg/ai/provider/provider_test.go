package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brilliox/brilliox/config"
)

func TestFromConfig_Order(t *testing.T) {
	cfg := config.AIConfig{
		Temperature: 0.7,
		MaxTokens:   2000,
		Groq:        config.ProviderConfig{APIKey: "gsk", Model: "llama"},
		Anthropic:   config.ProviderConfig{APIKey: "sk-ant", Model: "claude"},
	}

	chain := FromConfig(cfg)
	require.Len(t, chain, 4)

	names := make([]string, 0, len(chain))
	avail := make([]bool, 0, len(chain))
	for _, p := range chain {
		names = append(names, p.Name())
		avail = append(avail, p.Available())
	}
	assert.Equal(t, []string{NameOpenAI, NameGroq, NameGemini, NameAnthropic}, names)
	assert.Equal(t, []bool{false, true, false, true}, avail)
}

func TestUnavailableProvidersRefuse(t *testing.T) {
	_, err := NewOpenAICompatible(NameOpenAI, "", "gpt", "", Settings{}).Complete(context.Background(), "s", "u")
	assert.Error(t, err)
	_, err = NewAnthropic("", "claude", "", Settings{}).Complete(context.Background(), "s", "u")
	assert.Error(t, err)
}

func TestOpenAICompatible_Complete(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"hi there"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAICompatible(NameGroq, "key", "llama", srv.URL, Settings{Temperature: 0.5, MaxTokens: 100})
	reply, err := p.Complete(context.Background(), "system", "user")
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)

	assert.Equal(t, "llama", got["model"])
	assert.EqualValues(t, 100, got["max_tokens"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "user", msgs[1].(map[string]any)["content"])
}

func TestOpenAICompatible_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAICompatible(NameOpenAI, "key", "gpt", srv.URL, Settings{MaxTokens: 10}).Complete(context.Background(), "", "u")
	assert.Error(t, err)
}

func TestAnthropic_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude", body["model"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude","content":[{"type":"text","text":"hello "},{"type":"text","text":"world"}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":2}}`))
	}))
	defer srv.Close()

	p := NewAnthropic("sk-ant", "claude", srv.URL, Settings{Temperature: 0.7, MaxTokens: 50})
	reply, err := p.Complete(context.Background(), "sys", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello world", reply)
}
