package factory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/formulator/pkg/config"
	"github.com/ilkoid/formulator/pkg/llm"
	"github.com/ilkoid/formulator/pkg/llm/openai"
)

func TestNewLLMProvider_Decorators(t *testing.T) {
	def := config.ModelDef{Endpoint: "openai", Model: "gpt-4o", APIKey: "sk"}

	p, err := NewLLMProvider(def)
	require.NoError(t, err)
	_, ok := p.(*openai.Client)
	assert.True(t, ok, "no rate limit must return the bare client")

	def.RateLimit = 30
	p, err = NewLLMProvider(def)
	require.NoError(t, err)
	_, ok = p.(*llm.RateLimited)
	assert.True(t, ok)
}

func TestNewLLMProvider_ConfigErrors(t *testing.T) {
	_, err := NewLLMProvider(config.ModelDef{Endpoint: "bedrock", Model: "m"})
	assert.ErrorIs(t, err, llm.ErrConfiguration)

	_, err = NewLLMProvider(config.ModelDef{Endpoint: "generic", Model: "m"})
	assert.ErrorIs(t, err, llm.ErrConfiguration)
}

func TestNewLLMProvider_AppliesModelOverrides(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	temp := 0.3
	p, err := NewLLMProvider(config.ModelDef{
		Endpoint:    "openai",
		Model:       "gpt-4o",
		APIKey:      "sk",
		APIBase:     srv.URL,
		Temperature: &temp,
		MaxTokens:   256,
	})
	require.NoError(t, err)

	got, err := p.Complete(context.Background(), llm.Dialog{llm.UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Content)
	assert.InDelta(t, 0.3, body["temperature"], 1e-9)
	assert.EqualValues(t, 256, body["max_tokens"])
}

func TestNewFromSelection(t *testing.T) {
	sel, err := llm.NewModelSelection("ollama", "llama3", "", "", "")
	require.NoError(t, err)

	p, err := NewFromSelection(sel)
	require.NoError(t, err)
	c, ok := p.(*openai.Client)
	require.True(t, ok)
	assert.Equal(t, llm.EndpointOllama, c.Params().Endpoint)
}
