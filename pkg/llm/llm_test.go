package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in      string
		want    Endpoint
		wantErr bool
	}{
		{"openai", EndpointOpenAI, false},
		{" OpenAI ", EndpointOpenAI, false},
		{"AZURE", EndpointAzure, false},
		{"ollama", EndpointOllama, false},
		{"generic", EndpointGeneric, false},
		{"bedrock", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEndpoint(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewModelSelection(t *testing.T) {
	sel, err := NewModelSelection(" Gemini ", " gemini-1.5-pro ", " key ", "", "  ")
	require.NoError(t, err)
	assert.Equal(t, ModelSelection{Endpoint: EndpointGemini, Model: "gemini-1.5-pro", APIKey: "key"}, sel)
	assert.Equal(t, "gemini/gemini-1.5-pro", sel.ID())

	_, err = NewModelSelection("openai", "   ", "", "", "")
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "model", cfgErr.Field)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestDialog_AppendDoesNotMutate(t *testing.T) {
	// свободная ёмкость не должна протекать между ветками
	base := make(Dialog, 2, 4)
	copy(base, Dialog{SystemMessage("s"), UserMessage("u")})

	a := base.Append(AssistantMessage("a"))
	b := base.Append(UserMessage("b"))

	assert.Len(t, base, 2)
	assert.Equal(t, AssistantMessage("a"), a[2])
	assert.Equal(t, UserMessage("b"), b[2])
	assert.Equal(t, 1, a.Count(RoleAssistant))
	assert.Equal(t, 0, b.Count(RoleAssistant))
}

func TestDialog_Clone(t *testing.T) {
	assert.Nil(t, Dialog(nil).Clone())

	d := Dialog{UserMessage("x")}
	c := d.Clone()
	c[0].Content = "y"
	assert.Equal(t, "x", d[0].Content)
}

func TestProviderError(t *testing.T) {
	sdkErr := errors.New("error, status code: 429, message: Rate limit reached")
	err := NewProviderError(EndpointOpenAI, "gpt-4o", sdkErr)

	assert.Equal(t, sdkErr.Error(), err.Error())
	assert.ErrorIs(t, err, sdkErr)
	assert.Equal(t, EndpointOpenAI, err.Endpoint)
}

func TestDefaultGenerateOptions(t *testing.T) {
	o := DefaultGenerateOptions()
	assert.Equal(t, GenerateOptions{Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens}, o)

	o = DefaultGenerateOptions(WithTemperature(0), WithMaxTokens(-5), nil)
	assert.Zero(t, o.Temperature)
	assert.Equal(t, DefaultMaxTokens, o.MaxTokens)
}

func TestNewRateLimited_Disabled(t *testing.T) {
	p := ProviderFunc(func(ctx context.Context, d Dialog) (Completion, error) {
		return Completion{Content: "ok"}, nil
	})
	got := NewRateLimited(p, 0, 0)
	_, isLimited := got.(*RateLimited)
	assert.False(t, isLimited)
}

func TestRateLimited_Complete(t *testing.T) {
	var calls atomic.Int32
	p := ProviderFunc(func(ctx context.Context, d Dialog) (Completion, error) {
		calls.Add(1)
		return Completion{Content: "ok"}, nil
	})

	// 60 в минуту = 1 в секунду, burst 1: второй вызов должен ждать
	limited := NewRateLimited(p, 60, 1)

	got, err := limited.Complete(context.Background(), Dialog{UserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Content)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = limited.Complete(ctx, Dialog{UserMessage("hi")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter wait")
	assert.EqualValues(t, 1, calls.Load())
}
