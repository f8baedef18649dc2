package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/formulator/pkg/llm"
	"github.com/ilkoid/formulator/pkg/llm/profile"
)

const okResponse = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "m",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "I can hear you."}, "finish_reason": "stop"}]
}`

// captured — то, что фейковый провайдер увидел на проводе.
type captured struct {
	Path   string
	Query  string
	Header http.Header
	Body   map[string]any
}

// fakeProvider поднимает httptest сервер, который запоминает запросы.
type fakeProvider struct {
	srv    *httptest.Server
	mu     sync.Mutex
	calls  []captured
	status int
	body   string
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	f := &fakeProvider{status: http.StatusOK, body: okResponse}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		f.mu.Lock()
		f.calls = append(f.calls, captured{
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   body,
		})
		status, resp := f.status, f.body
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resp)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeProvider) last(t *testing.T) captured {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls, "provider was not called")
	return f.calls[len(f.calls)-1]
}

func (f *fakeProvider) respond(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.body = status, body
}

func dialog() llm.Dialog {
	return llm.Dialog{
		llm.SystemMessage("You are a helpful assistant."),
		llm.UserMessage("Respond 'I can hear you.' if you can hear me."),
	}
}

func TestComplete_OpenAIDirect(t *testing.T) {
	f := newFakeProvider(t)
	c, err := NewClient(llm.ModelSelection{Endpoint: llm.EndpointOpenAI, Model: "gpt-4o", APIKey: "sk-test", APIBase: f.srv.URL})
	require.NoError(t, err)

	got, err := c.Complete(context.Background(), dialog())
	require.NoError(t, err)
	assert.Equal(t, "I can hear you.", got.Content)

	call := f.last(t)
	assert.Equal(t, "/chat/completions", call.Path)
	assert.Equal(t, "Bearer sk-test", call.Header.Get("Authorization"))
	assert.Equal(t, "gpt-4o", call.Body["model"])
	assert.InDelta(t, 0.7, call.Body["temperature"], 1e-6)
	assert.EqualValues(t, 1200, call.Body["max_tokens"])
	assert.NotContains(t, call.Body, "max_completion_tokens")
	assert.Equal(t, DirectTimeout, c.timeout)
}

func TestComplete_ReasoningModelsOmitSampling(t *testing.T) {
	for _, endpoint := range []llm.Endpoint{llm.EndpointOpenAI, llm.EndpointGeneric} {
		for _, model := range []string{"o1", "o3-mini"} {
			t.Run(string(endpoint)+"/"+model, func(t *testing.T) {
				f := newFakeProvider(t)
				c, err := NewClient(llm.ModelSelection{Endpoint: endpoint, Model: model, APIKey: "k", APIBase: f.srv.URL})
				require.NoError(t, err)

				_, err = c.Complete(context.Background(), dialog())
				require.NoError(t, err)

				body := f.last(t).Body
				assert.Equal(t, model, body["model"])
				assert.NotContains(t, body, "temperature")
				assert.NotContains(t, body, "max_tokens")
				assert.NotContains(t, body, "max_completion_tokens")
			})
		}
	}
}

func TestComplete_ZeroTemperatureStaysOnWire(t *testing.T) {
	f := newFakeProvider(t)
	c, err := NewClient(
		llm.ModelSelection{Endpoint: llm.EndpointOpenAI, Model: "gpt-4o", APIKey: "k", APIBase: f.srv.URL},
		WithGenerateOptions(llm.WithTemperature(0)),
	)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), dialog())
	require.NoError(t, err)

	body := f.last(t).Body
	require.Contains(t, body, "temperature")
	assert.InDelta(t, 0, body["temperature"], 1e-9)
}

func TestComplete_OllamaMergesSystem(t *testing.T) {
	f := newFakeProvider(t)
	c, err := NewClient(llm.ModelSelection{Endpoint: llm.EndpointOllama, Model: "llama3", APIBase: f.srv.URL})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), llm.Dialog{llm.SystemMessage("S"), llm.UserMessage("U")})
	require.NoError(t, err)

	call := f.last(t)
	assert.Equal(t, "/v1/chat/completions", call.Path)
	assert.Equal(t, "llama3", call.Body["model"])
	assert.EqualValues(t, 1200, call.Body["max_tokens"])
	assert.NotContains(t, call.Body, "max_completion_tokens")

	msgs, ok := call.Body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	msg := msgs[0].(map[string]any)
	assert.Equal(t, "user", msg["role"])
	assert.Equal(t, "S\n\nU", msg["content"])
	assert.Equal(t, UniversalTimeout, c.timeout)
}

func TestComplete_PrefixedEndpointsStripRoute(t *testing.T) {
	for _, endpoint := range []llm.Endpoint{llm.EndpointGemini, llm.EndpointAnthropic} {
		t.Run(string(endpoint), func(t *testing.T) {
			f := newFakeProvider(t)
			c, err := NewClient(llm.ModelSelection{Endpoint: endpoint, Model: string(endpoint) + "/some-model", APIKey: "k", APIBase: f.srv.URL})
			require.NoError(t, err)
			assert.Equal(t, string(endpoint)+"/some-model", c.Params().Model)

			_, err = c.Complete(context.Background(), dialog())
			require.NoError(t, err)

			body := f.last(t).Body
			assert.Equal(t, "some-model", body["model"])
			assert.EqualValues(t, 1200, body["max_tokens"])
			assert.NotContains(t, body, "max_completion_tokens")
			msgs := body["messages"].([]any)
			assert.Len(t, msgs, 2)
		})
	}
}

func TestComplete_AzureStaticKey(t *testing.T) {
	f := newFakeProvider(t)
	c, err := NewClient(llm.ModelSelection{Endpoint: llm.EndpointAzure, Model: "gpt-4o.mini", APIKey: "azure-key", APIBase: f.srv.URL})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), dialog())
	require.NoError(t, err)

	call := f.last(t)
	assert.Equal(t, "/openai/deployments/gpt-4o.mini/chat/completions", call.Path)
	assert.Equal(t, "api-version="+profile.AzureDefaultAPIVersion, call.Query)
	assert.Equal(t, "azure-key", call.Header.Get("api-key"))
	assert.Empty(t, call.Header.Get("Authorization"))
}

// fakeCredential — источник bearer токенов для тестов.
type fakeCredential struct {
	calls  atomic.Int32
	scopes []string
	err    error
}

func (f *fakeCredential) GetToken(_ context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	f.calls.Add(1)
	f.scopes = opts.Scopes
	if f.err != nil {
		return azcore.AccessToken{}, f.err
	}
	return azcore.AccessToken{Token: "entra-token", ExpiresOn: time.Now().Add(time.Hour)}, nil
}

func TestComplete_AzureBearerToken(t *testing.T) {
	f := newFakeProvider(t)
	cred := &fakeCredential{}
	c, err := NewClient(
		llm.ModelSelection{Endpoint: llm.EndpointAzure, Model: "gpt-4o", APIBase: f.srv.URL, APIVersion: "2024-10-21"},
		WithTokenCredential(cred),
	)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = c.Complete(context.Background(), dialog())
		require.NoError(t, err)
	}

	call := f.last(t)
	assert.Equal(t, "Bearer entra-token", call.Header.Get("Authorization"))
	assert.Empty(t, call.Header.Get("api-key"))
	assert.Equal(t, "api-version=2024-10-21", call.Query)
	assert.Equal(t, []string{profile.AzureTokenScope}, cred.scopes)
	assert.EqualValues(t, 1, cred.calls.Load(), "token must be cached between requests")
}

func TestComplete_AzureTokenFailureIsProviderError(t *testing.T) {
	f := newFakeProvider(t)
	cred := &fakeCredential{err: errors.New("DefaultAzureCredential: failed to acquire a token")}
	c, err := NewClient(
		llm.ModelSelection{Endpoint: llm.EndpointAzure, Model: "gpt-4o", APIBase: f.srv.URL},
		WithTokenCredential(cred),
	)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), dialog())
	var perr *llm.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Error(), "failed to acquire a token")
	assert.Equal(t, llm.EndpointAzure, perr.Endpoint)
}

func TestComplete_UpstreamErrorVerbatim(t *testing.T) {
	f := newFakeProvider(t)
	f.respond(http.StatusUnauthorized, `{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error", "code": "invalid_api_key"}}`)

	c, err := NewClient(llm.ModelSelection{Endpoint: llm.EndpointGeneric, Model: "m", APIKey: "bad", APIBase: f.srv.URL})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), dialog())
	require.Error(t, err)

	var perr *llm.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, llm.EndpointGeneric, perr.Endpoint)
	assert.Equal(t, "m", perr.Model)
	assert.Contains(t, perr.Error(), "Incorrect API key provided")
	assert.Equal(t, perr.Err.Error(), perr.Error())
	assert.NotErrorIs(t, err, llm.ErrConfiguration)
}

func TestComplete_NoChoices(t *testing.T) {
	f := newFakeProvider(t)
	f.respond(http.StatusOK, `{"id": "x", "object": "chat.completion", "choices": []}`)

	c, err := NewClient(llm.ModelSelection{Endpoint: llm.EndpointGeneric, Model: "m", APIBase: f.srv.URL})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), dialog())
	var perr *llm.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "no choices in response", perr.Error())
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestComplete_TimeoutOption(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	c, err := NewClient(
		llm.ModelSelection{Endpoint: llm.EndpointGeneric, Model: "m", APIBase: slow.URL},
		WithTimeout(50*time.Millisecond),
	)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), dialog())
	var perr *llm.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClient_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		sel  llm.ModelSelection
	}{
		{"empty model", llm.ModelSelection{Endpoint: llm.EndpointOpenAI, Model: ""}},
		{"azure without base", llm.ModelSelection{Endpoint: llm.EndpointAzure, Model: "gpt-4o", APIKey: "k"}},
		{"generic without base", llm.ModelSelection{Endpoint: llm.EndpointGeneric, Model: "m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.sel)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, llm.ErrConfiguration)
		})
	}
}

func TestNewClient_GenerateOptions(t *testing.T) {
	f := newFakeProvider(t)
	c, err := NewClient(
		llm.ModelSelection{Endpoint: llm.EndpointGeneric, Model: "m", APIBase: f.srv.URL},
		WithGenerateOptions(llm.WithTemperature(0.2), llm.WithMaxTokens(256)),
	)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), dialog())
	require.NoError(t, err)

	body := f.last(t).Body
	assert.InDelta(t, 0.2, body["temperature"], 1e-6)
	assert.EqualValues(t, 256, body["max_completion_tokens"])
	assert.NotContains(t, body, "max_tokens")
}

func TestBuildRequest_DoesNotMutateDialog(t *testing.T) {
	p, err := profile.Resolve(llm.ModelSelection{Endpoint: llm.EndpointOllama, Model: "llama3"})
	require.NoError(t, err)

	d := dialog()
	snapshot := d.Clone()
	req := buildRequest(p, d)

	assert.Equal(t, snapshot, d)
	assert.Equal(t, "llama3", req.Model)
	assert.Equal(t, 1200, req.MaxTokens)
	assert.Zero(t, req.MaxCompletionTokens)
}

func TestOllamaBase(t *testing.T) {
	assert.Equal(t, "http://localhost:11434/v1", ollamaBase("http://localhost:11434"))
	assert.Equal(t, "http://localhost:11434/v1", ollamaBase("http://localhost:11434/"))
	assert.Equal(t, "http://host/v1", ollamaBase("http://host/v1"))
}
