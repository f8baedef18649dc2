// Package openai реализует Completion Client поверх go-openai.
//
// Один клиент на один ModelSelection: профиль провайдера разрешается
// в NewClient один раз, дальше Complete только читает готовые Params.
//
// openai ходит напрямую в SDK, остальные бэкенды — через их
// OpenAI-совместимые поверхности (универсальный слой), при этом
// параметры, которые бэкенд не принимает, отбрасываются профилем.
//
// Соблюдает правило 4 манифеста: наружу отдаётся только llm.Provider.
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	openai "github.com/sashabaranov/go-openai"

	"github.com/ilkoid/formulator/pkg/llm"
	"github.com/ilkoid/formulator/pkg/llm/profile"
	"github.com/ilkoid/formulator/pkg/utils"
)

// Таймауты запроса по умолчанию.
const (
	DirectTimeout    = 120 * time.Second
	UniversalTimeout = 600 * time.Second
)

// OpenAI-совместимые поверхности облачных провайдеров.
const (
	GeminiAPIBase    = "https://generativelanguage.googleapis.com/v1beta/openai"
	AnthropicAPIBase = "https://api.anthropic.com/v1"
)

// ErrNoChoices — апстрим ответил без единого варианта.
var ErrNoChoices = errors.New("no choices in response")

// Option настраивает Client.
type Option func(*options)

type options struct {
	httpClient *http.Client
	timeout    time.Duration
	gen        []llm.GenerateOption
	credential azcore.TokenCredential
}

// WithHTTPClient задаёт HTTP клиент (прокси, тестовый сервер).
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout переопределяет таймаут одного запроса.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithGenerateOptions переопределяет параметры сэмплирования по умолчанию.
func WithGenerateOptions(opts ...llm.GenerateOption) Option {
	return func(o *options) { o.gen = append(o.gen, opts...) }
}

// WithTokenCredential задаёт источник bearer токенов для azure
// вместо DefaultAzureCredential.
func WithTokenCredential(cred azcore.TokenCredential) Option {
	return func(o *options) { o.credential = cred }
}

// Client реализует llm.Provider для всех поддерживаемых endpoint'ов.
//
// Безопасен для конкурентного использования: Params неизменяемы,
// go-openai клиент потокобезопасен.
type Client struct {
	api     *openai.Client
	profile profile.Profile
	params  profile.Params
	timeout time.Duration
}

// NewClient разрешает профиль и собирает go-openai клиент.
//
// Ошибки конфигурации (пустая модель, azure без api_base, generic без api_base)
// возвращаются как *llm.ConfigurationError.
func NewClient(sel llm.ModelSelection, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	params, err := profile.Resolve(sel, o.gen...)
	if err != nil {
		return nil, err
	}
	prof, err := profile.For(params.Endpoint)
	if err != nil {
		return nil, err
	}

	cfg, err := clientConfig(params)
	if err != nil {
		return nil, err
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if params.Auth.Kind == profile.AuthBearerToken {
		cred := o.credential
		if cred == nil {
			cred, err = azidentity.NewDefaultAzureCredential(nil)
			if err != nil {
				return nil, fmt.Errorf("azure default credential: %w", err)
			}
		}
		httpClient = withBearer(httpClient, cred, params.Auth.Scope)
	}
	cfg.HTTPClient = httpClient

	timeout := o.timeout
	if timeout == 0 {
		timeout = UniversalTimeout
		if params.Dispatch == profile.DispatchDirect {
			timeout = DirectTimeout
		}
	}

	utils.Debug("LLM client created",
		"endpoint", params.Endpoint,
		"model", params.Model,
		"dispatch", params.Dispatch.String(),
		"auth", params.Auth.Kind.String(),
		"timeout", timeout.String())

	return &Client{
		api:     openai.NewClientWithConfig(cfg),
		profile: prof,
		params:  params,
		timeout: timeout,
	}, nil
}

// Params возвращает разрешённые параметры клиента.
func (c *Client) Params() profile.Params {
	return c.params
}

// Complete отправляет диалог модели и возвращает текст первого варианта.
//
// Любая ошибка апстрима — *llm.ProviderError с текстом SDK без изменений.
// Правило 7: ошибки возвращаются, никаких panic.
func (c *Client) Complete(ctx context.Context, dialog llm.Dialog) (llm.Completion, error) {
	startTime := time.Now()

	shaped := c.profile.ShapeMessages(dialog)
	req := buildRequest(c.params, shaped)

	utils.Debug("LLM request started",
		"endpoint", c.params.Endpoint,
		"model", c.params.Model,
		"messages_count", len(req.Messages),
		"params", strings.Join(c.params.SamplingParams(), ","))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		utils.Error("LLM API request failed",
			"error", err,
			"endpoint", c.params.Endpoint,
			"model", c.params.Model,
			"duration_ms", time.Since(startTime).Milliseconds())
		return llm.Completion{}, llm.NewProviderError(c.params.Endpoint, c.params.Model, err)
	}

	if len(resp.Choices) == 0 {
		return llm.Completion{}, llm.NewProviderError(c.params.Endpoint, c.params.Model, ErrNoChoices)
	}

	content := resp.Choices[0].Message.Content

	utils.Info("LLM response received",
		"endpoint", c.params.Endpoint,
		"model", c.params.Model,
		"content_length", len(content),
		"duration_ms", time.Since(startTime).Milliseconds())

	return llm.Completion{Content: content}, nil
}

// buildRequest собирает запрос SDK из Params и уже сформированного диалога.
//
// Поля, которые профиль не разрешил, остаются нулевыми и не попадают
// в JSON (omitempty у go-openai). Явная температура 0 отправляется как
// math.SmallestNonzeroFloat32.
func buildRequest(p profile.Params, dialog llm.Dialog) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, len(dialog))
	for i, m := range dialog {
		msgs[i] = openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
	}

	req := openai.ChatCompletionRequest{
		Model:    p.WireModel,
		Messages: msgs,
	}
	if t, ok := p.Temperature(); ok && p.Supports(profile.ParamTemperature) {
		req.Temperature = float32(t)
		if t == 0 {
			// omitempty съел бы явный 0, провайдер подставил бы свой default
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}
	for _, tl := range p.RequestTokenLimits() {
		switch tl.Field {
		case profile.ParamMaxTokens:
			req.MaxTokens = tl.Value
		case profile.ParamMaxCompletionTokens:
			req.MaxCompletionTokens = tl.Value
		}
	}
	return req
}

// clientConfig выбирает поверхность API и схему аутентификации для endpoint'а.
func clientConfig(p profile.Params) (openai.ClientConfig, error) {
	switch p.Endpoint {
	case llm.EndpointOpenAI:
		cfg := openai.DefaultConfig(p.Auth.Key)
		if p.APIBase != "" {
			cfg.BaseURL = p.APIBase
		}
		return cfg, nil

	case llm.EndpointGemini:
		cfg := openai.DefaultConfig(p.Auth.Key)
		cfg.BaseURL = firstNonEmpty(p.APIBase, GeminiAPIBase)
		return cfg, nil

	case llm.EndpointAnthropic:
		cfg := openai.DefaultConfig(p.Auth.Key)
		cfg.BaseURL = firstNonEmpty(p.APIBase, AnthropicAPIBase)
		return cfg, nil

	case llm.EndpointAzure:
		cfg := openai.DefaultAzureConfig(p.Auth.Key, p.APIBase)
		cfg.APIVersion = p.APIVersion
		// имя модели в azure — это имя deployment'а, без переписывания
		cfg.AzureModelMapperFunc = func(model string) string { return model }
		if p.Auth.Kind == profile.AuthBearerToken {
			cfg.APIType = openai.APITypeAzureAD
		}
		return cfg, nil

	case llm.EndpointOllama:
		cfg := openai.DefaultConfig(p.Auth.Key)
		cfg.BaseURL = ollamaBase(p.APIBase)
		return cfg, nil

	case llm.EndpointGeneric:
		if p.APIBase == "" {
			return openai.ClientConfig{}, &llm.ConfigurationError{Field: "api_base", Reason: "generic endpoint requires api_base"}
		}
		cfg := openai.DefaultConfig(p.Auth.Key)
		cfg.BaseURL = p.APIBase
		return cfg, nil
	}
	return openai.ClientConfig{}, &llm.ConfigurationError{Field: "endpoint", Reason: fmt.Sprintf("unsupported endpoint %q", p.Endpoint)}
}

// ollamaBase — OpenAI-совместимая поверхность ollama живёт под /v1.
func ollamaBase(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ llm.Provider = (*Client)(nil)
