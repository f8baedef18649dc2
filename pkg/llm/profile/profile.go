// Package profile — реестр профилей LLM провайдеров.
//
// Каждый поддерживаемый бэкенд описан отдельным вариантом закрытого
// интерфейса Profile: как переписать имя модели, чем аутентифицироваться,
// как называется лимит токенов и что делать с системными сообщениями.
// Добавление провайдера — это новый тип в этом пакете и запись в registry,
// а не ещё одна ветка сравнения строк в клиенте.
//
// Resolve — чистая функция: не трогает вход, не ходит в сеть,
// на одинаковый ModelSelection возвращает одинаковые Params.
package profile

import (
	"fmt"
	"strings"

	"github.com/ilkoid/formulator/pkg/llm"
)

// Значения, зашитые в поведение бэкендов.
const (
	AzureDefaultAPIVersion = "2024-02-15-preview"
	AzureTokenScope        = "https://cognitiveservices.azure.com/.default"
	OllamaDefaultAPIBase   = "http://localhost:11434"
)

// reasoningModels отклоняют temperature и лимит токенов на уровне запроса.
var reasoningModels = map[string]struct{}{
	"o1":      {},
	"o3-mini": {},
}

// IsReasoningModel сообщает, что модель не принимает параметры сэмплирования.
// Ожидает имя без префикса маршрута (WireModel).
func IsReasoningModel(model string) bool {
	_, ok := reasoningModels[model]
	return ok
}

// Profile — закрытый вариант над идентичностью провайдера.
//
// Реализации есть только в этом пакете (метод sealed).
type Profile interface {
	// Endpoint возвращает endpoint, которому соответствует профиль.
	Endpoint() llm.Endpoint

	// ShapeMessages приводит диалог к форме, которую принимает бэкенд.
	// Вход не изменяется.
	ShapeMessages(d llm.Dialog) llm.Dialog

	normalize(sel llm.ModelSelection, gen llm.GenerateOptions) (Params, error)
	sealed()
}

// registry — статическое знание о всех бэкендах.
var registry = map[llm.Endpoint]Profile{
	llm.EndpointOpenAI:    openaiProfile{},
	llm.EndpointAzure:     azureProfile{},
	llm.EndpointAnthropic: prefixedProfile{endpoint: llm.EndpointAnthropic},
	llm.EndpointGemini:    prefixedProfile{endpoint: llm.EndpointGemini},
	llm.EndpointOllama:    ollamaProfile{},
	llm.EndpointGeneric:   genericProfile{},
}

// For возвращает профиль endpoint'а.
func For(endpoint llm.Endpoint) (Profile, error) {
	p, ok := registry[endpoint]
	if !ok {
		return nil, &llm.ConfigurationError{Field: "endpoint", Reason: fmt.Sprintf("no profile for endpoint %q", endpoint)}
	}
	return p, nil
}

// All возвращает профили в порядке llm.Endpoints().
func All() []Profile {
	out := make([]Profile, 0, len(registry))
	for _, e := range llm.Endpoints() {
		out = append(out, registry[e])
	}
	return out
}

// Resolve превращает ModelSelection в EffectiveRequestParams.
//
// Пустые необязательные поля эквивалентны отсутствующим.
// Ошибки — только ConfigurationError.
func Resolve(sel llm.ModelSelection, opts ...llm.GenerateOption) (Params, error) {
	sel = sel.Normalized()
	if err := sel.Validate(); err != nil {
		return Params{}, err
	}
	p, err := For(sel.Endpoint)
	if err != nil {
		return Params{}, err
	}
	return p.normalize(sel, llm.DefaultGenerateOptions(opts...))
}

// --- общие шаги нормализации ---

// baseParams заполняет то, что одинаково для всех провайдеров.
// model — разрешённое имя, wire — имя для API.
func baseParams(sel llm.ModelSelection, gen llm.GenerateOptions, model, wire string) Params {
	p := Params{
		Endpoint:   sel.Endpoint,
		Model:      model,
		WireModel:  wire,
		APIBase:    sel.APIBase,
		APIVersion: sel.APIVersion,
		Dispatch:   DispatchUniversal,
	}
	if sel.APIKey != "" {
		p.Auth = Auth{Kind: AuthStaticKey, Key: sel.APIKey}
	}
	if !IsReasoningModel(wire) {
		t := gen.Temperature
		p.temperature = &t
		p.tokenLimits = []TokenLimit{{Field: ParamMaxCompletionTokens, Value: gen.MaxTokens}}
	}
	return p
}

// withRoutePrefix добавляет "<endpoint>/" к имени модели, если его ещё нет.
func withRoutePrefix(endpoint llm.Endpoint, model string) string {
	prefix := string(endpoint) + "/"
	if strings.HasPrefix(model, prefix) {
		return model
	}
	return prefix + model
}

// withoutRoutePrefix — обратная операция для имени, уходящего в API.
func withoutRoutePrefix(endpoint llm.Endpoint, model string) string {
	return strings.TrimPrefix(model, string(endpoint)+"/")
}

func supportedSet(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

// --- варианты ---

// openaiProfile — прямой вызов OpenAI SDK, лимит под именем max_tokens.
type openaiProfile struct{}

func (openaiProfile) Endpoint() llm.Endpoint                { return llm.EndpointOpenAI }
func (openaiProfile) ShapeMessages(d llm.Dialog) llm.Dialog { return d.Clone() }
func (openaiProfile) sealed()                               {}

func (openaiProfile) normalize(sel llm.ModelSelection, gen llm.GenerateOptions) (Params, error) {
	p := baseParams(sel, gen, sel.Model, sel.Model)
	p.Dispatch = DispatchDirect
	for i := range p.tokenLimits {
		p.tokenLimits[i].Field = ParamMaxTokens
	}
	return p, nil
}

// prefixedProfile — gemini и anthropic: префикс маршрута и статический ключ.
type prefixedProfile struct {
	endpoint llm.Endpoint
}

func (p prefixedProfile) Endpoint() llm.Endpoint              { return p.endpoint }
func (prefixedProfile) ShapeMessages(d llm.Dialog) llm.Dialog { return d.Clone() }
func (prefixedProfile) sealed()                               {}

func (p prefixedProfile) normalize(sel llm.ModelSelection, gen llm.GenerateOptions) (Params, error) {
	model := withRoutePrefix(p.endpoint, sel.Model)
	params := baseParams(sel, gen, model, withoutRoutePrefix(p.endpoint, model))
	params.DropUnknown = true
	params.supported = supportedSet(ParamTemperature, ParamMaxTokens)
	return params, nil
}

// azureProfile — ключ или bearer токен Entra ID, фиксированная версия API по умолчанию.
type azureProfile struct{}

func (azureProfile) Endpoint() llm.Endpoint                { return llm.EndpointAzure }
func (azureProfile) ShapeMessages(d llm.Dialog) llm.Dialog { return d.Clone() }
func (azureProfile) sealed()                               {}

func (azureProfile) normalize(sel llm.ModelSelection, gen llm.GenerateOptions) (Params, error) {
	if sel.APIBase == "" {
		return Params{}, &llm.ConfigurationError{Field: "api_base", Reason: "azure endpoint requires api_base"}
	}
	p := baseParams(sel, gen, sel.Model, sel.Model)
	if p.APIVersion == "" {
		p.APIVersion = AzureDefaultAPIVersion
	}
	if p.Auth.Kind != AuthStaticKey {
		p.Auth = Auth{Kind: AuthBearerToken, Scope: AzureTokenScope}
	}
	p.DropUnknown = true
	p.supported = supportedSet(ParamTemperature, ParamMaxTokens)
	return p, nil
}

// ollamaProfile — локальный бэкенд без ключа, не понимает system роль.
type ollamaProfile struct{}

func (ollamaProfile) Endpoint() llm.Endpoint { return llm.EndpointOllama }
func (ollamaProfile) sealed()                {}

func (ollamaProfile) ShapeMessages(d llm.Dialog) llm.Dialog {
	return MergeSystemIntoFirstUser(d)
}

func (ollamaProfile) normalize(sel llm.ModelSelection, gen llm.GenerateOptions) (Params, error) {
	model := withRoutePrefix(llm.EndpointOllama, sel.Model)
	p := baseParams(sel, gen, model, withoutRoutePrefix(llm.EndpointOllama, model))
	if p.APIBase == "" {
		p.APIBase = OllamaDefaultAPIBase
	}
	// Лимит дублируется под именем, которое понимает ollama.
	if v, ok := p.TokenLimit(ParamMaxCompletionTokens); ok {
		p.tokenLimits = append(p.tokenLimits, TokenLimit{Field: ParamMaxTokens, Value: v})
	}
	p.MergeSystem = true
	p.DropUnknown = true
	p.supported = supportedSet(ParamTemperature, ParamMaxTokens)
	return p, nil
}

// genericProfile — любой OpenAI-совместимый сервер по api_base.
type genericProfile struct{}

func (genericProfile) Endpoint() llm.Endpoint                { return llm.EndpointGeneric }
func (genericProfile) ShapeMessages(d llm.Dialog) llm.Dialog { return d.Clone() }
func (genericProfile) sealed()                               {}

func (genericProfile) normalize(sel llm.ModelSelection, gen llm.GenerateOptions) (Params, error) {
	p := baseParams(sel, gen, sel.Model, sel.Model)
	p.DropUnknown = true
	p.supported = supportedSet(ParamTemperature, ParamMaxCompletionTokens, ParamMaxTokens)
	return p, nil
}
