package llm

import (
	"fmt"
	"strings"
)

// Endpoint — логическая идентичность LLM бэкенда.
type Endpoint string

const (
	EndpointOpenAI    Endpoint = "openai"
	EndpointAzure     Endpoint = "azure"
	EndpointAnthropic Endpoint = "anthropic"
	EndpointGemini    Endpoint = "gemini"
	EndpointOllama    Endpoint = "ollama"
	EndpointGeneric   Endpoint = "generic"
)

// Endpoints возвращает все поддерживаемые endpoint'ы в стабильном порядке.
func Endpoints() []Endpoint {
	return []Endpoint{
		EndpointOpenAI,
		EndpointAzure,
		EndpointAnthropic,
		EndpointGemini,
		EndpointOllama,
		EndpointGeneric,
	}
}

// ParseEndpoint разбирает строку из конфигурации ("OpenAI ", "ollama").
func ParseEndpoint(s string) (Endpoint, error) {
	e := Endpoint(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Endpoints() {
		if e == known {
			return e, nil
		}
	}
	return "", &ConfigurationError{Field: "endpoint", Reason: fmt.Sprintf("unknown endpoint %q", s)}
}

// ModelSelection — выбор модели, пришедший от вызывающего кода.
//
// Создаётся на каждый запрос и нигде не сохраняется.
// Пустые строки в APIKey/APIBase/APIVersion означают "не задано":
// конфигурация часто присылает "" вместо отсутствующего ключа.
type ModelSelection struct {
	Endpoint   Endpoint `json:"endpoint" yaml:"endpoint"`
	Model      string   `json:"model" yaml:"model"`
	APIKey     string   `json:"api_key,omitempty" yaml:"api_key"`
	APIBase    string   `json:"api_base,omitempty" yaml:"api_base"`
	APIVersion string   `json:"api_version,omitempty" yaml:"api_version"`
}

// NewModelSelection создаёт валидный ModelSelection.
//
// Все поля обрезаются от пробелов. Пустое имя модели или неизвестный
// endpoint возвращают ConfigurationError.
func NewModelSelection(endpoint, model, apiKey, apiBase, apiVersion string) (ModelSelection, error) {
	e, err := ParseEndpoint(endpoint)
	if err != nil {
		return ModelSelection{}, err
	}
	sel := ModelSelection{
		Endpoint:   e,
		Model:      model,
		APIKey:     apiKey,
		APIBase:    apiBase,
		APIVersion: apiVersion,
	}.Normalized()
	if err := sel.Validate(); err != nil {
		return ModelSelection{}, err
	}
	return sel, nil
}

// Normalized возвращает копию с обрезанными полями.
func (s ModelSelection) Normalized() ModelSelection {
	return ModelSelection{
		Endpoint:   Endpoint(strings.ToLower(strings.TrimSpace(string(s.Endpoint)))),
		Model:      strings.TrimSpace(s.Model),
		APIKey:     strings.TrimSpace(s.APIKey),
		APIBase:    strings.TrimSpace(s.APIBase),
		APIVersion: strings.TrimSpace(s.APIVersion),
	}
}

// Validate проверяет инварианты выбора модели.
func (s ModelSelection) Validate() error {
	if _, err := ParseEndpoint(string(s.Endpoint)); err != nil {
		return err
	}
	if strings.TrimSpace(s.Model) == "" {
		return &ConfigurationError{Field: "model", Reason: "must not be empty"}
	}
	return nil
}

// ID возвращает человекочитаемый идентификатор без секретов.
func (s ModelSelection) ID() string {
	return string(s.Endpoint) + "/" + strings.TrimSpace(s.Model)
}
