// Package credentials читает настройки провайдеров из окружения.
//
// Для каждого endpoint используются переменные с префиксом имени
// провайдера в верхнем регистре:
//
//	OPENAI_ENABLED=true
//	OPENAI_API_KEY=sk-...
//	OPENAI_MODELS=gpt-4o,gpt-4o-mini
//	AZURE_API_BASE=https://my.openai.azure.com
//	AZURE_API_VERSION=2024-02-15-preview
//
// Discover превращает их в список llm.ModelSelection.
package credentials

import (
	"os"
	"strings"

	"github.com/ilkoid/formulator/pkg/llm"
	"github.com/ilkoid/formulator/pkg/utils"
)

// Source — источник значений по имени переменной.
type Source interface {
	Lookup(key string) (string, bool)
}

// EnvSource читает переменные окружения процесса.
type EnvSource struct{}

// Lookup реализует Source.
func (EnvSource) Lookup(key string) (string, bool) {
	return os.LookupEnv(key)
}

// MapSource — Source поверх map, для тестов и конфигов.
type MapSource map[string]string

// Lookup реализует Source.
func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// DiscoverEndpoints — провайдеры, которые проверяются при Discover.
//
// generic сюда не входит: у него нет своего префикса переменных.
var DiscoverEndpoints = []llm.Endpoint{
	llm.EndpointOpenAI,
	llm.EndpointAzure,
	llm.EndpointAnthropic,
	llm.EndpointGemini,
	llm.EndpointOllama,
}

// ProviderCredentials — настройки одного провайдера.
type ProviderCredentials struct {
	Endpoint   llm.Endpoint
	Enabled    bool
	APIKey     string
	APIBase    string
	APIVersion string
	Models     []string
}

// Usable сообщает, можно ли строить selections из этих настроек.
//
// Провайдер должен быть включён и иметь ключ или base URL.
func (c ProviderCredentials) Usable() bool {
	return c.Enabled && (c.APIKey != "" || c.APIBase != "")
}

// Load читает переменные одного провайдера.
func Load(src Source, endpoint llm.Endpoint) ProviderCredentials {
	prefix := strings.ToUpper(string(endpoint))
	get := func(name string) string {
		v, _ := src.Lookup(prefix + "_" + name)
		return strings.TrimSpace(v)
	}

	return ProviderCredentials{
		Endpoint:   endpoint,
		Enabled:    strings.EqualFold(get("ENABLED"), "true"),
		APIKey:     get("API_KEY"),
		APIBase:    get("API_BASE"),
		APIVersion: get("API_VERSION"),
		Models:     splitModels(get("MODELS")),
	}
}

// Discover возвращает модели всех включённых провайдеров.
//
// Порядок: провайдеры как в DiscoverEndpoints, модели как в переменной.
// Невалидные записи пропускаются с предупреждением в лог.
func Discover(src Source) []llm.ModelSelection {
	var out []llm.ModelSelection
	for _, ep := range DiscoverEndpoints {
		creds := Load(src, ep)
		if !creds.Usable() {
			continue
		}
		for _, model := range creds.Models {
			sel, err := llm.NewModelSelection(string(ep), model, creds.APIKey, creds.APIBase, creds.APIVersion)
			if err != nil {
				utils.Warn("credentials: skip model", "endpoint", ep, "model", model, "error", err)
				continue
			}
			out = append(out, sel)
		}
	}
	return out
}

func splitModels(raw string) []string {
	if raw == "" {
		return nil
	}
	var models []string
	for _, m := range strings.Split(raw, ",") {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	return models
}
