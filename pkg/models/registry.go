// Package models предоставляет централизованный реестр LLM провайдеров.
//
// Реестр позволяет зарегистрировать все модели из config.yaml и из
// переменных окружения при старте и выбирать модель по алиасу.
//
// Rule 3: Registry pattern (как prompts.SourceRegistry)
// Rule 5: Thread-safe via sync.RWMutex
// Rule 6: Reusable library package, no imports from internal/
package models

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ilkoid/formulator/pkg/config"
	"github.com/ilkoid/formulator/pkg/credentials"
	"github.com/ilkoid/formulator/pkg/factory"
	"github.com/ilkoid/formulator/pkg/llm"
	"github.com/ilkoid/formulator/pkg/utils"
)

// Registry — потокобезопасное хранилище LLM провайдеров.
//
// Rule 5: Thread-safe через sync.RWMutex.
// Rule 3: Registry pattern.
type Registry struct {
	mu     sync.RWMutex
	models map[string]ModelEntry
}

// ModelEntry — кешированный провайдер с конфигурацией.
type ModelEntry struct {
	Provider llm.Provider
	Config   config.ModelDef
}

// NewRegistry создаёт новый пустой реестр.
//
// Rule 5: Инициализирован мьютекс, карта создана.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]ModelEntry),
	}
}

// Register добавляет модель в реестр.
//
// Thread-safe. Возвращает ошибку если модель с таким именем уже зарегистрирована.
//
// Rule 7: Возвращает ошибку вместо panic.
func (r *Registry) Register(name string, modelDef config.ModelDef, provider llm.Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[name]; exists {
		return fmt.Errorf("model '%s' already registered", name)
	}

	r.models[name] = ModelEntry{
		Provider: provider,
		Config:   modelDef,
	}
	return nil
}

// Get извлекает провайдер по имени модели.
//
// Thread-safe. Возвращает ошибку если модель не найдена.
func (r *Registry) Get(name string) (llm.Provider, config.ModelDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.models[name]
	if !ok {
		return nil, config.ModelDef{}, fmt.Errorf("model '%s' not found in registry", name)
	}
	return entry.Provider, entry.Config, nil
}

// GetWithFallback извлекает провайдер с fallback на дефолтную модель.
//
// Thread-safe. Приоритет:
// 1. Запрошенная модель (requested)
// 2. Дефолтная модель (defaultModel)
//
// Возвращает (provider, modelDef, actualModelName, error).
func (r *Registry) GetWithFallback(requested, defaultModel string) (llm.Provider, config.ModelDef, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// 1. Пытаемся получить запрошенную модель
	if entry, ok := r.models[requested]; ok {
		return entry.Provider, entry.Config, requested, nil
	}

	// 2. Fallback на дефолтную модель
	if entry, ok := r.models[defaultModel]; ok {
		return entry.Provider, entry.Config, defaultModel, nil
	}

	// 3. Ни одна не найдена
	return nil, config.ModelDef{}, "", fmt.Errorf("neither requested model '%s' nor default '%s' found in registry", requested, defaultModel)
}

// ListNames возвращает отсортированный список зарегистрированных имён моделей.
//
// Thread-safe. Полезно для логирования и команды models.
func (r *Registry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewRegistryFromConfig создаёт и заполняет реестр из конфигурации.
//
// Сначала регистрируются cfg.Models.Definitions под своими алиасами.
// Если включён credentials.from_env, добавляются модели из src
// (credentials.Discover) под алиасом "endpoint/model"; алиасы из
// конфига имеют приоритет.
//
// Rule 4: Работает через llm.Provider интерфейс.
// Rule 7: Возвращает ошибку вместо panic.
func NewRegistryFromConfig(cfg *config.AppConfig, src credentials.Source) (*Registry, error) {
	registry := NewRegistry()

	for name, modelDef := range cfg.Models.Definitions {
		provider, err := factory.NewLLMProvider(modelDef)
		if err != nil {
			return nil, fmt.Errorf("failed to create provider for model '%s': %w", name, err)
		}

		if err := registry.Register(name, modelDef, provider); err != nil {
			return nil, fmt.Errorf("failed to register model '%s': %w", name, err)
		}
	}

	if !cfg.Credentials.FromEnv || src == nil {
		return registry, nil
	}

	for _, sel := range credentials.Discover(src) {
		name := sel.ID()
		if registry.Has(name) {
			continue
		}
		provider, err := factory.NewFromSelection(sel)
		if err != nil {
			// Одна сломанная переменная окружения не мешает остальным моделям
			utils.Warn("models: skip discovered model", "model", name, "error", err)
			continue
		}
		def := config.ModelDef{
			Endpoint:   string(sel.Endpoint),
			Model:      sel.Model,
			APIKey:     sel.APIKey,
			APIBase:    sel.APIBase,
			APIVersion: sel.APIVersion,
		}
		if err := registry.Register(name, def, provider); err != nil {
			return nil, fmt.Errorf("failed to register model '%s': %w", name, err)
		}
	}

	return registry, nil
}

// Has сообщает, зарегистрирована ли модель.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.models[name]
	return ok
}
