// Package prompts загружает промпты из нескольких источников с fallback.
//
// Источники пробуются по порядку: YAML файлы, SQLite, встроенные значения.
// Первый успешный Load возвращается.
//
// Rule 6: pkg/prompts не импортирует internal/ или бизнес-логику.
package prompts

import (
	"errors"
	"fmt"
)

// Идентификаторы промптов.
const (
	// TransformSystem — системный промпт агента преобразования данных
	TransformSystem = "transform_system"
)

// PromptFile — содержимое загруженного промпта.
//
// Используется всеми реализациями PromptSource интерфейса.
type PromptFile struct {
	// System — системный промпт
	System string `yaml:"system" json:"system"`

	// Template — шаблон промпта (опционально)
	Template string `yaml:"template" json:"template"`

	// Variables — переменные для подстановки
	Variables map[string]string `yaml:"variables" json:"variables"`
}

// ErrNotFound возвращается когда источник не содержит промпт.
var ErrNotFound = errors.New("prompt not found in source")

// PromptSource — интерфейс для загрузки промптов из различных источников.
type PromptSource interface {
	// Load загружает промпт по идентификатору.
	// Возвращает ошибку (обычно ErrNotFound), если источник не содержит промпт.
	Load(promptID string) (*PromptFile, error)
}

// SourceRegistry — реестр источников промптов с fallback chain.
//
// Fallback Chain: Источники пробуются по порядку добавления.
// Если все источники не нашли промпт, возвращается последняя ошибка.
type SourceRegistry struct {
	sources []PromptSource
	closers []func() error
}

// NewSourceRegistry создаёт новый реестр источников.
func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{
		sources: make([]PromptSource, 0),
	}
}

// AddSource добавляет источник в fallback chain.
func (r *SourceRegistry) AddSource(source PromptSource) {
	r.sources = append(r.sources, source)
	if c, ok := source.(interface{ Close() error }); ok {
		r.closers = append(r.closers, c.Close)
	}
}

// Load загружает промпт из первого доступного источника.
func (r *SourceRegistry) Load(promptID string) (*PromptFile, error) {
	var lastErr error

	for i, source := range r.sources {
		file, err := source.Load(promptID)
		if err == nil {
			return file, nil
		}
		lastErr = fmt.Errorf("source %d: %w", i, err)
	}

	if lastErr != nil {
		return nil, fmt.Errorf("all sources failed for '%s': %w", promptID, lastErr)
	}

	return nil, fmt.Errorf("no sources configured for prompt '%s': %w", promptID, ErrNotFound)
}

// LoadSystem возвращает непустой System промпта promptID.
func (r *SourceRegistry) LoadSystem(promptID string) (string, error) {
	file, err := r.Load(promptID)
	if err != nil {
		return "", err
	}
	if file.System == "" {
		return "", fmt.Errorf("%s prompt is empty", promptID)
	}
	return file.System, nil
}

// HasSources проверяет, есть ли хотя бы один источник.
func (r *SourceRegistry) HasSources() bool {
	return len(r.sources) > 0
}

// Close закрывает источники, которые держат ресурсы (SQLite).
func (r *SourceRegistry) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// DefaultSource — встроенные (hardcoded) промпты, последний элемент цепочки.
type DefaultSource struct {
	prompts map[string]*PromptFile
}

// NewDefaultSource создаёт источник со встроенными системными промптами.
func NewDefaultSource(systems map[string]string) *DefaultSource {
	s := &DefaultSource{prompts: make(map[string]*PromptFile, len(systems))}
	for id, system := range systems {
		s.prompts[id] = &PromptFile{System: system}
	}
	return s
}

// Load возвращает встроенный промпт или ErrNotFound.
func (s *DefaultSource) Load(promptID string) (*PromptFile, error) {
	file, ok := s.prompts[promptID]
	if !ok {
		return nil, fmt.Errorf("default prompt '%s': %w", promptID, ErrNotFound)
	}
	return file, nil
}
