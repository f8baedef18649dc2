// Package llm предоставляет ошибки уровня LLM клиента.
//
// Все ошибки следуют принципам из dev_manifest.md:
//   - Rule 7: Возвращаются вверх по стеку, никаких panic
//   - Поддержка errors.Is() и errors.As() для error wrapping
package llm

import "fmt"

// ErrConfiguration возвращается когда выбор модели невалиден
// (пустое имя модели, неизвестный endpoint, не хватает обязательных полей).
//
// Такие ошибки никогда не ретраятся.
var ErrConfiguration = fmt.Errorf("invalid model configuration")

// ConfigurationError — ошибка конфигурации с контекстом поля.
//
// Поддерживает errors.Is(err, ErrConfiguration).
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrConfiguration, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConfiguration, e.Field, e.Reason)
}

// Is проверяет что ошибка является ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ProviderError — любая ошибка апстрима: auth, сеть, rate limit, кривой запрос.
//
// Error() возвращает текст апстрима как есть: его показывают пользователю
// и подставляют в промпты, поэтому никаких префиксов.
// Endpoint и Model доступны для логирования.
type ProviderError struct {
	Endpoint Endpoint
	Model    string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Message
}

// Unwrap возвращает исходную ошибку SDK.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError оборачивает ошибку SDK, сохраняя её текст дословно.
func NewProviderError(endpoint Endpoint, model string, err error) *ProviderError {
	return &ProviderError{
		Endpoint: endpoint,
		Model:    model,
		Message:  err.Error(),
		Err:      err,
	}
}
