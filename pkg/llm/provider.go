// Интерфейс Провайдера через который работает всё приложение.

package llm

import "context"

// Provider — контракт для любого AI-сервиса.
//
// Реализации нормализуют аутентификацию, форму сообщений и параметры
// конкретного бэкенда, поэтому агенты видят только Dialog на входе
// и Completion на выходе.
//
// Любая ошибка бэкенда возвращается как *ProviderError с текстом
// апстрима без переформатирования.
type Provider interface {
	Complete(ctx context.Context, dialog Dialog) (Completion, error)
}

// ProviderFunc позволяет использовать обычную функцию как Provider.
type ProviderFunc func(ctx context.Context, dialog Dialog) (Completion, error)

// Complete реализует Provider.
func (f ProviderFunc) Complete(ctx context.Context, dialog Dialog) (Completion, error) {
	return f(ctx, dialog)
}
