package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited оборачивает Provider клиентским rate limiter'ом.
//
// Лимит задаётся в запросах в минуту (models.definitions[].rate_limit).
// Ожидание уважает ctx: отменённый контекст возвращает ошибку
// без обращения к провайдеру.
type RateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// NewRateLimited создаёт декоратор. perMinute <= 0 отключает ограничение
// и возвращает исходный провайдер.
func NewRateLimited(next Provider, perMinute, burst int) Provider {
	if perMinute <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst),
	}
}

// Complete ждёт токен лимитера и делегирует вызов.
func (r *RateLimited) Complete(ctx context.Context, dialog Dialog) (Completion, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Completion{}, fmt.Errorf("rate limiter wait: %w", err)
	}
	return r.next.Complete(ctx, dialog)
}

var _ Provider = (*RateLimited)(nil)
