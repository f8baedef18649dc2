package utils

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupGracefulShutdown возвращает контекст, отменяемый по SIGINT/SIGTERM,
// и функцию очистки для defer.
//
// Использование:
//
//	ctx, shutdown := utils.SetupGracefulShutdown(context.Background())
//	defer shutdown()
//
// Очистка выполняет closers в обратном порядке (как defer), ошибки
// только логируются, последним закрывается лог-файл.
//
// Rule 11: отмена распространяется через context.Context до провайдеров
// и исполнителя кода.
func SetupGracefulShutdown(parent context.Context, closers ...func() error) (context.Context, func()) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-ctx.Done()
		if parent.Err() == nil {
			Info("Received signal, cancelling run")
		}
	}()

	return ctx, func() {
		stop()
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				Warn("Shutdown hook failed", "error", err)
			}
		}
		Close()
	}
}
