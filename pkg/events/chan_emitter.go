package events

import (
	"context"
	"sync"
)

// ChanEmitter — стандартная реализация Emitter через канал.
//
// Thread-safe.
// Используется CLI для вывода прогресса цикла исправления.
type ChanEmitter struct {
	mu     sync.RWMutex
	ch     chan Event
	closed bool
}

// NewChanEmitter создаёт новый ChanEmitter с буферизованным каналом.
//
// buffer определяет размер буфера канала.
// Если buffer = 0, канал будет небуферизованным (blocking).
func NewChanEmitter(buffer int) *ChanEmitter {
	return &ChanEmitter{
		ch: make(chan Event, buffer),
	}
}

// Emit отправляет событие в канал.
//
// Thread-safe.
// Rule 11: уважает context.Context.
// Если канал закрыт или context отменён, событие отбрасывается.
func (e *ChanEmitter) Emit(ctx context.Context, event Event) {
	// RLock держится на время отправки: Close не закроет канал под нами.
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	select {
	case e.ch <- event:
	case <-ctx.Done():
	}
}

// Subscribe возвращает Subscriber для чтения событий.
//
// Thread-safe.
// Можно вызвать несколько раз, все подписчики читают один канал.
func (e *ChanEmitter) Subscribe() Subscriber {
	return &chanSubscriber{ch: e.ch}
}

// Close закрывает канал и освобождает ресурсы.
//
// Thread-safe.
// После закрытия Emit больше не отправляет события.
// Emit держит RLock на время отправки, поэтому Close ждёт, пока
// заблокированная отправка не завершится: к моменту вызова кто-то
// должен читать Subscriber (или ctx отправителя должен быть отменён).
func (e *ChanEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.ch)
}

// chanSubscriber реализует Subscriber интерфейс.
type chanSubscriber struct {
	ch <-chan Event
}

// Events возвращает read-only канал событий.
func (s *chanSubscriber) Events() <-chan Event {
	return s.ch
}

// Close закрывает подписчика (no-op для shared channel).
//
// Реальный канал закрывается только через ChanEmitter.Close().
func (s *chanSubscriber) Close() {}

// Ensure ChanEmitter implements Emitter
var _ Emitter = (*ChanEmitter)(nil)

// Ensure chanSubscriber implements Subscriber
var _ Subscriber = (*chanSubscriber)(nil)
