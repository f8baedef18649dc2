// Package events предоставляет интерфейсы для реализации Port & Adapter паттерна.
//
// Это Port (интерфейс) для подписки на события цикла исправления кода.
// Позволяет подключать любой вывод (CLI, лог, web) без изменения
// библиотечной логики в pkg/repair.
//
// # Basic Usage
//
//	// В библиотеке (pkg/repair/):
//	emitter := events.NewChanEmitter(16)
//	orch, _ := repair.New(repair.Config{Agent: a, Emitter: emitter})
//
//	// В CLI (cmd/formulator/):
//	for event := range emitter.Subscribe().Events() {
//	    switch data := event.Data.(type) {
//	    case events.RepairData:
//	        fmt.Println("retrying:", data.Error)
//	    }
//	}
//
// # Thread Safety
//
// Все реализации интерфейсов должны быть thread-safe.
//
// # Rule 11: Context Propagation
//
// Emitter.Emit() принимает context.Context для отмены операции.
package events

import (
	"context"
	"time"
)

// EventType представляет тип события оркестратора.
type EventType string

const (
	// EventAttemptStarted — оркестратор вызывает агента (Run или Followup).
	EventAttemptStarted EventType = "attempt_started"

	// EventCandidateEvaluated — агент вернул кандидатов, лидер оценён.
	EventCandidateEvaluated EventType = "candidate_evaluated"

	// EventRepairScheduled — лидер с ошибкой, будет followup с инструкцией исправления.
	EventRepairScheduled EventType = "repair_scheduled"

	// EventError — агент вернул Go ошибку, цикл прерван.
	EventError EventType = "error"

	// EventDone — цикл завершён, кандидаты возвращены вызывающему.
	EventDone EventType = "done"
)

// EventData — sealed interface для данных события.
//
// Только типы из пакета events могут реализовать этот интерфейс,
// что обеспечивает compile-time type safety.
type EventData interface {
	eventData()
}

// AttemptData содержит данные для EventAttemptStarted.
type AttemptData struct {
	// Attempt — номер попытки, 0 для первого вызова.
	Attempt int
	// Kind — "run" или "followup".
	Kind string
}

func (AttemptData) eventData() {}

// EvaluationData содержит данные для EventCandidateEvaluated.
type EvaluationData struct {
	Attempt    int
	Candidates int
	// LeaderStatus — статус первого кандидата, пусто если список пуст.
	LeaderStatus string
}

func (EvaluationData) eventData() {}

// RepairData содержит данные для EventRepairScheduled.
type RepairData struct {
	// Attempt — номер followup, который сейчас будет сделан.
	Attempt int
	// Error — диагностика лидера, подставляемая в инструкцию.
	Error string
}

func (RepairData) eventData() {}

// DoneData содержит данные для EventDone.
type DoneData struct {
	// Followups — сколько followup вызовов было сделано.
	Followups    int
	Candidates   int
	LeaderStatus string
}

func (DoneData) eventData() {}

// ErrorData содержит данные для EventError.
type ErrorData struct {
	Err error
}

func (ErrorData) eventData() {}

// Event представляет событие оркестратора.
//
// Data содержит типизированные данные события (EventData).
// Для каждого EventType существует соответствующий тип данных:
//   - EventAttemptStarted: AttemptData
//   - EventCandidateEvaluated: EvaluationData
//   - EventRepairScheduled: RepairData
//   - EventError: ErrorData
//   - EventDone: DoneData
type Event struct {
	Type EventType
	// RunID связывает события одного вызова оркестратора.
	RunID     string
	Data      EventData
	Timestamp time.Time
}

// Emitter — это Port для отправки событий.
//
// Emitter инвертирует зависимость: библиотека (pkg/repair) зависит
// от этого интерфейса, а не от конкретного вывода.
//
// Rule 11: все операции должны уважать context.Context.
type Emitter interface {
	// Emit отправляет событие.
	//
	// Если context отменён, операция должна прерваться.
	Emit(ctx context.Context, event Event)
}

// EmitterFunc позволяет использовать функцию как Emitter.
type EmitterFunc func(ctx context.Context, event Event)

// Emit реализует Emitter.
func (f EmitterFunc) Emit(ctx context.Context, event Event) {
	f(ctx, event)
}

// Subscriber позволяет читать события из канала.
//
// Rule 5: thread-safe операции.
type Subscriber interface {
	// Events возвращает read-only канал событий.
	//
	// Канал закрывается при вызове Close() у эмиттера.
	Events() <-chan Event

	// Close освобождает подписчика.
	Close()
}
