// Package tui подключает Bubble Tea к событиям цикла исправления.
//
// Port & Adapter паттерн:
//   - pkg/events.* — Port (интерфейсы)
//   - pkg/tui.* — Adapter (прогресс в терминале)
//
// # Basic Usage
//
//	emitter := events.NewChanEmitter(16)
//	go orch.Run(ctx, req) // с Emitter: emitter, после — emitter.Close()
//	err := tui.RunProgress(ctx, os.Stderr, "derive", emitter.Subscribe(), render)
//
// Rule 6: только reusable код, без app-specific логики.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ilkoid/formulator/pkg/events"
)

// EventMsg конвертирует events.Event в Bubble Tea сообщение.
type EventMsg events.Event

// ReceiveEventCmd возвращает Bubble Tea Cmd для чтения одного события из Subscriber.
//
// Закрытый канал превращается в tea.QuitMsg: событий больше не будет.
func ReceiveEventCmd(sub events.Subscriber, converter func(events.Event) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub.Events()
		if !ok {
			return tea.QuitMsg{}
		}
		return converter(event)
	}
}

// WaitForEvent возвращает Cmd который ждёт следующего события.
//
// Используется в Update() для продолжения чтения событий:
//
//	case EventMsg:
//	    // ... обработка события
//	    return m, tui.WaitForEvent(sub, converter)
func WaitForEvent(sub events.Subscriber, converter func(events.Event) tea.Msg) tea.Cmd {
	return ReceiveEventCmd(sub, converter)
}

func toEventMsg(ev events.Event) tea.Msg {
	return EventMsg(ev)
}
