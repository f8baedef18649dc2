package tui

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ilkoid/formulator/pkg/events"
)

var spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))

// ProgressModel — Bubble Tea модель прогресса одного запуска.
//
// Показывает уже случившиеся события строками и спиннер с заголовком,
// пока не придёт EventDone или EventError.
type ProgressModel struct {
	title   string
	sub     events.Subscriber
	render  func(events.Event) string
	spinner spinner.Model
	lines   []string
	done    bool
}

// NewProgressModel создаёт модель. render форматирует событие в строку.
func NewProgressModel(title string, sub events.Subscriber, render func(events.Event) string) ProgressModel {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle))
	return ProgressModel{
		title:   title,
		sub:     sub,
		render:  render,
		spinner: sp,
	}
}

// Init запускает спиннер и чтение событий.
func (m ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, ReceiveEventCmd(m.sub, toEventMsg))
}

// Update обрабатывает события, тики спиннера и Ctrl+C.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case EventMsg:
		ev := events.Event(msg)
		if line := m.render(ev); line != "" {
			m.lines = append(m.lines, line)
		}
		if ev.Type == events.EventDone || ev.Type == events.EventError {
			m.done = true
			return m, tea.Quit
		}
		return m, WaitForEvent(m.sub, toEventMsg)

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	}
	return m, nil
}

// View рисует историю событий и строку статуса.
func (m ProgressModel) View() string {
	var sb strings.Builder
	for _, l := range m.lines {
		sb.WriteString(l)
		sb.WriteString("\n")
	}
	if !m.done {
		sb.WriteString(m.spinner.View())
		sb.WriteString(" ")
		sb.WriteString(m.title)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Done сообщает, что цикл завершился.
func (m ProgressModel) Done() bool {
	return m.done
}

// RunProgress показывает прогресс в out, пока не закончится поток событий.
//
// Ввод не читается: прерывание идёт через ctx (graceful shutdown в main).
// Rule 11: уважает context.Context.
func RunProgress(ctx context.Context, out io.Writer, title string, sub events.Subscriber, render func(events.Event) string) error {
	p := tea.NewProgram(
		NewProgressModel(title, sub, render),
		tea.WithOutput(out),
		tea.WithInput(nil),
		tea.WithContext(ctx),
		tea.WithoutSignalHandler(),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
