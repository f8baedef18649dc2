package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wrap"

	"github.com/ilkoid/formulator/pkg/agent"
	"github.com/ilkoid/formulator/pkg/events"
	"github.com/ilkoid/formulator/pkg/models"
)

// maxDiagnosticLines — сколько строк диагностики показывать в выводе.
const maxDiagnosticLines = 20

var (
	primaryColor = lipgloss.Color("62") // Фиолетовый
	grayColor    = lipgloss.Color("240")

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1).
			Bold(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#04B575")). // Зеленый
		Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().Foreground(grayColor)
)

func statusText(s agent.Status) string {
	if s == agent.StatusOK {
		return okStyle.Render(string(s))
	}
	return errorStyle.Render(string(s))
}

// RenderCandidates форматирует кандидатов для терминала.
func RenderCandidates(model string, cands []agent.Candidate, width int) string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("model: %s", model)))
	sb.WriteString("\n")

	if len(cands) == 0 {
		sb.WriteString(dimStyle.Render("no candidates"))
		sb.WriteString("\n")
		return sb.String()
	}

	for i, c := range cands {
		fmt.Fprintf(&sb, "\n#%d %s", i, statusText(c.Status))
		if c.Rows != nil {
			sb.WriteString(dimStyle.Render(fmt.Sprintf("  (%d rows)", len(c.Rows))))
		}
		sb.WriteString("\n")

		content := c.Content
		if !c.OK() {
			content = tailLines(content, maxDiagnosticLines)
		}
		sb.WriteString(wrap.String(content, width))
		sb.WriteString("\n")
	}
	return sb.String()
}

// tailLines оставляет последние n строк: у traceback'а суть в конце.
func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return "...\n" + strings.Join(lines[len(lines)-n:], "\n")
}

// RenderModels форматирует результаты проверки моделей таблицей.
func RenderModels(results []models.ProbeResult, width int) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("MODEL", "STATUS", "DETAIL")

	for _, r := range results {
		status := okStyle.Render("available")
		detail := ""
		switch {
		case r.Err != nil:
			status = errorStyle.Render("error")
			detail = truncate.StringWithTail(firstLine(r.Err.Error()), uint(max(width/2, 10)), "…")
		case !r.Available:
			status = errorStyle.Render("unavailable")
			detail = "unexpected reply"
		}
		t.Row(r.Name, status, detail)
	}
	return t.Render()
}

// RenderEvent форматирует событие цикла исправления в одну строку прогресса.
func RenderEvent(ev events.Event, width int) string {
	var line string
	switch data := ev.Data.(type) {
	case events.AttemptData:
		line = fmt.Sprintf("→ attempt %d (%s)", data.Attempt, data.Kind)
	case events.EvaluationData:
		line = fmt.Sprintf("  %d candidate(s), leader: %s", data.Candidates, orNone(data.LeaderStatus))
	case events.RepairData:
		line = fmt.Sprintf("↻ repair %d: %s", data.Attempt, firstLine(lastLine(data.Error)))
	case events.DoneData:
		line = fmt.Sprintf("✓ done after %d repair(s), leader: %s", data.Followups, orNone(data.LeaderStatus))
	case events.ErrorData:
		line = errorStyle.Render(fmt.Sprintf("✗ %v", data.Err))
		return line
	default:
		line = string(ev.Type)
	}
	return dimStyle.Render(truncate.StringWithTail(line, uint(max(width, 20)), "…"))
}

// ErrorHint возвращает подсказку для известных ошибок.
func ErrorHint(err error) string {
	if errors.Is(err, ErrUsage) {
		return "run with -h for help"
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
