// Package transform реализует агента преобразования данных.
//
// Агент просит модель написать функцию transform_data на pandas,
// извлекает код из ответа и выполняет его через executor.Executor.
// Ошибка выполнения становится кандидатом со StatusError, чтобы
// цикл исправления мог отправить её обратно модели.
package transform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ilkoid/formulator/pkg/agent"
	"github.com/ilkoid/formulator/pkg/executor"
	"github.com/ilkoid/formulator/pkg/llm"
	"github.com/ilkoid/formulator/pkg/utils"
)

// SystemPrompt — системный промпт агента.
const SystemPrompt = `You are a data scientist who writes Python code with pandas to transform data.
Write a function transform_data that takes the input tables as pandas DataFrames, in the order they are listed, and returns a single DataFrame.
Return the complete code in one fenced python code block.`

// ErrNoCode — модель ответила без блока кода.
var ErrNoCode = errors.New("no code block found in model response")

// sampleRows — сколько строк каждой таблицы показывать модели.
const sampleRows = 5

// Agent — агент преобразования данных.
//
// Rule 5: immutable после создания, безопасен для конкурентного использования.
type Agent struct {
	provider     llm.Provider
	exec         executor.Executor
	systemPrompt string
}

// Option настраивает Agent.
type Option func(*Agent)

// WithSystemPrompt заменяет SystemPrompt (например, промптом из pkg/prompts).
// Пустая строка игнорируется.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) {
		if prompt != "" {
			a.systemPrompt = prompt
		}
	}
}

// New создаёт агента. provider и exec обязательны.
func New(provider llm.Provider, exec executor.Executor, opts ...Option) (*Agent, error) {
	if provider == nil {
		return nil, &llm.ConfigurationError{Field: "provider", Reason: "is required"}
	}
	if exec == nil {
		return nil, &llm.ConfigurationError{Field: "executor", Reason: "is required"}
	}
	a := &Agent{provider: provider, exec: exec, systemPrompt: SystemPrompt}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run строит диалог [system, user] и выполняет первую попытку.
func (a *Agent) Run(ctx context.Context, inputs []agent.Table, instruction string) ([]agent.Candidate, error) {
	dialog := llm.Dialog{
		llm.SystemMessage(a.systemPrompt),
		llm.UserMessage(buildUserPrompt(inputs, nil, instruction)),
	}
	return a.attempt(ctx, inputs, dialog)
}

// Followup добавляет к диалогу пользовательский ход с новой инструкцией.
//
// Переданный dialog не изменяется.
func (a *Agent) Followup(ctx context.Context, inputs []agent.Table, dialog llm.Dialog, targetFields []string, instruction string) ([]agent.Candidate, error) {
	next := dialog.Append(llm.UserMessage(buildFollowupPrompt(targetFields, instruction)))
	return a.attempt(ctx, inputs, next)
}

// attempt вызывает модель и выполняет код из её ответа.
//
// Ошибки провайдера и отмена контекста возвращаются как error.
// Всё, что модель может исправить, возвращается кандидатом со StatusError.
func (a *Agent) attempt(ctx context.Context, inputs []agent.Table, dialog llm.Dialog) ([]agent.Candidate, error) {
	completion, err := a.provider.Complete(ctx, dialog)
	if err != nil {
		return nil, err
	}
	full := dialog.Append(llm.AssistantMessage(completion.Content))

	code, ok := utils.ExtractCodeBlock(completion.Content)
	if !ok || code == "" {
		utils.Warn("transform: no code in response", "length", len(completion.Content))
		return []agent.Candidate{{
			Status:  agent.StatusError,
			Content: ErrNoCode.Error(),
			Dialog:  full,
		}}, nil
	}

	result, err := a.exec.Execute(ctx, code, inputs)
	if err != nil {
		var execErr *executor.ExecutionError
		if !errors.As(err, &execErr) {
			return nil, fmt.Errorf("execute code: %w", err)
		}
		utils.Debug("transform: execution failed", "error", execErr.Message)
		return []agent.Candidate{{
			Status:  agent.StatusError,
			Content: execErr.Message,
			Dialog:  full,
		}}, nil
	}

	utils.Debug("transform: execution succeeded", "rows", len(result.Rows))
	return []agent.Candidate{{
		Status:  agent.StatusOK,
		Content: code,
		Dialog:  full,
		Rows:    result.Rows,
	}}, nil
}

// buildUserPrompt описывает входные таблицы и задачу.
func buildUserPrompt(inputs []agent.Table, targetFields []string, instruction string) string {
	var sb strings.Builder
	sb.WriteString("[INPUT TABLES]\n\n")
	for i, t := range inputs {
		describeTable(&sb, i, t)
	}
	sb.WriteString("[GOAL]\n\n")
	sb.WriteString(strings.TrimSpace(instruction))
	sb.WriteString("\n")
	writeFields(&sb, targetFields)
	return sb.String()
}

func buildFollowupPrompt(targetFields []string, instruction string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(instruction))
	sb.WriteString("\n")
	writeFields(&sb, targetFields)
	return sb.String()
}

func writeFields(sb *strings.Builder, fields []string) {
	if len(fields) == 0 {
		return
	}
	fmt.Fprintf(sb, "\nThe output table must contain the fields: %s\n", strings.Join(fields, ", "))
}

// describeTable пишет имя, колонки и первые строки таблицы.
func describeTable(sb *strings.Builder, idx int, t agent.Table) {
	name := t.Name
	if name == "" {
		name = fmt.Sprintf("table_%d", idx)
	}
	fmt.Fprintf(sb, "table %d: %s (%d rows)\n", idx, name, len(t.Rows))

	if cols := columns(t.Rows); len(cols) > 0 {
		fmt.Fprintf(sb, "columns: %s\n", strings.Join(cols, ", "))
	}

	n := min(len(t.Rows), sampleRows)
	for _, row := range t.Rows[:n] {
		b, err := json.Marshal(row)
		if err != nil {
			continue
		}
		sb.Write(b)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

// columns собирает имена колонок из всех строк, отсортированные.
func columns(rows []map[string]any) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			seen[k] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for k := range seen {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

var _ agent.Agent = (*Agent)(nil)
