// Package debug предоставляет инструменты для записи и анализа цикла исправления кода.
//
// Пакет сохраняет детальные трейсы выполнения в JSON формате для последующего
// анализа: какие попытки были, что вернул агент, с какой диагностикой
// запускался каждый followup.
package debug

import "time"

// RepairTrace представляет полный трейс одного вызова оркестратора.
type RepairTrace struct {
	// RunID — уникальный идентификатор запуска (используется в имени файла)
	RunID string `json:"run_id"`

	// Timestamp — время начала выполнения
	Timestamp time.Time `json:"timestamp"`

	// Flow — "run" или "refine"
	Flow string `json:"flow"`

	// Instruction — исходная инструкция пользователя
	Instruction string `json:"instruction"`

	// TargetFields — поля, которые должен получить результат
	TargetFields []string `json:"target_fields,omitempty"`

	// MaxAttempts — потолок followup попыток для этого вызова
	MaxAttempts int `json:"max_attempts"`

	// Duration — общая длительность выполнения в миллисекундах
	Duration int64 `json:"duration_ms"`

	// Attempts — вызовы агента по порядку
	Attempts []Attempt `json:"attempts"`

	// Summary — агрегированная статистика выполнения
	Summary Summary `json:"summary"`

	// FinalStatus — статус лидера на выходе ("ok", "error" или "" для пустого списка)
	FinalStatus string `json:"final_status,omitempty"`

	// Error — Go ошибка, прервавшая цикл
	Error string `json:"error,omitempty"`
}

// Attempt представляет один вызов агента.
type Attempt struct {
	// Number — номер попытки (0 — первый вызов)
	Number int `json:"attempt"`

	// Kind — "run" или "followup"
	Kind string `json:"kind"`

	// Instruction — инструкция, переданная агенту
	Instruction string `json:"instruction,omitempty"`

	// Duration — длительность вызова в миллисекундах
	Duration int64 `json:"duration_ms"`

	// Candidates — что вернул агент
	Candidates []CandidateEntry `json:"candidates,omitempty"`

	// Error — Go ошибка агента
	Error string `json:"error,omitempty"`
}

// CandidateEntry описывает одного кандидата.
type CandidateEntry struct {
	Status string `json:"status"`

	// Content — код или диагностика (может быть обрезано по MaxContentSize)
	Content string `json:"content,omitempty"`

	// ContentTruncated — true если Content был обрезан
	ContentTruncated bool `json:"content_truncated,omitempty"`

	// Messages — диалог кандидата, если IncludeDialogs
	Messages []MessageEntry `json:"messages,omitempty"`
}

// MessageEntry представляет одно сообщение диалога для полного логирования.
type MessageEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Summary содержит агрегированную статистику выполнения.
type Summary struct {
	// TotalAgentCalls — Run + все Followup
	TotalAgentCalls int `json:"total_agent_calls"`

	// Followups — число followup вызовов
	Followups int `json:"followups"`

	// TotalAgentDuration — общее время вызовов агента в миллисекундах
	TotalAgentDuration int64 `json:"total_agent_duration_ms"`

	// Errors — диагностика всех неудачных лидеров и ошибки агента
	Errors []string `json:"errors,omitempty"`
}
