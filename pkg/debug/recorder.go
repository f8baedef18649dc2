package debug

import (
	"fmt"
	"sync"
	"time"

	"github.com/ilkoid/formulator/pkg/llm"
)

// Recorder накапливает трейс одного вызова оркестратора.
//
// Потокобезопасен — может использоваться из разных горутин.
// Создаётся на каждый вызов, повторно не используется.
type Recorder struct {
	mu sync.Mutex

	// config — конфигурация рекордера
	config RecorderConfig

	// trace — накапливаемый трейс выполнения
	trace RepairTrace

	// current — текущая попытка (заполняется по мере выполнения)
	current      *Attempt
	attemptStart time.Time

	// errors — список ошибок выполнения
	errors []string
}

// RecorderConfig конфигурация для создания Recorder.
type RecorderConfig struct {
	// IncludeDialogs — включать диалоги кандидатов в трейс
	IncludeDialogs bool

	// MaxContentSize — максимальный размер Content (превышение обрезается)
	// 0 означает без ограничений
	MaxContentSize int
}

// NewRecorder создает новый Recorder для запуска runID.
func NewRecorder(runID string, cfg RecorderConfig) *Recorder {
	return &Recorder{
		config: cfg,
		trace: RepairTrace{
			RunID:     runID,
			Timestamp: time.Now(),
		},
		errors: make([]string, 0),
	}
}

// Start начинает запись сессии.
func (r *Recorder) Start(flow, instruction string, targetFields []string, maxAttempts int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trace.Flow = flow
	r.trace.Instruction = instruction
	r.trace.TargetFields = append([]string(nil), targetFields...)
	r.trace.MaxAttempts = maxAttempts
	r.trace.Timestamp = time.Now()
}

// StartAttempt начинает запись вызова агента.
func (r *Recorder) StartAttempt(num int, kind, instruction string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.current = &Attempt{
		Number:      num,
		Kind:        kind,
		Instruction: instruction,
	}
	r.attemptStart = time.Now()
}

// RecordCandidate добавляет кандидата к текущей попытке.
func (r *Recorder) RecordCandidate(status, content string, dialog llm.Dialog) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == nil {
		return
	}

	entry := CandidateEntry{Status: status}
	entry.Content, entry.ContentTruncated = truncateString(content, r.config.MaxContentSize)
	if r.config.IncludeDialogs {
		entry.Messages = make([]MessageEntry, len(dialog))
		for i, m := range dialog {
			entry.Messages[i] = MessageEntry{Role: string(m.Role), Content: m.Content}
		}
	}

	// Ошибка лидера попадает в summary
	if len(r.current.Candidates) == 0 && status == "error" {
		r.errors = append(r.errors, fmt.Sprintf("attempt %d: %s", r.current.Number, entry.Content))
	}
	r.current.Candidates = append(r.current.Candidates, entry)
}

// RecordError записывает Go ошибку агента в текущую попытку.
func (r *Recorder) RecordError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err == nil {
		return
	}
	r.errors = append(r.errors, err.Error())
	r.trace.Error = err.Error()
	if r.current != nil {
		r.current.Error = err.Error()
	}
}

// EndAttempt завершает текущую попытку.
func (r *Recorder) EndAttempt() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		r.current.Duration = time.Since(r.attemptStart).Milliseconds()
		r.trace.Attempts = append(r.trace.Attempts, *r.current)
		r.current = nil
	}
}

// Finalize завершает запись и возвращает готовый трейс.
func (r *Recorder) Finalize(finalStatus string, duration time.Duration) RepairTrace {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trace.FinalStatus = finalStatus
	r.trace.Duration = duration.Milliseconds()
	r.buildSummary()

	out := r.trace
	out.Attempts = append([]Attempt(nil), r.trace.Attempts...)
	return out
}

// buildSummary формирует агрегированную статистику.
func (r *Recorder) buildSummary() {
	summary := Summary{
		Errors: append([]string(nil), r.errors...),
	}
	for _, a := range r.trace.Attempts {
		summary.TotalAgentCalls++
		summary.TotalAgentDuration += a.Duration
		if a.Kind == "followup" {
			summary.Followups++
		}
	}
	r.trace.Summary = summary
}

// GetRunID возвращает идентификатор текущей сессии.
func (r *Recorder) GetRunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trace.RunID
}

// truncateString обрезает строку и сообщает, была ли обрезка.
func truncateString(s string, maxSize int) (string, bool) {
	if maxSize <= 0 || len(s) <= maxSize {
		return s, false
	}
	return s[:maxSize] + "... (truncated)", true
}
