// Package repair реализует ограниченный цикл исправления кода.
//
// Orchestrator вызывает агента, смотрит на первого кандидата (лидера)
// и, если тот упал, просит агента исправиться, передавая диагностику
// в followup. Число followup вызовов ограничено потолком из запроса.
//
// Соблюдение правил из dev_manifest.md:
//   - Работает только через agent.Agent (Правило 4)
//   - Никаких panic — все ошибки возвращаются (Правило 7)
//   - Уважает context.Context (Правило 11)
package repair

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ilkoid/formulator/pkg/agent"
	"github.com/ilkoid/formulator/pkg/debug"
	"github.com/ilkoid/formulator/pkg/events"
	"github.com/ilkoid/formulator/pkg/llm"
	"github.com/ilkoid/formulator/pkg/utils"
)

// DefaultMaxAttempts — потолок followup вызовов, если его не задали ни запрос, ни Config.
const DefaultMaxAttempts = 1

// Виды вызова агента в событиях и трейсах.
const (
	KindRun      = "run"
	KindFollowup = "followup"
)

// Request — запрос на вывод новых данных.
type Request struct {
	Inputs       []agent.Table
	TargetFields []string
	Instruction  string
	// MaxAttempts — потолок followup вызовов; nil — значение оркестратора.
	MaxAttempts *int
}

// RefineRequest — запрос на доработку уже полученного результата.
//
// Первый вызов — Followup с инструкцией пользователя по Dialog,
// дальше тот же цикл исправления.
type RefineRequest struct {
	Inputs       []agent.Table
	Dialog       llm.Dialog
	TargetFields []string
	Instruction  string
	MaxAttempts  *int
}

// Config конфигурация для создания Orchestrator.
type Config struct {
	// Agent — агент, которого гоняет цикл (обязательный)
	Agent agent.Agent

	// MaxAttempts — потолок по умолчанию; nil — DefaultMaxAttempts
	MaxAttempts *int

	// Emitter — получатель событий цикла (опциональный)
	Emitter events.Emitter

	// Traces — куда сохранять трейсы (опциональный)
	Traces debug.Sink

	// TraceConfig — что включать в трейс
	TraceConfig debug.RecorderConfig

	// NewRunID — генератор идентификаторов запусков, по умолчанию UUID
	NewRunID func() string
}

// Orchestrator гоняет агента через первую попытку и followup'ы.
//
// Не хранит состояния между вызовами: независимые Run/Refine можно
// вызывать параллельно, если это допускает сам агент.
type Orchestrator struct {
	agent       agent.Agent
	maxAttempts int
	emitter     events.Emitter
	traces      debug.Sink
	traceConfig debug.RecorderConfig
	newRunID    func() string
}

// New создаёт новый Orchestrator с заданной конфигурацией.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Agent == nil {
		return nil, fmt.Errorf("cfg.Agent is required")
	}

	maxAttempts := DefaultMaxAttempts
	if cfg.MaxAttempts != nil {
		if *cfg.MaxAttempts < 0 {
			return nil, &llm.ConfigurationError{Field: "max_attempts", Reason: fmt.Sprintf("must not be negative, got %d", *cfg.MaxAttempts)}
		}
		maxAttempts = *cfg.MaxAttempts
	}

	newRunID := cfg.NewRunID
	if newRunID == nil {
		newRunID = uuid.NewString
	}

	return &Orchestrator{
		agent:       cfg.Agent,
		maxAttempts: maxAttempts,
		emitter:     cfg.Emitter,
		traces:      cfg.Traces,
		traceConfig: cfg.TraceConfig,
		newRunID:    newRunID,
	}, nil
}

// Run выполняет первую попытку через Agent.Run и чинит результат.
//
// Возвращает последний список кандидатов: успешный, исчерпавший
// попытки или пустой. Ошибки агента прерывают цикл и возвращаются
// обёрнутыми (errors.As до *llm.ProviderError работает).
func (o *Orchestrator) Run(ctx context.Context, req Request) ([]agent.Candidate, error) {
	ceiling, err := o.ceiling(req.MaxAttempts)
	if err != nil {
		return nil, err
	}

	initial := func(ctx context.Context) ([]agent.Candidate, error) {
		return o.agent.Run(ctx, req.Inputs, req.Instruction)
	}
	return o.drive(ctx, "run", KindRun, req.Instruction, req.Inputs, req.TargetFields, ceiling, initial)
}

// Refine выполняет первую попытку через Agent.Followup с инструкцией
// пользователя и дальше чинит результат так же, как Run.
func (o *Orchestrator) Refine(ctx context.Context, req RefineRequest) ([]agent.Candidate, error) {
	ceiling, err := o.ceiling(req.MaxAttempts)
	if err != nil {
		return nil, err
	}

	initial := func(ctx context.Context) ([]agent.Candidate, error) {
		return o.agent.Followup(ctx, req.Inputs, req.Dialog, req.TargetFields, req.Instruction)
	}
	return o.drive(ctx, "refine", KindFollowup, req.Instruction, req.Inputs, req.TargetFields, ceiling, initial)
}

// ceiling разрешает потолок followup вызовов для запроса.
func (o *Orchestrator) ceiling(requested *int) (int, error) {
	if requested == nil {
		return o.maxAttempts, nil
	}
	if *requested < 0 {
		return 0, &llm.ConfigurationError{Field: "max_attempts", Reason: fmt.Sprintf("must not be negative, got %d", *requested)}
	}
	return *requested, nil
}

// drive — машина состояний одного вызова.
func (o *Orchestrator) drive(
	ctx context.Context,
	flow, initialKind, instruction string,
	inputs []agent.Table,
	targetFields []string,
	ceiling int,
	initial func(context.Context) ([]agent.Candidate, error),
) ([]agent.Candidate, error) {
	r := o.newRun(flow, instruction, targetFields, ceiling)

	var (
		cands    []agent.Candidate
		leader   agent.Candidate
		attempts int
		err      error
	)

	state := StateInitial
	for {
		switch state {
		case StateInitial:
			cands, err = r.call(ctx, 0, initialKind, instruction, initial)
			if err != nil {
				return nil, r.fail(ctx, 0, err)
			}
			state = StateEvaluating

		case StateEvaluating:
			var ok bool
			leader, ok = agent.Leader(cands)
			r.evaluated(ctx, attempts, cands)
			if !ok || leader.OK() || attempts >= ceiling {
				state = StateDone
			} else {
				state = StateRetrying
			}

		case StateRetrying:
			attempts++
			r.emit(ctx, events.EventRepairScheduled, events.RepairData{Attempt: attempts, Error: leader.Content})
			utils.Info("Repair scheduled",
				"run_id", r.id,
				"attempt", attempts,
				"max_attempts", ceiling)

			repairInstr := RepairInstruction(leader.Content)
			dialog := leader.Dialog
			cands, err = r.call(ctx, attempts, KindFollowup, repairInstr, func(ctx context.Context) ([]agent.Candidate, error) {
				return o.agent.Followup(ctx, inputs, dialog, targetFields, repairInstr)
			})
			if err != nil {
				return nil, r.fail(ctx, attempts, err)
			}
			state = StateEvaluating

		case StateDone:
			r.done(ctx, attempts, cands)
			return cands, nil
		}
	}
}

// run — состояние одного вызова оркестратора (не разделяется между вызовами).
type run struct {
	o        *Orchestrator
	id       string
	start    time.Time
	recorder *debug.Recorder
}

func (o *Orchestrator) newRun(flow, instruction string, targetFields []string, ceiling int) *run {
	r := &run{o: o, id: o.newRunID(), start: time.Now()}
	if o.traces != nil {
		r.recorder = debug.NewRecorder(r.id, o.traceConfig)
		r.recorder.Start(flow, instruction, targetFields, ceiling)
	}
	utils.Debug("Repair run started",
		"run_id", r.id,
		"flow", flow,
		"max_attempts", ceiling,
		"target_fields", len(targetFields))
	return r
}

// call вызывает агента и записывает попытку.
func (r *run) call(ctx context.Context, attempt int, kind, instruction string, fn func(context.Context) ([]agent.Candidate, error)) ([]agent.Candidate, error) {
	r.emit(ctx, events.EventAttemptStarted, events.AttemptData{Attempt: attempt, Kind: kind})
	if r.recorder != nil {
		r.recorder.StartAttempt(attempt, kind, instruction)
		defer r.recorder.EndAttempt()
	}

	cands, err := fn(ctx)
	if err != nil {
		if r.recorder != nil {
			r.recorder.RecordError(err)
		}
		return nil, err
	}
	if r.recorder != nil {
		for _, c := range cands {
			r.recorder.RecordCandidate(string(c.Status), c.Content, c.Dialog)
		}
	}
	return cands, nil
}

func (r *run) evaluated(ctx context.Context, attempt int, cands []agent.Candidate) {
	status := leaderStatus(cands)
	r.emit(ctx, events.EventCandidateEvaluated, events.EvaluationData{
		Attempt:      attempt,
		Candidates:   len(cands),
		LeaderStatus: status,
	})
	utils.Debug("Candidates evaluated",
		"run_id", r.id,
		"attempt", attempt,
		"candidates", len(cands),
		"leader_status", status)
}

func (r *run) done(ctx context.Context, followups int, cands []agent.Candidate) {
	status := leaderStatus(cands)
	r.emit(ctx, events.EventDone, events.DoneData{
		Followups:    followups,
		Candidates:   len(cands),
		LeaderStatus: status,
	})
	utils.Info("Repair run finished",
		"run_id", r.id,
		"followups", followups,
		"leader_status", status,
		"duration_ms", time.Since(r.start).Milliseconds())
	r.save(ctx, status)
}

// fail оборачивает ошибку агента и закрывает запуск.
func (r *run) fail(ctx context.Context, attempt int, err error) error {
	r.emit(ctx, events.EventError, events.ErrorData{Err: err})
	utils.Error("Repair run aborted by agent error",
		"run_id", r.id,
		"attempt", attempt,
		"error", err)
	r.save(ctx, "")
	return fmt.Errorf("repair attempt %d: %w", attempt, err)
}

// save сохраняет трейс. Ошибка sink'а не влияет на результат вызова.
func (r *run) save(ctx context.Context, status string) {
	if r.recorder == nil {
		return
	}
	trace := r.recorder.Finalize(status, time.Since(r.start))
	// Трейс прерванного запуска тоже сохраняется.
	loc, err := r.o.traces.Save(context.WithoutCancel(ctx), trace)
	if err != nil {
		utils.Warn("Failed to save repair trace", "run_id", r.id, "error", err)
	}
	if loc != "" {
		utils.Debug("Repair trace saved", "run_id", r.id, "location", loc)
	}
}

func (r *run) emit(ctx context.Context, typ events.EventType, data events.EventData) {
	if r.o.emitter == nil {
		return
	}
	r.o.emitter.Emit(ctx, events.Event{
		Type:      typ,
		RunID:     r.id,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func leaderStatus(cands []agent.Candidate) string {
	if leader, ok := agent.Leader(cands); ok {
		return string(leader.Status)
	}
	return ""
}
