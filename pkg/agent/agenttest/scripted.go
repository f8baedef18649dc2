// Package agenttest предоставляет тестовых двойников для agent.Agent.
package agenttest

import (
	"context"
	"sync"

	"github.com/ilkoid/formulator/pkg/agent"
	"github.com/ilkoid/formulator/pkg/llm"
)

// Step — заранее заданный ответ агента на один вызов.
type Step struct {
	Candidates []agent.Candidate
	Err        error
}

// OK возвращает шаг с одним успешным кандидатом.
func OK(content string) Step {
	return Step{Candidates: []agent.Candidate{{Status: agent.StatusOK, Content: content}}}
}

// Failed возвращает шаг с одним кандидатом, упавшим с диагностикой.
func Failed(diagnostic string) Step {
	return Step{Candidates: []agent.Candidate{{Status: agent.StatusError, Content: diagnostic}}}
}

// Fail возвращает шаг, на котором агент отдаёт Go ошибку.
func Fail(err error) Step {
	return Step{Err: err}
}

// Empty возвращает шаг с пустым списком кандидатов.
func Empty() Step {
	return Step{Candidates: []agent.Candidate{}}
}

// Scripted — агент, отвечающий по сценарию.
//
// Run всегда отдаёт run шаг. Followup отдаёт шаги по порядку, а когда
// сценарий кончился — повторяет последний (или run, если followup шагов нет).
// Кандидатам без Dialog подставляется продолженный диалог:
// входной диалог + user(инструкция) + assistant(content).
//
// Thread-safe.
type Scripted struct {
	mu        sync.Mutex
	run       Step
	followups []Step

	runCalls     int
	instructions []string
	dialogs      []llm.Dialog
	targetFields [][]string
}

// NewScripted создаёт агента со сценарием.
func NewScripted(run Step, followups ...Step) *Scripted {
	return &Scripted{run: run, followups: followups}
}

// Run реализует agent.Agent.
func (s *Scripted) Run(ctx context.Context, inputs []agent.Table, instruction string) ([]agent.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return materialize(s.run, nil, instruction)
}

// Followup реализует agent.Agent.
func (s *Scripted) Followup(ctx context.Context, inputs []agent.Table, dialog llm.Dialog, targetFields []string, instruction string) ([]agent.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.instructions)
	s.instructions = append(s.instructions, instruction)
	s.dialogs = append(s.dialogs, dialog.Clone())
	s.targetFields = append(s.targetFields, append([]string(nil), targetFields...))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	step := s.run
	switch {
	case n < len(s.followups):
		step = s.followups[n]
	case len(s.followups) > 0:
		step = s.followups[len(s.followups)-1]
	}
	return materialize(step, dialog, instruction)
}

// RunCalls возвращает число вызовов Run.
func (s *Scripted) RunCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCalls
}

// FollowupCalls возвращает число вызовов Followup.
func (s *Scripted) FollowupCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.instructions)
}

// FollowupInstructions возвращает инструкции, переданные в Followup, по порядку.
func (s *Scripted) FollowupInstructions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.instructions...)
}

// FollowupDialogs возвращает диалоги, переданные в Followup, по порядку.
func (s *Scripted) FollowupDialogs() []llm.Dialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Dialog, len(s.dialogs))
	copy(out, s.dialogs)
	return out
}

// FollowupTargetFields возвращает target fields каждого Followup.
func (s *Scripted) FollowupTargetFields() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.targetFields))
	copy(out, s.targetFields)
	return out
}

func materialize(step Step, dialog llm.Dialog, instruction string) ([]agent.Candidate, error) {
	if step.Err != nil {
		return nil, step.Err
	}
	if step.Candidates == nil {
		return nil, nil
	}
	out := make([]agent.Candidate, len(step.Candidates))
	for i, c := range step.Candidates {
		if c.Dialog == nil {
			c.Dialog = dialog.Append(llm.UserMessage(instruction), llm.AssistantMessage(c.Content))
		}
		out[i] = c
	}
	return out, nil
}

var _ agent.Agent = (*Scripted)(nil)
