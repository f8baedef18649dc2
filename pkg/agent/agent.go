// Package agent определяет контракт агента, которого гоняет цикл исправления.
//
// Агент сам решает, как строить промпты и что делать с ответом модели.
// Оркестратору нужны только две операции: первый запуск и продолжение
// диалога с новой инструкцией.
//
// Basic usage:
//
//	cands, err := a.Run(ctx, inputs, "sum sales by region")
//	if leader, ok := agent.Leader(cands); ok && !leader.OK() {
//	    cands, err = a.Followup(ctx, inputs, leader.Dialog, fields, "fix it")
//	}
package agent

import (
	"context"

	"github.com/ilkoid/formulator/pkg/llm"
)

// Agent — возможность, которую оркестратор вызывает по кругу.
//
// Ошибки провайдера (auth, сеть) возвращаются как error и не считаются
// попытками; ошибки выполнения сгенерированного кода возвращаются
// кандидатом со StatusError.
//
// Rule 11: все методы уважают context.Context.
type Agent interface {
	// Run выполняет первую попытку по инструкции пользователя.
	Run(ctx context.Context, inputs []Table, instruction string) ([]Candidate, error)

	// Followup продолжает переданный диалог новой инструкцией.
	// dialog не изменяется.
	Followup(ctx context.Context, inputs []Table, dialog llm.Dialog, targetFields []string, instruction string) ([]Candidate, error)
}
