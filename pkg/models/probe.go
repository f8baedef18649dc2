package models

import (
	"context"
	"strings"

	"github.com/ilkoid/formulator/pkg/llm"
)

// ProbeReply — фраза, по которой модель считается доступной.
const ProbeReply = "I can hear you."

// ProbeDialog — фиксированный диалог проверки доступности.
func ProbeDialog() llm.Dialog {
	return llm.Dialog{
		llm.SystemMessage("You are a helpful assistant."),
		llm.UserMessage("Respond 'I can hear you.' if you can hear me."),
	}
}

// Probe отправляет модели проверочный диалог.
//
// Возвращает true если ответ содержит ProbeReply. Ошибка провайдера
// (auth, сеть, неизвестная модель) возвращается как есть: вызывающий
// решает, показывать ли её пользователю.
func Probe(ctx context.Context, provider llm.Provider) (bool, error) {
	completion, err := provider.Complete(ctx, ProbeDialog())
	if err != nil {
		return false, err
	}
	return strings.Contains(completion.Content, ProbeReply), nil
}

// ProbeResult — итог проверки одной модели.
type ProbeResult struct {
	Name      string
	Available bool
	Err       error
}

// ProbeAll проверяет все модели реестра по очереди, в порядке ListNames.
func (r *Registry) ProbeAll(ctx context.Context) []ProbeResult {
	names := r.ListNames()
	results := make([]ProbeResult, 0, len(names))
	for _, name := range names {
		provider, _, err := r.Get(name)
		if err != nil {
			results = append(results, ProbeResult{Name: name, Err: err})
			continue
		}
		ok, err := Probe(ctx, provider)
		results = append(results, ProbeResult{Name: name, Available: ok, Err: err})
	}
	return results
}
