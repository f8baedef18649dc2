package profile

import (
	"strings"

	"github.com/ilkoid/formulator/pkg/llm"
)

// systemSeparator отделяет системный текст от текста пользователя.
const systemSeparator = "\n\n"

// MergeSystemIntoFirstUser переносит системные сообщения в первое user сообщение.
//
// Для бэкендов, которые не умеют роль system:
//   - есть хотя бы одно system и хотя бы одно user сообщение —
//     тексты system (в порядке следования, через пустую строку) приклеиваются
//     перед текстом первого user сообщения, сами system сообщения убираются;
//   - user сообщений нет — диалог возвращается без изменений.
//
// Порядок остальных сообщений сохраняется. Вход не изменяется.
func MergeSystemIntoFirstUser(d llm.Dialog) llm.Dialog {
	firstUser := -1
	var system []string
	for i, m := range d {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleUser:
			if firstUser < 0 {
				firstUser = i
			}
		}
	}
	if len(system) == 0 || firstUser < 0 {
		return d.Clone()
	}

	prefix := strings.Join(system, systemSeparator)
	out := make(llm.Dialog, 0, len(d)-len(system))
	for i, m := range d {
		if m.Role == llm.RoleSystem {
			continue
		}
		if i == firstUser {
			m.Content = prefix + systemSeparator + m.Content
		}
		out = append(out, m)
	}
	return out
}
