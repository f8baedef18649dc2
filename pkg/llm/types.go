// Базовые типы - определяем универсальный язык общения с моделями
package llm

// Role — роль автора сообщения в диалоге.
type Role string

// Константы для удобства
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message — одно сообщение диалога.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Dialog — упорядоченная история сообщений, которой обмениваемся с моделью.
//
// Dialog передаётся по значению между агентом и оркестратором,
// поэтому все функции, которые его меняют, работают с копией (Clone).
type Dialog []Message

// Clone возвращает независимую копию диалога.
func (d Dialog) Clone() Dialog {
	if d == nil {
		return nil
	}
	out := make(Dialog, len(d))
	copy(out, d)
	return out
}

// Append возвращает новый диалог с добавленными сообщениями.
// Исходный диалог не изменяется.
func (d Dialog) Append(msgs ...Message) Dialog {
	out := make(Dialog, 0, len(d)+len(msgs))
	out = append(out, d...)
	return append(out, msgs...)
}

// Count возвращает количество сообщений с указанной ролью.
func (d Dialog) Count(role Role) int {
	n := 0
	for _, m := range d {
		if m.Role == role {
			n++
		}
	}
	return n
}

// Completion — нормализованный ответ модели.
type Completion struct {
	Content string `json:"content"`
}

// SystemMessage и UserMessage — сахар для построения диалогов.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}
