package agent

import "github.com/ilkoid/formulator/pkg/llm"

// Status — исход попытки агента.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Candidate — один результат агента.
//
// При StatusError Content содержит диагностику (текст ошибки выполнения),
// при StatusOK — результат (сгенерированный код). Dialog — история,
// которую надо передать в Followup для продолжения именно этого кандидата.
type Candidate struct {
	Status  Status     `json:"status"`
	Content string     `json:"content"`
	Dialog  llm.Dialog `json:"dialog"`
	// Rows — результат выполнения, если агент его вычислил.
	Rows []map[string]any `json:"rows,omitempty"`
}

// OK сообщает, что кандидат успешен.
func (c Candidate) OK() bool {
	return c.Status == StatusOK
}

// Table — входная таблица агента.
type Table struct {
	Name string           `json:"name"`
	Rows []map[string]any `json:"rows"`
}

// Leader возвращает первого кандидата — именно он определяет исход попытки.
func Leader(cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	return cands[0], true
}
