package repair

// State — состояние цикла исправления внутри одного вызова.
//
//	Initial → Evaluating → (Retrying → Evaluating)* → Done
type State int

const (
	// StateInitial — первый вызов агента (Run или Followup для refine).
	StateInitial State = iota
	// StateEvaluating — оценка лидера.
	StateEvaluating
	// StateRetrying — followup с инструкцией исправления.
	StateRetrying
	// StateDone — возврат последнего списка кандидатов.
	StateDone
)

// String возвращает имя состояния для логов.
func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateEvaluating:
		return "evaluating"
	case StateRetrying:
		return "retrying"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}
