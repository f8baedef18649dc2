// Package executor запускает сгенерированный код во внешнем интерпретаторе.
//
// Это граница системы, а не песочница: код выполняется с правами процесса.
// Протокол: на stdin уходит JSON {"code": ..., "inputs": [...]},
// интерпретатор печатает в stdout {"rows": [...]}.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ilkoid/formulator/pkg/agent"
	"github.com/ilkoid/formulator/pkg/utils"
)

// ErrNoCommand возвращается когда интерпретатор не задан.
var ErrNoCommand = errors.New("executor command is not configured")

// Result — результат успешного выполнения.
type Result struct {
	Rows   []map[string]any `json:"rows"`
	Stderr string           `json:"-"`
}

// ExecutionError — код запустился, но упал или вернул мусор.
//
// Message — диагностика для модели (обычно traceback из stderr).
// Такие ошибки чинятся followup'ом, в отличие от ошибок запуска.
type ExecutionError struct {
	Message string
}

func (e *ExecutionError) Error() string {
	return e.Message
}

// Executor выполняет код над входными таблицами.
type Executor interface {
	Execute(ctx context.Context, code string, inputs []agent.Table) (Result, error)
}

// CommandExecutor запускает настроенную команду на каждый вызов.
type CommandExecutor struct {
	command []string
	timeout time.Duration
}

// NewCommandExecutor создаёт исполнителя. command[0] — бинарник, остальное — аргументы.
func NewCommandExecutor(command []string, timeout time.Duration) (*CommandExecutor, error) {
	if len(command) == 0 || strings.TrimSpace(command[0]) == "" {
		return nil, ErrNoCommand
	}
	return &CommandExecutor{
		command: append([]string(nil), command...),
		timeout: timeout,
	}, nil
}

type request struct {
	Code   string        `json:"code"`
	Inputs []agent.Table `json:"inputs"`
}

// Execute реализует Executor.
//
// Ненулевой код выхода, таймаут выполнения и невалидный stdout —
// *ExecutionError. Невозможность запустить команду — обычная ошибка.
func (e *CommandExecutor) Execute(ctx context.Context, code string, inputs []agent.Table) (Result, error) {
	if inputs == nil {
		inputs = []agent.Table{}
	}
	payload, err := json.Marshal(request{Code: code, Inputs: inputs})
	if err != nil {
		return Result{}, fmt.Errorf("encode executor request: %w", err)
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	startTime := time.Now()
	cmd := exec.CommandContext(runCtx, e.command[0], e.command[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// дочерние процессы интерпретатора могут держать pipe после kill
	cmd.WaitDelay = time.Second

	err = cmd.Run()
	diag := strings.TrimSpace(stderr.String())

	utils.Debug("Code executed",
		"command", e.command[0],
		"duration_ms", time.Since(startTime).Milliseconds(),
		"stdout_bytes", stdout.Len(),
		"stderr_bytes", stderr.Len(),
		"error", err)

	if err != nil {
		// Отмена родительского контекста — не ошибка кода.
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if runCtx.Err() == context.DeadlineExceeded {
			return Result{}, &ExecutionError{Message: fmt.Sprintf("execution timed out after %s", e.timeout)}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if diag == "" {
				diag = fmt.Sprintf("execution failed with exit code %d", exitErr.ExitCode())
			}
			return Result{}, &ExecutionError{Message: diag}
		}
		return Result{}, fmt.Errorf("run %s: %w", e.command[0], err)
	}

	var res Result
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &res); err != nil {
		return Result{}, &ExecutionError{Message: fmt.Sprintf("invalid executor output: %v", err)}
	}
	res.Stderr = diag
	return res, nil
}

var _ Executor = (*CommandExecutor)(nil)
