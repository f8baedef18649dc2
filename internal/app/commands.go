// Package app реализует реестр команд CLI formulator.
//
// Позволяет регистрировать обработчики подкоманд и выполнять их по имени.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	core "github.com/ilkoid/formulator/pkg/app"
	"github.com/ilkoid/formulator/pkg/credentials"
	"github.com/ilkoid/formulator/pkg/utils"
)

// ErrUsage — неверные аргументы подкоманды; main печатает справку.
var ErrUsage = errors.New("usage error")

// CommandHandler — тип функции-обработчика команды.
//
// Принимает окружение и аргументы после имени команды.
type CommandHandler func(ctx context.Context, env *Env, args []string) error

// Command — зарегистрированная команда со справкой.
type Command struct {
	Name    string
	Summary string
	Handler CommandHandler
}

// Env — окружение, в котором выполняются команды.
type Env struct {
	Out io.Writer
	Err io.Writer
	// Width — ширина вывода для переноса текста
	Width int
	// Load собирает компоненты по пути к конфигу (пустой путь — поиск по умолчанию)
	Load func(configPath string) (*core.Components, error)
}

// DefaultEnv возвращает окружение для реального запуска из main.
func DefaultEnv() *Env {
	return &Env{
		Out:   os.Stdout,
		Err:   os.Stderr,
		Width: 100,
		Load:  LoadComponents,
	}
}

// LoadComponents загружает конфиг, поднимает логгер и все компоненты.
//
// Правило 2: все настройки в YAML с поддержкой ENV-переменных.
func LoadComponents(configPath string) (*core.Components, error) {
	cfg, cfgPath, err := core.InitializeConfig(&core.DefaultConfigPathFinder{ConfigFlag: configPath})
	if err != nil {
		return nil, err
	}
	if err := utils.InitLogger(cfg.App.LogPrefix); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	utils.Info("Config loaded", "path", cfgPath)

	return core.Initialize(cfg, credentials.EnvSource{})
}

// CommandRegistry — реестр зарегистрированных команд CLI.
//
// Thread-safe: одновременные вызовы безопасны.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewCommandRegistry создает новый пустой реестр команд.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]Command),
	}
}

// Register регистрирует новую команду в реестре.
//
// Если команда с таким именем уже существует, она будет перезаписана.
func (r *CommandRegistry) Register(name, summary string, handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[name] = Command{Name: name, Summary: summary, Handler: handler}
}

// Execute выполняет команду args[0] с аргументами args[1:].
func (r *CommandRegistry) Execute(ctx context.Context, env *Env, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command given", ErrUsage)
	}

	// Получаем handler под read lock
	r.mu.RLock()
	cmd, exists := r.commands[args[0]]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: unknown command '%s'", ErrUsage, args[0])
	}

	utils.Debug("Executing command", "command", cmd.Name, "args", strings.Join(args[1:], " "))
	return cmd.Handler(ctx, env, args[1:])
}

// GetCommands возвращает отсортированный список зарегистрированных команд.
func (r *CommandRegistry) GetCommands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmds := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		cmds = append(cmds, c)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// Usage печатает список команд.
func (r *CommandRegistry) Usage(w io.Writer, program string) {
	fmt.Fprintf(w, "Usage: %s <command> [flags]\n\nCommands:\n", program)
	for _, c := range r.GetCommands() {
		fmt.Fprintf(w, "  %-8s %s\n", c.Name, c.Summary)
	}
	fmt.Fprintf(w, "\nRun '%s <command> -h' for command flags.\n", program)
}
