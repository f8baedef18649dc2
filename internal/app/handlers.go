package app

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	core "github.com/ilkoid/formulator/pkg/app"
	"github.com/ilkoid/formulator/pkg/events"
	"github.com/ilkoid/formulator/pkg/repair"
	"github.com/ilkoid/formulator/pkg/tui"
	"github.com/ilkoid/formulator/pkg/utils"
)

// SetupCommands регистрирует все команды formulator.
func SetupCommands(registry *CommandRegistry) {
	registry.Register("models", "probe configured and env-discovered models", modelsCommand)
	registry.Register("derive", "derive a new table with the repair loop", deriveCommand)
	registry.Register("refine", "refine a previous result with a new instruction", refineCommand)
	registry.Register("traces", "list saved repair traces", tracesCommand)
}

// commonFlags — флаги, общие для derive и refine.
type commonFlags struct {
	config      string
	model       string
	input       string
	fields      string
	instruction string
	maxRepair   int
	asJSON      bool
	quiet       bool
	tui         bool
}

func (c *commonFlags) bind(fs *flag.FlagSet) {
	fs.StringVar(&c.config, "config", "", "path to config.yaml")
	fs.StringVar(&c.model, "model", "", "model alias (default: models.default)")
	fs.StringVar(&c.input, "input", "", "input tables JSON (file or s3://key)")
	fs.StringVar(&c.fields, "fields", "", "comma-separated target fields")
	fs.StringVar(&c.instruction, "instruction", "", "what to compute")
	fs.IntVar(&c.maxRepair, "max-repair", -1, "repair attempts ceiling (-1: repair.max_attempts from config)")
	fs.BoolVar(&c.asJSON, "json", false, "print candidates as JSON")
	fs.BoolVar(&c.quiet, "quiet", false, "do not print progress")
	fs.BoolVar(&c.tui, "tui", false, "show progress with a spinner")
}

func (c *commonFlags) progress() progressMode {
	switch {
	case c.quiet:
		return progressNone
	case c.tui:
		return progressTUI
	default:
		return progressPlain
	}
}

func (c *commonFlags) maxAttempts() *int {
	if c.maxRepair < 0 {
		return nil
	}
	n := c.maxRepair
	return &n
}

func newFlagSet(name string, env *Env) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.Err)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

func splitFields(raw string) []string {
	var out []string
	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// modelsCommand проверяет доступность всех моделей.
func modelsCommand(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("models", env)
	configPath := fs.String("config", "", "path to config.yaml")
	if err := parseFlags(fs, args); err != nil || helpRequested(args) {
		return err
	}

	c, err := env.Load(*configPath)
	if err != nil {
		return err
	}
	defer c.Close()

	results := c.Registry.ProbeAll(ctx)
	if len(results) == 0 {
		fmt.Fprintln(env.Out, "no models configured")
		return nil
	}
	fmt.Fprintln(env.Out, RenderModels(results, env.Width))
	return nil
}

// deriveCommand запускает Run цикла исправления.
func deriveCommand(ctx context.Context, env *Env, args []string) error {
	var f commonFlags
	fs := newFlagSet("derive", env)
	f.bind(fs)
	if err := parseFlags(fs, args); err != nil || helpRequested(args) {
		return err
	}
	if f.input == "" || f.instruction == "" {
		return fmt.Errorf("%w: -input and -instruction are required", ErrUsage)
	}

	c, err := env.Load(f.config)
	if err != nil {
		return err
	}
	defer c.Close()
	tables, err := c.LoadTables(ctx, f.input)
	if err != nil {
		return err
	}

	req := repair.Request{
		Inputs:       tables,
		TargetFields: splitFields(f.fields),
		Instruction:  f.instruction,
		MaxAttempts:  f.maxAttempts(),
	}

	var res *core.ExecutionResult
	err = withProgress(ctx, env, f.progress(), "deriving", func(emitter events.Emitter) error {
		var runErr error
		res, runErr = c.Derive(ctx, f.model, req, emitter)
		return runErr
	})
	if err != nil {
		return err
	}
	return printResult(env, res, f.asJSON)
}

// refineCommand запускает Refine по сохранённому диалогу.
func refineCommand(ctx context.Context, env *Env, args []string) error {
	var f commonFlags
	fs := newFlagSet("refine", env)
	f.bind(fs)
	dialogRef := fs.String("dialog", "", "previous dialog or candidate JSON (file or s3://key)")
	if err := parseFlags(fs, args); err != nil || helpRequested(args) {
		return err
	}
	if *dialogRef == "" || f.instruction == "" {
		return fmt.Errorf("%w: -dialog and -instruction are required", ErrUsage)
	}

	c, err := env.Load(f.config)
	if err != nil {
		return err
	}
	defer c.Close()
	dialog, err := c.LoadDialog(ctx, *dialogRef)
	if err != nil {
		return err
	}
	req := repair.RefineRequest{
		Dialog:       dialog,
		TargetFields: splitFields(f.fields),
		Instruction:  f.instruction,
		MaxAttempts:  f.maxAttempts(),
	}
	if f.input != "" {
		if req.Inputs, err = c.LoadTables(ctx, f.input); err != nil {
			return err
		}
	}

	var res *core.ExecutionResult
	err = withProgress(ctx, env, f.progress(), "refining", func(emitter events.Emitter) error {
		var runErr error
		res, runErr = c.Refine(ctx, f.model, req, emitter)
		return runErr
	})
	if err != nil {
		return err
	}
	return printResult(env, res, f.asJSON)
}

// tracesCommand печатает сохранённые трейсы: из S3, если настроен
// debug.s3_prefix, иначе из debug.logs_dir.
func tracesCommand(ctx context.Context, env *Env, args []string) error {
	fs := newFlagSet("traces", env)
	configPath := fs.String("config", "", "path to config.yaml")
	limit := fs.Int("n", 20, "how many traces to show")
	if err := parseFlags(fs, args); err != nil || helpRequested(args) {
		return err
	}
	if *limit < 0 {
		return fmt.Errorf("%w: -n must be >= 0", ErrUsage)
	}

	c, err := env.Load(*configPath)
	if err != nil {
		return err
	}
	defer c.Close()
	dbg := c.Config.Debug.GetDefaults()

	var names []string
	if c.S3 != nil && dbg.S3Prefix != "" {
		objects, err := c.S3.ListFiles(ctx, dbg.S3Prefix)
		if err != nil {
			return err
		}
		for _, o := range objects {
			names = append(names, "s3://"+o.Key)
		}
	} else {
		names, err = localTraces(dbg.LogsDir)
		if err != nil {
			return err
		}
	}

	if len(names) == 0 {
		fmt.Fprintln(env.Out, "no traces")
		return nil
	}
	for _, n := range names[:min(len(names), *limit)] {
		fmt.Fprintln(env.Out, n)
	}
	return nil
}

// localTraces возвращает json файлы директории, новые первыми.
func localTraces(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read traces dir: %w", err)
	}

	type item struct {
		path string
		mod  int64
	}
	var items []item
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, item{path: filepath.Join(dir, e.Name()), mod: info.ModTime().UnixNano()})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].mod > items[j].mod })

	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.path
	}
	return names, nil
}

// progressMode — как показывать события цикла.
type progressMode int

const (
	progressPlain progressMode = iota
	progressNone
	progressTUI
)

// withProgress выполняет fn, показывая события цикла в env.Err.
func withProgress(ctx context.Context, env *Env, mode progressMode, title string, fn func(events.Emitter) error) error {
	if mode == progressNone {
		return fn(nil)
	}

	emitter := events.NewChanEmitter(16)
	sub := emitter.Subscribe()
	render := func(ev events.Event) string { return RenderEvent(ev, env.Width) }

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if mode == progressTUI {
			if err := tui.RunProgress(ctx, env.Err, title, sub, render); err != nil {
				utils.Warn("progress view failed", "error", err)
			}
		}
		// Дочитываем остаток, чтобы Emit не блокировался.
		for ev := range sub.Events() {
			if mode == progressPlain {
				fmt.Fprintln(env.Err, render(ev))
			}
		}
	}()

	err := fn(emitter)
	emitter.Close()
	wg.Wait()
	return err
}

func printResult(env *Env, res *core.ExecutionResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(env.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Candidates)
	}
	_, err := io.WriteString(env.Out, RenderCandidates(res.Model, res.Candidates, env.Width))
	return err
}

func helpRequested(args []string) bool {
	for _, a := range args {
		if a == "-h" || a == "-help" || a == "--help" {
			return true
		}
	}
	return false
}
