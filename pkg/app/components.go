// Package app предоставляет переиспользуемые компоненты для инициализации
// и запуска цикла исправления в разных контекстах (CLI, HTTP и т.д.).
//
// Пакет следует правилам из dev_manifest.md:
//   - Работает через llm.Provider интерфейс (Правило 4)
//   - Использует models.Registry (Правило 3)
//   - Все ошибки возвращаются, никаких panic (Правило 7)
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ilkoid/formulator/pkg/agent"
	"github.com/ilkoid/formulator/pkg/agent/transform"
	"github.com/ilkoid/formulator/pkg/config"
	"github.com/ilkoid/formulator/pkg/credentials"
	"github.com/ilkoid/formulator/pkg/debug"
	"github.com/ilkoid/formulator/pkg/events"
	"github.com/ilkoid/formulator/pkg/executor"
	"github.com/ilkoid/formulator/pkg/llm"
	"github.com/ilkoid/formulator/pkg/models"
	"github.com/ilkoid/formulator/pkg/prompts"
	"github.com/ilkoid/formulator/pkg/repair"
	"github.com/ilkoid/formulator/pkg/s3storage"
	"github.com/ilkoid/formulator/pkg/utils"
)

// Components содержит все компоненты приложения для переиспользования.
type Components struct {
	Config   *config.AppConfig
	Registry *models.Registry
	Executor executor.Executor
	// Traces — nil если debug.enabled выключен
	Traces debug.Sink
	// S3 — nil если s3 не настроен
	S3 s3storage.ClientInterface
	// Prompts — источники промптов; nil означает встроенные промпты
	Prompts *prompts.SourceRegistry
}

// ExecutionResult содержит результаты одного запуска цикла исправления.
//
// Используется для отделения логики вывода от логики выполнения.
type ExecutionResult struct {
	Model      string // Алиас модели, которая реально использовалась
	Candidates []agent.Candidate
	Duration   time.Duration
}

// Leader возвращает первого кандидата.
func (r *ExecutionResult) Leader() (agent.Candidate, bool) {
	return agent.Leader(r.Candidates)
}

// Initialize создаёт и инициализирует все компоненты приложения.
//
// src — источник переменных провайдеров для credentials.from_env
// (обычно credentials.EnvSource{}).
//
// Правило 6: entry points - initialization and orchestration only.
func Initialize(cfg *config.AppConfig, src credentials.Source) (*Components, error) {
	utils.Info("Initializing components", "models", len(cfg.Models.Definitions), "from_env", cfg.Credentials.FromEnv)

	c := &Components{Config: cfg}

	// 1. S3 клиент (опционально)
	if cfg.S3.Configured() {
		s3Client, err := s3storage.New(cfg.S3)
		if err != nil {
			utils.Error("S3 client creation failed", "error", err)
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		c.S3 = s3Client
		utils.Info("S3 client initialized", "bucket", cfg.S3.Bucket)
	}

	// 2. Реестр моделей
	registry, err := models.NewRegistryFromConfig(cfg, src)
	if err != nil {
		utils.Error("Model registry creation failed", "error", err)
		return nil, fmt.Errorf("failed to create model registry: %w", err)
	}
	c.Registry = registry
	utils.Info("Models registered", "names", registry.ListNames())

	// 3. Исполнитель кода
	execCfg := cfg.Executor.GetDefaults()
	exec, err := executor.NewCommandExecutor(execCfg.Command, execCfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create executor: %w", err)
	}
	c.Executor = exec

	// 4. Трейсы
	traces, err := buildTraceSink(cfg.Debug, c.S3)
	if err != nil {
		return nil, err
	}
	c.Traces = traces

	// 5. Промпты: prompt_sources, затем встроенные
	promptRegistry, err := prompts.CreateSourceRegistry(cfg, map[string]string{
		prompts.TransformSystem: transform.SystemPrompt,
	})
	if err != nil {
		utils.Error("Prompt sources creation failed", "error", err)
		return nil, fmt.Errorf("failed to create prompt sources: %w", err)
	}
	c.Prompts = promptRegistry

	return c, nil
}

// Close освобождает ресурсы компонентов (соединения с базами промптов).
func (c *Components) Close() error {
	if c.Prompts == nil {
		return nil
	}
	return c.Prompts.Close()
}

// systemPrompt возвращает системный промпт transform агента из источников.
//
// Пустая строка означает встроенный transform.SystemPrompt.
func (c *Components) systemPrompt() string {
	if c.Prompts == nil {
		return ""
	}
	system, err := c.Prompts.LoadSystem(prompts.TransformSystem)
	if err != nil {
		utils.Warn("Transform system prompt not loaded, using built-in", "error", err)
		return ""
	}
	return system
}

// buildTraceSink собирает sink трейсов: файлы и, если задан s3_prefix, бакет.
func buildTraceSink(dbg config.DebugConfig, store s3storage.ClientInterface) (debug.Sink, error) {
	if !dbg.Enabled {
		return nil, nil
	}
	dbg = dbg.GetDefaults()

	fileSink, err := debug.NewFileSink(dbg.LogsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace sink: %w", err)
	}
	if dbg.S3Prefix == "" || store == nil {
		return fileSink, nil
	}

	utils.Info("Repair traces mirrored to S3", "prefix", dbg.S3Prefix)
	return debug.MultiSink{fileSink, &debug.ObjectSink{Store: store, Prefix: dbg.S3Prefix}}, nil
}

// NewOrchestrator собирает цикл исправления вокруг transform агента.
//
// Если модели alias нет в реестре, берётся models.default.
// Возвращает оркестратор и алиас реально выбранной модели.
func (c *Components) NewOrchestrator(alias string, emitter events.Emitter) (*repair.Orchestrator, string, error) {
	provider, _, name, err := c.Registry.GetWithFallback(alias, c.Config.Models.Default)
	if err != nil {
		return nil, "", err
	}
	if name != alias && alias != "" {
		utils.Warn("Model not found, using default", "requested", alias, "default", name)
	}

	a, err := transform.New(provider, c.Executor, transform.WithSystemPrompt(c.systemPrompt()))
	if err != nil {
		return nil, "", err
	}

	repairCfg := c.Config.Repair.GetDefaults()
	orch, err := repair.New(repair.Config{
		Agent:       a,
		MaxAttempts: repairCfg.MaxAttempts,
		Emitter:     emitter,
		Traces:      c.Traces,
		TraceConfig: debug.RecorderConfig{IncludeDialogs: c.Config.Debug.IncludeDialogs},
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to create orchestrator: %w", err)
	}
	return orch, name, nil
}

// Derive выполняет запрос на новые данные через цикл исправления.
func (c *Components) Derive(ctx context.Context, alias string, req repair.Request, emitter events.Emitter) (*ExecutionResult, error) {
	startTime := time.Now()
	orch, name, err := c.NewOrchestrator(alias, emitter)
	if err != nil {
		return nil, err
	}

	utils.Info("Deriving", "model", name, "instruction", req.Instruction)
	cands, err := orch.Run(ctx, req)
	if err != nil {
		utils.Error("Derive failed", "model", name, "error", err)
		return nil, err
	}
	return &ExecutionResult{Model: name, Candidates: cands, Duration: time.Since(startTime)}, nil
}

// Refine дорабатывает полученный ранее результат по новой инструкции.
func (c *Components) Refine(ctx context.Context, alias string, req repair.RefineRequest, emitter events.Emitter) (*ExecutionResult, error) {
	startTime := time.Now()
	orch, name, err := c.NewOrchestrator(alias, emitter)
	if err != nil {
		return nil, err
	}

	utils.Info("Refining", "model", name, "instruction", req.Instruction, "dialog_len", len(req.Dialog))
	cands, err := orch.Refine(ctx, req)
	if err != nil {
		utils.Error("Refine failed", "model", name, "error", err)
		return nil, err
	}
	return &ExecutionResult{Model: name, Candidates: cands, Duration: time.Since(startTime)}, nil
}

// LoadTables читает JSON массив таблиц [{"name": ..., "rows": [...]}]
// из файла или из s3://key.
func (c *Components) LoadTables(ctx context.Context, ref string) ([]agent.Table, error) {
	raw, err := c.readRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	var tables []agent.Table
	if err := json.Unmarshal(raw, &tables); err != nil {
		return nil, fmt.Errorf("failed to parse tables from %s: %w", ref, err)
	}
	return tables, nil
}

// LoadDialog читает диалог (JSON массив сообщений) из файла или из s3://key.
//
// Принимает как голый массив, так и сохранённого кандидата с полем "dialog".
func (c *Components) LoadDialog(ctx context.Context, ref string) (llm.Dialog, error) {
	raw, err := c.readRef(ctx, ref)
	if err != nil {
		return nil, err
	}

	var dialog llm.Dialog
	if err := json.Unmarshal(raw, &dialog); err == nil {
		return dialog, nil
	}

	var cand agent.Candidate
	if err := json.Unmarshal(raw, &cand); err != nil {
		return nil, fmt.Errorf("failed to parse dialog from %s: %w", ref, err)
	}
	return cand.Dialog, nil
}

func (c *Components) readRef(ctx context.Context, ref string) ([]byte, error) {
	if key, ok := s3storage.ParseURI(ref); ok {
		if c.S3 == nil {
			return nil, fmt.Errorf("cannot read %s: s3 is not configured", ref)
		}
		return c.S3.DownloadFile(ctx, key)
	}

	raw, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ref, err)
	}
	return raw, nil
}
