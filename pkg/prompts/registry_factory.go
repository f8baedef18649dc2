package prompts

import (
	"fmt"

	"github.com/ilkoid/formulator/pkg/config"
)

// CreateSourceRegistry создаёт реестр источников промптов из конфигурации.
//
// Fallback Chain:
// 1. Источники из prompt_sources (в порядке из YAML)
// 2. Default source (defaults) — всегда добавляется последним
//
// При ошибке уже открытые источники закрываются.
func CreateSourceRegistry(cfg *config.AppConfig, defaults map[string]string) (*SourceRegistry, error) {
	registry := NewSourceRegistry()

	for i, sourceCfg := range cfg.PromptSources {
		source, err := createSource(sourceCfg, cfg)
		if err != nil {
			registry.Close()
			return nil, fmt.Errorf("failed to create prompt source %d type '%s': %w", i, sourceCfg.Type, err)
		}
		registry.AddSource(source)
	}

	registry.AddSource(NewDefaultSource(defaults))
	return registry, nil
}

// createSource создаёт источник промптов по типу.
func createSource(cfg config.PromptSourceConfig, appCfg *config.AppConfig) (PromptSource, error) {
	switch cfg.Type {
	case "file":
		// Если base_dir не указан, используем cfg.App.PromptsDir (YAML-first)
		baseDir := cfg.Config["base_dir"]
		if baseDir == "" {
			baseDir = appCfg.App.PromptsDir
		}
		if baseDir == "" {
			baseDir = "./prompts"
		}
		return NewFileSource(baseDir), nil

	case "sqlite":
		path := cfg.Config["path"]
		if path == "" {
			return nil, fmt.Errorf("sqlite source requires 'path' config")
		}
		return OpenSQLiteSource(path, cfg.Config["table"])

	default:
		return nil, fmt.Errorf("unknown prompt source type: '%s'", cfg.Type)
	}
}
