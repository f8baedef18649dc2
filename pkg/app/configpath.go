package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ilkoid/formulator/pkg/config"
)

// ConfigFileName — имя файла конфигурации по умолчанию.
const ConfigFileName = "config.yaml"

// ConfigPathFinder определяет стратегию поиска пути к config.yaml.
//
// По умолчанию используется DefaultConfigPathFinder, но можно
// реализовать свою стратегию для тестов или специальных случаев.
type ConfigPathFinder interface {
	FindConfigPath() string
}

// DefaultConfigPathFinder реализует стандартную стратегию поиска config.yaml.
//
// Порядок поиска:
// 1. Флаг -config (если указан)
// 2. Текущая директория (./config.yaml)
// 3. Директория бинарника
// 4. Родительские директории (для запуска из cmd/formulator/)
type DefaultConfigPathFinder struct {
	// ConfigFlag - значение флага -config, если указан
	ConfigFlag string
}

// FindConfigPath находит путь к config.yaml.
func (f *DefaultConfigPathFinder) FindConfigPath() string {
	// 1. Флаг имеет приоритет
	if f.ConfigFlag != "" {
		return resolveAbsPath(f.ConfigFlag)
	}

	// 2. Текущая директория
	if _, err := os.Stat(ConfigFileName); err == nil {
		return resolveAbsPath(ConfigFileName)
	}

	// 3. Директория бинарника
	if cfgPath := binaryDirConfig(); cfgPath != "" {
		return cfgPath
	}

	// 4. Родительские директории
	for _, cfgPath := range []string{
		filepath.Join("..", "..", ConfigFileName),
		filepath.Join("..", ConfigFileName),
	} {
		if _, err := os.Stat(cfgPath); err == nil {
			return resolveAbsPath(cfgPath)
		}
	}

	// Возвращаем дефолтный путь (даже если не существует)
	return resolveAbsPath(ConfigFileName)
}

// StandaloneConfigPathFinder реализует строгую стратегию поиска для
// бинарника, который распространяется вместе с config.yaml.
//
// Правила:
// 1. Если указан флаг -config — использует его
// 2. Ищет config.yaml в той же папке где находится бинарник
// 3. НЕ ищет в текущей директории или родительских
type StandaloneConfigPathFinder struct {
	ConfigFlag string
}

// FindConfigPath возвращает пустую строку если файл не найден
// (ошибка будет в InitializeConfigStrict).
func (f *StandaloneConfigPathFinder) FindConfigPath() string {
	if f.ConfigFlag != "" {
		return resolveAbsPath(f.ConfigFlag)
	}
	return binaryDirConfig()
}

// InitializeConfig инициализирует и загружает конфигурацию.
//
// Правило 2: все настройки в YAML с поддержкой ENV-переменных.
func InitializeConfig(finder ConfigPathFinder) (*config.AppConfig, string, error) {
	cfgPath := finder.FindConfigPath()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config from %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// InitializeConfigStrict загружает конфигурацию со строгими проверками.
//
// В отличие от InitializeConfig:
// - Падает если config.yaml не найден
// - Падает если в конфиге нет ни одной модели и не включён credentials.from_env
func InitializeConfigStrict(finder ConfigPathFinder) (*config.AppConfig, string, error) {
	cfgPath := finder.FindConfigPath()
	if cfgPath == "" {
		return nil, "", fmt.Errorf("config.yaml not found\n\n" +
			"Place config.yaml next to the binary or use -config flag.")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config from %s: %w", cfgPath, err)
	}

	if len(cfg.Models.Definitions) == 0 && !cfg.Credentials.FromEnv {
		return nil, "", fmt.Errorf("no models configured in %s: add models.definitions or set credentials.from_env", cfgPath)
	}

	return cfg, cfgPath, nil
}

func binaryDirConfig() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	cfgPath := filepath.Join(filepath.Dir(execPath), ConfigFileName)
	if _, err := os.Stat(cfgPath); err != nil {
		return ""
	}
	return cfgPath
}

// resolveAbsPath преобразует путь в абсолютный (если это не уже абсолютный путь).
func resolveAbsPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
