package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ilkoid/formulator/pkg/llm"
)

// AppConfig — корневая структура конфигурации.
// Она зеркалит структуру config.yaml.
type AppConfig struct {
	Models      ModelsConfig      `yaml:"models"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Repair      RepairConfig      `yaml:"repair"`
	Executor    ExecutorConfig    `yaml:"executor"`
	Debug       DebugConfig       `yaml:"debug"`
	S3          S3Config          `yaml:"s3"`
	App         AppSpecific       `yaml:"app"`

	// PromptSources — источники промптов по порядку приоритета.
	// Встроенные промпты всегда добавляются последними.
	PromptSources []PromptSourceConfig `yaml:"prompt_sources"`
}

// PromptSourceConfig — один источник промптов.
//
// Type: "file" (config: base_dir) или "sqlite" (config: path, table).
type PromptSourceConfig struct {
	Type   string            `yaml:"type"`
	Config map[string]string `yaml:"config"`
}

// ModelsConfig — настройки AI моделей.
type ModelsConfig struct {
	Default     string              `yaml:"default"`     // Алиас по умолчанию (например, "gpt-4o")
	Definitions map[string]ModelDef `yaml:"definitions"` // Словарь определений моделей
}

// ModelDef — параметры конкретной модели.
type ModelDef struct {
	Endpoint    string        `yaml:"endpoint"`    // "openai", "azure", "anthropic", "gemini", "ollama", "generic"
	Model       string        `yaml:"model"`       // Имя модели или deployment'а
	APIKey      string        `yaml:"api_key"`     // Поддерживает ${VAR}
	APIBase     string        `yaml:"api_base"`    // Обязателен для azure и generic
	APIVersion  string        `yaml:"api_version"` // Только azure
	MaxTokens   int           `yaml:"max_tokens"`
	Temperature *float64      `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`    // Go умеет парсить строки вида "60s", "1m"
	RateLimit   int           `yaml:"rate_limit"` // Запросов в минуту, 0 — без ограничения
	BurstLimit  int           `yaml:"burst_limit"`
}

// Selection превращает определение в llm.ModelSelection.
func (m ModelDef) Selection() (llm.ModelSelection, error) {
	return llm.NewModelSelection(m.Endpoint, m.Model, m.APIKey, m.APIBase, m.APIVersion)
}

// GenerateOptions возвращает переопределения параметров сэмплирования.
func (m ModelDef) GenerateOptions() []llm.GenerateOption {
	var opts []llm.GenerateOption
	if m.Temperature != nil {
		opts = append(opts, llm.WithTemperature(*m.Temperature))
	}
	if m.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(m.MaxTokens))
	}
	return opts
}

// CredentialsConfig — откуда брать модели, не описанные в definitions.
type CredentialsConfig struct {
	// FromEnv включает обнаружение моделей по переменным <PROVIDER>_ENABLED,
	// <PROVIDER>_API_KEY, <PROVIDER>_API_BASE, <PROVIDER>_API_VERSION, <PROVIDER>_MODELS.
	FromEnv bool `yaml:"from_env"`
}

// RepairConfig — настройки цикла исправления кода.
type RepairConfig struct {
	// MaxAttempts — число followup попыток после первой. nil — значение по умолчанию.
	MaxAttempts *int `yaml:"max_attempts"`
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *RepairConfig) GetDefaults() RepairConfig {
	result := *c
	if result.MaxAttempts == nil {
		n := 1
		result.MaxAttempts = &n
	}
	return result
}

// ExecutorConfig — внешний интерпретатор для сгенерированного кода.
type ExecutorConfig struct {
	Command []string      `yaml:"command"` // Например ["python3", "runner.py"]
	Timeout time.Duration `yaml:"timeout"`
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *ExecutorConfig) GetDefaults() ExecutorConfig {
	result := *c
	if len(result.Command) == 0 {
		result.Command = []string{"python3", "-c", DefaultRunnerScript}
	}
	if result.Timeout == 0 {
		result.Timeout = 30 * time.Second
	}
	return result
}

// DefaultRunnerScript читает {"code", "inputs"} со stdin, выполняет функцию
// transform_data(*dataframes) и печатает {"rows": [...]} в stdout.
const DefaultRunnerScript = `
import json, sys
import pandas as pd
req = json.load(sys.stdin)
frames = [pd.DataFrame(t.get("rows") or []) for t in req.get("inputs", [])]
scope = {}
exec(req["code"], scope)
out = scope["transform_data"](*frames)
json.dump({"rows": json.loads(out.to_json(orient="records"))}, sys.stdout)
`

// DebugConfig — запись трейсов цикла исправления.
type DebugConfig struct {
	Enabled bool   `yaml:"enabled"`
	LogsDir string `yaml:"logs_dir"`
	// S3Prefix — если задан, трейсы дополнительно уходят в бакет s3 под этим префиксом.
	S3Prefix       string `yaml:"s3_prefix"`
	IncludeDialogs bool   `yaml:"include_dialogs"`
}

// GetDefaults возвращает дефолтные значения для незаполненных полей.
func (c *DebugConfig) GetDefaults() DebugConfig {
	result := *c
	if result.LogsDir == "" {
		result.LogsDir = "./debug_logs"
	}
	return result
}

// S3Config — настройки объектного хранилища.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
}

// Configured сообщает, что хранилище задано.
func (c S3Config) Configured() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// AppSpecific — общие настройки приложения.
type AppSpecific struct {
	Debug      bool   `yaml:"debug"`
	LogPrefix  string `yaml:"log_prefix"`
	PromptsDir string `yaml:"prompts_dir"` // base_dir по умолчанию для file источника
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
func Load(path string) (*AppConfig, error) {
	// 1. Проверяем существование файла
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	// 2. Читаем файл целиком
	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(rawBytes)
}

// Parse разбирает содержимое config.yaml.
func Parse(raw []byte) (*AppConfig, error) {
	// os.ExpandEnv заменяет ${VAR} или $VAR на значение из системы.
	contentWithEnv := os.ExpandEnv(string(raw))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate проверяет обязательные поля.
func (c *AppConfig) validate() error {
	// При credentials.from_env default может ссылаться на модель из окружения
	if c.Models.Default != "" && !c.Credentials.FromEnv {
		if _, ok := c.Models.Definitions[c.Models.Default]; !ok {
			return fmt.Errorf("default model '%s' is not defined in definitions", c.Models.Default)
		}
	}
	for name, def := range c.Models.Definitions {
		if _, err := def.Selection(); err != nil {
			return fmt.Errorf("models.definitions.%s: %w", name, err)
		}
		if def.RateLimit < 0 {
			return fmt.Errorf("models.definitions.%s: rate_limit must not be negative", name)
		}
	}
	if c.Repair.MaxAttempts != nil && *c.Repair.MaxAttempts < 0 {
		return &llm.ConfigurationError{Field: "repair.max_attempts", Reason: "must not be negative"}
	}
	if c.Debug.S3Prefix != "" && !c.S3.Configured() {
		return fmt.Errorf("debug.s3_prefix requires s3.endpoint and s3.bucket")
	}
	for i, src := range c.PromptSources {
		switch src.Type {
		case "file", "sqlite":
		default:
			return fmt.Errorf("prompt_sources[%d]: unknown type '%s'", i, src.Type)
		}
		if src.Type == "sqlite" && src.Config["path"] == "" {
			return fmt.Errorf("prompt_sources[%d]: sqlite source requires 'path'", i)
		}
	}
	return nil
}

// GetModel возвращает определение модели по имени или модель по умолчанию.
func (c *AppConfig) GetModel(name string) (ModelDef, bool) {
	if name == "" {
		name = c.Models.Default
	}
	m, ok := c.Models.Definitions[name]
	return m, ok
}
