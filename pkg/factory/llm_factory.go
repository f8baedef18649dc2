// Package factory собирает llm.Provider из описания модели.
package factory

import (
	"fmt"

	"github.com/ilkoid/formulator/pkg/config"
	"github.com/ilkoid/formulator/pkg/llm"
	"github.com/ilkoid/formulator/pkg/llm/openai"
)

// NewLLMProvider создает провайдера на основе конфигурации модели.
//
// Клиент один для всех endpoint'ов: различия живут в профиле.
// Если задан rate_limit, клиент оборачивается в llm.RateLimited.
func NewLLMProvider(modelDef config.ModelDef, opts ...openai.Option) (llm.Provider, error) {
	sel, err := modelDef.Selection()
	if err != nil {
		return nil, fmt.Errorf("model selection: %w", err)
	}

	clientOpts := []openai.Option{openai.WithGenerateOptions(modelDef.GenerateOptions()...)}
	if modelDef.Timeout > 0 {
		clientOpts = append(clientOpts, openai.WithTimeout(modelDef.Timeout))
	}
	clientOpts = append(clientOpts, opts...)

	client, err := openai.NewClient(sel, clientOpts...)
	if err != nil {
		return nil, err
	}

	return llm.NewRateLimited(client, modelDef.RateLimit, modelDef.BurstLimit), nil
}

// NewFromSelection создает провайдера для модели, найденной не в конфиге
// (например, через переменные окружения).
func NewFromSelection(sel llm.ModelSelection, opts ...openai.Option) (llm.Provider, error) {
	return NewLLMProvider(config.ModelDef{
		Endpoint:   string(sel.Endpoint),
		Model:      sel.Model,
		APIKey:     sel.APIKey,
		APIBase:    sel.APIBase,
		APIVersion: sel.APIVersion,
	}, opts...)
}
