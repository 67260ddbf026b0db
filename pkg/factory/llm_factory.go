package factory

import (
	"fmt"

	"github.com/ilkoid/fabrika/pkg/config"
	"github.com/ilkoid/fabrika/pkg/llm"
	"github.com/ilkoid/fabrika/pkg/llm/openai"
)

// NewLLMProvider создает провайдера на основе конфигурации модели
func NewLLMProvider(modelDef config.ModelDef) (llm.Provider, error) {
	switch modelDef.Provider {
	case "doubao", "deepseek", "openai":
		return openai.NewClient(modelDef), nil

	default:
		return nil, fmt.Errorf("unknown provider type: %s", modelDef.Provider)
	}
}
