package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/heatsheet/internal/model"
)

// NewProvider creates an annotation provider from configuration. A nil
// provider with nil error means annotation is disabled.
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, ollama)", config.Provider)
	}
}

// ConfigFromModel converts the process configuration into a provider
// config. Proxy settings are shared with the crawler so the annotator
// reaches the network the same way.
func ConfigFromModel(llmCfg model.LLMConfig, httpCfg model.HTTPConfig) Config {
	cfg := DefaultConfig()
	cfg.Provider = llmCfg.Provider
	cfg.Model = llmCfg.Model
	cfg.APIKey = llmCfg.APIKey
	cfg.BaseURL = llmCfg.BaseURL
	if llmCfg.Timeout > 0 {
		cfg.Timeout = llmCfg.Timeout
	}
	if llmCfg.MaxTokens > 0 {
		cfg.MaxTokens = llmCfg.MaxTokens
	}
	cfg.HTTPProxy = httpCfg.HTTPProxy
	cfg.HTTPSProxy = httpCfg.HTTPSProxy
	cfg.NoProxy = httpCfg.NoProxy
	return cfg
}
