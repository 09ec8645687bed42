package provider

import (
	"fmt"

	"omniterm/model"
)

// New creates a provider adapter for the given configuration.
func New(cfg model.ProviderConfig) (model.Provider, error) {
	switch cfg.Kind {
	case model.ProviderOpenAI:
		return NewOpenAIProvider(cfg.Endpoint, cfg.APIKey, cfg.Model)
	case model.ProviderGemini:
		return NewGeminiProvider(cfg.Endpoint, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown provider kind: %s", cfg.Kind)
	}
}
