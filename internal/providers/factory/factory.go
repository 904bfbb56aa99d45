package factory

import (
	"fmt"

	"github.com/mindstash/mindstash-backend/internal/config"
	"github.com/mindstash/mindstash-backend/internal/providers"
	"github.com/mindstash/mindstash-backend/internal/providers/anthropic"
	"github.com/mindstash/mindstash-backend/internal/providers/openai"
)

// CreateProvider creates a provider instance based on configuration
func CreateProvider(id string, cfg config.ProviderConfig) (providers.Provider, error) {
	switch cfg.Type {
	case "anthropic":
		return anthropic.NewProvider(id, cfg)
	case "openai":
		return openai.NewProvider(id, cfg)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cfg.Type)
	}
}
