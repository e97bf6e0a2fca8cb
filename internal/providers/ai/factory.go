package ai

import (
	"context"
	"fmt"

	"github.com/sandevgo/momentum/internal/config"
	"github.com/sandevgo/momentum/internal/core"
)

// Provider bundles the embedding and generation capabilities a backend
// must offer.
type Provider interface {
	core.Embedder
	core.Generator
}

func NewProvider(ctx context.Context, cfg *config.AIConfig) (Provider, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiProvider(ctx, cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown AI provider: %q", cfg.Provider)
	}
}
