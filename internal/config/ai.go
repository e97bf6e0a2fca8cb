package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/momentum/pkg/log"
)

type AIConfig struct {
	// Provider selects the embedding/generation backend: "gemini" or "openai".
	Provider string `env:"MOMENTUM_AI_PROVIDER" envDefault:"gemini"`

	GeminiAPIKey   string `env:"GEMINI_API_KEY"`
	GeminiModel    string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiFallback string `env:"GEMINI_FALLBACK_MODEL" envDefault:"gemini-2.5-flash-lite"`
	EmbeddingModel string `env:"MOMENTUM_EMBEDDING_MODEL" envDefault:"text-embedding-004"`
	EmbeddingDims  int    `env:"MOMENTUM_EMBEDDING_DIMS" envDefault:"768"`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	Temperature float32 `env:"MOMENTUM_TEMPERATURE" envDefault:"0.1"`
}

func NewAIConfig(ctx context.Context) *AIConfig {
	c := &AIConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse AI config")
	}
	return c
}
