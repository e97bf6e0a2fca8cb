package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/momentum/pkg/log"
)

type RetrievalConfig struct {
	DefaultK         int     `env:"MOMENTUM_RETRIEVAL_K" envDefault:"5"`
	MinSimilarity    float64 `env:"MOMENTUM_MIN_SIMILARITY" envDefault:"0.65"`
	MaxContextLength int     `env:"MOMENTUM_MAX_CONTEXT_LENGTH" envDefault:"2000"`
	RecencyWeight    float64 `env:"MOMENTUM_RECENCY_WEIGHT" envDefault:"0.2"`
	DedupThreshold   float64 `env:"MOMENTUM_DEDUP_THRESHOLD" envDefault:"0.95"`

	// RerankerURL points at a cross-encoder scoring endpoint. Empty means
	// the re-ranking pass is disabled for the whole process.
	RerankerURL string `env:"MOMENTUM_RERANKER_URL"`
}

func NewRetrievalConfig(ctx context.Context) *RetrievalConfig {
	c := &RetrievalConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Retrieval config")
	}
	return c
}
