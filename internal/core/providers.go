package core

import "context"

// Embedder turns texts into fixed-dimension vectors. Length-preserving:
// one vector per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dims() int
}

// Generator produces a completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Reranker scores (query, text) pairs jointly. Raw scores are unbounded;
// normalization is the caller's concern.
type Reranker interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}
