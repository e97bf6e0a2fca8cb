package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/sandevgo/momentum/internal/config"
	"github.com/sandevgo/momentum/pkg/log"
	"github.com/sandevgo/momentum/pkg/retry"
)

// GeminiProvider serves both embeddings and text generation through the
// Google GenAI API. Generation falls back to the lite model when the
// primary model errors (rate limits mostly).
type GeminiProvider struct {
	client        *genai.Client
	model         string
	fallbackModel string
	embedModel    string
	dims          int
	temperature   float32
	retrier       *retry.Retrier
}

func NewGeminiProvider(ctx context.Context, cfg *config.AIConfig) (*GeminiProvider, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiProvider{
		client:        client,
		model:         cfg.GeminiModel,
		fallbackModel: cfg.GeminiFallback,
		embedModel:    cfg.EmbeddingModel,
		dims:          cfg.EmbeddingDims,
		temperature:   cfg.Temperature,
		retrier:       retry.NewDefaultRetrier(),
	}, nil
}

func (p *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	em := p.client.EmbeddingModel(p.embedModel)

	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding failed: %w", err)
	}
	if len(res.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d texts", len(res.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(res.Embeddings))
	for i, emb := range res.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (p *GeminiProvider) Dims() int { return p.dims }

func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	text, err := p.generateWith(ctx, p.model, prompt)
	if err == nil {
		return text, nil
	}

	log.FromCtx(ctx).Warn().Err(err).
		Str("model", p.model).
		Str("fallback", p.fallbackModel).
		Msg("primary model failed, retrying with fallback")

	retryErr := p.retrier.Do(ctx, func() error {
		text, err = p.generateWith(ctx, p.fallbackModel, prompt)
		return err
	})
	if retryErr != nil {
		return "", fmt.Errorf("gemini generation failed: %w", retryErr)
	}
	return text, nil
}

func (p *GeminiProvider) generateWith(ctx context.Context, model, prompt string) (string, error) {
	gm := p.client.GenerativeModel(model)
	gm.SetTemperature(p.temperature)

	resp, err := gm.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no candidates returned")
	}

	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			out += string(t)
		}
	}
	return out, nil
}
