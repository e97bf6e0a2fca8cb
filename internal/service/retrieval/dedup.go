package retrieval

import (
	"context"
	"fmt"

	"github.com/sandevgo/momentum/internal/core"
)

// dedup drops near-duplicate fragments by pairwise embedding cosine
// similarity. Texts are re-embedded fresh rather than trusting the vectors
// stored at ingestion. Input must already be sorted best-first: the first
// fragment always survives, and each following one is compared against
// everything kept so far.
func (e *Engine) dedup(ctx context.Context, fragments []core.ScoredFragment, threshold float64) ([]core.ScoredFragment, error) {
	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}

	vectors, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("dedup embedding failed: %w", err)
	}

	kept := []core.ScoredFragment{fragments[0]}
	keptVectors := [][]float32{vectors[0]}

	for i := 1; i < len(fragments); i++ {
		duplicate := false
		for _, kv := range keptVectors {
			if core.CosineSimilarity(vectors[i], kv) > threshold {
				duplicate = true
				break
			}
		}
		if duplicate {
			continue
		}
		kept = append(kept, fragments[i])
		keptVectors = append(keptVectors, vectors[i])
	}

	return kept, nil
}
