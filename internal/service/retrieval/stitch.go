package retrieval

import (
	"context"

	"github.com/sandevgo/momentum/internal/core"
	"github.com/sandevgo/momentum/pkg/log"
)

// Scores pinned on stitched-in neighbors regardless of true relevance.
const (
	stitchSimilarity = 0.75
	stitchRecency    = 1.0
)

// stitch pulls in the immediate neighbor chunks of every retrieved chunk
// so the model sees local continuity even when the neighbor scored poorly
// on its own. Neighbors are point-looked-up by their deterministic chunk
// id; a miss is silently skipped.
//
// Each chunk group threads its own budget accumulator seeded from
// currentLength; the aggregate across groups is not re-validated, so the
// true total can exceed maxContextLength when several groups each fit
// individually.
func (e *Engine) stitch(ctx context.Context, fragments []core.ScoredFragment, userID string, maxContextLength, currentLength int) []core.ScoredFragment {
	present := make(map[string]bool, len(fragments))
	groups := make(map[string][]int)

	for _, f := range fragments {
		present[f.ID] = true
		if f.Meta.IsChunk && f.Meta.SourceDocID != "" {
			groups[f.Meta.SourceDocID] = append(groups[f.Meta.SourceDocID], f.Meta.ChunkIndex)
		}
	}

	out := append([]core.ScoredFragment(nil), fragments...)

	for source, indices := range groups {
		groupLength := currentLength
		for _, idx := range indices {
			for _, neighborIdx := range []int{idx - 1, idx + 1} {
				if neighborIdx < 0 {
					continue
				}
				id := core.ChunkID(source, neighborIdx)
				if present[id] {
					continue
				}

				neighbors, err := e.store.Get(ctx, []string{id})
				if err != nil {
					log.FromCtx(ctx).Debug().Err(err).Str("id", id).Msg("neighbor lookup failed")
					continue
				}
				if len(neighbors) == 0 {
					continue
				}

				neighbor := neighbors[0]
				if neighbor.Meta.UserID != userID {
					continue
				}
				if groupLength+charLen(neighbor.Text) > maxContextLength {
					continue
				}

				out = append(out, core.ScoredFragment{
					MemoryFragment: neighbor,
					Similarity:     stitchSimilarity,
					RecencyScore:   stitchRecency,
					CombinedScore:  stitchSimilarity,
				})
				present[id] = true
				groupLength += charLen(neighbor.Text)
			}
		}
	}

	sortByCombined(out)
	return out
}
