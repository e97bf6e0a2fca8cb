// Package retrieval implements the context retrieval and ranking engine:
// candidate fetch, similarity/recency scoring, deduplication, optional
// cross-encoder re-ranking, chunk stitching and final assembly.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/sandevgo/momentum/internal/config"
	"github.com/sandevgo/momentum/internal/core"
	"github.com/sandevgo/momentum/internal/providers/rerank"
	"github.com/sandevgo/momentum/pkg/log"
)

// Request holds the parameters of one retrieval call. Build it with
// NewRequest so the documented defaults apply.
type Request struct {
	UserID           string
	Query            string
	K                int
	MinSimilarity    float64
	MaxContextLength int
	RecencyWeight    float64
	// AllowedTypes nil means the query planner decides.
	AllowedTypes []string
	Deduplicate  bool
	UseReranking bool
}

// NewRequest applies the documented defaults. K is left at zero so the
// query planner (or the engine's configured default) decides the result
// count; callers wanting a fixed k set it themselves.
func NewRequest(userID, query string) Request {
	return Request{
		UserID:           userID,
		Query:            query,
		MinSimilarity:    0.65,
		MaxContextLength: 2000,
		RecencyWeight:    0.2,
		Deduplicate:      true,
		UseReranking:     true,
	}
}

// Engine runs the retrieval pipeline. Stateless across calls except for
// the process-wide re-ranker handle, so concurrent use is safe.
type Engine struct {
	store    core.VectorStore
	embedder core.Embedder
	cfg      *config.RetrievalConfig
	now      func() time.Time
}

func NewEngine(store core.VectorStore, embedder core.Embedder, cfg *config.RetrievalConfig) *Engine {
	return &Engine{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Retrieve runs the full pipeline for a user query. An embedding or store
// failure aborts the whole call with no partial results; the re-ranker
// degrades to a pass-through when unavailable.
func (e *Engine) Retrieve(ctx context.Context, req Request) ([]core.ScoredFragment, error) {
	if req.AllowedTypes == nil {
		plannedK, plannedTypes := Plan(req.Query)
		req.AllowedTypes = plannedTypes
		if req.K <= 0 {
			req.K = plannedK
		}
	}
	if req.K <= 0 {
		req.K = e.cfg.DefaultK
	}

	fragments, err := e.fetchAndScore(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.Deduplicate && len(fragments) > 1 {
		fragments, err = e.dedup(ctx, fragments, e.cfg.DedupThreshold)
		if err != nil {
			return nil, err
		}
	}

	if req.UseReranking {
		fragments = e.rerank(ctx, req.Query, fragments, req.K*2)
	}

	fragments = e.stitch(ctx, fragments, req.UserID, req.MaxContextLength, totalChars(fragments))

	if len(fragments) > req.K {
		fragments = fragments[:req.K]
	}

	log.FromCtx(ctx).Debug().
		Str("user_id", req.UserID).
		Int("fragments", len(fragments)).
		Msg("retrieval complete")

	return fragments, nil
}

// fetchAndScore over-fetches nearest neighbors and admits candidates in
// store-native distance order under the character budget, then sorts the
// accepted set by combined score. Admission is decided in distance order:
// a candidate past the budget stop is never revisited, even if its final
// rank would have been higher.
func (e *Engine) fetchAndScore(ctx context.Context, req Request) ([]core.ScoredFragment, error) {
	vectors, err := e.embedder.Embed(ctx, []string{req.Query})
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", err)
	}

	matches, err := e.store.Query(ctx, vectors[0], req.K*3, core.QueryFilter{
		UserID: req.UserID,
		Types:  req.AllowedTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	now := e.now()
	var accepted []core.ScoredFragment
	runningTotal := 0

	for _, m := range matches {
		similarity := 1 - m.Distance
		if similarity < req.MinSimilarity {
			continue
		}

		recency := recencyScore(now, m.Fragment.Meta.Timestamp)
		combined := (1-req.RecencyWeight)*similarity + req.RecencyWeight*recency

		if runningTotal+charLen(m.Fragment.Text) > req.MaxContextLength {
			break
		}

		accepted = append(accepted, core.ScoredFragment{
			MemoryFragment: m.Fragment,
			Similarity:     similarity,
			RecencyScore:   recency,
			CombinedScore:  combined,
		})
		runningTotal += charLen(m.Fragment.Text)
	}

	sortByCombined(accepted)
	return accepted, nil
}

// recencyScore decays with age, bottoming out at 0.1. A missing or
// unparseable timestamp is neutral (1.0), never an error.
func recencyScore(now time.Time, timestamp string) float64 {
	ts, ok := parseTimestamp(timestamp)
	if !ok {
		return 1.0
	}

	ageDays := now.Sub(ts).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}

	score := 1 / (1 + ageDays/30)
	if score < 0.1 {
		return 0.1
	}
	return score
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func sortByCombined(fragments []core.ScoredFragment) {
	sort.SliceStable(fragments, func(i, j int) bool {
		return fragments[i].CombinedScore > fragments[j].CombinedScore
	})
}

// charLen counts characters, not bytes. All context budgets are measured
// in characters.
func charLen(s string) int {
	return utf8.RuneCountInString(s)
}

func totalChars(fragments []core.ScoredFragment) int {
	total := 0
	for _, f := range fragments {
		total += charLen(f.Text)
	}
	return total
}

// rerank blends cross-encoder scores into the running combined score.
// Unavailable or failing reranker means pass-through in input order.
func (e *Engine) rerank(ctx context.Context, query string, fragments []core.ScoredFragment, topK int) []core.ScoredFragment {
	if len(fragments) == 0 {
		return fragments
	}

	handle := rerank.Handle(ctx, e.cfg.RerankerURL)
	if handle == nil {
		return fragments
	}

	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Text
	}

	scores, err := handle.Score(ctx, query, texts)
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("rerank scoring failed, keeping vector order")
		return fragments
	}

	for i := range fragments {
		normalized := clip((scores[i]+1)/2, 0, 1)
		fragments[i].CombinedScore = 0.8*fragments[i].CombinedScore + 0.2*normalized
		fragments[i].RerankScore = &normalized
	}

	sortByCombined(fragments)
	if len(fragments) > topK {
		fragments = fragments[:topK]
	}
	return fragments
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
