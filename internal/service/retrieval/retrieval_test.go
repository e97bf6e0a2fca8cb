package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/momentum/internal/config"
	"github.com/sandevgo/momentum/internal/core"
)

// fakeEmbedder returns canned vectors per text, falling back to a
// deterministic pseudo-vector so unrelated texts stay dissimilar.
type fakeEmbedder struct {
	vectors map[string][]float32
	fail    bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.fail {
		return nil, fmt.Errorf("embedder down")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
			continue
		}
		v := make([]float32, 4)
		for j, r := range t {
			v[j%4] += float32(r%13) + 1
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dims() int { return 4 }

// fakeStore serves pre-ranked matches and point lookups from memory.
type fakeStore struct {
	matches   []core.QueryMatch
	fragments map[string]core.MemoryFragment
	failQuery bool

	gotFilter core.QueryFilter
	gotN      int
}

func (f *fakeStore) Upsert(context.Context, []core.MemoryFragment) error { return nil }

func (f *fakeStore) Get(_ context.Context, ids []string) ([]core.MemoryFragment, error) {
	var out []core.MemoryFragment
	for _, id := range ids {
		if frag, ok := f.fragments[id]; ok {
			out = append(out, frag)
		}
	}
	return out, nil
}

func (f *fakeStore) Query(_ context.Context, _ []float32, n int, filter core.QueryFilter) ([]core.QueryMatch, error) {
	if f.failQuery {
		return nil, fmt.Errorf("store down")
	}
	f.gotFilter = filter
	f.gotN = n
	if len(f.matches) > n {
		return f.matches[:n], nil
	}
	return f.matches, nil
}

func (f *fakeStore) Find(context.Context, core.QueryFilter) ([]core.MemoryFragment, error) {
	return nil, nil
}

func (f *fakeStore) Delete(context.Context, []string) error { return nil }

func testConfig() *config.RetrievalConfig {
	return &config.RetrievalConfig{
		DefaultK:         5,
		MinSimilarity:    0.65,
		MaxContextLength: 2000,
		RecencyWeight:    0.2,
		DedupThreshold:   0.95,
	}
}

func testEngine(store core.VectorStore, embedder core.Embedder) *Engine {
	e := NewEngine(store, embedder, testConfig())
	e.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return e
}

func match(id, userID, text string, distance float64) core.QueryMatch {
	return core.QueryMatch{
		Fragment: core.MemoryFragment{
			ID:   id,
			Text: text,
			Meta: core.FragmentMeta{UserID: userID, Type: core.TypeContext},
		},
		Distance: distance,
	}
}
