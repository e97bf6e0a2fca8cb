package core

import "context"

// QueryFilter restricts store operations to a metadata partition.
// UserID is exact equality and always required; Types is set membership;
// CourseID is exact equality. Non-zero conditions are ANDed.
type QueryFilter struct {
	UserID   string
	Types    []string
	CourseID string
}

// QueryMatch pairs a fragment with its embedding distance to the query
// vector. Cosine distance, so lower is better.
type QueryMatch struct {
	Fragment MemoryFragment
	Distance float64
}

// VectorStore persists fragments with their embeddings and serves
// nearest-neighbor queries over them.
type VectorStore interface {
	Upsert(ctx context.Context, fragments []MemoryFragment) error
	// Get returns the fragments matching ids; missing ids are skipped.
	Get(ctx context.Context, ids []string) ([]MemoryFragment, error)
	// Query returns up to n matches ordered by ascending distance.
	Query(ctx context.Context, vector []float32, n int, filter QueryFilter) ([]QueryMatch, error)
	// Find returns all fragments matching filter, no ranking.
	Find(ctx context.Context, filter QueryFilter) ([]MemoryFragment, error)
	Delete(ctx context.Context, ids []string) error
}
