package core

import "fmt"

// Memory fragment categories. A fragment always belongs to exactly one user.
const (
	TypeChat       = "chat"
	TypeContext    = "context"
	TypeOnboarding = "onboarding"
	TypePlan       = "plan"
	TypeSyllabus   = "syllabus"
)

// FragmentMeta is the metadata stored alongside every fragment.
// Timestamp is kept as the stored ISO-8601 string and parsed lazily;
// an unparseable value degrades to neutral recency, never an error.
type FragmentMeta struct {
	UserID      string `json:"user_id"`
	Type        string `json:"type"`
	Timestamp   string `json:"timestamp,omitempty"`
	Priority    string `json:"priority,omitempty"`
	CourseID    string `json:"course_id,omitempty"`
	IsChunk     bool   `json:"is_chunk,omitempty"`
	SourceDocID string `json:"source_doc_id,omitempty"`
	ChunkIndex  int    `json:"chunk_index,omitempty"`
	TotalChunks int    `json:"total_chunks,omitempty"`
}

// MemoryFragment is the atomic unit of stored user context.
type MemoryFragment struct {
	ID        string       `json:"id"`
	Text      string       `json:"text"`
	Embedding []float32    `json:"-"`
	Meta      FragmentMeta `json:"meta"`
}

// ChunkID builds the deterministic id of chunk i of a source document.
// Neighbor chunks are point-looked-up by this id, no search involved.
func ChunkID(sourceDocID string, i int) string {
	return fmt.Sprintf("%s_chunk_%d", sourceDocID, i)
}

// ScoredFragment carries the ranking signals computed by the retrieval
// pipeline. RerankScore is only set when the cross-encoder pass ran.
type ScoredFragment struct {
	MemoryFragment
	Similarity    float64  `json:"similarity"`
	RecencyScore  float64  `json:"recency_score"`
	CombinedScore float64  `json:"combined_score"`
	RerankScore   *float64 `json:"rerank_score,omitempty"`
}

// UserProfile is the structured profile rendered into the prompt context.
type UserProfile struct {
	EducationLevel string `json:"education_level,omitempty"`
	Institution    string `json:"institution,omitempty"`
	Major          string `json:"major,omitempty"`
	Year           string `json:"year,omitempty"`
}

// CompletionHistory summarizes past task completion behavior.
type CompletionHistory struct {
	AvgCompletionRate float64  `json:"avg_completion_rate"`
	DailyCapacityMin  int      `json:"daily_capacity_minutes"`
	PreferredTimes    []string `json:"preferred_times,omitempty"`
}
