package retrieval

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/sandevgo/momentum/internal/core"
)

func TestFetchAndScore_SimilarityFloor(t *testing.T) {
	store := &fakeStore{
		matches: []core.QueryMatch{
			match("a", "u1", "first fragment text", 0.1),  // sim 0.9
			match("b", "u1", "second fragment text", 0.3), // sim 0.7
			match("c", "u1", "third fragment text", 0.5),  // sim 0.5, below floor
		},
	}
	e := testEngine(store, &fakeEmbedder{})

	req := NewRequest("u1", "query")
	req.K = 5
	req.AllowedTypes = []string{"context"}
	got, err := e.fetchAndScore(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d fragments, want 2", len(got))
	}
	for _, f := range got {
		if f.Similarity < req.MinSimilarity {
			t.Errorf("fragment %s similarity %.2f below floor", f.ID, f.Similarity)
		}
	}
}

func TestFetchAndScore_OverFetchFactor(t *testing.T) {
	store := &fakeStore{}
	e := testEngine(store, &fakeEmbedder{})

	req := NewRequest("u1", "query")
	req.K = 4
	req.AllowedTypes = []string{"context"}
	if _, err := e.fetchAndScore(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	if store.gotN != 12 {
		t.Errorf("over-fetch n = %d, want k*3 = 12", store.gotN)
	}
	if store.gotFilter.UserID != "u1" {
		t.Errorf("filter user = %q, want u1", store.gotFilter.UserID)
	}
}

func TestFetchAndScore_BudgetStopsInDistanceOrder(t *testing.T) {
	// The third candidate overflows the budget and stops the scan; the
	// fourth is never reached even though its score would rank it higher.
	longText := make([]byte, 90)
	for i := range longText {
		longText[i] = 'x'
	}
	store := &fakeStore{
		matches: []core.QueryMatch{
			match("a", "u1", string(longText), 0.2),
			match("b", "u1", string(longText), 0.25),
			match("c", "u1", string(longText), 0.3),
			match("d", "u1", "tiny", 0.05), // best distance would score highest
		},
	}
	e := testEngine(store, &fakeEmbedder{})

	req := NewRequest("u1", "query")
	req.K = 5
	req.AllowedTypes = []string{"context"}
	req.MaxContextLength = 200

	got, err := e.fetchAndScore(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d fragments, want 2 (scan stops at budget)", len(got))
	}
	for _, f := range got {
		if f.ID == "d" {
			t.Error("candidate past the budget stop must not be admitted")
		}
	}
}

func TestFetchAndScore_SortedByCombinedScore(t *testing.T) {
	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	fresh := time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)

	m1 := match("old", "u1", "older but closer", 0.1)
	m1.Fragment.Meta.Timestamp = old
	m2 := match("fresh", "u1", "fresher but farther", 0.15)
	m2.Fragment.Meta.Timestamp = fresh

	store := &fakeStore{matches: []core.QueryMatch{m1, m2}}
	e := testEngine(store, &fakeEmbedder{})

	req := NewRequest("u1", "query")
	req.K = 5
	req.AllowedTypes = []string{"context"}
	req.RecencyWeight = 0.5

	got, err := e.fetchAndScore(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d fragments, want 2", len(got))
	}
	if got[0].CombinedScore < got[1].CombinedScore {
		t.Error("result not sorted by combined score descending")
	}
	if got[0].ID != "fresh" {
		t.Errorf("heavy recency weight should rank the fresh fragment first, got %s", got[0].ID)
	}
}

func TestRecencyScore(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		timestamp string
		want      float64
	}{
		{"today", "2025-06-01T00:00:00Z", 1.0},
		{"thirty days old", "2025-05-02T00:00:00Z", 0.5},
		{"ancient", "2015-06-01T00:00:00Z", 0.1},
		{"unparseable", "not-a-date", 1.0},
		{"missing", "", 1.0},
		{"future clamps", "2025-07-01T00:00:00Z", 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := recencyScore(now, tt.timestamp)
			if math.Abs(got-tt.want) > 0.01 {
				t.Errorf("recencyScore(%q) = %.3f, want %.3f", tt.timestamp, got, tt.want)
			}
		})
	}
}

func TestRetrieve_ResultBoundedByK(t *testing.T) {
	var matches []core.QueryMatch
	for i := 0; i < 10; i++ {
		matches = append(matches, match(
			string(rune('a'+i)), "u1", "fragment number text here", 0.1+float64(i)*0.02))
	}
	store := &fakeStore{matches: matches}
	e := testEngine(store, &fakeEmbedder{})

	req := NewRequest("u1", "query")
	req.K = 3
	req.AllowedTypes = []string{"context"}
	req.Deduplicate = false
	req.UseReranking = false

	got, err := e.Retrieve(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) > 3 {
		t.Errorf("len(result) = %d, want <= k = 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].CombinedScore > got[i-1].CombinedScore {
			t.Error("result not in descending combined-score order")
		}
	}
}

func TestRetrieve_EndToEndRankingAndFloor(t *testing.T) {
	distances := []float64{0.1, 0.15, 0.3, 0.4, 0.45, 0.5, 0.55, 0.6, 0.7, 0.8}
	var matches []core.QueryMatch
	for i, d := range distances {
		matches = append(matches, match(
			fmt.Sprintf("frag-%d", i), "u1", fmt.Sprintf("note number %d about algebra", i), d))
	}
	store := &fakeStore{matches: matches}
	e := testEngine(store, &fakeEmbedder{})

	req := NewRequest("u1", "algebra notes")
	req.K = 3
	req.AllowedTypes = []string{"context"}
	req.Deduplicate = false
	req.UseReranking = false

	got, err := e.Retrieve(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 || len(got) > 3 {
		t.Fatalf("len(result) = %d, want 1..3", len(got))
	}
	for i, f := range got {
		if f.Similarity < 0.65 {
			t.Errorf("fragment %s similarity %.2f below the floor", f.ID, f.Similarity)
		}
		if i > 0 && f.CombinedScore > got[i-1].CombinedScore {
			t.Error("result not in descending combined-score order")
		}
	}
}

func TestRetrieve_StoreFailureAbortsCall(t *testing.T) {
	store := &fakeStore{failQuery: true}
	e := testEngine(store, &fakeEmbedder{})

	req := NewRequest("u1", "query")
	req.AllowedTypes = []string{"context"}
	if _, err := e.Retrieve(context.Background(), req); err == nil {
		t.Fatal("expected store failure to abort retrieval")
	}
}

func TestRetrieve_EmbedderFailureAbortsCall(t *testing.T) {
	e := testEngine(&fakeStore{}, &fakeEmbedder{fail: true})

	req := NewRequest("u1", "query")
	req.AllowedTypes = []string{"context"}
	if _, err := e.Retrieve(context.Background(), req); err == nil {
		t.Fatal("expected embedder failure to abort retrieval")
	}
}

func TestRetrieve_PlannerKApplies(t *testing.T) {
	tests := []struct {
		name  string
		query string
		wantN int
	}{
		{"small talk shrinks k", "hi", 6},
		{"analytical query grows k", "explain how derivatives work", 21},
		{"plain query keeps the default", "calculus notes", 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			e := testEngine(store, &fakeEmbedder{})

			// K is left unset, so the planner's k drives the over-fetch.
			req := NewRequest("u1", tt.query)
			if _, err := e.Retrieve(context.Background(), req); err != nil {
				t.Fatal(err)
			}
			if store.gotN != tt.wantN {
				t.Errorf("over-fetch n = %d, want %d", store.gotN, tt.wantN)
			}
		})
	}
}

func TestRetrieve_ExplicitKOverridesPlanner(t *testing.T) {
	store := &fakeStore{}
	e := testEngine(store, &fakeEmbedder{})

	req := NewRequest("u1", "hi")
	req.K = 4
	if _, err := e.Retrieve(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if store.gotN != 12 {
		t.Errorf("over-fetch n = %d, want k*3 = 12", store.gotN)
	}
}

func TestRetrieve_ConfigDefaultKWhenTypesPinned(t *testing.T) {
	store := &fakeStore{}
	e := testEngine(store, &fakeEmbedder{})

	// Pinned types skip the planner; an unset K falls back to the
	// configured default.
	req := NewRequest("u1", "hi")
	req.AllowedTypes = []string{"context"}
	if _, err := e.Retrieve(context.Background(), req); err != nil {
		t.Fatal(err)
	}
	if store.gotN != 15 {
		t.Errorf("over-fetch n = %d, want DefaultK*3 = 15", store.gotN)
	}
}

func TestRetrieve_PlannerFillsTypes(t *testing.T) {
	store := &fakeStore{}
	e := testEngine(store, &fakeEmbedder{})

	req := NewRequest("u1", "I want to learn piano")
	req.AllowedTypes = nil
	if _, err := e.Retrieve(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	found := false
	for _, typ := range store.gotFilter.Types {
		if typ == core.TypeChat {
			found = true
		}
	}
	if !found {
		t.Errorf("planner types not applied, filter = %v", store.gotFilter.Types)
	}
}
