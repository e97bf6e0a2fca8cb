package retrieval

import (
	"reflect"
	"testing"

	"github.com/sandevgo/momentum/internal/core"
)

func polishable(id, text string, similarity, combined float64) core.ScoredFragment {
	return core.ScoredFragment{
		MemoryFragment: core.MemoryFragment{ID: id, Text: text},
		Similarity:     similarity,
		CombinedScore:  combined,
	}
}

func TestPolish(t *testing.T) {
	tests := []struct {
		name    string
		in      []core.ScoredFragment
		minSim  float64
		wantIDs []string
	}{
		{
			name:    "short text dropped",
			in:      []core.ScoredFragment{polishable("a", "short", 0.9, 0.9)},
			minSim:  0.5,
			wantIDs: nil,
		},
		{
			name: "low similarity dropped",
			in: []core.ScoredFragment{
				polishable("a", "a reasonably long fragment of text", 0.4, 0.9),
			},
			minSim:  0.65,
			wantIDs: nil,
		},
		{
			name: "low combined score dropped",
			in: []core.ScoredFragment{
				polishable("a", "a reasonably long fragment of text", 0.9, 0.4),
			},
			minSim:  0.65,
			wantIDs: nil,
		},
		{
			name: "formatting noise dropped",
			in: []core.ScoredFragment{
				polishable("a", "=== --- *** ||| === --- *** ||| ===", 0.9, 0.9),
			},
			minSim:  0.5,
			wantIDs: nil,
		},
		{
			name: "survivors sorted by combined score",
			in: []core.ScoredFragment{
				polishable("low", "the first fragment with enough text", 0.8, 0.6),
				polishable("high", "another fragment with enough text too", 0.9, 0.9),
			},
			minSim:  0.5,
			wantIDs: []string{"high", "low"},
		},
		{
			name: "prefix hash dedup",
			in: []core.ScoredFragment{
				polishable("a", "identical prefix fragment body here", 0.9, 0.9),
				polishable("b", "identical   prefix   fragment   body   here", 0.9, 0.8),
			},
			minSim:  0.5,
			wantIDs: []string{"a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Polish(tt.in, tt.minSim)
			var ids []string
			for _, f := range got {
				ids = append(ids, f.ID)
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("Polish ids = %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

func TestPolish_CollapsesWhitespace(t *testing.T) {
	in := []core.ScoredFragment{
		polishable("a", "text   with\n\nlots \t of   whitespace runs", 0.9, 0.9),
	}
	got := Polish(in, 0.5)
	if len(got) != 1 {
		t.Fatalf("got %d fragments, want 1", len(got))
	}
	if got[0].Text != "text with lots of whitespace runs" {
		t.Errorf("whitespace not collapsed: %q", got[0].Text)
	}
}

func TestPolish_Idempotent(t *testing.T) {
	in := []core.ScoredFragment{
		polishable("a", "the quick brown fox jumps over the lazy dog", 0.9, 0.9),
		polishable("b", "short", 0.9, 0.9),
		polishable("c", "the  quick  brown  fox  jumps  over  the  lazy  dog", 0.9, 0.8),
		polishable("d", "a completely different fragment about guitars", 0.7, 0.7),
	}

	once := Polish(in, 0.5)
	twice := Polish(once, 0.5)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Polish is not idempotent:\nonce:  %v\ntwice: %v", once, twice)
	}
}
