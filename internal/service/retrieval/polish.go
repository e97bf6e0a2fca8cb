package retrieval

import (
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/sandevgo/momentum/internal/core"
)

const (
	polishMinLength     = 20
	polishMinCombined   = 0.5
	polishMinAlnumRatio = 0.3
	polishHashPrefixLen = 100
)

// Polish is a coarser quality pass applied by higher-stakes callers after
// full retrieval: it drops short, low-scoring or noisy fragments and
// collapses exact-prefix duplicates by hash, which is much cheaper than
// the embedding-based dedup inside the pipeline. Idempotent.
func Polish(fragments []core.ScoredFragment, minSimilarity float64) []core.ScoredFragment {
	var out []core.ScoredFragment
	seen := make(map[uint64]bool)

	for _, f := range fragments {
		trimmed := strings.TrimSpace(f.Text)
		if charLen(trimmed) < polishMinLength {
			continue
		}
		if f.Similarity < minSimilarity || f.CombinedScore < polishMinCombined {
			continue
		}
		if alnumRatio(trimmed) < polishMinAlnumRatio {
			continue
		}

		f.Text = collapseWhitespace(trimmed)

		h := prefixHash(strings.ToLower(f.Text))
		if seen[h] {
			continue
		}
		seen[h] = true

		out = append(out, f)
	}

	sortByCombined(out)
	return out
}

func alnumRatio(s string) float64 {
	if s == "" {
		return 0
	}
	count := 0
	total := 0
	for _, r := range s {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			count++
		}
	}
	return float64(count) / float64(total)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func prefixHash(s string) uint64 {
	runes := []rune(s)
	if len(runes) > polishHashPrefixLen {
		runes = runes[:polishHashPrefixLen]
	}
	h := fnv.New64a()
	h.Write([]byte(string(runes)))
	return h.Sum64()
}
