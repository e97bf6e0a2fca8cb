package ingest

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tk     *tiktoken.Tiktoken
	tkOnce sync.Once
)

type Chunk struct {
	Text      string
	TokenSize int
	Index     int
}

type ChunkerConfig struct {
	MaxChars     int
	OverlapChars int
}

// DefaultChunkerConfig sizes chunks for embedding models with small
// context windows. Overlap keeps boundary sentences retrievable from
// either side of a split.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MaxChars:     1000,
		OverlapChars: 200,
	}
}

// Separators tried in order when a piece is too large. Paragraph breaks
// first, then lines, sentences, words.
var separators = []string{"\n\n", "\n", ". ", " "}

// ChunkText splits text into overlapping chunks of at most cfg.MaxChars
// characters, preferring to break at the coarsest separator that keeps
// pieces under the limit. Text that already fits comes back as a single
// chunk.
func ChunkText(text string, cfg ChunkerConfig) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	pieces := splitRecursive(text, cfg.MaxChars, 0)
	merged := mergeWithOverlap(pieces, cfg)

	chunks := make([]Chunk, 0, len(merged))
	for i, m := range merged {
		chunks = append(chunks, Chunk{
			Text:      m,
			TokenSize: countTokens(m),
			Index:     i,
		})
	}
	return chunks
}

// splitRecursive breaks text on separators[sepIdx], recursing into the
// next finer separator for any piece still over the limit. Past the last
// separator it falls back to hard slicing by runes.
func splitRecursive(text string, maxChars, sepIdx int) []string {
	if utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}
	if sepIdx >= len(separators) {
		return sliceRunes(text, maxChars)
	}

	sep := separators[sepIdx]
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return splitRecursive(text, maxChars, sepIdx+1)
	}

	var out []string
	for i, p := range parts {
		// Keep the separator attached so rejoined chunks read naturally.
		if i < len(parts)-1 {
			p += sep
		}
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, splitRecursive(p, maxChars, sepIdx+1)...)
	}
	return out
}

func sliceRunes(text string, maxChars int) []string {
	runes := []rune(text)
	var out []string
	for i := 0; i < len(runes); i += maxChars {
		end := i + maxChars
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// mergeWithOverlap packs consecutive pieces into chunks up to MaxChars,
// seeding each new chunk with the tail of the previous one.
func mergeWithOverlap(pieces []string, cfg ChunkerConfig) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
		currentLen = 0
	}

	for _, p := range pieces {
		pLen := utf8.RuneCountInString(p)
		if currentLen+pLen > cfg.MaxChars && currentLen > 0 {
			prev := current.String()
			flush()
			overlap := tailRunes(prev, cfg.OverlapChars)
			current.WriteString(overlap)
			currentLen = utf8.RuneCountInString(overlap)
		}
		current.WriteString(p)
		currentLen += pLen
	}
	flush()

	return chunks
}

func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}

func getTokenizer() *tiktoken.Tiktoken {
	tkOnce.Do(func() {
		var err error
		tk, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			panic("failed to load tiktoken: " + err.Error())
		}
	})
	return tk
}

func countTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(getTokenizer().Encode(text, nil, nil))
}
