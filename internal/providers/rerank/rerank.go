// Package rerank talks to a cross-encoder scoring service. The handle is a
// process-wide singleton: initialized at most once on first use, and if the
// backing service cannot be reached it stays unavailable for the lifetime
// of the process, turning every re-ranking pass into a no-op.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sandevgo/momentum/pkg/log"
)

// CrossEncoder scores (query, text) pairs through an HTTP reranking
// endpoint (text-embeddings-inference wire format).
type CrossEncoder struct {
	url    string
	client *http.Client
}

func NewCrossEncoder(url string) *CrossEncoder {
	return &CrossEncoder{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score returns one raw score per text, in input order. Raw scores are
// unbounded; normalization happens in the retrieval pipeline.
func (c *CrossEncoder) Score(ctx context.Context, query string, texts []string) ([]float64, error) {
	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("rerank error %d: %s", resp.StatusCode, string(b))
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, err
	}

	scores := make([]float64, len(texts))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(scores) {
			return nil, fmt.Errorf("rerank returned out-of-range index %d", r.Index)
		}
		scores[r.Index] = r.Score
	}
	return scores, nil
}

var (
	handleOnce sync.Once
	handle     *CrossEncoder
)

const probeTimeout = 10 * time.Second

// Handle returns the process-wide cross-encoder, initializing it on first
// call. Initialization probes the service with a tiny scoring request on a
// detached timeout, so a cancelled or near-deadline caller cannot decide
// the outcome. On probe failure the handle stays nil and reranking is
// disabled for good. Safe under concurrent first use.
func Handle(ctx context.Context, url string) *CrossEncoder {
	handleOnce.Do(func() {
		if url == "" {
			return
		}
		probeCtx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		defer cancel()

		ce := NewCrossEncoder(url)
		if _, err := ce.Score(probeCtx, "ping", []string{"ping"}); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Str("url", url).
				Msg("cross-encoder unavailable, reranking disabled")
			return
		}
		handle = ce
	})
	return handle
}
