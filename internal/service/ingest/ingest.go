package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/inbucket/html2text"

	"github.com/sandevgo/momentum/internal/core"
	"github.com/sandevgo/momentum/pkg/log"
)

// Document is one upload to be stored as memory fragments.
type Document struct {
	UserID   string
	Type     string
	Text     string
	CourseID string
	Priority string
	// HTML marks Text as raw HTML to be converted before chunking.
	HTML bool
}

// Receipt reports what an ingestion produced.
type Receipt struct {
	DocID    string `json:"doc_id"`
	Chunks   int    `json:"chunks"`
	Replaced int    `json:"replaced,omitempty"`
}

type Ingestor struct {
	store    core.VectorStore
	embedder core.Embedder
	cfg      ChunkerConfig
	now      func() time.Time
}

func NewIngestor(store core.VectorStore, embedder core.Embedder) *Ingestor {
	return &Ingestor{
		store:    store,
		embedder: embedder,
		cfg:      DefaultChunkerConfig(),
		now:      time.Now,
	}
}

// Ingest chunks the document, embeds every chunk and stores the
// fragments. Documents that fit in a single chunk are stored whole,
// without chunk metadata. The fragment id is a fresh document id, or
// "{doc}_chunk_{i}" per chunk when the document was split.
func (in *Ingestor) Ingest(ctx context.Context, doc Document) (*Receipt, error) {
	logger := log.FromCtx(ctx)

	if doc.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", core.ErrInvalid)
	}
	if doc.Type == "" {
		doc.Type = core.TypeContext
	}

	text := doc.Text
	if doc.HTML {
		converted, err := html2text.FromString(text, html2text.Options{
			PrettyTables: true,
		})
		if err != nil {
			return nil, fmt.Errorf("convert html: %w", err)
		}
		text = converted
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: document is empty", core.ErrInvalid)
	}

	docID := uuid.NewString()
	chunks := ChunkText(text, in.cfg)

	fragments := make([]core.MemoryFragment, 0, len(chunks))
	texts := make([]string, 0, len(chunks))
	timestamp := in.now().UTC().Format(time.RFC3339Nano)

	for _, ch := range chunks {
		meta := core.FragmentMeta{
			UserID:    doc.UserID,
			Type:      doc.Type,
			Timestamp: timestamp,
			Priority:  doc.Priority,
			CourseID:  doc.CourseID,
		}
		id := docID
		if len(chunks) > 1 {
			id = core.ChunkID(docID, ch.Index)
			meta.IsChunk = true
			meta.SourceDocID = docID
			meta.ChunkIndex = ch.Index
			meta.TotalChunks = len(chunks)
		}
		fragments = append(fragments, core.MemoryFragment{
			ID:   id,
			Text: ch.Text,
			Meta: meta,
		})
		texts = append(texts, ch.Text)
	}

	vectors, err := in.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(fragments) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vectors), len(fragments))
	}
	for i := range fragments {
		fragments[i].Embedding = vectors[i]
	}

	if err := in.store.Upsert(ctx, fragments); err != nil {
		return nil, fmt.Errorf("store fragments: %w", err)
	}

	logger.Info().
		Str("user_id", doc.UserID).
		Str("doc_id", docID).
		Str("type", doc.Type).
		Int("chunks", len(fragments)).
		Msg("document ingested")

	return &Receipt{DocID: docID, Chunks: len(fragments)}, nil
}

// ReplaceSyllabus removes every stored syllabus fragment for the
// document's user and course before ingesting the new upload, so a
// re-uploaded syllabus fully supersedes the previous one.
func (in *Ingestor) ReplaceSyllabus(ctx context.Context, doc Document) (*Receipt, error) {
	if doc.CourseID == "" {
		return nil, fmt.Errorf("%w: course id is required for a syllabus", core.ErrInvalid)
	}
	doc.Type = core.TypeSyllabus

	old, err := in.store.Find(ctx, core.QueryFilter{
		UserID:   doc.UserID,
		Types:    []string{core.TypeSyllabus},
		CourseID: doc.CourseID,
	})
	if err != nil {
		return nil, fmt.Errorf("find previous syllabus: %w", err)
	}
	if len(old) > 0 {
		ids := make([]string, 0, len(old))
		for _, f := range old {
			ids = append(ids, f.ID)
		}
		if err := in.store.Delete(ctx, ids); err != nil {
			return nil, fmt.Errorf("delete previous syllabus: %w", err)
		}
		log.FromCtx(ctx).Info().
			Str("user_id", doc.UserID).
			Str("course_id", doc.CourseID).
			Int("removed", len(ids)).
			Msg("previous syllabus replaced")
	}

	receipt, err := in.Ingest(ctx, doc)
	if err != nil {
		return nil, err
	}
	receipt.Replaced = len(old)
	return receipt, nil
}
