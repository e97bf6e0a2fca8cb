package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sandevgo/momentum/internal/core"
	"github.com/sandevgo/momentum/internal/service/retrieval"
)

type fakeRetriever struct {
	fragments []core.ScoredFragment
	err       error
	gotReq    retrieval.Request
}

func (r *fakeRetriever) Retrieve(_ context.Context, req retrieval.Request) ([]core.ScoredFragment, error) {
	r.gotReq = req
	return r.fragments, r.err
}

type fakeGenerator struct {
	output    string
	err       error
	gotPrompt string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.gotPrompt = prompt
	return g.output, g.err
}

type fakeEmbedder struct {
	fail bool
}

func (e *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.fail {
		return nil, errors.New("embedder down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (e *fakeEmbedder) Dims() int { return 3 }

type fakeStore struct {
	upserted []core.MemoryFragment
	failUp   bool
}

func (s *fakeStore) Upsert(_ context.Context, fragments []core.MemoryFragment) error {
	if s.failUp {
		return errors.New("store down")
	}
	s.upserted = append(s.upserted, fragments...)
	return nil
}

func (s *fakeStore) Get(context.Context, []string) ([]core.MemoryFragment, error) { return nil, nil }
func (s *fakeStore) Query(context.Context, []float32, int, core.QueryFilter) ([]core.QueryMatch, error) {
	return nil, nil
}
func (s *fakeStore) Find(context.Context, core.QueryFilter) ([]core.MemoryFragment, error) {
	return nil, nil
}
func (s *fakeStore) Delete(context.Context, []string) error { return nil }

func testService(r *fakeRetriever, g *fakeGenerator, store *fakeStore) *Service {
	s := NewService(r, g, &fakeEmbedder{}, store)
	s.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func grounded(text string) core.ScoredFragment {
	return core.ScoredFragment{
		MemoryFragment: core.MemoryFragment{ID: "f-" + text[:4], Text: text},
		Similarity:     0.9,
		CombinedScore:  0.9,
	}
}

func TestChat_AnswersWithContext(t *testing.T) {
	retriever := &fakeRetriever{fragments: []core.ScoredFragment{
		grounded("prefers studying in the morning hours"),
	}}
	generator := &fakeGenerator{output: "Good morning! Ready for a study session?"}
	store := &fakeStore{}
	s := testService(retriever, generator, store)

	resp, err := s.Chat(context.Background(), Request{
		UserID:   "u1",
		UserName: "Ada",
		Message:  "what should I do today?",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Response != "Good morning! Ready for a study session?" {
		t.Errorf("response = %q", resp.Response)
	}
	if !strings.Contains(generator.gotPrompt, "prefers studying in the morning hours") {
		t.Errorf("retrieved memory not in prompt")
	}
	if !strings.Contains(generator.gotPrompt, "Hi Ada!") {
		t.Errorf("user name not in prompt")
	}
	if retriever.gotReq.K != chatContextK {
		t.Errorf("k = %d, want %d", retriever.gotReq.K, chatContextK)
	}
}

func TestChat_StoresTurn(t *testing.T) {
	store := &fakeStore{}
	s := testService(&fakeRetriever{}, &fakeGenerator{output: "Sure thing."}, store)

	resp, err := s.Chat(context.Background(), Request{UserID: "u1", Message: "remind me about calculus"})
	if err != nil {
		t.Fatal(err)
	}
	if len(store.upserted) != 1 {
		t.Fatalf("stored %d fragments, want 1", len(store.upserted))
	}
	f := store.upserted[0]
	if f.Meta.Type != core.TypeChat || f.Meta.UserID != "u1" {
		t.Errorf("meta = %+v", f.Meta)
	}
	if !strings.Contains(f.Text, "User: remind me about calculus") || !strings.Contains(f.Text, "Assistant: Sure thing.") {
		t.Errorf("stored text = %q", f.Text)
	}
	if resp.ConversationID != f.ID {
		t.Errorf("conversation id %q != fragment id %q", resp.ConversationID, f.ID)
	}
}

func TestChat_StoreFailureDoesNotFailReply(t *testing.T) {
	store := &fakeStore{failUp: true}
	s := testService(&fakeRetriever{}, &fakeGenerator{output: "Answer."}, store)

	resp, err := s.Chat(context.Background(), Request{UserID: "u1", Message: "hello there"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Response != "Answer." {
		t.Errorf("response = %q", resp.Response)
	}
	if resp.ConversationID != "" {
		t.Errorf("conversation id set despite storage failure")
	}
}

func TestChat_ExtractsActions(t *testing.T) {
	raw := "Response: Done, I've updated your name!\n\nActions: [{\"type\": \"update_user\", \"data\": {\"firstName\": \"Ada\"}}]"
	s := testService(&fakeRetriever{}, &fakeGenerator{output: raw}, &fakeStore{})

	resp, err := s.Chat(context.Background(), Request{UserID: "u1", Message: "change my name to Ada"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Actions) != 1 {
		t.Fatalf("actions = %+v", resp.Actions)
	}
	if resp.Actions[0].Type != "update_user" || resp.Actions[0].Data["firstName"] != "Ada" {
		t.Errorf("action = %+v", resp.Actions[0])
	}
	if strings.Contains(resp.Response, "Actions:") {
		t.Errorf("actions block left in response: %q", resp.Response)
	}
	if resp.Response != "Done, I've updated your name!" {
		t.Errorf("response = %q", resp.Response)
	}
}

func TestChat_MalformedActionsIgnored(t *testing.T) {
	raw := "All set!\n\nActions: [not json]"
	s := testService(&fakeRetriever{}, &fakeGenerator{output: raw}, &fakeStore{})

	resp, err := s.Chat(context.Background(), Request{UserID: "u1", Message: "update something"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Actions) != 0 {
		t.Errorf("actions = %+v", resp.Actions)
	}
}

func TestChat_EmptyMessageRejected(t *testing.T) {
	s := testService(&fakeRetriever{}, &fakeGenerator{}, &fakeStore{})
	if _, err := s.Chat(context.Background(), Request{UserID: "u1", Message: "  "}); err == nil {
		t.Fatal("expected error")
	}
}

func TestChat_RetrievalFailureIsAnError(t *testing.T) {
	s := testService(&fakeRetriever{err: errors.New("store down")}, &fakeGenerator{}, &fakeStore{})
	if _, err := s.Chat(context.Background(), Request{UserID: "u1", Message: "hi"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestChat_GeneratorFailureIsAnError(t *testing.T) {
	s := testService(&fakeRetriever{}, &fakeGenerator{err: errors.New("model down")}, &fakeStore{})
	if _, err := s.Chat(context.Background(), Request{UserID: "u1", Message: "hi"}); err == nil {
		t.Fatal("expected error")
	}
}
