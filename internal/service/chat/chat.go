// Package chat answers user messages grounded in retrieved memory and
// stores every exchange back as a chat fragment for future recall.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sandevgo/momentum/internal/core"
	"github.com/sandevgo/momentum/internal/service/retrieval"
	"github.com/sandevgo/momentum/pkg/log"
)

// Turn is one prior message of the conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one incoming chat message.
type Request struct {
	UserID            string `json:"user_id"`
	UserName          string `json:"user_name,omitempty"`
	Message           string `json:"message"`
	History           []Turn `json:"conversation_history,omitempty"`
	StructuredContext string `json:"structured_context,omitempty"`
}

// Action is a data mutation the assistant asks the frontend to perform,
// extracted from the generator's answer.
type Action struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Response is the assistant's answer plus any extracted actions.
type Response struct {
	Response       string   `json:"response"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Actions        []Action `json:"actions,omitempty"`
}

type contextRetriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) ([]core.ScoredFragment, error)
}

type Service struct {
	retriever contextRetriever
	generator core.Generator
	embedder  core.Embedder
	store     core.VectorStore
	now       func() time.Time
}

func NewService(retriever contextRetriever, generator core.Generator, embedder core.Embedder, store core.VectorStore) *Service {
	return &Service{
		retriever: retriever,
		generator: generator,
		embedder:  embedder,
		store:     store,
		now:       time.Now,
	}
}

// chatContextK over-fetches on purpose: the broad context query matches
// many fragment types and the polish pass prunes the noise afterwards.
const chatContextK = 10

// Chat retrieves the user's memory, prompts the generator and stores the
// exchange back into the memory store. A failure to store the turn is
// logged but does not fail the reply.
func (s *Service) Chat(ctx context.Context, req Request) (*Response, error) {
	logger := log.FromCtx(ctx)

	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: message is empty", core.ErrInvalid)
	}

	rreq := retrieval.NewRequest(req.UserID, "context preferences notes learning skills routine daily plan schedule tasks onboarding")
	rreq.K = chatContextK
	rreq.AllowedTypes = []string{core.TypeContext, core.TypeOnboarding, core.TypeChat, core.TypePlan}

	fragments, err := s.retriever.Retrieve(ctx, rreq)
	if err != nil {
		return nil, fmt.Errorf("chat context retrieval failed: %w", err)
	}
	fragments = retrieval.Polish(fragments, rreq.MinSimilarity)

	prompt := buildChatPrompt(req, retrieval.Format(fragments, nil, nil, rreq.MaxContextLength))

	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("chat generation failed: %w", err)
	}

	answer, actions := extractActions(raw)

	conversationID := s.storeTurn(ctx, req.UserID, req.Message, answer)

	logger.Debug().
		Str("user_id", req.UserID).
		Int("fragments", len(fragments)).
		Int("actions", len(actions)).
		Msg("chat answered")

	return &Response{
		Response:       answer,
		ConversationID: conversationID,
		Actions:        actions,
	}, nil
}

// storeTurn persists the exchange as a chat fragment. Best effort: the
// user already has their answer, so a storage failure only loses recall.
func (s *Service) storeTurn(ctx context.Context, userID, message, answer string) string {
	now := s.now().UTC()
	text := fmt.Sprintf("User: %s\nAssistant: %s", message, answer)
	id := fmt.Sprintf("chat_%s_%s", userID, now.Format(time.RFC3339Nano))

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("user_id", userID).Msg("chat turn embedding failed, turn not stored")
		return ""
	}

	fragment := core.MemoryFragment{
		ID:        id,
		Text:      text,
		Embedding: vectors[0],
		Meta: core.FragmentMeta{
			UserID:    userID,
			Type:      core.TypeChat,
			Timestamp: now.Format(time.RFC3339Nano),
		},
	}
	if err := s.store.Upsert(ctx, []core.MemoryFragment{fragment}); err != nil {
		log.FromCtx(ctx).Warn().Err(err).Str("user_id", userID).Msg("chat turn not stored")
		return ""
	}
	return id
}

// actionsRe matches the trailing "Actions: [...]" block the prompt asks
// the generator to emit for data updates.
var actionsRe = regexp.MustCompile(`(?s)Actions:\s*(\[.*?\])`)

var actionsTailRe = regexp.MustCompile(`(?s)\n?Actions:.*$`)

func extractActions(raw string) (string, []Action) {
	m := actionsRe.FindStringSubmatch(raw)
	if m == nil {
		return strings.TrimSpace(raw), nil
	}
	var actions []Action
	if err := json.Unmarshal([]byte(m[1]), &actions); err != nil {
		return strings.TrimSpace(raw), nil
	}
	answer := strings.TrimSpace(actionsTailRe.ReplaceAllString(raw, ""))
	answer = strings.TrimSpace(strings.TrimPrefix(answer, "Response:"))
	return answer, actions
}

func buildChatPrompt(req Request, memoryContext string) string {
	var history strings.Builder
	for _, t := range req.History {
		role := t.Role
		if role == "" {
			role = "user"
		}
		fmt.Fprintf(&history, "%s%s: %s\n", strings.ToUpper(role[:1]), role[1:], t.Content)
	}

	var fullContext strings.Builder
	if req.StructuredContext != "" {
		fmt.Fprintf(&fullContext, "Structured Information:\n%s\n\n", req.StructuredContext)
	}
	if memoryContext != "" {
		fmt.Fprintf(&fullContext, "Additional Context from Memory:\n%s", memoryContext)
	}

	greeting := "Hello!"
	personalization := ""
	if req.UserName != "" {
		greeting = fmt.Sprintf("Hi %s!", req.UserName)
		personalization = fmt.Sprintf("\nPERSONALIZATION: The user's name is %s. Use their name naturally in conversation.", req.UserName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are Momentum, an AI-powered student productivity assistant. %s\n\n", greeting)
	b.WriteString(`CORE BEHAVIOR:
- Be warm, friendly and conversational.
- Be proactive: ask follow-up questions, offer suggestions, show genuine interest.
- Reference context from previous conversations naturally.
`)
	b.WriteString(personalization)
	b.WriteString(`

DATA UPDATE INSTRUCTIONS:
When the user asks you to UPDATE or CHANGE information, acknowledge the
change in your reply and append an "Actions:" section containing a JSON
array of actions:

  Actions: [{"type": "update_user", "data": {"firstName": "NewName"}}]

Available action types:
- "update_user": update profile fields (firstName, lastName, major, institution, year)
- "add_course": add a course (data: {"name", "code", "credits"})
- "add_skill": add a skill (data: {"name", "category", "level"})

`)
	if fullContext.Len() > 0 {
		fmt.Fprintf(&b, "User Context:\n%s\n\n", fullContext.String())
	}
	if history.Len() > 0 {
		fmt.Fprintf(&b, "Previous Conversation:\n%s\n", history.String())
	}
	fmt.Fprintf(&b, "User: %s\n\nAssistant:", req.Message)
	return b.String()
}
