// Package planner builds day schedules for a user: an LLM pass over the
// retrieved study context with a greedy scheduler as fallback, plus the
// completion log that feeds future capacity estimates.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/sandevgo/momentum/internal/core"
	"github.com/sandevgo/momentum/internal/service/retrieval"
	"github.com/sandevgo/momentum/pkg/log"
)

// PlanRequest describes one day to plan.
type PlanRequest struct {
	UserID      string            `json:"user_id"`
	Date        string            `json:"date_iso"`
	Windows     []TimeWindow      `json:"available_times"`
	Tasks       []Task            `json:"tasks"`
	Classes     []Task            `json:"classes,omitempty"`
	Preferences map[string]string `json:"preferences,omitempty"`
}

// RebalancedTask records a task the generator moved to a new slot.
type RebalancedTask struct {
	OriginalTaskID string `json:"original_task_id"`
	NewSlot        string `json:"new_slot"`
}

// PlanResponse is the assembled day plan.
type PlanResponse struct {
	UserID          string           `json:"user_id"`
	Date            string           `json:"date_iso"`
	Summary         string           `json:"summary"`
	Schedule        []ScheduleItem   `json:"schedule"`
	Suggestions     []string         `json:"suggestions"`
	RebalancedTasks []RebalancedTask `json:"rebalanced_tasks"`
	Metadata        map[string]any   `json:"metadata"`
}

type contextRetriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) ([]core.ScoredFragment, error)
}

type historySource interface {
	History(ctx context.Context, userID string) (*core.CompletionHistory, error)
}

type Planner struct {
	retriever contextRetriever
	generator core.Generator
	history   historySource
}

func NewPlanner(retriever contextRetriever, generator core.Generator, history historySource) *Planner {
	return &Planner{retriever: retriever, generator: generator, history: history}
}

// planContextK keeps the planner prompt lean; three fragments cover the
// syllabus and recent notes without crowding out the task list.
const planContextK = 3

// Plan retrieves the user's study context, asks the generator for a
// strict-JSON day plan and falls back to the greedy scheduler when the
// generator fails or returns something unparseable. The fallback is a
// degraded answer, not an error.
func (p *Planner) Plan(ctx context.Context, req PlanRequest) (*PlanResponse, error) {
	logger := log.FromCtx(ctx)

	rreq := retrieval.NewRequest(req.UserID, "study notes and syllabus")
	rreq.K = planContextK
	rreq.AllowedTypes = []string{core.TypeSyllabus, core.TypeContext, core.TypePlan}

	fragments, err := p.retriever.Retrieve(ctx, rreq)
	if err != nil {
		return nil, fmt.Errorf("plan context retrieval failed: %w", err)
	}
	fragments = retrieval.Polish(fragments, rreq.MinSimilarity)

	history, err := p.history.History(ctx, req.UserID)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", req.UserID).Msg("completion history unavailable")
		history = nil
	}

	prompt, err := buildPlanPrompt(req, retrieval.Format(fragments, nil, history, rreq.MaxContextLength))
	if err != nil {
		return nil, err
	}

	raw, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		logger.Warn().Err(err).Str("user_id", req.UserID).Msg("plan generation failed, using fallback scheduler")
		return p.fallback(req, fragments, "Fallback schedule (generation failed)"), nil
	}

	parsed, ok := parsePlanJSON(raw)
	if !ok {
		logger.Warn().Str("user_id", req.UserID).Msg("plan output was not valid JSON, using fallback scheduler")
		return p.fallback(req, fragments, "Fallback schedule (invalid plan JSON)"), nil
	}

	for i := range parsed.Schedule {
		if parsed.Schedule[i].ID == "" {
			parsed.Schedule[i].ID = uuid.NewString()
		}
	}

	return &PlanResponse{
		UserID:          req.UserID,
		Date:            req.Date,
		Summary:         parsed.Summary,
		Schedule:        parsed.Schedule,
		Suggestions:     parsed.Suggestions,
		RebalancedTasks: parsed.RebalancedTasks,
		Metadata: map[string]any{
			"retrieved_docs": len(fragments),
			"fallback":       false,
		},
	}, nil
}

// Rebalance repacks the given tasks with the greedy scheduler, no
// generator involved.
func (p *Planner) Rebalance(ctx context.Context, req PlanRequest) *PlanResponse {
	schedule := FallbackSchedule(req.Windows, req.Tasks)
	log.FromCtx(ctx).Info().
		Str("user_id", req.UserID).
		Int("scheduled", len(schedule)).
		Msg("tasks rebalanced")
	return &PlanResponse{
		UserID:   req.UserID,
		Date:     req.Date,
		Summary:  "Rebalanced schedule",
		Schedule: schedule,
		Metadata: map[string]any{"fallback": true},
	}
}

func (p *Planner) fallback(req PlanRequest, fragments []core.ScoredFragment, summary string) *PlanResponse {
	return &PlanResponse{
		UserID:      req.UserID,
		Date:        req.Date,
		Summary:     summary,
		Schedule:    FallbackSchedule(req.Windows, req.Tasks),
		Suggestions: []string{"Fallback scheduler used."},
		Metadata: map[string]any{
			"retrieved_docs": len(fragments),
			"fallback":       true,
		},
	}
}

type planDocument struct {
	Summary         string           `json:"summary"`
	Schedule        []ScheduleItem   `json:"schedule"`
	Suggestions     []string         `json:"suggestions"`
	RebalancedTasks []RebalancedTask `json:"rebalanced_tasks"`
}

// jsonObjectRe grabs the outermost JSON object so prose or code fences
// around the generator's answer do not break parsing.
var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

func parsePlanJSON(raw string) (*planDocument, bool) {
	m := jsonObjectRe.FindString(raw)
	if m == "" {
		return nil, false
	}
	var doc planDocument
	if err := json.Unmarshal([]byte(m), &doc); err != nil {
		return nil, false
	}
	return &doc, true
}

func buildPlanPrompt(req PlanRequest, contextText string) (string, error) {
	windows, err := json.Marshal(req.Windows)
	if err != nil {
		return "", fmt.Errorf("marshal windows: %w", err)
	}
	classes, err := json.Marshal(req.Classes)
	if err != nil {
		return "", fmt.Errorf("marshal classes: %w", err)
	}
	tasks, err := json.Marshal(req.Tasks)
	if err != nil {
		return "", fmt.Errorf("marshal tasks: %w", err)
	}
	prefs, err := json.Marshal(req.Preferences)
	if err != nil {
		return "", fmt.Errorf("marshal preferences: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are Momentum, an intelligent student's daily planner assistant. ")
	b.WriteString("Return ONLY a valid JSON object exactly matching the schema below.\n\n")
	if contextText != "" {
		b.WriteString("Context:\n")
		b.WriteString(contextText)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "INPUT:\ndate: %s\navailable_windows: %s\nclasses: %s\ntasks: %s\npreferences: %s\n\n",
		req.Date, windows, classes, tasks, prefs)
	b.WriteString(`SCHEMA:
{ "summary": string,
  "schedule": [{"id","task_id","title","type","start","end","priority","estimated_minutes","notes","score"}],
  "suggestions": [string],
  "rebalanced_tasks": [{"original_task_id","new_slot"}]
}

Rules:
- Do not overlap with classes.
- Prioritize tasks with earlier deadlines, then higher priority.
- Respect user preferred study times when possible.
- Use ISO8601 datetimes for start/end.
- Output VALID JSON ONLY, no extra text.
`)
	return b.String(), nil
}
