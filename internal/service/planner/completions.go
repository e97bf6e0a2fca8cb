package planner

import (
	"context"
	"fmt"

	"github.com/sandevgo/momentum/internal/core"
	"github.com/sandevgo/momentum/internal/storage/sqlite"
	"github.com/sandevgo/momentum/pkg/log"
)

// Task outcomes reported by the user.
const (
	OutcomeDone    = "done"
	OutcomePartial = "partial"
	OutcomeMissed  = "missed"
)

// CompleteRequest reports how a scheduled task actually went.
type CompleteRequest struct {
	UserID        string `json:"user_id"`
	TaskID        string `json:"task_id"`
	SlotID        string `json:"scheduled_slot_id,omitempty"`
	ActualMinutes int    `json:"actual_minutes"`
	Outcome       string `json:"outcome"`
	Feedback      string `json:"feedback,omitempty"`
}

type completionLog interface {
	Save(ctx context.Context, c sqlite.Completion) error
}

type Completions struct {
	store completionLog
}

func NewCompletions(store completionLog) *Completions {
	return &Completions{store: store}
}

// Record computes the reward for an outcome and appends it to the
// completion log. The reward feeds the aggregated completion history
// used in prompt context.
func (c *Completions) Record(ctx context.Context, req CompleteRequest) (float64, error) {
	reward, err := rewardFor(req.Outcome)
	if err != nil {
		return 0, err
	}

	if err := c.store.Save(ctx, sqlite.Completion{
		UserID:        req.UserID,
		TaskID:        req.TaskID,
		SlotID:        req.SlotID,
		ActualMinutes: req.ActualMinutes,
		Outcome:       req.Outcome,
		Feedback:      req.Feedback,
		Reward:        reward,
	}); err != nil {
		return 0, err
	}

	log.FromCtx(ctx).Info().
		Str("user_id", req.UserID).
		Str("task_id", req.TaskID).
		Str("outcome", req.Outcome).
		Float64("reward", reward).
		Msg("completion recorded")

	return reward, nil
}

func rewardFor(outcome string) (float64, error) {
	switch outcome {
	case OutcomeDone:
		return 1.0, nil
	case OutcomePartial:
		return 0.5, nil
	case OutcomeMissed:
		return 0.0, nil
	default:
		return 0, fmt.Errorf("%w: unknown outcome %q", core.ErrInvalid, outcome)
	}
}
