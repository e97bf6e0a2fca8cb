package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sandevgo/momentum/internal/core"
)

// Completion is one logged task outcome with its offline-training reward.
type Completion struct {
	UserID        string
	TaskID        string
	SlotID        string
	ActualMinutes int
	Outcome       string
	Feedback      string
	Reward        float64
}

type CompletionRepo struct {
	db *sql.DB
}

func NewCompletionRepo(db *sql.DB) *CompletionRepo {
	return &CompletionRepo{db: db}
}

func (r *CompletionRepo) Save(ctx context.Context, c Completion) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO completions (user_id, task_id, slot_id, actual_minutes, outcome, feedback, reward)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.UserID, c.TaskID, c.SlotID, c.ActualMinutes, c.Outcome, c.Feedback, c.Reward,
	)
	if err != nil {
		return fmt.Errorf("failed to save completion: %w", err)
	}
	return nil
}

// History aggregates a user's completion behavior for prompt context.
func (r *CompletionRepo) History(ctx context.Context, userID string) (*core.CompletionHistory, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(reward), 0), COALESCE(AVG(actual_minutes), 0)
		FROM completions WHERE user_id = ?`, userID)

	var count int
	var avgReward, avgMinutes float64
	if err := row.Scan(&count, &avgReward, &avgMinutes); err != nil {
		return nil, fmt.Errorf("completion history failed: %w", err)
	}
	if count == 0 {
		return nil, nil
	}

	return &core.CompletionHistory{
		AvgCompletionRate: avgReward,
		DailyCapacityMin:  int(avgMinutes),
	}, nil
}
