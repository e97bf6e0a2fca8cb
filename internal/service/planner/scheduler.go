package planner

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// TimeWindow is one free slot of the user's day, ISO-8601 bounds.
type TimeWindow struct {
	Start string `json:"start_iso"`
	End   string `json:"end_iso"`
}

// Task is one unit of work to be placed into the day.
type Task struct {
	ID               string `json:"id,omitempty"`
	Title            string `json:"title"`
	Type             string `json:"type,omitempty"`
	SubjectID        string `json:"subject_id,omitempty"`
	EstimatedMinutes int    `json:"estimated_minutes,omitempty"`
	Priority         int    `json:"priority,omitempty"`
	Deadline         string `json:"deadline_iso,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

// ScheduleItem is one placed slot of the final schedule.
type ScheduleItem struct {
	ID               string  `json:"id"`
	TaskID           string  `json:"task_id,omitempty"`
	Title            string  `json:"title"`
	Type             string  `json:"type,omitempty"`
	Start            string  `json:"start"`
	End              string  `json:"end"`
	Priority         int     `json:"priority,omitempty"`
	EstimatedMinutes int     `json:"estimated_minutes,omitempty"`
	Notes            string  `json:"notes,omitempty"`
	Score            float64 `json:"score,omitempty"`
}

const defaultTaskMinutes = 30

// FallbackSchedule packs tasks greedily into the available windows,
// highest priority first, earlier deadline breaking ties. A task that
// does not fit the current window moves to the start of the next one;
// when windows run out the remaining tasks are left unscheduled.
func FallbackSchedule(windows []TimeWindow, tasks []Task) []ScheduleItem {
	type span struct {
		start, end time.Time
	}
	var spans []span
	for _, w := range windows {
		start, err1 := time.Parse(time.RFC3339, w.Start)
		end, err2 := time.Parse(time.RFC3339, w.End)
		if err1 != nil || err2 != nil {
			continue
		}
		spans = append(spans, span{start, end})
	}
	if len(spans) == 0 {
		return nil
	}

	sorted := make([]Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if priorityKey(sorted[i]) != priorityKey(sorted[j]) {
			return priorityKey(sorted[i]) < priorityKey(sorted[j])
		}
		return deadlineKey(sorted[i]) < deadlineKey(sorted[j])
	})

	var schedule []ScheduleItem
	wIdx := 0
	cur := spans[0].start

	for _, t := range sorted {
		minutes := t.EstimatedMinutes
		if minutes <= 0 {
			minutes = defaultTaskMinutes
		}
		end := cur.Add(time.Duration(minutes) * time.Minute)
		if end.After(spans[wIdx].end) {
			wIdx++
			if wIdx >= len(spans) {
				break
			}
			cur = spans[wIdx].start
			end = cur.Add(time.Duration(minutes) * time.Minute)
		}

		id := t.ID
		if id == "" {
			id = uuid.NewString()
		}
		schedule = append(schedule, ScheduleItem{
			ID:               id,
			TaskID:           t.ID,
			Title:            t.Title,
			Type:             t.Type,
			Start:            cur.Format(time.RFC3339),
			End:              end.Format(time.RFC3339),
			Priority:         t.Priority,
			EstimatedMinutes: minutes,
			Notes:            t.Notes,
		})
		cur = end
	}

	return schedule
}

// priorityKey sorts an unprioritized task as medium priority (3), after
// explicit priority 1 and 2 work.
func priorityKey(t Task) int {
	if t.Priority == 0 {
		return 3
	}
	return t.Priority
}

// deadlineKey sorts tasks without a deadline after every dated one.
func deadlineKey(t Task) string {
	if t.Deadline == "" {
		return "9999"
	}
	return t.Deadline
}
