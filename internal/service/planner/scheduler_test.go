package planner

import (
	"testing"
	"time"
)

func window(start, end string) TimeWindow {
	return TimeWindow{Start: start, End: end}
}

func TestFallbackSchedule_OrdersByPriorityThenDeadline(t *testing.T) {
	windows := []TimeWindow{window("2025-06-02T09:00:00Z", "2025-06-02T12:00:00Z")}
	tasks := []Task{
		{ID: "late", Title: "late deadline", Priority: 1, Deadline: "2025-06-10", EstimatedMinutes: 30},
		{ID: "low", Title: "low priority", Priority: 3, EstimatedMinutes: 30},
		{ID: "early", Title: "early deadline", Priority: 1, Deadline: "2025-06-03", EstimatedMinutes: 30},
	}

	schedule := FallbackSchedule(windows, tasks)

	if len(schedule) != 3 {
		t.Fatalf("scheduled %d tasks, want 3", len(schedule))
	}
	wantOrder := []string{"early", "late", "low"}
	for i, want := range wantOrder {
		if schedule[i].TaskID != want {
			t.Errorf("position %d = %q, want %q", i, schedule[i].TaskID, want)
		}
	}
}

func TestFallbackSchedule_UnsetPriorityIsMedium(t *testing.T) {
	windows := []TimeWindow{window("2025-06-02T09:00:00Z", "2025-06-02T12:00:00Z")}
	tasks := []Task{
		{ID: "none", Title: "no priority set", EstimatedMinutes: 30},
		{ID: "high", Title: "urgent", Priority: 1, EstimatedMinutes: 30},
		{ID: "low", Title: "whenever", Priority: 5, EstimatedMinutes: 30},
	}

	schedule := FallbackSchedule(windows, tasks)

	if len(schedule) != 3 {
		t.Fatalf("scheduled %d tasks, want 3", len(schedule))
	}
	wantOrder := []string{"high", "none", "low"}
	for i, want := range wantOrder {
		if schedule[i].TaskID != want {
			t.Errorf("position %d = %q, want %q", i, schedule[i].TaskID, want)
		}
	}
	// The stored item keeps the task's own priority value.
	if schedule[1].Priority != 0 {
		t.Errorf("item priority = %d, want 0", schedule[1].Priority)
	}
}

func TestFallbackSchedule_ConsecutiveSlots(t *testing.T) {
	windows := []TimeWindow{window("2025-06-02T09:00:00Z", "2025-06-02T12:00:00Z")}
	tasks := []Task{
		{ID: "a", Title: "first", Priority: 1, EstimatedMinutes: 45},
		{ID: "b", Title: "second", Priority: 2, EstimatedMinutes: 60},
	}

	schedule := FallbackSchedule(windows, tasks)

	if len(schedule) != 2 {
		t.Fatalf("scheduled %d tasks, want 2", len(schedule))
	}
	if schedule[0].Start != "2025-06-02T09:00:00Z" || schedule[0].End != "2025-06-02T09:45:00Z" {
		t.Errorf("first slot = %s..%s", schedule[0].Start, schedule[0].End)
	}
	if schedule[1].Start != schedule[0].End {
		t.Errorf("second slot starts at %s, want %s", schedule[1].Start, schedule[0].End)
	}
}

func TestFallbackSchedule_SpillsIntoNextWindow(t *testing.T) {
	windows := []TimeWindow{
		window("2025-06-02T09:00:00Z", "2025-06-02T10:00:00Z"),
		window("2025-06-02T14:00:00Z", "2025-06-02T16:00:00Z"),
	}
	tasks := []Task{
		{ID: "a", Title: "fits morning", Priority: 1, EstimatedMinutes: 50},
		{ID: "b", Title: "needs afternoon", Priority: 2, EstimatedMinutes: 40},
	}

	schedule := FallbackSchedule(windows, tasks)

	if len(schedule) != 2 {
		t.Fatalf("scheduled %d tasks, want 2", len(schedule))
	}
	if schedule[1].Start != "2025-06-02T14:00:00Z" {
		t.Errorf("second task start = %s, want start of second window", schedule[1].Start)
	}
}

func TestFallbackSchedule_StopsWhenWindowsExhausted(t *testing.T) {
	windows := []TimeWindow{window("2025-06-02T09:00:00Z", "2025-06-02T10:00:00Z")}
	tasks := []Task{
		{ID: "a", Title: "fills the hour", Priority: 1, EstimatedMinutes: 55},
		{ID: "b", Title: "no room left", Priority: 2, EstimatedMinutes: 30},
		{ID: "c", Title: "also dropped", Priority: 3, EstimatedMinutes: 30},
	}

	schedule := FallbackSchedule(windows, tasks)

	if len(schedule) != 1 {
		t.Fatalf("scheduled %d tasks, want 1", len(schedule))
	}
	if schedule[0].TaskID != "a" {
		t.Errorf("kept %q, want a", schedule[0].TaskID)
	}
}

func TestFallbackSchedule_Defaults(t *testing.T) {
	windows := []TimeWindow{window("2025-06-02T09:00:00Z", "2025-06-02T12:00:00Z")}
	tasks := []Task{{Title: "untitled duration"}}

	schedule := FallbackSchedule(windows, tasks)

	if len(schedule) != 1 {
		t.Fatalf("scheduled %d tasks, want 1", len(schedule))
	}
	if schedule[0].EstimatedMinutes != defaultTaskMinutes {
		t.Errorf("minutes = %d, want default %d", schedule[0].EstimatedMinutes, defaultTaskMinutes)
	}
	if schedule[0].ID == "" {
		t.Errorf("no id generated for task without one")
	}
	start, _ := time.Parse(time.RFC3339, schedule[0].Start)
	end, _ := time.Parse(time.RFC3339, schedule[0].End)
	if end.Sub(start) != time.Duration(defaultTaskMinutes)*time.Minute {
		t.Errorf("slot length = %v", end.Sub(start))
	}
}

func TestFallbackSchedule_NoWindows(t *testing.T) {
	if got := FallbackSchedule(nil, []Task{{Title: "anything"}}); got != nil {
		t.Errorf("expected nil schedule, got %v", got)
	}
}

func TestFallbackSchedule_SkipsMalformedWindows(t *testing.T) {
	windows := []TimeWindow{
		window("not a time", "also not"),
		window("2025-06-02T09:00:00Z", "2025-06-02T10:00:00Z"),
	}
	schedule := FallbackSchedule(windows, []Task{{ID: "a", Title: "t", EstimatedMinutes: 30}})
	if len(schedule) != 1 {
		t.Fatalf("scheduled %d tasks, want 1", len(schedule))
	}
	if schedule[0].Start != "2025-06-02T09:00:00Z" {
		t.Errorf("start = %s, want start of the valid window", schedule[0].Start)
	}
}
