package domain

import (
	"time"
)

// TaskState is a lightweight snapshot of a task's execution record.
// It is what Monitoring implementations receive after each execution.
type TaskState struct {
	// TaskID is the unique identifier of the task.
	TaskID string

	// Group is the name of the group that owns the task.
	Group string

	// Tier is the priority tier of the task.
	Tier Tier

	// StartAt is the timestamp when the latest execution started.
	StartAt time.Time

	// EndAt is the timestamp when the latest execution returned.
	EndAt time.Time

	// ExecutionTime is the duration of the latest execution in nanoseconds.
	ExecutionTime int64

	// Executions counts completed executions, successful or not.
	Executions int64

	// Failures counts executions that returned an error or panicked.
	Failures int64

	// Remaining is the number of repetitions left, or Infinite.
	Remaining int

	// Retired is true once the task has been removed from its group.
	Retired bool

	// Error holds the error of the latest execution, nil on success.
	Error error
}

// ThreadInfo describes one worker thread for diagnostics.
type ThreadInfo struct {
	// Name is the worker's name, derived from its tier and position.
	Name string

	// Tier is the worker's tier ceiling.
	Tier Tier

	// Groups lists the served group names in drain order.
	Groups []string

	// OSThreadID is the id of the OS thread the worker is locked to, 0 if unknown or not started.
	OSThreadID int

	// Alive is true while the worker's loop is running.
	Alive bool
}
