package domain

import "time"

// TaskFn is the callback executed by a task.
//
// elapsed is the time since the task's previous execution (or since submission
// for the first one); repetition is the zero-based index of this execution.
// A returned error is reported but never stops the scheduler.
type TaskFn func(elapsed time.Duration, repetition int) error

// Callback is a one-shot unit of work queued for the frame loop or the assembly goroutine.
type Callback func()

// SubscriberFn is invoked once per assembly pass with the time since the previous pass.
type SubscriberFn func(elapsed time.Duration)
