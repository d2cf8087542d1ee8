package error

import (
	"errors"
	"fmt"
)

// Scheduler setup errors. Fatal to the offending call, never to the scheduler.
var (
	ErrEmptyName          = errors.New("empty name")
	ErrDuplicateGroup     = errors.New("group name not unique")
	ErrUnknownGroup       = errors.New("unknown group")
	ErrNoGroups           = errors.New("worker serves no groups")
	ErrEmptyFunction      = errors.New("function is empty")
	ErrInvalidRepetitions = errors.New("invalid repetitions")
	ErrTierMismatch       = errors.New("task tier differs from group tier")
	ErrTaskNotFound       = errors.New("task not found in group")
)

var (
	ErrStatusTransition    = errors.New("illegal scheduler status transition")
	ErrSchedulerTerminated = errors.New("scheduler is terminated")
)

// ErrIllegalContext is returned when a render-thread-only method is called from
// a thread that does not own the graphics context.
var ErrIllegalContext = errors.New("illegal graphics context")

var ErrNilCollaborator = errors.New("required collaborator is nil")

var (
	ErrTaskExecution = errors.New("error in task execution")
	ErrTaskPanicked  = errors.New("task panicked")
	ErrFrameFailed   = errors.New("frame failed")
	ErrAssembly      = errors.New("assembly pass failed")
)

func New(err error, str string) error {
	return fmt.Errorf("%w: %s", err, str)
}
