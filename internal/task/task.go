package task

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/osmike/pacer/internal/domain"
	errs "github.com/osmike/pacer/internal/error"
)

// Owner is the non-owning back reference a task keeps to its group.
// It is only used to detach the task on retirement.
type Owner interface {
	Name() string
	Detach(t *Task) bool
}

// Config holds the parameters of a new task.
type Config struct {
	// Fn is the callback executed on every repetition.
	Fn domain.TaskFn

	// Tier is the priority tier; it must match the owning group's tier.
	Tier domain.Tier

	// Repetitions is the number of executions before self-retirement, or domain.Infinite.
	Repetitions int

	// Period is the cadence between executions. Zero or negative runs the task
	// every time its worker cycles.
	Period time.Duration

	// Seq is the submission sequence number, used to break significance ties.
	Seq uint64

	// Owner is the group the task will be appended to.
	Owner Owner

	// Mon receives the task state after each execution. Optional.
	Mon domain.Monitoring

	// Now is the submission time; the first execution is due immediately at Now.
	// Defaults to time.Now().
	Now time.Time
}

// Task is a schedulable unit of work with a cadence, a repetition budget and a
// time-based significance score. Tasks are identified by pointer: two tasks
// with identical parameters are distinct.
type Task struct {
	id     string
	fn     domain.TaskFn
	tier   domain.Tier
	period time.Duration
	seq    uint64
	owner  Owner
	mon    domain.Monitoring

	// mu guards the scheduling fields below.
	mu         sync.Mutex
	remaining  int
	nextDue    time.Time
	lastRun    time.Time
	repetition int
	state      domain.TaskState

	// execMu is held for the whole body of an execution. Graceful retirement
	// acquires it to wait for an in-flight execution.
	execMu sync.Mutex

	retired atomic.Bool
}

// New validates cfg and creates a task that is due immediately.
//
// A task created with zero repetitions is born retired and never executes.
func New(cfg Config) (*Task, error) {
	if cfg.Fn == nil {
		return nil, errs.New(errs.ErrEmptyFunction, "task callback is nil")
	}
	if cfg.Repetitions < domain.Infinite {
		return nil, errs.New(errs.ErrInvalidRepetitions, fmt.Sprintf("repetitions - %d", cfg.Repetitions))
	}
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}

	t := &Task{
		id:        "task_" + uuid.New().String(),
		fn:        cfg.Fn,
		tier:      cfg.Tier,
		period:    cfg.Period,
		seq:       cfg.Seq,
		owner:     cfg.Owner,
		mon:       cfg.Mon,
		remaining: cfg.Repetitions,
		nextDue:   cfg.Now,
		lastRun:   cfg.Now,
	}
	t.state = domain.TaskState{
		TaskID:    t.id,
		Group:     t.groupName(),
		Tier:      t.tier,
		Remaining: t.remaining,
	}
	if t.remaining == 0 {
		t.retired.Store(true)
		t.state.Retired = true
	}
	return t, nil
}

func (t *Task) ID() string            { return t.id }
func (t *Task) Tier() domain.Tier     { return t.tier }
func (t *Task) Period() time.Duration { return t.period }
func (t *Task) Seq() uint64           { return t.seq }
func (t *Task) Retired() bool         { return t.retired.Load() }
func (t *Task) Infinite() bool        { return t.Remaining() == domain.Infinite }
func (t *Task) String() string        { return t.id + "@" + t.groupName() }

func (t *Task) groupName() string {
	if t.owner == nil {
		return ""
	}
	return t.owner.Name()
}

// Group returns the name of the owning group.
func (t *Task) Group() string { return t.groupName() }

// Remaining returns the number of repetitions left, or domain.Infinite.
func (t *Task) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// NextDue returns the time at which the task next becomes due.
func (t *Task) NextDue() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nextDue
}

// Significance scores how overdue the task is at now:
// (now - nextDue) / max(period, Epsilon).
//
// It is zero exactly when due, positive and growing while overdue, and
// negative before the due time. Retired tasks score -Inf.
func (t *Task) Significance(now time.Time) float64 {
	if t.retired.Load() {
		return math.Inf(-1)
	}
	t.mu.Lock()
	due := t.nextDue
	t.mu.Unlock()

	period := t.period
	if period < domain.Epsilon {
		period = domain.Epsilon
	}
	return float64(now.Sub(due)) / float64(period)
}

// Execute runs one repetition of the task.
//
// It returns ran=false without calling the callback when the task is retired
// or has no repetitions left. The callback error, or a panic converted to
// ErrTaskPanicked, is wrapped in ErrTaskExecution. The repetition is consumed
// either way, and the task retires itself after its last repetition.
func (t *Task) Execute(now time.Time) (ran bool, err error) {
	t.execMu.Lock()
	defer t.execMu.Unlock()

	if t.retired.Load() {
		return false, nil
	}

	t.mu.Lock()
	if t.remaining == 0 {
		t.mu.Unlock()
		t.Retire()
		return false, nil
	}
	elapsed := now.Sub(t.lastRun)
	rep := t.repetition
	t.repetition++
	t.lastRun = now
	t.nextDue = now.Add(max(t.period, 0))
	t.mu.Unlock()

	start := time.Now()
	err = t.invoke(elapsed, rep)
	end := time.Now()

	t.mu.Lock()
	if t.remaining > 0 {
		t.remaining--
	}
	last := t.remaining == 0
	t.state.StartAt = start
	t.state.EndAt = end
	t.state.ExecutionTime = end.Sub(start).Nanoseconds()
	t.state.Executions++
	t.state.Remaining = t.remaining
	t.state.Error = err
	if err != nil {
		t.state.Failures++
	}
	t.mu.Unlock()

	if last {
		t.Retire()
	} else {
		t.saveMetrics()
	}
	return true, err
}

func (t *Task) invoke(elapsed time.Duration, rep int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: task id: %s, error: %w: %v", errs.ErrTaskExecution, t.id, errs.ErrTaskPanicked, r)
		}
	}()
	if execErr := t.fn(elapsed, rep); execErr != nil {
		return errs.New(errs.ErrTaskExecution, fmt.Sprintf("task id: %s, error: %v", t.id, execErr))
	}
	return nil
}

// Retire removes the task from its group immediately. An execution already
// in progress is not interrupted, but no new execution starts.
// Retire is idempotent.
func (t *Task) Retire() {
	if !t.retired.CompareAndSwap(false, true) {
		return
	}
	if t.owner != nil {
		t.owner.Detach(t)
	}
	t.mu.Lock()
	t.state.Retired = true
	t.mu.Unlock()
	t.saveMetrics()
}

// RetireGracefully waits for an in-flight execution to return, then retires the task.
// It must not be called from the task's own callback.
func (t *Task) RetireGracefully() {
	t.execMu.Lock()
	defer t.execMu.Unlock()
	t.Retire()
}

// State returns a snapshot of the task's execution record.
func (t *Task) State() domain.TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) saveMetrics() {
	if t.mon == nil {
		return
	}
	t.mon.SaveMetrics(t.State())
}
