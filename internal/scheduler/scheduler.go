// Package scheduler owns groups and workers and exposes the task submission API.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/osmike/pacer/internal/domain"
	errs "github.com/osmike/pacer/internal/error"
	"github.com/osmike/pacer/internal/group"
	"github.com/osmike/pacer/internal/logging"
	"github.com/osmike/pacer/internal/task"
	"github.com/osmike/pacer/internal/worker"
)

// Config holds scheduler settings.
type Config struct {
	// IdlePoll caps how long a worker sleeps between polls.
	IdlePoll time.Duration

	// Mon receives per-task metrics. Optional.
	Mon domain.Monitoring

	Logger *slog.Logger
}

// Scheduler owns a set of groups and the workers polling them, tracks the
// lifecycle status, and accepts task submissions from any goroutine.
//
// Groups and workers are normally registered while Created. Workers created
// after Start are launched immediately.
type Scheduler struct {
	idlePoll time.Duration
	mon      domain.Monitoring
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	status  domain.Status
	groups  map[string]*group.Group
	order   []*group.Group
	workers []*worker.Worker

	seq        atomic.Uint64
	terminated chan struct{}
}

// New creates a scheduler in the Created status. Cancelling ctx stops the
// workers the same way Shutdown does, but leaves the status untouched.
func New(ctx context.Context, cfg Config) *Scheduler {
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = domain.DEFAULT_IDLE_POLL
	}
	s := &Scheduler{
		idlePoll:   cfg.IdlePoll,
		mon:        cfg.Mon,
		logger:     logging.OrDiscard(cfg.Logger).With("component", "scheduler"),
		status:     domain.Created,
		groups:     make(map[string]*group.Group),
		terminated: make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	return s
}

// Status returns the current lifecycle status.
func (s *Scheduler) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ChangeStatus advances the lifecycle status. Out-of-order transitions
// return ErrStatusTransition and leave the status unchanged.
func (s *Scheduler) ChangeStatus(next domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changeStatusLocked(next)
}

func (s *Scheduler) changeStatusLocked(next domain.Status) error {
	if !s.status.CanTransition(next) {
		return errs.New(errs.ErrStatusTransition, fmt.Sprintf("from %s to %s", s.status, next))
	}
	s.logger.Debug("status changed", "from", s.status, "to", next)
	s.status = next
	return nil
}

// CreateGroup registers a new group. The name must be unique.
func (s *Scheduler) CreateGroup(name string, tier domain.Tier) (*group.Group, error) {
	g, err := group.New(name, tier)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status >= domain.Terminating {
		return nil, errs.New(errs.ErrSchedulerTerminated, name)
	}
	if _, ok := s.groups[name]; ok {
		return nil, errs.New(errs.ErrDuplicateGroup, name)
	}
	s.groups[name] = g
	s.order = append(s.order, g)
	return g, nil
}

// Group returns a registered group by name.
func (s *Scheduler) Group(name string) (*group.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groupLocked(name)
}

func (s *Scheduler) groupLocked(name string) (*group.Group, error) {
	g, ok := s.groups[name]
	if !ok {
		return nil, errs.New(errs.ErrUnknownGroup, name)
	}
	return g, nil
}

// Groups returns every group in registration order.
func (s *Scheduler) Groups() []*group.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*group.Group, len(s.order))
	copy(out, s.order)
	return out
}

// CreateWorker spawns a worker with the given tier ceiling polling exactly
// the named groups. Every group must exist and must not exceed the ceiling,
// otherwise ErrUnknownGroup is returned.
func (s *Scheduler) CreateWorker(tier domain.Tier, groupNames ...string) (*worker.Worker, error) {
	return s.CreateWorkerWithInit(tier, nil, groupNames...)
}

// CreateWorkerWithInit is CreateWorker with a hook that runs on the worker's
// OS thread before its first poll.
func (s *Scheduler) CreateWorkerWithInit(tier domain.Tier, onStart func(), groupNames ...string) (*worker.Worker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status >= domain.Terminating {
		return nil, errs.New(errs.ErrSchedulerTerminated, "create worker")
	}
	if len(groupNames) == 0 {
		return nil, errs.New(errs.ErrNoGroups, tier.String())
	}

	groups := make([]*group.Group, 0, len(groupNames))
	for _, name := range groupNames {
		g, err := s.groupLocked(name)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}

	w, err := worker.New(worker.Config{
		Name:     fmt.Sprintf("%s-%d", tier, len(s.workers)),
		Tier:     tier,
		Groups:   groups,
		IdlePoll: s.idlePoll,
		OnStart:  onStart,
		Logger:   s.logger,
	})
	if err != nil {
		return nil, err
	}
	s.workers = append(s.workers, w)
	if s.status == domain.Running {
		w.Start(s.ctx)
	}
	return w, nil
}

// Start moves the scheduler through Starting to Running and launches every worker.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.changeStatusLocked(domain.Starting); err != nil {
		return err
	}
	for _, w := range s.workers {
		w.Start(s.ctx)
	}
	s.logger.Info("scheduler started", "workers", len(s.workers), "groups", len(s.order))
	return s.changeStatusLocked(domain.Running)
}

// Shutdown stops every worker and waits for them to exit. Running task
// bodies are not interrupted; each worker exits after its current execution.
//
// Shutdown is idempotent: concurrent and repeated calls wait for the same
// termination. It must not be called from a worker goroutine, which would
// wait for itself; request shutdown asynchronously from tasks instead.
func (s *Scheduler) Shutdown() error {
	s.mu.Lock()
	switch s.status {
	case domain.Terminating, domain.Terminated:
		s.mu.Unlock()
		<-s.terminated
		return nil
	}
	if err := s.changeStatusLocked(domain.Terminating); err != nil {
		s.mu.Unlock()
		return err
	}
	workers := make([]*worker.Worker, len(s.workers))
	copy(workers, s.workers)
	s.mu.Unlock()

	s.cancel()
	for _, w := range workers {
		// Workers never started have no loop to wait for.
		if w.Started() {
			<-w.Done()
		}
	}

	s.mu.Lock()
	err := s.changeStatusLocked(domain.Terminated)
	s.mu.Unlock()
	close(s.terminated)
	s.logger.Info("scheduler terminated")
	return err
}

// Terminated is closed once Shutdown has completed.
func (s *Scheduler) Terminated() <-chan struct{} {
	return s.terminated
}

// SubmitTask creates a task and appends it to the named group.
//
// repetitions is the number of executions, or -1 for infinite. period <= 0
// runs the task every time its worker cycles. The tier must match the group's tier.
// The returned handle identifies this submission for decommissioning.
func (s *Scheduler) SubmitTask(fn domain.TaskFn, tier domain.Tier, groupName string, repetitions int, period time.Duration) (*task.Task, error) {
	s.mu.Lock()
	if s.status == domain.Terminated {
		s.mu.Unlock()
		return nil, errs.New(errs.ErrSchedulerTerminated, groupName)
	}
	g, err := s.groupLocked(groupName)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if tier != g.Tier() {
		return nil, errs.New(errs.ErrTierMismatch, fmt.Sprintf("task tier %s, group %s tier %s", tier, groupName, g.Tier()))
	}

	t, err := task.New(task.Config{
		Fn:          fn,
		Tier:        tier,
		Repetitions: repetitions,
		Period:      period,
		Seq:         s.seq.Add(1),
		Owner:       g,
		Mon:         s.mon,
	})
	if err != nil {
		return nil, err
	}
	g.Add(t)
	return t, nil
}

// SubmitTopTask submits a task that runs once, as soon as possible, at the group's tier.
func (s *Scheduler) SubmitTopTask(fn domain.TaskFn, groupName string) (*task.Task, error) {
	g, err := s.Group(groupName)
	if err != nil {
		return nil, err
	}
	return s.SubmitTask(fn, g.Tier(), groupName, 1, 0)
}

// DecommissionTask removes t from the named group immediately. An execution
// already in progress is not waited for and not interrupted.
func (s *Scheduler) DecommissionTask(t *task.Task, groupName string) error {
	g, err := s.Group(groupName)
	if err != nil {
		return err
	}
	return g.Decommission(t)
}

// GracefullyDecommissionTask removes t from its group once its in-flight
// execution, if any, has returned.
func (s *Scheduler) GracefullyDecommissionTask(t *task.Task) error {
	g, err := s.Group(t.Group())
	if err != nil {
		return err
	}
	return g.GracefullyDecommission(t)
}

// Workers returns the workers in creation order.
func (s *Scheduler) Workers() []*worker.Worker {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*worker.Worker, len(s.workers))
	copy(out, s.workers)
	return out
}

// Threads describes the worker threads. It is meant for diagnostics only.
func (s *Scheduler) Threads() []domain.ThreadInfo {
	workers := s.Workers()
	out := make([]domain.ThreadInfo, len(workers))
	for i, w := range workers {
		out[i] = w.Info()
	}
	return out
}
