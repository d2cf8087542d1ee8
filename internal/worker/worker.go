// Package worker implements the goroutines that drain due tasks from groups.
package worker

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/osmike/pacer/internal/domain"
	errs "github.com/osmike/pacer/internal/error"
	"github.com/osmike/pacer/internal/glthread"
	"github.com/osmike/pacer/internal/group"
	"github.com/osmike/pacer/internal/logging"
)

// Config holds the settings of a worker.
type Config struct {
	// Name identifies the worker in logs and diagnostics.
	Name string

	// Tier is the worker's ceiling: it may only serve groups at or below it.
	Tier domain.Tier

	// Groups are the groups to poll. They are drained highest tier first;
	// groups of equal tier keep the given order.
	Groups []*group.Group

	// IdlePoll caps how long the worker sleeps between polls.
	// Defaults to domain.DEFAULT_IDLE_POLL.
	IdlePoll time.Duration

	// OnStart runs on the worker's locked OS thread before the first poll.
	// The render worker uses it to bind the graphics context.
	OnStart func()

	Logger *slog.Logger
}

// Worker is one goroutine, locked to one OS thread, serving one or more groups.
//
// Execution is cooperative: a running task is never preempted, and a
// higher-tier task that becomes due waits for the next poll boundary.
type Worker struct {
	name     string
	tier     domain.Tier
	groups   []*group.Group
	idlePoll time.Duration
	onStart  func()
	logger   *slog.Logger

	wake    chan struct{}
	done    chan struct{}
	started atomic.Bool
	alive   atomic.Bool
	tid     atomic.Int64
	polls   atomic.Int64
}

// New validates cfg and creates a stopped worker.
func New(cfg Config) (*Worker, error) {
	if len(cfg.Groups) == 0 {
		return nil, errs.New(errs.ErrNoGroups, cfg.Name)
	}
	for _, g := range cfg.Groups {
		if g.Tier() > cfg.Tier {
			return nil, errs.New(errs.ErrUnknownGroup, fmt.Sprintf("group %s tier %s exceeds worker ceiling %s", g.Name(), g.Tier(), cfg.Tier))
		}
	}
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = domain.DEFAULT_IDLE_POLL
	}

	groups := slices.Clone(cfg.Groups)
	slices.SortStableFunc(groups, func(a, b *group.Group) int {
		return cmp.Compare(b.Tier(), a.Tier())
	})

	w := &Worker{
		name:     cfg.Name,
		tier:     cfg.Tier,
		groups:   groups,
		idlePoll: cfg.IdlePoll,
		onStart:  cfg.OnStart,
		logger:   logging.OrDiscard(cfg.Logger).With("component", "worker", "worker", cfg.Name),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, g := range groups {
		g.OnAdd(w.Wake)
	}
	return w, nil
}

func (w *Worker) Name() string      { return w.name }
func (w *Worker) Tier() domain.Tier { return w.tier }

// Groups returns the served groups in drain order.
func (w *Worker) Groups() []*group.Group {
	return slices.Clone(w.groups)
}

// Done is closed when the worker's loop has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Wake interrupts the worker's sleep so it polls immediately. Never blocks.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start launches the worker loop. It runs until ctx is cancelled.
// Calling Start more than once has no effect.
func (w *Worker) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

// Started reports whether Start has been called.
func (w *Worker) Started() bool {
	return w.started.Load()
}

// Info describes the worker for diagnostics.
func (w *Worker) Info() domain.ThreadInfo {
	names := make([]string, len(w.groups))
	for i, g := range w.groups {
		names[i] = g.Name()
	}
	return domain.ThreadInfo{
		Name:       w.name,
		Tier:       w.tier,
		Groups:     names,
		OSThreadID: int(w.tid.Load()),
		Alive:      w.alive.Load(),
	}
}

// Polls returns the number of completed poll cycles.
func (w *Worker) Polls() int64 {
	return w.polls.Load()
}

func (w *Worker) run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	w.tid.Store(int64(glthread.CurrentThreadID()))
	w.alive.Store(true)
	defer func() {
		w.alive.Store(false)
		close(w.done)
	}()

	w.logger.Debug("worker started", "tier", w.tier, "os_thread", w.tid.Load())
	if w.onStart != nil {
		w.onStart()
	}

	for ctx.Err() == nil {
		w.Poll(ctx, time.Now())
		w.sleep(ctx)
	}
	w.logger.Debug("worker stopped")
}

// Poll runs one cycle: for each group in tier order, every task due at now is
// executed in descending significance order. It returns the number of
// executions. Poll stops early when ctx is cancelled.
func (w *Worker) Poll(ctx context.Context, now time.Time) int {
	executed := 0
	for _, g := range w.groups {
		for _, t := range g.Due(now) {
			if ctx.Err() != nil {
				return executed
			}
			// An earlier task in this cycle may have run t opportunistically.
			at := time.Now()
			if t.Significance(at) < 0 {
				continue
			}
			ran, err := t.Execute(at)
			if !ran {
				continue
			}
			executed++
			if err != nil {
				w.logger.Warn("task execution failed", "task", t.ID(), "group", g.Name(), "error", err)
			}
		}
	}
	w.polls.Add(1)
	return executed
}

// sleep waits until the earliest task becomes due, a submission wakes the
// worker, IdlePoll elapses, or ctx is cancelled.
func (w *Worker) sleep(ctx context.Context) {
	d := w.untilNextDue(time.Now())
	if d <= 0 {
		runtime.Gosched()
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-w.wake:
	case <-timer.C:
	}
}

func (w *Worker) untilNextDue(now time.Time) time.Duration {
	d := w.idlePoll
	for _, g := range w.groups {
		earliest, ok := g.EarliestDue()
		if !ok {
			continue
		}
		if until := earliest.Sub(now); until < d {
			d = until
		}
	}
	return d
}
