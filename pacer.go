// Package pacer provides a real-time frame pacing core: a priority-tiered,
// multi-threaded task scheduler that drives a render loop, coupled with an
// assembly goroutine that prepares frame N+1 while frame N is drawn.
//
// Work is organised in named groups, each with a fixed priority tier. Workers
// are goroutines locked to OS threads; each serves a set of groups, highest
// tier first, running due tasks in order of significance (how overdue they
// are relative to their period). The render group is served by a dedicated
// worker whose thread owns the graphics context and runs the frame task.
//
// While a frame waits for its assembly pass, the render thread runs short
// render-group tasks instead of idling.
//
// Example usage:
//
//	e, _ := pacer.New(context.Background(), pacer.Config{
//		FrameCap:       60,
//		OnRenderThread: window.Init,
//	}, window, pipeline)
//
//	_, _ = e.CreateGroup("physics", pacer.High)
//	_, _ = e.CreateWorker(pacer.High, "physics")
//	_, _ = e.SubmitTask(stepPhysics, pacer.High, "physics", pacer.Infinite, 10*time.Millisecond)
//
//	e.SubscribeAssembly(func(elapsed time.Duration) { world.Advance(elapsed) })
//
//	_ = e.Start()
//	<-e.Wait()
package pacer

import (
	"context"
	"log/slog"
	"time"

	"github.com/osmike/pacer/internal/domain"
	"github.com/osmike/pacer/internal/frame"
	"github.com/osmike/pacer/internal/group"
	"github.com/osmike/pacer/internal/logging"
	"github.com/osmike/pacer/internal/monitoring"
	"github.com/osmike/pacer/internal/queue"
	"github.com/osmike/pacer/internal/scheduler"
	"github.com/osmike/pacer/internal/task"
	"github.com/osmike/pacer/internal/worker"
)

// Tier is the priority class of a group and of its tasks.
//
// Possible tiers, lowest first:
//   - Low
//   - Medium
//   - High
//   - Absolute
type Tier = domain.Tier

const (
	Low      = domain.Low
	Medium   = domain.Medium
	High     = domain.High
	Absolute = domain.Absolute
)

// Status is the lifecycle status of the engine's scheduler. It only moves
// forward: Created, Starting, Running, Terminating, Terminated.
type Status = domain.Status

const (
	Created     = domain.Created
	Starting    = domain.Starting
	Running     = domain.Running
	Terminating = domain.Terminating
	Terminated  = domain.Terminated
)

// Infinite repetitions keep a task scheduled until it is decommissioned.
const Infinite = domain.Infinite

// RenderGroup is the name of the Absolute group served by the render thread.
const RenderGroup = domain.RenderGroup

// TaskFn is the callback of a task. elapsed is the time since the previous
// execution (or since submission), repetition counts executions from zero.
// A returned error or a panic is logged and recorded; the repetition still counts.
type TaskFn = domain.TaskFn

// Callback is a one-shot pre-draw or assembly callback.
type Callback = domain.Callback

// SubscriberFn is called on every assembly pass with the time since the previous pass.
type SubscriberFn = domain.SubscriberFn

// Window, RenderPipeline, Scene and ErrorSink are the collaborators the engine
// drives. See the domain package for their contracts.
type (
	Window         = domain.Window
	RenderPipeline = domain.RenderPipeline
	Scene          = domain.Scene
	ErrorSink      = domain.ErrorSink
)

// TaskState is the execution record of a task: executions, failures, the
// timing of the last execution and its error.
type TaskState = domain.TaskState

// ThreadInfo describes one worker thread.
type ThreadInfo = domain.ThreadInfo

// Task is the handle of a submitted task. Identity is by pointer.
type Task = task.Task

// Group is a named, single-tier bucket of tasks.
type Group = group.Group

// Worker is one goroutine, locked to one OS thread, serving one or more groups.
type Worker = worker.Worker

// Subscription is the handle returned by SubscribeAssembly.
type Subscription = queue.Subscription

// Monitoring collects the execution record of every task.
//
// Implementations may keep the states in memory, log them, or forward them to
// an external system. SaveMetrics is called from worker threads and must be
// safe for concurrent use.
type Monitoring = domain.Monitoring

// Config holds the engine settings.
//
// Parameters:
//   - FrameCap: frames per second. Zero or negative runs frames as fast as
//     the render worker cycles.
//   - IdlePoll: upper bound on a worker's sleep between polls.
//     Defaults to 100ms if set to 0.
//   - OnRenderThread: runs once on the render worker's locked OS thread before
//     the first frame. Use it to create or bind the graphics context.
//   - Monitoring: receives task execution records. Defaults to an in-memory store.
//   - Sink: receives dropped-frame and assembly failures. Defaults to logging them.
//   - Logger: structured logger. Defaults to discarding output.
type Config struct {
	FrameCap       int
	IdlePoll       time.Duration
	OnRenderThread func()
	Monitoring     Monitoring
	Sink           ErrorSink
	Logger         *slog.Logger
}

// Engine wires a scheduler, the render group and its worker, and the frame
// loop around the injected window and pipeline.
type Engine struct {
	sched     *scheduler.Scheduler
	loop      *frame.Loop
	render    *group.Group
	frameTask *task.Task
	mon       Monitoring
	logger    *slog.Logger
}

// New creates an engine in the Created status. The render group and its
// worker exist already; more groups and workers may be added before Start.
func New(ctx context.Context, cfg Config, window Window, pipeline RenderPipeline) (*Engine, error) {
	logger := logging.OrDiscard(cfg.Logger)
	if cfg.Monitoring == nil {
		cfg.Monitoring = monitoring.New()
	}
	if cfg.Sink == nil {
		cfg.Sink = logging.NewSink(logger)
	}

	e := &Engine{
		mon:    cfg.Monitoring,
		logger: logger.With("component", "engine"),
	}
	e.sched = scheduler.New(ctx, scheduler.Config{
		IdlePoll: cfg.IdlePoll,
		Mon:      cfg.Monitoring,
		Logger:   logger,
	})

	render, err := e.sched.CreateGroup(RenderGroup, Absolute)
	if err != nil {
		return nil, err
	}
	e.render = render

	e.loop, err = frame.New(frame.Config{
		Window:   window,
		Pipeline: pipeline,
		Sink:     cfg.Sink,
		Render:   render,
		FrameCap: cfg.FrameCap,
		OnClose:  e.onClose,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	render.OnAdd(e.loop.Nudge)

	if _, err := e.sched.CreateWorkerWithInit(Absolute, cfg.OnRenderThread, RenderGroup); err != nil {
		return nil, err
	}

	e.frameTask, err = e.sched.SubmitTask(e.loop.TaskFn(), Absolute, RenderGroup, Infinite, e.loop.Period())
	if err != nil {
		return nil, err
	}
	e.loop.Bind(e.frameTask)
	return e, nil
}

// Start launches the assembly goroutine and every worker.
func (e *Engine) Start() error {
	e.loop.Start()
	return e.sched.Start()
}

// Shutdown stops the assembly goroutine, then every worker, and waits for
// them to exit. It is idempotent. It must not be called from a task; tasks
// should request close through the window instead.
func (e *Engine) Shutdown() error {
	e.loop.Stop()
	return e.sched.Shutdown()
}

// Wait is closed once the engine has terminated.
func (e *Engine) Wait() <-chan struct{} {
	return e.sched.Terminated()
}

func (e *Engine) onClose() {
	e.logger.Info("window requested close, shutting down")
	if err := e.Shutdown(); err != nil {
		e.logger.Error("shutdown failed", "error", err)
	}
}

func (e *Engine) Status() Status {
	return e.sched.Status()
}

// CreateGroup registers a new group. Names must be unique.
func (e *Engine) CreateGroup(name string, tier Tier) (*Group, error) {
	return e.sched.CreateGroup(name, tier)
}

func (e *Engine) Group(name string) (*Group, error) {
	return e.sched.Group(name)
}

func (e *Engine) Groups() []*Group {
	return e.sched.Groups()
}

// CreateWorker spawns a worker with the given tier ceiling serving the named
// groups. It starts immediately if the engine is already running.
func (e *Engine) CreateWorker(tier Tier, groupNames ...string) (*Worker, error) {
	return e.sched.CreateWorker(tier, groupNames...)
}

// SubmitTask schedules fn in the named group. See scheduler.SubmitTask.
func (e *Engine) SubmitTask(fn TaskFn, tier Tier, groupName string, repetitions int, period time.Duration) (*Task, error) {
	return e.sched.SubmitTask(fn, tier, groupName, repetitions, period)
}

// SubmitTopTask schedules fn to run once, as soon as possible.
func (e *Engine) SubmitTopTask(fn TaskFn, groupName string) (*Task, error) {
	return e.sched.SubmitTopTask(fn, groupName)
}

func (e *Engine) DecommissionTask(t *Task, groupName string) error {
	return e.sched.DecommissionTask(t, groupName)
}

func (e *Engine) GracefullyDecommissionTask(t *Task) error {
	return e.sched.GracefullyDecommissionTask(t)
}

// Threads describes every worker thread, render worker first.
func (e *Engine) Threads() []ThreadInfo {
	return e.sched.Threads()
}

// Metrics returns the execution records kept by the default in-memory
// monitoring. It returns nil when a custom Monitoring was configured.
func (e *Engine) Metrics() map[string]TaskState {
	if m, ok := e.mon.(*monitoring.Monitoring); ok {
		return m.GetMetrics()
	}
	return nil
}

// FrameTask returns the infinite Absolute task that runs the frame loop.
func (e *Engine) FrameTask() *Task {
	return e.frameTask
}

// SubmitPreDrawCallback queues fn to run once on the render thread before the next frame.
func (e *Engine) SubmitPreDrawCallback(fn Callback) {
	e.loop.SubmitPreDrawCallback(fn)
}

// SubmitPreDrawCallbackPriority is SubmitPreDrawCallback with an explicit priority.
func (e *Engine) SubmitPreDrawCallbackPriority(fn Callback, priority int) {
	e.loop.SubmitPreDrawCallbackPriority(fn, priority)
}

// SubmitAssemblyCallback queues fn to run once at the start of the next assembly pass.
func (e *Engine) SubmitAssemblyCallback(fn Callback) {
	e.loop.SubmitAssemblyCallback(fn)
}

func (e *Engine) SubscribeAssembly(fn SubscriberFn) *Subscription {
	return e.loop.SubscribeAssembly(fn)
}

// UnsubscribeAssembly is best effort: a pass already in progress may still call sub once.
func (e *Engine) UnsubscribeAssembly(sub *Subscription) bool {
	return e.loop.UnsubscribeAssembly(sub)
}

func (e *Engine) LastAssemblyWaitDuration() time.Duration { return e.loop.LastAssemblyWaitDuration() }
func (e *Engine) DroppedFrameCount() int64               { return e.loop.DroppedFrameCount() }
func (e *Engine) FramesDrawn() int64                     { return e.loop.FramesDrawn() }
func (e *Engine) AssemblyPasses() int64                  { return e.loop.AssemblyPasses() }
func (e *Engine) AssemblyFailures() int64                { return e.loop.AssemblyFailures() }
func (e *Engine) OpportunisticExecutions() int64         { return e.loop.OpportunisticExecutions() }
