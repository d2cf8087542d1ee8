// Package frame drives one frame per invocation of the render task: it drains
// the pre-draw callbacks, waits for the assembly pass of this frame while
// running short render-group tasks, then draws.
package frame

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/osmike/pacer/internal/assembly"
	"github.com/osmike/pacer/internal/domain"
	errs "github.com/osmike/pacer/internal/error"
	"github.com/osmike/pacer/internal/logging"
	"github.com/osmike/pacer/internal/queue"
	"github.com/osmike/pacer/internal/task"
)

// Source is the ErrorSink source reported for dropped frames.
const Source = "frame"

// Phase is the frame loop's position within a frame.
type Phase int32

const (
	Idle Phase = iota
	Draining
	WaitingForAssembly
	Drawing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Draining:
		return "draining"
	case WaitingForAssembly:
		return "waiting_for_assembly"
	case Drawing:
		return "drawing"
	default:
		return "unknown"
	}
}

// Opportunist supplies the short tasks the frame loop runs while it waits for
// assembly. *group.Group implements it.
type Opportunist interface {
	NextDue(now time.Time, exclude *task.Task) *task.Task
}

type Config struct {
	Window   domain.Window
	Pipeline domain.RenderPipeline
	Sink     domain.ErrorSink

	// Render is the group polled for opportunistic work. Optional.
	Render Opportunist

	// FrameCap limits frames per second. Zero or negative is uncapped.
	FrameCap int

	// OnClose is called once, on its own goroutine, when the window requests
	// to close.
	OnClose func()

	Logger *slog.Logger
}

// Loop owns the per-frame state. RunFrame must only be called from the
// thread that owns the window's graphics context, and never concurrently.
type Loop struct {
	window   domain.Window
	pipeline domain.RenderPipeline
	sink     domain.ErrorSink
	render   Opportunist
	onClose  func()
	period   time.Duration
	logger   *slog.Logger

	hs        *assembly.Handshake
	assembler *assembly.Assembler
	preDraw   *queue.CallbackQueue

	self atomic.Pointer[task.Task]

	phase         atomic.Int32
	dropped       atomic.Int64
	drawn         atomic.Int64
	opportunistic atomic.Int64
	lastWait      atomic.Int64

	closeOnce sync.Once
}

func New(cfg Config) (*Loop, error) {
	if cfg.Window == nil || cfg.Pipeline == nil {
		return nil, errs.New(errs.ErrNilCollaborator, "frame loop needs a window and a pipeline")
	}
	logger := logging.OrDiscard(cfg.Logger)
	sink := cfg.Sink
	if sink == nil {
		sink = logging.NewSink(logger)
	}

	hs := assembly.NewHandshake()
	asm, err := assembly.New(assembly.Config{
		Handshake: hs,
		Pipeline:  cfg.Pipeline,
		Sink:      sink,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	return &Loop{
		window:    cfg.Window,
		pipeline:  cfg.Pipeline,
		sink:      sink,
		render:    cfg.Render,
		onClose:   cfg.OnClose,
		period:    domain.FramePeriod(cfg.FrameCap),
		logger:    logger.With("component", "frame"),
		hs:        hs,
		assembler: asm,
		preDraw:   queue.NewCallbackQueue(),
	}, nil
}

// Period is the cadence of the frame task.
func (l *Loop) Period() time.Duration {
	return l.period
}

// Bind records the task that runs this loop so it is never picked as
// opportunistic work by itself.
func (l *Loop) Bind(t *task.Task) {
	l.self.Store(t)
}

// TaskFn adapts RunFrame to a task callback.
func (l *Loop) TaskFn() domain.TaskFn {
	return func(elapsed time.Duration, _ int) error {
		return l.RunFrame(elapsed)
	}
}

// Start launches the assembly goroutine. The first pass starts immediately.
func (l *Loop) Start() {
	l.assembler.Start()
}

// Stop releases a frame blocked on assembly and joins the assembly goroutine.
// Frames run after Stop return without drawing.
func (l *Loop) Stop() {
	l.assembler.Stop()
}

// Nudge wakes a frame blocked on assembly so it looks for due tasks again.
// Register it as a render group waker.
func (l *Loop) Nudge() {
	l.hs.Nudge()
}

// RunFrame runs one frame. It returns ErrIllegalContext when called off the
// owning thread or before the window is initialized. Any other failure is
// reported to the sink, counted as one dropped frame, and swallowed.
func (l *Loop) RunFrame(elapsed time.Duration) error {
	if !l.window.IsOwningThread() {
		return errs.New(errs.ErrIllegalContext, "frame run off the render thread")
	}
	if !l.window.IsInitialized() {
		return errs.New(errs.ErrIllegalContext, "window not initialized")
	}

	if err := l.frame(elapsed); err != nil {
		l.dropped.Add(1)
		l.logger.Warn("frame dropped", "error", err, "dropped", l.dropped.Load())
		l.sink.Report(Source, err)
	}
	l.phase.Store(int32(Idle))
	return nil
}

func (l *Loop) frame(elapsed time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.New(errs.ErrFrameFailed, fmt.Sprintf("panic: %v", r))
		}
	}()

	l.phase.Store(int32(Draining))
	l.preDraw.Drain()

	l.phase.Store(int32(WaitingForAssembly))
	waited, ok := l.hs.WaitForAssembly(l.runOpportunistic)
	l.lastWait.Store(int64(waited))
	if !ok {
		return nil
	}

	if l.window.IsCloseRequested() {
		l.requestClose()
		return nil
	}

	l.hs.Signal()

	l.phase.Store(int32(Drawing))
	if err := l.pipeline.Update(elapsed); err != nil {
		return errs.New(errs.ErrFrameFailed, fmt.Sprintf("pipeline: %v", err))
	}
	if err := l.window.Update(elapsed); err != nil {
		return errs.New(errs.ErrFrameFailed, fmt.Sprintf("window: %v", err))
	}
	l.drawn.Add(1)
	return nil
}

// runOpportunistic executes the most significant due render task other than
// the frame task itself. It reports whether it found one.
func (l *Loop) runOpportunistic() bool {
	if l.render == nil {
		return false
	}
	t := l.render.NextDue(time.Now(), l.self.Load())
	if t == nil {
		return false
	}
	ran, err := t.Execute(time.Now())
	if ran {
		l.opportunistic.Add(1)
	}
	if err != nil {
		l.logger.Warn("opportunistic task failed", "task", t.ID(), "error", err)
	}
	return true
}

func (l *Loop) requestClose() {
	l.closeOnce.Do(func() {
		l.logger.Info("close requested", "frames", l.drawn.Load())
		if l.onClose != nil {
			go l.onClose()
		}
	})
}

// SubmitPreDrawCallback queues fn to run once on the render thread at the
// start of the next frame.
func (l *Loop) SubmitPreDrawCallback(fn domain.Callback) {
	l.preDraw.Push(fn)
}

// SubmitPreDrawCallbackPriority is SubmitPreDrawCallback with an explicit
// priority; higher runs first, equal priorities run in submission order.
func (l *Loop) SubmitPreDrawCallbackPriority(fn domain.Callback, priority int) {
	l.preDraw.PushPriority(fn, priority)
}

// SubmitAssemblyCallback queues fn to run once at the start of the next assembly pass.
func (l *Loop) SubmitAssemblyCallback(fn domain.Callback) {
	l.assembler.SubmitCallback(fn)
}

// SubscribeAssembly registers fn to run on every assembly pass.
func (l *Loop) SubscribeAssembly(fn domain.SubscriberFn) *queue.Subscription {
	return l.assembler.Subscribe(fn)
}

// UnsubscribeAssembly removes sub. A pass already in progress may still call it once.
func (l *Loop) UnsubscribeAssembly(sub *queue.Subscription) bool {
	return l.assembler.Unsubscribe(sub)
}

// LastAssemblyWaitDuration is how long the most recent frame waited for assembly.
func (l *Loop) LastAssemblyWaitDuration() time.Duration {
	return time.Duration(l.lastWait.Load())
}

func (l *Loop) DroppedFrameCount() int64       { return l.dropped.Load() }
func (l *Loop) FramesDrawn() int64             { return l.drawn.Load() }
func (l *Loop) OpportunisticExecutions() int64 { return l.opportunistic.Load() }
func (l *Loop) AssemblyPasses() int64          { return l.assembler.Passes() }
func (l *Loop) AssemblyFailures() int64        { return l.assembler.Failures() }
func (l *Loop) Phase() Phase                   { return Phase(l.phase.Load()) }
