package assembly

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/osmike/pacer/internal/domain"
	errs "github.com/osmike/pacer/internal/error"
	"github.com/osmike/pacer/internal/logging"
	"github.com/osmike/pacer/internal/queue"
)

// Source is the ErrorSink source reported for failed assembly stages.
const Source = "assembly"

type Config struct {
	Handshake *Handshake
	Pipeline  domain.RenderPipeline
	Sink      domain.ErrorSink
	Logger    *slog.Logger
}

// Assembler is the goroutine that prepares the next frame's scene while the
// current frame draws.
//
// Each pass drains the one-shot assembly callbacks, notifies the persistent
// subscribers, then advances the pipeline's scene. A panic in any stage is
// reported to the sink and counted as a failure; the remaining stages still
// run and the pass still completes, so the frame loop is never left waiting.
type Assembler struct {
	hs       *Handshake
	pipeline domain.RenderPipeline
	sink     domain.ErrorSink
	logger   *slog.Logger

	callbacks   *queue.CallbackQueue
	subscribers *queue.SubscriberSet

	lastPass time.Time
	failures atomic.Int64
	started  atomic.Bool
	done     chan struct{}
}

func New(cfg Config) (*Assembler, error) {
	if cfg.Handshake == nil || cfg.Pipeline == nil {
		return nil, errs.New(errs.ErrNilCollaborator, "assembler needs a handshake and a pipeline")
	}
	return &Assembler{
		hs:          cfg.Handshake,
		pipeline:    cfg.Pipeline,
		sink:        cfg.Sink,
		logger:      logging.OrDiscard(cfg.Logger).With("component", "assembly"),
		callbacks:   queue.NewCallbackQueue(),
		subscribers: queue.NewSubscriberSet(),
		done:        make(chan struct{}),
	}, nil
}

// Start launches the assembly goroutine. Calling Start more than once has no effect.
func (a *Assembler) Start() {
	if !a.started.CompareAndSwap(false, true) {
		return
	}
	a.lastPass = time.Now()
	go a.run()
}

// Stop releases the handshake and waits for the goroutine to exit after its
// current pass.
func (a *Assembler) Stop() {
	a.hs.Stop()
	if a.started.Load() {
		<-a.done
	}
}

// Done is closed once the assembly goroutine has exited.
func (a *Assembler) Done() <-chan struct{} {
	return a.done
}

// SubmitCallback queues fn to run once at the start of the next pass.
func (a *Assembler) SubmitCallback(fn domain.Callback) {
	a.callbacks.Push(fn)
}

// Subscribe registers fn to be called on every pass with the time elapsed
// since the previous pass.
func (a *Assembler) Subscribe(fn domain.SubscriberFn) *queue.Subscription {
	return a.subscribers.Add(fn)
}

// Unsubscribe removes sub. A pass that already took its snapshot may still
// call it once.
func (a *Assembler) Unsubscribe(sub *queue.Subscription) bool {
	return a.subscribers.Remove(sub)
}

// Failures returns the number of stages that panicked.
func (a *Assembler) Failures() int64 {
	return a.failures.Load()
}

func (a *Assembler) Passes() int64 {
	return a.hs.Passes()
}

func (a *Assembler) run() {
	defer close(a.done)
	a.logger.Debug("assembly started")
	for a.hs.AwaitSignal() {
		a.Pass(time.Now())
		a.hs.Finish()
	}
	a.logger.Debug("assembly stopped")
}

// Pass runs one assembly pass. It is exported for tests that drive the
// assembler without its goroutine; it does not touch the handshake.
func (a *Assembler) Pass(now time.Time) {
	elapsed := now.Sub(a.lastPass)
	a.lastPass = now

	a.guard("callbacks", func() { a.callbacks.Drain() })
	for _, fn := range a.subscribers.Snapshot() {
		a.guard("subscriber", func() { fn(elapsed) })
	}
	a.guard("scene", func() {
		if scene := a.pipeline.Scene(); scene != nil {
			scene.Update(elapsed)
		}
	})
}

func (a *Assembler) guard(stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			a.failures.Add(1)
			err := errs.New(errs.ErrAssembly, fmt.Sprintf("%s: %v", stage, r))
			a.logger.Warn("assembly stage panicked", "stage", stage, "error", err)
			if a.sink != nil {
				a.sink.Report(Source, err)
			}
		}
	}()
	fn()
}
