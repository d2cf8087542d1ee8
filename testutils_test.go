package pacer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/osmike/pacer/internal/glthread"
)

// waitForCondition polls the condition function until it returns true or timeout is reached.
// It fails the test with a fatal error if the timeout is reached.
func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timeout waiting for condition")
}

// testWindow is bound to the render thread by Init and requests close after
// closeAfter presented frames, when closeAfter > 0.
type testWindow struct {
	affinity   glthread.Affinity
	closeAfter int64
	presented  atomic.Int64
	closeReq   atomic.Bool
}

func (w *testWindow) Init()                  { w.affinity.Bind() }
func (w *testWindow) IsInitialized() bool    { return w.affinity.IsBound() }
func (w *testWindow) IsOwningThread() bool   { return w.affinity.IsOwningThread() }
func (w *testWindow) IsCloseRequested() bool { return w.closeReq.Load() }

func (w *testWindow) Update(time.Duration) error {
	if err := w.affinity.Check("present"); err != nil {
		return err
	}
	if n := w.presented.Add(1); w.closeAfter > 0 && n >= w.closeAfter {
		w.closeReq.Store(true)
	}
	return nil
}

type testScene struct {
	updates atomic.Int64
}

func (s *testScene) Update(time.Duration) { s.updates.Add(1) }

type testPipeline struct {
	scene  *testScene
	window *testWindow
	mu     sync.Mutex
	err    error
}

func (p *testPipeline) Scene() Scene { return p.scene }

func (p *testPipeline) Update(time.Duration) error {
	if err := p.window.affinity.Check("draw"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *testPipeline) setErr(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

type countingSink struct {
	reports atomic.Int64
}

func (s *countingSink) Report(string, error) { s.reports.Add(1) }

func newCollaborators(closeAfter int) (*testWindow, *testPipeline) {
	w := &testWindow{closeAfter: int64(closeAfter)}
	return w, &testPipeline{scene: &testScene{}, window: w}
}
