// Package softgl provides headless software implementations of the window,
// render pipeline and scene, drawing with gogpu/gg. They stand in for a real
// graphics backend in the CLI and in end-to-end tests.
package softgl

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gg"

	"github.com/osmike/pacer/internal/glthread"
)

// Window is an offscreen render target bound to the thread that initialized it.
// It requests close after a fixed number of presented frames.
type Window struct {
	width, height int
	closeAfter    int64
	output        string

	affinity    glthread.Affinity
	initialized atomic.Bool
	closeReq    atomic.Bool
	presented   atomic.Int64
	lastPresent atomic.Int64

	// dc is only touched on the owning thread, or after the engine has stopped.
	dc        *gg.Context
	closeOnce sync.Once
	closeErr  error
}

// NewWindow creates an uninitialized window. closeAfter <= 0 never requests
// close on its own. When output is set, Close saves the last frame there as PNG.
func NewWindow(width, height, closeAfter int, output string) *Window {
	return &Window{
		width:      width,
		height:     height,
		closeAfter: int64(closeAfter),
		output:     output,
	}
}

// Init creates the drawing context and binds it to the calling OS thread.
// It must run on the render worker, after runtime.LockOSThread.
func (w *Window) Init() {
	w.affinity.Bind()
	w.dc = gg.NewContext(w.width, w.height)
	w.initialized.Store(true)
}

func (w *Window) IsInitialized() bool    { return w.initialized.Load() }
func (w *Window) IsOwningThread() bool   { return w.affinity.IsOwningThread() }
func (w *Window) IsCloseRequested() bool { return w.closeReq.Load() }

// RequestClose asks the frame loop to stop drawing and shut the engine down.
func (w *Window) RequestClose() {
	w.closeReq.Store(true)
}

// Context returns the drawing context. Callers must be on the owning thread.
func (w *Window) Context() (*gg.Context, error) {
	if err := w.affinity.Check("window context"); err != nil {
		return nil, err
	}
	if w.dc == nil {
		return nil, fmt.Errorf("window %dx%d not initialized", w.width, w.height)
	}
	return w.dc, nil
}

// Update presents the frame drawn by the pipeline.
func (w *Window) Update(elapsed time.Duration) error {
	if err := w.affinity.Check("window update"); err != nil {
		return err
	}
	w.lastPresent.Store(int64(elapsed))
	if n := w.presented.Add(1); w.closeAfter > 0 && n >= w.closeAfter {
		w.RequestClose()
	}
	return nil
}

// Presented returns the number of frames presented so far.
func (w *Window) Presented() int64 {
	return w.presented.Load()
}

// Size returns the window dimensions in pixels.
func (w *Window) Size() (width, height int) {
	return w.width, w.height
}

// Close saves the last frame if an output path was configured and releases the
// drawing context. It must only be called once the frame loop has stopped.
// Close is idempotent.
func (w *Window) Close() error {
	w.closeOnce.Do(func() {
		if w.dc == nil {
			return
		}
		if w.output != "" {
			if err := w.dc.SavePNG(w.output); err != nil {
				w.closeErr = fmt.Errorf("save frame to %s: %w", w.output, err)
			}
		}
		if err := w.dc.Close(); err != nil && w.closeErr == nil {
			w.closeErr = err
		}
		w.affinity.Release()
		w.initialized.Store(false)
	})
	return w.closeErr
}
