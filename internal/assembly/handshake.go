// Package assembly runs scene assembly on its own goroutine, alternating
// strictly with the frame loop: assembly pass k+1 overlaps the draw of frame
// k, and frame k+1 may only draw once pass k+1 has completed.
package assembly

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is the assembly goroutine's position in the handshake.
type State int32

const (
	WaitingForSignal State = iota
	Assembling
	Stopped
)

func (s State) String() string {
	switch s {
	case WaitingForSignal:
		return "waiting_for_signal"
	case Assembling:
		return "assembling"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Handshake couples the frame loop and the assembly goroutine.
//
// pending is true while an assembly pass is requested or in progress. It
// starts true so that the first pass runs before the first draw. Both sides
// wait on condition variables sharing one mutex and always re-check their
// predicate after waking.
type Handshake struct {
	mu           sync.Mutex
	frameCond    *sync.Cond
	assemblyCond *sync.Cond

	pending bool
	running bool
	state   State

	passes atomic.Int64
}

// NewHandshake creates a handshake with the first pass already requested.
func NewHandshake() *Handshake {
	h := &Handshake{pending: true, running: true}
	h.frameCond = sync.NewCond(&h.mu)
	h.assemblyCond = sync.NewCond(&h.mu)
	return h
}

// AwaitSignal blocks the assembly goroutine until a pass is requested.
// It returns false once the handshake is stopped.
func (h *Handshake) AwaitSignal() bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for !h.pending && h.running {
		h.assemblyCond.Wait()
	}
	if !h.running {
		h.state = Stopped
		return false
	}
	h.state = Assembling
	return true
}

// Finish marks the current pass complete and wakes the frame loop.
func (h *Handshake) Finish() {
	h.mu.Lock()
	h.pending = false
	if h.running {
		h.state = WaitingForSignal
	}
	h.passes.Add(1)
	h.frameCond.Broadcast()
	h.mu.Unlock()
}

// Signal requests the next pass. Called by the frame loop right before it draws.
func (h *Handshake) Signal() {
	h.mu.Lock()
	h.pending = true
	h.assemblyCond.Signal()
	h.mu.Unlock()
}

// WaitForAssembly blocks the frame loop until the requested pass completes
// and returns how long it waited. ok is false if the handshake was stopped
// first.
//
// While the pass is outstanding, tryOpportunistic is called outside the lock;
// it should run one short task and report whether it did. The frame loop only
// blocks once it returns false, and retries after every wake-up.
func (h *Handshake) WaitForAssembly(tryOpportunistic func() bool) (waited time.Duration, ok bool) {
	start := time.Now()
	for {
		h.mu.Lock()
		if !h.running {
			h.mu.Unlock()
			return time.Since(start), false
		}
		if !h.pending {
			h.mu.Unlock()
			return time.Since(start), true
		}
		h.mu.Unlock()

		if tryOpportunistic != nil && tryOpportunistic() {
			continue
		}

		h.mu.Lock()
		if h.pending && h.running {
			h.frameCond.Wait()
		}
		h.mu.Unlock()
	}
}

// Nudge wakes a blocked frame loop so it looks for opportunistic work again.
func (h *Handshake) Nudge() {
	h.mu.Lock()
	h.frameCond.Broadcast()
	h.mu.Unlock()
}

// Stop releases both sides. After Stop, AwaitSignal returns false and
// WaitForAssembly returns immediately with ok == false.
func (h *Handshake) Stop() {
	h.mu.Lock()
	h.running = false
	h.frameCond.Broadcast()
	h.assemblyCond.Broadcast()
	h.mu.Unlock()
}

// Running reports whether Stop has not been called yet.
func (h *Handshake) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Pending reports whether a pass is requested or in progress.
func (h *Handshake) Pending() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pending
}

func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Passes returns the number of completed assembly passes.
func (h *Handshake) Passes() int64 {
	return h.passes.Load()
}
