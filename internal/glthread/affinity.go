// Package glthread tracks which OS thread owns a graphics context.
//
// Graphics APIs bind their context to the thread that created it. The render
// worker locks its goroutine to an OS thread and binds an Affinity there;
// windows and pipelines then use IsOwningThread to reject calls from anywhere else.
package glthread

import (
	"fmt"
	"sync/atomic"

	errs "github.com/osmike/pacer/internal/error"
)

// Affinity records the OS thread that owns a graphics context.
// The zero value is unbound. All methods are safe for concurrent use.
type Affinity struct {
	owner atomic.Int64
	bound atomic.Bool
}

// Bind makes the calling OS thread the owner. The caller must have called
// runtime.LockOSThread, otherwise the goroutine may migrate away from the owner.
func (a *Affinity) Bind() {
	a.owner.Store(int64(CurrentThreadID()))
	a.bound.Store(true)
}

// Release unbinds the owner.
func (a *Affinity) Release() {
	a.bound.Store(false)
	a.owner.Store(0)
}

// Owner returns the owning thread id, 0 when unbound or unsupported.
func (a *Affinity) Owner() int {
	return int(a.owner.Load())
}

// IsBound reports whether an owner has been bound.
func (a *Affinity) IsBound() bool {
	return a.bound.Load()
}

// IsOwningThread reports whether the calling OS thread owns the context.
func (a *Affinity) IsOwningThread() bool {
	if !a.bound.Load() {
		return false
	}
	if !threadIDSupported {
		return true
	}
	return int64(CurrentThreadID()) == a.owner.Load()
}

// Check returns ErrIllegalContext when called off the owning thread.
func (a *Affinity) Check(op string) error {
	if a.IsOwningThread() {
		return nil
	}
	return errs.New(errs.ErrIllegalContext, fmt.Sprintf("%s called from thread %d, owner %d", op, CurrentThreadID(), a.Owner()))
}
