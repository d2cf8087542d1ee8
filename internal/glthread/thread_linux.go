//go:build linux

package glthread

import "golang.org/x/sys/unix"

const threadIDSupported = true

// CurrentThreadID returns the kernel id of the calling OS thread.
// The result is only stable while the goroutine is locked with runtime.LockOSThread.
func CurrentThreadID() int {
	return unix.Gettid()
}
