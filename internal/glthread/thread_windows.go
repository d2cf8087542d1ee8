//go:build windows

package glthread

import "golang.org/x/sys/windows"

const threadIDSupported = true

// CurrentThreadID returns the id of the calling OS thread.
// The result is only stable while the goroutine is locked with runtime.LockOSThread.
func CurrentThreadID() int {
	return int(windows.GetCurrentThreadId())
}
