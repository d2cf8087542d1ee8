//go:build !linux && !windows

package glthread

const threadIDSupported = false

// CurrentThreadID returns 0: thread ids are not exposed on this platform and
// affinity checks degrade to "bound or not".
func CurrentThreadID() int {
	return 0
}
