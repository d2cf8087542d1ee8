package domain

import "time"

// Window is the native surface the frame loop draws into.
//
// IsOwningThread must report whether the calling OS thread owns the graphics
// context; the frame loop refuses to run on any other thread.
type Window interface {
	IsCloseRequested() bool
	IsOwningThread() bool
	IsInitialized() bool
	// Update presents the render target. Called once per drawn frame.
	Update(elapsed time.Duration) error
}

// RenderPipeline records and submits the draw work for one frame.
type RenderPipeline interface {
	Update(elapsed time.Duration) error
	Scene() Scene
}

// Scene is advanced once per assembly pass, concurrently with the previous frame's draw.
type Scene interface {
	Update(elapsed time.Duration)
}

// ErrorSink receives failures that are caught and must not propagate,
// such as per-frame errors and failed assembly passes.
type ErrorSink interface {
	Report(source string, err error)
}
