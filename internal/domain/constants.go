package domain

import (
	"strings"
	"time"
)

// Tier is an ordered priority class. It decides which worker serves a group
// and which group a worker drains first.
//
// Tiers compare with the usual integer operators: Absolute > High > Medium > Low.
type Tier int

const (
	// Low is for background work that may be delayed arbitrarily under load.
	Low Tier = iota
	// Medium is the default tier for gameplay and simulation tasks.
	Medium
	// High is for latency sensitive work such as input processing.
	High
	// Absolute is reserved for the frame loop and work that must run on the render thread.
	Absolute
)

// Tiers lists every tier from highest to lowest.
var Tiers = []Tier{Absolute, High, Medium, Low}

func (t Tier) String() string {
	switch t {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Absolute:
		return "absolute"
	default:
		return "unknown"
	}
}

// ParseTier converts a tier name (case insensitive) to a Tier.
// The second return value is false for unrecognized names.
func ParseTier(s string) (Tier, bool) {
	for _, t := range Tiers {
		if strings.EqualFold(s, t.String()) {
			return t, true
		}
	}
	return Low, false
}

// Status represents the lifecycle status of a scheduler.
//
// Transitions are monotonic and one-directional:
// - Created:     groups and workers may be registered, nothing runs yet.
// - Starting:    workers are being launched.
// - Running:     workers poll their groups.
// - Terminating: workers finish their current cycle and exit.
// - Terminated:  all workers have exited; the scheduler cannot be restarted.
type Status int

const (
	Created Status = iota
	Starting
	Running
	Terminating
	Terminated
)

func (s Status) String() string {
	switch s {
	case Created:
		return "created"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Terminating:
		return "terminating"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// CanTransition reports whether a scheduler in status s may move to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case Created:
		return next == Starting || next == Terminating
	case Starting:
		return next == Running || next == Terminating
	case Running:
		return next == Terminating
	case Terminating:
		return next == Terminated
	default:
		return false
	}
}

const (
	// Infinite marks a task that never self-retires.
	Infinite = -1

	// Epsilon is the smallest period used when computing significance, so that
	// tasks with no cadence still produce finite scores.
	Epsilon = time.Millisecond

	// DEFAULT_IDLE_POLL caps how long a worker sleeps when none of its tasks is due.
	// Submissions wake workers early, so this only bounds the reaction to clock drift.
	DEFAULT_IDLE_POLL = 100 * time.Millisecond

	// RenderGroup is the name of the Absolute-tier group the frame loop runs in.
	RenderGroup = "render"
)

// FramePeriod returns the frame task cadence for a frame cap in frames per second.
// A non-positive cap yields 0, which means "as fast as the worker cycles".
func FramePeriod(frameCap int) time.Duration {
	if frameCap <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(frameCap))
}
