// Package group implements named, single-tier buckets of tasks.
package group

import (
	"slices"
	"sync"
	"time"

	"github.com/osmike/pacer/internal/domain"
	errs "github.com/osmike/pacer/internal/error"
	"github.com/osmike/pacer/internal/task"
)

// Group is a named collection of tasks sharing one priority tier for its whole lifetime.
//
// Tasks are kept in submission order. Enumeration always works on a snapshot,
// so tasks may be added or removed while a worker iterates.
type Group struct {
	name string
	tier domain.Tier

	mu     sync.RWMutex
	tasks  []*task.Task
	wakers []func()
}

// New creates an empty group.
func New(name string, tier domain.Tier) (*Group, error) {
	if name == "" {
		return nil, errs.New(errs.ErrEmptyName, "group name")
	}
	return &Group{name: name, tier: tier}, nil
}

func (g *Group) Name() string      { return g.name }
func (g *Group) Tier() domain.Tier { return g.tier }

// OnAdd registers fn to be called after every Add. Workers use it to wake up
// early when new work arrives.
func (g *Group) OnAdd(fn func()) {
	g.mu.Lock()
	g.wakers = append(g.wakers, fn)
	g.mu.Unlock()
}

// Add appends t to the group and wakes the workers serving it.
// Retired tasks are ignored.
func (g *Group) Add(t *task.Task) {
	if t.Retired() {
		return
	}
	g.mu.Lock()
	g.tasks = append(g.tasks, t)
	wakers := slices.Clone(g.wakers)
	g.mu.Unlock()

	for _, wake := range wakers {
		wake()
	}
}

// Detach removes t from the group by identity. It reports whether t was present.
// Detach does not touch the task itself; use Decommission to retire a task.
func (g *Group) Detach(t *task.Task) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := slices.Index(g.tasks, t)
	if i < 0 {
		return false
	}
	g.tasks = slices.Delete(g.tasks, i, i+1)
	return true
}

// Contains reports whether t currently belongs to the group.
func (g *Group) Contains(t *task.Task) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Contains(g.tasks, t)
}

// Len returns the number of tasks in the group.
func (g *Group) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.tasks)
}

// Snapshot returns a copy of the group's tasks in submission order.
func (g *Group) Snapshot() []*task.Task {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return slices.Clone(g.tasks)
}

type scored struct {
	t   *task.Task
	sig float64
}

// Due returns the tasks whose significance at now is >= 0, most significant
// first. Ties resolve by submission order.
func (g *Group) Due(now time.Time) []*task.Task {
	snapshot := g.Snapshot()
	due := make([]scored, 0, len(snapshot))
	for _, t := range snapshot {
		if sig := t.Significance(now); sig >= 0 {
			due = append(due, scored{t: t, sig: sig})
		}
	}
	slices.SortFunc(due, compareScored)

	out := make([]*task.Task, len(due))
	for i, s := range due {
		out[i] = s.t
	}
	return out
}

// NextDue returns the single most significant due task other than exclude, or
// nil if nothing is due.
func (g *Group) NextDue(now time.Time, exclude *task.Task) *task.Task {
	var best *scored
	for _, t := range g.Snapshot() {
		if t == exclude {
			continue
		}
		sig := t.Significance(now)
		if sig < 0 {
			continue
		}
		cand := scored{t: t, sig: sig}
		if best == nil || compareScored(cand, *best) < 0 {
			best = &cand
		}
	}
	if best == nil {
		return nil
	}
	return best.t
}

// EarliestDue returns the earliest next-due time among the group's tasks.
// ok is false for an empty group.
func (g *Group) EarliestDue() (earliest time.Time, ok bool) {
	for _, t := range g.Snapshot() {
		due := t.NextDue()
		if !ok || due.Before(earliest) {
			earliest, ok = due, true
		}
	}
	return earliest, ok
}

// Decommission retires t immediately. An execution already in progress is
// not waited for.
func (g *Group) Decommission(t *task.Task) error {
	if !g.Contains(t) {
		return errs.New(errs.ErrTaskNotFound, g.name)
	}
	t.Retire()
	return nil
}

// GracefullyDecommission retires t after its in-flight execution, if any,
// returns. No execution is interrupted and none starts afterwards.
func (g *Group) GracefullyDecommission(t *task.Task) error {
	if !g.Contains(t) {
		return errs.New(errs.ErrTaskNotFound, g.name)
	}
	t.RetireGracefully()
	return nil
}

func compareScored(a, b scored) int {
	switch {
	case a.sig > b.sig:
		return -1
	case a.sig < b.sig:
		return 1
	case a.t.Seq() < b.t.Seq():
		return -1
	case a.t.Seq() > b.t.Seq():
		return 1
	default:
		return 0
	}
}
