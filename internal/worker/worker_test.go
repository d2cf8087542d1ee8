package worker

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmike/pacer/internal/domain"
	errs "github.com/osmike/pacer/internal/error"
	"github.com/osmike/pacer/internal/glthread"
	"github.com/osmike/pacer/internal/group"
	"github.com/osmike/pacer/internal/task"
)

type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) fn(name string) domain.TaskFn {
	return func(time.Duration, int) error {
		r.mu.Lock()
		r.order = append(r.order, name)
		r.mu.Unlock()
		return nil
	}
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func newGroup(t *testing.T, name string, tier domain.Tier) *group.Group {
	t.Helper()
	g, err := group.New(name, tier)
	require.NoError(t, err)
	return g
}

func submit(t *testing.T, g *group.Group, fn domain.TaskFn, reps int, period time.Duration, due time.Time) *task.Task {
	t.Helper()
	tk, err := task.New(task.Config{Fn: fn, Tier: g.Tier(), Repetitions: reps, Period: period, Owner: g, Now: due})
	require.NoError(t, err)
	g.Add(tk)
	return tk
}

func TestWorker_New_Validation(t *testing.T) {
	_, err := New(Config{Name: "empty", Tier: domain.High})
	assert.ErrorIs(t, err, errs.ErrNoGroups)

	high := newGroup(t, "high", domain.High)
	_, err = New(Config{Name: "low", Tier: domain.Low, Groups: []*group.Group{high}})
	assert.ErrorIs(t, err, errs.ErrUnknownGroup)
}

func TestWorker_GroupsOrderedByTier(t *testing.T) {
	low := newGroup(t, "low", domain.Low)
	high := newGroup(t, "high", domain.High)
	medA := newGroup(t, "med-a", domain.Medium)
	medB := newGroup(t, "med-b", domain.Medium)

	w, err := New(Config{Name: "w", Tier: domain.Absolute, Groups: []*group.Group{low, medA, high, medB}})
	require.NoError(t, err)
	assert.Equal(t, []*group.Group{high, medA, medB, low}, w.Groups())
	assert.Equal(t, []string{"high", "med-a", "med-b", "low"}, w.Info().Groups)
}

func TestWorker_PollRunsHigherTierFirst(t *testing.T) {
	low := newGroup(t, "low", domain.Low)
	high := newGroup(t, "high", domain.High)
	w, err := New(Config{Name: "w", Tier: domain.High, Groups: []*group.Group{low, high}})
	require.NoError(t, err)

	rec := &recorder{}
	past := time.Now().Add(-time.Second)
	// The low task is far more overdue, yet the high tier still goes first.
	submit(t, low, rec.fn("low"), 1, time.Millisecond, past)
	submit(t, high, rec.fn("high"), 1, time.Second, past)
	submit(t, high, rec.fn("later"), 1, time.Second, time.Now().Add(time.Hour))

	assert.Equal(t, 2, w.Poll(context.Background(), time.Now()))
	assert.Equal(t, []string{"high", "low"}, rec.get())
	assert.Equal(t, int64(1), w.Polls())
	assert.Equal(t, 1, high.Len())
	assert.Equal(t, 0, low.Len())
}

func TestWorker_PollStopsOnCancel(t *testing.T) {
	g := newGroup(t, "g", domain.Low)
	w, err := New(Config{Name: "w", Tier: domain.Low, Groups: []*group.Group{g}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recorder{}
	submit(t, g, rec.fn("a"), 1, 0, time.Now().Add(-time.Second))
	assert.Equal(t, 0, w.Poll(ctx, time.Now()))
	assert.Empty(t, rec.get())
}

func TestWorker_RunsOnLockedThread(t *testing.T) {
	g := newGroup(t, "g", domain.Medium)
	var initThread int
	w, err := New(Config{
		Name:    "w",
		Tier:    domain.Medium,
		Groups:  []*group.Group{g},
		OnStart: func() { initThread = glthread.CurrentThreadID() },
	})
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		threads = map[int]struct{}{}
	)
	submit(t, g, func(time.Duration, int) error {
		mu.Lock()
		threads[glthread.CurrentThreadID()] = struct{}{}
		mu.Unlock()
		return nil
	}, 5, time.Millisecond, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	w.Start(ctx)
	assert.True(t, w.Started())

	require.Eventually(t, func() bool { return g.Len() == 0 }, 2*time.Second, time.Millisecond)
	info := w.Info()
	assert.True(t, info.Alive)
	assert.Equal(t, domain.Medium, info.Tier)

	cancel()
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
	assert.False(t, w.Info().Alive)

	if runtime.GOOS == "linux" || runtime.GOOS == "windows" {
		assert.Equal(t, initThread, info.OSThreadID)
		assert.Len(t, threads, 1)
		assert.Contains(t, threads, initThread)
	}
}

func TestWorker_WakesOnSubmission(t *testing.T) {
	g := newGroup(t, "g", domain.Low)
	w, err := New(Config{Name: "w", Tier: domain.Low, Groups: []*group.Group{g}, IdlePoll: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	require.Eventually(t, func() bool { return w.Polls() >= 1 }, time.Second, time.Millisecond)

	done := make(chan struct{})
	submit(t, g, func(time.Duration, int) error {
		close(done)
		return nil
	}, 1, 0, time.Now())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submission did not wake the worker")
	}
}

func TestWorker_HonoursPeriod(t *testing.T) {
	g := newGroup(t, "g", domain.High)
	w, err := New(Config{Name: "w", Tier: domain.High, Groups: []*group.Group{g}})
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		stamp []time.Time
	)
	submit(t, g, func(time.Duration, int) error {
		mu.Lock()
		stamp = append(stamp, time.Now())
		mu.Unlock()
		return nil
	}, 3, 30*time.Millisecond, time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	require.Eventually(t, func() bool { return g.Len() == 0 }, 2*time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, stamp, 3)
	for i := 1; i < len(stamp); i++ {
		assert.GreaterOrEqual(t, stamp[i].Sub(stamp[i-1]), 25*time.Millisecond)
	}
}
