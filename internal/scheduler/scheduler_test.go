package scheduler

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osmike/pacer/internal/domain"
	errs "github.com/osmike/pacer/internal/error"
	"github.com/osmike/pacer/internal/monitoring"
)

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := New(context.Background(), Config{IdlePoll: 10 * time.Millisecond, Mon: monitoring.New()})
	t.Cleanup(func() { _ = s.Shutdown() })
	return s
}

func noop(time.Duration, int) error { return nil }

func TestScheduler_CreateGroup(t *testing.T) {
	s := newScheduler(t)

	g, err := s.CreateGroup("physics", domain.High)
	require.NoError(t, err)
	assert.Equal(t, domain.High, g.Tier())

	_, err = s.CreateGroup("physics", domain.Low)
	assert.ErrorIs(t, err, errs.ErrDuplicateGroup)

	_, err = s.CreateGroup("", domain.Low)
	assert.ErrorIs(t, err, errs.ErrEmptyName)

	_, err = s.Group("missing")
	assert.ErrorIs(t, err, errs.ErrUnknownGroup)

	got, err := s.Group("physics")
	require.NoError(t, err)
	assert.Same(t, g, got)
	assert.Len(t, s.Groups(), 1)
}

func TestScheduler_CreateWorker(t *testing.T) {
	s := newScheduler(t)
	_, err := s.CreateGroup("high", domain.High)
	require.NoError(t, err)
	_, err = s.CreateGroup("low", domain.Low)
	require.NoError(t, err)

	_, err = s.CreateWorker(domain.High, "missing")
	assert.ErrorIs(t, err, errs.ErrUnknownGroup)

	_, err = s.CreateWorker(domain.Medium, "high")
	assert.ErrorIs(t, err, errs.ErrUnknownGroup)

	_, err = s.CreateWorker(domain.Medium)
	assert.ErrorIs(t, err, errs.ErrNoGroups)

	w, err := s.CreateWorker(domain.High, "low", "high")
	require.NoError(t, err)
	assert.Equal(t, "high-0", w.Name())
	assert.False(t, w.Started())
	assert.Len(t, s.Workers(), 1)
}

func TestScheduler_StatusLifecycle(t *testing.T) {
	s := newScheduler(t)
	assert.Equal(t, domain.Created, s.Status())

	assert.ErrorIs(t, s.ChangeStatus(domain.Running), errs.ErrStatusTransition)

	require.NoError(t, s.Start())
	assert.Equal(t, domain.Running, s.Status())
	assert.ErrorIs(t, s.Start(), errs.ErrStatusTransition)
	assert.ErrorIs(t, s.ChangeStatus(domain.Created), errs.ErrStatusTransition)

	require.NoError(t, s.Shutdown())
	assert.Equal(t, domain.Terminated, s.Status())
	require.NoError(t, s.Shutdown())

	select {
	case <-s.Terminated():
	default:
		t.Fatal("terminated channel not closed")
	}

	_, err := s.CreateGroup("late", domain.Low)
	assert.ErrorIs(t, err, errs.ErrSchedulerTerminated)
}

func TestScheduler_ShutdownBeforeStart(t *testing.T) {
	s := newScheduler(t)
	_, err := s.CreateGroup("g", domain.Low)
	require.NoError(t, err)
	_, err = s.CreateWorker(domain.Low, "g")
	require.NoError(t, err)

	require.NoError(t, s.Shutdown())
	assert.Equal(t, domain.Terminated, s.Status())
}

func TestScheduler_SubmitTaskValidation(t *testing.T) {
	s := newScheduler(t)
	_, err := s.CreateGroup("g", domain.Medium)
	require.NoError(t, err)

	_, err = s.SubmitTask(noop, domain.Medium, "missing", 1, 0)
	assert.ErrorIs(t, err, errs.ErrUnknownGroup)

	_, err = s.SubmitTask(noop, domain.High, "g", 1, 0)
	assert.ErrorIs(t, err, errs.ErrTierMismatch)

	_, err = s.SubmitTask(nil, domain.Medium, "g", 1, 0)
	assert.ErrorIs(t, err, errs.ErrEmptyFunction)

	_, err = s.SubmitTask(noop, domain.Medium, "g", -5, 0)
	assert.ErrorIs(t, err, errs.ErrInvalidRepetitions)

	a, err := s.SubmitTask(noop, domain.Medium, "g", 1, 0)
	require.NoError(t, err)
	b, err := s.SubmitTask(noop, domain.Medium, "g", 1, 0)
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Less(t, a.Seq(), b.Seq())

	require.NoError(t, s.Shutdown())
	_, err = s.SubmitTask(noop, domain.Medium, "g", 1, 0)
	assert.ErrorIs(t, err, errs.ErrSchedulerTerminated)
}

func TestScheduler_RepetitionsThenRemoval(t *testing.T) {
	s := newScheduler(t)
	g, err := s.CreateGroup("g", domain.Low)
	require.NoError(t, err)
	_, err = s.CreateWorker(domain.Low, "g")
	require.NoError(t, err)
	require.NoError(t, s.Start())

	var runs atomic.Int64
	tk, err := s.SubmitTask(func(time.Duration, int) error {
		runs.Add(1)
		return nil
	}, domain.Low, "g", 3, 5*time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !g.Contains(tk) }, 2*time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int64(3), runs.Load())
	assert.True(t, tk.Retired())
}

func TestScheduler_SubmitTopTaskRunsOnce(t *testing.T) {
	s := newScheduler(t)
	_, err := s.CreateGroup("g", domain.High)
	require.NoError(t, err)
	_, err = s.CreateWorker(domain.High, "g")
	require.NoError(t, err)
	require.NoError(t, s.Start())

	var runs atomic.Int64
	tk, err := s.SubmitTopTask(func(time.Duration, int) error {
		runs.Add(1)
		return errors.New("reported, not fatal")
	}, "g")
	require.NoError(t, err)
	assert.Equal(t, domain.High, tk.Tier())

	require.Eventually(t, tk.Retired, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), runs.Load())
	assert.Equal(t, domain.Running, s.Status())
}

func TestScheduler_DecommissionTask(t *testing.T) {
	s := newScheduler(t)
	g, err := s.CreateGroup("g", domain.Medium)
	require.NoError(t, err)
	_, err = s.CreateGroup("other", domain.Medium)
	require.NoError(t, err)
	_, err = s.CreateWorker(domain.Medium, "g")
	require.NoError(t, err)
	require.NoError(t, s.Start())

	var runs atomic.Int64
	tk, err := s.SubmitTask(func(time.Duration, int) error {
		runs.Add(1)
		return nil
	}, domain.Medium, "g", domain.Infinite, time.Millisecond)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return runs.Load() > 2 }, time.Second, time.Millisecond)

	assert.ErrorIs(t, s.DecommissionTask(tk, "other"), errs.ErrTaskNotFound)
	require.NoError(t, s.DecommissionTask(tk, "g"))
	assert.False(t, g.Contains(tk))

	// At most one execution already in flight may still finish.
	settled := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), settled+1)
}

func TestScheduler_GracefullyDecommissionWaits(t *testing.T) {
	s := newScheduler(t)
	_, err := s.CreateGroup("g", domain.Low)
	require.NoError(t, err)
	_, err = s.CreateWorker(domain.Low, "g")
	require.NoError(t, err)
	require.NoError(t, s.Start())

	started := make(chan struct{}, 1)
	var inFlight, runs atomic.Int64
	tk, err := s.SubmitTask(func(time.Duration, int) error {
		inFlight.Add(1)
		defer inFlight.Add(-1)
		runs.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		time.Sleep(40 * time.Millisecond)
		return nil
	}, domain.Low, "g", domain.Infinite, 0)
	require.NoError(t, err)

	<-started
	require.NoError(t, s.GracefullyDecommissionTask(tk))
	assert.Equal(t, int64(0), inFlight.Load())

	settled := runs.Load()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, settled, runs.Load())
}

func TestScheduler_WorkerCreatedWhileRunning(t *testing.T) {
	s := newScheduler(t)
	require.NoError(t, s.Start())
	_, err := s.CreateGroup("late", domain.Low)
	require.NoError(t, err)
	w, err := s.CreateWorker(domain.Low, "late")
	require.NoError(t, err)
	assert.True(t, w.Started())

	done := make(chan struct{})
	_, err = s.SubmitTopTask(func(time.Duration, int) error {
		close(done)
		return nil
	}, "late")
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("late worker never ran the task")
	}
}

func TestScheduler_Threads(t *testing.T) {
	s := newScheduler(t)
	_, err := s.CreateGroup("a", domain.High)
	require.NoError(t, err)
	_, err = s.CreateGroup("b", domain.Low)
	require.NoError(t, err)
	_, err = s.CreateWorker(domain.High, "a")
	require.NoError(t, err)
	_, err = s.CreateWorker(domain.Low, "b")
	require.NoError(t, err)
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool {
		for _, info := range s.Threads() {
			if !info.Alive {
				return false
			}
		}
		return true
	}, time.Second, time.Millisecond)

	threads := s.Threads()
	require.Len(t, threads, 2)
	assert.Equal(t, "high-0", threads[0].Name)
	assert.Equal(t, []string{"a"}, threads[0].Groups)
	assert.Equal(t, "low-1", threads[1].Name)
	if runtime.GOOS == "linux" || runtime.GOOS == "windows" {
		assert.NotZero(t, threads[0].OSThreadID)
		assert.NotEqual(t, threads[0].OSThreadID, threads[1].OSThreadID)
	}

	require.NoError(t, s.Shutdown())
	for _, info := range s.Threads() {
		assert.False(t, info.Alive)
	}
}
