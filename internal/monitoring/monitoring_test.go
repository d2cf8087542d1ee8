package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osmike/pacer/internal/domain"
)

func TestMonitoring_SaveAndGet(t *testing.T) {
	m := New()
	m.SaveMetrics(domain.TaskState{TaskID: "a", Executions: 1})
	m.SaveMetrics(domain.TaskState{TaskID: "a", Executions: 2, Failures: 1})
	m.SaveMetrics(domain.TaskState{TaskID: "b", Executions: 5, Retired: true})

	got, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, int64(2), got.Executions)

	_, ok = m.Get("missing")
	assert.False(t, ok)

	assert.Len(t, m.GetMetrics(), 2)

	execs, fails := m.Totals()
	assert.Equal(t, int64(7), execs)
	assert.Equal(t, int64(1), fails)
}

func TestMonitoring_Forget(t *testing.T) {
	m := New()
	m.SaveMetrics(domain.TaskState{TaskID: "live"})
	m.SaveMetrics(domain.TaskState{TaskID: "gone", Retired: true})

	assert.Equal(t, 1, m.Forget())
	_, ok := m.Get("gone")
	assert.False(t, ok)
	_, ok = m.Get("live")
	assert.True(t, ok)
}
