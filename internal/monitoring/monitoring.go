package monitoring

import (
	"sync"

	"github.com/osmike/pacer/internal/domain"
)

// Monitoring provides an in-memory, thread-safe implementation of the domain.Monitoring interface.
//
// It keeps the latest TaskState of every task that has executed or retired,
// keyed by task ID. Suitable for diagnostics and tests; long-running engines
// that churn many one-shot tasks should call Forget for retired tasks or plug
// in their own implementation.
type Monitoring struct {
	data *sync.Map
}

// New creates an empty Monitoring.
func New() *Monitoring {
	return &Monitoring{
		data: &sync.Map{},
	}
}

// SaveMetrics stores the latest state of a task.
func (m *Monitoring) SaveMetrics(state domain.TaskState) {
	m.data.Store(state.TaskID, state)
}

// GetMetrics returns every stored task state keyed by task ID.
func (m *Monitoring) GetMetrics() map[string]domain.TaskState {
	metrics := make(map[string]domain.TaskState)
	m.data.Range(func(key, value interface{}) bool {
		metrics[key.(string)] = value.(domain.TaskState)
		return true
	})
	return metrics
}

// Get returns the stored state of one task.
func (m *Monitoring) Get(taskID string) (domain.TaskState, bool) {
	v, ok := m.data.Load(taskID)
	if !ok {
		return domain.TaskState{}, false
	}
	return v.(domain.TaskState), true
}

// Forget drops every retired task's state and returns how many were dropped.
func (m *Monitoring) Forget() int {
	n := 0
	m.data.Range(func(key, value interface{}) bool {
		if value.(domain.TaskState).Retired {
			m.data.Delete(key)
			n++
		}
		return true
	})
	return n
}

// Totals sums executions and failures across all stored tasks.
func (m *Monitoring) Totals() (executions, failures int64) {
	m.data.Range(func(_, value interface{}) bool {
		s := value.(domain.TaskState)
		executions += s.Executions
		failures += s.Failures
		return true
	})
	return executions, failures
}
