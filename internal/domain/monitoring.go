package domain

// Monitoring defines an interface for collecting task execution metrics.
//
// Implementations of this interface can persist metrics in various ways, such as:
// - In-memory storage for simple debugging and development purposes.
// - Real-time logging for operational monitoring.
// - External systems like dashboards or time-series databases.
//
// SaveMetrics is called from worker goroutines and the render thread, so
// implementations must be safe for concurrent use and should return quickly.
type Monitoring interface {
	// SaveMetrics stores execution metrics derived from a task's state.
	SaveMetrics(state TaskState)
}
