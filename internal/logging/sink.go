package logging

import (
	"log/slog"
	"sync/atomic"
)

// Sink is an ErrorSink that logs every report at error level and counts them.
type Sink struct {
	logger  *slog.Logger
	reports atomic.Int64
}

// NewSink creates a Sink writing to logger. A nil logger discards output.
func NewSink(logger *slog.Logger) *Sink {
	return &Sink{logger: OrDiscard(logger).With("component", "error-sink")}
}

// Report logs err with the component that caught it.
func (s *Sink) Report(source string, err error) {
	s.reports.Add(1)
	s.logger.Error("caught failure", "source", source, "error", err)
}

// Reports returns the number of reports received so far.
func (s *Sink) Reports() int64 {
	return s.reports.Load()
}
