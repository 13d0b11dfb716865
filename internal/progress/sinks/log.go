// Package sinks provides progress.Sink implementations.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"linkharvest/internal/progress"
)

// LogSink emits structured logs for the progress stream. It is useful during
// development or audits where a metrics endpoint is unavailable.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs the event using structured fields.
func (s *LogSink) Consume(_ context.Context, evt progress.Event) error {
	s.logger.Info("progress event",
		zap.String("run_id", evt.RunID.String()),
		zap.String("stage", string(evt.Stage)),
		zap.String("target", evt.Target),
		zap.String("strategy", evt.Strategy),
		zap.String("outcome", evt.Outcome),
		zap.Int("attempts", evt.Attempts),
		zap.Int("yield", evt.Yield),
		zap.Duration("dur", evt.Dur),
		zap.String("note", evt.Note),
	)
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
