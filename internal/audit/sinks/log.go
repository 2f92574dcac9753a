// Package sinks provides audit.Sink implementations for logging and
// metrics export.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/kittagency/ydun-scraper/internal/audit"
)

// LogSink ships the audit trail to structured logs. Compliance blocks are
// logged at warn level so they stand out during review.
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

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []audit.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("batch_id", evt.BatchUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.String("domain", evt.Domain),
			zap.String("url", evt.URL),
			zap.String("reason", evt.Reason),
			zap.Duration("dur", evt.Dur),
		}
		if evt.Attempt > 0 {
			fields = append(fields, zap.Int("attempt", evt.Attempt))
		}
		if evt.Bytes > 0 {
			fields = append(fields, zap.Int64("bytes", evt.Bytes))
		}
		if evt.Method != "" {
			fields = append(fields, zap.String("method", evt.Method))
		}
		if evt.Stage == audit.StageDecision {
			fields = append(fields, zap.Bool("allowed", evt.Allowed))
			if evt.Allowed {
				s.logger.Info("audit event", fields...)
			} else {
				s.logger.Warn("audit event", fields...)
			}
			continue
		}
		s.logger.Info("audit event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
