package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSink is the fallback used when no message broker is configured. It
// records the notification in the server log and drops it.
type LogSink struct {
	lg *zap.Logger
}

var _ Sink = (*LogSink)(nil)

// NewLogSink creates a LogSink writing to lg.
func NewLogSink(lg *zap.Logger) *LogSink {
	return &LogSink{lg: lg}
}

func (s *LogSink) Enqueue(_ context.Context, email Email) error {
	s.lg.Info("notification dropped: no broker configured",
		zap.String("subject", email.Subject),
		zap.Strings("to", email.To),
	)
	return nil
}
