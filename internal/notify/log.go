package notify

import (
	"context"

	"github.com/nerrad567/vhtoggle/internal/infrastructure/logging"
)

// LogSink writes every event to the structured log.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a log sink.
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Name implements Sink.
func (*LogSink) Name() string { return "log" }

// Notify implements Sink. Failures log at warn, everything else at info.
func (s *LogSink) Notify(ctx context.Context, ev Event) error {
	args := []any{"kind", ev.Kind, "device", ev.DeviceID, "message", ev.Message}
	if ev.State != nil {
		args = append(args, "state", ev.State.String(), "address", ev.Address)
	}

	if ev.Kind == KindFailure {
		s.logger.WarnContext(ctx, "notification", args...)
		return nil
	}
	s.logger.InfoContext(ctx, "notification", args...)
	return nil
}
