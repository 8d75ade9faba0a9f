package radiolink

import (
	"context"
	"log/slog"

	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/domain"
)

// LogTransmitter stands in for a radio when none is configured: every
// command is written to the log and reported as sent.
type LogTransmitter struct {
	logger *slog.Logger
}

// NewLogTransmitter logs to logger, or to slog.Default() when logger is nil.
func NewLogTransmitter(logger *slog.Logger) *LogTransmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTransmitter{logger: logger}
}

func (t *LogTransmitter) Transmit(ctx context.Context, cmd domain.Command) error {
	t.logger.InfoContext(ctx, "RADIO LINK: Sending command to rocket", "command", cmd, "known", cmd.Known())
	return nil
}
