package notification

import (
	"context"
	"log/slog"
)

const (
	// KindTrialStarted indicates a user upgraded into a trial plan.
	KindTrialStarted = "trial_started"
	// KindLowCredits indicates a balance dropped below the low-credit threshold.
	KindLowCredits = "low_credits"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier builds a notifier backed by structured logging.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the notification to the log stream.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("body", message.Body),
	)
	return nil
}
