package notifier

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to the structured log. It is the default
// when no delivery endpoint is configured, and useful in development.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "log_notifier")}
}

func (n *LogNotifier) Send(ctx context.Context, notification Notification) error {
	n.logger.InfoContext(ctx, "Notification",
		"to", notification.To,
		"subject", notification.Subject,
		"body", notification.Body,
	)

	return nil
}
