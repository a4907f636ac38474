package cmd

import (
	"log/slog"

	"github.com/calvere/docflow/pkg/notifier"
)

// NewNotifier returns the webhook notifier when a delivery URL is configured
// and the log notifier otherwise.
func NewNotifier(webhookURL string, logger *slog.Logger) notifier.Notifier {
	if webhookURL != "" {
		return notifier.NewWebhookNotifier(webhookURL)
	}

	return notifier.NewLogNotifier(logger)
}
