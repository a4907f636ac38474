// Package notifier delivers outbound notifications to assignees and
// escalation recipients. Delivery is fire-and-forget: callers log failures
// and continue, so implementations must be bounded and never panic.
package notifier

import "context"

// Notification is one outbound message.
type Notification struct {
	To      string         `json:"to"`
	Subject string         `json:"subject"`
	Body    string         `json:"body"`
	Context map[string]any `json:"context,omitempty"`
}

// Notifier sends notifications. A failed send is reported via the error
// return; implementations must not block beyond their own timeout.
type Notifier interface {
	Send(ctx context.Context, notification Notification) error
}
