package notifier

import (
	"context"
	"sync"
)

// Recorder captures notifications for assertions in tests. FailWith makes
// every subsequent send fail, for exercising partial-failure paths.
type Recorder struct {
	mu       sync.Mutex
	sent     []Notification
	failWith error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Send(ctx context.Context, notification Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failWith != nil {
		return r.failWith
	}

	r.sent = append(r.sent, notification)

	return nil
}

func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Notification, len(r.sent))
	copy(out, r.sent)

	return out
}

func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failWith = err
}
