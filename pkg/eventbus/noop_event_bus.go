package eventbus

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/calvere/docflow/pkg/events"
)

// NoopEventBus discards every event. Used when no broker is configured so
// the engine does not need nil checks around publishing.
type NoopEventBus struct{}

func NewNoopEventBus() EventBus {
	return &NoopEventBus{}
}

func (eb *NoopEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *NoopEventBus) Publish(ctx context.Context, key string, event Event) error {
	return nil
}

func (eb *NoopEventBus) Subscribe(ctx context.Context) error {
	return nil
}

func (eb *NoopEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	return nil
}

func (eb *NoopEventBus) Close() error {
	return nil
}
