// Package outbox defines the ports for post-commit domain events.
// Ledger and order services publish through these after their writes
// are durable; delivery is best-effort.
package outbox

import "context"

// Event is a domain event identified by its name, e.g.
// "transfer.completed".
type Event interface {
	EventName() string
}

// Handler consumes one delivered event.
type Handler func(ctx context.Context, e Event) error

// Publisher enqueues an event for delivery to its subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers a handler for all events with the given name.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
