package outbox

import "context"

// Event is a named domain event. Names are dotted, e.g. "vending.sale_settled".
type Event interface {
	EventName() string
}

type Handler func(ctx context.Context, e Event) error

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Subscriber interface {
	Subscribe(eventName string, h Handler)
}

// Bus both publishes and dispatches events.
type Bus interface {
	Publisher
	Subscriber
}
