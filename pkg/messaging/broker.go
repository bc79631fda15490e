package messaging

import (
	"context"
)

// Message is one delivery received from a subscription.
type Message struct {
	Channel string
	Payload []byte
}

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe accepts glob patterns such as "appointment.*".
	Subscribe(ctx context.Context, patterns ...string) (<-chan Message, error)
	Close() error
}
