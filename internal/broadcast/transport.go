// Package broadcast defines the pub/sub fan-out abstraction sessions use to
// push state updates to every connection at a table, in this process or any
// other sharing the same backend.
package broadcast

import "context"

// Subscription is a live membership in a channel. Events delivers payloads
// published by any member after the subscription was opened; Close ends
// delivery and releases the subscription.
type Subscription interface {
	Events() <-chan []byte
	Close() error
}

// Transport is the pub/sub fan-out abstraction. Channels are identified by
// free-form names; publishing does not require a subscription.
type Transport interface {
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	Publish(ctx context.Context, channel string, payload []byte) error
}
