package redis

import (
	"context"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/scrumdeal/scrumdeal/internal/broadcast"
)

// Transport is a Redis pub/sub implementation of the broadcast transport.
// It lets multiple server processes share table channels.
type Transport struct {
	client *redis.Client
	logger *slog.Logger
}

// New creates a Redis transport on an existing client
func New(client *redis.Client, logger *slog.Logger) *Transport {
	return &Transport{
		client: client,
		logger: logger.With(slog.String("component", "broadcast")),
	}
}

// Ensure Transport implements the interface
var _ broadcast.Transport = (*Transport)(nil)

type subscription struct {
	pubsub    *redis.PubSub
	events    chan []byte
	closeOnce sync.Once
}

func (s *subscription) Events() <-chan []byte {
	return s.events
}

func (s *subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		// Closing the PubSub ends the delivery goroutine, which closes events.
		err = s.pubsub.Close()
	})
	return err
}

// Subscribe joins the named channel. The returned subscription's events
// channel closes when the subscription is closed or the connection drops.
func (t *Transport) Subscribe(ctx context.Context, channel string) (broadcast.Subscription, error) {
	pubsub := t.client.Subscribe(ctx, channel)

	// Wait for the subscription to be confirmed so messages published
	// immediately afterwards are not lost.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	sub := &subscription{
		pubsub: pubsub,
		events: make(chan []byte, 256),
	}

	go func() {
		defer close(sub.events)
		for msg := range pubsub.Channel() {
			select {
			case sub.events <- []byte(msg.Payload):
			default:
				t.logger.Warn("broadcast message dropped - subscriber buffer full",
					slog.String("channel", channel))
			}
		}
	}()

	return sub, nil
}

// Publish sends the payload to every subscriber of the channel, across all
// server processes connected to the same Redis.
func (t *Transport) Publish(ctx context.Context, channel string, payload []byte) error {
	return t.client.Publish(ctx, channel, payload).Err()
}
