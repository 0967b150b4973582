package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/scrumdeal/scrumdeal/internal/broadcast"
)

// Buffer size for each subscriber's delivery channel
const subscriberBufferSize = 256

// Transport is an in-process implementation of the broadcast transport,
// suitable for single-process deployments and tests.
type Transport struct {
	mu       sync.RWMutex
	channels map[string]map[*subscription]struct{}
	logger   *slog.Logger
}

// New creates a new in-process transport
func New(logger *slog.Logger) *Transport {
	return &Transport{
		channels: make(map[string]map[*subscription]struct{}),
		logger:   logger.With(slog.String("component", "broadcast")),
	}
}

// Ensure Transport implements the interface
var _ broadcast.Transport = (*Transport)(nil)

type subscription struct {
	transport *Transport
	channel   string
	events    chan []byte
	closeOnce sync.Once
}

func (s *subscription) Events() <-chan []byte {
	return s.events
}

func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		t := s.transport
		t.mu.Lock()
		if subs, ok := t.channels[s.channel]; ok {
			delete(subs, s)
			if len(subs) == 0 {
				delete(t.channels, s.channel)
			}
		}
		t.mu.Unlock()
		close(s.events)
	})
	return nil
}

// Subscribe joins the named channel
func (t *Transport) Subscribe(ctx context.Context, channel string) (broadcast.Subscription, error) {
	sub := &subscription{
		transport: t,
		channel:   channel,
		events:    make(chan []byte, subscriberBufferSize),
	}

	t.mu.Lock()
	subs, ok := t.channels[channel]
	if !ok {
		subs = make(map[*subscription]struct{})
		t.channels[channel] = subs
	}
	subs[sub] = struct{}{}
	t.mu.Unlock()

	return sub, nil
}

// Publish fans the payload out to every current subscriber of the channel.
// Subscribers whose buffer is full are skipped rather than blocking the
// publisher.
func (t *Transport) Publish(ctx context.Context, channel string, payload []byte) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for sub := range t.channels[channel] {
		select {
		case sub.events <- payload:
		default:
			t.logger.Warn("broadcast message dropped - subscriber buffer full",
				slog.String("channel", channel))
		}
	}
	return nil
}

// SubscriberCount returns the number of live subscriptions on a channel
func (t *Transport) SubscriberCount(channel string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.channels[channel])
}
