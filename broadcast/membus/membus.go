// Package membus provides an in-process types.Broadcaster.
//
// A Hub fans values out to every Bus created from it. Each Bus acts as one
// participant: it never receives its own publications, mirroring the
// self-echo suppression of the networked backends.
package membus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/primary/types"
)

// Hub is the shared channel all buses publish to.
type Hub struct {
	subscribers      *xsync.Map[uint64, *subscriber]
	nextSubscriberID atomic.Uint64
	nextOrigin       atomic.Uint64
	syncDelivery     bool
}

type subscriber struct {
	id      uint64
	key     string
	origin  uint64
	handler func(string)
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithSyncDelivery makes Publish invoke handlers on the publishing goroutine
// before returning. The default delivers each value on its own goroutine.
func WithSyncDelivery() HubOption {
	return func(h *Hub) {
		h.syncDelivery = true
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subscribers: xsync.NewMap[uint64, *subscriber](),
	}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Bus returns a new participant attached to the hub.
func (h *Hub) Bus() *Bus {
	return &Bus{
		hub:    h,
		origin: h.nextOrigin.Add(1),
		subs:   make(map[uint64]struct{}),
	}
}

// Subscribers returns the number of active subscriptions across all buses.
func (h *Hub) Subscribers() int {
	return h.subscribers.Size()
}

func (h *Hub) publish(origin uint64, key, value string) {
	h.subscribers.Range(func(_ uint64, sub *subscriber) bool {
		if sub.key != key || sub.origin == origin {
			return true
		}
		if h.syncDelivery {
			sub.handler(value)
		} else {
			go sub.handler(value)
		}

		return true
	})
}

// Bus is one participant's view of a Hub.
type Bus struct {
	hub    *Hub
	origin uint64

	mu         sync.Mutex
	subs       map[uint64]struct{}
	closed     bool
	publishErr error
	published  []string
}

// Compile-time assertion that Bus implements Broadcaster.
var _ types.Broadcaster = (*Bus)(nil)

// Publish implements types.Broadcaster.
func (b *Bus) Publish(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", types.ErrPublishFailed, err)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("%w: %w", types.ErrPublishFailed, types.ErrBroadcasterClosed)
	}
	if b.publishErr != nil {
		err := b.publishErr
		b.mu.Unlock()

		return fmt.Errorf("%w: %w", types.ErrPublishFailed, err)
	}
	b.published = append(b.published, value)
	b.mu.Unlock()

	b.hub.publish(b.origin, key, value)

	return nil
}

// Subscribe implements types.Broadcaster.
func (b *Bus) Subscribe(key string, handler func(value string)) (types.Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: handler is nil", types.ErrSubscribeFailed)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("%w: %w", types.ErrSubscribeFailed, types.ErrBroadcasterClosed)
	}

	id := b.hub.nextSubscriberID.Add(1)
	b.hub.subscribers.Store(id, &subscriber{
		id:      id,
		key:     key,
		origin:  b.origin,
		handler: handler,
	})
	b.subs[id] = struct{}{}

	return &subscription{bus: b, id: id}, nil
}

// SetPublishFailure makes subsequent Publish calls fail with err until
// cleared with nil.
func (b *Bus) SetPublishFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.publishErr = err
}

// Published returns the values successfully published through this bus.
func (b *Bus) Published() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.published))
	copy(out, b.published)

	return out
}

// Close removes all of the bus's subscriptions and rejects further use.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id := range b.subs {
		b.hub.subscribers.Delete(id)
	}
	clear(b.subs)
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[id]; !ok {
		return
	}
	delete(b.subs, id)
	b.hub.subscribers.Delete(id)
}

type subscription struct {
	bus *Bus
	id  uint64
}

// Unsubscribe implements types.Subscription.
func (s *subscription) Unsubscribe() error {
	s.bus.remove(s.id)

	return nil
}
