// Package natsbus provides a types.Broadcaster over core NATS publish/subscribe.
//
// Keys map to subjects "<prefix>.<key>". Every message carries the publishing
// bus's origin token in a header; a bus drops messages carrying its own token
// so an elector never receives its own abandonment signal.
package natsbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/arloliu/primary/internal/kvutil"
	"github.com/arloliu/primary/internal/logging"
	"github.com/arloliu/primary/internal/natsutil"
	"github.com/arloliu/primary/types"
)

const (
	// DefaultSubjectPrefix is the subject prefix used when none is configured.
	DefaultSubjectPrefix = "primary.broadcast"

	// OriginHeader carries the publishing bus's origin token.
	OriginHeader = "Primary-Origin"

	// DefaultFlushTimeout bounds Publish when ctx carries no deadline.
	DefaultFlushTimeout = 2 * time.Second
)

// Config configures the NATS broadcaster.
type Config struct {
	// SubjectPrefix is prepended to every broadcast key.
	SubjectPrefix string `yaml:"subjectPrefix"`

	// FlushTimeout bounds Publish when the caller's context has no deadline.
	FlushTimeout time.Duration `yaml:"flushTimeout"`
}

// Bus implements types.Broadcaster on a NATS connection.
type Bus struct {
	nc     *nats.Conn
	cfg    Config
	origin string
	logger types.Logger

	mu     sync.Mutex
	subs   map[*nats.Subscription]struct{}
	closed bool
}

// Compile-time assertion that Bus implements Broadcaster.
var _ types.Broadcaster = (*Bus)(nil)

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for dropped or malformed messages.
func WithLogger(logger types.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a broadcaster using nc. The connection is owned by the caller
// and is not closed by Close.
//
// Parameters:
//   - nc: Connected NATS client
//   - cfg: Broadcaster configuration (zero value uses defaults)
//   - opts: Optional settings
//
// Returns:
//   - *Bus: Broadcaster with a fresh origin token
//
// Example:
//
//	bus := natsbus.New(nc, natsbus.Config{})
//	defer bus.Close()
func New(nc *nats.Conn, cfg Config, opts ...Option) *Bus {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultSubjectPrefix
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = DefaultFlushTimeout
	}

	b := &Bus{
		nc:     nc,
		cfg:    cfg,
		origin: uuid.NewString(),
		logger: logging.NewNop(),
		subs:   make(map[*nats.Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Origin returns the token stamped on this bus's messages.
func (b *Bus) Origin() string {
	return b.origin
}

// Subject returns the NATS subject used for key.
func (b *Bus) Subject(key string) string {
	return b.cfg.SubjectPrefix + "." + kvutil.SafeToken(key)
}

// Publish implements types.Broadcaster.
//
// The message is flushed before returning so a process that closes its
// connection right after Destroy still delivers the signal.
func (b *Bus) Publish(ctx context.Context, key, value string) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return fmt.Errorf("%w: %w", types.ErrPublishFailed, types.ErrBroadcasterClosed)
	}

	msg := nats.NewMsg(b.Subject(key))
	msg.Header.Set(OriginHeader, b.origin)
	msg.Data = []byte(value)

	if err := b.nc.PublishMsg(msg); err != nil {
		return natsutil.Wrap(types.ErrPublishFailed, err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.FlushTimeout)
		defer cancel()
	}
	if err := b.nc.FlushWithContext(ctx); err != nil {
		return natsutil.Wrap(types.ErrPublishFailed, err)
	}

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

	subject := b.Subject(key)
	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		if msg.Header.Get(OriginHeader) == b.origin {
			return
		}
		if len(msg.Data) == 0 {
			b.logger.Debug("dropping empty broadcast", "subject", subject)
			return
		}
		handler(string(msg.Data))
	})
	if err != nil {
		return nil, natsutil.Wrap(types.ErrSubscribeFailed, err)
	}
	b.subs[sub] = struct{}{}

	return &subscription{bus: b, sub: sub}, nil
}

// Close unsubscribes every active subscription and rejects further use.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	for sub := range b.subs {
		if err := unsubscribe(sub); err != nil {
			errs = append(errs, err)
		}
	}
	clear(b.subs)

	return errors.Join(errs...)
}

func (b *Bus) remove(sub *nats.Subscription) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return nil
	}
	delete(b.subs, sub)

	return unsubscribe(sub)
}

// unsubscribe tolerates subscriptions already invalidated by a closed connection.
func unsubscribe(sub *nats.Subscription) error {
	err := sub.Unsubscribe()
	if err == nil || errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
		return nil
	}

	return natsutil.Wrap(types.ErrSubscribeFailed, err)
}

type subscription struct {
	bus *Bus
	sub *nats.Subscription
}

// Unsubscribe implements types.Subscription.
func (s *subscription) Unsubscribe() error {
	return s.bus.remove(s.sub)
}
