package types

import "context"

// Broadcaster is a best-effort notification channel shared by all
// participating processes.
//
// The elector uses it for a single purpose: a process that is shutting down
// publishes its own identity so followers can take over without waiting for
// the lease to expire. Delivery is not guaranteed and not transactional.
type Broadcaster interface {
	// Publish sends value under key to every other subscriber of key.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - key: Well-known broadcast key
	//   - value: Payload (the publishing process identity)
	//
	// Returns:
	//   - error: Wraps ErrPublishFailed on failure
	Publish(ctx context.Context, key, value string) error

	// Subscribe registers handler for values published under key.
	//
	// Implementations should not deliver a publisher's own messages back to
	// it; callers still guard against self-echo defensively.
	//
	// Parameters:
	//   - key: Well-known broadcast key
	//   - handler: Invoked with each received value, possibly on another goroutine
	//
	// Returns:
	//   - Subscription: Handle used to stop receiving
	//   - error: Wraps ErrSubscribeFailed on failure
	Subscribe(key string, handler func(value string)) (Subscription, error)
}

// Subscription is an active broadcast registration.
type Subscription interface {
	// Unsubscribe stops delivery. Safe to call more than once.
	Unsubscribe() error
}
