// Package natsutil classifies NATS client errors for the store and broadcast backends.
package natsutil

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/primary/types"
)

// IsConnectivityError checks if an error is caused by connectivity issues.
//
// This includes NATS timeouts, connection refused, disconnections, etc.
//
// Kept in internal/natsutil to avoid importing NATS dependencies in types/ package.
//
// Parameters:
//   - err: Error to check
//
// Returns:
//   - bool: true if error indicates connectivity issue
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	return types.IsConnectivityError(err) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrConnectionReconnecting) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, jetstream.ErrJetStreamNotEnabled)
}

// Wrap tags err with sentinel, adding types.ErrConnectivity when the failure
// was network related.
//
// Parameters:
//   - sentinel: Component sentinel (e.g. types.ErrStoreUnavailable)
//   - err: Underlying NATS error
//
// Returns:
//   - error: Wrapped error, nil if err is nil
func Wrap(sentinel, err error) error {
	if err == nil {
		return nil
	}
	if IsConnectivityError(err) {
		return fmt.Errorf("%w: %w: %w", sentinel, types.ErrConnectivity, err)
	}

	return fmt.Errorf("%w: %w", sentinel, err)
}
