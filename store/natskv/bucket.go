package natskv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/primary/internal/backoff"
	"github.com/arloliu/primary/types"
)

// Bucket setup retry bounds.
const (
	bucketAttempts    = 5
	bucketBackoffBase = 10 * time.Millisecond
	bucketBackoffCap  = 200 * time.Millisecond
)

// ensureBucket creates the lease bucket or opens it if another process won
// the creation race.
//
// An existing bucket is checked against the lease layout: it must keep the
// latest value of each key, and a purge TTL other than the requested one is
// logged because purging can drop a record while its lease is still live.
// Transient failures are retried with jittered backoff.
func ensureBucket(ctx context.Context, js jetstream.JetStream, cfg jetstream.KeyValueConfig, logger types.Logger) (jetstream.KeyValue, error) {
	var (
		lastErr error
		delay   time.Duration
	)

	for attempt := range bucketAttempts {
		if attempt > 0 {
			delay = backoff.Jitter(delay, bucketBackoffBase, 2.0, bucketBackoffCap, nil)
			if err := backoff.Sleep(ctx, delay); err != nil {
				return nil, fmt.Errorf("lease bucket %s: %w", cfg.Bucket, err)
			}
		}

		kv, err := js.CreateKeyValue(ctx, cfg)
		if err == nil {
			return kv, nil
		}
		if !errors.Is(err, jetstream.ErrBucketExists) {
			lastErr = err
			continue
		}

		kv, err = js.KeyValue(ctx, cfg.Bucket)
		if err != nil {
			lastErr = fmt.Errorf("bucket exists but failed to open: %w", err)
			continue
		}
		if err := checkLeaseBucket(ctx, kv, cfg, logger); err != nil {
			return nil, err
		}

		return kv, nil
	}

	return nil, fmt.Errorf("failed to create/open lease bucket %s after %d attempts: %w",
		cfg.Bucket, bucketAttempts, lastErr)
}

// checkLeaseBucket validates a bucket created elsewhere before leases are
// written to it.
func checkLeaseBucket(ctx context.Context, kv jetstream.KeyValue, cfg jetstream.KeyValueConfig, logger types.Logger) error {
	status, err := kv.Status(ctx)
	if err != nil {
		return fmt.Errorf("lease bucket %s status: %w", cfg.Bucket, err)
	}

	if status.History() < 1 {
		return fmt.Errorf("%w: lease bucket %s keeps no history", types.ErrInvalidConfig, cfg.Bucket)
	}
	if status.TTL() != cfg.TTL {
		logger.Warn("existing lease bucket has a different purge TTL",
			"bucket", cfg.Bucket, "ttl", status.TTL(), "requested", cfg.TTL)
	}

	return nil
}
