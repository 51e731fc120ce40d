package retry

import (
	"context"
	"errors"
	"net"
	"time"
)

// transienter is implemented by errors that know whether retrying can help.
type transienter interface {
	Transient() bool
}

// IsTransient reports whether err is worth retrying. Errors that implement
// Transient() decide for themselves; network timeouts count as transient;
// everything else is permanent.
func IsTransient(err error) bool {
	var t transienter
	if errors.As(err, &t) {
		return t.Transient()
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// Do runs fn up to attempts times, sleeping with exponential backoff between
// tries. It stops early on permanent errors and on context cancellation. The
// first delay is baseDelay and doubles each retry.
func Do(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	delay := baseDelay
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
