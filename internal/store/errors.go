// ABOUTME: Error classification and deadline helpers shared by both backends
// ABOUTME: Maps driver failures onto the store error taxonomy

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"
)

// defaultTimeout bounds operations whose callers supplied no deadline.
const defaultTimeout = 5 * time.Second

// withDeadline applies the store's operation timeout when the caller's
// context has none. Every backend method runs under some deadline so no
// operation can block indefinitely.
func withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// wrapErr wraps a backend failure with the action that failed, tagging
// retryable conditions with ErrUnavailable. sql.ErrNoRows and constraint
// violations are handled at call sites; everything that reaches here is a
// genuine backend failure.
func wrapErr(action string, err error) error {
	if isRetryable(err) {
		return fmt.Errorf("%s: %w: %v", action, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", action, err)
}

// txErr wraps a failure inside a transactional unit. The unit was rolled
// back, so the caller sees ErrIntegrity unless the failure was transient.
func txErr(action string, err error) error {
	if isRetryable(err) {
		return fmt.Errorf("%s: %w: %v", action, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w: %v", action, ErrIntegrity, err)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
