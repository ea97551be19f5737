package store

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// isConflictError reports SQLITE_BUSY and "database is locked" errors, the
// SQLite concurrency errors that warrant a retry.
func isConflictError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withBusyRetry runs fn, retrying SQLite conflict errors with exponential
// backoff: 50ms, 100ms.
func withBusyRetry(ctx context.Context, op string, fn func() error) error {
	const maxAttempts = 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxAttempts; i++ {
		err = fn()
		if err == nil || !isConflictError(err) || i == maxAttempts-1 {
			return err
		}

		delay := baseDelay * time.Duration(1<<i)
		slog.Debug("SQLite busy, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
