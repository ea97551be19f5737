package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/ashureev/devchat/internal/backend"
	"github.com/ashureev/devchat/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{MaxRetries: maxRetries, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestRetryPolicyDelay(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, BaseDelay: time.Second}
	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 8*time.Second, p.Delay(3))

	p.MaxDelay = 3 * time.Second
	assert.Equal(t, 3*time.Second, p.Delay(2))
	assert.Equal(t, 3*time.Second, p.Delay(30))
}

func TestRetryAttemptCount(t *testing.T) {
	const maxRetries = 3

	for failures := 0; failures <= 6; failures++ {
		t.Run(fmt.Sprintf("failures=%d", failures), func(t *testing.T) {
			attempts := 0
			_, err := Retry(context.Background(), fastPolicy(maxRetries),
				func(context.Context) (string, error) {
					attempts++
					if attempts <= failures {
						return "", fmt.Errorf("attempt %d: %w", attempts, transport.ErrTimeout)
					}
					return "ok", nil
				},
				IsRetryable, nil)

			assert.Equal(t, min(failures+1, maxRetries+1), attempts)
			if failures > maxRetries {
				var exhausted *RetryExhaustedError
				require.ErrorAs(t, err, &exhausted)
				assert.Equal(t, maxRetries+1, exhausted.Attempts)
				assert.ErrorIs(t, err, transport.ErrTimeout)
				assert.Contains(t, err.Error(), fmt.Sprintf("attempt %d", maxRetries+1))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRetryTerminalErrorSurfacesImmediately(t *testing.T) {
	attempts := 0
	terminal := &backend.StatusError{Method: http.MethodPost, Path: "/x", StatusCode: http.StatusUnauthorized}

	_, err := Retry(context.Background(), fastPolicy(3),
		func(context.Context) (int, error) {
			attempts++
			return 0, terminal
		},
		IsRetryable, nil)

	require.ErrorIs(t, err, terminal)
	assert.Equal(t, 1, attempts)
}

func TestRetryHook(t *testing.T) {
	var retries []int
	var delays []time.Duration

	_, _ = Retry(context.Background(), fastPolicy(2),
		func(context.Context) (int, error) { return 0, transport.ErrNotConnected },
		IsRetryable,
		func(retry int, delay time.Duration, _ error) {
			retries = append(retries, retry)
			delays = append(delays, delay)
		})

	assert.Equal(t, []int{1, 2}, retries)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, delays)
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	_, err := Retry(ctx, RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour},
		func(context.Context) (int, error) {
			attempts++
			return 0, transport.ErrTimeout
		},
		IsRetryable,
		func(int, time.Duration, error) { cancel() })

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"ws timeout", transport.ErrTimeout, true},
		{"ws disconnected", fmt.Errorf("send: %w", transport.ErrDisconnected), true},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"connection refused", syscall.ECONNREFUSED, true},
		{"deadline", context.DeadlineExceeded, true},
		{"bad gateway", &backend.StatusError{StatusCode: http.StatusBadGateway}, true},
		{"bad request", &backend.StatusError{StatusCode: http.StatusBadRequest}, false},
		{"internal error", &backend.StatusError{StatusCode: http.StatusInternalServerError}, false},
		{"reply error", &transport.ReplyError{RequestID: "r", Message: "nope"}, false},
		{"validation", &ValidationError{Errors: []string{"x"}}, false},
		{"queue full", ErrQueueFull, false},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
