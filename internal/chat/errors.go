package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/ashureev/devchat/internal/backend"
	"github.com/ashureev/devchat/internal/transport"
)

var (
	// ErrQueueFull is returned by Enqueue when the queue is at capacity.
	ErrQueueFull = errors.New("message queue is full")
	// ErrQueueClosed is returned once the queue has been closed.
	ErrQueueClosed = errors.New("message queue is closed")
	// ErrSessionRequired is returned when a send names no session.
	ErrSessionRequired = errors.New("session id is required")
)

// ValidationError reports file context defects found before any network call.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "invalid file context: " + strings.Join(e.Errors, "; ")
}

// RetryExhaustedError is returned when every attempt failed with a retryable
// error. It unwraps to the last observed error.
type RetryExhaustedError struct {
	Err      error
	Attempts int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("delivery failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient, network-class failure.
// Validation, queue, cancellation, backend status and backend-rejected
// replies are terminal; gateway statuses (502, 503, 504) count as network.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var validationErr *ValidationError
	var replyErr *transport.ReplyError
	switch {
	case errors.As(err, &validationErr),
		errors.As(err, &replyErr),
		errors.Is(err, ErrQueueFull),
		errors.Is(err, ErrQueueClosed),
		errors.Is(err, ErrSessionRequired),
		errors.Is(err, transport.ErrClosed),
		errors.Is(err, context.Canceled):
		return false
	}

	var statusErr *backend.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	switch {
	case errors.Is(err, transport.ErrTimeout),
		errors.Is(err, transport.ErrNotConnected),
		errors.Is(err, transport.ErrDisconnected),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
