// Package transport delivers chat messages over WebSocket or HTTP.
//
// Each transport makes exactly one attempt per Deliver call; retrying is the
// caller's job.
package transport

import (
	"context"
	"errors"

	"github.com/ashureev/devchat/internal/domain"
)

var (
	// ErrNotConnected means the WebSocket has no live connection.
	ErrNotConnected = errors.New("websocket not connected")
	// ErrTimeout means no correlated reply arrived in time.
	ErrTimeout = errors.New("websocket response timeout")
	// ErrDisconnected means the connection dropped while a reply was pending.
	ErrDisconnected = errors.New("websocket disconnected while awaiting response")
	// ErrClosed means the transport was shut down.
	ErrClosed = errors.New("transport closed")
)

// Kind tags which delivery path carried a message.
type Kind int

const (
	HTTPDelivery Kind = iota
	WebSocketDelivery
)

func (k Kind) String() string {
	switch k {
	case WebSocketDelivery:
		return "websocket"
	case HTTPDelivery:
		return "http"
	default:
		return "unknown"
	}
}

// Transport delivers one message and returns the correlated response.
type Transport interface {
	Kind() Kind
	Deliver(ctx context.Context, req domain.SendMessageRequest) (*domain.SendMessageResponse, error)
}

// ReplyError is a correlated error envelope returned by the backend.
type ReplyError struct {
	RequestID string
	Message   string
}

func (e *ReplyError) Error() string {
	return "backend rejected message " + e.RequestID + ": " + e.Message
}
