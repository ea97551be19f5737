// Package domain contains core domain types for the devchat client runtime.
package domain

import (
	"time"
)

// DeliveryState is the delivery state of an outgoing chat message.
type DeliveryState string

const (
	// StatusSending means delivery has started and not yet resolved.
	StatusSending DeliveryState = "sending"
	// StatusSent means the backend acknowledged the message.
	StatusSent DeliveryState = "sent"
	// StatusFailed means delivery terminally failed.
	StatusFailed DeliveryState = "failed"
)

// MessageStatus tracks delivery of a single outgoing message.
type MessageStatus struct {
	ID         string        `json:"id"`
	Status     DeliveryState `json:"status"`
	Timestamp  time.Time     `json:"timestamp"`
	RetryCount int           `json:"retry_count"`
	Error      string        `json:"error,omitempty"`
}

// Message is a chat message as returned by the backend.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SendMessageRequest is an outgoing chat message with optional file context.
type SendMessageRequest struct {
	MessageID   string        `json:"request_id"`
	SessionID   string        `json:"-"`
	UserID      string        `json:"user_id,omitempty"`
	Content     string        `json:"content"`
	FileContext []FileContext `json:"file_context,omitempty"`
}

// SendMessageResponse is the backend reply to a sent message.
type SendMessageResponse struct {
	UserMessage      Message      `json:"user_message"`
	AssistantMessage Message      `json:"assistant_message"`
	Session          *SessionInfo `json:"session,omitempty"`
}

// SessionInfo is the backend view of a chat session after a send.
type SessionInfo struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}
