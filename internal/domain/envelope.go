package domain

import "encoding/json"

// EnvelopeType tags a WebSocket envelope.
type EnvelopeType string

const (
	EnvelopeMessage EnvelopeType = "message"
	EnvelopeStatus  EnvelopeType = "status"
	EnvelopeError   EnvelopeType = "error"
	EnvelopeTyping  EnvelopeType = "typing"
)

// Envelope is the WebSocket message frame exchanged with the chat backend.
type Envelope struct {
	Type      EnvelopeType    `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
}

// EnvelopeHeader carries the correlation fields found in envelope data.
type EnvelopeHeader struct {
	RequestID string `json:"request_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}
