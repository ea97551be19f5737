package domain

import (
	"time"
)

// ChatSession holds client-side bookkeeping for a chat session.
type ChatSession struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Files        []FileContext `json:"files"`
	LastActivity time.Time     `json:"last_activity"`
	MessageCount int           `json:"message_count"`
}

// Clone returns a copy that shares no slice storage with s.
func (s *ChatSession) Clone() *ChatSession {
	c := *s
	c.Files = append([]FileContext(nil), s.Files...)
	return &c
}
