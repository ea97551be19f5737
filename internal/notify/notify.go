// Package notify defines user-visible notices raised by the runtime.
package notify

import (
	"time"
)

// Level is the severity of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Kind groups notices so the UI can route them.
type Kind string

const (
	KindToast   Kind = "toast"
	KindTyping  Kind = "typing"
	KindMessage Kind = "message"
	KindStatus  Kind = "status"
)

// Notice is a user-visible event, usually rendered as a toast.
type Notice struct {
	Kind      Kind      `json:"kind"`
	Level     Level     `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Data      any       `json:"data,omitempty"`
	Time      time.Time `json:"time"`
}

// Notifier delivers notices to the UI.
type Notifier interface {
	Notify(n Notice)
}

// Func adapts a function to Notifier.
type Func func(n Notice)

// Notify calls f(n).
func (f Func) Notify(n Notice) { f(n) }

// Nop discards every notice.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(Notice) {}

// Toast builds a toast notice stamped with the current time.
func Toast(level Level, title, message string) Notice {
	return Notice{Kind: KindToast, Level: level, Title: title, Message: message, Time: time.Now()}
}
