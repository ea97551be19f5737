// Package store persists chat snapshots across process restarts.
package store

import (
	"context"

	"github.com/ashureev/devchat/internal/domain"
)

// Repository persists chat sessions and message delivery statuses.
type Repository interface {
	// LoadSessions returns every persisted session.
	LoadSessions(ctx context.Context) ([]*domain.ChatSession, error)

	// SaveSessions upserts the given sessions.
	SaveSessions(ctx context.Context, sessions []*domain.ChatSession) error

	// LoadStatuses returns every persisted message status.
	LoadStatuses(ctx context.Context) ([]domain.MessageStatus, error)

	// SaveStatuses upserts the given statuses.
	SaveStatuses(ctx context.Context, statuses []domain.MessageStatus) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
