// Package session keeps in-memory chat session bookkeeping.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/ashureev/devchat/internal/domain"
)

// Registry maps session IDs to session metadata.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*domain.ChatSession
	now      func() time.Time
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*domain.ChatSession),
		now:      time.Now,
	}
}

// Create inserts or overwrites a session with a zero message count.
func (r *Registry) Create(id, title string, files []domain.FileContext) *domain.ChatSession {
	s := &domain.ChatSession{
		ID:           id,
		Title:        title,
		Files:        append([]domain.FileContext(nil), files...),
		LastActivity: r.now(),
		MessageCount: 0,
	}

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	return s.Clone()
}

// Get returns a copy of the session.
func (r *Registry) Get(id string) (*domain.ChatSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// TouchOnSend records a successful send. The file snapshot is replaced, not
// merged. Unknown IDs are created on first use.
func (r *Registry) TouchOnSend(id string, files []domain.FileContext) *domain.ChatSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		s = &domain.ChatSession{ID: id}
		r.sessions[id] = s
	}
	s.LastActivity = r.now()
	s.MessageCount++
	s.Files = append([]domain.FileContext(nil), files...)

	return s.Clone()
}

// List returns every session, most recently active first.
func (r *Registry) List() []*domain.ChatSession {
	r.mu.RLock()
	out := make([]*domain.ChatSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

// Restore loads previously persisted sessions, overwriting same-ID entries.
func (r *Registry) Restore(sessions []*domain.ChatSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range sessions {
		if s == nil || s.ID == "" {
			continue
		}
		r.sessions[s.ID] = s.Clone()
	}
}
