package chat

import (
	"sort"
	"sync"
	"time"

	"github.com/ashureev/devchat/internal/domain"
)

// Tracker records the delivery state of every outgoing message. Entries are
// never removed during the process lifetime.
type Tracker struct {
	mu       sync.RWMutex
	statuses map[string]domain.MessageStatus
	now      func() time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		statuses: make(map[string]domain.MessageStatus),
		now:      time.Now,
	}
}

// Update sets the state of id, keeping its retry count. A nil err clears
// any previous error text.
func (t *Tracker) Update(id string, state domain.DeliveryState, err error) domain.MessageStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := domain.MessageStatus{
		ID:         id,
		Status:     state,
		Timestamp:  t.now(),
		RetryCount: t.statuses[id].RetryCount,
	}
	if err != nil {
		st.Error = err.Error()
	}
	t.statuses[id] = st
	return st
}

// IncrementRetry bumps the retry count of id and returns the new value.
func (t *Tracker) IncrementRetry(id string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.statuses[id]
	if !ok {
		st = domain.MessageStatus{ID: id, Status: domain.StatusSending, Timestamp: t.now()}
	}
	st.RetryCount++
	t.statuses[id] = st
	return st.RetryCount
}

// Get returns the status of id.
func (t *Tracker) Get(id string) (domain.MessageStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st, ok := t.statuses[id]
	return st, ok
}

// All returns every status, oldest first.
func (t *Tracker) All() []domain.MessageStatus {
	t.mu.RLock()
	out := make([]domain.MessageStatus, 0, len(t.statuses))
	for _, st := range t.statuses {
		out = append(out, st)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

// Restore loads persisted statuses. Messages left in sending by a previous
// process can no longer resolve and are marked failed.
func (t *Tracker) Restore(statuses []domain.MessageStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, st := range statuses {
		if st.ID == "" {
			continue
		}
		if st.Status == domain.StatusSending {
			st.Status = domain.StatusFailed
			st.Error = "interrupted by restart"
		}
		t.statuses[st.ID] = st
	}
}
