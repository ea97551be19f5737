package navcache

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ashureev/devchat/internal/notify"
)

// Registry owns one Controller per user, created on first use.
type Registry struct {
	backend     CacheBackend
	invalidator ContextInvalidator
	notifier    notify.Notifier
	rules       Rules
	opts        Options
	logger      *slog.Logger

	mu          sync.Mutex
	controllers map[string]*Controller
}

// NewRegistry creates an empty registry. invalidator and notifier may be nil.
func NewRegistry(be CacheBackend, inv ContextInvalidator, n notify.Notifier, rules Rules, opts Options, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		backend:     be,
		invalidator: inv,
		notifier:    n,
		rules:       rules,
		opts:        opts,
		logger:      logger,
		controllers: make(map[string]*Controller),
	}
}

// For returns the controller of userID, creating it if needed.
func (r *Registry) For(userID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.controllers[userID]
	if !ok {
		c = newController(userID, r.backend, r.invalidator, r.notifier, r.rules, r.opts, r.logger)
		r.controllers[userID] = c
	}
	return c
}

// Active returns controllers that saw a navigation within the window,
// ordered by user ID.
func (r *Registry) Active(window time.Duration) []*Controller {
	cutoff := time.Now().Add(-window)

	r.mu.Lock()
	out := make([]*Controller, 0, len(r.controllers))
	for _, c := range r.controllers {
		if window <= 0 || c.LastActive().After(cutoff) {
			out = append(out, c)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].userID < out[j].userID })
	return out
}

// Close stops every controller's pending cleanup.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.controllers {
		c.Close()
	}
}
