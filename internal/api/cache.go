package api

import (
	"net/http"

	"github.com/ashureev/devchat/internal/domain"
	"golang.org/x/sync/errgroup"
)

const cacheUnavailable = "cache service unavailable"

// ManualCleanup cleans caches for the caller's current page.
func (h *Handler) ManualCleanup(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	res := h.nav.For(uid).ManualCleanup(r.Context())
	if res == nil {
		Error(w, http.StatusServiceUnavailable, cacheUnavailable)
		return
	}
	JSON(w, http.StatusOK, res)
}

// ClearCache wipes every cache entry of the caller. The body must carry
// {"confirm": true}.
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req struct {
		Confirm bool `json:"confirm"`
	}
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Confirm {
		Error(w, http.StatusBadRequest, "confirmation required")
		return
	}

	if !h.nav.For(uid).ClearAllCache(r.Context(), true) {
		Error(w, http.StatusServiceUnavailable, cacheUnavailable)
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// CacheStats returns backend cache statistics.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	stats := h.nav.For(uid).GetCacheStats(r.Context())
	if stats == nil {
		Error(w, http.StatusServiceUnavailable, cacheUnavailable)
		return
	}
	JSON(w, http.StatusOK, stats)
}

// CacheHealth returns the cache service health.
func (h *Handler) CacheHealth(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	health := h.nav.For(uid).GetCacheHealth(r.Context())
	if health == nil {
		Error(w, http.StatusServiceUnavailable, cacheUnavailable)
		return
	}
	JSON(w, http.StatusOK, health)
}

// OptimizeCache triggers a backend optimization pass.
func (h *Handler) OptimizeCache(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	res := h.nav.For(uid).OptimizeCache(r.Context())
	if res == nil {
		Error(w, http.StatusServiceUnavailable, cacheUnavailable)
		return
	}
	JSON(w, http.StatusOK, res)
}

type cacheOverview struct {
	Stats          *domain.CacheStats    `json:"stats"`
	Health         *domain.CacheHealth   `json:"health"`
	LastCleanup    *domain.CleanupResult `json:"last_cleanup,omitempty"`
	CurrentPath    string                `json:"current_path"`
	PendingCleanup bool                  `json:"pending_cleanup"`
	QueuedMessages int                   `json:"queued_messages"`
}

// CacheOverview fetches stats and health concurrently and adds local state.
// Either half may be null when the cache service is down.
func (h *Handler) CacheOverview(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	c := h.nav.For(uid)

	var out cacheOverview
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		out.Stats = c.GetCacheStats(ctx)
		return nil
	})
	g.Go(func() error {
		out.Health = c.GetCacheHealth(ctx)
		return nil
	})
	// Both lookups fail soft and never return an error.
	_ = g.Wait()

	out.LastCleanup = c.LastCleanup()
	out.CurrentPath = c.CurrentPath()
	out.PendingCleanup = c.PendingCleanup()
	out.QueuedMessages = h.chat.QueueLen()
	JSON(w, http.StatusOK, out)
}
