// Package navcache invalidates backend caches when navigation leaves the
// page areas those caches serve.
//
// Every backend call here fails soft: errors are logged and optionally
// raised as notices, and callers get nil or false instead of an error.
package navcache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/devchat/internal/backend"
	"github.com/ashureev/devchat/internal/domain"
	"github.com/ashureev/devchat/internal/notify"
)

// unloadTarget is the to_page reported when the user leaves the app.
const unloadTarget = "external"

// CacheBackend is the backend cache service.
type CacheBackend interface {
	NavigationCleanup(ctx context.Context, req backend.NavigationCleanupRequest) (*domain.CleanupResult, error)
	NavigationCleanupBeacon(req backend.NavigationCleanupRequest)
	ClearCache(ctx context.Context, userID string) error
	CacheStats(ctx context.Context, userID string) (*domain.CacheStats, error)
	CacheHealth(ctx context.Context, userID string) (*domain.CacheHealth, error)
	OptimizeCache(ctx context.Context, userID string) (*domain.OptimizeResult, error)
}

// ContextInvalidator drops locally cached repository context for a user.
type ContextInvalidator interface {
	Invalidate(userID string)
}

// Options configures controllers.
type Options struct {
	CleanupDelay      time.Duration // default 1s
	ShowNotifications bool
	RequestTimeout    time.Duration // bound for debounced cleanups; default 30s
}

func (o *Options) applyDefaults() {
	if o.CleanupDelay <= 0 {
		o.CleanupDelay = time.Second
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
}

// Controller watches one user's route transitions.
type Controller struct {
	userID      string
	backend     CacheBackend
	invalidator ContextInvalidator
	notifier    notify.Notifier
	rules       Rules
	opts        Options
	logger      *slog.Logger
	debouncer   *Debouncer
	now         func() time.Time

	mu          sync.Mutex
	previous    string
	current     string
	lastActive  time.Time
	pending     *backend.NavigationCleanupRequest
	lastCleanup *domain.CleanupResult
}

func newController(userID string, be CacheBackend, inv ContextInvalidator, n notify.Notifier, rules Rules, opts Options, logger *slog.Logger) *Controller {
	opts.applyDefaults()
	if n == nil {
		n = notify.Nop{}
	}
	return &Controller{
		userID:      userID,
		backend:     be,
		invalidator: inv,
		notifier:    n,
		rules:       rules,
		opts:        opts,
		logger:      logger.With("user_id", userID),
		debouncer:   NewDebouncer(opts.CleanupDelay),
		now:         time.Now,
		lastActive:  time.Now(),
	}
}

// UserID returns the user the controller belongs to.
func (c *Controller) UserID() string { return c.userID }

// Navigate records a transition to path and schedules a debounced cleanup
// when the transition qualifies. It reports whether one was scheduled.
func (c *Controller) Navigate(path string) bool {
	c.mu.Lock()
	from := c.current
	c.previous, c.current = from, path
	c.lastActive = c.now()
	if !c.rules.ShouldCleanup(from, path) {
		c.mu.Unlock()
		return false
	}
	req := &backend.NavigationCleanupRequest{FromPage: from, ToPage: path, UserID: c.userID}
	c.pending = req
	c.debouncer.Schedule(func() {
		// Unload may have claimed the request between the timer firing and
		// this task running.
		if !c.claim(req) {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.RequestTimeout)
		defer cancel()
		c.cleanup(ctx, *req)
	})
	c.mu.Unlock()

	c.logger.Debug("navigation cleanup scheduled", "from_page", from, "to_page", path, "delay", c.opts.CleanupDelay)
	return true
}

// claim takes ownership of req if it is still the pending cleanup.
func (c *Controller) claim(req *backend.NavigationCleanupRequest) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != req {
		return false
	}
	c.pending = nil
	return true
}

// Unload handles the user leaving the app from path (the current path when
// empty). A pending cleanup is sent instead of waiting out its delay;
// otherwise leaving a contribution page sends one. Both go through the
// backend beacon: a single unconfirmed attempt that may be lost.
func (c *Controller) Unload(path string) bool {
	c.mu.Lock()
	if path == "" {
		path = c.current
	}
	pending := c.pending
	c.pending = nil
	c.debouncer.Cancel()
	c.mu.Unlock()

	var req backend.NavigationCleanupRequest
	switch {
	case pending != nil:
		req = *pending
	case c.rules.InContribution(path):
		req = backend.NavigationCleanupRequest{FromPage: path, ToPage: unloadTarget, UserID: c.userID}
	default:
		return false
	}

	c.invalidate()
	c.backend.NavigationCleanupBeacon(req)
	c.logger.Debug("unload cleanup beacon sent", "from_page", req.FromPage, "to_page", req.ToPage)
	return true
}

// ManualCleanup runs a cleanup for the current path against itself.
func (c *Controller) ManualCleanup(ctx context.Context) *domain.CleanupResult {
	path := c.CurrentPath()
	return c.cleanup(ctx, backend.NavigationCleanupRequest{FromPage: path, ToPage: path, UserID: c.userID})
}

// ClearAllCache wipes every backend cache entry of the user. It refuses to
// run without confirm.
func (c *Controller) ClearAllCache(ctx context.Context, confirm bool) bool {
	if !confirm {
		c.logger.Info("clear cache refused without confirmation")
		return false
	}

	c.invalidate()
	if err := c.backend.ClearCache(ctx, c.userID); err != nil {
		c.fail("Failed to clear cache", "clear cache failed", err)
		return false
	}

	c.logger.Info("cache cleared")
	c.toast(notify.LevelSuccess, "Cache cleared", "All cached data was removed.")
	return true
}

// GetCacheStats returns backend cache statistics, or nil on failure.
func (c *Controller) GetCacheStats(ctx context.Context) *domain.CacheStats {
	stats, err := c.backend.CacheStats(ctx, c.userID)
	if err != nil {
		c.fail("Failed to load cache statistics", "cache stats failed", err)
		return nil
	}
	return stats
}

// GetCacheHealth returns the cache service health, or nil on failure.
func (c *Controller) GetCacheHealth(ctx context.Context) *domain.CacheHealth {
	return c.cacheHealth(ctx, true)
}

// OptimizeCache triggers a backend optimization pass, or returns nil on
// failure.
func (c *Controller) OptimizeCache(ctx context.Context) *domain.OptimizeResult {
	return c.optimize(ctx, true)
}

// cacheHealth and optimize only raise notices when toast is set; background
// maintenance logs its failures without bothering the user.
func (c *Controller) cacheHealth(ctx context.Context, toast bool) *domain.CacheHealth {
	health, err := c.backend.CacheHealth(ctx, c.userID)
	if err != nil {
		c.report(toast, "Failed to load cache health", "cache health failed", err)
		return nil
	}
	return health
}

func (c *Controller) optimize(ctx context.Context, toast bool) *domain.OptimizeResult {
	res, err := c.backend.OptimizeCache(ctx, c.userID)
	if err != nil {
		c.report(toast, "Cache optimization failed", "cache optimization failed", err)
		return nil
	}
	c.logger.Info("cache optimized", "entries_removed", res.EntriesRemoved, "memory_freed_mb", res.MemoryFreedMB)
	return res
}

// CurrentPath returns the most recently observed path.
func (c *Controller) CurrentPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// PendingCleanup reports whether a debounced cleanup is waiting to fire.
func (c *Controller) PendingCleanup() bool {
	return c.debouncer.Pending()
}

// LastCleanup returns the result of the last successful cleanup, if any.
func (c *Controller) LastCleanup() *domain.CleanupResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastCleanup
}

// LastActive returns when the controller last saw a navigation.
func (c *Controller) LastActive() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

// Close drops any pending cleanup.
func (c *Controller) Close() {
	c.debouncer.Stop()
}

// cleanup invalidates local repository context before calling the backend,
// so a failed call still leaves no stale context on this side.
func (c *Controller) cleanup(ctx context.Context, req backend.NavigationCleanupRequest) *domain.CleanupResult {
	c.invalidate()

	res, err := c.backend.NavigationCleanup(ctx, req)
	if err != nil {
		c.fail("Cache cleanup failed", "navigation cleanup failed", err, "from_page", req.FromPage, "to_page", req.ToPage)
		return nil
	}

	c.mu.Lock()
	c.lastCleanup = res
	c.mu.Unlock()

	c.logger.Info("navigation cleanup completed",
		"from_page", req.FromPage,
		"to_page", req.ToPage,
		"entries_cleaned", res.EntriesCleaned,
		"memory_freed_mb", res.MemoryFreedMB,
		"cleanup_time_ms", res.CleanupTimeMs,
	)
	if res.EntriesCleaned > 0 {
		c.toast(notify.LevelInfo, "Cache cleaned", "Cached data for the previous page was released.")
	}
	return res
}

func (c *Controller) invalidate() {
	if c.invalidator != nil {
		c.invalidator.Invalidate(c.userID)
	}
}

func (c *Controller) fail(title, logMsg string, err error, attrs ...any) {
	c.report(true, title, logMsg, err, attrs...)
}

func (c *Controller) report(toast bool, title, logMsg string, err error, attrs ...any) {
	c.logger.Warn(logMsg, append(attrs, "error", err)...)
	if toast {
		c.toast(notify.LevelError, title, err.Error())
	}
}

func (c *Controller) toast(level notify.Level, title, message string) {
	if !c.opts.ShowNotifications {
		return
	}
	n := notify.Toast(level, title, message)
	n.UserID = c.userID
	c.notifier.Notify(n)
}
