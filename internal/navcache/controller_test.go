package navcache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/devchat/internal/backend"
	"github.com/ashureev/devchat/internal/config"
	"github.com/ashureev/devchat/internal/domain"
	"github.com/ashureev/devchat/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu        sync.Mutex
	cleanups  []backend.NavigationCleanupRequest
	beacons   []backend.NavigationCleanupRequest
	clears    int
	optimizes int
	err       error
	health    *domain.CacheHealth
}

func (f *fakeBackend) NavigationCleanup(_ context.Context, req backend.NavigationCleanupRequest) (*domain.CleanupResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups = append(f.cleanups, req)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CleanupResult{RepositoryCacheCleared: true, EntriesCleaned: 3}, nil
}

func (f *fakeBackend) NavigationCleanupBeacon(req backend.NavigationCleanupRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beacons = append(f.beacons, req)
}

func (f *fakeBackend) ClearCache(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return f.err
}

func (f *fakeBackend) CacheStats(context.Context, string) (*domain.CacheStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.CacheStats{TotalEntries: 7}, nil
}

func (f *fakeBackend) CacheHealth(context.Context, string) (*domain.CacheHealth, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.health != nil {
		return f.health, nil
	}
	return &domain.CacheHealth{Status: "healthy", Connected: true}, nil
}

func (f *fakeBackend) OptimizeCache(context.Context, string) (*domain.OptimizeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optimizes++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.OptimizeResult{EntriesRemoved: 2}, nil
}

func (f *fakeBackend) Cleanups() []backend.NavigationCleanupRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.NavigationCleanupRequest(nil), f.cleanups...)
}

func (f *fakeBackend) Beacons() []backend.NavigationCleanupRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]backend.NavigationCleanupRequest(nil), f.beacons...)
}

type fakeInvalidator struct {
	mu    sync.Mutex
	users []string
}

func (f *fakeInvalidator) Invalidate(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, userID)
}

func (f *fakeInvalidator) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

type noticeLog struct {
	mu      sync.Mutex
	notices []notify.Notice
}

func (l *noticeLog) Notify(n notify.Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notices = append(l.notices, n)
}

func (l *noticeLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.notices)
}

const testDelay = 20 * time.Millisecond

func newTestRegistry(t *testing.T, be *fakeBackend, inv *fakeInvalidator, n notify.Notifier, notifications bool) *Registry {
	t.Helper()
	var invalidator ContextInvalidator
	if inv != nil {
		invalidator = inv
	}
	reg := NewRegistry(be, invalidator, n, NewRules(config.DefaultRoutes()), Options{
		CleanupDelay:      testDelay,
		ShowNotifications: notifications,
	}, slog.Default())
	t.Cleanup(reg.Close)
	return reg
}

func TestNavigateChatToHubSchedulesCleanup(t *testing.T) {
	be := &fakeBackend{}
	inv := &fakeInvalidator{}
	c := newTestRegistry(t, be, inv, nil, false).For("u1")

	assert.False(t, c.Navigate("/contribution/chat"))
	assert.True(t, c.Navigate("/hub/overview"))
	assert.True(t, c.PendingCleanup())
	assert.Empty(t, be.Cleanups(), "cleanup is deferred")

	require.Eventually(t, func() bool { return len(be.Cleanups()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, backend.NavigationCleanupRequest{FromPage: "/contribution/chat", ToPage: "/hub/overview", UserID: "u1"}, be.Cleanups()[0])
	assert.Eventually(t, func() bool { return c.LastCleanup() != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, inv.Count())
}

func TestNavigateWithinHubSchedulesNothing(t *testing.T) {
	be := &fakeBackend{}
	c := newTestRegistry(t, be, nil, nil, false).For("u1")

	c.Navigate("/hub/overview")
	assert.False(t, c.Navigate("/hub/settings"))
	assert.False(t, c.PendingCleanup())

	time.Sleep(3 * testDelay)
	assert.Empty(t, be.Cleanups())
}

func TestRapidNavigationsDebounceToOneCall(t *testing.T) {
	be := &fakeBackend{}
	c := newTestRegistry(t, be, nil, nil, false).For("u1")

	c.Navigate("/contribution/chat")
	c.Navigate("/hub/overview")
	c.Navigate("/contribution/repo")
	c.Navigate("/hub/settings")

	require.Eventually(t, func() bool { return len(be.Cleanups()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(3 * testDelay)

	calls := be.Cleanups()
	require.Len(t, calls, 1)
	assert.Equal(t, "/contribution/repo", calls[0].FromPage)
	assert.Equal(t, "/hub/settings", calls[0].ToPage)
}

func TestCleanupFailureIsSoft(t *testing.T) {
	be := &fakeBackend{err: errors.New("cache service down")}
	inv := &fakeInvalidator{}
	notices := &noticeLog{}
	c := newTestRegistry(t, be, inv, notices, true).For("u1")

	assert.Nil(t, c.ManualCleanup(context.Background()))
	assert.Equal(t, 1, inv.Count(), "local context is dropped even when the backend call fails")
	assert.Equal(t, 1, notices.Len())

	assert.Nil(t, c.GetCacheStats(context.Background()))
	assert.Nil(t, c.GetCacheHealth(context.Background()))
	assert.Nil(t, c.OptimizeCache(context.Background()))
	assert.False(t, c.ClearAllCache(context.Background(), true))
	assert.Equal(t, 5, notices.Len())
}

func TestFailureNoticesCanBeDisabled(t *testing.T) {
	be := &fakeBackend{err: errors.New("down")}
	notices := &noticeLog{}
	c := newTestRegistry(t, be, nil, notices, false).For("u1")

	assert.Nil(t, c.GetCacheStats(context.Background()))
	assert.Equal(t, 0, notices.Len())
}

func TestClearAllCacheRequiresConfirmation(t *testing.T) {
	be := &fakeBackend{}
	c := newTestRegistry(t, be, nil, nil, false).For("u1")

	assert.False(t, c.ClearAllCache(context.Background(), false))
	assert.Equal(t, 0, be.clears)

	assert.True(t, c.ClearAllCache(context.Background(), true))
	assert.Equal(t, 1, be.clears)
}

func TestManualCleanupUsesCurrentPath(t *testing.T) {
	be := &fakeBackend{}
	c := newTestRegistry(t, be, nil, nil, false).For("u1")
	c.Navigate("/contribution/repo")

	res := c.ManualCleanup(context.Background())
	require.NotNil(t, res)
	assert.Equal(t, 3, res.EntriesCleaned)
	assert.Equal(t, backend.NavigationCleanupRequest{FromPage: "/contribution/repo", ToPage: "/contribution/repo", UserID: "u1"}, be.Cleanups()[0])
	assert.NotNil(t, c.GetCacheStats(context.Background()))
}

func TestUnloadSendsPendingCleanupAsBeacon(t *testing.T) {
	be := &fakeBackend{}
	c := newTestRegistry(t, be, nil, nil, false).For("u1")

	c.Navigate("/contribution/chat")
	c.Navigate("/hub")
	require.True(t, c.Unload(""))

	assert.Equal(t, []backend.NavigationCleanupRequest{{FromPage: "/contribution/chat", ToPage: "/hub", UserID: "u1"}}, be.Beacons())
	time.Sleep(3 * testDelay)
	assert.Empty(t, be.Cleanups(), "the debounced call was replaced by the beacon")
}

func TestUnloadFromContributionPage(t *testing.T) {
	be := &fakeBackend{}
	c := newTestRegistry(t, be, nil, nil, false).For("u1")

	c.Navigate("/contribution/repo")
	require.True(t, c.Unload("/contribution/repo"))
	assert.Equal(t, "external", be.Beacons()[0].ToPage)

	c.Navigate("/hub")
	time.Sleep(3 * testDelay)
	assert.False(t, c.Unload("/settings"))
	assert.Len(t, be.Beacons(), 1)
}

func TestUnloadRacingTimerSendsOneCleanup(t *testing.T) {
	be := &fakeBackend{}
	c := newTestRegistry(t, be, nil, nil, false).For("u1")

	c.Navigate("/contribution/chat")
	require.True(t, c.Navigate("/contribution/repo"))

	// Take the task out as if the timer had just fired.
	c.debouncer.mu.Lock()
	fired := c.debouncer.takeLocked()
	c.debouncer.mu.Unlock()
	require.NotNil(t, fired)

	require.True(t, c.Unload(""))
	fired()

	assert.Equal(t, []backend.NavigationCleanupRequest{{FromPage: "/contribution/chat", ToPage: "/contribution/repo", UserID: "u1"}}, be.Beacons())
	assert.Empty(t, be.Cleanups())
}

func TestRegistryKeepsOneControllerPerUser(t *testing.T) {
	reg := newTestRegistry(t, &fakeBackend{}, nil, nil, false)

	a := reg.For("u1")
	assert.Same(t, a, reg.For("u1"))
	assert.NotSame(t, a, reg.For("u2"))
	assert.Len(t, reg.Active(time.Hour), 2)
}
