package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ashureev/devchat/internal/domain"
)

const (
	pathNavigationCleanup = "/api/v1/chat/navigation-cleanup"
	pathClearCache        = "/api/v1/chat/clear-cache"
	pathCacheStats        = "/api/v1/chat/cache-stats"
	pathCacheHealth       = "/api/v1/chat/cache-health"
	pathOptimizeCache     = "/api/v1/chat/optimize-cache"
)

// NavigationCleanupRequest is the body of a navigation cleanup call.
type NavigationCleanupRequest struct {
	FromPage string `json:"from_page"`
	ToPage   string `json:"to_page"`
	UserID   string `json:"user_id"`
}

type userRequest struct {
	UserID string `json:"user_id"`
}

// NavigationCleanup asks the backend to drop caches tied to a page transition.
func (c *Client) NavigationCleanup(ctx context.Context, req NavigationCleanupRequest) (*domain.CleanupResult, error) {
	var out domain.CleanupResult
	if err := c.doJSON(ctx, http.MethodPost, pathNavigationCleanup, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearCache wipes every cache entry owned by the user.
func (c *Client) ClearCache(ctx context.Context, userID string) error {
	return c.doJSON(ctx, http.MethodPost, pathClearCache, nil, userRequest{UserID: userID}, nil)
}

// CacheStats returns cache usage statistics for the user.
func (c *Client) CacheStats(ctx context.Context, userID string) (*domain.CacheStats, error) {
	var out domain.CacheStats
	q := url.Values{"user_id": {userID}}
	if err := c.doJSON(ctx, http.MethodGet, pathCacheStats, q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CacheHealth returns the cache service health snapshot for the user.
func (c *Client) CacheHealth(ctx context.Context, userID string) (*domain.CacheHealth, error) {
	var out domain.CacheHealth
	q := url.Values{"user_id": {userID}}
	if err := c.doJSON(ctx, http.MethodGet, pathCacheHealth, q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// OptimizeCache triggers a backend-side optimization pass.
func (c *Client) OptimizeCache(ctx context.Context, userID string) (*domain.OptimizeResult, error) {
	var out domain.OptimizeResult
	if err := c.doJSON(ctx, http.MethodPost, pathOptimizeCache, nil, userRequest{UserID: userID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
