package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ashureev/devchat/internal/domain"
)

const (
	pathRepositoryContext = "/api/v1/chat/repository/context"
	pathSuggestedFiles    = "/api/v1/chat/repository/suggested-files"
	pathRepositoryCache   = "/api/v1/chat/repository/cache"
)

// RepositoryContextRequest identifies a repository and branch.
type RepositoryContextRequest struct {
	URL    string `json:"repository_url"`
	Branch string `json:"branch,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// RepositoryContext detects repository metadata and validation status.
func (c *Client) RepositoryContext(ctx context.Context, req RepositoryContextRequest) (*domain.RepositoryContext, error) {
	var out domain.RepositoryContext
	if err := c.doJSON(ctx, http.MethodPost, pathRepositoryContext, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SuggestedFiles returns ranked file suggestions for a repository.
func (c *Client) SuggestedFiles(ctx context.Context, repoURL, branch, query string, limit int) ([]domain.SuggestedFile, error) {
	q := url.Values{"repository_url": {repoURL}}
	if branch != "" {
		q.Set("branch", branch)
	}
	if query != "" {
		q.Set("query", query)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var out struct {
		Files []domain.SuggestedFile `json:"files"`
	}
	if err := c.doJSON(ctx, http.MethodGet, pathSuggestedFiles, q, nil, &out); err != nil {
		return nil, err
	}
	return out.Files, nil
}

// EvictRepositoryCache drops backend caches for a repository branch.
func (c *Client) EvictRepositoryCache(ctx context.Context, repoURL, branch string) error {
	q := url.Values{"repository_url": {repoURL}}
	if branch != "" {
		q.Set("branch", branch)
	}
	return c.doJSON(ctx, http.MethodDelete, pathRepositoryCache, q, nil, nil)
}
