// Package repository keeps the per-user repository context used to ground
// chat requests.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/devchat/internal/backend"
	"github.com/ashureev/devchat/internal/domain"
	"golang.org/x/sync/singleflight"
)

// defaultDetectTimeout bounds one shared detection call.
const defaultDetectTimeout = 30 * time.Second

// ErrURLRequired is returned when no repository URL is given.
var ErrURLRequired = errors.New("repository url is required")

// Backend is the repository half of the backend API.
type Backend interface {
	RepositoryContext(ctx context.Context, req backend.RepositoryContextRequest) (*domain.RepositoryContext, error)
	SuggestedFiles(ctx context.Context, repoURL, branch, query string, limit int) ([]domain.SuggestedFile, error)
	EvictRepositoryCache(ctx context.Context, repoURL, branch string) error
}

// Manager detects and caches repository context per user. Concurrent
// detections of the same repository for the same user share one call.
type Manager struct {
	backend Backend
	logger  *slog.Logger
	group   singleflight.Group
	timeout time.Duration

	mu       sync.RWMutex
	contexts map[string]domain.RepositoryContext
}

// NewManager creates a manager.
func NewManager(be Backend, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		backend:  be,
		logger:   logger,
		timeout:  defaultDetectTimeout,
		contexts: make(map[string]domain.RepositoryContext),
	}
}

// Detect returns the repository context for userID, asking the backend
// unless the same repository and branch are already cached.
func (m *Manager) Detect(ctx context.Context, userID, repoURL, branch string) (*domain.RepositoryContext, error) {
	repoURL = strings.TrimSpace(repoURL)
	if repoURL == "" {
		return nil, ErrURLRequired
	}

	m.mu.RLock()
	cached, ok := m.contexts[userID]
	m.mu.RUnlock()
	if ok && cached.URL == repoURL && (branch == "" || cached.Branch == branch) {
		cached.Cached = true
		return &cached, nil
	}

	// The shared call ignores any one caller's cancellation and runs under
	// its own timeout.
	key := userID + "\x00" + repoURL + "\x00" + branch
	ch := m.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		rc, err := m.backend.RepositoryContext(callCtx, backend.RepositoryContextRequest{
			URL:    repoURL,
			Branch: branch,
			UserID: userID,
		})
		if err != nil {
			return nil, err
		}
		return normalize(*rc, repoURL, branch), nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, fmt.Errorf("detect repository: %w", ctx.Err())
	}
	if res.Err != nil {
		m.logger.Warn("repository detection failed", "user_id", userID, "repository_url", repoURL, "branch", branch, "error", res.Err)
		return nil, fmt.Errorf("detect repository: %w", res.Err)
	}
	v, shared := res.Val, res.Shared

	rc := v.(domain.RepositoryContext)
	m.mu.Lock()
	m.contexts[userID] = rc
	m.mu.Unlock()

	m.logger.Debug("repository detected",
		"user_id", userID,
		"repository", rc.Owner+"/"+rc.Name,
		"branch", rc.Branch,
		"validation_status", rc.ValidationStatus,
		"shared", shared,
	)
	return &rc, nil
}

// Get returns the cached context of userID.
func (m *Manager) Get(userID string) (*domain.RepositoryContext, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rc, ok := m.contexts[userID]
	if !ok {
		return nil, false
	}
	return &rc, true
}

// Invalidate drops the cached context of userID.
func (m *Manager) Invalidate(userID string) {
	m.mu.Lock()
	_, ok := m.contexts[userID]
	delete(m.contexts, userID)
	m.mu.Unlock()

	if ok {
		m.logger.Debug("repository context invalidated", "user_id", userID)
	}
}

// SuggestedFiles returns ranked file suggestions for a repository.
func (m *Manager) SuggestedFiles(ctx context.Context, repoURL, branch, query string, limit int) ([]domain.SuggestedFile, error) {
	if strings.TrimSpace(repoURL) == "" {
		return nil, ErrURLRequired
	}
	files, err := m.backend.SuggestedFiles(ctx, repoURL, branch, query, limit)
	if err != nil {
		return nil, fmt.Errorf("suggested files: %w", err)
	}
	return files, nil
}

// Evict drops backend caches for the repository and forgets the local
// context of userID.
func (m *Manager) Evict(ctx context.Context, userID, repoURL, branch string) error {
	if strings.TrimSpace(repoURL) == "" {
		return ErrURLRequired
	}
	m.Invalidate(userID)
	if err := m.backend.EvictRepositoryCache(ctx, repoURL, branch); err != nil {
		return fmt.Errorf("evict repository cache: %w", err)
	}
	return nil
}

// normalize fills fields the backend left empty.
func normalize(rc domain.RepositoryContext, repoURL, branch string) domain.RepositoryContext {
	if rc.URL == "" {
		rc.URL = repoURL
	}
	if rc.Branch == "" {
		rc.Branch = branch
	}
	if rc.Owner == "" || rc.Name == "" {
		owner, name := ParseURL(repoURL)
		if rc.Owner == "" {
			rc.Owner = owner
		}
		if rc.Name == "" {
			rc.Name = name
		}
	}
	if rc.ValidationStatus == "" {
		rc.ValidationStatus = domain.ValidationUnknown
	}
	return rc
}

// ParseURL extracts owner and name from a GitHub or GitLab style URL such
// as https://github.com/owner/name.git or git@github.com:owner/name.
func ParseURL(repoURL string) (owner, name string) {
	s := strings.TrimSpace(repoURL)
	if rest, ok := strings.CutPrefix(s, "git@"); ok {
		if _, path, found := strings.Cut(rest, ":"); found {
			s = path
		}
	} else if u, err := url.Parse(s); err == nil && u.Host != "" {
		s = u.Path
	}

	s = strings.TrimSuffix(strings.Trim(s, "/"), ".git")
	parts := strings.Split(s, "/")
	if len(parts) < 2 {
		return "", ""
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}
