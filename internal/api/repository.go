package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ashureev/devchat/internal/backend"
	"github.com/ashureev/devchat/internal/repository"
)

type repositoryRequest struct {
	URL    string `json:"repository_url"`
	Branch string `json:"branch"`
}

// DetectRepository detects and caches the caller's repository context.
func (h *Handler) DetectRepository(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req repositoryRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	rc, err := h.repos.Detect(r.Context(), uid, req.URL, req.Branch)
	if err != nil {
		h.writeRepositoryError(w, err)
		return
	}
	JSON(w, http.StatusOK, rc)
}

// GetRepository returns the caller's cached repository context.
func (h *Handler) GetRepository(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	rc, found := h.repos.Get(uid)
	if !found {
		Error(w, http.StatusNotFound, "no repository context")
		return
	}
	JSON(w, http.StatusOK, rc)
}

// SuggestedFiles returns ranked file suggestions.
func (h *Handler) SuggestedFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 10
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	files, err := h.repos.SuggestedFiles(r.Context(), q.Get("repository_url"), q.Get("branch"), q.Get("query"), limit)
	if err != nil {
		h.writeRepositoryError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"files": files})
}

// EvictRepository drops backend and local caches for a repository.
func (h *Handler) EvictRepository(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	if err := h.repos.Evict(r.Context(), uid, q.Get("repository_url"), q.Get("branch")); err != nil {
		h.writeRepositoryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeRepositoryError(w http.ResponseWriter, err error) {
	var statusErr *backend.StatusError
	switch {
	case errors.Is(err, repository.ErrURLRequired):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &statusErr) && statusErr.StatusCode < 500:
		Error(w, statusErr.StatusCode, err.Error())
	default:
		h.logger.Warn("repository request failed", "error", err)
		Error(w, http.StatusBadGateway, err.Error())
	}
}
