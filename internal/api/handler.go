// Package api is the local HTTP bridge the UI uses to drive the chat
// runtime.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/devchat/internal/chat"
	"github.com/ashureev/devchat/internal/identity"
	"github.com/ashureev/devchat/internal/navcache"
	"github.com/ashureev/devchat/internal/repository"
	"github.com/go-chi/chi/v5"
)

// maxRequestBodySize bounds request bodies; file context may carry up to
// 1M characters per file.
const maxRequestBodySize = 16 << 20

// Handler serves the bridge API.
type Handler struct {
	chat    *chat.Service
	nav     *navcache.Registry
	repos   *repository.Manager
	notices *NoticeHub
	logger  *slog.Logger
}

// NewHandler creates a Handler over the runtime components.
func NewHandler(svc *chat.Service, nav *navcache.Registry, repos *repository.Manager, notices *NoticeHub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		chat:    svc,
		nav:     nav,
		repos:   repos,
		notices: notices,
		logger:  logger,
	}
}

// RegisterRoutes mounts every bridge route under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/chat", func(r chi.Router) {
			r.Post("/sessions", h.CreateSession)
			r.Get("/sessions/{id}", h.GetSession)
			r.Post("/sessions/{id}/messages", h.SendMessage)
			r.Get("/messages", h.ListMessageStatuses)
			r.Get("/messages/{id}/status", h.GetMessageStatus)

			r.Get("/files", h.GetFiles)
			r.Put("/files", h.UpdateFile)
			r.Delete("/files", h.RemoveFile)
			r.Post("/files/validate", h.ValidateFiles)
		})

		r.Post("/navigation", h.Navigate)
		r.Post("/navigation/unload", h.Unload)

		r.Route("/cache", func(r chi.Router) {
			r.Post("/cleanup", h.ManualCleanup)
			r.Post("/clear", h.ClearCache)
			r.Get("/stats", h.CacheStats)
			r.Get("/health", h.CacheHealth)
			r.Get("/overview", h.CacheOverview)
			r.Post("/optimize", h.OptimizeCache)
		})

		r.Route("/repository", func(r chi.Router) {
			r.Post("/context", h.DetectRepository)
			r.Get("/context", h.GetRepository)
			r.Get("/suggested-files", h.SuggestedFiles)
			r.Delete("/cache", h.EvictRepository)
		})

		r.Get("/events", h.notices.HandleStream)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// userID returns the caller's user ID, writing 401 when there is none.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := identity.UserIDFromContext(r.Context())
	if id == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return "", false
	}
	return id, true
}
