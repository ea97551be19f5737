package api

import (
	"net/http"
)

type pathRequest struct {
	Path string `json:"path"`
}

// Navigate records a route transition for the caller.
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req pathRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Path == "" {
		Error(w, http.StatusBadRequest, "path is required")
		return
	}

	scheduled := h.nav.For(uid).Navigate(req.Path)
	JSON(w, http.StatusOK, map[string]any{"path": req.Path, "cleanup_scheduled": scheduled})
}

// Unload handles the page being closed. Browsers send it with
// navigator.sendBeacon, so the body may arrive as text/plain and nobody
// reads the response.
func (h *Handler) Unload(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req pathRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	sent := h.nav.For(uid).Unload(req.Path)
	JSON(w, http.StatusAccepted, map[string]bool{"beacon_sent": sent})
}
