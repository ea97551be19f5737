package api

import (
	"errors"
	"net/http"

	"github.com/ashureev/devchat/internal/chat"
	"github.com/ashureev/devchat/internal/domain"
	"github.com/ashureev/devchat/internal/filecontext"
	"github.com/ashureev/devchat/internal/identity"
	"github.com/go-chi/chi/v5"
)

type createSessionRequest struct {
	ID    string               `json:"id"`
	Title string               `json:"title"`
	Files []domain.FileContext `json:"files"`
}

type sendMessageRequest struct {
	RequestID   string               `json:"request_id"`
	Content     string               `json:"content"`
	FileContext []domain.FileContext `json:"file_context"`
	// Branch attaches every stored file of the branch when FileContext is empty.
	Branch string `json:"branch"`
}

// CreateSession registers a chat session. Without an id in the body the
// X-Chat-Session-ID header is used, then a generated one.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var req createSessionRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID == "" {
		req.ID = identity.SessionIDFromContext(r.Context())
	}
	JSON(w, http.StatusCreated, h.chat.CreateSession(uid, req.ID, req.Title, req.Files))
}

// GetSession returns a session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.chat.Session(chi.URLParam(r, "id"))
	if !ok {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	JSON(w, http.StatusOK, sess)
}

// SendMessage delivers a message and returns the backend reply.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var body sendMessageRequest
	if err := decode(w, r, &body); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Content == "" {
		Error(w, http.StatusBadRequest, "content is required")
		return
	}

	files := body.FileContext
	if len(files) == 0 && body.Branch != "" {
		files = h.chat.Files().List(body.Branch)
	}

	resp, err := h.chat.Send(r.Context(), domain.SendMessageRequest{
		MessageID:   body.RequestID,
		SessionID:   chi.URLParam(r, "id"),
		UserID:      uid,
		Content:     body.Content,
		FileContext: files,
	})
	if err != nil {
		h.writeSendError(w, err)
		return
	}
	JSON(w, http.StatusOK, resp)
}

func (h *Handler) writeSendError(w http.ResponseWriter, err error) {
	var verr *chat.ValidationError
	switch {
	case errors.As(err, &verr):
		JSON(w, http.StatusBadRequest, map[string]any{"error": "invalid file context", "errors": verr.Errors})
	case errors.Is(err, chat.ErrSessionRequired):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chat.ErrQueueFull):
		Error(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, chat.ErrQueueClosed):
		Error(w, http.StatusServiceUnavailable, err.Error())
	default:
		Error(w, http.StatusBadGateway, err.Error())
	}
}

// ListMessageStatuses returns every tracked delivery status, oldest first.
func (h *Handler) ListMessageStatuses(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]any{"statuses": h.chat.Statuses()})
}

// GetMessageStatus returns the delivery status of a message.
func (h *Handler) GetMessageStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := h.chat.Status(chi.URLParam(r, "id"))
	if !ok {
		Error(w, http.StatusNotFound, "message not found")
		return
	}
	JSON(w, http.StatusOK, st)
}

// GetFiles returns one file when path is given, or every file of branch.
func (h *Handler) GetFiles(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	branch := r.URL.Query().Get("branch")

	if path == "" {
		JSON(w, http.StatusOK, map[string]any{"files": h.chat.Files().List(branch)})
		return
	}

	f, ok := h.chat.Files().Get(path, branch)
	if !ok {
		Error(w, http.StatusNotFound, "file not found")
		return
	}
	JSON(w, http.StatusOK, f)
}

// UpdateFile upserts a file into the context store.
func (h *Handler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	var f domain.FileContext
	if err := decode(w, r, &f); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Path == "" || f.Branch == "" {
		Error(w, http.StatusBadRequest, "path and branch are required")
		return
	}
	if f.ContentHash == "" {
		f.ContentHash = filecontext.HashContent(f.Content)
	}
	h.chat.Files().Update(f)
	JSON(w, http.StatusOK, f)
}

// RemoveFile deletes a file from the context store.
func (h *Handler) RemoveFile(w http.ResponseWriter, r *http.Request) {
	h.chat.Files().Remove(r.URL.Query().Get("path"), r.URL.Query().Get("branch"))
	w.WriteHeader(http.StatusNoContent)
}

// ValidateFiles reports every defect in a file set.
func (h *Handler) ValidateFiles(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Files []domain.FileContext `json:"files"`
	}
	if err := decode(w, r, &body); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	JSON(w, http.StatusOK, h.chat.Files().Validate(body.Files))
}
