package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ashureev/devchat/internal/backend"
	"github.com/ashureev/devchat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDeliver(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/chat/sessions/s1/messages", r.URL.Path)
		var req domain.SendMessageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(domain.SendMessageResponse{
			UserMessage:      domain.Message{ID: req.MessageID, Role: "user", Content: req.Content},
			AssistantMessage: domain.Message{ID: "a1", Role: "assistant", Content: "hi"},
		})
	}))
	defer srv.Close()

	h := NewHTTP(backend.NewClient(srv.URL, time.Second, nil))
	assert.Equal(t, HTTPDelivery, h.Kind())

	resp, err := h.Deliver(context.Background(), domain.SendMessageRequest{MessageID: "m1", SessionID: "s1", Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "m1", resp.UserMessage.ID)
	assert.Equal(t, "hi", resp.AssistantMessage.Content)
	assert.Equal(t, 1, calls)
}

func TestHTTPDeliverSingleAttemptOnServerError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h := NewHTTP(backend.NewClient(srv.URL, time.Second, nil))
	_, err := h.Deliver(context.Background(), domain.SendMessageRequest{MessageID: "m1", SessionID: "s1"})
	require.Error(t, err)
	assert.True(t, backend.IsStatus(err, http.StatusServiceUnavailable))
	assert.Equal(t, 1, calls)
}
