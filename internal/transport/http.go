package transport

import (
	"context"

	"github.com/ashureev/devchat/internal/backend"
	"github.com/ashureev/devchat/internal/domain"
)

// HTTP delivers messages through the backend REST endpoint.
type HTTP struct {
	client *backend.Client
}

// NewHTTP creates an HTTP transport.
func NewHTTP(client *backend.Client) *HTTP {
	return &HTTP{client: client}
}

// Kind returns HTTPDelivery.
func (h *HTTP) Kind() Kind { return HTTPDelivery }

// Deliver posts the message once.
func (h *HTTP) Deliver(ctx context.Context, req domain.SendMessageRequest) (*domain.SendMessageResponse, error) {
	return h.client.SendMessage(ctx, req)
}
