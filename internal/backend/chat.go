package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ashureev/devchat/internal/domain"
)

// SendMessage posts a chat message. It makes exactly one attempt.
func (c *Client) SendMessage(ctx context.Context, req domain.SendMessageRequest) (*domain.SendMessageResponse, error) {
	if req.SessionID == "" {
		return nil, fmt.Errorf("send message: session id is required")
	}

	path := "/chat/sessions/" + url.PathEscape(req.SessionID) + "/messages"
	var resp domain.SendMessageResponse
	if err := c.doJSON(ctx, http.MethodPost, path, nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
