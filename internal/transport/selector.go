package transport

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/devchat/internal/domain"
)

// HealthReporter is a transport whose connection health can be measured.
type HealthReporter interface {
	Transport
	Health() Health
}

// SelectorConfig controls when the WebSocket path is trusted.
type SelectorConfig struct {
	EnableWebSocket bool
	MaxFailures     int           // consecutive failures before WebSocket is skipped
	Cooldown        time.Duration // after this long, an unhealthy socket is probed again
}

// Selector picks a transport per send from measured connection health.
type Selector struct {
	http   Transport
	ws     HealthReporter
	cfg    SelectorConfig
	logger *slog.Logger
	now    func() time.Time
}

// NewSelector creates a selector. ws may be nil when WebSocket is disabled.
func NewSelector(http Transport, ws HealthReporter, cfg SelectorConfig, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 2
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Selector{http: http, ws: ws, cfg: cfg, logger: logger, now: time.Now}
}

// Pick returns the WebSocket transport when it is enabled, connected and
// healthy, and HTTP otherwise.
func (s *Selector) Pick() Transport {
	if !s.cfg.EnableWebSocket || s.ws == nil {
		return s.http
	}

	h := s.ws.Health()
	if !h.Connected {
		return s.http
	}
	if h.ConsecutiveFailures >= s.cfg.MaxFailures && s.now().Sub(h.LastFailure) < s.cfg.Cooldown {
		return s.http
	}
	return s.ws
}

// Deliver sends req once over the picked transport.
func (s *Selector) Deliver(ctx context.Context, req domain.SendMessageRequest) (*domain.SendMessageResponse, error) {
	t := s.Pick()
	resp, err := t.Deliver(ctx, req)
	if err != nil {
		s.logger.Debug("delivery attempt failed",
			"transport", t.Kind().String(),
			"message_id", req.MessageID,
			"session_id", req.SessionID,
			"error", err,
		)
		return nil, err
	}
	s.logger.Debug("message delivered",
		"transport", t.Kind().String(),
		"message_id", req.MessageID,
		"session_id", req.SessionID,
	)
	return resp, nil
}
