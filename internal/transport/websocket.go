package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/devchat/internal/domain"
	"github.com/coder/websocket"
)

// WebSocketConfig configures the WebSocket transport.
type WebSocketConfig struct {
	URL             string
	Header          http.Header
	ResponseTimeout time.Duration
	ReconnectMin    time.Duration
	ReconnectMax    time.Duration
	ReadLimit       int64
}

func (c *WebSocketConfig) applyDefaults() {
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = 30 * time.Second
	}
	if c.ReconnectMin <= 0 {
		c.ReconnectMin = 500 * time.Millisecond
	}
	if c.ReconnectMax <= 0 {
		c.ReconnectMax = 30 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 4 << 20
	}
}

// Health is the measured state of the WebSocket connection.
type Health struct {
	Connected           bool          `json:"connected"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastRTT             time.Duration `json:"last_rtt"`
	LastFailure         time.Time     `json:"last_failure,omitempty"`
	LastError           string        `json:"last_error,omitempty"`
}

type reply struct {
	resp *domain.SendMessageResponse
	err  error
}

// WebSocket delivers messages over a persistent connection and correlates
// replies by request ID. A supervisor goroutine keeps the connection alive.
type WebSocket struct {
	cfg    WebSocketConfig
	logger *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan reply
	health  Health
	handler func(domain.Envelope)
	cancel  context.CancelFunc
	closed  bool

	wg sync.WaitGroup
}

// NewWebSocket creates a WebSocket transport. Call Start to connect.
func NewWebSocket(cfg WebSocketConfig, logger *slog.Logger) *WebSocket {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &WebSocket{
		cfg:     cfg,
		logger:  logger,
		pending: make(map[string]chan reply),
	}
}

// Kind returns WebSocketDelivery.
func (w *WebSocket) Kind() Kind { return WebSocketDelivery }

// OnEnvelope registers a handler for envelopes that are not replies to a
// pending delivery (status, typing, pushed messages). Set it before Start.
func (w *WebSocket) OnEnvelope(fn func(domain.Envelope)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handler = fn
}

// Start launches the connection supervisor. It does not wait for the first
// connection.
func (w *WebSocket) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	go w.supervise(ctx)
	return nil
}

// Close stops the supervisor, closes the connection and fails pending
// deliveries with ErrClosed.
func (w *WebSocket) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	conn := w.conn
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var closeErr error
	if conn != nil {
		closeErr = conn.Close(websocket.StatusNormalClosure, "client shutdown")
	}
	w.wg.Wait()
	w.failPending(ErrClosed)

	if closeErr != nil && websocket.CloseStatus(closeErr) == -1 && !errors.Is(closeErr, context.Canceled) {
		w.logger.Debug("websocket close returned error", "error", closeErr)
	}
	return nil
}

// Health returns a snapshot of the connection health.
func (w *WebSocket) Health() Health {
	w.mu.Lock()
	defer w.mu.Unlock()
	h := w.health
	h.Connected = w.conn != nil
	return h
}

// Deliver sends one message envelope and waits for the reply carrying the
// same request ID, up to ResponseTimeout. It never falls back to HTTP.
func (w *WebSocket) Deliver(ctx context.Context, req domain.SendMessageRequest) (*domain.SendMessageResponse, error) {
	if req.MessageID == "" {
		return nil, fmt.Errorf("websocket deliver: request id is required")
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	payload, err := json.Marshal(domain.Envelope{
		Type:      domain.EnvelopeMessage,
		Data:      data,
		SessionID: req.SessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, ErrClosed
	}
	conn := w.conn
	if conn == nil {
		w.mu.Unlock()
		return nil, ErrNotConnected
	}
	ch := make(chan reply, 1)
	w.pending[req.MessageID] = ch
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		delete(w.pending, req.MessageID)
		w.mu.Unlock()
	}()

	timer := time.NewTimer(w.cfg.ResponseTimeout)
	defer timer.Stop()

	start := time.Now()
	writeCtx, cancel := context.WithTimeout(ctx, w.cfg.ResponseTimeout)
	err = conn.Write(writeCtx, websocket.MessageText, payload)
	cancel()
	if err != nil {
		w.recordFailure(err)
		return nil, fmt.Errorf("websocket send: %w", err)
	}

	select {
	case r := <-ch:
		var replyErr *ReplyError
		if r.err != nil && !errors.As(r.err, &replyErr) {
			w.recordFailure(r.err)
			return nil, r.err
		}
		w.recordSuccess(time.Since(start))
		return r.resp, r.err
	case <-timer.C:
		w.recordFailure(ErrTimeout)
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *WebSocket) supervise(ctx context.Context) {
	defer w.wg.Done()

	backoff := w.cfg.ReconnectMin
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := w.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("websocket connect failed", "url", w.cfg.URL, "error", err, "retry_in", backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, w.cfg.ReconnectMax)
			continue
		}

		backoff = w.cfg.ReconnectMin
		if !w.attach(conn) {
			_ = conn.Close(websocket.StatusNormalClosure, "client shutdown")
			return
		}
		w.logger.Info("websocket connected", "url", w.cfg.URL)

		err = w.readLoop(ctx, conn)
		w.detach(conn, err)
	}
}

func (w *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, w.cfg.ResponseTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, w.cfg.URL, &websocket.DialOptions{
		HTTPHeader: w.cfg.Header,
	})
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(w.cfg.ReadLimit)
	return conn, nil
}

func (w *WebSocket) attach(conn *websocket.Conn) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.conn = conn
	w.health.ConsecutiveFailures = 0
	w.health.LastError = ""
	return true
}

func (w *WebSocket) detach(conn *websocket.Conn, err error) {
	w.mu.Lock()
	if w.conn == conn {
		w.conn = nil
	}
	closed := w.closed
	w.mu.Unlock()

	if closed || errors.Is(err, context.Canceled) {
		return
	}
	if websocket.CloseStatus(err) != -1 {
		w.logger.Info("websocket closed by server", "status", websocket.CloseStatus(err))
	} else {
		w.logger.Warn("websocket read error", "error", err)
	}
	w.failPending(ErrDisconnected)
}

func (w *WebSocket) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var env domain.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			w.logger.Debug("dropping malformed websocket frame", "error", err, "size", len(data))
			continue
		}
		w.dispatch(env)
	}
}

func (w *WebSocket) dispatch(env domain.Envelope) {
	var hdr domain.EnvelopeHeader
	if len(env.Data) > 0 {
		_ = json.Unmarshal(env.Data, &hdr)
	}

	switch env.Type {
	case domain.EnvelopeMessage:
		if hdr.RequestID != "" {
			var resp domain.SendMessageResponse
			if err := json.Unmarshal(env.Data, &resp); err != nil {
				if w.resolve(hdr.RequestID, reply{err: fmt.Errorf("decode websocket reply: %w", err)}) {
					return
				}
			} else if w.resolve(hdr.RequestID, reply{resp: &resp}) {
				return
			}
		}
	case domain.EnvelopeError:
		if hdr.RequestID != "" {
			msg := hdr.Error
			if msg == "" {
				msg = "unknown error"
			}
			if w.resolve(hdr.RequestID, reply{err: &ReplyError{RequestID: hdr.RequestID, Message: msg}}) {
				return
			}
		}
	}

	w.mu.Lock()
	handler := w.handler
	w.mu.Unlock()
	if handler != nil {
		handler(env)
	}
}

func (w *WebSocket) resolve(requestID string, r reply) bool {
	w.mu.Lock()
	ch, ok := w.pending[requestID]
	w.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- r:
	default:
	}
	return true
}

func (w *WebSocket) failPending(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, ch := range w.pending {
		select {
		case ch <- reply{err: err}:
		default:
		}
	}
}

func (w *WebSocket) recordSuccess(rtt time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.health.ConsecutiveFailures = 0
	w.health.LastRTT = rtt
	w.health.LastError = ""
}

func (w *WebSocket) recordFailure(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.health.ConsecutiveFailures++
	w.health.LastFailure = time.Now()
	w.health.LastError = err.Error()
}
