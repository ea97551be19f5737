package api

import (
	"container/list"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/ashureev/devchat/internal/identity"
	"github.com/ashureev/devchat/internal/notify"
)

const (
	defaultMaxReplay     = 100
	defaultStreamRetry   = 5 * time.Second
	defaultKeepalive     = 10 * time.Second
	streamBufferSize     = 32
	broadcastReplayShard = ""
)

// noticeEvent is a notice stamped with its stream event ID.
type noticeEvent struct {
	ID     int64
	Notice notify.Notice
}

// noticeStream is one connected SSE client. Events are handed to the
// stream's own goroutine so writes to the ResponseWriter never race.
type noticeStream struct {
	id     int64
	userID string
	events chan noticeEvent
}

// NoticeHub fans notices out to SSE clients and keeps a bounded replay
// list per user so reconnecting clients can catch up via Last-Event-ID.
// Notices without a user ID are broadcast to everyone.
type NoticeHub struct {
	mu        sync.RWMutex
	replay    map[string]*list.List
	streams   map[string]map[int64]*noticeStream
	maxReplay int
	eventID   int64
	streamID  int64

	retry     time.Duration
	keepalive time.Duration
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

// NewNoticeHub creates a hub. Zero values select the defaults.
func NewNoticeHub(maxReplay int, retry, keepalive time.Duration, logger *slog.Logger) *NoticeHub {
	if maxReplay <= 0 {
		maxReplay = defaultMaxReplay
	}
	if retry <= 0 {
		retry = defaultStreamRetry
	}
	if keepalive <= 0 {
		keepalive = defaultKeepalive
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NoticeHub{
		replay:    make(map[string]*list.List),
		streams:   make(map[string]map[int64]*noticeStream),
		maxReplay: maxReplay,
		retry:     retry,
		keepalive: keepalive,
		done:      make(chan struct{}),
		logger:    logger,
	}
}

// Notify implements notify.Notifier.
func (h *NoticeHub) Notify(n notify.Notice) {
	if n.Time.IsZero() {
		n.Time = time.Now()
	}

	h.mu.Lock()
	h.eventID++
	ev := noticeEvent{ID: h.eventID, Notice: n}

	l, ok := h.replay[n.UserID]
	if !ok {
		l = list.New()
		h.replay[n.UserID] = l
	}
	l.PushBack(ev)
	for l.Len() > h.maxReplay {
		l.Remove(l.Front())
	}

	var targets []*noticeStream
	for uid, conns := range h.streams {
		if n.UserID != broadcastReplayShard && uid != n.UserID {
			continue
		}
		for _, s := range conns {
			targets = append(targets, s)
		}
	}
	h.mu.Unlock()

	for _, s := range targets {
		select {
		case s.events <- ev:
		default:
			h.logger.Warn("notice stream lagging, dropping event",
				"user_id", s.userID, "stream_id", s.id, "event_id", ev.ID)
		}
	}
}

// Missed returns the events after afterID visible to userID, oldest first.
func (h *NoticeHub) Missed(userID string, afterID int64) []noticeEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []noticeEvent
	collect := func(key string) {
		l, ok := h.replay[key]
		if !ok {
			return
		}
		for e := l.Front(); e != nil; e = e.Next() {
			ev := e.Value.(noticeEvent)
			if ev.ID > afterID {
				out = append(out, ev)
			}
		}
	}
	collect(userID)
	if userID != broadcastReplayShard {
		collect(broadcastReplayShard)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close disconnects every stream.
func (h *NoticeHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *NoticeHub) register(userID string) *noticeStream {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.streamID++
	s := &noticeStream{
		id:     h.streamID,
		userID: userID,
		events: make(chan noticeEvent, streamBufferSize),
	}
	if _, ok := h.streams[userID]; !ok {
		h.streams[userID] = make(map[int64]*noticeStream)
	}
	h.streams[userID][s.id] = s
	return s
}

func (h *NoticeHub) unregister(s *noticeStream) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.streams[s.userID]; ok {
		delete(conns, s.id)
		if len(conns) == 0 {
			delete(h.streams, s.userID)
		}
	}
}

func (h *NoticeHub) currentEventID() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.eventID
}

// HandleStream serves GET /api/events as Server-Sent Events.
//
//nolint:gocognit,gocyclo // SSE lifecycle handling intentionally keeps branches together.
func (h *NoticeHub) HandleStream(w http.ResponseWriter, r *http.Request) {
	uid := identity.UserIDFromContext(r.Context())
	if uid == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	lastEventID := int64(0)
	idHeader := r.Header.Get("Last-Event-ID")
	if idHeader == "" {
		idHeader = r.URL.Query().Get("lastEventId")
	}
	if idHeader != "" {
		if parsed, err := strconv.ParseInt(idHeader, 10, 64); err == nil {
			lastEventID = parsed
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if _, err := io.WriteString(w, fmt.Sprintf("retry: %d\n\n", h.retry.Milliseconds())); err != nil {
		h.logger.Warn("failed to write SSE retry header", "error", err, "user_id", uid)
		return
	}
	flusher.Flush()

	// Register before replaying so nothing published in between is lost.
	s := h.register(uid)
	defer func() {
		h.unregister(s)
		h.logger.Info("notice stream closed", "user_id", uid, "stream_id", s.id)
	}()

	sent := lastEventID
	if lastEventID > 0 {
		missed := h.Missed(uid, lastEventID)
		for _, ev := range missed {
			if err := writeNotice(w, ev); err != nil {
				h.logger.Warn("failed to replay notice", "error", err, "user_id", uid)
				return
			}
			sent = ev.ID
		}
		if len(missed) > 0 {
			h.logger.Info("replayed missed notices", "user_id", uid, "count", len(missed))
		}
	}

	connected, _ := json.Marshal(map[string]any{
		"status":   "connected",
		"user_id":  uid,
		"event_id": h.currentEventID(),
	})
	if err := writeSSE(w, "connected", string(connected)); err != nil {
		h.logger.Warn("failed to write SSE connected event", "error", err, "user_id", uid)
		return
	}
	flusher.Flush()

	h.logger.Info("notice stream established", "user_id", uid, "stream_id", s.id, "reconnect", lastEventID > 0)

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case ev := <-s.events:
			if ev.ID <= sent {
				continue
			}
			if err := writeNotice(w, ev); err != nil {
				h.logger.Warn("failed to write notice", "error", err, "user_id", uid)
				return
			}
			sent = ev.ID
			flusher.Flush()
		case <-keepalive.C:
			if err := writeSSE(w, "ping", `{"status":"alive"}`); err != nil {
				h.logger.Warn("failed to write SSE keepalive ping", "error", err, "user_id", uid)
				return
			}
			flusher.Flush()
		}
	}
}

func writeNotice(w io.Writer, ev noticeEvent) error {
	data, err := json.Marshal(ev.Notice)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.ID, ev.Notice.Kind, data)
	return err
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
