// Package chat delivers chat messages through a single retry policy, an
// optional bounded queue and the transport selector, and tracks the
// delivery status of every message.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/devchat/internal/domain"
	"github.com/ashureev/devchat/internal/filecontext"
	"github.com/ashureev/devchat/internal/notify"
	"github.com/ashureev/devchat/internal/session"
	"github.com/google/uuid"
)

// Deliverer makes one delivery attempt, typically a transport.Selector.
type Deliverer interface {
	Deliver(ctx context.Context, req domain.SendMessageRequest) (*domain.SendMessageResponse, error)
}

// SnapshotStore persists sessions and statuses across restarts.
type SnapshotStore interface {
	LoadSessions(ctx context.Context) ([]*domain.ChatSession, error)
	SaveSessions(ctx context.Context, sessions []*domain.ChatSession) error
	LoadStatuses(ctx context.Context) ([]domain.MessageStatus, error)
	SaveStatuses(ctx context.Context, statuses []domain.MessageStatus) error
}

// Connection is a long-lived transport connection started and closed with
// the service.
type Connection interface {
	Start(ctx context.Context) error
	Close() error
}

// Options are the chat delivery knobs.
type Options struct {
	EnableMessageQueue bool
	ContextValidation  bool
	MaxQueueSize       int
	Policy             RetryPolicy
	MessagePause       time.Duration
}

// Deps are the collaborators of a Service. Store and Connection may be nil.
type Deps struct {
	Deliverer  Deliverer
	Sessions   *session.Registry
	Files      *filecontext.Store
	Notifier   notify.Notifier
	Store      SnapshotStore
	Connection Connection
	Logger     *slog.Logger
}

// Service is the chat client runtime. Construct it with NewService, then
// Start it and Shutdown it from the composition root.
type Service struct {
	deliverer Deliverer
	sessions  *session.Registry
	files     *filecontext.Store
	notifier  notify.Notifier
	store     SnapshotStore
	conn      Connection
	logger    *slog.Logger
	opts      Options

	tracker *Tracker
	queue   *Queue

	ownersMu sync.RWMutex
	owners   map[string]string // session ID -> user ID

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewService wires a Service. Nothing runs until Start.
func NewService(deps Deps, opts Options) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewRegistry()
	}
	if deps.Files == nil {
		deps.Files = filecontext.NewStore()
	}

	s := &Service{
		deliverer: deps.Deliverer,
		sessions:  deps.Sessions,
		files:     deps.Files,
		notifier:  deps.Notifier,
		store:     deps.Store,
		conn:      deps.Connection,
		logger:    deps.Logger,
		opts:      opts,
		tracker:   NewTracker(),
		owners:    make(map[string]string),
	}

	if opts.EnableMessageQueue {
		s.queue = NewQueue(s.deliverer.Deliver, QueueConfig{
			MaxSize: opts.MaxQueueSize,
			Policy:  opts.Policy,
			Pause:   opts.MessagePause,
			OnRetry: func(req domain.SendMessageRequest, _ int, _ time.Duration, _ error) {
				s.tracker.IncrementRetry(req.MessageID)
			},
		}, s.logger)
	}
	return s
}

// Start restores the snapshot and connects the long-lived transport.
func (s *Service) Start(ctx context.Context) error {
	if s.store != nil {
		sessions, err := s.store.LoadSessions(ctx)
		if err != nil {
			return fmt.Errorf("restore sessions: %w", err)
		}
		s.sessions.Restore(sessions)

		statuses, err := s.store.LoadStatuses(ctx)
		if err != nil {
			return fmt.Errorf("restore statuses: %w", err)
		}
		s.tracker.Restore(statuses)

		s.logger.Info("chat snapshot restored", "sessions", len(sessions), "statuses", len(statuses))
	}

	if s.conn != nil {
		if err := s.conn.Start(ctx); err != nil {
			return fmt.Errorf("start connection: %w", err)
		}
	}
	return nil
}

// Shutdown closes the queue and connection, waits for detached sends and
// persists the snapshot.
func (s *Service) Shutdown(ctx context.Context) error {
	var errs []error
	s.stopOnce.Do(func() {
		if s.queue != nil {
			s.queue.Close()
		}
		if s.conn != nil {
			if err := s.conn.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close connection: %w", err))
			}
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("wait for pending sends: %w", ctx.Err()))
		}

		if err := s.Persist(ctx); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

// Persist writes sessions and statuses to the snapshot store, if any.
func (s *Service) Persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.SaveSessions(ctx, s.sessions.List()); err != nil {
		return fmt.Errorf("persist sessions: %w", err)
	}
	if err := s.store.SaveStatuses(ctx, s.tracker.All()); err != nil {
		return fmt.Errorf("persist statuses: %w", err)
	}
	return nil
}

// Send validates and delivers req. Retryable failures are retried under the
// configured policy; validation failures never reach the network. The final
// outcome is always visible through Status.
func (s *Service) Send(ctx context.Context, req domain.SendMessageRequest) (*domain.SendMessageResponse, error) {
	if req.MessageID == "" {
		req.MessageID = uuid.NewString()
	}
	if req.SessionID == "" {
		s.tracker.Update(req.MessageID, domain.StatusFailed, ErrSessionRequired)
		return nil, ErrSessionRequired
	}

	if s.opts.ContextValidation && len(req.FileContext) > 0 {
		if res := s.files.Validate(req.FileContext); !res.Valid {
			err := &ValidationError{Errors: res.Errors}
			s.tracker.Update(req.MessageID, domain.StatusFailed, err)
			s.notifyFailure(req, err)
			return nil, err
		}
	}

	s.bindOwner(req.SessionID, req.UserID)
	s.tracker.Update(req.MessageID, domain.StatusSending, nil)

	if s.queue == nil {
		resp, err := Retry(ctx, s.opts.Policy,
			func(ctx context.Context) (*domain.SendMessageResponse, error) {
				return s.deliverer.Deliver(ctx, req)
			},
			IsRetryable,
			func(retry int, delay time.Duration, err error) {
				s.tracker.IncrementRetry(req.MessageID)
				s.logger.Warn("message delivery failed, retrying",
					"message_id", req.MessageID,
					"session_id", req.SessionID,
					"retry", retry,
					"delay", delay,
					"error", err,
				)
			},
		)
		return s.finish(req, resp, err)
	}

	ticket, err := s.queue.Enqueue(req)
	if err != nil {
		return s.finish(req, nil, err)
	}

	resp, err := ticket.Wait(ctx)
	if err != nil && ctx.Err() != nil {
		// The caller left; record the outcome when the queue resolves it.
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			<-ticket.Done()
			resp, err := ticket.Result()
			_, _ = s.finish(req, resp, err)
		}()
		return nil, err
	}
	return s.finish(req, resp, err)
}

func (s *Service) finish(req domain.SendMessageRequest, resp *domain.SendMessageResponse, err error) (*domain.SendMessageResponse, error) {
	if err != nil {
		s.tracker.Update(req.MessageID, domain.StatusFailed, err)
		s.logger.Error("message delivery failed",
			"message_id", req.MessageID,
			"session_id", req.SessionID,
			"user_id", req.UserID,
			"error", err,
		)
		s.notifyFailure(req, err)
		return nil, err
	}

	s.tracker.Update(req.MessageID, domain.StatusSent, nil)
	s.sessions.TouchOnSend(req.SessionID, req.FileContext)
	return resp, nil
}

func (s *Service) notifyFailure(req domain.SendMessageRequest, err error) {
	n := notify.Toast(notify.LevelError, "Message not sent", err.Error())
	n.UserID = req.UserID
	n.SessionID = req.SessionID
	n.Data = map[string]string{"message_id": req.MessageID}
	s.notifier.Notify(n)
}

// HandleEnvelope applies an inbound envelope that is not a reply to a
// pending delivery: status envelopes update the tracker, everything else is
// forwarded as a notice to the user owning the session. Envelopes for
// sessions with no known owner are not forwarded.
func (s *Service) HandleEnvelope(env domain.Envelope) {
	var hdr domain.EnvelopeHeader
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &hdr); err != nil {
			s.logger.Debug("ignoring envelope with malformed data", "type", env.Type, "error", err)
			return
		}
	}

	n := notify.Notice{
		SessionID: env.SessionID,
		Level:     notify.LevelInfo,
		Data:      env.Data,
		Time:      time.Now(),
	}

	switch env.Type {
	case domain.EnvelopeStatus:
		id := hdr.MessageID
		if id == "" {
			id = hdr.RequestID
		}
		state := domain.DeliveryState(hdr.Status)
		switch state {
		case domain.StatusSending, domain.StatusSent, domain.StatusFailed:
			if id != "" {
				var err error
				if hdr.Error != "" {
					err = errors.New(hdr.Error)
				}
				s.tracker.Update(id, state, err)
			}
		}
		n.Kind = notify.KindStatus
		n.Title = "Message status"
	case domain.EnvelopeTyping:
		n.Kind = notify.KindTyping
		n.Title = "Assistant is typing"
	case domain.EnvelopeMessage:
		n.Kind = notify.KindMessage
		n.Title = "New message"
	case domain.EnvelopeError:
		n.Kind = notify.KindToast
		n.Level = notify.LevelError
		n.Title = "Chat error"
		n.Message = hdr.Error
	default:
		s.logger.Debug("ignoring unknown envelope type", "type", env.Type)
		return
	}

	owner, ok := s.owner(env.SessionID)
	if !ok {
		s.logger.Debug("dropping envelope for session without owner", "type", env.Type, "session_id", env.SessionID)
		return
	}
	n.UserID = owner
	s.notifier.Notify(n)
}

func (s *Service) bindOwner(sessionID, userID string) {
	if sessionID == "" || userID == "" {
		return
	}
	s.ownersMu.Lock()
	s.owners[sessionID] = userID
	s.ownersMu.Unlock()
}

func (s *Service) owner(sessionID string) (string, bool) {
	if sessionID == "" {
		return "", false
	}
	s.ownersMu.RLock()
	defer s.ownersMu.RUnlock()
	uid, ok := s.owners[sessionID]
	return uid, ok
}

// CreateSession registers a session owned by userID. An empty id gets a
// generated one.
func (s *Service) CreateSession(userID, id, title string, files []domain.FileContext) *domain.ChatSession {
	if id == "" {
		id = uuid.NewString()
	}
	s.bindOwner(id, userID)
	return s.sessions.Create(id, title, files)
}

// Session returns a copy of the session.
func (s *Service) Session(id string) (*domain.ChatSession, bool) {
	return s.sessions.Get(id)
}

// Status returns the delivery status of a message.
func (s *Service) Status(id string) (domain.MessageStatus, bool) {
	return s.tracker.Get(id)
}

// Statuses returns every tracked status.
func (s *Service) Statuses() []domain.MessageStatus {
	return s.tracker.All()
}

// Files returns the file context store attached to outgoing messages.
func (s *Service) Files() *filecontext.Store {
	return s.files
}

// QueueLen reports the queued plus in-flight messages; 0 without a queue.
func (s *Service) QueueLen() int {
	if s.queue == nil {
		return 0
	}
	return s.queue.Len()
}
