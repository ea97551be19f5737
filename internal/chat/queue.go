package chat

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/devchat/internal/domain"
	"golang.org/x/time/rate"
)

// DeliverFunc makes a single delivery attempt.
type DeliverFunc func(ctx context.Context, req domain.SendMessageRequest) (*domain.SendMessageResponse, error)

// QueueConfig configures a Queue.
type QueueConfig struct {
	MaxSize int           // waiting plus in-flight items; default 50
	Policy  RetryPolicy   // applied to every item
	Pause   time.Duration // minimum spacing between deliveries; default 100ms
	// OnRetry runs before each backoff wait of an item.
	OnRetry func(req domain.SendMessageRequest, retry int, delay time.Duration, err error)
}

// Ticket is the caller's handle on a queued message.
type Ticket struct {
	id   string
	done chan struct{}
	resp *domain.SendMessageResponse
	err  error
}

func newTicket(id string) *Ticket {
	return &Ticket{id: id, done: make(chan struct{})}
}

// ID returns the message ID the ticket was issued for.
func (t *Ticket) ID() string { return t.id }

// Done is closed once the message is delivered or has terminally failed.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Result returns the outcome. It is only meaningful after Done is closed.
func (t *Ticket) Result() (*domain.SendMessageResponse, error) {
	return t.resp, t.err
}

// Wait blocks until the ticket resolves or ctx is done. Cancelling ctx does
// not remove the message from the queue.
func (t *Ticket) Wait(ctx context.Context) (*domain.SendMessageResponse, error) {
	select {
	case <-t.done:
		return t.resp, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *Ticket) resolve(resp *domain.SendMessageResponse, err error) {
	t.resp, t.err = resp, err
	close(t.done)
}

type queuedRequest struct {
	req        domain.SendMessageRequest
	ticket     *Ticket
	retryCount int
}

// Queue is a bounded FIFO of outgoing messages drained by one goroutine.
type Queue struct {
	cfg     QueueConfig
	deliver DeliverFunc
	limiter *rate.Limiter
	logger  *slog.Logger

	mu       sync.Mutex
	items    []*queuedRequest
	inFlight bool
	draining bool
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewQueue creates a queue that delivers through deliver.
func NewQueue(deliver DeliverFunc, cfg QueueConfig, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 50
	}
	if cfg.Pause < 0 {
		cfg.Pause = 0
	}

	limit := rate.Inf
	if cfg.Pause > 0 {
		limit = rate.Every(cfg.Pause)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		cfg:     cfg,
		deliver: deliver,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Enqueue appends req and starts the drain loop if it is idle. It fails
// immediately with ErrQueueFull, leaving the queue untouched, when the
// waiting and in-flight items already reach MaxSize.
func (q *Queue) Enqueue(req domain.SendMessageRequest) (*Ticket, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrQueueClosed
	}
	if q.lenLocked() >= q.cfg.MaxSize {
		return nil, ErrQueueFull
	}

	item := &queuedRequest{req: req, ticket: newTicket(req.MessageID)}
	q.items = append(q.items, item)

	if !q.draining {
		q.draining = true
		q.wg.Add(1)
		go q.drain()
	}
	return item.ticket, nil
}

// Len returns the number of waiting items plus the in-flight one.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

func (q *Queue) lenLocked() int {
	n := len(q.items)
	if q.inFlight {
		n++
	}
	return n
}

// Close stops the drain loop and fails every waiting ticket with
// ErrQueueClosed. The in-flight delivery is cancelled.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	pending := q.items
	q.items = nil
	q.mu.Unlock()

	q.cancel()
	for _, item := range pending {
		item.ticket.resolve(nil, ErrQueueClosed)
	}
	q.wg.Wait()
}

func (q *Queue) drain() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		if len(q.items) == 0 || q.closed {
			q.draining = false
			q.inFlight = false
			q.mu.Unlock()
			return
		}
		item := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		q.inFlight = true
		q.mu.Unlock()

		resp, err := q.process(item)
		item.ticket.resolve(resp, err)

		q.mu.Lock()
		q.inFlight = false
		q.mu.Unlock()
	}
}

func (q *Queue) process(item *queuedRequest) (*domain.SendMessageResponse, error) {
	if err := q.limiter.Wait(q.ctx); err != nil {
		return nil, ErrQueueClosed
	}

	resp, err := Retry(q.ctx, q.cfg.Policy,
		func(ctx context.Context) (*domain.SendMessageResponse, error) {
			return q.deliver(ctx, item.req)
		},
		IsRetryable,
		func(retry int, delay time.Duration, err error) {
			item.retryCount = retry
			q.logger.Warn("message delivery failed, retrying",
				"message_id", item.req.MessageID,
				"session_id", item.req.SessionID,
				"retry", retry,
				"delay", delay,
				"error", err,
			)
			if q.cfg.OnRetry != nil {
				q.cfg.OnRetry(item.req, retry, delay, err)
			}
		},
	)
	if err != nil && q.ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueueClosed, err)
	}
	return resp, err
}
