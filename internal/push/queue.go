package push

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler processes one notification event.
type Handler interface {
	SendMessageNotification(ctx context.Context, n MessageNotification)
}

// Queue runs notifications on a fixed pool of workers so message sends never
// wait on push providers.
type Queue struct {
	handler Handler
	jobs    chan MessageNotification
	timeout time.Duration
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(handler Handler, workers, size int, timeout time.Duration, logger *zap.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if size <= 0 {
		size = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	q := &Queue{
		handler: handler,
		jobs:    make(chan MessageNotification, size),
		timeout: timeout,
		logger:  logger.Named("push.queue"),
	}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.worker()
	}
	return q
}

// Enqueue schedules n without blocking. It returns false when the queue is
// full or closed; the event is dropped in that case.
func (q *Queue) Enqueue(n MessageNotification) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}

	select {
	case q.jobs <- n:
		return true
	default:
		q.logger.Warn("push queue full, dropping notification",
			zap.Uint("recipient_id", n.RecipientID),
			zap.Uint("conversation_id", n.ConversationID))
		return false
	}
}

// Close stops accepting events and waits for queued ones to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for n := range q.jobs {
		q.run(n)
	}
}

func (q *Queue) run(n MessageNotification) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("push worker recovered from panic", zap.Any("panic", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	q.handler.SendMessageNotification(ctx, n)
}
