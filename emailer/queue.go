package emailer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/sethvargo/go-retry"
)

var (
	ErrQueueFull   = errors.New("mail queue is full")
	ErrQueueClosed = errors.New("mail queue is closed")
)

// Queue delivers messages in the background, retrying failed sends with exponential backoff
type Queue struct {
	mailer     Emailer
	jobs       chan Message
	maxRetries uint64
	baseDelay  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewQueue starts the delivery worker
func NewQueue(mailer Emailer, size int, maxRetries uint64, baseDelay time.Duration) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		mailer:     mailer,
		jobs:       make(chan Message, size),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue never blocks. A full or closed queue is reported to the caller.
func (q *Queue) Enqueue(msg Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.jobs <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting messages and waits for the queued ones.
// When ctx expires first, pending retries are abandoned.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-q.done
		return ctx.Err()
	}
}

func (q *Queue) run() {
	defer close(q.done)
	for msg := range q.jobs {
		if err := q.deliver(msg); err != nil {
			log.Errorf("Cannot send email %q to %s: %v", msg.Subject, msg.To, err)
		}
	}
}

func (q *Queue) deliver(msg Message) error {
	backoff := retry.WithMaxRetries(q.maxRetries, retry.NewExponential(q.baseDelay))
	attempt := 0
	return retry.Do(q.ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := q.mailer.Send(msg); err != nil {
			log.Warnf("Sending email to %s failed (attempt %d): %v", msg.To, attempt, err)
			return retry.RetryableError(err)
		}
		log.Infof("Sent email %q to %s", msg.Subject, msg.To)
		return nil
	})
}
