package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueClosed is returned when operations are attempted on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrQueueEmpty is returned by TryPop when no message is pending
	ErrQueueEmpty = errors.New("queue is empty")
)

// Mailbox is an unbounded FIFO with a priority lane. Push never blocks, so
// engine callbacks can post into it from any goroutine.
type Mailbox[T any] struct {
	mu       sync.Mutex
	priority []T
	regular  []T

	// notify holds a token whenever messages may be pending.
	notify chan struct{}
	done   chan struct{}
	closed bool

	stats Stats
}

// Stats tracks mailbox throughput.
type Stats struct {
	TotalEnqueued     int64
	TotalDequeued     int64
	HighPriorityCount int64
	CurrentSize       int
	PeakSize          int
	LastEnqueue       time.Time
	LastDequeue       time.Time
}

// NewMailbox creates an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push appends v. High-priority messages are delivered before regular ones
// and keep FIFO order among themselves.
func (q *Mailbox[T]) Push(v T, priority bool) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if priority {
		q.priority = append(q.priority, v)
		q.stats.HighPriorityCount++
	} else {
		q.regular = append(q.regular, v)
	}
	q.stats.TotalEnqueued++
	q.stats.LastEnqueue = time.Now()
	if size := q.size(); size > q.stats.PeakSize {
		q.stats.PeakSize = size
	}
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pop blocks until a message is available, the context is done, or the
// mailbox is closed. Messages pushed before Close are still delivered.
func (q *Mailbox[T]) Pop(ctx context.Context) (T, error) {
	for {
		v, err := q.TryPop()
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrQueueEmpty) {
			return v, err
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-q.notify:
		case <-q.done:
		}
	}
}

// TryPop returns the next message without blocking.
func (q *Mailbox[T]) TryPop() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var v T
	switch {
	case len(q.priority) > 0:
		v = q.priority[0]
		q.priority[0] = *new(T)
		q.priority = q.priority[1:]
	case len(q.regular) > 0:
		v = q.regular[0]
		q.regular[0] = *new(T)
		q.regular = q.regular[1:]
	case q.closed:
		return v, ErrQueueClosed
	default:
		return v, ErrQueueEmpty
	}

	q.stats.TotalDequeued++
	q.stats.LastDequeue = time.Now()
	return v, nil
}

// Size returns the number of pending messages.
func (q *Mailbox[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size()
}

func (q *Mailbox[T]) size() int {
	return len(q.priority) + len(q.regular)
}

// GetStats returns current mailbox statistics.
func (q *Mailbox[T]) GetStats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.CurrentSize = q.size()
	return stats
}

// Close stops accepting messages. Pending messages can still be popped;
// once drained, Pop returns ErrQueueClosed.
func (q *Mailbox[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	return nil
}
