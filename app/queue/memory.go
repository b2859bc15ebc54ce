package queue

import (
	"context"
	"sync"
)

type MemoryQueue struct {
	items  chan string
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewMemoryQueue(buffer int) *MemoryQueue {
	if buffer <= 0 {
		buffer = 256
	}
	return &MemoryQueue{
		items: make(chan string, buffer),
		done:  make(chan struct{}),
	}
}

// Enqueue never blocks. A full buffer returns ErrFull and the event is left
// for the retry job.
func (q *MemoryQueue) Enqueue(_ context.Context, eventID string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	select {
	case q.items <- eventID:
		return nil
	default:
		return ErrFull
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-q.done:
		return "", ErrClosed
	case id := <-q.items:
		return id, nil
	}
}

func (q *MemoryQueue) Len(_ context.Context) (int64, error) {
	return int64(len(q.items)), nil
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.done)
	}
	return nil
}
