// Package queue carries verified webhook event ids from the HTTP handler to
// the background workers. The payload itself stays in the database.
package queue

import (
	"context"
	"errors"
)

var (
	ErrClosed = errors.New("queue closed")
	ErrFull   = errors.New("queue full")
)

type Queue interface {
	Enqueue(ctx context.Context, eventID string) error
	// Dequeue blocks until an id is available or ctx is done.
	Dequeue(ctx context.Context) (string, error)
	// Len reports how many ids are waiting.
	Len(ctx context.Context) (int64, error)
	Close() error
}
