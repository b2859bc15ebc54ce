package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Handler func(ctx context.Context, eventID string) error

// Pool runs a fixed number of workers against a queue.
type Pool struct {
	queue   Queue
	handler Handler
	workers int
	logger  logrus.FieldLogger
	backoff time.Duration
	wg      sync.WaitGroup
}

func NewPool(q Queue, handler Handler, workers int, logger logrus.FieldLogger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		queue:   q,
		handler: handler,
		workers: workers,
		logger:  logger,
		backoff: time.Second,
	}
}

// Start launches the workers. They stop when ctx is cancelled or the queue closes.
func (p *Pool) Start(ctx context.Context) {
	p.logger.WithField("workers", p.workers).Info("Starting webhook workers")
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, worker int) {
	defer p.wg.Done()
	l := p.logger.WithField("worker", worker)

	for {
		eventID, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrClosed) {
				l.Debug("Worker stopped")
				return
			}
			l.WithError(err).Warn("Dequeue failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.backoff):
			}
			continue
		}

		p.handle(ctx, l, eventID)
	}
}

func (p *Pool) handle(ctx context.Context, l logrus.FieldLogger, eventID string) {
	defer func() {
		if r := recover(); r != nil {
			l.WithField("event_id", eventID).WithField("panic", r).Error("webhook_job_panic")
		}
	}()

	start := time.Now()
	if err := p.handler(ctx, eventID); err != nil {
		l.WithError(err).WithField("event_id", eventID).WithField("latency", time.Since(start).String()).Error("webhook_job_failed")
		return
	}
	l.WithField("event_id", eventID).WithField("latency", time.Since(start).String()).Info("webhook_job_completed")
}
