package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-fps-payments/app/entity"
	"github.com/vibast-solutions/ms-go-fps-payments/app/factory"
	"github.com/vibast-solutions/ms-go-fps-payments/app/metrics"
	"github.com/vibast-solutions/ms-go-fps-payments/app/provider"
	"github.com/vibast-solutions/ms-go-fps-payments/app/repository"
	"github.com/vibast-solutions/ms-go-fps-payments/config"
)

const maxLastErrorLength = 1000

type webhookVerifier interface {
	VerifyWebhook(payload []byte, signature string) (*provider.WebhookEvent, error)
}

type orderFinalizer interface {
	Finalize(ctx context.Context, session provider.CompletedSession) (*entity.Order, error)
}

type subscriptionSyncer interface {
	Sync(ctx context.Context, customerID string) (*entity.Subscription, error)
}

type ReceiveResult struct {
	EventID   string
	Duplicate bool
	Skipped   bool
}

// WebhookService records verified provider events and runs them through the
// finalizer or the synchronizer. The HTTP path only records and enqueues.
type WebhookService struct {
	events       webhookEventRepository
	verifier     webhookVerifier
	queue        enqueuer
	finalizer    orderFinalizer
	synchronizer subscriptionSyncer
	cfg          config.WebhooksConfig
	logger       logrus.FieldLogger
	now          func() time.Time
}

func NewWebhookService(
	events webhookEventRepository,
	verifier webhookVerifier,
	queue enqueuer,
	finalizer orderFinalizer,
	synchronizer subscriptionSyncer,
	cfg config.WebhooksConfig,
) *WebhookService {
	return &WebhookService{
		events:       events,
		verifier:     verifier,
		queue:        queue,
		finalizer:    finalizer,
		synchronizer: synchronizer,
		cfg:          cfg,
		logger:       factory.NewModuleLogger("webhook-service"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Receive verifies the delivery, stores it once and hands it to the queue.
// Nothing is written when verification fails.
func (s *WebhookService) Receive(ctx context.Context, payload []byte, signature string) (*ReceiveResult, error) {
	if strings.TrimSpace(signature) == "" {
		metrics.WebhooksRejected.Inc()
		return nil, ErrSignatureInvalid
	}

	event, err := s.verifier.VerifyWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, provider.ErrSignatureInvalid) {
			metrics.WebhooksRejected.Inc()
			return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	metrics.WebhooksReceived.Inc()

	now := s.now()
	record := &entity.WebhookEvent{
		EventID:           event.ID,
		EventType:         event.Type,
		Kind:              string(event.Data.Kind()),
		CustomerID:        stringPtr(event.CustomerID()),
		CheckoutSessionID: stringPtr(event.CheckoutSessionID()),
		Payload:           string(event.Payload),
		Status:            entity.WebhookEventPending,
		ReceivedAt:        now,
		UpdatedAt:         now,
	}

	result := &ReceiveResult{EventID: event.ID}
	l := s.logger.WithFields(logrus.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"kind":       record.Kind,
	})

	if unhandled, ok := event.Data.(provider.Unhandled); ok {
		record.Status = entity.WebhookEventSkipped
		record.ProcessedAt = &now
		record.LastError = stringPtr(unhandled.Reason)
		result.Skipped = true
	}

	if err := s.events.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrWebhookEventAlreadyExists) {
			metrics.WebhooksDuplicate.Inc()
			l.Info("Duplicate webhook delivery")
			result.Duplicate = true
			return result, nil
		}
		return nil, fmt.Errorf("record webhook event: %w", err)
	}

	if result.Skipped {
		metrics.WebhooksSkipped.Inc()
		l.Debug("Webhook event skipped")
		return result, nil
	}

	if err := s.queue.Enqueue(ctx, event.ID); err != nil {
		// The row stays pending and the retry job picks it up.
		l.WithError(err).Warn("Enqueue webhook event failed")
	}

	return result, nil
}

// Process is the worker entry point. It claims the stored event, dispatches
// it and records the outcome.
func (s *WebhookService) Process(ctx context.Context, eventID string) error {
	now := s.now()
	claimed, err := s.events.Claim(ctx, eventID, now, now.Add(-s.cfg.StaleProcessing))
	if err != nil {
		return fmt.Errorf("claim webhook event: %w", err)
	}
	if !claimed {
		s.logger.WithField("event_id", eventID).Debug("Webhook event not claimable")
		return nil
	}

	record, err := s.events.FindByEventID(ctx, eventID)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrEventNotFound
	}

	start := time.Now()
	event, err := provider.ParseEvent([]byte(record.Payload))
	if err != nil {
		return s.fail(ctx, record, err, false)
	}

	if err := s.dispatch(ctx, event); err != nil {
		return s.fail(ctx, record, err, true)
	}

	if err := s.events.MarkProcessed(ctx, eventID, s.now()); err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	metrics.WebhookJobsProcessed.Inc()
	metrics.WebhookJobDuration.Update(float64(time.Since(start).Milliseconds()))
	return nil
}

// Replay resets a recorded event and queues it again.
func (s *WebhookService) Replay(ctx context.Context, eventID string) error {
	record, err := s.events.FindByEventID(ctx, eventID)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrEventNotFound
	}

	if err := s.events.ResetForReplay(ctx, eventID, s.now()); err != nil {
		return fmt.Errorf("reset webhook event: %w", err)
	}
	if err := s.queue.Enqueue(ctx, eventID); err != nil {
		return fmt.Errorf("enqueue webhook event: %w", err)
	}

	s.logger.WithField("event_id", eventID).Info("Webhook event replayed")
	return nil
}

func (s *WebhookService) dispatch(ctx context.Context, event *provider.WebhookEvent) error {
	switch data := event.Data.(type) {
	case provider.OneTimePaymentCompleted:
		_, err := s.finalizer.Finalize(ctx, data.Session)
		return err
	case provider.SubscriptionChanged:
		_, err := s.synchronizer.Sync(ctx, data.CustomerID)
		return err
	case provider.Unhandled:
		return nil
	default:
		return fmt.Errorf("unsupported event data %T", event.Data)
	}
}

func (s *WebhookService) fail(ctx context.Context, record *entity.WebhookEvent, cause error, retryable bool) error {
	now := s.now()
	var next *time.Time
	if retryable && record.Attempts < s.maxAttempts() {
		at := now.Add(s.retryInterval())
		next = &at
	}

	if next == nil {
		metrics.WebhookJobsExhausted.Inc()
	}
	metrics.WebhookJobsFailed.Inc()

	msg := truncateUTF8(cause.Error(), maxLastErrorLength)
	if err := s.events.MarkFailed(ctx, record.EventID, msg, next, now); err != nil {
		s.logger.WithError(err).WithField("event_id", record.EventID).Error("Mark webhook event failed")
	}
	return cause
}

func (s *WebhookService) maxAttempts() int32 {
	if s.cfg.MaxAttempts > 0 {
		return s.cfg.MaxAttempts
	}
	return 8
}

func (s *WebhookService) retryInterval() time.Duration {
	if s.cfg.RetryInterval > 0 {
		return s.cfg.RetryInterval
	}
	return 5 * time.Minute
}

func (s *WebhookService) batchSize() int32 {
	if s.cfg.JobBatchSize > 0 {
		return s.cfg.JobBatchSize
	}
	return defaultBatchSize
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
