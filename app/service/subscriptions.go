package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-fps-payments/app/entity"
	"github.com/vibast-solutions/ms-go-fps-payments/app/events"
	"github.com/vibast-solutions/ms-go-fps-payments/app/factory"
	"github.com/vibast-solutions/ms-go-fps-payments/app/metrics"
	"github.com/vibast-solutions/ms-go-fps-payments/app/provider"
)

type subscriptionProvider interface {
	LatestSubscription(ctx context.Context, customerID string) (*provider.SubscriptionSnapshot, error)
}

// SubscriptionSynchronizer mirrors the provider's latest subscription for a
// customer. Each sync overwrites the whole row from a fresh read, so event
// order and duplicates do not matter.
type SubscriptionSynchronizer struct {
	subscriptions subscriptionRepository
	provider      subscriptionProvider
	publisher     events.Publisher
	staleAfter    time.Duration
	batch         int32
	logger        logrus.FieldLogger
	now           func() time.Time
}

func NewSubscriptionSynchronizer(
	subscriptions subscriptionRepository,
	p subscriptionProvider,
	publisher events.Publisher,
	staleAfter time.Duration,
	batchSize int32,
) *SubscriptionSynchronizer {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &SubscriptionSynchronizer{
		subscriptions: subscriptions,
		provider:      p,
		publisher:     publisher,
		staleAfter:    staleAfter,
		batch:         batchSize,
		logger:        factory.NewModuleLogger("subscription-sync"),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *SubscriptionSynchronizer) Sync(ctx context.Context, customerID string) (*entity.Subscription, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, ErrInvalidRequest
	}

	snapshot, err := s.provider.LatestSubscription(ctx, customerID)
	if err != nil {
		metrics.SubscriptionsSyncFailed.Inc()
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	now := s.now()
	sub := subscriptionFromSnapshot(customerID, snapshot)
	sub.CreatedAt = now
	sub.UpdatedAt = now

	if err := s.subscriptions.Upsert(ctx, sub); err != nil {
		metrics.SubscriptionsSyncFailed.Inc()
		return nil, fmt.Errorf("upsert subscription: %w", err)
	}
	metrics.SubscriptionsSynced.Inc()

	s.logger.WithFields(logrus.Fields{
		"customer_id": customerID,
		"status":      sub.Status,
	}).Info("Subscription synced")

	event := events.BillingEvent{
		Type:       events.TypeSubscriptionSynced,
		CustomerID: customerID,
		Status:     sub.Status,
	}
	if sub.SubscriptionID != nil {
		event.Attributes = map[string]string{"subscription_id": *sub.SubscriptionID}
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithField("customer_id", customerID).Warn("Publish subscription_synced failed")
	}

	return sub, nil
}

// RunSubscriptionResyncBatch re-reads subscriptions that have not been synced
// within the stale window.
func (s *SubscriptionSynchronizer) RunSubscriptionResyncBatch(ctx context.Context) error {
	before := s.now().Add(-s.staleAfter)
	items, err := s.subscriptions.ListStale(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, item := range items {
		if item == nil || item.CustomerID == "" {
			continue
		}
		if _, err := s.Sync(ctx, item.CustomerID); err != nil {
			firstErr = keepFirstErr(firstErr, fmt.Errorf("resync %s: %w", item.CustomerID, err))
		}
	}
	return firstErr
}

func (s *SubscriptionSynchronizer) batchSize() int32 {
	if s.batch > 0 {
		return s.batch
	}
	return defaultBatchSize
}

// subscriptionFromSnapshot builds the full row. A nil snapshot means the
// customer never subscribed and every optional column is cleared.
func subscriptionFromSnapshot(customerID string, snapshot *provider.SubscriptionSnapshot) *entity.Subscription {
	if snapshot == nil {
		return &entity.Subscription{
			CustomerID: customerID,
			Status:     entity.SubscriptionStatusNotStarted,
		}
	}

	sub := &entity.Subscription{
		CustomerID:         customerID,
		SubscriptionID:     stringPtr(snapshot.ID),
		PriceID:            stringPtr(snapshot.PriceID),
		CancelAtPeriodEnd:  snapshot.CancelAtPeriodEnd,
		PaymentMethodBrand: stringPtr(snapshot.CardBrand),
		PaymentMethodLast4: stringPtr(snapshot.CardLast4),
		Status:             snapshot.Status,
	}
	if snapshot.CurrentPeriodStart > 0 {
		start := snapshot.CurrentPeriodStart
		sub.CurrentPeriodStart = &start
	}
	if snapshot.CurrentPeriodEnd > 0 {
		end := snapshot.CurrentPeriodEnd
		sub.CurrentPeriodEnd = &end
	}
	return sub
}
