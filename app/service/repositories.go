package service

import (
	"context"
	"time"

	"github.com/vibast-solutions/ms-go-fps-payments/app/entity"
)

const defaultBatchSize = int32(100)

type orderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	FindByCheckoutSessionID(ctx context.Context, checkoutSessionID string) (*entity.Order, error)
	AttachInvoice(ctx context.Context, checkoutSessionID, invoiceID, invoiceURL string, sentAt time.Time) error
}

type subscriptionRepository interface {
	Upsert(ctx context.Context, sub *entity.Subscription) error
	ListStale(ctx context.Context, before time.Time, limit int32) ([]*entity.Subscription, error)
}

type customerRepository interface {
	Create(ctx context.Context, customer *entity.Customer) error
	FindByUserID(ctx context.Context, userID string) (*entity.Customer, error)
	DeleteByUserID(ctx context.Context, userID string) error
}

type customerLookup interface {
	FindByUserID(ctx context.Context, userID string) (*entity.Customer, error)
}

type orderDeleter interface {
	DeleteByCustomerID(ctx context.Context, customerID string) (int64, error)
}

type subscriptionDeleter interface {
	DeleteByCustomerID(ctx context.Context, customerID string) error
}

type webhookEventRepository interface {
	Create(ctx context.Context, event *entity.WebhookEvent) error
	FindByEventID(ctx context.Context, eventID string) (*entity.WebhookEvent, error)
	Claim(ctx context.Context, eventID string, now, staleBefore time.Time) (bool, error)
	MarkProcessed(ctx context.Context, eventID string, now time.Time) error
	MarkFailed(ctx context.Context, eventID, lastErr string, nextAttemptAt *time.Time, now time.Time) error
	ResetForReplay(ctx context.Context, eventID string, now time.Time) error
	ListDue(ctx context.Context, now, staleBefore time.Time, limit int32) ([]*entity.WebhookEvent, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time, limit int32) (int64, error)
}

type enqueuer interface {
	Enqueue(ctx context.Context, eventID string) error
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}

func stringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
