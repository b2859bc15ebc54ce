package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-fps-payments/app/entity"
)

const subscriptionColumns = `
	id, customer_id, subscription_id, price_id,
	current_period_start, current_period_end, cancel_at_period_end,
	payment_method_brand, payment_method_last4, status,
	created_at, updated_at
`

type SubscriptionRepository struct {
	db DBTX
}

func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Upsert writes every column keyed by customer_id. Columns absent from sub
// are written as NULL so a previous subscription never leaks into the row.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub *entity.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			customer_id, subscription_id, price_id,
			current_period_start, current_period_end, cancel_at_period_end,
			payment_method_brand, payment_method_last4, status,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			subscription_id = VALUES(subscription_id),
			price_id = VALUES(price_id),
			current_period_start = VALUES(current_period_start),
			current_period_end = VALUES(current_period_end),
			cancel_at_period_end = VALUES(cancel_at_period_end),
			payment_method_brand = VALUES(payment_method_brand),
			payment_method_last4 = VALUES(payment_method_last4),
			status = VALUES(status),
			updated_at = VALUES(updated_at)
	`

	_, err := r.db.ExecContext(ctx, query,
		sub.CustomerID,
		nullableValue(sub.SubscriptionID),
		nullableValue(sub.PriceID),
		nullableValue(sub.CurrentPeriodStart),
		nullableValue(sub.CurrentPeriodEnd),
		sub.CancelAtPeriodEnd,
		nullableValue(sub.PaymentMethodBrand),
		nullableValue(sub.PaymentMethodLast4),
		sub.Status,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	return err
}

func (r *SubscriptionRepository) ListStale(ctx context.Context, before time.Time, limit int32) ([]*entity.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE updated_at <= ? ORDER BY updated_at ASC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.Subscription, 0)
	for rows.Next() {
		sub := &entity.Subscription{}
		if err := scanSubscription(rows, sub); err != nil {
			return nil, err
		}
		items = append(items, sub)
	}

	return items, rows.Err()
}

func (r *SubscriptionRepository) DeleteByCustomerID(ctx context.Context, customerID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE customer_id = ?`, customerID)
	return err
}

func scanSubscription(row rowScanner, sub *entity.Subscription) error {
	var (
		subscriptionID sql.Null[string]
		priceID        sql.Null[string]
		periodStart    sql.Null[int64]
		periodEnd      sql.Null[int64]
		brand          sql.Null[string]
		last4          sql.Null[string]
	)

	err := row.Scan(
		&sub.ID,
		&sub.CustomerID,
		&subscriptionID,
		&priceID,
		&periodStart,
		&periodEnd,
		&sub.CancelAtPeriodEnd,
		&brand,
		&last4,
		&sub.Status,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return err
	}

	sub.SubscriptionID = ptrFromNull(subscriptionID)
	sub.PriceID = ptrFromNull(priceID)
	sub.CurrentPeriodStart = ptrFromNull(periodStart)
	sub.CurrentPeriodEnd = ptrFromNull(periodEnd)
	sub.PaymentMethodBrand = ptrFromNull(brand)
	sub.PaymentMethodLast4 = ptrFromNull(last4)
	return nil
}
