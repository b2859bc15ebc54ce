package entity

import "time"

const SubscriptionStatusNotStarted = "not_started"

// Subscription mirrors the provider's most recent subscription for a customer.
// Every sync overwrites the whole row.
type Subscription struct {
	ID uint64

	CustomerID     string
	SubscriptionID *string
	PriceID        *string

	CurrentPeriodStart *int64
	CurrentPeriodEnd   *int64
	CancelAtPeriodEnd  bool

	PaymentMethodBrand *string
	PaymentMethodLast4 *string

	Status string

	CreatedAt time.Time
	UpdatedAt time.Time
}
