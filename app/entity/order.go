package entity

import "time"

const OrderStatusCompleted = "completed"

type Order struct {
	ID uint64

	CheckoutSessionID string
	PaymentIntentID   *string
	CustomerID        string

	AmountSubtotal int64
	AmountTotal    int64
	Currency       string
	PaymentStatus  string
	Status         string

	InvoiceID     *string
	InvoiceURL    *string
	InvoiceSentAt *time.Time

	Metadata map[string]string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o *Order) HasInvoice() bool {
	return o.InvoiceID != nil && *o.InvoiceID != ""
}
