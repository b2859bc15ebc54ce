package entity

import "time"

const (
	WebhookEventPending    = "pending"
	WebhookEventProcessing = "processing"
	WebhookEventProcessed  = "processed"
	WebhookEventFailed     = "failed"
	WebhookEventSkipped    = "skipped"
)

type WebhookEvent struct {
	ID uint64

	EventID   string
	EventType string
	Kind      string

	CustomerID        *string
	CheckoutSessionID *string

	Payload string

	Status        string
	Attempts      int32
	NextAttemptAt *time.Time
	LastError     *string

	ReceivedAt  time.Time
	ProcessedAt *time.Time
	UpdatedAt   time.Time
}

func (e *WebhookEvent) Terminal() bool {
	return e.Status == WebhookEventProcessed || e.Status == WebhookEventSkipped
}
