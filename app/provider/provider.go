package provider

import (
	"context"
	"errors"
)

var (
	// ErrResourceMissing is returned when the provider has no object with the requested id.
	ErrResourceMissing  = errors.New("provider resource missing")
	ErrNotConfigured    = errors.New("provider is not configured")
	ErrSignatureInvalid = errors.New("webhook signature verification failed")
)

type LineItem struct {
	Name            string
	Description     string
	UnitAmountCents int64
	Currency        string
	Quantity        int64
	ProductMetadata map[string]string
}

type CheckoutSessionInput struct {
	LineItem           LineItem
	PaymentMethodTypes []string
	Metadata           map[string]string
	SuccessURL         string
	CancelURL          string
	CustomerID         string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type SetupSessionInput struct {
	CustomerID string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

type SetupSession struct {
	ID            string
	URL           string
	SetupIntentID string
}

// SessionDetails is the provider's view of a checkout session.
type SessionDetails struct {
	ID              string
	Mode            string
	PaymentStatus   string
	CustomerID      string
	PaymentIntentID string
	AmountSubtotal  int64
	AmountTotal     int64
	Currency        string
	Metadata        map[string]string
	CustomerEmail   string
	CustomerName    string
}

type InvoiceCustomField struct {
	Name  string
	Value string
}

type InvoiceLine struct {
	AmountCents int64
	Currency    string
	Description string
	TaxRateIDs  []string
	Metadata    map[string]string
}

type InvoiceInput struct {
	CustomerID string
	// SessionID tags the invoice so a later attempt can find and resume it.
	SessionID      string
	Description    string
	Footer         string
	Metadata       map[string]string
	CustomFields   []InvoiceCustomField
	Lines          []InvoiceLine
	IdempotencyKey string
	// PaidOutOfBand marks the finalized invoice as settled outside the invoice flow.
	PaidOutOfBand bool
}

type Invoice struct {
	ID        string
	HostedURL string
}

// SubscriptionSnapshot is the subset of a provider subscription mirrored locally.
type SubscriptionSnapshot struct {
	ID                 string
	PriceID            string
	Status             string
	CurrentPeriodStart int64
	CurrentPeriodEnd   int64
	CancelAtPeriodEnd  bool
	CardBrand          string
	CardLast4          string
}

type CustomerInput struct {
	Email    string
	Name     string
	Metadata map[string]string
}

type Customer struct {
	ID                     string
	Email                  string
	Name                   string
	Deleted                bool
	DefaultPaymentMethodID string
}

type Card struct {
	Brand    string
	Last4    string
	ExpMonth int64
	ExpYear  int64
}

type PaymentMethod struct {
	ID         string
	Type       string
	CustomerID string
	Card       *Card
	LinkEmail  string
	Created    int64
}

// PaymentProvider is the full set of provider capabilities the service relies on.
type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, input *CheckoutSessionInput) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*SessionDetails, error)
	CreateSetupSession(ctx context.Context, input *SetupSessionInput) (*SetupSession, error)

	IssueInvoice(ctx context.Context, input *InvoiceInput) (*Invoice, error)

	LatestSubscription(ctx context.Context, customerID string) (*SubscriptionSnapshot, error)
	ListActiveSubscriptionIDs(ctx context.Context, customerID string) ([]string, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error

	CreateCustomer(ctx context.Context, input *CustomerInput) (*Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)
	DeleteCustomer(ctx context.Context, customerID string) error
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error

	ListPaymentMethods(ctx context.Context, customerID string, methodType string) ([]*PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, paymentMethodID string) (*PaymentMethod, error)
	DetachPaymentMethod(ctx context.Context, paymentMethodID string) error

	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}
