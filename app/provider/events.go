package provider

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v80"
)

type EventKind string

const (
	KindOneTimePaymentCompleted EventKind = "one_time_payment_completed"
	KindSubscriptionChanged     EventKind = "subscription_changed"
	KindUnhandled               EventKind = "unhandled"
)

const eventCheckoutSessionCompleted = "checkout.session.completed"

// EventData is the closed set of webhook payloads this service acts on.
// Only the types in this file implement it.
type EventData interface {
	Kind() EventKind
	isEventData()
}

// CompletedSession carries what the order finalizer needs from a paid session.
type CompletedSession struct {
	ID              string
	CustomerID      string
	PaymentIntentID string
	AmountSubtotal  int64
	AmountTotal     int64
	Currency        string
	PaymentStatus   string
	Metadata        map[string]string
}

type OneTimePaymentCompleted struct {
	Session CompletedSession
}

type SubscriptionChanged struct {
	CustomerID string
}

type Unhandled struct {
	Reason string
}

func (OneTimePaymentCompleted) Kind() EventKind { return KindOneTimePaymentCompleted }
func (SubscriptionChanged) Kind() EventKind     { return KindSubscriptionChanged }
func (Unhandled) Kind() EventKind               { return KindUnhandled }

func (OneTimePaymentCompleted) isEventData() {}
func (SubscriptionChanged) isEventData()     {}
func (Unhandled) isEventData()               {}

type WebhookEvent struct {
	ID      string
	Type    string
	Created int64
	Data    EventData
	Payload []byte
}

func (e *WebhookEvent) CustomerID() string {
	switch d := e.Data.(type) {
	case OneTimePaymentCompleted:
		return d.Session.CustomerID
	case SubscriptionChanged:
		return d.CustomerID
	default:
		return ""
	}
}

func (e *WebhookEvent) CheckoutSessionID() string {
	if d, ok := e.Data.(OneTimePaymentCompleted); ok {
		return d.Session.ID
	}
	return ""
}

// ParseEvent decodes a payload that was verified earlier. Workers use it to
// rebuild the event from the stored copy.
func ParseEvent(payload []byte) (*WebhookEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, errors.Wrap(err, "decode webhook payload")
	}
	return classify(event, payload)
}

func classify(event stripe.Event, payload []byte) (*WebhookEvent, error) {
	if strings.TrimSpace(event.ID) == "" {
		return nil, errors.New("webhook event has no id")
	}

	out := &WebhookEvent{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: event.Created,
		Payload: payload,
	}

	if event.Data == nil {
		out.Data = Unhandled{Reason: "event has no data object"}
		return out, nil
	}

	if out.Type == eventCheckoutSessionCompleted {
		data, err := classifyCompletedSession(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		out.Data = data
		return out, nil
	}

	customerID, _ := event.Data.Object["customer"].(string)
	if strings.TrimSpace(customerID) == "" {
		out.Data = Unhandled{Reason: "event has no customer reference"}
		return out, nil
	}

	out.Data = SubscriptionChanged{CustomerID: customerID}
	return out, nil
}

func classifyCompletedSession(raw json.RawMessage) (EventData, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, errors.Wrap(err, "decode checkout session")
	}

	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	if customerID == "" {
		return Unhandled{Reason: "checkout session has no customer"}, nil
	}

	switch {
	case session.Mode == stripe.CheckoutSessionModeSubscription:
		return SubscriptionChanged{CustomerID: customerID}, nil
	case session.Mode == stripe.CheckoutSessionModePayment && session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		paymentIntentID := ""
		if session.PaymentIntent != nil {
			paymentIntentID = session.PaymentIntent.ID
		}
		return OneTimePaymentCompleted{Session: CompletedSession{
			ID:              session.ID,
			CustomerID:      customerID,
			PaymentIntentID: paymentIntentID,
			AmountSubtotal:  session.AmountSubtotal,
			AmountTotal:     session.AmountTotal,
			Currency:        string(session.Currency),
			PaymentStatus:   string(session.PaymentStatus),
			Metadata:        session.Metadata,
		}}, nil
	default:
		return Unhandled{Reason: "checkout session is not a paid one-time payment"}, nil
	}
}
