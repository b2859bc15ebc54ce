package types

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
)

type CreateCustomerRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
	Name  string `json:"name" validate:"omitempty,max=255"`
}

func NewCreateCustomerRequestFromContext(ctx echo.Context) (*CreateCustomerRequest, error) {
	var body CreateCustomerRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Email = strings.TrimSpace(body.Email)
	body.Name = strings.TrimSpace(body.Name)
	return &body, nil
}

func (r *CreateCustomerRequest) Validate() error {
	return validateStruct(r)
}

type CustomerResponse struct {
	CustomerID string `json:"customer_id"`
	Message    string `json:"message"`
}

type SetDefaultPaymentMethodRequest struct {
	PaymentMethodID string `json:"payment_method_id" validate:"required,startswith=pm_"`
}

func NewSetDefaultPaymentMethodRequestFromContext(ctx echo.Context) (*SetDefaultPaymentMethodRequest, error) {
	var body SetDefaultPaymentMethodRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.PaymentMethodID = strings.TrimSpace(body.PaymentMethodID)
	return &body, nil
}

func (r *SetDefaultPaymentMethodRequest) Validate() error {
	return validateStruct(r)
}

type DetachPaymentMethodRequest struct {
	PaymentMethodID string
}

func NewDetachPaymentMethodRequestFromContext(ctx echo.Context) (*DetachPaymentMethodRequest, error) {
	return &DetachPaymentMethodRequest{PaymentMethodID: strings.TrimSpace(ctx.Param("id"))}, nil
}

func (r *DetachPaymentMethodRequest) Validate() error {
	if r.PaymentMethodID == "" {
		return errors.New("payment method id is required")
	}
	return nil
}

type Card struct {
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int64  `json:"exp_month"`
	ExpYear  int64  `json:"exp_year"`
}

type Link struct {
	Email string `json:"email"`
}

type PaymentMethod struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Card *Card  `json:"card,omitempty"`
	Link *Link  `json:"link,omitempty"`
}

type CustomerSummary struct {
	CustomerID           string  `json:"customer_id"`
	DefaultPaymentMethod *string `json:"default_payment_method"`
}

type PaymentMethodsResponse struct {
	PaymentMethods []*PaymentMethod `json:"payment_methods"`
	Customer       *CustomerSummary `json:"customer"`
	Message        string           `json:"message,omitempty"`
}

type SetupSessionResponse struct {
	URL           string `json:"url"`
	SetupIntentID string `json:"setup_intent_id"`
}

type DeleteBillingResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type SyncSubscriptionRequest struct {
	CustomerID string
}

func NewSyncSubscriptionRequestFromContext(ctx echo.Context) (*SyncSubscriptionRequest, error) {
	return &SyncSubscriptionRequest{CustomerID: strings.TrimSpace(ctx.Param("customer_id"))}, nil
}

func (r *SyncSubscriptionRequest) Validate() error {
	if !strings.HasPrefix(r.CustomerID, "cus_") {
		return errors.New("invalid customer id")
	}
	return nil
}

type ReplayWebhookRequest struct {
	EventID string
}

func NewReplayWebhookRequestFromContext(ctx echo.Context) (*ReplayWebhookRequest, error) {
	return &ReplayWebhookRequest{EventID: strings.TrimSpace(ctx.Param("event_id"))}, nil
}

func (r *ReplayWebhookRequest) Validate() error {
	if !strings.HasPrefix(r.EventID, "evt_") {
		return errors.New("invalid event id")
	}
	return nil
}

type Subscription struct {
	CustomerID         string `json:"customer_id"`
	SubscriptionID     string `json:"subscription_id,omitempty"`
	PriceID            string `json:"price_id,omitempty"`
	CurrentPeriodStart int64  `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   int64  `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	PaymentMethodBrand string `json:"payment_method_brand,omitempty"`
	PaymentMethodLast4 string `json:"payment_method_last4,omitempty"`
	Status             string `json:"status"`
	UpdatedAt          string `json:"updated_at"`
}

type SubscriptionEnvelopeResponse struct {
	Subscription *Subscription `json:"subscription"`
}
