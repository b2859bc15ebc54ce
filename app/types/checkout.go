package types

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-fps-payments/app/fps"
)

type FPSData struct {
	FPSNumber     string `json:"fps_number" validate:"required"`
	FPSKey        string `json:"fps_key" validate:"required"`
	LicensePlate  string `json:"license_plate" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"required,oneof=immediate split3 deferred"`
}

type FPSEntryInput struct {
	FPSNumber    string `json:"fps_number" validate:"required"`
	FPSKey       string `json:"fps_key" validate:"required"`
	LicensePlate string `json:"license_plate" validate:"required"`
	Amount       int64  `json:"amount" validate:"gt=0"`
}

// CheckoutRequest amounts are whole euros.
type CheckoutRequest struct {
	FPSAmount   *int64          `json:"fps_amount" validate:"required,gt=0"`
	ServiceFees *int64          `json:"service_fees" validate:"required,gte=0"`
	TotalAmount *int64          `json:"total_amount" validate:"required,gt=0"`
	Currency    string          `json:"currency" validate:"required,len=3"`
	FPSData     *FPSData        `json:"fps_data" validate:"required"`
	FPSEntries  []FPSEntryInput `json:"fps_entries,omitempty" validate:"omitempty,dive"`
	SuccessURL  string          `json:"success_url" validate:"required,url"`
	CancelURL   string          `json:"cancel_url" validate:"required,url"`
}

func NewCheckoutRequestFromContext(ctx echo.Context) (*CheckoutRequest, error) {
	var body CheckoutRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Currency = strings.ToLower(strings.TrimSpace(body.Currency))
	body.SuccessURL = strings.TrimSpace(body.SuccessURL)
	body.CancelURL = strings.TrimSpace(body.CancelURL)
	if body.FPSData != nil {
		body.FPSData.FPSNumber = strings.TrimSpace(body.FPSData.FPSNumber)
		body.FPSData.FPSKey = strings.TrimSpace(body.FPSData.FPSKey)
		body.FPSData.LicensePlate = strings.ToUpper(strings.TrimSpace(body.FPSData.LicensePlate))
		body.FPSData.PaymentMethod = strings.ToLower(strings.TrimSpace(body.FPSData.PaymentMethod))
	}

	return &body, nil
}

func (r *CheckoutRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	for _, entry := range r.Entries() {
		if err := entry.Validate(); err != nil {
			return err
		}
	}
	if len(r.FPSEntries) > 0 {
		var sum int64
		for _, entry := range r.FPSEntries {
			sum += entry.Amount
		}
		if sum != *r.FPSAmount {
			return errors.New("fps_amount must equal the sum of fps_entries amounts")
		}
	}
	return nil
}

// Entries returns the fines covered by the request. Without fps_entries a
// single fine is read from fps_data; an already aggregated fps_data (comma
// separated numbers) yields no entries.
func (r *CheckoutRequest) Entries() []fps.Entry {
	if len(r.FPSEntries) > 0 {
		entries := make([]fps.Entry, 0, len(r.FPSEntries))
		for _, in := range r.FPSEntries {
			entries = append(entries, fps.Entry{
				Number:       in.FPSNumber,
				Key:          in.FPSKey,
				LicensePlate: in.LicensePlate,
				Amount:       in.Amount,
			})
		}
		return entries
	}
	if r.FPSData == nil || r.FPSAmount == nil || strings.Contains(r.FPSData.FPSNumber, ",") {
		return nil
	}
	return []fps.Entry{{
		Number:       r.FPSData.FPSNumber,
		Key:          r.FPSData.FPSKey,
		LicensePlate: r.FPSData.LicensePlate,
		Amount:       *r.FPSAmount,
	}}
}

type CheckoutSessionResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

type SessionLookupRequest struct {
	SessionID string `json:"session_id"`
}

func NewSessionLookupRequestFromContext(ctx echo.Context) (*SessionLookupRequest, error) {
	var body SessionLookupRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.SessionID = strings.TrimSpace(body.SessionID)
	return &body, nil
}

func (r *SessionLookupRequest) Validate() error {
	if r.SessionID == "" {
		return errors.New("Missing session_id parameter")
	}
	return nil
}

type SessionMetadata struct {
	FPSNumber     string `json:"fps_number"`
	FPSKey        string `json:"fps_key"`
	LicensePlate  string `json:"license_plate"`
	FPSAmount     string `json:"fps_amount"`
	ServiceFees   string `json:"service_fees"`
	TotalAmount   string `json:"total_amount"`
	PaymentMethod string `json:"payment_method"`
}

type CustomerDetails struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type SessionViewResponse struct {
	AmountTotal     int64           `json:"amount_total"`
	Currency        string          `json:"currency"`
	PaymentStatus   string          `json:"payment_status"`
	Metadata        SessionMetadata `json:"metadata"`
	CustomerDetails CustomerDetails `json:"customer_details"`
}
