package service

import (
	"context"
	"errors"
	"testing"

	"github.com/vibast-solutions/ms-go-fps-payments/app/entity"
	"github.com/vibast-solutions/ms-go-fps-payments/app/provider"
	"github.com/vibast-solutions/ms-go-fps-payments/app/types"
)

func int64Ptr(v int64) *int64 { return &v }

func checkoutRequest(base, fee, total int64, method string) *types.CheckoutRequest {
	return &types.CheckoutRequest{
		FPSAmount:   int64Ptr(base),
		ServiceFees: int64Ptr(fee),
		TotalAmount: int64Ptr(total),
		Currency:    "eur",
		FPSData: &types.FPSData{
			FPSNumber:     "12345678901234567890123456",
			FPSKey:        "12",
			LicensePlate:  "AB12",
			PaymentMethod: method,
		},
		SuccessURL: "https://zenia.example/success",
		CancelURL:  "https://zenia.example/cancel",
	}
}

func TestCreateCheckoutSessionFeeTable(t *testing.T) {
	tests := []struct {
		name       string
		base       int64
		fee        int64
		total      int64
		method     string
		wantCents  int64
		wantKlarna bool
	}{
		{"immediate has no fee", 35, 0, 35, "immediate", 3500, false},
		{"split3 adds 20 percent", 35, 7, 42, "split3", 4200, true},
		{"deferred adds 15 percent rounded", 50, 8, 58, "deferred", 5800, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider()
			svc := NewCheckoutService(p, newMemoryCustomers(), "eur")

			session, err := svc.CreateCheckoutSession(context.Background(), checkoutRequest(tt.base, tt.fee, tt.total, tt.method), "")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if session.ID == "" || session.URL == "" {
				t.Fatalf("unexpected session: %+v", session)
			}
			if len(p.checkoutInputs) != 1 {
				t.Fatalf("expected one provider call, got %d", len(p.checkoutInputs))
			}

			input := p.checkoutInputs[0]
			if input.LineItem.UnitAmountCents != tt.wantCents {
				t.Fatalf("expected %d cents, got %d", tt.wantCents, input.LineItem.UnitAmountCents)
			}
			if input.LineItem.Quantity != 1 || input.LineItem.Name != "Démarche administrative" {
				t.Fatalf("unexpected line item: %+v", input.LineItem)
			}
			hasKlarna := len(input.PaymentMethodTypes) == 2 && input.PaymentMethodTypes[1] == "klarna"
			if input.PaymentMethodTypes[0] != "card" || hasKlarna != tt.wantKlarna {
				t.Fatalf("unexpected payment method types: %v", input.PaymentMethodTypes)
			}
			if input.Metadata["generate_detailed_invoice"] != "true" || input.Metadata["payment_method"] != tt.method {
				t.Fatalf("unexpected metadata: %v", input.Metadata)
			}
		})
	}
}

func TestCreateCheckoutSessionLineDescriptionAndMetadata(t *testing.T) {
	p := newFakeProvider()
	svc := NewCheckoutService(p, newMemoryCustomers(), "eur")

	if _, err := svc.CreateCheckoutSession(context.Background(), checkoutRequest(35, 7, 42, "split3"), ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	input := p.checkoutInputs[0]
	if input.LineItem.Description != "Paiement FPS 12345678901234567890123456 - Véhicule AB12" {
		t.Fatalf("unexpected description: %q", input.LineItem.Description)
	}
	want := map[string]string{
		"fps_number":    "12345678901234567890123456",
		"fps_key":       "12",
		"license_plate": "AB12",
		"fps_amount":    "35",
		"service_fees":  "7",
		"total_amount":  "42",
	}
	for key, value := range want {
		if input.Metadata[key] != value {
			t.Fatalf("metadata %s: expected %q, got %q", key, value, input.Metadata[key])
		}
	}
	if input.LineItem.ProductMetadata["type"] != "administrative_service" {
		t.Fatalf("unexpected product metadata: %v", input.LineItem.ProductMetadata)
	}
	if input.CustomerID != "" {
		t.Fatalf("expected anonymous checkout, got customer %q", input.CustomerID)
	}
}

func TestCreateCheckoutSessionAggregatesEntries(t *testing.T) {
	p := newFakeProvider()
	svc := NewCheckoutService(p, newMemoryCustomers(), "eur")

	req := checkoutRequest(50, 0, 50, "immediate")
	req.FPSEntries = []types.FPSEntryInput{
		{FPSNumber: "11111111111111111111111111", FPSKey: "12", LicensePlate: "ab12", Amount: 35},
		{FPSNumber: "2222 2222 2222 2222 2222 2222 22", FPSKey: "34", LicensePlate: "CD34", Amount: 15},
	}

	if _, err := svc.CreateCheckoutSession(context.Background(), req, ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	md := p.checkoutInputs[0].Metadata
	if md["fps_number"] != "11111111111111111111111111, 22222222222222222222222222" {
		t.Fatalf("unexpected joined numbers: %q", md["fps_number"])
	}
	if md["license_plate"] != "AB12, CD34" || md["fps_key"] != "12, 34" || md["fps_count"] != "2" {
		t.Fatalf("unexpected metadata: %v", md)
	}
}

func TestCreateCheckoutSessionRejectsBeforeProvider(t *testing.T) {
	tests := []struct {
		name string
		req  *types.CheckoutRequest
	}{
		{"fee mismatch", checkoutRequest(35, 5, 40, "split3")},
		{"total mismatch", checkoutRequest(35, 7, 43, "split3")},
		{"unknown method", checkoutRequest(35, 0, 35, "split4")},
		{"currency", func() *types.CheckoutRequest {
			r := checkoutRequest(35, 0, 35, "immediate")
			r.Currency = "usd"
			return r
		}()},
		{"missing amounts", &types.CheckoutRequest{FPSData: &types.FPSData{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider()
			svc := NewCheckoutService(p, newMemoryCustomers(), "eur")

			_, err := svc.CreateCheckoutSession(context.Background(), tt.req, "")
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
			if len(p.checkoutInputs) != 0 {
				t.Fatal("provider must not be called")
			}
		})
	}
}

func TestCreateCheckoutSessionAttachesKnownCustomer(t *testing.T) {
	p := newFakeProvider()
	customers := newMemoryCustomers(&entity.Customer{UserID: "user-1", CustomerID: "cus_known"})
	svc := NewCheckoutService(p, customers, "eur")

	if _, err := svc.CreateCheckoutSession(context.Background(), checkoutRequest(35, 0, 35, "immediate"), "user-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p.checkoutInputs[0].CustomerID != "cus_known" {
		t.Fatalf("expected customer attached, got %q", p.checkoutInputs[0].CustomerID)
	}
	if p.checkoutInputs[0].Metadata["user_id"] != "user-1" {
		t.Fatalf("expected user id in metadata: %v", p.checkoutInputs[0].Metadata)
	}
}

func TestCreateCheckoutSessionProviderFailure(t *testing.T) {
	p := newFakeProvider()
	p.checkoutErr = errBoom
	svc := NewCheckoutService(p, newMemoryCustomers(), "eur")

	_, err := svc.CreateCheckoutSession(context.Background(), checkoutRequest(35, 0, 35, "immediate"), "")
	if !errors.Is(err, ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
}

func TestGetCheckoutSession(t *testing.T) {
	p := newFakeProvider()
	p.sessions["cs_known"] = &provider.SessionDetails{ID: "cs_known", AmountTotal: 4200}
	svc := NewCheckoutService(p, newMemoryCustomers(), "eur")

	details, err := svc.GetCheckoutSession(context.Background(), " cs_known ")
	if err != nil || details.AmountTotal != 4200 {
		t.Fatalf("unexpected result: %+v, %v", details, err)
	}

	if _, err := svc.GetCheckoutSession(context.Background(), ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := svc.GetCheckoutSession(context.Background(), "cs_missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	p.sessionErr = errBoom
	if _, err := svc.GetCheckoutSession(context.Background(), "cs_known"); !errors.Is(err, ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
}
