package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-fps-payments/app/factory"
	"github.com/vibast-solutions/ms-go-fps-payments/app/fees"
	"github.com/vibast-solutions/ms-go-fps-payments/app/fps"
	"github.com/vibast-solutions/ms-go-fps-payments/app/metrics"
	"github.com/vibast-solutions/ms-go-fps-payments/app/provider"
	"github.com/vibast-solutions/ms-go-fps-payments/app/types"
)

const (
	checkoutLineName        = "Démarche administrative"
	checkoutLineProductType = "administrative_service"
)

type checkoutProvider interface {
	CreateCheckoutSession(ctx context.Context, input *provider.CheckoutSessionInput) (*provider.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*provider.SessionDetails, error)
}

type CheckoutService struct {
	provider  checkoutProvider
	customers customerLookup
	currency  string
	logger    logrus.FieldLogger
}

func NewCheckoutService(p checkoutProvider, customers customerLookup, currency string) *CheckoutService {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = "eur"
	}
	return &CheckoutService{
		provider:  p,
		customers: customers,
		currency:  currency,
		logger:    factory.NewModuleLogger("checkout-service"),
	}
}

// CreateCheckoutSession prices the request with the fee table and opens a
// hosted checkout for the whole amount. userID is empty for anonymous callers.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, req *types.CheckoutRequest, userID string) (*provider.CheckoutSession, error) {
	if req == nil || req.FPSData == nil || req.FPSAmount == nil || req.ServiceFees == nil || req.TotalAmount == nil {
		return nil, ErrInvalidRequest
	}

	method, err := fees.ParseMethod(req.FPSData.PaymentMethod)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.Currency != s.currency {
		return nil, fmt.Errorf("%w: unsupported currency %q", ErrInvalidRequest, req.Currency)
	}

	breakdown := fees.Compute(*req.FPSAmount, method)
	if !breakdown.Matches(*req.ServiceFees, *req.TotalAmount) {
		return nil, fmt.Errorf("%w: service_fees and total_amount must be %d and %d for %s", ErrInvalidRequest, breakdown.Fee, breakdown.Total, method)
	}

	numbers, keys, plates, count, err := describeFines(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	fpsAmount := strconv.FormatInt(breakdown.Base, 10)
	serviceFees := strconv.FormatInt(breakdown.Fee, 10)

	input := &provider.CheckoutSessionInput{
		LineItem: provider.LineItem{
			Name:            checkoutLineName,
			Description:     fmt.Sprintf("Paiement FPS %s - Véhicule %s", numbers, plates),
			UnitAmountCents: fees.ToCents(breakdown.Total),
			Currency:        s.currency,
			Quantity:        1,
			ProductMetadata: map[string]string{
				"fps_number":     numbers,
				"fps_key":        keys,
				"license_plate":  plates,
				"payment_method": string(method),
				"fps_amount":     fpsAmount,
				"service_fees":   serviceFees,
				"type":           checkoutLineProductType,
			},
		},
		PaymentMethodTypes: method.PaymentMethodTypes(),
		Metadata: map[string]string{
			"fps_number":                numbers,
			"fps_key":                   keys,
			"license_plate":             plates,
			"fps_amount":                fpsAmount,
			"service_fees":              serviceFees,
			"total_amount":              strconv.FormatInt(breakdown.Total, 10),
			"payment_method":            string(method),
			"generate_detailed_invoice": "true",
		},
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	}
	if count > 1 {
		input.Metadata["fps_count"] = strconv.Itoa(count)
	}

	if userID != "" && s.customers != nil {
		customer, err := s.customers.FindByUserID(ctx, userID)
		if err != nil {
			return nil, err
		}
		if customer != nil {
			input.CustomerID = customer.CustomerID
			input.Metadata["user_id"] = userID
		}
	}

	session, err := s.provider.CreateCheckoutSession(ctx, input)
	if err != nil {
		metrics.CheckoutSessionsFailed.Inc()
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	metrics.CheckoutSessionsCreated.Inc()
	s.logger.WithFields(logrus.Fields{
		"session_id":     session.ID,
		"payment_method": method,
		"total_amount":   breakdown.Total,
	}).Info("Checkout session created")

	return session, nil
}

func (s *CheckoutService) GetCheckoutSession(ctx context.Context, sessionID string) (*provider.SessionDetails, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidRequest
	}

	details, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, provider.ErrResourceMissing) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	if details == nil {
		return nil, ErrSessionNotFound
	}
	return details, nil
}

// describeFines returns the joined numbers, keys and plates for the metadata.
// An already aggregated fps_data is passed through unchanged.
func describeFines(req *types.CheckoutRequest) (string, string, string, int, error) {
	entries := req.Entries()
	if len(entries) == 0 {
		return req.FPSData.FPSNumber, req.FPSData.FPSKey, req.FPSData.LicensePlate, strings.Count(req.FPSData.FPSNumber, ",") + 1, nil
	}

	summary, err := fps.Summarize(entries)
	if err != nil {
		return "", "", "", 0, err
	}
	if summary.Amount != *req.FPSAmount {
		return "", "", "", 0, errors.New("fps_amount must equal the sum of fps_entries amounts")
	}
	return summary.Numbers, summary.Keys, summary.LicensePlates, summary.Count, nil
}
