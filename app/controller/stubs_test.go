package controller

import (
	"bytes"
	"context"
	"net/http/httptest"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-fps-payments/app/entity"
	"github.com/vibast-solutions/ms-go-fps-payments/app/provider"
	"github.com/vibast-solutions/ms-go-fps-payments/app/service"
	"github.com/vibast-solutions/ms-go-fps-payments/app/types"
)

type stubCheckoutService struct {
	createFn func(ctx context.Context, req *types.CheckoutRequest, userID string) (*provider.CheckoutSession, error)
	getFn    func(ctx context.Context, sessionID string) (*provider.SessionDetails, error)
}

func (s *stubCheckoutService) CreateCheckoutSession(ctx context.Context, req *types.CheckoutRequest, userID string) (*provider.CheckoutSession, error) {
	if s.createFn != nil {
		return s.createFn(ctx, req, userID)
	}
	return &provider.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func (s *stubCheckoutService) GetCheckoutSession(ctx context.Context, sessionID string) (*provider.SessionDetails, error) {
	if s.getFn != nil {
		return s.getFn(ctx, sessionID)
	}
	return &provider.SessionDetails{ID: sessionID}, nil
}

type stubWebhookReceiver struct {
	receiveFn func(ctx context.Context, payload []byte, signature string) (*service.ReceiveResult, error)
}

func (s *stubWebhookReceiver) Receive(ctx context.Context, payload []byte, signature string) (*service.ReceiveResult, error) {
	if s.receiveFn != nil {
		return s.receiveFn(ctx, payload, signature)
	}
	return &service.ReceiveResult{EventID: "evt_1"}, nil
}

type stubCustomerService struct {
	ensureFn     func(ctx context.Context, userID, email, name string) (*entity.Customer, bool, error)
	listFn       func(ctx context.Context, userID string) (*service.PaymentMethods, error)
	setDefaultFn func(ctx context.Context, userID, paymentMethodID string) error
	detachFn     func(ctx context.Context, userID, paymentMethodID string) error
	setupFn      func(ctx context.Context, userID, origin string) (*provider.SetupSession, error)
	deleteFn     func(ctx context.Context, userID string) error
}

func (s *stubCustomerService) EnsureCustomer(ctx context.Context, userID, email, name string) (*entity.Customer, bool, error) {
	if s.ensureFn != nil {
		return s.ensureFn(ctx, userID, email, name)
	}
	return &entity.Customer{UserID: userID, CustomerID: "cus_1"}, true, nil
}

func (s *stubCustomerService) ListPaymentMethods(ctx context.Context, userID string) (*service.PaymentMethods, error) {
	if s.listFn != nil {
		return s.listFn(ctx, userID)
	}
	return &service.PaymentMethods{Message: service.MessageNoCustomer}, nil
}

func (s *stubCustomerService) SetDefaultPaymentMethod(ctx context.Context, userID, paymentMethodID string) error {
	if s.setDefaultFn != nil {
		return s.setDefaultFn(ctx, userID, paymentMethodID)
	}
	return nil
}

func (s *stubCustomerService) DetachPaymentMethod(ctx context.Context, userID, paymentMethodID string) error {
	if s.detachFn != nil {
		return s.detachFn(ctx, userID, paymentMethodID)
	}
	return nil
}

func (s *stubCustomerService) CreateSetupSession(ctx context.Context, userID, origin string) (*provider.SetupSession, error) {
	if s.setupFn != nil {
		return s.setupFn(ctx, userID, origin)
	}
	return &provider.SetupSession{ID: "cs_setup", URL: "https://checkout.stripe.test/setup", SetupIntentID: "seti_1"}, nil
}

func (s *stubCustomerService) DeleteBillingAccount(ctx context.Context, userID string) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, userID)
	}
	return nil
}

type stubSyncer struct {
	syncFn func(ctx context.Context, customerID string) (*entity.Subscription, error)
}

func (s *stubSyncer) Sync(ctx context.Context, customerID string) (*entity.Subscription, error) {
	return s.syncFn(ctx, customerID)
}

type stubReplayer struct {
	replayFn func(ctx context.Context, eventID string) error
}

func (s *stubReplayer) Replay(ctx context.Context, eventID string) error {
	return s.replayFn(ctx, eventID)
}

func newJSONContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func newRequestContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}
