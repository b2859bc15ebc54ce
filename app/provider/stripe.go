package provider

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

type StripeConfig struct {
	SecretKey                 string
	WebhookSecret             string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
	// HTTPClient overrides the client built from HTTPTimeout.
	HTTPClient *http.Client
	Logger     logrus.FieldLogger
}

type StripeProvider struct {
	cfg StripeConfig
	sc  *client.API
}

func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	if cfg.SignatureToleranceSeconds <= 0 {
		cfg.SignatureToleranceSeconds = 300
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.HTTPTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	backendConfig := func() *stripe.BackendConfig {
		bc := &stripe.BackendConfig{HTTPClient: httpClient}
		if cfg.Logger != nil {
			bc.LeveledLogger = cfg.Logger
		}
		return bc
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig()),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendConfig()),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendConfig()),
	}

	return &StripeProvider{
		cfg: cfg,
		sc:  client.New(cfg.SecretKey, backends),
	}
}

func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, input *CheckoutSessionInput) (*CheckoutSession, error) {
	if err := p.requireSecretKey(); err != nil {
		return nil, err
	}

	params := buildCheckoutSessionParams(input)
	params.Context = ctx

	session, err := p.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrapStripeError(err, "create checkout session")
	}

	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (p *StripeProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*SessionDetails, error) {
	if err := p.requireSecretKey(); err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	session, err := p.sc.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, wrapStripeError(err, "retrieve checkout session")
	}

	return sessionDetailsFromStripe(session), nil
}

func (p *StripeProvider) CreateSetupSession(ctx context.Context, input *SetupSessionInput) (*SetupSession, error) {
	if err := p.requireSecretKey(); err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSetup)),
		Customer:           stripe.String(input.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card", "link"}),
		SuccessURL:         stripe.String(input.SuccessURL),
		CancelURL:          stripe.String(input.CancelURL),
	}
	for key, value := range input.Metadata {
		params.AddMetadata(key, value)
	}
	params.Context = ctx

	session, err := p.sc.CheckoutSessions.New(params)
	if err != nil {
		return nil, wrapStripeError(err, "create setup session")
	}

	out := &SetupSession{ID: session.ID, URL: session.URL}
	if session.SetupIntent != nil {
		out.SetupIntentID = session.SetupIntent.ID
	}
	return out, nil
}

// VerifyWebhook checks the signature against the raw body and decodes the
// event once. Nothing downstream sees an unverified payload.
func (p *StripeProvider) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if strings.TrimSpace(p.cfg.WebhookSecret) == "" {
		return nil, errors.Wrap(ErrNotConfigured, "stripe webhook secret is empty")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.cfg.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                time.Duration(p.cfg.SignatureToleranceSeconds) * time.Second,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Wrap(ErrSignatureInvalid, err.Error())
	}

	return classify(event, payload)
}

func (p *StripeProvider) requireSecretKey() error {
	if strings.TrimSpace(p.cfg.SecretKey) == "" {
		return errors.Wrap(ErrNotConfigured, "stripe secret key is empty")
	}
	return nil
}

func buildCheckoutSessionParams(input *CheckoutSessionInput) *stripe.CheckoutSessionParams {
	item := input.LineItem
	quantity := item.Quantity
	if quantity <= 0 {
		quantity = 1
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice(input.PaymentMethodTypes),
		SuccessURL:         stripe.String(input.SuccessURL),
		CancelURL:          stripe.String(input.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(item.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(item.Name),
						Description: stripe.String(item.Description),
						Metadata:    item.ProductMetadata,
					},
					UnitAmount:  stripe.Int64(item.UnitAmountCents),
					TaxBehavior: stripe.String("exclusive"),
				},
				Quantity: stripe.Int64(quantity),
			},
		},
		InvoiceCreation: &stripe.CheckoutSessionInvoiceCreationParams{
			Enabled: stripe.Bool(false),
		},
	}

	// The finalizer needs a customer on the completed session to issue the invoice.
	if input.CustomerID != "" {
		params.Customer = stripe.String(input.CustomerID)
	} else {
		params.CustomerCreation = stripe.String(string(stripe.CheckoutSessionCustomerCreationAlways))
	}

	for key, value := range input.Metadata {
		params.AddMetadata(key, value)
	}

	return params
}

func sessionDetailsFromStripe(session *stripe.CheckoutSession) *SessionDetails {
	details := &SessionDetails{
		ID:             session.ID,
		Mode:           string(session.Mode),
		PaymentStatus:  string(session.PaymentStatus),
		AmountSubtotal: session.AmountSubtotal,
		AmountTotal:    session.AmountTotal,
		Currency:       string(session.Currency),
		Metadata:       session.Metadata,
	}
	if session.Customer != nil {
		details.CustomerID = session.Customer.ID
	}
	if session.PaymentIntent != nil {
		details.PaymentIntentID = session.PaymentIntent.ID
	}
	if session.CustomerDetails != nil {
		details.CustomerEmail = session.CustomerDetails.Email
		details.CustomerName = session.CustomerDetails.Name
	}
	return details
}

func wrapStripeError(err error, op string) error {
	var stripeErr *stripe.Error
	if stderrors.As(err, &stripeErr) {
		if stripeErr.Code == stripe.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == http.StatusNotFound {
			return errors.Wrapf(ErrResourceMissing, "%s: %s", op, stripeErr.Msg)
		}
	}
	return errors.Wrap(err, op)
}

var _ PaymentProvider = (*StripeProvider)(nil)
