package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-fps-payments/app/entity"
	"github.com/vibast-solutions/ms-go-fps-payments/app/events"
	"github.com/vibast-solutions/ms-go-fps-payments/app/factory"
	"github.com/vibast-solutions/ms-go-fps-payments/app/fees"
	"github.com/vibast-solutions/ms-go-fps-payments/app/metrics"
	"github.com/vibast-solutions/ms-go-fps-payments/app/provider"
	"github.com/vibast-solutions/ms-go-fps-payments/app/repository"
)

const invoiceFooter = "Merci d'avoir utilisé Zenia pour le paiement de votre FPS."

type invoiceIssuer interface {
	IssueInvoice(ctx context.Context, input *provider.InvoiceInput) (*provider.Invoice, error)
}

// OrderFinalizer turns a paid one-time checkout into an order and its
// itemized invoice. Running it twice for the same session is a no-op.
type OrderFinalizer struct {
	orders    orderRepository
	invoices  invoiceIssuer
	publisher events.Publisher
	taxRateID string
	currency  string
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewOrderFinalizer(orders orderRepository, invoices invoiceIssuer, publisher events.Publisher, serviceFeeTaxRateID, currency string) *OrderFinalizer {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &OrderFinalizer{
		orders:    orders,
		invoices:  invoices,
		publisher: publisher,
		taxRateID: strings.TrimSpace(serviceFeeTaxRateID),
		currency:  strings.ToLower(strings.TrimSpace(currency)),
		logger:    factory.NewModuleLogger("order-finalizer"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (f *OrderFinalizer) Finalize(ctx context.Context, session provider.CompletedSession) (*entity.Order, error) {
	if strings.TrimSpace(session.ID) == "" || strings.TrimSpace(session.CustomerID) == "" {
		return nil, ErrInvalidRequest
	}

	l := f.logger.WithField("checkout_session_id", session.ID)
	now := f.now()

	order := &entity.Order{
		CheckoutSessionID: session.ID,
		PaymentIntentID:   stringPtr(session.PaymentIntentID),
		CustomerID:        session.CustomerID,
		AmountSubtotal:    session.AmountSubtotal,
		AmountTotal:       session.AmountTotal,
		Currency:          session.Currency,
		PaymentStatus:     session.PaymentStatus,
		Status:            entity.OrderStatusCompleted,
		Metadata:          session.Metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	created := true
	if err := f.orders.Create(ctx, order); err != nil {
		if !errors.Is(err, repository.ErrOrderAlreadyExists) {
			return nil, fmt.Errorf("insert order: %w", err)
		}
		existing, findErr := f.orders.FindByCheckoutSessionID(ctx, session.ID)
		if findErr != nil {
			return nil, fmt.Errorf("load existing order: %w", findErr)
		}
		if existing == nil {
			return nil, repository.ErrOrderNotFound
		}
		order = existing
		created = false
		metrics.OrdersDuplicate.Inc()
		l.Info("Order already recorded")
	} else {
		metrics.OrdersCreated.Inc()
		l.WithField("order_id", order.ID).Info("Order recorded")
	}

	linked := false
	if strings.TrimSpace(session.Metadata["fps_number"]) != "" && !order.HasInvoice() {
		var err error
		if linked, err = f.issueInvoice(ctx, l, session, order); err != nil {
			return nil, err
		}
	}

	// An attempt that created the order or linked its invoice completes it.
	// Earlier attempts failed before publishing, so this fires once.
	if created || linked {
		f.publish(ctx, l, order)
	}

	return order, nil
}

// issueInvoice reports whether the invoice was linked to the order. Provider
// and linking failures are returned so the event is retried; the provider
// resumes a partially issued invoice instead of creating a second one.
func (f *OrderFinalizer) issueInvoice(ctx context.Context, l logrus.FieldLogger, session provider.CompletedSession, order *entity.Order) (bool, error) {
	input, err := f.buildInvoiceInput(session)
	if err != nil {
		metrics.InvoicesFailed.Inc()
		l.WithError(err).Error("Invoice input invalid, skipping invoice")
		return false, nil
	}

	invoice, err := f.invoices.IssueInvoice(ctx, input)
	if err != nil {
		metrics.InvoicesFailed.Inc()
		return false, fmt.Errorf("issue invoice: %w", err)
	}

	sentAt := f.now()
	if err := f.orders.AttachInvoice(ctx, session.ID, invoice.ID, invoice.HostedURL, sentAt); err != nil {
		return false, fmt.Errorf("attach invoice %s: %w", invoice.ID, err)
	}

	order.InvoiceID = &invoice.ID
	order.InvoiceURL = stringPtr(invoice.HostedURL)
	order.InvoiceSentAt = &sentAt
	metrics.InvoicesIssued.Inc()
	l.WithField("invoice_id", invoice.ID).Info("Invoice issued")
	return true, nil
}

func (f *OrderFinalizer) buildInvoiceInput(session provider.CompletedSession) (*provider.InvoiceInput, error) {
	md := session.Metadata
	base, err := parseEuros(md["fps_amount"])
	if err != nil {
		return nil, fmt.Errorf("fps_amount: %w", err)
	}
	fee, err := parseEuros(md["service_fees"])
	if err != nil {
		return nil, fmt.Errorf("service_fees: %w", err)
	}

	currency := strings.ToLower(session.Currency)
	if currency == "" {
		currency = f.currency
	}
	method := fees.Method(md["payment_method"])

	invoiceMetadata := map[string]string{
		"fps_number":          md["fps_number"],
		"fps_key":             md["fps_key"],
		"license_plate":       md["license_plate"],
		"fps_amount":          md["fps_amount"],
		"service_fees":        md["service_fees"],
		"total_amount":        md["total_amount"],
		"payment_method":      md["payment_method"],
		"checkout_session_id": session.ID,
	}

	lines := []provider.InvoiceLine{{
		AmountCents: fees.ToCents(base),
		Currency:    currency,
		Description: fmt.Sprintf("Forfait Post-Stationnement (FPS) %s", md["fps_number"]),
		Metadata: map[string]string{
			"type":          "fps_amount",
			"fps_number":    md["fps_number"],
			"license_plate": md["license_plate"],
		},
	}}
	if fee > 0 {
		line := provider.InvoiceLine{
			AmountCents: fees.ToCents(fee),
			Currency:    currency,
			Description: fmt.Sprintf("Frais de service Zenia - %s", method.FeeLabel()),
			Metadata: map[string]string{
				"type":           "service_fees",
				"payment_method": md["payment_method"],
			},
		}
		if f.taxRateID != "" {
			line.TaxRateIDs = []string{f.taxRateID}
		}
		lines = append(lines, line)
	}

	return &provider.InvoiceInput{
		CustomerID:  session.CustomerID,
		Description: fmt.Sprintf("Paiement FPS %s - Véhicule %s", md["fps_number"], md["license_plate"]),
		Footer:      invoiceFooter,
		Metadata:    invoiceMetadata,
		CustomFields: []provider.InvoiceCustomField{
			{Name: "Numéro FPS", Value: md["fps_number"]},
			{Name: "Véhicule", Value: md["license_plate"]},
			{Name: "Mode de paiement", Value: method.Label()},
		},
		Lines:          lines,
		SessionID:      session.ID,
		IdempotencyKey: "invoice-" + session.ID,
		PaidOutOfBand:  true,
	}, nil
}

func (f *OrderFinalizer) publish(ctx context.Context, l logrus.FieldLogger, order *entity.Order) {
	event := events.BillingEvent{
		Type:              events.TypeOrderCompleted,
		CustomerID:        order.CustomerID,
		CheckoutSessionID: order.CheckoutSessionID,
		AmountTotal:       order.AmountTotal,
		Currency:          order.Currency,
		Status:            order.Status,
		Attributes: map[string]string{
			"fps_number":     order.Metadata["fps_number"],
			"payment_method": order.Metadata["payment_method"],
		},
	}
	if order.InvoiceID != nil {
		event.InvoiceID = *order.InvoiceID
	}
	if err := f.publisher.Publish(ctx, event); err != nil {
		l.WithError(err).Warn("Publish order_completed failed")
	}
}

func parseEuros(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errors.New("must be >= 0")
	}
	return v, nil
}
