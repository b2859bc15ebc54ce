package provider

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v80"
)

const (
	// invoiceDaysUntilDue is required by Stripe for send_invoice collection.
	invoiceDaysUntilDue = 30

	invoiceSessionMetadataKey = "checkout_session_id"
	invoiceLineMetadataKey    = "invoice_line"
)

// IssueInvoice drives the invoice for input.SessionID to paid and sent. An
// invoice left behind by an earlier attempt is found through its
// checkout_session_id metadata and resumed from the step where it stopped.
func (p *StripeProvider) IssueInvoice(ctx context.Context, input *InvoiceInput) (*Invoice, error) {
	if err := p.requireSecretKey(); err != nil {
		return nil, err
	}

	invoice, err := p.findSessionInvoice(ctx, input.CustomerID, input.SessionID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		params := buildInvoiceParams(input)
		params.Context = ctx
		setIdempotencyKey(&params.Params, input.IdempotencyKey, "create")

		if invoice, err = p.sc.Invoices.New(params); err != nil {
			return nil, wrapStripeError(err, "create invoice")
		}
	}

	if invoice.Status == stripe.InvoiceStatusDraft {
		if err := p.addMissingInvoiceLines(ctx, invoice.ID, input); err != nil {
			return nil, err
		}

		finalizeParams := &stripe.InvoiceFinalizeInvoiceParams{}
		finalizeParams.Context = ctx
		setIdempotencyKey(&finalizeParams.Params, input.IdempotencyKey, "finalize")
		if invoice, err = p.sc.Invoices.FinalizeInvoice(invoice.ID, finalizeParams); err != nil {
			return nil, wrapStripeError(err, "finalize invoice")
		}
	}

	// Out-of-band payment is recorded before the invoice is emailed.
	if input.PaidOutOfBand && invoice.Status == stripe.InvoiceStatusOpen {
		payParams := &stripe.InvoicePayParams{PaidOutOfBand: stripe.Bool(true)}
		payParams.Context = ctx
		setIdempotencyKey(&payParams.Params, input.IdempotencyKey, "pay")
		if invoice, err = p.sc.Invoices.Pay(invoice.ID, payParams); err != nil {
			return nil, wrapStripeError(err, "mark invoice paid")
		}
	}

	sendParams := &stripe.InvoiceSendInvoiceParams{}
	sendParams.Context = ctx
	setIdempotencyKey(&sendParams.Params, input.IdempotencyKey, "send")
	sent, err := p.sc.Invoices.SendInvoice(invoice.ID, sendParams)
	if err != nil {
		return nil, wrapStripeError(err, "send invoice")
	}

	out := &Invoice{ID: sent.ID, HostedURL: sent.HostedInvoiceURL}
	if out.HostedURL == "" {
		out.HostedURL = invoice.HostedInvoiceURL
	}
	return out, nil
}

// findSessionInvoice returns the customer's non-void invoice tagged with the
// checkout session, or nil when none exists yet.
func (p *StripeProvider) findSessionInvoice(ctx context.Context, customerID, sessionID string) (*stripe.Invoice, error) {
	if sessionID == "" {
		return nil, nil
	}

	params := &stripe.InvoiceListParams{Customer: stripe.String(customerID)}
	params.Limit = stripe.Int64(100)
	params.Context = ctx

	iter := p.sc.Invoices.List(params)
	for iter.Next() {
		invoice := iter.Invoice()
		if invoice.Status == stripe.InvoiceStatusVoid {
			continue
		}
		if invoice.Metadata[invoiceSessionMetadataKey] == sessionID {
			return invoice, nil
		}
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeError(err, "list invoices")
	}
	return nil, nil
}

// addMissingInvoiceLines attaches the lines a draft invoice does not carry yet.
// Lines are matched on their invoice_line metadata index.
func (p *StripeProvider) addMissingInvoiceLines(ctx context.Context, invoiceID string, input *InvoiceInput) error {
	listParams := &stripe.InvoiceItemListParams{Invoice: stripe.String(invoiceID)}
	listParams.Context = ctx

	present := map[string]bool{}
	iter := p.sc.InvoiceItems.List(listParams)
	for iter.Next() {
		present[iter.InvoiceItem().Metadata[invoiceLineMetadataKey]] = true
	}
	if err := iter.Err(); err != nil {
		return wrapStripeError(err, "list invoice items")
	}

	for i, line := range input.Lines {
		index := strconv.Itoa(i)
		if present[index] {
			continue
		}
		itemParams := buildInvoiceItemParams(input.CustomerID, invoiceID, line)
		itemParams.AddMetadata(invoiceLineMetadataKey, index)
		itemParams.Context = ctx
		setIdempotencyKey(&itemParams.Params, input.IdempotencyKey, fmt.Sprintf("line-%d", i))
		if _, err := p.sc.InvoiceItems.New(itemParams); err != nil {
			return wrapStripeError(err, fmt.Sprintf("add invoice line %d", i))
		}
	}
	return nil
}

// LatestSubscription returns the customer's most recent subscription in any
// status, or nil when the customer never subscribed.
func (p *StripeProvider) LatestSubscription(ctx context.Context, customerID string) (*SubscriptionSnapshot, error) {
	if err := p.requireSecretKey(); err != nil {
		return nil, err
	}

	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Limit = stripe.Int64(1)
	params.Single = true
	params.AddExpand("data.default_payment_method")
	params.Context = ctx

	iter := p.sc.Subscriptions.List(params)
	var latest *stripe.Subscription
	if iter.Next() {
		latest = iter.Subscription()
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeError(err, "list subscriptions")
	}
	if latest == nil {
		return nil, nil
	}

	return subscriptionSnapshotFromStripe(latest), nil
}

func (p *StripeProvider) ListActiveSubscriptionIDs(ctx context.Context, customerID string) ([]string, error) {
	if err := p.requireSecretKey(); err != nil {
		return nil, err
	}

	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Context = ctx

	ids := make([]string, 0)
	iter := p.sc.Subscriptions.List(params)
	for iter.Next() {
		ids = append(ids, iter.Subscription().ID)
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeError(err, "list active subscriptions")
	}
	return ids, nil
}

func (p *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if err := p.requireSecretKey(); err != nil {
		return err
	}

	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := p.sc.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return wrapStripeError(err, "cancel subscription")
	}
	return nil
}

func buildInvoiceParams(input *InvoiceInput) *stripe.InvoiceParams {
	params := &stripe.InvoiceParams{
		Customer:                    stripe.String(input.CustomerID),
		Description:                 stripe.String(input.Description),
		Footer:                      stripe.String(input.Footer),
		CollectionMethod:            stripe.String(string(stripe.InvoiceCollectionMethodSendInvoice)),
		DaysUntilDue:                stripe.Int64(invoiceDaysUntilDue),
		PendingInvoiceItemsBehavior: stripe.String("exclude"),
		AutoAdvance:                 stripe.Bool(false),
	}
	for _, field := range input.CustomFields {
		params.CustomFields = append(params.CustomFields, &stripe.InvoiceCustomFieldParams{
			Name:  stripe.String(field.Name),
			Value: stripe.String(field.Value),
		})
	}
	for key, value := range input.Metadata {
		params.AddMetadata(key, value)
	}
	if input.SessionID != "" {
		params.AddMetadata(invoiceSessionMetadataKey, input.SessionID)
	}
	return params
}

func buildInvoiceItemParams(customerID, invoiceID string, line InvoiceLine) *stripe.InvoiceItemParams {
	params := &stripe.InvoiceItemParams{
		Customer:    stripe.String(customerID),
		Invoice:     stripe.String(invoiceID),
		Amount:      stripe.Int64(line.AmountCents),
		Currency:    stripe.String(line.Currency),
		Description: stripe.String(line.Description),
	}
	if len(line.TaxRateIDs) > 0 {
		params.TaxRates = stripe.StringSlice(line.TaxRateIDs)
	}
	for key, value := range line.Metadata {
		params.AddMetadata(key, value)
	}
	return params
}

func subscriptionSnapshotFromStripe(sub *stripe.Subscription) *SubscriptionSnapshot {
	snapshot := &SubscriptionSnapshot{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		snapshot.PriceID = sub.Items.Data[0].Price.ID
	}
	if pm := sub.DefaultPaymentMethod; pm != nil && pm.Card != nil {
		snapshot.CardBrand = string(pm.Card.Brand)
		snapshot.CardLast4 = pm.Card.Last4
	}
	return snapshot
}

func setIdempotencyKey(params *stripe.Params, base, suffix string) {
	if base == "" {
		return
	}
	params.SetIdempotencyKey(base + "-" + suffix)
}
