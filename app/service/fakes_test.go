package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-fps-payments/app/entity"
	"github.com/vibast-solutions/ms-go-fps-payments/app/events"
	"github.com/vibast-solutions/ms-go-fps-payments/app/provider"
	"github.com/vibast-solutions/ms-go-fps-payments/app/repository"
)

type memoryOrders struct {
	items     map[string]*entity.Order
	nextID    uint64
	createErr error
	attachErr error
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{items: map[string]*entity.Order{}}
}

func (r *memoryOrders) Create(_ context.Context, order *entity.Order) error {
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.items[order.CheckoutSessionID]; ok {
		return repository.ErrOrderAlreadyExists
	}
	r.nextID++
	order.ID = r.nextID
	copied := *order
	r.items[order.CheckoutSessionID] = &copied
	return nil
}

func (r *memoryOrders) FindByCheckoutSessionID(_ context.Context, id string) (*entity.Order, error) {
	order, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (r *memoryOrders) AttachInvoice(_ context.Context, sessionID, invoiceID, invoiceURL string, sentAt time.Time) error {
	if r.attachErr != nil {
		return r.attachErr
	}
	order, ok := r.items[sessionID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	order.InvoiceID = &invoiceID
	order.InvoiceURL = &invoiceURL
	order.InvoiceSentAt = &sentAt
	return nil
}

func (r *memoryOrders) DeleteByCustomerID(_ context.Context, customerID string) (int64, error) {
	var n int64
	for id, order := range r.items {
		if order.CustomerID == customerID {
			delete(r.items, id)
			n++
		}
	}
	return n, nil
}

type memorySubscriptions struct {
	items     map[string]*entity.Subscription
	upserts   int
	upsertErr error
}

func newMemorySubscriptions() *memorySubscriptions {
	return &memorySubscriptions{items: map[string]*entity.Subscription{}}
}

func (r *memorySubscriptions) Upsert(_ context.Context, sub *entity.Subscription) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	r.upserts++
	copied := *sub
	r.items[sub.CustomerID] = &copied
	return nil
}

func (r *memorySubscriptions) ListStale(_ context.Context, before time.Time, limit int32) ([]*entity.Subscription, error) {
	out := make([]*entity.Subscription, 0)
	for _, sub := range r.items {
		if !sub.UpdatedAt.After(before) && int32(len(out)) < limit {
			out = append(out, sub)
		}
	}
	return out, nil
}

func (r *memorySubscriptions) DeleteByCustomerID(_ context.Context, customerID string) error {
	delete(r.items, customerID)
	return nil
}

type memoryCustomers struct {
	items     map[string]*entity.Customer
	createErr error
}

func newMemoryCustomers(items ...*entity.Customer) *memoryCustomers {
	r := &memoryCustomers{items: map[string]*entity.Customer{}}
	for _, item := range items {
		r.items[item.UserID] = item
	}
	return r
}

func (r *memoryCustomers) Create(_ context.Context, customer *entity.Customer) error {
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.items[customer.UserID]; ok {
		return repository.ErrCustomerAlreadyExists
	}
	r.items[customer.UserID] = customer
	return nil
}

func (r *memoryCustomers) FindByUserID(_ context.Context, userID string) (*entity.Customer, error) {
	return r.items[userID], nil
}

func (r *memoryCustomers) DeleteByUserID(_ context.Context, userID string) error {
	delete(r.items, userID)
	return nil
}

type memoryWebhookEvents struct {
	items  map[string]*entity.WebhookEvent
	writes int
}

func newMemoryWebhookEvents() *memoryWebhookEvents {
	return &memoryWebhookEvents{items: map[string]*entity.WebhookEvent{}}
}

func (r *memoryWebhookEvents) Create(_ context.Context, event *entity.WebhookEvent) error {
	r.writes++
	if _, ok := r.items[event.EventID]; ok {
		return repository.ErrWebhookEventAlreadyExists
	}
	copied := *event
	r.items[event.EventID] = &copied
	return nil
}

func (r *memoryWebhookEvents) FindByEventID(_ context.Context, eventID string) (*entity.WebhookEvent, error) {
	event, ok := r.items[eventID]
	if !ok {
		return nil, nil
	}
	copied := *event
	return &copied, nil
}

func (r *memoryWebhookEvents) Claim(_ context.Context, eventID string, now, staleBefore time.Time) (bool, error) {
	event, ok := r.items[eventID]
	if !ok {
		return false, nil
	}
	switch {
	case event.Status == entity.WebhookEventPending, event.Status == entity.WebhookEventFailed:
	case event.Status == entity.WebhookEventProcessing && !event.UpdatedAt.After(staleBefore):
	default:
		return false, nil
	}
	r.writes++
	event.Status = entity.WebhookEventProcessing
	event.Attempts++
	event.UpdatedAt = now
	return true, nil
}

func (r *memoryWebhookEvents) MarkProcessed(_ context.Context, eventID string, now time.Time) error {
	event, ok := r.items[eventID]
	if !ok {
		return repository.ErrWebhookEventNotFound
	}
	r.writes++
	event.Status = entity.WebhookEventProcessed
	event.NextAttemptAt = nil
	event.LastError = nil
	event.ProcessedAt = &now
	event.UpdatedAt = now
	return nil
}

func (r *memoryWebhookEvents) MarkFailed(_ context.Context, eventID, lastErr string, next *time.Time, now time.Time) error {
	event, ok := r.items[eventID]
	if !ok {
		return repository.ErrWebhookEventNotFound
	}
	r.writes++
	event.Status = entity.WebhookEventFailed
	event.LastError = &lastErr
	event.NextAttemptAt = next
	event.UpdatedAt = now
	return nil
}

func (r *memoryWebhookEvents) ResetForReplay(_ context.Context, eventID string, now time.Time) error {
	event, ok := r.items[eventID]
	if !ok {
		return repository.ErrWebhookEventNotFound
	}
	r.writes++
	event.Status = entity.WebhookEventPending
	event.Attempts = 0
	event.NextAttemptAt = nil
	event.LastError = nil
	event.ProcessedAt = nil
	event.UpdatedAt = now
	return nil
}

func (r *memoryWebhookEvents) ListDue(_ context.Context, now, staleBefore time.Time, limit int32) ([]*entity.WebhookEvent, error) {
	out := make([]*entity.WebhookEvent, 0)
	for _, event := range r.items {
		due := event.Status == entity.WebhookEventFailed && event.NextAttemptAt != nil && !event.NextAttemptAt.After(now)
		stale := (event.Status == entity.WebhookEventPending || event.Status == entity.WebhookEventProcessing) && !event.UpdatedAt.After(staleBefore)
		if (due || stale) && int32(len(out)) < limit {
			copied := *event
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memoryWebhookEvents) DeleteTerminalBefore(_ context.Context, cutoff time.Time, limit int32) (int64, error) {
	var n int64
	for id, event := range r.items {
		if event.Terminal() && event.ReceivedAt.Before(cutoff) && int32(n) < limit {
			delete(r.items, id)
			n++
		}
	}
	return n, nil
}

type recordingQueue struct {
	ids []string
	err error
}

func (q *recordingQueue) Enqueue(_ context.Context, eventID string) error {
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, eventID)
	return nil
}

type recordingPublisher struct {
	events []events.BillingEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.BillingEvent) error {
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

// fakeProvider implements every provider capability with in-memory state.
type fakeProvider struct {
	checkoutInputs []*provider.CheckoutSessionInput
	checkoutErr    error
	sessions       map[string]*provider.SessionDetails
	sessionErr     error

	invoiceInputs []*provider.InvoiceInput
	invoiceErr    error

	subscriptions   map[string]*provider.SubscriptionSnapshot
	subscriptionErr error
	activeSubs      map[string][]string
	cancelled       []string

	customers        map[string]*provider.Customer
	createdCustomers []*provider.CustomerInput
	deletedCustomers []string
	defaults         map[string]string

	paymentMethods map[string]*provider.PaymentMethod
	detached       []string
	setupInputs    []*provider.SetupSessionInput

	webhookSecret string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		sessions:       map[string]*provider.SessionDetails{},
		subscriptions:  map[string]*provider.SubscriptionSnapshot{},
		activeSubs:     map[string][]string{},
		customers:      map[string]*provider.Customer{},
		defaults:       map[string]string{},
		paymentMethods: map[string]*provider.PaymentMethod{},
		webhookSecret:  "valid",
	}
}

func (p *fakeProvider) CreateCheckoutSession(_ context.Context, input *provider.CheckoutSessionInput) (*provider.CheckoutSession, error) {
	if p.checkoutErr != nil {
		return nil, p.checkoutErr
	}
	p.checkoutInputs = append(p.checkoutInputs, input)
	id := fmt.Sprintf("cs_test_%d", len(p.checkoutInputs))
	return &provider.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/" + id}, nil
}

func (p *fakeProvider) GetCheckoutSession(_ context.Context, sessionID string) (*provider.SessionDetails, error) {
	if p.sessionErr != nil {
		return nil, p.sessionErr
	}
	details, ok := p.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("retrieve checkout session: %w", provider.ErrResourceMissing)
	}
	return details, nil
}

func (p *fakeProvider) CreateSetupSession(_ context.Context, input *provider.SetupSessionInput) (*provider.SetupSession, error) {
	p.setupInputs = append(p.setupInputs, input)
	return &provider.SetupSession{ID: "cs_setup_1", URL: "https://checkout.stripe.test/setup", SetupIntentID: "seti_1"}, nil
}

func (p *fakeProvider) IssueInvoice(_ context.Context, input *provider.InvoiceInput) (*provider.Invoice, error) {
	p.invoiceInputs = append(p.invoiceInputs, input)
	if p.invoiceErr != nil {
		return nil, p.invoiceErr
	}
	id := fmt.Sprintf("in_%d", len(p.invoiceInputs))
	return &provider.Invoice{ID: id, HostedURL: "https://invoice.stripe.test/" + id}, nil
}

func (p *fakeProvider) LatestSubscription(_ context.Context, customerID string) (*provider.SubscriptionSnapshot, error) {
	if p.subscriptionErr != nil {
		return nil, p.subscriptionErr
	}
	return p.subscriptions[customerID], nil
}

func (p *fakeProvider) ListActiveSubscriptionIDs(_ context.Context, customerID string) ([]string, error) {
	return p.activeSubs[customerID], nil
}

func (p *fakeProvider) CancelSubscription(_ context.Context, subscriptionID string) error {
	p.cancelled = append(p.cancelled, subscriptionID)
	return nil
}

func (p *fakeProvider) CreateCustomer(_ context.Context, input *provider.CustomerInput) (*provider.Customer, error) {
	p.createdCustomers = append(p.createdCustomers, input)
	id := fmt.Sprintf("cus_new_%d", len(p.createdCustomers))
	customer := &provider.Customer{ID: id, Email: input.Email, Name: input.Name}
	p.customers[id] = customer
	return customer, nil
}

func (p *fakeProvider) GetCustomer(_ context.Context, customerID string) (*provider.Customer, error) {
	customer, ok := p.customers[customerID]
	if !ok {
		return nil, provider.ErrResourceMissing
	}
	copied := *customer
	copied.DefaultPaymentMethodID = p.defaults[customerID]
	return &copied, nil
}

func (p *fakeProvider) DeleteCustomer(_ context.Context, customerID string) error {
	p.deletedCustomers = append(p.deletedCustomers, customerID)
	delete(p.customers, customerID)
	return nil
}

func (p *fakeProvider) SetDefaultPaymentMethod(_ context.Context, customerID, paymentMethodID string) error {
	p.defaults[customerID] = paymentMethodID
	return nil
}

func (p *fakeProvider) ListPaymentMethods(_ context.Context, customerID string, methodType string) ([]*provider.PaymentMethod, error) {
	out := make([]*provider.PaymentMethod, 0)
	for _, pm := range p.paymentMethods {
		if pm.CustomerID == customerID && pm.Type == methodType {
			out = append(out, pm)
		}
	}
	return out, nil
}

func (p *fakeProvider) GetPaymentMethod(_ context.Context, paymentMethodID string) (*provider.PaymentMethod, error) {
	pm, ok := p.paymentMethods[paymentMethodID]
	if !ok {
		return nil, provider.ErrResourceMissing
	}
	return pm, nil
}

func (p *fakeProvider) DetachPaymentMethod(_ context.Context, paymentMethodID string) error {
	p.detached = append(p.detached, paymentMethodID)
	if pm, ok := p.paymentMethods[paymentMethodID]; ok {
		pm.CustomerID = ""
	}
	return nil
}

// VerifyWebhook accepts the configured signature and decodes like the real adapter.
func (p *fakeProvider) VerifyWebhook(payload []byte, signature string) (*provider.WebhookEvent, error) {
	if signature != p.webhookSecret {
		return nil, fmt.Errorf("%w: bad signature", provider.ErrSignatureInvalid)
	}
	return provider.ParseEvent(payload)
}

var _ provider.PaymentProvider = (*fakeProvider)(nil)

var errBoom = errors.New("boom")
