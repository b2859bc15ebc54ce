package provider

import (
	"context"

	"github.com/stripe/stripe-go/v80"
)

func (p *StripeProvider) CreateCustomer(ctx context.Context, input *CustomerInput) (*Customer, error) {
	if err := p.requireSecretKey(); err != nil {
		return nil, err
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(input.Email),
	}
	if input.Name != "" {
		params.Name = stripe.String(input.Name)
	}
	for key, value := range input.Metadata {
		params.AddMetadata(key, value)
	}
	params.Context = ctx

	customer, err := p.sc.Customers.New(params)
	if err != nil {
		return nil, wrapStripeError(err, "create customer")
	}
	return customerFromStripe(customer), nil
}

func (p *StripeProvider) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	if err := p.requireSecretKey(); err != nil {
		return nil, err
	}

	params := &stripe.CustomerParams{}
	params.Context = ctx

	customer, err := p.sc.Customers.Get(customerID, params)
	if err != nil {
		return nil, wrapStripeError(err, "retrieve customer")
	}
	return customerFromStripe(customer), nil
}

func (p *StripeProvider) DeleteCustomer(ctx context.Context, customerID string) error {
	if err := p.requireSecretKey(); err != nil {
		return err
	}

	params := &stripe.CustomerParams{}
	params.Context = ctx
	if _, err := p.sc.Customers.Del(customerID, params); err != nil {
		return wrapStripeError(err, "delete customer")
	}
	return nil
}

func (p *StripeProvider) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	if err := p.requireSecretKey(); err != nil {
		return err
	}

	params := &stripe.CustomerParams{
		InvoiceSettings: &stripe.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripe.String(paymentMethodID),
		},
	}
	params.Context = ctx
	if _, err := p.sc.Customers.Update(customerID, params); err != nil {
		return wrapStripeError(err, "set default payment method")
	}
	return nil
}

func (p *StripeProvider) ListPaymentMethods(ctx context.Context, customerID string, methodType string) ([]*PaymentMethod, error) {
	if err := p.requireSecretKey(); err != nil {
		return nil, err
	}

	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(methodType),
	}
	params.Context = ctx

	items := make([]*PaymentMethod, 0)
	iter := p.sc.PaymentMethods.List(params)
	for iter.Next() {
		items = append(items, paymentMethodFromStripe(iter.PaymentMethod()))
	}
	if err := iter.Err(); err != nil {
		return nil, wrapStripeError(err, "list payment methods")
	}
	return items, nil
}

func (p *StripeProvider) GetPaymentMethod(ctx context.Context, paymentMethodID string) (*PaymentMethod, error) {
	if err := p.requireSecretKey(); err != nil {
		return nil, err
	}

	params := &stripe.PaymentMethodParams{}
	params.Context = ctx

	pm, err := p.sc.PaymentMethods.Get(paymentMethodID, params)
	if err != nil {
		return nil, wrapStripeError(err, "retrieve payment method")
	}
	return paymentMethodFromStripe(pm), nil
}

func (p *StripeProvider) DetachPaymentMethod(ctx context.Context, paymentMethodID string) error {
	if err := p.requireSecretKey(); err != nil {
		return err
	}

	params := &stripe.PaymentMethodDetachParams{}
	params.Context = ctx
	if _, err := p.sc.PaymentMethods.Detach(paymentMethodID, params); err != nil {
		return wrapStripeError(err, "detach payment method")
	}
	return nil
}

func customerFromStripe(customer *stripe.Customer) *Customer {
	out := &Customer{
		ID:      customer.ID,
		Email:   customer.Email,
		Name:    customer.Name,
		Deleted: customer.Deleted,
	}
	if customer.InvoiceSettings != nil && customer.InvoiceSettings.DefaultPaymentMethod != nil {
		out.DefaultPaymentMethodID = customer.InvoiceSettings.DefaultPaymentMethod.ID
	}
	return out
}

func paymentMethodFromStripe(pm *stripe.PaymentMethod) *PaymentMethod {
	out := &PaymentMethod{
		ID:      pm.ID,
		Type:    string(pm.Type),
		Created: pm.Created,
	}
	if pm.Customer != nil {
		out.CustomerID = pm.Customer.ID
	}
	if pm.Card != nil {
		out.Card = &Card{
			Brand:    string(pm.Card.Brand),
			Last4:    pm.Card.Last4,
			ExpMonth: pm.Card.ExpMonth,
			ExpYear:  pm.Card.ExpYear,
		}
	}
	if pm.Link != nil {
		out.LinkEmail = pm.Link.Email
	}
	return out
}
