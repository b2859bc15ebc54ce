package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-fps-payments/app/entity"
	"github.com/vibast-solutions/ms-go-fps-payments/app/factory"
	"github.com/vibast-solutions/ms-go-fps-payments/app/provider"
	"github.com/vibast-solutions/ms-go-fps-payments/app/repository"
)

const (
	MessageNoCustomer      = "No Stripe customer found"
	MessageCustomerDeleted = "Stripe customer was deleted"
)

var listedPaymentMethodTypes = []string{"card", "link"}

type customerProvider interface {
	CreateCustomer(ctx context.Context, input *provider.CustomerInput) (*provider.Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*provider.Customer, error)
	DeleteCustomer(ctx context.Context, customerID string) error
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
	ListPaymentMethods(ctx context.Context, customerID string, methodType string) ([]*provider.PaymentMethod, error)
	GetPaymentMethod(ctx context.Context, paymentMethodID string) (*provider.PaymentMethod, error)
	DetachPaymentMethod(ctx context.Context, paymentMethodID string) error
	CreateSetupSession(ctx context.Context, input *provider.SetupSessionInput) (*provider.SetupSession, error)
	ListActiveSubscriptionIDs(ctx context.Context, customerID string) ([]string, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

// PaymentMethods is the wallet of a user. CustomerID is empty when the user
// has no usable provider customer; Message then says why.
type PaymentMethods struct {
	CustomerID             string
	DefaultPaymentMethodID string
	Methods                []*provider.PaymentMethod
	Message                string
}

type CustomerService struct {
	customers     customerRepository
	orders        orderDeleter
	subscriptions subscriptionDeleter
	provider      customerProvider
	defaultOrigin string
	origins       map[string]bool
	logger        logrus.FieldLogger
	now           func() time.Time
}

func NewCustomerService(
	customers customerRepository,
	orders orderDeleter,
	subscriptions subscriptionDeleter,
	p customerProvider,
	defaultOrigin string,
	allowedOrigins []string,
) *CustomerService {
	s := &CustomerService{
		customers:     customers,
		orders:        orders,
		subscriptions: subscriptions,
		provider:      p,
		defaultOrigin: normalizeOrigin(defaultOrigin),
		origins:       map[string]bool{},
		logger:        factory.NewModuleLogger("customer-service"),
		now:           func() time.Time { return time.Now().UTC() },
	}
	if s.defaultOrigin != "" {
		s.origins[s.defaultOrigin] = true
	}
	for _, origin := range allowedOrigins {
		if normalized := normalizeOrigin(origin); normalized != "" {
			s.origins[normalized] = true
		}
	}
	return s
}

// EnsureCustomer returns the user's provider customer, creating it when
// missing. The boolean reports whether a customer was created.
func (s *CustomerService) EnsureCustomer(ctx context.Context, userID, email, name string) (*entity.Customer, bool, error) {
	userID = strings.TrimSpace(userID)
	email = strings.TrimSpace(email)
	if userID == "" || email == "" {
		return nil, false, fmt.Errorf("%w: Missing required parameters: user_id and email", ErrInvalidRequest)
	}

	existing, err := s.customers.FindByUserID(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	created, err := s.provider.CreateCustomer(ctx, &provider.CustomerInput{
		Email: email,
		Name:  name,
		Metadata: map[string]string{
			"user_id": userID,
			"source":  "zenia_app",
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}

	now := s.now()
	customer := &entity.Customer{
		UserID:     userID,
		CustomerID: created.ID,
		Email:      email,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		l := s.logger.WithField("customer_id", created.ID)
		if delErr := s.provider.DeleteCustomer(ctx, created.ID); delErr != nil {
			l.WithError(delErr).Error("Cleanup of provider customer failed")
		} else {
			l.Info("Cleaned up provider customer")
		}

		if errors.Is(err, repository.ErrCustomerAlreadyExists) {
			winner, findErr := s.customers.FindByUserID(ctx, userID)
			if findErr == nil && winner != nil {
				return winner, false, nil
			}
		}
		return nil, false, fmt.Errorf("save customer: %w", err)
	}

	s.logger.WithFields(logrus.Fields{"user_id": userID, "customer_id": created.ID}).Info("Customer created")
	return customer, true, nil
}

func (s *CustomerService) ListPaymentMethods(ctx context.Context, userID string) (*PaymentMethods, error) {
	customer, err := s.customers.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return &PaymentMethods{Message: MessageNoCustomer}, nil
	}

	remote, err := s.provider.GetCustomer(ctx, customer.CustomerID)
	if err != nil {
		if errors.Is(err, provider.ErrResourceMissing) {
			return &PaymentMethods{Message: MessageCustomerDeleted}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	if remote.Deleted {
		return &PaymentMethods{Message: MessageCustomerDeleted}, nil
	}

	out := &PaymentMethods{
		CustomerID:             customer.CustomerID,
		DefaultPaymentMethodID: remote.DefaultPaymentMethodID,
		Methods:                make([]*provider.PaymentMethod, 0),
	}
	for _, methodType := range listedPaymentMethodTypes {
		items, err := s.provider.ListPaymentMethods(ctx, customer.CustomerID, methodType)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
		}
		out.Methods = append(out.Methods, items...)
	}
	return out, nil
}

func (s *CustomerService) SetDefaultPaymentMethod(ctx context.Context, userID, paymentMethodID string) error {
	customer, err := s.ownedPaymentMethod(ctx, userID, paymentMethodID)
	if err != nil {
		return err
	}
	if err := s.provider.SetDefaultPaymentMethod(ctx, customer.CustomerID, paymentMethodID); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	return nil
}

func (s *CustomerService) DetachPaymentMethod(ctx context.Context, userID, paymentMethodID string) error {
	if _, err := s.ownedPaymentMethod(ctx, userID, paymentMethodID); err != nil {
		return err
	}
	if err := s.provider.DetachPaymentMethod(ctx, paymentMethodID); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	return nil
}

// CreateSetupSession opens a hosted page for saving a new card. Redirects go
// back to origin, or to the configured default when origin is not usable.
func (s *CustomerService) CreateSetupSession(ctx context.Context, userID, origin string) (*provider.SetupSession, error) {
	customer, err := s.customers.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, ErrCustomerNotFound
	}

	base := s.resolveOrigin(origin)
	session, err := s.provider.CreateSetupSession(ctx, &provider.SetupSessionInput{
		CustomerID: customer.CustomerID,
		SuccessURL: base + "/?page=dashboard&setup=success",
		CancelURL:  base + "/?page=dashboard&setup=cancel",
		Metadata: map[string]string{
			"user_id": userID,
			"purpose": "add_payment_method",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	return session, nil
}

// DeleteBillingAccount removes everything billing related for the user.
// Provider cleanup is best effort; local rows are always deleted.
func (s *CustomerService) DeleteBillingAccount(ctx context.Context, userID string) error {
	customer, err := s.customers.FindByUserID(ctx, userID)
	if err != nil {
		return err
	}
	if customer == nil {
		return nil
	}

	l := s.logger.WithFields(logrus.Fields{"user_id": userID, "customer_id": customer.CustomerID})
	if err := s.cleanupProviderCustomer(ctx, customer.CustomerID); err != nil {
		l.WithError(err).Error("Provider cleanup failed, continuing with local deletion")
	}

	if err := s.subscriptions.DeleteByCustomerID(ctx, customer.CustomerID); err != nil {
		return fmt.Errorf("delete subscriptions: %w", err)
	}
	deletedOrders, err := s.orders.DeleteByCustomerID(ctx, customer.CustomerID)
	if err != nil {
		return fmt.Errorf("delete orders: %w", err)
	}
	if err := s.customers.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}

	l.WithField("deleted_orders", deletedOrders).Info("Billing account deleted")
	return nil
}

func (s *CustomerService) cleanupProviderCustomer(ctx context.Context, customerID string) error {
	subscriptionIDs, err := s.provider.ListActiveSubscriptionIDs(ctx, customerID)
	if err != nil {
		return err
	}
	for _, id := range subscriptionIDs {
		if err := s.provider.CancelSubscription(ctx, id); err != nil {
			return err
		}
	}

	cards, err := s.provider.ListPaymentMethods(ctx, customerID, "card")
	if err != nil {
		return err
	}
	for _, pm := range cards {
		if err := s.provider.DetachPaymentMethod(ctx, pm.ID); err != nil {
			return err
		}
	}

	return s.provider.DeleteCustomer(ctx, customerID)
}

func (s *CustomerService) ownedPaymentMethod(ctx context.Context, userID, paymentMethodID string) (*entity.Customer, error) {
	if strings.TrimSpace(paymentMethodID) == "" {
		return nil, ErrInvalidRequest
	}

	customer, err := s.customers.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, ErrCustomerNotFound
	}

	pm, err := s.provider.GetPaymentMethod(ctx, paymentMethodID)
	if err != nil {
		if errors.Is(err, provider.ErrResourceMissing) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderFailure, err)
	}
	if pm.CustomerID != customer.CustomerID {
		return nil, ErrForbidden
	}
	return customer, nil
}

// resolveOrigin returns the caller's origin when it is allow-listed, so the
// setup redirects never leave the configured front-ends.
func (s *CustomerService) resolveOrigin(origin string) string {
	if normalized := normalizeOrigin(origin); normalized != "" && s.origins[normalized] {
		return normalized
	}
	if s.defaultOrigin != "" {
		return s.defaultOrigin
	}
	return "http://localhost:5173"
}

// normalizeOrigin reduces an http(s) URL to scheme://host, or "" when invalid.
func normalizeOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}
