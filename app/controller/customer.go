package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-fps-payments/app/auth"
	"github.com/vibast-solutions/ms-go-fps-payments/app/entity"
	"github.com/vibast-solutions/ms-go-fps-payments/app/factory"
	"github.com/vibast-solutions/ms-go-fps-payments/app/mapper"
	"github.com/vibast-solutions/ms-go-fps-payments/app/provider"
	"github.com/vibast-solutions/ms-go-fps-payments/app/service"
	"github.com/vibast-solutions/ms-go-fps-payments/app/types"
)

type customerService interface {
	EnsureCustomer(ctx context.Context, userID, email, name string) (*entity.Customer, bool, error)
	ListPaymentMethods(ctx context.Context, userID string) (*service.PaymentMethods, error)
	SetDefaultPaymentMethod(ctx context.Context, userID, paymentMethodID string) error
	DetachPaymentMethod(ctx context.Context, userID, paymentMethodID string) error
	CreateSetupSession(ctx context.Context, userID, origin string) (*provider.SetupSession, error)
	DeleteBillingAccount(ctx context.Context, userID string) error
}

type CustomerController struct {
	customerService customerService
	logger          logrus.FieldLogger
}

func NewCustomerController(customerService customerService) *CustomerController {
	return &CustomerController{
		customerService: customerService,
		logger:          factory.NewModuleLogger("customer-controller"),
	}
}

func (c *CustomerController) CreateCustomer(ctx echo.Context) error {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "Unauthorized")
	}

	req, err := types.NewCreateCustomerRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	email := req.Email
	if email == "" {
		email = user.Email
	}

	customer, created, err := c.customerService.EnsureCustomer(ctx.Request().Context(), user.ID, email, req.Name)
	if err != nil {
		return c.handleError(ctx, err, "Create customer failed")
	}

	if created {
		return ctx.JSON(http.StatusCreated, &types.CustomerResponse{CustomerID: customer.CustomerID, Message: "Customer created"})
	}
	return ctx.JSON(http.StatusOK, &types.CustomerResponse{CustomerID: customer.CustomerID, Message: "Customer already exists"})
}

func (c *CustomerController) ListPaymentMethods(ctx echo.Context) error {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "Unauthorized")
	}

	methods, err := c.customerService.ListPaymentMethods(ctx.Request().Context(), user.ID)
	if err != nil {
		return c.handleError(ctx, err, "List payment methods failed")
	}

	return ctx.JSON(http.StatusOK, mapper.PaymentMethodsToResponse(methods))
}

func (c *CustomerController) SetDefaultPaymentMethod(ctx echo.Context) error {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "Unauthorized")
	}

	req, err := types.NewSetDefaultPaymentMethodRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	if err := c.customerService.SetDefaultPaymentMethod(ctx.Request().Context(), user.ID, req.PaymentMethodID); err != nil {
		return c.handleError(ctx, err, "Set default payment method failed")
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Default payment method updated"})
}

func (c *CustomerController) DetachPaymentMethod(ctx echo.Context) error {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "Unauthorized")
	}

	req, err := types.NewDetachPaymentMethodRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	if err := c.customerService.DetachPaymentMethod(ctx.Request().Context(), user.ID, req.PaymentMethodID); err != nil {
		return c.handleError(ctx, err, "Detach payment method failed")
	}

	return ctx.JSON(http.StatusOK, &types.MessageResponse{Message: "Payment method removed"})
}

func (c *CustomerController) CreateSetupSession(ctx echo.Context) error {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "Unauthorized")
	}

	session, err := c.customerService.CreateSetupSession(ctx.Request().Context(), user.ID, ctx.Request().Header.Get(echo.HeaderOrigin))
	if err != nil {
		return c.handleError(ctx, err, "Create setup session failed")
	}

	return ctx.JSON(http.StatusOK, &types.SetupSessionResponse{URL: session.URL, SetupIntentID: session.SetupIntentID})
}

func (c *CustomerController) DeleteBillingAccount(ctx echo.Context) error {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return writeError(ctx, http.StatusUnauthorized, "Unauthorized")
	}

	if err := c.customerService.DeleteBillingAccount(ctx.Request().Context(), user.ID); err != nil {
		return c.handleError(ctx, err, "Delete billing account failed")
	}

	return ctx.JSON(http.StatusOK, &types.DeleteBillingResponse{Success: true, Message: "Billing data deleted"})
}

func (c *CustomerController) handleError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return writeError(ctx, http.StatusForbidden, "Payment method does not belong to this customer")
	case errors.Is(err, service.ErrCustomerNotFound):
		return writeError(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNotFound):
		return writeError(ctx, http.StatusNotFound, "Payment method not found")
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return writeError(ctx, http.StatusInternalServerError, internalErrorMessage)
	}
}
