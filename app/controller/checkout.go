package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-fps-payments/app/auth"
	"github.com/vibast-solutions/ms-go-fps-payments/app/factory"
	"github.com/vibast-solutions/ms-go-fps-payments/app/mapper"
	"github.com/vibast-solutions/ms-go-fps-payments/app/provider"
	"github.com/vibast-solutions/ms-go-fps-payments/app/service"
	"github.com/vibast-solutions/ms-go-fps-payments/app/types"
)

type checkoutService interface {
	CreateCheckoutSession(ctx context.Context, req *types.CheckoutRequest, userID string) (*provider.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*provider.SessionDetails, error)
}

type CheckoutController struct {
	checkoutService checkoutService
	logger          logrus.FieldLogger
}

func NewCheckoutController(checkoutService checkoutService) *CheckoutController {
	return &CheckoutController{
		checkoutService: checkoutService,
		logger:          factory.NewModuleLogger("checkout-controller"),
	}
}

func (c *CheckoutController) CreateSession(ctx echo.Context) error {
	req, err := types.NewCheckoutRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	userID := ""
	if user, ok := auth.UserFromContext(ctx); ok {
		userID = user.ID
	}

	session, err := c.checkoutService.CreateCheckoutSession(ctx.Request().Context(), req, userID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return writeError(ctx, http.StatusBadRequest, err.Error())
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Create checkout session failed")
		return writeError(ctx, http.StatusInternalServerError, "Failed to create checkout session")
	}

	return ctx.JSON(http.StatusOK, mapper.CheckoutSessionToResponse(session))
}

func (c *CheckoutController) LookupSession(ctx echo.Context) error {
	req, err := types.NewSessionLookupRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	details, err := c.checkoutService.GetCheckoutSession(ctx.Request().Context(), req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return writeError(ctx, http.StatusBadRequest, "Missing session_id parameter")
		case errors.Is(err, service.ErrSessionNotFound):
			return writeError(ctx, http.StatusNotFound, "Session not found")
		default:
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Retrieve checkout session failed")
			return writeError(ctx, http.StatusInternalServerError, "Failed to retrieve session")
		}
	}

	return ctx.JSON(http.StatusOK, mapper.SessionToView(details))
}
