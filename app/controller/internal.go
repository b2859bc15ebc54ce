package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-fps-payments/app/entity"
	"github.com/vibast-solutions/ms-go-fps-payments/app/factory"
	"github.com/vibast-solutions/ms-go-fps-payments/app/mapper"
	"github.com/vibast-solutions/ms-go-fps-payments/app/service"
	"github.com/vibast-solutions/ms-go-fps-payments/app/types"
)

type subscriptionSyncer interface {
	Sync(ctx context.Context, customerID string) (*entity.Subscription, error)
}

type webhookReplayer interface {
	Replay(ctx context.Context, eventID string) error
}

// InternalController serves operator endpoints behind internal auth.
type InternalController struct {
	synchronizer subscriptionSyncer
	replayer     webhookReplayer
	logger       logrus.FieldLogger
}

func NewInternalController(synchronizer subscriptionSyncer, replayer webhookReplayer) *InternalController {
	return &InternalController{
		synchronizer: synchronizer,
		replayer:     replayer,
		logger:       factory.NewModuleLogger("internal-controller"),
	}
}

func (c *InternalController) SyncSubscription(ctx echo.Context) error {
	req, err := types.NewSyncSubscriptionRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	sub, err := c.synchronizer.Sync(ctx.Request().Context(), req.CustomerID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return writeError(ctx, http.StatusBadRequest, err.Error())
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).WithField("customer_id", req.CustomerID).Error("Subscription sync failed")
		return writeError(ctx, http.StatusInternalServerError, internalErrorMessage)
	}

	return ctx.JSON(http.StatusOK, &types.SubscriptionEnvelopeResponse{Subscription: mapper.SubscriptionToResponse(sub)})
}

func (c *InternalController) ReplayWebhook(ctx echo.Context) error {
	req, err := types.NewReplayWebhookRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	if err := c.replayer.Replay(ctx.Request().Context(), req.EventID); err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			return writeError(ctx, http.StatusNotFound, "webhook event not found")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).WithField("event_id", req.EventID).Error("Webhook replay failed")
		return writeError(ctx, http.StatusInternalServerError, internalErrorMessage)
	}

	return ctx.JSON(http.StatusAccepted, &types.MessageResponse{Message: "Webhook event queued"})
}
