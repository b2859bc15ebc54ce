package controller

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-fps-payments/app/factory"
	"github.com/vibast-solutions/ms-go-fps-payments/app/service"
	"github.com/vibast-solutions/ms-go-fps-payments/app/types"
)

const (
	signatureHeader    = "Stripe-Signature"
	maxWebhookBodySize = 1 << 20
)

type webhookReceiver interface {
	Receive(ctx context.Context, payload []byte, signature string) (*service.ReceiveResult, error)
}

type WebhookController struct {
	webhookService webhookReceiver
	logger         logrus.FieldLogger
}

func NewWebhookController(webhookService webhookReceiver) *WebhookController {
	return &WebhookController{
		webhookService: webhookService,
		logger:         factory.NewModuleLogger("webhook-controller"),
	}
}

// Stripe acknowledges the raw body as-is; it must not go through Bind.
func (c *WebhookController) Stripe(ctx echo.Context) error {
	signature := ctx.Request().Header.Get(signatureHeader)
	if signature == "" {
		return writeError(ctx, http.StatusBadRequest, "Missing Stripe-Signature header")
	}

	body := http.MaxBytesReader(ctx.Response(), ctx.Request().Body, maxWebhookBodySize)
	payload, err := io.ReadAll(body)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}

	result, err := c.webhookService.Receive(ctx.Request().Context(), payload, signature)
	if err != nil {
		if errors.Is(err, service.ErrSignatureInvalid) {
			factory.LoggerWithContext(c.logger, ctx).WithError(err).Warn("Webhook signature rejected")
			return writeError(ctx, http.StatusBadRequest, "Webhook signature verification failed")
		}
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error("Webhook receive failed")
		return writeError(ctx, http.StatusInternalServerError, "Webhook handler failed")
	}

	resp := &types.WebhookAckResponse{Received: true}
	switch {
	case result.Duplicate:
		resp.Status = "duplicate"
	case result.Skipped:
		resp.Status = "skipped"
	}
	return ctx.JSON(http.StatusOK, resp)
}
