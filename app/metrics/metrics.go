package metrics

import (
	"context"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/labstack/echo/v4"
)

const queueDepthTimeout = time.Second

var (
	WebhooksReceived  = metrics.GetOrCreateCounter(`fps_webhooks_total{result="received"}`)
	WebhooksDuplicate = metrics.GetOrCreateCounter(`fps_webhooks_total{result="duplicate"}`)
	WebhooksRejected  = metrics.GetOrCreateCounter(`fps_webhooks_total{result="signature_rejected"}`)
	WebhooksSkipped   = metrics.GetOrCreateCounter(`fps_webhooks_total{result="skipped"}`)

	WebhookJobsProcessed = metrics.GetOrCreateCounter(`fps_webhook_jobs_total{result="processed"}`)
	WebhookJobsFailed    = metrics.GetOrCreateCounter(`fps_webhook_jobs_total{result="failed"}`)
	WebhookJobsExhausted = metrics.GetOrCreateCounter(`fps_webhook_jobs_total{result="max_attempts_reached"}`)
	WebhookJobDuration   = metrics.GetOrCreateHistogram(`fps_webhook_job_duration_milliseconds`)

	CheckoutSessionsCreated = metrics.GetOrCreateCounter(`fps_checkout_sessions_total{result="created"}`)
	CheckoutSessionsFailed  = metrics.GetOrCreateCounter(`fps_checkout_sessions_total{result="provider_failed"}`)

	OrdersCreated   = metrics.GetOrCreateCounter(`fps_orders_total{result="created"}`)
	OrdersDuplicate = metrics.GetOrCreateCounter(`fps_orders_total{result="duplicate"}`)

	InvoicesIssued = metrics.GetOrCreateCounter(`fps_invoices_total{result="issued"}`)
	InvoicesFailed = metrics.GetOrCreateCounter(`fps_invoices_total{result="failed"}`)

	SubscriptionsSynced     = metrics.GetOrCreateCounter(`fps_subscription_sync_total{result="synced"}`)
	SubscriptionsSyncFailed = metrics.GetOrCreateCounter(`fps_subscription_sync_total{result="failed"}`)
)

type queueLengther interface {
	Len(ctx context.Context) (int64, error)
}

// RegisterQueueDepth exposes the webhook queue length, read at scrape time.
// A queue that cannot be read reports -1.
func RegisterQueueDepth(q queueLengther) {
	metrics.GetOrCreateGauge(`fps_webhook_queue_depth`, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), queueDepthTimeout)
		defer cancel()
		n, err := q.Len(ctx)
		if err != nil {
			return -1
		}
		return float64(n)
	})
}

// Handler exposes every registered metric in Prometheus text format.
func Handler(ctx echo.Context) error {
	ctx.Response().Header().Set(echo.HeaderContentType, "text/plain; version=0.0.4; charset=utf-8")
	metrics.WritePrometheus(ctx.Response(), true)
	return nil
}
