package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-fps-payments/app/factory"
	"github.com/vibast-solutions/ms-go-fps-payments/app/queue"
	"github.com/vibast-solutions/ms-go-fps-payments/config"
)

var (
	workerMode bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run background maintenance jobs",
}

var webhooksCmd = &cobra.Command{
	Use:   "webhooks",
	Short: "Run webhook event related commands",
}

var webhooksProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Consume the shared webhook queue until stopped",
	Long:  "Run webhook workers against the redis queue. Requires WEBHOOK_QUEUE_DRIVER=redis.",
	Run:   runWebhookWorkers,
}

var webhooksRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Process failed and stale webhook events that are due",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"webhooks_retry",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.WebhookRetryInterval },
			func(app *application, ctx context.Context) error {
				return app.webhooks.RunWebhookRetryBatch(ctx)
			},
		)
	},
}

var webhooksPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete processed and skipped webhook events past retention",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"webhooks_prune",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.WebhookPruneInterval },
			func(app *application, ctx context.Context) error {
				return app.webhooks.RunWebhookPruneBatch(ctx)
			},
		)
	},
}

var subscriptionsCmd = &cobra.Command{
	Use:   "subscriptions",
	Short: "Run subscription related commands",
}

var subscriptionsResyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Re-read subscriptions that were not synced recently",
	Run: func(_ *cobra.Command, _ []string) {
		runCommand(
			"subscriptions_resync",
			func(cfg *config.Config) time.Duration { return cfg.Jobs.SubscriptionResyncEvery },
			func(app *application, ctx context.Context) error {
				return app.subscriptions.RunSubscriptionResyncBatch(ctx)
			},
		)
	},
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(webhooksCmd)
	jobsCmd.AddCommand(subscriptionsCmd)
	webhooksCmd.AddCommand(webhooksProcessCmd)
	webhooksCmd.AddCommand(webhooksRetryCmd)
	webhooksCmd.AddCommand(webhooksPruneCmd)
	subscriptionsCmd.AddCommand(subscriptionsResyncCmd)

	rootCmd.PersistentFlags().BoolVar(&workerMode, "worker", false, "Run continuously using configured interval")
}

func runWebhookWorkers(_ *cobra.Command, _ []string) {
	app, cleanup := mustCreateApplication()
	defer cleanup()

	if app.cfg.Webhooks.QueueDriver != config.QueueDriverRedis {
		logrus.Fatal("jobs webhooks process requires WEBHOOK_QUEUE_DRIVER=redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := queue.NewPool(app.queue, app.webhooks.Process, app.cfg.Webhooks.Workers, factory.NewModuleLogger("webhook-worker"))
	pool.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.WithField("job", "webhooks_process").Info("Worker shutdown requested")

	cancel()
	pool.Wait()
}

func runCommand(
	name string,
	intervalResolver func(cfg *config.Config) time.Duration,
	fn func(app *application, ctx context.Context) error,
) {
	app, cleanup := mustCreateApplication()
	defer cleanup()

	if workerMode {
		runWorker(name, intervalResolver(app.cfg), app, fn)
		return
	}

	ctx := context.Background()
	runJob(name, func() error { return fn(app, ctx) })
}

func runWorker(
	name string,
	interval time.Duration,
	app *application,
	fn func(app *application, ctx context.Context) error,
) {
	if interval <= 0 {
		logrus.WithField("job", name).Fatal("invalid worker interval")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runJob(name, func() error { return fn(app, ctx) })

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case <-quit:
			logrus.WithField("job", name).Info("Worker shutdown requested")
			return
		case <-ticker.C:
			runJob(name, func() error { return fn(app, ctx) })
		}
	}
}

func runJob(name string, fn func() error) {
	start := time.Now()
	err := fn()
	latency := time.Since(start)
	if err != nil {
		logrus.WithError(err).WithField("job", name).WithField("latency", latency.String()).Error("job_failed")
		return
	}
	logrus.WithField("job", name).WithField("latency", latency.String()).Info("job_completed")
}
