package cmd

import (
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-fps-payments/app/events"
	"github.com/vibast-solutions/ms-go-fps-payments/app/factory"
	"github.com/vibast-solutions/ms-go-fps-payments/app/provider"
	"github.com/vibast-solutions/ms-go-fps-payments/app/queue"
	"github.com/vibast-solutions/ms-go-fps-payments/app/repository"
	"github.com/vibast-solutions/ms-go-fps-payments/app/service"
	"github.com/vibast-solutions/ms-go-fps-payments/config"
)

type application struct {
	cfg   *config.Config
	db    *sql.DB
	queue queue.Queue

	checkout      *service.CheckoutService
	customers     *service.CustomerService
	subscriptions *service.SubscriptionSynchronizer
	webhooks      *service.WebhookService
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}
	return cfg
}

func mustOpenDB(cfg *config.Config) *sql.DB {
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}
	return db
}

// newQueue picks the webhook queue backend. Closing the redis queue
// also closes its client.
func newQueue(cfg *config.Config) queue.Queue {
	if cfg.Webhooks.QueueDriver != config.QueueDriverRedis {
		return queue.NewMemoryQueue(cfg.Webhooks.QueueBuffer)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return queue.NewRedisQueue(client, cfg.Redis.QueueKey)
}

func newPublisher(cfg *config.Config) events.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return events.NoopPublisher{}
	}
	return events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.BillingEventsTopic, factory.NewModuleLogger("billing-events"))
}

func mustCreateApplication() (*application, func()) {
	cfg := mustLoadConfig()
	db := mustOpenDB(cfg)
	q := newQueue(cfg)
	publisher := newPublisher(cfg)

	orderRepo := repository.NewOrderRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	stripeProvider := provider.NewStripeProvider(provider.StripeConfig{
		SecretKey:                 cfg.Stripe.SecretKey,
		WebhookSecret:             cfg.Stripe.WebhookSecret,
		SignatureToleranceSeconds: cfg.Stripe.SignatureToleranceSeconds,
		HTTPTimeout:               cfg.Stripe.HTTPTimeout,
		Logger:                    factory.NewModuleLogger("stripe-provider"),
	})

	finalizer := service.NewOrderFinalizer(orderRepo, stripeProvider, publisher, cfg.Stripe.ServiceFeeTaxRateID, cfg.Checkout.Currency)
	synchronizer := service.NewSubscriptionSynchronizer(
		subscriptionRepo,
		stripeProvider,
		publisher,
		cfg.Jobs.SubscriptionResyncStale,
		cfg.Webhooks.JobBatchSize,
	)

	app := &application{
		cfg:           cfg,
		db:            db,
		queue:         q,
		checkout:      service.NewCheckoutService(stripeProvider, customerRepo, cfg.Checkout.Currency),
		customers:     service.NewCustomerService(customerRepo, orderRepo, subscriptionRepo, stripeProvider, cfg.Checkout.DefaultOrigin, cfg.Checkout.AllowedOrigins),
		subscriptions: synchronizer,
		webhooks:      service.NewWebhookService(webhookEventRepo, stripeProvider, q, finalizer, synchronizer, cfg.Webhooks),
	}

	cleanup := func() {
		if err := publisher.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close billing event publisher")
		}
		if err := q.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close webhook queue")
		}
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	return app, cleanup
}
