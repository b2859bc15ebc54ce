package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

const (
	QueueDriverMemory = "memory"
	QueueDriverRedis  = "redis"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	GRPC              ServerConfig
	MySQL             MySQLConfig
	Log               LogConfig
	InternalEndpoints InternalEndpointsConfig
	Stripe            StripeConfig
	Supabase          SupabaseConfig
	Checkout          CheckoutConfig
	Webhooks          WebhooksConfig
	Redis             RedisConfig
	Kafka             KafkaConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName string
	APIKey      string
}

type ServerConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type StripeConfig struct {
	SecretKey                 string
	WebhookSecret             string
	ServiceFeeTaxRateID       string
	SignatureToleranceSeconds int64
	HTTPTimeout               time.Duration
}

type SupabaseConfig struct {
	JWTSecret string
}

type CheckoutConfig struct {
	Currency      string
	DefaultOrigin string
	// AllowedOrigins may receive setup-session redirects besides DefaultOrigin.
	AllowedOrigins []string
}

type WebhooksConfig struct {
	QueueDriver     string
	Workers         int
	QueueBuffer     int
	MaxAttempts     int32
	RetryInterval   time.Duration
	StaleProcessing time.Duration
	Retention       time.Duration
	JobBatchSize    int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	QueueKey string
}

type KafkaConfig struct {
	Brokers            []string
	BillingEventsTopic string
}

type JobsConfig struct {
	WebhookRetryInterval    time.Duration
	WebhookPruneInterval    time.Duration
	SubscriptionResyncEvery time.Duration
	SubscriptionResyncStale time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	mysqlDSN, err := normalizeMySQLDSN(os.Getenv("MYSQL_DSN"))
	if err != nil {
		return nil, err
	}

	queueDriver := strings.ToLower(getEnv("WEBHOOK_QUEUE_DRIVER", QueueDriverMemory))
	if queueDriver != QueueDriverMemory && queueDriver != QueueDriverRedis {
		return nil, errors.New("WEBHOOK_QUEUE_DRIVER must be memory or redis")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "fps-payments-service"),
			APIKey:      getEnv("APP_API_KEY", ""),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		GRPC: ServerConfig{
			Host: getEnv("GRPC_HOST", "0.0.0.0"),
			Port: getEnv("GRPC_PORT", "9090"),
		},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getMinutesEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		Stripe: StripeConfig{
			SecretKey:                 getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret:             getEnv("STRIPE_WEBHOOK_SECRET", ""),
			ServiceFeeTaxRateID:       getEnv("STRIPE_SERVICE_FEE_TAX_RATE_ID", ""),
			SignatureToleranceSeconds: int64(getIntEnv("STRIPE_SIGNATURE_TOLERANCE_SECONDS", 300)),
			HTTPTimeout:               getSecondsEnv("STRIPE_HTTP_TIMEOUT_SECONDS", 30*time.Second),
		},
		Supabase: SupabaseConfig{
			JWTSecret: getEnv("SUPABASE_JWT_SECRET", ""),
		},
		Checkout: CheckoutConfig{
			Currency:       strings.ToLower(getEnv("CHECKOUT_CURRENCY", "eur")),
			DefaultOrigin:  strings.TrimRight(getEnv("CHECKOUT_DEFAULT_ORIGIN", "http://localhost:5173"), "/"),
			AllowedOrigins: getListEnv("CHECKOUT_ALLOWED_ORIGINS"),
		},
		Webhooks: WebhooksConfig{
			QueueDriver:     queueDriver,
			Workers:         getIntEnv("WEBHOOK_WORKERS", 4),
			QueueBuffer:     getIntEnv("WEBHOOK_QUEUE_BUFFER", 256),
			MaxAttempts:     int32(getIntEnv("WEBHOOK_MAX_ATTEMPTS", 8)),
			RetryInterval:   getMinutesEnv("WEBHOOK_RETRY_INTERVAL_MINUTES", 5*time.Minute),
			StaleProcessing: getMinutesEnv("WEBHOOK_STALE_PROCESSING_MINUTES", 15*time.Minute),
			Retention:       getDaysEnv("WEBHOOK_RETENTION_DAYS", 30*24*time.Hour),
			JobBatchSize:    int32(getIntEnv("JOB_BATCH_SIZE", 100)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
			QueueKey: getEnv("REDIS_WEBHOOK_QUEUE_KEY", "fps_payments:webhook_events"),
		},
		Kafka: KafkaConfig{
			Brokers:            getListEnv("KAFKA_BROKERS"),
			BillingEventsTopic: getEnv("KAFKA_TOPIC_BILLING_EVENTS", "fps-billing-events"),
		},
		Jobs: JobsConfig{
			WebhookRetryInterval:    getMinutesEnv("JOB_WEBHOOK_RETRY_INTERVAL_MINUTES", time.Minute),
			WebhookPruneInterval:    getMinutesEnv("JOB_WEBHOOK_PRUNE_INTERVAL_MINUTES", 60*time.Minute),
			SubscriptionResyncEvery: getMinutesEnv("JOB_SUBSCRIPTION_RESYNC_INTERVAL_MINUTES", 30*time.Minute),
			SubscriptionResyncStale: getHoursEnv("SUBSCRIPTION_RESYNC_STALE_HOURS", 24*time.Hour),
		},
	}, nil
}

// normalizeMySQLDSN validates the DSN and forces parseTime, which the
// repositories rely on to scan DATETIME columns into time.Time.
func normalizeMySQLDSN(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", errors.New("MYSQL_DSN environment variable is required")
	}
	dsn, err := mysql.ParseDSN(raw)
	if err != nil {
		return "", fmt.Errorf("MYSQL_DSN is invalid: %w", err)
	}
	if dsn.ParseTime {
		return raw, nil
	}
	dsn.ParseTime = true
	return dsn.FormatDSN(), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getListEnv(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	items := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDurationEnv(key string, unit time.Duration, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return time.Duration(n) * unit
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	return getDurationEnv(key, time.Second, defaultValue)
}

func getMinutesEnv(key string, defaultValue time.Duration) time.Duration {
	return getDurationEnv(key, time.Minute, defaultValue)
}

func getHoursEnv(key string, defaultValue time.Duration) time.Duration {
	return getDurationEnv(key, time.Hour, defaultValue)
}

func getDaysEnv(key string, defaultValue time.Duration) time.Duration {
	return getDurationEnv(key, 24*time.Hour, defaultValue)
}
