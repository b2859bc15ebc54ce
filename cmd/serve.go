package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-fps-payments/app/auth"
	"github.com/vibast-solutions/ms-go-fps-payments/app/controller"
	"github.com/vibast-solutions/ms-go-fps-payments/app/factory"
	fpsgrpc "github.com/vibast-solutions/ms-go-fps-payments/app/grpc"
	"github.com/vibast-solutions/ms-go-fps-payments/app/metrics"
	"github.com/vibast-solutions/ms-go-fps-payments/app/queue"
	"github.com/vibast-solutions/ms-go-fps-payments/app/types"
	"github.com/vibast-solutions/ms-go-fps-payments/config"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start the HTTP (Echo) and gRPC servers together with the in-process webhook workers.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type httpControllers struct {
	checkout  *controller.CheckoutController
	webhooks  *controller.WebhookController
	customers *controller.CustomerController
	internal  *controller.InternalController
}

func runServe(_ *cobra.Command, _ []string) {
	app, cleanup := mustCreateApplication()
	defer cleanup()
	cfg := app.cfg

	authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
	}
	defer authGRPCClient.Close()

	internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
	echoInternalAuthMiddleware := authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
	grpcInternalAuthMiddleware := authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)

	controllers := httpControllers{
		checkout:  controller.NewCheckoutController(app.checkout),
		webhooks:  controller.NewWebhookController(app.webhooks),
		customers: controller.NewCustomerController(app.customers),
		internal:  controller.NewInternalController(app.subscriptions, app.webhooks),
	}
	supabase := auth.NewSupabaseMiddleware(cfg.Supabase.JWTSecret)

	e := setupHTTPServer(controllers, supabase, echoInternalAuthMiddleware, cfg.App.ServiceName)
	grpcSrv, lis := setupGRPCServer(cfg, fpsgrpc.NewHealthServer(cfg.App.ServiceName, app.db), grpcInternalAuthMiddleware, cfg.App.ServiceName)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	metrics.RegisterQueueDepth(app.queue)
	pool := queue.NewPool(app.queue, app.webhooks.Process, cfg.Webhooks.Workers, factory.NewModuleLogger("webhook-worker"))
	pool.Start(workerCtx)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	stopWorkers()
	pool.Wait()

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	controllers httpControllers,
	supabase *auth.SupabaseMiddleware,
	internalAuthMiddleware *authmiddleware.EchoInternalAuthMiddleware,
	appServiceName string,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	e.GET("/health", controller.Health)
	e.GET("/metrics", metrics.Handler)

	e.POST("/checkout/sessions", controllers.checkout.CreateSession, supabase.OptionalUser())
	e.POST("/checkout/sessions/lookup", controllers.checkout.LookupSession)
	e.POST("/webhooks/stripe", controllers.webhooks.Stripe)

	requireUser := supabase.RequireUser()
	e.POST("/customers", controllers.customers.CreateCustomer, requireUser)
	e.GET("/payment-methods", controllers.customers.ListPaymentMethods, requireUser)
	e.POST("/payment-methods/default", controllers.customers.SetDefaultPaymentMethod, requireUser)
	e.POST("/payment-methods/setup-session", controllers.customers.CreateSetupSession, requireUser)
	e.DELETE("/payment-methods/:id", controllers.customers.DetachPaymentMethod, requireUser)
	e.DELETE("/account/billing", controllers.customers.DeleteBillingAccount, requireUser)

	internal := e.Group("/internal", requireRequestID(), internalAuthMiddleware.RequireInternalAccess(appServiceName))
	internal.POST("/subscriptions/:customer_id/sync", controllers.internal.SyncSubscription)
	internal.POST("/webhooks/:event_id/replay", controllers.internal.ReplayWebhook)

	return e
}

// requireRequestID guards service-to-service routes, where callers always
// propagate the id.
func requireRequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			requestID := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderXRequestID))
			if requestID == "" {
				return ctx.JSON(http.StatusBadRequest, &types.ErrorResponse{Error: "x-request-id header is required"})
			}
			ctx.Response().Header().Set(echo.HeaderXRequestID, requestID)
			return next(ctx)
		}
	}
}

func setupGRPCServer(
	cfg *config.Config,
	healthServer *fpsgrpc.HealthServer,
	internalAuthMiddleware *authmiddleware.GRPCInternalAuthMiddleware,
	appServiceName string,
) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			fpsgrpc.RecoveryInterceptor(),
			fpsgrpc.RequestIDInterceptor(),
			fpsgrpc.LoggingInterceptor(),
			internalAuthMiddleware.UnaryRequireInternalAccess(appServiceName),
		),
	)
	healthpb.RegisterHealthServer(grpcSrv, healthServer)

	return grpcSrv, lis
}
