package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

// HealthServer answers grpc.health.v1 checks for the whole process and for
// the named service. Both report NOT_SERVING while the database is unreachable.
type HealthServer struct {
	healthpb.UnimplementedHealthServer
	serviceName string
	db          pinger
	timeout     time.Duration
}

func NewHealthServer(serviceName string, db pinger) *HealthServer {
	return &HealthServer{
		serviceName: serviceName,
		db:          db,
		timeout:     2 * time.Second,
	}
}

func (s *HealthServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != s.serviceName {
		return nil, status.Error(codes.NotFound, "unknown service")
	}

	if s.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if err := s.db.PingContext(pingCtx); err != nil {
			loggerWithContext(ctx).WithError(err).Warn("Health check database ping failed")
			return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
		}
	}

	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
