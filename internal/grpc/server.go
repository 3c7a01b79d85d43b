// Package grpc exposes the standard gRPC health service. The status follows the
// record store: SERVING while it answers pings, NOT_SERVING otherwise.
package grpc

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is reported next to the overall ("") status.
const ServiceName = "installation.v1.InstallationService"

const defaultInterval = 10 * time.Second

// Deps: зависимости gRPC-сервера.
type Deps struct {
	Ping     func(ctx context.Context) error
	Logger   *zap.Logger
	Interval time.Duration
}

type Server struct {
	Deps
	srv    *grpc.Server
	health *health.Server
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Interval <= 0 {
		deps.Interval = defaultInterval
	}
	s := &Server{Deps: deps, srv: grpc.NewServer(), health: health.NewServer()}
	healthpb.RegisterHealthServer(s.srv, s.health)
	reflection.Register(s.srv)
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Check pings the store once and publishes the result.
func (s *Server) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if s.Ping != nil {
		if err := s.Ping(ctx); err != nil {
			s.Logger.Warn("grpc health: store ping failed", zap.Error(err))
			s.set(healthpb.HealthCheckResponse_NOT_SERVING)
			return false
		}
	}
	s.set(healthpb.HealthCheckResponse_SERVING)
	return true
}

// Watch re-checks every Interval until ctx is done.
func (s *Server) Watch(ctx context.Context) {
	s.Check(ctx)
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Check(ctx)
		}
	}
}

func (s *Server) Serve(lis net.Listener) error { return s.srv.Serve(lis) }

// GracefulStop marks the service as going away and drains open calls.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}

func (s *Server) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}
