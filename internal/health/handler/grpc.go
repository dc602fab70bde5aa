package handler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger reports whether a dependency is reachable (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Server publishes grpc.health.v1 status for the overall server and each registered service, and
// flips them to NOT_SERVING while the database cannot be reached.
type Server struct {
	health   *health.Server
	pinger   Pinger
	services []string
	logger   *zap.Logger
	timeout  time.Duration
	last     healthpb.HealthCheckResponse_ServingStatus
}

// NewServer returns a health server reporting for services. pinger may be nil, in which case the
// server always reports SERVING.
func NewServer(pinger Pinger, logger *zap.Logger, services ...string) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		health:   health.NewServer(),
		pinger:   pinger,
		services: services,
		logger:   logger,
		timeout:  2 * time.Second,
	}
	s.set(healthpb.HealthCheckResponse_SERVING)
	return s
}

// Register registers the grpc.health.v1.Health service on r.
func (s *Server) Register(r grpc.ServiceRegistrar) {
	healthpb.RegisterHealthServer(r, s.health)
}

// Methods returns the full unary method names of the health service.
func Methods() []string {
	out := make([]string, 0, len(healthpb.Health_ServiceDesc.Methods))
	for _, m := range healthpb.Health_ServiceDesc.Methods {
		out = append(out, "/"+healthpb.Health_ServiceDesc.ServiceName+"/"+m.MethodName)
	}
	return out
}

// Check pings the database once and updates the published status.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.pinger != nil {
		pingCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.pinger.PingContext(pingCtx)
		cancel()
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			if s.last != status {
				s.logger.Warn("health: database unreachable", zap.Error(err))
			}
		}
	}
	if status != s.last {
		s.set(status)
	}
	return status
}

// Run checks every interval until ctx is done.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		s.Check(ctx)
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Shutdown reports NOT_SERVING for everything and ignores later updates. Called before a graceful stop.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}

func (s *Server) set(status healthpb.HealthCheckResponse_ServingStatus) {
	s.last = status
	s.health.SetServingStatus("", status)
	for _, name := range s.services {
		s.health.SetServingStatus(name, status)
	}
}
