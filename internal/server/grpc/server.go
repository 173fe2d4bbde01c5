// Package grpc serves the standard grpc.health.v1 service. The filevault
// service is SERVING while both the session and metadata stores answer.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/filevault/internal/logging"
	"github.com/dmitrijs2005/filevault/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health-checked service.
const ServiceName = "filevault"

const defaultProbeInterval = 10 * time.Second

// Prober reports store liveness; *services.StatusService implements it.
type Prober interface {
	Status(ctx context.Context) services.Status
}

type HealthServer struct {
	address  string
	health   *health.Server
	prober   Prober
	interval time.Duration
	logger   logging.Logger
}

func NewHealthServer(a string, l logging.Logger, p Prober) *HealthServer {
	s := &HealthServer{
		address:  a,
		health:   health.NewServer(),
		prober:   p,
		interval: defaultProbeInterval,
		logger:   l.With("module", "grpc_health"),
	}
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Update publishes st. It is also registered as a StatusService observer
// so every /status call refreshes the health state.
func (s *HealthServer) Update(st services.Status) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if st.Alive() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
}

func (s *HealthServer) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()
	st := s.prober.Status(ctx)
	if !st.Alive() {
		s.logger.Warn(ctx, "stores unhealthy", "redis", st.Redis, "db", st.DB)
	}
	s.Update(st)
}

func (s *HealthServer) Run(ctx context.Context) error {
	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve runs the health service on lis until ctx is cancelled.
func (s *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, s.health)

	s.probe(ctx)
	go func() {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info(ctx, "Stopping gRPC health server...")
				s.health.Shutdown()
				srv.GracefulStop()
				return
			case <-t.C:
				s.probe(ctx)
			}
		}
	}()

	s.logger.Info(ctx, "Starting gRPC health server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
