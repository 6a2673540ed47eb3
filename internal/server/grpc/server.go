package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/edumate/internal/logging"
)

// DefaultCheckInterval is how often readiness is re-evaluated.
const DefaultCheckInterval = 15 * time.Second

// Pinger reports whether a dependency is reachable. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// GRPCServer exposes grpc.health.v1.Health. The overall status follows the
// readiness checks.
type GRPCServer struct {
	address       string
	logger        logging.Logger
	health        *health.Server
	checks        map[string]Pinger
	checkInterval time.Duration
}

func NewGRPCServer(a string, l logging.Logger, checks map[string]Pinger) *GRPCServer {
	return &GRPCServer{
		address:       a,
		logger:        l.With("module", "grpc_server"),
		health:        health.NewServer(),
		checks:        checks,
		checkInterval: DefaultCheckInterval,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())
	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoveryInterceptor, s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	s.refresh(ctx)

	go func() {
		t := time.NewTicker(s.checkInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info(ctx, "Stopping gRPC server...")
				s.health.Shutdown()
				srv.GracefulStop()
				return
			case <-t.C:
				s.refresh(ctx)
			}
		}
	}()

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

// refresh runs every readiness check and publishes the result.
func (s *GRPCServer) refresh(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING

	for name, p := range s.checks {
		cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.PingContext(cctx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			s.logger.Warn(ctx, "readiness check failed", "check", name, "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = status
		}
		s.health.SetServingStatus(name, status)
	}
	s.health.SetServingStatus("", overall)
}
