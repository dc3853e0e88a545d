package server

import (
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"CurveBank/internal/observability"
)

// GRPCServer serves the standard gRPC health protocol plus reflection,
// for load balancers and infra tooling that probe over gRPC. The
// operation API itself is HTTP JSON.
type GRPCServer struct {
	srv      *grpc.Server
	healthSv *health.Server
	addr     string
	checker  *observability.HealthChecker
	log      zerolog.Logger
}

func NewGRPCServer(addr string, checker *observability.HealthChecker, logger zerolog.Logger) *GRPCServer {
	srv := grpc.NewServer()
	healthSv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSv)
	reflection.Register(srv)

	return &GRPCServer{
		srv:      srv,
		healthSv: healthSv,
		addr:     addr,
		checker:  checker,
		log:      logger,
	}
}

// Start listens and serves until Stop. Blocking.
func (g *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", g.addr)
	if err != nil {
		return err
	}
	g.syncHealth()
	g.log.Info().Str("addr", g.addr).Msg("gRPC server listening")
	return g.srv.Serve(lis)
}

// syncHealth mirrors the HTTP readiness state into the gRPC health
// service.
func (g *GRPCServer) syncHealth() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if g.checker.IsReady() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.healthSv.SetServingStatus("", status)
}

// SetReady updates both health surfaces at once.
func (g *GRPCServer) SetReady(ready bool) {
	g.checker.SetReady(ready)
	g.syncHealth()
}

func (g *GRPCServer) Stop() {
	g.healthSv.Shutdown()
	g.srv.GracefulStop()
}
