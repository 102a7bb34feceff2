package server

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// GRPCServer serves the standard gRPC health service plus reflection for
// orchestrator probes and grpcurl. The trading surface itself is the JSON
// API; a typed gRPC surface comes with the protobuf definitions.
type GRPCServer struct {
	srv    *grpc.Server
	health *health.Server
	log    zerolog.Logger
}

func NewGRPCServer(log zerolog.Logger) *GRPCServer {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return &GRPCServer{srv: srv, health: hs, log: log}
}

// SetServing flips the health status reported to gRPC probes.
func (g *GRPCServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	g.health.SetServingStatus("", status)
}

// Serve listens on addr and blocks until Stop.
func (g *GRPCServer) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	g.log.Info().Str("addr", addr).Msg("grpc server listening")
	return g.srv.Serve(lis)
}

// Stop gracefully drains in-flight RPCs.
func (g *GRPCServer) Stop() {
	g.srv.GracefulStop()
}
