package main

import (
	"log/slog"
	"net"

	"github.com/md-rashed-zaman/pawwalk/libs/grpcx"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// grpcHealth serves the standard gRPC health protocol for the booking service.
type grpcHealth struct {
	srv    *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func newGRPCHealth(logger *slog.Logger) *grpcHealth {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcx.UnaryServerRequestIDInterceptor(),
			grpcx.UnaryServerLoggingInterceptor(logger),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &grpcHealth{srv: srv, health: hs, logger: logger}
}

func (g *grpcHealth) serve(addr, service string) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		g.logger.Error("grpc listen failed", "addr", addr, "err", err)
		return
	}
	g.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	g.health.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)
	g.logger.Info("grpc server starting", "addr", addr)
	if err := g.srv.Serve(lis); err != nil {
		g.logger.Error("grpc server error", "err", err)
	}
}

func (g *grpcHealth) stop() {
	g.health.Shutdown()
	g.srv.GracefulStop()
}
