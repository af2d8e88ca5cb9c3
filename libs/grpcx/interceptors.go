package grpcx

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/tenantbook/libs/httpx"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// UnaryServerLogInterceptor logs each call and converts panics to Internal.
func UnaryServerLogInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		start := time.Now()
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("grpc panic", "method", info.FullMethod, "panic", rec)
				err = status.Error(codes.Internal, "internal error")
			}
			logger.Info("grpc request",
				"request_id", httpx.RequestIDFromContext(ctx),
				"method", info.FullMethod,
				"code", status.Code(err).String(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}()
		return handler(ctx, req)
	}
}

// NewServer builds a traced gRPC server with the standard health service
// registered. Flip serving status through the returned health server.
func NewServer(logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	base := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			UnaryServerRequestIDInterceptor(),
			UnaryServerLogInterceptor(logger),
		),
	}
	srv := grpc.NewServer(append(base, opts...)...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}
