package grpcx

import (
	"context"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/tenantbook/libs/httpx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// RequestIDMetadataKey is the lowercase metadata key for request ids.
const RequestIDMetadataKey = "x-request-id"

// UnaryServerRequestIDInterceptor reuses the caller's request id (or mints
// one), echoes it in response headers and stores it where httpx-based
// loggers look for it.
func UnaryServerRequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		var id string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if vals := md.Get(RequestIDMetadataKey); len(vals) > 0 {
				id = vals[0]
			}
		}
		if id == "" {
			id = uuid.NewString()
		}
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDMetadataKey, id))
		return handler(httpx.ContextWithRequestID(ctx, id), req)
	}
}
