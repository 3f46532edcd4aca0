package interceptors

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/jia-app/hotelservice/internal/log"
)

const (
	requestIDHeader = "x-request-id"
	actorHeader     = "x-actor"
)

// LoggingInterceptor provides request logging middleware for gRPC
type LoggingInterceptor struct{}

// NewLoggingInterceptor creates a new logging interceptor
func NewLoggingInterceptor() *LoggingInterceptor {
	return &LoggingInterceptor{}
}

// Unary returns a unary interceptor for request logging
func (i *LoggingInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		ctx = withRequestScope(ctx)

		log.Debug(ctx, "gRPC request started", zap.String("method", info.FullMethod))

		resp, err := handler(ctx, req)
		logCompletion(ctx, "gRPC request", info.FullMethod, time.Since(start), err)

		return resp, err
	}
}

// Stream returns a stream interceptor for request logging
func (i *LoggingInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		stream grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()
		ctx := withRequestScope(stream.Context())

		log.Debug(ctx, "gRPC stream started", zap.String("method", info.FullMethod))

		err := handler(srv, &wrappedServerStream{ServerStream: stream, ctx: ctx})
		logCompletion(ctx, "gRPC stream", info.FullMethod, time.Since(start), err)

		return err
	}
}

func logCompletion(ctx context.Context, kind, method string, duration time.Duration, err error) {
	if err != nil {
		st, _ := status.FromError(err)
		log.Error(ctx, kind+" failed",
			zap.String("method", method),
			zap.Duration("duration", duration),
			zap.String("code", st.Code().String()),
			zap.String("error", st.Message()))
		return
	}
	log.Info(ctx, kind+" completed",
		zap.String("method", method),
		zap.Duration("duration", duration),
		zap.String("code", codes.OK.String()))
}

// withRequestScope attaches the caller's request ID (or a fresh one) and
// actor to ctx so every log line of the call carries them.
func withRequestScope(ctx context.Context) context.Context {
	requestID := firstMetadataValue(ctx, requestIDHeader)
	if requestID == "" {
		requestID = uuid.New().String()
	}
	ctx = log.WithRequestID(ctx, requestID)

	if actor := firstMetadataValue(ctx, actorHeader); actor != "" {
		ctx = log.WithActor(ctx, actor)
	}
	return ctx
}

func firstMetadataValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

// wrappedServerStream wraps grpc.ServerStream to provide a custom context
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
