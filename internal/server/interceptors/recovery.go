package interceptors

import (
	"context"
	"runtime/debug"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RecoveryInterceptor turns handler panics into Internal errors
type RecoveryInterceptor struct {
	logger *zap.Logger
}

// NewRecoveryInterceptor creates a new recovery interceptor
func NewRecoveryInterceptor(logger *zap.Logger) *RecoveryInterceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecoveryInterceptor{logger: logger}
}

// Unary returns a unary interceptor that recovers from panics
func (i *RecoveryInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = i.recovered(info.FullMethod, p)
			}
		}()
		return handler(ctx, req)
	}
}

// Stream returns a stream interceptor that recovers from panics
func (i *RecoveryInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		stream grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = i.recovered(info.FullMethod, p)
			}
		}()
		return handler(srv, stream)
	}
}

func (i *RecoveryInterceptor) recovered(method string, p interface{}) error {
	i.logger.Error("gRPC panic recovered",
		zap.String("method", method),
		zap.Any("panic", p),
		zap.ByteString("stack", debug.Stack()))
	return status.Error(codes.Internal, "internal server error")
}
