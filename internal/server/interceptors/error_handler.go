package interceptors

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/log"
)

// ErrorHandlerInterceptor converts handler errors into gRPC status errors
// without leaking infrastructure details
type ErrorHandlerInterceptor struct{}

// NewErrorHandlerInterceptor creates a new error handler interceptor
func NewErrorHandlerInterceptor() *ErrorHandlerInterceptor {
	return &ErrorHandlerInterceptor{}
}

// Unary returns a unary interceptor for error handling
func (i *ErrorHandlerInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			return resp, i.handleError(ctx, err, info.FullMethod)
		}
		return resp, nil
	}
}

// Stream returns a stream interceptor for error handling
func (i *ErrorHandlerInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		stream grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if err := handler(srv, stream); err != nil {
			return i.handleError(stream.Context(), err, info.FullMethod)
		}
		return nil
	}
}

func (i *ErrorHandlerInterceptor) handleError(ctx context.Context, err error, method string) error {
	if err == nil {
		return nil
	}

	// Already a status error
	if st, ok := status.FromError(err); ok {
		return st.Err()
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timeout")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	}

	if domain.GetDomainError(err) == nil {
		log.Error(ctx, "Unexpected error in gRPC method",
			zap.String("method", method),
			zap.Error(err))
	}
	return domain.SanitizeError(err)
}
