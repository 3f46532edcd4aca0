package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jia-app/hotelservice/internal/log"
)

const keyPrefix = "ratelimit:"

// RateLimiter defines the interface for rate limiting
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Counter increments a key that expires window after its first increment
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// WindowLimiter allows at most limit requests per key in each fixed window
type WindowLimiter struct {
	counter Counter
	limit   int64
	window  time.Duration
	logger  *zap.Logger
}

// NewWindowLimiter creates a fixed-window limiter
func NewWindowLimiter(counter Counter, limit int, window time.Duration, logger *zap.Logger) *WindowLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &WindowLimiter{
		counter: counter,
		limit:   int64(limit),
		window:  window,
		logger:  logger,
	}
}

// Allow checks if a request is allowed based on the rate limit
func (r *WindowLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := r.counter.Incr(ctx, keyPrefix+key, r.window)
	if err != nil {
		r.logger.Error("Failed to increment rate limit counter",
			zap.Error(err),
			zap.String("key", key))
		return false, fmt.Errorf("rate limit error: %w", err)
	}
	return count <= r.limit, nil
}

// UnaryServerInterceptor limits calls per actor and method. Calls without an
// actor are not limited, and a failing counter lets the call through.
func UnaryServerInterceptor(limiter RateLimiter) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		actor := log.ActorFromContext(ctx)
		if actor == "" {
			return handler(ctx, req)
		}

		allowed, err := limiter.Allow(ctx, actor+":"+info.FullMethod)
		if err != nil {
			log.Warn(ctx, "Rate limit check failed, allowing request",
				zap.Error(err),
				zap.String("method", info.FullMethod))
			return handler(ctx, req)
		}

		if !allowed {
			log.Warn(ctx, "Rate limit exceeded", zap.String("method", info.FullMethod))
			return nil, status.Errorf(codes.ResourceExhausted, "rate limit exceeded on %s", info.FullMethod)
		}

		return handler(ctx, req)
	}
}
