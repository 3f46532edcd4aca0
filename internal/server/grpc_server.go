package server

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/jia-app/hotelservice/internal/config"
	"github.com/jia-app/hotelservice/internal/metrics"
	"github.com/jia-app/hotelservice/internal/ratelimit"
	"github.com/jia-app/hotelservice/internal/server/interceptors"
)

const (
	defaultRequestTimeout = 15 * time.Second
	healthCheckInterval   = 30 * time.Second
	healthCheckTimeout    = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
)

// GRPCServer represents a gRPC server
type GRPCServer struct {
	server       *grpc.Server
	config       config.GRPCConfig
	logger       *zap.Logger
	healthServer *health.Server
	checks       map[string]metrics.HealthCheck

	mu       sync.Mutex
	listener net.Listener
}

// Option configures a GRPCServer
type Option func(*serverOptions)

type serverOptions struct {
	limiter ratelimit.RateLimiter
}

// WithRateLimiter limits unary calls per actor and method
func WithRateLimiter(limiter ratelimit.RateLimiter) Option {
	return func(o *serverOptions) { o.limiter = limiter }
}

// NewGRPCServer creates a new gRPC server instance with all interceptors.
// The server reports NOT_SERVING until every check in checks has passed once.
func NewGRPCServer(cfg config.GRPCConfig, checks map[string]metrics.HealthCheck, logger *zap.Logger, opts ...Option) *GRPCServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	var options serverOptions
	for _, opt := range opts {
		opt(&options)
	}

	recoveryInterceptor := interceptors.NewRecoveryInterceptor(logger)
	loggingInterceptor := interceptors.NewLoggingInterceptor()
	errorHandlerInterceptor := interceptors.NewErrorHandlerInterceptor()
	timeoutInterceptor := interceptors.NewTimeoutInterceptor(defaultRequestTimeout, nil)

	unaryInterceptors := []grpc.UnaryServerInterceptor{
		recoveryInterceptor.Unary(),
		loggingInterceptor.Unary(),
	}
	if options.limiter != nil {
		unaryInterceptors = append(unaryInterceptors, ratelimit.UnaryServerInterceptor(options.limiter))
		logger.Info("Rate limiting interceptor added")
	}
	unaryInterceptors = append(unaryInterceptors,
		timeoutInterceptor.Unary(),
		errorHandlerInterceptor.Unary(),
	)

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(unaryInterceptors...),
		grpc.ChainStreamInterceptor(
			recoveryInterceptor.Stream(),
			loggingInterceptor.Stream(),
			timeoutInterceptor.Stream(),
			errorHandlerInterceptor.Stream(),
		),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	if cfg.EnableReflection {
		logger.Info("Registering gRPC reflection")
		reflection.Register(server)
	}

	return &GRPCServer{
		server:       server,
		config:       cfg,
		logger:       logger,
		healthServer: healthServer,
		checks:       checks,
	}
}

// RegisterService registers a gRPC service with the server
func (s *GRPCServer) RegisterService(desc *grpc.ServiceDesc, impl interface{}) {
	s.server.RegisterService(desc, impl)
}

// GetServer returns the underlying gRPC server
func (s *GRPCServer) GetServer() *grpc.Server {
	return s.server
}

// Addr returns the bound listen address once Serve has started
func (s *GRPCServer) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// StartHealthMonitoring starts background health checks for dependencies
func (s *GRPCServer) StartHealthMonitoring(ctx context.Context) {
	go s.monitorHealth(ctx)
}

func (s *GRPCServer) monitorHealth(ctx context.Context) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	s.logger.Info("Starting health monitoring for dependencies", zap.Int("checks", len(s.checks)))
	s.checkDependencies(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Health monitoring stopped")
			return
		case <-ticker.C:
			s.checkDependencies(ctx)
		}
	}
}

// checkDependencies runs every check and sets the overall serving status
func (s *GRPCServer) checkDependencies(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var failed []string
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			s.logger.Debug("Dependency health check failed", zap.String("dependency", name), zap.Error(err))
			failed = append(failed, name)
		}
	}

	if len(failed) == 0 {
		s.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		s.logger.Debug("All dependencies healthy, setting status to SERVING")
		return true
	}

	s.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.logger.Warn("Dependencies unhealthy, setting status to NOT_SERVING", zap.Strings("failed", failed))
	return false
}

// Serve listens on the configured address and blocks until ctx is cancelled,
// then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("gRPC server starting", zap.String("address", listener.Addr().String()))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- s.server.Serve(listener)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		s.logger.Info("gRPC server shutting down")
	}

	s.healthServer.Shutdown()

	gracefulStop := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(gracefulStop)
	}()

	timer := time.NewTimer(shutdownTimeout)
	defer timer.Stop()

	select {
	case <-gracefulStop:
		s.logger.Info("gRPC server stopped gracefully")
	case <-timer.C:
		s.logger.Warn("Graceful shutdown timeout, forcing stop")
		s.server.Stop()
	}
	return nil
}
