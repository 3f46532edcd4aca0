package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/jia-app/hotelservice/internal/config"
	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/metrics"
	"github.com/jia-app/hotelservice/internal/server/hotelapi"
)

func healthStatus(t *testing.T, s *GRPCServer) grpc_health_v1.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.healthServer.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	return resp.Status
}

func TestNewGRPCServer(t *testing.T) {
	server := NewGRPCServer(config.GRPCConfig{Address: ":0"}, nil, nil)

	require.NotNil(t, server)
	require.NotNil(t, server.GetServer())
	require.NotNil(t, server.healthServer)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, healthStatus(t, server))
}

func TestCheckDependencies(t *testing.T) {
	var redisErr error
	checks := map[string]metrics.HealthCheck{
		"store": func(ctx context.Context) error { return nil },
		"redis": func(ctx context.Context) error { return redisErr },
	}
	server := NewGRPCServer(config.GRPCConfig{Address: ":0"}, checks, nil)

	assert.True(t, server.checkDependencies(context.Background()))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, healthStatus(t, server))

	redisErr = errors.New("connection refused")
	assert.False(t, server.checkDependencies(context.Background()))
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, healthStatus(t, server))
}

func TestHealthMonitoring(t *testing.T) {
	server := NewGRPCServer(config.GRPCConfig{Address: ":0"}, map[string]metrics.HealthCheck{
		"store": func(ctx context.Context) error { return nil },
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	server.StartHealthMonitoring(ctx)

	assert.Eventually(t, func() bool {
		return healthStatus(t, server) == grpc_health_v1.HealthCheckResponse_SERVING
	}, time.Second, 10*time.Millisecond)
}

func TestServeAndShutdown(t *testing.T) {
	server := NewGRPCServer(config.GRPCConfig{Address: "127.0.0.1:0"}, nil, nil)
	server.checkDependencies(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	require.Eventually(t, func() bool { return server.Addr() != nil }, time.Second, 10*time.Millisecond)

	conn, err := grpc.NewClient(server.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

type stubPricer struct{}

func (stubPricer) CalculatePrice(ctx context.Context, req domain.PriceRequest) (*domain.PriceCalculationResult, error) {
	if !req.CheckOut.After(req.CheckIn) {
		return nil, domain.NewValidationError("checkOutDate", "Check-out must be after check-in")
	}
	return &domain.PriceCalculationResult{
		PropertyID:  req.PropertyID,
		RoomTypeID:  req.RoomTypeID,
		Currency:    "USD",
		TotalAmount: decimal.NewFromInt(200),
	}, nil
}

func TestServeHotelService(t *testing.T) {
	server := NewGRPCServer(config.GRPCConfig{Address: "127.0.0.1:0"}, nil, nil)
	server.RegisterService(&hotelapi.ServiceDesc, hotelapi.NewServer(hotelapi.Backends{Pricer: stubPricer{}}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	defer func() {
		cancel()
		<-done
	}()
	require.Eventually(t, func() bool { return server.Addr() != nil }, time.Second, 10*time.Millisecond)

	conn, err := grpc.NewClient(server.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(hotelapi.CodecName)))
	require.NoError(t, err)
	defer conn.Close()

	checkIn := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	req := &domain.PriceRequest{PropertyID: "p1", RoomTypeID: "rt1", CheckIn: checkIn, CheckOut: checkIn.AddDate(0, 0, 2)}

	var quote domain.PriceCalculationResult
	require.NoError(t, conn.Invoke(context.Background(), hotelapi.FullMethod("CalculatePrice"), req, &quote))
	assert.Equal(t, "rt1", quote.RoomTypeID)
	assert.True(t, quote.TotalAmount.Equal(decimal.NewFromInt(200)))

	req.CheckOut = checkIn
	err = conn.Invoke(context.Background(), hotelapi.FullMethod("CalculatePrice"), req, &quote)
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "checkOutDate")

	var b domain.Booking
	err = conn.Invoke(context.Background(), hotelapi.FullMethod("GetBooking"), &hotelapi.BookingRef{BookingID: "b1"}, &b)
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}
