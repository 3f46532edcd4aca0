package billing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/circuitbreaker"
	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/retry"
)

func newTestStripe(t *testing.T, handler http.HandlerFunc) *StripeGateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(server.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewStripeGateway("sk_test_123", &stripe.Backends{API: backend, Connect: backend, Uploads: backend}, zap.NewNop())
}

func TestStripeAuthorizeUsesManualCapture(t *testing.T) {
	var gotKey, gotAmount, gotCapture string
	gw := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payment_intents", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotKey = r.Header.Get("Idempotency-Key")
		gotAmount = r.Form.Get("amount")
		gotCapture = r.Form.Get("capture_method")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","object":"payment_intent","status":"requires_capture","amount":15050,"currency":"usd"}`))
	})

	result, err := gw.Authorize(context.Background(), AuthorizeRequest{
		BookingID: "b1", Amount: decimal.RequireFromString("150.50"), Currency: "USD",
		PaymentMethodID: "pm_card_visa", IdempotencyKey: IdempotencyKey("b1", OpAuthorize),
	})
	require.NoError(t, err)
	assert.Equal(t, "booking:b1:authorize", gotKey)
	assert.Equal(t, "15050", gotAmount)
	assert.Equal(t, "manual", gotCapture)
	assert.Equal(t, domain.PaymentAuthorized, result.Status)
	assert.Equal(t, "pi_123", result.TransactionID)
	assert.True(t, result.Amount.Equal(decimal.RequireFromString("150.50")))
}

func TestStripeCardErrorIsDecline(t *testing.T) {
	gw := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
	})

	_, err := gw.Authorize(context.Background(), AuthorizeRequest{
		BookingID: "b1", Amount: decimal.NewFromInt(100), Currency: "USD", IdempotencyKey: "k",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentDeclined)
}

func TestStripeRefundUsesZeroDecimalCurrency(t *testing.T) {
	var gotAmount, gotIntent string
	gw := newTestStripe(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/refunds", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotAmount = r.Form.Get("amount")
		gotIntent = r.Form.Get("payment_intent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"re_1","object":"refund","status":"succeeded","amount":5000,"currency":"jpy"}`))
	})

	result, err := gw.Refund(context.Background(), RefundRequest{
		TransactionID: "pi_9", Amount: decimal.NewFromInt(5000), Currency: "JPY", IdempotencyKey: "booking:b9:refund",
	})
	require.NoError(t, err)
	assert.Equal(t, "5000", gotAmount)
	assert.Equal(t, "pi_9", gotIntent)
	assert.Equal(t, domain.PaymentRefunded, result.Status)
	assert.True(t, result.Amount.Equal(decimal.NewFromInt(5000)))
}

func TestMockGatewayIsIdempotent(t *testing.T) {
	gw := NewMockGateway()
	ctx := context.Background()
	req := AuthorizeRequest{BookingID: "b1", Amount: decimal.NewFromInt(10), Currency: "USD", IdempotencyKey: "booking:b1:authorize"}

	first, err := gw.Authorize(ctx, req)
	require.NoError(t, err)
	second, err := gw.Authorize(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Len(t, gw.CallsFor(OpAuthorize), 2)

	gw.FailWith(OpRefund, ErrPaymentDeclined)
	_, err = gw.Refund(ctx, RefundRequest{TransactionID: first.TransactionID, Amount: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, ErrPaymentDeclined)
}

type flakyGateway struct {
	*MockGateway
	failures atomic.Int32
	err      error
}

func (f *flakyGateway) Capture(ctx context.Context, transactionID string, amount decimal.Decimal, currency, key string) (*PaymentResult, error) {
	if f.failures.Add(-1) >= 0 {
		return nil, f.err
	}
	return f.MockGateway.Capture(ctx, transactionID, amount, currency, key)
}

func testResilientConfig() ResilientConfig {
	return ResilientConfig{
		Retry:   retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 1},
		Breaker: circuitbreaker.Config{MaxFailures: 10, Timeout: time.Minute, SuccessThreshold: 1},
	}
}

func TestResilientGatewayRetriesTransientErrors(t *testing.T) {
	flaky := &flakyGateway{MockGateway: NewMockGateway(), err: errors.New("503 service unavailable")}
	flaky.failures.Store(2)
	gw := NewResilientGateway(flaky, testResilientConfig(), zap.NewNop())

	result, err := gw.Capture(context.Background(), "pi_1", decimal.NewFromInt(50), "USD", "booking:b1:capture")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentCaptured, result.Status)
}

func TestResilientGatewayDoesNotRetryDeclines(t *testing.T) {
	flaky := &flakyGateway{MockGateway: NewMockGateway(), err: ErrPaymentDeclined}
	flaky.failures.Store(5)
	cfg := testResilientConfig()
	cfg.Breaker.MaxFailures = 1
	gw := NewResilientGateway(flaky, cfg, zap.NewNop())

	_, err := gw.Capture(context.Background(), "pi_1", decimal.NewFromInt(50), "USD", "k")
	assert.ErrorIs(t, err, ErrPaymentDeclined)
	assert.Equal(t, int32(4), flaky.failures.Load(), "declines must not be retried")
	assert.Equal(t, circuitbreaker.StateClosed, gw.BreakerStats()["payment.capture"].State)
}

func TestNewGatewaySelectsProvider(t *testing.T) {
	gw, err := NewGateway(ProviderConfig{Provider: "mock"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MockGateway{}, gw)

	_, err = NewGateway(ProviderConfig{Provider: "stripe"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewGateway(ProviderConfig{Provider: "paypal"}, zap.NewNop())
	assert.Error(t, err)
}

func TestMinorUnitConversion(t *testing.T) {
	assert.Equal(t, int64(12345), toMinorUnits(decimal.RequireFromString("123.45"), "EUR"))
	assert.Equal(t, int64(1235), toMinorUnits(decimal.RequireFromString("1234.5"), "JPY"))
	assert.Equal(t, int64(1500), toMinorUnits(decimal.RequireFromString("1.5"), "KWD"))
	assert.True(t, fromMinorUnits(12345, "EUR").Equal(decimal.RequireFromString("123.45")))
}
