package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jia-app/hotelservice/internal/domain"
)

// MockCall records one gateway call
type MockCall struct {
	Operation      string
	TransactionID  string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// MockGateway is an in-memory Gateway for development and tests. Repeated
// calls with the same idempotency key return the first result.
type MockGateway struct {
	mu      sync.Mutex
	results map[string]*PaymentResult
	calls   []MockCall

	// injected failures by operation
	errs map[string]error
}

// NewMockGateway creates a mock gateway that approves everything
func NewMockGateway() *MockGateway {
	return &MockGateway{
		results: make(map[string]*PaymentResult),
		errs:    make(map[string]error),
	}
}

// FailWith makes every following call of operation return err. A nil err
// clears the failure.
func (m *MockGateway) FailWith(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, operation)
		return
	}
	m.errs[operation] = err
}

// Calls returns the calls made so far
func (m *MockGateway) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallsFor returns the calls made for one operation
func (m *MockGateway) CallsFor(operation string) []MockCall {
	var out []MockCall
	for _, c := range m.Calls() {
		if c.Operation == operation {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockGateway) do(call MockCall, build func() *PaymentResult) (*PaymentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)

	if err := m.errs[call.Operation]; err != nil {
		return nil, err
	}
	if call.IdempotencyKey != "" {
		if prev, ok := m.results[call.IdempotencyKey]; ok {
			copied := *prev
			return &copied, nil
		}
	}
	result := build()
	if call.IdempotencyKey != "" {
		copied := *result
		m.results[call.IdempotencyKey] = &copied
	}
	return result, nil
}

func (m *MockGateway) Authorize(ctx context.Context, req AuthorizeRequest) (*PaymentResult, error) {
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than 0", ErrPaymentDeclined)
	}
	return m.do(MockCall{Operation: OpAuthorize, Amount: req.Amount, IdempotencyKey: req.IdempotencyKey}, func() *PaymentResult {
		return &PaymentResult{Status: domain.PaymentAuthorized, TransactionID: "mock_pi_" + uuid.NewString(), Amount: req.Amount}
	})
}

func (m *MockGateway) Capture(ctx context.Context, transactionID string, amount decimal.Decimal, currency, idempotencyKey string) (*PaymentResult, error) {
	return m.do(MockCall{Operation: OpCapture, TransactionID: transactionID, Amount: amount, IdempotencyKey: idempotencyKey}, func() *PaymentResult {
		return &PaymentResult{Status: domain.PaymentCaptured, TransactionID: transactionID, Amount: amount}
	})
}

func (m *MockGateway) Void(ctx context.Context, transactionID, idempotencyKey string) (*PaymentResult, error) {
	return m.do(MockCall{Operation: OpVoid, TransactionID: transactionID, IdempotencyKey: idempotencyKey}, func() *PaymentResult {
		return &PaymentResult{Status: domain.PaymentVoided, TransactionID: transactionID, Amount: decimal.Zero}
	})
}

func (m *MockGateway) Refund(ctx context.Context, req RefundRequest) (*PaymentResult, error) {
	return m.do(MockCall{Operation: OpRefund, TransactionID: req.TransactionID, Amount: req.Amount, IdempotencyKey: req.IdempotencyKey}, func() *PaymentResult {
		return &PaymentResult{Status: domain.PaymentRefunded, TransactionID: "mock_re_" + uuid.NewString(), Amount: req.Amount}
	})
}
