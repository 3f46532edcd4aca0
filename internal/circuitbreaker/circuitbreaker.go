package circuitbreaker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/metrics"
)

// ErrCircuitOpen is returned without calling the gateway while a breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State of a breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker configuration
type Config struct {
	MaxFailures      int           // consecutive failures that open the circuit
	Timeout          time.Duration // how long the circuit stays open before a trial call
	SuccessThreshold int           // half-open successes needed to close again

	// IsSuccessful reports errors that belong to the caller, not the
	// downstream service (a declined card). They never count as failures.
	IsSuccessful func(err error) bool
}

// DefaultConfig returns the gateway defaults
func DefaultConfig() Config {
	return Config{
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		SuccessThreshold: 3,
	}
}

// CircuitBreaker guards one gateway operation
type CircuitBreaker struct {
	name   string
	config Config
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
}

// New creates a closed breaker
func New(name string, config Config, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.SuccessThreshold < 1 {
		config.SuccessThreshold = 1
	}
	cb := &CircuitBreaker{
		name:   name,
		config: config,
		logger: logger,
		now:    time.Now,
	}
	metrics.RecordBreakerState(name, int(StateClosed))
	return cb
}

// Execute runs fn unless the circuit is open and records the outcome
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !cb.allow() {
		return ErrCircuitOpen
	}

	err := fn()
	if err != nil && cb.config.IsSuccessful != nil && cb.config.IsSuccessful(err) {
		cb.record(nil)
	} else {
		cb.record(err)
	}
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return true
	}
	if cb.now().Sub(cb.openedAt) < cb.config.Timeout {
		return false
	}
	cb.setState(StateHalfOpen)
	return true
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		if err == nil {
			cb.failures = 0
			return
		}
		cb.failures++
		cb.logger.Warn("Payment gateway call failed",
			zap.String("breaker", cb.name),
			zap.Int("consecutive_failures", cb.failures),
			zap.Error(err))
		if cb.failures >= cb.config.MaxFailures {
			cb.setState(StateOpen)
		}

	case StateHalfOpen:
		if err != nil {
			cb.logger.Warn("Trial call failed, circuit stays open",
				zap.String("breaker", cb.name),
				zap.Error(err))
			cb.setState(StateOpen)
			return
		}
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.setState(StateClosed)
		}
	}
}

// setState must be called with mu held
func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	cb.state = to
	cb.successes = 0
	switch to {
	case StateOpen:
		cb.openedAt = cb.now()
	case StateClosed:
		cb.failures = 0
	}
	metrics.RecordBreakerState(cb.name, int(to))

	fields := []zap.Field{
		zap.String("breaker", cb.name),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
	}
	if to == StateOpen {
		cb.logger.Error("Circuit breaker opened", fields...)
	} else {
		cb.logger.Info("Circuit breaker state changed", fields...)
	}
}

// GetState returns the current state
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats is a snapshot of a breaker
type Stats struct {
	State    State
	Failures int
	OpenedAt time.Time
}

// GetStats returns a snapshot of the breaker
func (cb *CircuitBreaker) GetStats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{State: cb.state, Failures: cb.failures, OpenedAt: cb.openedAt}
}

// Manager keeps one breaker per gateway operation
type Manager struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
	logger   *zap.Logger
}

// NewManager creates an empty manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger,
	}
}

// GetOrCreate returns the breaker registered under name, creating it with
// config on first use
func (m *Manager) GetOrCreate(name string, config Config) *CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, ok := m.breakers[name]; ok {
		return cb
	}
	cb := New(name, config, m.logger)
	m.breakers[name] = cb
	return cb
}

// Names lists the registered breakers in order
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.breakers))
	for name := range m.breakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetAllStats returns a snapshot of every breaker
func (m *Manager) GetAllStats() map[string]Stats {
	m.mu.Lock()
	breakers := make(map[string]*CircuitBreaker, len(m.breakers))
	for name, cb := range m.breakers {
		breakers[name] = cb
	}
	m.mu.Unlock()

	stats := make(map[string]Stats, len(breakers))
	for name, cb := range breakers {
		stats[name] = cb.GetStats()
	}
	return stats
}
