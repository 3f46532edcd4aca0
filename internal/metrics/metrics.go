package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pricing metrics
	PriceCalculations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_calculations_total",
			Help: "Total number of price calculations",
		},
		[]string{"result"},
	)

	PriceCalculationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "price_calculation_duration_seconds",
			Help:    "Price calculation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PriceCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_cache_lookups_total",
			Help: "Total number of price cache lookups",
		},
		[]string{"outcome"},
	)

	// Booking metrics
	BookingsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Total number of bookings created",
		},
		[]string{"property_id"},
	)

	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Total number of booking status transitions",
		},
		[]string{"from", "to"},
	)

	BookingAmount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "booking_amount",
			Help:    "Booking total amount distribution",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 50000},
		},
		[]string{"currency"},
	)

	// Payment metrics
	PaymentOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_operations_total",
			Help: "Total number of payment gateway operations",
		},
		[]string{"operation", "status"},
	)

	PaymentOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_operation_duration_seconds",
			Help:    "Payment gateway call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	RefundsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refunds_processed_total",
			Help: "Total number of refund attempts",
		},
		[]string{"status"},
	)

	// Notification metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of booking notifications",
		},
		[]string{"type", "status"},
	)

	SweeperActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_sweeper_actions_total",
			Help: "Total number of bookings changed by the lifecycle sweeper",
		},
		[]string{"action"},
	)

	PaymentBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "payment_breaker_state",
			Help: "Payment gateway circuit breaker state (0 closed, 1 open, 2 half-open)",
		},
		[]string{"breaker"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"},
	)
)

// RecordPriceCalculation records a finished price calculation
func RecordPriceCalculation(result string, duration time.Duration) {
	PriceCalculations.WithLabelValues(result).Inc()
	PriceCalculationDuration.Observe(duration.Seconds())
}

// RecordCacheLookup records a price cache hit, miss or error
func RecordCacheLookup(outcome string) {
	PriceCacheLookups.WithLabelValues(outcome).Inc()
}

// RecordBookingCreated records a new booking
func RecordBookingCreated(propertyID, currency string, amount float64) {
	BookingsCreated.WithLabelValues(propertyID).Inc()
	BookingAmount.WithLabelValues(currency).Observe(amount)
}

// RecordTransition records a booking status change
func RecordTransition(from, to string) {
	BookingTransitions.WithLabelValues(from, to).Inc()
}

// RecordPaymentOperation records a payment gateway call
func RecordPaymentOperation(operation, status string, duration time.Duration) {
	PaymentOperations.WithLabelValues(operation, status).Inc()
	PaymentOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRefund records a refund attempt outcome
func RecordRefund(status string) {
	RefundsProcessed.WithLabelValues(status).Inc()
}

// RecordNotification records a notification dispatch
func RecordNotification(notificationType, status string) {
	NotificationsSent.WithLabelValues(notificationType, status).Inc()
}

// RecordSweeperAction records bookings changed by the sweeper
func RecordSweeperAction(action string, count int) {
	SweeperActions.WithLabelValues(action).Add(float64(count))
}

// RecordBreakerState records the current state of a named circuit breaker
func RecordBreakerState(name string, state int) {
	PaymentBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordError records an error
func RecordError(errorType, component string) {
	ErrorsTotal.WithLabelValues(errorType, component).Inc()
}
