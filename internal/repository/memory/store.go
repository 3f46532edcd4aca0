package memory

import (
	"context"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/repository"
)

type txKey struct{}

// Store is an in-memory implementation of repository.Store. Transactions are
// serialized and roll back by restoring a snapshot taken when they began.
// Writes made outside a transaction wait for the running one to finish.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	properties  map[string]domain.Property
	roomTypes   map[string]domain.RoomType
	rates       map[string]domain.RateRecord
	seasonal    map[string]domain.SeasonalRate
	dynamic     map[string]domain.DynamicPricingRule
	promotions  map[string]domain.Promotion
	redemptions map[string]map[string]int
	taxes       map[string]domain.TaxConfiguration
	occupancy   map[string]domain.OccupancyData
	bookings    map[string]domain.Booking
	history     map[string][]domain.BookingHistory
	policies    map[string]domain.CancellationPolicy
	refunds     map[string]domain.PendingRefund
	closed      bool
	now         func() time.Time
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		properties:  make(map[string]domain.Property),
		roomTypes:   make(map[string]domain.RoomType),
		rates:       make(map[string]domain.RateRecord),
		seasonal:    make(map[string]domain.SeasonalRate),
		dynamic:     make(map[string]domain.DynamicPricingRule),
		promotions:  make(map[string]domain.Promotion),
		redemptions: make(map[string]map[string]int),
		taxes:       make(map[string]domain.TaxConfiguration),
		occupancy:   make(map[string]domain.OccupancyData),
		bookings:    make(map[string]domain.Booking),
		history:     make(map[string][]domain.BookingHistory),
		policies:    make(map[string]domain.CancellationPolicy),
		refunds:     make(map[string]domain.PendingRefund),
		now:         time.Now,
	}
}

func (s *Store) Properties() repository.PropertyRepository { return s }
func (s *Store) Rates() repository.RateRepository { return s }
func (s *Store) SeasonalRates() repository.SeasonalRateRepository { return s }
func (s *Store) DynamicRules() repository.DynamicRuleRepository { return s }
func (s *Store) Promotions() repository.PromotionRepository { return s }
func (s *Store) Taxes() repository.TaxRepository { return s }
func (s *Store) Occupancy() repository.OccupancyRepository { return s }
func (s *Store) Bookings() repository.BookingRepository { return s }
func (s *Store) CancellationPolicies() repository.CancellationPolicyRepository { return s }
func (s *Store) Refunds() repository.RefundRepository { return s }

// Ping always succeeds for an open store
func (s *Store) Ping(ctx context.Context) error { return nil }

// Close marks the store closed
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type snapshot struct {
	rates       map[string]domain.RateRecord
	seasonal    map[string]domain.SeasonalRate
	dynamic     map[string]domain.DynamicPricingRule
	promotions  map[string]domain.Promotion
	redemptions map[string]map[string]int
	taxes       map[string]domain.TaxConfiguration
	bookings    map[string]domain.Booking
	history     map[string][]domain.BookingHistory
	refunds     map[string]domain.PendingRefund
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	redemptions := make(map[string]map[string]int, len(s.redemptions))
	for id, guests := range s.redemptions {
		redemptions[id] = maps.Clone(guests)
	}
	history := make(map[string][]domain.BookingHistory, len(s.history))
	for id, entries := range s.history {
		history[id] = append([]domain.BookingHistory(nil), entries...)
	}
	return snapshot{
		rates:       maps.Clone(s.rates),
		seasonal:    maps.Clone(s.seasonal),
		dynamic:     maps.Clone(s.dynamic),
		promotions:  maps.Clone(s.promotions),
		redemptions: redemptions,
		taxes:       maps.Clone(s.taxes),
		bookings:    maps.Clone(s.bookings),
		history:     history,
		refunds:     maps.Clone(s.refunds),
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates = snap.rates
	s.seasonal = snap.seasonal
	s.dynamic = snap.dynamic
	s.promotions = snap.promotions
	s.redemptions = snap.redemptions
	s.taxes = snap.taxes
	s.bookings = snap.bookings
	s.history = snap.history
	s.refunds = snap.refunds
}

// lockWrite takes the write lock. Outside a transaction it also waits for
// any running transaction so a rollback cannot undo the write.
func (s *Store) lockWrite(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		s.mu.Lock()
		return s.mu.Unlock
	}
	s.txMu.Lock()
	s.mu.Lock()
	return func() {
		s.mu.Unlock()
		s.txMu.Unlock()
	}
}

// WithinTransaction runs fn and undoes every write it made if it fails
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Seeding helpers for collaborator-owned data

// AddProperty stores a property
func (s *Store) AddProperty(p domain.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties[p.ID] = p
}

// AddRoomType stores a room type
func (s *Store) AddRoomType(rt domain.RoomType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomTypes[rt.ID] = rt
}

// SetOccupancy stores the occupancy snapshot of a night
func (s *Store) SetOccupancy(o domain.OccupancyData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.occupancy[occupancyKey(o.PropertyID, o.Date)] = o
}

// SetCancellationPolicy stores the policy of a property
func (s *Store) SetCancellationPolicy(p domain.CancellationPolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.PropertyID] = p
}

// Properties

func (s *Store) GetProperty(ctx context.Context, id string) (*domain.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetRoomType(ctx context.Context, id string) (*domain.RoomType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.roomTypes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rt, nil
}

// Rates

func rateKey(r domain.RateRecord) string {
	return strings.Join([]string{r.PropertyID, r.RoomTypeID, domain.Day(r.Date).Format(time.DateOnly), string(r.RateType)}, "|")
}

func (s *Store) ListRates(ctx context.Context, propertyID, roomTypeID string, rateType domain.RateType, from, to time.Time) ([]domain.RateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	from, to = domain.Day(from), domain.Day(to)
	var out []domain.RateRecord
	for _, r := range s.rates {
		d := domain.Day(r.Date)
		if r.PropertyID == propertyID && r.RoomTypeID == roomTypeID && r.RateType == rateType &&
			!d.Before(from) && d.Before(to) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) UpsertRates(ctx context.Context, rates []domain.RateRecord) error {
	defer s.lockWrite(ctx)()
	for _, r := range rates {
		r.Date = domain.Day(r.Date)
		s.rates[rateKey(r)] = r
	}
	return nil
}

// Seasonal rates

func (s *Store) CreateSeasonalRate(ctx context.Context, rate domain.SeasonalRate) error {
	defer s.lockWrite(ctx)()
	if _, exists := s.seasonal[rate.ID]; exists {
		return repository.ErrDuplicate
	}
	s.seasonal[rate.ID] = rate
	return nil
}

func (s *Store) UpdateSeasonalRate(ctx context.Context, rate domain.SeasonalRate) error {
	defer s.lockWrite(ctx)()
	if _, exists := s.seasonal[rate.ID]; !exists {
		return repository.ErrNotFound
	}
	s.seasonal[rate.ID] = rate
	return nil
}

func (s *Store) DeleteSeasonalRate(ctx context.Context, id string) error {
	defer s.lockWrite(ctx)()
	if _, exists := s.seasonal[id]; !exists {
		return repository.ErrNotFound
	}
	delete(s.seasonal, id)
	return nil
}

func (s *Store) GetSeasonalRate(ctx context.Context, id string) (*domain.SeasonalRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.seasonal[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s *Store) ListSeasonalRates(ctx context.Context, propertyID string) ([]domain.SeasonalRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterSorted(s.seasonal, func(r domain.SeasonalRate) bool { return r.PropertyID == propertyID },
		func(r domain.SeasonalRate) string { return r.ID }), nil
}

// Dynamic rules

func (s *Store) CreateDynamicRule(ctx context.Context, rule domain.DynamicPricingRule) error {
	defer s.lockWrite(ctx)()
	if _, exists := s.dynamic[rule.ID]; exists {
		return repository.ErrDuplicate
	}
	s.dynamic[rule.ID] = rule
	return nil
}

func (s *Store) UpdateDynamicRule(ctx context.Context, rule domain.DynamicPricingRule) error {
	defer s.lockWrite(ctx)()
	if _, exists := s.dynamic[rule.ID]; !exists {
		return repository.ErrNotFound
	}
	s.dynamic[rule.ID] = rule
	return nil
}

func (s *Store) DeleteDynamicRule(ctx context.Context, id string) error {
	defer s.lockWrite(ctx)()
	if _, exists := s.dynamic[id]; !exists {
		return repository.ErrNotFound
	}
	delete(s.dynamic, id)
	return nil
}

func (s *Store) GetDynamicRule(ctx context.Context, id string) (*domain.DynamicPricingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.dynamic[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s *Store) ListDynamicRules(ctx context.Context, propertyID string) ([]domain.DynamicPricingRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterSorted(s.dynamic, func(r domain.DynamicPricingRule) bool { return r.PropertyID == propertyID },
		func(r domain.DynamicPricingRule) string { return r.ID }), nil
}

// Promotions

func (s *Store) CreatePromotion(ctx context.Context, promotion domain.Promotion) error {
	defer s.lockWrite(ctx)()
	if _, exists := s.promotions[promotion.ID]; exists {
		return repository.ErrDuplicate
	}
	if promotion.Code != "" {
		for _, p := range s.promotions {
			if p.PropertyID == promotion.PropertyID && strings.EqualFold(p.Code, promotion.Code) {
				return repository.ErrDuplicate
			}
		}
	}
	s.promotions[promotion.ID] = promotion
	return nil
}

func (s *Store) UpdatePromotion(ctx context.Context, promotion domain.Promotion) error {
	defer s.lockWrite(ctx)()
	if _, exists := s.promotions[promotion.ID]; !exists {
		return repository.ErrNotFound
	}
	s.promotions[promotion.ID] = promotion
	return nil
}

func (s *Store) DeletePromotion(ctx context.Context, id string) error {
	defer s.lockWrite(ctx)()
	if _, exists := s.promotions[id]; !exists {
		return repository.ErrNotFound
	}
	delete(s.promotions, id)
	return nil
}

func (s *Store) GetPromotion(ctx context.Context, id string) (*domain.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.promotions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetPromotionByCode(ctx context.Context, propertyID, code string) (*domain.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.promotions {
		if p.PropertyID == propertyID && p.Code != "" && strings.EqualFold(p.Code, code) {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) ListPromotions(ctx context.Context, propertyID string) ([]domain.Promotion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterSorted(s.promotions, func(p domain.Promotion) bool { return p.PropertyID == propertyID },
		func(p domain.Promotion) string { return p.ID }), nil
}

func (s *Store) RecordRedemption(ctx context.Context, promotionID, guestID, bookingID string) error {
	defer s.lockWrite(ctx)()
	p, ok := s.promotions[promotionID]
	if !ok {
		return repository.ErrNotFound
	}
	if p.Usage.Exhausted() {
		return repository.ErrStatusConflict
	}
	p.Usage.CurrentUsage++
	s.promotions[promotionID] = p
	if s.redemptions[promotionID] == nil {
		s.redemptions[promotionID] = make(map[string]int)
	}
	s.redemptions[promotionID][guestID]++
	return nil
}

func (s *Store) CountGuestRedemptions(ctx context.Context, promotionID, guestID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.redemptions[promotionID][guestID], nil
}

// Taxes

func (s *Store) CreateTaxConfiguration(ctx context.Context, tax domain.TaxConfiguration) error {
	defer s.lockWrite(ctx)()
	if _, exists := s.taxes[tax.ID]; exists {
		return repository.ErrDuplicate
	}
	s.taxes[tax.ID] = tax
	return nil
}

func (s *Store) UpdateTaxConfiguration(ctx context.Context, tax domain.TaxConfiguration) error {
	defer s.lockWrite(ctx)()
	if _, exists := s.taxes[tax.ID]; !exists {
		return repository.ErrNotFound
	}
	s.taxes[tax.ID] = tax
	return nil
}

func (s *Store) DeleteTaxConfiguration(ctx context.Context, id string) error {
	defer s.lockWrite(ctx)()
	if _, exists := s.taxes[id]; !exists {
		return repository.ErrNotFound
	}
	delete(s.taxes, id)
	return nil
}

func (s *Store) GetTaxConfiguration(ctx context.Context, id string) (*domain.TaxConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.taxes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (s *Store) ListTaxConfigurations(ctx context.Context, propertyID string) ([]domain.TaxConfiguration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterSorted(s.taxes, func(t domain.TaxConfiguration) bool { return t.PropertyID == propertyID },
		func(t domain.TaxConfiguration) string { return t.ID }), nil
}

// Occupancy

func occupancyKey(propertyID string, date time.Time) string {
	return propertyID + "|" + domain.Day(date).Format(time.DateOnly)
}

func (s *Store) GetOccupancy(ctx context.Context, propertyID string, date time.Time) (*domain.OccupancyData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.occupancy[occupancyKey(propertyID, date)]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

// Bookings

func (s *Store) CreateBooking(ctx context.Context, booking domain.Booking) error {
	defer s.lockWrite(ctx)()
	if _, exists := s.bookings[booking.ID]; exists {
		return repository.ErrDuplicate
	}
	for _, b := range s.bookings {
		if b.ConfirmationNumber == booking.ConfirmationNumber {
			return repository.ErrDuplicate
		}
	}
	s.bookings[booking.ID] = booking.Clone()
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := b.Clone()
	return &c, nil
}

func (s *Store) GetBookingByConfirmationNumber(ctx context.Context, number string) (*domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bookings {
		if b.ConfirmationNumber == number {
			c := b.Clone()
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Store) UpdateBooking(ctx context.Context, booking domain.Booking, expectedStatus domain.BookingStatus, expectedVersion int) error {
	defer s.lockWrite(ctx)()
	current, ok := s.bookings[booking.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Status != expectedStatus || current.Version != expectedVersion {
		return repository.ErrStatusConflict
	}
	s.bookings[booking.ID] = booking.Clone()
	return nil
}

func (s *Store) UpdatePaymentStatus(ctx context.Context, id string, status domain.PaymentStatus, transactionID string) error {
	defer s.lockWrite(ctx)()
	b, ok := s.bookings[id]
	if !ok {
		return repository.ErrNotFound
	}
	b.PaymentStatus = status
	if transactionID != "" {
		b.PaymentTransactionID = transactionID
	}
	b.UpdatedAt = s.now()
	b.Version++
	s.bookings[id] = b
	return nil
}

func (s *Store) ListBookingsByStatus(ctx context.Context, status domain.BookingStatus, limit int) ([]domain.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Booking
	for _, b := range s.bookings {
		if b.Status == status {
			out = append(out, b.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BookedAt.Equal(out[j].BookedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].BookedAt.Before(out[j].BookedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AppendHistory(ctx context.Context, entry domain.BookingHistory) error {
	defer s.lockWrite(ctx)()
	s.history[entry.BookingID] = append(s.history[entry.BookingID], entry)
	return nil
}

func (s *Store) ListHistory(ctx context.Context, bookingID string) ([]domain.BookingHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.BookingHistory(nil), s.history[bookingID]...), nil
}

// Cancellation policies

func (s *Store) GetCancellationPolicy(ctx context.Context, propertyID string) (*domain.CancellationPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[propertyID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

// Refund outbox

func (s *Store) EnqueueRefund(ctx context.Context, refund domain.PendingRefund) error {
	defer s.lockWrite(ctx)()
	for _, r := range s.refunds {
		if r.IdempotencyKey == refund.IdempotencyKey {
			return repository.ErrDuplicate
		}
	}
	s.refunds[refund.ID] = refund
	return nil
}

func (s *Store) GetRefund(ctx context.Context, id string) (*domain.PendingRefund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.refunds[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s *Store) ListPendingRefunds(ctx context.Context, limit int) ([]domain.PendingRefund, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.PendingRefund
	for _, r := range s.refunds {
		if r.Status == domain.RefundPending {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkRefundSucceeded(ctx context.Context, id string) error {
	defer s.lockWrite(ctx)()
	r, ok := s.refunds[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Status = domain.RefundSucceeded
	r.Attempts++
	r.LastError = ""
	r.UpdatedAt = s.now()
	s.refunds[id] = r
	return nil
}

func (s *Store) MarkRefundAttemptFailed(ctx context.Context, id, lastError string, maxAttempts int) error {
	defer s.lockWrite(ctx)()
	r, ok := s.refunds[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Attempts++
	r.LastError = lastError
	r.UpdatedAt = s.now()
	if r.Attempts >= maxAttempts {
		r.Status = domain.RefundFailed
	}
	s.refunds[id] = r
	return nil
}

func filterSorted[T any](items map[string]T, keep func(T) bool, id func(T) string) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return id(out[i]) < id(out[j]) })
	return out
}
