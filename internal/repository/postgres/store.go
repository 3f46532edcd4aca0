package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/repository"
)

// Schema holds the DDL of every table the store uses
//
//go:embed schema.sql
var Schema string

const uniqueViolation = "23505"

// DBTX is satisfied by both the pool and an open transaction
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type txKey struct{}

// Store represents the PostgreSQL store implementation
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ repository.Store = (*Store)(nil)

// NewStoreWithPool creates a store on an existing connection pool. The store
// owns the pool from then on and closes it in Close.
func NewStoreWithPool(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
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

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// ApplySchema creates missing tables and indexes
func (s *Store) ApplySchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema, pgx.QueryExecModeSimpleProtocol); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// WithinTransaction runs fn in a transaction. Calls nested inside fn join
// the outer transaction.
func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction carried by ctx, or the pool
func (s *Store) conn(ctx context.Context) DBTX {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// mapError translates driver errors into the repository sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrDuplicate
	}
	return err
}

// wrap maps err and adds the failed operation unless it became a sentinel
func wrap(op string, err error) error {
	mapped := mapError(err)
	if mapped == nil {
		return nil
	}
	if errors.Is(mapped, repository.ErrNotFound) || errors.Is(mapped, repository.ErrDuplicate) {
		return mapped
	}
	return fmt.Errorf("failed to %s: %w", op, mapped)
}

// affected returns ErrNotFound when a write matched no row
func affected(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func marshalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode column: %w", err)
	}
	return data, nil
}

func unmarshalJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode column: %w", err)
	}
	return nil
}

// textArray keeps NOT NULL array columns from receiving NULL
func textArray(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func utc(t *time.Time) {
	*t = t.UTC()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// Properties and room types

func (s *Store) GetProperty(ctx context.Context, id string) (*domain.Property, error) {
	var p domain.Property
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT id, name, status, currency FROM properties WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Status, &p.Currency)
	if err != nil {
		return nil, wrap("get property", err)
	}
	return &p, nil
}

func (s *Store) GetRoomType(ctx context.Context, id string) (*domain.RoomType, error) {
	var rt domain.RoomType
	err := s.conn(ctx).QueryRow(ctx,
		`SELECT id, property_id, name, is_active, max_occupancy, base_rate FROM room_types WHERE id = $1`, id,
	).Scan(&rt.ID, &rt.PropertyID, &rt.Name, &rt.IsActive, &rt.MaxOccupancy, &rt.BaseRate)
	if err != nil {
		return nil, wrap("get room type", err)
	}
	return &rt, nil
}

// Rates

func (s *Store) ListRates(ctx context.Context, propertyID, roomTypeID string, rateType domain.RateType, from, to time.Time) ([]domain.RateRecord, error) {
	rows, err := s.conn(ctx).Query(ctx, `
		SELECT property_id, room_type_id, rate_date, rate, currency, rate_type
		FROM room_rates
		WHERE property_id = $1 AND room_type_id = $2 AND rate_type = $3
		  AND rate_date >= $4 AND rate_date < $5
		ORDER BY rate_date`,
		propertyID, roomTypeID, string(rateType), domain.Day(from), domain.Day(to))
	if err != nil {
		return nil, wrap("list rates", err)
	}
	defer rows.Close()

	var out []domain.RateRecord
	for rows.Next() {
		var r domain.RateRecord
		var rt string
		if err := rows.Scan(&r.PropertyID, &r.RoomTypeID, &r.Date, &r.Rate, &r.Currency, &rt); err != nil {
			return nil, wrap("scan rate", err)
		}
		r.Date = domain.Day(r.Date)
		r.RateType = domain.RateType(rt)
		out = append(out, r)
	}
	return out, wrap("list rates", rows.Err())
}

// UpsertRates writes all records in one batch
func (s *Store) UpsertRates(ctx context.Context, rates []domain.RateRecord) error {
	if len(rates) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rates {
		batch.Queue(`
			INSERT INTO room_rates (property_id, room_type_id, rate_date, rate_type, rate, currency)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (property_id, room_type_id, rate_date, rate_type)
			DO UPDATE SET rate = EXCLUDED.rate, currency = EXCLUDED.currency`,
			r.PropertyID, r.RoomTypeID, domain.Day(r.Date), string(r.RateType), r.Rate, r.Currency)
	}

	return s.WithinTransaction(ctx, func(ctx context.Context) error {
		results := s.conn(ctx).SendBatch(ctx, batch)
		for range rates {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return wrap("upsert rate", err)
			}
		}
		return wrap("upsert rates", results.Close())
	})
}

// Occupancy

func (s *Store) GetOccupancy(ctx context.Context, propertyID string, date time.Time) (*domain.OccupancyData, error) {
	o := domain.OccupancyData{PropertyID: propertyID}
	err := s.conn(ctx).QueryRow(ctx, `
		SELECT snapshot_date, occupancy_rate, demand_score, booking_pace
		FROM occupancy_snapshots WHERE property_id = $1 AND snapshot_date = $2`,
		propertyID, domain.Day(date),
	).Scan(&o.Date, &o.OccupancyRate, &o.DemandScore, &o.BookingPace)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("get occupancy", err)
	}
	o.Date = domain.Day(o.Date)
	return &o, nil
}
