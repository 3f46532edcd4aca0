package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jia-app/hotelservice/internal/config"
	"github.com/jia-app/hotelservice/internal/db"
	"github.com/jia-app/hotelservice/internal/domain"
	sharedlog "github.com/jia-app/hotelservice/internal/log"
	"github.com/jia-app/hotelservice/internal/repository"
	"github.com/jia-app/hotelservice/internal/repository/postgres"
)

const (
	dateLayout = "2006-01-02"
	batchSize  = 500
)

var header = []string{"property_id", "room_type_id", "date", "rate", "currency", "rate_type"}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: import-rates <csv-file-path> [config.yaml]")
	}

	csvFilePath := os.Args[1]
	configPath := "config.yaml"
	if len(os.Args) > 2 {
		configPath = os.Args[2]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Postgres.DSN == "" {
		log.Fatal("postgres.dsn is required")
	}

	if err := sharedlog.Init(cfg.Log.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	ctx := context.Background()
	logger := sharedlog.L(ctx)

	dbPool, err := db.NewPool(ctx, &db.Config{
		DSN:      cfg.Postgres.DSN,
		MaxConns: cfg.Postgres.MaxConns,
	})
	if err != nil {
		log.Fatalf("Failed to create database pool: %v", err)
	}
	store := postgres.NewStoreWithPool(dbPool.Pool)
	defer store.Close()

	file, err := os.Open(csvFilePath)
	if err != nil {
		log.Fatalf("Failed to open CSV file: %v", err)
	}
	defer file.Close()

	rates, err := readRates(file)
	if err != nil {
		log.Fatalf("Failed to read rates from CSV: %v", err)
	}
	logger.Info("Loaded rates from CSV", zap.Int("count", len(rates)))

	if err := importRates(ctx, store.Rates(), rates); err != nil {
		log.Fatalf("Failed to import rates: %v", err)
	}
	logger.Info("Imported rates", zap.Int("count", len(rates)))
}

// readRates parses CSV rows into rate records. Any bad row fails the whole
// file so a partial price list is never written.
func readRates(r io.Reader) ([]domain.RateRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(header)
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, name := range header {
		if !strings.EqualFold(strings.TrimSpace(first[i]), name) {
			return nil, fmt.Errorf("unexpected header %q, want %s", strings.Join(first, ","), strings.Join(header, ","))
		}
	}

	var rates []domain.RateRecord
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record: %w", err)
		}
		rate, err := parseRate(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

func parseRate(record []string) (domain.RateRecord, error) {
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}
	if record[0] == "" || record[1] == "" {
		return domain.RateRecord{}, fmt.Errorf("property_id and room_type_id are required")
	}

	date, err := time.Parse(dateLayout, record[2])
	if err != nil {
		return domain.RateRecord{}, fmt.Errorf("invalid date %q: %w", record[2], err)
	}
	amount, err := decimal.NewFromString(record[3])
	if err != nil {
		return domain.RateRecord{}, fmt.Errorf("invalid rate %q: %w", record[3], err)
	}
	if amount.IsNegative() {
		return domain.RateRecord{}, fmt.Errorf("rate cannot be negative")
	}
	currency := strings.ToUpper(record[4])
	if len(currency) != 3 {
		return domain.RateRecord{}, fmt.Errorf("invalid currency %q", record[4])
	}

	rateType := domain.RateTypeBase
	if record[5] != "" {
		if err := rateType.UnmarshalText([]byte(strings.ToUpper(record[5]))); err != nil {
			return domain.RateRecord{}, err
		}
	}

	return domain.RateRecord{
		PropertyID: record[0],
		RoomTypeID: record[1],
		Date:       domain.Day(date),
		Rate:       amount,
		Currency:   currency,
		RateType:   rateType,
	}, nil
}

func importRates(ctx context.Context, repo repository.RateRepository, rates []domain.RateRecord) error {
	for start := 0; start < len(rates); start += batchSize {
		end := min(start+batchSize, len(rates))
		if err := repo.UpsertRates(ctx, rates[start:end]); err != nil {
			return fmt.Errorf("failed to upsert rates %d-%d: %w", start+1, end, err)
		}
	}
	return nil
}
