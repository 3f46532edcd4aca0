package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jia-app/hotelservice/internal/domain"
	"github.com/jia-app/hotelservice/internal/repository/memory"
)

func TestReadRates(t *testing.T) {
	input := `property_id,room_type_id,date,rate,currency,rate_type
p1,rt1,2027-03-01,100.50,usd,BASE
p1, rt1 ,2027-03-02,110,USD,
p1,rt1,2027-03-01,90,USD,corporate
`
	rates, err := readRates(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rates, 3)

	assert.Equal(t, "rt1", rates[1].RoomTypeID)
	assert.Equal(t, time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC), rates[0].Date)
	assert.True(t, rates[0].Rate.Equal(decimal.RequireFromString("100.50")))
	assert.Equal(t, "USD", rates[0].Currency)
	assert.Equal(t, domain.RateTypeBase, rates[1].RateType)
	assert.Equal(t, domain.RateTypeCorporate, rates[2].RateType)
}

func TestReadRates_Errors(t *testing.T) {
	tests := map[string]string{
		"bad header":    "property,room,date,rate,currency,type\n",
		"bad date":      "property_id,room_type_id,date,rate,currency,rate_type\np1,rt1,03/01/2027,100,USD,BASE\n",
		"bad rate":      "property_id,room_type_id,date,rate,currency,rate_type\np1,rt1,2027-03-01,abc,USD,BASE\n",
		"negative rate": "property_id,room_type_id,date,rate,currency,rate_type\np1,rt1,2027-03-01,-1,USD,BASE\n",
		"bad currency":  "property_id,room_type_id,date,rate,currency,rate_type\np1,rt1,2027-03-01,100,US,BASE\n",
		"bad type":      "property_id,room_type_id,date,rate,currency,rate_type\np1,rt1,2027-03-01,100,USD,WEEKEND\n",
		"short row":     "property_id,room_type_id,date,rate,currency,rate_type\np1,rt1,2027-03-01,100\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := readRates(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestImportRates(t *testing.T) {
	store := memory.NewStore()
	day := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)

	rates := make([]domain.RateRecord, 0, batchSize+3)
	for i := 0; i < batchSize+3; i++ {
		rates = append(rates, domain.RateRecord{
			PropertyID: "p1", RoomTypeID: "rt1", Date: day.AddDate(0, 0, i),
			Rate: decimal.NewFromInt(100), Currency: "USD", RateType: domain.RateTypeBase,
		})
	}

	require.NoError(t, importRates(context.Background(), store.Rates(), rates))

	stored, err := store.Rates().ListRates(context.Background(), "p1", "rt1", domain.RateTypeBase, day, day.AddDate(0, 0, batchSize+3))
	require.NoError(t, err)
	assert.Len(t, stored, batchSize+3)
}
