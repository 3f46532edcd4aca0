package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MinorUnits returns the number of decimal places used by a currency
func MinorUnits(currency string) int32 {
	switch strings.ToUpper(currency) {
	case "JPY", "KRW", "VND", "CLP", "ISK":
		return 0
	case "BHD", "KWD", "OMR", "JOD", "TND":
		return 3
	default:
		return 2
	}
}

// RoundAmount rounds an amount to the minor unit of its currency
func RoundAmount(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(MinorUnits(currency))
}

// Percent returns value percent of amount, unrounded
func Percent(amount, value decimal.Decimal) decimal.Decimal {
	return amount.Mul(value).Div(hundred)
}

// Clamp bounds amount to [lo, hi]
func Clamp(amount, lo, hi decimal.Decimal) decimal.Decimal {
	if amount.LessThan(lo) {
		return lo
	}
	if amount.GreaterThan(hi) {
		return hi
	}
	return amount
}

// Day truncates t to midnight UTC of its calendar date
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NightsBetween counts the nights in [checkIn, checkOut)
func NightsBetween(checkIn, checkOut time.Time) int {
	return int(Day(checkOut).Sub(Day(checkIn)).Hours() / 24)
}

// StayDates lists every night of [checkIn, checkOut)
func StayDates(checkIn, checkOut time.Time) []time.Time {
	var dates []time.Time
	for d := Day(checkIn); d.Before(Day(checkOut)); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}
