package pricing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jia-app/hotelservice/internal/domain"
)

// TaxInput is what taxes and fees are computed from
type TaxInput struct {
	// Taxable is the base amount net of discounts
	Taxable      decimal.Decimal
	CheckIn      time.Time
	Nights       int
	RoomQuantity int
	Currency     string
}

// TaxOutcome holds the added tax and fee totals and their line items.
// Inclusive lines are reported but not part of the totals.
type TaxOutcome struct {
	TaxAmount decimal.Decimal
	FeeAmount decimal.Decimal
	Taxes     []domain.LineItem
	Fees      []domain.LineItem
}

// TaxCalculator computes taxes and fees for a stay
type TaxCalculator struct{}

// NewTaxCalculator creates a tax calculator
func NewTaxCalculator() *TaxCalculator {
	return &TaxCalculator{}
}

// Calculate applies every configuration in force at check-in, in ID order
func (c *TaxCalculator) Calculate(configs []domain.TaxConfiguration, in TaxInput) TaxOutcome {
	out := TaxOutcome{TaxAmount: decimal.Zero, FeeAmount: decimal.Zero}

	ordered := make([]domain.TaxConfiguration, 0, len(configs))
	for _, cfg := range configs {
		if cfg.AppliesOn(in.CheckIn) {
			ordered = append(ordered, cfg)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	for _, cfg := range ordered {
		line := c.line(cfg, in)
		if !line.Inclusive {
			if cfg.Type == domain.TaxTypeFee {
				out.FeeAmount = out.FeeAmount.Add(line.Amount)
			} else {
				out.TaxAmount = out.TaxAmount.Add(line.Amount)
			}
		}
		if cfg.Type == domain.TaxTypeFee {
			out.Fees = append(out.Fees, line)
		} else {
			out.Taxes = append(out.Taxes, line)
		}
	}
	return out
}

func (c *TaxCalculator) line(cfg domain.TaxConfiguration, in TaxInput) domain.LineItem {
	line := domain.LineItem{
		Code:        cfg.ID,
		Description: cfg.Name,
		Inclusive:   cfg.IsInclusive,
	}

	if cfg.IsPercentage {
		taxable := decimal.Max(in.Taxable, decimal.Zero)
		var amount decimal.Decimal
		if cfg.IsInclusive {
			// share of the taxable amount that is already tax
			amount = taxable.Sub(taxable.Div(one.Add(cfg.Rate.Div(hundred))))
		} else {
			amount = domain.Percent(taxable, cfg.Rate)
		}
		line.Quantity = 1
		line.UnitAmount = cfg.Rate
		line.Amount = domain.RoundAmount(amount, in.Currency)
		return line
	}

	qty := 1
	switch cfg.ChargeBasis {
	case domain.ChargePerNight:
		qty = in.Nights
	case domain.ChargePerRoomNight:
		qty = in.Nights * max(in.RoomQuantity, 1)
	}
	line.Quantity = qty
	line.UnitAmount = cfg.Rate
	line.Amount = domain.RoundAmount(cfg.Rate.Mul(decimal.NewFromInt(int64(qty))), in.Currency)
	return line
}
