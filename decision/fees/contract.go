package fees

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"portcall-cost/pkg/units"
)

// ContractKey is the multiplier-map key recorded by the overlay.
const ContractKey = "contract"

// applyContract adjusts every calculation in place for the engine's contract
// profile. A calculation already carrying the contract key is left alone, so
// running the overlay again over the same slice changes nothing.
func (e *Engine) applyContract(ctx context.Context, calcs []FeeCalculation, on time.Time, portCode string) error {
	if e.contractProfile == "" {
		return nil
	}
	for i := range calcs {
		c := &calcs[i]
		if c.ManualEntry {
			continue
		}
		if _, done := c.Multipliers[ContractKey]; done {
			continue
		}
		adj, err := e.contractAdjustment(ctx, c.Code, on, portCode)
		if err != nil {
			return err
		}
		if adj == nil {
			continue
		}
		offset := decimal.Zero
		if adj.FixedOffset.Valid {
			offset = adj.FixedOffset.Decimal
		}
		adjust := func(amount decimal.Decimal) decimal.Decimal {
			out := units.Money(amount.Mul(adj.Multiplier)).Add(units.Money(offset))
			if out.IsNegative() {
				return decimal.Zero
			}
			return out
		}

		if c.Multipliers == nil {
			c.Multipliers = map[string]decimal.Decimal{}
		}
		c.Multipliers[ContractKey] = adj.Multiplier
		c.FinalAmount = adjust(c.FinalAmount)
		if c.EstimatedRange != nil {
			c.EstimatedRange = &Range{Low: adjust(c.EstimatedRange.Low), High: adjust(c.EstimatedRange.High)}
		}
		note := fmt.Sprintf("contract %s ×%s", e.contractProfile, adj.Multiplier.String())
		if !offset.IsZero() {
			note += fmt.Sprintf(" offset $%s", units.MoneyString(offset))
		}
		c.Details += "; " + note
		if c.Facts != nil {
			c.Facts["contract_profile"] = e.contractProfile
		}
	}
	return nil
}
