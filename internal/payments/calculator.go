package payments

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ComputeBankCharge derives the charge for a payment from the account's
// active config. Returns nil when there is no config or the clamped
// charge is not positive.
func ComputeBankCharge(cfg *BankChargeConfig, paymentAmount float64) *BankCharge {
	if cfg == nil || !cfg.IsActive || paymentAmount <= 0 {
		return nil
	}
	amount := decimal.NewFromFloat(paymentAmount)

	var charge decimal.Decimal
	switch cfg.ChargeType {
	case ChargeFixed:
		charge = decimal.NewFromFloat(cfg.FixedAmount)
	case ChargePercentage:
		charge = amount.Mul(decimal.NewFromFloat(cfg.PercentageRate))
	case ChargeTiered:
		charge = tieredCharge(cfg, amount)
	default:
		return nil
	}

	if cfg.MaxAmount > 0 {
		max := decimal.NewFromFloat(cfg.MaxAmount)
		if charge.GreaterThan(max) {
			charge = max
		}
	}
	min := decimal.NewFromFloat(cfg.MinAmount)
	if charge.LessThan(min) {
		charge = min
	}

	rounded := charge.Round(2)
	if !rounded.IsPositive() {
		return nil
	}
	return &BankCharge{
		Amount:           rounded.InexactFloat64(),
		ExpenseAccountID: cfg.ExpenseAccountID,
		Description:      fmt.Sprintf("Bank charge (%s)", cfg.ChargeType),
	}
}

// tieredCharge applies the rate of the bracket the payment amount falls
// into. Brackets are ordered by ascending UpTo; a zero UpTo is the
// open-ended final bracket. Without tiers the config degrades to its
// fixed amount.
func tieredCharge(cfg *BankChargeConfig, amount decimal.Decimal) decimal.Decimal {
	if len(cfg.Tiers) == 0 {
		return decimal.NewFromFloat(cfg.FixedAmount)
	}
	for _, tier := range cfg.Tiers {
		if tier.UpTo <= 0 || amount.LessThanOrEqual(decimal.NewFromFloat(tier.UpTo)) {
			return amount.Mul(decimal.NewFromFloat(tier.Rate))
		}
	}
	last := cfg.Tiers[len(cfg.Tiers)-1]
	return amount.Mul(decimal.NewFromFloat(last.Rate))
}

// ComputeWithholding evaluates every active config applicable to the
// party type. Configs below their threshold are skipped; each matching
// config contributes its own charge line.
func ComputeWithholding(cfgs []WithholdingTaxConfig, paymentAmount float64, party PartyType) []WithholdingCharge {
	if paymentAmount <= 0 {
		return nil
	}
	amount := decimal.NewFromFloat(paymentAmount)
	var out []WithholdingCharge
	for _, cfg := range cfgs {
		if !cfg.IsActive || !cfg.AppliesTo(party) {
			continue
		}
		if paymentAmount < cfg.MinThreshold {
			continue
		}
		withheld := amount.Mul(decimal.NewFromFloat(cfg.TaxRate)).Round(2)
		if !withheld.IsPositive() {
			continue
		}
		out = append(out, WithholdingCharge{
			TaxCode:          cfg.TaxCode,
			TaxName:          cfg.TaxName,
			Amount:           withheld.InexactFloat64(),
			ExpenseAccountID: cfg.ExpenseAccountID,
			PayableAccountID: cfg.PayableAccountID,
			Description:      fmt.Sprintf("Withholding tax %s", cfg.TaxCode),
		})
	}
	return out
}
