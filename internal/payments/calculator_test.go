package payments

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeBankChargePercentageClampsToMax(t *testing.T) {
	cfg := &BankChargeConfig{
		ChargeType:       ChargePercentage,
		PercentageRate:   0.02,
		MinAmount:        1,
		MaxAmount:        8,
		ExpenseAccountID: 6300,
		IsActive:         true,
	}
	charge := ComputeBankCharge(cfg, 1000)
	require.NotNil(t, charge)
	require.Equal(t, 8.0, charge.Amount, "raw 20 clamps to the 8 ceiling")
	require.Equal(t, int64(6300), charge.ExpenseAccountID)
}

func TestComputeBankChargeFixedIgnoresAmount(t *testing.T) {
	cfg := &BankChargeConfig{
		ChargeType:  ChargeFixed,
		FixedAmount: 5,
		MinAmount:   2,
		MaxAmount:   10,
		IsActive:    true,
	}
	for _, amount := range []float64{10, 1000, 1000000} {
		charge := ComputeBankCharge(cfg, amount)
		require.NotNil(t, charge)
		require.Equal(t, 5.0, charge.Amount)
	}
}

func TestComputeBankChargeClampsToMin(t *testing.T) {
	cfg := &BankChargeConfig{
		ChargeType:     ChargePercentage,
		PercentageRate: 0.01,
		MinAmount:      3,
		IsActive:       true,
	}
	charge := ComputeBankCharge(cfg, 100)
	require.NotNil(t, charge)
	require.Equal(t, 3.0, charge.Amount, "raw 1 floors at 3")
}

func TestComputeBankChargeNilCases(t *testing.T) {
	require.Nil(t, ComputeBankCharge(nil, 1000))
	require.Nil(t, ComputeBankCharge(&BankChargeConfig{ChargeType: ChargeFixed, FixedAmount: 5}, 1000), "inactive config")
	require.Nil(t, ComputeBankCharge(&BankChargeConfig{ChargeType: ChargeFixed, IsActive: true}, 1000), "zero charge")
	require.Nil(t, ComputeBankCharge(&BankChargeConfig{ChargeType: ChargeFixed, FixedAmount: 5, IsActive: true}, 0))
}

func TestComputeBankChargeTieredBrackets(t *testing.T) {
	cfg := &BankChargeConfig{
		ChargeType: ChargeTiered,
		Tiers: []ChargeTier{
			{UpTo: 1000, Rate: 0.03},
			{UpTo: 10000, Rate: 0.02},
			{UpTo: 0, Rate: 0.01},
		},
		IsActive: true,
	}
	cases := []struct {
		amount float64
		want   float64
	}{
		{500, 15},     // first bracket
		{1000, 30},    // inclusive upper bound
		{5000, 100},   // second bracket
		{50000, 500},  // open-ended bracket
	}
	for _, tc := range cases {
		charge := ComputeBankCharge(cfg, tc.amount)
		require.NotNil(t, charge)
		require.Equal(t, tc.want, charge.Amount, "amount %.0f", tc.amount)
	}
}

func TestComputeBankChargeTieredFallsBackToFixed(t *testing.T) {
	cfg := &BankChargeConfig{
		ChargeType:  ChargeTiered,
		FixedAmount: 7,
		IsActive:    true,
	}
	charge := ComputeBankCharge(cfg, 1234)
	require.NotNil(t, charge)
	require.Equal(t, 7.0, charge.Amount, "no tiers configured degrades to fixed amount")
}

func TestComputeWithholdingThreshold(t *testing.T) {
	cfgs := []WithholdingTaxConfig{{
		TaxCode:          "WHT-S",
		TaxRate:          0.10,
		MinThreshold:     500,
		PayableAccountID: 2300,
		ExpenseAccountID: 6400,
		ApplicableTo:     AppliesToSuppliers,
		IsActive:         true,
	}}

	require.Empty(t, ComputeWithholding(cfgs, 400, PartySupplier), "below threshold emits nothing")

	charges := ComputeWithholding(cfgs, 600, PartySupplier)
	require.Len(t, charges, 1)
	require.Equal(t, 60.0, charges[0].Amount)
	require.Equal(t, int64(2300), charges[0].PayableAccountID)
}

func TestComputeWithholdingPartyFilter(t *testing.T) {
	cfgs := []WithholdingTaxConfig{
		{TaxCode: "WHT-S", TaxRate: 0.10, ApplicableTo: AppliesToSuppliers, IsActive: true},
		{TaxCode: "WHT-B", TaxRate: 0.05, ApplicableTo: AppliesToBoth, IsActive: true},
		{TaxCode: "WHT-OFF", TaxRate: 0.08, ApplicableTo: AppliesToBoth, IsActive: false},
	}

	supplier := ComputeWithholding(cfgs, 1000, PartySupplier)
	require.Len(t, supplier, 2, "each applicable config contributes a line")

	customer := ComputeWithholding(cfgs, 1000, PartyCustomer)
	require.Len(t, customer, 1)
	require.Equal(t, "WHT-B", customer[0].TaxCode)
}
