package cdp_test

import (
	"math/big"
	"testing"

	"github.com/chinedu-ifeanyi/stable-btc/internal/cdp"
)

func TestRequiredCollateral(t *testing.T) {
	tests := []struct {
		name  string
		debt  int64
		price int64
		want  int64
		ok    bool
	}{
		{"typical", 2_000, 40_000, 750, true},
		{"price below one quote unit", 2_000, 99, 0, false},
		{"price exactly one quote unit", 2_000, 100, 300_000, true},
		{"zero price", 2_000, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := cdp.RequiredCollateral(tt.debt, tt.price)
			if got != tt.want || ok != tt.ok {
				t.Errorf("RequiredCollateral(%d, %d) = (%d, %t), want (%d, %t)",
					tt.debt, tt.price, got, ok, tt.want, tt.ok)
			}
		})
	}
}

// The price is floor-divided by 100 before the debt product is divided.
// Collapsing the two truncations into one division gives a different result;
// this test pins the order.
func TestRequiredCollateralTruncationOrder(t *testing.T) {
	got, ok := cdp.RequiredCollateral(100, 250)
	if !ok {
		t.Fatal("expected ok")
	}
	// floor(100 × 150 ÷ floor(250 ÷ 100)) = floor(15000 ÷ 2) = 7500.
	// A single division floor(100 × 150 × 100 ÷ 250) would give 6000.
	if got != 7_500 {
		t.Errorf("RequiredCollateral(100, 250) = %d, want 7500", got)
	}
}

func TestIsSufficient(t *testing.T) {
	tests := []struct {
		name       string
		collateral int64
		debt       int64
		price      int64
		want       bool
	}{
		{"zero debt always sufficient", 0, 0, 40_000, true},
		{"typical sufficient", 10_000_000, 2_000, 40_000, true},
		{"value equals required", 3, 2, 100, true},
		{"value below required", 1, 2_000, 100, false},
		{"sub-unit price never sufficient", 1_000_000, 100, 99, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cdp.IsSufficient(tt.collateral, tt.debt, tt.price)
			if got != tt.want {
				t.Errorf("IsSufficient(%d, %d, %d) = %t, want %t",
					tt.collateral, tt.debt, tt.price, got, tt.want)
			}
		})
	}
}

func TestCollateralValueDoesNotOverflow(t *testing.T) {
	collateral := int64(1) << 40
	price := int64(1) << 30
	want := new(big.Int).Lsh(big.NewInt(1), 70)
	if got := cdp.CollateralValue(collateral, price); got.Cmp(want) != 0 {
		t.Errorf("CollateralValue = %s, want %s", got, want)
	}
}

func TestMinSafetyValue(t *testing.T) {
	tests := []struct {
		debt int64
		want int64
	}{
		{100_000, 120_000},
		{99, 118}, // floor(99 × 120 ÷ 100)
		{5, 6},
		{0, 0},
	}
	for _, tt := range tests {
		if got := cdp.MinSafetyValue(tt.debt); got != tt.want {
			t.Errorf("MinSafetyValue(%d) = %d, want %d", tt.debt, got, tt.want)
		}
	}
}

func TestIsLiquidatable(t *testing.T) {
	tests := []struct {
		name       string
		collateral int64
		debt       int64
		price      int64
		want       bool
	}{
		{"zero debt never liquidatable", 100, 0, 1, false},
		{"value below threshold", 119, 100, 1, true},
		{"value at threshold is safe", 120, 100, 1, false},
		{"value above threshold", 121, 100, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cdp.IsLiquidatable(tt.collateral, tt.debt, tt.price)
			if got != tt.want {
				t.Errorf("IsLiquidatable(%d, %d, %d) = %t, want %t",
					tt.collateral, tt.debt, tt.price, got, tt.want)
			}
		})
	}
}

func TestPenaltyAmount(t *testing.T) {
	tests := []struct {
		collateral int64
		want       int64
	}{
		{100, 10},
		{99, 9}, // floors
		{9, 0},
		{0, 0},
	}
	for _, tt := range tests {
		if got := cdp.PenaltyAmount(tt.collateral); got != tt.want {
			t.Errorf("PenaltyAmount(%d) = %d, want %d", tt.collateral, got, tt.want)
		}
	}
}

func TestCollateralRatioPercent(t *testing.T) {
	tests := []struct {
		name       string
		collateral int64
		debt       int64
		price      int64
		want       int64
		ok         bool
	}{
		{"two hundred percent", 10_000_000, 2_000, 40_000, 200, true},
		{"floors fractional percent", 100_000_000, 10_000, 12_345, 123, true},
		{"zero debt undefined", 100_000_000, 0, 40_000, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := cdp.CollateralRatioPercent(tt.collateral, tt.debt, tt.price)
			if got != tt.want || ok != tt.ok {
				t.Errorf("CollateralRatioPercent(%d, %d, %d) = (%d, %t), want (%d, %t)",
					tt.collateral, tt.debt, tt.price, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestAccruedInterest(t *testing.T) {
	tests := []struct {
		name            string
		debt            int64
		blocks          int64
		rate            int64
		rateDenominator int64
		want            int64
	}{
		{"typical", 1_000_000, 1_000, 1, 1_000_000, 1_000},
		{"floors to zero at small debt", 999, 1, 1, 1_000_000, 0},
		{"zero debt", 0, 1_000, 1, 1_000_000, 0},
		{"zero blocks", 1_000_000, 0, 1, 1_000_000, 0},
		{"zero rate", 1_000_000, 1_000, 0, 1_000_000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cdp.AccruedInterest(tt.debt, tt.blocks, tt.rate, tt.rateDenominator)
			if got != tt.want {
				t.Errorf("AccruedInterest(%d, %d, %d, %d) = %d, want %d",
					tt.debt, tt.blocks, tt.rate, tt.rateDenominator, got, tt.want)
			}
		})
	}
}
