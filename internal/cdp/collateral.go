package cdp

import (
	"math/big"

	fpmath "github.com/chinedu-ifeanyi/stable-btc/internal/math"
)

// Pure collateralization arithmetic. Everything here floors; the slight
// under-accounting at small magnitudes is the protocol's rounding policy.

// CollateralValue returns collateral × price (satoshi × price scale).
// Callers must use a consistent fixed-point scale; no normalization happens here.
func CollateralValue(collateral, price int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(collateral), big.NewInt(price))
}

// RequiredCollateral returns floor(debt × MIN_RATIO ÷ floor(price ÷ 100)).
// The price is floor-divided by 100 FIRST, then the debt product is divided.
// The two truncating divisions must stay in this order: collapsing them into
// one division changes rounding outcomes, and the ratio thresholds are defined
// against this exact sequence.
//
// A price below one quote unit (floor(price/100) == 0) cannot collateralize
// any debt; callers detect that through IsSufficient.
func RequiredCollateral(debt, price int64) (int64, bool) {
	priceUnits := price / fpmath.PriceConfig.Scale
	if priceUnits <= 0 {
		return 0, false
	}
	return fpmath.MulDiv(debt, MinCollateralRatio, priceUnits), true
}

// IsSufficient reports whether collateralValue covers requiredCollateral at
// the minimum collateral ratio. Zero debt is always sufficient.
func IsSufficient(collateral, debt, price int64) bool {
	if debt == 0 {
		return true
	}
	required, ok := RequiredCollateral(debt, price)
	if !ok {
		return false
	}
	value := CollateralValue(collateral, price)
	return value.Cmp(big.NewInt(required)) >= 0
}

// MinSafetyValue returns floor(debt × LIQUIDATION_THRESHOLD ÷ 100), the
// collateral value below which a position becomes liquidatable.
func MinSafetyValue(debt int64) int64 {
	return fpmath.MulDiv(debt, LiquidationThreshold, 100)
}

// IsLiquidatable reports whether the position's collateral value has fallen
// below the liquidation threshold.
func IsLiquidatable(collateral, debt, price int64) bool {
	if debt == 0 {
		return false
	}
	value := CollateralValue(collateral, price)
	return value.Cmp(big.NewInt(MinSafetyValue(debt))) < 0
}

// PenaltyAmount returns floor(collateral × LIQUIDATION_PENALTY ÷ 100), the
// seized-collateral share retained in the stability fee pool.
func PenaltyAmount(collateral int64) int64 {
	return fpmath.MulDiv(collateral, LiquidationPenalty, 100)
}

// CollateralRatioPercent returns the position's collateral ratio as a whole
// percentage: floor(collateral × price × 100 ÷ (debt × satoshi scale)).
// Returns false for zero debt (the ratio is undefined, not infinite).
func CollateralRatioPercent(collateral, debt, price int64) (int64, bool) {
	if debt == 0 {
		return 0, false
	}
	numerator := new(big.Int).Mul(big.NewInt(collateral), big.NewInt(price))
	numerator.Mul(numerator, big.NewInt(100))
	denominator := new(big.Int).Mul(big.NewInt(debt), big.NewInt(fpmath.CollateralConfig.Scale))
	return new(big.Int).Quo(numerator, denominator).Int64(), true
}

// AccruedInterest returns floor(debt × blocksPassed × rate ÷ rateDenominator).
// Used by both global and per-position accrual so the truncation matches.
func AccruedInterest(debt, blocksPassed, rate, rateDenominator int64) int64 {
	if debt <= 0 || blocksPassed <= 0 || rate <= 0 {
		return 0
	}
	return fpmath.MulDiv3(debt, blocksPassed, rate, rateDenominator)
}
