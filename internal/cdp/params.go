package cdp

import "fmt"

// Ratio constants, expressed in percent. These are protocol constants, not
// tunables: the liquidation threshold and collateral checks below are defined
// relative to this exact arithmetic.
const (
	MinCollateralRatio   = 150 // required when opening or extending a position
	LiquidationThreshold = 120 // below this a position becomes liquidatable
	LiquidationPenalty   = 10  // share of seized collateral retained by protocol
)

// Params holds the tunable protocol parameters.
type Params struct {
	// MinimumLoan is the smallest debt a position may be opened with
	// (smallest USDB unit). Dust positions are not worth liquidating.
	MinimumLoan int64

	// StabilityRatePerBlock / StabilityRateDenominator is the per-block
	// interest rate applied to outstanding debt.
	StabilityRatePerBlock    int64
	StabilityRateDenominator int64

	// PriceFreshnessWindow is the maximum age of a price record in seconds.
	// A record at or past this age is stale.
	PriceFreshnessWindow int64
}

// DefaultParams returns the production defaults.
func DefaultParams() Params {
	return Params{
		MinimumLoan:              100,
		StabilityRatePerBlock:    1,
		StabilityRateDenominator: 1_000_000, // 0.0001% per block
		PriceFreshnessWindow:     86_400,    // 24 hours
	}
}

// Validate checks that parameters are within valid ranges.
func (p Params) Validate() error {
	if p.MinimumLoan <= 0 {
		return fmt.Errorf("minimum_loan must be > 0, got %d", p.MinimumLoan)
	}
	if p.StabilityRatePerBlock < 0 {
		return fmt.Errorf("stability_rate must be >= 0, got %d", p.StabilityRatePerBlock)
	}
	if p.StabilityRateDenominator <= 0 {
		return fmt.Errorf("stability_rate_denominator must be > 0, got %d", p.StabilityRateDenominator)
	}
	if p.StabilityRatePerBlock >= p.StabilityRateDenominator {
		return fmt.Errorf("stability_rate (%d) must be < denominator (%d)",
			p.StabilityRatePerBlock, p.StabilityRateDenominator)
	}
	if p.PriceFreshnessWindow <= 0 {
		return fmt.Errorf("price_freshness_window must be > 0, got %d", p.PriceFreshnessWindow)
	}
	return nil
}
