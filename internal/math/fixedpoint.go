package math

import (
	"math/big"
	"sync"
)

// DecimalConfig defines fixed-point precision
type DecimalConfig struct {
	DecimalPrecision int   // Number of decimal places
	Scale            int64 // 10^DecimalPrecision
}

var (
	// Standard configs
	CollateralConfig = DecimalConfig{DecimalPrecision: 8, Scale: 100_000_000} // satoshi
	PriceConfig      = DecimalConfig{DecimalPrecision: 2, Scale: 100}         // 0.01 quote unit
	DebtConfig       = DecimalConfig{DecimalPrecision: 2, Scale: 100}         // 0.01 USDB
	RateConfig       = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000}   // per-block stability rate
)

// Int128 is a pooled big.Int for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

// MultiplyInt128 performs a * b using int128 to prevent overflow
func MultiplyInt128(a, b int64) *big.Int {
	result := getInt128()
	result.Mul(big.NewInt(a), big.NewInt(b))
	return result
}

// ReleaseInt128 returns an intermediate to the pool once the caller is done.
func ReleaseInt128(v *big.Int) {
	putInt128(v)
}

// DivideInt128 performs numerator / denominator with rounding
func DivideInt128(numerator *big.Int, denominator int64, roundingMode RoundingMode) int64 {
	denom := big.NewInt(denominator)
	quotient := getInt128()
	remainder := getInt128()

	quotient.DivMod(numerator, denom, remainder)

	result := quotient.Int64()

	if roundingMode == RoundUp && remainder.Sign() != 0 {
		result++
	}

	putInt128(quotient)
	putInt128(remainder)

	return result
}

type RoundingMode int

const (
	// RoundDown (truncating division) is the protocol-wide rounding policy.
	// Every interest, ratio, and penalty computation floors.
	RoundDown RoundingMode = iota
	RoundUp
)

// MulDiv computes floor(a * b / denominator) with an int128 intermediate.
// This is the single floor-division helper every interest and collateral
// computation goes through, so the truncation behavior is identical everywhere.
func MulDiv(a, b, denominator int64) int64 {
	product := MultiplyInt128(a, b)
	result := DivideInt128(product, denominator, RoundDown)
	putInt128(product)
	return result
}

// MulDiv3 computes floor(a * b * c / denominator).
func MulDiv3(a, b, c, denominator int64) int64 {
	product := MultiplyInt128(a, b)
	product.Mul(product, big.NewInt(c))
	result := DivideInt128(product, denominator, RoundDown)
	putInt128(product)
	return result
}

// CmpMulMul compares a1*b1 against a2*b2 without overflow.
// Returns -1, 0, or +1.
func CmpMulMul(a1, b1, a2, b2 int64) int {
	left := MultiplyInt128(a1, b1)
	right := MultiplyInt128(a2, b2)
	cmp := left.Cmp(right)
	putInt128(left)
	putInt128(right)
	return cmp
}
