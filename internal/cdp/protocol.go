package cdp

import (
	"github.com/google/uuid"
)

// PriceRecord is the last pushed price paired with its observation time.
type PriceRecord struct {
	Price      int64 // positive, price scale
	ObservedAt int64 // unix seconds, versioned input
}

// ProtocolState is the process-wide aggregate record. It is a contended
// singleton: every mutating operation reads and writes it, so it lives under
// the engine's single writer lock and is only ever touched there.
type ProtocolState struct {
	TotalDebt               int64
	TotalCollateral         int64
	StabilityFeeAccumulator int64 // retained interest + liquidation penalties
	LastAccrualHeight       int64
	Price                   *PriceRecord // nil until the first submission
	Paused                  bool
	Owner                   uuid.UUID
}

func NewProtocolState(owner uuid.UUID, genesisHeight int64) *ProtocolState {
	return &ProtocolState{
		LastAccrualHeight: genesisHeight,
		Owner:             owner,
	}
}

// CurrentPrice returns the current price, enforcing positivity and freshness.
// now is the versioned timestamp of the enclosing operation, not wall-clock.
func (ps *ProtocolState) CurrentPrice(now, freshnessWindow int64) (int64, error) {
	if ps.Price == nil {
		return 0, ErrNoPriceData
	}
	if ps.Price.Price <= 0 {
		return 0, ErrPriceStale
	}
	if now-ps.Price.ObservedAt >= freshnessWindow {
		return 0, ErrPriceStale
	}
	return ps.Price.Price, nil
}

// GlobalAccrual is the staged result of a global interest step.
type GlobalAccrual struct {
	Interest     int64
	BlocksPassed int64
}

// StageGlobalAccrual computes the interest step for the given height without
// mutating anything. A no-op (zero blocks) is returned when height has not
// advanced past LastAccrualHeight, which makes the step idempotent per height.
func (ps *ProtocolState) StageGlobalAccrual(height int64, params Params) GlobalAccrual {
	blocksPassed := height - ps.LastAccrualHeight
	if blocksPassed <= 0 {
		return GlobalAccrual{}
	}
	return GlobalAccrual{
		Interest: AccruedInterest(ps.TotalDebt, blocksPassed,
			params.StabilityRatePerBlock, params.StabilityRateDenominator),
		BlocksPassed: blocksPassed,
	}
}

// CommitGlobalAccrual applies a staged accrual. Interest lands in both the
// aggregate debt and the stability fee accumulator; the accrual height is
// keyed so a replay of the same height is a no-op.
func (ps *ProtocolState) CommitGlobalAccrual(height int64, acc GlobalAccrual) {
	if acc.BlocksPassed <= 0 {
		return
	}
	ps.TotalDebt += acc.Interest
	ps.StabilityFeeAccumulator += acc.Interest
	ps.LastAccrualHeight = height
}

// CanonicalBytes returns the deterministic serialization used in state hashing.
func (ps *ProtocolState) CanonicalBytes() []byte {
	buf := make([]byte, 0, 64)

	buf = appendInt64LE(buf, ps.TotalDebt)
	buf = appendInt64LE(buf, ps.TotalCollateral)
	buf = appendInt64LE(buf, ps.StabilityFeeAccumulator)
	buf = appendInt64LE(buf, ps.LastAccrualHeight)

	if ps.Price != nil {
		buf = appendInt64LE(buf, ps.Price.Price)
		buf = appendInt64LE(buf, ps.Price.ObservedAt)
	} else {
		buf = appendInt64LE(buf, 0)
		buf = appendInt64LE(buf, 0)
	}

	if ps.Paused {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	buf = append(buf, ps.Owner[:]...)

	return buf
}
