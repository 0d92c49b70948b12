package cdp

import (
	"sort"

	"github.com/google/uuid"
)

// PositionBook holds all live positions keyed by account.
// Not thread-safe — only accessed under the engine's writer lock.
type PositionBook struct {
	positions map[uuid.UUID]*Position
}

func NewPositionBook() *PositionBook {
	return &PositionBook{
		positions: make(map[uuid.UUID]*Position),
	}
}

// Get returns the position for an account, or nil if none exists.
func (b *PositionBook) Get(account uuid.UUID) *Position {
	return b.positions[account]
}

// AccrueSnapshot returns a staged copy of the account's position with interest
// caught up to the given height. Absent positions yield a zero-valued snapshot
// (Exists=false) so new and existing accounts share one code path; nothing is
// persisted here — the engine commits the snapshot after validation.
func (b *PositionBook) AccrueSnapshot(account uuid.UUID, height int64, params Params) Snapshot {
	pos := b.positions[account]
	if pos == nil {
		return Snapshot{Account: account, LastUpdateHeight: height}
	}

	snap := Snapshot{
		Account:          account,
		Collateral:       pos.Collateral,
		Debt:             pos.Debt,
		LastUpdateHeight: pos.LastUpdateHeight,
		Exists:           true,
	}

	// A height that has not advanced leaves the cursor alone; moving it
	// backwards would re-accrue interest already charged.
	blocksPassed := height - pos.LastUpdateHeight
	if blocksPassed > 0 {
		snap.Debt += AccruedInterest(pos.Debt, blocksPassed,
			params.StabilityRatePerBlock, params.StabilityRateDenominator)
		snap.LastUpdateHeight = height
	}

	return snap
}

// Commit persists a staged snapshot back into the book. A snapshot with zero
// debt deletes the position (full repayment or liquidation).
func (b *PositionBook) Commit(snap Snapshot) {
	if snap.Debt == 0 {
		delete(b.positions, snap.Account)
		return
	}

	pos := b.positions[snap.Account]
	if pos == nil {
		pos = &Position{Account: snap.Account}
		b.positions[snap.Account] = pos
	}

	pos.Collateral = snap.Collateral
	pos.Debt = snap.Debt
	pos.LastUpdateHeight = snap.LastUpdateHeight
	pos.Version++
}

// Delete removes an account's position.
func (b *PositionBook) Delete(account uuid.UUID) {
	delete(b.positions, account)
}

// Set directly sets a position (used for snapshot restore).
func (b *PositionBook) Set(pos *Position) {
	b.positions[pos.Account] = pos
}

// Len returns the number of live positions.
func (b *PositionBook) Len() int {
	return len(b.positions)
}

// All returns all positions sorted by account for deterministic iteration.
func (b *PositionBook) All() []*Position {
	result := make([]*Position, 0, len(b.positions))
	for _, pos := range b.positions {
		result = append(result, pos)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Account.String() < result[j].Account.String()
	})
	return result
}

// SumDebt returns the sum of all per-position debts. The book is the ground
// truth for debt; ProtocolState.TotalDebt is the aggregate maintained at
// mutation sites and may drift from this sum by accrual rounding.
func (b *PositionBook) SumDebt() int64 {
	var total int64
	for _, pos := range b.positions {
		total += pos.Debt
	}
	return total
}

// SumCollateral returns the sum of all per-position collateral.
func (b *PositionBook) SumCollateral() int64 {
	var total int64
	for _, pos := range b.positions {
		total += pos.Collateral
	}
	return total
}
