package cdp

import (
	"github.com/google/uuid"
)

// Position is one account's collateral/debt record.
//
// The collateralization invariant is checked only at mutation time: after any
// successful mutating operation with debt > 0, collateral value covered the
// required collateral as of that operation's price. The ratio may then drift
// unsafe through price movement or interest accrual — that drift is the
// liquidation trigger, not a bug.
type Position struct {
	Account          uuid.UUID
	Collateral       int64 // satoshi, never negative
	Debt             int64 // smallest USDB unit, never negative
	LastUpdateHeight int64 // height of the last per-position accrual
	Version          int64 // bumped on every mutation
}

// Snapshot is a value copy of a position used while staging an operation.
// A zero-valued Snapshot with Exists=false stands in for an absent position
// so new and existing accounts share one accrual path; it is never surfaced
// to callers as evidence that a position exists.
type Snapshot struct {
	Account          uuid.UUID
	Collateral       int64
	Debt             int64
	LastUpdateHeight int64
	Exists           bool
}

// CanonicalBytes returns the deterministic serialization used in state hashing.
func (p *Position) CanonicalBytes() []byte {
	buf := make([]byte, 0, 48)

	// account (16 bytes UUID binary)
	buf = append(buf, p.Account[:]...)

	// collateral (8 bytes LE)
	buf = appendInt64LE(buf, p.Collateral)

	// debt (8 bytes LE)
	buf = appendInt64LE(buf, p.Debt)

	// last_update_height (8 bytes LE)
	buf = appendInt64LE(buf, p.LastUpdateHeight)

	return buf
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}
