package command

import (
	"github.com/google/uuid"
)

// CommandType discriminator for command payloads
type CommandType int32

const (
	CommandTypeUnknown CommandType = iota
	CommandTypeOpenPosition
	CommandTypeAddCollateral
	CommandTypeWithdrawCollateral
	CommandTypeRepayDebt
	CommandTypeLiquidate
	CommandTypePriceSubmit
	CommandTypePauseSet
	CommandTypeOwnershipTransfer
)

// Envelope wraps every applied command in the event log
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Command type discriminator
	CommandType CommandType

	// Account context (nullable for global commands like price submissions)
	Account *uuid.UUID

	// Block height the command was applied at (versioned input)
	Height int64

	// Versioned input timestamp, unix seconds (NOT wall-clock)
	Timestamp int64

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded command-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this command
	StateHash [32]byte

	// Previous command's state hash (chain integrity)
	PrevHash [32]byte
}

// Command is the interface all command payloads implement.
// Heights and timestamps are versioned inputs carried by the command;
// the engine never reads the wall clock.
type Command interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// CommandType returns the discriminator
	CommandType() CommandType

	// Account returns the position account context (nil for global commands)
	Account() *uuid.UUID

	// SourceSequence returns the upstream ordering key
	SourceSequence() int64

	// Height returns the block height the command executes at
	Height() int64

	// Timestamp returns the command's versioned timestamp (unix seconds)
	Timestamp() int64
}

func (ct CommandType) String() string {
	switch ct {
	case CommandTypeOpenPosition:
		return "OpenPosition"
	case CommandTypeAddCollateral:
		return "AddCollateral"
	case CommandTypeWithdrawCollateral:
		return "WithdrawCollateral"
	case CommandTypeRepayDebt:
		return "RepayDebt"
	case CommandTypeLiquidate:
		return "Liquidate"
	case CommandTypePriceSubmit:
		return "PriceSubmit"
	case CommandTypePauseSet:
		return "PauseSet"
	case CommandTypeOwnershipTransfer:
		return "OwnershipTransfer"
	default:
		return "Unknown"
	}
}
