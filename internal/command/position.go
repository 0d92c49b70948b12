package command

import (
	"github.com/google/uuid"
)

// OpenPosition deposits collateral and mints debt against it. If the account
// already has a position, the inputs are merged into it.
// Idempotency key: command_id (UUID from upstream).
type OpenPosition struct {
	CommandID    uuid.UUID // Idempotency key
	AccountID    uuid.UUID
	CollateralIn int64 // satoshi
	DebtOut      int64 // smallest USDB unit
	Seq          int64 // Source sequence per account
	BlockHeight  int64
	SubmittedAt  int64 // unix seconds, versioned input
}

func (c *OpenPosition) IdempotencyKey() string { return c.CommandID.String() }

func (c *OpenPosition) CommandType() CommandType { return CommandTypeOpenPosition }

func (c *OpenPosition) Account() *uuid.UUID {
	a := c.AccountID
	return &a
}

func (c *OpenPosition) SourceSequence() int64 { return c.Seq }

func (c *OpenPosition) Height() int64 { return c.BlockHeight }

func (c *OpenPosition) Timestamp() int64 { return c.SubmittedAt }

// AddCollateral tops up an existing position. No price check: adding
// collateral strictly improves the ratio.
type AddCollateral struct {
	CommandID   uuid.UUID
	AccountID   uuid.UUID
	Amount      int64 // satoshi
	Seq         int64
	BlockHeight int64
	SubmittedAt int64
}

func (c *AddCollateral) IdempotencyKey() string { return c.CommandID.String() }

func (c *AddCollateral) CommandType() CommandType { return CommandTypeAddCollateral }

func (c *AddCollateral) Account() *uuid.UUID {
	a := c.AccountID
	return &a
}

func (c *AddCollateral) SourceSequence() int64 { return c.Seq }

func (c *AddCollateral) Height() int64 { return c.BlockHeight }

func (c *AddCollateral) Timestamp() int64 { return c.SubmittedAt }

// WithdrawCollateral releases collateral back to the account, provided the
// remainder still covers the minimum collateral ratio at a fresh price.
type WithdrawCollateral struct {
	CommandID   uuid.UUID
	AccountID   uuid.UUID
	Amount      int64 // satoshi
	Seq         int64
	BlockHeight int64
	SubmittedAt int64
}

func (c *WithdrawCollateral) IdempotencyKey() string { return c.CommandID.String() }

func (c *WithdrawCollateral) CommandType() CommandType { return CommandTypeWithdrawCollateral }

func (c *WithdrawCollateral) Account() *uuid.UUID {
	a := c.AccountID
	return &a
}

func (c *WithdrawCollateral) SourceSequence() int64 { return c.Seq }

func (c *WithdrawCollateral) Height() int64 { return c.BlockHeight }

func (c *WithdrawCollateral) Timestamp() int64 { return c.SubmittedAt }

// RepayDebt burns USDB from the account to reduce its debt. The repay amount
// is capped at the outstanding debt; full repayment deletes the position and
// releases its collateral.
type RepayDebt struct {
	CommandID   uuid.UUID
	AccountID   uuid.UUID
	Amount      int64 // smallest USDB unit
	Seq         int64
	BlockHeight int64
	SubmittedAt int64
}

func (c *RepayDebt) IdempotencyKey() string { return c.CommandID.String() }

func (c *RepayDebt) CommandType() CommandType { return CommandTypeRepayDebt }

func (c *RepayDebt) Account() *uuid.UUID {
	a := c.AccountID
	return &a
}

func (c *RepayDebt) SourceSequence() int64 { return c.Seq }

func (c *RepayDebt) Height() int64 { return c.BlockHeight }

func (c *RepayDebt) Timestamp() int64 { return c.SubmittedAt }
