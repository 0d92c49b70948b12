package command

import (
	"fmt"

	"github.com/google/uuid"
)

// Liquidate resolves an unsafe position in one step, first caller wins.
// The caller burns the target's full debt and receives the seized collateral
// minus the protocol penalty.
type Liquidate struct {
	CommandID   uuid.UUID
	TargetID    uuid.UUID // account being liquidated
	CallerID    uuid.UUID // liquidator (must differ from target)
	Seq         int64     // Source sequence, partitioned by target account
	BlockHeight int64
	SubmittedAt int64
}

func (c *Liquidate) IdempotencyKey() string {
	return fmt.Sprintf("%s:liquidate:%s", c.CommandID, c.TargetID)
}

func (c *Liquidate) CommandType() CommandType { return CommandTypeLiquidate }

// Account returns the liquidation target: sequence validation partitions on
// the position being mutated, not on the caller.
func (c *Liquidate) Account() *uuid.UUID {
	a := c.TargetID
	return &a
}

func (c *Liquidate) SourceSequence() int64 { return c.Seq }

func (c *Liquidate) Height() int64 { return c.BlockHeight }

func (c *Liquidate) Timestamp() int64 { return c.SubmittedAt }
