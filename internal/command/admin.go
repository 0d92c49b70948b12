package command

import (
	"fmt"

	"github.com/google/uuid"
)

// PauseSet toggles the protocol pause flag. Owner-gated.
type PauseSet struct {
	CommandID   uuid.UUID
	CallerID    uuid.UUID
	Paused      bool
	Seq         int64
	BlockHeight int64
	SubmittedAt int64
}

func (c *PauseSet) IdempotencyKey() string {
	return fmt.Sprintf("%s:pause:%t", c.CommandID, c.Paused)
}

func (c *PauseSet) CommandType() CommandType { return CommandTypePauseSet }

func (c *PauseSet) Account() *uuid.UUID { return nil }

func (c *PauseSet) SourceSequence() int64 { return c.Seq }

func (c *PauseSet) Height() int64 { return c.BlockHeight }

func (c *PauseSet) Timestamp() int64 { return c.SubmittedAt }

// OwnershipTransfer hands the owner role to another identity. Owner-gated.
type OwnershipTransfer struct {
	CommandID   uuid.UUID
	CallerID    uuid.UUID
	NewOwnerID  uuid.UUID
	Seq         int64
	BlockHeight int64
	SubmittedAt int64
}

func (c *OwnershipTransfer) IdempotencyKey() string {
	return fmt.Sprintf("%s:owner:%s", c.CommandID, c.NewOwnerID)
}

func (c *OwnershipTransfer) CommandType() CommandType { return CommandTypeOwnershipTransfer }

func (c *OwnershipTransfer) Account() *uuid.UUID { return nil }

func (c *OwnershipTransfer) SourceSequence() int64 { return c.Seq }

func (c *OwnershipTransfer) Height() int64 { return c.BlockHeight }

func (c *OwnershipTransfer) Timestamp() int64 { return c.SubmittedAt }
