package command

import (
	"fmt"

	"github.com/google/uuid"
)

// PriceSubmit is a trusted owner-gated push of {price, observedAt}.
// Submissions carry their own monotonic sequence; gaps are tolerated and
// stale submissions are silently ignored (unlike position commands).
type PriceSubmit struct {
	CallerID      uuid.UUID // must be the protocol owner
	Price         int64     // positive, price scale
	ObservedAt    int64     // unix seconds the price was observed
	PriceSequence int64     // monotonic per feed
	BlockHeight   int64
}

func (c *PriceSubmit) IdempotencyKey() string {
	return fmt.Sprintf("price:%d", c.PriceSequence)
}

func (c *PriceSubmit) CommandType() CommandType { return CommandTypePriceSubmit }

// Account returns nil: price submissions are global.
func (c *PriceSubmit) Account() *uuid.UUID { return nil }

func (c *PriceSubmit) SourceSequence() int64 { return c.PriceSequence }

func (c *PriceSubmit) Height() int64 { return c.BlockHeight }

func (c *PriceSubmit) Timestamp() int64 { return c.ObservedAt }
