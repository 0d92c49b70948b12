package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/chinedu-ifeanyi/stable-btc/internal/command"

	"github.com/google/uuid"
)

// GRPCIngestService provides admin/manual command injection via gRPC.
// This surface is for operator intervention, not high-throughput ingestion
// (use NATS for that). Admin-injected commands use wall-clock derived
// sequence/height; determinism holds because the engine still sees them as
// versioned inputs.
type GRPCIngestService struct {
	commandChan chan<- command.Command
}

func NewGRPCIngestService(commandChan chan<- command.Command) *GRPCIngestService {
	return &GRPCIngestService{commandChan: commandChan}
}

// InjectPrice manually injects a PriceSubmit command.
func (s *GRPCIngestService) InjectPrice(
	ctx context.Context,
	callerID uuid.UUID,
	price int64,
	priceSequence int64,
) error {
	if price <= 0 {
		return fmt.Errorf("price must be positive")
	}

	now := time.Now()
	cmd := &command.PriceSubmit{
		CallerID:      callerID,
		Price:         price,
		ObservedAt:    now.Unix(),
		PriceSequence: priceSequence,
		BlockHeight:   now.Unix(),
	}

	select {
	case s.commandChan <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectPause manually injects a PauseSet command.
func (s *GRPCIngestService) InjectPause(
	ctx context.Context,
	callerID uuid.UUID,
	paused bool,
) error {
	now := time.Now()
	cmd := &command.PauseSet{
		CommandID:   uuid.New(),
		CallerID:    callerID,
		Paused:      paused,
		Seq:         now.UnixMicro(), // Admin-injected: use timestamp as sequence
		BlockHeight: now.Unix(),
		SubmittedAt: now.Unix(),
	}

	select {
	case s.commandChan <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectOwnershipTransfer manually injects an OwnershipTransfer command.
func (s *GRPCIngestService) InjectOwnershipTransfer(
	ctx context.Context,
	callerID uuid.UUID,
	newOwnerID uuid.UUID,
) error {
	if newOwnerID == uuid.Nil {
		return fmt.Errorf("new owner must be set")
	}

	now := time.Now()
	cmd := &command.OwnershipTransfer{
		CommandID:   uuid.New(),
		CallerID:    callerID,
		NewOwnerID:  newOwnerID,
		Seq:         now.UnixMicro(),
		BlockHeight: now.Unix(),
		SubmittedAt: now.Unix(),
	}

	select {
	case s.commandChan <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectLiquidate manually injects a Liquidate command (operator-assisted
// liquidation when the external keeper is down).
func (s *GRPCIngestService) InjectLiquidate(
	ctx context.Context,
	callerID uuid.UUID,
	targetID uuid.UUID,
	sourceSequence int64,
) error {
	if callerID == targetID {
		return fmt.Errorf("caller and target must differ")
	}

	now := time.Now()
	cmd := &command.Liquidate{
		CommandID:   uuid.New(),
		TargetID:    targetID,
		CallerID:    callerID,
		Seq:         sourceSequence,
		BlockHeight: now.Unix(),
		SubmittedAt: now.Unix(),
	}

	select {
	case s.commandChan <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
