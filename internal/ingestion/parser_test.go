package ingestion_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/chinedu-ifeanyi/stable-btc/internal/command"
	"github.com/chinedu-ifeanyi/stable-btc/internal/ingestion"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawCommand {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawCommand{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestParseOpenPosition(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":    "550e8400-e29b-41d4-a716-446655440000",
		"account_id":    "660e8400-e29b-41d4-a716-446655440001",
		"collateral_in": int64(2_000_000),
		"debt_out":      int64(40_000),
		"sequence":      int64(1),
		"block_height":  int64(840_000),
		"timestamp":     int64(1700000000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "OpenPosition")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	op, ok := cmd.(*command.OpenPosition)
	if !ok {
		t.Fatalf("expected *command.OpenPosition, got %T", cmd)
	}

	if op.CollateralIn != 2_000_000 {
		t.Errorf("collateral_in: got %d, want 2_000_000", op.CollateralIn)
	}
	if op.DebtOut != 40_000 {
		t.Errorf("debt_out: got %d, want 40_000", op.DebtOut)
	}
	if op.Seq != 1 {
		t.Errorf("sequence: got %d, want 1", op.Seq)
	}
	if op.BlockHeight != 840_000 {
		t.Errorf("block_height: got %d, want 840_000", op.BlockHeight)
	}
	if op.CommandType() != command.CommandTypeOpenPosition {
		t.Errorf("command type: got %v, want OpenPosition", op.CommandType())
	}
}

func TestParseAmountCommands(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"account_id":   "660e8400-e29b-41d4-a716-446655440001",
		"amount":       int64(500_000),
		"sequence":     int64(2),
		"block_height": int64(840_001),
		"timestamp":    int64(1700000100),
	}

	for _, commandType := range []string{"AddCollateral", "WithdrawCollateral", "RepayDebt"} {
		raw := rawFromJSON(t, payload)
		cmd, err := ingestion.ParseRawCommand(raw, commandType)
		if err != nil {
			t.Fatalf("parse %s: %v", commandType, err)
		}
		if got := cmd.CommandType().String(); got != commandType {
			t.Errorf("command type: got %s, want %s", got, commandType)
		}
		if cmd.SourceSequence() != 2 {
			t.Errorf("%s sequence: got %d, want 2", commandType, cmd.SourceSequence())
		}
	}
}

func TestParseLiquidate(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"target_id":    "660e8400-e29b-41d4-a716-446655440001",
		"caller_id":    "770e8400-e29b-41d4-a716-446655440002",
		"sequence":     int64(7),
		"block_height": int64(840_010),
		"timestamp":    int64(1700000500),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "Liquidate")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	liq, ok := cmd.(*command.Liquidate)
	if !ok {
		t.Fatalf("expected *command.Liquidate, got %T", cmd)
	}

	if liq.TargetID.String() != "660e8400-e29b-41d4-a716-446655440001" {
		t.Errorf("target_id: got %s", liq.TargetID)
	}
	if liq.CallerID.String() != "770e8400-e29b-41d4-a716-446655440002" {
		t.Errorf("caller_id: got %s", liq.CallerID)
	}
	// The sequence partition belongs to the target.
	if account := liq.Account(); account == nil || *account != liq.TargetID {
		t.Error("liquidate account context should be the target")
	}
}

func TestParsePriceSubmit(t *testing.T) {
	payload := map[string]interface{}{
		"caller_id":      "550e8400-e29b-41d4-a716-446655440000",
		"price":          int64(60_000_00),
		"observed_at":    int64(1700000000),
		"price_sequence": int64(100),
		"block_height":   int64(840_000),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "PriceSubmit")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	ps, ok := cmd.(*command.PriceSubmit)
	if !ok {
		t.Fatalf("expected *command.PriceSubmit, got %T", cmd)
	}

	if ps.Price != 60_000_00 {
		t.Errorf("price: got %d, want 60_000_00", ps.Price)
	}
	if ps.PriceSequence != 100 {
		t.Errorf("price_sequence: got %d, want 100", ps.PriceSequence)
	}
	if ps.Account() != nil {
		t.Error("price submissions carry no account context")
	}
}

func TestParsePauseSet(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"paused":       true,
		"sequence":     int64(3),
		"block_height": int64(840_002),
		"timestamp":    int64(1700000200),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "PauseSet")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	ps, ok := cmd.(*command.PauseSet)
	if !ok {
		t.Fatalf("expected *command.PauseSet, got %T", cmd)
	}
	if !ps.Paused {
		t.Error("paused: got false, want true")
	}
}

func TestParseOwnershipTransfer(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":   "550e8400-e29b-41d4-a716-446655440000",
		"caller_id":    "660e8400-e29b-41d4-a716-446655440001",
		"new_owner_id": "770e8400-e29b-41d4-a716-446655440002",
		"sequence":     int64(4),
		"block_height": int64(840_003),
		"timestamp":    int64(1700000300),
	}

	raw := rawFromJSON(t, payload)
	cmd, err := ingestion.ParseRawCommand(raw, "OwnershipTransfer")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	ot, ok := cmd.(*command.OwnershipTransfer)
	if !ok {
		t.Fatalf("expected *command.OwnershipTransfer, got %T", cmd)
	}
	if ot.NewOwnerID.String() != "770e8400-e29b-41d4-a716-446655440002" {
		t.Errorf("new_owner_id: got %s", ot.NewOwnerID)
	}
}

func TestParseUnknownCommandType_Fails(t *testing.T) {
	raw := ingestion.RawCommand{Data: []byte(`{}`)}
	_, err := ingestion.ParseRawCommand(raw, "NonExistentType")
	if err == nil {
		t.Fatal("expected error for unknown command type")
	}
}

func TestParseInvalidJSON_Fails(t *testing.T) {
	raw := ingestion.RawCommand{Data: []byte(`{invalid json`)}
	_, err := ingestion.ParseRawCommand(raw, "OpenPosition")
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseInvalidUUID_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"command_id":    "not-a-uuid",
		"account_id":    "also-not-a-uuid",
		"collateral_in": int64(1),
		"debt_out":      int64(1),
		"sequence":      int64(0),
		"block_height":  int64(0),
		"timestamp":     int64(0),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawCommand(raw, "OpenPosition")
	if err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}
