package command_test

import (
	"testing"

	"github.com/chinedu-ifeanyi/stable-btc/internal/command"

	"github.com/google/uuid"
)

var (
	cmdID    = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	acctID   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	callerID = uuid.MustParse("33333333-3333-3333-3333-333333333333")
)

// Event replay decodes stored payloads back into typed commands; every field
// the engine reads must survive the round trip.
func TestPayloadRoundTrip(t *testing.T) {
	commands := []command.Command{
		&command.OpenPosition{
			CommandID: cmdID, AccountID: acctID,
			CollateralIn: 10_000_000, DebtOut: 2_000,
			Seq: 3, BlockHeight: 100, SubmittedAt: 1_700_000_000,
		},
		&command.AddCollateral{
			CommandID: cmdID, AccountID: acctID, Amount: 5_000_000,
			Seq: 4, BlockHeight: 101, SubmittedAt: 1_700_000_001,
		},
		&command.WithdrawCollateral{
			CommandID: cmdID, AccountID: acctID, Amount: 1_000_000,
			Seq: 5, BlockHeight: 102, SubmittedAt: 1_700_000_002,
		},
		&command.RepayDebt{
			CommandID: cmdID, AccountID: acctID, Amount: 500,
			Seq: 6, BlockHeight: 103, SubmittedAt: 1_700_000_003,
		},
		&command.Liquidate{
			CommandID: cmdID, TargetID: acctID, CallerID: callerID,
			Seq: 7, BlockHeight: 104, SubmittedAt: 1_700_000_004,
		},
		&command.PriceSubmit{
			CallerID: callerID, Price: 40_000,
			ObservedAt: 1_700_000_005, PriceSequence: 8, BlockHeight: 105,
		},
		&command.PauseSet{
			CommandID: cmdID, CallerID: callerID, Paused: true,
			Seq: 9, BlockHeight: 106, SubmittedAt: 1_700_000_006,
		},
		&command.OwnershipTransfer{
			CommandID: cmdID, CallerID: callerID, NewOwnerID: acctID,
			Seq: 10, BlockHeight: 107, SubmittedAt: 1_700_000_007,
		},
	}

	for _, cmd := range commands {
		t.Run(cmd.CommandType().String(), func(t *testing.T) {
			payload := command.MarshalPayload(cmd)

			decoded, err := command.UnmarshalPayload(cmd.CommandType(), payload)
			if err != nil {
				t.Fatalf("UnmarshalPayload: %v", err)
			}

			if decoded.CommandType() != cmd.CommandType() {
				t.Errorf("type = %s, want %s", decoded.CommandType(), cmd.CommandType())
			}
			if decoded.IdempotencyKey() != cmd.IdempotencyKey() {
				t.Errorf("idempotency key = %q, want %q",
					decoded.IdempotencyKey(), cmd.IdempotencyKey())
			}
			if decoded.SourceSequence() != cmd.SourceSequence() {
				t.Errorf("source sequence = %d, want %d",
					decoded.SourceSequence(), cmd.SourceSequence())
			}
			if decoded.Height() != cmd.Height() {
				t.Errorf("height = %d, want %d", decoded.Height(), cmd.Height())
			}
			if decoded.Timestamp() != cmd.Timestamp() {
				t.Errorf("timestamp = %d, want %d", decoded.Timestamp(), cmd.Timestamp())
			}

			gotAcct, wantAcct := decoded.Account(), cmd.Account()
			switch {
			case (gotAcct == nil) != (wantAcct == nil):
				t.Errorf("account = %v, want %v", gotAcct, wantAcct)
			case gotAcct != nil && *gotAcct != *wantAcct:
				t.Errorf("account = %s, want %s", gotAcct, wantAcct)
			}
		})
	}
}

func TestParseCommandType(t *testing.T) {
	for _, ct := range []command.CommandType{
		command.CommandTypeOpenPosition,
		command.CommandTypeAddCollateral,
		command.CommandTypeWithdrawCollateral,
		command.CommandTypeRepayDebt,
		command.CommandTypeLiquidate,
		command.CommandTypePriceSubmit,
		command.CommandTypePauseSet,
		command.CommandTypeOwnershipTransfer,
	} {
		got, ok := command.ParseCommandType(ct.String())
		if !ok || got != ct {
			t.Errorf("ParseCommandType(%q) = (%v, %t), want (%v, true)", ct.String(), got, ok, ct)
		}
	}

	if _, ok := command.ParseCommandType("MintRequest"); ok {
		t.Error("ParseCommandType accepted an unknown name")
	}
}

func TestUnmarshalPayloadRejectsGarbage(t *testing.T) {
	if _, err := command.UnmarshalPayload(command.CommandTypeOpenPosition, []byte("{not json")); err == nil {
		t.Error("expected decode error for malformed payload")
	}
	if _, err := command.UnmarshalPayload(command.CommandTypeUnknown, []byte("{}")); err == nil {
		t.Error("expected error for unknown command type")
	}
}
