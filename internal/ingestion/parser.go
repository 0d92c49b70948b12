package ingestion

import (
	"encoding/json"
	"fmt"

	"github.com/chinedu-ifeanyi/stable-btc/internal/command"

	"github.com/google/uuid"
)

// ParseRawCommand converts a RawCommand (JSON bytes + command type string)
// into a typed command.Command. The ingestion shell validates, parses, and
// converts raw messages before sending to the engine.
func ParseRawCommand(raw RawCommand, commandType string) (command.Command, error) {
	switch commandType {
	case "OpenPosition":
		return parseOpenPosition(raw.Data)
	case "AddCollateral":
		return parseAddCollateral(raw.Data)
	case "WithdrawCollateral":
		return parseWithdrawCollateral(raw.Data)
	case "RepayDebt":
		return parseRepayDebt(raw.Data)
	case "Liquidate":
		return parseLiquidate(raw.Data)
	case "PriceSubmit":
		return parsePriceSubmit(raw.Data)
	case "PauseSet":
		return parsePauseSet(raw.Data)
	case "OwnershipTransfer":
		return parseOwnershipTransfer(raw.Data)
	default:
		return nil, fmt.Errorf("unknown command type: %s", commandType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers.

type openPositionJSON struct {
	CommandID    string `json:"command_id"`
	AccountID    string `json:"account_id"`
	CollateralIn int64  `json:"collateral_in"`
	DebtOut      int64  `json:"debt_out"`
	Sequence     int64  `json:"sequence"`
	BlockHeight  int64  `json:"block_height"`
	Timestamp    int64  `json:"timestamp"`
}

func parseOpenPosition(data []byte) (*command.OpenPosition, error) {
	var j openPositionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse OpenPosition: %w", err)
	}

	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	accountID, err := uuid.Parse(j.AccountID)
	if err != nil {
		return nil, fmt.Errorf("parse account_id: %w", err)
	}

	return &command.OpenPosition{
		CommandID:    commandID,
		AccountID:    accountID,
		CollateralIn: j.CollateralIn,
		DebtOut:      j.DebtOut,
		Seq:          j.Sequence,
		BlockHeight:  j.BlockHeight,
		SubmittedAt:  j.Timestamp,
	}, nil
}

type amountCommandJSON struct {
	CommandID   string `json:"command_id"`
	AccountID   string `json:"account_id"`
	Amount      int64  `json:"amount"`
	Sequence    int64  `json:"sequence"`
	BlockHeight int64  `json:"block_height"`
	Timestamp   int64  `json:"timestamp"`
}

func (j *amountCommandJSON) ids() (uuid.UUID, uuid.UUID, error) {
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("parse command_id: %w", err)
	}
	accountID, err := uuid.Parse(j.AccountID)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("parse account_id: %w", err)
	}
	return commandID, accountID, nil
}

func parseAddCollateral(data []byte) (*command.AddCollateral, error) {
	var j amountCommandJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse AddCollateral: %w", err)
	}
	commandID, accountID, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &command.AddCollateral{
		CommandID:   commandID,
		AccountID:   accountID,
		Amount:      j.Amount,
		Seq:         j.Sequence,
		BlockHeight: j.BlockHeight,
		SubmittedAt: j.Timestamp,
	}, nil
}

func parseWithdrawCollateral(data []byte) (*command.WithdrawCollateral, error) {
	var j amountCommandJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse WithdrawCollateral: %w", err)
	}
	commandID, accountID, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &command.WithdrawCollateral{
		CommandID:   commandID,
		AccountID:   accountID,
		Amount:      j.Amount,
		Seq:         j.Sequence,
		BlockHeight: j.BlockHeight,
		SubmittedAt: j.Timestamp,
	}, nil
}

func parseRepayDebt(data []byte) (*command.RepayDebt, error) {
	var j amountCommandJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RepayDebt: %w", err)
	}
	commandID, accountID, err := j.ids()
	if err != nil {
		return nil, err
	}
	return &command.RepayDebt{
		CommandID:   commandID,
		AccountID:   accountID,
		Amount:      j.Amount,
		Seq:         j.Sequence,
		BlockHeight: j.BlockHeight,
		SubmittedAt: j.Timestamp,
	}, nil
}

type liquidateJSON struct {
	CommandID   string `json:"command_id"`
	TargetID    string `json:"target_id"`
	CallerID    string `json:"caller_id"`
	Sequence    int64  `json:"sequence"`
	BlockHeight int64  `json:"block_height"`
	Timestamp   int64  `json:"timestamp"`
}

func parseLiquidate(data []byte) (*command.Liquidate, error) {
	var j liquidateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Liquidate: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	targetID, err := uuid.Parse(j.TargetID)
	if err != nil {
		return nil, fmt.Errorf("parse target_id: %w", err)
	}
	callerID, err := uuid.Parse(j.CallerID)
	if err != nil {
		return nil, fmt.Errorf("parse caller_id: %w", err)
	}
	return &command.Liquidate{
		CommandID:   commandID,
		TargetID:    targetID,
		CallerID:    callerID,
		Seq:         j.Sequence,
		BlockHeight: j.BlockHeight,
		SubmittedAt: j.Timestamp,
	}, nil
}

type priceSubmitJSON struct {
	CallerID      string `json:"caller_id"`
	Price         int64  `json:"price"`
	ObservedAt    int64  `json:"observed_at"`
	PriceSequence int64  `json:"price_sequence"`
	BlockHeight   int64  `json:"block_height"`
}

func parsePriceSubmit(data []byte) (*command.PriceSubmit, error) {
	var j priceSubmitJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PriceSubmit: %w", err)
	}
	callerID, err := uuid.Parse(j.CallerID)
	if err != nil {
		return nil, fmt.Errorf("parse caller_id: %w", err)
	}
	return &command.PriceSubmit{
		CallerID:      callerID,
		Price:         j.Price,
		ObservedAt:    j.ObservedAt,
		PriceSequence: j.PriceSequence,
		BlockHeight:   j.BlockHeight,
	}, nil
}

type pauseSetJSON struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	Paused      bool   `json:"paused"`
	Sequence    int64  `json:"sequence"`
	BlockHeight int64  `json:"block_height"`
	Timestamp   int64  `json:"timestamp"`
}

func parsePauseSet(data []byte) (*command.PauseSet, error) {
	var j pauseSetJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PauseSet: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	callerID, err := uuid.Parse(j.CallerID)
	if err != nil {
		return nil, fmt.Errorf("parse caller_id: %w", err)
	}
	return &command.PauseSet{
		CommandID:   commandID,
		CallerID:    callerID,
		Paused:      j.Paused,
		Seq:         j.Sequence,
		BlockHeight: j.BlockHeight,
		SubmittedAt: j.Timestamp,
	}, nil
}

type ownershipTransferJSON struct {
	CommandID   string `json:"command_id"`
	CallerID    string `json:"caller_id"`
	NewOwnerID  string `json:"new_owner_id"`
	Sequence    int64  `json:"sequence"`
	BlockHeight int64  `json:"block_height"`
	Timestamp   int64  `json:"timestamp"`
}

func parseOwnershipTransfer(data []byte) (*command.OwnershipTransfer, error) {
	var j ownershipTransferJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse OwnershipTransfer: %w", err)
	}
	commandID, err := uuid.Parse(j.CommandID)
	if err != nil {
		return nil, fmt.Errorf("parse command_id: %w", err)
	}
	callerID, err := uuid.Parse(j.CallerID)
	if err != nil {
		return nil, fmt.Errorf("parse caller_id: %w", err)
	}
	newOwnerID, err := uuid.Parse(j.NewOwnerID)
	if err != nil {
		return nil, fmt.Errorf("parse new_owner_id: %w", err)
	}
	return &command.OwnershipTransfer{
		CommandID:   commandID,
		CallerID:    callerID,
		NewOwnerID:  newOwnerID,
		Seq:         j.Sequence,
		BlockHeight: j.BlockHeight,
		SubmittedAt: j.Timestamp,
	}, nil
}
