package cdp

import "errors"

// ErrorCode is the stable external failure code carried to callers,
// projections, and outbound events. Codes are part of the wire contract
// and must not be renumbered.
type ErrorCode int32

const (
	CodeNone ErrorCode = iota
	CodeUnauthorized
	CodeInsufficientCollateral
	CodePositionNotFound
	CodeUndercollateralized
	CodeMinimumLoanRequired
	CodeInsufficientDebt
	CodePriceStale
	CodeProtocolPaused
	CodeInvalidAmount
	CodeNoPriceData
	// CodePositionSafe is deliberately distinct from CodeUnauthorized:
	// "you may not do this" and "this is currently safe" are different answers.
	CodePositionSafe
)

var (
	ErrUnauthorized           = errors.New("cdp: unauthorized")
	ErrInsufficientCollateral = errors.New("cdp: insufficient collateral")
	ErrPositionNotFound       = errors.New("cdp: position not found")
	ErrUndercollateralized    = errors.New("cdp: withdrawal would undercollateralize position")
	ErrMinimumLoanRequired    = errors.New("cdp: debt below minimum loan")
	ErrInsufficientDebt       = errors.New("cdp: insufficient synthetic balance to burn")
	ErrPriceStale             = errors.New("cdp: price record is stale")
	ErrProtocolPaused         = errors.New("cdp: protocol is paused")
	ErrInvalidAmount          = errors.New("cdp: amount must be positive")
	ErrNoPriceData            = errors.New("cdp: no price data")
	ErrPositionSafe           = errors.New("cdp: position is safe, not liquidatable")
)

// CodeOf maps an error (possibly wrapped) to its stable code.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return CodeNone
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrInsufficientCollateral):
		return CodeInsufficientCollateral
	case errors.Is(err, ErrPositionNotFound):
		return CodePositionNotFound
	case errors.Is(err, ErrUndercollateralized):
		return CodeUndercollateralized
	case errors.Is(err, ErrMinimumLoanRequired):
		return CodeMinimumLoanRequired
	case errors.Is(err, ErrInsufficientDebt):
		return CodeInsufficientDebt
	case errors.Is(err, ErrPriceStale):
		return CodePriceStale
	case errors.Is(err, ErrProtocolPaused):
		return CodeProtocolPaused
	case errors.Is(err, ErrInvalidAmount):
		return CodeInvalidAmount
	case errors.Is(err, ErrNoPriceData):
		return CodeNoPriceData
	case errors.Is(err, ErrPositionSafe):
		return CodePositionSafe
	default:
		return CodeNone
	}
}

func (c ErrorCode) String() string {
	switch c {
	case CodeNone:
		return "None"
	case CodeUnauthorized:
		return "Unauthorized"
	case CodeInsufficientCollateral:
		return "InsufficientCollateral"
	case CodePositionNotFound:
		return "PositionNotFound"
	case CodeUndercollateralized:
		return "Undercollateralized"
	case CodeMinimumLoanRequired:
		return "MinimumLoanRequired"
	case CodeInsufficientDebt:
		return "InsufficientDebt"
	case CodePriceStale:
		return "PriceStale"
	case CodeProtocolPaused:
		return "ProtocolPaused"
	case CodeInvalidAmount:
		return "InvalidAmount"
	case CodeNoPriceData:
		return "NoPriceData"
	case CodePositionSafe:
		return "PositionSafe"
	default:
		return "Unknown"
	}
}
