package query

import "github.com/google/uuid"

// PositionResponse is a debt position for API queries.
type PositionResponse struct {
	AccountID        uuid.UUID `json:"account_id"`
	Collateral       int64     `json:"collateral"`
	Debt             int64     `json:"debt"`
	LastUpdateHeight int64     `json:"last_update_height"`
	Version          int64     `json:"version"`

	// Whole-percent ratio at the last accepted price. Absent without
	// price data.
	CollateralRatioPct *int64 `json:"collateral_ratio_pct,omitempty"`

	AsOfSequence int64 `json:"as_of_sequence"`
}

// StatsResponse is the aggregate protocol state for API queries.
type StatsResponse struct {
	TotalDebt               int64  `json:"total_debt"`
	TotalCollateral         int64  `json:"total_collateral"`
	StabilityFeeAccumulator int64  `json:"stability_fee_accumulator"`
	LastAccrualHeight       int64  `json:"last_accrual_height"`
	Paused                  bool   `json:"paused"`
	OwnerID                 string `json:"owner_id"`
	Price                   *int64 `json:"price,omitempty"`
	PriceObservedAt         *int64 `json:"price_observed_at,omitempty"`
	OpenPositions           int64  `json:"open_positions"`
	AsOfSequence            int64  `json:"as_of_sequence"`
}

// WalletResponse is an account's asset holdings for API queries.
type WalletResponse struct {
	AccountID    uuid.UUID `json:"account_id"`
	BTC          int64     `json:"btc"`
	USDB         int64     `json:"usdb"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// JournalHistoryEntry is one journal row for API queries.
type JournalHistoryEntry struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	AssetID       uint16 `json:"asset_id"`
	Amount        int64  `json:"amount"`
	JournalType   int32  `json:"journal_type"`
	Timestamp     int64  `json:"timestamp"`
}

// LiquidationHistoryEntry is one executed liquidation for API queries.
type LiquidationHistoryEntry struct {
	Sequence      int64  `json:"sequence"`
	TargetAccount string `json:"target_account"`
	CallerAccount string `json:"caller_account"`
	DebtBurned    int64  `json:"debt_burned"`
	Penalty       int64  `json:"penalty"`
	Payout        int64  `json:"payout"`
	Height        int64  `json:"height"`
	Timestamp     int64  `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool              `json:"is_healthy"`
	HashChainBreaks  []int64           `json:"hash_chain_breaks,omitempty"`
	UnbalancedAssets []UnbalancedAsset `json:"unbalanced_assets,omitempty"`
}

// UnbalancedAsset is an asset whose projected balances do not sum to zero.
type UnbalancedAsset struct {
	AssetID   uint16 `json:"asset_id"`
	Imbalance int64  `json:"imbalance"`
}
