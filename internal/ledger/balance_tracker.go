package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// BalanceTracker maintains in-memory account balances
type BalanceTracker struct {
	balances map[AccountKey]int64
}

func NewBalanceTracker() *BalanceTracker {
	return &BalanceTracker{
		balances: make(map[AccountKey]int64),
	}
}

// ApplyJournal applies a single journal entry to balances
func (bt *BalanceTracker) ApplyJournal(j Journal) {
	bt.balances[j.DebitAccount] += j.Amount
	bt.balances[j.CreditAccount] -= j.Amount
}

// ApplyBatch applies all journals in a batch
func (bt *BalanceTracker) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}

	for _, j := range batch.Journals {
		bt.ApplyJournal(j)
	}

	return nil
}

// GetBalance returns the current balance for an account
func (bt *BalanceTracker) GetBalance(key AccountKey) int64 {
	return bt.balances[key]
}

// SetBalance overwrites an account balance (snapshot restore only)
func (bt *BalanceTracker) SetBalance(key AccountKey, balance int64) {
	if balance == 0 {
		delete(bt.balances, key)
		return
	}
	bt.balances[key] = balance
}

// === Wallet Queries ===

// GetWalletBalance returns a user's holding balance for an asset
func (bt *BalanceTracker) GetWalletBalance(account uuid.UUID, assetID AssetID) int64 {
	return bt.GetBalance(WalletAccount(account, assetID))
}

// GetVaultBalance returns total locked collateral held in custody
func (bt *BalanceTracker) GetVaultBalance() int64 {
	return bt.GetBalance(VaultAccount())
}

// GetFeePoolBalance returns accumulated fees and penalties
func (bt *BalanceTracker) GetFeePoolBalance() int64 {
	return bt.GetBalance(FeesAccount())
}

// GetOutstandingSupply returns total USDB in circulation. The supply account
// carries the negative counterweight of every mint, so circulation is its
// negation.
func (bt *BalanceTracker) GetOutstandingSupply() int64 {
	return -bt.GetBalance(SupplyAccount())
}

// === Invariant Checks ===

// ValidateSufficientWallet checks a user holds enough of an asset to give up
func (bt *BalanceTracker) ValidateSufficientWallet(account uuid.UUID, assetID AssetID, required int64) error {
	held := bt.GetWalletBalance(account, assetID)
	if held < required {
		return fmt.Errorf("insufficient wallet balance: have=%d, need=%d", held, required)
	}
	return nil
}

// ValidateWalletNonNegative checks a user wallet balance is >= 0
func (bt *BalanceTracker) ValidateWalletNonNegative(account uuid.UUID, assetID AssetID) error {
	held := bt.GetWalletBalance(account, assetID)
	if held < 0 {
		return fmt.Errorf("user %s has negative wallet balance for asset %d: %d",
			account.String(), assetID, held)
	}
	return nil
}

// ValidateNonNegative checks that a specific account balance is >= 0
func (bt *BalanceTracker) ValidateNonNegative(key AccountKey) error {
	balance := bt.GetBalance(key)
	if balance < 0 {
		return fmt.Errorf("account %s has negative balance: %d", key.AccountPath(), balance)
	}
	return nil
}

// ComputeGlobalBalance sums all account balances (should be 0 for zero-sum ledger)
func (bt *BalanceTracker) ComputeGlobalBalance() map[AssetID]int64 {
	totals := make(map[AssetID]int64)

	for key, balance := range bt.balances {
		totals[key.AssetID] += balance
	}

	return totals
}

// Snapshot returns a copy of all balances (for state hashing and persistence)
func (bt *BalanceTracker) Snapshot() map[AccountKey]int64 {
	snapshot := make(map[AccountKey]int64, len(bt.balances))
	for k, v := range bt.balances {
		snapshot[k] = v
	}
	return snapshot
}
