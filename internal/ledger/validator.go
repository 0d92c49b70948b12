package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// InvariantValidator checks ledger invariants
type InvariantValidator struct {
	tracker *BalanceTracker
}

func NewInvariantValidator(tracker *BalanceTracker) *InvariantValidator {
	return &InvariantValidator{
		tracker: tracker,
	}
}

// ValidateBatchBalance verifies batch is balanced
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateWalletNonNegative checks a user wallet balance >= 0
func (v *InvariantValidator) ValidateWalletNonNegative(account uuid.UUID, assetID AssetID) error {
	return v.tracker.ValidateWalletNonNegative(account, assetID)
}

// ValidateVaultNonNegative checks custody never goes short of collateral
func (v *InvariantValidator) ValidateVaultNonNegative() error {
	return v.tracker.ValidateNonNegative(VaultAccount())
}

// ValidateSupplyCoverage verifies outstanding USDB never exceeds the debt
// recorded against positions. Accrued interest grows debt without a mint,
// so circulation is at most the book total.
func (v *InvariantValidator) ValidateSupplyCoverage(totalDebt int64) error {
	outstanding := v.tracker.GetOutstandingSupply()
	if outstanding > totalDebt {
		return fmt.Errorf("outstanding supply %d exceeds recorded debt %d", outstanding, totalDebt)
	}
	return nil
}

// ValidateGlobalBalance verifies system is zero-sum
func (v *InvariantValidator) ValidateGlobalBalance() error {
	totals := v.tracker.ComputeGlobalBalance()

	for assetID, total := range totals {
		if total != 0 {
			assetName, _ := GetAssetName(assetID)
			return fmt.Errorf("global balance for %s is non-zero: %d", assetName, total)
		}
	}

	return nil
}
