package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// journalNamespace seeds deterministic (v5) batch and journal IDs. Replayed
// commands regenerate byte-identical IDs, so the event-log writer's
// ON CONFLICT (journal_id) DO NOTHING absorbs re-emitted legs instead of
// inserting duplicate rows.
var journalNamespace = uuid.MustParse("8a9e6f70-5c3b-4d12-9e41-2f8c0b7a6d55")

// JournalGenerator creates balanced journal batches from commands
type JournalGenerator struct {
	balanceTracker *BalanceTracker // reference for pre-checks
}

func NewJournalGenerator(tracker *BalanceTracker) *JournalGenerator {
	return &JournalGenerator{
		balanceTracker: tracker,
	}
}

// newBatch builds an empty batch for one applied command. Sequence is the
// global command sequence of the envelope the batch ships with.
func (jg *JournalGenerator) newBatch(eventRef string, sequence, timestamp int64, capacity int) *Batch {
	return &Batch{
		BatchID:   uuid.NewSHA1(journalNamespace, []byte(fmt.Sprintf("%d/%s", sequence, eventRef))),
		EventRef:  eventRef,
		Sequence:  sequence,
		Timestamp: timestamp,
		Journals:  make([]Journal, 0, capacity),
	}
}

func (jg *JournalGenerator) appendJournal(
	batch *Batch,
	debit, credit AccountKey,
	assetID AssetID,
	amount int64,
	journalType JournalType,
) {
	leg := len(batch.Journals)
	batch.Journals = append(batch.Journals, Journal{
		JournalID:     uuid.NewSHA1(journalNamespace, []byte(fmt.Sprintf("%d/%s/%d", batch.Sequence, batch.EventRef, leg))),
		BatchID:       batch.BatchID,
		EventRef:      batch.EventRef,
		Sequence:      batch.Sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		AssetID:       assetID,
		Amount:        amount,
		JournalType:   journalType,
		Timestamp:     batch.Timestamp,
	})
}

// GenerateOpenPosition locks incoming collateral and mints the borrowed
// synthetic in one batch. A zero collateral leg is skipped: opening against
// an existing position may mint debt without adding collateral.
// Moves funds: external:gateway → system:vault (BTC), system:supply → user:wallet (USDB)
func (jg *JournalGenerator) GenerateOpenPosition(
	account uuid.UUID,
	eventRef string,
	sequence int64,
	collateralIn int64,
	debtOut int64,
	timestamp int64,
) (*Batch, error) {
	batch := jg.newBatch(eventRef, sequence, timestamp, 2)

	if collateralIn > 0 {
		jg.appendJournal(batch,
			VaultAccount(), GatewayAccount(),
			AssetBTC, collateralIn, JournalTypeCollateralDeposit)
	}

	jg.appendJournal(batch,
		WalletAccount(account, AssetUSDB), SupplyAccount(),
		AssetUSDB, debtOut, JournalTypeMint)

	return batch, nil
}

// GenerateAddCollateral locks additional collateral into custody.
// Moves funds: external:gateway → system:vault (BTC)
func (jg *JournalGenerator) GenerateAddCollateral(
	account uuid.UUID,
	eventRef string,
	sequence int64,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	batch := jg.newBatch(eventRef, sequence, timestamp, 1)

	jg.appendJournal(batch,
		VaultAccount(), GatewayAccount(),
		AssetBTC, amount, JournalTypeCollateralDeposit)

	return batch, nil
}

// GenerateWithdrawCollateral releases collateral from custody back to the
// owner's wallet. Pre-check: custody must actually hold the amount.
// Moves funds: system:vault → user:wallet (BTC)
func (jg *JournalGenerator) GenerateWithdrawCollateral(
	account uuid.UUID,
	eventRef string,
	sequence int64,
	amount int64,
	timestamp int64,
) (*Batch, error) {
	if vault := jg.balanceTracker.GetVaultBalance(); vault < amount {
		return nil, fmt.Errorf("withdraw pre-check failed: vault holds %d, need %d", vault, amount)
	}

	batch := jg.newBatch(eventRef, sequence, timestamp, 1)

	jg.appendJournal(batch,
		WalletAccount(account, AssetBTC), VaultAccount(),
		AssetBTC, amount, JournalTypeCollateralWithdraw)

	return batch, nil
}

// GenerateRepay burns repaid USDB and, when the repayment closes the
// position, releases the remaining collateral in the same batch.
// Pre-check: the payer must hold the full burn amount (BS-style check from
// the wallet side — a failed burn aborts the whole command).
// Moves funds: user:wallet → system:supply (USDB),
// then system:vault → user:wallet (BTC) on close.
func (jg *JournalGenerator) GenerateRepay(
	account uuid.UUID,
	eventRef string,
	sequence int64,
	burnAmount int64,
	releasedCollateral int64,
	timestamp int64,
) (*Batch, error) {
	if err := jg.balanceTracker.ValidateSufficientWallet(account, AssetUSDB, burnAmount); err != nil {
		return nil, fmt.Errorf("burn pre-check failed: %w", err)
	}

	batch := jg.newBatch(eventRef, sequence, timestamp, 2)

	jg.appendJournal(batch,
		SupplyAccount(), WalletAccount(account, AssetUSDB),
		AssetUSDB, burnAmount, JournalTypeBurn)

	if releasedCollateral > 0 {
		jg.appendJournal(batch,
			WalletAccount(account, AssetBTC), VaultAccount(),
			AssetBTC, releasedCollateral, JournalTypeCollateralRelease)
	}

	return batch, nil
}

// GenerateLiquidation settles an undercollateralized position: the caller's
// wallet covers the full debt burn, the penalty slice of the seized
// collateral goes to the fee pool, and the remainder pays the caller.
// Pre-check: caller must hold the full debt amount.
// Moves funds: caller:wallet → system:supply (USDB),
// system:vault → system:fees (BTC penalty),
// system:vault → caller:wallet (BTC remainder).
func (jg *JournalGenerator) GenerateLiquidation(
	caller uuid.UUID,
	eventRef string,
	sequence int64,
	debtBurn int64,
	penalty int64,
	payout int64,
	timestamp int64,
) (*Batch, error) {
	if err := jg.balanceTracker.ValidateSufficientWallet(caller, AssetUSDB, debtBurn); err != nil {
		return nil, fmt.Errorf("liquidation burn pre-check failed: %w", err)
	}

	batch := jg.newBatch(eventRef, sequence, timestamp, 3)

	if debtBurn > 0 {
		jg.appendJournal(batch,
			SupplyAccount(), WalletAccount(caller, AssetUSDB),
			AssetUSDB, debtBurn, JournalTypeBurn)
	}

	if penalty > 0 {
		jg.appendJournal(batch,
			FeesAccount(), VaultAccount(),
			AssetBTC, penalty, JournalTypeLiquidationPenalty)
	}

	if payout > 0 {
		jg.appendJournal(batch,
			WalletAccount(caller, AssetBTC), VaultAccount(),
			AssetBTC, payout, JournalTypeLiquidationPayout)
	}

	return batch, nil
}
