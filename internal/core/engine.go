package core

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chinedu-ifeanyi/stable-btc/internal/cdp"
	"github.com/chinedu-ifeanyi/stable-btc/internal/command"
	"github.com/chinedu-ifeanyi/stable-btc/internal/ledger"
	"github.com/chinedu-ifeanyi/stable-btc/internal/observability"

	"github.com/google/uuid"
)

// Engine is the single-writer command processor. All validation happens
// against staged copies; nothing is committed until every precondition,
// including the journal pre-checks, has passed. A failed command therefore
// leaves zero mutations behind.
type Engine struct {
	mu sync.Mutex

	sequence          int64
	hasher            *StateHasher
	balanceTracker    *ledger.BalanceTracker
	journalGen        *ledger.JournalGenerator
	validator         *ledger.InvariantValidator
	book              *cdp.PositionBook
	protocol          *cdp.ProtocolState
	params            cdp.Params
	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
}

// CoreOutput is one applied command plus its ledger effects, emitted to the
// persistence and projection pipelines.
type CoreOutput struct {
	Envelope   *command.Envelope
	Batch      *ledger.Batch
	StateDelta []byte

	// Post-command position state for the envelope's account. Nil with
	// PositionClosed set means the command deleted the position.
	Position       *cdp.Position
	PositionClosed bool

	// Aggregate state after the command, for the protocol stats projection.
	Stats ProtocolStats
}

func NewEngine(
	owner uuid.UUID,
	genesisHeight int64,
	params cdp.Params,
	startSequence int64,
	persistChan, projectionChan chan<- CoreOutput,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	balanceTracker := ledger.NewBalanceTracker()

	idempotency := NewIdempotencyChecker(1_000_000, dbChecker)
	idempotency.prom = metrics
	sequenceValidator := NewSequenceValidator()
	sequenceValidator.prom = metrics

	return &Engine{
		sequence:          startSequence,
		hasher:            NewStateHasher(),
		balanceTracker:    balanceTracker,
		journalGen:        ledger.NewJournalGenerator(balanceTracker),
		validator:         ledger.NewInvariantValidator(balanceTracker),
		book:              cdp.NewPositionBook(),
		protocol:          cdp.NewProtocolState(owner, genesisHeight),
		params:            params,
		idempotency:       idempotency,
		sequenceValidator: sequenceValidator,
		metrics:           metrics,
		persistChan:       persistChan,
		projectionChan:    projectionChan,
	}, nil
}

// commandResult is the staged outcome of a handler: the journal batch (nil
// for state-only commands), the commit closure that performs all mutations,
// and post-check context.
type commandResult struct {
	batch  *ledger.Batch
	commit func()

	// wallets to check non-negative after the batch lands
	wallets []uuid.UUID
}

// ProcessCommand runs the full pipeline for one command:
// dedup → sequence validation → dispatch (validate + stage) → batch balance
// check → balance apply → commit → hash → envelope → post-checks → emit.
func (e *Engine) ProcessCommand(cmd command.Command) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	commandType := cmd.CommandType().String()
	idempotencyKey := cmd.IdempotencyKey()

	// Step 1: Idempotency check (two-tier)
	isDuplicate := e.idempotency.IsDuplicate(commandType, idempotencyKey)

	// Step 2: Sequence validation. Oracle submissions are gap-tolerant and
	// silently drop stale sequences; everything else is strict per-partition.
	if price, ok := cmd.(*command.PriceSubmit); ok {
		if !e.sequenceValidator.ValidatePriceSequence(price.PriceSequence) {
			return nil
		}
	} else if partition := e.getPartition(cmd); partition == globalPartition {
		// Admin commands carry coarse operator-assigned sequences, so the
		// global partition tolerates gaps and drops stale entries.
		if !e.sequenceValidator.ValidateLooseSequence(partition, cmd.SourceSequence()) {
			return nil
		}
	} else {
		if err := e.sequenceValidator.ValidateSequence(partition, cmd.SourceSequence(), idempotencyKey, isDuplicate); err != nil {
			return fmt.Errorf("sequence validation failed: %w", err)
		}
	}

	// If duplicate, skip processing
	if isDuplicate {
		if e.metrics != nil {
			e.metrics.CommandsRejected.WithLabelValues(commandType, "duplicate").Inc()
		}
		return nil
	}

	// Step 3: Dispatch - validate and stage
	result, err := e.dispatch(cmd)
	if err != nil {
		if e.metrics != nil {
			e.metrics.CommandsRejected.WithLabelValues(commandType, cdp.CodeOf(err).String()).Inc()
			if cmd.CommandType() == command.CommandTypeLiquidate {
				outcome := "rejected"
				if cdp.CodeOf(err) == cdp.CodePositionSafe {
					outcome = "safe"
				}
				e.metrics.LiquidationsExecuted.WithLabelValues(outcome).Inc()
			}
		}
		return err
	}

	// Step 4: Validate batch balance (state-only commands carry no batch)
	if result.batch != nil {
		if err := e.validator.ValidateBatchBalance(result.batch); err != nil {
			panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
		}

		// Step 5: Apply batch to balances
		if err := e.balanceTracker.ApplyBatch(result.batch); err != nil {
			return fmt.Errorf("apply batch failed: %w", err)
		}
	}

	// Step 6: Commit staged state mutations
	if result.commit != nil {
		result.commit()
	}

	// Step 7: Compute state digest and extend the hash chain
	stateDigest := e.computeStateDigest(result.batch, cmd.Account())
	prevHash := e.hasher.GetPrevHash()
	hashStart := time.Now()
	stateHash := e.hasher.ComputeHash(e.sequence, stateDigest)
	if e.metrics != nil {
		e.metrics.CoreStateHashDur.Observe(time.Since(hashStart).Seconds())
	}

	// Step 8: Build envelope
	envelope := &command.Envelope{
		Sequence:       e.sequence,
		IdempotencyKey: idempotencyKey,
		CommandType:    cmd.CommandType(),
		Account:        cmd.Account(),
		Height:         cmd.Height(),
		Timestamp:      cmd.Timestamp(),
		SourceSequence: cmd.SourceSequence(),
		Payload:        command.MarshalPayload(cmd),
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}

	output := CoreOutput{
		Envelope:   envelope,
		Batch:      result.batch,
		StateDelta: stateDigest,
		Stats:      e.statsLocked(),
	}
	if account := cmd.Account(); account != nil {
		if pos := e.book.Get(*account); pos != nil {
			p := *pos
			output.Position = &p
		} else {
			output.PositionClosed = true
		}
	}

	e.sequence++

	// Step 9: Post-checks
	if err := e.postCheckInvariants(result.wallets); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	// Step 10: Emit. Persist channel uses a BLOCKING send (backpressure: the
	// engine stalls until the persistence worker drains, so no applied command
	// is ever lost). Projection channel is non-blocking with silent drop —
	// projections rebuild from the event log if they fall behind.
	select {
	case e.persistChan <- output:
	default:
		if e.metrics != nil {
			e.metrics.PersistBackpressure.Inc()
		}
		e.persistChan <- output
	}

	select {
	case e.projectionChan <- output:
	default:
		if e.metrics != nil {
			e.metrics.ProjectionDrops.WithLabelValues("core").Inc()
		}
	}

	// Step 11: Mark as processed (add to LRU)
	e.idempotency.MarkProcessed(commandType, idempotencyKey)

	// Record metrics
	if e.metrics != nil {
		e.metrics.CommandsApplied.WithLabelValues(commandType).Inc()
		e.metrics.CommandDuration.WithLabelValues(commandType).Observe(time.Since(start).Seconds())
		if result.batch != nil {
			for _, j := range result.batch.Journals {
				e.metrics.CoreJournals.WithLabelValues(j.JournalType.String()).Inc()
			}
		}
		e.metrics.CoreSequence.Set(float64(e.sequence))
		e.metrics.DedupLRUSize.Set(float64(e.idempotency.lru.Size()))
		e.publishProtocolGauges()
	}

	return nil
}

func (e *Engine) publishProtocolGauges() {
	e.metrics.TotalDebt.Set(float64(e.protocol.TotalDebt))
	e.metrics.TotalCollateral.Set(float64(e.protocol.TotalCollateral))
	e.metrics.StabilityFeeAccumulator.Set(float64(e.protocol.StabilityFeeAccumulator))
	e.metrics.OpenPositions.Set(float64(e.book.Len()))
	if e.protocol.Paused {
		e.metrics.ProtocolPaused.Set(1)
	} else {
		e.metrics.ProtocolPaused.Set(0)
	}
	if e.protocol.Price != nil {
		e.metrics.OraclePrice.Set(float64(e.protocol.Price.Price))
	}
}

// getPartition determines partition key for sequence validation
func (e *Engine) getPartition(cmd command.Command) string {
	if account := cmd.Account(); account != nil {
		return fmt.Sprintf("account:%s", account)
	}
	return globalPartition
}

func (e *Engine) dispatch(cmd command.Command) (commandResult, error) {
	switch c := cmd.(type) {
	case *command.OpenPosition:
		return e.handleOpenPosition(c)
	case *command.AddCollateral:
		return e.handleAddCollateral(c)
	case *command.WithdrawCollateral:
		return e.handleWithdrawCollateral(c)
	case *command.RepayDebt:
		return e.handleRepayDebt(c)
	case *command.Liquidate:
		return e.handleLiquidate(c)
	case *command.PriceSubmit:
		return e.handlePriceSubmit(c)
	case *command.PauseSet:
		return e.handlePauseSet(c)
	case *command.OwnershipTransfer:
		return e.handleOwnershipTransfer(c)
	default:
		return commandResult{}, fmt.Errorf("unknown command type: %T", cmd)
	}
}

// handleOpenPosition creates a position, or merges into the account's
// existing one. The collateralization check runs against the merged totals
// with interest caught up first.
func (e *Engine) handleOpenPosition(cmd *command.OpenPosition) (commandResult, error) {
	if e.protocol.Paused {
		return commandResult{}, cdp.ErrProtocolPaused
	}
	// Zero collateral-in is legal: it mints additional debt against the
	// account's existing collateral. The merged-totals check below rejects
	// it when there is nothing to borrow against.
	if cmd.CollateralIn < 0 {
		return commandResult{}, cdp.ErrInvalidAmount
	}
	if cmd.DebtOut < e.params.MinimumLoan {
		return commandResult{}, cdp.ErrMinimumLoanRequired
	}

	price, err := e.protocol.CurrentPrice(cmd.SubmittedAt, e.params.PriceFreshnessWindow)
	if err != nil {
		return commandResult{}, err
	}

	accrual := e.protocol.StageGlobalAccrual(cmd.BlockHeight, e.params)
	snap := e.book.AccrueSnapshot(cmd.AccountID, cmd.BlockHeight, e.params)

	newCollateral := snap.Collateral + cmd.CollateralIn
	newDebt := snap.Debt + cmd.DebtOut

	if !cdp.IsSufficient(newCollateral, newDebt, price) {
		return commandResult{}, cdp.ErrInsufficientCollateral
	}

	batch, err := e.journalGen.GenerateOpenPosition(
		cmd.AccountID, cmd.IdempotencyKey(), e.sequence, cmd.CollateralIn, cmd.DebtOut, cmd.SubmittedAt)
	if err != nil {
		return commandResult{}, err
	}

	return commandResult{
		batch: batch,
		commit: func() {
			e.protocol.CommitGlobalAccrual(cmd.BlockHeight, accrual)
			snap.Collateral = newCollateral
			snap.Debt = newDebt
			e.book.Commit(snap)
			e.protocol.TotalCollateral += cmd.CollateralIn
			e.protocol.TotalDebt += cmd.DebtOut
		},
		wallets: []uuid.UUID{cmd.AccountID},
	}, nil
}

// handleAddCollateral tops up an existing position. No price check: adding
// collateral can only improve the ratio.
func (e *Engine) handleAddCollateral(cmd *command.AddCollateral) (commandResult, error) {
	if e.book.Get(cmd.AccountID) == nil {
		return commandResult{}, cdp.ErrPositionNotFound
	}
	if cmd.Amount <= 0 {
		return commandResult{}, cdp.ErrInvalidAmount
	}
	if e.protocol.Paused {
		return commandResult{}, cdp.ErrProtocolPaused
	}

	accrual := e.protocol.StageGlobalAccrual(cmd.BlockHeight, e.params)
	snap := e.book.AccrueSnapshot(cmd.AccountID, cmd.BlockHeight, e.params)

	batch, err := e.journalGen.GenerateAddCollateral(
		cmd.AccountID, cmd.IdempotencyKey(), e.sequence, cmd.Amount, cmd.SubmittedAt)
	if err != nil {
		return commandResult{}, err
	}

	return commandResult{
		batch: batch,
		commit: func() {
			e.protocol.CommitGlobalAccrual(cmd.BlockHeight, accrual)
			snap.Collateral += cmd.Amount
			e.book.Commit(snap)
			e.protocol.TotalCollateral += cmd.Amount
		},
	}, nil
}

// handleWithdrawCollateral releases collateral provided the remainder still
// covers the minimum collateral ratio at a fresh price.
func (e *Engine) handleWithdrawCollateral(cmd *command.WithdrawCollateral) (commandResult, error) {
	if e.book.Get(cmd.AccountID) == nil {
		return commandResult{}, cdp.ErrPositionNotFound
	}
	if cmd.Amount <= 0 {
		return commandResult{}, cdp.ErrInvalidAmount
	}
	if e.protocol.Paused {
		return commandResult{}, cdp.ErrProtocolPaused
	}

	price, err := e.protocol.CurrentPrice(cmd.SubmittedAt, e.params.PriceFreshnessWindow)
	if err != nil {
		return commandResult{}, err
	}

	accrual := e.protocol.StageGlobalAccrual(cmd.BlockHeight, e.params)
	snap := e.book.AccrueSnapshot(cmd.AccountID, cmd.BlockHeight, e.params)

	if cmd.Amount > snap.Collateral {
		return commandResult{}, cdp.ErrInsufficientCollateral
	}

	remaining := snap.Collateral - cmd.Amount
	if !cdp.IsSufficient(remaining, snap.Debt, price) {
		return commandResult{}, cdp.ErrUndercollateralized
	}

	batch, err := e.journalGen.GenerateWithdrawCollateral(
		cmd.AccountID, cmd.IdempotencyKey(), e.sequence, cmd.Amount, cmd.SubmittedAt)
	if err != nil {
		return commandResult{}, err
	}

	return commandResult{
		batch: batch,
		commit: func() {
			e.protocol.CommitGlobalAccrual(cmd.BlockHeight, accrual)
			snap.Collateral = remaining
			e.book.Commit(snap)
			e.protocol.TotalCollateral -= cmd.Amount
		},
		wallets: []uuid.UUID{cmd.AccountID},
	}, nil
}

// handleRepayDebt burns repaid USDB, capped at the outstanding debt. Full
// repayment deletes the position and releases its collateral to the owner's
// wallet in the same batch. The burn pre-check failing aborts the whole
// command with no mutation.
func (e *Engine) handleRepayDebt(cmd *command.RepayDebt) (commandResult, error) {
	if e.book.Get(cmd.AccountID) == nil {
		return commandResult{}, cdp.ErrPositionNotFound
	}
	if cmd.Amount <= 0 {
		return commandResult{}, cdp.ErrInvalidAmount
	}
	if e.protocol.Paused {
		return commandResult{}, cdp.ErrProtocolPaused
	}

	accrual := e.protocol.StageGlobalAccrual(cmd.BlockHeight, e.params)
	snap := e.book.AccrueSnapshot(cmd.AccountID, cmd.BlockHeight, e.params)

	repayAmount := cmd.Amount
	if repayAmount > snap.Debt {
		repayAmount = snap.Debt
	}
	newDebt := snap.Debt - repayAmount

	var releasedCollateral int64
	if newDebt == 0 {
		releasedCollateral = snap.Collateral
	}

	batch, err := e.journalGen.GenerateRepay(
		cmd.AccountID, cmd.IdempotencyKey(), e.sequence, repayAmount, releasedCollateral, cmd.SubmittedAt)
	if err != nil {
		return commandResult{}, fmt.Errorf("%w: %v", cdp.ErrInsufficientDebt, err)
	}

	return commandResult{
		batch: batch,
		commit: func() {
			e.protocol.CommitGlobalAccrual(cmd.BlockHeight, accrual)
			snap.Debt = newDebt
			if newDebt == 0 {
				snap.Collateral = 0
			}
			e.book.Commit(snap)
			e.protocol.TotalDebt -= repayAmount
			if releasedCollateral > 0 {
				e.protocol.TotalCollateral -= releasedCollateral
			}
		},
		wallets: []uuid.UUID{cmd.AccountID},
	}, nil
}

// handleLiquidate resolves an unsafe position in one step, first caller
// wins. The caller burns the target's full accrued debt, the penalty slice
// of the seized collateral stays with the protocol, and the remainder pays
// the caller.
func (e *Engine) handleLiquidate(cmd *command.Liquidate) (commandResult, error) {
	if cmd.CallerID == cmd.TargetID {
		return commandResult{}, cdp.ErrUnauthorized
	}
	if e.protocol.Paused {
		return commandResult{}, cdp.ErrProtocolPaused
	}
	if e.book.Get(cmd.TargetID) == nil {
		return commandResult{}, cdp.ErrPositionNotFound
	}

	price, err := e.protocol.CurrentPrice(cmd.SubmittedAt, e.params.PriceFreshnessWindow)
	if err != nil {
		return commandResult{}, err
	}

	accrual := e.protocol.StageGlobalAccrual(cmd.BlockHeight, e.params)
	snap := e.book.AccrueSnapshot(cmd.TargetID, cmd.BlockHeight, e.params)

	if !cdp.IsLiquidatable(snap.Collateral, snap.Debt, price) {
		return commandResult{}, cdp.ErrPositionSafe
	}

	debtBurn := snap.Debt
	penalty := cdp.PenaltyAmount(snap.Collateral)
	payout := snap.Collateral - penalty

	batch, err := e.journalGen.GenerateLiquidation(
		cmd.CallerID, cmd.IdempotencyKey(), e.sequence, debtBurn, penalty, payout, cmd.SubmittedAt)
	if err != nil {
		return commandResult{}, fmt.Errorf("%w: %v", cdp.ErrInsufficientDebt, err)
	}

	seizedCollateral := snap.Collateral

	return commandResult{
		batch: batch,
		commit: func() {
			e.protocol.CommitGlobalAccrual(cmd.BlockHeight, accrual)
			e.book.Delete(cmd.TargetID)
			e.protocol.TotalCollateral -= seizedCollateral
			e.protocol.TotalDebt -= debtBurn
			e.protocol.StabilityFeeAccumulator += penalty
			if e.metrics != nil {
				e.metrics.LiquidationsExecuted.WithLabelValues("success").Inc()
				e.metrics.LiquidationPenalty.Add(float64(penalty))
				e.metrics.LiquidationPayout.Add(float64(payout))
			}
		},
		wallets: []uuid.UUID{cmd.CallerID},
	}, nil
}

// handlePriceSubmit records a trusted oracle push. Owner-gated; stale
// sequences never reach this point (dropped by the pipeline).
func (e *Engine) handlePriceSubmit(cmd *command.PriceSubmit) (commandResult, error) {
	if cmd.CallerID != e.protocol.Owner {
		return commandResult{}, cdp.ErrUnauthorized
	}
	if cmd.Price <= 0 {
		return commandResult{}, cdp.ErrInvalidAmount
	}

	return commandResult{
		commit: func() {
			e.protocol.Price = &cdp.PriceRecord{
				Price:      cmd.Price,
				ObservedAt: cmd.ObservedAt,
			}
		},
	}, nil
}

func (e *Engine) handlePauseSet(cmd *command.PauseSet) (commandResult, error) {
	if cmd.CallerID != e.protocol.Owner {
		return commandResult{}, cdp.ErrUnauthorized
	}

	return commandResult{
		commit: func() {
			e.protocol.Paused = cmd.Paused
		},
	}, nil
}

func (e *Engine) handleOwnershipTransfer(cmd *command.OwnershipTransfer) (commandResult, error) {
	if cmd.CallerID != e.protocol.Owner {
		return commandResult{}, cdp.ErrUnauthorized
	}
	if cmd.NewOwnerID == uuid.Nil {
		return commandResult{}, cdp.ErrInvalidAmount
	}

	return commandResult{
		commit: func() {
			e.protocol.Owner = cmd.NewOwnerID
		},
	}, nil
}

// computeStateDigest creates canonical bytes for the state hash: balances of
// every account the batch touched (sorted by path), the protocol aggregate
// record, and the affected position.
func (e *Engine) computeStateDigest(batch *ledger.Batch, account *uuid.UUID) []byte {
	affectedAccounts := make(map[ledger.AccountKey]bool)

	if batch != nil {
		for _, j := range batch.Journals {
			affectedAccounts[j.DebitAccount] = true
			affectedAccounts[j.CreditAccount] = true
		}
	}

	accounts := make([]ledger.AccountKey, 0, len(affectedAccounts))
	for key := range affectedAccounts {
		accounts = append(accounts, key)
	}

	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, len(accounts)*64+128)

	for _, key := range accounts {
		balance := e.balanceTracker.GetBalance(key)

		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)
		digest = appendInt64LE(digest, balance)
	}

	digest = append(digest, e.protocol.CanonicalBytes()...)

	if account != nil {
		if pos := e.book.Get(*account); pos != nil {
			digest = append(digest, pos.CanonicalBytes()...)
		} else {
			// Deleted or absent position: the account UUID alone marks it
			digest = append(digest, account[:]...)
		}
	}

	return digest
}

func appendInt64LE(buf []byte, v int64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// postCheckInvariants validates ledger invariants after commit
func (e *Engine) postCheckInvariants(wallets []uuid.UUID) error {
	for _, account := range wallets {
		if err := e.validator.ValidateWalletNonNegative(account, ledger.AssetBTC); err != nil {
			return err
		}
		if err := e.validator.ValidateWalletNonNegative(account, ledger.AssetUSDB); err != nil {
			return err
		}
	}

	if err := e.validator.ValidateVaultNonNegative(); err != nil {
		return err
	}

	// Periodic full sweep: zero-sum ledger and issuance coverage
	if e.sequence > 0 && e.sequence%1000 == 0 {
		if err := e.validator.ValidateGlobalBalance(); err != nil {
			return fmt.Errorf("at seq %d: %w", e.sequence, err)
		}
		if err := e.validator.ValidateSupplyCoverage(e.book.SumDebt()); err != nil {
			return fmt.Errorf("at seq %d: %w", e.sequence, err)
		}
	}

	return nil
}

// --- Queries ---

// ProtocolStats is a point-in-time copy of the protocol aggregates.
type ProtocolStats struct {
	TotalDebt               int64
	TotalCollateral         int64
	StabilityFeeAccumulator int64
	LastAccrualHeight       int64
	Paused                  bool
	Owner                   uuid.UUID
	Price                   *cdp.PriceRecord
	OpenPositions           int64
}

// GetPosition returns a copy of the account's position.
func (e *Engine) GetPosition(account uuid.UUID) (cdp.Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.book.Get(account)
	if pos == nil {
		return cdp.Position{}, false
	}
	return *pos, true
}

// GetCollateralRatio returns the position's current ratio as a whole
// percentage. Absent when there is no position, no price data, or zero debt.
func (e *Engine) GetCollateralRatio(account uuid.UUID) (int64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos := e.book.Get(account)
	if pos == nil || e.protocol.Price == nil {
		return 0, false
	}
	return cdp.CollateralRatioPercent(pos.Collateral, pos.Debt, e.protocol.Price.Price)
}

// GetProtocolStats returns a copy of the aggregate record.
func (e *Engine) GetProtocolStats() ProtocolStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statsLocked()
}

func (e *Engine) statsLocked() ProtocolStats {
	stats := ProtocolStats{
		TotalDebt:               e.protocol.TotalDebt,
		TotalCollateral:         e.protocol.TotalCollateral,
		StabilityFeeAccumulator: e.protocol.StabilityFeeAccumulator,
		LastAccrualHeight:       e.protocol.LastAccrualHeight,
		Paused:                  e.protocol.Paused,
		Owner:                   e.protocol.Owner,
		OpenPositions:           int64(e.book.Len()),
	}
	if e.protocol.Price != nil {
		p := *e.protocol.Price
		stats.Price = &p
	}
	return stats
}

// GetWalletBalance returns an account's asset holding.
func (e *Engine) GetWalletBalance(account uuid.UUID, assetID ledger.AssetID) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balanceTracker.GetWalletBalance(account, assetID)
}

// GetSequence returns the current global sequence number.
func (e *Engine) GetSequence() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (e *Engine) GetStateHash() [32]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasher.GetPrevHash()
}

// --- Snapshot Restore & Startup ---

// SnapshotState holds the serializable in-memory state for restore.
// This mirrors persistence.SnapshotData but uses typed fields.
type SnapshotState struct {
	Sequence        int64
	StateHash       [32]byte
	Balances        map[ledger.AccountKey]int64
	Positions       []*cdp.Position
	Protocol        cdp.ProtocolState
	SequenceState   map[string]int64
	IdempotencyKeys []string
}

// RestoreFromSnapshot restores the engine's in-memory state. On warm
// restart the caller loads the latest snapshot, restores, then replays the
// event log from Sequence+1.
func (e *Engine) RestoreFromSnapshot(snap *SnapshotState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sequence = snap.Sequence + 1 // next sequence to assign
	e.hasher.SetPrevHash(snap.StateHash)

	for key, balance := range snap.Balances {
		e.balanceTracker.SetBalance(key, balance)
	}

	for _, pos := range snap.Positions {
		e.book.Set(pos)
	}

	protocol := snap.Protocol
	if protocol.Price != nil {
		p := *protocol.Price
		protocol.Price = &p
	}
	*e.protocol = protocol

	for partition, nextSeq := range snap.SequenceState {
		e.sequenceValidator.SetExpectedSequence(partition, nextSeq)
	}

	e.idempotency.WarmLRU(snap.IdempotencyKeys)
}

// AttachDBChecker wires the tier-2 idempotency lookup. Called after event
// replay: a checker attached during replay would flag every replayed
// command as a duplicate of its own event_log row.
func (e *Engine) AttachDBChecker(dbChecker DBIdempotencyChecker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.idempotency.SetDBChecker(dbChecker)
}

// WarmLRU loads recent idempotency keys into the LRU cache, avoiding
// cold-path DB lookups for recently processed commands.
func (e *Engine) WarmLRU(keys []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.idempotency.WarmLRU(keys)
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (e *Engine) CreateSnapshotState() *SnapshotState {
	e.mu.Lock()
	defer e.mu.Unlock()

	protocol := *e.protocol
	if protocol.Price != nil {
		p := *protocol.Price
		protocol.Price = &p
	}

	// Copy positions: the book mutates them in place and the caller
	// serializes the snapshot outside the lock.
	positions := make([]*cdp.Position, 0, e.book.Len())
	for _, pos := range e.book.All() {
		p := *pos
		positions = append(positions, &p)
	}

	return &SnapshotState{
		Sequence:        e.sequence - 1, // last processed sequence
		StateHash:       e.hasher.GetPrevHash(),
		Balances:        e.balanceTracker.Snapshot(),
		Positions:       positions,
		Protocol:        protocol,
		SequenceState:   e.sequenceValidator.Snapshot(),
		IdempotencyKeys: e.idempotency.lru.GetAllKeys(),
	}
}
