package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/chinedu-ifeanyi/stable-btc/internal/cdp"
	"github.com/chinedu-ifeanyi/stable-btc/internal/core"
	"github.com/chinedu-ifeanyi/stable-btc/internal/ledger"
	"github.com/chinedu-ifeanyi/stable-btc/internal/projection"
)

// Service answers read requests. Live state (positions, wallets, protocol
// aggregates) comes straight from the engine so reads are never staler than
// the last applied command; history queries go to Postgres. All responses
// carry as_of_sequence for freshness semantics.
type Service struct {
	db     *sql.DB
	engine *core.Engine
}

func NewService(db *sql.DB, engine *core.Engine) *Service {
	return &Service{db: db, engine: engine}
}

// GetPosition returns the account's live position, with the current ratio
// when price data exists.
func (s *Service) GetPosition(ctx context.Context, account uuid.UUID) (*PositionResponse, error) {
	pos, ok := s.engine.GetPosition(account)
	if !ok {
		return nil, cdp.ErrPositionNotFound
	}

	resp := &PositionResponse{
		AccountID:        pos.Account,
		Collateral:       pos.Collateral,
		Debt:             pos.Debt,
		LastUpdateHeight: pos.LastUpdateHeight,
		Version:          pos.Version,
		AsOfSequence:     s.engine.GetSequence() - 1,
	}
	if ratio, ok := s.engine.GetCollateralRatio(account); ok {
		resp.CollateralRatioPct = &ratio
	}
	return resp, nil
}

// GetProtocolStats returns the live aggregate state.
func (s *Service) GetProtocolStats(ctx context.Context) (*StatsResponse, error) {
	stats := s.engine.GetProtocolStats()

	resp := &StatsResponse{
		TotalDebt:               stats.TotalDebt,
		TotalCollateral:         stats.TotalCollateral,
		StabilityFeeAccumulator: stats.StabilityFeeAccumulator,
		LastAccrualHeight:       stats.LastAccrualHeight,
		Paused:                  stats.Paused,
		OwnerID:                 stats.Owner.String(),
		OpenPositions:           stats.OpenPositions,
		AsOfSequence:            s.engine.GetSequence() - 1,
	}
	if stats.Price != nil {
		price := stats.Price.Price
		observedAt := stats.Price.ObservedAt
		resp.Price = &price
		resp.PriceObservedAt = &observedAt
	}
	return resp, nil
}

// GetWallet returns the account's live BTC and USDB holdings.
func (s *Service) GetWallet(ctx context.Context, account uuid.UUID) (*WalletResponse, error) {
	return &WalletResponse{
		AccountID:    account,
		BTC:          s.engine.GetWalletBalance(account, ledger.AssetBTC),
		USDB:         s.engine.GetWalletBalance(account, ledger.AssetUSDB),
		AsOfSequence: s.engine.GetSequence() - 1,
	}, nil
}

// GetJournalHistory returns the account's journal rows with cursor-based
// pagination: pass the lowest sequence from the previous page as
// afterSequence to fetch the next one.
func (s *Service) GetJournalHistory(
	ctx context.Context,
	account uuid.UUID,
	limit int,
	afterSequence *int64,
) ([]JournalHistoryEntry, error) {
	accountPrefix := fmt.Sprintf("user:%s:%%", account)

	query := `
		SELECT journal_id, batch_id, event_ref, sequence,
		       debit_account, credit_account, asset_id, amount, journal_type, timestamp
		FROM event_log.journal
		WHERE (debit_account LIKE $1 OR credit_account LIKE $1)
	`
	args := []interface{}{accountPrefix}
	argIdx := 2

	if afterSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *afterSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalHistoryEntry
	for rows.Next() {
		var e JournalHistoryEntry
		if err := rows.Scan(
			&e.JournalID, &e.BatchID, &e.EventRef, &e.Sequence,
			&e.DebitAccount, &e.CreditAccount, &e.AssetID, &e.Amount,
			&e.JournalType, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// GetLiquidationHistory returns executed liquidations, newest first. A zero
// target UUID returns all accounts.
func (s *Service) GetLiquidationHistory(
	ctx context.Context,
	target uuid.UUID,
	limit int,
) ([]LiquidationHistoryEntry, error) {
	filter := ""
	if target != uuid.Nil {
		filter = target.String()
	}

	records, err := projection.ListLiquidations(ctx, s.db, filter, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]LiquidationHistoryEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, LiquidationHistoryEntry{
			Sequence:      rec.Sequence,
			TargetAccount: rec.TargetAccount,
			CallerAccount: rec.CallerAccount,
			DebtBurned:    rec.DebtBurned,
			Penalty:       rec.Penalty,
			Payout:        rec.Payout,
			Height:        rec.Height,
			Timestamp:     rec.Timestamp,
		})
	}
	return entries, nil
}

// VerifyIntegrity checks the persisted hash chain and the zero-sum balance
// invariant in the projections.
func (s *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	// Each event's prev_hash must equal its predecessor's state_hash.
	rows, err := s.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.prev_hash != e2.state_hash
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Every asset must sum to zero across all accounts.
	balanceRows, err := s.db.QueryContext(ctx, `
		SELECT asset_id, SUM(balance) AS total
		FROM projections.balances
		GROUP BY asset_id
		HAVING SUM(balance) != 0
	`)
	if err != nil {
		return nil, err
	}
	defer balanceRows.Close()

	for balanceRows.Next() {
		var assetID uint16
		var total int64
		if err := balanceRows.Scan(&assetID, &total); err != nil {
			return nil, err
		}
		report.UnbalancedAssets = append(report.UnbalancedAssets, UnbalancedAsset{
			AssetID:   assetID,
			Imbalance: total,
		})
	}
	if err := balanceRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.UnbalancedAssets) == 0
	return report, nil
}

// GetWatermark returns the projection worker's last applied sequence.
func (s *Service) GetWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
