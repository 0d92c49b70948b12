package projection

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/chinedu-ifeanyi/stable-btc/internal/command"
	"github.com/chinedu-ifeanyi/stable-btc/internal/ledger"
	"github.com/chinedu-ifeanyi/stable-btc/internal/observability"
)

// Output carries what the projection worker needs from one applied command.
type Output struct {
	Sequence       int64
	CommandType    string
	AccountID      *string
	JournalEntries []JournalEntry
	Position       *PositionUpdate
	PositionClosed bool
	Stats          Stats
	Height         int64
	Timestamp      int64
}

// JournalEntry is a flattened journal leg for projection consumption.
type JournalEntry struct {
	DebitAccount  string
	CreditAccount string
	AssetID       uint16
	Amount        int64
	JournalType   int32
}

// PositionUpdate is the post-command position state.
type PositionUpdate struct {
	Collateral       int64
	Debt             int64
	LastUpdateHeight int64
	Version          int64
}

// Stats is the post-command aggregate state.
type Stats struct {
	TotalDebt               int64
	TotalCollateral         int64
	StabilityFeeAccumulator int64
	LastAccrualHeight       int64
	Paused                  bool
	OwnerID                 string
	Price                   *int64
	PriceObservedAt         *int64
}

// NewOutput flattens an envelope and its journal batch for projection.
// Position and stats fields are filled in by the caller from engine output.
func NewOutput(env *command.Envelope, batch *ledger.Batch) Output {
	out := Output{
		Sequence:    env.Sequence,
		CommandType: env.CommandType.String(),
		Height:      env.Height,
		Timestamp:   env.Timestamp,
	}
	if env.Account != nil {
		s := env.Account.String()
		out.AccountID = &s
	}
	if batch != nil {
		out.JournalEntries = make([]JournalEntry, 0, len(batch.Journals))
		for _, j := range batch.Journals {
			out.JournalEntries = append(out.JournalEntries, JournalEntry{
				DebitAccount:  j.DebitAccount.AccountPath(),
				CreditAccount: j.CreditAccount.AccountPath(),
				AssetID:       uint16(j.AssetID),
				Amount:        j.Amount,
				JournalType:   int32(j.JournalType),
			})
		}
	}
	return out
}

// Worker maintains the read-side tables: balances, positions, protocol
// stats, liquidation history, and a watermark. Its input channel uses
// non-blocking sends with drop; a wedged projection never stalls the engine,
// and lost updates are recoverable from the event log.
type Worker struct {
	db        *sql.DB
	inputChan <-chan Output
	metrics   *observability.Metrics
}

func NewWorker(db *sql.DB, inputChan <-chan Output, metrics *observability.Metrics) *Worker {
	return &Worker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
	}
}

// Run processes outputs until ctx is cancelled or the channel closes. The
// stored watermark gates re-delivery: outputs at or below it were already
// applied, so startup replay cannot double-count balance deltas.
func (w *Worker) Run(ctx context.Context) error {
	watermark, err := w.loadWatermark(ctx)
	if err != nil {
		log.Printf("WARN: load projection watermark: %v", err)
		watermark = -1
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-w.inputChan:
			if !ok {
				return nil
			}

			if output.Sequence <= watermark {
				continue
			}

			start := time.Now()
			if err := w.processOutput(ctx, output); err != nil {
				// Projections are eventually consistent; a failed update is
				// recoverable via RebuildProjections.
				log.Printf("WARN: projection update failed at seq=%d: %v", output.Sequence, err)
				continue
			}
			watermark = output.Sequence
			if w.metrics != nil {
				w.metrics.ProjectionUpdateDur.WithLabelValues("all").Observe(time.Since(start).Seconds())
			}
		}
	}
}

func (w *Worker) loadWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := w.db.QueryRowContext(ctx, `
		SELECT last_sequence FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return -1, nil
	}
	if err != nil {
		return -1, err
	}
	return seq, nil
}

func (w *Worker) processOutput(ctx context.Context, output Output) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, j := range output.JournalEntries {
		if err := w.updateBalances(ctx, tx, output.Sequence, j); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
	}

	if err := w.updatePosition(ctx, tx, output); err != nil {
		return fmt.Errorf("position projection: %w", err)
	}

	if err := w.updateStats(ctx, tx, output); err != nil {
		return fmt.Errorf("stats projection: %w", err)
	}

	if rec, ok := BuildLiquidationRecord(output); ok {
		if err := insertLiquidationRecord(ctx, tx, rec); err != nil {
			return fmt.Errorf("liquidation history: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, output.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

func (w *Worker) updateBalances(ctx context.Context, tx *sql.Tx, sequence int64, j JournalEntry) error {
	// Debit increases the holding, credit decreases it.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance + $3, last_sequence = $4
	`, j.DebitAccount, j.AssetID, j.Amount, sequence); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		VALUES ($1, $2, -$3, $4)
		ON CONFLICT (account_path, asset_id)
		DO UPDATE SET balance = projections.balances.balance - $3, last_sequence = $4
	`, j.CreditAccount, j.AssetID, j.Amount, sequence); err != nil {
		return err
	}

	return nil
}

func (w *Worker) updatePosition(ctx context.Context, tx *sql.Tx, output Output) error {
	if output.AccountID == nil {
		return nil
	}

	if output.PositionClosed {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM projections.positions WHERE account_id = $1
		`, *output.AccountID)
		return err
	}

	if output.Position == nil {
		return nil
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.positions
			(account_id, collateral, debt, last_update_height, version, last_sequence, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (account_id) DO UPDATE SET
			collateral = $2, debt = $3, last_update_height = $4,
			version = $5, last_sequence = $6, updated_at = NOW()
	`, *output.AccountID, output.Position.Collateral, output.Position.Debt,
		output.Position.LastUpdateHeight, output.Position.Version, output.Sequence)
	return err
}

func (w *Worker) updateStats(ctx context.Context, tx *sql.Tx, output Output) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.protocol_stats
			(id, total_debt, total_collateral, stability_fee_accumulator,
			 last_accrual_height, paused, owner_id, price, price_observed_at, last_sequence)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			total_debt = $1, total_collateral = $2, stability_fee_accumulator = $3,
			last_accrual_height = $4, paused = $5, owner_id = $6,
			price = $7, price_observed_at = $8, last_sequence = $9
	`, output.Stats.TotalDebt, output.Stats.TotalCollateral,
		output.Stats.StabilityFeeAccumulator, output.Stats.LastAccrualHeight,
		output.Stats.Paused, output.Stats.OwnerID,
		output.Stats.Price, output.Stats.PriceObservedAt, output.Sequence)
	return err
}

// RebuildProjections recomputes the balance table from the journal and
// clears the rest. Positions, stats, and history backfill as the worker
// consumes live traffic.
func RebuildProjections(ctx context.Context, db *sql.DB) error {
	truncateStatements := []string{
		`TRUNCATE projections.balances`,
		`TRUNCATE projections.positions`,
		`TRUNCATE projections.liquidation_history`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		SELECT
			debit_account AS account_path,
			asset_id,
			SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.journal
		GROUP BY debit_account, asset_id
	`)
	if err != nil {
		return fmt.Errorf("rebuild debit balances: %w", err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO projections.balances (account_path, asset_id, balance, last_sequence)
		SELECT
			credit_account AS account_path,
			asset_id,
			-SUM(amount) AS balance,
			MAX(sequence) AS last_sequence
		FROM event_log.journal
		GROUP BY credit_account, asset_id
		ON CONFLICT (account_path, asset_id) DO UPDATE
			SET balance = projections.balances.balance + EXCLUDED.balance,
			    last_sequence = GREATEST(projections.balances.last_sequence, EXCLUDED.last_sequence)
	`)
	if err != nil {
		return fmt.Errorf("rebuild credit balances: %w", err)
	}

	log.Println("INFO: projection rebuild complete")
	return nil
}
