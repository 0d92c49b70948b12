package projection

import (
	"context"
	"database/sql"
	"strings"

	"github.com/chinedu-ifeanyi/stable-btc/internal/ledger"
)

// LiquidationRecord is one executed liquidation for the history projection.
type LiquidationRecord struct {
	Sequence      int64
	TargetAccount string
	CallerAccount string
	DebtBurned    int64
	Penalty       int64
	Payout        int64
	Height        int64
	Timestamp     int64
}

// BuildLiquidationRecord derives a history record from a liquidation's
// journal legs: the burn leg carries the debt and identifies the caller,
// the penalty and payout legs carry the collateral split.
func BuildLiquidationRecord(output Output) (LiquidationRecord, bool) {
	if output.CommandType != "Liquidate" || output.AccountID == nil {
		return LiquidationRecord{}, false
	}

	rec := LiquidationRecord{
		Sequence:      output.Sequence,
		TargetAccount: *output.AccountID,
		Height:        output.Height,
		Timestamp:     output.Timestamp,
	}

	for _, j := range output.JournalEntries {
		switch ledger.JournalType(j.JournalType) {
		case ledger.JournalTypeBurn:
			rec.DebtBurned = j.Amount
			rec.CallerAccount = accountFromPath(j.CreditAccount)
		case ledger.JournalTypeLiquidationPenalty:
			rec.Penalty = j.Amount
		case ledger.JournalTypeLiquidationPayout:
			rec.Payout = j.Amount
			if rec.CallerAccount == "" {
				rec.CallerAccount = accountFromPath(j.DebitAccount)
			}
		}
	}

	return rec, true
}

// accountFromPath extracts the UUID from a "user:<uuid>:wallet:<asset>"
// account path. Returns empty for system and external paths.
func accountFromPath(path string) string {
	parts := strings.Split(path, ":")
	if len(parts) == 4 && parts[0] == "user" {
		return parts[1]
	}
	return ""
}

func insertLiquidationRecord(ctx context.Context, tx *sql.Tx, rec LiquidationRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.liquidation_history
			(sequence, target_account, caller_account, debt_burned, penalty, payout, height, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (sequence) DO NOTHING
	`, rec.Sequence, rec.TargetAccount, rec.CallerAccount,
		rec.DebtBurned, rec.Penalty, rec.Payout, rec.Height, rec.Timestamp)
	return err
}

// ListLiquidations returns recent liquidations, newest first. When target
// is non-empty, results are filtered to that account.
func ListLiquidations(ctx context.Context, db *sql.DB, target string, limit int) ([]LiquidationRecord, error) {
	query := `
		SELECT sequence, target_account, caller_account, debt_burned, penalty, payout, height, timestamp
		FROM projections.liquidation_history
	`
	args := []interface{}{}
	if target != "" {
		query += ` WHERE target_account = $1 ORDER BY sequence DESC LIMIT $2`
		args = append(args, target, limit)
	} else {
		query += ` ORDER BY sequence DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []LiquidationRecord
	for rows.Next() {
		var rec LiquidationRecord
		if err := rows.Scan(
			&rec.Sequence, &rec.TargetAccount, &rec.CallerAccount,
			&rec.DebtBurned, &rec.Penalty, &rec.Payout, &rec.Height, &rec.Timestamp,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
