package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SnapshotManager creates and loads state snapshots for warm restarts.
// A snapshot holds everything the engine keeps in memory: balances,
// positions, protocol state, sequence cursors, and recent idempotency keys.
type SnapshotManager struct {
	db *sql.DB
}

// SnapshotData is the serialized engine state at one sequence.
type SnapshotData struct {
	Sequence        int64              `json:"sequence"`
	StateHash       []byte             `json:"state_hash"`
	Balances        map[string]int64   `json:"balances"` // account path -> balance
	Positions       []PositionSnapshot `json:"positions"`
	Protocol        ProtocolSnapshot   `json:"protocol"`
	SequenceState   map[string]int64   `json:"sequence_state"`   // partition -> cursor
	IdempotencyKeys []string           `json:"idempotency_keys"` // for LRU warming
	CreatedAt       time.Time          `json:"created_at"`
}

// PositionSnapshot is a serializable debt position.
type PositionSnapshot struct {
	AccountID        string `json:"account_id"`
	Collateral       int64  `json:"collateral"`
	Debt             int64  `json:"debt"`
	LastUpdateHeight int64  `json:"last_update_height"`
	Version          int64  `json:"version"`
}

// ProtocolSnapshot is the serializable protocol-wide state.
type ProtocolSnapshot struct {
	OwnerID                 string         `json:"owner_id"`
	Paused                  bool           `json:"paused"`
	TotalDebt               int64          `json:"total_debt"`
	TotalCollateral         int64          `json:"total_collateral"`
	StabilityFeeAccumulator int64          `json:"stability_fee_accumulator"`
	LastAccrualHeight       int64          `json:"last_accrual_height"`
	Price                   *PriceSnapshot `json:"price,omitempty"`
}

// PriceSnapshot is the last accepted oracle observation.
type PriceSnapshot struct {
	Price      int64 `json:"price"`
	ObservedAt int64 `json:"observed_at"`
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot. Snapshots are written unverified;
// MarkVerified flips the flag once the hash chain has been checked.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	snapshotID := uuid.New()
	formatVersion := int32(1) // v1: JSON-encoded SnapshotData

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, sequence, data, state_hash, format_version, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $6
	`, snapshotID, snap.Sequence, data, snap.StateHash, formatVersion, len(data), snap.CreatedAt)

	return err
}

// LoadLatestSnapshot returns the most recent verified snapshot, or nil for
// a cold start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		WHERE verified = TRUE
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// MarkVerified marks a snapshot as safe to restore from.
func (sm *SnapshotManager) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := sm.db.ExecContext(ctx, `
		UPDATE event_log.snapshots SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// LoadEventsFrom pages events out of the log for replay, oldest first.
func (sm *SnapshotManager) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, command_type, idempotency_key, account_id, payload,
		       state_hash, prev_hash, height, timestamp, source_sequence
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.Sequence, &e.CommandType, &e.IdempotencyKey, &e.AccountID,
			&e.Payload, &e.StateHash, &e.PrevHash, &e.Height, &e.Timestamp, &e.SourceSequence,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// GetLatestSequence returns the highest sequence in the event log, 0 when
// the log is empty.
func (sm *SnapshotManager) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM event_log.events
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
