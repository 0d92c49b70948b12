package core

import (
	"fmt"
	"strings"

	"github.com/chinedu-ifeanyi/stable-btc/internal/observability"
)

// PricePartition is the sequence partition for oracle price submissions.
// There is a single BTC/USD feed, so one partition covers it.
const PricePartition = "price:btcusd"

// globalPartition orders account-less admin commands.
const globalPartition = "global"

// SequenceValidator validates source sequences per partition.
// Not thread-safe — only accessed under the engine lock.
type SequenceValidator struct {
	expectedNextSeq map[string]int64 // partition -> next expected sequence
	metrics         *SequenceMetrics
	prom            *observability.Metrics
}

// partitionLabel collapses per-account partitions ("account:<uuid>") to their
// class so the Prometheus label stays low-cardinality.
func partitionLabel(partition string) string {
	if i := strings.IndexByte(partition, ':'); i >= 0 {
		return partition[:i]
	}
	return partition
}

func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{
		expectedNextSeq: make(map[string]int64),
		metrics:         NewSequenceMetrics(),
	}
}

// ValidateSequence checks source sequence ordering
func (sv *SequenceValidator) ValidateSequence(
	partition string,
	sourceSequence int64,
	idempotencyKey string,
	isDuplicate bool,
) error {
	expected := sv.expectedNextSeq[partition]

	if sourceSequence < expected {
		// Stale or duplicate
		if isDuplicate {
			// This is expected - already processed
			return nil
		}
		// Out-of-order delivery of NEW command
		sv.metrics.RecordOutOfOrder(partition)
		if sv.prom != nil {
			sv.prom.CommandOutOfOrder.WithLabelValues(partitionLabel(partition)).Inc()
		}
		return fmt.Errorf("out-of-order command: partition=%s, expected=%d, got=%d",
			partition, expected, sourceSequence)
	}

	if sourceSequence == expected {
		// Normal case - advance sequence
		sv.expectedNextSeq[partition] = expected + 1
		return nil
	}

	// sourceSequence > expected - gap detected
	sv.metrics.RecordGap(partition, expected, sourceSequence)
	if sv.prom != nil {
		sv.prom.CommandSequenceGap.WithLabelValues(partitionLabel(partition)).Inc()
	}
	return fmt.Errorf("sequence gap: partition=%s, expected=%d, got=%d",
		partition, expected, sourceSequence)
}

// ValidatePriceSequence validates oracle submissions (gaps tolerated).
// Returns false for stale sequences, which the caller silently drops.
func (sv *SequenceValidator) ValidatePriceSequence(priceSequence int64) bool {
	expected := sv.expectedNextSeq[PricePartition]

	if priceSequence <= expected {
		// Stale - silently ignore (idempotent)
		return false
	}

	if priceSequence > expected+1 {
		// Gap detected - record but accept; missed oracle ticks are tolerable
		sv.metrics.RecordPriceGap(expected, priceSequence)
		if sv.prom != nil {
			sv.prom.PriceSequenceGaps.Inc()
		}
	}

	// Update expected
	sv.expectedNextSeq[PricePartition] = priceSequence

	return true
}

// ValidateLooseSequence validates a gap-tolerant partition (admin commands
// carry coarse operator-assigned sequences). Returns false for stale
// sequences, which the caller drops; idempotency still catches true
// duplicates before this point.
func (sv *SequenceValidator) ValidateLooseSequence(partition string, seq int64) bool {
	expected := sv.expectedNextSeq[partition]

	if seq <= expected {
		return false
	}

	if seq > expected+1 {
		sv.metrics.RecordGap(partition, expected, seq)
		if sv.prom != nil {
			sv.prom.CommandSequenceGap.WithLabelValues(partitionLabel(partition)).Inc()
		}
	}

	sv.expectedNextSeq[partition] = seq
	return true
}

// GetExpectedSequence returns next expected sequence for a partition
func (sv *SequenceValidator) GetExpectedSequence(partition string) int64 {
	return sv.expectedNextSeq[partition]
}

// SetExpectedSequence initializes expected sequence (used during recovery)
func (sv *SequenceValidator) SetExpectedSequence(partition string, seq int64) {
	sv.expectedNextSeq[partition] = seq
}

// Snapshot returns a copy of all partition cursors (for snapshots)
func (sv *SequenceValidator) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(sv.expectedNextSeq))
	for k, v := range sv.expectedNextSeq {
		out[k] = v
	}
	return out
}

// --- Metrics ---

// SequenceMetrics tracks sequence validation stats.
// Not thread-safe — only accessed under the engine lock.
type SequenceMetrics struct {
	gaps       map[string]int64 // partition -> gap count
	outOfOrder map[string]int64 // partition -> out-of-order count
	priceGaps  int64
}

func NewSequenceMetrics() *SequenceMetrics {
	return &SequenceMetrics{
		gaps:       make(map[string]int64),
		outOfOrder: make(map[string]int64),
	}
}

func (m *SequenceMetrics) RecordGap(partition string, expected, got int64) {
	m.gaps[partition]++
}

func (m *SequenceMetrics) RecordOutOfOrder(partition string) {
	m.outOfOrder[partition]++
}

func (m *SequenceMetrics) RecordPriceGap(expected, got int64) {
	m.priceGaps++
}

func (m *SequenceMetrics) GetGaps(partition string) int64 {
	return m.gaps[partition]
}

func (m *SequenceMetrics) GetOutOfOrder(partition string) int64 {
	return m.outOfOrder[partition]
}

func (m *SequenceMetrics) GetPriceGaps() int64 {
	return m.priceGaps
}
