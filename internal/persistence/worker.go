package persistence

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/chinedu-ifeanyi/stable-btc/internal/command"
	"github.com/chinedu-ifeanyi/stable-btc/internal/ledger"
	"github.com/chinedu-ifeanyi/stable-btc/internal/observability"
)

// Record is one applied command ready for the event log: the envelope row
// plus its journal rows.
type Record struct {
	Event      EventRow
	Journals   []JournalRow
	EnqueuedAt time.Time
}

// NewRecord flattens an envelope and its journal batch into storable rows.
func NewRecord(env *command.Envelope, batch *ledger.Batch) Record {
	var accountID *string
	if env.Account != nil {
		s := env.Account.String()
		accountID = &s
	}

	rec := Record{
		EnqueuedAt: time.Now(),
		Event: EventRow{
			Sequence:       env.Sequence,
			CommandType:    env.CommandType.String(),
			IdempotencyKey: env.IdempotencyKey,
			AccountID:      accountID,
			Payload:        env.Payload,
			StateHash:      append([]byte(nil), env.StateHash[:]...),
			PrevHash:       append([]byte(nil), env.PrevHash[:]...),
			Height:         env.Height,
			Timestamp:      env.Timestamp,
			SourceSequence: env.SourceSequence,
		},
	}

	if batch != nil {
		rec.Journals = make([]JournalRow, 0, len(batch.Journals))
		for _, j := range batch.Journals {
			rec.Journals = append(rec.Journals, JournalRow{
				JournalID:     j.JournalID.String(),
				BatchID:       j.BatchID.String(),
				EventRef:      j.EventRef,
				Sequence:      j.Sequence,
				DebitAccount:  j.DebitAccount.AccountPath(),
				CreditAccount: j.CreditAccount.AccountPath(),
				AssetID:       uint16(j.AssetID),
				Amount:        j.Amount,
				JournalType:   int32(j.JournalType),
				Timestamp:     j.Timestamp,
			})
		}
	}

	return rec
}

// Worker drains the persist channel and batch-writes to Postgres. The engine
// sends on this channel with a BLOCKING send, so if the worker falls behind
// the engine stalls rather than losing an applied command.
type Worker struct {
	writer       *EventLogWriter
	db           *sql.DB
	inputChan    <-chan Record
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan Record,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewEventLogWriter(db, batchSize, flushTimeout),
		db:           db,
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
	}
}

// Run batches incoming records and flushes when the batch fills or the
// flush timer fires. Blocks until ctx is cancelled or the channel closes.
func (w *Worker) Run(ctx context.Context) error {
	eventBatch := make([]EventRow, 0, w.batchSize)
	journalBatch := make([]JournalRow, 0, w.batchSize*2)
	enqueued := make([]time.Time, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(eventBatch) > 0 {
				if err := w.flush(context.Background(), eventBatch, journalBatch); err != nil {
					log.Printf("ERROR: final flush failed: %v", err)
				}
			}
			return ctx.Err()

		case rec, ok := <-w.inputChan:
			if !ok {
				if len(eventBatch) > 0 {
					if err := w.flush(context.Background(), eventBatch, journalBatch); err != nil {
						log.Printf("ERROR: final flush failed: %v", err)
					}
				}
				return nil
			}

			eventBatch = append(eventBatch, rec.Event)
			journalBatch = append(journalBatch, rec.Journals...)
			enqueued = append(enqueued, rec.EnqueuedAt)

			if len(eventBatch) >= w.batchSize {
				if err := w.flushWithRetry(ctx, eventBatch, journalBatch); err != nil {
					log.Printf("ERROR: batch flush failed: %v", err)
				} else {
					w.observeApplyToPersist(enqueued)
				}
				eventBatch = eventBatch[:0]
				journalBatch = journalBatch[:0]
				enqueued = enqueued[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(eventBatch) > 0 {
				if err := w.flushWithRetry(ctx, eventBatch, journalBatch); err != nil {
					log.Printf("ERROR: timeout flush failed: %v", err)
				} else {
					w.observeApplyToPersist(enqueued)
				}
				eventBatch = eventBatch[:0]
				journalBatch = journalBatch[:0]
				enqueued = enqueued[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff. The worker never drops a
// batch: it retries until the write succeeds or the context is cancelled,
// and on cancellation makes one last attempt with a background context.
func (w *Worker) flushWithRetry(ctx context.Context, events []EventRow, journals []JournalRow) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			log.Printf("WARN: persist retry attempt %d (backoff=%v, events=%d)",
				attempt, backoff, len(events))
			if w.metrics != nil {
				w.metrics.PersistRetry.Inc()
			}
			select {
			case <-ctx.Done():
				return w.flush(context.Background(), events, journals)
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if err := w.flush(ctx, events, journals); err == nil {
			if attempt > 0 {
				log.Printf("INFO: persist flush succeeded after %d retries", attempt)
			}
			return nil
		}
	}
}

// flush writes events and journals in a single transaction.
func (w *Worker) flush(ctx context.Context, events []EventRow, journals []JournalRow) error {
	start := time.Now()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		w.recordError("tx_begin")
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteEventBatch(ctx, tx, events); err != nil {
		w.recordError("write_events")
		return err
	}

	if err := w.writer.WriteJournalBatch(ctx, tx, journals); err != nil {
		w.recordError("write_journals")
		return err
	}

	if err := tx.Commit(); err != nil {
		w.recordError("tx_commit")
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		w.metrics.PersistBatchSize.Observe(float64(len(events)))
		w.metrics.PersistEventsWritten.Add(float64(len(events)))
		w.metrics.PersistJournalsWritten.Add(float64(len(journals)))
		if len(events) > 0 {
			w.metrics.PersistLastSequence.Set(float64(events[len(events)-1].Sequence))
		}
	}

	return nil
}

// observeApplyToPersist records core-emit-to-commit latency for a flushed batch.
func (w *Worker) observeApplyToPersist(enqueued []time.Time) {
	if w.metrics == nil {
		return
	}
	now := time.Now()
	for _, t := range enqueued {
		if !t.IsZero() {
			w.metrics.ApplyToPersist.Observe(now.Sub(t).Seconds())
		}
	}
}

func (w *Worker) recordError(errorType string) {
	if w.metrics != nil {
		w.metrics.PersistErrors.WithLabelValues(errorType).Inc()
	}
}
