package persistence

import (
	"context"
	"database/sql"
	"time"

	"DexLedger/internal/event"
	"DexLedger/internal/observability"

	"github.com/rs/zerolog"
)

// Worker drains the persist channel and batch-writes the event log to
// Postgres. The exchange sends on that channel blocking, so if this worker
// falls behind the write path stalls rather than losing committed events.
type Worker struct {
	writer       *EventLogWriter
	inputChan    <-chan event.Envelope
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	logger       zerolog.Logger
}

func NewWorker(
	db *sql.DB,
	inputChan <-chan event.Envelope,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		writer:       NewEventLogWriter(db),
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		logger:       observability.NewLogger("persistence"),
	}
}

// Run starts the worker loop. It batches incoming envelopes and flushes
// either when the batch is full or the flush timeout expires. Blocks until
// ctx is cancelled or the input channel closes.
func (w *Worker) Run(ctx context.Context) error {
	batch := make([]EventRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			// Graceful shutdown: flush remaining with a background
			// context so the batch is not lost.
			if len(batch) > 0 {
				if err := w.flush(context.Background(), batch); err != nil {
					w.logger.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case env, ok := <-w.inputChan:
			if !ok {
				if len(batch) > 0 {
					if err := w.flush(context.Background(), batch); err != nil {
						w.logger.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}

			row, err := RowFromEnvelope(env)
			if err != nil {
				// A payload that cannot marshal is a programming error;
				// skip it rather than wedge the write path.
				w.logger.Error().Err(err).Uint64("sequence", env.Sequence).Msg("drop unmarshalable envelope")
				continue
			}
			batch = append(batch, row)

			if len(batch) >= w.batchSize {
				if err := w.flushWithRetry(ctx, batch); err != nil {
					w.logger.Error().Err(err).Msg("batch flush failed after retries")
				}
				batch = batch[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				if err := w.flushWithRetry(ctx, batch); err != nil {
					w.logger.Error().Err(err).Msg("timeout flush failed after retries")
				}
				batch = batch[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry attempts to flush with exponential backoff. The worker
// never drops events: it retries until the write succeeds or the context
// is cancelled, then makes one final attempt.
func (w *Worker) flushWithRetry(ctx context.Context, batch []EventRow) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.logger.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("events", len(batch)).
				Msg("persistence retry")
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), batch); err != nil {
					return err
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if err := w.flush(ctx, batch); err == nil {
			if attempt > 0 {
				w.logger.Info().Int("retries", attempt).Msg("persistence flush recovered")
			}
			return nil
		}

		if w.metrics != nil {
			w.metrics.PersistRetry.Inc()
		}
	}
}

func (w *Worker) flush(ctx context.Context, batch []EventRow) error {
	tx, err := w.writer.db.BeginTx(ctx, nil)
	if err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteEventBatch(ctx, tx, batch); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.Inc()
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if w.metrics != nil {
			w.metrics.PersistErrors.Inc()
		}
		return err
	}

	if w.metrics != nil {
		w.metrics.PersistBatchSize.Observe(float64(len(batch)))
		w.metrics.PersistEventsWritten.Add(float64(len(batch)))
		w.metrics.PersistLastSequence.Set(float64(batch[len(batch)-1].Sequence))
	}
	return nil
}
