package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"CurveBank/internal/event"
	"CurveBank/internal/observability"
)

// Worker drains the persist channel and batch-writes the event log to
// Postgres. Markets send to the persist channel with blocking sends, so
// if this worker falls behind, operations stall rather than losing
// events.
type Worker struct {
	writer       *EventLogWriter
	input        <-chan *event.Envelope
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
	log          zerolog.Logger
}

func NewWorker(
	db *sql.DB,
	input <-chan *event.Envelope,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Worker {
	return &Worker{
		writer:       NewEventLogWriter(db),
		input:        input,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
		log:          logger,
	}
}

func (w *Worker) Writer() *EventLogWriter { return w.writer }

// Run batches incoming envelopes and flushes when the batch fills or
// the flush timeout expires. Blocks until ctx is cancelled or the input
// channel closes; either way the remaining batch is flushed first.
func (w *Worker) Run(ctx context.Context) error {
	events := make([]EventRow, 0, w.batchSize)
	fees := make([]FeeRow, 0, w.batchSize)

	timer := time.NewTimer(w.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(events) > 0 {
				if err := w.flush(context.Background(), events, fees); err != nil {
					w.log.Error().Err(err).Msg("final flush failed")
				}
			}
			return ctx.Err()

		case env, ok := <-w.input:
			if !ok {
				if len(events) > 0 {
					if err := w.flush(context.Background(), events, fees); err != nil {
						w.log.Error().Err(err).Msg("final flush failed")
					}
				}
				return nil
			}

			row, feeRow, err := RowsFromEnvelope(env)
			if err != nil {
				// An unmarshalable payload is a programming error; the
				// event is logged and skipped rather than wedging the log.
				w.metrics.PersistErrors.WithLabelValues("marshal").Inc()
				w.log.Error().Err(err).Int64("sequence", env.Sequence).Msg("dropping unmarshalable event")
				continue
			}
			events = append(events, row)
			if feeRow != nil {
				fees = append(fees, *feeRow)
			}

			if len(events) >= w.batchSize {
				w.flushWithRetry(ctx, events, fees)
				events = events[:0]
				fees = fees[:0]
				timer.Reset(w.flushTimeout)
			}

		case <-timer.C:
			if len(events) > 0 {
				w.flushWithRetry(ctx, events, fees)
				events = events[:0]
				fees = fees[:0]
			}
			timer.Reset(w.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff until the write
// succeeds or the context is cancelled. The worker never drops a batch:
// on shutdown it makes one final attempt with a background context.
func (w *Worker) flushWithRetry(ctx context.Context, events []EventRow, fees []FeeRow) {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			w.log.Warn().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Int("events", len(events)).
				Msg("persistence retry")
			select {
			case <-ctx.Done():
				if err := w.flush(context.Background(), events, fees); err != nil {
					w.log.Error().Err(err).Msg("final flush on shutdown failed")
				}
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if err := w.flush(ctx, events, fees); err == nil {
			if attempt > 0 {
				w.log.Info().Int("retries", attempt).Msg("persistence flush recovered")
			}
			return
		}
		w.metrics.PersistRetry.Inc()
	}
}

func (w *Worker) flush(ctx context.Context, events []EventRow, fees []FeeRow) error {
	start := time.Now()

	tx, err := w.writer.db.BeginTx(ctx, nil)
	if err != nil {
		w.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		return err
	}
	defer tx.Rollback()

	if err := w.writer.WriteEventBatch(ctx, tx, events); err != nil {
		w.metrics.PersistErrors.WithLabelValues("write_events").Inc()
		return err
	}
	if err := w.writer.WriteFeeBatch(ctx, tx, fees); err != nil {
		w.metrics.PersistErrors.WithLabelValues("write_fees").Inc()
		return err
	}
	if err := tx.Commit(); err != nil {
		w.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		return err
	}

	w.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
	w.metrics.PersistBatchSize.Observe(float64(len(events)))
	w.metrics.PersistEventsWritten.Add(float64(len(events)))
	w.metrics.PersistFeesWritten.Add(float64(len(fees)))
	last := events[len(events)-1]
	w.metrics.PersistLastSequence.WithLabelValues(last.Instance).Set(float64(last.Sequence))
	return nil
}
