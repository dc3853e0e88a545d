package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"CurveBank/internal/market"
	"CurveBank/internal/observability"
)

// SnapshotWorker periodically records every instance's reserve state.
// Snapshots are a reporting and recovery aid; the event log remains the
// source of truth.
type SnapshotWorker struct {
	db       *sql.DB
	registry *market.Registry
	interval time.Duration
	metrics  *observability.Metrics
	log      zerolog.Logger
}

func NewSnapshotWorker(
	db *sql.DB,
	registry *market.Registry,
	interval time.Duration,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *SnapshotWorker {
	return &SnapshotWorker{
		db:       db,
		registry: registry,
		interval: interval,
		metrics:  metrics,
		log:      logger,
	}
}

// Run snapshots all instances every interval until ctx is cancelled.
func (s *SnapshotWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.snapshotAll(ctx)
		}
	}
}

func (s *SnapshotWorker) snapshotAll(ctx context.Context) {
	for _, id := range s.registry.List() {
		m, err := s.registry.Get(id)
		if err != nil {
			continue // removed between List and Get
		}
		if err := s.Snapshot(ctx, m); err != nil {
			s.metrics.PersistErrors.WithLabelValues("snapshot").Inc()
			s.log.Error().Err(err).Str("instance", id).Msg("snapshot failed")
		}
	}
}

// Snapshot writes one instance's current state. Idempotent per
// (instance, sequence): re-snapshotting unchanged state is a no-op.
func (s *SnapshotWorker) Snapshot(ctx context.Context, m *market.Market) error {
	start := time.Now()
	st := m.State()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO curvebank.reserve_snapshots
			(instance, sequence, phase, state_hash,
			 virt_quote, real_quote, reserve_token,
			 total_supply, max_supply, total_debt, taken_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (instance, sequence) DO NOTHING
	`,
		st.ID, st.Sequence, st.Phase.String(), st.StateHash[:],
		st.VirtQuote.Dec(), st.RealQuote.Dec(), st.ReserveToken.Dec(),
		st.TotalSupply.Dec(), st.MaxSupply.Dec(), st.TotalDebt.Dec(),
		time.Now().UnixMicro(),
	)
	if err != nil {
		return err
	}

	s.metrics.SnapshotTaken.Inc()
	s.metrics.SnapshotDuration.Observe(time.Since(start).Seconds())
	return nil
}
