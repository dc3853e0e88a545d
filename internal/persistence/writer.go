package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"CurveBank/internal/event"
)

// EventLogWriter writes the per-instance event log and fee rows to
// Postgres with multi-row INSERTs. Writes are idempotent on
// (instance, sequence), so a retried batch never double-inserts.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow is one row in curvebank.events.
type EventRow struct {
	Instance  string
	Sequence  int64
	EventType string
	Payload   []byte // JSON-encoded event payload
	StateHash []byte
	PrevHash  []byte
	Timestamp int64 // epoch microseconds
}

// FeeRow is one row in curvebank.fees, denormalized from FeePaid
// events so fee revenue is queryable without unpacking JSON.
type FeeRow struct {
	Instance  string
	Sequence  int64
	Category  string
	Recipient string
	Asset     string
	Amount    string // wad, decimal text for NUMERIC(78,0)
	Timestamp int64
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

func (w *EventLogWriter) DB() *sql.DB { return w.db }

// RowsFromEnvelope converts an envelope to its event row, plus a fee
// row when the event is a FeePaid.
func RowsFromEnvelope(env *event.Envelope) (EventRow, *FeeRow, error) {
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		return EventRow{}, nil, fmt.Errorf("marshal %s payload: %w", env.Type, err)
	}

	row := EventRow{
		Instance:  env.Instance,
		Sequence:  env.Sequence,
		EventType: env.Type.String(),
		Payload:   payload,
		StateHash: append([]byte(nil), env.StateHash[:]...),
		PrevHash:  append([]byte(nil), env.PrevHash[:]...),
		Timestamp: env.Timestamp,
	}

	if fp, ok := env.Payload.(event.FeePaid); ok {
		return row, &FeeRow{
			Instance:  env.Instance,
			Sequence:  env.Sequence,
			Category:  fp.Category,
			Recipient: fp.Recipient,
			Asset:     fp.Asset,
			Amount:    fp.Amount,
			Timestamp: env.Timestamp,
		}, nil
	}
	return row, nil, nil
}

// WriteEventBatch writes a batch of events inside tx.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO curvebank.events
		(instance, sequence, event_type, payload, state_hash, prev_hash, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*7)

	for i, e := range events {
		base := i * 7
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			e.Instance, e.Sequence, e.EventType, e.Payload,
			e.StateHash, e.PrevHash, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (instance, sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteFeeBatch writes a batch of fee rows inside tx.
func (w *EventLogWriter) WriteFeeBatch(ctx context.Context, tx *sql.Tx, fees []FeeRow) error {
	if len(fees) == 0 {
		return nil
	}

	query := `INSERT INTO curvebank.fees
		(instance, sequence, category, recipient, asset, amount, timestamp)
		VALUES `

	values := make([]string, 0, len(fees))
	args := make([]interface{}, 0, len(fees)*7)

	for i, f := range fees {
		base := i * 7
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args,
			f.Instance, f.Sequence, f.Category, f.Recipient,
			f.Asset, f.Amount, f.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (instance, sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// ReadEvents returns events for one instance from fromSequence onward,
// in sequence order, for audit queries.
func (w *EventLogWriter) ReadEvents(ctx context.Context, instance string, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT instance, sequence, event_type, payload, state_hash, prev_hash, timestamp
		FROM curvebank.events
		WHERE instance = $1 AND sequence >= $2
		ORDER BY sequence ASC
		LIMIT $3
	`, instance, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.Instance, &e.Sequence, &e.EventType, &e.Payload,
			&e.StateHash, &e.PrevHash, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// LatestSequence returns the highest persisted sequence for an
// instance, or zero when none exist.
func (w *EventLogWriter) LatestSequence(ctx context.Context, instance string) (int64, error) {
	var seq sql.NullInt64
	err := w.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM curvebank.events WHERE instance = $1
	`, instance).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}
