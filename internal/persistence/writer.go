package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"OptionPool/internal/event"
)

// EventLogWriter batch-writes pool events to Postgres using multi-row
// INSERT. Writes are idempotent on sequence, so a retried batch never
// duplicates rows.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow is one row in pool_events.events.
type EventRow struct {
	Sequence  int64
	EventType string
	Asset     string
	Payload   []byte // JSON-encoded event payload
	Timestamp time.Time
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// RowFromOutput converts an emitted event into its storage row.
func RowFromOutput(out event.Output) (EventRow, error) {
	payload, err := json.Marshal(out.Envelope.Payload)
	if err != nil {
		return EventRow{}, fmt.Errorf("marshal payload seq=%d: %w", out.Envelope.Sequence, err)
	}
	return EventRow{
		Sequence:  out.Envelope.Sequence,
		EventType: out.Envelope.Type.String(),
		Asset:     out.Envelope.Asset,
		Payload:   payload,
		Timestamp: out.Envelope.Timestamp,
	}, nil
}

// WriteEventBatch writes a batch of events within the given transaction.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, events []EventRow, tx *sql.Tx) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO pool_events.events
		(sequence, event_type, asset, payload, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*5)

	for i, e := range events {
		base := i * 5
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args, e.Sequence, e.EventType, e.Asset, e.Payload, e.Timestamp)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// LastSequence returns the highest durably written sequence, or 0 when the
// log is empty. Used on startup to resume the pool's sequence counter.
func (w *EventLogWriter) LastSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := w.db.QueryRowContext(ctx,
		`SELECT MAX(sequence) FROM pool_events.events`,
	).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq.Int64, nil
}
