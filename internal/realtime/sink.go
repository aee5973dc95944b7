package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/platform/database"
)

// Sink journals monitor events.
type Sink interface {
	Record(ctx context.Context, e Event) error
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Record(context.Context, Event) error {
	return nil
}

// MemorySink keeps events in memory, oldest first.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{events: []Event{}}
}

func (s *MemorySink) Record(_ context.Context, e Event) error {
	if e.Type == "" {
		return errors.New("event type is required")
	}
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	return nil
}

func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event{}, s.events...)
}

var journalSchema = []string{
	`CREATE TABLE IF NOT EXISTS monitor_events (
		id          uuid PRIMARY KEY,
		event_type  text NOT NULL,
		message     text NOT NULL DEFAULT '',
		payload     jsonb NOT NULL DEFAULT '{}'::jsonb,
		occurred_at timestamptz NOT NULL,
		received_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS monitor_events_occurred_at_idx
		ON monitor_events (occurred_at DESC)`,
}

// PostgresSink inserts events into the monitor_events table.
type PostgresSink struct {
	db *database.DB
}

func NewPostgresSink(db *database.DB) *PostgresSink {
	return &PostgresSink{db: db}
}

// EnsureSchema creates the journal table if it does not exist.
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("journal database is nil")
	}
	if err := s.db.Migrate(ctx, journalSchema...); err != nil {
		return fmt.Errorf("creating journal schema: %w", err)
	}
	return nil
}

func (s *PostgresSink) Record(ctx context.Context, e Event) error {
	if s == nil || s.db == nil {
		return errors.New("journal database is nil")
	}
	if e.Type == "" {
		return errors.New("event type is required")
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	payload := string(e.Payload)
	if payload == "" {
		payload = "{}"
	}

	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO monitor_events (id, event_type, message, payload, occurred_at)
		 VALUES ($1::uuid, $2, $3, $4::jsonb, $5)
		 ON CONFLICT (id) DO NOTHING`,
		e.ID.String(),
		e.Type,
		e.Message,
		payload,
		e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert monitor event: %w", err)
	}

	slog.Debug("monitor event journaled", "id", e.ID, "type", e.Type)
	return nil
}

// Recent returns up to limit journaled events, newest first.
func (s *PostgresSink) Recent(ctx context.Context, limit int) ([]Event, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("journal database is nil")
	}
	if limit <= 0 {
		limit = DefaultHistory
	}

	rows, err := s.db.Pool.Query(ctx,
		`SELECT id::text, event_type, message, payload::text, occurred_at
		 FROM monitor_events
		 ORDER BY occurred_at DESC, received_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query monitor events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e       Event
			id      string
			payload string
		)
		if err := rows.Scan(&id, &e.Type, &e.Message, &payload, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan monitor event: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse monitor event id: %w", err)
		}
		e.Payload = []byte(payload)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monitor events: %w", err)
	}
	return events, nil
}
