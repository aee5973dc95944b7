package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/platform/config"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/platform/database"
)

func TestMemorySink_Record(t *testing.T) {
	sink := NewMemorySink()
	if err := sink.Record(context.Background(), event(1)); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := sink.Record(context.Background(), Event{}); err == nil {
		t.Error("expected error for missing type")
	}
	if n := len(sink.Events()); n != 1 {
		t.Errorf("len(Events()) = %d, want 1", n)
	}
}

func TestPostgresSink_NilDB(t *testing.T) {
	sink := NewPostgresSink(nil)
	if err := sink.Record(context.Background(), event(1)); err == nil {
		t.Error("expected error for nil database")
	}
	if err := sink.EnsureSchema(context.Background()); err == nil {
		t.Error("expected error for nil database")
	}
	if _, err := sink.Recent(context.Background(), 10); err == nil {
		t.Error("expected error for nil database")
	}
}

func TestPostgresSink_Journal(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := t.Context()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("wealthbuilder"),
		postgres.WithUsername("wealthbuilder"),
		postgres.WithPassword("wealthbuilder"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("ConnectionString() error = %v", err)
	}
	db, err := database.New(ctx, config.DatabaseConfig{URL: dsn, MaxConns: 2, MinConns: 0})
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	defer db.Close()

	sink := NewPostgresSink(db)
	if err := sink.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	if err := sink.EnsureSchema(ctx); err != nil {
		t.Fatalf("second EnsureSchema() error = %v", err)
	}

	first := event(1)
	first.Payload = json.RawMessage(`{"type":"login","message":"m1"}`)
	second := event(2)
	for _, e := range []Event{first, second, first} {
		if err := sink.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	events, err := sink.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(Recent()) = %d, want 2 (duplicate ids are ignored)", len(events))
	}
	if events[0].ID != second.ID || events[1].ID != first.ID {
		t.Errorf("Recent() order = %s, %s; want newest first", events[0].Message, events[1].Message)
	}
	if !events[1].Timestamp.Equal(first.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", events[1].Timestamp, first.Timestamp)
	}
	var payload map[string]string
	if err := json.Unmarshal(events[1].Payload, &payload); err != nil || payload["message"] != "m1" {
		t.Errorf("Payload = %s, %v", events[1].Payload, err)
	}

	limited, err := sink.Recent(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("Recent(1) = %d events, %v", len(limited), err)
	}
}
