package database

import (
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/platform/config"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"valid", "postgres://wb:wb@localhost:5432/wealthbuilder", false},
		{"valid-with-params", "postgres://wb:wb@localhost:5432/wealthbuilder?sslmode=disable", false},
		{"empty", "", true},
		{"invalid", "not-a-url", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPoolConfig(t *testing.T) {
	const url = "postgres://wb:wb@localhost:5432/wealthbuilder"
	tests := []struct {
		name    string
		max     int
		min     int
		wantMax int32
		wantMin int32
	}{
		{name: "configured", max: 5, min: 1, wantMax: 5, wantMin: 1},
		{name: "min above max ignored", max: 2, min: 3, wantMax: 2, wantMin: 0},
		{name: "zero max keeps pgx default", max: 0, min: 0, wantMax: -1, wantMin: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := poolConfig(config.DatabaseConfig{URL: url, MaxConns: tt.max, MinConns: tt.min})
			if err != nil {
				t.Fatalf("poolConfig() error = %v", err)
			}
			if tt.wantMax >= 0 && cfg.MaxConns != tt.wantMax {
				t.Errorf("MaxConns = %d, want %d", cfg.MaxConns, tt.wantMax)
			}
			if cfg.MinConns != tt.wantMin {
				t.Errorf("MinConns = %d, want %d", cfg.MinConns, tt.wantMin)
			}
		})
	}
}

func TestNew_UnreachableHost(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping unreachable host test in short mode")
	}

	_, err := New(t.Context(), config.DatabaseConfig{
		URL:      "postgres://wb:wb@localhost:59999/nonexistent?connect_timeout=1",
		MaxConns: 2,
	})
	if err == nil {
		t.Fatal("New() should return error for unreachable host")
	}
}

func TestMigrate(t *testing.T) {
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

	db, err := New(ctx, config.DatabaseConfig{URL: dsn, MaxConns: 2, MinConns: 1})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	if err := db.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}

	if err := db.Migrate(ctx,
		`CREATE TABLE applied (name TEXT PRIMARY KEY)`,
		`INSERT INTO applied (name) VALUES ('first')`,
	); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	err = db.Migrate(ctx,
		`INSERT INTO applied (name) VALUES ('second')`,
		`INSERT INTO missing_table VALUES (1)`,
	)
	if err == nil {
		t.Fatal("expected failing migration")
	}

	var n int
	if err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM applied`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1 (failed migration rolled back)", n)
	}
}
