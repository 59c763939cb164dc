//go:build integration

package postgres

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-id/internal/config"
	"github.com/kozaktomas/face-id/internal/database"
	"github.com/kozaktomas/face-id/internal/database/dbtest"
)

func setupTestContainer(t *testing.T) (config.StoreConfig, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := config.StoreConfig{
		Driver:       "postgres",
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	return cfg, func() { container.Terminate(ctx) }
}

// truncate empties the table and resets the id sequence between subtests.
func truncate(t *testing.T, pool *Pool) {
	t.Helper()
	if _, err := pool.DB().Exec("TRUNCATE identities RESTART IDENTITY"); err != nil {
		t.Fatalf("Failed to truncate identities: %v", err)
	}
}

func TestIdentityRepository(t *testing.T) {
	cfg, cleanup := setupTestContainer(t)
	defer cleanup()

	pool, err := Initialize(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}
	defer pool.Close()

	dbtest.RunBackendTests(t, func(t *testing.T) database.Backend {
		truncate(t, pool)
		return &IdentityRepository{pool: pool}
	})
}

func TestMigrations(t *testing.T) {
	cfg, cleanup := setupTestContainer(t)
	defer cleanup()

	ctx := context.Background()
	pool, err := Initialize(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to initialize: %v", err)
	}
	defer pool.Close()

	applied, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatalf("Failed to get applied migrations: %v", err)
	}
	if len(applied) != 1 || applied[0] != "001_identities.sql" {
		t.Errorf("Unexpected migrations: %v", applied)
	}

	// Running again is a no-op.
	again, err := pool.Migrate(ctx)
	if err != nil {
		t.Fatalf("Second migrate failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("Expected no pending migrations, got %v", again)
	}
}

func TestRegisteredAsDriver(t *testing.T) {
	cfg, cleanup := setupTestContainer(t)
	defer cleanup()

	b, err := database.OpenBackend(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenBackend failed: %v", err)
	}
	defer b.Close()

	if _, ok := b.(*IdentityRepository); !ok {
		t.Errorf("Expected *IdentityRepository, got %T", b)
	}
}
