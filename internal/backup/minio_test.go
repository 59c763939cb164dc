//go:build integration

package backup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupMinio(t *testing.T) string {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Cmd:          []string{"server", "/data"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     "minioadmin",
			"MINIO_ROOT_PASSWORD": "minioadmin",
		},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestMinioSink(t *testing.T) {
	ctx := context.Background()
	endpoint := setupMinio(t)

	sink, err := NewMinioSink(ctx, endpoint, "minioadmin", "minioadmin", false, "backups", "face-id/")
	require.NoError(t, err)

	src := newStore(t)
	seed(t, src, "Alice", "Bob")
	name, _, err := Create(ctx, src, sink, time.Now())
	require.NoError(t, err)

	names, err := sink.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{name}, names)

	dst := newStore(t)
	_, n, err := Restore(ctx, dst, sink, name)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = sink.Get(ctx, "identities-missing.snap.zst")
	assert.ErrorIs(t, err, ErrNotFound)
}
