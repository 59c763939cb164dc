package database_test

import (
	"testing"

	"github.com/kozaktomas/face-id/internal/database"
	"github.com/kozaktomas/face-id/internal/database/dbtest"
)

func TestMemoryBackend(t *testing.T) {
	dbtest.RunBackendTests(t, func(t *testing.T) database.Backend {
		return database.NewMemoryBackend()
	})
}
