package database

import (
	"context"

	"github.com/kozaktomas/face-id/internal/identity"
)

// Backend persists identity records. The Store keeps the authoritative
// in-memory snapshot; a backend only has to make writes durable.
type Backend interface {
	// Insert stores rec and returns it with the backend-assigned ID.
	// IDs are positive and strictly increasing across the backend's lifetime.
	Insert(ctx context.Context, rec identity.Record) (identity.Record, error)
	// List returns every record ordered by ID.
	List(ctx context.Context) ([]identity.Record, error)
	// Delete removes a record, returning identity.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id int64) error
	// Import stores records with their existing IDs, used when restoring a backup.
	// Future inserts must still receive IDs greater than any imported one.
	Import(ctx context.Context, recs []identity.Record) error
	// Close releases the underlying connection.
	Close() error
}

// Snapshot is the serialisable form of a store, used for backups.
type Snapshot struct {
	Version int
	Dim     int
	Records []identity.Record
}

const currentSnapshotVersion = 1
