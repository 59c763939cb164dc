// Package sqlite provides the default identity backend, a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kozaktomas/face-id/internal/config"
	"github.com/kozaktomas/face-id/internal/database"
	"github.com/kozaktomas/face-id/internal/identity"
)

func init() {
	database.RegisterBackend("sqlite", func(_ context.Context, cfg config.StoreConfig) (database.Backend, error) {
		return Open(cfg.Path)
	})
}

// Backend implements database.Backend using SQLite.
type Backend struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func Open(dbPath string) (*Backend, error) {
	if dir := filepath.Dir(dbPath); dir != "." && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Backend{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS identities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uid TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		embedding BLOB NOT NULL,
		dim INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_identities_name ON identities(name);
	`
	_, err := db.Exec(schema)
	return err
}

// Insert stores a record; AUTOINCREMENT guarantees IDs are never reused.
func (b *Backend) Insert(ctx context.Context, rec identity.Record) (identity.Record, error) {
	res, err := b.db.ExecContext(ctx,
		`INSERT INTO identities (uid, name, embedding, dim, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.UID, rec.Name, database.EncodeEmbedding(rec.Embedding), rec.Embedding.Dim(), rec.CreatedAt.UTC(),
	)
	if err != nil {
		return identity.Record{}, fmt.Errorf("insert identity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return identity.Record{}, fmt.Errorf("read inserted id: %w", err)
	}
	rec = rec.Clone()
	rec.ID = id
	return rec, nil
}

// List returns every identity ordered by id.
func (b *Backend) List(ctx context.Context) ([]identity.Record, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, uid, name, embedding, created_at FROM identities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var out []identity.Record
	for rows.Next() {
		var rec identity.Record
		var blob []byte
		var created time.Time
		if err := rows.Scan(&rec.ID, &rec.UID, &rec.Name, &blob, &created); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		if rec.Embedding, err = database.DecodeEmbedding(blob); err != nil {
			return nil, fmt.Errorf("identity %d: %w", rec.ID, err)
		}
		rec.CreatedAt = created.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}

// Delete removes an identity by id.
func (b *Backend) Delete(ctx context.Context, id int64) error {
	res, err := b.db.ExecContext(ctx, `DELETE FROM identities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("identity %d: %w", id, identity.ErrNotFound)
	}
	return nil
}

// Import inserts records with explicit ids in one transaction. SQLite bumps
// the AUTOINCREMENT counter past explicit ids on its own.
func (b *Backend) Import(ctx context.Context, recs []identity.Record) (err error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO identities (id, uid, name, embedding, dim, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.UID, rec.Name,
			database.EncodeEmbedding(rec.Embedding), rec.Embedding.Dim(), rec.CreatedAt.UTC()); err != nil {
			return fmt.Errorf("import identity %d: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

// Close closes the database.
func (b *Backend) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	if err != nil && !errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}
