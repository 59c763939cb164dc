// Package mysql provides a MySQL/MariaDB identity backend. Embeddings are
// stored as JSON arrays.
package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/kozaktomas/face-id/internal/config"
	"github.com/kozaktomas/face-id/internal/database"
	"github.com/kozaktomas/face-id/internal/identity"
)

func init() {
	database.RegisterBackend("mysql", func(ctx context.Context, cfg config.StoreConfig) (database.Backend, error) {
		return Open(ctx, cfg)
	})
}

// Backend implements database.Backend on MySQL or MariaDB.
type Backend struct {
	db *sql.DB
}

// Open connects using cfg.URL as a go-sql-driver DSN and creates the table.
// parseTime=true is required so created_at scans into time.Time.
func Open(ctx context.Context, cfg config.StoreConfig) (*Backend, error) {
	if cfg.URL == "" {
		return nil, errors.New("MySQL DSN is required")
	}

	db, err := sql.Open("mysql", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS identities (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			uid VARCHAR(36) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			embedding MEDIUMBLOB NOT NULL,
			dim INT NOT NULL,
			created_at DATETIME(6) NOT NULL,
			INDEX idx_identities_name (name)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create identities table: %w", err)
	}

	return &Backend{db: db}, nil
}

// Insert stores a record; AUTO_INCREMENT assigns the id.
func (b *Backend) Insert(ctx context.Context, rec identity.Record) (identity.Record, error) {
	data, err := json.Marshal(rec.Embedding)
	if err != nil {
		return identity.Record{}, fmt.Errorf("marshal embedding: %w", err)
	}

	res, err := b.db.ExecContext(ctx,
		`INSERT INTO identities (uid, name, embedding, dim, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.UID, rec.Name, data, rec.Embedding.Dim(), rec.CreatedAt.UTC(),
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
		var data []byte
		if err := rows.Scan(&rec.ID, &rec.UID, &rec.Name, &data, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		if err := json.Unmarshal(data, &rec.Embedding); err != nil {
			return nil, fmt.Errorf("identity %d: unmarshal embedding: %w", rec.ID, err)
		}
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}

// Delete removes an identity by id.
func (b *Backend) Delete(ctx context.Context, id int64) error {
	// Verify the row exists first (MySQL RowsAffected is unreliable for no-op changes)
	var exists bool
	err := b.db.QueryRowContext(ctx, `SELECT 1 FROM identities WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("identity %d: %w", id, identity.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup identity: %w", err)
	}

	if _, err := b.db.ExecContext(ctx, `DELETE FROM identities WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}

// Import inserts records with explicit ids in one transaction. InnoDB moves
// AUTO_INCREMENT past explicit ids on its own.
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

	for _, rec := range recs {
		data, err := json.Marshal(rec.Embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO identities (id, uid, name, embedding, dim, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.UID, rec.Name, data, rec.Embedding.Dim(), rec.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("import identity %d: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (b *Backend) Close() error {
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}
