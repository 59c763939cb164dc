package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-id/internal/identity"
)

// IdentityRepository implements database.Backend on PostgreSQL.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a new PostgreSQL identity repository.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// Insert stores a record; BIGSERIAL assigns the id.
func (r *IdentityRepository) Insert(ctx context.Context, rec identity.Record) (identity.Record, error) {
	vec := pgvector.NewVector(rec.Embedding)
	query := `
		INSERT INTO identities (uid, name, embedding, dim, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	rec = rec.Clone()
	if err := r.pool.db.QueryRowContext(ctx, query,
		rec.UID, rec.Name, vec, rec.Embedding.Dim(), rec.CreatedAt,
	).Scan(&rec.ID); err != nil {
		return identity.Record{}, fmt.Errorf("insert identity: %w", err)
	}
	return rec, nil
}

// List returns every identity ordered by id.
func (r *IdentityRepository) List(ctx context.Context) ([]identity.Record, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT id, uid, name, embedding, created_at
		FROM identities
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	return scanIdentities(rows)
}

func scanIdentities(rows *sql.Rows) ([]identity.Record, error) {
	var out []identity.Record
	for rows.Next() {
		var rec identity.Record
		var vec pgvector.Vector
		if err := rows.Scan(&rec.ID, &rec.UID, &rec.Name, &vec, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		rec.Embedding = vec.Slice()
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}

// Delete removes an identity by id.
func (r *IdentityRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.pool.db.ExecContext(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("identity %d: %w", id, identity.ErrNotFound)
	}
	return nil
}

// Import inserts records with explicit ids and moves the id sequence past
// the largest one, all in one transaction.
func (r *IdentityRepository) Import(ctx context.Context, recs []identity.Record) (err error) {
	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO identities (id, uid, name, embedding, dim, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("prepare import: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.UID, rec.Name,
			pgvector.NewVector(rec.Embedding), rec.Embedding.Dim(), rec.CreatedAt); err != nil {
			return fmt.Errorf("import identity %d: %w", rec.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		SELECT setval(pg_get_serial_sequence('identities', 'id'),
		              COALESCE((SELECT MAX(id) FROM identities), 0) + 1, false)
	`); err != nil {
		return fmt.Errorf("advance id sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (r *IdentityRepository) Close() error {
	return r.pool.Close()
}
