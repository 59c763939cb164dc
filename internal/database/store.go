// Package database provides the identity store: a durable backend plus an
// in-memory snapshot that every recognition query reads from.
package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-id/internal/facematch"
	"github.com/kozaktomas/face-id/internal/identity"
)

// Options configures a Store.
type Options struct {
	Dim    int
	Metric facematch.Metric
	// UseIndex enables the HNSW candidate index.
	UseIndex bool
	// IndexPath persists the HNSW index between runs (optional).
	IndexPath string
	Logger    *zap.Logger
}

// Store is the identity store. Writes go to the backend and the snapshot
// under one lock, so an enrolled identity is visible to every later read.
type Store struct {
	backend Backend
	opts    Options
	logger  *zap.Logger

	mu      sync.RWMutex
	records []identity.Record // ordered by ID
	index   *HNSWIndex
}

// NewStore loads every record from backend into memory. A load failure is
// returned as an error; the store is unusable without its snapshot.
func NewStore(ctx context.Context, backend Backend, opts Options) (*Store, error) {
	if opts.Dim <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", opts.Dim)
	}
	if opts.Metric == "" {
		opts.Metric = facematch.MetricEuclidean
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	records, err := backend.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading identities: %w", err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })

	for _, rec := range records {
		if rec.Embedding.Dim() != opts.Dim {
			return nil, fmt.Errorf("identity %d has %d-dim embedding, store expects %d: %w",
				rec.ID, rec.Embedding.Dim(), opts.Dim, identity.ErrDimensionMismatch)
		}
	}

	s := &Store{backend: backend, opts: opts, logger: logger, records: records}
	if opts.UseIndex {
		s.index = s.loadIndex(records)
	}

	logger.Info("identity store loaded",
		zap.Int("identities", len(records)),
		zap.Int("dim", opts.Dim),
		zap.Bool("hnsw", opts.UseIndex))
	return s, nil
}

func (s *Store) loadIndex(records []identity.Record) *HNSWIndex {
	if s.opts.IndexPath != "" {
		idx, err := LoadHNSWIndex(s.opts.IndexPath, s.opts.Metric, records)
		if err != nil {
			s.logger.Warn("HNSW index load failed, rebuilding", zap.String("path", s.opts.IndexPath), zap.Error(err))
		} else if idx != nil {
			s.logger.Info("HNSW index loaded", zap.String("path", s.opts.IndexPath), zap.Int("count", idx.Count()))
			return idx
		}
	}

	start := time.Now()
	idx := NewHNSWIndex(s.opts.Metric)
	idx.Build(records)
	s.logger.Info("HNSW index built", zap.Int("count", idx.Count()), zap.Duration("took", time.Since(start)))
	return idx
}

// Dim returns the embedding dimension the store accepts.
func (s *Store) Dim() int {
	return s.opts.Dim
}

// Metric returns the distance metric used by the candidate index.
func (s *Store) Metric() facematch.Metric {
	return s.opts.Metric
}

// Insert enrolls a new identity. The name is cleaned and must be non-empty;
// the embedding must have the store's dimension.
func (s *Store) Insert(ctx context.Context, name string, emb identity.Embedding) (identity.Record, error) {
	clean, err := identity.CleanName(name)
	if err != nil {
		return identity.Record{}, err
	}
	if emb.Dim() != s.opts.Dim {
		return identity.Record{}, fmt.Errorf("got %d-dim embedding, store expects %d: %w",
			emb.Dim(), s.opts.Dim, identity.ErrDimensionMismatch)
	}

	rec := identity.Record{
		UID:       uuid.NewString(),
		Name:      clean,
		Embedding: emb.Clone(),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.backend.Insert(ctx, rec)
	if err != nil {
		return identity.Record{}, fmt.Errorf("storing identity: %w", err)
	}
	if n := len(s.records); n > 0 && stored.ID <= s.records[n-1].ID {
		err := fmt.Errorf("backend assigned non-increasing id %d after %d", stored.ID, s.records[n-1].ID)
		// Roll back unless the id belongs to a record we already hold.
		if _, held := s.find(stored.ID); !held {
			if delErr := s.backend.Delete(ctx, stored.ID); delErr != nil {
				err = errors.Join(err, fmt.Errorf("rolling back id %d: %w", stored.ID, delErr))
			}
		}
		return identity.Record{}, err
	}

	s.records = append(s.records, stored)
	if s.index != nil {
		s.index.Add(stored)
	}
	return stored.Clone(), nil
}

// All returns a copy of the snapshot ordered by ID. Embeddings are shared
// with the snapshot and must not be modified.
func (s *Store) All() []identity.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]identity.Record(nil), s.records...)
}

// Candidates returns the records worth scoring for query. Without an index
// that is every record; with one it is the k approximate nearest.
func (s *Store) Candidates(query identity.Embedding, k int) []identity.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.index == nil || k <= 0 || k >= len(s.records) {
		return append([]identity.Record(nil), s.records...)
	}

	ids := s.index.Search(query, k)
	out := make([]identity.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.find(id); ok {
			out = append(out, rec)
		}
	}
	return out
}

// Get returns the record with the given ID.
func (s *Store) Get(id int64) (identity.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.find(id)
	if !ok {
		return identity.Record{}, fmt.Errorf("identity %d: %w", id, identity.ErrNotFound)
	}
	return rec.Clone(), nil
}

// find does a binary search over the ID-ordered snapshot. Caller holds mu.
func (s *Store) find(id int64) (identity.Record, bool) {
	i := sort.Search(len(s.records), func(i int) bool { return s.records[i].ID >= id })
	if i < len(s.records) && s.records[i].ID == id {
		return s.records[i], true
	}
	return identity.Record{}, false
}

// Count returns the number of enrolled identities.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Delete removes an identity.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx, id); err != nil {
		return err
	}

	i := sort.Search(len(s.records), func(i int) bool { return s.records[i].ID >= id })
	if i < len(s.records) && s.records[i].ID == id {
		s.records = append(s.records[:i:i], s.records[i+1:]...)
	}
	if s.index != nil {
		s.index.Delete(id)
	}
	return nil
}

// Snapshot returns every record for backup.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := make([]identity.Record, len(s.records))
	for i, rec := range s.records {
		recs[i] = rec.Clone()
	}
	return Snapshot{Version: currentSnapshotVersion, Dim: s.opts.Dim, Records: recs}
}

// ErrStoreNotEmpty is returned when restoring into a store that has identities.
var ErrStoreNotEmpty = errors.New("store is not empty")

// Restore imports a snapshot into an empty store, keeping the original IDs.
func (s *Store) Restore(ctx context.Context, snap Snapshot) error {
	if snap.Version != currentSnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	if snap.Dim != s.opts.Dim {
		return fmt.Errorf("snapshot has %d-dim embeddings, store expects %d: %w",
			snap.Dim, s.opts.Dim, identity.ErrDimensionMismatch)
	}

	recs := make([]identity.Record, len(snap.Records))
	for i, rec := range snap.Records {
		if rec.Embedding.Dim() != s.opts.Dim {
			return fmt.Errorf("identity %d: %w", rec.ID, identity.ErrDimensionMismatch)
		}
		recs[i] = rec.Clone()
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	for i := 1; i < len(recs); i++ {
		if recs[i].ID == recs[i-1].ID {
			return fmt.Errorf("snapshot contains duplicate id %d", recs[i].ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) > 0 {
		return ErrStoreNotEmpty
	}
	if err := s.backend.Import(ctx, recs); err != nil {
		return fmt.Errorf("importing identities: %w", err)
	}

	s.records = recs
	if s.index != nil {
		s.index.Build(recs)
	}
	return nil
}

// SaveIndex persists the HNSW index if one is configured with a path.
func (s *Store) SaveIndex() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.index == nil || s.opts.IndexPath == "" {
		return nil
	}
	return s.index.SaveWithMetadata(s.opts.IndexPath, MetadataFor(s.records))
}

// Close saves the index and closes the backend.
func (s *Store) Close() error {
	if err := s.SaveIndex(); err != nil {
		s.logger.Warn("HNSW index save failed", zap.String("path", s.opts.IndexPath), zap.Error(err))
	}
	return s.backend.Close()
}
