package database_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-id/internal/database"
	"github.com/kozaktomas/face-id/internal/facematch"
	"github.com/kozaktomas/face-id/internal/identity"
)

type failingBackend struct {
	*database.MemoryBackend
	insertErr error
	listErr   error
}

func (f *failingBackend) Insert(ctx context.Context, rec identity.Record) (identity.Record, error) {
	if f.insertErr != nil {
		return identity.Record{}, f.insertErr
	}
	return f.MemoryBackend.Insert(ctx, rec)
}

func (f *failingBackend) List(ctx context.Context) ([]identity.Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.MemoryBackend.List(ctx)
}

// shiftingBackend reports ids lowered by shift, as a misbehaving backend
// whose sequence went backwards would.
type shiftingBackend struct {
	*database.MemoryBackend
	shift int64
}

func (b *shiftingBackend) Insert(ctx context.Context, rec identity.Record) (identity.Record, error) {
	stored, err := b.MemoryBackend.Insert(ctx, rec)
	stored.ID -= b.shift
	return stored, err
}

func (b *shiftingBackend) Delete(ctx context.Context, id int64) error {
	return b.MemoryBackend.Delete(ctx, id+b.shift)
}

func newStore(t *testing.T, backend database.Backend, opts database.Options) *database.Store {
	t.Helper()
	if opts.Dim == 0 {
		opts.Dim = 3
	}
	s, err := database.NewStore(context.Background(), backend, opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_InsertAssignsSequentialIDs(t *testing.T) {
	s := newStore(t, database.NewMemoryBackend(), database.Options{})
	ctx := context.Background()

	alice, err := s.Insert(ctx, "Alice", identity.Embedding{1, 0, 0})
	require.NoError(t, err)
	bob, err := s.Insert(ctx, "  Bob  ", identity.Embedding{0, 1, 0})
	require.NoError(t, err)

	assert.Equal(t, int64(1), alice.ID)
	assert.Equal(t, int64(2), bob.ID)
	assert.Equal(t, "Bob", bob.Name)
	assert.NotEmpty(t, alice.UID)
	assert.NotEqual(t, alice.UID, bob.UID)
	assert.False(t, alice.CreatedAt.IsZero())
	assert.Equal(t, 2, s.Count())

	all := s.All()
	require.Len(t, all, 2)
	assert.Equal(t, "Alice", all[0].Name)
	assert.Equal(t, "Bob", all[1].Name)
}

func TestStore_InsertRejectsEmptyName(t *testing.T) {
	s := newStore(t, database.NewMemoryBackend(), database.Options{})

	for _, name := range []string{"", "   ", "\t\n"} {
		_, err := s.Insert(context.Background(), name, identity.Embedding{1, 2, 3})
		assert.ErrorIs(t, err, identity.ErrInvalidName)
	}
	assert.Zero(t, s.Count())
}

func TestStore_InsertRejectsWrongDim(t *testing.T) {
	s := newStore(t, database.NewMemoryBackend(), database.Options{Dim: 3})

	_, err := s.Insert(context.Background(), "Alice", identity.Embedding{1, 2})

	assert.ErrorIs(t, err, identity.ErrDimensionMismatch)
	assert.Zero(t, s.Count())
}

func TestStore_InsertBackendFailureLeavesSnapshot(t *testing.T) {
	backend := &failingBackend{MemoryBackend: database.NewMemoryBackend()}
	s := newStore(t, backend, database.Options{})

	backend.insertErr = errors.New("disk full")
	_, err := s.Insert(context.Background(), "Alice", identity.Embedding{1, 2, 3})

	require.Error(t, err)
	assert.Zero(t, s.Count())
}

func TestStore_InsertNonIncreasingIDRollsBack(t *testing.T) {
	backend := &shiftingBackend{MemoryBackend: database.NewMemoryBackend()}
	s := newStore(t, backend, database.Options{})
	ctx := context.Background()

	_, err := s.Insert(ctx, "Alice", identity.Embedding{1, 0, 0})
	require.NoError(t, err)

	backend.shift = 2
	_, err = s.Insert(ctx, "Bob", identity.Embedding{0, 1, 0})

	require.ErrorContains(t, err, "non-increasing id")
	assert.Equal(t, 1, s.Count())
	rows, err := backend.MemoryBackend.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Alice", rows[0].Name)
}

func TestStore_InsertDuplicateIDKeepsExistingRow(t *testing.T) {
	backend := &shiftingBackend{MemoryBackend: database.NewMemoryBackend()}
	s := newStore(t, backend, database.Options{})
	ctx := context.Background()

	_, err := s.Insert(ctx, "Alice", identity.Embedding{1, 0, 0})
	require.NoError(t, err)

	backend.shift = 1
	_, err = s.Insert(ctx, "Bob", identity.Embedding{0, 1, 0})

	require.ErrorContains(t, err, "non-increasing id")
	assert.Equal(t, 1, s.Count())
	rows, err := backend.MemoryBackend.List(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Name)
	}
	assert.Contains(t, names, "Alice")
}

func TestStore_InsertCopiesEmbedding(t *testing.T) {
	s := newStore(t, database.NewMemoryBackend(), database.Options{})
	emb := identity.Embedding{1, 2, 3}

	_, err := s.Insert(context.Background(), "Alice", emb)
	require.NoError(t, err)
	emb[0] = 99

	assert.Equal(t, identity.Embedding{1, 2, 3}, s.All()[0].Embedding)
}

func TestNewStore_LoadFailureIsFatal(t *testing.T) {
	backend := &failingBackend{MemoryBackend: database.NewMemoryBackend(), listErr: errors.New("corrupt")}

	_, err := database.NewStore(context.Background(), backend, database.Options{Dim: 3})

	assert.ErrorContains(t, err, "corrupt")
}

func TestNewStore_ReloadsExistingRecords(t *testing.T) {
	ctx := context.Background()
	backend := database.NewMemoryBackend()
	first, err := database.NewStore(ctx, backend, database.Options{Dim: 3})
	require.NoError(t, err)
	_, err = first.Insert(ctx, "Alice", identity.Embedding{1, 0, 0})
	require.NoError(t, err)

	second := newStore(t, backend, database.Options{Dim: 3})

	require.Equal(t, 1, second.Count())
	rec, err := second.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "Alice", rec.Name)

	next, err := second.Insert(ctx, "Bob", identity.Embedding{0, 1, 0})
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.ID)
}

func TestNewStore_RejectsStoredDimMismatch(t *testing.T) {
	backend := database.NewMemoryBackend()
	_, err := backend.Insert(context.Background(), identity.Record{Name: "x", Embedding: identity.Embedding{1, 2}})
	require.NoError(t, err)

	_, err = database.NewStore(context.Background(), backend, database.Options{Dim: 3})

	assert.ErrorIs(t, err, identity.ErrDimensionMismatch)
}

func TestStore_GetAndDelete(t *testing.T) {
	s := newStore(t, database.NewMemoryBackend(), database.Options{})
	ctx := context.Background()
	rec, err := s.Insert(ctx, "Alice", identity.Embedding{1, 0, 0})
	require.NoError(t, err)

	got, err := s.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.UID, got.UID)

	require.NoError(t, s.Delete(ctx, rec.ID))
	_, err = s.Get(rec.ID)
	assert.ErrorIs(t, err, identity.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, rec.ID), identity.ErrNotFound)
	assert.Zero(t, s.Count())
}

func TestStore_ConcurrentInserts(t *testing.T) {
	s := newStore(t, database.NewMemoryBackend(), database.Options{})
	ctx := context.Background()

	const n = 50
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := s.Insert(ctx, fmt.Sprintf("person-%d", i), identity.Embedding{float32(i), 0, 0})
			assert.NoError(t, err)
			ids <- rec.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Equal(t, n, s.Count())

	all := s.All()
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID)
	}
}

func TestStore_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	src := newStore(t, database.NewMemoryBackend(), database.Options{})
	_, err := src.Insert(ctx, "Alice", identity.Embedding{1, 0, 0})
	require.NoError(t, err)
	bob, err := src.Insert(ctx, "Bob", identity.Embedding{0, 1, 0})
	require.NoError(t, err)
	require.NoError(t, src.Delete(ctx, 1))

	snap := src.Snapshot()

	dst := newStore(t, database.NewMemoryBackend(), database.Options{})
	require.NoError(t, dst.Restore(ctx, snap))

	all := dst.All()
	require.Len(t, all, 1)
	assert.Equal(t, bob.ID, all[0].ID)
	assert.Equal(t, bob.UID, all[0].UID)

	next, err := dst.Insert(ctx, "Carol", identity.Embedding{0, 0, 1})
	require.NoError(t, err)
	assert.Greater(t, next.ID, bob.ID)

	assert.ErrorIs(t, dst.Restore(ctx, snap), database.ErrStoreNotEmpty)
}

func TestStore_RestoreRejectsDimMismatch(t *testing.T) {
	s := newStore(t, database.NewMemoryBackend(), database.Options{Dim: 3})

	err := s.Restore(context.Background(), database.Snapshot{Version: 1, Dim: 128})

	assert.ErrorIs(t, err, identity.ErrDimensionMismatch)
}

func TestStore_CandidatesWithoutIndexReturnsAll(t *testing.T) {
	s := newStore(t, database.NewMemoryBackend(), database.Options{})
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := s.Insert(ctx, fmt.Sprintf("p%d", i), identity.Embedding{float32(i), 0, 0})
		require.NoError(t, err)
	}

	assert.Len(t, s.Candidates(identity.Embedding{0, 0, 0}, 2), 5)
}

func TestStore_CandidatesWithIndex(t *testing.T) {
	s := newStore(t, database.NewMemoryBackend(), database.Options{
		UseIndex: true,
		Metric:   facematch.MetricEuclidean,
	})
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		_, err := s.Insert(ctx, fmt.Sprintf("p%d", i), identity.Embedding{float32(i), float32(i % 3), 1})
		require.NoError(t, err)
	}

	got := s.Candidates(identity.Embedding{7, 1, 1}, 3)

	require.NotEmpty(t, got)
	assert.LessOrEqual(t, len(got), 3)
	assert.Equal(t, "p7", got[0].Name)

	require.NoError(t, s.Delete(ctx, got[0].ID))
	for _, rec := range s.Candidates(identity.Embedding{7, 1, 1}, 3) {
		assert.NotEqual(t, "p7", rec.Name)
	}
}

func TestStore_IndexPersistence(t *testing.T) {
	ctx := context.Background()
	backend := database.NewMemoryBackend()
	path := filepath.Join(t.TempDir(), "faces.hnsw")
	opts := database.Options{Dim: 3, UseIndex: true, IndexPath: path}

	s, err := database.NewStore(ctx, backend, opts)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := s.Insert(ctx, fmt.Sprintf("p%d", i), identity.Embedding{float32(i), 0, 1})
		require.NoError(t, err)
	}
	require.NoError(t, s.SaveIndex())

	meta, err := database.LoadHNSWMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, 10, meta.RecordCount)
	assert.Equal(t, int64(10), meta.MaxRecordID)
	assert.Equal(t, "euclidean", meta.Metric)

	reopened := newStore(t, backend, opts)
	got := reopened.Candidates(identity.Embedding{4, 0, 1}, 2)
	require.NotEmpty(t, got)
	assert.Equal(t, "p4", got[0].Name)
}
