// Package dbtest holds the behaviour every database.Backend must share.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-id/internal/database"
	"github.com/kozaktomas/face-id/internal/identity"
)

// Record builds a test record with a 4-dim embedding.
func Record(name string, emb ...float32) identity.Record {
	if len(emb) == 0 {
		emb = []float32{0.1, 0.2, 0.3, 0.4}
	}
	return identity.Record{
		UID:       name + "-uid",
		Name:      name,
		Embedding: emb,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// RunBackendTests runs the shared backend contract. newBackend must return
// an empty backend; it is called once per subtest.
func RunBackendTests(t *testing.T, newBackend func(t *testing.T) database.Backend) {
	ctx := context.Background()

	t.Run("InsertAssignsIncreasingIDs", func(t *testing.T) {
		b := newBackend(t)

		alice, err := b.Insert(ctx, Record("Alice"))
		require.NoError(t, err)
		bob, err := b.Insert(ctx, Record("Bob"))
		require.NoError(t, err)

		assert.Positive(t, alice.ID)
		assert.Greater(t, bob.ID, alice.ID)
	})

	t.Run("ListRoundTrip", func(t *testing.T) {
		b := newBackend(t)
		want := Record("Zoë Ünal", 1.5, -2.25, 0, 3.125)

		stored, err := b.Insert(ctx, want)
		require.NoError(t, err)

		got, err := b.List(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, stored.ID, got[0].ID)
		assert.Equal(t, want.UID, got[0].UID)
		assert.Equal(t, want.Name, got[0].Name)
		assert.Equal(t, want.Embedding, got[0].Embedding)
		assert.True(t, want.CreatedAt.Equal(got[0].CreatedAt), "created_at %v != %v", got[0].CreatedAt, want.CreatedAt)
	})

	t.Run("ListOrderedByID", func(t *testing.T) {
		b := newBackend(t)
		for _, name := range []string{"c", "a", "b"} {
			_, err := b.Insert(ctx, Record(name))
			require.NoError(t, err)
		}

		got, err := b.List(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Less(t, got[0].ID, got[1].ID)
		assert.Less(t, got[1].ID, got[2].ID)
		assert.Equal(t, "c", got[0].Name)
	})

	t.Run("DuplicateNamesAllowed", func(t *testing.T) {
		b := newBackend(t)
		r1 := Record("Alice")
		r2 := Record("Alice")
		r2.UID = "alice-second"

		first, err := b.Insert(ctx, r1)
		require.NoError(t, err)
		second, err := b.Insert(ctx, r2)
		require.NoError(t, err)

		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("Delete", func(t *testing.T) {
		b := newBackend(t)
		rec, err := b.Insert(ctx, Record("Alice"))
		require.NoError(t, err)

		require.NoError(t, b.Delete(ctx, rec.ID))
		assert.ErrorIs(t, b.Delete(ctx, rec.ID), identity.ErrNotFound)

		got, err := b.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("IDsNotReusedAfterDelete", func(t *testing.T) {
		b := newBackend(t)
		first, err := b.Insert(ctx, Record("a"))
		require.NoError(t, err)
		second, err := b.Insert(ctx, Record("b"))
		require.NoError(t, err)
		require.NoError(t, b.Delete(ctx, second.ID))

		third, err := b.Insert(ctx, Record("c"))
		require.NoError(t, err)

		assert.Greater(t, third.ID, second.ID)
		assert.Greater(t, third.ID, first.ID)
	})

	t.Run("ImportKeepsIDs", func(t *testing.T) {
		b := newBackend(t)
		a := Record("Alice")
		a.ID = 7
		c := Record("Carol")
		c.ID = 42
		c.UID = "carol-2"

		require.NoError(t, b.Import(ctx, []identity.Record{a, c}))

		got, err := b.List(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, int64(7), got[0].ID)
		assert.Equal(t, int64(42), got[1].ID)

		next, err := b.Insert(ctx, Record("Dave"))
		require.NoError(t, err)
		assert.Greater(t, next.ID, int64(42))
	})
}
