// Package storetest provides a conformance suite run against every
// kvstore.Store implementation.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/tradewire/kvstore"
)

// Run exercises the kvstore.Store contract against the given store.
func Run(t *testing.T, store kvstore.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "alpha", "one"))
		v, err := store.Get(ctx, "alpha")
		require.NoError(t, err)
		assert.Equal(t, "one", v)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "beta", "first"))
		require.NoError(t, store.Set(ctx, "beta", "second"))
		v, err := store.Get(ctx, "beta")
		require.NoError(t, err)
		assert.Equal(t, "second", v)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get(ctx, "no-such-key")
		require.ErrorIs(t, err, kvstore.ErrNotFound)
	})

	t.Run("Remove", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "gamma", "v"))
		require.NoError(t, store.Remove(ctx, "gamma"))
		_, err := store.Get(ctx, "gamma")
		require.ErrorIs(t, err, kvstore.ErrNotFound)
	})

	t.Run("RemoveMissing", func(t *testing.T) {
		require.NoError(t, store.Remove(ctx, "never-existed"))
	})

	t.Run("MultiSetAndMultiRemove", func(t *testing.T) {
		pairs := []kvstore.Pair{
			{Key: "m1", Value: "a"},
			{Key: "m2", Value: "b"},
			{Key: "m3", Value: "c"},
		}
		require.NoError(t, store.MultiSet(ctx, pairs))
		for _, p := range pairs {
			v, err := store.Get(ctx, p.Key)
			require.NoError(t, err)
			assert.Equal(t, p.Value, v)
		}

		require.NoError(t, store.MultiRemove(ctx, []string{"m1", "m2", "m3", "m4"}))
		for _, p := range pairs {
			_, err := store.Get(ctx, p.Key)
			require.ErrorIs(t, err, kvstore.ErrNotFound)
		}
	})
}
