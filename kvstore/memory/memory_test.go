package memory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantfold/tradewire/kvstore/memory"
	"github.com/quantfold/tradewire/kvstore/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, memory.New())
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = store.Set(ctx, "shared", "value")
				_, _ = store.Get(ctx, "shared")
				_ = store.Remove(ctx, "shared")
			}
		}()
	}
	wg.Wait()

	require.NoError(t, store.Set(ctx, "final", "ok"))
	v, err := store.Get(ctx, "final")
	require.NoError(t, err)
	require.Equal(t, "ok", v)
}
