package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohlhaas/docintel/internal/types"
	"github.com/kohlhaas/docintel/pkg/logger"
)

func TestGetOrComputeSingleFlight(t *testing.T) {
	c := New(NewMemoryStore(MemoryOptions{}), logger.Nop())
	ctx := context.Background()

	var calls atomic.Int32
	compute := func(context.Context) (*types.ExtractionResult, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond) // keep the flight open
		r := types.NewResult("text/plain")
		r.Content = "expensive"
		return r, nil
	}

	const n = 16
	var wg sync.WaitGroup
	results := make([]*types.ExtractionResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.GetOrCompute(ctx, "same-key", compute)
			require.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load(), "compute runs exactly once per key")
	for _, r := range results {
		assert.Equal(t, "expensive", r.Content)
	}
}

func TestCacheHitSkipsCompute(t *testing.T) {
	c := New(NewMemoryStore(MemoryOptions{}), logger.Nop())
	ctx := context.Background()

	var calls int
	compute := func(context.Context) (*types.ExtractionResult, error) {
		calls++
		r := types.NewResult("text/plain")
		r.Content = "v"
		return r, nil
	}

	_, err := c.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)
	res, err := c.GetOrCompute(ctx, "k", compute)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, "v", res.Content)
	assert.NotNil(t, res.Tables, "decoded hit keeps structural invariants")

	stats := c.Stats(ctx)
	assert.Equal(t, 1, stats.Entries)
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
}

func TestFingerprintVariesWithConfig(t *testing.T) {
	content := HashBytes([]byte("same file"))
	plain := Fingerprint(content, &types.ExtractionConfig{})
	withOCR := Fingerprint(content, &types.ExtractionConfig{
		ForceOCR: types.BoolPtr(true),
	})
	assert.NotEqual(t, plain, withOCR,
		"identical content under different settings is a different entry")

	// Deterministic for equal inputs.
	assert.Equal(t, plain, Fingerprint(content, &types.ExtractionConfig{}))
}

func TestClearAndStats(t *testing.T) {
	c := New(NewMemoryStore(MemoryOptions{}), logger.Nop())
	ctx := context.Background()

	_, err := c.GetOrCompute(ctx, "a", func(context.Context) (*types.ExtractionResult, error) {
		return types.NewResult("text/plain"), nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, c.Stats(ctx).Entries)

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Stats(ctx).Entries)
}

func TestMemoryStoreEviction(t *testing.T) {
	s := NewMemoryStore(MemoryOptions{MaxEntries: 2})
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", []byte("1")))
	time.Sleep(time.Millisecond)
	require.NoError(t, s.Set(ctx, "b", []byte("2")))
	time.Sleep(time.Millisecond)
	require.NoError(t, s.Set(ctx, "c", []byte("3")))

	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss, "oldest entry evicted")
	_, err = s.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestDiskStoreRoundTrip(t *testing.T) {
	s, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, s.Set(ctx, "k", []byte(`{"content":""}`)))
	data, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":""}`, string(data))

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Clear(ctx))
	n, _ = s.Len(ctx)
	assert.Equal(t, 0, n)
}
