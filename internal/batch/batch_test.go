package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kohlhaas/docintel/internal/types"
)

func resultWith(content string) *types.ExtractionResult {
	r := types.NewResult("text/plain")
	r.Content = content
	return r
}

func TestMapPreservesInputOrder(t *testing.T) {
	pool := NewPool(4)
	tasks := make([]Task, 10)
	for i := range tasks {
		i := i
		tasks[i] = func(context.Context) (*types.ExtractionResult, error) {
			// Later items finish earlier.
			time.Sleep(time.Duration(10-i) * time.Millisecond)
			return resultWith(fmt.Sprintf("item-%d", i)), nil
		}
	}

	results := pool.Map(context.Background(), tasks)
	require.Len(t, results, 10)
	for i, r := range results {
		require.NoError(t, r.Err)
		assert.Equal(t, fmt.Sprintf("item-%d", i), r.Value.Content)
	}
}

func TestMapIsolatesFailures(t *testing.T) {
	pool := NewPool(2)
	tasks := []Task{
		func(context.Context) (*types.ExtractionResult, error) { return resultWith("ok-0"), nil },
		func(context.Context) (*types.ExtractionResult, error) { return nil, errors.New("corrupt input") },
		func(context.Context) (*types.ExtractionResult, error) { return resultWith("ok-2"), nil },
	}

	results := pool.Map(context.Background(), tasks)
	require.Len(t, results, 3)
	assert.Equal(t, "ok-0", results[0].Value.Content)
	require.Error(t, results[1].Err)
	assert.Equal(t, "ok-2", results[2].Value.Content)
}

func TestMapRespectsConcurrencyBound(t *testing.T) {
	const bound = 3
	pool := NewPool(bound)

	var running, peak int64
	tasks := make([]Task, 12)
	for i := range tasks {
		tasks[i] = func(context.Context) (*types.ExtractionResult, error) {
			n := atomic.AddInt64(&running, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&running, -1)
			return resultWith("done"), nil
		}
	}

	pool.Map(context.Background(), tasks)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(bound))
}

func TestHandleLifecycle(t *testing.T) {
	pool := NewPool(1)
	release := make(chan struct{})
	h := pool.Submit(context.Background(), func(context.Context) (*types.ExtractionResult, error) {
		<-release
		return resultWith("async"), nil
	})

	assert.False(t, h.IsReady())
	_, _, ok := h.TryGet()
	assert.False(t, ok)

	// A zero-timeout wait polls readiness without losing the work.
	assert.False(t, h.Wait(0))

	close(release)
	assert.True(t, h.Wait(time.Second))

	value, err, ok := h.TryGet()
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, "async", value.Content)

	// Get after a completed Wait still returns the same outcome.
	value, err = h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "async", value.Content)
}

func TestHandleWaitTimeoutDoesNotLoseWork(t *testing.T) {
	pool := NewPool(1)
	h := pool.Submit(context.Background(), func(context.Context) (*types.ExtractionResult, error) {
		time.Sleep(50 * time.Millisecond)
		return resultWith("slow"), nil
	})

	assert.False(t, h.Wait(time.Millisecond))

	value, err := h.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "slow", value.Content)
}

func TestHandleGetHonorsContext(t *testing.T) {
	pool := NewPool(1)
	h := pool.Submit(context.Background(), func(context.Context) (*types.ExtractionResult, error) {
		time.Sleep(time.Second)
		return resultWith("late"), nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := h.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
