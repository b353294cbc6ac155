// Package batch runs extractions concurrently under a bounded worker pool,
// preserving input order and isolating per-item failures.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/kohlhaas/docintel/internal/types"
)

// DefaultMaxConcurrent bounds the pool when the caller does not size it.
const DefaultMaxConcurrent = 8

// Result pairs one item's outcome with its error; exactly one of the two is
// meaningful.
type Result struct {
	Value *types.ExtractionResult
	Err   error
}

// Task produces one extraction result.
type Task func(ctx context.Context) (*types.ExtractionResult, error)

// Pool is a bounded concurrent executor shared by batch and async dispatch.
type Pool struct {
	sem chan struct{}
}

// NewPool creates a pool admitting at most maxConcurrent tasks at once.
func NewPool(maxConcurrent int) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Pool{sem: make(chan struct{}, maxConcurrent)}
}

// Map runs one task per input slot and returns results in input order. A
// failing task occupies its own slot; it never affects its neighbors.
func (p *Pool) Map(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	var wg sync.WaitGroup
	for i, task := range tasks {
		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()
			select {
			case p.sem <- struct{}{}:
				defer func() { <-p.sem }()
			case <-ctx.Done():
				results[i] = Result{Err: ctx.Err()}
				return
			}
			value, err := task(ctx)
			results[i] = Result{Value: value, Err: err}
		}(i, task)
	}
	wg.Wait()
	return results
}

// Handle is a deferred extraction outcome. Dropping a handle does not cancel
// the dispatched work.
type Handle struct {
	done chan struct{}

	mu    sync.Mutex
	value *types.ExtractionResult
	err   error
}

// Submit dispatches a task and returns a handle to its eventual outcome.
func (p *Pool) Submit(ctx context.Context, task Task) *Handle {
	h := &Handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
		case <-ctx.Done():
			h.set(nil, ctx.Err())
			return
		}
		value, err := task(ctx)
		h.set(value, err)
	}()
	return h
}

func (h *Handle) set(value *types.ExtractionResult, err error) {
	h.mu.Lock()
	h.value, h.err = value, err
	h.mu.Unlock()
}

// IsReady reports whether the outcome is available without blocking.
func (h *Handle) IsReady() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// TryGet returns the outcome if ready. The third return is false while the
// task is still running.
func (h *Handle) TryGet() (*types.ExtractionResult, error, bool) {
	if !h.IsReady() {
		return nil, nil, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.value, h.err, true
}

// Get blocks until the outcome is available or the context is done.
func (h *Handle) Get(ctx context.Context) (*types.ExtractionResult, error) {
	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.value, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Wait blocks up to timeout for the outcome and reports readiness. A timeout
// never loses the work; a later Get still succeeds.
func (h *Handle) Wait(timeout time.Duration) bool {
	if timeout <= 0 {
		return h.IsReady()
	}
	select {
	case <-h.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
