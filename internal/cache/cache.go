// Package cache memoizes whole extraction runs, keyed by a fingerprint of
// content identity plus effective configuration. Caching is an optimization,
// never a correctness dependency: any cache fault degrades to computing
// without the cache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/kohlhaas/docintel/internal/errdef"
	"github.com/kohlhaas/docintel/internal/types"
	"github.com/kohlhaas/docintel/pkg/logger"
)

// ErrMiss is returned by stores when a key has no entry.
var ErrMiss = errors.New("cache miss")

// Store is a cache backend. Entries are immutable once written.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// Stats is a counts-only snapshot; no content is exposed.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// Cache wraps a Store with at-most-one-concurrent-computation per key.
type Cache struct {
	store  Store
	group  singleflight.Group
	log    logger.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache over the given store.
func New(store Store, log logger.Logger) *Cache {
	if log == nil {
		log = logger.Nop()
	}
	return &Cache{store: store, log: log}
}

// GetOrCompute returns the cached result for key, or runs compute exactly
// once across all concurrent callers of the same key and stores the outcome.
// Store read/write failures are logged as Cache-kind problems and the
// computation proceeds uncached.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (*types.ExtractionResult, error)) (*types.ExtractionResult, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		data, getErr := c.store.Get(ctx, key)
		if getErr == nil {
			var res types.ExtractionResult
			if decErr := json.Unmarshal(data, &res); decErr == nil {
				c.hits.Add(1)
				res.Normalize()
				return &res, nil
			}
			// Corrupted entry: treat as a miss.
			c.log.Warn("discarding corrupted cache entry", logger.String("key", key))
		} else if !errors.Is(getErr, ErrMiss) {
			c.log.Warn("cache read failed, computing uncached",
				logger.String("key", key),
				logger.Error(errdef.Wrap(errdef.KindCache, getErr, "cache get")),
			)
		}
		c.misses.Add(1)

		res, computeErr := compute(ctx)
		if computeErr != nil {
			return nil, computeErr
		}

		if data, encErr := json.Marshal(res); encErr == nil {
			if setErr := c.store.Set(ctx, key, data); setErr != nil {
				c.log.Warn("cache write failed",
					logger.String("key", key),
					logger.Error(errdef.Wrap(errdef.KindCache, setErr, "cache set")),
				)
			}
		}
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*types.ExtractionResult), nil
}

// Clear drops every entry.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return errdef.Wrap(errdef.KindCache, err, "clearing cache")
	}
	return nil
}

// Stats returns a counters snapshot.
func (c *Cache) Stats(ctx context.Context) Stats {
	entries, err := c.store.Len(ctx)
	if err != nil {
		entries = -1
	}
	return Stats{
		Entries: entries,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

// HashBytes returns the content identity of an in-memory payload.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile returns a content identity for a file without reading it: path,
// mtime, and size. A touched or rewritten file produces a new identity.
func HashFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d", path, info.ModTime().UnixNano(), info.Size())
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Fingerprint derives the cache key from a content identity and the full
// effective configuration. Two identical payloads under different settings
// are distinct entries.
func Fingerprint(contentID string, config *types.ExtractionConfig) string {
	h := sha256.New()
	h.Write([]byte(contentID))
	h.Write([]byte{'|'})
	if config != nil {
		// encoding/json emits struct fields in declaration order and sorts
		// map keys, so the serialization is deterministic.
		if data, err := json.Marshal(config); err == nil {
			h.Write(data)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
