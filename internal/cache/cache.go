package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// Defaults applied by DefaultConfig.
const (
	DefaultAbsoluteTTL = 5 * time.Minute
	DefaultSlidingTTL  = time.Minute
	DefaultCapacity    = 1024
)

// Observer receives cache events. Implementations must be safe for concurrent use.
type Observer interface {
	CacheHit()
	CacheMiss()
	CacheEvicted()
}

// Config controls entry lifetime and size.
type Config struct {
	// AbsoluteTTL bounds an entry's lifetime from creation. Zero disables it.
	AbsoluteTTL time.Duration

	// SlidingTTL bounds the time between accesses. Zero disables it.
	SlidingTTL time.Duration

	// Capacity is the maximum number of entries.
	Capacity int

	// Observer is notified of hits, misses and evictions. Optional.
	Observer Observer

	// Now overrides the clock in tests.
	Now func() time.Time
}

// DefaultConfig returns the standard lifetime settings.
func DefaultConfig() Config {
	return Config{
		AbsoluteTTL: DefaultAbsoluteTTL,
		SlidingTTL:  DefaultSlidingTTL,
		Capacity:    DefaultCapacity,
	}
}

type entry[V any] struct {
	value      V
	created    time.Time
	lastAccess atomic.Int64
}

func (e *entry[V]) expired(now time.Time, cfg *Config) bool {
	if cfg.AbsoluteTTL > 0 && !now.Before(e.created.Add(cfg.AbsoluteTTL)) {
		return true
	}
	if cfg.SlidingTTL > 0 && !now.Before(time.Unix(0, e.lastAccess.Load()).Add(cfg.SlidingTTL)) {
		return true
	}
	return false
}

// Cache is a version-scoped read-through cache of V.
// Safe for concurrent use.
type Cache[V any] struct {
	version *Version
	entries *lru.Cache[string, *entry[V]]
	group   singleflight.Group
	cfg     Config
}

// New creates a Cache bound to version.
func New[V any](version *Version, cfg Config) (*Cache[V], error) {
	if version == nil {
		return nil, fmt.Errorf("cache: version is required")
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Cache[V]{version: version, cfg: cfg}
	entries, err := lru.NewWithEvict[string, *entry[V]](cfg.Capacity, func(string, *entry[V]) {
		if c.cfg.Observer != nil {
			c.cfg.Observer.CacheEvicted()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Key returns the full cache key for params under the current token.
func (c *Cache[V]) Key(params string) string {
	return keyFor(c.version.Current(), params)
}

func keyFor(tok Token, params string) string {
	return tok.String() + "|" + params
}

// GetOrCompute returns the live entry for params or computes and stores it.
//
// The token is captured before compute runs, so a value computed across a
// concurrent Bump lands under the superseded token and is never served.
// Concurrent misses on one key share a single compute call. Errors are
// returned to every waiter and not cached. The bool reports a cache hit.
//
// The shared compute runs detached from any one caller's cancellation; each
// caller stops waiting when its own ctx is done.
func (c *Cache[V]) GetOrCompute(ctx context.Context, params string, compute func(ctx context.Context) (V, error)) (V, bool, error) {
	var zero V
	key := keyFor(c.version.Current(), params)

	if v, ok := c.get(key); ok {
		c.observe(Observer.CacheHit)
		return v, true, nil
	}
	c.observe(Observer.CacheMiss)
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}

	flight := c.group.DoChan(key, func() (any, error) {
		v, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.put(key, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return zero, false, res.Err
		}
		return res.Val.(V), false, nil
	}
}

func (c *Cache[V]) get(key string) (V, bool) {
	var zero V
	e, ok := c.entries.Get(key)
	if !ok {
		return zero, false
	}
	now := c.cfg.Now()
	if e.expired(now, &c.cfg) {
		c.entries.Remove(key)
		return zero, false
	}
	e.lastAccess.Store(now.UnixNano())
	return e.value, true
}

func (c *Cache[V]) put(key string, v V) {
	now := c.cfg.Now()
	e := &entry[V]{value: v, created: now}
	e.lastAccess.Store(now.UnixNano())
	c.entries.Add(key, e)
}

func (c *Cache[V]) observe(event func(Observer)) {
	if c.cfg.Observer != nil {
		event(c.cfg.Observer)
	}
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *Cache[V]) Len() int {
	return c.entries.Len()
}

// Purge removes every entry.
func (c *Cache[V]) Purge() {
	c.entries.Purge()
}
