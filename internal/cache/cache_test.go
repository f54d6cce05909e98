package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingObserver struct {
	hits, misses, evictions atomic.Int32
}

func (o *countingObserver) CacheHit()     { o.hits.Add(1) }
func (o *countingObserver) CacheMiss()    { o.misses.Add(1) }
func (o *countingObserver) CacheEvicted() { o.evictions.Add(1) }

func newTestCache(t *testing.T, cfg Config) (*Cache[string], *Version, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	cfg.Now = clock.Now
	v := NewVersion()
	c, err := New[string](v, cfg)
	require.NoError(t, err)
	return c, v, clock
}

func constant(value string, calls *int) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		*calls++
		return value, nil
	}
}

func TestVersion_BumpAdvancesGeneration(t *testing.T) {
	v := NewVersion()
	first := v.Current()

	next := v.Bump()

	assert.Equal(t, uint64(1), first.Generation)
	assert.Equal(t, uint64(2), next.Generation)
	assert.NotEqual(t, first.ID, next.ID)
	assert.Equal(t, next, v.Current())
	assert.NotEqual(t, first.String(), next.String())
}

func TestVersion_ConcurrentBumpsAreCounted(t *testing.T) {
	v := NewVersion()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v.Bump()
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(51), v.Current().Generation)
}

func TestNew_RequiresVersion(t *testing.T) {
	_, err := New[string](nil, DefaultConfig())
	assert.Error(t, err)
}

func TestGetOrCompute_HitAfterMiss(t *testing.T) {
	obs := &countingObserver{}
	cfg := DefaultConfig()
	cfg.Observer = obs
	c, _, _ := newTestCache(t, cfg)
	ctx := context.Background()
	calls := 0

	v, hit, err := c.GetOrCompute(ctx, "q=laptop", constant("one", &calls))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "one", v)

	v, hit, err = c.GetOrCompute(ctx, "q=laptop", constant("two", &calls))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "one", v)

	assert.Equal(t, 1, calls)
	assert.Equal(t, int32(1), obs.hits.Load())
	assert.Equal(t, int32(1), obs.misses.Load())
}

func TestGetOrCompute_BumpInvalidates(t *testing.T) {
	// Given: a cached value
	c, v, _ := newTestCache(t, DefaultConfig())
	ctx := context.Background()
	calls := 0
	_, _, err := c.GetOrCompute(ctx, "q", constant("before", &calls))
	require.NoError(t, err)

	// When: the version is bumped
	v.Bump()

	// Then: the next read recomputes
	got, hit, err := c.GetOrCompute(ctx, "q", constant("after", &calls))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "after", got)
	assert.Equal(t, 2, calls)
}

func TestGetOrCompute_BumpDuringComputeIsNotServed(t *testing.T) {
	// Given: a compute that races with a write
	c, v, _ := newTestCache(t, DefaultConfig())
	ctx := context.Background()

	_, _, err := c.GetOrCompute(ctx, "q", func(context.Context) (string, error) {
		v.Bump()
		return "stale", nil
	})
	require.NoError(t, err)

	// Then: the stale value is stored under the old token only
	calls := 0
	got, hit, err := c.GetOrCompute(ctx, "q", constant("fresh", &calls))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "fresh", got)
}

func TestGetOrCompute_DistinctParams(t *testing.T) {
	c, _, _ := newTestCache(t, DefaultConfig())
	ctx := context.Background()
	calls := 0

	a, _, _ := c.GetOrCompute(ctx, "q=a", constant("A", &calls))
	b, _, _ := c.GetOrCompute(ctx, "q=b", constant("B", &calls))

	assert.Equal(t, "A", a)
	assert.Equal(t, "B", b)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, c.Len())
}

func TestGetOrCompute_ErrorsAreNotCached(t *testing.T) {
	c, _, _ := newTestCache(t, DefaultConfig())
	ctx := context.Background()
	boom := errors.New("boom")

	_, _, err := c.GetOrCompute(ctx, "q", func(context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)

	calls := 0
	got, hit, err := c.GetOrCompute(ctx, "q", constant("ok", &calls))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "ok", got)
}

func TestGetOrCompute_AbsoluteTTL(t *testing.T) {
	c, _, clock := newTestCache(t, Config{AbsoluteTTL: 5 * time.Minute, SlidingTTL: time.Minute})
	ctx := context.Background()
	calls := 0

	_, _, _ = c.GetOrCompute(ctx, "q", constant("v", &calls))
	// Keep the entry warm so sliding expiry never triggers.
	for i := 0; i < 5; i++ {
		clock.Advance(50 * time.Second)
		_, hit, _ := c.GetOrCompute(ctx, "q", constant("v", &calls))
		assert.True(t, hit)
	}

	clock.Advance(50 * time.Second) // exactly 5m since creation
	_, hit, _ := c.GetOrCompute(ctx, "q", constant("v", &calls))
	assert.False(t, hit)
	assert.Equal(t, 2, calls)
}

func TestGetOrCompute_SlidingTTL(t *testing.T) {
	c, _, clock := newTestCache(t, Config{AbsoluteTTL: time.Hour, SlidingTTL: time.Minute})
	ctx := context.Background()
	calls := 0

	_, _, _ = c.GetOrCompute(ctx, "q", constant("v", &calls))

	clock.Advance(59 * time.Second)
	_, hit, _ := c.GetOrCompute(ctx, "q", constant("v", &calls))
	assert.True(t, hit)

	clock.Advance(time.Minute)
	_, hit, _ = c.GetOrCompute(ctx, "q", constant("v", &calls))
	assert.False(t, hit)
	assert.Equal(t, 2, calls)
}

func TestGetOrCompute_CapacityEvicts(t *testing.T) {
	obs := &countingObserver{}
	c, _, _ := newTestCache(t, Config{Capacity: 2, Observer: obs})
	ctx := context.Background()
	calls := 0

	for _, p := range []string{"a", "b", "c"} {
		_, _, _ = c.GetOrCompute(ctx, p, constant(p, &calls))
	}

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, int32(1), obs.evictions.Load())

	_, hit, _ := c.GetOrCompute(ctx, "a", constant("a", &calls))
	assert.False(t, hit)
}

func TestGetOrCompute_ConcurrentMissesShareCompute(t *testing.T) {
	c, _, _ := newTestCache(t, DefaultConfig())
	ctx := context.Background()

	var computes atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (string, error) {
		computes.Add(1)
		<-release
		return "shared", nil
	}

	const callers = 8
	var started, done sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		started.Add(1)
		done.Add(1)
		go func(i int) {
			defer done.Done()
			started.Done()
			v, _, err := c.GetOrCompute(ctx, "q", compute)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	started.Wait()
	// Give every caller time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	assert.Equal(t, int32(1), computes.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestGetOrCompute_LeaderCancelDoesNotFailFollowers(t *testing.T) {
	// Given: a slow compute started by a caller that will go away
	c, _, _ := newTestCache(t, DefaultConfig())

	var computes atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	computeErr := make(chan error, 1)
	compute := func(ctx context.Context) (string, error) {
		computes.Add(1)
		close(entered)
		<-release
		computeErr <- ctx.Err()
		return "shared", nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(leaderCtx, "q", compute)
		leaderErr <- err
	}()
	<-entered

	follower := make(chan string, 1)
	go func() {
		v, _, err := c.GetOrCompute(context.Background(), "q", compute)
		assert.NoError(t, err)
		follower <- v
	}()
	// Give the follower time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)

	// When: the leader is cancelled mid-compute
	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	close(release)

	// Then: the follower gets the real value from the single compute
	assert.Equal(t, "shared", <-follower)
	assert.Equal(t, int32(1), computes.Load())
	assert.NoError(t, <-computeErr)

	v, hit, err := c.GetOrCompute(context.Background(), "q", compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "shared", v)
}

func TestGetOrCompute_CancelledBeforeStartSkipsCompute(t *testing.T) {
	c, _, _ := newTestCache(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0

	_, _, err := c.GetOrCompute(ctx, "q", constant("x", &calls))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestPurge(t *testing.T) {
	c, _, _ := newTestCache(t, DefaultConfig())
	calls := 0
	_, _, _ = c.GetOrCompute(context.Background(), "q", constant("v", &calls))

	c.Purge()

	assert.Equal(t, 0, c.Len())
}

func TestKey_IncludesToken(t *testing.T) {
	c, v, _ := newTestCache(t, DefaultConfig())

	before := c.Key("q")
	v.Bump()

	assert.NotEqual(t, before, c.Key("q"))
	assert.Contains(t, before, "|q")
}
