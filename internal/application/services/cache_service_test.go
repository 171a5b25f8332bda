package services_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	impl "github.com/avatarctic/survey-admin/internal/application/services"
	"github.com/avatarctic/survey-admin/internal/core/domain/cache"
	"github.com/avatarctic/survey-admin/internal/core/ports"
	"github.com/avatarctic/survey-admin/internal/infrastructure/localcache"
	infraRedis "github.com/avatarctic/survey-admin/internal/infrastructure/redis"
)

func newTestCache(t *testing.T, factory ports.DurableStoreFactory) (*impl.CacheService, *impl.AvailabilityMonitor, *localcache.Store) {
	t.Helper()
	local := localcache.NewStore()
	monitor := impl.NewAvailabilityMonitor(factory, fastMonitorConfig(), logrus.New())
	t.Cleanup(func() { _ = monitor.Close() })
	svc := impl.NewCacheService(local, monitor, impl.CacheServiceConfig{OperationTimeout: time.Second, DefaultTTL: time.Minute}, logrus.New())
	monitor.Start()
	return svc, monitor, local
}

func TestCacheService_DurableHit(t *testing.T) {
	store := newDurableStoreMock()
	svc, monitor, local := newTestCache(t, factoryFor(store))
	waitForState(t, monitor, cache.StateAvailable)
	ctx := context.Background()

	require.True(t, svc.Set(ctx, "k", []byte(`"v"`), time.Minute))
	assert.True(t, store.has("k"))
	_, ok := local.Get("k")
	assert.True(t, ok, "local tier is written unconditionally")

	v, ok := svc.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, `"v"`, string(v))
	assert.Equal(t, uint64(1), svc.Stats(ctx).Durable.Hits)
	assert.True(t, svc.IsAvailable())
}

func TestCacheService_FallsBackToLocalWhenDurableMisses(t *testing.T) {
	store := newDurableStoreMock()
	svc, monitor, local := newTestCache(t, factoryFor(store))
	waitForState(t, monitor, cache.StateAvailable)
	ctx := context.Background()

	local.Set("only-local", []byte("1"), time.Minute)
	v, ok := svc.Get(ctx, "only-local")
	require.True(t, ok)
	assert.Equal(t, "1", string(v))

	stats := svc.Stats(ctx)
	assert.Equal(t, uint64(1), stats.Durable.Misses)
	assert.Equal(t, uint64(1), stats.Local.Hits)
}

func TestCacheService_FallbackWhenDurableAlwaysFails(t *testing.T) {
	store := newDurableStoreMock()
	store.failing.Store(true)
	store.pingFails.Store(true)
	svc, _, _ := newTestCache(t, factoryFor(store))
	ctx := context.Background()

	require.True(t, svc.Set(ctx, "k", []byte(`"v"`), 60*time.Second))
	v, ok := svc.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, `"v"`, string(v))
}

func TestCacheService_FallbackAfterDurableStartsFailing(t *testing.T) {
	store := newDurableStoreMock()
	svc, monitor, _ := newTestCache(t, factoryFor(store))
	waitForState(t, monitor, cache.StateAvailable)
	ctx := context.Background()

	store.failing.Store(true)
	store.pingFails.Store(true)
	require.True(t, svc.Set(ctx, "k", []byte(`"v"`), time.Minute))
	v, ok := svc.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, `"v"`, string(v))
	assert.False(t, svc.IsAvailable())
}

func TestCacheService_TTLExpiry(t *testing.T) {
	svc, _, _ := newTestCache(t, nil)
	ctx := context.Background()

	svc.Set(ctx, "k", []byte(`"v"`), time.Second)
	time.Sleep(1500 * time.Millisecond)
	_, ok := svc.Get(ctx, "k")
	assert.False(t, ok)
}

func TestCacheService_NonPositiveTTLUsesDefault(t *testing.T) {
	svc, _, _ := newTestCache(t, nil)
	ctx := context.Background()

	svc.Set(ctx, "k", []byte("1"), 0)
	_, ok := svc.Get(ctx, "k")
	assert.True(t, ok)
}

func TestCacheService_PatternDeletion(t *testing.T) {
	svc, _, _ := newTestCache(t, nil)
	ctx := context.Background()

	svc.Set(ctx, "rechequeos:kpis:a", []byte("1"), 60*time.Second)
	svc.Set(ctx, "rechequeos:kpis:b", []byte("1"), 60*time.Second)
	svc.Set(ctx, "empresas:x", []byte("1"), 60*time.Second)

	assert.Equal(t, 2, svc.DeleteByPattern(ctx, "rechequeos:*"))
	_, ok := svc.Get(ctx, "rechequeos:kpis:a")
	assert.False(t, ok)
	_, ok = svc.Get(ctx, "rechequeos:kpis:b")
	assert.False(t, ok)
	_, ok = svc.Get(ctx, "empresas:x")
	assert.True(t, ok)
}

func TestCacheService_PatternDeletionCountsPerTier(t *testing.T) {
	store := newDurableStoreMock()
	svc, monitor, _ := newTestCache(t, factoryFor(store))
	waitForState(t, monitor, cache.StateAvailable)
	ctx := context.Background()

	svc.Set(ctx, "rechequeos:kpis:a", []byte("1"), time.Minute)
	svc.Set(ctx, "rechequeos:kpis:b", []byte("1"), time.Minute)
	svc.Set(ctx, "empresas:x", []byte("1"), time.Minute)

	assert.Equal(t, 4, svc.DeleteByPattern(ctx, "rechequeos:*"))
	assert.True(t, store.has("empresas:x"))
	assert.False(t, store.has("rechequeos:kpis:a"))
}

func TestCacheService_DeleteAndFlush(t *testing.T) {
	store := newDurableStoreMock()
	svc, monitor, local := newTestCache(t, factoryFor(store))
	waitForState(t, monitor, cache.StateAvailable)
	ctx := context.Background()

	svc.Set(ctx, "a", []byte("1"), time.Minute)
	svc.Set(ctx, "b", []byte("1"), time.Minute)

	svc.Delete(ctx, "a")
	_, ok := svc.Get(ctx, "a")
	assert.False(t, ok)
	assert.False(t, store.has("a"))

	svc.Flush(ctx)
	assert.Equal(t, 0, local.Len())
	assert.False(t, store.has("b"))
}

func TestCacheService_ConcurrentFailuresDisableOnceAndStopAttempts(t *testing.T) {
	const callers = 20
	store := newDurableStoreMock()
	svc, monitor, _ := newTestCache(t, factoryFor(store))
	waitForState(t, monitor, cache.StateAvailable)
	ctx := context.Background()

	var entered sync.WaitGroup
	entered.Add(callers)
	release := make(chan struct{})
	store.getHook = func() {
		entered.Done()
		<-release
	}
	store.failing.Store(true)
	store.pingFails.Store(true)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Get(ctx, "k")
		}()
	}
	entered.Wait()
	close(release)
	wg.Wait()

	waitForState(t, monitor, cache.StateDisabled)
	assert.Equal(t, 1, monitor.State().Disablements)

	before := store.opCalls.Load()
	for i := 0; i < 10; i++ {
		key := "after:" + strconv.Itoa(i)
		svc.Set(ctx, key, []byte("1"), time.Minute)
		_, ok := svc.Get(ctx, key)
		assert.True(t, ok)
		svc.Delete(ctx, key)
	}
	svc.DeleteByPattern(ctx, "after:*")
	svc.Flush(ctx)
	assert.Equal(t, before, store.opCalls.Load(), "durable store must not be attempted while disabled")
	assert.Equal(t, 1, monitor.State().Disablements)
}

func TestCacheService_NoThrowWhenAdapterPanicsEverywhere(t *testing.T) {
	store := newDurableStoreMock()
	store.panicking.Store(true)
	store.pingPanic.Store(true)
	svc, _, _ := newTestCache(t, factoryFor(store))
	ctx := context.Background()

	require.NotPanics(t, func() { runFullSequence(ctx, svc) })
}

func TestCacheService_NoThrowWhenOperationsPanic(t *testing.T) {
	store := newDurableStoreMock()
	svc, monitor, _ := newTestCache(t, factoryFor(store))
	waitForState(t, monitor, cache.StateAvailable)
	ctx := context.Background()

	store.panicking.Store(true)
	require.NotPanics(t, func() { runFullSequence(ctx, svc) })
	v, ok := svc.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, `"v"`, string(v))
	assert.Greater(t, svc.Stats(ctx).Durable.Errors, uint64(0))
}

func runFullSequence(ctx context.Context, svc *impl.CacheService) {
	svc.Set(ctx, "k", []byte(`"v"`), time.Minute)
	svc.Get(ctx, "k")
	svc.Set(ctx, "rechequeos:a", []byte("1"), time.Minute)
	svc.Delete(ctx, "rechequeos:a")
	svc.DeleteByPattern(ctx, "rechequeos:*")
	svc.Stats(ctx)
	svc.Flush(ctx)
	svc.Set(ctx, "k", []byte(`"v"`), time.Minute)
}

func TestCacheService_CallerCancellationIsNotAStoreFailure(t *testing.T) {
	store := newDurableStoreMock()
	svc, monitor, _ := newTestCache(t, factoryFor(store))
	waitForState(t, monitor, cache.StateAvailable)

	ctx, cancel := context.WithCancel(context.Background())
	store.getHook = func() { cancel() }
	store.failing.Store(true)
	_, _ = svc.Get(ctx, "k")

	assert.Equal(t, cache.StateAvailable, monitor.State().State)
	assert.Zero(t, monitor.State().ConsecutiveFailures)
}

func TestCacheService_GenerateKey(t *testing.T) {
	svc, _, _ := newTestCache(t, nil)
	assert.Equal(t,
		svc.GenerateKey("rechequeos:kpis", cache.Params{"a": []int{2, 1}, "b": ""}),
		svc.GenerateKey("rechequeos:kpis", cache.Params{"a": []int{1, 2}}),
	)
}

func TestCacheService_StatsLocalOnly(t *testing.T) {
	svc, _, _ := newTestCache(t, nil)
	ctx := context.Background()
	svc.Set(ctx, "a", []byte("1"), time.Minute)
	svc.Get(ctx, "a")
	svc.Get(ctx, "missing")

	stats := svc.Stats(ctx)
	assert.Equal(t, 1, stats.Local.EntryCount)
	assert.Equal(t, uint64(1), stats.Local.Hits)
	assert.Equal(t, uint64(1), stats.Local.Misses)
	assert.Equal(t, int64(-1), stats.Durable.Keys)
	assert.True(t, stats.Durable.Disabled)
}

func TestCacheService_Redis_EndToEnd(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	factory := func() ports.DurableStore {
		return infraRedis.NewStore(goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: 200 * time.Millisecond}), "surveycache")
	}
	svc, monitor, local := newTestCache(t, factory)
	waitForState(t, monitor, cache.StateAvailable)
	ctx := context.Background()

	svc.Set(ctx, "rechequeos:kpis:a", []byte(`{"total":3}`), time.Minute)
	assert.True(t, mr.Exists("surveycache:rechequeos:kpis:a"))
	assert.Equal(t, time.Minute, mr.TTL("surveycache:rechequeos:kpis:a"))
	assert.Equal(t, int64(1), svc.Stats(ctx).Durable.Keys)

	// Durable tier goes away: reads keep working from the local tier.
	mr.Close()
	v, ok := svc.Get(ctx, "rechequeos:kpis:a")
	require.True(t, ok)
	assert.Equal(t, `{"total":3}`, string(v))
	waitForState(t, monitor, cache.StateDisabled)

	// Operator brings it back.
	require.NoError(t, mr.Restart())
	svc.Reenable(ctx)
	waitForState(t, monitor, cache.StateAvailable)

	local.Clear()
	svc.Set(ctx, "empresas:x", []byte("1"), time.Minute)
	local.Clear()
	v, ok = svc.Get(ctx, "empresas:x")
	require.True(t, ok)
	assert.Equal(t, "1", string(v))
}

func TestCacheService_LocalTierDoesNotAliasCallerBuffers(t *testing.T) {
	svc, _, _ := newTestCache(t, nil)
	ctx := context.Background()

	buf := []byte(`{"total":9}`)
	require.True(t, svc.Set(ctx, "rechequeos:kpis:{}", buf, time.Minute))
	buf[1] = 'X'

	v, ok := svc.Get(ctx, "rechequeos:kpis:{}")
	require.True(t, ok)
	v[0] = '['

	v, ok = svc.Get(ctx, "rechequeos:kpis:{}")
	require.True(t, ok)
	assert.Equal(t, `{"total":9}`, string(v))
}

func TestCacheService_FailureFromPreviousEnableCycleIsIgnored(t *testing.T) {
	store := newDurableStoreMock()
	svc, monitor, _ := newTestCache(t, factoryFor(store))
	waitForState(t, monitor, cache.StateAvailable)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	store.getHook = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Get(context.Background(), "rechequeos:kpis:{}")
	}()
	<-entered

	store.pingFails.Store(true)
	for i := 0; i < 3; i++ {
		monitor.ReportFailure(errDurableDown)
	}
	waitForState(t, monitor, cache.StateDisabled)

	store.pingFails.Store(false)
	require.True(t, monitor.Reenable())
	waitForState(t, monitor, cache.StateAvailable)

	store.failing.Store(true)
	close(release)
	<-done

	st := monitor.State()
	assert.True(t, st.IsAvailable)
	assert.Equal(t, 0, st.ConsecutiveFailures)
	assert.Equal(t, 1, st.Disablements)
}
