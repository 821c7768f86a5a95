package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivehub/admin-console/internal/domain/console"
	"github.com/drivehub/admin-console/internal/infrastructure/messaging"
)

// memoryRedis is an in-process stand-in for the commands the cache issues.
type memoryRedis struct {
	mu      sync.Mutex
	values  map[string]string
	ttls    map[string]time.Duration
	failGet error
	evals   int
	closes  int

	published []string
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		m.values[key] = string(v)
	case string:
		m.values[key] = v
	}
	m.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryRedis) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return redis.NewStringResult("", m.failGet)
	}
	v, ok := m.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.values[k]; ok {
			delete(m.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *memoryRedis) TTL(_ context.Context, key string) *redis.DurationCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; !ok {
		return redis.NewDurationResult(-2, nil)
	}
	return redis.NewDurationResult(m.ttls[key], nil)
}

func (m *memoryRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

// Eval runs the compare-and-set of setIfNewerScript against the map.
func (m *memoryRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return redis.NewCmdResult(nil, m.failGet)
	}
	m.evals++

	revision := args[0].(uint64)
	if cur, ok := m.values[keys[0]]; ok {
		var doc struct {
			Revision *uint64 `json:"revision"`
		}
		if json.Unmarshal([]byte(cur), &doc) == nil && doc.Revision != nil && *doc.Revision > revision {
			return redis.NewCmdResult(int64(0), nil)
		}
	}
	m.values[keys[0]] = string(args[1].([]byte))
	m.ttls[keys[0]] = time.Duration(args[2].(int64)) * time.Millisecond
	return redis.NewCmdResult(int64(1), nil)
}

func (m *memoryRedis) Publish(_ context.Context, _ string, message interface{}) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := message.(type) {
	case []byte:
		m.published = append(m.published, string(v))
	case string:
		m.published = append(m.published, v)
	}
	return redis.NewIntResult(1, nil)
}

func (m *memoryRedis) Subscribe(context.Context, ...string) *redis.PubSub {
	return nil
}

func (m *memoryRedis) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

type countingSub struct{ closes int }

func (s *countingSub) Close() error {
	s.closes++
	return nil
}

func TestCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryRedis()
	cache := NewCache(backend, "test:")

	require.NoError(t, cache.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))
	assert.Contains(t, backend.values, "test:k")

	var got map[string]int
	require.NoError(t, cache.Get(ctx, "k", &got))
	assert.Equal(t, 1, got["a"])

	ttl, err := cache.TTL(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	require.NoError(t, cache.Delete(ctx, "k"))
	assert.ErrorIs(t, cache.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestCache_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(newMemoryRedis(), "")

	assert.ErrorIs(t, cache.Set(ctx, "", 1, 0), ErrCacheKeyEmpty)
	assert.ErrorIs(t, cache.Set(ctx, "k", nil, 0), ErrCacheNilValue)
	assert.ErrorIs(t, cache.Set(ctx, "k", 1, -time.Second), ErrCacheInvalidTTL)
	assert.ErrorIs(t, cache.Set(ctx, "k", func() {}, 0), ErrCacheSerialization)
}

func TestStatsCache_KeepsNewestRevision(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryRedis()
	sc := NewStatsCache(NewCache(backend, DefaultKeyPrefix), 0)
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	sc.now = func() time.Time { return at }

	_, err := sc.ReadStats(ctx)
	assert.ErrorIs(t, err, ErrCacheMiss)

	newer := console.Stats{TotalStudents: 7, PendingPayouts: decimal.RequireFromString("12.50")}
	require.NoError(t, sc.WriteStats(ctx, newer, 5))
	require.NoError(t, sc.WriteStats(ctx, console.Stats{TotalStudents: 1}, 3))

	snap, err := sc.ReadStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), snap.Revision)
	assert.True(t, snap.Stats.Equal(newer))
	assert.Equal(t, at, snap.CachedAt)
	assert.Equal(t, 15*time.Minute, backend.ttls[DefaultKeyPrefix+KeyStats])

	require.NoError(t, sc.Invalidate(ctx))
	_, err = sc.ReadStats(ctx)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestStatsCache_ConcurrentWritersKeepHighestRevision(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryRedis()
	a := NewStatsCache(NewCache(backend, DefaultKeyPrefix), time.Minute)
	b := NewStatsCache(NewCache(backend, DefaultKeyPrefix), time.Minute)

	var wg sync.WaitGroup
	for rev := uint64(1); rev <= 40; rev++ {
		wg.Add(1)
		go func(rev uint64) {
			defer wg.Done()
			w := a
			if rev%2 == 0 {
				w = b
			}
			assert.NoError(t, w.WriteStats(ctx, console.Stats{TotalStudents: int(rev)}, rev))
		}(rev)
	}
	wg.Wait()

	snap, err := a.ReadStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(40), snap.Revision)
	assert.Equal(t, 40, snap.Stats.TotalStudents)
	assert.Equal(t, 40, backend.evals, "every write goes through the server-side compare")
}

func TestCache_SetIfNewer(t *testing.T) {
	ctx := context.Background()
	cache := NewCache(newMemoryRedis(), "")

	stored, err := cache.SetIfNewer(ctx, "doc", 2, map[string]uint64{"revision": 2}, time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)

	stored, err = cache.SetIfNewer(ctx, "doc", 1, map[string]uint64{"revision": 1}, time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)

	_, err = cache.SetIfNewer(ctx, "", 1, 1, 0)
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)
}

func TestStatsCache_PropagatesConnectionErrors(t *testing.T) {
	backend := newMemoryRedis()
	backend.failGet = errors.New("connection refused")
	sc := NewStatsCache(NewCache(backend, ""), time.Minute)

	err := sc.WriteStats(context.Background(), console.Stats{}, 1)
	assert.EqualError(t, err, "connection refused")
}

func TestPubSubClient_CloseLeavesBackendOpen(t *testing.T) {
	backend := newMemoryRedis()
	client := NewPubSubClient(backend)

	first, second := &countingSub{}, &countingSub{}
	require.True(t, client.track(first))
	require.True(t, client.track(second))

	// The forwarder for first already finished.
	require.NoError(t, client.release(first))

	require.NoError(t, client.Close())
	assert.Equal(t, 1, first.closes)
	assert.Equal(t, 1, second.closes)
	assert.Zero(t, backend.closes, "shared client must stay open for its owner")

	// Subscriptions opened after Close are refused.
	assert.False(t, client.track(&countingSub{}))
	require.NoError(t, client.Close())
	assert.Equal(t, 1, second.closes)

	// Publishing still goes through the shared client.
	require.NoError(t, client.Publish(context.Background(), "events", "after-close"))
	assert.Equal(t, []string{"after-close"}, backend.published)
}

func TestPubSubClient_Publish(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryRedis()
	client := NewPubSubClient(backend)

	require.NoError(t, client.Publish(ctx, "events", `{"raw":true}`))
	require.NoError(t, client.Publish(ctx, "events", map[string]string{"k": "v"}))
	assert.ErrorIs(t, client.Publish(ctx, "", "x"), ErrCacheKeyEmpty)

	assert.Equal(t, []string{`{"raw":true}`, `{"k":"v"}`}, backend.published)
}

func TestForward_StopsWhenSourceCloses(t *testing.T) {
	in := make(chan *redis.Message, 2)
	out := make(chan messaging.RedisMessage, 2)
	in <- &redis.Message{Channel: "events", Payload: "one"}
	close(in)

	forward(context.Background(), in, out)

	msg, ok := <-out
	require.True(t, ok)
	assert.Equal(t, "one", msg.Payload)
	_, ok = <-out
	assert.False(t, ok)
}

func TestForward_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := make(chan messaging.RedisMessage)

	forward(ctx, make(chan *redis.Message), out)

	_, ok := <-out
	assert.False(t, ok)
}
