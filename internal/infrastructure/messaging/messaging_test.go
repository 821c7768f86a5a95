package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivehub/admin-console/internal/domain/shared"
	"github.com/drivehub/admin-console/pkg/retry"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{Logger: discardLogger(), EnableMetrics: true})
}

func approved(id string) shared.Event {
	return shared.NewActionAppliedEvent(shared.EventStudentApproved, id, "APPROVE_STUDENT", 1, testNow)
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY BUS
// ══════════════════════════════════════════════════════════════════════════════

func TestInMemoryEventBus_TypedHandlersRunBeforeGlobal(t *testing.T) {
	bus := syncBus()

	var order []string
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		order = append(order, "all")
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventStudentApproved, func(shared.Event) error {
		order = append(order, "typed")
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventStudentDeleted, func(shared.Event) error {
		order = append(order, "other")
		return nil
	}))

	require.NoError(t, bus.Publish(approved("S1")))
	assert.Equal(t, []string{"typed", "all"}, order)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalPublished)
	assert.Equal(t, int64(2), snap.HandlerExecutions)
}

func TestInMemoryEventBus_HandlerFailuresStayWithTheBus(t *testing.T) {
	bus := syncBus()

	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { return errors.New("boom") }))
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error { panic("kaboom") }))

	assert.NoError(t, bus.Publish(approved("S1")))
	assert.Equal(t, int64(2), bus.Metrics().Snapshot().HandlerFailures)
}

func TestInMemoryEventBus_RejectsNil(t *testing.T) {
	bus := syncBus()
	assert.Error(t, bus.Publish(nil))
	assert.Error(t, bus.Subscribe(shared.EventStudentApproved, nil))
	assert.Error(t, bus.SubscribeAll(nil))
}

func TestInMemoryEventBus_AsyncAndClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 2,
		Logger:         discardLogger(),
	})

	var handled atomic.Int32
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		handled.Add(1)
		return nil
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(approved("S1")))
	}
	bus.Wait()
	assert.Equal(t, int32(10), handled.Load())
	assert.Nil(t, bus.Metrics())

	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Publish(approved("S1")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.SubscribeAll(func(shared.Event) error { return nil }), ErrEventBusClosed)
}

// ══════════════════════════════════════════════════════════════════════════════
// DISPATCHER
// ══════════════════════════════════════════════════════════════════════════════

func newTestDispatcher(bus shared.EventBus) *Dispatcher {
	return NewDispatcher(DispatcherConfig{
		EventBus: bus,
		RetryConfig: RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
		},
		DeadLetterQueueSize: 2,
		Logger:              discardLogger(),
	})
}

func TestDispatcher_RoutesByTypeThroughBus(t *testing.T) {
	bus := syncBus()
	d := newTestDispatcher(bus)

	var got []string
	require.NoError(t, d.Register("audit", func(e shared.Event) error {
		got = append(got, e.AggregateID())
		return nil
	}, shared.EventStudentApproved, shared.EventStudentRejected))
	require.NoError(t, d.Start())

	require.NoError(t, bus.Publish(approved("S1")))
	require.NoError(t, bus.Publish(shared.NewActionAppliedEvent(shared.EventPackageDeleted, "P1", "DELETE_PACKAGE", 2, testNow)))
	require.NoError(t, bus.Publish(shared.NewActionAppliedEvent(shared.EventStudentRejected, "S3", "REJECT_STUDENT", 3, testNow)))

	assert.Equal(t, []string{"S1", "S3"}, got)
	assert.Equal(t, 0, d.DeadLetterQueue().Size())
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	d := newTestDispatcher(syncBus())

	var calls atomic.Int32
	require.NoError(t, d.Register("flaky", func(shared.Event) error {
		if calls.Add(1) < 3 {
			return errors.New("redis unavailable")
		}
		return nil
	}, shared.EventStudentApproved))

	require.NoError(t, d.Dispatch(approved("S1")))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDispatcher_DeadLettersExhaustedAndPermanentFailures(t *testing.T) {
	d := newTestDispatcher(syncBus())

	var transient, permanent atomic.Int32
	require.NoError(t, d.Register("always_down", func(shared.Event) error {
		transient.Add(1)
		return errors.New("down")
	}, shared.EventStudentApproved))
	require.NoError(t, d.Register("bad_payload", func(shared.Event) error {
		permanent.Add(1)
		return retry.Permanent(errors.New("bad payload"))
	}, shared.EventStudentApproved))

	err := d.Dispatch(approved("S1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "always_down failed after 3 attempts")
	assert.Contains(t, err.Error(), "bad_payload failed after 1 attempts")
	assert.Equal(t, int32(3), transient.Load())
	assert.Equal(t, int32(1), permanent.Load())

	entries := d.DeadLetterQueue().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "always_down", entries[0].HandlerName)
	assert.Equal(t, 3, entries[0].Attempts)
	assert.Equal(t, "bad_payload", entries[1].HandlerName)

	// Queue keeps the newest entries.
	require.Error(t, d.Dispatch(approved("S2")))
	entries = d.DeadLetterQueue().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "S2", entries[0].Event.AggregateID())
}

func TestDispatcher_RecoveryMiddlewareStopsRetries(t *testing.T) {
	d := newTestDispatcher(syncBus())
	d.Use(RecoveryMiddleware(discardLogger()))
	d.Use(LoggingMiddleware(discardLogger()))

	var calls atomic.Int32
	require.NoError(t, d.Register("panicky", func(shared.Event) error {
		calls.Add(1)
		panic("nil map")
	}, shared.EventStudentApproved))

	err := d.Dispatch(approved("S1"))
	assert.ErrorIs(t, err, ErrHandlerPanic)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatcher_Validation(t *testing.T) {
	d := newTestDispatcher(nil)
	assert.Error(t, d.Start())
	assert.Error(t, d.Register("", func(shared.Event) error { return nil }, shared.EventStudentApproved))
	assert.Error(t, d.Register("nil", nil, shared.EventStudentApproved))
	assert.Nil(t, NewDispatcher(DispatcherConfig{}).DeadLetterQueue())
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS BUS
// ══════════════════════════════════════════════════════════════════════════════

type fakeRedis struct {
	mu        sync.Mutex
	published []string
	messages  chan RedisMessage
	closed    bool
	failPub   bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{messages: make(chan RedisMessage, 8)}
}

func (f *fakeRedis) Publish(_ context.Context, _ string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPub {
		return errors.New("connection refused")
	}
	f.published = append(f.published, message.(string))
	return nil
}

func (f *fakeRedis) Subscribe(context.Context, ...string) (<-chan RedisMessage, error) {
	return f.messages, nil
}

func (f *fakeRedis) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeRedis) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.published...)
}

func newTestRedisBus(t *testing.T, client *fakeRedis) *RedisEventBus {
	t.Helper()
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         client,
		InstanceID:     "console-a",
		LocalBusConfig: InMemoryEventBusConfig{EnableMetrics: true},
		Logger:         discardLogger(),
	})
	require.NoError(t, err)
	return bus
}

func TestRedisEventBus_PublishesLocallyAndRemotely(t *testing.T) {
	client := newFakeRedis()
	bus := newTestRedisBus(t, client)
	defer bus.Close()

	var local []shared.Event
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		local = append(local, e)
		return nil
	}))

	event := shared.NewActionAppliedEvent(shared.EventPaymentTransferred, "I1", "TRANSFER_PAYMENT", 4, testNow)
	event.BaseEvent = event.WithCorrelationID("req-1")
	require.NoError(t, bus.Publish(event))

	require.Len(t, local, 1)
	sent := client.sent()
	require.Len(t, sent, 1)

	var w wireEvent
	require.NoError(t, json.Unmarshal([]byte(sent[0]), &w))
	assert.Equal(t, "console-a", w.InstanceID)
	assert.Equal(t, shared.EventPaymentTransferred, w.EventType)
	assert.Equal(t, "I1", w.AggregateID)
	assert.Equal(t, "req-1", w.CorrelationID)
	assert.Equal(t, "TRANSFER_PAYMENT", w.Payload["action"])
}

func TestRedisEventBus_RedisFailureStillDeliversLocally(t *testing.T) {
	client := newFakeRedis()
	client.failPub = true
	bus := newTestRedisBus(t, client)
	defer bus.Close()

	var handled atomic.Int32
	require.NoError(t, bus.Subscribe(shared.EventStudentApproved, func(shared.Event) error {
		handled.Add(1)
		return nil
	}))

	require.NoError(t, bus.Publish(approved("S1")))
	assert.Equal(t, int32(1), handled.Load())
}

func TestRedisEventBus_ReplaysRemoteEvents(t *testing.T) {
	client := newFakeRedis()
	bus := newTestRedisBus(t, client)

	remote := make(chan shared.Event, 4)
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		remote <- e
		return nil
	}))

	own, _ := json.Marshal(wireEvent{InstanceID: "console-a", EventType: shared.EventStudentDeleted, AggregateID: "S9"})
	other, _ := json.Marshal(wireEvent{
		InstanceID:    "console-b",
		EventType:     shared.EventStudentDeleted,
		AggregateID:   "S2",
		OccurredAt:    testNow,
		CorrelationID: "req-2",
		Payload:       map[string]interface{}{"action": "DELETE_STUDENT"},
	})
	client.messages <- RedisMessage{Payload: string(own)}
	client.messages <- RedisMessage{Payload: "{not json"}
	client.messages <- RedisMessage{Err: errors.New("read timeout")}
	client.messages <- RedisMessage{Payload: string(other)}

	var got shared.Event
	select {
	case got = <-remote:
	case <-time.After(time.Second):
		t.Fatal("remote event was not delivered")
	}

	re, ok := got.(RemoteEvent)
	require.True(t, ok)
	assert.Equal(t, "console-b", re.Origin)
	assert.Equal(t, "S2", re.AggregateID())
	assert.Equal(t, shared.EventStudentDeleted, re.EventType())
	assert.Equal(t, "req-2", re.CorrelationID)
	assert.True(t, testNow.Equal(re.OccurredAt()))

	require.NoError(t, bus.Close())
	assert.Empty(t, remote)

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.RemoteReceived)
	assert.Equal(t, int64(1), snap.RemoteDropped)

	client.mu.Lock()
	assert.True(t, client.closed)
	client.mu.Unlock()
	assert.ErrorIs(t, bus.Publish(approved("S1")), ErrEventBusClosed)
}

func TestNewRedisEventBus_RequiresClient(t *testing.T) {
	_, err := NewRedisEventBus(RedisEventBusConfig{})
	assert.Error(t, err)
}
