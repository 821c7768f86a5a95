package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/drivehub/admin-console/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// DefaultChannel is the Pub/Sub channel used when none is configured.
const DefaultChannel = "admin-console:events"

// RedisClient is the narrow Pub/Sub surface the bus needs. Close releases
// the client's subscriptions; the connection pool belongs to the caller.
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channels ...string) (<-chan RedisMessage, error)
	Close() error
}

// RedisMessage represents a message received from Redis Pub/Sub.
type RedisMessage struct {
	Channel string
	Payload string
	Err     error
}

// RedisEventBus publishes every event locally and to a Redis channel, and
// replays events published by other instances to local handlers as
// RemoteEvent values.
type RedisEventBus struct {
	client      RedisClient
	localBus    *InMemoryEventBus
	channelName string
	instanceID  string
	logger      *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closed      bool
}

// RedisEventBusConfig contains configuration for RedisEventBus.
type RedisEventBusConfig struct {
	Client RedisClient

	// ChannelName defaults to DefaultChannel.
	ChannelName string

	// InstanceID filters out this instance's own events on receipt; random when empty.
	InstanceID string

	LocalBusConfig InMemoryEventBusConfig

	Logger *slog.Logger
}

// NewRedisEventBus creates a Redis-backed bus and starts its subscriber.
func NewRedisEventBus(config RedisEventBusConfig) (*RedisEventBus, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.ChannelName == "" {
		config.ChannelName = DefaultChannel
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.NewString()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.LocalBusConfig.Logger == nil {
		config.LocalBusConfig.Logger = config.Logger
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := &RedisEventBus{
		client:      config.Client,
		localBus:    NewInMemoryEventBus(config.LocalBusConfig),
		channelName: config.ChannelName,
		instanceID:  config.InstanceID,
		logger:      config.Logger.With("component", "redis_event_bus", "instance_id", config.InstanceID),
		ctx:         ctx,
		cancel:      cancel,
	}

	messages, err := bus.client.Subscribe(ctx, bus.channelName)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", bus.channelName, err)
	}

	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		bus.receive(messages)
	}()

	return bus, nil
}

// Subscribe registers a handler for a specific event type.
func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.localBus.Subscribe(eventType, handler)
}

// SubscribeAll registers a handler for all events.
func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.localBus.SubscribeAll(handler)
}

// Publish delivers the event locally and forwards it to Redis. A Redis
// failure is logged; local delivery still happens.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrEventBusClosed
	}

	data, err := json.Marshal(wireEvent{
		InstanceID:    b.instanceID,
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		OccurredAt:    event.OccurredAt(),
		CorrelationID: correlationOf(event),
		Payload:       event.Payload(),
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(b.ctx, 2*time.Second)
	defer cancel()
	if err := b.client.Publish(pubCtx, b.channelName, string(data)); err != nil {
		b.logger.Warn("redis publish failed, delivering locally only",
			"event_type", event.EventType(), "error", err)
	}

	return b.localBus.Publish(event)
}

func (b *RedisEventBus) receive(messages <-chan RedisMessage) {
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if msg.Err != nil {
				b.logger.Error("redis subscription error", "error", msg.Err)
				continue
			}
			b.handle(msg)
		}
	}
}

func (b *RedisEventBus) handle(msg RedisMessage) {
	var w wireEvent
	if err := json.Unmarshal([]byte(msg.Payload), &w); err != nil {
		b.logger.Error("dropping malformed event", "error", err)
		b.recordRemote(true)
		return
	}
	if w.InstanceID == b.instanceID {
		return
	}

	b.recordRemote(false)
	event := RemoteEvent{
		Origin:        w.InstanceID,
		Type:          w.EventType,
		Aggregate:     w.AggregateID,
		At:            w.OccurredAt,
		CorrelationID: w.CorrelationID,
		Data:          w.Payload,
	}
	if err := b.localBus.Publish(event); err != nil {
		b.logger.Error("failed to deliver remote event", "error", err)
	}
}

func (b *RedisEventBus) recordRemote(dropped bool) {
	if m := b.localBus.Metrics(); m != nil {
		m.RecordRemote(dropped)
	}
}

// InstanceID returns the identifier stamped on outgoing events.
func (b *RedisEventBus) InstanceID() string {
	return b.instanceID
}

// Close stops the subscriber and the local bus and drops the subscription.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()

	if err := b.localBus.Close(); err != nil {
		b.logger.Error("failed to close local bus", "error", err)
	}
	return b.client.Close()
}

// Metrics returns the metrics from the local bus.
func (b *RedisEventBus) Metrics() *EventBusMetrics {
	return b.localBus.Metrics()
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

type wireEvent struct {
	InstanceID    string                 `json:"instance_id"`
	EventType     shared.EventType       `json:"event_type"`
	AggregateID   string                 `json:"aggregate_id"`
	OccurredAt    time.Time              `json:"occurred_at"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
}

// RemoteEvent is an event that originated on another console instance.
type RemoteEvent struct {
	Origin        string
	Type          shared.EventType
	Aggregate     string
	At            time.Time
	CorrelationID string
	Data          map[string]interface{}
}

func (e RemoteEvent) EventType() shared.EventType     { return e.Type }
func (e RemoteEvent) AggregateID() string             { return e.Aggregate }
func (e RemoteEvent) OccurredAt() time.Time           { return e.At }
func (e RemoteEvent) Payload() map[string]interface{} { return e.Data }

type correlated interface {
	Correlation() string
}

func correlationOf(event shared.Event) string {
	if c, ok := event.(correlated); ok {
		return c.Correlation()
	}
	return ""
}
