package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/drivehub/admin-console/internal/infrastructure/messaging"
)

// PubSubBackend is the go-redis Pub/Sub surface. *redis.Client satisfies it.
type PubSubBackend interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// subscription is one open go-redis PubSub.
type subscription interface {
	Close() error
}

// PubSubClient adapts go-redis to messaging.RedisClient. It owns the
// subscriptions it opens, never the backend connection pool.
type PubSubClient struct {
	backend PubSubBackend

	mu     sync.Mutex
	subs   map[subscription]struct{}
	closed bool
}

var _ messaging.RedisClient = (*PubSubClient)(nil)

// NewPubSubClient creates a new PubSubClient.
func NewPubSubClient(backend PubSubBackend) *PubSubClient {
	return &PubSubClient{backend: backend, subs: make(map[subscription]struct{})}
}

// Publish sends message to channel. Byte slices and strings go out as is,
// anything else is JSON-encoded.
func (c *PubSubClient) Publish(ctx context.Context, channel string, message interface{}) error {
	if channel == "" {
		return ErrCacheKeyEmpty
	}

	var payload interface{}
	switch m := message.(type) {
	case []byte, string:
		payload = m
	default:
		data, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		payload = data
	}
	return c.backend.Publish(ctx, channel, payload).Err()
}

// Subscribe subscribes to channels and forwards messages until ctx is done.
func (c *PubSubClient) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	ps := c.backend.Subscribe(ctx, channels...)
	// Receive blocks until the subscription is confirmed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("%w: %v", ErrCacheConnection, err)
	}

	if !c.track(ps) {
		_ = ps.Close()
		return nil, ErrClientClosed
	}

	out := make(chan messaging.RedisMessage, 64)
	go func() {
		defer c.release(ps)
		forward(ctx, ps.Channel(), out)
	}()
	return out, nil
}

func (c *PubSubClient) track(sub subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.subs[sub] = struct{}{}
	return true
}

// release closes sub once, whether the forwarder or Close gets there first.
func (c *PubSubClient) release(sub subscription) error {
	c.mu.Lock()
	_, open := c.subs[sub]
	delete(c.subs, sub)
	c.mu.Unlock()
	if !open {
		return nil
	}
	return sub.Close()
}

// Close ends every subscription opened through c. The backend client stays
// open; its owner closes it.
func (c *PubSubClient) Close() error {
	c.mu.Lock()
	c.closed = true
	subs := make([]subscription, 0, len(c.subs))
	for sub := range c.subs {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := c.release(sub); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// forward copies go-redis messages to out and closes out when either side ends.
func forward(ctx context.Context, in <-chan *redis.Message, out chan<- messaging.RedisMessage) {
	defer close(out)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
			case <-ctx.Done():
				return
			}
		}
	}
}
