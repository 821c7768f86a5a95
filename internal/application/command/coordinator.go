package command

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/drivehub/admin-console/internal/application/store"
	"github.com/drivehub/admin-console/internal/domain/console"
	"github.com/drivehub/admin-console/internal/domain/shared"
	"github.com/drivehub/admin-console/pkg/logger"
	"github.com/drivehub/admin-console/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTENT
// ══════════════════════════════════════════════════════════════════════════════

// Intent is a proposed action waiting for operator confirmation.
type Intent struct {
	ID        uuid.UUID      `json:"id"`
	Action    console.Action `json:"-"`
	Summary   string         `json:"summary"`
	CreatedAt time.Time      `json:"createdAt"`
	ExpiresAt time.Time      `json:"expiresAt"`

	// Revision is the store revision the proposal was evaluated against.
	Revision uint64 `json:"revision"`
}

// Expired reports whether the intent can no longer be confirmed at now.
func (i Intent) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// Dispatcher is the store surface the coordinator needs.
type Dispatcher interface {
	Snapshot() (console.State, uint64)
	DispatchIf(ctx context.Context, a console.Action, guard store.Guard) store.Result
}

// ══════════════════════════════════════════════════════════════════════════════
// COORDINATOR
// ══════════════════════════════════════════════════════════════════════════════

// DefaultIntentTTL is how long a proposal stays confirmable.
const DefaultIntentTTL = 2 * time.Minute

// Coordinator registers intents and dispatches each confirmed intent exactly once.
type Coordinator struct {
	store     Dispatcher
	policy    Policy
	ttl       time.Duration
	clock     timeutil.Clock
	log       *logger.Logger
	publisher shared.EventPublisher

	mu      sync.Mutex
	intents map[uuid.UUID]Intent
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithTTL sets the intent lifetime.
func WithTTL(ttl time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock sets the clock.
func WithClock(clock timeutil.Clock) CoordinatorOption {
	return func(c *Coordinator) { c.clock = clock }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.log = l }
}

// WithPublisher publishes IntentExpiredEvent for expired intents.
func WithPublisher(p shared.EventPublisher) CoordinatorOption {
	return func(c *Coordinator) { c.publisher = p }
}

// NewCoordinator creates a coordinator over the given store.
func NewCoordinator(s Dispatcher, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:   s,
		ttl:     DefaultIntentTTL,
		clock:   timeutil.SystemClock{},
		log:     logger.Nop(),
		intents: make(map[uuid.UUID]Intent),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.With(logger.Component("command_coordinator"))
	return c
}

// Propose evaluates the action against the current state and registers an intent.
func (c *Coordinator) Propose(ctx context.Context, a console.Action) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return Intent{}, err
	}
	if a == nil {
		return Intent{}, shared.NewDomainError("command", "Propose", shared.ErrInvalidInput, "action is required")
	}

	state, rev := c.store.Snapshot()
	if err := c.policy.Evaluate(state, a); err != nil {
		return Intent{}, fmt.Errorf("propose %s: %w", a.Type(), err)
	}

	now := c.clock.Now()
	intent := Intent{
		ID:        uuid.New(),
		Action:    a,
		Summary:   Describe(state, a),
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
		Revision:  rev,
	}

	c.mu.Lock()
	c.intents[intent.ID] = intent
	c.mu.Unlock()

	c.log.Info("intent proposed",
		logger.IntentID(intent.ID.String()),
		logger.ActionType(string(a.Type())),
		logger.TargetID(a.TargetID()),
	)
	return intent, nil
}

// Confirm re-evaluates the intent against the current state and dispatches
// it. The intent is consumed whether or not the dispatch happens.
func (c *Coordinator) Confirm(ctx context.Context, id uuid.UUID) (store.Result, error) {
	if err := ctx.Err(); err != nil {
		return store.Result{}, err
	}

	intent, ok := c.take(id)
	if !ok {
		return store.Result{}, shared.ErrIntentNotFound
	}
	log := c.log.With(logger.IntentID(id.String()), logger.ActionType(string(intent.Action.Type())))

	if intent.Expired(c.clock.Now()) {
		log.Warn("confirmation after expiry")
		return store.Result{}, shared.ErrIntentExpired
	}

	ctx = store.WithCorrelationID(ctx, intent.ID)
	res := c.store.DispatchIf(ctx, intent.Action, func(current console.State) error {
		return c.policy.Evaluate(current, intent.Action)
	})
	if res.Outcome == store.OutcomeRejected {
		log.Warn("intent no longer valid", logger.Revision(res.Revision), logger.Err(res.Err))
		return store.Result{}, fmt.Errorf("confirm %s: %w", intent.Action.Type(), res.Err)
	}
	log.Info("intent confirmed", logger.Outcome(string(res.Outcome)), logger.Revision(res.Revision))
	return res, res.Err
}

// Cancel discards a pending intent.
func (c *Coordinator) Cancel(id uuid.UUID) error {
	if _, ok := c.take(id); !ok {
		return shared.ErrIntentNotFound
	}
	c.log.Info("intent cancelled", logger.IntentID(id.String()))
	return nil
}

// Get returns a pending intent.
func (c *Coordinator) Get(id uuid.UUID) (Intent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	intent, ok := c.intents[id]
	return intent, ok
}

// Pending returns the pending intents, oldest first.
func (c *Coordinator) Pending() []Intent {
	c.mu.Lock()
	out := make([]Intent, 0, len(c.intents))
	for _, intent := range c.intents {
		out = append(out, intent)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ExpireBefore drops every intent that expired at or before now and returns
// how many were dropped.
func (c *Coordinator) ExpireBefore(now time.Time) int {
	c.mu.Lock()
	var expired []Intent
	for id, intent := range c.intents {
		if intent.Expired(now) {
			expired = append(expired, intent)
			delete(c.intents, id)
		}
	}
	c.mu.Unlock()

	for _, intent := range expired {
		c.log.Info("intent expired", logger.IntentID(intent.ID.String()))
		if c.publisher == nil {
			continue
		}
		event := shared.NewIntentExpiredEvent(intent.ID.String(), string(intent.Action.Type()),
			intent.Action.TargetID(), intent.ExpiresAt, now)
		if err := c.publisher.Publish(event); err != nil {
			c.log.Error("failed to publish intent expiry", logger.Err(err))
		}
	}
	return len(expired)
}

func (c *Coordinator) take(id uuid.UUID) (Intent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	intent, ok := c.intents[id]
	if ok {
		delete(c.intents, id)
	}
	return intent, ok
}
