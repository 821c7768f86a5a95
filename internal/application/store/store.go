// Package store owns the single in-memory console state and serializes every
// change to it through Dispatch.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/drivehub/admin-console/internal/domain/console"
	"github.com/drivehub/admin-console/internal/domain/shared"
	"github.com/drivehub/admin-console/pkg/logger"
	"github.com/drivehub/admin-console/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESULT
// ══════════════════════════════════════════════════════════════════════════════

// Result describes what a single dispatch did.
type Result struct {
	CorrelationID uuid.UUID          `json:"correlationId"`
	Action        console.ActionType `json:"action"`
	TargetID      string             `json:"targetId,omitempty"`
	Outcome       console.Outcome    `json:"outcome"`

	// Revision is the state revision after the dispatch.
	Revision uint64 `json:"revision"`

	// CreatedID is the transaction or message ID minted by the action.
	CreatedID string `json:"createdId,omitempty"`

	// Err is set for OutcomeNotFound, OutcomeInvalid and OutcomeRejected.
	Err error `json:"-"`
}

// Applied reports whether the state changed.
func (r Result) Applied() bool {
	return r.Outcome == console.OutcomeApplied
}

// OutcomeRejected is reported when the guard passed to DispatchIf refused
// the action. The state is untouched.
const OutcomeRejected console.Outcome = "rejected"

// Guard inspects the current state under the dispatch lock and returns an
// error to refuse the action.
type Guard func(current console.State) error

// Listener is notified after every applied dispatch, once the new state is
// visible through State().
type Listener func(next console.State, res Result)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store is the state container. Dispatch calls are serialized; State may be
// called concurrently and returns an immutable snapshot.
type Store struct {
	mu    sync.Mutex // serializes Dispatch
	rw    sync.RWMutex
	state console.State
	rev   uint64

	listenersMu sync.RWMutex
	listeners   map[uint64]Listener
	nextID      uint64

	clock     timeutil.Clock
	log       *logger.Logger
	publisher shared.EventPublisher
	validate  bool
	strict    bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp transactions and messages.
func WithClock(c timeutil.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithPublisher publishes a domain event for every applied action.
func WithPublisher(p shared.EventPublisher) Option {
	return func(s *Store) { s.publisher = p }
}

// WithValidation toggles the boundary checks run before Reduce
// (commission range, positive transfer amount, non-blank message text).
func WithValidation(enabled bool) Option {
	return func(s *Store) { s.validate = enabled }
}

// WithStrictTargets rejects actions whose target does not exist before they
// reach Reduce. Without it a transfer to an unknown instructor is still
// recorded under the "Unknown" name.
func WithStrictTargets(enabled bool) Option {
	return func(s *Store) { s.strict = enabled }
}

// New creates a store holding initial.
func New(initial console.State, opts ...Option) *Store {
	s := &Store{
		state:     initial,
		listeners: make(map[uint64]Listener),
		clock:     timeutil.SystemClock{},
		log:       logger.Nop(),
		validate:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("store"))
	return s
}

// State returns the current snapshot. Callers must not mutate it.
func (s *Store) State() console.State {
	s.rw.RLock()
	defer s.rw.RUnlock()
	return s.state
}

// Revision returns the number of applied dispatches.
func (s *Store) Revision() uint64 {
	s.rw.RLock()
	defer s.rw.RUnlock()
	return s.rev
}

// Snapshot returns state and revision read together.
func (s *Store) Snapshot() (console.State, uint64) {
	s.rw.RLock()
	defer s.rw.RUnlock()
	return s.state, s.rev
}

// Subscribe registers a listener and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			delete(s.listeners, id)
			s.listenersMu.Unlock()
		})
	}
}

// Dispatch applies one action. It never returns a Go error: rejections are
// reported through Result.Outcome and Result.Err.
func (s *Store) Dispatch(ctx context.Context, a console.Action) Result {
	return s.DispatchIf(ctx, a, nil)
}

// DispatchIf is Dispatch with a precondition. guard runs against the state the
// action will be reduced on, so no other dispatch can land between the check
// and the change. A nil guard always passes.
func (s *Store) DispatchIf(ctx context.Context, a console.Action, guard Guard) Result {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := Result{
		CorrelationID: correlationFrom(ctx),
		Action:        a.Type(),
		TargetID:      a.TargetID(),
	}
	log := s.log.With(
		logger.CorrelationID(res.CorrelationID.String()),
		logger.ActionType(string(res.Action)),
		logger.TargetID(res.TargetID),
	)

	current, rev := s.Snapshot()
	res.Revision = rev

	if s.validate {
		if err := console.Check(a); err != nil {
			res.Outcome = console.OutcomeInvalid
			res.Err = err
			log.Warn("action rejected", logger.Err(err))
			return res
		}
	}
	if guard != nil {
		if err := guard(current); err != nil {
			res.Outcome = OutcomeRejected
			res.Err = err
			log.Warn("action refused by guard", logger.Err(err))
			return res
		}
	}
	if s.strict && !console.TargetExists(current, a) {
		res.Outcome = console.OutcomeNotFound
		res.Err = console.NotFoundError(a)
		log.Warn("action target not found")
		return res
	}

	now := s.clock.Now()
	tr := console.Reduce(current, a, now)
	res.Outcome = tr.Outcome
	res.CreatedID = tr.CreatedID

	switch tr.Outcome {
	case console.OutcomeNotFound:
		res.Err = console.NotFoundError(a)
		log.Warn("action target not found")
		return res
	case console.OutcomeUnchanged:
		log.Debug("action had no effect")
		return res
	}

	s.rw.Lock()
	s.state = tr.State
	s.rev++
	res.Revision = s.rev
	s.rw.Unlock()

	log.Info("action applied", logger.Revision(res.Revision))

	s.notify(tr.State, res)
	s.publish(a, res, now, log)
	return res
}

func (s *Store) notify(next console.State, res Result) {
	s.listenersMu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(next, res)
	}
}

func (s *Store) publish(a console.Action, res Result, at time.Time, log *logger.Logger) {
	if s.publisher == nil {
		return
	}
	event := shared.NewActionAppliedEvent(a.EventType(), res.TargetID, string(res.Action), res.Revision, at)
	event.BaseEvent = event.BaseEvent.WithCorrelationID(res.CorrelationID.String())
	if res.CreatedID != "" {
		event = event.WithDetail("created_id", res.CreatedID)
	}
	if err := s.publisher.Publish(event); err != nil {
		log.Error("failed to publish event", logger.Err(err))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CORRELATION
// ══════════════════════════════════════════════════════════════════════════════

type correlationKey struct{}

// WithCorrelationID attaches a correlation ID that Dispatch will reuse.
func WithCorrelationID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func correlationFrom(ctx context.Context) uuid.UUID {
	if ctx != nil {
		if id, ok := ctx.Value(correlationKey{}).(uuid.UUID); ok {
			return id
		}
	}
	return uuid.New()
}
