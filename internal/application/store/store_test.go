package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivehub/admin-console/internal/domain/console"
	"github.com/drivehub/admin-console/internal/domain/console/consoletest"
	"github.com/drivehub/admin-console/internal/domain/payout"
	"github.com/drivehub/admin-console/internal/domain/shared"
	"github.com/drivehub/admin-console/pkg/timeutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func newTestStore(opts ...Option) *Store {
	opts = append([]Option{WithClock(timeutil.NewFixedClock(consoletest.Now))}, opts...)
	return New(consoletest.State(), opts...)
}

func TestDispatch_AppliesAndBumpsRevision(t *testing.T) {
	s := newTestStore()
	before := s.State()

	res := s.Dispatch(context.Background(), console.ApproveStudent("S1"))

	assert.Equal(t, console.OutcomeApplied, res.Outcome)
	assert.True(t, res.Applied())
	assert.NoError(t, res.Err)
	assert.Equal(t, uint64(1), res.Revision)
	assert.Equal(t, uint64(1), s.Revision())
	assert.NotEqual(t, uuid.Nil, res.CorrelationID)

	st, _ := s.State().FindStudent("S1")
	assert.Equal(t, shared.ApprovalApproved, st.ApprovalStatus)
	assert.Equal(t, before.Stats.PendingApprovals-1, s.State().Stats.PendingApprovals)

	// the earlier snapshot is untouched
	old, _ := before.FindStudent("S1")
	assert.Equal(t, shared.ApprovalPending, old.ApprovalStatus)
}

func TestDispatch_UnchangedKeepsRevision(t *testing.T) {
	s := newTestStore()
	s.Dispatch(context.Background(), console.ApproveStudent("S1"))

	res := s.Dispatch(context.Background(), console.ApproveStudent("S1"))
	assert.Equal(t, console.OutcomeUnchanged, res.Outcome)
	assert.NoError(t, res.Err)
	assert.Equal(t, uint64(1), res.Revision)
}

func TestDispatch_NotFound(t *testing.T) {
	s := newTestStore()

	res := s.Dispatch(context.Background(), console.SuspendStudent("ghost"))
	assert.Equal(t, console.OutcomeNotFound, res.Outcome)
	assert.ErrorIs(t, res.Err, shared.ErrStudentNotFound)
	assert.True(t, shared.IsNotFound(res.Err))
	assert.Equal(t, uint64(0), s.Revision())
}

func TestDispatch_ValidationRejectsBeforeReduce(t *testing.T) {
	s := newTestStore()

	tests := []struct {
		name   string
		action console.Action
		kind   error
	}{
		{"commission above 100", console.UpdatePackageCommission("P1", 150), shared.ErrValueOutOfRange},
		{"zero transfer", console.TransferPayment("I1", decimal.Zero), shared.ErrNegativeValue},
		{"blank message", console.SendMessage("C1", "  "), shared.ErrEmptyValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Dispatch(context.Background(), tt.action)
			assert.Equal(t, console.OutcomeInvalid, res.Outcome)
			assert.ErrorIs(t, res.Err, tt.kind)
		})
	}
	assert.Equal(t, uint64(0), s.Revision())
}

func TestDispatch_ValidationDisabledReachesEngine(t *testing.T) {
	s := newTestStore(WithValidation(false))

	res := s.Dispatch(context.Background(), console.UpdatePackageCommission("P1", 150))
	assert.Equal(t, console.OutcomeApplied, res.Outcome)

	p, _ := s.State().FindPackage("P1")
	assert.Equal(t, 150.0, p.CommissionPercentage)
}

func TestDispatch_TransferToUnknownInstructor(t *testing.T) {
	t.Run("lenient records an Unknown transaction", func(t *testing.T) {
		s := newTestStore()
		res := s.Dispatch(context.Background(), console.TransferPayment("ghost", decimal.NewFromInt(10)))

		require.Equal(t, console.OutcomeApplied, res.Outcome)
		assert.Equal(t, "TXN-0003", res.CreatedID)
		txns := s.State().Transactions
		assert.Equal(t, payout.UnknownInstructor, txns[len(txns)-1].InstructorName)
	})

	t.Run("strict rejects", func(t *testing.T) {
		s := newTestStore(WithStrictTargets(true))
		res := s.Dispatch(context.Background(), console.TransferPayment("ghost", decimal.NewFromInt(10)))

		assert.Equal(t, console.OutcomeNotFound, res.Outcome)
		assert.ErrorIs(t, res.Err, shared.ErrInstructorNotFound)
		assert.Len(t, s.State().Transactions, 2)
	})
}

func TestDispatch_NotifiesAfterReplacement(t *testing.T) {
	s := newTestStore()

	var seen []uint64
	unsubscribe := s.Subscribe(func(next console.State, res Result) {
		// the store already exposes the new state
		assert.Equal(t, res.Revision, s.Revision())
		st, _ := next.FindStudent("S2")
		assert.Equal(t, shared.AccountSuspended, st.AccountStatus)
		seen = append(seen, res.Revision)
	})

	s.Dispatch(context.Background(), console.SuspendStudent("S2"))
	s.Dispatch(context.Background(), console.SuspendStudent("S2")) // unchanged, no notification
	unsubscribe()
	unsubscribe()
	s.Dispatch(context.Background(), console.ActivateStudent("S2"))

	assert.Equal(t, []uint64{1}, seen)
}

func TestDispatch_PublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	s := newTestStore(WithPublisher(pub))

	correlation := uuid.New()
	ctx := WithCorrelationID(context.Background(), correlation)
	res := s.Dispatch(ctx, console.SendMessage("C2", "Your documents are verified"))
	require.True(t, res.Applied())
	assert.Equal(t, correlation, res.CorrelationID)
	assert.Equal(t, "MSG-0003", res.CreatedID)

	s.Dispatch(context.Background(), console.MarkConversationRead("C2")) // already read

	require.Len(t, pub.events, 1)
	event, ok := pub.events[0].(shared.ActionAppliedEvent)
	require.True(t, ok)
	assert.Equal(t, shared.EventMessageSent, event.EventType())
	assert.Equal(t, "C2", event.AggregateID())
	assert.Equal(t, correlation.String(), event.CorrelationID)
	assert.Equal(t, consoletest.Now, event.OccurredAt())
	assert.Equal(t, "MSG-0003", event.Payload()["created_id"])
}

func TestDispatch_ConcurrentCallersSerialize(t *testing.T) {
	s := newTestStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Dispatch(context.Background(), console.SendMessage("C1", "ping"))
		}()
	}
	wg.Wait()

	state := s.State()
	assert.Equal(t, uint64(20), s.Revision())
	assert.Len(t, state.Messages, 22)
	ids := make(map[string]struct{}, len(state.Messages))
	for _, m := range state.Messages {
		ids[m.ID] = struct{}{}
	}
	assert.Len(t, ids, 22, "message IDs must be unique")
}

func TestDispatchIf_RefusedActionLeavesStateAlone(t *testing.T) {
	s := newTestStore()
	refusal := errors.New("not today")

	res := s.DispatchIf(context.Background(), console.ApproveStudent("S1"), func(console.State) error {
		return refusal
	})

	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.ErrorIs(t, res.Err, refusal)
	assert.Zero(t, s.Revision())
}

func TestDispatchIf_GuardSeesPreviousDispatch(t *testing.T) {
	s := newTestStore()
	ctx := context.Background()
	require.True(t, s.Dispatch(ctx, console.ApproveStudent("S1")).Applied())

	var seen shared.ApprovalStatus
	res := s.DispatchIf(ctx, console.SuspendStudent("S1"), func(current console.State) error {
		st, ok := current.FindStudent("S1")
		require.True(t, ok)
		seen = st.ApprovalStatus
		return nil
	})

	assert.True(t, res.Applied())
	assert.Equal(t, shared.ApprovalApproved, seen)
	assert.Equal(t, uint64(2), res.Revision)
}
