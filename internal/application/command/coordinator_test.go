package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivehub/admin-console/internal/application/store"
	"github.com/drivehub/admin-console/internal/domain/console"
	"github.com/drivehub/admin-console/internal/domain/console/consoletest"
	"github.com/drivehub/admin-console/internal/domain/settings"
	"github.com/drivehub/admin-console/internal/domain/shared"
	"github.com/drivehub/admin-console/pkg/timeutil"
)

type eventSink struct {
	mu     sync.Mutex
	events []shared.Event
}

func (s *eventSink) Publish(e shared.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func setup(t *testing.T, opts ...CoordinatorOption) (*Coordinator, *store.Store, *timeutil.FixedClock) {
	t.Helper()
	clock := timeutil.NewFixedClock(consoletest.Now)
	st := store.New(consoletest.State(), store.WithClock(clock))
	opts = append([]CoordinatorOption{WithClock(clock), WithTTL(time.Minute)}, opts...)
	return NewCoordinator(st, opts...), st, clock
}

func TestPolicy_Evaluate(t *testing.T) {
	s := consoletest.State()
	p := Policy{}
	schedule := settings.PayoutMonthly

	tests := []struct {
		name    string
		action  console.Action
		wantErr error
	}{
		{"approve pending student", console.ApproveStudent("S1"), nil},
		{"approve approved student", console.ApproveStudent("S2"), shared.ErrApprovalNotPending},
		{"reject rejected student", console.RejectStudent("S4"), shared.ErrApprovalNotPending},
		{"suspend active student", console.SuspendStudent("S2"), nil},
		{"suspend suspended student", console.SuspendStudent("S3"), shared.ErrAccountNotActive},
		{"activate suspended student", console.ActivateStudent("S3"), nil},
		{"activate active student", console.ActivateStudent("S1"), shared.ErrAccountNotSuspended},
		{"activate inactive student", console.ActivateStudent("S4"), shared.ErrAccountInactive},
		{"delete unknown student", console.DeleteStudent("ghost"), shared.ErrStudentNotFound},
		{"approve pending instructor", console.ApproveInstructor("I2"), nil},
		{"activate suspended instructor", console.ActivateInstructor("I3"), nil},
		{"transfer exact pending amount", console.TransferPayment("I1", decimal.NewFromInt(120)), nil},
		{"transfer stale amount", console.TransferPayment("I1", decimal.NewFromInt(100)), shared.ErrStalePayout},
		{"transfer with nothing owed", console.TransferPayment("I2", decimal.NewFromInt(10)), shared.ErrNothingToPay},
		{"transfer to unknown instructor", console.TransferPayment("ghost", decimal.NewFromInt(10)), shared.ErrInstructorNotFound},
		{"blank message", console.SendMessage("C1", " \t"), shared.ErrEmptyMessage},
		{"message to unknown conversation", console.SendMessage("C9", "hi"), shared.ErrConversationNotFound},
		{"commission out of range", console.UpdatePackageCommission("P1", 101), shared.ErrCommissionOutOfRange},
		{"approve approved package", console.ApprovePackage("P2"), shared.ErrApprovalNotPending},
		{"empty settings patch", console.UpdateSettings(settings.Patch{}), shared.ErrInvalidInput},
		{"settings patch", console.UpdateSettings(settings.Patch{PayoutSchedule: &schedule}), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Evaluate(s, tt.action)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCoordinator_ProposeConfirm(t *testing.T) {
	c, st, _ := setup(t)
	ctx := context.Background()

	intent, err := c.Propose(ctx, console.TransferPayment("I1", decimal.NewFromInt(120)))
	require.NoError(t, err)
	assert.Equal(t, "Transfer 120.00 USD to Alice Kim", intent.Summary)
	assert.Equal(t, consoletest.Now.Add(time.Minute), intent.ExpiresAt)
	assert.Len(t, c.Pending(), 1)

	// proposing does not touch the store
	assert.Equal(t, uint64(0), st.Revision())

	res, err := c.Confirm(ctx, intent.ID)
	require.NoError(t, err)
	assert.Equal(t, console.OutcomeApplied, res.Outcome)
	assert.Equal(t, intent.ID, res.CorrelationID)
	assert.Equal(t, "TXN-0003", res.CreatedID)
	assert.Empty(t, c.Pending())

	// a second confirmation cannot dispatch again
	_, err = c.Confirm(ctx, intent.ID)
	assert.ErrorIs(t, err, shared.ErrIntentNotFound)
	assert.Equal(t, uint64(1), st.Revision())
}

func TestCoordinator_ConfirmRejectsStaleTransfer(t *testing.T) {
	c, st, _ := setup(t)
	ctx := context.Background()

	first, err := c.Propose(ctx, console.TransferPayment("I1", decimal.NewFromInt(120)))
	require.NoError(t, err)
	second, err := c.Propose(ctx, console.TransferPayment("I1", decimal.NewFromInt(120)))
	require.NoError(t, err)

	_, err = c.Confirm(ctx, first.ID)
	require.NoError(t, err)

	_, err = c.Confirm(ctx, second.ID)
	assert.ErrorIs(t, err, shared.ErrNothingToPay)
	assert.Len(t, st.State().Transactions, 3, "only one transfer was recorded")
}

// interleavingStore runs hook inside the first DispatchIf call, before the
// wrapped store takes its lock.
type interleavingStore struct {
	*store.Store
	once sync.Once
	hook func()
}

func (s *interleavingStore) DispatchIf(ctx context.Context, a console.Action, guard store.Guard) store.Result {
	s.once.Do(s.hook)
	return s.Store.DispatchIf(ctx, a, guard)
}

func TestCoordinator_InterleavedConfirmsPayOnce(t *testing.T) {
	clock := timeutil.NewFixedClock(consoletest.Now)
	st := store.New(consoletest.State(), store.WithClock(clock))
	wrapped := &interleavingStore{Store: st}
	c := NewCoordinator(wrapped, WithClock(clock), WithTTL(time.Minute))
	ctx := context.Background()

	first, err := c.Propose(ctx, console.TransferPayment("I1", decimal.NewFromInt(120)))
	require.NoError(t, err)
	second, err := c.Propose(ctx, console.TransferPayment("I1", decimal.NewFromInt(120)))
	require.NoError(t, err)

	var innerRes store.Result
	var innerErr error
	wrapped.hook = func() { innerRes, innerErr = c.Confirm(ctx, second.ID) }

	_, err = c.Confirm(ctx, first.ID)
	require.NoError(t, innerErr)
	assert.True(t, innerRes.Applied())
	assert.ErrorIs(t, err, shared.ErrNothingToPay)

	paid := 0
	for _, txn := range st.State().Transactions {
		if txn.InstructorID == "I1" && txn.Amount.Equal(decimal.NewFromInt(120)) {
			paid++
		}
	}
	assert.Equal(t, 1, paid)
}

func TestCoordinator_ConfirmRejectsChangedApproval(t *testing.T) {
	c, st, _ := setup(t)
	ctx := context.Background()

	intent, err := c.Propose(ctx, console.ApproveInstructor("I2"))
	require.NoError(t, err)

	// another operator rejects in the meantime
	st.Dispatch(ctx, console.RejectInstructor("I2"))

	_, err = c.Confirm(ctx, intent.ID)
	assert.ErrorIs(t, err, shared.ErrApprovalNotPending)
	assert.True(t, shared.IsStateConflict(err))
}

func TestCoordinator_ProposeRejectsInvalid(t *testing.T) {
	c, _, _ := setup(t)

	_, err := c.Propose(context.Background(), console.SuspendStudent("S3"))
	assert.ErrorIs(t, err, shared.ErrAccountNotActive)
	assert.Empty(t, c.Pending())
}

func TestCoordinator_Expiry(t *testing.T) {
	sink := &eventSink{}
	c, _, clock := setup(t, WithPublisher(sink))
	ctx := context.Background()

	stale, err := c.Propose(ctx, console.ApprovePackage("P1"))
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = c.Confirm(ctx, stale.ID)
	assert.ErrorIs(t, err, shared.ErrIntentExpired)

	_, err = c.Propose(ctx, console.ApproveStudent("S1"))
	require.NoError(t, err)
	_, err = c.Propose(ctx, console.MarkConversationRead("C1"))
	require.NoError(t, err)

	assert.Equal(t, 0, c.ExpireBefore(clock.Now()))
	assert.Equal(t, 2, c.ExpireBefore(clock.Now().Add(time.Minute)))
	assert.Empty(t, c.Pending())

	require.Len(t, sink.events, 2)
	assert.Equal(t, shared.EventIntentExpired, sink.events[0].EventType())
}

func TestCoordinator_Cancel(t *testing.T) {
	c, _, _ := setup(t)

	intent, err := c.Propose(context.Background(), console.DeletePackage("P2"))
	require.NoError(t, err)

	_, ok := c.Get(intent.ID)
	assert.True(t, ok)
	require.NoError(t, c.Cancel(intent.ID))
	assert.ErrorIs(t, c.Cancel(intent.ID), shared.ErrIntentNotFound)
	assert.ErrorIs(t, c.Cancel(uuid.New()), shared.ErrIntentNotFound)
}

func TestCoordinator_PendingOrder(t *testing.T) {
	c, _, clock := setup(t)
	ctx := context.Background()

	a, _ := c.Propose(ctx, console.ApproveStudent("S1"))
	clock.Advance(time.Second)
	b, _ := c.Propose(ctx, console.ApproveInstructor("I2"))

	pending := c.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, a.ID, pending[0].ID)
	assert.Equal(t, b.ID, pending[1].ID)
}

func TestRequiresConfirmation(t *testing.T) {
	assert.True(t, RequiresConfirmation(console.DeleteStudent("S1")))
	assert.True(t, RequiresConfirmation(console.DeletePackage("P1")))
	assert.True(t, RequiresConfirmation(console.TransferPayment("I1", decimal.NewFromInt(10))))
	assert.False(t, RequiresConfirmation(console.ApproveStudent("S1")))
	assert.False(t, RequiresConfirmation(console.MarkConversationRead("C1")))
}
