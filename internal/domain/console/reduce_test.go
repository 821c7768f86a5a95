package console

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivehub/admin-console/internal/domain/inbox"
	"github.com/drivehub/admin-console/internal/domain/payout"
	"github.com/drivehub/admin-console/internal/domain/settings"
	"github.com/drivehub/admin-console/internal/domain/shared"
)

func TestReduce_ApproveTwiceDoesNotDoubleCount(t *testing.T) {
	s := testState()
	require.Equal(t, 3, s.Stats.PendingApprovals)

	first := Reduce(s, ApproveStudent("S1"), testNow)
	assert.Equal(t, OutcomeApplied, first.Outcome)
	assert.Equal(t, 2, first.State.Stats.PendingApprovals)

	second := Reduce(first.State, ApproveStudent("S1"), testNow)
	assert.Equal(t, OutcomeUnchanged, second.Outcome)
	assert.Equal(t, 2, second.State.Stats.PendingApprovals)
	assert.Equal(t, countPending(second.State), second.State.Stats.PendingApprovals)

	// deciding on a student that was never pending leaves the counter alone
	third := Reduce(second.State, RejectStudent("S2"), testNow)
	assert.Equal(t, OutcomeApplied, third.Outcome)
	assert.Equal(t, 2, third.State.Stats.PendingApprovals)
}

func TestReduce_PendingApprovalsInvariantHolds(t *testing.T) {
	ids := []string{"S1", "S2", "S3", "I1", "I2", "missing"}
	build := []func(string) Action{
		func(id string) Action { return ApproveStudent(id) },
		func(id string) Action { return RejectStudent(id) },
		func(id string) Action { return SuspendStudent(id) },
		func(id string) Action { return ActivateStudent(id) },
		func(id string) Action { return DeleteStudent(id) },
		func(id string) Action { return ApproveInstructor(id) },
		func(id string) Action { return RejectInstructor(id) },
		func(id string) Action { return SuspendInstructor(id) },
		func(id string) Action { return ActivateInstructor(id) },
		func(id string) Action { return TransferPayment(id, decimal.NewFromInt(10)) },
	}

	rng := rand.New(rand.NewSource(42))
	for run := 0; run < 50; run++ {
		s := testState()
		for step := 0; step < 40; step++ {
			a := build[rng.Intn(len(build))](ids[rng.Intn(len(ids))])
			s = Reduce(s, a, testNow).State

			require.Equal(t, countPending(s), s.Stats.PendingApprovals, "after %s(%s)", a.Type(), a.TargetID())
			require.Empty(t, Drift(Recompute(s), s.Stats), "after %s(%s)", a.Type(), a.TargetID())
		}
	}
}

func TestReduce_RejectCascadesAccountStatus(t *testing.T) {
	tr := Reduce(testState(), RejectStudent("S1"), testNow)

	st, ok := tr.State.FindStudent("S1")
	require.True(t, ok)
	assert.Equal(t, shared.ApprovalRejected, st.ApprovalStatus)
	assert.Equal(t, shared.AccountInactive, st.AccountStatus)
	assert.Equal(t, 2, tr.State.Stats.PendingApprovals)
}

func TestReduce_SuspendActivateLeaveCountersAlone(t *testing.T) {
	s := testState()

	suspended := Reduce(s, SuspendInstructor("I1"), testNow)
	assert.Equal(t, OutcomeApplied, suspended.Outcome)
	assert.Equal(t, s.Stats, suspended.State.Stats)

	in, _ := suspended.State.FindInstructor("I1")
	assert.Equal(t, shared.AccountSuspended, in.AccountStatus)

	again := Reduce(suspended.State, SuspendInstructor("I1"), testNow)
	assert.Equal(t, OutcomeUnchanged, again.Outcome)

	active := Reduce(suspended.State, ActivateInstructor("I1"), testNow)
	in, _ = active.State.FindInstructor("I1")
	assert.Equal(t, shared.AccountActive, in.AccountStatus)
}

func TestReduce_UnknownIDIsNoop(t *testing.T) {
	s := testState()

	tests := []Action{
		SuspendInstructor("does-not-exist"),
		ApproveStudent("does-not-exist"),
		DeleteStudent("does-not-exist"),
		MarkConversationRead("does-not-exist"),
		SendMessage("does-not-exist", "hi"),
		ApprovePackage("does-not-exist"),
		DeletePackage("does-not-exist"),
	}

	for _, a := range tests {
		t.Run(string(a.Type()), func(t *testing.T) {
			tr := Reduce(s, a, testNow)
			assert.Equal(t, OutcomeNotFound, tr.Outcome)
			assert.Equal(t, s, tr.State)
		})
	}
}

func TestReduce_TransferPayment(t *testing.T) {
	s := testState()
	require.True(t, s.Stats.PendingPayouts.Equal(decimal.NewFromInt(120)))

	tr := Reduce(s, TransferPayment("I1", decimal.NewFromInt(120)), testNow)
	require.Equal(t, OutcomeApplied, tr.Outcome)

	in, _ := tr.State.FindInstructor("I1")
	assert.True(t, in.PendingPayment.IsZero())
	assert.True(t, in.EarningsTotal.Equal(decimal.NewFromInt(2000)))
	assert.True(t, tr.State.Stats.PendingPayouts.IsZero())

	require.Len(t, tr.State.Transactions, 3)
	created := tr.State.Transactions[2]
	assert.Equal(t, tr.CreatedID, created.ID)
	assert.Equal(t, "TXN-0003", created.ID, "sequence skips ids already on file")
	assert.Equal(t, payout.StatusPaid, created.Status)
	assert.True(t, created.Amount.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, payout.MethodStripeTransfer, created.Method)
	assert.Equal(t, "Alice", created.InstructorName)
	assert.Equal(t, testNow, created.Date)

	// the older pending transaction of the same instructor is settled too
	assert.Equal(t, payout.StatusPaid, tr.State.Transactions[0].Status)
	assert.Equal(t, payout.StatusPending, s.Transactions[0].Status, "input state untouched")

	newPaid := 0
	for _, txn := range tr.State.Transactions[len(s.Transactions):] {
		if txn.Status == payout.StatusPaid {
			newPaid++
		}
	}
	assert.Equal(t, 1, newPaid)
}

func TestReduce_TransferTwiceDoesNotDoubleCount(t *testing.T) {
	s := testState()
	s.Stats.PendingPayouts = decimal.NewFromInt(500)

	first := Reduce(s, TransferPayment("I1", decimal.NewFromInt(120)), testNow).State
	assert.True(t, first.Stats.PendingPayouts.Equal(decimal.NewFromInt(380)))

	second := Reduce(first, TransferPayment("I1", decimal.NewFromInt(120)), testNow).State
	assert.True(t, second.Stats.PendingPayouts.Equal(decimal.NewFromInt(380)))
	assert.Len(t, second.Transactions, 4)
	assert.Equal(t, "TXN-0004", second.Transactions[3].ID)
}

func TestReduce_TransferToUnknownInstructor(t *testing.T) {
	s := testState()

	tr := Reduce(s, TransferPayment("ghost", decimal.NewFromInt(50)), testNow)

	require.Len(t, tr.State.Transactions, 3)
	assert.Equal(t, payout.UnknownInstructor, tr.State.Transactions[2].InstructorName)
	assert.True(t, tr.State.Stats.PendingPayouts.Equal(s.Stats.PendingPayouts))
}

func TestReduce_SendMessagePreservesOrder(t *testing.T) {
	s := testState()

	first := Reduce(s, SendMessage("C1", "hi"), testNow)
	second := Reduce(first.State, SendMessage("C1", "how are you?"), testNow.Add(1))

	var texts []string
	for _, m := range second.State.Messages {
		if m.ConversationID == "C1" && m.SenderType == inbox.SenderAdmin {
			texts = append(texts, m.Text)
			assert.False(t, m.Seen)
		}
	}
	assert.Equal(t, []string{"hi", "how are you?"}, texts)
	assert.Equal(t, "MSG-0002", first.CreatedID)
	assert.Equal(t, "MSG-0003", second.CreatedID)

	conv, _ := second.State.FindConversation("C1")
	assert.Equal(t, "how are you?", conv.LastMessage)
	assert.Equal(t, testNow.Add(1), conv.LastMessageAt)
	assert.Len(t, s.Messages, 1, "input state untouched")
}

func TestReduce_MarkConversationZeroesUnread(t *testing.T) {
	s := testState()

	read := Reduce(s, MarkConversationRead("C1"), testNow)
	conv, _ := read.State.FindConversation("C1")
	assert.Equal(t, inbox.StatusRead, conv.Status)
	assert.Zero(t, conv.UnreadCount)

	resolved := Reduce(read.State, MarkConversationResolved("C1"), testNow)
	conv, _ = resolved.State.FindConversation("C1")
	assert.Equal(t, inbox.StatusResolved, conv.Status)
	assert.Zero(t, conv.UnreadCount)

	assert.Equal(t, OutcomeUnchanged, Reduce(s, MarkConversationRead("C2"), testNow).Outcome)
}

func TestReduce_DeleteRemovesWithoutOrphans(t *testing.T) {
	s := testState()

	tr := Reduce(s, DeletePackage("P1"), testNow)
	assert.Equal(t, OutcomeApplied, tr.Outcome)
	_, found := tr.State.FindPackage("P1")
	assert.False(t, found)
	assert.Len(t, tr.State.Packages, 1)
	assert.Len(t, s.Packages, 2)

	del := Reduce(s, DeleteStudent("S1"), testNow)
	assert.Equal(t, 2, del.State.Stats.TotalStudents)
	assert.Equal(t, 2, del.State.Stats.PendingApprovals)
	assert.Equal(t, s.Stats.ActiveLessons-2, del.State.Stats.ActiveLessons)
}

func TestReduce_DeleteStudentFloorsTotals(t *testing.T) {
	s := testState()
	s.Stats.TotalStudents = 0
	s.Stats.ActiveLessons = 0

	tr := Reduce(s, DeleteStudent("S2"), testNow)
	assert.Equal(t, 0, tr.State.Stats.TotalStudents)
	assert.Equal(t, 0, tr.State.Stats.ActiveLessons)
}

func TestReduce_UpdateSettingsIsPartial(t *testing.T) {
	s := testState()
	sms := true

	tr := Reduce(s, UpdateSettings(settings.Patch{SMSAlerts: &sms}), testNow)
	require.Equal(t, OutcomeApplied, tr.Outcome)

	want := s.Settings
	want.SMSAlerts = true
	assert.Equal(t, want, tr.State.Settings)

	again := Reduce(tr.State, UpdateSettings(settings.Patch{SMSAlerts: &sms}), testNow)
	assert.Equal(t, OutcomeUnchanged, again.Outcome)
}

func TestReduce_PackageLifecycle(t *testing.T) {
	s := testState()

	approved := Reduce(s, ApprovePackage("P1"), testNow)
	pkg, _ := approved.State.FindPackage("P1")
	assert.Equal(t, shared.ApprovalApproved, pkg.Status)

	rejected := Reduce(s, RejectPackage("P1"), testNow)
	pkg, _ = rejected.State.FindPackage("P1")
	assert.Equal(t, shared.ApprovalRejected, pkg.Status)

	// the engine stores any commission; range checks live in Check
	commission := Reduce(s, UpdatePackageCommission("P1", 140), testNow)
	pkg, _ = commission.State.FindPackage("P1")
	assert.Equal(t, 140.0, pkg.CommissionPercentage)
}

func TestReduce_DoesNotMutateInput(t *testing.T) {
	s := testState()
	snapshot := s.Clone()

	for _, a := range []Action{
		ApproveStudent("S1"), RejectInstructor("I2"), TransferPayment("I1", decimal.NewFromInt(120)),
		SendMessage("C1", "x"), MarkConversationResolved("C1"), ApprovePackage("P1"),
		DeleteStudent("S2"), DeletePackage("P2"),
	} {
		Reduce(s, a, testNow)
	}

	assert.Equal(t, snapshot, s)
}

func TestReduce_PanicsOnForeignAction(t *testing.T) {
	assert.Panics(t, func() {
		Reduce(testState(), nil, testNow)
	})
}
