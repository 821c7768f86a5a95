package query

import (
	"context"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivehub/admin-console/internal/application/store"
	"github.com/drivehub/admin-console/internal/domain/console"
	"github.com/drivehub/admin-console/internal/domain/console/consoletest"
	"github.com/drivehub/admin-console/internal/domain/inbox"
	"github.com/drivehub/admin-console/internal/domain/instructor"
	"github.com/drivehub/admin-console/internal/domain/payout"
	"github.com/drivehub/admin-console/internal/domain/shared"
	"github.com/drivehub/admin-console/internal/domain/student"
	"github.com/drivehub/admin-console/pkg/timeutil"
)

func newSelectors() (*Selectors, *store.Store) {
	st := store.New(consoletest.State(), store.WithClock(timeutil.NewFixedClock(consoletest.Now)))
	return NewSelectors(st), st
}

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, id(it))
	}
	return out
}

func TestSelectors_StudentFilters(t *testing.T) {
	q, _ := newSelectors()

	tests := []struct {
		name   string
		filter StudentFilter
		want   []string
	}{
		{"all", StudentFilter{}, []string{"S1", "S2", "S3", "S4"}},
		{"pending", StudentFilter{Approval: shared.ApprovalPending}, []string{"S1", "S3"}},
		{"suspended", StudentFilter{Account: shared.AccountSuspended}, []string{"S3"}},
		{"search by city", StudentFilter{Search: "astana"}, []string{"S2"}},
		{"search by name", StudentFilter{Search: "Timur"}, []string{"S4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := q.Students(tt.filter)
			assert.Equal(t, tt.want, ids(got, func(s student.Student) string { return s.ID }))
		})
	}
}

func TestSelectors_InstructorFilters(t *testing.T) {
	q, _ := newSelectors()

	got := q.Instructors(InstructorFilter{Stripe: instructor.StripeConnected})
	require.Len(t, got, 1)
	assert.Equal(t, "I1", got[0].ID)

	got = q.Instructors(InstructorFilter{Approval: shared.ApprovalApproved, Account: shared.AccountActive})
	assert.Equal(t, []string{"I1"}, ids(got, func(i instructor.Instructor) string { return i.ID }))

	_, err := q.Instructor("ghost")
	assert.ErrorIs(t, err, shared.ErrInstructorNotFound)
}

func TestSelectors_ReturnCopies(t *testing.T) {
	q, st := newSelectors()

	list := q.Students(StudentFilter{})
	list[0].Name = "mutated"
	list[1].Lessons = append(list[1].Lessons, list[1].Lessons...)

	fresh, err := q.Student("S1")
	require.NoError(t, err)
	assert.Equal(t, "Aigerim Sadykova", fresh.Name)
	assert.Equal(t, consoletest.State().Students, st.State().Students)
}

func TestSelectors_PendingApprovalsMatchesStats(t *testing.T) {
	q, st := newSelectors()

	queue := q.PendingApprovals()
	assert.Len(t, queue, q.Stats().PendingApprovals)
	assert.Equal(t, []string{"S1", "I2", "S3"}, ids(queue, func(a ApprovalItem) string { return a.ID }))

	st.Dispatch(context.Background(), console.ApproveInstructor("I2"))
	assert.Len(t, q.PendingApprovals(), q.Stats().PendingApprovals)
	assert.Equal(t, 2, q.Stats().PendingApprovals)
}

func TestSelectors_TransactionsNewestFirst(t *testing.T) {
	q, st := newSelectors()

	st.Dispatch(context.Background(), console.TransferPayment("I1", decimal.NewFromInt(120)))

	all := q.Transactions(TransactionFilter{})
	assert.Equal(t, []string{"TXN-0003", "TXN-0002", "TXN-0001"}, ids(all, func(tx payout.Transaction) string { return tx.ID }))

	mine := q.Transactions(TransactionFilter{InstructorID: "I1"})
	require.Len(t, mine, 2)
	for _, txn := range mine {
		assert.Equal(t, payout.StatusPaid, txn.Status)
	}

	assert.Empty(t, q.Transactions(TransactionFilter{Status: payout.StatusPending}))
}

func TestSelectors_Inbox(t *testing.T) {
	q, st := newSelectors()

	assert.Equal(t, []string{"C1", "C3", "C2"},
		ids(q.Conversations(ConversationFilter{}), func(c inbox.Conversation) string { return c.ID }))
	assert.Equal(t, 2, q.UnreadTotal())

	st.Dispatch(context.Background(), console.SendMessage("C2", "Welcome aboard"))
	st.Dispatch(context.Background(), console.MarkConversationRead("C1"))

	assert.Equal(t, "C2", q.Conversations(ConversationFilter{})[0].ID)
	assert.Equal(t, 0, q.UnreadTotal())
	assert.Len(t, q.Conversations(ConversationFilter{Status: inbox.StatusRead}), 2)

	msgs, err := q.Messages("C2")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, inbox.SenderAdmin, msgs[0].SenderType)
	assert.False(t, msgs[0].Seen)

	_, err = q.Messages("C9")
	assert.ErrorIs(t, err, shared.ErrConversationNotFound)
}

func TestSelectors_Packages(t *testing.T) {
	q, _ := newSelectors()

	assert.Len(t, q.Packages(PackageFilter{}), 2)
	assert.Len(t, q.Packages(PackageFilter{Status: shared.ApprovalPending}), 1)
	assert.Len(t, q.Packages(PackageFilter{InstructorID: "I2"}), 1)

	_, err := q.Package("P9")
	assert.True(t, shared.IsNotFound(err))
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page := Paginate(items, shared.Pagination{Page: 2, PageSize: 2})
	assert.Equal(t, []int{3, 4}, page.Items)
	assert.Equal(t, 5, page.Total)

	page = Paginate(items, shared.Pagination{Page: 9, PageSize: 2})
	assert.Empty(t, page.Items)

	page = Paginate(items, shared.Pagination{})
	assert.Equal(t, items, page.Items)
	assert.Equal(t, 1, page.Page)
}

func TestPaginate_HugePageIsEmpty(t *testing.T) {
	items := []int{1, 2, 3}

	for _, p := range []shared.Pagination{
		{Page: 461168601842738792, PageSize: 20},
		{Page: math.MaxInt, PageSize: shared.MaxPageSize},
		{Page: -5, PageSize: -1},
	} {
		assert.NotPanics(t, func() { Paginate(items, p) })
	}

	page := Paginate(items, shared.Pagination{Page: 461168601842738792, PageSize: 20})
	assert.Empty(t, page.Items)
	assert.Equal(t, 3, page.Total)

	start, end := shared.Pagination{Page: math.MaxInt, PageSize: 7}.Bounds(3)
	assert.Equal(t, 3, start)
	assert.Equal(t, 3, end)
}
