package console

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/drivehub/admin-console/internal/domain/catalog"
	"github.com/drivehub/admin-console/internal/domain/inbox"
	"github.com/drivehub/admin-console/internal/domain/instructor"
	"github.com/drivehub/admin-console/internal/domain/payout"
	"github.com/drivehub/admin-console/internal/domain/settings"
	"github.com/drivehub/admin-console/internal/domain/shared"
	"github.com/drivehub/admin-console/internal/domain/student"
)

var testNow = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func reg(approval shared.ApprovalStatus, account shared.AccountStatus) shared.Registration {
	return shared.Registration{ApprovalStatus: approval, AccountStatus: account}
}

func testState() State {
	s := State{
		Students: []student.Student{
			{ID: "S1", Name: "Aigerim", Registration: reg(shared.ApprovalPending, shared.AccountActive), UpcomingLessons: 2},
			{ID: "S2", Name: "Daniyar", Registration: reg(shared.ApprovalApproved, shared.AccountActive), UpcomingLessons: 3,
				Lessons: []student.Lesson{{ID: "L1", Status: student.LessonUpcoming}}},
			{ID: "S3", Name: "Madina", Registration: reg(shared.ApprovalPending, shared.AccountActive)},
		},
		Instructors: []instructor.Instructor{
			{ID: "I1", Name: "Alice", Registration: reg(shared.ApprovalApproved, shared.AccountActive),
				EarningsTotal: decimal.NewFromInt(2000), PendingPayment: decimal.NewFromInt(120), StripeStatus: instructor.StripeConnected},
			{ID: "I2", Name: "Bob", Registration: reg(shared.ApprovalPending, shared.AccountActive),
				PendingPayment: decimal.Zero, StripeStatus: instructor.StripePending},
		},
		Transactions: []payout.Transaction{
			{ID: "TXN-0001", InstructorID: "I1", InstructorName: "Alice", Amount: decimal.NewFromInt(80), Status: payout.StatusPending},
			{ID: "TXN-0002", InstructorID: "I2", InstructorName: "Bob", Amount: decimal.NewFromInt(40), Status: payout.StatusPaid},
		},
		Conversations: []inbox.Conversation{
			{ID: "C1", InstructorID: "I1", InstructorName: "Alice", Status: inbox.StatusUnread, UnreadCount: 2, LastMessage: "hello"},
			{ID: "C2", InstructorID: "I2", InstructorName: "Bob", Status: inbox.StatusRead},
		},
		Messages: []inbox.ChatMessage{
			{ID: "MSG-0001", ConversationID: "C1", SenderType: inbox.SenderInstructor, Text: "hello"},
		},
		Packages: []catalog.Package{
			{ID: "P1", InstructorID: "I1", Title: "Starter", Price: decimal.NewFromInt(300), CommissionPercentage: 15, Status: shared.ApprovalPending},
			{ID: "P2", InstructorID: "I2", Title: "Highway", Price: decimal.NewFromInt(450), CommissionPercentage: 10, Status: shared.ApprovalApproved},
		},
		Settings: settings.Defaults(),
	}
	s.Stats.MonthlyRevenue = decimal.NewFromInt(4500)
	s.Stats = Recompute(s)
	return s
}

func countPending(s State) int {
	n := 0
	for _, st := range s.Students {
		if st.IsPending() {
			n++
		}
	}
	for _, in := range s.Instructors {
		if in.IsPending() {
			n++
		}
	}
	return n
}
