// Package consoletest provides a small, fully consistent console state for
// tests of the layers above the engine.
package consoletest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/drivehub/admin-console/internal/domain/catalog"
	"github.com/drivehub/admin-console/internal/domain/console"
	"github.com/drivehub/admin-console/internal/domain/inbox"
	"github.com/drivehub/admin-console/internal/domain/instructor"
	"github.com/drivehub/admin-console/internal/domain/payout"
	"github.com/drivehub/admin-console/internal/domain/settings"
	"github.com/drivehub/admin-console/internal/domain/shared"
	"github.com/drivehub/admin-console/internal/domain/student"
)

// Now is the reference time of the fixture.
var Now = time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

func reg(approval shared.ApprovalStatus, account shared.AccountStatus) shared.Registration {
	return shared.Registration{ApprovalStatus: approval, AccountStatus: account}
}

// State returns a fresh fixture:
//
//	students     S1 pending, S2 approved (3 upcoming), S3 pending+suspended, S4 rejected+inactive
//	instructors  I1 Alice approved, owes 120; I2 Bob pending, owes nothing; I3 Carol suspended, owes 50
//	transactions TXN-0001 pending for I1, TXN-0002 paid for I2
//	inbox        C1 (I1) unread 2, C2 (I2) read, C3 (I3) resolved
//	packages     P1 pending, P2 approved
func State() console.State {
	s := console.State{
		Students: []student.Student{
			{ID: "S1", Name: "Aigerim Sadykova", Email: "aigerim@example.com", City: "Almaty",
				Registration: reg(shared.ApprovalPending, shared.AccountActive), UpcomingLessons: 1,
				JoinedAt: Now.Add(-48 * time.Hour)},
			{ID: "S2", Name: "Daniyar Omarov", Email: "daniyar@example.com", City: "Astana",
				Registration: reg(shared.ApprovalApproved, shared.AccountActive), LessonsCompleted: 4, UpcomingLessons: 3,
				JoinedAt: Now.Add(-30 * 24 * time.Hour)},
			{ID: "S3", Name: "Madina Ermekova", Email: "madina@example.com", City: "Almaty",
				Registration: reg(shared.ApprovalPending, shared.AccountSuspended),
				JoinedAt: Now.Add(-24 * time.Hour)},
			{ID: "S4", Name: "Timur Bekov", Email: "timur@example.com", City: "Shymkent",
				Registration: reg(shared.ApprovalRejected, shared.AccountInactive),
				JoinedAt: Now.Add(-72 * time.Hour)},
		},
		Instructors: []instructor.Instructor{
			{ID: "I1", Name: "Alice Kim", Email: "alice@example.com", City: "Almaty",
				Registration: reg(shared.ApprovalApproved, shared.AccountActive), Rating: 4.8, TotalStudents: 12,
				EarningsTotal: decimal.NewFromInt(2000), PendingPayment: decimal.NewFromInt(120),
				StripeStatus: instructor.StripeConnected, JoinedAt: Now.Add(-90 * 24 * time.Hour)},
			{ID: "I2", Name: "Bob Lee", Email: "bob@example.com", City: "Astana",
				Registration: reg(shared.ApprovalPending, shared.AccountActive),
				PendingPayment: decimal.Zero, StripeStatus: instructor.StripePending, JoinedAt: Now.Add(-2 * 24 * time.Hour)},
			{ID: "I3", Name: "Carol Ivanova", Email: "carol@example.com", City: "Almaty",
				Registration: reg(shared.ApprovalApproved, shared.AccountSuspended), Rating: 4.1, TotalStudents: 5,
				EarningsTotal: decimal.NewFromInt(800), PendingPayment: decimal.NewFromInt(50),
				StripeStatus: instructor.StripeNotConnected, JoinedAt: Now.Add(-60 * 24 * time.Hour)},
		},
		Transactions: []payout.Transaction{
			{ID: "TXN-0001", InstructorID: "I1", InstructorName: "Alice Kim", Amount: decimal.NewFromInt(80),
				Date: Now.Add(-72 * time.Hour), Status: payout.StatusPending, Method: payout.MethodStripeTransfer},
			{ID: "TXN-0002", InstructorID: "I2", InstructorName: "Bob Lee", Amount: decimal.NewFromInt(40),
				Date: Now.Add(-48 * time.Hour), Status: payout.StatusPaid, Method: payout.MethodStripeTransfer},
		},
		Conversations: []inbox.Conversation{
			{ID: "C1", InstructorID: "I1", InstructorName: "Alice Kim", Status: inbox.StatusUnread, UnreadCount: 2,
				LastMessage: "When is my payout?", LastMessageAt: Now.Add(-1 * time.Hour)},
			{ID: "C2", InstructorID: "I2", InstructorName: "Bob Lee", Status: inbox.StatusRead,
				LastMessage: "Thanks!", LastMessageAt: Now.Add(-5 * time.Hour)},
			{ID: "C3", InstructorID: "I3", InstructorName: "Carol Ivanova", Status: inbox.StatusResolved,
				LastMessage: "Documents uploaded", LastMessageAt: Now.Add(-3 * time.Hour)},
		},
		Messages: []inbox.ChatMessage{
			{ID: "MSG-0001", ConversationID: "C1", SenderType: inbox.SenderInstructor, Text: "Hi",
				SentAt: Now.Add(-2 * time.Hour)},
			{ID: "MSG-0002", ConversationID: "C1", SenderType: inbox.SenderInstructor, Text: "When is my payout?",
				SentAt: Now.Add(-1 * time.Hour)},
		},
		Packages: []catalog.Package{
			{ID: "P1", InstructorID: "I1", InstructorName: "Alice Kim", Title: "Starter", Lessons: 5,
				Price: decimal.NewFromInt(300), CommissionPercentage: 15, Status: shared.ApprovalPending,
				CreatedAt: Now.Add(-24 * time.Hour)},
			{ID: "P2", InstructorID: "I2", InstructorName: "Bob Lee", Title: "Highway", Lessons: 3,
				Price: decimal.NewFromInt(450), CommissionPercentage: 10, Status: shared.ApprovalApproved,
				CreatedAt: Now.Add(-10 * 24 * time.Hour)},
		},
		Settings: settings.Defaults(),
		Seq:      console.Sequence{Transaction: 2, Message: 2},
	}
	s.Stats.MonthlyRevenue = decimal.NewFromInt(4500)
	s.Stats = console.Recompute(s)
	return s
}
