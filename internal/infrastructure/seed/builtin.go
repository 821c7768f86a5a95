package seed

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

// ══════════════════════════════════════════════════════════════════════════════
// DEMO MARKETPLACE
// Демонстрационные данные для локального запуска: все даты отсчитываются
// от переданного момента, поэтому "недавние" записи всегда недавние.
// ══════════════════════════════════════════════════════════════════════════════

const day = 24 * time.Hour

func money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func ptr(s string) *string { return &s }

// Demo returns the demo marketplace with stats derived from the entities.
func Demo(now time.Time) console.State {
	now = now.UTC().Truncate(time.Minute)
	at := func(d time.Duration) time.Time { return now.Add(-d) }
	reg := func(a shared.ApprovalStatus, acc shared.AccountStatus) shared.Registration {
		return shared.Registration{ApprovalStatus: a, AccountStatus: acc}
	}

	s := console.State{
		Students: []student.Student{
			{
				ID: "STU-001", Name: "Emma Thompson", Email: "emma.t@example.com", Phone: "+1 555-0101", City: "Austin",
				Registration: reg(shared.ApprovalApproved, shared.AccountActive), InstructorID: ptr("INS-001"),
				Lessons: []student.Lesson{
					{ID: "LES-001", Date: at(20 * day), Topic: "Parking basics", InstructorID: "INS-001", Status: student.LessonCompleted},
					{ID: "LES-002", Date: at(13 * day), Topic: "City traffic", InstructorID: "INS-001", Status: student.LessonCompleted},
					{ID: "LES-003", Date: now.Add(2 * day), Topic: "Highway merging", InstructorID: "INS-001", Status: student.LessonUpcoming},
				},
				JoinedAt: at(45 * day),
			},
			{
				ID: "STU-002", Name: "Liam Carter", Email: "liam.c@example.com", Phone: "+1 555-0102", City: "Dallas",
				Registration: reg(shared.ApprovalPending, shared.AccountActive),
				Lessons:      []student.Lesson{}, JoinedAt: at(2 * day),
			},
			{
				ID: "STU-003", Name: "Sofia Martinez", Email: "sofia.m@example.com", Phone: "+1 555-0103", City: "Austin",
				Registration: reg(shared.ApprovalApproved, shared.AccountActive), InstructorID: ptr("INS-002"),
				Lessons: []student.Lesson{
					{ID: "LES-004", Date: at(6 * day), Topic: "Night driving", InstructorID: "INS-002", Status: student.LessonCompleted},
					{ID: "LES-005", Date: at(3 * day), Topic: "Parallel parking", InstructorID: "INS-002", Status: student.LessonCancelled},
					{ID: "LES-006", Date: now.Add(1 * day), Topic: "Roundabouts", InstructorID: "INS-002", Status: student.LessonUpcoming},
					{ID: "LES-007", Date: now.Add(4 * day), Topic: "Road test rehearsal", InstructorID: "INS-002", Status: student.LessonUpcoming},
				},
				JoinedAt: at(30 * day),
			},
			{
				ID: "STU-004", Name: "Noah Williams", Email: "noah.w@example.com", Phone: "+1 555-0104", City: "Houston",
				Registration: reg(shared.ApprovalApproved, shared.AccountSuspended), InstructorID: ptr("INS-001"),
				Lessons: []student.Lesson{
					{ID: "LES-008", Date: at(40 * day), Topic: "Vehicle controls", InstructorID: "INS-001", Status: student.LessonCompleted},
				},
				JoinedAt: at(60 * day),
			},
			{
				ID: "STU-005", Name: "Ava Johnson", Email: "ava.j@example.com", Phone: "+1 555-0105", City: "Dallas",
				Registration: reg(shared.ApprovalPending, shared.AccountActive),
				Lessons:      []student.Lesson{}, JoinedAt: at(1 * day),
			},
			{
				ID: "STU-006", Name: "Mason Lee", Email: "mason.l@example.com", Phone: "+1 555-0106", City: "Houston",
				Registration: reg(shared.ApprovalRejected, shared.AccountInactive),
				Lessons:      []student.Lesson{}, JoinedAt: at(15 * day),
			},
		},
		Instructors: []instructor.Instructor{
			{
				ID: "INS-001", Name: "Michael Brown", Email: "michael.b@example.com", Phone: "+1 555-0201", City: "Austin",
				Registration: reg(shared.ApprovalApproved, shared.AccountActive), Rating: 4.9, TotalStudents: 2,
				EarningsTotal: money("12450.00"), PendingPayment: money("850.00"), StripeStatus: instructor.StripeConnected,
				Documents: []instructor.DocumentItem{
					{ID: "DOC-001", Name: "Driving instructor license", Status: instructor.DocumentVerified, UploadedAt: at(120 * day)},
					{ID: "DOC-002", Name: "Vehicle insurance", Status: instructor.DocumentVerified, UploadedAt: at(118 * day)},
				},
				JoinedAt: at(120 * day),
			},
			{
				ID: "INS-002", Name: "Sarah Davis", Email: "sarah.d@example.com", Phone: "+1 555-0202", City: "Austin",
				Registration: reg(shared.ApprovalApproved, shared.AccountActive), Rating: 4.7, TotalStudents: 1,
				EarningsTotal: money("8320.50"), PendingPayment: money("420.50"), StripeStatus: instructor.StripeConnected,
				Documents: []instructor.DocumentItem{
					{ID: "DOC-003", Name: "Driving instructor license", Status: instructor.DocumentVerified, UploadedAt: at(90 * day)},
				},
				JoinedAt: at(90 * day),
			},
			{
				ID: "INS-003", Name: "James Wilson", Email: "james.w@example.com", Phone: "+1 555-0203", City: "Dallas",
				Registration: reg(shared.ApprovalPending, shared.AccountActive),
				EarningsTotal: decimal.Zero, PendingPayment: decimal.Zero, StripeStatus: instructor.StripePending,
				Documents: []instructor.DocumentItem{
					{ID: "DOC-004", Name: "Driving instructor license", Status: instructor.DocumentPending, UploadedAt: at(3 * day)},
					{ID: "DOC-005", Name: "Background check", Status: instructor.DocumentPending, UploadedAt: at(3 * day)},
				},
				JoinedAt: at(3 * day),
			},
			{
				ID: "INS-004", Name: "Olivia Garcia", Email: "olivia.g@example.com", Phone: "+1 555-0204", City: "Houston",
				Registration: reg(shared.ApprovalApproved, shared.AccountSuspended), Rating: 3.9,
				EarningsTotal: money("2100.00"), PendingPayment: money("175.00"), StripeStatus: instructor.StripeNotConnected,
				Documents: []instructor.DocumentItem{
					{ID: "DOC-006", Name: "Vehicle insurance", Status: instructor.DocumentRejected, UploadedAt: at(20 * day)},
				},
				JoinedAt: at(75 * day),
			},
		},
		Transactions: []payout.Transaction{
			{ID: "TXN-0001", InstructorID: "INS-001", InstructorName: "Michael Brown", Amount: money("1200.00"),
				Date: at(14 * day), Status: payout.StatusPaid, Method: payout.MethodStripeTransfer, Description: "Payout to Michael Brown"},
			{ID: "TXN-0002", InstructorID: "INS-002", InstructorName: "Sarah Davis", Amount: money("640.00"),
				Date: at(14 * day), Status: payout.StatusPaid, Method: payout.MethodStripeTransfer, Description: "Payout to Sarah Davis"},
			{ID: "TXN-0003", InstructorID: "INS-001", InstructorName: "Michael Brown", Amount: money("850.00"),
				Date: at(2 * day), Status: payout.StatusPending, Method: payout.MethodStripeTransfer, Description: "Lessons completed this week"},
			{ID: "TXN-0004", InstructorID: "INS-002", InstructorName: "Sarah Davis", Amount: money("420.50"),
				Date: at(1 * day), Status: payout.StatusPending, Method: payout.MethodStripeTransfer, Description: "Lessons completed this week"},
		},
		Conversations: []inbox.Conversation{
			{ID: "CONV-001", InstructorID: "INS-001", InstructorName: "Michael Brown", Status: inbox.StatusUnread,
				UnreadCount: 2, LastMessage: "Can I reschedule Friday's lesson?", LastMessageAt: at(30 * time.Minute)},
			{ID: "CONV-002", InstructorID: "INS-003", InstructorName: "James Wilson", Status: inbox.StatusRead,
				LastMessage: "I uploaded my background check.", LastMessageAt: at(5 * time.Hour)},
			{ID: "CONV-003", InstructorID: "INS-002", InstructorName: "Sarah Davis", Status: inbox.StatusResolved,
				LastMessage: "Thanks, the payout arrived.", LastMessageAt: at(3 * day)},
		},
		Messages: []inbox.ChatMessage{
			{ID: "MSG-0001", ConversationID: "CONV-001", SenderType: inbox.SenderInstructor,
				Text: "Hi, a student asked to move a lesson.", SentAt: at(40 * time.Minute)},
			{ID: "MSG-0002", ConversationID: "CONV-001", SenderType: inbox.SenderInstructor,
				Text: "Can I reschedule Friday's lesson?", SentAt: at(30 * time.Minute)},
			{ID: "MSG-0003", ConversationID: "CONV-002", SenderType: inbox.SenderInstructor,
				Text: "I uploaded my background check.", SentAt: at(5 * time.Hour), Seen: true},
			{ID: "MSG-0004", ConversationID: "CONV-003", SenderType: inbox.SenderInstructor,
				Text: "When will the payout arrive?", SentAt: at(4 * day), Seen: true},
			{ID: "MSG-0005", ConversationID: "CONV-003", SenderType: inbox.SenderAdmin,
				Text: "It was sent this morning.", SentAt: at(4*day - 2*time.Hour), Seen: true},
			{ID: "MSG-0006", ConversationID: "CONV-003", SenderType: inbox.SenderInstructor,
				Text: "Thanks, the payout arrived.", SentAt: at(3 * day), Seen: true},
		},
		Packages: []catalog.Package{
			{ID: "PKG-001", InstructorID: "INS-001", InstructorName: "Michael Brown", Title: "Beginner Bundle",
				Description: "Five lessons covering vehicle controls and city driving.", Lessons: 5,
				Price: money("250.00"), CommissionPercentage: 15, Status: shared.ApprovalApproved, CreatedAt: at(100 * day)},
			{ID: "PKG-002", InstructorID: "INS-002", InstructorName: "Sarah Davis", Title: "Road Test Prep",
				Description: "Three mock road tests with feedback.", Lessons: 3,
				Price: money("180.00"), CommissionPercentage: 15, Status: shared.ApprovalApproved, CreatedAt: at(60 * day)},
			{ID: "PKG-003", InstructorID: "INS-001", InstructorName: "Michael Brown", Title: "Highway Confidence",
				Description: "Two long highway sessions.", Lessons: 2,
				Price: money("140.00"), CommissionPercentage: 12.5, Status: shared.ApprovalPending, CreatedAt: at(1 * day)},
			{ID: "PKG-004", InstructorID: "INS-004", InstructorName: "Olivia Garcia", Title: "Weekend Intensive",
				Description: "Eight lessons over two weekends.", Lessons: 8,
				Price: money("380.00"), CommissionPercentage: 20, Status: shared.ApprovalRejected, CreatedAt: at(25 * day)},
		},
		Settings: settings.Defaults(),
		Stats:    console.Stats{MonthlyRevenue: money("18540.00")},
		Seq:      console.Sequence{Transaction: 4, Message: 6},
	}

	for i := range s.Students {
		s.Students[i].LessonsCompleted = s.Students[i].CountLessons(student.LessonCompleted)
		s.Students[i].UpcomingLessons = s.Students[i].CountLessons(student.LessonUpcoming)
	}
	s.Stats = console.Recompute(s)
	return s
}
