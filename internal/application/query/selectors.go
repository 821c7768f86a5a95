// Package query contains read operations (CQRS - Queries).
package query

import (
	"sort"
	"time"

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
// SELECTORS
// Селекторы читают текущий снимок состояния и никогда его не меняют.
// Каждый вызов берёт свежий снимок, поэтому после Dispatch достаточно
// вызвать селектор повторно.
// ══════════════════════════════════════════════════════════════════════════════

// StateReader supplies the current state snapshot.
type StateReader interface {
	State() console.State
}

// Selectors are the read side of the console.
type Selectors struct {
	src StateReader
}

// NewSelectors creates selectors over src.
func NewSelectors(src StateReader) *Selectors {
	return &Selectors{src: src}
}

// Stats returns the dashboard counters.
func (q *Selectors) Stats() console.Stats {
	return q.src.State().Stats
}

// Settings returns the platform settings.
func (q *Selectors) Settings() settings.Settings {
	return q.src.State().Settings
}

// ─────────────────────────────────────────────────────────────────────────────
// Students
// ─────────────────────────────────────────────────────────────────────────────

// StudentFilter narrows the student list. Zero fields match everything.
type StudentFilter struct {
	Approval shared.ApprovalStatus
	Account  shared.AccountStatus
	Search   string
}

func (f StudentFilter) match(s *student.Student) bool {
	if f.Approval != "" && s.ApprovalStatus != f.Approval {
		return false
	}
	if f.Account != "" && s.AccountStatus != f.Account {
		return false
	}
	return f.Search == "" || s.Matches(f.Search)
}

// Students returns matching students in seed order.
func (q *Selectors) Students(f StudentFilter) []student.Student {
	all := q.src.State().Students
	out := make([]student.Student, 0, len(all))
	for i := range all {
		if f.match(&all[i]) {
			out = append(out, *all[i].Clone())
		}
	}
	return out
}

// Student returns one student.
func (q *Selectors) Student(id string) (student.Student, error) {
	st, ok := q.src.State().FindStudent(id)
	if !ok {
		return student.Student{}, shared.ErrStudentNotFound
	}
	return st, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Instructors
// ─────────────────────────────────────────────────────────────────────────────

// InstructorFilter narrows the instructor list. Zero fields match everything.
type InstructorFilter struct {
	Approval shared.ApprovalStatus
	Account  shared.AccountStatus
	Stripe   instructor.StripeStatus
	Search   string
}

func (f InstructorFilter) match(in *instructor.Instructor) bool {
	if f.Approval != "" && in.ApprovalStatus != f.Approval {
		return false
	}
	if f.Account != "" && in.AccountStatus != f.Account {
		return false
	}
	if f.Stripe != "" && in.StripeStatus != f.Stripe {
		return false
	}
	return f.Search == "" || in.Matches(f.Search)
}

// Instructors returns matching instructors in seed order.
func (q *Selectors) Instructors(f InstructorFilter) []instructor.Instructor {
	all := q.src.State().Instructors
	out := make([]instructor.Instructor, 0, len(all))
	for i := range all {
		if f.match(&all[i]) {
			out = append(out, *all[i].Clone())
		}
	}
	return out
}

// Instructor returns one instructor.
func (q *Selectors) Instructor(id string) (instructor.Instructor, error) {
	in, ok := q.src.State().FindInstructor(id)
	if !ok {
		return instructor.Instructor{}, shared.ErrInstructorNotFound
	}
	return in, nil
}

// ApprovalItem is one entry of the approval queue.
type ApprovalItem struct {
	Kind     string    `json:"kind"` // "student" or "instructor"
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	City     string    `json:"city"`
	JoinedAt time.Time `json:"joinedAt"`
}

// PendingApprovals returns students and instructors awaiting a decision,
// oldest registration first. Its length always equals Stats().PendingApprovals.
func (q *Selectors) PendingApprovals() []ApprovalItem {
	s := q.src.State()
	var out []ApprovalItem
	for _, st := range s.Students {
		if st.IsPending() {
			out = append(out, ApprovalItem{Kind: "student", ID: st.ID, Name: st.Name, Email: st.Email, City: st.City, JoinedAt: st.JoinedAt})
		}
	}
	for _, in := range s.Instructors {
		if in.IsPending() {
			out = append(out, ApprovalItem{Kind: "instructor", ID: in.ID, Name: in.Name, Email: in.Email, City: in.City, JoinedAt: in.JoinedAt})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Payouts
// ─────────────────────────────────────────────────────────────────────────────

// TransactionFilter narrows the transaction list.
type TransactionFilter struct {
	InstructorID string
	Status       payout.Status
}

// Transactions returns matching transactions, newest first. Transactions
// with the same date keep reverse creation order.
func (q *Selectors) Transactions(f TransactionFilter) []payout.Transaction {
	all := q.src.State().Transactions
	out := make([]payout.Transaction, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		t := all[i]
		if f.InstructorID != "" && t.InstructorID != f.InstructorID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Inbox
// ─────────────────────────────────────────────────────────────────────────────

// ConversationFilter narrows the conversation list.
type ConversationFilter struct {
	Status inbox.Status
}

// Conversations returns matching conversations, most recent message first.
func (q *Selectors) Conversations(f ConversationFilter) []inbox.Conversation {
	all := q.src.State().Conversations
	out := make([]inbox.Conversation, 0, len(all))
	for _, c := range all {
		if f.Status == "" || c.Status == f.Status {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out
}

// UnreadTotal sums unread counters across conversations.
func (q *Selectors) UnreadTotal() int {
	total := 0
	for _, c := range q.src.State().Conversations {
		total += c.UnreadCount
	}
	return total
}

// Messages returns the messages of a conversation in dispatch order.
func (q *Selectors) Messages(conversationID string) ([]inbox.ChatMessage, error) {
	s := q.src.State()
	if s.ConversationIndex(conversationID) < 0 {
		return nil, shared.ErrConversationNotFound
	}
	out := make([]inbox.ChatMessage, 0)
	for _, m := range s.Messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalog
// ─────────────────────────────────────────────────────────────────────────────

// PackageFilter narrows the package list.
type PackageFilter struct {
	Status       shared.ApprovalStatus
	InstructorID string
}

// Packages returns matching packages in seed order.
func (q *Selectors) Packages(f PackageFilter) []catalog.Package {
	all := q.src.State().Packages
	out := make([]catalog.Package, 0, len(all))
	for _, p := range all {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.InstructorID != "" && p.InstructorID != f.InstructorID {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Package returns one package.
func (q *Selectors) Package(id string) (catalog.Package, error) {
	p, ok := q.src.State().FindPackage(id)
	if !ok {
		return catalog.Package{}, shared.ErrPackageNotFound
	}
	return p, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Pagination
// ─────────────────────────────────────────────────────────────────────────────

// Page is one page of a selector result.
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// Paginate cuts one page out of items.
func Paginate[T any](items []T, p shared.Pagination) Page[T] {
	start, end := p.Bounds(len(items))
	page := p.Page
	if page <= 0 {
		page = 1
	}
	return Page[T]{
		Items:    items[start:end],
		Total:    len(items),
		Page:     page,
		PageSize: p.Limit(),
	}
}
