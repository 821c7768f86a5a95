package seed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/drivehub/admin-console/internal/domain/console"
	"github.com/drivehub/admin-console/internal/domain/settings"
	"github.com/drivehub/admin-console/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEED FILE DTOs
// Формат файла начальных данных. Даты принимаются как в RFC 3339, так и в
// коротком виде ("2026-03-14" или "2026-03-14 10:30"), суммы - строками
// или числами. Отсутствующие счётчики пересчитываются при нормализации.
// ══════════════════════════════════════════════════════════════════════════════

// Document is the top-level structure of a seed file.
type Document struct {
	Students      []StudentDTO       `json:"students"`
	Instructors   []InstructorDTO    `json:"instructors"`
	Transactions  []TransactionDTO   `json:"transactions"`
	Conversations []ConversationDTO  `json:"conversations"`
	Messages      []MessageDTO       `json:"messages"`
	Packages      []PackageDTO       `json:"packages"`
	Settings      *settings.Settings `json:"settings,omitempty"`
	Stats         *StatsDTO          `json:"stats,omitempty"`
}

// StudentDTO is a student record as stored in a seed file.
type StudentDTO struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Email            string      `json:"email"`
	Phone            string      `json:"phone"`
	City             string      `json:"city"`
	ApprovalStatus   string      `json:"approvalStatus"`
	AccountStatus    string      `json:"accountStatus"`
	LessonsCompleted *int        `json:"lessonsCompleted,omitempty"`
	UpcomingLessons  *int        `json:"upcomingLessons,omitempty"`
	InstructorID     string      `json:"instructorId,omitempty"`
	Lessons          []LessonDTO `json:"lessons"`
	JoinedAt         Timestamp   `json:"joinedAt"`
}

// LessonDTO is one lesson of a student.
type LessonDTO struct {
	ID           string    `json:"id"`
	Date         Timestamp `json:"date"`
	Topic        string    `json:"topic"`
	InstructorID string    `json:"instructorId"`
	Status       string    `json:"status"`
}

// InstructorDTO is an instructor record as stored in a seed file.
type InstructorDTO struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	Phone          string        `json:"phone"`
	City           string        `json:"city"`
	ApprovalStatus string        `json:"approvalStatus"`
	AccountStatus  string        `json:"accountStatus"`
	Rating         float64       `json:"rating"`
	TotalStudents  int           `json:"totalStudents"`
	EarningsTotal  Amount        `json:"earningsTotal"`
	PendingPayment Amount        `json:"pendingPayment"`
	StripeStatus   string        `json:"stripeStatus"`
	Documents      []DocumentDTO `json:"documents"`
	JoinedAt       Timestamp     `json:"joinedAt"`
}

// DocumentDTO is an uploaded instructor document.
type DocumentDTO struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	UploadedAt Timestamp `json:"uploadedAt"`
}

// TransactionDTO is a payout history record.
type TransactionDTO struct {
	ID             string    `json:"id"`
	InstructorID   string    `json:"instructorId"`
	InstructorName string    `json:"instructorName"`
	Amount         Amount    `json:"amount"`
	Date           Timestamp `json:"date"`
	Status         string    `json:"status"`
	Method         string    `json:"method"`
	Description    string    `json:"description"`
}

// ConversationDTO is an inbox conversation.
type ConversationDTO struct {
	ID             string    `json:"id"`
	InstructorID   string    `json:"instructorId"`
	InstructorName string    `json:"instructorName"`
	Status         string    `json:"status"`
	UnreadCount    int       `json:"unreadCount"`
	LastMessage    string    `json:"lastMessage"`
	LastMessageAt  Timestamp `json:"lastMessageAt"`
}

// MessageDTO is one chat message.
type MessageDTO struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderType     string    `json:"senderType"`
	Text           string    `json:"text"`
	SentAt         Timestamp `json:"sentAt"`
	Seen           bool      `json:"seen"`
}

// PackageDTO is a lesson package.
type PackageDTO struct {
	ID                   string    `json:"id"`
	InstructorID         string    `json:"instructorId"`
	InstructorName       string    `json:"instructorName"`
	Title                string    `json:"title"`
	Description          string    `json:"description"`
	Lessons              int       `json:"lessons"`
	Price                Amount    `json:"price"`
	CommissionPercentage float64   `json:"commissionPercentage"`
	Status               string    `json:"status"`
	CreatedAt            Timestamp `json:"createdAt"`
}

// StatsDTO carries the counters a seed may pin explicitly. Only
// MonthlyRevenue has no entity-level source.
type StatsDTO struct {
	MonthlyRevenue Amount `json:"monthlyRevenue"`
}

// ══════════════════════════════════════════════════════════════════════════════
// SCALAR TYPES
// ══════════════════════════════════════════════════════════════════════════════

// Timestamp accepts the timestamp layouts supported by timeutil.ParseTimestamp.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := timeutil.ParseTimestamp(raw)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// Amount accepts a decimal written either as a JSON string or a number.
type Amount struct {
	Raw string
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		a.Raw = s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("amount must be a string or number: %w", err)
	}
	a.Raw = n.String()
	return nil
}

// decode parses a seed document.
func decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode seed document: %w", err)
	}
	return &doc, nil
}

// Encode writes a state as a seed document, e.g. to export the current
// console state for a later restart.
func Encode(s console.State) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
