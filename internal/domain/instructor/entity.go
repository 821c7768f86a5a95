// Package instructor содержит доменную модель инструктора автошколы:
// статусы регистрации, финансовые поля и проверку документов.
package instructor

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/drivehub/admin-console/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// StripeStatus - состояние подключения платёжного аккаунта.
type StripeStatus string

const (
	StripeConnected    StripeStatus = "connected"
	StripePending      StripeStatus = "pending"
	StripeNotConnected StripeStatus = "not_connected"
)

// IsValid проверяет, что статус корректен.
func (s StripeStatus) IsValid() bool {
	switch s {
	case StripeConnected, StripePending, StripeNotConnected:
		return true
	default:
		return false
	}
}

// DocumentStatus - статус проверки документа.
type DocumentStatus string

const (
	DocumentVerified DocumentStatus = "verified"
	DocumentPending  DocumentStatus = "pending"
	DocumentRejected DocumentStatus = "rejected"
)

// IsValid проверяет, что статус корректен.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentVerified, DocumentPending, DocumentRejected:
		return true
	default:
		return false
	}
}

// DocumentItem - загруженный инструктором документ (лицензия, страховка и т.п.).
type DocumentItem struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Status     DocumentStatus `json:"status"`
	UploadedAt time.Time      `json:"uploadedAt"`
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: INSTRUCTOR
// ══════════════════════════════════════════════════════════════════════════════

// Instructor - инструктор, предлагающий занятия на платформе.
type Instructor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	City  string `json:"city"`

	shared.Registration

	// Rating - средняя оценка от учеников (0.0 - 5.0).
	Rating float64 `json:"rating"`

	// TotalStudents - количество учеников, закреплённых за инструктором.
	TotalStudents int `json:"totalStudents"`

	// EarningsTotal - сумма всех заработков за всё время, не убывает.
	EarningsTotal decimal.Decimal `json:"earningsTotal"`

	// PendingPayment - сумма к выплате, обнуляется переводом.
	PendingPayment decimal.Decimal `json:"pendingPayment"`

	StripeStatus StripeStatus   `json:"stripeStatus"`
	Documents    []DocumentItem `json:"documents"`
	JoinedAt     time.Time      `json:"joinedAt"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	ErrMissingID       = errors.New("instructor id is required")
	ErrInvalidName     = errors.New("invalid instructor name: must be 1-100 chars")
	ErrInvalidRating   = errors.New("invalid rating: must be between 0.0 and 5.0")
	ErrNegativeMoney   = errors.New("earnings and pending payment must be non-negative")
	ErrInvalidStripe   = errors.New("invalid stripe status")
	ErrInvalidDocument = errors.New("invalid document status")
)

// Validate проверяет инварианты сущности.
func (i *Instructor) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return ErrMissingID
	}
	if n := len(strings.TrimSpace(i.Name)); n == 0 || n > 100 {
		return ErrInvalidName
	}
	if err := i.Registration.Validate(); err != nil {
		return err
	}
	if i.Rating < 0 || i.Rating > 5 {
		return ErrInvalidRating
	}
	if i.EarningsTotal.IsNegative() || i.PendingPayment.IsNegative() {
		return ErrNegativeMoney
	}
	if !i.StripeStatus.IsValid() {
		return ErrInvalidStripe
	}
	for _, d := range i.Documents {
		if !d.Status.IsValid() {
			return ErrInvalidDocument
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// HasPendingPayment возвращает true, если инструктору есть что выплатить.
func (i *Instructor) HasPendingPayment() bool {
	return i.PendingPayment.IsPositive()
}

// SettlePayment обнуляет сумму к выплате и возвращает выплаченную сумму.
func (i *Instructor) SettlePayment() decimal.Decimal {
	paid := i.PendingPayment
	i.PendingPayment = decimal.Zero
	return paid
}

// PendingDocuments возвращает количество непроверенных документов.
func (i *Instructor) PendingDocuments() int {
	n := 0
	for _, d := range i.Documents {
		if d.Status == DocumentPending {
			n++
		}
	}
	return n
}

// Matches проверяет вхождение строки поиска в имя, email или город.
func (i *Instructor) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(i.Name), q) ||
		strings.Contains(strings.ToLower(i.Email), q) ||
		strings.Contains(strings.ToLower(i.City), q)
}

// Clone создаёт глубокую копию инструктора.
func (i *Instructor) Clone() *Instructor {
	if i == nil {
		return nil
	}
	clone := *i
	if i.Documents != nil {
		clone.Documents = make([]DocumentItem, len(i.Documents))
		copy(clone.Documents, i.Documents)
	}
	return &clone
}
