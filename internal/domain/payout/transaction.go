// Package payout содержит доменную модель финансовых транзакций:
// начисления инструкторам и переводы выплат.
package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status - статус транзакции.
type Status string

const (
	StatusPaid    Status = "paid"
	StatusPending Status = "pending"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	return s == StatusPaid || s == StatusPending
}

const (
	// MethodStripeTransfer - способ оплаты для переводов из консоли.
	MethodStripeTransfer = "Stripe Transfer"

	// UnknownInstructor подставляется, когда инструктор не найден.
	UnknownInstructor = "Unknown"

	// IDPrefix - префикс последовательных идентификаторов транзакций.
	IDPrefix = "TXN"
)

// Transaction - неизменяемая после создания запись о движении денег.
// InstructorID - слабая ссылка: используется только для поиска.
type Transaction struct {
	ID             string          `json:"id"`
	InstructorID   string          `json:"instructorId"`
	InstructorName string          `json:"instructorName"`
	Amount         decimal.Decimal `json:"amount"`
	Date           time.Time       `json:"date"`
	Status         Status          `json:"status"`
	Method         string          `json:"method"`
	Description    string          `json:"description"`
}

// NewTransfer создаёт оплаченную транзакцию перевода.
func NewTransfer(id, instructorID, instructorName string, amount decimal.Decimal, at time.Time) Transaction {
	return Transaction{
		ID:             id,
		InstructorID:   instructorID,
		InstructorName: instructorName,
		Amount:         amount,
		Date:           at,
		Status:         StatusPaid,
		Method:         MethodStripeTransfer,
		Description:    fmt.Sprintf("Payout to %s", instructorName),
	}
}

// IsPendingFor проверяет, что транзакция ожидает оплаты для инструктора.
func (t Transaction) IsPendingFor(instructorID string) bool {
	return t.Status == StatusPending && t.InstructorID == instructorID
}

// Paid возвращает копию транзакции в статусе paid.
func (t Transaction) Paid() Transaction {
	t.Status = StatusPaid
	return t
}

// FormatID форматирует последовательный идентификатор транзакции.
func FormatID(n int) string {
	return fmt.Sprintf("%s-%04d", IDPrefix, n)
}

// Reader загружает историю транзакций из источника начальных данных.
type Reader interface {
	ListTransactions(ctx context.Context) ([]Transaction, error)
}
