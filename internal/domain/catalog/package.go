// Package catalog содержит пакеты занятий, которые инструкторы
// публикуют на платформе после одобрения администратором.
package catalog

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/drivehub/admin-console/internal/domain/shared"
)

// Package - набор занятий по фиксированной цене.
// InstructorID - слабая ссылка на автора.
type Package struct {
	ID                   string                `json:"id"`
	InstructorID         string                `json:"instructorId"`
	InstructorName       string                `json:"instructorName"`
	Title                string                `json:"title"`
	Description          string                `json:"description"`
	Lessons              int                   `json:"lessons"`
	Price                decimal.Decimal       `json:"price"`
	CommissionPercentage float64               `json:"commissionPercentage"`
	Status               shared.ApprovalStatus `json:"status"`
	CreatedAt            time.Time             `json:"createdAt"`
}

// Approve публикует пакет.
func (p *Package) Approve() bool {
	return p.setStatus(shared.ApprovalApproved)
}

// Reject отклоняет пакет.
func (p *Package) Reject() bool {
	return p.setStatus(shared.ApprovalRejected)
}

func (p *Package) setStatus(status shared.ApprovalStatus) bool {
	if p.Status == status {
		return false
	}
	p.Status = status
	return true
}

// SetCommission перезаписывает комиссию платформы без проверки диапазона.
// Диапазон проверяется до того, как значение попадает в консоль.
func (p *Package) SetCommission(pct float64) bool {
	if p.CommissionPercentage == pct {
		return false
	}
	p.CommissionPercentage = pct
	return true
}

// PlatformFee возвращает долю платформы с цены пакета.
func (p *Package) PlatformFee() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromFloat(p.CommissionPercentage)).Div(decimal.NewFromInt(100)).Round(2)
}

// Validate проверяет инварианты пакета.
func (p *Package) Validate() error {
	if !p.Status.IsValid() {
		return shared.ErrInvalidApprovalStatus
	}
	if p.Price.IsNegative() {
		return shared.NewDomainError("catalog", "Validate", shared.ErrNegativeValue, "price cannot be negative")
	}
	return shared.ValidateCommission(p.CommissionPercentage)
}

// Reader загружает пакеты из источника начальных данных.
type Reader interface {
	ListPackages(ctx context.Context) ([]Package, error)
}
