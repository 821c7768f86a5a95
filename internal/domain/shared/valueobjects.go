package shared

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ═══════════════════════════════════════════════════════════════════════════
// Registration Lifecycle
// ═══════════════════════════════════════════════════════════════════════════

// ApprovalStatus is the lifecycle stage of a registration request. The same
// lifecycle applies to students, instructors and lesson packages.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// IsValid checks if the approval status is valid.
func (s ApprovalStatus) IsValid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
		return true
	}
	return false
}

// IsPending reports whether a decision is still outstanding.
func (s ApprovalStatus) IsPending() bool {
	return s == ApprovalPending
}

// String returns the string representation.
func (s ApprovalStatus) String() string {
	return string(s)
}

// ParseApprovalStatus parses a case-insensitive approval status.
func ParseApprovalStatus(value string) (ApprovalStatus, error) {
	s := ApprovalStatus(strings.ToLower(strings.TrimSpace(value)))
	if !s.IsValid() {
		return "", ErrInvalidApprovalStatus
	}
	return s, nil
}

// AccountStatus is the operational usability of an account.
type AccountStatus string

const (
	AccountActive    AccountStatus = "active"
	AccountSuspended AccountStatus = "suspended"
	AccountInactive  AccountStatus = "inactive"
)

// IsValid checks if the account status is valid.
func (s AccountStatus) IsValid() bool {
	switch s {
	case AccountActive, AccountSuspended, AccountInactive:
		return true
	}
	return false
}

// String returns the string representation.
func (s AccountStatus) String() string {
	return string(s)
}

// ParseAccountStatus parses a case-insensitive account status.
func ParseAccountStatus(value string) (AccountStatus, error) {
	s := AccountStatus(strings.ToLower(strings.TrimSpace(value)))
	if !s.IsValid() {
		return "", ErrInvalidAccountStatus
	}
	return s, nil
}

// Registration is the approval/account status pair shared by students and
// instructors. Mutators report whether anything changed.
type Registration struct {
	ApprovalStatus ApprovalStatus `json:"approvalStatus"`
	AccountStatus  AccountStatus  `json:"accountStatus"`
}

// IsPending reports whether the registration awaits a decision.
func (r Registration) IsPending() bool {
	return r.ApprovalStatus.IsPending()
}

// Approve sets the approval status to approved.
func (r *Registration) Approve() bool {
	if r.ApprovalStatus == ApprovalApproved {
		return false
	}
	r.ApprovalStatus = ApprovalApproved
	return true
}

// Reject sets the approval status to rejected and deactivates the account.
func (r *Registration) Reject() bool {
	if r.ApprovalStatus == ApprovalRejected && r.AccountStatus == AccountInactive {
		return false
	}
	r.ApprovalStatus = ApprovalRejected
	r.AccountStatus = AccountInactive
	return true
}

// Suspend sets the account status to suspended.
func (r *Registration) Suspend() bool {
	if r.AccountStatus == AccountSuspended {
		return false
	}
	r.AccountStatus = AccountSuspended
	return true
}

// Activate sets the account status to active.
func (r *Registration) Activate() bool {
	if r.AccountStatus == AccountActive {
		return false
	}
	r.AccountStatus = AccountActive
	return true
}

// Validate checks both statuses.
func (r Registration) Validate() error {
	if !r.ApprovalStatus.IsValid() {
		return ErrInvalidApprovalStatus
	}
	if !r.AccountStatus.IsValid() {
		return ErrInvalidAccountStatus
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Money & Commission
// ═══════════════════════════════════════════════════════════════════════════

// FloorZero returns d, or zero when d is negative.
func FloorZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ParseAmount parses a decimal amount and rejects negatives.
func ParseAmount(value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Zero, WrapError("shared", "ParseAmount", ErrInvalidFormat, "invalid amount", err)
	}
	if d.IsNegative() {
		return decimal.Zero, NewDomainError("shared", "ParseAmount", ErrNegativeValue, "amount cannot be negative")
	}
	return d, nil
}

const (
	MinCommission = 0.0
	MaxCommission = 100.0
)

// ValidateCommission checks that a commission percentage lies in [0,100].
func ValidateCommission(pct float64) error {
	if math.IsNaN(pct) || pct < MinCommission || pct > MaxCommission {
		return ErrCommissionOutOfRange
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the index of the first item on the page, saturating at
// math.MaxInt for pages too far out to address.
func (p Pagination) Offset() int {
	if p.Page <= 1 {
		return 0
	}
	skipped, limit := p.Page-1, p.Limit()
	if skipped > math.MaxInt/limit {
		return math.MaxInt
	}
	return skipped * limit
}

// Limit returns the page size.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// Bounds returns the [start, end) slice bounds of the page within n items.
// A page past the end yields (n, n).
func (p Pagination) Bounds(n int) (int, int) {
	if n <= 0 {
		return 0, 0
	}
	start := p.Offset()
	if start >= n {
		return n, n
	}
	return start, start + min(p.Limit(), n-start)
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return NewPagination(1, DefaultPageSize)
}
