// Package shared contains common domain types, errors, events, and value objects
// that are used across all console domain packages.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")
	ErrStale            = errors.New("stale snapshot")

	// Infrastructure errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "student", "payout", "inbox"
	Op      string // Operation that failed, e.g., "Approve", "Transfer"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Student domain errors
var (
	ErrStudentNotFound       = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrInvalidApprovalStatus = NewDomainError("student", "Validate", ErrInvalidInput, "invalid approval status")
	ErrInvalidAccountStatus  = NewDomainError("student", "Validate", ErrInvalidInput, "invalid account status")
	ErrApprovalNotPending    = NewDomainError("approval", "Decide", ErrStateTransition, "registration is no longer pending")
	ErrAccountNotActive      = NewDomainError("account", "Suspend", ErrStateTransition, "account is not active")
	ErrAccountNotSuspended   = NewDomainError("account", "Activate", ErrStateTransition, "account is not suspended")
	ErrAccountInactive       = NewDomainError("account", "Activate", ErrStateTransition, "inactive accounts cannot be reactivated")
)

// Instructor and payout domain errors
var (
	ErrInstructorNotFound = NewDomainError("instructor", "Find", ErrNotFound, "instructor not found")
	ErrNothingToPay       = NewDomainError("payout", "Transfer", ErrInvalidState, "instructor has no pending payment")
	ErrInvalidAmount      = NewDomainError("payout", "Transfer", ErrNegativeValue, "transfer amount must be positive")
	ErrStalePayout        = NewDomainError("payout", "Transfer", ErrStale, "transfer amount no longer matches pending payment")
)

// Inbox domain errors
var (
	ErrConversationNotFound = NewDomainError("inbox", "Find", ErrNotFound, "conversation not found")
	ErrEmptyMessage         = NewDomainError("inbox", "Send", ErrEmptyValue, "message text cannot be empty")
)

// Catalog domain errors
var (
	ErrPackageNotFound      = NewDomainError("catalog", "Find", ErrNotFound, "package not found")
	ErrCommissionOutOfRange = NewDomainError("catalog", "UpdateCommission", ErrValueOutOfRange, "commission must be between 0 and 100")
)

// Settings domain errors
var (
	ErrInvalidSettings = NewDomainError("settings", "Validate", ErrValidation, "invalid settings")
)

// Command errors
var (
	ErrIntentNotFound  = NewDomainError("command", "Find", ErrNotFound, "intent not found")
	ErrIntentExpired   = NewDomainError("command", "Confirm", ErrExpired, "intent expired")
	ErrUnknownAction   = NewDomainError("command", "Decode", ErrInvalidInput, "unknown action type")
	ErrSeedUnavailable = NewDomainError("seed", "Load", ErrServiceUnavailable, "seed source unavailable")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsStateConflict checks if the error reports a disallowed transition or a stale read.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrStateTransition) ||
		errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrStale) ||
		errors.Is(err, ErrExpired)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout)
}
