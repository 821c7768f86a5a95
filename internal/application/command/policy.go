// Package command contains write operations (CQRS - Commands).
//
// Operators never dispatch directly from a confirmation dialog: the dialog
// proposes an Intent, and the action runs only when the intent is confirmed.
// Both phases evaluate the same Policy, the second one against the state
// current at confirmation time.
package command

import (
	"fmt"

	"github.com/drivehub/admin-console/internal/domain/console"
	"github.com/drivehub/admin-console/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// POLICY
// Правила, которые движок сознательно не проверяет: движок тотален и
// применяет любое действие, а консоль не должна предлагать оператору
// переходы, которых нет в жизненном цикле сущности.
// ══════════════════════════════════════════════════════════════════════════════

// Policy decides whether an action is allowed against a given state.
type Policy struct{}

// Evaluate returns nil when the action may be dispatched against s.
func (Policy) Evaluate(s console.State, a console.Action) error {
	if err := console.Check(a); err != nil {
		return err
	}
	if !console.TargetExists(s, a) {
		return console.NotFoundError(a)
	}

	switch a := a.(type) {
	case console.ApproveStudentAction, console.RejectStudentAction:
		st, _ := s.FindStudent(a.TargetID())
		return requirePending(st.Registration)
	case console.SuspendStudentAction:
		st, _ := s.FindStudent(a.ID)
		return requireActive(st.Registration)
	case console.ActivateStudentAction:
		st, _ := s.FindStudent(a.ID)
		return requireSuspended(st.Registration)

	case console.ApproveInstructorAction, console.RejectInstructorAction:
		in, _ := s.FindInstructor(a.TargetID())
		return requirePending(in.Registration)
	case console.SuspendInstructorAction:
		in, _ := s.FindInstructor(a.ID)
		return requireActive(in.Registration)
	case console.ActivateInstructorAction:
		in, _ := s.FindInstructor(a.ID)
		return requireSuspended(in.Registration)

	case console.TransferPaymentAction:
		in, _ := s.FindInstructor(a.InstructorID)
		if !in.HasPendingPayment() {
			return shared.ErrNothingToPay
		}
		if !a.Amount.Equal(in.PendingPayment) {
			return shared.WrapError("payout", "Transfer", shared.ErrStale,
				fmt.Sprintf("pending payment is now %s", in.PendingPayment.StringFixed(2)), shared.ErrStalePayout)
		}

	case console.ApprovePackageAction, console.RejectPackageAction:
		p, _ := s.FindPackage(a.TargetID())
		if !p.Status.IsPending() {
			return shared.ErrApprovalNotPending
		}

	case console.UpdateSettingsAction:
		if a.Patch.IsEmpty() {
			return shared.NewDomainError("settings", "Update", shared.ErrInvalidInput, "settings patch is empty")
		}
	}
	return nil
}

// RequiresConfirmation reports whether a must go through an intent instead
// of being dispatched directly. These actions cannot be undone.
func RequiresConfirmation(a console.Action) bool {
	switch a.(type) {
	case console.DeleteStudentAction, console.DeletePackageAction, console.TransferPaymentAction:
		return true
	}
	return false
}

func requirePending(r shared.Registration) error {
	if !r.IsPending() {
		return shared.ErrApprovalNotPending
	}
	return nil
}

func requireActive(r shared.Registration) error {
	if r.AccountStatus != shared.AccountActive {
		return shared.ErrAccountNotActive
	}
	return nil
}

func requireSuspended(r shared.Registration) error {
	switch r.AccountStatus {
	case shared.AccountSuspended:
		return nil
	case shared.AccountInactive:
		return shared.ErrAccountInactive
	default:
		return shared.ErrAccountNotSuspended
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SUMMARIES
// ══════════════════════════════════════════════════════════════════════════════

// Describe renders the confirmation text shown to the operator.
func Describe(s console.State, a console.Action) string {
	switch a := a.(type) {
	case console.ApproveStudentAction:
		return "Approve student " + studentName(s, a.ID)
	case console.RejectStudentAction:
		return "Reject student " + studentName(s, a.ID)
	case console.SuspendStudentAction:
		return "Suspend student " + studentName(s, a.ID)
	case console.ActivateStudentAction:
		return "Activate student " + studentName(s, a.ID)
	case console.DeleteStudentAction:
		return "Permanently delete student " + studentName(s, a.ID)
	case console.ApproveInstructorAction:
		return "Approve instructor " + instructorName(s, a.ID)
	case console.RejectInstructorAction:
		return "Reject instructor " + instructorName(s, a.ID)
	case console.SuspendInstructorAction:
		return "Suspend instructor " + instructorName(s, a.ID)
	case console.ActivateInstructorAction:
		return "Activate instructor " + instructorName(s, a.ID)
	case console.TransferPaymentAction:
		return fmt.Sprintf("Transfer %s %s to %s", a.Amount.StringFixed(2), s.Settings.Currency, instructorName(s, a.InstructorID))
	case console.SendMessageAction:
		return "Send message to " + conversationName(s, a.ConversationID)
	case console.MarkConversationResolvedAction:
		return "Resolve conversation with " + conversationName(s, a.ID)
	case console.MarkConversationReadAction:
		return "Mark conversation with " + conversationName(s, a.ID) + " as read"
	case console.UpdateSettingsAction:
		return fmt.Sprintf("Update settings %v", a.Patch.Fields())
	case console.ApprovePackageAction:
		return "Approve package " + packageTitle(s, a.ID)
	case console.RejectPackageAction:
		return "Reject package " + packageTitle(s, a.ID)
	case console.UpdatePackageCommissionAction:
		return fmt.Sprintf("Set commission of %s to %g%%", packageTitle(s, a.ID), a.Percentage)
	case console.DeletePackageAction:
		return "Delete package " + packageTitle(s, a.ID)
	default:
		return string(a.Type())
	}
}

func studentName(s console.State, id string) string {
	if st, ok := s.FindStudent(id); ok {
		return st.Name
	}
	return id
}

func instructorName(s console.State, id string) string {
	if in, ok := s.FindInstructor(id); ok {
		return in.Name
	}
	return id
}

func conversationName(s console.State, id string) string {
	if c, ok := s.FindConversation(id); ok {
		return c.InstructorName
	}
	return id
}

func packageTitle(s console.State, id string) string {
	if p, ok := s.FindPackage(id); ok {
		return fmt.Sprintf("%q", p.Title)
	}
	return id
}
