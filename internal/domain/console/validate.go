package console

import (
	"strings"

	"github.com/drivehub/admin-console/internal/domain/shared"
)

// Check проверяет значения, которые Reduce принимает без проверки.
// Вызывается на границе диспетчера до Reduce.
func Check(a Action) error {
	if a.Type() != ActionUpdateSettings && strings.TrimSpace(a.TargetID()) == "" {
		return shared.NewDomainError("console", "Check", shared.ErrInvalidID,
			string(a.Type())+": target id is required")
	}

	switch a := a.(type) {
	case UpdatePackageCommissionAction:
		return shared.ValidateCommission(a.Percentage)
	case TransferPaymentAction:
		if !a.Amount.IsPositive() {
			return shared.ErrInvalidAmount
		}
	case SendMessageAction:
		if strings.TrimSpace(a.Text) == "" {
			return shared.ErrEmptyMessage
		}
	case UpdateSettingsAction:
		if a.Patch.DefaultCommission != nil {
			if err := shared.ValidateCommission(*a.Patch.DefaultCommission); err != nil {
				return err
			}
		}
		if a.Patch.PayoutSchedule != nil && !a.Patch.PayoutSchedule.IsValid() {
			return shared.NewDomainError("settings", "Update", shared.ErrInvalidInput, "unknown payout schedule")
		}
	}
	return nil
}

// NotFoundError возвращает ошибку "не найдено" для цели действия.
func NotFoundError(a Action) error {
	switch a.(type) {
	case ApproveStudentAction, RejectStudentAction, SuspendStudentAction,
		ActivateStudentAction, DeleteStudentAction:
		return shared.ErrStudentNotFound
	case ApproveInstructorAction, RejectInstructorAction, SuspendInstructorAction,
		ActivateInstructorAction, TransferPaymentAction:
		return shared.ErrInstructorNotFound
	case SendMessageAction, MarkConversationResolvedAction, MarkConversationReadAction:
		return shared.ErrConversationNotFound
	case ApprovePackageAction, RejectPackageAction, UpdatePackageCommissionAction, DeletePackageAction:
		return shared.ErrPackageNotFound
	default:
		return shared.ErrNotFound
	}
}

// TargetExists проверяет, что цель действия есть в состоянии.
func TargetExists(s State, a Action) bool {
	switch a.(type) {
	case ApproveStudentAction, RejectStudentAction, SuspendStudentAction,
		ActivateStudentAction, DeleteStudentAction:
		return s.StudentIndex(a.TargetID()) >= 0
	case ApproveInstructorAction, RejectInstructorAction, SuspendInstructorAction,
		ActivateInstructorAction, TransferPaymentAction:
		return s.InstructorIndex(a.TargetID()) >= 0
	case SendMessageAction, MarkConversationResolvedAction, MarkConversationReadAction:
		return s.ConversationIndex(a.TargetID()) >= 0
	case ApprovePackageAction, RejectPackageAction, UpdatePackageCommissionAction, DeletePackageAction:
		return s.PackageIndex(a.TargetID()) >= 0
	default:
		return true
	}
}
