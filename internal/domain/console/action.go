package console

import (
	"github.com/shopspring/decimal"

	"github.com/drivehub/admin-console/internal/domain/settings"
	"github.com/drivehub/admin-console/internal/domain/shared"
)

// ActionType - строковый дискриминант действия, используемый в логах,
// событиях и JSON-кодеке.
type ActionType string

const (
	ActionApproveStudent  ActionType = "student/approve"
	ActionRejectStudent   ActionType = "student/reject"
	ActionSuspendStudent  ActionType = "student/suspend"
	ActionActivateStudent ActionType = "student/activate"
	ActionDeleteStudent   ActionType = "student/delete"

	ActionApproveInstructor  ActionType = "instructor/approve"
	ActionRejectInstructor   ActionType = "instructor/reject"
	ActionSuspendInstructor  ActionType = "instructor/suspend"
	ActionActivateInstructor ActionType = "instructor/activate"

	ActionTransferPayment ActionType = "payout/transfer"

	ActionSendMessage              ActionType = "inbox/send"
	ActionMarkConversationResolved ActionType = "inbox/resolve"
	ActionMarkConversationRead     ActionType = "inbox/read"

	ActionUpdateSettings ActionType = "settings/update"

	ActionApprovePackage          ActionType = "package/approve"
	ActionRejectPackage           ActionType = "package/reject"
	ActionUpdatePackageCommission ActionType = "package/commission"
	ActionDeletePackage           ActionType = "package/delete"
)

// Action - закрытое множество действий консоли. Реализовать его вне пакета
// нельзя: Reduce разбирает действия исчерпывающим type switch.
type Action interface {
	// Type возвращает дискриминант действия.
	Type() ActionType

	// TargetID возвращает ID затрагиваемой сущности ("" для настроек).
	TargetID() string

	// EventType возвращает тип доменного события, публикуемого после применения.
	EventType() shared.EventType

	sealed()
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT ACTIONS
// ══════════════════════════════════════════════════════════════════════════════

// ApproveStudentAction одобряет регистрацию ученика.
type ApproveStudentAction struct{ ID string }

// RejectStudentAction отклоняет регистрацию и деактивирует аккаунт.
type RejectStudentAction struct{ ID string }

// SuspendStudentAction блокирует аккаунт ученика.
type SuspendStudentAction struct{ ID string }

// ActivateStudentAction активирует аккаунт ученика.
type ActivateStudentAction struct{ ID string }

// DeleteStudentAction удаляет ученика без возможности восстановления.
type DeleteStudentAction struct{ ID string }

func ApproveStudent(id string) ApproveStudentAction   { return ApproveStudentAction{ID: id} }
func RejectStudent(id string) RejectStudentAction     { return RejectStudentAction{ID: id} }
func SuspendStudent(id string) SuspendStudentAction   { return SuspendStudentAction{ID: id} }
func ActivateStudent(id string) ActivateStudentAction { return ActivateStudentAction{ID: id} }
func DeleteStudent(id string) DeleteStudentAction     { return DeleteStudentAction{ID: id} }

func (a ApproveStudentAction) Type() ActionType  { return ActionApproveStudent }
func (a RejectStudentAction) Type() ActionType   { return ActionRejectStudent }
func (a SuspendStudentAction) Type() ActionType  { return ActionSuspendStudent }
func (a ActivateStudentAction) Type() ActionType { return ActionActivateStudent }
func (a DeleteStudentAction) Type() ActionType   { return ActionDeleteStudent }

func (a ApproveStudentAction) TargetID() string  { return a.ID }
func (a RejectStudentAction) TargetID() string   { return a.ID }
func (a SuspendStudentAction) TargetID() string  { return a.ID }
func (a ActivateStudentAction) TargetID() string { return a.ID }
func (a DeleteStudentAction) TargetID() string   { return a.ID }

func (a ApproveStudentAction) EventType() shared.EventType  { return shared.EventStudentApproved }
func (a RejectStudentAction) EventType() shared.EventType   { return shared.EventStudentRejected }
func (a SuspendStudentAction) EventType() shared.EventType  { return shared.EventStudentSuspended }
func (a ActivateStudentAction) EventType() shared.EventType { return shared.EventStudentActivated }
func (a DeleteStudentAction) EventType() shared.EventType   { return shared.EventStudentDeleted }

func (ApproveStudentAction) sealed()  {}
func (RejectStudentAction) sealed()   {}
func (SuspendStudentAction) sealed()  {}
func (ActivateStudentAction) sealed() {}
func (DeleteStudentAction) sealed()   {}

// ══════════════════════════════════════════════════════════════════════════════
// INSTRUCTOR ACTIONS
// ══════════════════════════════════════════════════════════════════════════════

// ApproveInstructorAction одобряет регистрацию инструктора.
type ApproveInstructorAction struct{ ID string }

// RejectInstructorAction отклоняет регистрацию и деактивирует аккаунт.
type RejectInstructorAction struct{ ID string }

// SuspendInstructorAction блокирует аккаунт инструктора.
type SuspendInstructorAction struct{ ID string }

// ActivateInstructorAction активирует аккаунт инструктора.
type ActivateInstructorAction struct{ ID string }

func ApproveInstructor(id string) ApproveInstructorAction   { return ApproveInstructorAction{ID: id} }
func RejectInstructor(id string) RejectInstructorAction     { return RejectInstructorAction{ID: id} }
func SuspendInstructor(id string) SuspendInstructorAction   { return SuspendInstructorAction{ID: id} }
func ActivateInstructor(id string) ActivateInstructorAction { return ActivateInstructorAction{ID: id} }

func (a ApproveInstructorAction) Type() ActionType  { return ActionApproveInstructor }
func (a RejectInstructorAction) Type() ActionType   { return ActionRejectInstructor }
func (a SuspendInstructorAction) Type() ActionType  { return ActionSuspendInstructor }
func (a ActivateInstructorAction) Type() ActionType { return ActionActivateInstructor }

func (a ApproveInstructorAction) TargetID() string  { return a.ID }
func (a RejectInstructorAction) TargetID() string   { return a.ID }
func (a SuspendInstructorAction) TargetID() string  { return a.ID }
func (a ActivateInstructorAction) TargetID() string { return a.ID }

func (a ApproveInstructorAction) EventType() shared.EventType {
	return shared.EventInstructorApproved
}
func (a RejectInstructorAction) EventType() shared.EventType {
	return shared.EventInstructorRejected
}
func (a SuspendInstructorAction) EventType() shared.EventType {
	return shared.EventInstructorSuspended
}
func (a ActivateInstructorAction) EventType() shared.EventType {
	return shared.EventInstructorActivated
}

func (ApproveInstructorAction) sealed()  {}
func (RejectInstructorAction) sealed()   {}
func (SuspendInstructorAction) sealed()  {}
func (ActivateInstructorAction) sealed() {}

// ══════════════════════════════════════════════════════════════════════════════
// PAYOUT ACTIONS
// ══════════════════════════════════════════════════════════════════════════════

// TransferPaymentAction переводит инструктору сумму к выплате.
type TransferPaymentAction struct {
	InstructorID string
	Amount       decimal.Decimal
}

// TransferPayment создаёт действие перевода.
func TransferPayment(instructorID string, amount decimal.Decimal) TransferPaymentAction {
	return TransferPaymentAction{InstructorID: instructorID, Amount: amount}
}

func (a TransferPaymentAction) Type() ActionType            { return ActionTransferPayment }
func (a TransferPaymentAction) TargetID() string            { return a.InstructorID }
func (a TransferPaymentAction) EventType() shared.EventType { return shared.EventPaymentTransferred }

func (TransferPaymentAction) sealed() {}

// ══════════════════════════════════════════════════════════════════════════════
// INBOX ACTIONS
// ══════════════════════════════════════════════════════════════════════════════

// SendMessageAction добавляет сообщение администратора в диалог.
type SendMessageAction struct {
	ConversationID string
	Text           string
}

// MarkConversationResolvedAction закрывает диалог.
type MarkConversationResolvedAction struct{ ID string }

// MarkConversationReadAction помечает диалог прочитанным.
type MarkConversationReadAction struct{ ID string }

// SendMessage создаёт действие отправки сообщения.
func SendMessage(conversationID, text string) SendMessageAction {
	return SendMessageAction{ConversationID: conversationID, Text: text}
}

func MarkConversationResolved(id string) MarkConversationResolvedAction {
	return MarkConversationResolvedAction{ID: id}
}

func MarkConversationRead(id string) MarkConversationReadAction {
	return MarkConversationReadAction{ID: id}
}

func (a SendMessageAction) Type() ActionType              { return ActionSendMessage }
func (a MarkConversationResolvedAction) Type() ActionType { return ActionMarkConversationResolved }
func (a MarkConversationReadAction) Type() ActionType     { return ActionMarkConversationRead }

func (a SendMessageAction) TargetID() string              { return a.ConversationID }
func (a MarkConversationResolvedAction) TargetID() string { return a.ID }
func (a MarkConversationReadAction) TargetID() string     { return a.ID }

func (a SendMessageAction) EventType() shared.EventType { return shared.EventMessageSent }
func (a MarkConversationResolvedAction) EventType() shared.EventType {
	return shared.EventConversationResolved
}
func (a MarkConversationReadAction) EventType() shared.EventType {
	return shared.EventConversationRead
}

func (SendMessageAction) sealed()              {}
func (MarkConversationResolvedAction) sealed() {}
func (MarkConversationReadAction) sealed()     {}

// ══════════════════════════════════════════════════════════════════════════════
// SETTINGS ACTIONS
// ══════════════════════════════════════════════════════════════════════════════

// UpdateSettingsAction поверхностно сливает патч с настройками.
type UpdateSettingsAction struct {
	Patch settings.Patch
}

// UpdateSettings создаёт действие; патч копируется.
func UpdateSettings(patch settings.Patch) UpdateSettingsAction {
	return UpdateSettingsAction{Patch: patch.Clone()}
}

func (a UpdateSettingsAction) Type() ActionType            { return ActionUpdateSettings }
func (a UpdateSettingsAction) TargetID() string            { return "" }
func (a UpdateSettingsAction) EventType() shared.EventType { return shared.EventSettingsUpdated }

func (UpdateSettingsAction) sealed() {}

// ══════════════════════════════════════════════════════════════════════════════
// PACKAGE ACTIONS
// ══════════════════════════════════════════════════════════════════════════════

// ApprovePackageAction публикует пакет.
type ApprovePackageAction struct{ ID string }

// RejectPackageAction отклоняет пакет.
type RejectPackageAction struct{ ID string }

// UpdatePackageCommissionAction перезаписывает комиссию пакета.
type UpdatePackageCommissionAction struct {
	ID         string
	Percentage float64
}

// DeletePackageAction удаляет пакет.
type DeletePackageAction struct{ ID string }

func ApprovePackage(id string) ApprovePackageAction { return ApprovePackageAction{ID: id} }
func RejectPackage(id string) RejectPackageAction   { return RejectPackageAction{ID: id} }
func DeletePackage(id string) DeletePackageAction   { return DeletePackageAction{ID: id} }

// UpdatePackageCommission создаёт действие изменения комиссии.
func UpdatePackageCommission(id string, percentage float64) UpdatePackageCommissionAction {
	return UpdatePackageCommissionAction{ID: id, Percentage: percentage}
}

func (a ApprovePackageAction) Type() ActionType          { return ActionApprovePackage }
func (a RejectPackageAction) Type() ActionType           { return ActionRejectPackage }
func (a UpdatePackageCommissionAction) Type() ActionType { return ActionUpdatePackageCommission }
func (a DeletePackageAction) Type() ActionType           { return ActionDeletePackage }

func (a ApprovePackageAction) TargetID() string          { return a.ID }
func (a RejectPackageAction) TargetID() string           { return a.ID }
func (a UpdatePackageCommissionAction) TargetID() string { return a.ID }
func (a DeletePackageAction) TargetID() string           { return a.ID }

func (a ApprovePackageAction) EventType() shared.EventType { return shared.EventPackageApproved }
func (a RejectPackageAction) EventType() shared.EventType  { return shared.EventPackageRejected }
func (a UpdatePackageCommissionAction) EventType() shared.EventType {
	return shared.EventPackageCommissionUpdated
}
func (a DeletePackageAction) EventType() shared.EventType { return shared.EventPackageDeleted }

func (ApprovePackageAction) sealed()          {}
func (RejectPackageAction) sealed()           {}
func (UpdatePackageCommissionAction) sealed() {}
func (DeletePackageAction) sealed()           {}
