package console

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/drivehub/admin-console/internal/domain/settings"
	"github.com/drivehub/admin-console/internal/domain/shared"
)

// Envelope - JSON-представление действия для HTTP API и шины событий.
//
//	{"type": "student/approve", "id": "STU-001"}
//	{"type": "payout/transfer", "instructorId": "INS-002", "amount": "120.00"}
//	{"type": "inbox/send", "conversationId": "CONV-001", "text": "hi"}
//	{"type": "settings/update", "settings": {"smsAlerts": true}}
//	{"type": "package/commission", "id": "PKG-003", "percentage": 12.5}
type Envelope struct {
	Type           ActionType       `json:"type"`
	ID             string           `json:"id,omitempty"`
	InstructorID   string           `json:"instructorId,omitempty"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	ConversationID string           `json:"conversationId,omitempty"`
	Text           string           `json:"text,omitempty"`
	Percentage     *float64         `json:"percentage,omitempty"`
	Settings       *settings.Patch  `json:"settings,omitempty"`
}

// Action собирает действие из конверта.
func (e Envelope) Action() (Action, error) {
	switch e.Type {
	case ActionApproveStudent:
		return ApproveStudent(e.ID), nil
	case ActionRejectStudent:
		return RejectStudent(e.ID), nil
	case ActionSuspendStudent:
		return SuspendStudent(e.ID), nil
	case ActionActivateStudent:
		return ActivateStudent(e.ID), nil
	case ActionDeleteStudent:
		return DeleteStudent(e.ID), nil

	case ActionApproveInstructor:
		return ApproveInstructor(e.ID), nil
	case ActionRejectInstructor:
		return RejectInstructor(e.ID), nil
	case ActionSuspendInstructor:
		return SuspendInstructor(e.ID), nil
	case ActionActivateInstructor:
		return ActivateInstructor(e.ID), nil

	case ActionTransferPayment:
		if e.Amount == nil {
			return nil, missingField(e.Type, "amount")
		}
		return TransferPayment(firstNonEmpty(e.InstructorID, e.ID), *e.Amount), nil

	case ActionSendMessage:
		return SendMessage(firstNonEmpty(e.ConversationID, e.ID), e.Text), nil
	case ActionMarkConversationResolved:
		return MarkConversationResolved(e.ID), nil
	case ActionMarkConversationRead:
		return MarkConversationRead(e.ID), nil

	case ActionUpdateSettings:
		if e.Settings == nil {
			return nil, missingField(e.Type, "settings")
		}
		return UpdateSettings(*e.Settings), nil

	case ActionApprovePackage:
		return ApprovePackage(e.ID), nil
	case ActionRejectPackage:
		return RejectPackage(e.ID), nil
	case ActionUpdatePackageCommission:
		if e.Percentage == nil {
			return nil, missingField(e.Type, "percentage")
		}
		return UpdatePackageCommission(e.ID, *e.Percentage), nil
	case ActionDeletePackage:
		return DeletePackage(e.ID), nil
	}
	return nil, shared.WrapError("console", "Decode", shared.ErrInvalidInput,
		fmt.Sprintf("unknown action type %q", e.Type), shared.ErrUnknownAction)
}

// EnvelopeOf строит конверт для действия.
func EnvelopeOf(a Action) Envelope {
	e := Envelope{Type: a.Type()}
	switch a := a.(type) {
	case TransferPaymentAction:
		amount := a.Amount
		e.InstructorID = a.InstructorID
		e.Amount = &amount
	case SendMessageAction:
		e.ConversationID = a.ConversationID
		e.Text = a.Text
	case UpdateSettingsAction:
		patch := a.Patch.Clone()
		e.Settings = &patch
	case UpdatePackageCommissionAction:
		pct := a.Percentage
		e.ID = a.ID
		e.Percentage = &pct
	default:
		e.ID = a.TargetID()
	}
	return e
}

// DecodeAction разбирает действие из JSON.
func DecodeAction(data []byte) (Action, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, shared.WrapError("console", "Decode", shared.ErrInvalidFormat, "malformed action", err)
	}
	return e.Action()
}

// EncodeAction сериализует действие в JSON.
func EncodeAction(a Action) ([]byte, error) {
	return json.Marshal(EnvelopeOf(a))
}

func missingField(t ActionType, field string) error {
	return shared.NewDomainError("console", "Decode", shared.ErrInvalidInput,
		fmt.Sprintf("%s: %s is required", t, field))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
