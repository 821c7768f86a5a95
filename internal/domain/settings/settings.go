// Package settings содержит единственную запись настроек платформы
// и частичное обновление к ней.
package settings

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/drivehub/admin-console/internal/domain/shared"
)

// PayoutSchedule - периодичность автоматических выплат.
type PayoutSchedule string

const (
	PayoutDaily   PayoutSchedule = "daily"
	PayoutWeekly  PayoutSchedule = "weekly"
	PayoutMonthly PayoutSchedule = "monthly"
)

// IsValid проверяет, что расписание корректно.
func (p PayoutSchedule) IsValid() bool {
	switch p {
	case PayoutDaily, PayoutWeekly, PayoutMonthly:
		return true
	default:
		return false
	}
}

// Settings - настройки платформы. Это одна запись, а не коллекция.
type Settings struct {
	PlatformName        string         `json:"platformName"`
	SupportEmail        string         `json:"supportEmail"`
	Currency            string         `json:"currency"`
	DefaultCommission   float64        `json:"defaultCommission"`
	EmailNotifications  bool           `json:"emailNotifications"`
	SMSAlerts           bool           `json:"smsAlerts"`
	PushNotifications   bool           `json:"pushNotifications"`
	AutoApprovePackages bool           `json:"autoApprovePackages"`
	MaintenanceMode     bool           `json:"maintenanceMode"`
	PayoutSchedule      PayoutSchedule `json:"payoutSchedule"`
}

// Defaults возвращает настройки по умолчанию.
func Defaults() Settings {
	return Settings{
		PlatformName:       "DriveHub",
		SupportEmail:       "support@drivehub.example",
		Currency:           "USD",
		DefaultCommission:  15,
		EmailNotifications: true,
		SMSAlerts:          false,
		PushNotifications:  true,
		PayoutSchedule:     PayoutWeekly,
	}
}

// Validate проверяет настройки целиком.
func (s Settings) Validate() error {
	var problems []string
	if strings.TrimSpace(s.PlatformName) == "" {
		problems = append(problems, "platform name is required")
	}
	if _, err := mail.ParseAddress(s.SupportEmail); err != nil {
		problems = append(problems, "support email is invalid")
	}
	if len(s.Currency) != 3 {
		problems = append(problems, "currency must be a 3-letter code")
	}
	if err := shared.ValidateCommission(s.DefaultCommission); err != nil {
		problems = append(problems, "default commission must be between 0 and 100")
	}
	if !s.PayoutSchedule.IsValid() {
		problems = append(problems, fmt.Sprintf("unknown payout schedule %q", s.PayoutSchedule))
	}
	if len(problems) > 0 {
		return shared.WrapError("settings", "Validate", shared.ErrValidation,
			strings.Join(problems, "; "), shared.ErrInvalidSettings)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PARTIAL UPDATE
// ══════════════════════════════════════════════════════════════════════════════

// Patch содержит частичное обновление настроек.
// nil означает "не менять".
type Patch struct {
	PlatformName        *string         `json:"platformName,omitempty"`
	SupportEmail        *string         `json:"supportEmail,omitempty"`
	Currency            *string         `json:"currency,omitempty"`
	DefaultCommission   *float64        `json:"defaultCommission,omitempty"`
	EmailNotifications  *bool           `json:"emailNotifications,omitempty"`
	SMSAlerts           *bool           `json:"smsAlerts,omitempty"`
	PushNotifications   *bool           `json:"pushNotifications,omitempty"`
	AutoApprovePackages *bool           `json:"autoApprovePackages,omitempty"`
	MaintenanceMode     *bool           `json:"maintenanceMode,omitempty"`
	PayoutSchedule      *PayoutSchedule `json:"payoutSchedule,omitempty"`
}

// IsEmpty возвращает true, если патч ничего не меняет.
func (p Patch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Fields возвращает имена полей, заданных в патче.
func (p Patch) Fields() []string {
	var fields []string
	if p.PlatformName != nil {
		fields = append(fields, "platformName")
	}
	if p.SupportEmail != nil {
		fields = append(fields, "supportEmail")
	}
	if p.Currency != nil {
		fields = append(fields, "currency")
	}
	if p.DefaultCommission != nil {
		fields = append(fields, "defaultCommission")
	}
	if p.EmailNotifications != nil {
		fields = append(fields, "emailNotifications")
	}
	if p.SMSAlerts != nil {
		fields = append(fields, "smsAlerts")
	}
	if p.PushNotifications != nil {
		fields = append(fields, "pushNotifications")
	}
	if p.AutoApprovePackages != nil {
		fields = append(fields, "autoApprovePackages")
	}
	if p.MaintenanceMode != nil {
		fields = append(fields, "maintenanceMode")
	}
	if p.PayoutSchedule != nil {
		fields = append(fields, "payoutSchedule")
	}
	return fields
}

// Apply возвращает копию настроек с применённым патчем (поверхностное слияние).
func (p Patch) Apply(s Settings) Settings {
	if p.PlatformName != nil {
		s.PlatformName = *p.PlatformName
	}
	if p.SupportEmail != nil {
		s.SupportEmail = *p.SupportEmail
	}
	if p.Currency != nil {
		s.Currency = *p.Currency
	}
	if p.DefaultCommission != nil {
		s.DefaultCommission = *p.DefaultCommission
	}
	if p.EmailNotifications != nil {
		s.EmailNotifications = *p.EmailNotifications
	}
	if p.SMSAlerts != nil {
		s.SMSAlerts = *p.SMSAlerts
	}
	if p.PushNotifications != nil {
		s.PushNotifications = *p.PushNotifications
	}
	if p.AutoApprovePackages != nil {
		s.AutoApprovePackages = *p.AutoApprovePackages
	}
	if p.MaintenanceMode != nil {
		s.MaintenanceMode = *p.MaintenanceMode
	}
	if p.PayoutSchedule != nil {
		s.PayoutSchedule = *p.PayoutSchedule
	}
	return s
}

// Clone создаёт глубокую копию патча, чтобы действие не делило
// указатели с вызывающим кодом.
func (p Patch) Clone() Patch {
	return Patch{
		PlatformName:        clonePtr(p.PlatformName),
		SupportEmail:        clonePtr(p.SupportEmail),
		Currency:            clonePtr(p.Currency),
		DefaultCommission:   clonePtr(p.DefaultCommission),
		EmailNotifications:  clonePtr(p.EmailNotifications),
		SMSAlerts:           clonePtr(p.SMSAlerts),
		PushNotifications:   clonePtr(p.PushNotifications),
		AutoApprovePackages: clonePtr(p.AutoApprovePackages),
		MaintenanceMode:     clonePtr(p.MaintenanceMode),
		PayoutSchedule:      clonePtr(p.PayoutSchedule),
	}
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Reader загружает настройки из источника начальных данных.
type Reader interface {
	LoadSettings(ctx context.Context) (Settings, error)
}
