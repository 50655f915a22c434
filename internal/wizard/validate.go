package wizard

import (
	"strings"

	"yoyaku/internal/formconfig"
)

// Inline messages shown by the form when submission is blocked.
const (
	MsgName       = "お名前を入力してください"
	MsgPhone      = "電話番号を入力してください"
	MsgMenu       = "メニューを選択してください"
	MsgDateTime   = "希望日時を選択してください"
	MsgGender     = "性別を選択してください"
	MsgVisitCount = "来店回数を選択してください"
	MsgCoupon     = "クーポンを選択してください"
)

// ValidationError is the first blocking problem found.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks the session in the order the form does: name, phone,
// menu, date/time, required choices, required custom fields.
func (s *Session) Validate() error {
	c := s.Customer
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Field: "name", Message: MsgName}
	}
	if strings.TrimSpace(c.Phone) == "" {
		return &ValidationError{Field: "phone", Message: MsgPhone}
	}
	if !s.state.Terminal() {
		return &ValidationError{Field: "menu", Message: MsgMenu}
	}
	if s.slot.Date == "" || s.slot.Time == "" {
		return &ValidationError{Field: "datetime", Message: MsgDateTime}
	}

	choices := []struct {
		field   string
		cfg     formconfig.ChoiceField
		value   string
		message string
	}{
		{"gender", s.cfg.GenderSelection, c.Gender, MsgGender},
		{"visit_count", s.cfg.VisitCountSelection, c.VisitCount, MsgVisitCount},
		{"coupon", s.cfg.CouponSelection, c.Coupon, MsgCoupon},
	}
	for _, ch := range choices {
		if ch.cfg.Enabled && ch.cfg.Required && ch.cfg.Label(ch.value) == "" {
			return &ValidationError{Field: ch.field, Message: ch.message}
		}
	}

	for _, f := range s.cfg.CustomFields {
		if !f.Enabled || !f.Required {
			continue
		}
		if strings.TrimSpace(c.Custom[f.ID]) == "" {
			return &ValidationError{Field: f.ID, Message: CustomFieldMessage(f)}
		}
	}
	return nil
}

// CustomFieldMessage is the inline message for a missing required custom field.
func CustomFieldMessage(f formconfig.CustomField) string {
	if f.Type == formconfig.FieldSelect || f.Type == formconfig.FieldRadio {
		return f.Label + "を選択してください"
	}
	return f.Label + "を入力してください"
}
