package wizard

import (
	"fmt"

	"yoyaku/internal/formconfig"
	"yoyaku/internal/submission"
)

// Selection is a complete set of form answers, as posted to the submission
// preview endpoint.
type Selection struct {
	Name       string            `json:"name"`
	Phone      string            `json:"phone"`
	Gender     string            `json:"gender"`
	VisitCount string            `json:"visit_count"`
	Coupon     string            `json:"coupon"`
	Message    string            `json:"message"`
	MenuID     string            `json:"menu_id"`
	SubmenuID  string            `json:"submenu_id"`
	OptionIDs  []string          `json:"option_ids"`
	Date       string            `json:"date"`
	Time       string            `json:"time"`
	Alternates []submission.Slot `json:"alternates"`
	Custom     map[string]string `json:"custom"`
}

// Apply replays sel through the state machine. OptionIDs is the final option
// set, so default options not listed are switched off.
func (s *Session) Apply(sel Selection) error {
	s.Customer = Customer{
		Name:       sel.Name,
		Phone:      sel.Phone,
		Gender:     sel.Gender,
		VisitCount: sel.VisitCount,
		Coupon:     sel.Coupon,
		Message:    sel.Message,
		Custom:     map[string]string{},
	}
	for k, v := range sel.Custom {
		s.Customer.Custom[k] = v
	}

	if sel.MenuID == "" {
		return nil
	}
	if err := s.SelectMenu(sel.MenuID); err != nil {
		return err
	}
	if sel.SubmenuID != "" {
		if err := s.SelectSubmenu(sel.SubmenuID); err != nil {
			return err
		}
	}

	if s.state == StateLeaf {
		want := make(map[string]bool, len(sel.OptionIDs))
		for _, id := range sel.OptionIDs {
			if s.menu.FindOption(id) == nil {
				return fmt.Errorf("%w: %s", ErrUnknownOption, id)
			}
			want[id] = true
		}
		for _, o := range s.menu.Options {
			if s.OptionSelected(s.menu.ID, o.ID) != want[o.ID] {
				if err := s.ToggleOption(o.ID); err != nil {
					return err
				}
			}
		}
	} else if len(sel.OptionIDs) > 0 {
		return fmt.Errorf("%w: submenu items carry no options", ErrUnknownOption)
	}

	if sel.Date == "" && sel.Time == "" {
		return nil
	}
	if err := s.SelectSlot(sel.Date, sel.Time); err != nil {
		return err
	}
	if s.cfg.CalendarSettings.BookingMode != formconfig.ModeMultipleDates {
		return nil
	}
	for i, alt := range sel.Alternates {
		if i >= 2 {
			break
		}
		if err := s.SelectAlternate(i+2, alt.Date, alt.Time); err != nil {
			return err
		}
	}
	return nil
}
