package wizard

import (
	"fmt"

	"yoyaku/internal/formconfig"
	"yoyaku/internal/submission"
)

// Customer holds the free-entry fields of the form. Choice fields hold option
// values; Custom is keyed by custom field id.
type Customer struct {
	Name       string
	Phone      string
	Gender     string
	VisitCount string
	Coupon     string
	Message    string
	Custom     map[string]string
}

// Totals is the aggregated price and duration of the current selection.
type Totals struct {
	Price    int `json:"price"`
	Duration int `json:"duration"`
}

// Session is one customer's pass through the form.
type Session struct {
	Customer Customer

	cfg      *formconfig.FormConfig
	state    State
	category *formconfig.Category
	menu     *formconfig.MenuItem
	submenu  *formconfig.SubMenuItem
	options  map[string]map[string]bool

	slot       submission.Slot
	alternates [2]submission.Slot
}

// NewSession starts a session over a normalized configuration.
func NewSession(cfg *formconfig.FormConfig) *Session {
	s := &Session{cfg: cfg, Customer: Customer{Custom: map[string]string{}}}
	s.reset()
	return s
}

func (s *Session) State() State { return s.state }

func (s *Session) reset() {
	s.state = StateNoMenu
	s.category = nil
	s.menu = nil
	s.submenu = nil
	s.options = map[string]map[string]bool{}
	s.slot = submission.Slot{}
	s.alternates = [2]submission.Slot{}
}

// SelectMenu handles a click on a top-level menu item. Clicking the current
// menu again deselects it; clicking another discards every prior selection.
func (s *Session) SelectMenu(id string) error {
	cat, menu := s.cfg.MenuStructure.FindMenu(id)
	if menu == nil {
		return fmt.Errorf("%w: %s", ErrUnknownMenu, id)
	}

	if s.menu != nil {
		same := s.menu.ID == id
		if err := s.transition(StateNoMenu); err != nil {
			return err
		}
		s.reset()
		if same {
			return nil
		}
	}

	next := StateLeaf
	if menu.Kind == formconfig.KindSubmenu {
		next = StateAwaitingSubmenu
	}
	if err := s.transition(next); err != nil {
		return err
	}
	s.category, s.menu = cat, menu

	if menu.Kind == formconfig.KindLeaf {
		selected := map[string]bool{}
		for _, o := range menu.Options {
			if o.IsDefault {
				selected[o.ID] = true
			}
		}
		s.options[menu.ID] = selected
	}
	return nil
}

// SelectSubmenu chooses a child of the current submenu-bearing menu.
func (s *Session) SelectSubmenu(id string) error {
	if s.menu == nil || s.menu.Kind != formconfig.KindSubmenu {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, StateSubmenu)
	}
	sub := s.menu.FindSubMenuItem(id)
	if sub == nil {
		return fmt.Errorf("%w: %s", ErrUnknownSubmenu, id)
	}
	if err := s.transition(StateSubmenu); err != nil {
		return err
	}
	s.submenu = sub
	return nil
}

// ToggleOption flips an option of the selected leaf menu.
func (s *Session) ToggleOption(id string) error {
	if s.state != StateLeaf {
		return fmt.Errorf("%w: options need a leaf menu", ErrInvalidTransition)
	}
	if s.menu.FindOption(id) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownOption, id)
	}
	set := s.options[s.menu.ID]
	set[id] = !set[id]
	if !set[id] {
		delete(set, id)
	}
	return nil
}

// OptionSelected reports whether option id of menu menuID is selected.
func (s *Session) OptionSelected(menuID, id string) bool {
	return s.options[menuID][id]
}

// DateTimeVisible reports whether the date/time block is shown.
func (s *Session) DateTimeVisible() bool {
	return s.state.Terminal()
}

// Totals returns the price and duration of the selection. ok is false until
// a leaf menu or a submenu item is chosen.
func (s *Session) Totals() (t Totals, ok bool) {
	switch s.state {
	case StateLeaf:
		t = Totals{Price: s.menu.Price, Duration: s.menu.Duration}
		for _, o := range s.menu.Options {
			if s.options[s.menu.ID][o.ID] {
				t.Price += o.Price
				t.Duration += o.Duration
			}
		}
		return t, true
	case StateSubmenu:
		return Totals{Price: s.submenu.Price, Duration: s.submenu.Duration}, true
	default:
		return Totals{}, false
	}
}

// SelectSlot sets the (first) preferred date and time.
func (s *Session) SelectSlot(date, clock string) error {
	if !s.DateTimeVisible() {
		return ErrDateTimeHidden
	}
	s.slot = submission.Slot{Date: date, Time: clock}
	return nil
}

// Slot returns the selected date and time.
func (s *Session) Slot() submission.Slot { return s.slot }

// SelectAlternate sets the second (n=2) or third (n=3) preferred slot.
func (s *Session) SelectAlternate(n int, date, clock string) error {
	if s.cfg.CalendarSettings.BookingMode != formconfig.ModeMultipleDates {
		return ErrNotMultipleDates
	}
	if n < 2 || n > 3 {
		return fmt.Errorf("alternate %d out of range", n)
	}
	if !s.DateTimeVisible() {
		return ErrDateTimeHidden
	}
	s.alternates[n-2] = submission.Slot{Date: date, Time: clock}
	return nil
}

// Booking validates the session and returns the serializer input.
func (s *Session) Booking() (submission.Booking, error) {
	if err := s.Validate(); err != nil {
		return submission.Booking{}, err
	}

	cfg := s.cfg
	b := submission.Booking{
		Name:     s.Customer.Name,
		Phone:    s.Customer.Phone,
		Category: s.category.Name,
		Menu:     s.menu.Name,
		Slot:     s.slot,
		Message:  s.Customer.Message,
	}
	if cfg.VisitCountSelection.Enabled {
		b.VisitCount = cfg.VisitCountSelection.Label(s.Customer.VisitCount)
	}
	if cfg.GenderSelection.Enabled {
		b.Gender = cfg.GenderSelection.Label(s.Customer.Gender)
	}
	if cfg.CouponSelection.Enabled {
		b.Coupon = cfg.CouponSelection.Label(s.Customer.Coupon)
	}
	if s.submenu != nil {
		b.Submenu = s.submenu.Name
	}
	if s.state == StateLeaf {
		for _, o := range s.menu.Options {
			if s.options[s.menu.ID][o.ID] {
				b.Options = append(b.Options, o.Name)
			}
		}
	}
	for _, f := range cfg.CustomFields {
		if !f.Enabled {
			continue
		}
		v := s.Customer.Custom[f.ID]
		if f.Type == formconfig.FieldSelect || f.Type == formconfig.FieldRadio {
			v = formconfig.ChoiceField{Options: f.Options}.Label(v)
		}
		b.Custom = append(b.Custom, submission.Field{Label: f.Label, Value: v})
	}
	if cfg.CalendarSettings.BookingMode == formconfig.ModeMultipleDates {
		b.Alternates = append(b.Alternates, s.alternates[:]...)
	}
	return b, nil
}
