// Package formconfig holds the booking form configuration model and the
// normalizer that turns a partially authored configuration into a complete one.
package formconfig

import (
	"encoding/json"
	"time"
)

// MenuKind tags the two mutually exclusive menu item shapes.
type MenuKind string

const (
	KindLeaf    MenuKind = "leaf"
	KindSubmenu MenuKind = "submenu"
)

// BookingMode selects the date/time selection strategy.
type BookingMode string

const (
	ModeCalendar      BookingMode = "calendar"
	ModeMultipleDates BookingMode = "multiple_dates"
)

// Custom field types understood by the document assembler.
const (
	FieldText     = "text"
	FieldTextarea = "textarea"
	FieldSelect   = "select"
	FieldRadio    = "radio"
)

// FormConfig is a fully populated form configuration. Values of this type are
// produced by Normalize; every section is present.
type FormConfig struct {
	BasicInfo           BasicInfo        `json:"basic_info"`
	GenderSelection     ChoiceField      `json:"gender_selection"`
	VisitCountSelection ChoiceField      `json:"visit_count_selection"`
	CouponSelection     ChoiceField      `json:"coupon_selection"`
	MenuStructure       MenuStructure    `json:"menu_structure"`
	CalendarSettings    CalendarSettings `json:"calendar_settings"`
	UISettings          UISettings       `json:"ui_settings"`
	CustomFields        []CustomField    `json:"custom_fields"`
}

type BasicInfo struct {
	FormName   string `json:"form_name"`
	StoreName  string `json:"store_name"`
	ThemeColor string `json:"theme_color"`
	LiffID     string `json:"liff_id"`
}

// Choice is a single selectable value of an optional choice field.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// ChoiceField describes gender, visit-count and coupon selections.
type ChoiceField struct {
	Enabled  bool     `json:"enabled"`
	Required bool     `json:"required"`
	Options  []Choice `json:"options"`
}

// Label returns the label for value, or "" when value is not an option.
func (c ChoiceField) Label(value string) string {
	for _, o := range c.Options {
		if o.Value == value {
			return o.Label
		}
	}
	return ""
}

type MenuStructure struct {
	Categories []Category `json:"categories"`
}

type Category struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Menus []MenuItem `json:"menus"`
}

// MenuItem is either a leaf (own price, duration and options) or a
// submenu-bearing item whose price and duration come from the chosen
// SubMenuItem. Kind decides which fields are meaningful.
type MenuItem struct {
	ID          string
	Name        string
	Description string
	Image       string
	Kind        MenuKind

	// Leaf only.
	Price    int
	Duration int
	Options  []MenuOption

	// Submenu only.
	SubMenuItems []SubMenuItem
}

type MenuOption struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Price     int    `json:"price"`
	Duration  int    `json:"duration"`
	IsDefault bool   `json:"is_default"`
}

type SubMenuItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Duration int    `json:"duration"`
}

// MarshalJSON writes only the fields of the item's variant, tagged by kind,
// so the client script dispatches on "kind" instead of probing for fields.
func (m MenuItem) MarshalJSON() ([]byte, error) {
	type common struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		Description string   `json:"description,omitempty"`
		Image       string   `json:"image,omitempty"`
		Kind        MenuKind `json:"kind"`
	}
	base := common{ID: m.ID, Name: m.Name, Description: m.Description, Image: m.Image, Kind: m.Kind}

	if m.Kind == KindSubmenu {
		subs := m.SubMenuItems
		if subs == nil {
			subs = []SubMenuItem{}
		}
		return json.Marshal(struct {
			common
			SubMenuItems []SubMenuItem `json:"sub_menu_items"`
		}{base, subs})
	}

	opts := m.Options
	if opts == nil {
		opts = []MenuOption{}
	}
	return json.Marshal(struct {
		common
		Price    int          `json:"price"`
		Duration int          `json:"duration"`
		Options  []MenuOption `json:"options"`
	}{base, m.Price, m.Duration, opts})
}

// FindOption returns the option with the given id.
func (m *MenuItem) FindOption(id string) *MenuOption {
	for i := range m.Options {
		if m.Options[i].ID == id {
			return &m.Options[i]
		}
	}
	return nil
}

// FindSubMenuItem returns the submenu item with the given id.
func (m *MenuItem) FindSubMenuItem(id string) *SubMenuItem {
	for i := range m.SubMenuItems {
		if m.SubMenuItems[i].ID == id {
			return &m.SubMenuItems[i]
		}
	}
	return nil
}

// FindMenu looks a menu item up across all categories.
func (s *MenuStructure) FindMenu(id string) (*Category, *MenuItem) {
	for ci := range s.Categories {
		cat := &s.Categories[ci]
		for mi := range cat.Menus {
			if cat.Menus[mi].ID == id {
				return cat, &cat.Menus[mi]
			}
		}
	}
	return nil, nil
}

// DayHours is the business-hours entry for one weekday.
type DayHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed"`
}

// BusinessHours has exactly one entry per weekday.
type BusinessHours struct {
	Sunday    DayHours `json:"sunday"`
	Monday    DayHours `json:"monday"`
	Tuesday   DayHours `json:"tuesday"`
	Wednesday DayHours `json:"wednesday"`
	Thursday  DayHours `json:"thursday"`
	Friday    DayHours `json:"friday"`
	Saturday  DayHours `json:"saturday"`
}

// Day returns the entry for a weekday.
func (b BusinessHours) Day(w time.Weekday) DayHours {
	switch w {
	case time.Sunday:
		return b.Sunday
	case time.Monday:
		return b.Monday
	case time.Tuesday:
		return b.Tuesday
	case time.Wednesday:
		return b.Wednesday
	case time.Thursday:
		return b.Thursday
	case time.Friday:
		return b.Friday
	default:
		return b.Saturday
	}
}

type MultipleDatesSettings struct {
	TimeInterval    int    `json:"time_interval"`
	DateRangeDays   int    `json:"date_range_days"`
	ExcludeWeekdays []int  `json:"exclude_weekdays"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
}

type CalendarSettings struct {
	BusinessHours         BusinessHours         `json:"business_hours"`
	AdvanceBookingDays    int                   `json:"advance_booking_days"`
	BookingMode           BookingMode           `json:"booking_mode"`
	SlotInterval          int                   `json:"slot_interval"`
	ClosedDates           []string              `json:"closed_dates"`
	MultipleDatesSettings MultipleDatesSettings `json:"multiple_dates_settings"`
}

type UISettings struct {
	ShowRepeatBooking bool   `json:"show_repeat_booking"`
	ShowPrice         bool   `json:"show_price"`
	ShowDuration      bool   `json:"show_duration"`
	SubmitButtonText  string `json:"submit_button_text"`
	HeaderMessage     string `json:"header_message"`
}

type CustomField struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Placeholder string   `json:"placeholder"`
	Options     []Choice `json:"options"`
	Enabled     bool     `json:"enabled"`
}
