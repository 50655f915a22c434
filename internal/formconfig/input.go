package formconfig

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrNotObject is returned when the configuration document is not a JSON object.
var ErrNotObject = errors.New("form config must be a JSON object")

// Input is a partially authored configuration as saved by the admin editor.
// Nil sections are filled in by Normalize.
type Input struct {
	BasicInfo           *BasicInfoInput        `json:"basic_info,omitempty"`
	GenderSelection     *ChoiceFieldInput      `json:"gender_selection,omitempty"`
	VisitCountSelection *ChoiceFieldInput      `json:"visit_count_selection,omitempty"`
	CouponSelection     *ChoiceFieldInput      `json:"coupon_selection,omitempty"`
	MenuStructure       *MenuStructureInput    `json:"menu_structure,omitempty"`
	CalendarSettings    *CalendarSettingsInput `json:"calendar_settings,omitempty"`
	UISettings          *UISettingsInput       `json:"ui_settings,omitempty"`
	CustomFields        []CustomFieldInput     `json:"custom_fields,omitempty"`

	// Problems lists sections that could not be decoded and were dropped.
	Problems []string `json:"-"`
}

type BasicInfoInput struct {
	FormName   string `json:"form_name"`
	StoreName  string `json:"store_name"`
	ThemeColor string `json:"theme_color"`
	LiffID     string `json:"liff_id"`
}

type ChoiceInput struct {
	Value Text `json:"value"`
	Label string `json:"label"`
}

type ChoiceFieldInput struct {
	Enabled  bool          `json:"enabled"`
	Required bool          `json:"required"`
	Options  []ChoiceInput `json:"options"`
}

type MenuStructureInput struct {
	Categories []CategoryInput `json:"categories"`
}

type CategoryInput struct {
	ID    Text            `json:"id"`
	Name  string          `json:"name"`
	Menus []MenuItemInput `json:"menus"`
}

type MenuItemInput struct {
	ID           Text               `json:"id"`
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	Image        string             `json:"image"`
	HasSubmenu   bool               `json:"has_submenu"`
	Price        Int                `json:"price"`
	Duration     Int                `json:"duration"`
	Options      []MenuOptionInput  `json:"options"`
	SubMenuItems []SubMenuItemInput `json:"sub_menu_items"`
}

type MenuOptionInput struct {
	ID        Text   `json:"id"`
	Name      string `json:"name"`
	Price     Int    `json:"price"`
	Duration  Int    `json:"duration"`
	IsDefault bool   `json:"is_default"`
}

type SubMenuItemInput struct {
	ID       Text   `json:"id"`
	Name     string `json:"name"`
	Price    Int    `json:"price"`
	Duration Int    `json:"duration"`
}

type DayHoursInput struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed"`
}

type BusinessHoursInput struct {
	Sunday    *DayHoursInput `json:"sunday"`
	Monday    *DayHoursInput `json:"monday"`
	Tuesday   *DayHoursInput `json:"tuesday"`
	Wednesday *DayHoursInput `json:"wednesday"`
	Thursday  *DayHoursInput `json:"thursday"`
	Friday    *DayHoursInput `json:"friday"`
	Saturday  *DayHoursInput `json:"saturday"`
}

type MultipleDatesSettingsInput struct {
	TimeInterval    Int    `json:"time_interval"`
	DateRangeDays   Int    `json:"date_range_days"`
	ExcludeWeekdays []Int  `json:"exclude_weekdays"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
}

type CalendarSettingsInput struct {
	BusinessHours         *BusinessHoursInput         `json:"business_hours"`
	AdvanceBookingDays    Int                         `json:"advance_booking_days"`
	BookingMode           string                      `json:"booking_mode"`
	SlotInterval          Int                         `json:"slot_interval"`
	ClosedDates           []string                    `json:"closed_dates"`
	MultipleDatesSettings *MultipleDatesSettingsInput `json:"multiple_dates_settings"`
}

type UISettingsInput struct {
	ShowRepeatBooking *bool  `json:"show_repeat_booking"`
	ShowPrice         *bool  `json:"show_price"`
	ShowDuration      *bool  `json:"show_duration"`
	SubmitButtonText  string `json:"submit_button_text"`
	HeaderMessage     string `json:"header_message"`
}

type CustomFieldInput struct {
	ID          Text          `json:"id"`
	Label       string        `json:"label"`
	Type        string        `json:"type"`
	Required    bool          `json:"required"`
	Placeholder string        `json:"placeholder"`
	Options     []ChoiceInput `json:"options"`
	Enabled     *bool         `json:"enabled"`
}

// Int decodes a JSON number or numeric string. Anything else decodes to an
// unset value instead of failing the surrounding section.
type Int struct {
	Value int
	Set   bool
}

func (n *Int) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*n = Int{}
		return nil
	}
	s = strings.TrimSpace(strings.Trim(s, `"`))
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*n = Int{}
		return nil
	}
	*n = Int{Value: int(f), Set: true}
	return nil
}

func (n Int) MarshalJSON() ([]byte, error) {
	if !n.Set {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(n.Value)), nil
}

// Or returns the value, or def when unset.
func (n Int) Or(def int) int {
	if !n.Set {
		return def
	}
	return n.Value
}

// Text decodes a JSON string, number or boolean into its string form. Admin
// tooling writes ids both ways.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Text(s)
		return nil
	}
	raw := strings.TrimSpace(string(b))
	if raw == "null" || strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		*t = ""
		return nil
	}
	*t = Text(raw)
	return nil
}

// Parse decodes an authored configuration. It fails only when the document is
// not a JSON object. A section that is not an object is left nil; a field of
// the wrong type is left unset while its siblings are kept. Both are recorded
// in Problems.
func Parse(data []byte) (Input, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Input{}, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if raw == nil {
		return Input{}, ErrNotObject
	}

	var in Input
	decodeSection(raw, "basic_info", &in.BasicInfo, &in.Problems)
	decodeSection(raw, "gender_selection", &in.GenderSelection, &in.Problems)
	decodeSection(raw, "visit_count_selection", &in.VisitCountSelection, &in.Problems)
	decodeSection(raw, "coupon_selection", &in.CouponSelection, &in.Problems)
	decodeSection(raw, "menu_structure", &in.MenuStructure, &in.Problems)
	decodeSection(raw, "calendar_settings", &in.CalendarSettings, &in.Problems)
	decodeSection(raw, "ui_settings", &in.UISettings, &in.Problems)
	in.CustomFields = decodeCustomFields(raw["custom_fields"], &in.Problems)

	return in, nil
}

// ParseYAML accepts the same document written as YAML.
func ParseYAML(data []byte) (Input, error) {
	js, err := YAMLToJSON(data)
	if err != nil {
		return Input{}, err
	}
	return Parse(js)
}

// YAMLToJSON converts a YAML form document into its JSON equivalent.
func YAMLToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotObject, err)
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, ErrNotObject
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert yaml form config: %w", err)
	}
	return js, nil
}

func decodeSection[T any](raw map[string]json.RawMessage, key string, dst **T, problems *[]string) {
	msg, ok := raw[key]
	if !ok || isNull(msg) {
		return
	}
	if v, ok := decodeObject[T](msg, key, problems); ok {
		*dst = v
	}
}

// decodeObject decodes one JSON object. A value of the wrong type is skipped
// and reported; encoding/json still fills every other field.
func decodeObject[T any](msg json.RawMessage, path string, problems *[]string) (*T, bool) {
	if !isObject(msg) {
		*problems = append(*problems, fmt.Sprintf("%s: expected an object", path))
		return nil, false
	}
	v := new(T)
	if err := json.Unmarshal(msg, v); err != nil {
		*problems = append(*problems, fmt.Sprintf("%s: %v", path, err))
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, false
		}
	}
	return v, true
}

func decodeCustomFields(msg json.RawMessage, problems *[]string) []CustomFieldInput {
	if len(msg) == 0 || isNull(msg) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(msg, &items); err != nil {
		*problems = append(*problems, fmt.Sprintf("custom_fields: %v", err))
		return nil
	}
	fields := make([]CustomFieldInput, 0, len(items))
	for i, item := range items {
		f, ok := decodeObject[CustomFieldInput](item, fmt.Sprintf("custom_fields[%d]", i), problems)
		if !ok {
			continue
		}
		fields = append(fields, *f)
	}
	return fields
}

func isObject(msg json.RawMessage) bool {
	trimmed := bytes.TrimSpace(msg)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isNull(msg json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(msg), []byte("null"))
}
