package formconfig

import (
	"fmt"
	"regexp"
	"sort"
	"time"
)

// Defaults applied by Normalize.
const (
	DefaultFormName         = "ご予約フォーム"
	DefaultThemeColor       = "#3b82f6"
	DefaultOpen             = "10:00"
	DefaultClose            = "19:00"
	DefaultAdvanceDays      = 30
	DefaultSlotInterval     = 30
	DefaultTimeInterval     = 30
	DefaultDateRangeDays    = 14
	DefaultSubmitButtonText = "予約する"

	// MaxDays caps advance_booking_days and date_range_days.
	MaxDays = 365
)

var themeColorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidThemeColor reports whether s is a CSS hex color usable as the accent.
func ValidThemeColor(s string) bool {
	return themeColorRe.MatchString(s)
}

// Normalize returns a fully populated configuration. It never fails and never
// modifies in: missing or malformed sections are replaced by defaults.
func Normalize(in Input) FormConfig {
	return FormConfig{
		BasicInfo:           normalizeBasicInfo(in.BasicInfo),
		GenderSelection:     normalizeChoiceField(in.GenderSelection),
		VisitCountSelection: normalizeChoiceField(in.VisitCountSelection),
		CouponSelection:     normalizeChoiceField(in.CouponSelection),
		MenuStructure:       normalizeMenuStructure(in.MenuStructure),
		CalendarSettings:    normalizeCalendar(in.CalendarSettings),
		UISettings:          normalizeUI(in.UISettings),
		CustomFields:        normalizeCustomFields(in.CustomFields),
	}
}

func normalizeBasicInfo(in *BasicInfoInput) BasicInfo {
	out := BasicInfo{FormName: DefaultFormName, ThemeColor: DefaultThemeColor}
	if in == nil {
		return out
	}
	if in.FormName != "" {
		out.FormName = in.FormName
	}
	out.StoreName = in.StoreName
	if ValidThemeColor(in.ThemeColor) {
		out.ThemeColor = in.ThemeColor
	}
	out.LiffID = in.LiffID
	return out
}

func normalizeChoiceField(in *ChoiceFieldInput) ChoiceField {
	if in == nil {
		return ChoiceField{Options: []Choice{}}
	}
	return ChoiceField{
		Enabled:  in.Enabled,
		Required: in.Required,
		Options:  normalizeChoices(in.Options),
	}
}

func normalizeChoices(in []ChoiceInput) []Choice {
	out := make([]Choice, 0, len(in))
	for _, c := range in {
		value := string(c.Value)
		if value == "" {
			continue
		}
		label := c.Label
		if label == "" {
			label = value
		}
		out = append(out, Choice{Value: value, Label: label})
	}
	return out
}

func normalizeMenuStructure(in *MenuStructureInput) MenuStructure {
	out := MenuStructure{Categories: []Category{}}
	if in == nil {
		return out
	}
	for ci, c := range in.Categories {
		cat := Category{
			ID:    idOr(c.ID, fmt.Sprintf("cat-%d", ci)),
			Name:  c.Name,
			Menus: make([]MenuItem, 0, len(c.Menus)),
		}
		for mi, m := range c.Menus {
			cat.Menus = append(cat.Menus, normalizeMenuItem(m, ci, mi))
		}
		out.Categories = append(out.Categories, cat)
	}
	return out
}

// normalizeMenuItem decides the item's kind once. A submenu flag without any
// submenu items degrades to a leaf; a submenu-bearing item never keeps options.
func normalizeMenuItem(in MenuItemInput, ci, mi int) MenuItem {
	item := MenuItem{
		ID:          idOr(in.ID, fmt.Sprintf("menu-%d-%d", ci, mi)),
		Name:        in.Name,
		Description: in.Description,
		Image:       in.Image,
	}

	if in.HasSubmenu && len(in.SubMenuItems) > 0 {
		item.Kind = KindSubmenu
		item.SubMenuItems = make([]SubMenuItem, 0, len(in.SubMenuItems))
		for si, s := range in.SubMenuItems {
			item.SubMenuItems = append(item.SubMenuItems, SubMenuItem{
				ID:       idOr(s.ID, fmt.Sprintf("sub-%d-%d-%d", ci, mi, si)),
				Name:     s.Name,
				Price:    nonNegative(s.Price),
				Duration: nonNegative(s.Duration),
			})
		}
		return item
	}

	item.Kind = KindLeaf
	item.Price = nonNegative(in.Price)
	item.Duration = nonNegative(in.Duration)
	item.Options = make([]MenuOption, 0, len(in.Options))
	for oi, o := range in.Options {
		item.Options = append(item.Options, MenuOption{
			ID:        idOr(o.ID, fmt.Sprintf("opt-%d-%d-%d", ci, mi, oi)),
			Name:      o.Name,
			Price:     nonNegative(o.Price),
			Duration:  nonNegative(o.Duration),
			IsDefault: o.IsDefault,
		})
	}
	return item
}

func normalizeCalendar(in *CalendarSettingsInput) CalendarSettings {
	out := CalendarSettings{
		BusinessHours:         normalizeBusinessHours(nil),
		AdvanceBookingDays:    DefaultAdvanceDays,
		BookingMode:           ModeCalendar,
		SlotInterval:          DefaultSlotInterval,
		ClosedDates:           []string{},
		MultipleDatesSettings: normalizeMultipleDates(nil),
	}
	if in == nil {
		return out
	}

	out.BusinessHours = normalizeBusinessHours(in.BusinessHours)
	if in.AdvanceBookingDays.Set && in.AdvanceBookingDays.Value > 0 {
		out.AdvanceBookingDays = min(in.AdvanceBookingDays.Value, MaxDays)
	}
	if BookingMode(in.BookingMode) == ModeMultipleDates {
		out.BookingMode = ModeMultipleDates
	}
	out.SlotInterval = interval(in.SlotInterval, DefaultSlotInterval)
	out.ClosedDates = normalizeClosedDates(in.ClosedDates)
	out.MultipleDatesSettings = normalizeMultipleDates(in.MultipleDatesSettings)
	return out
}

func normalizeBusinessHours(in *BusinessHoursInput) BusinessHours {
	if in == nil {
		in = &BusinessHoursInput{}
	}
	return BusinessHours{
		Sunday:    normalizeDay(in.Sunday),
		Monday:    normalizeDay(in.Monday),
		Tuesday:   normalizeDay(in.Tuesday),
		Wednesday: normalizeDay(in.Wednesday),
		Thursday:  normalizeDay(in.Thursday),
		Friday:    normalizeDay(in.Friday),
		Saturday:  normalizeDay(in.Saturday),
	}
}

// normalizeDay fills empty times only. A malformed time is kept as written and
// offers nothing at availability time.
func normalizeDay(in *DayHoursInput) DayHours {
	out := DayHours{Open: DefaultOpen, Close: DefaultClose}
	if in == nil {
		return out
	}
	out.Closed = in.Closed
	if in.Open != "" {
		out.Open = in.Open
	}
	if in.Close != "" {
		out.Close = in.Close
	}
	return out
}

func normalizeMultipleDates(in *MultipleDatesSettingsInput) MultipleDatesSettings {
	out := MultipleDatesSettings{
		TimeInterval:    DefaultTimeInterval,
		DateRangeDays:   DefaultDateRangeDays,
		ExcludeWeekdays: []int{},
		StartTime:       DefaultOpen,
		EndTime:         DefaultClose,
	}
	if in == nil {
		return out
	}
	out.TimeInterval = interval(in.TimeInterval, DefaultTimeInterval)
	if in.DateRangeDays.Set && in.DateRangeDays.Value > 0 {
		out.DateRangeDays = min(in.DateRangeDays.Value, MaxDays)
	}
	out.ExcludeWeekdays = normalizeWeekdays(in.ExcludeWeekdays)
	if in.StartTime != "" {
		out.StartTime = in.StartTime
	}
	if in.EndTime != "" {
		out.EndTime = in.EndTime
	}
	return out
}

func normalizeWeekdays(in []Int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, d := range in {
		if !d.Set || d.Value < 0 || d.Value > 6 || seen[d.Value] {
			continue
		}
		seen[d.Value] = true
		out = append(out, d.Value)
	}
	sort.Ints(out)
	return out
}

func normalizeClosedDates(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, d := range in {
		if _, err := time.Parse("2006-01-02", d); err != nil || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func normalizeUI(in *UISettingsInput) UISettings {
	out := UISettings{
		ShowPrice:        true,
		ShowDuration:     true,
		SubmitButtonText: DefaultSubmitButtonText,
	}
	if in == nil {
		return out
	}
	if in.ShowRepeatBooking != nil {
		out.ShowRepeatBooking = *in.ShowRepeatBooking
	}
	if in.ShowPrice != nil {
		out.ShowPrice = *in.ShowPrice
	}
	if in.ShowDuration != nil {
		out.ShowDuration = *in.ShowDuration
	}
	if in.SubmitButtonText != "" {
		out.SubmitButtonText = in.SubmitButtonText
	}
	out.HeaderMessage = in.HeaderMessage
	return out
}

func normalizeCustomFields(in []CustomFieldInput) []CustomField {
	out := make([]CustomField, 0, len(in))
	for i, f := range in {
		field := CustomField{
			ID:          idOr(f.ID, fmt.Sprintf("field-%d", i)),
			Label:       f.Label,
			Type:        f.Type,
			Required:    f.Required,
			Placeholder: f.Placeholder,
			Options:     normalizeChoices(f.Options),
			Enabled:     f.Enabled == nil || *f.Enabled,
		}
		switch field.Type {
		case FieldText, FieldTextarea:
			field.Options = []Choice{}
		case FieldSelect, FieldRadio:
			if len(field.Options) == 0 {
				field.Type = FieldText
			}
		default:
			field.Type = FieldText
			field.Options = []Choice{}
		}
		out = append(out, field)
	}
	return out
}

func idOr(id Text, fallback string) string {
	if id == "" {
		return fallback
	}
	return string(id)
}

func nonNegative(n Int) int {
	if !n.Set || n.Value < 0 {
		return 0
	}
	return n.Value
}

func interval(n Int, def int) int {
	switch n.Or(0) {
	case 15, 30, 60:
		return n.Value
	default:
		return def
	}
}
