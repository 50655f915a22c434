// Package submission renders a completed booking into the fixed-format text
// message that the store's inbox parser reads.
package submission

import (
	"fmt"
	"strings"
	"time"
)

// Line labels. These are read by a downstream parser and must not change.
const (
	LabelName       = "お名前"
	LabelPhone      = "電話番号"
	LabelVisitCount = "来店回数"
	LabelMenu       = "メニュー"
	LabelDateTime   = "希望日時"
	LabelMessage    = "メッセージ"
	LabelGender     = "性別"
	LabelCoupon     = "クーポン"

	separator     = "："
	pathSeparator = " > "
)

// alternateLabels name the second and third preferred slots in multiple-dates mode.
var alternateLabels = [...]string{"第2希望", "第3希望"}

// Field is an extra labelled value appended after the fixed lines.
type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Slot is a preferred date ("2006-01-02") and time ("15:04").
type Slot struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// Booking is everything the serializer needs. Choice fields carry the
// display label, not the option value; an empty label omits optional lines.
type Booking struct {
	Name       string   `json:"name"`
	Phone      string   `json:"phone"`
	VisitCount string   `json:"visit_count"`
	Gender     string   `json:"gender"`
	Coupon     string   `json:"coupon"`
	Category   string   `json:"category"`
	Menu       string   `json:"menu"`
	Submenu    string   `json:"submenu"`
	Options    []string `json:"options"`
	Slot       Slot     `json:"slot"`
	Message    string   `json:"message"`
	Custom     []Field  `json:"custom"`
	Alternates []Slot   `json:"alternates"`
}

// Format renders b. Line order is fixed: name, phone, visit count, menu, the
// date/time header followed by the formatted slot, message, then the optional
// gender and coupon lines, custom fields and alternate slots.
func Format(b Booking) string {
	lines := []string{
		line(LabelName, b.Name),
		line(LabelPhone, b.Phone),
		line(LabelVisitCount, b.VisitCount),
		line(LabelMenu, MenuPath(b)),
		LabelDateTime + separator,
		FormatDateTime(b.Slot.Date, b.Slot.Time),
		line(LabelMessage, b.Message),
	}

	if b.Gender != "" {
		lines = append(lines, line(LabelGender, b.Gender))
	}
	if b.Coupon != "" {
		lines = append(lines, line(LabelCoupon, b.Coupon))
	}
	for _, f := range b.Custom {
		if f.Value == "" {
			continue
		}
		lines = append(lines, line(f.Label, f.Value))
	}
	for i, alt := range b.Alternates {
		if i >= len(alternateLabels) {
			break
		}
		if alt.Date == "" || alt.Time == "" {
			continue
		}
		lines = append(lines, line(alternateLabels[i], FormatDateTime(alt.Date, alt.Time)))
	}

	return strings.Join(lines, "\n")
}

// MenuPath joins category, menu and submenu with " > " and appends option
// names after a comma.
func MenuPath(b Booking) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{b.Category, b.Menu, b.Submenu} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	path := strings.Join(parts, pathSeparator)
	if len(b.Options) > 0 {
		path += ", " + strings.Join(b.Options, ", ")
	}
	return path
}

// FormatDateTime renders "2025-01-10", "14:00" as "2025年01月10日 14:00".
// Unparsable dates are passed through unchanged.
func FormatDateTime(date, clock string) string {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return strings.TrimSpace(date + " " + clock)
	}
	return fmt.Sprintf("%04d年%02d月%02d日 %s", d.Year(), int(d.Month()), d.Day(), clock)
}

func line(label, value string) string {
	return label + separator + value
}
