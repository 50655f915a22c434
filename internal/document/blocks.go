package document

import (
	"strconv"

	"yoyaku/internal/availability"
	"yoyaku/internal/formconfig"
)

// Controller actions referenced by the binding table.
const (
	ActionSelectMenu    = "selectMenu"
	ActionSelectSubmenu = "selectSubmenu"
	ActionToggleOption  = "toggleOption"
	ActionSetField      = "setField"
	ActionSetCustom     = "setCustom"
	ActionPrevWeek      = "prevWeek"
	ActionNextWeek      = "nextWeek"
	ActionPickDate      = "pickDate"
	ActionPickTime      = "pickTime"
	ActionRepeatBooking = "repeatBooking"
	ActionSubmit        = "submit"
)

const placeholderChoose = "選択してください"

func requiredMark() Node {
	return E("span", Text("必須")).Class("required")
}

func header(cfg *formconfig.FormConfig) Node {
	h := E("header", E("h1", Text(cfg.BasicInfo.FormName))).Class("booking-header")
	if cfg.BasicInfo.StoreName != "" {
		h.Add(E("p", Text(cfg.BasicInfo.StoreName)).Class("store-name"))
	}
	if cfg.UISettings.HeaderMessage != "" {
		h.Add(E("p", Text(cfg.UISettings.HeaderMessage)).Class("header-message"))
	}
	return h
}

// repeatBlock starts hidden; the controller reveals it when a previous
// booking is stored on the device.
func repeatBlock(cfg *formconfig.FormConfig) Node {
	if !cfg.UISettings.ShowRepeatBooking {
		return nil
	}
	return E("section",
		E("button", Text("前回と同じ内容で予約")).
			Attr("type", "button").Class("btn-secondary").
			On("click", ActionRepeatBooking),
	).Class("field repeat-booking").ID("repeat-booking").Hidden()
}

func textInput(id, label, inputType, field, autocomplete string) Node {
	input := E("input").
		Attr("type", inputType).ID(id).
		Attr("autocomplete", autocomplete).
		On("input", ActionSetField, field)
	return E("section",
		E("label", Text(label), requiredMark()).Attr("for", id),
		input,
	).Class("field")
}

// choiceBlock renders gender, visit-count and coupon selects. Disabled
// fields produce no markup at all.
func choiceBlock(c formconfig.ChoiceField, id, label, field string) Node {
	if !c.Enabled {
		return nil
	}
	lbl := E("label", Text(label)).Attr("for", id)
	if c.Required {
		lbl.Add(requiredMark())
	}
	sel := E("select", E("option", Text(placeholderChoose)).Attr("value", "")).
		ID(id).On("change", ActionSetField, field)
	for _, o := range c.Options {
		sel.Add(E("option", Text(o.Label)).Attr("value", o.Value))
	}
	return E("section", lbl, sel).Class("field").ID(id + "-field")
}

func menuBlock(cfg *formconfig.FormConfig) Node {
	sec := E("section",
		E("h2", Text("メニュー"), requiredMark()),
	).Class("field menu-field").ID("menu-field")

	if len(cfg.MenuStructure.Categories) == 0 {
		return sec.Add(E("p", Text("現在ご予約いただけるメニューはありません")).Class("empty"))
	}
	for _, cat := range cfg.MenuStructure.Categories {
		c := E("div", E("h3", Text(cat.Name))).Class("menu-category").Attr("data-category-id", cat.ID)
		for _, m := range cat.Menus {
			c.Add(menuItem(cfg.UISettings, m))
		}
		sec.Add(c)
	}
	return sec
}

func menuItem(ui formconfig.UISettings, m formconfig.MenuItem) Node {
	btn := E("button").Attr("type", "button").Class("menu-button").
		On("click", ActionSelectMenu, m.ID)
	if m.Image != "" {
		btn.Add(E("img").Attr("src", m.Image).Attr("alt", "").Class("menu-image"))
	}
	btn.Add(E("span", Text(m.Name)).Class("menu-name"))
	if m.Kind == formconfig.KindLeaf {
		btn.Add(priceTags(ui, m.Price, m.Duration, "")...)
	}
	if m.Description != "" {
		btn.Add(E("span", Text(m.Description)).Class("menu-description"))
	}

	item := E("div", btn).Class("menu-item").Attr("data-menu-id", m.ID).Attr("data-kind", string(m.Kind))

	switch m.Kind {
	case formconfig.KindSubmenu:
		list := E("div").Class("submenu-list").Hidden()
		for _, s := range m.SubMenuItems {
			b := E("button", E("span", Text(s.Name)).Class("submenu-name")).
				Attr("type", "button").Class("submenu-button").
				Attr("data-submenu-id", s.ID).
				On("click", ActionSelectSubmenu, m.ID, s.ID)
			b.Add(priceTags(ui, s.Price, s.Duration, "")...)
			list.Add(b)
		}
		item.Add(list)
	default:
		if len(m.Options) == 0 {
			break
		}
		opts := E("div").Class("menu-options").Hidden()
		for _, o := range m.Options {
			cb := E("input").Attr("type", "checkbox").Attr("data-option-id", o.ID).
				On("change", ActionToggleOption, m.ID, o.ID)
			lbl := E("label", cb, E("span", Text(o.Name)).Class("option-name")).Class("option")
			lbl.Add(priceTags(ui, o.Price, o.Duration, "+")...)
			opts.Add(lbl)
		}
		item.Add(opts)
	}
	return item
}

func priceTags(ui formconfig.UISettings, price, duration int, sign string) []Node {
	var out []Node
	if ui.ShowPrice {
		out = append(out, E("span", Text(sign+FormatYen(price))).Class("price"))
	}
	if ui.ShowDuration {
		out = append(out, E("span", Text(sign+FormatMinutes(duration))).Class("duration"))
	}
	return out
}

// dateTimeBlock is hidden until the controller reaches a terminal selection.
func dateTimeBlock(cfg *formconfig.FormConfig) Node {
	sec := E("section",
		E("h2", Text("希望日時"), requiredMark()),
	).Class("field datetime-field").ID("datetime-field").Hidden()

	if cfg.CalendarSettings.BookingMode == formconfig.ModeMultipleDates {
		times := availability.TimeOptions(cfg.CalendarSettings.MultipleDatesSettings)
		for i := 1; i <= 3; i++ {
			n := strconv.Itoa(i)
			lbl := E("label", Text("第"+n+"希望"))
			if i == 1 {
				lbl.Add(requiredMark())
			}
			dates := E("select", E("option", Text("日付を選択")).Attr("value", "")).
				Class("date-select").Attr("data-choice", n).
				On("change", ActionPickDate, n)
			timeSel := E("select", E("option", Text("時間を選択")).Attr("value", "")).
				Class("time-select").Attr("data-choice", n).
				On("change", ActionPickTime, n)
			for _, t := range times {
				timeSel.Add(E("option", Text(t)).Attr("value", t))
			}
			sec.Add(E("div", lbl, dates, timeSel).Class("date-choice"))
		}
		return sec
	}

	return sec.Add(
		E("div",
			E("button", Text("‹ 前の週")).Attr("type", "button").Class("week-prev").On("click", ActionPrevWeek),
			E("span").ID("week-label").Class("week-label"),
			E("button", Text("次の週 ›")).Attr("type", "button").Class("week-next").On("click", ActionNextWeek),
		).Class("week-nav"),
		E("div").ID("calendar-grid").Class("calendar-grid"),
		E("p").ID("selected-slot").Class("selected-slot"),
	)
}

func customFieldsBlock(fields []formconfig.CustomField) []Node {
	var out []Node
	for i, f := range fields {
		if !f.Enabled {
			continue
		}
		id := "custom-" + strconv.Itoa(i)
		lbl := E("label", Text(f.Label))
		if f.Required {
			lbl.Add(requiredMark())
		}
		sec := E("section").Class("field custom-field").Attr("data-field-id", f.ID)

		switch f.Type {
		case formconfig.FieldTextarea:
			lbl.Attr("for", id)
			ta := E("textarea").ID(id).Attr("rows", "3").On("input", ActionSetCustom, f.ID)
			if f.Placeholder != "" {
				ta.Attr("placeholder", f.Placeholder)
			}
			sec.Add(lbl, ta)
		case formconfig.FieldSelect:
			lbl.Attr("for", id)
			sel := E("select", E("option", Text(placeholderChoose)).Attr("value", "")).
				ID(id).On("change", ActionSetCustom, f.ID)
			for _, o := range f.Options {
				sel.Add(E("option", Text(o.Label)).Attr("value", o.Value))
			}
			sec.Add(lbl, sel)
		case formconfig.FieldRadio:
			group := E("div").Class("radio-group")
			for _, o := range f.Options {
				group.Add(E("label",
					E("input").Attr("type", "radio").Attr("name", id).Attr("value", o.Value).
						On("change", ActionSetCustom, f.ID),
					Text(o.Label),
				).Class("radio"))
			}
			sec.Add(lbl, group)
		default:
			lbl.Attr("for", id)
			in := E("input").Attr("type", "text").ID(id).On("input", ActionSetCustom, f.ID)
			if f.Placeholder != "" {
				in.Attr("placeholder", f.Placeholder)
			}
			sec.Add(lbl, in)
		}
		out = append(out, sec)
	}
	return out
}

func messageBlock() Node {
	return E("section",
		E("label", Text("メッセージ")).Attr("for", "customer-message"),
		E("textarea").ID("customer-message").Attr("rows", "4").On("input", ActionSetField, "message"),
	).Class("field")
}

func summaryBlock(ui formconfig.UISettings) Node {
	dl := E("dl", E("dt", Text("メニュー")), E("dd").ID("summary-menu"))
	if ui.ShowPrice {
		dl.Add(E("dt", Text("合計金額")), E("dd").ID("summary-price"))
	}
	if ui.ShowDuration {
		dl.Add(E("dt", Text("所要時間")), E("dd").ID("summary-duration"))
	}
	dl.Add(E("dt", Text("希望日時")), E("dd").ID("summary-datetime"))
	return E("section", E("h2", Text("ご予約内容")), dl).Class("summary").ID("summary").Hidden()
}

func submitBlock(ui formconfig.UISettings) []Node {
	return []Node{
		E("p").Class("form-error").ID("form-error").Attr("role", "alert").Hidden(),
		E("button", Text(ui.SubmitButtonText)).
			Attr("type", "button").Class("btn-primary").ID("submit-button").
			On("click", ActionSubmit),
		E("section",
			E("h2", Text("ご予約を受け付けました")),
			E("pre").ID("complete-text"),
		).Class("complete").ID("complete").Hidden(),
	}
}
