package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"yoyaku/internal/formconfig"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Window evaluates calendar-mode slots relative to a fixed current moment.
type Window struct {
	Settings formconfig.CalendarSettings
	Now      time.Time
	// Location the form's dates are interpreted in. Defaults to Now's location.
	Location *time.Location
}

func (w Window) loc() *time.Location {
	if w.Location != nil {
		return w.Location
	}
	return w.Now.Location()
}

// Today returns the start of the current day.
func (w Window) Today() time.Time {
	return startOfDay(w.Now.In(w.loc()))
}

// Horizon returns the last bookable day, inclusive.
func (w Window) Horizon() time.Time {
	return w.Today().AddDate(0, 0, w.Settings.AdvanceBookingDays)
}

// Offered reports whether the slot at clock on date is offered. Malformed
// business hours offer nothing.
func (w Window) Offered(date time.Time, c Clock) bool {
	day := startOfDay(date.In(w.loc()))
	if day.After(w.Horizon()) {
		return false
	}

	hours := w.Settings.BusinessHours.Day(day.Weekday())
	if hours.Closed || w.closedOn(day) {
		return false
	}

	open, err := ParseClock(hours.Open)
	if err != nil {
		return false
	}
	closeAt, err := ParseClock(hours.Close)
	if err != nil {
		return false
	}
	if c.Minutes() < open.Minutes() || c.Minutes() >= closeAt.Minutes() {
		return false
	}

	return c.On(day).After(w.Now)
}

func (w Window) closedOn(day time.Time) bool {
	key := day.Format(DateLayout)
	for _, d := range w.Settings.ClosedDates {
		if d == key {
			return true
		}
	}
	return false
}

// Rows returns the grid times: from the earliest opening to the latest
// closing among open weekdays, stepping by the slot interval.
func (w Window) Rows() []Clock {
	first, last := -1, -1
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		h := w.Settings.BusinessHours.Day(wd)
		if h.Closed {
			continue
		}
		open, err := ParseClock(h.Open)
		if err != nil {
			continue
		}
		closeAt, err := ParseClock(h.Close)
		if err != nil {
			continue
		}
		if first < 0 || open.Minutes() < first {
			first = open.Minutes()
		}
		if closeAt.Minutes() > last {
			last = closeAt.Minutes()
		}
	}
	if first < 0 || last <= first {
		return nil
	}
	return step(clockFromMinutes(first), clockFromMinutes(last), w.Settings.SlotInterval)
}

// Cell is one slot of the week grid.
type Cell struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Offered   bool   `json:"offered"`
	Available bool   `json:"available"`
}

// Grid is a 7-day view: Cells[row][day].
type Grid struct {
	Days  []string `json:"days"`
	Times []string `json:"times"`
	Cells [][]Cell `json:"cells"`
}

// WeekGrid builds the 7-day grid starting at start. A cell is available when
// it is offered and the checker accepts it; the checker is not consulted for
// slots that are not offered.
func (w Window) WeekGrid(ctx context.Context, start time.Time, checker Checker) (Grid, error) {
	if checker == nil {
		checker = AlwaysBookable
	}
	length := time.Duration(w.Settings.SlotInterval) * time.Minute
	start = startOfDay(start.In(w.loc()))

	days := make([]time.Time, 7)
	grid := Grid{Days: make([]string, 7)}
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
		grid.Days[i] = days[i].Format(DateLayout)
	}

	for _, c := range w.Rows() {
		grid.Times = append(grid.Times, c.String())
		row := make([]Cell, 7)
		for i, day := range days {
			cell := Cell{Date: grid.Days[i], Time: c.String(), Offered: w.Offered(day, c)}
			if cell.Offered {
				ok, err := checker.IsBookable(ctx, c.On(day), length)
				if err != nil {
					return Grid{}, fmt.Errorf("check slot %s %s: %w", cell.Date, cell.Time, err)
				}
				cell.Available = ok
			}
			row[i] = cell
		}
		grid.Cells = append(grid.Cells, row)
	}
	return grid, nil
}

// SlotKey formats a slot as "YYYY-MM-DD HH:MM".
func SlotKey(t time.Time) string {
	return t.Format("2006-01-02 15:04")
}

// BusySlots returns every offered slot up to the horizon that the checker
// rejects, sorted. The result is baked into the published form.
func BusySlots(ctx context.Context, w Window, checker Checker) ([]string, error) {
	if checker == nil {
		return []string{}, nil
	}
	length := time.Duration(w.Settings.SlotInterval) * time.Minute
	rows := w.Rows()
	busy := []string{}

	for day := w.Today(); !day.After(w.Horizon()); day = day.AddDate(0, 0, 1) {
		for _, c := range rows {
			if !w.Offered(day, c) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			ok, err := checker.IsBookable(ctx, c.On(day), length)
			if err != nil {
				return nil, fmt.Errorf("check slot %s: %w", SlotKey(c.On(day)), err)
			}
			if !ok {
				busy = append(busy, SlotKey(c.On(day)))
			}
		}
	}
	sort.Strings(busy)
	return busy, nil
}
