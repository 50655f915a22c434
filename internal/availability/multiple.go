package availability

import (
	"fmt"
	"time"

	"yoyaku/internal/formconfig"
)

var weekdayNames = [...]string{"日", "月", "火", "水", "木", "金", "土"}

// DateOption is one selectable date in multiple-dates mode.
type DateOption struct {
	Value string `json:"value"` // "2025-01-10"
	Label string `json:"label"` // "1月10日(金)"
}

// DateOptions returns today+i for 0 <= i < date_range_days, skipping excluded
// weekdays. Business hours are not consulted.
func DateOptions(today time.Time, s formconfig.MultipleDatesSettings) []DateOption {
	excluded := make(map[int]bool, len(s.ExcludeWeekdays))
	for _, d := range s.ExcludeWeekdays {
		excluded[d] = true
	}

	today = startOfDay(today)
	var out []DateOption
	for i := 0; i < s.DateRangeDays; i++ {
		d := today.AddDate(0, 0, i)
		if excluded[int(d.Weekday())] {
			continue
		}
		out = append(out, DateOption{Value: d.Format(DateLayout), Label: DateLabel(d)})
	}
	return out
}

// DateLabel formats a date the way the form lists it.
func DateLabel(d time.Time) string {
	return fmt.Sprintf("%d月%d日(%s)", int(d.Month()), d.Day(), weekdayNames[d.Weekday()])
}

// TimeOptions returns start_time, start_time+interval, ... strictly before
// end_time. A malformed bound yields no options.
func TimeOptions(s formconfig.MultipleDatesSettings) []string {
	from, err := ParseClock(s.StartTime)
	if err != nil {
		return nil
	}
	to, err := ParseClock(s.EndTime)
	if err != nil {
		return nil
	}

	clocks := step(from, to, s.TimeInterval)
	out := make([]string, 0, len(clocks))
	for _, c := range clocks {
		out = append(out, c.String())
	}
	return out
}
