// Package availability decides which dates and times a booking form offers.
//
// Calendar mode evaluates a single slot against business hours, store
// closures and the advance-booking horizon. Multiple-dates mode produces flat
// date and time option lists that ignore business hours entirely.
package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a time of day with minute resolution.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM". "24:00" is accepted as an end-of-day bound.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || parts[0] == "" || len(parts[1]) != 2 {
		return Clock{}, fmt.Errorf("invalid time format: %q", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return Clock{}, fmt.Errorf("invalid hour: %w", err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return Clock{}, fmt.Errorf("invalid minute: %w", err)
	}

	if hour < 0 || minute < 0 || minute > 59 || hour > 24 || (hour == 24 && minute != 0) {
		return Clock{}, fmt.Errorf("time out of range: %q", s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// ClockOf returns the time of day of t.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On places the clock on the calendar day of date, in date's location.
func (c Clock) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.Hour, c.Minute, 0, 0, date.Location())
}

func clockFromMinutes(m int) Clock {
	return Clock{Hour: m / 60, Minute: m % 60}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// step walks [from, to) by interval minutes.
func step(from, to Clock, interval int) []Clock {
	if interval <= 0 {
		return nil
	}
	var out []Clock
	for m := from.Minutes(); m < to.Minutes(); m += interval {
		out = append(out, clockFromMinutes(m))
	}
	return out
}
