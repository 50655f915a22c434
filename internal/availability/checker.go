package availability

import (
	"context"
	"time"
)

// Checker reports whether a slot can still be booked upstream.
type Checker interface {
	IsBookable(ctx context.Context, start time.Time, length time.Duration) (bool, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, start time.Time, length time.Duration) (bool, error)

func (f CheckerFunc) IsBookable(ctx context.Context, start time.Time, length time.Duration) (bool, error) {
	return f(ctx, start, length)
}

// AlwaysBookable accepts every slot.
var AlwaysBookable Checker = CheckerFunc(func(context.Context, time.Time, time.Duration) (bool, error) {
	return true, nil
})

// BusySet is a Checker over a fixed set of slot keys (see SlotKey).
type BusySet map[string]bool

// NewBusySet builds a BusySet from slot keys.
func NewBusySet(keys []string) BusySet {
	s := make(BusySet, len(keys))
	for _, k := range keys {
		s[k] = true
	}
	return s
}

func (s BusySet) IsBookable(_ context.Context, start time.Time, _ time.Duration) (bool, error) {
	return !s[SlotKey(start)], nil
}
